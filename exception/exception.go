package exception

import (
	"os"
	"runtime/debug"

	"github.com/mezonai/starchain/logx"
	"github.com/mezonai/starchain/monitoring"
)

// SafeGo runs fn in a goroutine; a panic is logged and counted instead of crashing the process.
func SafeGo(name string, fn func()) {
	go func() {
		defer Recover(name)
		fn()
	}()
}

func SafeGoWithPanic(name string, fn func()) {
	go func() {
		defer func() {
			if r := recover(); r != nil {
				monitoring.IncreasePanicCount()
				logx.Error("PANIC", "Panic in: ", name, " ", r, string(debug.Stack()))
				os.Exit(1)
			}
		}()
		fn()
	}()
}

// Recover must be deferred directly. It swallows the panic after logging it.
func Recover(name string) {
	if r := recover(); r != nil {
		ReportPanic(name, r)
	}
}

// ReportPanic logs and counts a panic value that the caller already recovered.
func ReportPanic(name string, r interface{}) {
	monitoring.IncreasePanicCount()
	logx.Error("PANIC", "Panic in: ", name, " ", r, string(debug.Stack()))
}
