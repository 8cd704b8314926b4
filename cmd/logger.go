package cmd

import (
	"os"
	"strconv"

	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/mezonai/starchain/logx"
)

const (
	defaultLogMaxSizeMB  = 100
	defaultLogMaxAgeDays = 30
	logDir               = "./logs/"
)

// initializeFileLogger switches logx to a rotating file when LOGFILE is set.
func initializeFileLogger() {
	logFileConfig := os.Getenv("LOGFILE")
	if logFileConfig == "" {
		return
	}

	lumberjackLogger := &lumberjack.Logger{
		Filename: logDir + logFileConfig,
		MaxSize:  envInt("LOGFILE_MAX_SIZE_MB", defaultLogMaxSizeMB),
		MaxAge:   envInt("LOGFILE_MAX_AGE_DAYS", defaultLogMaxAgeDays),
	}

	logx.InitWithOutput(lumberjackLogger)
}

func envInt(name string, def int) int {
	raw := os.Getenv(name)
	if raw == "" {
		return def
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		panic("Invalid value for " + name + ": " + err.Error())
	}
	return v
}
