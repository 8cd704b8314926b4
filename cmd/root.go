package cmd

import (
	"os"

	"github.com/mezonai/starchain/logx"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "starchain",
	Short: "Star registry ledger CLI",
	Long:  "Command line interface for running and inspecting a starchain star registry node.",
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		logx.Error("CMD", "Command execution failed:", err)
		os.Exit(1)
	}
}
