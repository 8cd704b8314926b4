package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/mezonai/starchain/logx"
)

var validateFlags storeFlags

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Check every block hash and link of the chain",
	Run: func(cmd *cobra.Command, args []string) {
		valid, err := validateChain(cmd.Context())
		if err != nil {
			logx.Error("VALIDATE", "Validation failed: ", err)
			os.Exit(1)
		}
		if !valid {
			os.Exit(2)
		}
	},
}

func init() {
	rootCmd.AddCommand(validateCmd)
	validateCmd.Flags().StringVar(&validateFlags.dataDir, "data-dir", "./data", "Directory holding node data")
	validateCmd.Flags().StringVar(&validateFlags.database, "database", "leveldb", "Database backend (leveldb, bolt, redis or rocksdb)")
	validateCmd.Flags().StringVar(&validateFlags.redisAddr, "redis-addr", "", "Redis address when --database=redis")
	validateCmd.Flags().IntVar(&validateFlags.redisDB, "redis-db", 0, "Redis database number when --database=redis")
}

func validateChain(ctx context.Context) (bool, error) {
	manager, err := openChain(ctx, validateFlags.nodeConfig())
	if err != nil {
		return false, err
	}
	defer manager.Close()

	report, err := manager.ValidateChain(ctx)
	if err != nil {
		return false, err
	}
	count, err := manager.BlockCount(ctx)
	if err != nil {
		return false, err
	}

	if report.Valid() {
		fmt.Printf("Chain is valid (%d blocks)\n", count)
		return true, nil
	}
	fmt.Printf("Chain is INVALID (%d blocks)\n", count)
	fmt.Printf("Hash errors at heights: %v\n", report.HashErrors)
	fmt.Printf("Link errors at heights: %v\n", report.LinkErrors)
	return false, nil
}
