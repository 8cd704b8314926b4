package cmd

import (
	"context"
	"os"

	"github.com/spf13/cobra"

	"github.com/mezonai/starchain/logx"
)

var initFlags storeFlags

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize the data directory and the genesis block",
	Long: `Initialize a new star registry by:
- Setting up the data directory
- Opening the block store with the chosen database backend
- Creating the genesis block if the chain is empty`,
	Run: func(cmd *cobra.Command, args []string) {
		if err := initializeNode(cmd.Context()); err != nil {
			logx.Error("INIT", "Initialization failed: ", err)
			os.Exit(1)
		}
	},
}

func init() {
	rootCmd.AddCommand(initCmd)

	initCmd.Flags().StringVar(&initFlags.dataDir, "data-dir", "./data", "Directory to save node data")
	initCmd.Flags().StringVar(&initFlags.database, "database", "leveldb", "Database backend (leveldb, bolt, redis or rocksdb)")
	initCmd.Flags().StringVar(&initFlags.redisAddr, "redis-addr", "", "Redis address when --database=redis")
	initCmd.Flags().IntVar(&initFlags.redisDB, "redis-db", 0, "Redis database number when --database=redis")
}

// initializeNode is idempotent: an existing chain is opened and left untouched.
func initializeNode(ctx context.Context) error {
	initializeFileLogger()

	if err := os.MkdirAll(initFlags.dataDir, 0o755); err != nil {
		return err
	}

	manager, err := openChain(ctx, initFlags.nodeConfig())
	if err != nil {
		return err
	}
	defer manager.Close()

	genesis, err := manager.BlockByHeight(ctx, 0)
	if err != nil {
		return err
	}
	count, err := manager.BlockCount(ctx)
	if err != nil {
		return err
	}

	logx.Info("INIT", "Genesis block hash: ", genesis.Hash)
	logx.Info("INIT", "Chain holds ", count, " block(s)")
	logx.Info("INIT", "Data directory: ", initFlags.dataDir)
	logx.Info("INIT", "Database backend: ", initFlags.database)
	return nil
}
