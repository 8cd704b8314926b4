package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/mezonai/starchain/block"
	"github.com/mezonai/starchain/chain"
	"github.com/mezonai/starchain/jsonx"
	"github.com/mezonai/starchain/logx"
)

var (
	blockFlags  storeFlags
	blockHeight uint64
	blockHash   string
)

var blockCmd = &cobra.Command{
	Use:   "block",
	Short: "Print one block by height or hash",
	Run: func(cmd *cobra.Command, args []string) {
		if err := printBlock(cmd.Context()); err != nil {
			logx.Error("BLOCK", "Failed to print block: ", err)
			os.Exit(1)
		}
	},
}

func init() {
	rootCmd.AddCommand(blockCmd)
	blockCmd.Flags().StringVar(&blockFlags.dataDir, "data-dir", "./data", "Directory holding node data")
	blockCmd.Flags().StringVar(&blockFlags.database, "database", "leveldb", "Database backend (leveldb, bolt, redis or rocksdb)")
	blockCmd.Flags().StringVar(&blockFlags.redisAddr, "redis-addr", "", "Redis address when --database=redis")
	blockCmd.Flags().IntVar(&blockFlags.redisDB, "redis-db", 0, "Redis database number when --database=redis")
	blockCmd.Flags().Uint64Var(&blockHeight, "height", 0, "Block height")
	blockCmd.Flags().StringVar(&blockHash, "hash", "", "Block hash, takes precedence over --height")
}

func printBlock(ctx context.Context) error {
	manager, err := openChain(ctx, blockFlags.nodeConfig())
	if err != nil {
		return err
	}
	defer manager.Close()

	var blk *block.Block
	if blockHash != "" {
		blk, err = manager.BlockByHash(ctx, blockHash)
	} else {
		blk, err = manager.BlockByHeight(ctx, blockHeight)
	}
	if err != nil {
		return err
	}
	if blk == nil {
		return chain.ErrBlockNotFound
	}

	out, err := jsonx.MarshalIndent(chain.NewBlockView(blk))
	if err != nil {
		return err
	}
	fmt.Println(string(out))
	return nil
}
