package cmd

import (
	"context"
	"fmt"

	"github.com/mezonai/starchain/chain"
	"github.com/mezonai/starchain/config"
	"github.com/mezonai/starchain/store"
)

// storeFlags are shared by the offline commands that open the chain directly.
type storeFlags struct {
	dataDir   string
	database  string
	redisAddr string
	redisDB   int
}

func (f *storeFlags) nodeConfig() *config.NodeConfig {
	cfg := config.DefaultNodeConfig()
	cfg.DataDir = f.dataDir
	cfg.Store.Type = f.database
	if f.redisAddr != "" {
		cfg.Store.RedisAddress = f.redisAddr
	}
	cfg.Store.RedisDB = f.redisDB
	return &cfg
}

// openChain opens the configured store and waits for the chain to be ready.
func openChain(ctx context.Context, cfg *config.NodeConfig) (*chain.Manager, error) {
	bs, err := store.CreateStore(cfg.StoreConfig())
	if err != nil {
		return nil, fmt.Errorf("failed to open %s store: %w", cfg.Store.Type, err)
	}

	manager := chain.NewManager(bs)
	if err := manager.Ready(ctx); err != nil {
		_ = manager.Close()
		return nil, err
	}
	return manager, nil
}
