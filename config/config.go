package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/mezonai/starchain/logx"
	"github.com/mezonai/starchain/mempool"
	"github.com/mezonai/starchain/security/ratelimit"
	"github.com/mezonai/starchain/security/validation"
	"github.com/mezonai/starchain/store"
	"gopkg.in/ini.v1"
	"gopkg.in/yaml.v3"
)

const dbDirName = "db"

func DefaultNodeConfig() NodeConfig {
	return NodeConfig{
		ListenAddr:      ":8000",
		JSONRPCAddr:     ":8001",
		DataDir:         "./data",
		Store:           StoreEntry{Type: string(store.LevelDBStoreType), RedisAddress: "localhost:6379"},
		SignatureScheme: "bitcoin",
		CORS: CORSConfig{
			AllowedOrigins: []string{"*"},
			AllowedMethods: []string{"GET", "POST", "OPTIONS"},
			AllowedHeaders: []string{"Content-Type"},
		},
	}
}

// LoadNodeConfig reads node.yml. Keys missing from the file keep their default value.
func LoadNodeConfig(path string) (*NodeConfig, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open node config: %w", err)
	}
	defer file.Close()

	cfgFile := ConfigFile{Node: DefaultNodeConfig()}
	decoder := yaml.NewDecoder(file)
	if err := decoder.Decode(&cfgFile); err != nil {
		return nil, fmt.Errorf("failed to decode node config: %w", err)
	}
	logx.Info("CONFIG", fmt.Sprintf("Loaded node config from %s: listen=%s jsonrpc=%s store=%s", path, cfgFile.Node.ListenAddr, cfgFile.Node.JSONRPCAddr, cfgFile.Node.Store.Type))
	return &cfgFile.Node, nil
}

// StoreConfig derives the block store settings; file based stores live under data_dir/db.
func (c *NodeConfig) StoreConfig() *store.StoreConfig {
	return &store.StoreConfig{
		Type:         store.StoreType(c.Store.Type),
		Directory:    filepath.Join(c.DataDir, dbDirName),
		RedisAddress: c.Store.RedisAddress,
		RedisDB:      c.Store.RedisDB,
	}
}

func loadSection(path, section string, target interface{}) error {
	cfg, err := ini.Load(path)
	if err != nil {
		return err
	}
	return cfg.Section(section).MapTo(target)
}

func LoadMempoolConfig(path string) (*MempoolConfig, error) {
	mempoolCfg := &MempoolConfig{
		PendingWindowSeconds:   int(mempool.DefaultPendingWindow / time.Second),
		ValidatedWindowSeconds: int(mempool.DefaultValidatedWindow / time.Second),
		SweepIntervalSeconds:   int(mempool.DefaultSweepInterval / time.Second),
	}
	if err := loadSection(path, "mempool", mempoolCfg); err != nil {
		return nil, err
	}
	return mempoolCfg, nil
}

func (c *MempoolConfig) SessionConfig() *mempool.SessionConfig {
	return &mempool.SessionConfig{
		PendingWindow:   time.Duration(c.PendingWindowSeconds) * time.Second,
		ValidatedWindow: time.Duration(c.ValidatedWindowSeconds) * time.Second,
		SweepInterval:   time.Duration(c.SweepIntervalSeconds) * time.Second,
	}
}

func LoadRateLimitConfig(path string) (*RateLimitConfig, error) {
	def := ratelimit.DefaultGlobalConfig()
	rlCfg := &RateLimitConfig{
		IPMaxRequests:          def.IPConfig.MaxRequests,
		WalletMaxRequests:      def.WalletConfig.MaxRequests,
		WindowSeconds:          int(def.IPConfig.WindowSize / time.Second),
		CleanupIntervalSeconds: int(def.IPConfig.CleanupInterval / time.Second),
	}
	if err := loadSection(path, "ratelimit", rlCfg); err != nil {
		return nil, err
	}
	return rlCfg, nil
}

func (c *RateLimitConfig) GlobalConfig() *ratelimit.GlobalRateLimiterConfig {
	window := time.Duration(c.WindowSeconds) * time.Second
	cleanup := time.Duration(c.CleanupIntervalSeconds) * time.Second
	return &ratelimit.GlobalRateLimiterConfig{
		IPConfig: &ratelimit.RateLimiterConfig{
			MaxRequests:     c.IPMaxRequests,
			WindowSize:      window,
			CleanupInterval: cleanup,
		},
		WalletConfig: &ratelimit.RateLimiterConfig{
			MaxRequests:     c.WalletMaxRequests,
			WindowSize:      window,
			CleanupInterval: cleanup,
		},
	}
}

func LoadAPIConfig(path string) (*APIConfig, error) {
	apiCfg := &APIConfig{MaxBodyBytes: validation.DefaultRequestBodyLimit}
	if err := loadSection(path, "api", apiCfg); err != nil {
		return nil, err
	}
	return apiCfg, nil
}
