package config

// NodeConfig holds the settings read from node.yml
type NodeConfig struct {
	ListenAddr      string     `yaml:"listen_addr"`
	JSONRPCAddr     string     `yaml:"jsonrpc_addr"`
	DataDir         string     `yaml:"data_dir"`
	Store           StoreEntry `yaml:"store"`
	SignatureScheme string     `yaml:"signature_scheme"`
	CORS            CORSConfig `yaml:"cors"`
}

type StoreEntry struct {
	Type         string `yaml:"type"`
	RedisAddress string `yaml:"redis_address"`
	RedisDB      int    `yaml:"redis_db"`
}

// ConfigFile is the top-level structure for node.yml
type ConfigFile struct {
	Node NodeConfig `yaml:"node"`
}

type MempoolConfig struct {
	PendingWindowSeconds   int `ini:"pending_window_seconds"`
	ValidatedWindowSeconds int `ini:"validated_window_seconds"`
	SweepIntervalSeconds   int `ini:"sweep_interval_seconds"`
}

type RateLimitConfig struct {
	IPMaxRequests          int `ini:"ip_max_requests"`
	WalletMaxRequests      int `ini:"wallet_max_requests"`
	WindowSeconds          int `ini:"window_seconds"`
	CleanupIntervalSeconds int `ini:"cleanup_interval_seconds"`
}

type APIConfig struct {
	MaxBodyBytes int64 `ini:"max_body_bytes"`
}
