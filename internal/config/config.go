package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/fixedratio-labs/pool-indexer/internal/constants"
)

type Config struct {
	// RPC settings
	RPCUrl             string
	SystemStateAddress string
	SystemAuthority    string
	Network            string

	// Polling settings
	PollInterval        time.Duration
	DiscoveryInterval   time.Duration
	SystemStateInterval time.Duration
	MaxTxPerPool        int
	MaxConcurrentPools  int
	EnableDiscovery     bool
	EnableTxSync        bool
	EnableSystemSync    bool
	OperationTimeout    time.Duration
	RetryOnFailure      bool
	MaxRetryAttempts    int
	RetryDelay          time.Duration

	// Redis settings
	RedisAddr string
	RedisDB   int

	// ClickHouse settings
	ClickHouseAddr     string
	ClickHouseDatabase string
	ClickHouseUsername string
	ClickHousePassword string

	// HTTP client settings
	HTTPTimeout  time.Duration
	MaxRetries   int
	RetryBackoff time.Duration

	// API server settings
	APIAddr string
	APIKey  string
	DevMode bool
}

func Load() *Config {
	return &Config{
		// RPC
		RPCUrl:             getEnv("SOLANA_RPC_URL", "https://api.mainnet-beta.solana.com"),
		SystemStateAddress: getEnv("SYSTEM_STATE_ADDRESS", ""),
		SystemAuthority:    getEnv("SYSTEM_AUTHORITY", ""),
		Network:            getEnv("NETWORK", constants.NetworkMainnet),

		// Polling
		PollInterval:        getDurationEnv("POLL_INTERVAL", constants.DefaultPollInterval),
		DiscoveryInterval:   getDurationEnv("DISCOVERY_INTERVAL", constants.DefaultDiscoveryInterval),
		SystemStateInterval: getDurationEnv("SYSTEM_STATE_INTERVAL", constants.DefaultSystemStateInterval),
		MaxTxPerPool:        getIntEnv("MAX_TX_PER_POOL", constants.DefaultMaxTxPerPool),
		MaxConcurrentPools:  getIntEnv("MAX_CONCURRENT_POOLS", constants.DefaultMaxConcurrentPools),
		EnableDiscovery:     getBoolEnv("ENABLE_DISCOVERY", false),
		EnableTxSync:        getBoolEnv("ENABLE_TX_SYNC", false),
		EnableSystemSync:    getBoolEnv("ENABLE_SYSTEM_SYNC", true),
		OperationTimeout:    getDurationEnv("OPERATION_TIMEOUT", constants.DefaultOperationTimeout),
		RetryOnFailure:      getBoolEnv("RETRY_ON_FAILURE", true),
		MaxRetryAttempts:    getIntEnv("MAX_RETRY_ATTEMPTS", constants.DefaultMaxRetryAttempts),
		RetryDelay:          getDurationEnv("RETRY_DELAY", constants.DefaultRetryDelay),

		// Redis
		RedisAddr: getEnv("REDIS_ADDR", "localhost:6379"),
		RedisDB:   getIntEnv("REDIS_DB", 0),

		// ClickHouse
		ClickHouseAddr:     getEnv("CLICKHOUSE_ADDR", "localhost:9000"),
		ClickHouseDatabase: getEnv("CLICKHOUSE_DATABASE", "pools"),
		ClickHouseUsername: getEnv("CLICKHOUSE_USERNAME", "default"),
		ClickHousePassword: getEnv("CLICKHOUSE_PASSWORD", ""),

		// HTTP
		HTTPTimeout:  getDurationEnv("HTTP_TIMEOUT", 30*time.Second),
		MaxRetries:   getIntEnv("MAX_RETRIES", 5),
		RetryBackoff: getDurationEnv("RETRY_BACKOFF", 2*time.Second),

		// API
		APIAddr: getEnv("API_ADDR", ":8090"),
		APIKey:  getEnv("API_KEY", ""),
		DevMode: getBoolEnv("DEV_MODE", false),
	}
}

func (c *Config) Validate() error {
	if c.RPCUrl == "" {
		return fmt.Errorf("SOLANA_RPC_URL is required")
	}
	if c.PollInterval <= 0 {
		return fmt.Errorf("POLL_INTERVAL must be positive")
	}
	if c.RetryDelay <= 0 {
		return fmt.Errorf("RETRY_DELAY must be positive")
	}
	if c.MaxConcurrentPools < 1 {
		return fmt.Errorf("MAX_CONCURRENT_POOLS must be at least 1")
	}
	if c.OperationTimeout <= 0 {
		return fmt.Errorf("OPERATION_TIMEOUT must be positive")
	}
	switch c.Network {
	case constants.NetworkMainnet, constants.NetworkTestnet, constants.NetworkDevnet:
	default:
		return fmt.Errorf("unknown network %q", c.Network)
	}
	return nil
}

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getIntEnv(key string, defaultVal int) int {
	if val := os.Getenv(key); val != "" {
		if i, err := strconv.Atoi(val); err == nil {
			return i
		}
	}
	return defaultVal
}

func getBoolEnv(key string, defaultVal bool) bool {
	if val := os.Getenv(key); val != "" {
		if b, err := strconv.ParseBool(val); err == nil {
			return b
		}
	}
	return defaultVal
}

func getDurationEnv(key string, defaultVal time.Duration) time.Duration {
	if val := os.Getenv(key); val != "" {
		if d, err := time.ParseDuration(val); err == nil {
			return d
		}
	}
	return defaultVal
}
