package config

import (
	"fmt"
	"os"
	"strings"
	"sync"

	"PPRelay/logger"
	"PPRelay/tools/ids"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// EnvPrefix is prepended to every variable: RELAY_REDIS_ADDR, RELAY_USERS...
// The bare name (REDIS_ADDR) is accepted as a fallback.
const EnvPrefix = "RELAY"

const (
	StoreRedis  = "redis"
	StoreMemory = "memory"
)

var (
	globalMu sync.RWMutex
	global   *AppConfig
)

// Load reads an optional .env file (or the files named in envFiles), then the
// environment, applies defaults and validates the result.
func Load(envFiles ...string) (*AppConfig, error) {
	if len(envFiles) == 0 {
		if _, err := os.Stat(".env"); err == nil {
			envFiles = []string{".env"}
		}
	}
	if len(envFiles) > 0 {
		// existing environment variables win over the file
		if err := godotenv.Load(envFiles...); err != nil {
			return nil, fmt.Errorf("load env file: %w", err)
		}
	}

	var cfg AppConfig
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("process env: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *AppConfig) Validate() error {
	c.StoreBackend = strings.ToLower(strings.TrimSpace(c.StoreBackend))
	switch c.StoreBackend {
	case StoreRedis, StoreMemory:
	default:
		return fmt.Errorf("STORE_BACKEND must be %q or %q, got %q", StoreRedis, StoreMemory, c.StoreBackend)
	}
	if c.LossProbability < 0 || c.LossProbability > 1 {
		return fmt.Errorf("LOSS_PROBABILITY must be within [0,1], got %v", c.LossProbability)
	}
	if c.NodeId < 0 || c.NodeId > ids.MaxNodeID {
		return fmt.Errorf("NODE_ID must be within [0,%d], got %d", ids.MaxNodeID, c.NodeId)
	}
	if c.AuthRequired && c.JwtSecret == "" {
		return fmt.Errorf("AUTH_REQUIRED needs JWT_SECRET")
	}
	return nil
}

// JwtKey returns the signing key. Without a configured secret a random one is
// generated per process, so tokens do not survive a restart.
func (c *AppConfig) JwtKey() []byte {
	if c.JwtSecret != "" {
		return []byte(c.JwtSecret)
	}
	logger.Warn("JWT_SECRET not set, using an ephemeral signing key")
	return []byte(uuid.NewString() + uuid.NewString())
}

func SetGlobal(c *AppConfig) {
	globalMu.Lock()
	global = c
	globalMu.Unlock()
}

// Global returns the configuration installed by SetGlobal (nil before start-up).
func Global() *AppConfig {
	globalMu.RLock()
	defer globalMu.RUnlock()
	return global
}

// ConfigIds seeds the id generator with this node's id.
func ConfigIds(c *AppConfig) {
	logger.Infof("id generator node=%d", c.NodeId)
	ids.SetNodeID(c.NodeId)
}

// ConfigLog applies LOG_LEVEL.
func ConfigLog(c *AppConfig) {
	if err := logger.SetLevel(c.LogLevel); err != nil {
		logger.Warnf("keeping current log level: %v", err)
	}
}
