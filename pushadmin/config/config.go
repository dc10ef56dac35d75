package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
)

type RedisConfig struct {
	Enabled  bool
	Addr     string
	Password string
	DB       int
}

type CredentialsConfig struct {
	AccessToken string
}

// Config defines the *single*, authoritative configuration.
type Config struct {
	ProjectID     string
	Endpoint      string
	BatchEndpoint string
	AuthEndpoint  string

	Redis                RedisConfig
	Credentials          CredentialsConfig
	TenantCacheTTLSecond int
}

// UpdateConfigWithEnvOverrides applies environment variables and final validation.
func UpdateConfigWithEnvOverrides(cfg *Config, logger *slog.Logger) (*Config, error) {
	logger.Debug("Applying environment variable overrides...")

	// 1. Apply Environment Overrides
	if val := os.Getenv("PROJECT_ID"); val != "" {
		logger.Debug("Overriding config value", "key", "PROJECT_ID", "source", "env")
		cfg.ProjectID = val
	}
	if val := os.Getenv("PUSH_ENDPOINT"); val != "" {
		logger.Debug("Overriding config value", "key", "PUSH_ENDPOINT", "source", "env")
		cfg.Endpoint = val
	}
	if val := os.Getenv("PUSH_BATCH_ENDPOINT"); val != "" {
		logger.Debug("Overriding config value", "key", "PUSH_BATCH_ENDPOINT", "source", "env")
		cfg.BatchEndpoint = val
	}
	if val := os.Getenv("AUTH_ENDPOINT"); val != "" {
		logger.Debug("Overriding config value", "key", "AUTH_ENDPOINT", "source", "env")
		cfg.AuthEndpoint = val
	}
	if val := os.Getenv("TENANT_CACHE_TTL_SECONDS"); val != "" {
		if ttl, err := strconv.Atoi(val); err == nil && ttl > 0 {
			logger.Debug("Overriding config value", "key", "TENANT_CACHE_TTL_SECONDS", "source", "env")
			cfg.TenantCacheTTLSecond = ttl
		}
	}

	// Redis Overrides
	if val := os.Getenv("REDIS_ADDR"); val != "" {
		cfg.Redis.Addr = val
		cfg.Redis.Enabled = true
	}
	if val := os.Getenv("REDIS_PASSWORD"); val != "" {
		cfg.Redis.Password = val
	}
	if val := os.Getenv("REDIS_DB"); val != "" {
		if db, err := strconv.Atoi(val); err == nil {
			cfg.Redis.DB = db
		}
	}
	if val := os.Getenv("REDIS_ENABLED"); val != "" {
		enabled, _ := strconv.ParseBool(val)
		cfg.Redis.Enabled = enabled
	}

	// Credential Overrides. The token itself never appears in logs.
	if val := os.Getenv("PUSH_ACCESS_TOKEN"); val != "" {
		logger.Debug("Overriding config value", "key", "PUSH_ACCESS_TOKEN", "source", "env")
		cfg.Credentials.AccessToken = val
	}

	// 2. Final Validation
	if cfg.ProjectID == "" {
		return nil, fmt.Errorf("project_id is required (set via YAML or PROJECT_ID env var)")
	}
	if cfg.Redis.Enabled && cfg.Redis.Addr == "" {
		return nil, fmt.Errorf("redis.addr is required when the tenant cache is enabled")
	}
	if cfg.TenantCacheTTLSecond <= 0 {
		cfg.TenantCacheTTLSecond = 300
	}

	logger.Debug("Configuration finalized and validated successfully")
	return cfg, nil
}
