package config

import (
	"log/slog"
)

type YamlRedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	Enabled  bool   `yaml:"enabled"`
}

type YamlCredentialsConfig struct {
	AccessToken string `yaml:"access_token"`
}

// YamlConfig is the structure that mirrors the raw config.yaml file.
type YamlConfig struct {
	ProjectID            string                `yaml:"project_id"`
	Endpoint             string                `yaml:"endpoint"`
	BatchEndpoint        string                `yaml:"batch_endpoint"`
	AuthEndpoint         string                `yaml:"auth_endpoint"`
	RedisConfig          YamlRedisConfig       `yaml:"redis"`
	Credentials          YamlCredentialsConfig `yaml:"credentials"`
	TenantCacheTTLSecond int                   `yaml:"tenant_cache_ttl_seconds"`
}

// NewConfigFromYaml converts the YamlConfig into a clean, base Config struct.
func NewConfigFromYaml(baseCfg *YamlConfig, logger *slog.Logger) (*Config, error) {
	logger.Debug("Mapping YAML config to base config struct")

	cfg := &Config{
		ProjectID:     baseCfg.ProjectID,
		Endpoint:      baseCfg.Endpoint,
		BatchEndpoint: baseCfg.BatchEndpoint,
		AuthEndpoint:  baseCfg.AuthEndpoint,
		Redis: RedisConfig{
			Addr:     baseCfg.RedisConfig.Addr,
			Password: baseCfg.RedisConfig.Password,
			DB:       baseCfg.RedisConfig.DB,
			Enabled:  baseCfg.RedisConfig.Enabled,
		},
		Credentials: CredentialsConfig{
			AccessToken: baseCfg.Credentials.AccessToken,
		},
		TenantCacheTTLSecond: baseCfg.TenantCacheTTLSecond,
	}

	logger.Debug("YAML config mapping complete",
		"project_id", cfg.ProjectID,
		"endpoint", cfg.Endpoint,
		"redis_enabled", cfg.Redis.Enabled,
	)

	return cfg, nil
}
