// Package config provides application configuration for MemoStream.
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
)

// Config is the root application configuration.
type Config struct {
	Server ServerConfig `yaml:"server"`
	Local  LocalConfig  `yaml:"local"`
	Remote RemoteConfig `yaml:"remote"`
	Sync   SyncConfig   `yaml:"sync"`
	Auth   AuthConfig   `yaml:"auth"`
	Log    LogConfig    `yaml:"log"`
}

// ServerConfig holds HTTP server settings for the local API.
type ServerConfig struct {
	Addr            string        `yaml:"addr"             env:"SERVER_ADDR"             env-default:"localhost:8090"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" env:"SERVER_SHUTDOWN_TIMEOUT" env-default:"10s"`
}

// LocalConfig holds local persistent store settings.
type LocalConfig struct {
	DataDir string `yaml:"data_dir" env:"LOCAL_DATA_DIR" env-default:"./data"`
}

// RemoteConfig holds remote store connector settings.
type RemoteConfig struct {
	PostgresDSN   string `yaml:"postgres_dsn"   env:"REMOTE_POSTGRES_DSN"   env-required:"true"`
	NotifyChannel string `yaml:"notify_channel" env:"REMOTE_NOTIFY_CHANNEL" env-default:""`
}

// SyncConfig tunes the flush scheduler.
type SyncConfig struct {
	Debounce time.Duration `yaml:"debounce" env:"SYNC_DEBOUNCE" env-default:"500ms"`
}

// AuthConfig holds identity provider settings.
type AuthConfig struct {
	JWTSecret string `yaml:"jwt_secret" env:"AUTH_JWT_SECRET" env-required:"true"`
}

// LogConfig holds logging settings.
type LogConfig struct {
	Level string `yaml:"level" env:"LOG_LEVEL" env-default:"info"`
}

// Load reads configuration from a YAML file and environment variables.
// Priority: ENV > YAML > defaults. The file path comes from CONFIG_PATH
// (fallback "./config.yaml"); a missing default file is not an error.
func Load() (*Config, error) {
	var cfg Config

	path := os.Getenv("CONFIG_PATH")
	explicitPath := path != ""
	if !explicitPath {
		path = "./config.yaml"
	}

	if _, err := os.Stat(path); err == nil {
		if err := cleanenv.ReadConfig(path, &cfg); err != nil {
			return nil, fmt.Errorf("config: read %s: %w", path, err)
		}
	} else if explicitPath {
		return nil, fmt.Errorf("config: file %s: %w", path, err)
	} else {
		if err := cleanenv.ReadEnv(&cfg); err != nil {
			return nil, fmt.Errorf("config: read env: %w", err)
		}
	}

	if cfg.Sync.Debounce <= 0 {
		return nil, fmt.Errorf("config: sync debounce must be positive")
	}

	return &cfg, nil
}
