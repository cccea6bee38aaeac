package config

import (
	"errors"
	"fmt"
	"os"

	"github.com/knadh/koanf/parsers/toml/v2"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
	engineconfig "github.com/robalyx/sentinel/internal/engine/config"
	"github.com/robalyx/sentinel/internal/storage/database"
	"github.com/robalyx/sentinel/internal/storage/redis"
)

var (
	ErrConfigFileNotFound   = errors.New("could not find config file in any config path")
	ErrConfigVersionMissing = errors.New("config file is missing version field")
	ErrConfigVersionWrong   = errors.New("config file version mismatch")
)

// CurrentVersion of the config file.
const CurrentVersion = 1

// ConfigFileName is the file looked up in every search path.
const ConfigFileName = "sentinel.toml"

// Config represents the entire application configuration.
type Config struct {
	Version     int                            `koanf:"version"`
	Debug       Debug                          `koanf:"debug"`
	Redis       Redis                          `koanf:"redis"`
	PostgreSQL  PostgreSQL                     `koanf:"postgresql"`
	Ingest      Ingest                         `koanf:"ingest"`
	Detection   engineconfig.Values            `koanf:"detection"`   // Defaults for every community
	Communities map[string]engineconfig.Values `koanf:"communities"` // Per-community overrides
}

// Debug contains debug-related configuration.
type Debug struct {
	LogLevel      string `koanf:"log_level"`        // Log level (debug, info, warn, error)
	MaxLogsToKeep int    `koanf:"max_logs_to_keep"` // Maximum log sessions to keep
}

// Redis wraps the Redis connection configuration with an enable toggle.
type Redis struct {
	Enabled      bool `koanf:"enabled"`
	redis.Config `koanf:",squash"`
}

// PostgreSQL wraps the database connection configuration with an enable toggle.
type PostgreSQL struct {
	Enabled         bool `koanf:"enabled"`
	database.Config `koanf:",squash"`
}

// Ingest contains ingest worker configuration.
type Ingest struct {
	Workers        int `koanf:"workers"`          // Evaluation goroutines
	PopTimeoutSecs int `koanf:"pop_timeout_secs"` // Queue poll timeout
}

// LoadConfig loads the configuration from the first search path holding a
// sentinel.toml. Returns the config along with the path of the used file.
func LoadConfig() (*Config, string, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return nil, "", fmt.Errorf("failed to get home directory: %w", err)
	}

	configPaths := []string{
		".sentinel",
		homeDir + "/.sentinel/config",
		"/etc/sentinel/config",
		"/app/config",
		"/config",
		".",
	}

	for _, path := range configPaths {
		configPath := fmt.Sprintf("%s/%s", path, ConfigFileName)
		if _, err := os.Stat(configPath); err != nil {
			continue
		}

		cfg, err := LoadConfigFile(configPath)
		if err != nil {
			return nil, "", err
		}
		return cfg, configPath, nil
	}

	return nil, "", fmt.Errorf("%w: %s", ErrConfigFileNotFound, ConfigFileName)
}

// LoadConfigFile loads the configuration from an explicit path.
func LoadConfigFile(path string) (*Config, error) {
	k := koanf.New(".")
	if err := k.Load(file.Provider(path), toml.Parser()); err != nil {
		return nil, fmt.Errorf("failed to load config %s: %w", path, err)
	}

	config := Config{
		Detection: engineconfig.DefaultValues(),
	}
	if err := k.Unmarshal("", &config); err != nil {
		return nil, fmt.Errorf("error unmarshaling config %s: %w", path, err)
	}

	if config.Version == 0 {
		return nil, fmt.Errorf("%w: %s", ErrConfigVersionMissing, path)
	}
	if config.Version != CurrentVersion {
		return nil, fmt.Errorf("%w: %s (got: %d, expected: %d)", ErrConfigVersionWrong, path, config.Version, CurrentVersion)
	}

	return &config, nil
}
