package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// ErrConfiguration wraps every loading or validation failure.
var ErrConfiguration = errors.New("configuration error")

// LoadConfig loads configuration from, in increasing precedence:
//  1. Built-in defaults
//  2. The YAML file at path (optional; a missing file is not an error)
//  3. BOT_* environment variables, including those from an optional .env file
func LoadConfig(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%w: failed to load .env file: %v", ErrConfiguration, err)
	}

	v := viper.New()
	for key, value := range defaults {
		v.SetDefault(key, value)
	}

	v.SetEnvPrefix("BOT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			if !errors.Is(err, fs.ErrNotExist) {
				return nil, fmt.Errorf("%w: failed to read config file %s: %v", ErrConfiguration, path, err)
			}
			slog.Info("Configuration file not found, using defaults and environment", "path", path)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("%w: failed to parse config: %v", ErrConfiguration, err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrConfiguration, err)
	}

	slog.Info("Configuration loaded",
		"platform", cfg.Platform,
		"database_driver", cfg.Database.Driver,
		"llm_provider", cfg.LLM.Provider,
		"llm_model", cfg.LLM.Model,
		"timezone", cfg.Locale.Timezone,
		"events_enabled", cfg.Events.Enabled)
	return cfg, nil
}
