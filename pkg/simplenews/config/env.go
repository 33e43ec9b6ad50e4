package config

import (
	"errors"
	"fmt"
	"io/fs"

	"github.com/ilyakaznacheev/cleanenv"
	"github.com/joho/godotenv"
)

// WithEnv applies environment variable overrides. Only variables that are
// set change the configuration; see the env tags on ServerConfig.
func WithEnv() Option {
	return func(c *ServerConfig) error {
		if err := cleanenv.ReadEnv(c); err != nil {
			return fmt.Errorf("read environment: %w", err)
		}
		return nil
	}
}

// WithDotEnv loads variables from a .env file into the process environment
// before WithEnv reads them. An empty path loads ./.env if it exists.
// Variables already set in the environment are not overridden.
func WithDotEnv(path string) Option {
	return func(c *ServerConfig) error {
		if path == "" {
			if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
				return fmt.Errorf("load .env: %w", err)
			}
			return nil
		}
		if err := godotenv.Load(path); err != nil {
			return fmt.Errorf("load %s: %w", path, err)
		}
		return nil
	}
}

// Usage returns the description of every supported environment variable.
func Usage() (string, error) {
	var cfg ServerConfig
	return cleanenv.GetDescription(&cfg, nil)
}
