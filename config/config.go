package config

import (
	"errors"
	"fmt"
	"io/fs"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"github.com/sirupsen/logrus"
)

// Config holds all application configuration.
type Config struct {
	Listen   string `envconfig:"LISTEN" default:":8080"`
	LogLevel string `envconfig:"LOG_LEVEL" default:"info"`
	Storage  StorageConfig
	Filter   FilterConfig
}

// StorageConfig selects and configures the blueprint store.
type StorageConfig struct {
	Type           string `envconfig:"STORAGE_TYPE" default:"memory"`
	DataSourceName string `envconfig:"DATA_SOURCE_NAME" default:"blueprints.db"`
	PostgresDSN    string `envconfig:"POSTGRES_DSN"`
	LocalPath      string `envconfig:"LOCAL_STORAGE_PATH" default:"./data"`
}

// FilterConfig selects the filter applied when a single blueprint is read.
type FilterConfig struct {
	Name              string `envconfig:"BLUEPRINTS_FILTER" default:"identity"`
	UndersamplingStep int    `envconfig:"BLUEPRINTS_UNDERSAMPLING_STEP" default:"2"`
}

// Load reads .env files when present and then the environment.
func Load(filenames ...string) (*Config, error) {
	if err := godotenv.Load(filenames...); err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("failed to load env file: %w", err)
		}
		logrus.Debug("No .env file found")
	}

	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	return &cfg, nil
}
