package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var configEnv = []string{
	"LISTEN", "LOG_LEVEL", "STORAGE_TYPE", "DATA_SOURCE_NAME", "POSTGRES_DSN",
	"LOCAL_STORAGE_PATH", "BLUEPRINTS_FILTER", "BLUEPRINTS_UNDERSAMPLING_STEP",
}

// clearEnv unsets every variable Load reads and restores them afterwards.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range configEnv {
		t.Setenv(key, "")
		os.Unsetenv(key)
	}
}

func missingEnvFile(t *testing.T) string {
	return filepath.Join(t.TempDir(), "missing.env")
}

func TestLoad_Defaults(t *testing.T) {
	clearEnv(t)

	cfg, err := Load(missingEnvFile(t))
	require.NoError(t, err)
	assert.Equal(t, &Config{
		Listen:   ":8080",
		LogLevel: "info",
		Storage: StorageConfig{
			Type:           "memory",
			DataSourceName: "blueprints.db",
			LocalPath:      "./data",
		},
		Filter: FilterConfig{
			Name:              "identity",
			UndersamplingStep: 2,
		},
	}, cfg)
}

func TestLoad_FromEnvironment(t *testing.T) {
	clearEnv(t)
	t.Setenv("LISTEN", ":9090")
	t.Setenv("STORAGE_TYPE", "postgres")
	t.Setenv("POSTGRES_DSN", "postgres://localhost/blueprints")
	t.Setenv("BLUEPRINTS_FILTER", "undersampling")
	t.Setenv("BLUEPRINTS_UNDERSAMPLING_STEP", "3")

	cfg, err := Load(missingEnvFile(t))
	require.NoError(t, err)
	assert.Equal(t, ":9090", cfg.Listen)
	assert.Equal(t, "postgres", cfg.Storage.Type)
	assert.Equal(t, "postgres://localhost/blueprints", cfg.Storage.PostgresDSN)
	assert.Equal(t, "undersampling", cfg.Filter.Name)
	assert.Equal(t, 3, cfg.Filter.UndersamplingStep)
}

func TestLoad_EnvFile(t *testing.T) {
	clearEnv(t)
	envFile := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(envFile, []byte("STORAGE_TYPE=filesystem\nLOCAL_STORAGE_PATH=/tmp/bp\n"), 0644))

	cfg, err := Load(envFile)
	require.NoError(t, err)
	assert.Equal(t, "filesystem", cfg.Storage.Type)
	assert.Equal(t, "/tmp/bp", cfg.Storage.LocalPath)
}

func TestLoad_EnvironmentWinsOverEnvFile(t *testing.T) {
	clearEnv(t)
	t.Setenv("STORAGE_TYPE", "sqlite")
	envFile := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(envFile, []byte("STORAGE_TYPE=filesystem\n"), 0644))

	cfg, err := Load(envFile)
	require.NoError(t, err)
	assert.Equal(t, "sqlite", cfg.Storage.Type)
}

func TestLoad_InvalidStep(t *testing.T) {
	clearEnv(t)
	t.Setenv("BLUEPRINTS_UNDERSAMPLING_STEP", "two")

	_, err := Load(missingEnvFile(t))
	assert.Error(t, err)
}
