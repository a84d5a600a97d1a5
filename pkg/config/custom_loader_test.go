package config_test

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/notifykit/pkg/config"
)

type envFileConfig struct {
	Endpoint string   `env:"TEST_ENVFILE_ENDPOINT"`
	Rate     int      `env:"TEST_ENVFILE_RATE"`
	Channels []string `env:"TEST_ENVFILE_CHANNELS" envSeparator:","`
}

type validatedConfig struct {
	Attempts int `env:"TEST_VALIDATED_ATTEMPTS" envDefault:"3"`
}

func (c validatedConfig) Validate() error {
	if c.Attempts < 1 {
		return errors.New("attempts must be positive")
	}
	return nil
}

func writeEnvFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func unsetenv(t *testing.T, keys ...string) {
	t.Helper()
	for _, k := range keys {
		t.Setenv(k, "")
		os.Unsetenv(k)
	}
}

func TestLoadEnv(t *testing.T) {
	unsetenv(t, "TEST_ENVFILE_ENDPOINT", "TEST_ENVFILE_RATE", "TEST_ENVFILE_CHANNELS")
	config.ResetCache()

	first := writeEnvFile(t, "TEST_ENVFILE_ENDPOINT=https://push.example.com\nTEST_ENVFILE_RATE=25\n")
	second := writeEnvFile(t, "TEST_ENVFILE_RATE=99\nTEST_ENVFILE_CHANNELS=push,email\n")

	require.NoError(t, config.LoadEnv(first, second))

	var cfg envFileConfig
	require.NoError(t, config.Load(&cfg))
	assert.Equal(t, "https://push.example.com", cfg.Endpoint)
	assert.Equal(t, 25, cfg.Rate, "earlier file wins")
	assert.Equal(t, []string{"push", "email"}, cfg.Channels)
}

func TestLoadEnv_MissingFile(t *testing.T) {
	err := config.LoadEnv(filepath.Join(t.TempDir(), "missing.env"))
	require.Error(t, err)
	assert.ErrorIs(t, err, config.ErrLoadingEnvFile)

	assert.Panics(t, func() { config.MustLoadEnv(filepath.Join(t.TempDir(), "missing.env")) })
}

func TestLoad_Validation(t *testing.T) {
	config.ResetCache()
	t.Setenv("TEST_VALIDATED_ATTEMPTS", "0")

	var cfg validatedConfig
	err := config.Load(&cfg)
	require.Error(t, err)
	assert.ErrorIs(t, err, config.ErrInvalidConfig)

	t.Setenv("TEST_VALIDATED_ATTEMPTS", "5")
	require.NoError(t, config.Load(&cfg), "failed config is not cached")
	assert.Equal(t, 5, cfg.Attempts)
}

func TestResetCache(t *testing.T) {
	config.ResetCache()
	t.Setenv("TEST_ENVFILE_ENDPOINT", "first")

	var cfg envFileConfig
	require.NoError(t, config.Load(&cfg))
	assert.Equal(t, "first", cfg.Endpoint)

	t.Setenv("TEST_ENVFILE_ENDPOINT", "second")
	require.NoError(t, config.Load(&cfg))
	assert.Equal(t, "first", cfg.Endpoint, "cached until reset")

	config.ResetCache()
	require.NoError(t, config.Load(&cfg))
	assert.Equal(t, "second", cfg.Endpoint)
}
