package config_test

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"presencerelay/internal/config"
)

func TestLoad_MissingAPIOrigin(t *testing.T) {
	os.Unsetenv(config.APIOriginEnv)
	_, err := config.Load()
	require.Error(t, err)
}

func TestLoad_Success(t *testing.T) {
	t.Setenv(config.APIOriginEnv, "https://auth.example.com")
	t.Setenv(config.CDNOriginEnv, "https://cdn.example.com")

	cfg, err := config.Load()
	require.NoError(t, err)
	assert.Equal(t, "https://auth.example.com", cfg.APIOrigin)
	assert.Equal(t, "https://cdn.example.com", cfg.CDNOrigin)
	assert.Equal(t, config.ListenAddr, cfg.ListenAddr)
}

func TestLoad_RejectsInvalidAPIOrigin(t *testing.T) {
	t.Setenv(config.APIOriginEnv, "not a url")
	_, err := config.Load()
	require.Error(t, err)
}
