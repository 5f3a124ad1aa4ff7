package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfigDefaults(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("DISCORD_TOKEN", "tok")
	t.Setenv("DATA_DIR", dir)

	cfg, err := LoadConfig()
	require.NoError(t, err)
	assert.Equal(t, ":8080", cfg.WebAddr)
	assert.Equal(t, 100, cfg.MaxQueueSize)
	assert.Equal(t, 50, cfg.MaxPlaylistSize)
	assert.Equal(t, 10*time.Second, cfg.ResolveTimeout)
	assert.False(t, cfg.RegisterCommandsOnBot)
}

func TestLoadConfigResolveTimeoutFormats(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("DISCORD_TOKEN", "tok")
	t.Setenv("DATA_DIR", dir)

	t.Setenv("RESOLVE_TIMEOUT", "30")
	cfg, err := LoadConfig()
	require.NoError(t, err)
	assert.Equal(t, 30*time.Second, cfg.ResolveTimeout)

	t.Setenv("RESOLVE_TIMEOUT", "1m30s")
	cfg, err = LoadConfig()
	require.NoError(t, err)
	assert.Equal(t, 90*time.Second, cfg.ResolveTimeout)

	t.Setenv("RESOLVE_TIMEOUT", "nonsense")
	cfg, err = LoadConfig()
	require.NoError(t, err)
	assert.Equal(t, 10*time.Second, cfg.ResolveTimeout)
}

func TestLoadConfigRequiresToken(t *testing.T) {
	t.Setenv("DISCORD_TOKEN", "")
	_, err := LoadConfig()
	assert.Error(t, err)
}
