package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	var c Config
	c.LoadDefaults()

	assert.Equal(t, BackendMemory, c.RemoteBackend)
	assert.Equal(t, "homekeeper", c.Zone)
	assert.Equal(t, "127.0.0.1:6379", c.RedisAddr)
	assert.Equal(t, "inventory.db", c.LocalDatabasePath)
	assert.Equal(t, 20, c.BatchSize)
	assert.Equal(t, 200*time.Millisecond, c.BatchPause)
	assert.NotEmpty(t, c.DeviceName)
	assert.False(t, c.EncryptBlobs)
}

func TestLoadConfig_UsesDefaultsBeforeParsing(t *testing.T) {
	cfg := LoadConfig()

	require.NotNil(t, cfg, "LoadConfig must not return nil")
	assert.Equal(t, BackendMemory, cfg.RemoteBackend)
	assert.Equal(t, "homekeeper", cfg.Zone)
	assert.Equal(t, 20, cfg.BatchSize)
}
