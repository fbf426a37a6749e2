package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeTempJSON(t *testing.T, dir, name string, data map[string]any) string {
	t.Helper()
	if dir == "" {
		dir = t.TempDir()
	}
	if name == "" {
		name = "cfg.json"
	}
	path := filepath.Join(dir, name)
	b, err := json.Marshal(data)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(path, b, 0o600))
	return path
}

func Test_parseJson_SourcesAndPrecedence(t *testing.T) {
	origArgs := os.Args
	t.Cleanup(func() { os.Args = origArgs })

	dir := t.TempDir()
	pathFlag := writeTempJSON(t, dir, "flag.json", map[string]any{
		"remote_backend": "redis",
		"redis_addr":     "redis.example:6380",
		"zone":           "family",
		"batch_pause":    "2s",
		"encrypt_blobs":  true,
	})

	t.Run("loads from flags", func(t *testing.T) {
		os.Args = []string{"testbin", "-config", pathFlag}

		cfg := &Config{}
		parseJson(cfg)

		assert.Equal(t, BackendRedis, cfg.RemoteBackend)
		assert.Equal(t, "redis.example:6380", cfg.RedisAddr)
		assert.Equal(t, "family", cfg.Zone)
		assert.Equal(t, 2*time.Second, cfg.BatchPause)
		assert.True(t, cfg.EncryptBlobs)
	})

	t.Run("absent keys keep current values", func(t *testing.T) {
		partial := writeTempJSON(t, dir, "partial.json", map[string]any{
			"zone": "office",
		})
		os.Args = []string{"testbin", "-config", partial}

		cfg := &Config{}
		cfg.LoadDefaults()
		parseJson(cfg)

		assert.Equal(t, "office", cfg.Zone)
		assert.Equal(t, BackendMemory, cfg.RemoteBackend)
		assert.Equal(t, 200*time.Millisecond, cfg.BatchPause)
	})

	t.Run("no CONFIG and no flags → no changes", func(t *testing.T) {
		os.Args = []string{"testbin"}

		cfg := &Config{
			Zone:       "defaults",
			BatchPause: 42 * time.Second,
		}
		parseJson(cfg)

		assert.Equal(t, "defaults", cfg.Zone)
		assert.Equal(t, 42*time.Second, cfg.BatchPause)
	})

	t.Run("invalid JSON → panics", func(t *testing.T) {
		bad := filepath.Join(dir, "bad.json")
		require.NoError(t, os.WriteFile(bad, []byte(`{ this is not valid json`), 0o600))

		os.Args = []string{"testbin", "-config", bad}

		cfg := &Config{}
		require.Panics(t, func() { parseJson(cfg) })
	})
}
