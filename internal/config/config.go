package config

import (
	"os"
	"time"
)

// Backend selects the remote datastore implementation.
type Backend string

const (
	BackendMemory   Backend = "memory"
	BackendRedis    Backend = "redis"
	BackendPostgres Backend = "postgres"
)

// Config holds runtime settings for the HomeKeeper sync CLI.
//
// Units: BatchPause is a time.Duration (e.g., 200*time.Millisecond).
type Config struct {
	// RemoteBackend is one of "memory", "redis", "postgres".
	RemoteBackend Backend

	// Zone names the logical container in the remote store. One zone holds
	// at most one backup.
	Zone string

	RedisAddr     string
	RedisPassword string

	// DatabaseDSN is the postgres connection string, used when
	// RemoteBackend is "postgres".
	DatabaseDSN string

	// LocalDatabasePath is the sqlite file holding the inventory.
	LocalDatabasePath string

	// S3 settings for photo blobs. An empty bucket disables the S3 blob
	// store and photos stay inline in memory.
	S3Endpoint        string
	S3Region          string
	S3Bucket          string
	S3AccessKeyID     string
	S3SecretAccessKey string

	// EncryptBlobs turns on client-side encryption of photo blobs; the
	// passphrase is prompted at startup.
	EncryptBlobs bool

	BatchSize  int
	BatchPause time.Duration

	DeviceName string
}

// LoadDefaults populates c with sensible defaults.
func (c *Config) LoadDefaults() {
	c.RemoteBackend = BackendMemory
	c.Zone = "homekeeper"
	c.RedisAddr = "127.0.0.1:6379"
	c.DatabaseDSN = ""
	c.LocalDatabasePath = "inventory.db"
	c.S3Region = "us-east-1"
	c.BatchSize = 20
	c.BatchPause = 200 * time.Millisecond

	host, err := os.Hostname()
	if err != nil || host == "" {
		host = "unknown-device"
	}
	c.DeviceName = host
}

// LoadConfig constructs a Config, applies defaults, then overlays values from
// JSON (if present) and command-line flags (if present). Later sources take
// precedence over earlier ones.
func LoadConfig() *Config {
	cfg := &Config{}
	cfg.LoadDefaults()
	parseJson(cfg)
	parseFlags(cfg)
	return cfg
}
