package config

import (
	"encoding/json"
	"os"
	"time"

	"github.com/alexkarev/homekeeper/internal/flagx"
	"github.com/alexkarev/homekeeper/internal/timex"
)

// JsonConfig is a DTO used exclusively for JSON unmarshalling. It relies on
// timex.Duration so JSON can specify intervals either as strings like
// "200ms" or as integer nanoseconds. After parsing, values are copied into
// the runtime Config (which uses time.Duration).
type JsonConfig struct {
	RemoteBackend     string         `json:"remote_backend"`
	Zone              string         `json:"zone"`
	RedisAddr         string         `json:"redis_addr"`
	RedisPassword     string         `json:"redis_password"`
	DatabaseDSN       string         `json:"database_dsn"`
	LocalDatabasePath string         `json:"local_database_path"`
	S3Endpoint        string         `json:"s3_endpoint"`
	S3Region          string         `json:"s3_region"`
	S3Bucket          string         `json:"s3_bucket"`
	S3AccessKeyID     string         `json:"s3_access_key_id"`
	S3SecretAccessKey string         `json:"s3_secret_access_key"`
	EncryptBlobs      *bool          `json:"encrypt_blobs"`
	BatchSize         int            `json:"batch_size"`
	BatchPause        timex.Duration `json:"batch_pause"`
	DeviceName        string         `json:"device_name"`
}

// parseJson overlays cfg with values loaded from a JSON file named by the
// -c or -config flag. Absent keys leave the current value alone. Panics on
// read or unmarshal errors (caller should recover if desired).
func parseJson(cfg *Config) {
	jsonConfigFile := flagx.JsonConfigFlags()
	if jsonConfigFile == "" {
		return
	}

	var jc JsonConfig

	data, err := os.ReadFile(jsonConfigFile)
	if err != nil {
		panic(err)
	}
	if err := json.Unmarshal(data, &jc); err != nil {
		panic(err)
	}

	if jc.RemoteBackend != "" {
		cfg.RemoteBackend = Backend(jc.RemoteBackend)
	}
	if jc.Zone != "" {
		cfg.Zone = jc.Zone
	}
	if jc.RedisAddr != "" {
		cfg.RedisAddr = jc.RedisAddr
	}
	if jc.RedisPassword != "" {
		cfg.RedisPassword = jc.RedisPassword
	}
	if jc.DatabaseDSN != "" {
		cfg.DatabaseDSN = jc.DatabaseDSN
	}
	if jc.LocalDatabasePath != "" {
		cfg.LocalDatabasePath = jc.LocalDatabasePath
	}
	if jc.S3Endpoint != "" {
		cfg.S3Endpoint = jc.S3Endpoint
	}
	if jc.S3Region != "" {
		cfg.S3Region = jc.S3Region
	}
	if jc.S3Bucket != "" {
		cfg.S3Bucket = jc.S3Bucket
	}
	if jc.S3AccessKeyID != "" {
		cfg.S3AccessKeyID = jc.S3AccessKeyID
	}
	if jc.S3SecretAccessKey != "" {
		cfg.S3SecretAccessKey = jc.S3SecretAccessKey
	}
	if jc.EncryptBlobs != nil {
		cfg.EncryptBlobs = *jc.EncryptBlobs
	}
	if jc.BatchSize > 0 {
		cfg.BatchSize = jc.BatchSize
	}
	if jc.BatchPause.Duration > 0 {
		cfg.BatchPause = time.Duration(jc.BatchPause.Duration)
	}
	if jc.DeviceName != "" {
		cfg.DeviceName = jc.DeviceName
	}
}
