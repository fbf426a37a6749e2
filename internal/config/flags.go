package config

import (
	"flag"
	"os"
	"time"

	"github.com/alexkarev/homekeeper/internal/flagx"
)

// parseFlags populates selected Config fields from command-line flags.
//
// Supported flags:
//
//	-b string   remote backend: memory, redis or postgres
//	-z string   zone name in the remote store
//	-r string   redis address (host:port)
//	-d string   postgres DSN
//	-l string   path to the local sqlite database
//	-s string   s3 bucket for photo blobs
//	-e          encrypt photo blobs before upload
//	-n int      records per batch
//	-p int      pause between batches (in milliseconds)
//
// The function filters os.Args to only include the flags it knows about,
// using flagx.FilterArgs, to avoid interference with other components.
func parseFlags(cfg *Config) {
	args := flagx.FilterArgs(os.Args[1:], []string{"-b", "-z", "-r", "-d", "-l", "-s", "-e", "-n", "-p"})

	fs := flag.NewFlagSet("main", flag.ContinueOnError)

	backend := fs.String("b", string(cfg.RemoteBackend), "remote backend (memory, redis or postgres)")
	fs.StringVar(&cfg.Zone, "z", cfg.Zone, "zone name in the remote store")
	fs.StringVar(&cfg.RedisAddr, "r", cfg.RedisAddr, "redis address (host:port)")
	fs.StringVar(&cfg.DatabaseDSN, "d", cfg.DatabaseDSN, "postgres DSN")
	fs.StringVar(&cfg.LocalDatabasePath, "l", cfg.LocalDatabasePath, "path to the local sqlite database")
	fs.StringVar(&cfg.S3Bucket, "s", cfg.S3Bucket, "s3 bucket for photo blobs")
	fs.BoolVar(&cfg.EncryptBlobs, "e", cfg.EncryptBlobs, "encrypt photo blobs before upload")
	fs.IntVar(&cfg.BatchSize, "n", cfg.BatchSize, "records per batch")
	batchPause := fs.Int("p", int(cfg.BatchPause.Milliseconds()), "pause between batches (in milliseconds)")

	if err := fs.Parse(args); err != nil {
		panic(err)
	}

	cfg.RemoteBackend = Backend(*backend)
	cfg.BatchPause = time.Duration(*batchPause) * time.Millisecond
}
