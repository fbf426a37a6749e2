package blobstore

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/google/uuid"

	"github.com/alexkarev/homekeeper/internal/common"
	"github.com/alexkarev/homekeeper/internal/filex"
)

// s3API is the subset of the S3 client used by S3Store. *s3.Client
// satisfies it; tests substitute a fake.
type s3API interface {
	PutObject(ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	GetObject(ctx context.Context, in *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
}

// S3Config holds settings for an S3-compatible backend (AWS or MinIO).
type S3Config struct {
	AccessKey    string
	SecretKey    string
	Bucket       string
	Region       string
	BaseEndpoint string
	// StagingDir is where upload copies are spooled before transfer.
	// Empty means "blobstaging" under the working directory.
	StagingDir string
}

// S3Store persists blobs in an S3-compatible object store. Upload payloads
// are spooled to a local staging directory first so a quota-recovery pass
// can reclaim the space via CleanupTemporary.
type S3Store struct {
	api     s3API
	bucket  string
	staging string
}

// NewS3Store builds an S3Store with static credentials, MinIO-compatible.
func NewS3Store(ctx context.Context, cfg S3Config) (*S3Store, error) {
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx,
		awsconfig.WithRegion(cfg.Region),
		awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			cfg.AccessKey,
			cfg.SecretKey,
			"",
		)))
	if err != nil {
		return nil, fmt.Errorf("loading aws config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.BaseEndpoint != "" {
			o.BaseEndpoint = aws.String(cfg.BaseEndpoint)
		}
		o.UsePathStyle = true
	})

	stagingName := cfg.StagingDir
	if stagingName == "" {
		stagingName = "blobstaging"
	}
	staging, err := filex.EnsureSubDir(stagingName)
	if err != nil {
		return nil, err
	}

	return &S3Store{api: client, bucket: cfg.Bucket, staging: staging}, nil
}

// storageKey produces a date-partitioned object key unique per upload.
func storageKey(name string) string {
	d := time.Now()
	name = strings.ReplaceAll(filepath.Base(name), " ", "_")
	return fmt.Sprintf("blobs/%d/%d/%d/%s-%s", d.Year(), d.Month(), d.Day(), uuid.NewString(), name)
}

func (s *S3Store) Store(ctx context.Context, data []byte, name string) (string, error) {
	key := storageKey(name)

	// Staging copy, removed by CleanupTemporary.
	spool := filepath.Join(s.staging, strings.ReplaceAll(key, "/", "_"))
	if err := os.WriteFile(spool, data, 0o600); err != nil {
		return "", fmt.Errorf("staging blob: %w", err)
	}

	_, err := s.api.PutObject(ctx, &s3.PutObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
		Body:   bytes.NewReader(data),
	})
	if err != nil {
		return "", fmt.Errorf("uploading blob %s: %w", key, err)
	}

	return key, nil
}

func (s *S3Store) Load(ctx context.Context, handle string) ([]byte, error) {
	out, err := s.api.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(handle),
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", common.ErrBlobUnavailable, handle, err)
	}
	defer out.Body.Close()

	data, err := io.ReadAll(out.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: reading %s: %v", common.ErrBlobUnavailable, handle, err)
	}
	return data, nil
}

func (s *S3Store) CleanupTemporary(context.Context) error {
	return filex.RemoveContents(s.staging)
}
