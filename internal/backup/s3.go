// Package backup implements cfg.req.backup: uploading the running
// configuration/readout database to an S3-compatible
// object store so a gateway can be restored from object storage after
// a failure.
package backup

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// Config names the S3-compatible bucket backups are uploaded to,
// grounded directly on pkg/archive/parquet.S3TargetConfig's field set.
type Config struct {
	Endpoint     string
	Bucket       string
	AccessKey    string
	SecretKey    string
	Region       string
	UsePathStyle bool
}

// Target uploads backup blobs to one S3 bucket.
type Target struct {
	client *s3.Client
	bucket string
}

// NewTarget builds an S3 client for cfg.
func NewTarget(cfg Config) (*Target, error) {
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("backup: empty bucket name")
	}
	region := cfg.Region
	if region == "" {
		region = "us-east-1"
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(context.Background(),
		awsconfig.WithRegion(region),
		awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, ""),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("backup: load AWS config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
		o.UsePathStyle = cfg.UsePathStyle
	})
	return &Target{client: client, bucket: cfg.Bucket}, nil
}

// UploadFile reads path from disk and uploads it under the same base
// name, timestamped, so successive backups don't overwrite one
// another.
func (t *Target) UploadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("backup: read %s: %w", path, err)
	}
	key := fmt.Sprintf("%s-%s", time.Now().UTC().Format("20060102T150405"), filepath.Base(path))
	_, err = t.client.PutObject(context.Background(), &s3.PutObjectInput{
		Bucket:      aws.String(t.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(data),
		ContentType: aws.String("application/octet-stream"),
	})
	if err != nil {
		return fmt.Errorf("backup: put object %q: %w", key, err)
	}
	return nil
}
