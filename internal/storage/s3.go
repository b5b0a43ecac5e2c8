// Package storage uploads user files (avatars, license documents) to an
// S3-compatible bucket. Path-style addressing is used whenever a custom
// endpoint is configured so Supabase Storage and MinIO work unchanged.
package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/url"
	"path"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/tbourn/go-realty-backend/internal/config"
)

// ErrInvalidKey is returned for empty or path-escaping object keys.
var ErrInvalidKey = errors.New("storage: invalid object key")

// S3Store puts objects into one bucket and builds their public URLs.
type S3Store struct {
	client    *s3.Client
	bucket    string
	publicURL string
}

// New builds an S3Store from configuration. Static credentials are used when
// both keys are set; otherwise the default AWS credential chain applies.
func New(ctx context.Context, cfg config.StorageConfig) (*S3Store, error) {
	if !cfg.Enabled() {
		return nil, errors.New("storage: bucket not configured")
	}
	loadOpts := []func(*awsconfig.LoadOptions) error{awsconfig.WithRegion(cfg.Region)}
	if cfg.AccessKeyID != "" && cfg.SecretAccessKey != "" {
		loadOpts = append(loadOpts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("storage: load aws config: %w", err)
	}

	endpoint := strings.TrimRight(cfg.Endpoint, "/")
	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if endpoint != "" {
			o.BaseEndpoint = aws.String(endpoint)
			o.UsePathStyle = true
		}
	})

	public := cfg.PublicURL
	switch {
	case public != "":
	case endpoint != "":
		public = endpoint + "/" + cfg.Bucket
	default:
		public = fmt.Sprintf("https://%s.s3.%s.amazonaws.com", cfg.Bucket, cfg.Region)
	}
	return &S3Store{client: client, bucket: cfg.Bucket, publicURL: strings.TrimRight(public, "/")}, nil
}

// Upload stores data under key and returns its public URL.
func (s *S3Store) Upload(ctx context.Context, key, contentType string, data []byte) (string, error) {
	key, err := cleanKey(key)
	if err != nil {
		return "", err
	}
	_, err = s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(data),
		ContentType: aws.String(contentType),
	})
	if err != nil {
		return "", fmt.Errorf("storage: put %s: %w", key, err)
	}
	return s.URL(key), nil
}

// URL returns the public URL of key.
func (s *S3Store) URL(key string) string {
	parts := strings.Split(key, "/")
	for i, p := range parts {
		parts[i] = url.PathEscape(p)
	}
	return s.publicURL + "/" + strings.Join(parts, "/")
}

func cleanKey(key string) (string, error) {
	key = strings.TrimSpace(key)
	if key == "" || strings.Contains(key, "..") || strings.Contains(key, `\`) {
		return "", ErrInvalidKey
	}
	key = strings.TrimPrefix(path.Clean("/"+key), "/")
	if key == "" {
		return "", ErrInvalidKey
	}
	return key, nil
}
