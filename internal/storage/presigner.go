// Package storage resolves object-store audio locations into URLs the
// remote transcription function can fetch.
package storage

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/rs/zerolog/log"
)

var (
	ErrStorageDisabled = errors.New("object storage is not configured")
	ErrInvalidLocation = errors.New("invalid object location")
)

// Config holds the S3-compatible endpoint used for presigning.
type Config struct {
	Endpoint      string
	AccessKey     string
	SecretKey     string
	Region        string
	UseSSL        bool
	PresignExpiry time.Duration
}

// objectPresigner is the part of *minio.Client the presigner uses.
type objectPresigner interface {
	PresignedGetObject(ctx context.Context, bucketName, objectName string, expires time.Duration, reqParams url.Values) (*url.URL, error)
}

// Presigner turns s3://bucket/key locations into presigned HTTPS GET URLs.
// Any other location is returned unchanged.
type Presigner struct {
	client objectPresigner
	expiry time.Duration
}

// New creates a presigner. Without an endpoint the presigner only passes
// locations through and rejects s3:// ones.
func New(cfg Config) (*Presigner, error) {
	expiry := cfg.PresignExpiry
	if expiry <= 0 {
		expiry = time.Hour
	}

	if cfg.Endpoint == "" {
		log.Info().Msg("Object storage not configured, s3:// audio locations will be rejected")
		return &Presigner{expiry: expiry}, nil
	}

	region := cfg.Region
	if region == "" {
		region = "us-east-1"
	}

	// A fixed region keeps presigning offline; otherwise minio looks up the
	// bucket location first.
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
		Region: region,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create MinIO client: %w", err)
	}

	log.Info().
		Str("endpoint", cfg.Endpoint).
		Bool("ssl", cfg.UseSSL).
		Dur("expiry", expiry).
		Msg("Object storage presigner initialized")

	return &Presigner{client: client, expiry: expiry}, nil
}

// Resolve returns a fetchable URL for location.
func (p *Presigner) Resolve(ctx context.Context, location string) (string, error) {
	u, err := url.Parse(location)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidLocation, err)
	}
	if u.Scheme != "s3" {
		return location, nil
	}

	bucket := u.Host
	key := strings.TrimPrefix(u.Path, "/")
	if bucket == "" || key == "" {
		return "", fmt.Errorf("%w: %s", ErrInvalidLocation, location)
	}
	if p.client == nil {
		return "", ErrStorageDisabled
	}

	signed, err := p.client.PresignedGetObject(ctx, bucket, key, p.expiry, nil)
	if err != nil {
		return "", fmt.Errorf("presign %s: %w", location, err)
	}
	return signed.String(), nil
}
