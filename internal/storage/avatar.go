// Package storage uploads user media to S3-compatible object storage.
package storage

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

type Options struct {
	Bucket    string
	Region    string
	Endpoint  string // non-empty for MinIO and other S3-compatible servers
	AccessKey string
	SecretKey string
}

type AvatarStore struct {
	client *s3.Client
	opts   Options
}

func NewAvatarStore(ctx context.Context, opts Options) (*AvatarStore, error) {
	loadOpts := []func(*config.LoadOptions) error{config.WithRegion(opts.Region)}
	if opts.AccessKey != "" && opts.SecretKey != "" {
		loadOpts = append(loadOpts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(opts.AccessKey, opts.SecretKey, ""),
		))
	}

	cfg, err := config.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	client := s3.NewFromConfig(cfg, func(o *s3.Options) {
		if opts.Endpoint != "" {
			o.BaseEndpoint = aws.String(opts.Endpoint)
			o.UsePathStyle = true
		}
	})

	log.Info().Str("bucket", opts.Bucket).Str("region", opts.Region).Msg("NewAvatarStore: S3 client ready")
	return &AvatarStore{client: client, opts: opts}, nil
}

// Upload stores an avatar image and returns its public URL.
func (s *AvatarStore) Upload(ctx context.Context, userID string, body []byte, contentType string) (string, error) {
	key := AvatarKey(userID, contentType)
	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.opts.Bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(body),
		ContentType: aws.String(contentType),
	})
	if err != nil {
		return "", fmt.Errorf("failed to upload avatar: %w", err)
	}
	return ObjectURL(s.opts, key), nil
}

// AvatarKey places every upload under a fresh name so caches never serve a stale image.
func AvatarKey(userID, contentType string) string {
	ext := "jpg"
	switch contentType {
	case "image/png":
		ext = "png"
	case "image/webp":
		ext = "webp"
	}
	return fmt.Sprintf("avatars/%s/%s.%s", userID, uuid.NewString(), ext)
}

func ObjectURL(opts Options, key string) string {
	if opts.Endpoint != "" {
		return fmt.Sprintf("%s/%s/%s", strings.TrimRight(opts.Endpoint, "/"), opts.Bucket, key)
	}
	return fmt.Sprintf("https://%s.s3.%s.amazonaws.com/%s", opts.Bucket, opts.Region, key)
}
