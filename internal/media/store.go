// Package media stores template attachments in S3 and hands back the
// public URL that gets saved on the template row.
package media

import (
	"context"
	"fmt"
	"io"
	"path"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/google/uuid"
)

// S3API is the slice of the S3 client the store uses.
type S3API interface {
	PutObject(ctx context.Context, in *s3.PutObjectInput, opts ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// Store uploads media objects to one bucket under a per-owner prefix.
type Store struct {
	client  S3API
	bucket  string
	region  string
	baseURL string // CDN or bucket website origin; empty means the S3 URL
}

// New creates a store on an existing client. baseURL overrides the public
// origin, e.g. a CloudFront distribution in front of the bucket.
func New(client S3API, bucket, region, baseURL string) *Store {
	return &Store{client: client, bucket: bucket, region: region, baseURL: strings.TrimSuffix(baseURL, "/")}
}

// NewFromEnv builds an S3 client from the default AWS config chain, with
// optional static credentials for gateway deployments without a profile.
func NewFromEnv(ctx context.Context, bucket, region, accessKey, secretKey, baseURL string) (*Store, error) {
	opts := []func(*config.LoadOptions) error{config.WithRegion(region)}
	if accessKey != "" && secretKey != "" {
		opts = append(opts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(accessKey, secretKey, "")))
	}
	cfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("loading AWS config: %w", err)
	}
	return New(s3.NewFromConfig(cfg), bucket, region, baseURL), nil
}

// Upload stores one attachment and returns its public URL. The key embeds
// a fresh id so re-uploads never collide with a URL already referenced by
// queued jobs.
func (s *Store) Upload(ctx context.Context, owner, filename, contentType string, body io.Reader) (string, error) {
	ext := path.Ext(filename)
	key := fmt.Sprintf("media/%s/%s%s%s",
		owner, time.Now().UTC().Format("20060102"), "-"+uuid.New().String(), ext)

	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key),
		Body:        body,
		ContentType: aws.String(contentType),
	})
	if err != nil {
		return "", fmt.Errorf("upload media: %w", err)
	}
	return s.PublicURL(key), nil
}

// PublicURL returns the public origin URL for a stored key.
func (s *Store) PublicURL(key string) string {
	if s.baseURL != "" {
		return s.baseURL + "/" + key
	}
	return fmt.Sprintf("https://%s.s3.%s.amazonaws.com/%s", s.bucket, s.region, key)
}
