// Package storage implements the Object Store Adapter (spec §4.A): a
// multi-bucket, S3-compatible client generalized from the teacher's
// single-bucket Cloudflare R2 client to a MinIO-style endpoint covering
// the fixed bucket set raw/processed/thumbnails/temp/encrypted.
package storage

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"fileforge/internal/config"
)

// Bucket names the fixed bucket set every deployment must provision.
type Bucket string

const (
	BucketRaw        Bucket = "raw"
	BucketProcessed  Bucket = "processed"
	BucketThumbnails Bucket = "thumbnails"
	BucketTemp       Bucket = "temp"
	BucketEncrypted  Bucket = "encrypted"
)

// AllBuckets lists every bucket EnsureBuckets must provision.
var AllBuckets = []Bucket{BucketRaw, BucketProcessed, BucketThumbnails, BucketTemp, BucketEncrypted}

// Store wraps an S3-compatible client configured for a MinIO endpoint
// with path-style addressing.
type Store struct {
	client       *s3.Client
	publicPrefix string
}

// New creates a Store from resolved configuration.
func New(cfg *config.Config) (*Store, error) {
	if cfg.MinioEndpoint == "" || cfg.MinioAccessKey == "" || cfg.MinioSecretKey == "" {
		return nil, fmt.Errorf("storage: missing MinIO configuration")
	}

	scheme := "http"
	if cfg.MinioSecure {
		scheme = "https"
	}
	endpoint := fmt.Sprintf("%s://%s", scheme, cfg.MinioEndpoint)

	client := s3.New(s3.Options{
		Region:       cfg.S3Region,
		BaseEndpoint: aws.String(endpoint),
		Credentials:  credentials.NewStaticCredentialsProvider(cfg.MinioAccessKey, cfg.MinioSecretKey, ""),
		UsePathStyle: true,
	})

	return &Store{client: client}, nil
}

// EnsureBuckets creates any bucket in AllBuckets that doesn't already
// exist. Safe to call on every process start; BucketAlreadyOwnedByYou
// and BucketAlreadyExists are treated as success.
func (s *Store) EnsureBuckets(ctx context.Context) error {
	for _, b := range AllBuckets {
		_, err := s.client.CreateBucket(ctx, &s3.CreateBucketInput{
			Bucket: aws.String(string(b)),
		})
		if err != nil && !isBucketOwnedErr(err) {
			return fmt.Errorf("storage: create bucket %s: %w", b, err)
		}
	}
	return nil
}

func isBucketOwnedErr(err error) bool {
	msg := err.Error()
	return strings.Contains(msg, "BucketAlreadyOwnedByYou") || strings.Contains(msg, "BucketAlreadyExists")
}

// Put uploads data to bucket/key.
func (s *Store) Put(ctx context.Context, bucket Bucket, key string, data []byte, contentType string) error {
	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(string(bucket)),
		Key:         aws.String(key),
		Body:        bytes.NewReader(data),
		ContentType: aws.String(contentType),
	})
	if err != nil {
		return fmt.Errorf("storage: put %s/%s: %w", bucket, key, err)
	}
	return nil
}

// PutStream uploads from a reader without buffering the whole body,
// for large raw uploads.
func (s *Store) PutStream(ctx context.Context, bucket Bucket, key string, r io.Reader, size int64, contentType string) error {
	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(string(bucket)),
		Key:           aws.String(key),
		Body:          r,
		ContentLength: aws.Int64(size),
		ContentType:   aws.String(contentType),
	})
	if err != nil {
		return fmt.Errorf("storage: put stream %s/%s: %w", bucket, key, err)
	}
	return nil
}

// Get retrieves an object fully into memory.
func (s *Store) Get(ctx context.Context, bucket Bucket, key string) ([]byte, error) {
	result, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(string(bucket)),
		Key:    aws.String(key),
	})
	if err != nil {
		return nil, fmt.Errorf("storage: get %s/%s: %w", bucket, key, err)
	}
	defer result.Body.Close()

	data, err := io.ReadAll(result.Body)
	if err != nil {
		return nil, fmt.Errorf("storage: read body %s/%s: %w", bucket, key, err)
	}
	return data, nil
}

// GetToFile streams an object directly to a local path, used by workers
// downloading a subject file into its per-job temp directory.
func (s *Store) GetToFile(ctx context.Context, bucket Bucket, key, destPath string) error {
	result, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(string(bucket)),
		Key:    aws.String(key),
	})
	if err != nil {
		return fmt.Errorf("storage: get %s/%s: %w", bucket, key, err)
	}
	defer result.Body.Close()

	f, err := os.Create(destPath)
	if err != nil {
		return fmt.Errorf("storage: create %s: %w", destPath, err)
	}
	defer f.Close()

	if _, err := io.Copy(f, result.Body); err != nil {
		return fmt.Errorf("storage: write %s: %w", destPath, err)
	}
	return nil
}

// Delete removes an object. Deleting an absent key is not an error —
// S3-compatible DeleteObject is idempotent by design.
func (s *Store) Delete(ctx context.Context, bucket Bucket, key string) error {
	_, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(string(bucket)),
		Key:    aws.String(key),
	})
	if err != nil {
		return fmt.Errorf("storage: delete %s/%s: %w", bucket, key, err)
	}
	return nil
}

// PresignPut returns a time-limited upload URL.
func (s *Store) PresignPut(ctx context.Context, bucket Bucket, key, contentType string) (string, error) {
	presignClient := s3.NewPresignClient(s.client)
	request, err := presignClient.PresignPutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(string(bucket)),
		Key:         aws.String(key),
		ContentType: aws.String(contentType),
	}, s3.WithPresignExpires(15*time.Minute))
	if err != nil {
		return "", fmt.Errorf("storage: presign put %s/%s: %w", bucket, key, err)
	}
	return rewritePublicURL(request.URL, s.publicPrefix), nil
}

// PresignGet returns a time-limited download URL.
func (s *Store) PresignGet(ctx context.Context, bucket Bucket, key string) (string, error) {
	presignClient := s3.NewPresignClient(s.client)
	request, err := presignClient.PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(string(bucket)),
		Key:    aws.String(key),
	}, s3.WithPresignExpires(15*time.Minute))
	if err != nil {
		return "", fmt.Errorf("storage: presign get %s/%s: %w", bucket, key, err)
	}
	return rewritePublicURL(request.URL, s.publicPrefix), nil
}

// WithPublicPrefix sets a gateway-prefix rewrite applied to presigned
// URLs, mirroring the teacher's GetPublicURL host rewrite.
func (s *Store) WithPublicPrefix(prefix string) *Store {
	s.publicPrefix = prefix
	return s
}

func rewritePublicURL(url, prefix string) string {
	if prefix == "" {
		return url
	}
	_, rest, ok := strings.Cut(url, "://")
	if !ok {
		return url
	}
	slash := strings.Index(rest, "/")
	if slash < 0 {
		return url
	}
	return prefix + rest[slash:]
}
