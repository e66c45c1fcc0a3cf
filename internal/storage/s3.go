// Package storage provides image processing and S3 object storage.
package storage

import (
	"bytes"
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/load28/foodie/internal/config"
)

// S3API is the slice of the S3 client used here, extracted so tests
// can substitute a fake.
type S3API interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	DeleteObject(ctx context.Context, params *s3.DeleteObjectInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
}

// ObjectStore uploads and deletes image objects and renders their
// public URLs.
type ObjectStore struct {
	client    S3API
	presigner *s3.PresignClient
	bucket    string
	region    string
	cdnDomain string
}

// NewObjectStore creates an object store using the default AWS
// credential chain.
func NewObjectStore(ctx context.Context, cfg config.AWSConfig) (*ObjectStore, error) {
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.Region))
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg)
	return &ObjectStore{
		client:    client,
		presigner: s3.NewPresignClient(client),
		bucket:    cfg.S3Bucket,
		region:    cfg.Region,
		cdnDomain: cfg.CloudFrontDomain,
	}, nil
}

// NewObjectStoreWithClient creates an object store over an existing
// client. This is primarily used for testing.
func NewObjectStoreWithClient(client S3API, cfg config.AWSConfig) *ObjectStore {
	return &ObjectStore{
		client:    client,
		bucket:    cfg.S3Bucket,
		region:    cfg.Region,
		cdnDomain: cfg.CloudFrontDomain,
	}
}

// Upload stores an object and returns its public URL.
func (s *ObjectStore) Upload(ctx context.Context, key, contentType string, body []byte) (string, error) {
	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(body),
		ContentType: aws.String(contentType),
	})
	if err != nil {
		return "", fmt.Errorf("failed to upload %s: %w", key, err)
	}
	return s.URLFor(key), nil
}

// Delete removes an object. S3 treats deleting a missing key as
// success, which suits orphan cleanup.
func (s *ObjectStore) Delete(ctx context.Context, key string) error {
	_, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return fmt.Errorf("failed to delete %s: %w", key, err)
	}
	return nil
}

// URLFor renders an object's public URL, preferring the CDN domain
// when configured.
func (s *ObjectStore) URLFor(key string) string {
	if s.cdnDomain != "" {
		return fmt.Sprintf("https://%s/%s", s.cdnDomain, key)
	}
	return fmt.Sprintf("https://%s.s3.%s.amazonaws.com/%s", s.bucket, s.region, key)
}

// PresignGet returns a time-limited direct download URL.
func (s *ObjectStore) PresignGet(ctx context.Context, key string, expires time.Duration) (string, error) {
	if s.presigner == nil {
		return "", fmt.Errorf("presigning not available")
	}
	req, err := s.presigner.PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	}, s3.WithPresignExpires(expires))
	if err != nil {
		return "", fmt.Errorf("failed to presign %s: %w", key, err)
	}
	return req.URL, nil
}
