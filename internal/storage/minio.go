package storage

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"strings"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/shopdesk/apiserver/config"
)

// cacheControl is attached to every uploaded image; keys are never reused.
const cacheControl = "public, max-age=31536000, immutable"

// MinioClient stores images in a MinIO bucket that serves them publicly.
type MinioClient struct {
	client *minio.Client
	bucket string
}

// NewMinioClient constructs a MinIO client from config.
func NewMinioClient(cfg config.MinioConfig) (*MinioClient, error) {
	if strings.TrimSpace(cfg.Endpoint) == "" {
		return nil, errors.New("minio endpoint is required")
	}
	if strings.TrimSpace(cfg.AccessKey) == "" || strings.TrimSpace(cfg.SecretKey) == "" {
		return nil, errors.New("minio access key and secret key are required")
	}
	if strings.TrimSpace(cfg.Bucket) == "" {
		return nil, errors.New("minio bucket is required")
	}

	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, err
	}

	return &MinioClient{
		client: client,
		bucket: cfg.Bucket,
	}, nil
}

// EnsureBucket creates the bucket when missing and opens it for anonymous reads,
// since product and category images are served straight from it.
func (m *MinioClient) EnsureBucket(ctx context.Context) error {
	exists, err := m.client.BucketExists(ctx, m.bucket)
	if err != nil {
		return err
	}
	if !exists {
		if err := m.client.MakeBucket(ctx, m.bucket, minio.MakeBucketOptions{}); err != nil {
			return err
		}
	}
	policy, err := publicReadPolicy(m.bucket)
	if err != nil {
		return err
	}
	return m.client.SetBucketPolicy(ctx, m.bucket, policy)
}

func (m *MinioClient) Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) error {
	_, err := m.client.PutObject(ctx, m.bucket, key, r, size, putOptions(contentType))
	return err
}

func (m *MinioClient) Delete(ctx context.Context, key string) error {
	return m.client.RemoveObject(ctx, m.bucket, key, minio.RemoveObjectOptions{})
}

func (m *MinioClient) Bucket() string {
	return m.bucket
}

// Close is a no-op; the MinIO client holds no long-lived connection.
func (m *MinioClient) Close() error {
	return nil
}

func putOptions(contentType string) minio.PutObjectOptions {
	if strings.TrimSpace(contentType) == "" {
		contentType = "application/octet-stream"
	}
	return minio.PutObjectOptions{
		ContentType:  contentType,
		CacheControl: cacheControl,
	}
}

type bucketPolicy struct {
	Version   string            `json:"Version"`
	Statement []policyStatement `json:"Statement"`
}

type policyStatement struct {
	Effect    string              `json:"Effect"`
	Principal map[string][]string `json:"Principal"`
	Action    []string            `json:"Action"`
	Resource  []string            `json:"Resource"`
}

// publicReadPolicy grants anonymous GetObject on every key in bucket.
func publicReadPolicy(bucket string) (string, error) {
	data, err := json.Marshal(bucketPolicy{
		Version: "2012-10-17",
		Statement: []policyStatement{{
			Effect:    "Allow",
			Principal: map[string][]string{"AWS": {"*"}},
			Action:    []string{"s3:GetObject"},
			Resource:  []string{"arn:aws:s3:::" + bucket + "/*"},
		}},
	})
	if err != nil {
		return "", err
	}
	return string(data), nil
}
