package storage

import (
	"context"
	"errors"
	"io"
	"strings"
	"time"

	"cloud.google.com/go/storage"
	"github.com/shopdesk/apiserver/config"
	"google.golang.org/api/option"
)

// GCSClient stores product and category images in a Google Cloud Storage
// bucket.
type GCSClient struct {
	client    *storage.Client
	bucket    string
	projectID string
}

// NewGCSClient constructs a GCS client from config.
func NewGCSClient(ctx context.Context, cfg config.GCSConfig) (*GCSClient, error) {
	if strings.TrimSpace(cfg.Bucket) == "" {
		return nil, errors.New("gcs bucket is required")
	}

	var opts []option.ClientOption
	if strings.TrimSpace(cfg.CredentialsFile) != "" {
		opts = append(opts, option.WithCredentialsFile(cfg.CredentialsFile))
	}

	client, err := storage.NewClient(ctx, opts...)
	if err != nil {
		return nil, err
	}

	return &GCSClient{
		client:    client,
		bucket:    cfg.Bucket,
		projectID: cfg.ProjectID,
	}, nil
}

// EnsureBucket creates the bucket when missing. Public read access on GCS is
// granted through IAM outside of the application.
func (g *GCSClient) EnsureBucket(ctx context.Context) error {
	handle := g.client.Bucket(g.bucket)
	_, err := handle.Attrs(ctx)
	if !errors.Is(err, storage.ErrBucketNotExist) {
		return err
	}
	if strings.TrimSpace(g.projectID) == "" {
		return errors.New("gcs project id is required to create bucket")
	}
	return handle.Create(ctx, g.projectID, imageBucketAttrs())
}

// Put uploads one image. Small images are sent in a single request.
func (g *GCSClient) Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) error {
	writer := g.client.Bucket(g.bucket).Object(key).NewWriter(ctx)
	prepareWriter(writer, size, contentType)
	if _, err := io.Copy(writer, r); err != nil {
		_ = writer.Close()
		return err
	}
	return writer.Close()
}

// Delete removes the object; a missing object is not an error.
func (g *GCSClient) Delete(ctx context.Context, key string) error {
	return ignoreNotExist(g.client.Bucket(g.bucket).Object(key).Delete(ctx))
}

func (g *GCSClient) Bucket() string {
	return g.bucket
}

func (g *GCSClient) Close() error {
	return g.client.Close()
}

// imageBucketAttrs lets browsers fetch images cross-origin from the bucket.
func imageBucketAttrs() *storage.BucketAttrs {
	return &storage.BucketAttrs{
		UniformBucketLevelAccess: storage.UniformBucketLevelAccess{Enabled: true},
		CORS: []storage.CORS{{
			Origins: []string{"*"},
			Methods: []string{"GET", "HEAD"},
			MaxAge:  time.Hour,
		}},
		Labels: map[string]string{"app": "shopdesk-apiserver"},
	}
}

func prepareWriter(w *storage.Writer, size int64, contentType string) {
	w.CacheControl = cacheControl
	if strings.TrimSpace(contentType) != "" {
		w.ContentType = contentType
	}
	if size > 0 && size < int64(w.ChunkSize) {
		w.ChunkSize = 0
	}
}

func ignoreNotExist(err error) error {
	if errors.Is(err, storage.ErrObjectNotExist) {
		return nil
	}
	return err
}
