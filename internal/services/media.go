package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopdesk/apiserver/internal/apperr"
	"github.com/shopdesk/apiserver/internal/mq"
	"github.com/shopdesk/apiserver/internal/storage"
	"github.com/shopdesk/apiserver/types"
	"go.uber.org/zap"
)

// Media folders.
const (
	FolderProducts   = "products"
	FolderCategories = "categories"
)

// DefaultMaxFileSize is the upload limit applied when none is configured.
const DefaultMaxFileSize int64 = 5 << 20

var allowedImageExtensions = map[string]bool{
	"jpg":  true,
	"jpeg": true,
	"png":  true,
	"webp": true,
}

// ObjectStore is the media backend used by MediaService.
type ObjectStore interface {
	Enabled() bool
	Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) error
	Delete(ctx context.Context, key string) error
	PublicURL(key string) string
}

// Upload is a single file received from a client.
type Upload struct {
	Filename    string
	ContentType string
	Size        int64
	Body        io.Reader
}

// MediaService offloads images to the media store.
type MediaService struct {
	store       ObjectStore
	events      *EventPublisher
	maxFileSize int64
	logger      *zap.Logger
	now         func() time.Time
}

func NewMediaService(store ObjectStore, events *EventPublisher, maxFileSize int64, logger *zap.Logger) *MediaService {
	if maxFileSize <= 0 {
		maxFileSize = DefaultMaxFileSize
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &MediaService{
		store:       store,
		events:      events,
		maxFileSize: maxFileSize,
		logger:      logger,
		now:         func() time.Time { return time.Now().UTC() },
	}
}

// MaxFileSize is the largest accepted upload in bytes.
func (s *MediaService) MaxFileSize() int64 {
	return s.maxFileSize
}

// Upload stores one image under folder and returns its reference.
func (s *MediaService) Upload(ctx context.Context, folder string, up Upload) (types.Image, error) {
	if s.store == nil || !s.store.Enabled() {
		return types.Image{}, apperr.New(apperr.KindBadRequest, "Image uploads are disabled")
	}
	ext, err := s.check(up)
	if err != nil {
		return types.Image{}, err
	}

	key := storage.ObjectKey(folder, ext, s.now())
	if err := s.store.Put(ctx, key, up.Body, up.Size, up.ContentType); err != nil {
		return types.Image{}, apperr.Wrap(err, apperr.KindInternal, "Image upload failed")
	}
	return types.Image{
		ID:       uuid.NewString(),
		URL:      s.store.PublicURL(key),
		PublicID: key,
	}, nil
}

// UploadAll stores every upload. On failure the images already stored are removed.
func (s *MediaService) UploadAll(ctx context.Context, folder string, uploads []Upload) ([]types.Image, error) {
	images := make([]types.Image, 0, len(uploads))
	for _, up := range uploads {
		img, err := s.Upload(ctx, folder, up)
		if err != nil {
			s.Delete(ctx, images...)
			return nil, err
		}
		images = append(images, img)
	}
	return images, nil
}

// Delete removes images from the media store. With a message queue attached
// the removal is deferred to the worker. Failures are logged only.
func (s *MediaService) Delete(ctx context.Context, images ...types.Image) {
	keys := make([]string, 0, len(images))
	for _, img := range images {
		if img.PublicID != "" {
			keys = append(keys, img.PublicID)
		}
	}
	if len(keys) == 0 || s.store == nil || !s.store.Enabled() {
		return
	}

	if s.events.Enabled() {
		err := s.events.EnqueueCleanup(ctx, keys)
		if err == nil {
			return
		}
		s.logger.Warn("enqueue media cleanup failed, deleting inline", zap.Error(err))
	}
	if err := s.deleteKeys(ctx, keys); err != nil {
		s.logger.Warn("media cleanup failed", zap.Strings("keys", keys), zap.Error(err))
	}
}

// HandleCleanup processes a deferred cleanup job. A returned error requeues it.
func (s *MediaService) HandleCleanup(ctx context.Context, msg mq.Message) error {
	var job MediaCleanupJob
	if err := msg.Decode(&job); err != nil {
		s.logger.Error("discarding malformed cleanup job", zap.String("message_id", msg.ID), zap.Error(err))
		return nil
	}
	if err := s.deleteKeys(ctx, job.Keys); err != nil {
		s.logger.Warn("cleanup job failed", zap.String("message_id", msg.ID), zap.Error(err))
		return err
	}
	s.logger.Info("cleanup job done", zap.String("message_id", msg.ID), zap.Int("keys", len(job.Keys)))
	return nil
}

func (s *MediaService) deleteKeys(ctx context.Context, keys []string) error {
	var errs []error
	for _, key := range keys {
		if err := s.store.Delete(ctx, key); err != nil {
			errs = append(errs, fmt.Errorf("delete %s: %w", key, err))
		}
	}
	return errors.Join(errs...)
}

func (s *MediaService) check(up Upload) (string, error) {
	ext := strings.TrimPrefix(strings.ToLower(filepath.Ext(up.Filename)), ".")
	if !strings.HasPrefix(strings.ToLower(up.ContentType), "image/") || !allowedImageExtensions[ext] {
		return "", apperr.New(apperr.KindBadRequest, "Only image files are allowed")
	}
	if up.Size > s.maxFileSize {
		return "", apperr.New(apperr.KindBadRequest,
			fmt.Sprintf("File too large. Maximum size is %dMB", s.maxFileSize>>20))
	}
	return ext, nil
}
