package server

import (
	"context"
	"errors"
	"fmt"

	"github.com/shopdesk/apiserver/config"
	"github.com/shopdesk/apiserver/internal/auth"
	"github.com/shopdesk/apiserver/internal/db"
	"github.com/shopdesk/apiserver/internal/mq"
	"github.com/shopdesk/apiserver/internal/services"
	"github.com/shopdesk/apiserver/internal/storage"
	"github.com/shopdesk/apiserver/internal/store"
	"github.com/shopdesk/apiserver/internal/store/memstore"
	"github.com/shopdesk/apiserver/internal/store/mongostore"
	"go.uber.org/zap"
)

// Repositories groups the persistence ports of one database backend.
type Repositories struct {
	Users      services.UserRepository
	Categories services.CategoryRepository
	Products   services.ProductRepository
}

// App holds the long-lived dependencies shared by the HTTP server, the
// worker and the admin commands.
type App struct {
	Config config.Config
	Logger *zap.Logger
	Codec  *auth.Codec
	Repos  Repositories
	Media  *storage.Storage
	Queue  *mq.MQ

	Events     *services.EventPublisher
	MediaSvc   *services.MediaService
	Accounts   *services.AccountService
	Categories *services.CategoryService
	Products   *services.ProductService

	closers []func() error
}

// NewApp validates cfg and connects every configured backend. On error any
// connection already opened is closed.
func NewApp(ctx context.Context, cfg config.Config, logger *zap.Logger) (_ *App, err error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	app := &App{Config: cfg, Logger: logger}
	defer func() {
		if err != nil {
			_ = app.Close()
		}
	}()

	lifetime, err := auth.ParseLifetime(cfg.Auth.TokenLifetime)
	if err != nil {
		return nil, err
	}
	app.Codec, err = auth.NewCodec(auth.CodecConfig{
		Secret:   cfg.Auth.JWTSecret,
		Lifetime: lifetime,
		Issuer:   cfg.Auth.Issuer,
		Audience: cfg.Auth.Audience,
	})
	if err != nil {
		return nil, err
	}

	if app.Repos, err = app.openRepositories(ctx); err != nil {
		return nil, err
	}
	if app.Media, err = app.openStorage(ctx); err != nil {
		return nil, err
	}

	app.Queue, err = mq.Open(ctx, cfg.MQ)
	if err != nil {
		return nil, err
	}
	var publisher services.Publisher
	if app.Queue != nil {
		publisher = app.Queue
		app.closers = append(app.closers, app.Queue.Close)
	}
	logger.Info("backends ready",
		zap.String("db_driver", cfg.Database.Driver),
		zap.String("storage_backend", cfg.Storage.Backend),
		zap.String("mq_backend", cfg.MQ.Backend),
	)

	app.Events = services.NewEventPublisher(publisher, cfg.MQ.CatalogChannel, cfg.MQ.MediaCleanupChannel, logger)
	app.MediaSvc = services.NewMediaService(app.Media, app.Events, cfg.Storage.MaxFileSize, logger)
	app.Accounts = services.NewAccountService(app.Repos.Users, app.Codec, cfg.Auth.BcryptCost, logger)
	app.Categories = services.NewCategoryService(app.Repos.Categories, app.Repos.Products, app.MediaSvc, app.Events)
	app.Products = services.NewProductService(app.Repos.Products, app.Categories, app.MediaSvc, app.Events)

	return app, nil
}

func (a *App) openRepositories(ctx context.Context) (Repositories, error) {
	cfg := a.Config.Database
	switch cfg.Driver {
	case config.DriverPostgres:
		conn, err := db.Open(ctx, cfg)
		if err != nil {
			return Repositories{}, err
		}
		a.closers = append(a.closers, conn.Close)
		return Repositories{
			Users:      store.NewUserRepository(conn),
			Categories: store.NewCategoryRepository(conn),
			Products:   store.NewProductRepository(conn),
		}, nil
	case config.DriverMongo:
		client, err := mongostore.Connect(ctx, cfg.MongoURI)
		if err != nil {
			return Repositories{}, fmt.Errorf("connect mongodb: %w", err)
		}
		a.closers = append(a.closers, func() error {
			return client.Disconnect(context.Background())
		})
		database := client.Database(cfg.MongoDatabase)
		if err := mongostore.EnsureIndexes(ctx, database); err != nil {
			return Repositories{}, fmt.Errorf("ensure mongodb indexes: %w", err)
		}
		return Repositories{
			Users:      mongostore.NewUserRepository(database),
			Categories: mongostore.NewCategoryRepository(database),
			Products:   mongostore.NewProductRepository(database),
		}, nil
	case config.DriverMemory:
		a.Logger.Warn("using in-memory store, data is lost on restart")
		mem := memstore.New()
		return Repositories{
			Users:      mem.Users(),
			Categories: mem.Categories(),
			Products:   mem.Products(),
		}, nil
	default:
		return Repositories{}, fmt.Errorf("unknown database driver %q", cfg.Driver)
	}
}

func (a *App) openStorage(ctx context.Context) (*storage.Storage, error) {
	cfg := a.Config.Storage
	var backend storage.ObjectStorage
	switch cfg.Backend {
	case config.StorageMinio:
		client, err := storage.NewMinioClient(cfg.Minio)
		if err != nil {
			return nil, fmt.Errorf("connect minio: %w", err)
		}
		backend = client
	case config.StorageGCS:
		client, err := storage.NewGCSClient(ctx, cfg.GCS)
		if err != nil {
			return nil, fmt.Errorf("connect gcs: %w", err)
		}
		backend = client
	case config.StorageS3:
		client, err := storage.NewS3Client(ctx, cfg.S3)
		if err != nil {
			return nil, fmt.Errorf("connect s3: %w", err)
		}
		backend = client
	case config.StorageNone:
		a.Logger.Info("media storage disabled, image uploads will be rejected")
		return storage.NewStorage(nil, cfg.PublicBaseURL), nil
	default:
		return nil, fmt.Errorf("unknown storage backend %q", cfg.Backend)
	}

	media := storage.NewStorage(backend, cfg.PublicBaseURL)
	a.closers = append(a.closers, media.Close)
	if err := media.EnsureBucket(ctx); err != nil {
		return nil, fmt.Errorf("ensure bucket %s: %w", media.Bucket(), err)
	}
	return media, nil
}

// Close releases every backend in reverse order of acquisition.
func (a *App) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}
