package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/shopdesk/apiserver/internal/handlers"
	"github.com/shopdesk/apiserver/internal/logging"
	"go.uber.org/zap"
)

// Server wraps the HTTP server and router.
type Server struct {
	httpServer *http.Server
	router     *chi.Mux
	app        *App
	logger     *zap.Logger
}

// New constructs a Server on top of app. The server owns app and closes it
// on Shutdown.
func New(app *App) *Server {
	router := NewRouter(app)

	port := app.Config.ServerPort
	if port == 0 {
		port = 8080
	}

	httpServer := &http.Server{
		Addr:         fmt.Sprintf(":%d", port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return &Server{
		httpServer: httpServer,
		router:     router,
		app:        app,
		logger:     app.Logger,
	}
}

// NewRouter mounts every route group on a fresh chi router.
func NewRouter(app *App) *chi.Mux {
	logger := app.Logger
	authMiddleware := handlers.Authenticate(app.Codec, app.Repos.Users, logger)
	maxFileSize := app.MediaSvc.MaxFileSize()

	router := chi.NewRouter()
	router.Use(
		middleware.RequestID,
		middleware.RealIP,
		middleware.Recoverer,
		logging.RequestLogger(logger),
		middleware.Timeout(60*time.Second),
	)
	router.Get("/healthz", handlers.Healthz)
	router.Route("/auth", func(r chi.Router) {
		handlers.AuthRouter(r, app.Accounts, authMiddleware, logger)
	})
	router.Route("/categories", func(r chi.Router) {
		handlers.CategoryRouter(r, app.Categories, maxFileSize, authMiddleware, logger)
	})
	router.Route("/products", func(r chi.Router) {
		handlers.ProductRouter(r, app.Products, maxFileSize, authMiddleware, logger)
	})
	return router
}

// Router exposes the chi router for route registration.
func (s *Server) Router() *chi.Mux {
	return s.router
}

// Addr reports the listen address.
func (s *Server) Addr() string {
	return s.httpServer.Addr
}

// Start runs the HTTP server until Shutdown is called.
func (s *Server) Start() error {
	s.logger.Info("http server listening", zap.String("addr", s.httpServer.Addr))
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown drains in-flight requests and then releases the backends.
func (s *Server) Shutdown(ctx context.Context) error {
	err := s.httpServer.Shutdown(ctx)
	return errors.Join(err, s.app.Close())
}
