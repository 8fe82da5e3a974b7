package server

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/shopdesk/apiserver/config"
	"github.com/shopdesk/apiserver/internal/apperr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func memoryConfig() config.Config {
	return config.Config{
		ServerPort: 0,
		Auth: config.AuthConfig{
			JWTSecret:     "server-test-secret",
			TokenLifetime: "1h",
			BcryptCost:    4,
		},
		Database: config.DatabaseConfig{Driver: config.DriverMemory},
		Storage:  config.StorageConfig{Backend: config.StorageNone},
		MQ:       config.MQConfig{Backend: config.MQNone},
	}
}

func TestNewAppMemory(t *testing.T) {
	app, err := NewApp(context.Background(), memoryConfig(), zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = app.Close() })

	assert.Nil(t, app.Queue)
	assert.False(t, app.Events.Enabled())
	assert.False(t, app.Media.Enabled())

	srv := New(app)
	assert.Equal(t, ":8080", srv.Addr())

	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("Content-Type"))

	body := bytes.NewBufferString(`{"username":"alice01","email":"alice@example.com","password":"Passw0rd"}`)
	req := httptest.NewRequest(http.MethodPost, "/auth/register", body)
	req.Header.Set("Content-Type", "application/json")
	rec = httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	rec = httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/auth/profile", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestNewAppRejectsInvalidConfig(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*config.Config)
	}{
		{name: "missing secret", mutate: func(c *config.Config) { c.Auth.JWTSecret = "" }},
		{name: "bad lifetime", mutate: func(c *config.Config) { c.Auth.TokenLifetime = "soon" }},
		{name: "unknown driver", mutate: func(c *config.Config) { c.Database.Driver = "sqlite" }},
		{name: "unknown storage", mutate: func(c *config.Config) { c.Storage.Backend = "ftp" }},
		{name: "unknown mq", mutate: func(c *config.Config) { c.MQ.Backend = "kafka" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := memoryConfig()
			tt.mutate(&cfg)

			app, err := NewApp(context.Background(), cfg, nil)
			require.Error(t, err)
			assert.Nil(t, app)
			assert.True(t, apperr.Is(err, apperr.KindConfiguration))
		})
	}
}

func TestAppCloseRunsClosersInReverse(t *testing.T) {
	var order []int
	app := &App{closers: []func() error{
		func() error { order = append(order, 1); return nil },
		func() error { order = append(order, 2); return assert.AnError },
	}}

	err := app.Close()
	require.ErrorIs(t, err, assert.AnError)
	assert.Equal(t, []int{2, 1}, order)
	assert.NoError(t, app.Close())
}
