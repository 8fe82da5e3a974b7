//go:build e2e

package e2e

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"os"
	"os/exec"
	"path/filepath"
	"testing"
	"time"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	_ "github.com/lib/pq"
	"github.com/shopdesk/apiserver/config"
	"github.com/shopdesk/apiserver/internal/db"
	"github.com/shopdesk/apiserver/internal/server"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const (
	serverPort = 18080
)

var baseURL = fmt.Sprintf("http://localhost:%d", serverPort)

func TestMain(m *testing.M) {
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Minute)
	defer cancel()

	root, err := repoRoot()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to locate repo root: %v\n", err)
		os.Exit(1)
	}

	setTestEnv()

	if err := dockerCompose(ctx, root, "up", "-d", "postgres", "minio"); err != nil {
		fmt.Fprintf(os.Stderr, "failed to start docker compose: %v\n", err)
		os.Exit(1)
	}

	if err := waitForPostgres(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "postgres not ready: %v\n", err)
		_ = dockerCompose(context.Background(), root, "down")
		os.Exit(1)
	}

	if err := runMigrations(root); err != nil {
		fmt.Fprintf(os.Stderr, "failed to run migrations: %v\n", err)
		_ = dockerCompose(context.Background(), root, "down")
		os.Exit(1)
	}

	srv, err := startServer(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to start server: %v\n", err)
		_ = dockerCompose(context.Background(), root, "down")
		os.Exit(1)
	}

	shutdown := func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
		_ = dockerCompose(context.Background(), root, "down")
	}

	if err := waitForHealth(ctx, baseURL+"/healthz"); err != nil {
		fmt.Fprintf(os.Stderr, "server not healthy: %v\n", err)
		shutdown()
		os.Exit(1)
	}

	code := m.Run()

	shutdown()
	os.Exit(code)
}

type envelope struct {
	Success bool            `json:"success"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
	Errors  []struct {
		Field   string `json:"field"`
		Message string `json:"message"`
	} `json:"errors"`
}

type authData struct {
	Token string `json:"token"`
	User  struct {
		ID       string `json:"id"`
		Username string `json:"username"`
		Role     string `json:"role"`
	} `json:"user"`
}

func TestAuthFlow(t *testing.T) {
	suffix := time.Now().UnixNano()
	username := fmt.Sprintf("alice%d", suffix%1_000_000)
	email := fmt.Sprintf("alice%d@example.com", suffix)

	status, env := call(t, http.MethodPost, "/auth/register", "", jsonBody(t, map[string]string{
		"username": username, "email": email, "password": "Passw0rd",
	}), "application/json")
	require.Equal(t, http.StatusCreated, status, env.Message)
	var registered authData
	require.NoError(t, json.Unmarshal(env.Data, &registered))
	require.NotEmpty(t, registered.Token)
	assert.Equal(t, "user", registered.User.Role)
	assert.NotContains(t, string(env.Data), "password")

	status, env = call(t, http.MethodPost, "/auth/register", "", jsonBody(t, map[string]string{
		"username": username, "email": email, "password": "Passw0rd",
	}), "application/json")
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "User already exists with this email or username", env.Message)

	status, env = call(t, http.MethodPost, "/auth/login", "", jsonBody(t, map[string]string{
		"email": email, "password": "Wrong1pass",
	}), "application/json")
	assert.Equal(t, http.StatusUnauthorized, status)
	assert.Equal(t, "Invalid credentials", env.Message)

	status, env = call(t, http.MethodGet, "/auth/profile", "", nil, "")
	assert.Equal(t, http.StatusUnauthorized, status)
	assert.Equal(t, "Access denied. No token provided.", env.Message)

	status, env = call(t, http.MethodGet, "/auth/profile", registered.Token, nil, "")
	require.Equal(t, http.StatusOK, status)
	var profile authData
	require.NoError(t, json.Unmarshal(env.Data, &profile))
	assert.Equal(t, registered.User.ID, profile.User.ID)
}

func TestCatalogLifecycle(t *testing.T) {
	suffix := time.Now().UnixNano()
	username := fmt.Sprintf("admin%d", suffix%1_000_000)
	email := fmt.Sprintf("admin%d@example.com", suffix)

	status, env := call(t, http.MethodPost, "/auth/register", "", jsonBody(t, map[string]string{
		"username": username, "email": email, "password": "Passw0rd",
	}), "application/json")
	require.Equal(t, http.StatusCreated, status, env.Message)
	var user authData
	require.NoError(t, json.Unmarshal(env.Data, &user))

	body, contentType := multipartForm(t, map[string]string{"name": fmt.Sprintf("Shoes %d", suffix)}, "image", "banner.png")
	status, env = call(t, http.MethodPost, "/categories", user.Token, body, contentType)
	require.Equal(t, http.StatusForbidden, status)

	require.NoError(t, promoteUserToAdmin(username))

	body, contentType = multipartForm(t, map[string]string{"name": fmt.Sprintf("Shoes %d", suffix)}, "image", "banner.png")
	status, env = call(t, http.MethodPost, "/categories", user.Token, body, contentType)
	require.Equal(t, http.StatusCreated, status, env.Message)
	var created struct {
		Category struct {
			ID    string `json:"id"`
			Image struct {
				URL string `json:"url"`
			} `json:"image"`
		} `json:"category"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &created))
	require.NotEmpty(t, created.Category.Image.URL)
	categoryID := created.Category.ID

	body, contentType = multipartForm(t, map[string]string{
		"name":          "Trail Runner",
		"description":   "Lightweight trail shoe",
		"price":         "120",
		"discountPrice": "90",
		"category":      categoryID,
		"tags":          "running,trail",
	}, "images", "a.png")
	status, env = call(t, http.MethodPost, "/products", user.Token, body, contentType)
	require.Equal(t, http.StatusCreated, status, env.Message)
	var product struct {
		Product struct {
			ID                 string  `json:"id"`
			SKU                string  `json:"sku"`
			EffectivePrice     float64 `json:"effectivePrice"`
			DiscountPercentage int     `json:"discountPercentage"`
		} `json:"product"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &product))
	assert.NotEmpty(t, product.Product.SKU)
	assert.Equal(t, 90.0, product.Product.EffectivePrice)
	assert.Equal(t, 25, product.Product.DiscountPercentage)

	status, env = call(t, http.MethodGet, "/products?category="+categoryID, "", nil, "")
	require.Equal(t, http.StatusOK, status)
	var page struct {
		Items      []json.RawMessage `json:"items"`
		Pagination struct {
			TotalItems int64 `json:"totalItems"`
		} `json:"pagination"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &page))
	assert.Len(t, page.Items, 1)
	assert.Equal(t, int64(1), page.Pagination.TotalItems)

	status, _ = call(t, http.MethodDelete, "/categories/"+categoryID, user.Token, nil, "")
	assert.Equal(t, http.StatusBadRequest, status)

	status, _ = call(t, http.MethodDelete, "/products/"+product.Product.ID, user.Token, nil, "")
	require.Equal(t, http.StatusOK, status)
	status, _ = call(t, http.MethodGet, "/products/"+product.Product.ID, "", nil, "")
	assert.Equal(t, http.StatusNotFound, status)

	status, _ = call(t, http.MethodDelete, "/categories/"+categoryID, user.Token, nil, "")
	assert.Equal(t, http.StatusOK, status)
}

func call(t *testing.T, method, path, token string, body io.Reader, contentType string) (int, envelope) {
	t.Helper()

	req, err := http.NewRequest(method, baseURL+path, body)
	require.NoError(t, err)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	var env envelope
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&env))
	return resp.StatusCode, env
}

func jsonBody(t *testing.T, v any) io.Reader {
	t.Helper()
	data, err := json.Marshal(v)
	require.NoError(t, err)
	return bytes.NewReader(data)
}

func multipartForm(t *testing.T, fields map[string]string, fileField string, files ...string) (io.Reader, string) {
	t.Helper()

	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	for key, value := range fields {
		require.NoError(t, writer.WriteField(key, value))
	}
	for _, name := range files {
		header := textproto.MIMEHeader{}
		header.Set("Content-Disposition", fmt.Sprintf(`form-data; name=%q; filename=%q`, fileField, name))
		header.Set("Content-Type", "image/png")
		part, err := writer.CreatePart(header)
		require.NoError(t, err)
		_, err = part.Write([]byte("\x89PNG\r\n\x1a\n"))
		require.NoError(t, err)
	}
	require.NoError(t, writer.Close())
	return &body, writer.FormDataContentType()
}

func promoteUserToAdmin(username string) error {
	cfg := config.LoadConfig()
	conn, err := sql.Open("postgres", db.PostgresURL(cfg.Database))
	if err != nil {
		return err
	}
	defer conn.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	_, err = conn.ExecContext(ctx, "UPDATE users SET role = 'admin', updated_at = NOW() WHERE username = $1", username)
	return err
}

func setTestEnv() {
	_ = os.Setenv("JWT_SECRET", "test-secret")
	_ = os.Setenv("BCRYPT_COST", "4")
	_ = os.Setenv("SERVER_PORT", fmt.Sprintf("%d", serverPort))
	_ = os.Setenv("DB_DRIVER", config.DriverPostgres)
	_ = os.Setenv("DB_HOST", "localhost")
	_ = os.Setenv("DB_PORT", "5432")
	_ = os.Setenv("DB_USER", "shopdesk")
	_ = os.Setenv("DB_PASSWORD", "shopdesk")
	_ = os.Setenv("DB_NAME", "shopdesk")
	_ = os.Setenv("DB_USE_SSL", "false")
	_ = os.Setenv("STORAGE_BACKEND", config.StorageMinio)
	_ = os.Setenv("MINIO_ACCESS_KEY", "minioadmin")
	_ = os.Setenv("MINIO_SECRET_KEY", "minioadmin")
	_ = os.Setenv("MINIO_BUCKET", "shopdesk-e2e")
	_ = os.Setenv("MQ_BACKEND", config.MQNone)
}

func waitForPostgres(ctx context.Context) error {
	cfg := config.LoadConfig()
	conn, err := sql.Open("postgres", db.PostgresURL(cfg.Database))
	if err != nil {
		return err
	}
	defer conn.Close()

	ticker := time.NewTicker(1 * time.Second)
	defer ticker.Stop()

	for {
		pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
		err := conn.PingContext(pingCtx)
		cancel()
		if err == nil {
			return nil
		}
		select {
		case <-ctx.Done():
			return fmt.Errorf("postgres ping timeout: %w", err)
		case <-ticker.C:
		}
	}
}

func waitForHealth(ctx context.Context, url string) error {
	client := &http.Client{Timeout: 2 * time.Second}
	ticker := time.NewTicker(500 * time.Millisecond)
	defer ticker.Stop()

	for {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return err
		}
		resp, err := client.Do(req)
		if err == nil {
			_ = resp.Body.Close()
			if resp.StatusCode == http.StatusOK {
				return nil
			}
		}
		select {
		case <-ctx.Done():
			if err != nil {
				return fmt.Errorf("health check failed: %w", err)
			}
			return fmt.Errorf("health check failed with status")
		case <-ticker.C:
		}
	}
}

func runMigrations(root string) error {
	cfg := config.LoadConfig()
	migrationsURL := "file://" + filepath.Join(root, "internal", "db", "migrations")

	migrator, err := migrate.New(migrationsURL, db.PostgresURL(cfg.Database))
	if err != nil {
		return err
	}
	defer func() {
		_, _ = migrator.Close()
	}()

	if err := migrator.Up(); err != nil && err != migrate.ErrNoChange {
		return err
	}
	return nil
}

func startServer(ctx context.Context) (*server.Server, error) {
	cfg := config.LoadConfig()
	app, err := server.NewApp(ctx, cfg, zap.NewNop())
	if err != nil {
		return nil, err
	}
	srv := server.New(app)

	go func() {
		_ = srv.Start()
	}()

	return srv, nil
}

func dockerCompose(ctx context.Context, root string, args ...string) error {
	composeFile := filepath.Join(root, "development", "docker-compose.yml")
	baseArgs := append([]string{"compose", "-f", composeFile}, args...)
	cmd := exec.CommandContext(ctx, "docker", baseArgs...)
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	return cmd.Run()
}

func repoRoot() (string, error) {
	dir, err := os.Getwd()
	if err != nil {
		return "", err
	}

	for {
		if _, err := os.Stat(filepath.Join(dir, "go.mod")); err == nil {
			return dir, nil
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return "", fmt.Errorf("go.mod not found")
		}
		dir = parent
	}
}
