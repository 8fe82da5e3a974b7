package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopdesk/apiserver/internal/apperr"
	"github.com/shopdesk/apiserver/internal/auth"
	"github.com/shopdesk/apiserver/internal/services"
	"github.com/shopdesk/apiserver/internal/store/memstore"
	"github.com/shopdesk/apiserver/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

const testSecret = "handler-test-secret"

type memoryObjects struct {
	objects map[string][]byte
}

func (m *memoryObjects) Enabled() bool { return true }

func (m *memoryObjects) Put(_ context.Context, key string, r io.Reader, _ int64, _ string) error {
	data, err := io.ReadAll(r)
	if err != nil {
		return err
	}
	m.objects[key] = data
	return nil
}

func (m *memoryObjects) Delete(_ context.Context, key string) error {
	delete(m.objects, key)
	return nil
}

func (m *memoryObjects) PublicURL(key string) string { return "https://cdn.example.com/" + key }

type testAPI struct {
	router   http.Handler
	codec    *auth.Codec
	accounts *services.AccountService
	objects  *memoryObjects
}

func newTestAPI(t *testing.T) testAPI {
	t.Helper()
	codec, err := auth.NewCodec(auth.CodecConfig{Secret: testSecret})
	require.NoError(t, err)

	db := memstore.New()
	logger := zap.NewNop()
	objects := &memoryObjects{objects: map[string][]byte{}}
	accounts := services.NewAccountService(db.Users(), codec, bcrypt.MinCost, logger)
	media := services.NewMediaService(objects, nil, 0, logger)
	categories := services.NewCategoryService(db.Categories(), db.Products(), media, nil)
	products := services.NewProductService(db.Products(), categories, media, nil)
	authenticate := Authenticate(codec, db.Users(), logger)

	router := chi.NewRouter()
	router.Get("/healthz", Healthz)
	router.Route("/auth", func(r chi.Router) {
		AuthRouter(r, accounts, authenticate, logger)
	})
	router.Route("/categories", func(r chi.Router) {
		CategoryRouter(r, categories, 0, authenticate, logger)
	})
	router.Route("/products", func(r chi.Router) {
		ProductRouter(r, products, 0, authenticate, logger)
	})

	return testAPI{router: router, codec: codec, accounts: accounts, objects: objects}
}

func (a testAPI) do(t *testing.T, method, path, token string, body io.Reader, contentType string) (*httptest.ResponseRecorder, Envelope) {
	t.Helper()
	req := httptest.NewRequest(method, path, body)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	a.router.ServeHTTP(rec, req)

	var env Envelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env), rec.Body.String())
	return rec, env
}

func (a testAPI) doJSON(t *testing.T, method, path, token string, body any) (*httptest.ResponseRecorder, Envelope) {
	t.Helper()
	data, err := json.Marshal(body)
	require.NoError(t, err)
	return a.do(t, method, path, token, bytes.NewReader(data), "application/json")
}

func (a testAPI) register(t *testing.T, username, email string, role types.Role) services.AuthResult {
	t.Helper()
	result, err := a.accounts.Register(context.Background(), types.RegisterInput{
		Username: username, Email: email, Password: "Passw0rd", Role: role,
	})
	require.NoError(t, err)
	return result
}

func dataOf(t *testing.T, env Envelope) map[string]any {
	t.Helper()
	data, ok := env.Data.(map[string]any)
	require.True(t, ok, "data is %T", env.Data)
	return data
}

func TestAuthScenario(t *testing.T) {
	api := newTestAPI(t)

	rec, env := api.doJSON(t, http.MethodPost, "/auth/register", "", map[string]string{
		"username": "alice01",
		"email":    "alice@example.com",
		"password": "Passw0rd",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.True(t, env.Success)
	data := dataOf(t, env)
	token, _ := data["token"].(string)
	require.NotEmpty(t, token)
	user := data["user"].(map[string]any)
	assert.Equal(t, "alice01", user["username"])
	assert.NotContains(t, user, "password")
	assert.NotContains(t, user, "passwordHash")
	assert.NotContains(t, rec.Body.String(), "$2a$")

	rec, env = api.doJSON(t, http.MethodPost, "/auth/login", "", map[string]string{
		"email": "alice@example.com", "password": "Wrong1pass",
	})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.False(t, env.Success)
	assert.Equal(t, "Invalid credentials", env.Message)

	rec, env = api.do(t, http.MethodGet, "/auth/profile", "", nil, "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "Access denied. No token provided.", env.Message)

	expired, err := api.codec.WithClock(func() time.Time {
		return time.Now().Add(-31 * 24 * time.Hour)
	}).Issue(user["id"].(string), "alice@example.com", types.RoleUser)
	require.NoError(t, err)
	rec, env = api.do(t, http.MethodGet, "/auth/profile", expired, nil, "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "Token has expired.", env.Message)

	rec, env = api.doJSON(t, http.MethodPost, "/auth/login", "", map[string]string{
		"email": "alice@example.com", "password": "Passw0rd",
	})
	require.Equal(t, http.StatusOK, rec.Code)
	loginToken := dataOf(t, env)["token"].(string)

	rec, env = api.do(t, http.MethodGet, "/auth/profile", loginToken, nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	profile := dataOf(t, env)["user"].(map[string]any)
	assert.Equal(t, user["id"], profile["id"])
}

func TestRegisterFailures(t *testing.T) {
	api := newTestAPI(t)
	api.register(t, "alice01", "alice@example.com", types.RoleUser)

	rec, env := api.doJSON(t, http.MethodPost, "/auth/register", "", map[string]string{
		"username": "alice01", "email": "new@example.com", "password": "Passw0rd",
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "User already exists with this email or username", env.Message)

	rec, env = api.doJSON(t, http.MethodPost, "/auth/register", "", map[string]string{
		"username": "x", "email": "bad", "password": "short",
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "Validation errors", env.Message)
	assert.Len(t, env.Errors, 3)

	rec, env = api.do(t, http.MethodPost, "/auth/register", "", bytes.NewReader([]byte("{")), "application/json")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "Invalid request body", env.Message)
}

func TestUpdateProfile(t *testing.T) {
	api := newTestAPI(t)
	alice := api.register(t, "alice01", "alice@example.com", types.RoleUser)
	api.register(t, "bob", "bob@example.com", types.RoleUser)

	rec, env := api.doJSON(t, http.MethodPut, "/auth/profile", alice.Token, map[string]string{})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "alice01", dataOf(t, env)["user"].(map[string]any)["username"])

	rec, env = api.doJSON(t, http.MethodPut, "/auth/profile", alice.Token, map[string]string{"username": "bob"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "Username already exists", env.Message)

	rec, env = api.doJSON(t, http.MethodPut, "/auth/profile", alice.Token, map[string]string{
		"avatar": "https://cdn.example.com/a.png",
	})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "https://cdn.example.com/a.png", dataOf(t, env)["user"].(map[string]any)["avatar"])
}

func TestAuthenticateRejections(t *testing.T) {
	api := newTestAPI(t)

	foreign, err := auth.NewCodec(auth.CodecConfig{Secret: "another-secret"})
	require.NoError(t, err)
	forged, err := foreign.Issue("someone", "x@example.com", types.RoleAdmin)
	require.NoError(t, err)
	ghost, err := api.codec.Issue("6f1c2a53-3a0b-4d0e-9a55-2f0b1a3c4d5e", "ghost@example.com", types.RoleUser)
	require.NoError(t, err)

	tests := []struct {
		name    string
		header  string
		message string
	}{
		{name: "wrong scheme", header: "Basic abc", message: "Access denied. No token provided."},
		{name: "empty bearer", header: "Bearer ", message: "Access denied. No token provided."},
		{name: "garbage", header: "Bearer not-a-jwt", message: "Invalid token format."},
		{name: "foreign secret", header: "Bearer " + forged, message: "Invalid token format."},
		{name: "unknown subject", header: "bearer " + ghost, message: "Invalid token - user not found."},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/auth/profile", nil)
			req.Header.Set("Authorization", tt.header)
			rec := httptest.NewRecorder()
			api.router.ServeHTTP(rec, req)

			var env Envelope
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
			assert.Equal(t, http.StatusUnauthorized, rec.Code)
			assert.Equal(t, tt.message, env.Message)
		})
	}
}

type failingUsers struct{}

func (failingUsers) GetByID(context.Context, string) (types.User, error) {
	return types.User{}, errors.New("connection refused")
}

func TestAuthenticateStoreFailure(t *testing.T) {
	codec, err := auth.NewCodec(auth.CodecConfig{Secret: testSecret})
	require.NoError(t, err)
	token, err := codec.Issue("id-1", "a@example.com", types.RoleUser)
	require.NoError(t, err)

	handler := Authenticate(codec, failingUsers{}, nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("handler must not run")
	}))
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Contains(t, rec.Body.String(), "Authentication failed.")
}

func TestAuthorize(t *testing.T) {
	ok := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})
	adminOnly := Authorize(types.RoleAdmin)(ok)

	tests := []struct {
		name   string
		ctx    context.Context
		status int
	}{
		{name: "no identity", ctx: context.Background(), status: http.StatusUnauthorized},
		{name: "user", ctx: auth.WithUser(context.Background(), types.User{ID: "u", Role: types.RoleUser}), status: http.StatusForbidden},
		{name: "admin", ctx: auth.WithUser(context.Background(), types.User{ID: "a", Role: types.RoleAdmin}), status: http.StatusNoContent},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodDelete, "/", nil).WithContext(tt.ctx)
			rec := httptest.NewRecorder()
			adminOnly.ServeHTTP(rec, req)
			assert.Equal(t, tt.status, rec.Code)
		})
	}

	either := Authorize(types.RoleAdmin, types.RoleUser)(ok)
	req := httptest.NewRequest(http.MethodGet, "/", nil).
		WithContext(auth.WithUser(context.Background(), types.User{Role: types.RoleUser}))
	rec := httptest.NewRecorder()
	either.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNoContent, rec.Code)
}

func multipartBody(t *testing.T, fields map[string]string, fileField string, files ...string) (io.Reader, string) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for key, value := range fields {
		require.NoError(t, mw.WriteField(key, value))
	}
	for _, name := range files {
		header := textproto.MIMEHeader{}
		header.Set("Content-Disposition", `form-data; name="`+fileField+`"; filename="`+name+`"`)
		header.Set("Content-Type", "image/png")
		part, err := mw.CreatePart(header)
		require.NoError(t, err)
		_, err = part.Write([]byte("png-bytes"))
		require.NoError(t, err)
	}
	require.NoError(t, mw.Close())
	return &buf, mw.FormDataContentType()
}

func TestCatalogRoutes(t *testing.T) {
	api := newTestAPI(t)
	admin := api.register(t, "root", "root@example.com", types.RoleAdmin)
	user := api.register(t, "alice01", "alice@example.com", types.RoleUser)

	body, contentType := multipartBody(t, map[string]string{"name": "Shoes"}, "image", "banner.png")
	rec, env := api.do(t, http.MethodPost, "/categories", user.Token, body, contentType)
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, "Access denied. Insufficient permissions.", env.Message)

	body, contentType = multipartBody(t, map[string]string{"name": "Shoes"}, "image", "banner.png")
	rec, env = api.do(t, http.MethodPost, "/categories", admin.Token, body, contentType)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	category := dataOf(t, env)["category"].(map[string]any)
	categoryID := category["id"].(string)
	assert.NotNil(t, category["image"])

	body, contentType = multipartBody(t, map[string]string{
		"name":           "Trail Runner",
		"description":    "Lightweight trail shoe",
		"price":          "120",
		"discountPrice":  "90",
		"category":       categoryID,
		"stock":          "4",
		"tags":           "running, trail",
		"specifications": `{"weight":"250g","drop":8}`,
	}, "images", "a.png", "b.png")
	rec, env = api.do(t, http.MethodPost, "/products", admin.Token, body, contentType)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	product := dataOf(t, env)["product"].(map[string]any)
	productID := product["id"].(string)
	assert.Equal(t, 90.0, product["effectivePrice"])
	assert.Equal(t, 25.0, product["discountPercentage"])
	assert.Equal(t, []any{"running", "trail"}, product["tags"])
	assert.Equal(t, map[string]any{"weight": "250g", "drop": "8"}, product["specifications"])
	assert.Len(t, product["images"], 2)
	assert.Len(t, api.objects.objects, 3)

	rec, env = api.do(t, http.MethodGet, "/products?limit=5&sortBy=price&sortOrder=asc", "", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	page := dataOf(t, env)
	assert.Len(t, page["items"], 1)
	pagination := page["pagination"].(map[string]any)
	assert.Equal(t, 1.0, pagination["totalItems"])
	assert.Equal(t, 5.0, pagination["limit"])

	rec, env = api.do(t, http.MethodGet, "/products?limit=500", "", nil, "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "Validation errors", env.Message)

	rec, env = api.do(t, http.MethodGet, "/products/"+productID, "", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	got := dataOf(t, env)["product"].(map[string]any)
	assert.Equal(t, 1.0, got["views"])
	assert.Equal(t, "Shoes", got["category"].(map[string]any)["name"])

	rec, env = api.do(t, http.MethodGet, "/products/not-an-id", "", nil, "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "Invalid ID format", env.Message)

	rec, env = api.do(t, http.MethodDelete, "/categories/"+categoryID, admin.Token, nil, "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "Cannot delete category. It has 1 products associated with it.", env.Message)

	imageID := got["images"].([]any)[0].(map[string]any)["id"].(string)
	rec, _ = api.do(t, http.MethodDelete, "/products/"+productID+"/images/"+imageID, admin.Token, nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, api.objects.objects, 2)

	rec, _ = api.do(t, http.MethodDelete, "/products/"+productID, "", nil, "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec, _ = api.do(t, http.MethodDelete, "/products/"+productID, admin.Token, nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	rec, _ = api.do(t, http.MethodDelete, "/categories/"+categoryID, admin.Token, nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, api.objects.objects)

	rec, env = api.do(t, http.MethodGet, "/categories", "", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, dataOf(t, env)["categories"])
}

func TestHealthz(t *testing.T) {
	api := newTestAPI(t)
	rec, env := api.do(t, http.MethodGet, "/healthz", "", nil, "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, env.Success)
}

func TestWriteErrorHidesInternalDetail(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()

	writeError(rec, req, zap.NewNop(), apperr.Wrap(errors.New("pq: password authentication failed"), apperr.KindInternal, "Server error while fetching products"))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.NotContains(t, rec.Body.String(), "pq:")
	assert.Contains(t, rec.Body.String(), "Server error while fetching products")

	rec = httptest.NewRecorder()
	writeError(rec, req, zap.NewNop(), errors.New("boom"))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Contains(t, rec.Body.String(), "Internal server error")
}
