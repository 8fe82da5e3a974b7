package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/shopdesk/apiserver/internal/apperr"
	"github.com/shopdesk/apiserver/internal/auth"
	"github.com/shopdesk/apiserver/internal/services"
	"github.com/shopdesk/apiserver/types"
	"go.uber.org/zap"
)

// AuthHandler provides account endpoints.
type AuthHandler struct {
	accounts *services.AccountService
	logger   *zap.Logger
}

// NewAuthHandler constructs an AuthHandler with the provided dependencies.
func NewAuthHandler(accounts *services.AccountService, logger *zap.Logger) *AuthHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AuthHandler{accounts: accounts, logger: logger}
}

// AuthRouter registers auth routes on the given router.
func AuthRouter(
	r chi.Router,
	accounts *services.AccountService,
	authMiddleware func(http.Handler) http.Handler,
	logger *zap.Logger,
) {
	handler := NewAuthHandler(accounts, logger)

	r.Post("/register", handler.Register)
	r.Post("/login", handler.Login)
	r.With(authMiddleware).Get("/profile", handler.Profile)
	r.With(authMiddleware).Put("/profile", handler.UpdateProfile)
}

// Register creates a new user account and returns a token.
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req types.RegisterInput
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	result, err := h.accounts.Register(r.Context(), req)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeSuccess(w, http.StatusCreated, "User registered successfully", result)
}

// Login verifies credentials and returns a token.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req types.LoginInput
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	result, err := h.accounts.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeSuccess(w, http.StatusOK, "Login successful", result)
}

// Profile returns the authenticated user.
func (h *AuthHandler) Profile(w http.ResponseWriter, r *http.Request) {
	current, ok := auth.UserFromContext(r.Context())
	if !ok {
		writeError(w, r, h.logger, apperr.New(apperr.KindUnauthenticated, "Authentication required."))
		return
	}

	user, err := h.accounts.GetProfile(r.Context(), current.ID)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeSuccess(w, http.StatusOK, "Profile retrieved successfully", userPayload{User: user})
}

// UpdateProfile changes the username or avatar of the authenticated user.
func (h *AuthHandler) UpdateProfile(w http.ResponseWriter, r *http.Request) {
	current, ok := auth.UserFromContext(r.Context())
	if !ok {
		writeError(w, r, h.logger, apperr.New(apperr.KindUnauthenticated, "Authentication required."))
		return
	}

	var req types.ProfileUpdate
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	user, err := h.accounts.UpdateProfile(r.Context(), current.ID, req)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeSuccess(w, http.StatusOK, "Profile updated successfully", userPayload{User: user})
}

type userPayload struct {
	User types.User `json:"user"`
}
