package handlers

import (
	"context"
	"errors"
	"net/http"
	"slices"

	"github.com/shopdesk/apiserver/internal/apperr"
	"github.com/shopdesk/apiserver/internal/auth"
	"github.com/shopdesk/apiserver/internal/store"
	"github.com/shopdesk/apiserver/types"
	"go.uber.org/zap"
)

// TokenVerifier validates bearer tokens.
type TokenVerifier interface {
	Verify(token string) (auth.Claims, error)
}

// SubjectResolver loads the account a token was issued to.
type SubjectResolver interface {
	GetByID(ctx context.Context, id string) (types.User, error)
}

// Authenticate rejects requests without a valid bearer token and binds the
// token's user to the request context.
func Authenticate(tokens TokenVerifier, users SubjectResolver, logger *zap.Logger) func(http.Handler) http.Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, err := bearerToken(r)
			if err != nil {
				writeError(w, r, logger, apperr.New(apperr.KindMissingToken, "Access denied. No token provided."))
				return
			}

			claims, err := tokens.Verify(token)
			if err != nil {
				switch apperr.KindOf(err) {
				case apperr.KindMalformedToken, apperr.KindExpiredToken:
					writeError(w, r, logger, err)
				default:
					logger.Warn("token verification failed", zap.Error(err))
					writeError(w, r, logger, errAuthFailed())
				}
				return
			}

			user, err := users.GetByID(r.Context(), claims.UserID)
			if err != nil {
				if errors.Is(err, store.ErrNotFound) {
					writeError(w, r, logger, apperr.New(apperr.KindUnknownSubject, "Invalid token - user not found."))
					return
				}
				logger.Error("resolve token subject failed", zap.String("user_id", claims.UserID), zap.Error(err))
				writeError(w, r, logger, errAuthFailed())
				return
			}

			ctx := auth.WithUser(r.Context(), user.Sanitized())
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// Authorize admits authenticated users whose role is one of roles.
func Authorize(roles ...types.Role) func(http.Handler) http.Handler {
	allowed := slices.Clone(roles)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			user, ok := auth.UserFromContext(r.Context())
			if !ok {
				writeError(w, r, nil, apperr.New(apperr.KindUnauthenticated, "Authentication required."))
				return
			}
			if !slices.Contains(allowed, user.Role) {
				writeError(w, r, nil, apperr.New(apperr.KindForbidden, "Access denied. Insufficient permissions."))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func errAuthFailed() error {
	return apperr.New(apperr.KindUnauthenticated, "Authentication failed.")
}
