package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/shopdesk/apiserver/internal/apperr"
	"go.uber.org/zap"
)

// Envelope is the body of every API response.
type Envelope struct {
	Success bool                `json:"success"`
	Message string              `json:"message"`
	Data    any                 `json:"data,omitempty"`
	Errors  []apperr.FieldError `json:"errors,omitempty"`
}

func writeSuccess(w http.ResponseWriter, status int, message string, data any) {
	writeJSON(w, status, Envelope{Success: true, Message: message, Data: data})
}

// writeError maps err onto its status code. Internal errors are logged and
// reported with their public message only.
func writeError(w http.ResponseWriter, r *http.Request, logger *zap.Logger, err error) {
	e, ok := apperr.As(err)
	if !ok {
		e = apperr.Wrap(err, apperr.KindInternal, "Internal server error")
	}
	status := e.Kind.HTTPStatus()
	if status >= http.StatusInternalServerError {
		if logger == nil {
			logger = zap.L()
		}
		logger.Error(e.Message,
			zap.String("kind", e.Kind.String()),
			zap.String("request_id", middleware.GetReqID(r.Context())),
			zap.Error(err),
		)
	}
	writeJSON(w, status, Envelope{Success: false, Message: e.Message, Errors: e.Details})
}
