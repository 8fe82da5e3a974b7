package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"strings"

	"github.com/shopdesk/apiserver/internal/apperr"
	"github.com/shopdesk/apiserver/internal/services"
)

const maxMultipartMemory = 32 << 20

func writeJSON(w http.ResponseWriter, status int, value any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(value)
}

func decodeJSON(r *http.Request, v any) error {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil && !errors.Is(err, io.EOF) {
		return apperr.Wrap(err, apperr.KindBadRequest, "Invalid request body")
	}
	return nil
}

func bearerToken(r *http.Request) (string, error) {
	header := strings.TrimSpace(r.Header.Get("Authorization"))
	if header == "" {
		return "", errors.New("missing authorization")
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return "", errors.New("invalid authorization")
	}
	token := strings.TrimSpace(parts[1])
	if token == "" {
		return "", errors.New("invalid authorization")
	}
	return token, nil
}

// uploadForm is a parsed multipart or urlencoded request.
type uploadForm struct {
	Values url.Values
	files  map[string][]*multipart.FileHeader
	open   []multipart.File
}

// parseUploadForm parses the body of a catalog write. The caller must Close it.
func parseUploadForm(w http.ResponseWriter, r *http.Request, maxBytes int64) (*uploadForm, error) {
	r.Body = http.MaxBytesReader(w, r.Body, maxBytes)
	err := r.ParseMultipartForm(maxMultipartMemory)
	switch {
	case err == nil:
		return &uploadForm{Values: r.PostForm, files: r.MultipartForm.File}, nil
	case errors.Is(err, http.ErrNotMultipart):
		if err := r.ParseForm(); err != nil {
			return nil, apperr.Wrap(err, apperr.KindBadRequest, "Invalid form data")
		}
		return &uploadForm{Values: r.PostForm}, nil
	default:
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return nil, apperr.Wrap(err, apperr.KindBadRequest, "Request body too large")
		}
		return nil, apperr.Wrap(err, apperr.KindBadRequest, "Invalid form data")
	}
}

// Uploads opens the files of the given field, at most limit of them.
func (f *uploadForm) Uploads(field string, limit int, tooMany string) ([]services.Upload, error) {
	headers := f.files[field]
	if len(headers) > limit {
		return nil, apperr.New(apperr.KindBadRequest, tooMany)
	}
	uploads := make([]services.Upload, 0, len(headers))
	for _, header := range headers {
		file, err := header.Open()
		if err != nil {
			return nil, apperr.Wrap(err, apperr.KindBadRequest, "Failed to read uploaded file")
		}
		f.open = append(f.open, file)
		uploads = append(uploads, services.Upload{
			Filename:    header.Filename,
			ContentType: header.Header.Get("Content-Type"),
			Size:        header.Size,
			Body:        file,
		})
	}
	return uploads, nil
}

// Close releases the opened files and the temporary form storage.
func (f *uploadForm) Close(r *http.Request) {
	for _, file := range f.open {
		_ = file.Close()
	}
	if r.MultipartForm != nil {
		_ = r.MultipartForm.RemoveAll()
	}
}
