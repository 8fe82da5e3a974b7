package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/shopdesk/apiserver/internal/services"
	"github.com/shopdesk/apiserver/internal/validate"
	"github.com/shopdesk/apiserver/types"
	"go.uber.org/zap"
)

// CategoryHandler provides HTTP handlers for categories.
type CategoryHandler struct {
	categories  *services.CategoryService
	maxFileSize int64
	logger      *zap.Logger
}

func NewCategoryHandler(categories *services.CategoryService, maxFileSize int64, logger *zap.Logger) *CategoryHandler {
	if maxFileSize <= 0 {
		maxFileSize = services.DefaultMaxFileSize
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CategoryHandler{
		categories:  categories,
		maxFileSize: maxFileSize,
		logger:      logger,
	}
}

// CategoryRouter registers category routes on the given router.
func CategoryRouter(
	r chi.Router,
	categories *services.CategoryService,
	maxFileSize int64,
	authMiddleware func(http.Handler) http.Handler,
	logger *zap.Logger,
) {
	handler := NewCategoryHandler(categories, maxFileSize, logger)
	admin := r.With(authMiddleware, Authorize(types.RoleAdmin))

	r.Get("/", handler.ListCategories)
	admin.Post("/", handler.CreateCategory)
	r.Route("/{categoryID}", func(r chi.Router) {
		admin := r.With(authMiddleware, Authorize(types.RoleAdmin))

		r.Get("/", handler.GetCategory)
		admin.Put("/", handler.UpdateCategory)
		admin.Delete("/", handler.DeleteCategory)
	})
}

func (h *CategoryHandler) ListCategories(w http.ResponseWriter, r *http.Request) {
	q, err := validate.CategoryQuery(r.URL.Query())
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	categories, err := h.categories.List(r.Context(), q)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	if categories == nil {
		categories = []types.Category{}
	}
	writeSuccess(w, http.StatusOK, "Categories retrieved successfully", categoriesPayload{Categories: categories})
}

func (h *CategoryHandler) GetCategory(w http.ResponseWriter, r *http.Request) {
	category, err := h.categories.Get(r.Context(), chi.URLParam(r, "categoryID"))
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeSuccess(w, http.StatusOK, "Category retrieved successfully", categoryPayload{Category: category})
}

func (h *CategoryHandler) CreateCategory(w http.ResponseWriter, r *http.Request) {
	h.saveCategory(w, r, "")
}

func (h *CategoryHandler) UpdateCategory(w http.ResponseWriter, r *http.Request) {
	h.saveCategory(w, r, chi.URLParam(r, "categoryID"))
}

func (h *CategoryHandler) saveCategory(w http.ResponseWriter, r *http.Request, id string) {
	create := id == ""
	form, err := parseUploadForm(w, r, h.maxFileSize+maxMultipartMemory)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	defer form.Close(r)

	in, err := validate.CategoryForm(form.Values, create)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	uploads, err := form.Uploads(formFieldImage, 1, "Only one image is allowed")
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	var image *services.Upload
	if len(uploads) == 1 {
		image = &uploads[0]
	}

	if create {
		category, err := h.categories.Create(r.Context(), in, image)
		if err != nil {
			writeError(w, r, h.logger, err)
			return
		}
		writeSuccess(w, http.StatusCreated, "Category created successfully", categoryPayload{Category: category})
		return
	}

	category, err := h.categories.Update(r.Context(), id, in, image)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeSuccess(w, http.StatusOK, "Category updated successfully", categoryPayload{Category: category})
}

func (h *CategoryHandler) DeleteCategory(w http.ResponseWriter, r *http.Request) {
	if err := h.categories.Delete(r.Context(), chi.URLParam(r, "categoryID")); err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeSuccess(w, http.StatusOK, "Category deleted successfully", nil)
}

type categoryPayload struct {
	Category types.Category `json:"category"`
}

type categoriesPayload struct {
	Categories []types.Category `json:"categories"`
}
