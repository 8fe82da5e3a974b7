package handlers

import (
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/shopdesk/apiserver/internal/services"
	"github.com/shopdesk/apiserver/internal/validate"
	"github.com/shopdesk/apiserver/types"
	"go.uber.org/zap"
)

const (
	formFieldImages = "images"
	formFieldImage  = "image"
)

// ProductHandler provides HTTP handlers for products.
type ProductHandler struct {
	products    *services.ProductService
	maxFileSize int64
	logger      *zap.Logger
}

// NewProductHandler constructs a handler with the provided service.
func NewProductHandler(products *services.ProductService, maxFileSize int64, logger *zap.Logger) *ProductHandler {
	if maxFileSize <= 0 {
		maxFileSize = services.DefaultMaxFileSize
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ProductHandler{
		products:    products,
		maxFileSize: maxFileSize,
		logger:      logger,
	}
}

// ProductRouter registers product routes on the given router. Writes are
// restricted to admins.
func ProductRouter(
	r chi.Router,
	products *services.ProductService,
	maxFileSize int64,
	authMiddleware func(http.Handler) http.Handler,
	logger *zap.Logger,
) {
	handler := NewProductHandler(products, maxFileSize, logger)
	admin := r.With(authMiddleware, Authorize(types.RoleAdmin))

	r.Get("/", handler.ListProducts)
	admin.Post("/", handler.CreateProduct)
	r.Route("/{productID}", func(r chi.Router) {
		admin := r.With(authMiddleware, Authorize(types.RoleAdmin))

		r.Get("/", handler.GetProduct)
		admin.Put("/", handler.UpdateProduct)
		admin.Delete("/", handler.DeleteProduct)
		admin.Delete("/images/{imageID}", handler.DeleteProductImage)
	})
}

func (h *ProductHandler) ListProducts(w http.ResponseWriter, r *http.Request) {
	q, err := validate.ProductQuery(r.URL.Query())
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	page, err := h.products.List(r.Context(), q)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeSuccess(w, http.StatusOK, "Products retrieved successfully", page)
}

func (h *ProductHandler) GetProduct(w http.ResponseWriter, r *http.Request) {
	product, err := h.products.Get(r.Context(), chi.URLParam(r, "productID"))
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeSuccess(w, http.StatusOK, "Product retrieved successfully", productPayload{Product: product})
}

func (h *ProductHandler) CreateProduct(w http.ResponseWriter, r *http.Request) {
	h.saveProduct(w, r, "")
}

func (h *ProductHandler) UpdateProduct(w http.ResponseWriter, r *http.Request) {
	h.saveProduct(w, r, chi.URLParam(r, "productID"))
}

// saveProduct creates a product when id is empty and updates it otherwise.
func (h *ProductHandler) saveProduct(w http.ResponseWriter, r *http.Request, id string) {
	create := id == ""
	form, err := parseUploadForm(w, r, int64(types.MaxProductImages)*h.maxFileSize+maxMultipartMemory)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	defer form.Close(r)

	in, err := validate.ProductForm(form.Values, create)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	uploads, err := form.Uploads(formFieldImages, types.MaxProductImages,
		fmt.Sprintf("Maximum %d images allowed", types.MaxProductImages))
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	if create {
		product, err := h.products.Create(r.Context(), in, uploads)
		if err != nil {
			writeError(w, r, h.logger, err)
			return
		}
		writeSuccess(w, http.StatusCreated, "Product created successfully", productPayload{Product: product})
		return
	}

	product, err := h.products.Update(r.Context(), id, in, uploads)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeSuccess(w, http.StatusOK, "Product updated successfully", productPayload{Product: product})
}

func (h *ProductHandler) DeleteProduct(w http.ResponseWriter, r *http.Request) {
	if err := h.products.Delete(r.Context(), chi.URLParam(r, "productID")); err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeSuccess(w, http.StatusOK, "Product deleted successfully", nil)
}

func (h *ProductHandler) DeleteProductImage(w http.ResponseWriter, r *http.Request) {
	product, err := h.products.DeleteImage(r.Context(), chi.URLParam(r, "productID"), chi.URLParam(r, "imageID"))
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeSuccess(w, http.StatusOK, "Image deleted successfully", productPayload{Product: product})
}

type productPayload struct {
	Product types.Product `json:"product"`
}
