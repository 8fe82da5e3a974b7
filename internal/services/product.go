package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopdesk/apiserver/internal/apperr"
	"github.com/shopdesk/apiserver/internal/store"
	"github.com/shopdesk/apiserver/internal/validate"
	"github.com/shopdesk/apiserver/types"
)

// ProductRepository defines persistence operations for products.
type ProductRepository interface {
	List(ctx context.Context, q types.ProductQuery) ([]types.Product, int64, error)
	GetByID(ctx context.Context, id string) (types.Product, error)
	IncrementViews(ctx context.Context, id string) (types.Product, error)
	CountByCategory(ctx context.Context, categoryID string) (int64, error)
	Create(ctx context.Context, product types.Product) (types.Product, error)
	Update(ctx context.Context, product types.Product) (types.Product, error)
	Delete(ctx context.Context, id string) error
}

// ProductService encapsulates product use-cases.
type ProductService struct {
	repo       ProductRepository
	categories *CategoryService
	media      *MediaService
	events     *EventPublisher
	now        func() time.Time
}

func NewProductService(repo ProductRepository, categories *CategoryService, media *MediaService, events *EventPublisher) *ProductService {
	return &ProductService{
		repo:       repo,
		categories: categories,
		media:      media,
		events:     events,
		now:        time.Now,
	}
}

// List returns one page of products with their categories populated.
func (s *ProductService) List(ctx context.Context, q types.ProductQuery) (types.ProductPage, error) {
	if q.Page < 1 {
		q.Page = validate.DefaultPage
	}
	if q.Limit < 1 {
		q.Limit = validate.DefaultLimit
	}
	if q.Limit > validate.MaxLimit {
		q.Limit = validate.MaxLimit
	}

	items, total, err := s.repo.List(ctx, q)
	if err != nil {
		return types.ProductPage{}, apperr.Wrap(err, apperr.KindInternal, "Server error while fetching products")
	}
	if err := s.populate(ctx, items); err != nil {
		return types.ProductPage{}, apperr.Wrap(err, apperr.KindInternal, "Server error while fetching products")
	}
	if items == nil {
		items = []types.Product{}
	}
	return types.ProductPage{
		Items:      items,
		Pagination: types.NewPagination(q.Page, q.Limit, total),
	}, nil
}

// Get returns a product and counts the view.
func (s *ProductService) Get(ctx context.Context, id string) (types.Product, error) {
	if err := validate.ID(id); err != nil {
		return types.Product{}, err
	}
	product, err := s.repo.IncrementViews(ctx, id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return types.Product{}, errProductNotFound()
		}
		return types.Product{}, apperr.Wrap(err, apperr.KindInternal, "Server error while fetching product")
	}
	return s.populated(ctx, product, "Server error while fetching product")
}

// Create stores a new product with its uploaded images.
func (s *ProductService) Create(ctx context.Context, in types.ProductInput, uploads []Upload) (types.Product, error) {
	if err := validate.Product(in, true); err != nil {
		return types.Product{}, err
	}
	if len(uploads) > types.MaxProductImages {
		return types.Product{}, errTooManyImages()
	}

	category, err := s.requireCategory(ctx, *in.CategoryID)
	if err != nil {
		return types.Product{}, err
	}

	product := types.Product{
		Name:        strings.TrimSpace(*in.Name),
		Description: strings.TrimSpace(*in.Description),
		Price:       *in.Price,
		CategoryID:  category.ID,
		Stock:       *in.Stock,
		Tags:        in.Tags,
		IsActive:    true,
	}
	if in.DiscountPrice != nil {
		product.DiscountPrice = *in.DiscountPrice
	}
	if in.Specifications != nil {
		product.Specifications = in.Specifications
	}
	if in.Featured != nil {
		product.Featured = *in.Featured
	}
	if in.IsActive != nil {
		product.IsActive = *in.IsActive
	}
	if in.SKU != nil && strings.TrimSpace(*in.SKU) != "" {
		product.SKU = strings.ToUpper(strings.TrimSpace(*in.SKU))
	} else {
		product.SKU = GenerateSKU(category.Name, product.Name, s.now())
	}

	images, err := s.media.UploadAll(ctx, FolderProducts, uploads)
	if err != nil {
		return types.Product{}, err
	}
	product.Images = images

	created, err := s.repo.Create(ctx, product)
	if err != nil {
		s.media.Delete(ctx, images...)
		if errors.Is(err, store.ErrDuplicate) {
			return types.Product{}, errSKUTaken()
		}
		return types.Product{}, apperr.Wrap(err, apperr.KindInternal, "Server error while creating product")
	}

	created.Category = category.Summary()
	s.events.Catalog(ctx, EventProductCreated, created.ID, created)
	return created, nil
}

// Update applies the present fields and appends new images.
func (s *ProductService) Update(ctx context.Context, id string, in types.ProductInput, uploads []Upload) (types.Product, error) {
	if err := validate.ID(id); err != nil {
		return types.Product{}, err
	}
	if err := validate.Product(in, false); err != nil {
		return types.Product{}, err
	}

	product, err := s.load(ctx, id)
	if err != nil {
		return types.Product{}, err
	}
	if len(product.Images)+len(uploads) > types.MaxProductImages {
		return types.Product{}, errTooManyImages()
	}

	if in.CategoryID != nil && *in.CategoryID != product.CategoryID {
		if _, err := s.requireCategory(ctx, *in.CategoryID); err != nil {
			return types.Product{}, err
		}
		product.CategoryID = *in.CategoryID
	}
	applyProductInput(&product, in)
	if err := validate.Prices(product.Price, product.DiscountPrice); err != nil {
		return types.Product{}, err
	}

	images, err := s.media.UploadAll(ctx, FolderProducts, uploads)
	if err != nil {
		return types.Product{}, err
	}
	product.Images = append(product.Images, images...)

	updated, err := s.repo.Update(ctx, product)
	if err != nil {
		s.media.Delete(ctx, images...)
		switch {
		case errors.Is(err, store.ErrDuplicate):
			return types.Product{}, errSKUTaken()
		case errors.Is(err, store.ErrNotFound):
			return types.Product{}, errProductNotFound()
		default:
			return types.Product{}, apperr.Wrap(err, apperr.KindInternal, "Server error while updating product")
		}
	}

	updated, err = s.populated(ctx, updated, "Server error while updating product")
	if err != nil {
		return types.Product{}, err
	}
	s.events.Catalog(ctx, EventProductUpdated, updated.ID, updated)
	return updated, nil
}

// Delete removes a product and its images.
func (s *ProductService) Delete(ctx context.Context, id string) error {
	if err := validate.ID(id); err != nil {
		return err
	}
	product, err := s.load(ctx, id)
	if err != nil {
		return err
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return errProductNotFound()
		}
		return apperr.Wrap(err, apperr.KindInternal, "Server error while deleting product")
	}
	s.media.Delete(ctx, product.Images...)
	s.events.Catalog(ctx, EventProductDeleted, id, nil)
	return nil
}

// DeleteImage detaches a single image from a product and removes it.
func (s *ProductService) DeleteImage(ctx context.Context, id, imageID string) (types.Product, error) {
	if err := validate.ID(id); err != nil {
		return types.Product{}, err
	}
	product, err := s.load(ctx, id)
	if err != nil {
		return types.Product{}, err
	}
	idx := product.ImageByID(imageID)
	if idx < 0 {
		return types.Product{}, apperr.New(apperr.KindNotFound, "Image not found")
	}
	image := product.Images[idx]
	product.Images = append(product.Images[:idx:idx], product.Images[idx+1:]...)

	updated, err := s.repo.Update(ctx, product)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return types.Product{}, errProductNotFound()
		}
		return types.Product{}, apperr.Wrap(err, apperr.KindInternal, "Server error while deleting image")
	}
	s.media.Delete(ctx, image)

	updated, err = s.populated(ctx, updated, "Server error while deleting image")
	if err != nil {
		return types.Product{}, err
	}
	s.events.Catalog(ctx, EventProductUpdated, updated.ID, updated)
	return updated, nil
}

func (s *ProductService) load(ctx context.Context, id string) (types.Product, error) {
	product, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return types.Product{}, errProductNotFound()
		}
		return types.Product{}, apperr.Wrap(err, apperr.KindInternal, "Server error while fetching product")
	}
	return product, nil
}

func (s *ProductService) requireCategory(ctx context.Context, id string) (types.Category, error) {
	category, err := s.categories.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return types.Category{}, apperr.New(apperr.KindBadRequest, "Category not found")
		}
		return types.Category{}, apperr.Wrap(err, apperr.KindInternal, "Server error while fetching category")
	}
	return category, nil
}

func (s *ProductService) populate(ctx context.Context, products []types.Product) error {
	summaries, err := s.categories.summaries(ctx, products...)
	if err != nil {
		return err
	}
	for i := range products {
		if summary, ok := summaries[products[i].CategoryID]; ok {
			products[i].Category = &summary
		}
	}
	return nil
}

func (s *ProductService) populated(ctx context.Context, product types.Product, message string) (types.Product, error) {
	products := []types.Product{product}
	if err := s.populate(ctx, products); err != nil {
		return types.Product{}, apperr.Wrap(err, apperr.KindInternal, message)
	}
	return products[0], nil
}

func applyProductInput(product *types.Product, in types.ProductInput) {
	if in.Name != nil {
		product.Name = strings.TrimSpace(*in.Name)
	}
	if in.Description != nil {
		product.Description = strings.TrimSpace(*in.Description)
	}
	if in.Price != nil {
		product.Price = *in.Price
	}
	if in.DiscountPrice != nil {
		product.DiscountPrice = *in.DiscountPrice
	}
	if in.Stock != nil {
		product.Stock = *in.Stock
	}
	if in.SKU != nil && strings.TrimSpace(*in.SKU) != "" {
		product.SKU = strings.ToUpper(strings.TrimSpace(*in.SKU))
	}
	if in.Tags != nil {
		product.Tags = in.Tags
	}
	if in.Specifications != nil {
		product.Specifications = in.Specifications
	}
	if in.Featured != nil {
		product.Featured = *in.Featured
	}
	if in.IsActive != nil {
		product.IsActive = *in.IsActive
	}
}

// GenerateSKU derives a SKU from the category and product names and the
// millisecond clock: two category letters, three name letters, six digits.
// Only A-Z within the leading characters of each name count; gaps are
// padded with X.
func GenerateSKU(categoryName, productName string, now time.Time) string {
	return fmt.Sprintf("%s-%s-%06d",
		skuPrefix(categoryName, 2),
		skuPrefix(productName, 3),
		now.UnixMilli()%1_000_000,
	)
}

func skuPrefix(s string, n int) string {
	head := []rune(s)
	if len(head) > n {
		head = head[:n]
	}
	var b strings.Builder
	for _, r := range strings.ToUpper(string(head)) {
		if r >= 'A' && r <= 'Z' {
			b.WriteRune(r)
		}
	}
	for b.Len() < n {
		b.WriteByte('X')
	}
	return b.String()
}

func errProductNotFound() error {
	return apperr.New(apperr.KindNotFound, "Product not found")
}

func errSKUTaken() error {
	return apperr.New(apperr.KindDuplicate, "SKU already exists")
}

func errTooManyImages() error {
	return apperr.New(apperr.KindBadRequest, fmt.Sprintf("Maximum %d images allowed", types.MaxProductImages))
}
