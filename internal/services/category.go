package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/shopdesk/apiserver/internal/apperr"
	"github.com/shopdesk/apiserver/internal/store"
	"github.com/shopdesk/apiserver/internal/validate"
	"github.com/shopdesk/apiserver/types"
)

// CategoryRepository defines persistence operations for categories.
type CategoryRepository interface {
	List(ctx context.Context, q types.CategoryQuery) ([]types.Category, error)
	GetByID(ctx context.Context, id string) (types.Category, error)
	Summaries(ctx context.Context, ids []string) (map[string]types.CategorySummary, error)
	Create(ctx context.Context, category types.Category) (types.Category, error)
	Update(ctx context.Context, category types.Category) (types.Category, error)
	Delete(ctx context.Context, id string) error
}

// ProductCounter counts the products referencing a category.
type ProductCounter interface {
	CountByCategory(ctx context.Context, categoryID string) (int64, error)
}

// CategoryService encapsulates category use-cases.
type CategoryService struct {
	repo     CategoryRepository
	products ProductCounter
	media    *MediaService
	events   *EventPublisher
}

func NewCategoryService(repo CategoryRepository, products ProductCounter, media *MediaService, events *EventPublisher) *CategoryService {
	return &CategoryService{
		repo:     repo,
		products: products,
		media:    media,
		events:   events,
	}
}

func (s *CategoryService) List(ctx context.Context, q types.CategoryQuery) ([]types.Category, error) {
	categories, err := s.repo.List(ctx, q)
	if err != nil {
		return nil, apperr.Wrap(err, apperr.KindInternal, "Server error while fetching categories")
	}
	return categories, nil
}

func (s *CategoryService) Get(ctx context.Context, id string) (types.Category, error) {
	if err := validate.ID(id); err != nil {
		return types.Category{}, err
	}
	category, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return types.Category{}, errCategoryNotFound()
		}
		return types.Category{}, apperr.Wrap(err, apperr.KindInternal, "Server error while fetching category")
	}
	return category, nil
}

// Create stores a new category with an optional banner image.
func (s *CategoryService) Create(ctx context.Context, in types.CategoryInput, image *Upload) (types.Category, error) {
	if err := validate.Category(in, true); err != nil {
		return types.Category{}, err
	}

	category := types.Category{
		Name:     strings.TrimSpace(*in.Name),
		IsActive: true,
	}
	if in.Description != nil {
		category.Description = strings.TrimSpace(*in.Description)
	}
	if in.IsActive != nil {
		category.IsActive = *in.IsActive
	}

	if image != nil {
		img, err := s.media.Upload(ctx, FolderCategories, *image)
		if err != nil {
			return types.Category{}, err
		}
		category.Image = &img
	}

	created, err := s.repo.Create(ctx, category)
	if err != nil {
		if category.Image != nil {
			s.media.Delete(ctx, *category.Image)
		}
		if errors.Is(err, store.ErrDuplicate) {
			return types.Category{}, errCategoryNameTaken()
		}
		return types.Category{}, apperr.Wrap(err, apperr.KindInternal, "Server error while creating category")
	}

	s.events.Catalog(ctx, EventCategoryCreated, created.ID, created)
	return created, nil
}

// Update applies the present fields. A new image replaces and deletes the old one.
func (s *CategoryService) Update(ctx context.Context, id string, in types.CategoryInput, image *Upload) (types.Category, error) {
	if err := validate.ID(id); err != nil {
		return types.Category{}, err
	}
	if err := validate.Category(in, false); err != nil {
		return types.Category{}, err
	}

	category, err := s.Get(ctx, id)
	if err != nil {
		return types.Category{}, err
	}
	if in.Name != nil {
		category.Name = strings.TrimSpace(*in.Name)
	}
	if in.Description != nil {
		category.Description = strings.TrimSpace(*in.Description)
	}
	if in.IsActive != nil {
		category.IsActive = *in.IsActive
	}

	previous := category.Image
	if image != nil {
		img, err := s.media.Upload(ctx, FolderCategories, *image)
		if err != nil {
			return types.Category{}, err
		}
		category.Image = &img
	}

	updated, err := s.repo.Update(ctx, category)
	if err != nil {
		if image != nil {
			s.media.Delete(ctx, *category.Image)
		}
		switch {
		case errors.Is(err, store.ErrDuplicate):
			return types.Category{}, errCategoryNameTaken()
		case errors.Is(err, store.ErrNotFound):
			return types.Category{}, errCategoryNotFound()
		default:
			return types.Category{}, apperr.Wrap(err, apperr.KindInternal, "Server error while updating category")
		}
	}
	if image != nil && previous != nil {
		s.media.Delete(ctx, *previous)
	}

	s.events.Catalog(ctx, EventCategoryUpdated, updated.ID, updated)
	return updated, nil
}

// Delete removes a category that no product references.
func (s *CategoryService) Delete(ctx context.Context, id string) error {
	category, err := s.Get(ctx, id)
	if err != nil {
		return err
	}

	count, err := s.products.CountByCategory(ctx, id)
	if err != nil {
		return apperr.Wrap(err, apperr.KindInternal, "Server error while deleting category")
	}
	if count > 0 {
		return apperr.New(apperr.KindBadRequest,
			fmt.Sprintf("Cannot delete category. It has %d products associated with it.", count))
	}

	if err := s.repo.Delete(ctx, id); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return errCategoryNotFound()
		}
		return apperr.Wrap(err, apperr.KindInternal, "Server error while deleting category")
	}
	if category.Image != nil {
		s.media.Delete(ctx, *category.Image)
	}

	s.events.Catalog(ctx, EventCategoryDeleted, id, nil)
	return nil
}

// summaries loads the category projections referenced by products.
func (s *CategoryService) summaries(ctx context.Context, products ...types.Product) (map[string]types.CategorySummary, error) {
	seen := make(map[string]bool, len(products))
	ids := make([]string, 0, len(products))
	for _, p := range products {
		if p.CategoryID != "" && !seen[p.CategoryID] {
			seen[p.CategoryID] = true
			ids = append(ids, p.CategoryID)
		}
	}
	if len(ids) == 0 {
		return map[string]types.CategorySummary{}, nil
	}
	return s.repo.Summaries(ctx, ids)
}

func errCategoryNotFound() error {
	return apperr.New(apperr.KindNotFound, "Category not found")
}

func errCategoryNameTaken() error {
	return apperr.New(apperr.KindDuplicate, "Category name already exists")
}
