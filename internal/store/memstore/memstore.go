// Package memstore implements the repositories in process memory. Unique
// indexes are emulated so duplicate writes fail like they do in a database.
package memstore

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopdesk/apiserver/internal/store"
	"github.com/shopdesk/apiserver/types"
)

// Store holds every collection behind one lock.
type Store struct {
	mu         sync.RWMutex
	users      map[string]types.User
	categories map[string]types.Category
	products   map[string]types.Product
	now        func() time.Time
}

func New() *Store {
	return &Store{
		users:      map[string]types.User{},
		categories: map[string]types.Category{},
		products:   map[string]types.Product{},
		now:        func() time.Time { return time.Now().UTC() },
	}
}

// SetClock replaces the timestamp source.
func (s *Store) SetClock(now func() time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.now = now
}

func (s *Store) Users() *UserRepository {
	return &UserRepository{s: s}
}

func (s *Store) Categories() *CategoryRepository {
	return &CategoryRepository{s: s}
}

func (s *Store) Products() *ProductRepository {
	return &ProductRepository{s: s}
}

func duplicate(index string) error {
	return fmt.Errorf("%w: %s", store.ErrDuplicate, index)
}

// UserRepository handles persistence for users.
type UserRepository struct {
	s *Store
}

func (r *UserRepository) GetByID(ctx context.Context, id string) (types.User, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	user, ok := r.s.users[id]
	if !ok {
		return types.User{}, store.ErrNotFound
	}
	return user, nil
}

func (r *UserRepository) GetByEmail(ctx context.Context, email string) (types.User, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	for _, user := range r.s.users {
		if user.Email == email {
			return user, nil
		}
	}
	return types.User{}, store.ErrNotFound
}

func (r *UserRepository) ExistsByEmailOrUsername(ctx context.Context, email, username string) (bool, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	for _, user := range r.s.users {
		if user.Email == email || user.Username == username {
			return true, nil
		}
	}
	return false, nil
}

func (r *UserRepository) Create(ctx context.Context, user types.User) (types.User, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, existing := range r.s.users {
		if existing.Email == user.Email {
			return types.User{}, duplicate("users.email")
		}
		if existing.Username == user.Username {
			return types.User{}, duplicate("users.username")
		}
	}
	if user.ID == "" {
		user.ID = uuid.NewString()
	}
	now := r.s.now()
	user.CreatedAt = now
	user.UpdatedAt = now
	r.s.users[user.ID] = user
	return user, nil
}

func (r *UserRepository) UpdateProfile(ctx context.Context, id string, update types.ProfileUpdate) (types.User, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	user, ok := r.s.users[id]
	if !ok {
		return types.User{}, store.ErrNotFound
	}
	if update.Username != nil {
		for otherID, other := range r.s.users {
			if otherID != id && other.Username == *update.Username {
				return types.User{}, duplicate("users.username")
			}
		}
		user.Username = *update.Username
	}
	if update.Avatar != nil {
		user.Avatar = *update.Avatar
	}
	user.UpdatedAt = r.s.now()
	r.s.users[id] = user
	return user, nil
}

// CategoryRepository handles persistence for categories.
type CategoryRepository struct {
	s *Store
}

func (r *CategoryRepository) List(ctx context.Context, q types.CategoryQuery) ([]types.Category, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	categories := []types.Category{}
	for _, category := range r.s.categories {
		if q.IsActive != nil && category.IsActive != *q.IsActive {
			continue
		}
		categories = append(categories, category)
	}
	sort.SliceStable(categories, func(i, j int) bool {
		if categories[i].CreatedAt.Equal(categories[j].CreatedAt) {
			return categories[i].ID < categories[j].ID
		}
		return categories[i].CreatedAt.After(categories[j].CreatedAt)
	})
	return categories, nil
}

func (r *CategoryRepository) GetByID(ctx context.Context, id string) (types.Category, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	category, ok := r.s.categories[id]
	if !ok {
		return types.Category{}, store.ErrNotFound
	}
	return category, nil
}

func (r *CategoryRepository) Summaries(ctx context.Context, ids []string) (map[string]types.CategorySummary, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	summaries := make(map[string]types.CategorySummary, len(ids))
	for _, id := range ids {
		if category, ok := r.s.categories[id]; ok {
			summaries[id] = *category.Summary()
		}
	}
	return summaries, nil
}

func (r *CategoryRepository) Create(ctx context.Context, category types.Category) (types.Category, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.checkName("", category.Name); err != nil {
		return types.Category{}, err
	}
	if category.ID == "" {
		category.ID = uuid.NewString()
	}
	now := r.s.now()
	category.CreatedAt = now
	category.UpdatedAt = now
	r.s.categories[category.ID] = category
	return category, nil
}

func (r *CategoryRepository) Update(ctx context.Context, category types.Category) (types.Category, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	existing, ok := r.s.categories[category.ID]
	if !ok {
		return types.Category{}, store.ErrNotFound
	}
	if err := r.checkName(category.ID, category.Name); err != nil {
		return types.Category{}, err
	}
	category.CreatedAt = existing.CreatedAt
	category.UpdatedAt = r.s.now()
	r.s.categories[category.ID] = category
	return category, nil
}

func (r *CategoryRepository) Delete(ctx context.Context, id string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.categories[id]; !ok {
		return store.ErrNotFound
	}
	delete(r.s.categories, id)
	return nil
}

func (r *CategoryRepository) checkName(id, name string) error {
	for otherID, other := range r.s.categories {
		if otherID != id && other.Name == name {
			return duplicate("categories.name")
		}
	}
	return nil
}

// ProductRepository handles persistence for products.
type ProductRepository struct {
	s *Store
}

func (r *ProductRepository) List(ctx context.Context, q types.ProductQuery) ([]types.Product, int64, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	matched := []types.Product{}
	for _, product := range r.s.products {
		if matches(product, q) {
			matched = append(matched, clone(product))
		}
	}
	sort.SliceStable(matched, less(matched, q))

	total := int64(len(matched))
	limit := q.Limit
	if limit < 1 {
		limit = 10
	}
	start := q.Offset()
	if start > len(matched) {
		start = len(matched)
	}
	end := start + limit
	if end > len(matched) {
		end = len(matched)
	}
	return matched[start:end], total, nil
}

func (r *ProductRepository) GetByID(ctx context.Context, id string) (types.Product, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	product, ok := r.s.products[id]
	if !ok {
		return types.Product{}, store.ErrNotFound
	}
	return clone(product), nil
}

func (r *ProductRepository) IncrementViews(ctx context.Context, id string) (types.Product, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	product, ok := r.s.products[id]
	if !ok {
		return types.Product{}, store.ErrNotFound
	}
	product.Views++
	r.s.products[id] = product
	return clone(product), nil
}

func (r *ProductRepository) CountByCategory(ctx context.Context, categoryID string) (int64, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	var count int64
	for _, product := range r.s.products {
		if product.CategoryID == categoryID {
			count++
		}
	}
	return count, nil
}

func (r *ProductRepository) Create(ctx context.Context, product types.Product) (types.Product, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.checkSKU("", product.SKU); err != nil {
		return types.Product{}, err
	}
	if product.ID == "" {
		product.ID = uuid.NewString()
	}
	now := r.s.now()
	product.CreatedAt = now
	product.UpdatedAt = now
	product.Category = nil
	r.s.products[product.ID] = clone(product)
	return product, nil
}

func (r *ProductRepository) Update(ctx context.Context, product types.Product) (types.Product, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	existing, ok := r.s.products[product.ID]
	if !ok {
		return types.Product{}, store.ErrNotFound
	}
	if err := r.checkSKU(product.ID, product.SKU); err != nil {
		return types.Product{}, err
	}
	product.CreatedAt = existing.CreatedAt
	product.Views = existing.Views
	product.Rating = existing.Rating
	product.UpdatedAt = r.s.now()
	product.Category = nil
	r.s.products[product.ID] = clone(product)
	return product, nil
}

func (r *ProductRepository) Delete(ctx context.Context, id string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.products[id]; !ok {
		return store.ErrNotFound
	}
	delete(r.s.products, id)
	return nil
}

func (r *ProductRepository) checkSKU(id, sku string) error {
	for otherID, other := range r.s.products {
		if otherID != id && other.SKU == sku {
			return duplicate("products.sku")
		}
	}
	return nil
}

func matches(p types.Product, q types.ProductQuery) bool {
	if q.IsActive != nil && p.IsActive != *q.IsActive {
		return false
	}
	if q.Category != "" && p.CategoryID != q.Category {
		return false
	}
	if q.MinPrice != nil && p.Price < *q.MinPrice {
		return false
	}
	if q.MaxPrice != nil && p.Price > *q.MaxPrice {
		return false
	}
	if q.Featured != nil && p.Featured != *q.Featured {
		return false
	}
	if q.Search != "" && !textMatch(p, q.Search) {
		return false
	}
	return true
}

// textMatch reports whether any search term occurs in the indexed fields.
func textMatch(p types.Product, search string) bool {
	haystack := strings.ToLower(p.Name + " " + p.Description + " " + strings.Join(p.Tags, " "))
	for _, term := range strings.Fields(strings.ToLower(search)) {
		if strings.Contains(haystack, term) {
			return true
		}
	}
	return false
}

func less(products []types.Product, q types.ProductQuery) func(i, j int) bool {
	desc := q.SortOrder != types.SortAsc
	return func(i, j int) bool {
		a, b := products[i], products[j]
		var cmp int
		switch q.SortBy {
		case "name":
			cmp = strings.Compare(a.Name, b.Name)
		case "price":
			cmp = compareFloat(a.Price, b.Price)
		case "rating.average":
			cmp = compareFloat(a.Rating.Average, b.Rating.Average)
		case "views":
			cmp = compareFloat(float64(a.Views), float64(b.Views))
		default:
			cmp = a.CreatedAt.Compare(b.CreatedAt)
		}
		if cmp == 0 {
			return a.ID < b.ID
		}
		if desc {
			return cmp > 0
		}
		return cmp < 0
	}
}

func compareFloat(a, b float64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}

// clone copies the reference fields so callers cannot mutate stored state.
func clone(p types.Product) types.Product {
	if p.Images != nil {
		p.Images = append([]types.Image(nil), p.Images...)
	}
	if p.Tags != nil {
		p.Tags = append([]string(nil), p.Tags...)
	}
	if p.Specifications != nil {
		specs := make(map[string]string, len(p.Specifications))
		for k, v := range p.Specifications {
			specs[k] = v
		}
		p.Specifications = specs
	}
	return p
}
