package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/shopdesk/apiserver/types"
)

// CategoryRepository handles persistence for categories.
type CategoryRepository struct {
	db *sql.DB
}

func NewCategoryRepository(db *sql.DB) *CategoryRepository {
	return &CategoryRepository{db: db}
}

const categoryColumns = `id, name, description, image, is_active, created_at, updated_at`

func scanCategory(row rowScanner) (types.Category, error) {
	var category types.Category
	var imageJSON []byte
	err := row.Scan(
		&category.ID,
		&category.Name,
		&category.Description,
		&imageJSON,
		&category.IsActive,
		&category.CreatedAt,
		&category.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return types.Category{}, ErrNotFound
		}
		return types.Category{}, err
	}
	if len(imageJSON) > 0 && string(imageJSON) != "null" {
		var image types.Image
		if err := json.Unmarshal(imageJSON, &image); err == nil {
			category.Image = &image
		}
	}
	return category, nil
}

func marshalImage(image *types.Image) (any, error) {
	if image == nil {
		return nil, nil
	}
	return json.Marshal(image)
}

// List returns categories newest first, optionally filtered by activity.
func (r *CategoryRepository) List(ctx context.Context, q types.CategoryQuery) ([]types.Category, error) {
	query := `SELECT ` + categoryColumns + ` FROM categories`
	args := []any{}
	if q.IsActive != nil {
		query += ` WHERE is_active = $1`
		args = append(args, *q.IsActive)
	}
	query += ` ORDER BY created_at DESC`

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	categories := []types.Category{}
	for rows.Next() {
		category, err := scanCategory(rows)
		if err != nil {
			return nil, err
		}
		categories = append(categories, category)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return categories, nil
}

func (r *CategoryRepository) GetByID(ctx context.Context, id string) (types.Category, error) {
	query := `SELECT ` + categoryColumns + ` FROM categories WHERE id = $1`
	return scanCategory(r.db.QueryRowContext(ctx, query, id))
}

// Summaries returns the summaries of the given categories keyed by id.
// Unknown ids are omitted.
func (r *CategoryRepository) Summaries(ctx context.Context, ids []string) (map[string]types.CategorySummary, error) {
	summaries := make(map[string]types.CategorySummary, len(ids))
	if len(ids) == 0 {
		return summaries, nil
	}

	const query = `SELECT id, name, description FROM categories WHERE id = ANY($1)`
	rows, err := r.db.QueryContext(ctx, query, pq.Array(ids))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var s types.CategorySummary
		if err := rows.Scan(&s.ID, &s.Name, &s.Description); err != nil {
			return nil, err
		}
		summaries[s.ID] = s
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return summaries, nil
}

func (r *CategoryRepository) Create(ctx context.Context, category types.Category) (types.Category, error) {
	if category.ID == "" {
		category.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	category.CreatedAt = now
	category.UpdatedAt = now

	imageJSON, err := marshalImage(category.Image)
	if err != nil {
		return types.Category{}, err
	}

	const query = `
		INSERT INTO categories (id, name, description, image, is_active, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`
	if _, err := r.db.ExecContext(
		ctx,
		query,
		category.ID,
		category.Name,
		category.Description,
		imageJSON,
		category.IsActive,
		category.CreatedAt,
		category.UpdatedAt,
	); err != nil {
		return types.Category{}, translate(err)
	}
	return category, nil
}

func (r *CategoryRepository) Update(ctx context.Context, category types.Category) (types.Category, error) {
	category.UpdatedAt = time.Now().UTC()

	imageJSON, err := marshalImage(category.Image)
	if err != nil {
		return types.Category{}, err
	}

	const query = `
		UPDATE categories
		SET name = $1,
			description = $2,
			image = $3,
			is_active = $4,
			updated_at = $5
		WHERE id = $6`
	result, err := r.db.ExecContext(
		ctx,
		query,
		category.Name,
		category.Description,
		imageJSON,
		category.IsActive,
		category.UpdatedAt,
		category.ID,
	)
	if err != nil {
		return types.Category{}, translate(err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return types.Category{}, err
	}
	if affected == 0 {
		return types.Category{}, ErrNotFound
	}
	return category, nil
}

func (r *CategoryRepository) Delete(ctx context.Context, id string) error {
	const query = `DELETE FROM categories WHERE id = $1`
	result, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		return err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}
