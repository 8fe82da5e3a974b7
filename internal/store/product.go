package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopdesk/apiserver/types"
)

// ProductRepository handles persistence for products.
type ProductRepository struct {
	db *sql.DB
}

func NewProductRepository(db *sql.DB) *ProductRepository {
	return &ProductRepository{db: db}
}

const productColumns = `id, name, description, price, discount_price, category_id, images, stock, sku, tags, specifications, is_active, featured, views, rating_average, rating_count, created_at, updated_at`

const productSearchVector = `to_tsvector('english', name || ' ' || description || ' ' || tags::text)`

var productSortColumns = map[string]string{
	"name":           "name",
	"price":          "price",
	"createdAt":      "created_at",
	"rating.average": "rating_average",
	"views":          "views",
}

func scanProduct(row rowScanner) (types.Product, error) {
	var product types.Product
	var imagesJSON, tagsJSON, specsJSON []byte
	err := row.Scan(
		&product.ID,
		&product.Name,
		&product.Description,
		&product.Price,
		&product.DiscountPrice,
		&product.CategoryID,
		&imagesJSON,
		&product.Stock,
		&product.SKU,
		&tagsJSON,
		&specsJSON,
		&product.IsActive,
		&product.Featured,
		&product.Views,
		&product.Rating.Average,
		&product.Rating.Count,
		&product.CreatedAt,
		&product.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return types.Product{}, ErrNotFound
		}
		return types.Product{}, err
	}

	_ = json.Unmarshal(imagesJSON, &product.Images)
	_ = json.Unmarshal(tagsJSON, &product.Tags)
	_ = json.Unmarshal(specsJSON, &product.Specifications)
	return product, nil
}

type productJSON struct {
	images, tags, specs []byte
}

func marshalProduct(product types.Product) (productJSON, error) {
	var out productJSON
	var err error
	images := product.Images
	if images == nil {
		images = []types.Image{}
	}
	if out.images, err = json.Marshal(images); err != nil {
		return productJSON{}, err
	}
	tags := product.Tags
	if tags == nil {
		tags = []string{}
	}
	if out.tags, err = json.Marshal(tags); err != nil {
		return productJSON{}, err
	}
	specs := product.Specifications
	if specs == nil {
		specs = map[string]string{}
	}
	if out.specs, err = json.Marshal(specs); err != nil {
		return productJSON{}, err
	}
	return out, nil
}

// productFilter renders the WHERE clause of a list query.
func productFilter(q types.ProductQuery) (string, []any) {
	var clauses []string
	var args []any
	add := func(clause string, arg any) {
		args = append(args, arg)
		clauses = append(clauses, fmt.Sprintf(clause, len(args)))
	}

	if q.IsActive != nil {
		add("is_active = $%d", *q.IsActive)
	}
	if q.Category != "" {
		add("category_id = $%d", q.Category)
	}
	if q.Search != "" {
		add(productSearchVector+" @@ plainto_tsquery('english', $%d)", q.Search)
	}
	if q.MinPrice != nil {
		add("price >= $%d", *q.MinPrice)
	}
	if q.MaxPrice != nil {
		add("price <= $%d", *q.MaxPrice)
	}
	if q.Featured != nil {
		add("featured = $%d", *q.Featured)
	}

	if len(clauses) == 0 {
		return "", args
	}
	return " WHERE " + strings.Join(clauses, " AND "), args
}

func productOrder(q types.ProductQuery) string {
	column, ok := productSortColumns[q.SortBy]
	if !ok {
		column = "created_at"
	}
	direction := "DESC"
	if q.SortOrder == types.SortAsc {
		direction = "ASC"
	}
	return fmt.Sprintf(" ORDER BY %s %s, id", column, direction)
}

// List returns one page of products matching q and the total match count.
func (r *ProductRepository) List(ctx context.Context, q types.ProductQuery) ([]types.Product, int64, error) {
	limit := q.Limit
	if limit < 1 {
		limit = 10
	}
	where, args := productFilter(q)

	var total int64
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(1) FROM products`+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	listArgs := append(append([]any{}, args...), q.Offset(), limit)
	listQuery := `SELECT ` + productColumns + ` FROM products` + where + productOrder(q) +
		fmt.Sprintf(" OFFSET $%d LIMIT $%d", len(args)+1, len(args)+2)
	rows, err := r.db.QueryContext(ctx, listQuery, listArgs...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	products := make([]types.Product, 0, limit)
	for rows.Next() {
		product, err := scanProduct(rows)
		if err != nil {
			return nil, 0, err
		}
		products = append(products, product)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}
	return products, total, nil
}

func (r *ProductRepository) GetByID(ctx context.Context, id string) (types.Product, error) {
	query := `SELECT ` + productColumns + ` FROM products WHERE id = $1`
	return scanProduct(r.db.QueryRowContext(ctx, query, id))
}

// IncrementViews bumps the view counter and returns the updated product.
func (r *ProductRepository) IncrementViews(ctx context.Context, id string) (types.Product, error) {
	query := `UPDATE products SET views = views + 1 WHERE id = $1 RETURNING ` + productColumns
	return scanProduct(r.db.QueryRowContext(ctx, query, id))
}

// CountByCategory returns the number of products referencing the category.
func (r *ProductRepository) CountByCategory(ctx context.Context, categoryID string) (int64, error) {
	const query = `SELECT COUNT(1) FROM products WHERE category_id = $1`
	var count int64
	if err := r.db.QueryRowContext(ctx, query, categoryID).Scan(&count); err != nil {
		return 0, err
	}
	return count, nil
}

func (r *ProductRepository) Create(ctx context.Context, product types.Product) (types.Product, error) {
	if product.ID == "" {
		product.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	product.CreatedAt = now
	product.UpdatedAt = now

	encoded, err := marshalProduct(product)
	if err != nil {
		return types.Product{}, err
	}

	const query = `
		INSERT INTO products (id, name, description, price, discount_price, category_id, images, stock, sku, tags, specifications, is_active, featured, views, rating_average, rating_count, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18)`
	if _, err := r.db.ExecContext(
		ctx,
		query,
		product.ID,
		product.Name,
		product.Description,
		product.Price,
		product.DiscountPrice,
		product.CategoryID,
		encoded.images,
		product.Stock,
		product.SKU,
		encoded.tags,
		encoded.specs,
		product.IsActive,
		product.Featured,
		product.Views,
		product.Rating.Average,
		product.Rating.Count,
		product.CreatedAt,
		product.UpdatedAt,
	); err != nil {
		return types.Product{}, translate(err)
	}
	return product, nil
}

func (r *ProductRepository) Update(ctx context.Context, product types.Product) (types.Product, error) {
	product.UpdatedAt = time.Now().UTC()

	encoded, err := marshalProduct(product)
	if err != nil {
		return types.Product{}, err
	}

	const query = `
		UPDATE products
		SET name = $1,
			description = $2,
			price = $3,
			discount_price = $4,
			category_id = $5,
			images = $6,
			stock = $7,
			sku = $8,
			tags = $9,
			specifications = $10,
			is_active = $11,
			featured = $12,
			updated_at = $13
		WHERE id = $14`
	result, err := r.db.ExecContext(
		ctx,
		query,
		product.Name,
		product.Description,
		product.Price,
		product.DiscountPrice,
		product.CategoryID,
		encoded.images,
		product.Stock,
		product.SKU,
		encoded.tags,
		encoded.specs,
		product.IsActive,
		product.Featured,
		product.UpdatedAt,
		product.ID,
	)
	if err != nil {
		return types.Product{}, translate(err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return types.Product{}, err
	}
	if affected == 0 {
		return types.Product{}, ErrNotFound
	}
	return product, nil
}

func (r *ProductRepository) Delete(ctx context.Context, id string) error {
	const query = `DELETE FROM products WHERE id = $1`
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
