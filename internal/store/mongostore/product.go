package mongostore

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopdesk/apiserver/internal/store"
	"github.com/shopdesk/apiserver/types"
	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
)

// ProductRepository handles persistence for products.
type ProductRepository struct {
	coll *mongo.Collection
}

func NewProductRepository(db *mongo.Database) *ProductRepository {
	return &ProductRepository{coll: db.Collection(productsCollection)}
}

// List returns one page of products matching q and the total match count.
func (r *ProductRepository) List(ctx context.Context, q types.ProductQuery) ([]types.Product, int64, error) {
	limit := q.Limit
	if limit < 1 {
		limit = 10
	}
	filter := productFilter(q)

	total, err := r.coll.CountDocuments(ctx, filter)
	if err != nil {
		return nil, 0, err
	}

	opts := options.Find().
		SetSort(productSort(q)).
		SetSkip(int64(q.Offset())).
		SetLimit(int64(limit))
	cursor, err := r.coll.Find(ctx, filter, opts)
	if err != nil {
		return nil, 0, err
	}
	products := make([]types.Product, 0, limit)
	if err := cursor.All(ctx, &products); err != nil {
		return nil, 0, err
	}
	return products, total, nil
}

func (r *ProductRepository) GetByID(ctx context.Context, id string) (types.Product, error) {
	var product types.Product
	if err := r.coll.FindOne(ctx, bson.M{"_id": id}).Decode(&product); err != nil {
		return types.Product{}, translate(err)
	}
	return product, nil
}

// IncrementViews bumps the view counter and returns the updated product.
func (r *ProductRepository) IncrementViews(ctx context.Context, id string) (types.Product, error) {
	var product types.Product
	err := r.coll.FindOneAndUpdate(
		ctx,
		bson.M{"_id": id},
		bson.M{"$inc": bson.M{"views": 1}},
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	).Decode(&product)
	if err != nil {
		return types.Product{}, translate(err)
	}
	return product, nil
}

// CountByCategory returns the number of products referencing the category.
func (r *ProductRepository) CountByCategory(ctx context.Context, categoryID string) (int64, error) {
	return r.coll.CountDocuments(ctx, bson.M{"category": categoryID})
}

func (r *ProductRepository) Create(ctx context.Context, product types.Product) (types.Product, error) {
	if product.ID == "" {
		product.ID = uuid.NewString()
	}
	now := time.Now().UTC().Truncate(time.Millisecond)
	product.CreatedAt = now
	product.UpdatedAt = now
	normalize(&product)

	if _, err := r.coll.InsertOne(ctx, product); err != nil {
		return types.Product{}, translate(err)
	}
	return product, nil
}

func (r *ProductRepository) Update(ctx context.Context, product types.Product) (types.Product, error) {
	product.UpdatedAt = time.Now().UTC().Truncate(time.Millisecond)
	normalize(&product)

	set := bson.M{
		"name":           product.Name,
		"description":    product.Description,
		"price":          product.Price,
		"discountPrice":  product.DiscountPrice,
		"category":       product.CategoryID,
		"images":         product.Images,
		"stock":          product.Stock,
		"sku":            product.SKU,
		"tags":           product.Tags,
		"specifications": product.Specifications,
		"isActive":       product.IsActive,
		"featured":       product.Featured,
		"updatedAt":      product.UpdatedAt,
	}
	result, err := r.coll.UpdateOne(ctx, bson.M{"_id": product.ID}, bson.M{"$set": set})
	if err != nil {
		return types.Product{}, translate(err)
	}
	if result.MatchedCount == 0 {
		return types.Product{}, store.ErrNotFound
	}
	return product, nil
}

func (r *ProductRepository) Delete(ctx context.Context, id string) error {
	result, err := r.coll.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return err
	}
	if result.DeletedCount == 0 {
		return store.ErrNotFound
	}
	return nil
}

// normalize stores empty collections as arrays and documents instead of null.
func normalize(product *types.Product) {
	if product.Images == nil {
		product.Images = []types.Image{}
	}
	if product.Tags == nil {
		product.Tags = []string{}
	}
	if product.Specifications == nil {
		product.Specifications = map[string]string{}
	}
}
