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

// CategoryRepository handles persistence for categories.
type CategoryRepository struct {
	coll *mongo.Collection
}

func NewCategoryRepository(db *mongo.Database) *CategoryRepository {
	return &CategoryRepository{coll: db.Collection(categoriesCollection)}
}

// List returns categories newest first, optionally filtered by activity.
func (r *CategoryRepository) List(ctx context.Context, q types.CategoryQuery) ([]types.Category, error) {
	filter := bson.M{}
	if q.IsActive != nil {
		filter["isActive"] = *q.IsActive
	}

	cursor, err := r.coll.Find(ctx, filter, options.Find().SetSort(bson.D{{Key: "createdAt", Value: -1}}))
	if err != nil {
		return nil, err
	}
	categories := []types.Category{}
	if err := cursor.All(ctx, &categories); err != nil {
		return nil, err
	}
	return categories, nil
}

func (r *CategoryRepository) GetByID(ctx context.Context, id string) (types.Category, error) {
	var category types.Category
	if err := r.coll.FindOne(ctx, bson.M{"_id": id}).Decode(&category); err != nil {
		return types.Category{}, translate(err)
	}
	return category, nil
}

// Summaries returns the summaries of the given categories keyed by id.
// Unknown ids are omitted.
func (r *CategoryRepository) Summaries(ctx context.Context, ids []string) (map[string]types.CategorySummary, error) {
	summaries := make(map[string]types.CategorySummary, len(ids))
	if len(ids) == 0 {
		return summaries, nil
	}

	cursor, err := r.coll.Find(
		ctx,
		bson.M{"_id": bson.M{"$in": ids}},
		options.Find().SetProjection(bson.M{"name": 1, "description": 1}),
	)
	if err != nil {
		return nil, err
	}
	var found []types.CategorySummary
	if err := cursor.All(ctx, &found); err != nil {
		return nil, err
	}
	for _, s := range found {
		summaries[s.ID] = s
	}
	return summaries, nil
}

func (r *CategoryRepository) Create(ctx context.Context, category types.Category) (types.Category, error) {
	if category.ID == "" {
		category.ID = uuid.NewString()
	}
	now := time.Now().UTC().Truncate(time.Millisecond)
	category.CreatedAt = now
	category.UpdatedAt = now

	if _, err := r.coll.InsertOne(ctx, category); err != nil {
		return types.Category{}, translate(err)
	}
	return category, nil
}

func (r *CategoryRepository) Update(ctx context.Context, category types.Category) (types.Category, error) {
	category.UpdatedAt = time.Now().UTC().Truncate(time.Millisecond)

	result, err := r.coll.ReplaceOne(ctx, bson.M{"_id": category.ID}, category)
	if err != nil {
		return types.Category{}, translate(err)
	}
	if result.MatchedCount == 0 {
		return types.Category{}, store.ErrNotFound
	}
	return category, nil
}

func (r *CategoryRepository) Delete(ctx context.Context, id string) error {
	result, err := r.coll.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return err
	}
	if result.DeletedCount == 0 {
		return store.ErrNotFound
	}
	return nil
}
