package mongostore

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopdesk/apiserver/types"
	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
)

// UserRepository handles persistence for users.
type UserRepository struct {
	coll *mongo.Collection
}

func NewUserRepository(db *mongo.Database) *UserRepository {
	return &UserRepository{coll: db.Collection(usersCollection)}
}

func (r *UserRepository) GetByID(ctx context.Context, id string) (types.User, error) {
	var user types.User
	if err := r.coll.FindOne(ctx, bson.M{"_id": id}).Decode(&user); err != nil {
		return types.User{}, translate(err)
	}
	return user, nil
}

// GetByEmail returns the user including the password hash.
func (r *UserRepository) GetByEmail(ctx context.Context, email string) (types.User, error) {
	var user types.User
	if err := r.coll.FindOne(ctx, bson.M{"email": email}).Decode(&user); err != nil {
		return types.User{}, translate(err)
	}
	return user, nil
}

// ExistsByEmailOrUsername reports whether any user holds the email or the username.
func (r *UserRepository) ExistsByEmailOrUsername(ctx context.Context, email, username string) (bool, error) {
	filter := bson.M{"$or": bson.A{
		bson.M{"email": email},
		bson.M{"username": username},
	}}
	count, err := r.coll.CountDocuments(ctx, filter, options.Count().SetLimit(1))
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

func (r *UserRepository) Create(ctx context.Context, user types.User) (types.User, error) {
	if user.ID == "" {
		user.ID = uuid.NewString()
	}
	now := time.Now().UTC().Truncate(time.Millisecond)
	user.CreatedAt = now
	user.UpdatedAt = now

	if _, err := r.coll.InsertOne(ctx, user); err != nil {
		return types.User{}, translate(err)
	}
	return user, nil
}

// UpdateProfile applies the non-nil fields of update.
func (r *UserRepository) UpdateProfile(ctx context.Context, id string, update types.ProfileUpdate) (types.User, error) {
	set := bson.M{"updatedAt": time.Now().UTC().Truncate(time.Millisecond)}
	if update.Username != nil {
		set["username"] = *update.Username
	}
	if update.Avatar != nil {
		set["avatar"] = *update.Avatar
	}

	var user types.User
	err := r.coll.FindOneAndUpdate(
		ctx,
		bson.M{"_id": id},
		bson.M{"$set": set},
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	).Decode(&user)
	if err != nil {
		return types.User{}, translate(err)
	}
	return user, nil
}
