package mongostore

import (
	"context"
	"errors"

	"github.com/microblog-api/internal/models"
	"github.com/microblog-api/internal/repository"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// UserRepository handles user documents
type UserRepository struct {
	coll *mongo.Collection
}

// NewUserRepository creates a new UserRepository
func NewUserRepository(db *mongo.Database) *UserRepository {
	return &UserRepository{coll: db.Collection(usersCollection)}
}

func (r *UserRepository) Create(ctx context.Context, user *models.User) error {
	if user.Tokens == nil {
		user.Tokens = []string{}
	}
	_, err := r.coll.InsertOne(ctx, user)
	if mongo.IsDuplicateKeyError(err) {
		return repository.ErrDuplicateUsername
	}
	return err
}

func (r *UserRepository) GetByID(ctx context.Context, id string) (*models.User, error) {
	return r.findOne(ctx, bson.M{"_id": id})
}

func (r *UserRepository) GetByUsername(ctx context.Context, username string) (*models.User, error) {
	return r.findOne(ctx, bson.M{"username": username})
}

func (r *UserRepository) ExistsByUsername(ctx context.Context, username string) (bool, error) {
	n, err := r.coll.CountDocuments(ctx, bson.M{"username": username}, options.Count().SetLimit(1))
	return n > 0, err
}

func (r *UserRepository) Update(ctx context.Context, user *models.User) error {
	set := bson.M{
		"username":  user.Username,
		"email":     user.Email,
		"password":  user.PasswordHash,
		"updatedAt": user.UpdatedAt,
	}
	update := bson.M{"$set": set}
	if len(user.Avatar) > 0 {
		set["avatar"] = user.Avatar
	} else {
		update["$unset"] = bson.M{"avatar": ""}
	}

	res, err := r.coll.UpdateOne(ctx, bson.M{"_id": user.ID}, update)
	if mongo.IsDuplicateKeyError(err) {
		return repository.ErrDuplicateUsername
	}
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return repository.ErrUserNotFound
	}
	return nil
}

func (r *UserRepository) AddToken(ctx context.Context, userID, token string) error {
	return r.updateTokens(ctx, userID, bson.M{"$push": bson.M{"tokens": token}})
}

func (r *UserRepository) RemoveToken(ctx context.Context, userID, token string) error {
	return r.updateTokens(ctx, userID, bson.M{"$pull": bson.M{"tokens": token}})
}

func (r *UserRepository) ClearTokens(ctx context.Context, userID string) error {
	return r.updateTokens(ctx, userID, bson.M{"$set": bson.M{"tokens": bson.A{}}})
}

func (r *UserRepository) ListIDsWithTokens(ctx context.Context) ([]string, error) {
	values, err := r.coll.Distinct(ctx, "_id", bson.M{"tokens.0": bson.M{"$exists": true}})
	if err != nil {
		return nil, err
	}
	ids := make([]string, 0, len(values))
	for _, v := range values {
		if id, ok := v.(string); ok {
			ids = append(ids, id)
		}
	}
	return ids, nil
}

func (r *UserRepository) Delete(ctx context.Context, id string) error {
	res, err := r.coll.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return err
	}
	if res.DeletedCount == 0 {
		return repository.ErrUserNotFound
	}
	return nil
}

func (r *UserRepository) findOne(ctx context.Context, filter bson.M) (*models.User, error) {
	var user models.User
	if err := r.coll.FindOne(ctx, filter).Decode(&user); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, repository.ErrUserNotFound
		}
		return nil, err
	}
	return &user, nil
}

func (r *UserRepository) updateTokens(ctx context.Context, userID string, update bson.M) error {
	res, err := r.coll.UpdateOne(ctx, bson.M{"_id": userID}, update)
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return repository.ErrUserNotFound
	}
	return nil
}
