package mongostore

import (
	"context"
	"errors"
	"time"

	"github.com/microblog-api/internal/models"
	"github.com/microblog-api/internal/repository"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// TweetRepository handles tweet documents
type TweetRepository struct {
	coll *mongo.Collection
}

// NewTweetRepository creates a new TweetRepository
func NewTweetRepository(db *mongo.Database) *TweetRepository {
	return &TweetRepository{coll: db.Collection(tweetsCollection)}
}

func (r *TweetRepository) Create(ctx context.Context, tweet *models.Tweet) error {
	// $push fails on a null field, so arrays are always stored as arrays
	if tweet.Pictures == nil {
		tweet.Pictures = []string{}
	}
	if tweet.Videos == nil {
		tweet.Videos = []string{}
	}
	if tweet.Comments == nil {
		tweet.Comments = []models.Comment{}
	}
	_, err := r.coll.InsertOne(ctx, tweet)
	return err
}

func (r *TweetRepository) GetByID(ctx context.Context, id string) (*models.Tweet, error) {
	return r.findOne(ctx, bson.M{"_id": id})
}

func (r *TweetRepository) GetByIDAndAuthor(ctx context.Context, id, authorID string) (*models.Tweet, error) {
	return r.findOne(ctx, bson.M{"_id": id, "author": authorID})
}

func (r *TweetRepository) List(ctx context.Context, q repository.TweetQuery) ([]models.Tweet, error) {
	filter := bson.M{}
	if q.Username != "" {
		filter["username"] = q.Username
	}

	field := q.SortField
	if field == "" {
		field = repository.SortCreatedAt
	}
	dir := 1
	if q.SortDesc {
		dir = -1
	}

	opts := options.Find().
		SetSort(bson.D{{Key: string(field), Value: dir}, {Key: "_id", Value: dir}}).
		SetSkip(int64(q.Skip)).
		SetLimit(int64(q.Limit))

	cursor, err := r.coll.Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	tweets := []models.Tweet{}
	if err := cursor.All(ctx, &tweets); err != nil {
		return nil, err
	}
	return tweets, nil
}

func (r *TweetRepository) UpdateByIDAndAuthor(ctx context.Context, id, authorID string, patch repository.TweetPatch) (*models.Tweet, error) {
	set := bson.M{"updatedAt": patch.UpdatedAt}
	if patch.Content != nil {
		set["content"] = *patch.Content
	}
	if patch.Pictures != nil {
		set["pictures"] = *patch.Pictures
	}
	if patch.Videos != nil {
		set["videos"] = *patch.Videos
	}
	return r.findOneAndUpdate(ctx, bson.M{"_id": id, "author": authorID}, bson.M{"$set": set}, repository.ErrTweetNotFound)
}

func (r *TweetRepository) DeleteByIDAndAuthor(ctx context.Context, id, authorID string) (*models.Tweet, error) {
	var tweet models.Tweet
	err := r.coll.FindOneAndDelete(ctx, bson.M{"_id": id, "author": authorID}).Decode(&tweet)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, repository.ErrTweetNotFound
		}
		return nil, err
	}
	return &tweet, nil
}

func (r *TweetRepository) AddComment(ctx context.Context, tweetID string, comment models.Comment) (*models.Tweet, error) {
	var tweet models.Tweet
	err := r.coll.FindOneAndUpdate(ctx,
		bson.M{"_id": tweetID},
		bson.M{"$push": bson.M{"comments": comment}},
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	).Decode(&tweet)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, repository.ErrTweetNotFound
		}
		return nil, err
	}
	return &tweet, nil
}

func (r *TweetRepository) UpdateComment(ctx context.Context, tweetID, commentID, content string, updatedAt time.Time) (*models.Tweet, error) {
	return r.findOneAndUpdate(ctx,
		bson.M{"_id": tweetID, "comments._id": commentID},
		bson.M{"$set": bson.M{"comments.$.content": content, "updatedAt": updatedAt}},
		repository.ErrCommentNotFound,
	)
}

func (r *TweetRepository) DeleteComment(ctx context.Context, tweetID, commentID string, updatedAt time.Time) (*models.Tweet, error) {
	return r.findOneAndUpdate(ctx,
		bson.M{"_id": tweetID, "comments._id": commentID},
		bson.M{
			"$pull": bson.M{"comments": bson.M{"_id": commentID}},
			"$set":  bson.M{"updatedAt": updatedAt},
		},
		repository.ErrCommentNotFound,
	)
}

func (r *TweetRepository) RenameAuthor(ctx context.Context, authorID, username string) (int64, error) {
	res, err := r.coll.UpdateMany(ctx,
		bson.M{"author": authorID},
		bson.M{"$set": bson.M{"username": username}},
	)
	if err != nil {
		return 0, err
	}
	return res.MatchedCount, nil
}

func (r *TweetRepository) RenameCommentAuthor(ctx context.Context, authorID, username string) (int64, error) {
	opts := options.Update().SetArrayFilters(options.ArrayFilters{
		Filters: []interface{}{bson.M{"c.author": authorID}},
	})
	res, err := r.coll.UpdateMany(ctx,
		bson.M{"comments.author": authorID},
		bson.M{"$set": bson.M{"comments.$[c].username": username}},
		opts,
	)
	if err != nil {
		return 0, err
	}
	return res.MatchedCount, nil
}

func (r *TweetRepository) DeleteByAuthor(ctx context.Context, authorID string) (int64, error) {
	res, err := r.coll.DeleteMany(ctx, bson.M{"author": authorID})
	if err != nil {
		return 0, err
	}
	return res.DeletedCount, nil
}

// findOneAndUpdate returns the updated document, or notFound when the
// filter matches nothing.
func (r *TweetRepository) findOneAndUpdate(ctx context.Context, filter, update bson.M, notFound error) (*models.Tweet, error) {
	var tweet models.Tweet
	err := r.coll.FindOneAndUpdate(ctx, filter, update,
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	).Decode(&tweet)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, notFound
		}
		return nil, err
	}
	return &tweet, nil
}

func (r *TweetRepository) findOne(ctx context.Context, filter bson.M) (*models.Tweet, error) {
	var tweet models.Tweet
	if err := r.coll.FindOne(ctx, filter).Decode(&tweet); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, repository.ErrTweetNotFound
		}
		return nil, err
	}
	return &tweet, nil
}
