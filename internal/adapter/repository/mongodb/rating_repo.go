package mongodb

import (
	"context"
	"fmt"

	"github.com/angola031/Ecoswap-sub003/internal/domain"
	"github.com/angola031/Ecoswap-sub003/internal/platform/logger"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"
)

const ratingCollectionName = "ratings"

// RatingRepository implements domain.RatingRepository using MongoDB.
type RatingRepository struct {
	collection *mongo.Collection
	retry      RetryPolicy
	logger     *logger.Logger
}

func NewRatingRepository(db *mongo.Database, retry RetryPolicy, log *logger.Logger) (*RatingRepository, error) {
	collection := db.Collection(ratingCollectionName)
	l := log.Named("RatingRepository")

	indexes := []mongo.IndexModel{
		{Keys: bson.D{{Key: "exchange_id", Value: 1}, {Key: "rater_id", Value: 1}}, Options: options.Index().SetUnique(true)}, // One rating per rater per exchange
		{Keys: bson.D{{Key: "rated_id", Value: 1}, {Key: "created_at", Value: -1}}},
	}
	if err := ensureIndexes(collection, indexes); err != nil {
		l.Error("Failed to create indexes for ratings collection", zap.Error(err))
		return nil, fmt.Errorf("failed to create indexes for %s: %w", ratingCollectionName, err)
	}
	l.Info("Successfully ensured indexes for ratings collection")

	return &RatingRepository{collection: collection, retry: retry, logger: l}, nil
}

func (r *RatingRepository) Create(ctx context.Context, rating *domain.Rating) error {
	doc, err := fromDomainRating(rating)
	if err != nil {
		return err
	}
	if _, err := r.collection.InsertOne(ctx, doc); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			r.logger.Warn("Duplicate rating", zap.String("exchange_id", rating.ExchangeID), zap.String("rater_id", rating.RaterID))
			return domain.ErrAlreadyRated
		}
		r.logger.Error("Failed to insert rating", zap.Error(err))
		return fmt.Errorf("db insert failed: %w", err)
	}
	rating.ID = doc.ID.Hex()
	return nil
}

func (r *RatingRepository) Exists(ctx context.Context, exchangeID, raterID string) (bool, error) {
	var count int64
	err := r.retry.read(ctx, func() error {
		var err error
		count, err = r.collection.CountDocuments(ctx, bson.M{"exchange_id": exchangeID, "rater_id": raterID}, options.Count().SetLimit(1))
		return err
	})
	if err != nil {
		return false, fmt.Errorf("db count failed: %w", err)
	}
	return count > 0, nil
}

func (r *RatingRepository) ListByRated(ctx context.Context, ratedID string, publicOnly bool) ([]*domain.Rating, error) {
	filter := bson.M{"rated_id": ratedID}
	if publicOnly {
		filter["is_public"] = true
	}
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}})

	var docs []*ratingDocument
	err := r.retry.read(ctx, func() error {
		cursor, err := r.collection.Find(ctx, filter, opts)
		if err != nil {
			return err
		}
		defer cursor.Close(ctx)
		return cursor.All(ctx, &docs)
	})
	if err != nil {
		r.logger.Error("Failed to list ratings", zap.Error(err), zap.String("rated_id", ratedID))
		return nil, fmt.Errorf("db find failed: %w", err)
	}

	out := make([]*domain.Rating, len(docs))
	for i, d := range docs {
		out[i] = d.toDomain()
	}
	return out, nil
}

// Summary aggregates every rating the user received, public or not.
func (r *RatingRepository) Summary(ctx context.Context, ratedID string) (*domain.RatingSummary, error) {
	pipeline := mongo.Pipeline{
		{{Key: "$match", Value: bson.D{{Key: "rated_id", Value: ratedID}}}},
		{{Key: "$group", Value: bson.D{
			{Key: "_id", Value: "$rated_id"},
			{Key: "average", Value: bson.D{{Key: "$avg", Value: "$score"}}},
			{Key: "count", Value: bson.D{{Key: "$sum", Value: 1}}},
			{Key: "recommended", Value: bson.D{{Key: "$sum", Value: bson.D{
				{Key: "$cond", Value: bson.A{"$would_recommend", 1, 0}},
			}}}},
		}}},
	}

	var results []struct {
		Average     float64 `bson:"average"`
		Count       int64   `bson:"count"`
		Recommended int64   `bson:"recommended"`
	}
	err := r.retry.read(ctx, func() error {
		cursor, err := r.collection.Aggregate(ctx, pipeline)
		if err != nil {
			return err
		}
		defer cursor.Close(ctx)
		return cursor.All(ctx, &results)
	})
	if err != nil {
		r.logger.Error("Failed to aggregate rating summary", zap.Error(err), zap.String("rated_id", ratedID))
		return nil, fmt.Errorf("db aggregate failed: %w", err)
	}

	summary := &domain.RatingSummary{UserID: ratedID}
	if len(results) == 0 {
		return summary, nil
	}
	summary.Average = results[0].Average
	summary.Count = results[0].Count
	if summary.Count > 0 {
		summary.RecommendRatio = float64(results[0].Recommended) / float64(summary.Count)
	}
	return summary, nil
}
