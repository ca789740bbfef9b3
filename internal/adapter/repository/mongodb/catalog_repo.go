package mongodb

import (
	"context"
	"errors"
	"fmt"

	"github.com/angola031/Ecoswap-sub003/internal/domain"
	"github.com/angola031/Ecoswap-sub003/internal/platform/logger"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"
)

// Collections owned by the listing and user services. This service only reads them.
const (
	listingCollectionName = "listings"
	userCollectionName    = "users"
)

// ProductCatalog implements domain.ProductCatalog over the listings collection.
type ProductCatalog struct {
	collection *mongo.Collection
	retry      RetryPolicy
	logger     *logger.Logger
}

func NewProductCatalog(db *mongo.Database, retry RetryPolicy, log *logger.Logger) *ProductCatalog {
	return &ProductCatalog{
		collection: db.Collection(listingCollectionName),
		retry:      retry,
		logger:     log.Named("ProductCatalog"),
	}
}

func (c *ProductCatalog) GetProduct(ctx context.Context, id string) (*domain.Product, error) {
	oid, err := objectID(id)
	if err != nil {
		return nil, err
	}
	var doc productDocument
	err = c.retry.read(ctx, func() error {
		return c.collection.FindOne(ctx, bson.M{"_id": oid}).Decode(&doc)
	})
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, fmt.Errorf("%w: product %s", domain.ErrNotFound, id)
		}
		c.logger.Error("Failed to get product", zap.Error(err), zap.String("product_id", id))
		return nil, fmt.Errorf("db findone failed: %w", err)
	}
	return doc.toDomain(), nil
}

func (c *ProductCatalog) ListDonations(ctx context.Context, excludeOwnerID string, page, limit int) ([]*domain.Product, int64, error) {
	filter := bson.M{
		"transaction_type": domain.TransactionTypeDonation,
		"status":           domain.ProductStatusActive,
	}
	if excludeOwnerID != "" {
		filter["user_id"] = bson.M{"$ne": excludeOwnerID}
	}
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}})
	if limit > 0 {
		opts.SetLimit(int64(limit))
		if page > 0 {
			opts.SetSkip(int64(page-1) * int64(limit))
		}
	}

	var (
		docs  []*productDocument
		total int64
	)
	err := c.retry.read(ctx, func() error {
		cursor, err := c.collection.Find(ctx, filter, opts)
		if err != nil {
			return err
		}
		defer cursor.Close(ctx)
		if err := cursor.All(ctx, &docs); err != nil {
			return err
		}
		total, err = c.collection.CountDocuments(ctx, filter)
		return err
	})
	if err != nil {
		c.logger.Error("Failed to list donations", zap.Error(err))
		return nil, 0, fmt.Errorf("db find failed: %w", err)
	}

	out := make([]*domain.Product, len(docs))
	for i, d := range docs {
		out[i] = d.toDomain()
	}
	return out, total, nil
}

// UserDirectory implements domain.UserDirectory over the users collection.
type UserDirectory struct {
	collection *mongo.Collection
	retry      RetryPolicy
	logger     *logger.Logger
}

func NewUserDirectory(db *mongo.Database, retry RetryPolicy, log *logger.Logger) *UserDirectory {
	return &UserDirectory{
		collection: db.Collection(userCollectionName),
		retry:      retry,
		logger:     log.Named("UserDirectory"),
	}
}

// Exists reports whether an active user with this ID exists.
func (u *UserDirectory) Exists(ctx context.Context, userID string) (bool, error) {
	oid, err := objectID(userID)
	if err != nil {
		return false, nil
	}
	var count int64
	err = u.retry.read(ctx, func() error {
		var err error
		count, err = u.collection.CountDocuments(ctx,
			bson.M{"_id": oid, "is_active": bson.M{"$ne": false}},
			options.Count().SetLimit(1))
		return err
	})
	if err != nil {
		u.logger.Error("Failed to check user", zap.Error(err), zap.String("user_id", userID))
		return false, fmt.Errorf("db count failed: %w", err)
	}
	return count > 0, nil
}

func (u *UserDirectory) GetEmailByID(ctx context.Context, userID string) (string, error) {
	oid, err := objectID(userID)
	if err != nil {
		return "", err
	}
	var userDoc struct {
		Email string `bson:"email"`
	}
	err = u.retry.read(ctx, func() error {
		return u.collection.FindOne(ctx, bson.M{"_id": oid}, options.FindOne().SetProjection(bson.M{"email": 1})).Decode(&userDoc)
	})
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return "", domain.ErrNotFound
		}
		return "", fmt.Errorf("db findone failed: %w", err)
	}
	return userDoc.Email, nil
}
