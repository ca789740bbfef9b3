package mongodb

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/angola031/Ecoswap-sub003/internal/domain"
	"github.com/angola031/Ecoswap-sub003/internal/platform/logger"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"
)

const (
	exchangeCollectionName      = "exchanges"
	donationClaimCollectionName = "donation_claims"
)

// ExchangeRepository implements domain.ExchangeRepository using MongoDB.
// Donation claims live in their own collection keyed by product ID.
type ExchangeRepository struct {
	collection *mongo.Collection
	claims     *mongo.Collection
	retry      RetryPolicy
	logger     *logger.Logger
}

func NewExchangeRepository(db *mongo.Database, retry RetryPolicy, log *logger.Logger) (*ExchangeRepository, error) {
	collection := db.Collection(exchangeCollectionName)
	l := log.Named("ExchangeRepository")

	indexes := []mongo.IndexModel{
		// An accepted proposal yields at most one exchange.
		{
			Keys: bson.D{{Key: "proposal_id", Value: 1}},
			Options: options.Index().
				SetName("uniq_proposal").
				SetUnique(true).
				SetPartialFilterExpression(bson.M{"proposal_id": bson.M{"$exists": true}}),
		},
		{Keys: bson.D{{Key: "participants", Value: 1}, {Key: "proposed_at", Value: -1}}},
		{Keys: bson.D{{Key: "product_id", Value: 1}, {Key: "is_donation", Value: 1}, {Key: "status", Value: 1}}},
	}
	if err := ensureIndexes(collection, indexes); err != nil {
		l.Error("Failed to create indexes for exchanges collection", zap.Error(err))
		return nil, fmt.Errorf("failed to create indexes for %s: %w", exchangeCollectionName, err)
	}
	l.Info("Successfully ensured indexes for exchanges collection")

	return &ExchangeRepository{
		collection: collection,
		claims:     db.Collection(donationClaimCollectionName),
		retry:      retry,
		logger:     l,
	}, nil
}

func (r *ExchangeRepository) Create(ctx context.Context, e *domain.Exchange) error {
	doc, err := fromDomainExchange(e)
	if err != nil {
		return err
	}
	if _, err := r.collection.InsertOne(ctx, doc); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return fmt.Errorf("%w: proposal %s already has an exchange", domain.ErrConflict, e.ProposalID)
		}
		r.logger.Error("Failed to insert exchange", zap.Error(err))
		return fmt.Errorf("db insert failed: %w", err)
	}
	e.ID = doc.ID.Hex()
	return nil
}

func (r *ExchangeRepository) GetByID(ctx context.Context, id string) (*domain.Exchange, error) {
	oid, err := objectID(id)
	if err != nil {
		return nil, err
	}
	var doc exchangeDocument
	err = r.retry.read(ctx, func() error {
		return r.collection.FindOne(ctx, bson.M{"_id": oid}).Decode(&doc)
	})
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, domain.ErrNotFound
		}
		r.logger.Error("Failed to get exchange", zap.Error(err), zap.String("exchange_id", id))
		return nil, fmt.Errorf("db findone failed: %w", err)
	}
	return doc.toDomain(), nil
}

// Update replaces the mutable state if the stored version still equals e.Version.
func (r *ExchangeRepository) Update(ctx context.Context, e *domain.Exchange) error {
	oid, err := objectID(e.ID)
	if err != nil {
		return err
	}
	doc, err := fromDomainExchange(e)
	if err != nil {
		return err
	}

	update := bson.M{
		"$set": bson.M{
			"status":              doc.Status,
			"agreed_price":        doc.AgreedPrice,
			"extra_amount":        doc.ExtraAmount,
			"conditions":          doc.Conditions,
			"meeting":             doc.Meeting,
			"validations":         doc.Validations,
			"rejection_reason":    doc.RejectionReason,
			"cancellation_reason": doc.CancellationReason,
			"cancelled_by":        doc.CancelledBy,
			"responded_at":        doc.RespondedAt,
			"completed_at":        doc.CompletedAt,
			"updated_at":          doc.UpdatedAt,
		},
		"$inc": bson.M{"version": 1},
	}

	res, err := r.collection.UpdateOne(ctx, bson.M{"_id": oid, "version": e.Version}, update)
	if err != nil {
		r.logger.Error("Failed to update exchange", zap.Error(err), zap.String("exchange_id", e.ID))
		return fmt.Errorf("db update failed: %w", err)
	}
	if res.MatchedCount == 0 {
		count, errCount := r.collection.CountDocuments(ctx, bson.M{"_id": oid})
		if errCount != nil {
			return fmt.Errorf("db count failed: %w", errCount)
		}
		if count == 0 {
			return domain.ErrNotFound
		}
		return domain.ErrConcurrentModification
	}
	e.Version++
	return nil
}

func (r *ExchangeRepository) List(ctx context.Context, filter domain.ExchangeFilter) ([]*domain.Exchange, error) {
	query := bson.M{}
	if filter.ProposerID != "" {
		query["proposer_id"] = filter.ProposerID
	}
	if filter.ReceiverID != "" {
		query["receiver_id"] = filter.ReceiverID
	}
	if filter.ParticipantID != "" {
		query["participants"] = filter.ParticipantID
	}
	if filter.ProductID != "" {
		query["product_id"] = filter.ProductID
	}
	if filter.ProposalID != "" {
		query["proposal_id"] = filter.ProposalID
	}
	if len(filter.Statuses) > 0 {
		query["status"] = bson.M{"$in": filter.Statuses}
	}
	if filter.DonationOnly {
		query["is_donation"] = true
	}
	opts := options.Find().SetSort(bson.D{{Key: "proposed_at", Value: -1}})

	var docs []*exchangeDocument
	err := r.retry.read(ctx, func() error {
		cursor, err := r.collection.Find(ctx, query, opts)
		if err != nil {
			return err
		}
		defer cursor.Close(ctx)
		return cursor.All(ctx, &docs)
	})
	if err != nil {
		r.logger.Error("Failed to list exchanges", zap.Error(err), zap.Any("filter", filter))
		return nil, fmt.Errorf("db find failed: %w", err)
	}

	out := make([]*domain.Exchange, len(docs))
	for i, d := range docs {
		out[i] = d.toDomain()
	}
	return out, nil
}

// ClaimDonation inserts the claim document for productID. Concurrent claims
// race on the _id key and only one insert succeeds.
func (r *ExchangeRepository) ClaimDonation(ctx context.Context, productID, holderID string) error {
	doc := donationClaimDocument{ProductID: productID, HolderID: holderID, ClaimedAt: time.Now().UTC()}
	_, err := r.claims.InsertOne(ctx, doc)
	if err == nil {
		return nil
	}
	if !mongo.IsDuplicateKeyError(err) {
		r.logger.Error("Failed to claim donation", zap.Error(err), zap.String("product_id", productID))
		return fmt.Errorf("db insert failed: %w", err)
	}

	var current donationClaimDocument
	if err := r.claims.FindOne(ctx, bson.M{"_id": productID}).Decode(&current); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			// released between the insert and the read
			return fmt.Errorf("%w: donation claim changed, retry", domain.ErrConcurrentModification)
		}
		return fmt.Errorf("db findone failed: %w", err)
	}
	if current.HolderID != holderID {
		return fmt.Errorf("%w: this donation was already assigned", domain.ErrInvalidState)
	}
	return nil
}

func (r *ExchangeRepository) ReleaseDonation(ctx context.Context, productID, holderID string) error {
	res, err := r.claims.DeleteOne(ctx, bson.M{"_id": productID, "holder_id": holderID})
	if err != nil {
		r.logger.Error("Failed to release donation claim", zap.Error(err), zap.String("product_id", productID))
		return fmt.Errorf("db delete failed: %w", err)
	}
	if res.DeletedCount > 0 {
		r.logger.Info("Donation claim released", zap.String("product_id", productID), zap.String("holder_id", holderID))
	}
	return nil
}
