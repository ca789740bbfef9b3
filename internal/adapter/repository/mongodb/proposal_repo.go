package mongodb

import (
	"context"
	"errors"
	"fmt"

	"github.com/angola031/Ecoswap-sub003/internal/domain"
	"github.com/angola031/Ecoswap-sub003/internal/platform/logger"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"
)

const proposalCollectionName = "proposals"

// ProposalRepository implements domain.ProposalRepository using MongoDB.
type ProposalRepository struct {
	collection *mongo.Collection
	retry      RetryPolicy
	logger     *logger.Logger
}

func NewProposalRepository(db *mongo.Database, retry RetryPolicy, log *logger.Logger) (*ProposalRepository, error) {
	collection := db.Collection(proposalCollectionName)
	l := log.Named("ProposalRepository")

	indexes := []mongo.IndexModel{
		// At most one pending proposal per conversation and direction.
		{
			Keys: bson.D{{Key: "conversation_id", Value: 1}, {Key: "proposer_id", Value: 1}, {Key: "receiver_id", Value: 1}},
			Options: options.Index().
				SetName("uniq_pending_direction").
				SetUnique(true).
				SetPartialFilterExpression(bson.M{"status": domain.ProposalStatusPending}),
		},
		{Keys: bson.D{{Key: "conversation_id", Value: 1}, {Key: "created_at", Value: -1}}},
		{Keys: bson.D{{Key: "product_id", Value: 1}, {Key: "is_donation", Value: 1}, {Key: "status", Value: 1}}},
		{Keys: bson.D{{Key: "exchange_id", Value: 1}}, Options: options.Index().SetSparse(true)},
		{Keys: bson.D{{Key: "proposer_id", Value: 1}}},
		{Keys: bson.D{{Key: "receiver_id", Value: 1}}},
	}
	if err := ensureIndexes(collection, indexes); err != nil {
		l.Error("Failed to create indexes for proposals collection", zap.Error(err))
		return nil, fmt.Errorf("failed to create indexes for %s: %w", proposalCollectionName, err)
	}
	l.Info("Successfully ensured indexes for proposals collection")

	return &ProposalRepository{collection: collection, retry: retry, logger: l}, nil
}

func (r *ProposalRepository) Create(ctx context.Context, p *domain.Proposal) error {
	doc, err := fromDomainProposal(p)
	if err != nil {
		return err
	}
	if _, err := r.collection.InsertOne(ctx, doc); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			r.logger.Info("Pending proposal already exists",
				zap.String("conversation_id", p.ConversationID),
				zap.String("proposer_id", p.ProposerID),
				zap.String("receiver_id", p.ReceiverID))
			return fmt.Errorf("%w: a proposal in this direction is still pending", domain.ErrDuplicatePending)
		}
		r.logger.Error("Failed to insert proposal", zap.Error(err))
		return fmt.Errorf("db insert failed: %w", err)
	}
	p.ID = doc.ID.Hex()
	return nil
}

func (r *ProposalRepository) GetByID(ctx context.Context, id string) (*domain.Proposal, error) {
	oid, err := objectID(id)
	if err != nil {
		return nil, err
	}
	return r.findOne(ctx, bson.M{"_id": oid})
}

func (r *ProposalRepository) FindPending(ctx context.Context, conversationID, proposerID, receiverID string) (*domain.Proposal, error) {
	return r.findOne(ctx, bson.M{
		"conversation_id": conversationID,
		"proposer_id":     proposerID,
		"receiver_id":     receiverID,
		"status":          domain.ProposalStatusPending,
	})
}

func (r *ProposalRepository) findOne(ctx context.Context, filter bson.M) (*domain.Proposal, error) {
	var doc proposalDocument
	err := r.retry.read(ctx, func() error {
		return r.collection.FindOne(ctx, filter).Decode(&doc)
	})
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, domain.ErrNotFound
		}
		r.logger.Error("Failed to find proposal", zap.Error(err))
		return nil, fmt.Errorf("db findone failed: %w", err)
	}
	return doc.toDomain(), nil
}

// Update writes the mutable fields if the stored version still equals p.Version.
func (r *ProposalRepository) Update(ctx context.Context, p *domain.Proposal) error {
	oid, err := objectID(p.ID)
	if err != nil {
		return err
	}
	doc, err := fromDomainProposal(p)
	if err != nil {
		return err
	}

	set := bson.M{
		"status":      doc.Status,
		"exchange_id": doc.ExchangeID,
		"response":    doc.Response,
		"updated_at":  doc.UpdatedAt,
	}
	if doc.RespondedAt != nil {
		set["responded_at"] = doc.RespondedAt
	}
	update := bson.M{"$set": set, "$inc": bson.M{"version": 1}}

	res, err := r.collection.UpdateOne(ctx, bson.M{"_id": oid, "version": p.Version}, update)
	if err != nil {
		r.logger.Error("Failed to update proposal", zap.Error(err), zap.String("proposal_id", p.ID))
		return fmt.Errorf("db update failed: %w", err)
	}
	if res.MatchedCount == 0 {
		return r.casMiss(ctx, oid, p.Version)
	}
	p.Version++
	return nil
}

func (r *ProposalRepository) casMiss(ctx context.Context, oid primitive.ObjectID, expected int64) error {
	var current struct {
		Version int64 `bson:"version"`
	}
	err := r.collection.FindOne(ctx, bson.M{"_id": oid}, options.FindOne().SetProjection(bson.M{"version": 1})).Decode(&current)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return domain.ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("db findone failed: %w", err)
	}
	r.logger.Debug("Proposal version moved",
		zap.String("proposal_id", oid.Hex()),
		zap.Int64("expected", expected),
		zap.Int64("current", current.Version))
	return domain.ErrConcurrentModification
}

// Delete removes a proposal. Only used to roll back a counter-proposal whose
// original changed underneath it.
func (r *ProposalRepository) Delete(ctx context.Context, id string) error {
	oid, err := objectID(id)
	if err != nil {
		return err
	}
	res, err := r.collection.DeleteOne(ctx, bson.M{"_id": oid})
	if err != nil {
		return fmt.Errorf("db delete failed: %w", err)
	}
	if res.DeletedCount == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (r *ProposalRepository) List(ctx context.Context, filter domain.ProposalFilter) ([]*domain.Proposal, error) {
	query := proposalQuery(filter)
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}})

	var docs []*proposalDocument
	err := r.retry.read(ctx, func() error {
		cursor, err := r.collection.Find(ctx, query, opts)
		if err != nil {
			return err
		}
		defer cursor.Close(ctx)
		return cursor.All(ctx, &docs)
	})
	if err != nil {
		r.logger.Error("Failed to list proposals", zap.Error(err), zap.Any("filter", filter))
		return nil, fmt.Errorf("db find failed: %w", err)
	}

	out := make([]*domain.Proposal, len(docs))
	for i, d := range docs {
		out[i] = d.toDomain()
	}
	return out, nil
}

func proposalQuery(f domain.ProposalFilter) bson.M {
	q := bson.M{}
	if f.ConversationID != "" {
		q["conversation_id"] = f.ConversationID
	}
	if f.ExchangeID != "" {
		q["exchange_id"] = f.ExchangeID
	}
	if f.ProductID != "" {
		q["product_id"] = f.ProductID
	}
	if f.ProposerID != "" {
		q["proposer_id"] = f.ProposerID
	}
	if f.ReceiverID != "" {
		q["receiver_id"] = f.ReceiverID
	}
	if f.ParticipantID != "" {
		q["$or"] = bson.A{bson.M{"proposer_id": f.ParticipantID}, bson.M{"receiver_id": f.ParticipantID}}
	}
	if len(f.Statuses) > 0 {
		q["status"] = bson.M{"$in": f.Statuses}
	}
	if f.DonationOnly {
		q["is_donation"] = true
	}
	return q
}
