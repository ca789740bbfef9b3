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

const conversationCollectionName = "conversations"

// ConversationRepository implements domain.ConversationRepository using MongoDB.
type ConversationRepository struct {
	collection *mongo.Collection
	retry      RetryPolicy
	logger     *logger.Logger
}

func NewConversationRepository(db *mongo.Database, retry RetryPolicy, log *logger.Logger) (*ConversationRepository, error) {
	collection := db.Collection(conversationCollectionName)
	l := log.Named("ConversationRepository")

	indexes := []mongo.IndexModel{
		// One conversation per unordered pair and product.
		{Keys: bson.D{{Key: "participant_key", Value: 1}, {Key: "product_id", Value: 1}}, Options: options.Index().SetUnique(true)},
		{Keys: bson.D{{Key: "participants", Value: 1}, {Key: "last_activity_at", Value: -1}}},
	}
	if err := ensureIndexes(collection, indexes); err != nil {
		l.Error("Failed to create indexes for conversations collection", zap.Error(err))
		return nil, fmt.Errorf("failed to create indexes for %s: %w", conversationCollectionName, err)
	}
	l.Info("Successfully ensured indexes for conversations collection")

	return &ConversationRepository{collection: collection, retry: retry, logger: l}, nil
}

func (r *ConversationRepository) Create(ctx context.Context, c *domain.Conversation) error {
	doc, err := fromDomainConversation(c)
	if err != nil {
		return err
	}
	if _, err := r.collection.InsertOne(ctx, doc); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return fmt.Errorf("%w: conversation already exists", domain.ErrConflict)
		}
		r.logger.Error("Failed to insert conversation", zap.Error(err))
		return fmt.Errorf("db insert failed: %w", err)
	}
	c.ID = doc.ID.Hex()
	return nil
}

func (r *ConversationRepository) GetByID(ctx context.Context, id string) (*domain.Conversation, error) {
	oid, err := objectID(id)
	if err != nil {
		return nil, err
	}
	return r.findOne(ctx, bson.M{"_id": oid})
}

func (r *ConversationRepository) GetByParticipants(ctx context.Context, participantKey, productID string) (*domain.Conversation, error) {
	return r.findOne(ctx, bson.M{"participant_key": participantKey, "product_id": productID})
}

func (r *ConversationRepository) findOne(ctx context.Context, filter bson.M) (*domain.Conversation, error) {
	var doc conversationDocument
	err := r.retry.read(ctx, func() error {
		return r.collection.FindOne(ctx, filter).Decode(&doc)
	})
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, domain.ErrNotFound
		}
		r.logger.Error("Failed to find conversation", zap.Error(err))
		return nil, fmt.Errorf("db findone failed: %w", err)
	}
	return doc.toDomain(), nil
}

// ListByUser returns the user's conversations, most recent activity first.
func (r *ConversationRepository) ListByUser(ctx context.Context, userID string, activeOnly bool) ([]*domain.Conversation, error) {
	filter := bson.M{"participants": userID}
	if activeOnly {
		filter["active"] = true
	}
	opts := options.Find().SetSort(bson.D{{Key: "last_activity_at", Value: -1}})

	var docs []*conversationDocument
	err := r.retry.read(ctx, func() error {
		cursor, err := r.collection.Find(ctx, filter, opts)
		if err != nil {
			return err
		}
		defer cursor.Close(ctx)
		return cursor.All(ctx, &docs)
	})
	if err != nil {
		r.logger.Error("Failed to list conversations", zap.Error(err), zap.String("user_id", userID))
		return nil, fmt.Errorf("db find failed: %w", err)
	}

	out := make([]*domain.Conversation, len(docs))
	for i, d := range docs {
		out[i] = d.toDomain()
	}
	return out, nil
}

// NextMessageSeq increments the conversation's counter and returns the new value.
func (r *ConversationRepository) NextMessageSeq(ctx context.Context, id string) (int64, error) {
	oid, err := objectID(id)
	if err != nil {
		return 0, err
	}
	opts := options.FindOneAndUpdate().
		SetReturnDocument(options.After).
		SetProjection(bson.M{"message_seq": 1})

	var doc struct {
		MessageSeq int64 `bson:"message_seq"`
	}
	err = r.collection.FindOneAndUpdate(ctx, bson.M{"_id": oid}, bson.M{"$inc": bson.M{"message_seq": 1}}, opts).Decode(&doc)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return 0, domain.ErrNotFound
		}
		return 0, fmt.Errorf("db findoneandupdate failed: %w", err)
	}
	return doc.MessageSeq, nil
}

// UpdateLastMessage only moves forward: an older message arriving late leaves
// the preview alone.
func (r *ConversationRepository) UpdateLastMessage(ctx context.Context, id string, msg *domain.Message) error {
	oid, err := objectID(id)
	if err != nil {
		return err
	}
	createdAt := msg.CreatedAt
	filter := bson.M{"_id": oid, "last_message_seq": bson.M{"$lt": msg.Seq}}
	update := bson.M{"$set": bson.M{
		"last_message_text": msg.Preview(),
		"last_message_at":   &createdAt,
		"last_message_seq":  msg.Seq,
		"last_activity_at":  createdAt,
		"updated_at":        createdAt,
	}}
	if _, err := r.collection.UpdateOne(ctx, filter, update); err != nil {
		return fmt.Errorf("db update failed: %w", err)
	}
	return nil
}

func (r *ConversationRepository) SetActive(ctx context.Context, id string, active bool, at time.Time) error {
	oid, err := objectID(id)
	if err != nil {
		return err
	}
	res, err := r.collection.UpdateOne(ctx, bson.M{"_id": oid}, bson.M{"$set": bson.M{"active": active, "updated_at": at}})
	if err != nil {
		return fmt.Errorf("db update failed: %w", err)
	}
	if res.MatchedCount == 0 {
		return domain.ErrNotFound
	}
	return nil
}
