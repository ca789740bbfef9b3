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

const messageCollectionName = "messages"

// MessageRepository implements domain.MessageRepository using MongoDB.
type MessageRepository struct {
	collection *mongo.Collection
	retry      RetryPolicy
	logger     *logger.Logger
}

func NewMessageRepository(db *mongo.Database, retry RetryPolicy, log *logger.Logger) (*MessageRepository, error) {
	collection := db.Collection(messageCollectionName)
	l := log.Named("MessageRepository")

	indexes := []mongo.IndexModel{
		{Keys: bson.D{{Key: "conversation_id", Value: 1}, {Key: "seq", Value: -1}}, Options: options.Index().SetUnique(true)},
	}
	if err := ensureIndexes(collection, indexes); err != nil {
		l.Error("Failed to create indexes for messages collection", zap.Error(err))
	} else {
		l.Info("Successfully ensured indexes for messages collection")
	}
	return &MessageRepository{collection: collection, retry: retry, logger: l}, nil
}

func (r *MessageRepository) Create(ctx context.Context, m *domain.Message) error {
	doc, err := fromDomainMessage(m)
	if err != nil {
		return err
	}
	if _, err := r.collection.InsertOne(ctx, doc); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return fmt.Errorf("%w: message sequence %d already used", domain.ErrConflict, m.Seq)
		}
		r.logger.Error("Failed to insert message", zap.Error(err), zap.String("conversation_id", m.ConversationID))
		return fmt.Errorf("db insert failed: %w", err)
	}
	m.ID = doc.ID.Hex()
	return nil
}

func (r *MessageRepository) GetByID(ctx context.Context, id string) (*domain.Message, error) {
	oid, err := objectID(id)
	if err != nil {
		return nil, err
	}
	var doc messageDocument
	err = r.retry.read(ctx, func() error {
		return r.collection.FindOne(ctx, bson.M{"_id": oid}).Decode(&doc)
	})
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("db findone failed: %w", err)
	}
	return doc.toDomain(), nil
}

func (r *MessageRepository) ListBefore(ctx context.Context, conversationID string, beforeSeq int64, limit int) ([]*domain.Message, error) {
	filter := bson.M{"conversation_id": conversationID}
	if beforeSeq > 0 {
		filter["seq"] = bson.M{"$lt": beforeSeq}
	}
	opts := options.Find().SetSort(bson.D{{Key: "seq", Value: -1}}).SetLimit(int64(limit))

	var docs []*messageDocument
	err := r.retry.read(ctx, func() error {
		cursor, err := r.collection.Find(ctx, filter, opts)
		if err != nil {
			return err
		}
		defer cursor.Close(ctx)
		return cursor.All(ctx, &docs)
	})
	if err != nil {
		r.logger.Error("Failed to list messages", zap.Error(err), zap.String("conversation_id", conversationID))
		return nil, fmt.Errorf("db find failed: %w", err)
	}

	out := make([]*domain.Message, len(docs))
	for i, d := range docs {
		out[i] = d.toDomain()
	}
	return out, nil
}

// MarkRead never touches messages that already carry a read_at.
func (r *MessageRepository) MarkRead(ctx context.Context, conversationID, readerID string, uptoSeq int64, at time.Time) (int64, error) {
	filter := bson.M{
		"conversation_id": conversationID,
		"sender_id":       bson.M{"$ne": readerID},
		"seq":             bson.M{"$lte": uptoSeq},
		"read_at":         nil,
	}
	res, err := r.collection.UpdateMany(ctx, filter, bson.M{"$set": bson.M{"read_at": at}})
	if err != nil {
		r.logger.Error("Failed to mark messages read", zap.Error(err), zap.String("conversation_id", conversationID))
		return 0, fmt.Errorf("db update failed: %w", err)
	}
	return res.ModifiedCount, nil
}
