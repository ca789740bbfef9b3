package usecase

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/angola031/Ecoswap-sub003/internal/domain"
	"github.com/angola031/Ecoswap-sub003/internal/platform/logger"
	"github.com/angola031/Ecoswap-sub003/internal/platform/metrics"
	"go.uber.org/zap"
)

// ConversationUsecase implements the chat side: conversations and their message log.
type ConversationUsecase struct {
	conversations domain.ConversationRepository
	messages      domain.MessageRepository
	products      domain.ProductCatalog
	storage       domain.AttachmentStorage
	events        *eventDispatcher
	metrics       *metrics.MetricsManager
	logger        *logger.Logger
	now           func() time.Time
}

// NewConversationUsecase creates a ConversationUsecase. storage may be nil,
// which disables attachment uploads.
func NewConversationUsecase(
	conversations domain.ConversationRepository,
	messages domain.MessageRepository,
	products domain.ProductCatalog,
	storage domain.AttachmentStorage,
	notifier domain.Notifier,
	m *metrics.MetricsManager,
	log *logger.Logger,
) *ConversationUsecase {
	l := log.Named("ConversationUsecase")
	return &ConversationUsecase{
		conversations: conversations,
		messages:      messages,
		products:      products,
		storage:       storage,
		events:        newEventDispatcher(notifier, l),
		metrics:       m,
		logger:        l,
		now:           utcNow,
	}
}

// CreateOrGetConversation returns the conversation for the unordered pair and
// product, creating it on first contact.
func (uc *ConversationUsecase) CreateOrGetConversation(ctx context.Context, userA, userB, productID string) (*domain.Conversation, error) {
	conv, err := domain.NewConversation(userA, userB, productID, uc.now())
	if err != nil {
		return nil, err
	}
	if productID != "" {
		if _, err := uc.products.GetProduct(ctx, productID); err != nil {
			return nil, err
		}
	}

	existing, err := uc.conversations.GetByParticipants(ctx, conv.ParticipantKey, productID)
	if err == nil {
		return existing, nil
	}
	if !errors.Is(err, domain.ErrNotFound) {
		return nil, err
	}

	if err := uc.conversations.Create(ctx, conv); err != nil {
		if errors.Is(err, domain.ErrConflict) {
			uc.logger.Debug("Conversation created concurrently, re-fetching",
				zap.String("participant_key", conv.ParticipantKey), zap.String("product_id", productID))
			return uc.conversations.GetByParticipants(ctx, conv.ParticipantKey, productID)
		}
		uc.logger.Error("Failed to create conversation", zap.Error(err))
		return nil, err
	}
	uc.logger.Info("Conversation created", zap.String("conversation_id", conv.ID), zap.String("product_id", productID))
	return conv, nil
}

// GetConversation returns a conversation visible to actorID.
func (uc *ConversationUsecase) GetConversation(ctx context.Context, conversationID, actorID string) (*domain.Conversation, error) {
	conv, err := uc.conversations.GetByID(ctx, conversationID)
	if err != nil {
		return nil, err
	}
	if !conv.HasParticipant(actorID) {
		return nil, domain.ErrNotParticipant
	}
	return conv, nil
}

func (uc *ConversationUsecase) ListConversations(ctx context.Context, userID string, activeOnly bool) ([]*domain.Conversation, error) {
	return uc.conversations.ListByUser(ctx, userID, activeOnly)
}

// DeactivateConversation hides a conversation from new messages. Conversations are never deleted.
func (uc *ConversationUsecase) DeactivateConversation(ctx context.Context, conversationID, actorID string) error {
	conv, err := uc.GetConversation(ctx, conversationID, actorID)
	if err != nil {
		return err
	}
	if !conv.Active {
		return nil
	}
	return uc.conversations.SetActive(ctx, conv.ID, false, uc.now())
}

type AppendMessageInput struct {
	ConversationID string
	SenderID       string
	Kind           domain.MessageKind
	Content        domain.MessageContent
}

// AppendMessage adds a message to the conversation log.
func (uc *ConversationUsecase) AppendMessage(ctx context.Context, in AppendMessageInput) (*domain.Message, error) {
	conv, err := uc.openConversationFor(ctx, in.ConversationID, in.SenderID)
	if err != nil {
		return nil, err
	}
	if err := in.Content.Validate(in.Kind); err != nil {
		return nil, err
	}
	if in.Kind == domain.MessageKindText {
		in.Content.Text = strings.TrimSpace(in.Content.Text)
	}

	seq, err := uc.conversations.NextMessageSeq(ctx, conv.ID)
	if err != nil {
		uc.logger.Error("Failed to reserve message sequence", zap.Error(err), zap.String("conversation_id", conv.ID))
		return nil, err
	}
	msg := &domain.Message{
		ConversationID: conv.ID,
		SenderID:       in.SenderID,
		Seq:            seq,
		Kind:           in.Kind,
		Content:        in.Content,
		CreatedAt:      uc.now(),
	}
	if err := uc.messages.Create(ctx, msg); err != nil {
		uc.logger.Error("Failed to store message", zap.Error(err), zap.String("conversation_id", conv.ID))
		return nil, err
	}
	if err := uc.conversations.UpdateLastMessage(ctx, conv.ID, msg); err != nil {
		uc.logger.Warn("Failed to update conversation last message", zap.Error(err), zap.String("conversation_id", conv.ID))
	}

	uc.metrics.MessageAppended(string(msg.Kind))
	uc.events.emit(ctx, domain.Event{
		Kind:       domain.EventMessageCreated,
		ActorID:    in.SenderID,
		TargetID:   conv.OtherParticipant(in.SenderID),
		EntityType: "message",
		EntityID:   msg.ID,
		OccurredAt: msg.CreatedAt,
		Data:       map[string]any{"conversation_id": conv.ID, "kind": string(msg.Kind), "seq": msg.Seq},
	})
	return msg, nil
}

type UploadAttachmentInput struct {
	ConversationID string
	SenderID       string
	FileName       string
	ContentType    string
	Data           io.Reader
	Size           int64
}

// UploadAttachment stores an image and appends an image message referencing it.
func (uc *ConversationUsecase) UploadAttachment(ctx context.Context, in UploadAttachmentInput) (*domain.Message, error) {
	if uc.storage == nil {
		return nil, fmt.Errorf("%w: attachment storage is not configured", domain.ErrInvalidState)
	}
	if !strings.HasPrefix(in.ContentType, "image/") {
		return nil, fmt.Errorf("%w: only images can be attached", domain.ErrInvalidContent)
	}
	if in.Size <= 0 {
		return nil, fmt.Errorf("%w: attachment is empty", domain.ErrInvalidContent)
	}
	if _, err := uc.openConversationFor(ctx, in.ConversationID, in.SenderID); err != nil {
		return nil, err
	}

	url, err := uc.storage.Upload(ctx, in.FileName, in.ContentType, in.Data, in.Size)
	if err != nil {
		uc.logger.Error("Failed to upload attachment", zap.Error(err), zap.String("conversation_id", in.ConversationID))
		return nil, err
	}
	return uc.AppendMessage(ctx, AppendMessageInput{
		ConversationID: in.ConversationID,
		SenderID:       in.SenderID,
		Kind:           domain.MessageKindImage,
		Content: domain.MessageContent{
			Attachment: &domain.Attachment{URL: url, ContentType: in.ContentType, Size: in.Size},
		},
	})
}

// MarkRead marks the reader's unread messages up to and including uptoMessageID.
// It never un-reads a message.
func (uc *ConversationUsecase) MarkRead(ctx context.Context, conversationID, readerID, uptoMessageID string) (int64, error) {
	conv, err := uc.GetConversation(ctx, conversationID, readerID)
	if err != nil {
		return 0, err
	}
	upto, err := uc.messages.GetByID(ctx, uptoMessageID)
	if err != nil {
		return 0, err
	}
	if upto.ConversationID != conv.ID {
		return 0, fmt.Errorf("%w: message %s is not part of this conversation", domain.ErrNotFound, uptoMessageID)
	}
	n, err := uc.messages.MarkRead(ctx, conv.ID, readerID, upto.Seq, uc.now())
	if err != nil {
		uc.logger.Error("Failed to mark messages read", zap.Error(err), zap.String("conversation_id", conv.ID))
		return 0, err
	}
	return n, nil
}

// ListMessages returns a newest-first page. cursor is the NextCursor of the previous page.
func (uc *ConversationUsecase) ListMessages(ctx context.Context, conversationID, readerID string, limit int, cursor string) (*domain.MessagePage, error) {
	if _, err := uc.GetConversation(ctx, conversationID, readerID); err != nil {
		return nil, err
	}
	before, err := decodeCursor(cursor)
	if err != nil {
		return nil, err
	}
	limit = clampLimit(limit)

	msgs, err := uc.messages.ListBefore(ctx, conversationID, before, limit+1)
	if err != nil {
		return nil, err
	}
	page := &domain.MessagePage{Messages: msgs}
	if len(msgs) > limit {
		page.Messages = msgs[:limit]
		page.NextCursor = encodeCursor(msgs[limit-1].Seq)
	}
	return page, nil
}

func (uc *ConversationUsecase) openConversationFor(ctx context.Context, conversationID, senderID string) (*domain.Conversation, error) {
	conv, err := uc.GetConversation(ctx, conversationID, senderID)
	if err != nil {
		return nil, err
	}
	if !conv.Active {
		return nil, fmt.Errorf("%w: conversation is inactive", domain.ErrInvalidState)
	}
	return conv, nil
}
