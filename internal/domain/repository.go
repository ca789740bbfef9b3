package domain

import (
	"context"
	"io"
	"time"
)

// ConversationRepository persists conversations. Create returns ErrConflict
// when a conversation for the same participant pair and product already exists.
type ConversationRepository interface {
	Create(ctx context.Context, c *Conversation) error
	GetByID(ctx context.Context, id string) (*Conversation, error)
	GetByParticipants(ctx context.Context, participantKey, productID string) (*Conversation, error)
	ListByUser(ctx context.Context, userID string, activeOnly bool) ([]*Conversation, error)
	// NextMessageSeq atomically reserves the next message sequence number.
	NextMessageSeq(ctx context.Context, id string) (int64, error)
	// UpdateLastMessage advances the last-message fields only if msg.Seq is newer.
	UpdateLastMessage(ctx context.Context, id string, msg *Message) error
	SetActive(ctx context.Context, id string, active bool, at time.Time) error
}

type MessageRepository interface {
	Create(ctx context.Context, m *Message) error
	GetByID(ctx context.Context, id string) (*Message, error)
	// ListBefore returns up to limit messages with Seq < beforeSeq, newest first.
	// A beforeSeq of 0 starts from the newest message.
	ListBefore(ctx context.Context, conversationID string, beforeSeq int64, limit int) ([]*Message, error)
	// MarkRead sets ReadAt on unread messages not sent by readerID with Seq <= uptoSeq.
	MarkRead(ctx context.Context, conversationID, readerID string, uptoSeq int64, at time.Time) (int64, error)
}

// ProposalFilter selects proposals. Empty fields do not filter.
type ProposalFilter struct {
	ConversationID string
	ExchangeID     string
	ProductID      string
	ProposerID     string
	ReceiverID     string
	ParticipantID  string
	Statuses       []ProposalStatus
	DonationOnly   bool
}

// ProposalRepository persists proposals. Update is a compare-and-swap on
// Version: it fails with ErrConcurrentModification when the stored version
// differs, and increments p.Version on success. Create fails with
// ErrDuplicatePending when a pending proposal exists in the same direction.
type ProposalRepository interface {
	Create(ctx context.Context, p *Proposal) error
	GetByID(ctx context.Context, id string) (*Proposal, error)
	Update(ctx context.Context, p *Proposal) error
	Delete(ctx context.Context, id string) error
	FindPending(ctx context.Context, conversationID, proposerID, receiverID string) (*Proposal, error)
	List(ctx context.Context, filter ProposalFilter) ([]*Proposal, error)
}

// ExchangeFilter selects exchanges. Empty fields do not filter.
type ExchangeFilter struct {
	ProposerID    string
	ReceiverID    string
	ParticipantID string
	ProductID     string
	ProposalID    string
	Statuses      []ExchangeStatus
	DonationOnly  bool
}

// ExchangeRepository persists exchanges. Update follows the same
// compare-and-swap contract as ProposalRepository.Update. Create fails with
// ErrConflict when an exchange already records the same proposal.
type ExchangeRepository interface {
	Create(ctx context.Context, e *Exchange) error
	GetByID(ctx context.Context, id string) (*Exchange, error)
	Update(ctx context.Context, e *Exchange) error
	List(ctx context.Context, filter ExchangeFilter) ([]*Exchange, error)
	// ClaimDonation atomically assigns a donation product to holderID. It
	// fails with ErrInvalidState when another holder owns the claim; claiming
	// again with the same holder succeeds.
	ClaimDonation(ctx context.Context, productID, holderID string) error
	// ReleaseDonation drops the claim if holderID still owns it.
	ReleaseDonation(ctx context.Context, productID, holderID string) error
}

// RatingRepository persists ratings. Create fails with ErrAlreadyRated on a
// second rating by the same rater for the same exchange.
type RatingRepository interface {
	Create(ctx context.Context, r *Rating) error
	Exists(ctx context.Context, exchangeID, raterID string) (bool, error)
	ListByRated(ctx context.Context, ratedID string, publicOnly bool) ([]*Rating, error)
	Summary(ctx context.Context, ratedID string) (*RatingSummary, error)
}

// ProductCatalog is the read-only product reference.
type ProductCatalog interface {
	GetProduct(ctx context.Context, id string) (*Product, error)
	// ListDonations returns active donation products not owned by excludeOwnerID.
	ListDonations(ctx context.Context, excludeOwnerID string, page, limit int) ([]*Product, int64, error)
}

// UserDirectory is the read-only user reference.
type UserDirectory interface {
	Exists(ctx context.Context, userID string) (bool, error)
	GetEmailByID(ctx context.Context, userID string) (string, error)
}

// IdentityResolver maps an opaque credential to a user ID. It returns
// ErrNotFound when the credential does not resolve to a known user.
type IdentityResolver interface {
	Resolve(ctx context.Context, credential string) (string, error)
}

// AttachmentStorage stores message attachments and returns their public URL.
type AttachmentStorage interface {
	Upload(ctx context.Context, fileName, contentType string, data io.Reader, size int64) (string, error)
}

// Notifier delivers events. Delivery is best effort.
type Notifier interface {
	Notify(ctx context.Context, event Event) error
}
