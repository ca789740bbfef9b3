package usecase

import (
	"context"
	"io"
	"sync"
	"time"

	"github.com/angola031/Ecoswap-sub003/internal/domain"
	"github.com/stretchr/testify/mock"
)

type MockConversationRepository struct{ mock.Mock }

func (m *MockConversationRepository) Create(ctx context.Context, c *domain.Conversation) error {
	args := m.Called(ctx, c)
	return args.Error(0)
}
func (m *MockConversationRepository) GetByID(ctx context.Context, id string) (*domain.Conversation, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Conversation), args.Error(1)
}
func (m *MockConversationRepository) GetByParticipants(ctx context.Context, participantKey, productID string) (*domain.Conversation, error) {
	args := m.Called(ctx, participantKey, productID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Conversation), args.Error(1)
}
func (m *MockConversationRepository) ListByUser(ctx context.Context, userID string, activeOnly bool) ([]*domain.Conversation, error) {
	args := m.Called(ctx, userID, activeOnly)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.Conversation), args.Error(1)
}
func (m *MockConversationRepository) NextMessageSeq(ctx context.Context, id string) (int64, error) {
	args := m.Called(ctx, id)
	return args.Get(0).(int64), args.Error(1)
}
func (m *MockConversationRepository) UpdateLastMessage(ctx context.Context, id string, msg *domain.Message) error {
	args := m.Called(ctx, id, msg)
	return args.Error(0)
}
func (m *MockConversationRepository) SetActive(ctx context.Context, id string, active bool, at time.Time) error {
	args := m.Called(ctx, id, active, at)
	return args.Error(0)
}

type MockMessageRepository struct{ mock.Mock }

func (m *MockMessageRepository) Create(ctx context.Context, msg *domain.Message) error {
	args := m.Called(ctx, msg)
	return args.Error(0)
}
func (m *MockMessageRepository) GetByID(ctx context.Context, id string) (*domain.Message, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Message), args.Error(1)
}
func (m *MockMessageRepository) ListBefore(ctx context.Context, conversationID string, beforeSeq int64, limit int) ([]*domain.Message, error) {
	args := m.Called(ctx, conversationID, beforeSeq, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.Message), args.Error(1)
}
func (m *MockMessageRepository) MarkRead(ctx context.Context, conversationID, readerID string, uptoSeq int64, at time.Time) (int64, error) {
	args := m.Called(ctx, conversationID, readerID, uptoSeq, at)
	return args.Get(0).(int64), args.Error(1)
}

type MockProposalRepository struct{ mock.Mock }

func (m *MockProposalRepository) Create(ctx context.Context, p *domain.Proposal) error {
	args := m.Called(ctx, p)
	return args.Error(0)
}
func (m *MockProposalRepository) GetByID(ctx context.Context, id string) (*domain.Proposal, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Proposal), args.Error(1)
}
func (m *MockProposalRepository) Update(ctx context.Context, p *domain.Proposal) error {
	args := m.Called(ctx, p)
	return args.Error(0)
}
func (m *MockProposalRepository) Delete(ctx context.Context, id string) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}
func (m *MockProposalRepository) FindPending(ctx context.Context, conversationID, proposerID, receiverID string) (*domain.Proposal, error) {
	args := m.Called(ctx, conversationID, proposerID, receiverID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Proposal), args.Error(1)
}
func (m *MockProposalRepository) List(ctx context.Context, filter domain.ProposalFilter) ([]*domain.Proposal, error) {
	args := m.Called(ctx, filter)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.Proposal), args.Error(1)
}

type MockExchangeRepository struct{ mock.Mock }

func (m *MockExchangeRepository) Create(ctx context.Context, e *domain.Exchange) error {
	args := m.Called(ctx, e)
	return args.Error(0)
}
func (m *MockExchangeRepository) GetByID(ctx context.Context, id string) (*domain.Exchange, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Exchange), args.Error(1)
}
func (m *MockExchangeRepository) Update(ctx context.Context, e *domain.Exchange) error {
	args := m.Called(ctx, e)
	return args.Error(0)
}
func (m *MockExchangeRepository) List(ctx context.Context, filter domain.ExchangeFilter) ([]*domain.Exchange, error) {
	args := m.Called(ctx, filter)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.Exchange), args.Error(1)
}

// ClaimDonation returns the configured error, or calls a func(productID, holderID string) error
// when the expectation was set up with one.
func (m *MockExchangeRepository) ClaimDonation(ctx context.Context, productID, holderID string) error {
	args := m.Called(ctx, productID, holderID)
	if fn, ok := args.Get(0).(func(string, string) error); ok {
		return fn(productID, holderID)
	}
	return args.Error(0)
}
func (m *MockExchangeRepository) ReleaseDonation(ctx context.Context, productID, holderID string) error {
	args := m.Called(ctx, productID, holderID)
	return args.Error(0)
}

type MockRatingRepository struct{ mock.Mock }

func (m *MockRatingRepository) Create(ctx context.Context, r *domain.Rating) error {
	args := m.Called(ctx, r)
	return args.Error(0)
}
func (m *MockRatingRepository) Exists(ctx context.Context, exchangeID, raterID string) (bool, error) {
	args := m.Called(ctx, exchangeID, raterID)
	return args.Bool(0), args.Error(1)
}
func (m *MockRatingRepository) ListByRated(ctx context.Context, ratedID string, publicOnly bool) ([]*domain.Rating, error) {
	args := m.Called(ctx, ratedID, publicOnly)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.Rating), args.Error(1)
}
func (m *MockRatingRepository) Summary(ctx context.Context, ratedID string) (*domain.RatingSummary, error) {
	args := m.Called(ctx, ratedID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.RatingSummary), args.Error(1)
}

type MockProductCatalog struct{ mock.Mock }

func (m *MockProductCatalog) GetProduct(ctx context.Context, id string) (*domain.Product, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Product), args.Error(1)
}
func (m *MockProductCatalog) ListDonations(ctx context.Context, excludeOwnerID string, page, limit int) ([]*domain.Product, int64, error) {
	args := m.Called(ctx, excludeOwnerID, page, limit)
	if args.Get(0) == nil {
		return nil, 0, args.Error(2)
	}
	return args.Get(0).([]*domain.Product), args.Get(1).(int64), args.Error(2)
}

type MockAttachmentStorage struct{ mock.Mock }

func (m *MockAttachmentStorage) Upload(ctx context.Context, fileName, contentType string, data io.Reader, size int64) (string, error) {
	args := m.Called(ctx, fileName, contentType, data, size)
	return args.String(0), args.Error(1)
}

// recordingNotifier collects events delivered from the dispatcher goroutines.
type recordingNotifier struct {
	mu     sync.Mutex
	events []domain.Event
}

func (n *recordingNotifier) Notify(_ context.Context, ev domain.Event) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = append(n.events, ev)
	return nil
}

func (n *recordingNotifier) kinds() []domain.EventKind {
	n.mu.Lock()
	defer n.mu.Unlock()
	out := make([]domain.EventKind, 0, len(n.events))
	for _, ev := range n.events {
		out = append(out, ev.Kind)
	}
	return out
}

func (n *recordingNotifier) has(kind domain.EventKind) bool {
	for _, k := range n.kinds() {
		if k == kind {
			return true
		}
	}
	return false
}

// bumpProposalVersion mimics the repository's CAS success.
func bumpProposalVersion(args mock.Arguments) {
	args.Get(1).(*domain.Proposal).Version++
}

func bumpExchangeVersion(args mock.Arguments) {
	args.Get(1).(*domain.Exchange).Version++
}

func assignProposalID(id string) func(mock.Arguments) {
	return func(args mock.Arguments) { args.Get(1).(*domain.Proposal).ID = id }
}

func assignExchangeID(id string) func(mock.Arguments) {
	return func(args mock.Arguments) { args.Get(1).(*domain.Exchange).ID = id }
}

// claimTable stands in for the claims collection: the first holder of a
// product wins and the same holder may claim again.
type claimTable struct {
	mu      sync.Mutex
	holders map[string]string
}

func newClaimTable() *claimTable { return &claimTable{holders: map[string]string{}} }

func (c *claimTable) claim(productID, holderID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if current, ok := c.holders[productID]; ok && current != holderID {
		return domain.ErrInvalidState
	}
	c.holders[productID] = holderID
	return nil
}

func (c *claimTable) holder(productID string) string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.holders[productID]
}
