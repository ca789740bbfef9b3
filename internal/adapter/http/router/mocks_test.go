package router

import (
	"context"

	"github.com/angola031/Ecoswap-sub003/internal/domain"
	"github.com/angola031/Ecoswap-sub003/internal/usecase"
	"github.com/stretchr/testify/mock"
)

type mockConversations struct{ mock.Mock }

func (m *mockConversations) CreateOrGetConversation(ctx context.Context, userA, userB, productID string) (*domain.Conversation, error) {
	args := m.Called(ctx, userA, userB, productID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Conversation), args.Error(1)
}
func (m *mockConversations) GetConversation(ctx context.Context, conversationID, actorID string) (*domain.Conversation, error) {
	args := m.Called(ctx, conversationID, actorID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Conversation), args.Error(1)
}
func (m *mockConversations) ListConversations(ctx context.Context, userID string, activeOnly bool) ([]*domain.Conversation, error) {
	args := m.Called(ctx, userID, activeOnly)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.Conversation), args.Error(1)
}
func (m *mockConversations) DeactivateConversation(ctx context.Context, conversationID, actorID string) error {
	return m.Called(ctx, conversationID, actorID).Error(0)
}
func (m *mockConversations) AppendMessage(ctx context.Context, in usecase.AppendMessageInput) (*domain.Message, error) {
	args := m.Called(ctx, in)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Message), args.Error(1)
}
func (m *mockConversations) UploadAttachment(ctx context.Context, in usecase.UploadAttachmentInput) (*domain.Message, error) {
	args := m.Called(ctx, in)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Message), args.Error(1)
}
func (m *mockConversations) MarkRead(ctx context.Context, conversationID, readerID, uptoMessageID string) (int64, error) {
	args := m.Called(ctx, conversationID, readerID, uptoMessageID)
	return args.Get(0).(int64), args.Error(1)
}
func (m *mockConversations) ListMessages(ctx context.Context, conversationID, readerID string, limit int, cursor string) (*domain.MessagePage, error) {
	args := m.Called(ctx, conversationID, readerID, limit, cursor)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.MessagePage), args.Error(1)
}

type mockProposals struct{ mock.Mock }

func (m *mockProposals) proposal(args mock.Arguments) (*domain.Proposal, error) {
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Proposal), args.Error(1)
}
func (m *mockProposals) proposals(args mock.Arguments) ([]*domain.Proposal, error) {
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.Proposal), args.Error(1)
}
func (m *mockProposals) Propose(ctx context.Context, in usecase.ProposeInput) (*domain.Proposal, error) {
	return m.proposal(m.Called(ctx, in))
}
func (m *mockProposals) Accept(ctx context.Context, proposalID, actorID string) (*usecase.AcceptResult, error) {
	args := m.Called(ctx, proposalID, actorID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*usecase.AcceptResult), args.Error(1)
}
func (m *mockProposals) Reject(ctx context.Context, proposalID, actorID, reason string) (*domain.Proposal, error) {
	return m.proposal(m.Called(ctx, proposalID, actorID, reason))
}
func (m *mockProposals) CounterPropose(ctx context.Context, proposalID, actorID string, in usecase.CounterInput) (*domain.Proposal, error) {
	return m.proposal(m.Called(ctx, proposalID, actorID, in))
}
func (m *mockProposals) Cancel(ctx context.Context, proposalID, actorID string) (*domain.Proposal, error) {
	return m.proposal(m.Called(ctx, proposalID, actorID))
}
func (m *mockProposals) GetProposal(ctx context.Context, proposalID, actorID string) (*domain.Proposal, error) {
	return m.proposal(m.Called(ctx, proposalID, actorID))
}
func (m *mockProposals) ListByConversation(ctx context.Context, conversationID, actorID string, status *domain.ProposalStatus) ([]*domain.Proposal, error) {
	return m.proposals(m.Called(ctx, conversationID, actorID, status))
}
func (m *mockProposals) ListForUser(ctx context.Context, userID string, role usecase.Role, status *domain.ProposalStatus) ([]*domain.Proposal, error) {
	return m.proposals(m.Called(ctx, userID, role, status))
}

type mockExchanges struct{ mock.Mock }

func (m *mockExchanges) exchange(args mock.Arguments) (*domain.Exchange, error) {
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Exchange), args.Error(1)
}
func (m *mockExchanges) ProposeExchange(ctx context.Context, in usecase.ProposeExchangeInput) (*domain.Exchange, error) {
	return m.exchange(m.Called(ctx, in))
}
func (m *mockExchanges) Accept(ctx context.Context, exchangeID, actorID string) (*domain.Exchange, error) {
	return m.exchange(m.Called(ctx, exchangeID, actorID))
}
func (m *mockExchanges) Reject(ctx context.Context, exchangeID, actorID, reason string) (*domain.Exchange, error) {
	return m.exchange(m.Called(ctx, exchangeID, actorID, reason))
}
func (m *mockExchanges) Cancel(ctx context.Context, exchangeID, actorID, reason string) (*domain.Exchange, error) {
	return m.exchange(m.Called(ctx, exchangeID, actorID, reason))
}
func (m *mockExchanges) Complete(ctx context.Context, exchangeID, actorID string) (*domain.Exchange, error) {
	return m.exchange(m.Called(ctx, exchangeID, actorID))
}
func (m *mockExchanges) UpdateMeeting(ctx context.Context, in usecase.UpdateMeetingInput) (*domain.Exchange, error) {
	return m.exchange(m.Called(ctx, in))
}
func (m *mockExchanges) SetExtraAmount(ctx context.Context, exchangeID, actorID string, amount float64) (*domain.Exchange, error) {
	return m.exchange(m.Called(ctx, exchangeID, actorID, amount))
}
func (m *mockExchanges) SubmitValidation(ctx context.Context, in usecase.SubmitValidationInput) (*domain.Exchange, error) {
	return m.exchange(m.Called(ctx, in))
}
func (m *mockExchanges) GetExchange(ctx context.Context, exchangeID, actorID string) (*domain.Exchange, error) {
	return m.exchange(m.Called(ctx, exchangeID, actorID))
}
func (m *mockExchanges) ListForUser(ctx context.Context, userID string, role usecase.Role, status *domain.ExchangeStatus) ([]*domain.Exchange, error) {
	args := m.Called(ctx, userID, role, status)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.Exchange), args.Error(1)
}

type mockRatings struct{ mock.Mock }

func (m *mockRatings) SubmitRating(ctx context.Context, in usecase.RatingInput) (*domain.Rating, error) {
	args := m.Called(ctx, in)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Rating), args.Error(1)
}
func (m *mockRatings) ListRatingsForUser(ctx context.Context, userID, viewerID string) ([]*domain.Rating, error) {
	args := m.Called(ctx, userID, viewerID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.Rating), args.Error(1)
}
func (m *mockRatings) RatingSummary(ctx context.Context, userID string) (*domain.RatingSummary, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.RatingSummary), args.Error(1)
}

type mockDonations struct{ mock.Mock }

func (m *mockDonations) ListAvailableDonations(ctx context.Context, requesterID string, page, limit int) (*usecase.DonationPage, error) {
	args := m.Called(ctx, requesterID, page, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*usecase.DonationPage), args.Error(1)
}
func (m *mockDonations) SubmitDonationRequest(ctx context.Context, in usecase.DonationRequestInput) (*domain.Proposal, error) {
	args := m.Called(ctx, in)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Proposal), args.Error(1)
}
func (m *mockDonations) ListMyDonationRequests(ctx context.Context, requesterID string, status *domain.ProposalStatus) ([]*domain.Proposal, error) {
	args := m.Called(ctx, requesterID, status)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.Proposal), args.Error(1)
}
func (m *mockDonations) ListDonationsReceived(ctx context.Context, requesterID string) ([]*domain.Exchange, error) {
	args := m.Called(ctx, requesterID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.Exchange), args.Error(1)
}

type tokenResolver map[string]string

func (t tokenResolver) Resolve(_ context.Context, credential string) (string, error) {
	if id, ok := t[credential]; ok {
		return id, nil
	}
	return "", domain.ErrNotFound
}
