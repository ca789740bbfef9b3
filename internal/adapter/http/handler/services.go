package handler

import (
	"context"

	"github.com/angola031/Ecoswap-sub003/internal/domain"
	"github.com/angola031/Ecoswap-sub003/internal/usecase"
)

// The interfaces below are satisfied by the usecase types.

type ConversationService interface {
	CreateOrGetConversation(ctx context.Context, userA, userB, productID string) (*domain.Conversation, error)
	GetConversation(ctx context.Context, conversationID, actorID string) (*domain.Conversation, error)
	ListConversations(ctx context.Context, userID string, activeOnly bool) ([]*domain.Conversation, error)
	DeactivateConversation(ctx context.Context, conversationID, actorID string) error
	AppendMessage(ctx context.Context, in usecase.AppendMessageInput) (*domain.Message, error)
	UploadAttachment(ctx context.Context, in usecase.UploadAttachmentInput) (*domain.Message, error)
	MarkRead(ctx context.Context, conversationID, readerID, uptoMessageID string) (int64, error)
	ListMessages(ctx context.Context, conversationID, readerID string, limit int, cursor string) (*domain.MessagePage, error)
}

type ProposalService interface {
	Propose(ctx context.Context, in usecase.ProposeInput) (*domain.Proposal, error)
	Accept(ctx context.Context, proposalID, actorID string) (*usecase.AcceptResult, error)
	Reject(ctx context.Context, proposalID, actorID, reason string) (*domain.Proposal, error)
	CounterPropose(ctx context.Context, proposalID, actorID string, in usecase.CounterInput) (*domain.Proposal, error)
	Cancel(ctx context.Context, proposalID, actorID string) (*domain.Proposal, error)
	GetProposal(ctx context.Context, proposalID, actorID string) (*domain.Proposal, error)
	ListByConversation(ctx context.Context, conversationID, actorID string, status *domain.ProposalStatus) ([]*domain.Proposal, error)
	ListForUser(ctx context.Context, userID string, role usecase.Role, status *domain.ProposalStatus) ([]*domain.Proposal, error)
}

type ExchangeService interface {
	ProposeExchange(ctx context.Context, in usecase.ProposeExchangeInput) (*domain.Exchange, error)
	Accept(ctx context.Context, exchangeID, actorID string) (*domain.Exchange, error)
	Reject(ctx context.Context, exchangeID, actorID, reason string) (*domain.Exchange, error)
	Cancel(ctx context.Context, exchangeID, actorID, reason string) (*domain.Exchange, error)
	Complete(ctx context.Context, exchangeID, actorID string) (*domain.Exchange, error)
	UpdateMeeting(ctx context.Context, in usecase.UpdateMeetingInput) (*domain.Exchange, error)
	SetExtraAmount(ctx context.Context, exchangeID, actorID string, amount float64) (*domain.Exchange, error)
	SubmitValidation(ctx context.Context, in usecase.SubmitValidationInput) (*domain.Exchange, error)
	GetExchange(ctx context.Context, exchangeID, actorID string) (*domain.Exchange, error)
	ListForUser(ctx context.Context, userID string, role usecase.Role, status *domain.ExchangeStatus) ([]*domain.Exchange, error)
}

type RatingService interface {
	SubmitRating(ctx context.Context, in usecase.RatingInput) (*domain.Rating, error)
	ListRatingsForUser(ctx context.Context, userID, viewerID string) ([]*domain.Rating, error)
	RatingSummary(ctx context.Context, userID string) (*domain.RatingSummary, error)
}

type DonationService interface {
	ListAvailableDonations(ctx context.Context, requesterID string, page, limit int) (*usecase.DonationPage, error)
	SubmitDonationRequest(ctx context.Context, in usecase.DonationRequestInput) (*domain.Proposal, error)
	ListMyDonationRequests(ctx context.Context, requesterID string, status *domain.ProposalStatus) ([]*domain.Proposal, error)
	ListDonationsReceived(ctx context.Context, requesterID string) ([]*domain.Exchange, error)
}

var (
	_ ConversationService = (*usecase.ConversationUsecase)(nil)
	_ ProposalService     = (*usecase.ProposalUsecase)(nil)
	_ ExchangeService     = (*usecase.ExchangeUsecase)(nil)
	_ RatingService       = (*usecase.RatingUsecase)(nil)
	_ DonationService     = (*usecase.DonationUsecase)(nil)
)
