package usecase

import (
	"context"
	"fmt"
	"strings"

	"github.com/angola031/Ecoswap-sub003/internal/domain"
	"github.com/angola031/Ecoswap-sub003/internal/platform/logger"
	"go.uber.org/zap"
)

const defaultDonationRequestText = "Donation request"

// DonationUsecase is the donation flavour of the proposal engine. Accepting a
// request goes through ProposalUsecase.Accept, which auto-rejects the competing ones.
type DonationUsecase struct {
	products      domain.ProductCatalog
	proposals     domain.ProposalRepository
	exchanges     domain.ExchangeRepository
	conversations *ConversationUsecase
	engine        *ProposalUsecase
	logger        *logger.Logger
}

func NewDonationUsecase(
	products domain.ProductCatalog,
	proposals domain.ProposalRepository,
	exchanges domain.ExchangeRepository,
	conversations *ConversationUsecase,
	engine *ProposalUsecase,
	log *logger.Logger,
) *DonationUsecase {
	return &DonationUsecase{
		products:      products,
		proposals:     proposals,
		exchanges:     exchanges,
		conversations: conversations,
		engine:        engine,
		logger:        log.Named("DonationUsecase"),
	}
}

// DonationPage is one page of available donations.
type DonationPage struct {
	Products []*domain.Product
	Total    int64
	Page     int
	Limit    int
}

// ListAvailableDonations lists active donation products the requester does not own.
func (uc *DonationUsecase) ListAvailableDonations(ctx context.Context, requesterID string, page, limit int) (*DonationPage, error) {
	if page < 1 {
		page = 1
	}
	limit = clampLimit(limit)
	products, total, err := uc.products.ListDonations(ctx, requesterID, page, limit)
	if err != nil {
		return nil, err
	}
	return &DonationPage{Products: products, Total: total, Page: page, Limit: limit}, nil
}

type DonationRequestInput struct {
	RequesterID   string
	ProductID     string
	Message       string
	Organization  string
	IntendedUse   string
	Beneficiaries int
}

// SubmitDonationRequest asks the owner of a donation product for it.
func (uc *DonationUsecase) SubmitDonationRequest(ctx context.Context, in DonationRequestInput) (*domain.Proposal, error) {
	product, err := uc.products.GetProduct(ctx, in.ProductID)
	if err != nil {
		return nil, err
	}
	if !product.IsDonation() {
		return nil, fmt.Errorf("%w: product is not offered as a donation", domain.ErrValidation)
	}
	if product.OwnerID == in.RequesterID {
		return nil, fmt.Errorf("%w: you cannot request your own donation", domain.ErrValidation)
	}
	if !product.IsActive() {
		return nil, fmt.Errorf("%w: donation is no longer available", domain.ErrInvalidState)
	}
	if in.Beneficiaries < 0 {
		return nil, fmt.Errorf("%w: beneficiaries must not be negative", domain.ErrValidation)
	}
	if err := uc.engine.ensureDonationUnassigned(ctx, product.ID); err != nil {
		return nil, err
	}

	conv, err := uc.conversations.CreateOrGetConversation(ctx, in.RequesterID, product.OwnerID, product.ID)
	if err != nil {
		return nil, err
	}
	description := strings.TrimSpace(in.Message)
	if description == "" {
		description = defaultDonationRequestText
	}
	p, err := uc.engine.Propose(ctx, ProposeInput{
		ConversationID: conv.ID,
		ProposerID:     in.RequesterID,
		ReceiverID:     product.OwnerID,
		ProductID:      product.ID,
		Kind:           domain.ProposalKindOther,
		Description:    description,
		Terms: domain.ProposalTerms{
			Donation: &domain.DonationTerms{
				Organization:  strings.TrimSpace(in.Organization),
				IntendedUse:   strings.TrimSpace(in.IntendedUse),
				Beneficiaries: in.Beneficiaries,
			},
		},
	})
	if err != nil {
		return nil, err
	}
	uc.logger.Info("Donation requested", zap.String("proposal_id", p.ID), zap.String("product_id", product.ID))
	return p, nil
}

// ListMyDonationRequests lists the donation requests the requester made.
func (uc *DonationUsecase) ListMyDonationRequests(ctx context.Context, requesterID string, status *domain.ProposalStatus) ([]*domain.Proposal, error) {
	return uc.proposals.List(ctx, domain.ProposalFilter{
		ProposerID:   requesterID,
		Statuses:     statusFilter(status),
		DonationOnly: true,
	})
}

// ListDonationsReceived lists accepted or completed donation exchanges where
// the caller was the requester.
func (uc *DonationUsecase) ListDonationsReceived(ctx context.Context, requesterID string) ([]*domain.Exchange, error) {
	return uc.exchanges.List(ctx, domain.ExchangeFilter{
		ProposerID:   requesterID,
		DonationOnly: true,
		Statuses:     []domain.ExchangeStatus{domain.ExchangeStatusAccepted, domain.ExchangeStatusCompleted},
	})
}
