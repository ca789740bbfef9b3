package usecase

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/angola031/Ecoswap-sub003/internal/domain"
	"github.com/angola031/Ecoswap-sub003/internal/platform/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

var fixedNow = time.Date(2026, 5, 2, 15, 30, 0, 0, time.UTC)

type proposalFixture struct {
	proposals     *MockProposalRepository
	exchanges     *MockExchangeRepository
	conversations *MockConversationRepository
	products      *MockProductCatalog
	notifier      *recordingNotifier
	uc            *ProposalUsecase
}

func newProposalFixture(opts ProposalOptions) *proposalFixture {
	f := &proposalFixture{
		proposals:     new(MockProposalRepository),
		exchanges:     new(MockExchangeRepository),
		conversations: new(MockConversationRepository),
		products:      new(MockProductCatalog),
		notifier:      &recordingNotifier{},
	}
	f.uc = NewProposalUsecase(f.proposals, f.exchanges, f.conversations, f.products, f.notifier, nil, logger.NewNop(), opts)
	f.uc.now = func() time.Time { return fixedNow }
	return f
}

func priceOf(v float64) *float64 { return &v }

func activeConversation() *domain.Conversation {
	return &domain.Conversation{ID: "c1", InitiatorID: "alice", CounterpartID: "bob", ProductID: "p1", Active: true}
}

func pendingPriceProposal(id string) *domain.Proposal {
	return &domain.Proposal{
		ID:             id,
		ConversationID: "c1",
		Kind:           domain.ProposalKindPrice,
		Description:    "50000 and it's mine",
		Terms:          domain.ProposalTerms{Price: priceOf(50000)},
		Status:         domain.ProposalStatusPending,
		ProposerID:     "alice",
		ReceiverID:     "bob",
		ProductID:      "p1",
		Version:        1,
	}
}

func pendingDonationRequest(id, requesterID string) *domain.Proposal {
	return &domain.Proposal{
		ID:             id,
		ConversationID: "conv-" + requesterID,
		Kind:           domain.ProposalKindOther,
		Description:    "for the community kitchen",
		Terms:          domain.ProposalTerms{Donation: &domain.DonationTerms{Organization: "Kitchen"}},
		Status:         domain.ProposalStatusPending,
		ProposerID:     requesterID,
		ReceiverID:     "carol",
		ProductID:      "d1",
		Version:        1,
	}
}

func saleProduct() *domain.Product {
	return &domain.Product{ID: "p1", OwnerID: "bob", TransactionType: domain.TransactionTypeSale, Status: domain.ProductStatusActive}
}

func donationItem() *domain.Product {
	return &domain.Product{ID: "d1", OwnerID: "carol", TransactionType: domain.TransactionTypeDonation, Status: domain.ProductStatusActive}
}

func proposalWithID(id string) interface{} {
	return mock.MatchedBy(func(p *domain.Proposal) bool { return p.ID == id })
}

func TestProposalUsecase_Propose(t *testing.T) {
	f := newProposalFixture(ProposalOptions{})
	f.conversations.On("GetByID", mock.Anything, "c1").Return(activeConversation(), nil)
	f.products.On("GetProduct", mock.Anything, "p1").Return(saleProduct(), nil)
	f.proposals.On("FindPending", mock.Anything, "c1", "alice", "bob").Return(nil, domain.ErrNotFound)
	f.proposals.On("Create", mock.Anything, mock.AnythingOfType("*domain.Proposal")).Run(assignProposalID("prop1")).Return(nil)

	p, err := f.uc.Propose(context.Background(), ProposeInput{
		ConversationID: "c1",
		ProposerID:     "alice",
		Kind:           domain.ProposalKindPrice,
		Description:    "50000?",
		Terms:          domain.ProposalTerms{Price: priceOf(50000)},
	})

	require.NoError(t, err)
	assert.Equal(t, "prop1", p.ID)
	assert.Equal(t, domain.ProposalStatusPending, p.Status)
	assert.Equal(t, "bob", p.ReceiverID)
	assert.Equal(t, "p1", p.ProductID)
	assert.Eventually(t, func() bool { return f.notifier.has(domain.EventProposalCreated) }, time.Second, 10*time.Millisecond)
	f.proposals.AssertExpectations(t)
}

func TestProposalUsecase_Propose_SinglePendingPerDirection(t *testing.T) {
	f := newProposalFixture(ProposalOptions{})
	f.conversations.On("GetByID", mock.Anything, "c1").Return(activeConversation(), nil)
	f.products.On("GetProduct", mock.Anything, "p1").Return(saleProduct(), nil)
	f.proposals.On("FindPending", mock.Anything, "c1", "alice", "bob").Return(pendingPriceProposal("existing"), nil)

	_, err := f.uc.Propose(context.Background(), ProposeInput{
		ConversationID: "c1",
		ProposerID:     "alice",
		Kind:           domain.ProposalKindConditions,
		Description:    "pick up on Friday",
		Terms:          domain.ProposalTerms{Conditions: "Friday only"},
	})

	assert.ErrorIs(t, err, domain.ErrDuplicatePending)
	f.proposals.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
}

func TestProposalUsecase_Propose_Rules(t *testing.T) {
	f := newProposalFixture(ProposalOptions{})
	inactive := activeConversation()
	inactive.ID = "c2"
	inactive.Active = false
	f.conversations.On("GetByID", mock.Anything, "c1").Return(activeConversation(), nil)
	f.conversations.On("GetByID", mock.Anything, "c2").Return(inactive, nil)

	_, err := f.uc.Propose(context.Background(), ProposeInput{ConversationID: "c1", ProposerID: "eve", Kind: domain.ProposalKindOther, Description: "hi"})
	assert.ErrorIs(t, err, domain.ErrNotParticipant)

	_, err = f.uc.Propose(context.Background(), ProposeInput{ConversationID: "c2", ProposerID: "alice", Kind: domain.ProposalKindOther, Description: "hi"})
	assert.ErrorIs(t, err, domain.ErrInvalidState)

	_, err = f.uc.Propose(context.Background(), ProposeInput{ConversationID: "c1", ProposerID: "alice", Kind: domain.ProposalKindPrice, Description: "x", Terms: domain.ProposalTerms{Price: priceOf(-10)}})
	assert.ErrorIs(t, err, domain.ErrValidation)

	f.proposals.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
}

func TestProposalUsecase_Reject_RecordsReasonOnPendingExchange(t *testing.T) {
	f := newProposalFixture(ProposalOptions{})
	p := pendingPriceProposal("prop1")
	p.ExchangeID = "ex1"
	ex := &domain.Exchange{ID: "ex1", ProposerID: "alice", ReceiverID: "bob", ProductID: "p1", Status: domain.ExchangeStatusPending, Version: 1}

	f.proposals.On("GetByID", mock.Anything, "prop1").Return(p, nil)
	f.proposals.On("Update", mock.Anything, p).Run(bumpProposalVersion).Return(nil)
	f.exchanges.On("GetByID", mock.Anything, "ex1").Return(ex, nil)
	f.exchanges.On("Update", mock.Anything, ex).Run(bumpExchangeVersion).Return(nil)

	got, err := f.uc.Reject(context.Background(), "prop1", "bob", "too low")

	require.NoError(t, err)
	assert.Equal(t, domain.ProposalStatusRejected, got.Status)
	assert.Equal(t, "too low", got.Response)
	assert.Equal(t, domain.ExchangeStatusRejected, ex.Status)
	assert.Equal(t, "too low", ex.RejectionReason)
	assert.Eventually(t, func() bool { return f.notifier.has(domain.ExchangeEventKind(domain.ExchangeStatusRejected)) }, time.Second, 10*time.Millisecond)
}

func TestProposalUsecase_Cancel_ProposerOnly(t *testing.T) {
	f := newProposalFixture(ProposalOptions{})
	p := pendingPriceProposal("prop1")
	f.proposals.On("GetByID", mock.Anything, "prop1").Return(p, nil)
	f.proposals.On("Update", mock.Anything, p).Run(bumpProposalVersion).Return(nil)

	got, err := f.uc.Cancel(context.Background(), "prop1", "alice")
	require.NoError(t, err)
	assert.Equal(t, domain.ProposalStatusCancelled, got.Status)

	p2 := pendingPriceProposal("prop2")
	f.proposals.On("GetByID", mock.Anything, "prop2").Return(p2, nil)
	_, err = f.uc.Cancel(context.Background(), "prop2", "bob")
	assert.ErrorIs(t, err, domain.ErrNotAuthorized)
	assert.Equal(t, domain.ProposalStatusPending, p2.Status)
	f.proposals.AssertNumberOfCalls(t, "Update", 1)
}

func TestProposalUsecase_Accept_CreatesExchange(t *testing.T) {
	f := newProposalFixture(ProposalOptions{})
	p := pendingPriceProposal("prop1")
	f.proposals.On("GetByID", mock.Anything, "prop1").Return(p, nil)
	f.proposals.On("Update", mock.Anything, p).Run(bumpProposalVersion).Return(nil)
	f.products.On("GetProduct", mock.Anything, "p1").Return(&domain.Product{ID: "p1", OwnerID: "bob", TransactionType: domain.TransactionTypeSale}, nil)
	f.exchanges.On("Create", mock.Anything, mock.AnythingOfType("*domain.Exchange")).Run(assignExchangeID("ex9")).Return(nil)

	res, err := f.uc.Accept(context.Background(), "prop1", "bob")

	require.NoError(t, err)
	assert.Equal(t, domain.ProposalStatusAccepted, res.Proposal.Status)
	require.NotNil(t, res.Exchange)
	assert.Equal(t, domain.ExchangeStatusAccepted, res.Exchange.Status)
	assert.Equal(t, "alice", res.Exchange.ProposerID)
	assert.Equal(t, "bob", res.Exchange.ReceiverID)
	assert.Equal(t, "prop1", res.Exchange.ProposalID)
	require.NotNil(t, res.Exchange.AgreedPrice)
	assert.Equal(t, 50000.0, *res.Exchange.AgreedPrice)
	assert.Equal(t, "ex9", p.ExchangeID)
	assert.Equal(t, int64(3), p.Version)
	f.proposals.AssertNumberOfCalls(t, "Update", 2)
}

func TestProposalUsecase_Accept_AppliesTermsToLinkedExchange(t *testing.T) {
	f := newProposalFixture(ProposalOptions{})
	meetingDate := fixedNow.Add(72 * time.Hour)
	p := pendingPriceProposal("prop1")
	p.Kind = domain.ProposalKindMeeting
	p.Terms = domain.ProposalTerms{Meeting: &domain.Meeting{Place: "Main square", Date: meetingDate}}
	p.ExchangeID = "ex1"
	ex := &domain.Exchange{ID: "ex1", ProposerID: "alice", ReceiverID: "bob", ProductID: "p1", Status: domain.ExchangeStatusPending, Version: 4}

	f.proposals.On("GetByID", mock.Anything, "prop1").Return(p, nil)
	f.proposals.On("Update", mock.Anything, p).Run(bumpProposalVersion).Return(nil)
	f.exchanges.On("GetByID", mock.Anything, "ex1").Return(ex, nil)
	f.exchanges.On("Update", mock.Anything, ex).Run(bumpExchangeVersion).Return(nil)

	res, err := f.uc.Accept(context.Background(), "prop1", "bob")

	require.NoError(t, err)
	assert.Same(t, ex, res.Exchange)
	assert.Equal(t, domain.ExchangeStatusAccepted, ex.Status)
	require.NotNil(t, ex.Meeting)
	assert.Equal(t, "Main square", ex.Meeting.Place)
	f.exchanges.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
}

func TestProposalUsecase_Accept_ConcurrentAcceptLoses(t *testing.T) {
	f := newProposalFixture(ProposalOptions{})
	p := pendingPriceProposal("prop1")
	f.proposals.On("GetByID", mock.Anything, "prop1").Return(p, nil)
	f.proposals.On("Update", mock.Anything, p).Return(domain.ErrConcurrentModification)
	f.products.On("GetProduct", mock.Anything, "p1").Return(saleProduct(), nil)

	res, err := f.uc.Accept(context.Background(), "prop1", "bob")

	assert.Nil(t, res)
	assert.ErrorIs(t, err, domain.ErrConcurrentModification)
	f.exchanges.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
}

func TestProposalUsecase_Accept_AlreadyAccepted(t *testing.T) {
	f := newProposalFixture(ProposalOptions{})
	p := pendingPriceProposal("prop1")
	p.Status = domain.ProposalStatusAccepted
	p.ExchangeID = "ex1"
	f.proposals.On("GetByID", mock.Anything, "prop1").Return(p, nil)

	_, err := f.uc.Accept(context.Background(), "prop1", "bob")

	assert.ErrorIs(t, err, domain.ErrInvalidState)
	f.proposals.AssertNotCalled(t, "Update", mock.Anything, mock.Anything)
	f.exchanges.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
}

func TestProposalUsecase_Accept_DuplicateExchangeIsConcurrentModification(t *testing.T) {
	f := newProposalFixture(ProposalOptions{})
	p := pendingPriceProposal("prop1")
	f.proposals.On("GetByID", mock.Anything, "prop1").Return(p, nil)
	f.proposals.On("Update", mock.Anything, p).Run(bumpProposalVersion).Return(nil)
	f.products.On("GetProduct", mock.Anything, "p1").Return(&domain.Product{ID: "p1", OwnerID: "bob"}, nil)
	f.exchanges.On("Create", mock.Anything, mock.Anything).Return(domain.ErrConflict)

	_, err := f.uc.Accept(context.Background(), "prop1", "bob")
	assert.ErrorIs(t, err, domain.ErrConcurrentModification)
}

func TestProposalUsecase_CounterPropose(t *testing.T) {
	f := newProposalFixture(ProposalOptions{MaxCounterChain: 10})
	orig := pendingPriceProposal("prop1")
	f.proposals.On("GetByID", mock.Anything, "prop1").Return(orig, nil)
	f.products.On("GetProduct", mock.Anything, "p1").Return(saleProduct(), nil)
	f.proposals.On("FindPending", mock.Anything, "c1", "bob", "alice").Return(nil, domain.ErrNotFound)
	f.proposals.On("Create", mock.Anything, mock.AnythingOfType("*domain.Proposal")).Run(assignProposalID("prop2")).Return(nil)
	f.proposals.On("Update", mock.Anything, orig).Run(bumpProposalVersion).Return(nil)

	counter, err := f.uc.CounterPropose(context.Background(), "prop1", "bob", CounterInput{
		Kind:        domain.ProposalKindPrice,
		Description: "70000 is my floor",
		Terms:       domain.ProposalTerms{Price: priceOf(70000)},
	})

	require.NoError(t, err)
	assert.Equal(t, "prop2", counter.ID)
	assert.Equal(t, "bob", counter.ProposerID)
	assert.Equal(t, "alice", counter.ReceiverID)
	assert.Equal(t, "prop1", counter.ParentID)
	assert.Equal(t, 1, counter.ChainDepth)
	assert.Equal(t, domain.ProposalStatusPending, counter.Status)
	assert.Equal(t, domain.ProposalStatusCounterProposed, orig.Status)
}

func TestProposalUsecase_CounterPropose_RemovesCounterWhenOriginalMoved(t *testing.T) {
	f := newProposalFixture(ProposalOptions{})
	orig := pendingPriceProposal("prop1")
	f.proposals.On("GetByID", mock.Anything, "prop1").Return(orig, nil)
	f.products.On("GetProduct", mock.Anything, "p1").Return(saleProduct(), nil)
	f.proposals.On("FindPending", mock.Anything, "c1", "bob", "alice").Return(nil, domain.ErrNotFound)
	f.proposals.On("Create", mock.Anything, mock.Anything).Run(assignProposalID("prop2")).Return(nil)
	f.proposals.On("Update", mock.Anything, orig).Return(domain.ErrConcurrentModification)
	f.proposals.On("Delete", mock.Anything, "prop2").Return(nil)

	_, err := f.uc.CounterPropose(context.Background(), "prop1", "bob", CounterInput{
		Kind:        domain.ProposalKindOther,
		Description: "what about next week",
	})

	assert.ErrorIs(t, err, domain.ErrConcurrentModification)
	f.proposals.AssertCalled(t, "Delete", mock.Anything, "prop2")
}

func TestProposalUsecase_CounterPropose_Rules(t *testing.T) {
	f := newProposalFixture(ProposalOptions{MaxCounterChain: 2})
	deep := pendingPriceProposal("deep")
	deep.ChainDepth = 2
	f.proposals.On("GetByID", mock.Anything, "deep").Return(deep, nil)
	f.proposals.On("GetByID", mock.Anything, "prop1").Return(pendingPriceProposal("prop1"), nil)

	_, err := f.uc.CounterPropose(context.Background(), "deep", "bob", CounterInput{Kind: domain.ProposalKindOther, Description: "again"})
	assert.ErrorIs(t, err, domain.ErrInvalidState)

	_, err = f.uc.CounterPropose(context.Background(), "prop1", "alice", CounterInput{Kind: domain.ProposalKindOther, Description: "self"})
	assert.ErrorIs(t, err, domain.ErrNotAuthorized)

	f.proposals.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
}

func TestProposalUsecase_AcceptDonation_AutoRejectsCompetingRequests(t *testing.T) {
	f := newProposalFixture(ProposalOptions{DonationRejectAttempts: 3})
	fromAlice := pendingDonationRequest("pa", "alice")
	fromBob := pendingDonationRequest("pb", "bob")
	freshBob := pendingDonationRequest("pb", "bob")
	freshBob.Version = 2

	f.proposals.On("GetByID", mock.Anything, "pa").Return(fromAlice, nil)
	f.proposals.On("GetByID", mock.Anything, "pb").Return(freshBob, nil)
	f.proposals.On("Update", mock.Anything, proposalWithID("pa")).Run(bumpProposalVersion).Return(nil)
	// bob's request changed underneath once; the rejection re-reads and retries
	f.proposals.On("Update", mock.Anything, proposalWithID("pb")).Return(domain.ErrConcurrentModification).Once()
	f.proposals.On("Update", mock.Anything, proposalWithID("pb")).Run(bumpProposalVersion).Return(nil).Once()
	f.proposals.On("List", mock.Anything, domain.ProposalFilter{
		ProductID:    "d1",
		Statuses:     []domain.ProposalStatus{domain.ProposalStatusPending},
		DonationOnly: true,
	}).Return([]*domain.Proposal{fromAlice, fromBob}, nil)
	f.exchanges.On("ClaimDonation", mock.Anything, "d1", "pa").Return(nil).Once()
	f.products.On("GetProduct", mock.Anything, "d1").Return(donationItem(), nil)
	f.exchanges.On("Create", mock.Anything, mock.AnythingOfType("*domain.Exchange")).Run(assignExchangeID("exd")).Return(nil)

	res, err := f.uc.Accept(context.Background(), "pa", "carol")

	require.NoError(t, err)
	f.exchanges.AssertExpectations(t)
	assert.Equal(t, domain.ProposalStatusAccepted, fromAlice.Status)
	assert.True(t, res.Exchange.IsDonation)
	assert.Equal(t, "alice", res.Exchange.ProposerID)
	assert.Equal(t, "carol", res.Exchange.ReceiverID)
	assert.Empty(t, res.Exchange.CounterpartProductID)

	assert.Equal(t, domain.ProposalStatusRejected, freshBob.Status)
	assert.Equal(t, DonationAssignedResponse, freshBob.Response)
	assert.Eventually(t, func() bool { return f.notifier.has(domain.EventProposalRejected) }, time.Second, 10*time.Millisecond)
}

func TestProposalUsecase_AcceptDonation_AlreadyAssigned(t *testing.T) {
	f := newProposalFixture(ProposalOptions{})
	req := pendingDonationRequest("pa", "alice")
	f.proposals.On("GetByID", mock.Anything, "pa").Return(req, nil)
	f.products.On("GetProduct", mock.Anything, "d1").Return(donationItem(), nil)
	f.exchanges.On("ClaimDonation", mock.Anything, "d1", "pa").Return(fmt.Errorf("%w: this donation was already assigned", domain.ErrInvalidState))

	_, err := f.uc.Accept(context.Background(), "pa", "carol")

	assert.ErrorIs(t, err, domain.ErrInvalidState)
	f.proposals.AssertNotCalled(t, "Update", mock.Anything, mock.Anything)
	f.exchanges.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
}

func TestProposalUsecase_ListForUser_Role(t *testing.T) {
	f := newProposalFixture(ProposalOptions{})
	pending := domain.ProposalStatusPending
	f.proposals.On("List", mock.Anything, domain.ProposalFilter{ReceiverID: "bob", Statuses: []domain.ProposalStatus{pending}}).
		Return([]*domain.Proposal{pendingPriceProposal("prop1")}, nil)

	got, err := f.uc.ListForUser(context.Background(), "bob", RoleReceived, &pending)
	require.NoError(t, err)
	assert.Len(t, got, 1)
}

func TestProposalUsecase_Propose_DonationTermsFollowProduct(t *testing.T) {
	donationConv := &domain.Conversation{ID: "cd", InitiatorID: "alice", CounterpartID: "carol", ProductID: "d1", Active: true}
	assigned := &domain.Exchange{ID: "exd", ProposerID: "alice", ReceiverID: "carol", ProductID: "d1", IsDonation: true, Status: domain.ExchangeStatusAccepted}
	kitchen := &domain.DonationTerms{Organization: "Kitchen"}

	tests := []struct {
		name    string
		in      ProposeInput
		wantErr error
	}{
		{
			name:    "donation terms on a sale product",
			in:      ProposeInput{ConversationID: "c1", ProposerID: "alice", Kind: domain.ProposalKindOther, Description: "give it to me", Terms: domain.ProposalTerms{Donation: kitchen}},
			wantErr: domain.ErrValidation,
		},
		{
			name:    "exchange kind on a donation product",
			in:      ProposeInput{ConversationID: "cd", ProposerID: "alice", Kind: domain.ProposalKindExchange, Description: "my lamp for it", Terms: domain.ProposalTerms{ProductID: "g1"}},
			wantErr: domain.ErrValidation,
		},
		{
			name:    "counterpart product on a donation request",
			in:      ProposeInput{ConversationID: "cd", ProposerID: "alice", Kind: domain.ProposalKindOther, Description: "plus my lamp", Terms: domain.ProposalTerms{Donation: kitchen, ProductID: "g1"}},
			wantErr: domain.ErrValidation,
		},
		{
			name:    "price offer on an unassigned donation",
			in:      ProposeInput{ConversationID: "cd", ProposerID: "alice", Kind: domain.ProposalKindPrice, Description: "I can pay", Terms: domain.ProposalTerms{Price: priceOf(10)}},
			wantErr: domain.ErrValidation,
		},
		{
			name: "donation request on a donation product",
			in:   ProposeInput{ConversationID: "cd", ProposerID: "alice", Kind: domain.ProposalKindOther, Description: "for the kitchen", Terms: domain.ProposalTerms{Donation: kitchen}},
		},
		{
			name: "meeting on the assigned donation exchange",
			in: ProposeInput{ConversationID: "cd", ProposerID: "alice", ExchangeID: "exd", Kind: domain.ProposalKindMeeting, Description: "pick up",
				Terms: domain.ProposalTerms{Meeting: &domain.Meeting{Place: "Depot", Date: fixedNow.Add(24 * time.Hour)}}},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newProposalFixture(ProposalOptions{})
			f.conversations.On("GetByID", mock.Anything, "c1").Return(activeConversation(), nil)
			f.conversations.On("GetByID", mock.Anything, "cd").Return(donationConv, nil)
			f.products.On("GetProduct", mock.Anything, "p1").Return(saleProduct(), nil)
			f.products.On("GetProduct", mock.Anything, "d1").Return(donationItem(), nil)
			f.exchanges.On("GetByID", mock.Anything, "exd").Return(assigned, nil)
			f.proposals.On("FindPending", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(nil, domain.ErrNotFound)
			f.proposals.On("Create", mock.Anything, mock.AnythingOfType("*domain.Proposal")).Run(assignProposalID("new")).Return(nil)

			p, err := f.uc.Propose(context.Background(), tt.in)

			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				assert.Nil(t, p)
				f.proposals.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, "new", p.ID)
			f.proposals.AssertNumberOfCalls(t, "Create", 1)
		})
	}
}

func TestProposalUsecase_CounterPropose_DonationTermsOnSaleProduct(t *testing.T) {
	f := newProposalFixture(ProposalOptions{})
	orig := pendingPriceProposal("prop1")
	f.proposals.On("GetByID", mock.Anything, "prop1").Return(orig, nil)
	f.products.On("GetProduct", mock.Anything, "p1").Return(saleProduct(), nil)

	_, err := f.uc.CounterPropose(context.Background(), "prop1", "bob", CounterInput{
		Kind:        domain.ProposalKindOther,
		Description: "take it for free",
		Terms:       domain.ProposalTerms{Donation: &domain.DonationTerms{Organization: "Kitchen"}},
	})

	assert.ErrorIs(t, err, domain.ErrValidation)
	assert.Equal(t, domain.ProposalStatusPending, orig.Status)
	f.proposals.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
}

// The proposal is stored as accepted before its exchange; a failed insert is
// finished by the receiver accepting again.
func TestProposalUsecase_Accept_ResumesAfterFailedExchangeInsert(t *testing.T) {
	f := newProposalFixture(ProposalOptions{})
	p := pendingPriceProposal("prop1")
	f.proposals.On("GetByID", mock.Anything, "prop1").Return(p, nil)
	f.proposals.On("Update", mock.Anything, p).Run(bumpProposalVersion).Return(nil)
	f.products.On("GetProduct", mock.Anything, "p1").Return(saleProduct(), nil)
	f.exchanges.On("Create", mock.Anything, mock.AnythingOfType("*domain.Exchange")).Return(errors.New("db insert failed: connection reset")).Once()
	f.exchanges.On("Create", mock.Anything, mock.AnythingOfType("*domain.Exchange")).Run(assignExchangeID("ex9")).Return(nil).Once()
	f.exchanges.On("List", mock.Anything, domain.ExchangeFilter{ProposalID: "prop1"}).Return([]*domain.Exchange{}, nil)

	_, err := f.uc.Accept(context.Background(), "prop1", "bob")
	require.Error(t, err)
	assert.Equal(t, domain.ProposalStatusAccepted, p.Status)
	assert.Empty(t, p.ExchangeID)

	_, err = f.uc.Accept(context.Background(), "prop1", "alice")
	assert.ErrorIs(t, err, domain.ErrNotAuthorized)

	res, err := f.uc.Accept(context.Background(), "prop1", "bob")
	require.NoError(t, err)
	require.NotNil(t, res.Exchange)
	assert.Equal(t, "ex9", res.Exchange.ID)
	assert.Equal(t, "prop1", res.Exchange.ProposalID)
	assert.Equal(t, "ex9", p.ExchangeID)

	_, err = f.uc.Accept(context.Background(), "prop1", "bob")
	assert.ErrorIs(t, err, domain.ErrInvalidState)
	f.exchanges.AssertNumberOfCalls(t, "Create", 2)
}

func TestProposalUsecase_Accept_ResumeSeesRecordedExchange(t *testing.T) {
	f := newProposalFixture(ProposalOptions{})
	p := pendingPriceProposal("prop1")
	p.Status = domain.ProposalStatusAccepted
	f.proposals.On("GetByID", mock.Anything, "prop1").Return(p, nil)
	f.exchanges.On("List", mock.Anything, domain.ExchangeFilter{ProposalID: "prop1"}).
		Return([]*domain.Exchange{{ID: "ex9", ProposalID: "prop1", Status: domain.ExchangeStatusAccepted}}, nil)

	_, err := f.uc.Accept(context.Background(), "prop1", "bob")

	assert.ErrorIs(t, err, domain.ErrInvalidState)
	f.exchanges.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
	f.proposals.AssertNotCalled(t, "Update", mock.Anything, mock.Anything)
}

func TestProposalUsecase_Accept_MissingProduct(t *testing.T) {
	f := newProposalFixture(ProposalOptions{})
	p := pendingPriceProposal("prop1")
	f.proposals.On("GetByID", mock.Anything, "prop1").Return(p, nil)
	f.products.On("GetProduct", mock.Anything, "p1").Return(nil, domain.ErrNotFound)

	_, err := f.uc.Accept(context.Background(), "prop1", "bob")

	assert.ErrorIs(t, err, domain.ErrNotFound)
	f.proposals.AssertNotCalled(t, "Update", mock.Anything, mock.Anything)
	f.exchanges.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
}

func TestProposalUsecase_AcceptDonation_LostRaceReleasesClaim(t *testing.T) {
	tests := []struct {
		name        string
		storedAfter domain.ProposalStatus
		wantRelease bool
	}{
		{name: "request withdrawn meanwhile", storedAfter: domain.ProposalStatusCancelled, wantRelease: true},
		{name: "same request accepted by another session", storedAfter: domain.ProposalStatusAccepted, wantRelease: false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newProposalFixture(ProposalOptions{})
			stored := pendingDonationRequest("pa", "alice")
			stored.Status = tt.storedAfter
			stored.Version = 2
			f.proposals.On("GetByID", mock.Anything, "pa").Return(pendingDonationRequest("pa", "alice"), nil).Once()
			f.proposals.On("GetByID", mock.Anything, "pa").Return(stored, nil).Once()
			f.proposals.On("Update", mock.Anything, proposalWithID("pa")).Return(domain.ErrConcurrentModification)
			f.products.On("GetProduct", mock.Anything, "d1").Return(donationItem(), nil)
			f.exchanges.On("ClaimDonation", mock.Anything, "d1", "pa").Return(nil)
			f.exchanges.On("ReleaseDonation", mock.Anything, "d1", "pa").Return(nil)

			_, err := f.uc.Accept(context.Background(), "pa", "carol")

			assert.ErrorIs(t, err, domain.ErrConcurrentModification)
			if tt.wantRelease {
				f.exchanges.AssertCalled(t, "ReleaseDonation", mock.Anything, "d1", "pa")
			} else {
				f.exchanges.AssertNotCalled(t, "ReleaseDonation", mock.Anything, mock.Anything, mock.Anything)
			}
			f.exchanges.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
		})
	}
}
