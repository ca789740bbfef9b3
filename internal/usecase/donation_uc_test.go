package usecase

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/angola031/Ecoswap-sub003/internal/domain"
	"github.com/angola031/Ecoswap-sub003/internal/platform/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type donationFixture struct {
	*proposalFixture
	uc *DonationUsecase
}

func newDonationFixture() *donationFixture {
	pf := newProposalFixture(ProposalOptions{DonationRejectAttempts: 3})
	log := logger.NewNop()
	convUC := NewConversationUsecase(pf.conversations, new(MockMessageRepository), pf.products, nil, pf.notifier, nil, log)
	convUC.now = func() time.Time { return fixedNow }
	return &donationFixture{
		proposalFixture: pf,
		uc:              NewDonationUsecase(pf.products, pf.proposals, pf.exchanges, convUC, pf.uc, log),
	}
}

func donationProduct() *domain.Product {
	return &domain.Product{ID: "d1", OwnerID: "carol", Title: "Winter coats", TransactionType: domain.TransactionTypeDonation, Status: "active"}
}

func TestDonationUsecase_SubmitDonationRequest(t *testing.T) {
	f := newDonationFixture()
	conv := &domain.Conversation{ID: "conv-alice", InitiatorID: "alice", CounterpartID: "carol", ProductID: "d1", Active: true}
	f.products.On("GetProduct", mock.Anything, "d1").Return(donationProduct(), nil)
	f.exchanges.On("List", mock.Anything, mock.AnythingOfType("domain.ExchangeFilter")).Return([]*domain.Exchange{}, nil)
	f.conversations.On("GetByParticipants", mock.Anything, domain.ParticipantKey("alice", "carol"), "d1").Return(conv, nil)
	f.conversations.On("GetByID", mock.Anything, "conv-alice").Return(conv, nil)
	f.proposals.On("FindPending", mock.Anything, "conv-alice", "alice", "carol").Return(nil, domain.ErrNotFound)
	f.proposals.On("Create", mock.Anything, mock.AnythingOfType("*domain.Proposal")).Run(assignProposalID("pa")).Return(nil)

	p, err := f.uc.SubmitDonationRequest(context.Background(), DonationRequestInput{
		RequesterID:   "alice",
		ProductID:     "d1",
		Organization:  "Community kitchen",
		IntendedUse:   "winter drive",
		Beneficiaries: 40,
	})

	require.NoError(t, err)
	assert.True(t, p.IsDonationRequest())
	assert.Equal(t, domain.ProposalKindOther, p.Kind)
	assert.Equal(t, "carol", p.ReceiverID)
	assert.Equal(t, defaultDonationRequestText, p.Description)
	assert.Empty(t, p.Terms.ProductID)
	assert.Equal(t, 40, p.Terms.Donation.Beneficiaries)
}

func TestDonationUsecase_SubmitDonationRequest_Rules(t *testing.T) {
	f := newDonationFixture()
	f.products.On("GetProduct", mock.Anything, "d1").Return(donationProduct(), nil)
	f.products.On("GetProduct", mock.Anything, "s1").Return(&domain.Product{ID: "s1", OwnerID: "carol", TransactionType: domain.TransactionTypeSale}, nil)

	_, err := f.uc.SubmitDonationRequest(context.Background(), DonationRequestInput{RequesterID: "alice", ProductID: "s1"})
	assert.ErrorIs(t, err, domain.ErrValidation)

	_, err = f.uc.SubmitDonationRequest(context.Background(), DonationRequestInput{RequesterID: "carol", ProductID: "d1"})
	assert.ErrorIs(t, err, domain.ErrValidation)

	f.proposals.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
}

func TestDonationUsecase_Listings(t *testing.T) {
	f := newDonationFixture()
	accepted := domain.ProposalStatusAccepted
	f.products.On("ListDonations", mock.Anything, "alice", 1, defaultPageLimit).Return([]*domain.Product{donationProduct()}, int64(1), nil)
	f.proposals.On("List", mock.Anything, domain.ProposalFilter{ProposerID: "alice", Statuses: []domain.ProposalStatus{accepted}, DonationOnly: true}).
		Return([]*domain.Proposal{pendingDonationRequest("pa", "alice")}, nil)
	f.exchanges.On("List", mock.Anything, domain.ExchangeFilter{
		ProposerID:   "alice",
		DonationOnly: true,
		Statuses:     []domain.ExchangeStatus{domain.ExchangeStatusAccepted, domain.ExchangeStatusCompleted},
	}).Return([]*domain.Exchange{{ID: "exd", IsDonation: true}}, nil)

	page, err := f.uc.ListAvailableDonations(context.Background(), "alice", 0, 0)
	require.NoError(t, err)
	assert.Equal(t, int64(1), page.Total)
	assert.Equal(t, 1, page.Page)

	mine, err := f.uc.ListMyDonationRequests(context.Background(), "alice", &accepted)
	require.NoError(t, err)
	assert.Len(t, mine, 1)

	received, err := f.uc.ListDonationsReceived(context.Background(), "alice")
	require.NoError(t, err)
	assert.Len(t, received, 1)
}

// The owner accepts two requests for the same item at the same time; the
// claim lets exactly one of them through.
func TestDonationUsecase_ConcurrentAcceptsAssignTheItemOnce(t *testing.T) {
	f := newDonationFixture()
	claims := newClaimTable()
	f.proposals.On("GetByID", mock.Anything, "pa").Return(pendingDonationRequest("pa", "alice"), nil)
	f.proposals.On("GetByID", mock.Anything, "pb").Return(pendingDonationRequest("pb", "bob"), nil)
	f.proposals.On("Update", mock.Anything, mock.AnythingOfType("*domain.Proposal")).Run(bumpProposalVersion).Return(nil)
	f.proposals.On("List", mock.Anything, mock.AnythingOfType("domain.ProposalFilter")).Return([]*domain.Proposal{}, nil)
	f.products.On("GetProduct", mock.Anything, "d1").Return(donationProduct(), nil)
	f.exchanges.On("ClaimDonation", mock.Anything, "d1", mock.Anything).Return(claims.claim)
	f.exchanges.On("Create", mock.Anything, mock.AnythingOfType("*domain.Exchange")).Run(assignExchangeID("exd")).Return(nil)

	ids := []string{"pa", "pb"}
	errs := make([]error, len(ids))
	start := make(chan struct{})
	var wg sync.WaitGroup
	for i, id := range ids {
		wg.Add(1)
		go func(i int, id string) {
			defer wg.Done()
			<-start
			_, errs[i] = f.proposalFixture.uc.Accept(context.Background(), id, "carol")
		}(i, id)
	}
	close(start)
	wg.Wait()

	var winner string
	for i, err := range errs {
		if err == nil {
			require.Empty(t, winner, "both requests were accepted")
			winner = ids[i]
			continue
		}
		assert.ErrorIs(t, err, domain.ErrInvalidState)
	}
	require.NotEmpty(t, winner)
	assert.Equal(t, winner, claims.holder("d1"))
	f.exchanges.AssertNumberOfCalls(t, "Create", 1)
	f.exchanges.AssertNotCalled(t, "ReleaseDonation", mock.Anything, mock.Anything, mock.Anything)
}

func TestDonationUsecase_RequestOnAssignedItem(t *testing.T) {
	f := newDonationFixture()
	f.products.On("GetProduct", mock.Anything, "d1").Return(donationProduct(), nil)
	f.exchanges.On("List", mock.Anything, mock.AnythingOfType("domain.ExchangeFilter")).
		Return([]*domain.Exchange{{ID: "exd", ProductID: "d1", IsDonation: true, Status: domain.ExchangeStatusAccepted}}, nil)

	_, err := f.uc.SubmitDonationRequest(context.Background(), DonationRequestInput{RequesterID: "dave", ProductID: "d1"})

	assert.ErrorIs(t, err, domain.ErrInvalidState)
	f.proposals.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
}
