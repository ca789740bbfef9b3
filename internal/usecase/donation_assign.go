package usecase

import (
	"context"
	"errors"
	"time"

	"github.com/angola031/Ecoswap-sub003/internal/domain"
	"github.com/angola031/Ecoswap-sub003/internal/platform/logger"
	"github.com/angola031/Ecoswap-sub003/internal/platform/metrics"
	"go.uber.org/zap"
)

// DonationAssignedResponse is recorded on donation requests auto-rejected
// because the item went to another requester.
const DonationAssignedResponse = "donation assigned to another requester"

// donationAssigner hands a donation product to exactly one requester. The
// claim stored through ExchangeRepository.ClaimDonation decides the winner;
// the sweep over pending requests runs after the winning write.
type donationAssigner struct {
	proposals domain.ProposalRepository
	exchanges domain.ExchangeRepository
	events    *eventDispatcher
	metrics   *metrics.MetricsManager
	logger    *logger.Logger
	attempts  int
	now       func() time.Time
}

func newDonationAssigner(
	proposals domain.ProposalRepository,
	exchanges domain.ExchangeRepository,
	events *eventDispatcher,
	m *metrics.MetricsManager,
	log *logger.Logger,
	attempts int,
	now func() time.Time,
) *donationAssigner {
	if attempts < 1 {
		attempts = 1
	}
	return &donationAssigner{
		proposals: proposals,
		exchanges: exchanges,
		events:    events,
		metrics:   m,
		logger:    log,
		attempts:  attempts,
		now:       now,
	}
}

// donationHolder names the claim an exchange holds on its donation product:
// the proposal that created it, or the exchange itself when it was proposed directly.
func donationHolder(ex *domain.Exchange) string {
	if ex.ProposalID != "" {
		return ex.ProposalID
	}
	return ex.ID
}

func (a *donationAssigner) claim(ctx context.Context, productID, holderID string) error {
	if err := a.exchanges.ClaimDonation(ctx, productID, holderID); err != nil {
		if errors.Is(err, domain.ErrInvalidState) {
			a.logger.Info("Donation already assigned", zap.String("product_id", productID), zap.String("holder_id", holderID))
		}
		return err
	}
	return nil
}

// release drops holderID's claim. A failed release leaves the item assigned.
func (a *donationAssigner) release(ctx context.Context, productID, holderID string) {
	if err := a.exchanges.ReleaseDonation(ctx, productID, holderID); err != nil {
		a.logger.Error("Failed to release donation claim", zap.Error(err),
			zap.String("product_id", productID), zap.String("holder_id", holderID))
	}
}

// releaseUnless drops the claim after a lost accept unless stillHeld reports
// that the claimed entity went through anyway.
func (a *donationAssigner) releaseUnless(ctx context.Context, productID, holderID string, stillHeld func() (bool, error)) {
	held, err := stillHeld()
	if err != nil {
		a.logger.Error("Could not tell whether a lost accept still holds its donation claim", zap.Error(err),
			zap.String("product_id", productID), zap.String("holder_id", holderID))
		return
	}
	if !held {
		a.release(ctx, productID, holderID)
	}
}

// rejectCompeting rejects every pending donation request for productID except
// keepID. Each rejection is a CAS that is re-read and retried on conflict;
// requests that still fail are logged, never skipped silently.
func (a *donationAssigner) rejectCompeting(ctx context.Context, productID, keepID, actorID string) {
	siblings, err := a.proposals.List(ctx, domain.ProposalFilter{
		ProductID:    productID,
		Statuses:     []domain.ProposalStatus{domain.ProposalStatusPending},
		DonationOnly: true,
	})
	if err != nil {
		a.logger.Error("Failed to list competing donation requests", zap.Error(err), zap.String("product_id", productID))
		return
	}

	for _, s := range siblings {
		if s.ID == keepID {
			continue
		}
		current := s
		rejected := false
		err := retryOnConflict(ctx, a.attempts, func(attempt int) error {
			if attempt > 0 {
				fresh, err := a.proposals.GetByID(ctx, s.ID)
				if err != nil {
					return err
				}
				current = fresh
			}
			if current.Status != domain.ProposalStatusPending {
				return nil
			}
			if err := current.AutoReject(DonationAssignedResponse, a.now()); err != nil {
				return err
			}
			if err := a.proposals.Update(ctx, current); err != nil {
				return err
			}
			rejected = true
			return nil
		})
		if err != nil {
			a.logger.Error("Failed to auto-reject donation request",
				zap.Error(err),
				zap.String("proposal_id", s.ID),
				zap.String("product_id", productID))
			continue
		}
		if rejected {
			a.metrics.ProposalTransition(string(current.Kind), string(current.Status))
			a.events.emit(ctx, proposalEvent(domain.EventProposalRejected, current, actorID, current.ProposerID))
		}
	}
}
