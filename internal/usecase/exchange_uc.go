package usecase

import (
	"context"
	"fmt"
	"time"

	"github.com/angola031/Ecoswap-sub003/internal/domain"
	"github.com/angola031/Ecoswap-sub003/internal/platform/logger"
	"github.com/angola031/Ecoswap-sub003/internal/platform/metrics"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// ExchangeUsecase implements the exchange record lifecycle and mutual validation.
type ExchangeUsecase struct {
	exchanges     domain.ExchangeRepository
	proposals     domain.ProposalRepository
	products      domain.ProductCatalog
	conversations *ConversationUsecase
	donations     *donationAssigner
	events        *eventDispatcher
	metrics       *metrics.MetricsManager
	logger        *logger.Logger
	now           func() time.Time
}

func NewExchangeUsecase(
	exchanges domain.ExchangeRepository,
	proposals domain.ProposalRepository,
	products domain.ProductCatalog,
	conversations *ConversationUsecase,
	notifier domain.Notifier,
	m *metrics.MetricsManager,
	log *logger.Logger,
	donationRejectAttempts int,
) *ExchangeUsecase {
	l := log.Named("ExchangeUsecase")
	uc := &ExchangeUsecase{
		exchanges:     exchanges,
		proposals:     proposals,
		products:      products,
		conversations: conversations,
		events:        newEventDispatcher(notifier, l),
		metrics:       m,
		logger:        l,
		now:           utcNow,
	}
	uc.donations = newDonationAssigner(proposals, exchanges, uc.events, m, l, donationRejectAttempts, func() time.Time { return uc.now() })
	return uc
}

type ProposeExchangeInput struct {
	ProposerID           string
	ProductID            string
	CounterpartProductID string
	Message              string
	ExtraAmount          float64
	Conditions           string
}

// ProposeExchange creates a pendiente exchange on another user's product.
func (uc *ExchangeUsecase) ProposeExchange(ctx context.Context, in ProposeExchangeInput) (*domain.Exchange, error) {
	ctx, span := tracer.Start(ctx, "ExchangeUsecase.ProposeExchange", trace.WithAttributes(attribute.String("product.id", in.ProductID)))
	defer span.End()

	product, err := uc.products.GetProduct(ctx, in.ProductID)
	if err != nil {
		return nil, err
	}
	if product.OwnerID == in.ProposerID {
		return nil, fmt.Errorf("%w: you cannot propose an exchange on your own product", domain.ErrValidation)
	}
	if !product.IsActive() {
		return nil, fmt.Errorf("%w: product is no longer available", domain.ErrInvalidState)
	}
	if in.CounterpartProductID != "" {
		if product.IsDonation() {
			return nil, fmt.Errorf("%w: donations do not take a counterpart product", domain.ErrValidation)
		}
		if !product.AcceptsCounterpart() {
			return nil, fmt.Errorf("%w: product is not offered for exchange", domain.ErrValidation)
		}
		counterpart, err := uc.products.GetProduct(ctx, in.CounterpartProductID)
		if err != nil {
			return nil, err
		}
		if counterpart.OwnerID != in.ProposerID {
			return nil, fmt.Errorf("%w: the counterpart product must be yours", domain.ErrValidation)
		}
	}

	conv, err := uc.conversations.CreateOrGetConversation(ctx, in.ProposerID, product.OwnerID, product.ID)
	if err != nil {
		return nil, err
	}
	ex, err := domain.NewExchange(domain.NewExchangeParams{
		ProposerID:           in.ProposerID,
		ReceiverID:           product.OwnerID,
		ProductID:            product.ID,
		CounterpartProductID: in.CounterpartProductID,
		ConversationID:       conv.ID,
		Message:              in.Message,
		ExtraAmount:          in.ExtraAmount,
		Conditions:           in.Conditions,
		IsDonation:           product.IsDonation(),
	}, uc.now())
	if err != nil {
		return nil, err
	}
	if err := uc.exchanges.Create(ctx, ex); err != nil {
		uc.logger.Error("Failed to store exchange", zap.Error(err), zap.String("product_id", product.ID))
		return nil, err
	}

	uc.logger.Info("Exchange proposed", zap.String("exchange_id", ex.ID), zap.String("product_id", ex.ProductID))
	uc.metrics.ExchangeTransition(string(ex.Status))
	uc.events.emit(ctx, exchangeEvent(domain.EventExchangeProposed, ex, in.ProposerID))
	return ex, nil
}

// Accept moves a pendiente exchange to aceptado. A donation exchange claims
// its product first and then turns down the pending requests of everyone else.
func (uc *ExchangeUsecase) Accept(ctx context.Context, exchangeID, actorID string) (*domain.Exchange, error) {
	ctx, span := tracer.Start(ctx, "ExchangeUsecase.Accept", trace.WithAttributes(attribute.String("exchange.id", exchangeID)))
	defer span.End()

	ex, err := uc.exchanges.GetByID(ctx, exchangeID)
	if err != nil {
		return nil, err
	}
	if err := ex.Accept(actorID, uc.now()); err != nil {
		return nil, err
	}
	if !ex.IsDonation {
		if err := uc.exchanges.Update(ctx, ex); err != nil {
			return nil, err
		}
		uc.statusChanged(ctx, ex, actorID)
		return ex, nil
	}

	holder := donationHolder(ex)
	if err := uc.donations.claim(ctx, ex.ProductID, holder); err != nil {
		return nil, err
	}
	if err := uc.exchanges.Update(ctx, ex); err != nil {
		uc.donations.releaseUnless(ctx, ex.ProductID, holder, func() (bool, error) {
			stored, err := uc.exchanges.GetByID(ctx, ex.ID)
			if err != nil {
				return false, err
			}
			return stored.Status == domain.ExchangeStatusAccepted || stored.Status == domain.ExchangeStatusCompleted, nil
		})
		return nil, err
	}
	uc.statusChanged(ctx, ex, actorID)
	uc.donations.rejectCompeting(ctx, ex.ProductID, "", actorID)
	return ex, nil
}

func (uc *ExchangeUsecase) Reject(ctx context.Context, exchangeID, actorID, reason string) (*domain.Exchange, error) {
	return uc.transition(ctx, exchangeID, actorID, func(ex *domain.Exchange, now time.Time) error {
		return ex.Reject(actorID, reason, now)
	})
}

func (uc *ExchangeUsecase) Cancel(ctx context.Context, exchangeID, actorID, reason string) (*domain.Exchange, error) {
	return uc.transition(ctx, exchangeID, actorID, func(ex *domain.Exchange, now time.Time) error {
		return ex.Cancel(actorID, reason, now)
	})
}

// Complete closes an aceptado exchange once both parties validated success.
func (uc *ExchangeUsecase) Complete(ctx context.Context, exchangeID, actorID string) (*domain.Exchange, error) {
	return uc.transition(ctx, exchangeID, actorID, func(ex *domain.Exchange, now time.Time) error {
		return ex.Complete(actorID, now)
	})
}

type UpdateMeetingInput struct {
	ExchangeID string
	ActorID    string
	Place      string
	Date       time.Time
	Notes      string
}

func (uc *ExchangeUsecase) UpdateMeeting(ctx context.Context, in UpdateMeetingInput) (*domain.Exchange, error) {
	ex, err := uc.mutate(ctx, in.ExchangeID, func(ex *domain.Exchange, now time.Time) error {
		return ex.UpdateMeeting(in.ActorID, domain.Meeting{Place: in.Place, Date: in.Date, Notes: in.Notes}, now)
	})
	if err != nil {
		return nil, err
	}
	uc.events.emit(ctx, exchangeEvent(domain.EventExchangeMeeting, ex, in.ActorID))
	return ex, nil
}

func (uc *ExchangeUsecase) SetExtraAmount(ctx context.Context, exchangeID, actorID string, amount float64) (*domain.Exchange, error) {
	ex, err := uc.mutate(ctx, exchangeID, func(ex *domain.Exchange, now time.Time) error {
		return ex.SetExtraAmount(actorID, amount, now)
	})
	if err != nil {
		return nil, err
	}
	uc.events.emit(ctx, exchangeEvent(domain.EventExchangeAmount, ex, actorID))
	return ex, nil
}

type SubmitValidationInput struct {
	ExchangeID string
	UserID     string
	Succeeded  bool
	Comment    string
	At         time.Time
}

// SubmitValidation records a participant's post-meeting validation. The
// second success completes the exchange in the same write; a failure cancels it.
func (uc *ExchangeUsecase) SubmitValidation(ctx context.Context, in SubmitValidationInput) (*domain.Exchange, error) {
	ctx, span := tracer.Start(ctx, "ExchangeUsecase.SubmitValidation", trace.WithAttributes(attribute.String("exchange.id", in.ExchangeID)))
	defer span.End()

	ex, err := uc.mutate(ctx, in.ExchangeID, func(ex *domain.Exchange, now time.Time) error {
		return ex.SubmitValidation(in.UserID, in.Succeeded, in.Comment, in.At, now)
	})
	if err != nil {
		return nil, err
	}

	uc.logger.Info("Exchange validation submitted",
		zap.String("exchange_id", ex.ID),
		zap.String("user_id", in.UserID),
		zap.Bool("succeeded", in.Succeeded),
		zap.String("status", string(ex.Status)))

	switch ex.Status {
	case domain.ExchangeStatusCompleted, domain.ExchangeStatusCancelled:
		uc.afterStatusChange(ctx, ex, in.UserID)
	default:
		uc.advanceLinkedProposals(ctx, ex, domain.ProposalStatusPendingValidation)
		uc.events.emit(ctx, exchangeEvent(domain.EventExchangeValidate, ex, in.UserID))
	}
	return ex, nil
}

func (uc *ExchangeUsecase) GetExchange(ctx context.Context, exchangeID, actorID string) (*domain.Exchange, error) {
	ex, err := uc.exchanges.GetByID(ctx, exchangeID)
	if err != nil {
		return nil, err
	}
	if !ex.IsParticipant(actorID) {
		return nil, domain.ErrNotParticipant
	}
	return ex, nil
}

// ListForUser lists exchanges the user proposed, received, or both.
func (uc *ExchangeUsecase) ListForUser(ctx context.Context, userID string, role Role, status *domain.ExchangeStatus) ([]*domain.Exchange, error) {
	filter := domain.ExchangeFilter{Statuses: statusFilter(status)}
	switch role {
	case RoleProposed:
		filter.ProposerID = userID
	case RoleReceived:
		filter.ReceiverID = userID
	default:
		filter.ParticipantID = userID
	}
	return uc.exchanges.List(ctx, filter)
}

// mutate loads the exchange, applies fn and stores it with a CAS on its version.
// A lost race is reported as ErrConcurrentModification, not retried.
func (uc *ExchangeUsecase) mutate(ctx context.Context, exchangeID string, fn func(ex *domain.Exchange, now time.Time) error) (*domain.Exchange, error) {
	ex, err := uc.exchanges.GetByID(ctx, exchangeID)
	if err != nil {
		return nil, err
	}
	if err := fn(ex, uc.now()); err != nil {
		return nil, err
	}
	if err := uc.exchanges.Update(ctx, ex); err != nil {
		return nil, err
	}
	return ex, nil
}

func (uc *ExchangeUsecase) transition(ctx context.Context, exchangeID, actorID string, fn func(ex *domain.Exchange, now time.Time) error) (*domain.Exchange, error) {
	ex, err := uc.mutate(ctx, exchangeID, fn)
	if err != nil {
		return nil, err
	}
	uc.statusChanged(ctx, ex, actorID)
	return ex, nil
}

func (uc *ExchangeUsecase) statusChanged(ctx context.Context, ex *domain.Exchange, actorID string) {
	uc.logger.Info("Exchange status changed",
		zap.String("exchange_id", ex.ID),
		zap.String("status", string(ex.Status)),
		zap.String("actor_id", actorID))
	uc.afterStatusChange(ctx, ex, actorID)
}

// afterStatusChange runs the side effects of a stored transition. Completion
// carries the linked proposals along. Cancellation leaves them as they are:
// they keep the terms that were agreed, and the exchange status tells whether
// the deal went through. A cancelled donation frees its product.
func (uc *ExchangeUsecase) afterStatusChange(ctx context.Context, ex *domain.Exchange, actorID string) {
	uc.metrics.ExchangeTransition(string(ex.Status))
	uc.events.emit(ctx, exchangeEvent(domain.ExchangeEventKind(ex.Status), ex, actorID))
	if ex.IsDonation && ex.Status == domain.ExchangeStatusCancelled {
		uc.donations.release(ctx, ex.ProductID, donationHolder(ex))
	}
	if ex.Status != domain.ExchangeStatusCompleted {
		return
	}

	uc.advanceLinkedProposals(ctx, ex, domain.ProposalStatusCompleted)
	sold := []struct{ productID, ownerID string }{{ex.ProductID, ex.ReceiverID}}
	if ex.CounterpartProductID != "" {
		sold = append(sold, struct{ productID, ownerID string }{ex.CounterpartProductID, ex.ProposerID})
	}
	for _, s := range sold {
		uc.events.emit(ctx, domain.Event{
			Kind:       domain.EventProductSold,
			ActorID:    actorID,
			TargetID:   s.ownerID,
			EntityType: "product",
			EntityID:   s.productID,
			OccurredAt: ex.UpdatedAt,
			Data:       map[string]any{"exchange_id": ex.ID, "is_donation": ex.IsDonation},
		})
	}
}

// advanceLinkedProposals moves the exchange's accepted proposals along with it.
// The exchange is the durable record; failures here are logged only.
func (uc *ExchangeUsecase) advanceLinkedProposals(ctx context.Context, ex *domain.Exchange, to domain.ProposalStatus) {
	linked, err := uc.proposals.List(ctx, domain.ProposalFilter{
		ExchangeID: ex.ID,
		Statuses:   []domain.ProposalStatus{domain.ProposalStatusAccepted, domain.ProposalStatusPendingValidation},
	})
	if err != nil {
		uc.logger.Warn("Failed to list proposals linked to exchange", zap.Error(err), zap.String("exchange_id", ex.ID))
		return
	}
	for _, p := range linked {
		if p.Status == to {
			continue
		}
		if err := p.Advance(to, uc.now()); err != nil {
			continue
		}
		if err := uc.proposals.Update(ctx, p); err != nil {
			uc.logger.Warn("Failed to advance proposal with its exchange", zap.Error(err),
				zap.String("proposal_id", p.ID), zap.String("status", string(to)))
			continue
		}
		uc.metrics.ProposalTransition(string(p.Kind), string(p.Status))
	}
}
