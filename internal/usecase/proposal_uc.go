package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/angola031/Ecoswap-sub003/internal/domain"
	"github.com/angola031/Ecoswap-sub003/internal/platform/logger"
	"github.com/angola031/Ecoswap-sub003/internal/platform/metrics"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// ProposalOptions tunes the proposal engine.
type ProposalOptions struct {
	// MaxCounterChain caps counter-proposal depth. Zero means unbounded.
	MaxCounterChain int
	// DonationRejectAttempts bounds CAS retries per auto-rejected donation request.
	DonationRejectAttempts int
}

// ProposalUsecase implements the proposal state machine and its effect on exchanges.
type ProposalUsecase struct {
	proposals     domain.ProposalRepository
	exchanges     domain.ExchangeRepository
	conversations domain.ConversationRepository
	products      domain.ProductCatalog
	donations     *donationAssigner
	events        *eventDispatcher
	metrics       *metrics.MetricsManager
	logger        *logger.Logger
	opts          ProposalOptions
	now           func() time.Time
}

func NewProposalUsecase(
	proposals domain.ProposalRepository,
	exchanges domain.ExchangeRepository,
	conversations domain.ConversationRepository,
	products domain.ProductCatalog,
	notifier domain.Notifier,
	m *metrics.MetricsManager,
	log *logger.Logger,
	opts ProposalOptions,
) *ProposalUsecase {
	if opts.DonationRejectAttempts < 1 {
		opts.DonationRejectAttempts = 1
	}
	l := log.Named("ProposalUsecase")
	uc := &ProposalUsecase{
		proposals:     proposals,
		exchanges:     exchanges,
		conversations: conversations,
		products:      products,
		events:        newEventDispatcher(notifier, l),
		metrics:       m,
		logger:        l,
		opts:          opts,
		now:           utcNow,
	}
	uc.donations = newDonationAssigner(proposals, exchanges, uc.events, m, l, opts.DonationRejectAttempts, func() time.Time { return uc.now() })
	return uc
}

// ProposeInput creates a proposal. ReceiverID defaults to the other
// participant and ProductID to the conversation's product.
type ProposeInput struct {
	ConversationID string
	ProposerID     string
	ReceiverID     string
	ExchangeID     string
	ProductID      string
	Kind           domain.ProposalKind
	Description    string
	Terms          domain.ProposalTerms
}

// Propose stores a new pending proposal.
func (uc *ProposalUsecase) Propose(ctx context.Context, in ProposeInput) (*domain.Proposal, error) {
	ctx, span := tracer.Start(ctx, "ProposalUsecase.Propose")
	defer span.End()

	conv, err := uc.conversations.GetByID(ctx, in.ConversationID)
	if err != nil {
		return nil, err
	}
	if !conv.HasParticipant(in.ProposerID) {
		return nil, domain.ErrNotParticipant
	}
	if in.ReceiverID == "" {
		in.ReceiverID = conv.OtherParticipant(in.ProposerID)
	}
	if in.ReceiverID != in.ProposerID && !conv.HasParticipant(in.ReceiverID) {
		return nil, fmt.Errorf("%w: receiver is not part of the conversation", domain.ErrNotParticipant)
	}
	if !conv.Active {
		return nil, fmt.Errorf("%w: conversation is inactive", domain.ErrInvalidState)
	}
	if in.ProductID == "" {
		in.ProductID = conv.ProductID
	}

	p, err := domain.NewProposal(domain.NewProposalParams{
		ConversationID: conv.ID,
		ExchangeID:     in.ExchangeID,
		Kind:           in.Kind,
		Description:    in.Description,
		Terms:          in.Terms,
		ProposerID:     in.ProposerID,
		ReceiverID:     in.ReceiverID,
		ProductID:      in.ProductID,
	}, uc.now())
	if err != nil {
		return nil, err
	}
	if err := uc.checkReferences(ctx, p); err != nil {
		return nil, err
	}
	if err := uc.ensureNoPending(ctx, p.ConversationID, p.ProposerID, p.ReceiverID); err != nil {
		return nil, err
	}

	if err := uc.proposals.Create(ctx, p); err != nil {
		if !errors.Is(err, domain.ErrDuplicatePending) {
			uc.logger.Error("Failed to store proposal", zap.Error(err), zap.String("conversation_id", p.ConversationID))
		}
		return nil, err
	}
	span.SetAttributes(attribute.String("proposal.id", p.ID), attribute.String("proposal.kind", string(p.Kind)))

	uc.logger.Info("Proposal created",
		zap.String("proposal_id", p.ID),
		zap.String("kind", string(p.Kind)),
		zap.String("conversation_id", p.ConversationID))
	uc.metrics.ProposalTransition(string(p.Kind), string(p.Status))
	uc.emitProposal(ctx, domain.EventProposalCreated, p, p.ProposerID, p.ReceiverID)
	return p, nil
}

// AcceptResult carries the accepted proposal and the exchange it created or updated.
type AcceptResult struct {
	Proposal *domain.Proposal
	Exchange *domain.Exchange
}

// Accept accepts a pending proposal and records the deal on an exchange.
// Of two concurrent accepts exactly one wins; the loser gets
// ErrConcurrentModification and no exchange is written on its behalf.
// A donation request first claims its product, so of two requests for the
// same item at most one is accepted.
func (uc *ProposalUsecase) Accept(ctx context.Context, proposalID, actorID string) (*AcceptResult, error) {
	ctx, span := tracer.Start(ctx, "ProposalUsecase.Accept", trace.WithAttributes(attribute.String("proposal.id", proposalID)))
	defer span.End()

	p, err := uc.proposals.GetByID(ctx, proposalID)
	if err != nil {
		return nil, err
	}
	if acceptInterrupted(p, actorID) {
		return uc.resumeAccept(ctx, p, actorID)
	}
	now := uc.now()
	if err := p.Accept(actorID, now); err != nil {
		return nil, err
	}

	var (
		linked  *domain.Exchange
		product *domain.Product
	)
	if p.ExchangeID != "" {
		if linked, err = uc.exchanges.GetByID(ctx, p.ExchangeID); err != nil {
			return nil, err
		}
		if !linked.Status.IsOpen() {
			return nil, fmt.Errorf("%w: the linked exchange is %s", domain.ErrInvalidState, linked.Status)
		}
	} else if p.ProductID != "" {
		if product, err = uc.products.GetProduct(ctx, p.ProductID); err != nil {
			return nil, err
		}
	}

	holder := p.ID
	if linked != nil {
		holder = donationHolder(linked)
	}
	if p.IsDonationRequest() {
		if err := uc.donations.claim(ctx, p.ProductID, holder); err != nil {
			return nil, err
		}
	}

	if err := uc.proposals.Update(ctx, p); err != nil {
		if errors.Is(err, domain.ErrConcurrentModification) {
			uc.logger.Info("Proposal accept lost a concurrent race", zap.String("proposal_id", p.ID))
		}
		if p.IsDonationRequest() {
			uc.donations.releaseUnless(ctx, p.ProductID, holder, func() (bool, error) {
				stored, err := uc.proposals.GetByID(ctx, p.ID)
				if err != nil {
					return false, err
				}
				return stored.Status == domain.ProposalStatusAccepted, nil
			})
		}
		return nil, err
	}
	uc.metrics.ProposalTransition(string(p.Kind), string(p.Status))
	return uc.finishAccept(ctx, p, linked, product, actorID)
}

// acceptInterrupted reports an accepted proposal whose exchange was never
// recorded: the receiver retrying the accept finishes it.
func acceptInterrupted(p *domain.Proposal, actorID string) bool {
	return p.Status == domain.ProposalStatusAccepted &&
		p.ExchangeID == "" &&
		p.ProductID != "" &&
		p.ReceiverID == actorID
}

// resumeAccept records the exchange of a proposal stored as accepted by an
// earlier attempt. The unique proposal index on exchanges keeps two resumes
// from recording the deal twice.
func (uc *ProposalUsecase) resumeAccept(ctx context.Context, p *domain.Proposal, actorID string) (*AcceptResult, error) {
	recorded, err := uc.exchanges.List(ctx, domain.ExchangeFilter{ProposalID: p.ID})
	if err != nil {
		return nil, err
	}
	if len(recorded) > 0 {
		return nil, fmt.Errorf("%w: proposal is already accepted", domain.ErrInvalidState)
	}
	product, err := uc.products.GetProduct(ctx, p.ProductID)
	if err != nil {
		return nil, err
	}
	if p.IsDonationRequest() {
		if err := uc.donations.claim(ctx, p.ProductID, p.ID); err != nil {
			return nil, err
		}
	}
	uc.logger.Info("Resuming accept of a proposal without exchange", zap.String("proposal_id", p.ID))
	return uc.finishAccept(ctx, p, nil, product, actorID)
}

func (uc *ProposalUsecase) finishAccept(ctx context.Context, p *domain.Proposal, linked *domain.Exchange, product *domain.Product, actorID string) (*AcceptResult, error) {
	var (
		ex  *domain.Exchange
		err error
	)
	if linked != nil {
		ex, err = uc.applyToLinkedExchange(ctx, linked, p)
	} else {
		ex, err = uc.createExchangeFor(ctx, p, product)
	}
	if err != nil {
		return nil, err
	}

	if p.IsDonationRequest() {
		uc.donations.rejectCompeting(ctx, p.ProductID, p.ID, p.ReceiverID)
	}

	uc.logger.Info("Proposal accepted", zap.String("proposal_id", p.ID), zap.String("actor_id", actorID))
	uc.emitProposal(ctx, domain.EventProposalAccepted, p, actorID, p.ProposerID)
	if ex != nil {
		uc.emitExchange(ctx, ex, actorID)
	}
	return &AcceptResult{Proposal: p, Exchange: ex}, nil
}

func (uc *ProposalUsecase) applyToLinkedExchange(ctx context.Context, linked *domain.Exchange, p *domain.Proposal) (*domain.Exchange, error) {
	ex := linked
	err := retryOnConflict(ctx, 3, func(attempt int) error {
		if attempt > 0 {
			fresh, err := uc.exchanges.GetByID(ctx, linked.ID)
			if err != nil {
				return err
			}
			ex = fresh
		}
		if err := ex.AcceptProposal(p, uc.now()); err != nil {
			return err
		}
		return uc.exchanges.Update(ctx, ex)
	})
	if err != nil {
		uc.logger.Error("Proposal accepted but linked exchange could not be updated",
			zap.Error(err), zap.String("proposal_id", p.ID), zap.String("exchange_id", linked.ID))
		return nil, err
	}
	uc.metrics.ExchangeTransition(string(ex.Status))
	return ex, nil
}

// createExchangeFor records the accepted proposal as an aceptado exchange. A
// failed insert leaves the proposal accepted; the receiver's retry resumes here.
func (uc *ProposalUsecase) createExchangeFor(ctx context.Context, p *domain.Proposal, product *domain.Product) (*domain.Exchange, error) {
	if product == nil {
		uc.logger.Debug("Accepted proposal has no product anchor, no exchange recorded", zap.String("proposal_id", p.ID))
		return nil, nil
	}

	ex, err := domain.NewExchangeFromProposal(p, product.OwnerID, uc.now())
	if err != nil {
		return nil, err
	}
	if err := uc.exchanges.Create(ctx, ex); err != nil {
		if errors.Is(err, domain.ErrConflict) {
			return nil, fmt.Errorf("%w: an exchange was already recorded for this proposal", domain.ErrConcurrentModification)
		}
		uc.logger.Error("Failed to create exchange for accepted proposal", zap.Error(err), zap.String("proposal_id", p.ID))
		return nil, err
	}
	uc.metrics.ExchangeTransition(string(ex.Status))

	p.ExchangeID = ex.ID
	if err := uc.proposals.Update(ctx, p); err != nil {
		uc.logger.Warn("Failed to link proposal to its exchange", zap.Error(err),
			zap.String("proposal_id", p.ID), zap.String("exchange_id", ex.ID))
	}
	return ex, nil
}

// Reject rejects a pending proposal. A linked pendiente exchange is rejected
// with the same reason; other linked exchanges only record it.
func (uc *ProposalUsecase) Reject(ctx context.Context, proposalID, actorID, reason string) (*domain.Proposal, error) {
	ctx, span := tracer.Start(ctx, "ProposalUsecase.Reject", trace.WithAttributes(attribute.String("proposal.id", proposalID)))
	defer span.End()

	p, err := uc.proposals.GetByID(ctx, proposalID)
	if err != nil {
		return nil, err
	}
	if err := p.Reject(actorID, reason, uc.now()); err != nil {
		return nil, err
	}
	if err := uc.proposals.Update(ctx, p); err != nil {
		return nil, err
	}
	uc.metrics.ProposalTransition(string(p.Kind), string(p.Status))

	if p.ExchangeID != "" {
		uc.recordRejectionOnExchange(ctx, p, actorID)
	}

	uc.logger.Info("Proposal rejected", zap.String("proposal_id", p.ID), zap.String("actor_id", actorID))
	uc.emitProposal(ctx, domain.EventProposalRejected, p, actorID, p.ProposerID)
	return p, nil
}

func (uc *ProposalUsecase) recordRejectionOnExchange(ctx context.Context, p *domain.Proposal, actorID string) {
	var ex *domain.Exchange
	var before domain.ExchangeStatus
	err := retryOnConflict(ctx, 3, func(int) error {
		var err error
		if ex, err = uc.exchanges.GetByID(ctx, p.ExchangeID); err != nil {
			return err
		}
		before = ex.Status
		ex.RecordProposalRejection(p.Response, uc.now())
		return uc.exchanges.Update(ctx, ex)
	})
	if err != nil {
		uc.logger.Warn("Failed to record proposal rejection on exchange", zap.Error(err),
			zap.String("proposal_id", p.ID), zap.String("exchange_id", p.ExchangeID))
		return
	}
	if ex.Status != before {
		uc.metrics.ExchangeTransition(string(ex.Status))
		uc.emitExchange(ctx, ex, actorID)
	}
}

// CounterInput holds the terms of a counter-proposal.
type CounterInput struct {
	Kind        domain.ProposalKind
	Description string
	Terms       domain.ProposalTerms
}

// CounterPropose replaces a pending proposal by a role-reversed one. The new
// proposal is stored first; if the original can no longer be superseded it is removed again.
func (uc *ProposalUsecase) CounterPropose(ctx context.Context, proposalID, actorID string, in CounterInput) (*domain.Proposal, error) {
	ctx, span := tracer.Start(ctx, "ProposalUsecase.CounterPropose", trace.WithAttributes(attribute.String("proposal.id", proposalID)))
	defer span.End()

	orig, err := uc.proposals.GetByID(ctx, proposalID)
	if err != nil {
		return nil, err
	}
	now := uc.now()
	probe := *orig
	if err := probe.MarkCountered(actorID, now); err != nil {
		return nil, err
	}
	depth := orig.ChainDepth + 1
	if uc.opts.MaxCounterChain > 0 && depth > uc.opts.MaxCounterChain {
		return nil, fmt.Errorf("%w: counter-proposal limit of %d reached, accept or reject instead", domain.ErrInvalidState, uc.opts.MaxCounterChain)
	}

	counter, err := domain.NewProposal(domain.NewProposalParams{
		ConversationID: orig.ConversationID,
		ExchangeID:     orig.ExchangeID,
		ParentID:       orig.ID,
		ChainDepth:     depth,
		Kind:           in.Kind,
		Description:    in.Description,
		Terms:          in.Terms,
		ProposerID:     actorID,
		ReceiverID:     orig.ProposerID,
		ProductID:      orig.ProductID,
	}, now)
	if err != nil {
		return nil, err
	}
	if err := uc.checkReferences(ctx, counter); err != nil {
		return nil, err
	}
	if err := uc.ensureNoPending(ctx, counter.ConversationID, counter.ProposerID, counter.ReceiverID); err != nil {
		return nil, err
	}
	if err := uc.proposals.Create(ctx, counter); err != nil {
		return nil, err
	}

	if err := orig.MarkCountered(actorID, now); err != nil {
		return nil, err
	}
	if err := uc.proposals.Update(ctx, orig); err != nil {
		if delErr := uc.proposals.Delete(ctx, counter.ID); delErr != nil {
			uc.logger.Error("Failed to remove orphaned counter-proposal", zap.Error(delErr), zap.String("proposal_id", counter.ID))
		}
		return nil, err
	}

	uc.metrics.ProposalTransition(string(orig.Kind), string(orig.Status))
	uc.metrics.ProposalTransition(string(counter.Kind), string(counter.Status))
	uc.logger.Info("Counter-proposal created",
		zap.String("proposal_id", counter.ID),
		zap.String("parent_id", orig.ID),
		zap.Int("chain_depth", counter.ChainDepth))
	uc.emitProposal(ctx, domain.EventProposalCounter, counter, actorID, counter.ReceiverID)
	return counter, nil
}

// Cancel withdraws a pending proposal. Only its proposer may cancel it.
func (uc *ProposalUsecase) Cancel(ctx context.Context, proposalID, actorID string) (*domain.Proposal, error) {
	p, err := uc.proposals.GetByID(ctx, proposalID)
	if err != nil {
		return nil, err
	}
	if err := p.Cancel(actorID, uc.now()); err != nil {
		return nil, err
	}
	if err := uc.proposals.Update(ctx, p); err != nil {
		return nil, err
	}
	uc.metrics.ProposalTransition(string(p.Kind), string(p.Status))
	uc.emitProposal(ctx, domain.EventProposalCancel, p, actorID, p.ReceiverID)
	return p, nil
}

func (uc *ProposalUsecase) GetProposal(ctx context.Context, proposalID, actorID string) (*domain.Proposal, error) {
	p, err := uc.proposals.GetByID(ctx, proposalID)
	if err != nil {
		return nil, err
	}
	if !p.IsParticipant(actorID) {
		return nil, domain.ErrNotParticipant
	}
	return p, nil
}

// ListByConversation lists a conversation's proposals, optionally by status.
func (uc *ProposalUsecase) ListByConversation(ctx context.Context, conversationID, actorID string, status *domain.ProposalStatus) ([]*domain.Proposal, error) {
	conv, err := uc.conversations.GetByID(ctx, conversationID)
	if err != nil {
		return nil, err
	}
	if !conv.HasParticipant(actorID) {
		return nil, domain.ErrNotParticipant
	}
	return uc.proposals.List(ctx, domain.ProposalFilter{ConversationID: conv.ID, Statuses: statusFilter(status)})
}

// ListForUser lists the proposals a user made, received, or both.
func (uc *ProposalUsecase) ListForUser(ctx context.Context, userID string, role Role, status *domain.ProposalStatus) ([]*domain.Proposal, error) {
	filter := domain.ProposalFilter{Statuses: statusFilter(status)}
	switch role {
	case RoleProposed:
		filter.ProposerID = userID
	case RoleReceived:
		filter.ReceiverID = userID
	default:
		filter.ParticipantID = userID
	}
	return uc.proposals.List(ctx, filter)
}

// checkReferences verifies the exchange, anchor product and counterpart
// product a proposal points at.
func (uc *ProposalUsecase) checkReferences(ctx context.Context, p *domain.Proposal) error {
	if p.ExchangeID != "" {
		ex, err := uc.exchanges.GetByID(ctx, p.ExchangeID)
		if err != nil {
			return err
		}
		if !ex.IsParticipant(p.ProposerID) || !ex.IsParticipant(p.ReceiverID) {
			return fmt.Errorf("%w: the exchange belongs to other users", domain.ErrNotParticipant)
		}
		if !ex.Status.IsOpen() {
			return fmt.Errorf("%w: the exchange is %s", domain.ErrInvalidState, ex.Status)
		}
	}
	if err := uc.checkAnchorProduct(ctx, p); err != nil {
		return err
	}
	if p.Kind == domain.ProposalKindExchange {
		if p.Terms.ProductID == p.ProductID {
			return fmt.Errorf("%w: a product cannot be exchanged for itself", domain.ErrValidation)
		}
		if _, err := uc.products.GetProduct(ctx, p.Terms.ProductID); err != nil {
			return err
		}
	}
	return nil
}

// checkAnchorProduct ties donation terms to donation products. Outside an
// assigned exchange a donation product only takes donation requests, and it
// never takes a counterpart product.
func (uc *ProposalUsecase) checkAnchorProduct(ctx context.Context, p *domain.Proposal) error {
	if p.ProductID == "" {
		if p.Terms.Donation != nil {
			return fmt.Errorf("%w: a donation request needs a product", domain.ErrValidation)
		}
		return nil
	}
	product, err := uc.products.GetProduct(ctx, p.ProductID)
	if err != nil {
		return err
	}
	if !product.IsDonation() {
		if p.Terms.Donation != nil {
			return fmt.Errorf("%w: product is not offered as a donation", domain.ErrValidation)
		}
		return nil
	}
	if p.Kind == domain.ProposalKindExchange || p.Terms.ProductID != "" {
		return fmt.Errorf("%w: donations do not take a counterpart product", domain.ErrValidation)
	}
	if p.ExchangeID == "" && !p.IsDonationRequest() {
		return fmt.Errorf("%w: a donation only takes donation requests", domain.ErrValidation)
	}
	return nil
}

func (uc *ProposalUsecase) ensureNoPending(ctx context.Context, conversationID, proposerID, receiverID string) error {
	pending, err := uc.proposals.FindPending(ctx, conversationID, proposerID, receiverID)
	switch {
	case err == nil:
		return fmt.Errorf("%w: proposal %s is still waiting for an answer", domain.ErrDuplicatePending, pending.ID)
	case errors.Is(err, domain.ErrNotFound):
		return nil
	default:
		return err
	}
}

func (uc *ProposalUsecase) ensureDonationUnassigned(ctx context.Context, productID string) error {
	open, err := uc.exchanges.List(ctx, domain.ExchangeFilter{
		ProductID:    productID,
		DonationOnly: true,
		Statuses:     []domain.ExchangeStatus{domain.ExchangeStatusPending, domain.ExchangeStatusAccepted, domain.ExchangeStatusCompleted},
	})
	if err != nil {
		return err
	}
	if len(open) > 0 {
		return fmt.Errorf("%w: this donation was already assigned", domain.ErrInvalidState)
	}
	return nil
}

func (uc *ProposalUsecase) emitProposal(ctx context.Context, kind domain.EventKind, p *domain.Proposal, actorID, targetID string) {
	uc.events.emit(ctx, proposalEvent(kind, p, actorID, targetID))
}

func proposalEvent(kind domain.EventKind, p *domain.Proposal, actorID, targetID string) domain.Event {
	return domain.Event{
		Kind:       kind,
		ActorID:    actorID,
		TargetID:   targetID,
		EntityType: "proposal",
		EntityID:   p.ID,
		OccurredAt: p.UpdatedAt,
		Data: map[string]any{
			"conversation_id": p.ConversationID,
			"kind":            string(p.Kind),
			"status":          string(p.Status),
			"product_id":      p.ProductID,
		},
	}
}

func (uc *ProposalUsecase) emitExchange(ctx context.Context, ex *domain.Exchange, actorID string) {
	uc.events.emit(ctx, exchangeEvent(domain.ExchangeEventKind(ex.Status), ex, actorID))
}

func exchangeEvent(kind domain.EventKind, ex *domain.Exchange, actorID string) domain.Event {
	return domain.Event{
		Kind:       kind,
		ActorID:    actorID,
		TargetID:   ex.OtherParty(actorID),
		EntityType: "exchange",
		EntityID:   ex.ID,
		OccurredAt: ex.UpdatedAt,
		Data: map[string]any{
			"status":      string(ex.Status),
			"product_id":  ex.ProductID,
			"is_donation": ex.IsDonation,
		},
	}
}

func statusFilter[S ~string](status *S) []S {
	if status == nil || *status == "" {
		return nil
	}
	return []S{*status}
}
