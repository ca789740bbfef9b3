package domain

import (
	"fmt"
	"math"
	"strings"
	"time"
)

type ProposalKind string

const (
	ProposalKindPrice      ProposalKind = "price"
	ProposalKindExchange   ProposalKind = "exchange"
	ProposalKindMeeting    ProposalKind = "meeting"
	ProposalKindConditions ProposalKind = "conditions"
	ProposalKindOther      ProposalKind = "other"
)

func (k ProposalKind) IsValid() bool {
	switch k {
	case ProposalKindPrice, ProposalKindExchange, ProposalKindMeeting, ProposalKindConditions, ProposalKindOther:
		return true
	}
	return false
}

type ProposalStatus string

const (
	ProposalStatusPending           ProposalStatus = "pending"
	ProposalStatusAccepted          ProposalStatus = "accepted"
	ProposalStatusRejected          ProposalStatus = "rejected"
	ProposalStatusCancelled         ProposalStatus = "cancelled"
	ProposalStatusCounterProposed   ProposalStatus = "counter_proposed"
	ProposalStatusPendingValidation ProposalStatus = "pending_validation"
	ProposalStatusCompleted         ProposalStatus = "completed"
)

func (s ProposalStatus) IsValid() bool {
	_, ok := proposalTransitions[s]
	return ok
}

// IsTerminal reports whether negotiation actions are closed for the status.
// Only pending accepts accept, reject, counter and cancel.
func (s ProposalStatus) IsTerminal() bool {
	return s != ProposalStatusPending
}

var proposalTransitions = map[ProposalStatus][]ProposalStatus{
	ProposalStatusPending:           {ProposalStatusAccepted, ProposalStatusRejected, ProposalStatusCancelled, ProposalStatusCounterProposed},
	ProposalStatusAccepted:          {ProposalStatusPendingValidation, ProposalStatusCompleted},
	ProposalStatusPendingValidation: {ProposalStatusCompleted},
	ProposalStatusRejected:          {},
	ProposalStatusCancelled:         {},
	ProposalStatusCounterProposed:   {},
	ProposalStatusCompleted:         {},
}

// Meeting is a scheduled hand-over.
type Meeting struct {
	Place string
	Date  time.Time
	Notes string
}

// DonationTerms carries the requester's metadata on a donation request.
type DonationTerms struct {
	Organization  string
	IntendedUse   string
	Beneficiaries int
}

// ProposalTerms is a tagged variant keyed by ProposalKind.
type ProposalTerms struct {
	Price      *float64
	Conditions string
	Meeting    *Meeting
	ProductID  string
	Donation   *DonationTerms
}

// Validate checks that the terms match kind.
func (t ProposalTerms) Validate(kind ProposalKind) error {
	if t.Price != nil && !isAmount(*t.Price) {
		return fmt.Errorf("%w: price must be a finite, non-negative amount", ErrValidation)
	}
	switch kind {
	case ProposalKindPrice:
		if t.Price == nil {
			return fmt.Errorf("%w: a price proposal requires a price", ErrValidation)
		}
	case ProposalKindExchange:
		if t.ProductID == "" {
			return fmt.Errorf("%w: an exchange proposal requires a product", ErrValidation)
		}
	case ProposalKindMeeting:
		if t.Meeting == nil || strings.TrimSpace(t.Meeting.Place) == "" || t.Meeting.Date.IsZero() {
			return fmt.Errorf("%w: a meeting proposal requires a place and a date", ErrValidation)
		}
	case ProposalKindConditions:
		if strings.TrimSpace(t.Conditions) == "" {
			return fmt.Errorf("%w: a conditions proposal requires conditions", ErrValidation)
		}
	case ProposalKindOther:
		if t.Donation != nil && t.ProductID != "" {
			return fmt.Errorf("%w: a donation request cannot offer a counterpart product", ErrValidation)
		}
	default:
		return fmt.Errorf("%w: unknown proposal kind %q", ErrValidation, kind)
	}
	return nil
}

// isAmount reports whether v is usable as money: finite and not negative.
func isAmount(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0) && v >= 0
}

// Proposal is a single negotiation offer inside a conversation.
type Proposal struct {
	ID             string
	ConversationID string
	ExchangeID     string
	ParentID       string
	Kind           ProposalKind
	Description    string
	Terms          ProposalTerms
	Status         ProposalStatus
	ProposerID     string
	ReceiverID     string
	ProductID      string
	ChainDepth     int
	CreatedAt      time.Time
	RespondedAt    *time.Time
	Response       string
	UpdatedAt      time.Time
	Version        int64
}

type NewProposalParams struct {
	ConversationID string
	ExchangeID     string
	ParentID       string
	ChainDepth     int
	Kind           ProposalKind
	Description    string
	Terms          ProposalTerms
	ProposerID     string
	ReceiverID     string
	ProductID      string
}

// NewProposal validates params and returns a pending proposal.
func NewProposal(params NewProposalParams, now time.Time) (*Proposal, error) {
	if params.ConversationID == "" {
		return nil, fmt.Errorf("%w: conversation is required", ErrValidation)
	}
	if params.ProposerID == "" || params.ReceiverID == "" {
		return nil, fmt.Errorf("%w: proposer and receiver are required", ErrValidation)
	}
	if params.ProposerID == params.ReceiverID {
		return nil, fmt.Errorf("%w: proposer and receiver must differ", ErrValidation)
	}
	if strings.TrimSpace(params.Description) == "" {
		return nil, fmt.Errorf("%w: description cannot be empty", ErrValidation)
	}
	if !params.Kind.IsValid() {
		return nil, fmt.Errorf("%w: unknown proposal kind %q", ErrValidation, params.Kind)
	}
	if err := params.Terms.Validate(params.Kind); err != nil {
		return nil, err
	}
	return &Proposal{
		ConversationID: params.ConversationID,
		ExchangeID:     params.ExchangeID,
		ParentID:       params.ParentID,
		ChainDepth:     params.ChainDepth,
		Kind:           params.Kind,
		Description:    strings.TrimSpace(params.Description),
		Terms:          params.Terms,
		Status:         ProposalStatusPending,
		ProposerID:     params.ProposerID,
		ReceiverID:     params.ReceiverID,
		ProductID:      params.ProductID,
		CreatedAt:      now,
		UpdatedAt:      now,
		Version:        1,
	}, nil
}

// IsDonationRequest reports whether p is a donation request.
func (p *Proposal) IsDonationRequest() bool {
	return p.Kind == ProposalKindOther && p.Terms.Donation != nil
}

func (p *Proposal) IsParticipant(userID string) bool {
	return userID != "" && (p.ProposerID == userID || p.ReceiverID == userID)
}

func (p *Proposal) transition(to ProposalStatus, now time.Time) error {
	allowed, ok := proposalTransitions[p.Status]
	if !ok {
		return fmt.Errorf("%w: unknown proposal status %q", ErrInvalidState, p.Status)
	}
	for _, s := range allowed {
		if s == to {
			p.Status = to
			p.UpdatedAt = now
			return nil
		}
	}
	return fmt.Errorf("%w: proposal is %s and cannot become %s", ErrInvalidState, p.Status, to)
}

func (p *Proposal) checkReceiver(actorID string) error {
	if !p.IsParticipant(actorID) {
		return ErrNotParticipant
	}
	if p.ReceiverID != actorID {
		return fmt.Errorf("%w: only the receiver can respond to a proposal", ErrNotAuthorized)
	}
	return nil
}

func (p *Proposal) respond(actorID string, to ProposalStatus, response string, now time.Time) error {
	if err := p.checkReceiver(actorID); err != nil {
		return err
	}
	if err := p.transition(to, now); err != nil {
		return err
	}
	p.RespondedAt = &now
	p.Response = response
	return nil
}

// Accept moves a pending proposal to accepted. Receiver only.
func (p *Proposal) Accept(actorID string, now time.Time) error {
	return p.respond(actorID, ProposalStatusAccepted, "", now)
}

// Reject moves a pending proposal to rejected. Receiver only.
func (p *Proposal) Reject(actorID, reason string, now time.Time) error {
	return p.respond(actorID, ProposalStatusRejected, strings.TrimSpace(reason), now)
}

// MarkCountered supersedes a pending proposal by a counter-proposal. Receiver only.
func (p *Proposal) MarkCountered(actorID string, now time.Time) error {
	return p.respond(actorID, ProposalStatusCounterProposed, "", now)
}

// Cancel withdraws a pending proposal. Proposer only.
func (p *Proposal) Cancel(actorID string, now time.Time) error {
	if !p.IsParticipant(actorID) {
		return ErrNotParticipant
	}
	if p.ProposerID != actorID {
		return fmt.Errorf("%w: only the proposer can cancel a proposal", ErrNotAuthorized)
	}
	return p.transition(ProposalStatusCancelled, now)
}

// AutoReject rejects a pending proposal on behalf of the system.
func (p *Proposal) AutoReject(reason string, now time.Time) error {
	if err := p.transition(ProposalStatusRejected, now); err != nil {
		return err
	}
	p.RespondedAt = &now
	p.Response = reason
	return nil
}

// Advance moves an accepted proposal through validation. It is driven by
// the linked exchange, never by a negotiation action.
func (p *Proposal) Advance(to ProposalStatus, now time.Time) error {
	if to != ProposalStatusPendingValidation && to != ProposalStatusCompleted {
		return fmt.Errorf("%w: proposals only advance to validation states", ErrInvalidState)
	}
	return p.transition(to, now)
}
