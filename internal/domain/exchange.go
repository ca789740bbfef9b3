package domain

import (
	"fmt"
	"strings"
	"time"
)

type ExchangeStatus string

const (
	ExchangeStatusPending   ExchangeStatus = "pendiente"
	ExchangeStatusAccepted  ExchangeStatus = "aceptado"
	ExchangeStatusCompleted ExchangeStatus = "completado"
	ExchangeStatusRejected  ExchangeStatus = "rechazado"
	ExchangeStatusCancelled ExchangeStatus = "cancelado"
)

func (s ExchangeStatus) IsValid() bool {
	_, ok := exchangeTransitions[s]
	return ok
}

func (s ExchangeStatus) IsOpen() bool {
	return s == ExchangeStatusPending || s == ExchangeStatusAccepted
}

var exchangeTransitions = map[ExchangeStatus][]ExchangeStatus{
	ExchangeStatusPending:   {ExchangeStatusAccepted, ExchangeStatusRejected, ExchangeStatusCancelled},
	ExchangeStatusAccepted:  {ExchangeStatusCompleted, ExchangeStatusCancelled},
	ExchangeStatusCompleted: {},
	ExchangeStatusRejected:  {},
	ExchangeStatusCancelled: {},
}

// RequiredValidations is the number of successful validations that completes an exchange.
const RequiredValidations = 2

// Validation is one participant's post-meeting confirmation.
type Validation struct {
	UserID      string
	Succeeded   bool
	Comment     string
	SubmittedAt time.Time
}

// Exchange is the durable record of a negotiated deal.
type Exchange struct {
	ID                   string
	ProposerID           string
	ReceiverID           string
	ProductID            string
	CounterpartProductID string
	ConversationID       string
	ProposalID           string
	Status               ExchangeStatus
	Message              string
	AgreedPrice          *float64
	ExtraAmount          float64
	Conditions           string
	IsDonation           bool
	Meeting              *Meeting
	Validations          []Validation
	RejectionReason      string
	CancellationReason   string
	CancelledBy          string
	ProposedAt           time.Time
	RespondedAt          *time.Time
	CompletedAt          *time.Time
	UpdatedAt            time.Time
	Version              int64
}

type NewExchangeParams struct {
	ProposerID           string
	ReceiverID           string
	ProductID            string
	CounterpartProductID string
	ConversationID       string
	Message              string
	ExtraAmount          float64
	Conditions           string
	IsDonation           bool
}

// NewExchange returns a pendiente exchange.
func NewExchange(params NewExchangeParams, now time.Time) (*Exchange, error) {
	if params.ProposerID == "" || params.ReceiverID == "" {
		return nil, fmt.Errorf("%w: proposer and receiver are required", ErrValidation)
	}
	if params.ProposerID == params.ReceiverID {
		return nil, fmt.Errorf("%w: proposer and receiver must differ", ErrValidation)
	}
	if params.ProductID == "" {
		return nil, fmt.Errorf("%w: product is required", ErrValidation)
	}
	if !isAmount(params.ExtraAmount) {
		return nil, fmt.Errorf("%w: extra amount must be a finite, non-negative amount", ErrValidation)
	}
	if params.IsDonation && params.CounterpartProductID != "" {
		return nil, fmt.Errorf("%w: a donation cannot take a counterpart product", ErrValidation)
	}
	return &Exchange{
		ProposerID:           params.ProposerID,
		ReceiverID:           params.ReceiverID,
		ProductID:            params.ProductID,
		CounterpartProductID: params.CounterpartProductID,
		ConversationID:       params.ConversationID,
		Message:              strings.TrimSpace(params.Message),
		ExtraAmount:          params.ExtraAmount,
		Conditions:           params.Conditions,
		IsDonation:           params.IsDonation,
		Status:               ExchangeStatusPending,
		ProposedAt:           now,
		UpdatedAt:            now,
		Version:              1,
	}, nil
}

// NewExchangeFromProposal records an accepted proposal as an aceptado exchange.
// The owner of the anchor product becomes the receiver when they are a party.
func NewExchangeFromProposal(p *Proposal, productOwnerID string, now time.Time) (*Exchange, error) {
	proposerID, receiverID := p.ProposerID, p.ReceiverID
	if productOwnerID == p.ProposerID {
		proposerID, receiverID = p.ReceiverID, p.ProposerID
	}
	ex, err := NewExchange(NewExchangeParams{
		ProposerID:     proposerID,
		ReceiverID:     receiverID,
		ProductID:      p.ProductID,
		ConversationID: p.ConversationID,
		Message:        p.Description,
		IsDonation:     p.IsDonationRequest(),
	}, now)
	if err != nil {
		return nil, err
	}
	ex.ProposalID = p.ID
	ex.ApplyTerms(p, now)
	ex.Status = ExchangeStatusAccepted
	ex.RespondedAt = &now
	return ex, nil
}

func (e *Exchange) IsParticipant(userID string) bool {
	return userID != "" && (e.ProposerID == userID || e.ReceiverID == userID)
}

// OtherParty returns the participant that is not userID.
func (e *Exchange) OtherParty(userID string) string {
	if e.ProposerID == userID {
		return e.ReceiverID
	}
	return e.ProposerID
}

func (e *Exchange) transition(to ExchangeStatus, now time.Time) error {
	allowed, ok := exchangeTransitions[e.Status]
	if !ok {
		return fmt.Errorf("%w: unknown exchange status %q", ErrInvalidState, e.Status)
	}
	for _, s := range allowed {
		if s == to {
			e.Status = to
			e.UpdatedAt = now
			return nil
		}
	}
	return fmt.Errorf("%w: exchange is %s and cannot become %s", ErrInvalidState, e.Status, to)
}

func (e *Exchange) checkReceiver(actorID string) error {
	if !e.IsParticipant(actorID) {
		return ErrNotParticipant
	}
	if e.ReceiverID != actorID {
		return fmt.Errorf("%w: only the receiving party can respond to an exchange", ErrNotAuthorized)
	}
	return nil
}

// Accept is permitted to the receiver while pendiente.
func (e *Exchange) Accept(actorID string, now time.Time) error {
	if err := e.checkReceiver(actorID); err != nil {
		return err
	}
	if err := e.transition(ExchangeStatusAccepted, now); err != nil {
		return err
	}
	e.RespondedAt = &now
	return nil
}

// Reject is permitted to the receiver while pendiente.
func (e *Exchange) Reject(actorID, reason string, now time.Time) error {
	if err := e.checkReceiver(actorID); err != nil {
		return err
	}
	if err := e.transition(ExchangeStatusRejected, now); err != nil {
		return err
	}
	e.RespondedAt = &now
	e.RejectionReason = strings.TrimSpace(reason)
	return nil
}

// RecordProposalRejection captures the reason of a rejected linked proposal.
// A pendiente exchange is rejected with it; any other status only keeps the reason.
func (e *Exchange) RecordProposalRejection(reason string, now time.Time) {
	e.RejectionReason = strings.TrimSpace(reason)
	e.UpdatedAt = now
	if e.Status == ExchangeStatusPending {
		e.Status = ExchangeStatusRejected
		e.RespondedAt = &now
	}
}

// Cancel is permitted to either party while pendiente or aceptado.
func (e *Exchange) Cancel(actorID, reason string, now time.Time) error {
	if !e.IsParticipant(actorID) {
		return ErrNotParticipant
	}
	if err := e.transition(ExchangeStatusCancelled, now); err != nil {
		return err
	}
	e.CancellationReason = strings.TrimSpace(reason)
	e.CancelledBy = actorID
	return nil
}

// UpdateMeeting attaches meeting details while aceptado.
func (e *Exchange) UpdateMeeting(actorID string, meeting Meeting, now time.Time) error {
	if !e.IsParticipant(actorID) {
		return ErrNotParticipant
	}
	if e.Status != ExchangeStatusAccepted {
		return fmt.Errorf("%w: meeting details can only change while the exchange is %s", ErrInvalidState, ExchangeStatusAccepted)
	}
	if strings.TrimSpace(meeting.Place) == "" || meeting.Date.IsZero() {
		return fmt.Errorf("%w: a meeting requires a place and a date", ErrValidation)
	}
	e.Meeting = &meeting
	e.UpdatedAt = now
	return nil
}

// SetExtraAmount attaches a cash amount while the exchange is open.
func (e *Exchange) SetExtraAmount(actorID string, amount float64, now time.Time) error {
	if !e.IsParticipant(actorID) {
		return ErrNotParticipant
	}
	if !isAmount(amount) {
		return fmt.Errorf("%w: extra amount must be a finite, non-negative amount", ErrValidation)
	}
	if !e.Status.IsOpen() {
		return fmt.Errorf("%w: extra amount can only change while the exchange is open", ErrInvalidState)
	}
	e.ExtraAmount = amount
	e.UpdatedAt = now
	return nil
}

// ApplyTerms copies an accepted proposal's terms into the record.
func (e *Exchange) ApplyTerms(p *Proposal, now time.Time) {
	t := p.Terms
	if t.Price != nil {
		price := *t.Price
		e.AgreedPrice = &price
	}
	if t.Meeting != nil {
		meeting := *t.Meeting
		e.Meeting = &meeting
	}
	if t.Conditions != "" {
		e.Conditions = t.Conditions
	}
	if p.Kind == ProposalKindExchange && t.ProductID != "" && !e.IsDonation {
		e.CounterpartProductID = t.ProductID
	}
	e.UpdatedAt = now
}

// AcceptProposal applies an accepted linked proposal: terms are copied in
// and a pendiente record becomes aceptado.
func (e *Exchange) AcceptProposal(p *Proposal, now time.Time) error {
	if !e.Status.IsOpen() {
		return fmt.Errorf("%w: exchange is %s", ErrInvalidState, e.Status)
	}
	e.ApplyTerms(p, now)
	if e.Status == ExchangeStatusPending {
		e.Status = ExchangeStatusAccepted
		e.RespondedAt = &now
	}
	return nil
}

// SuccessfulValidations counts distinct participants who validated success.
func (e *Exchange) SuccessfulValidations() int {
	n := 0
	for _, v := range e.Validations {
		if v.Succeeded && e.IsParticipant(v.UserID) {
			n++
		}
	}
	return n
}

// SubmitValidation records the actor's validation, overwriting their previous one.
// Two successes complete the exchange; any failure cancels it.
func (e *Exchange) SubmitValidation(actorID string, succeeded bool, comment string, at, now time.Time) error {
	if !e.IsParticipant(actorID) {
		return ErrNotParticipant
	}
	if e.Status != ExchangeStatusAccepted {
		return fmt.Errorf("%w: validations are only accepted while the exchange is %s", ErrInvalidState, ExchangeStatusAccepted)
	}
	if at.IsZero() {
		at = now
	}
	v := Validation{UserID: actorID, Succeeded: succeeded, Comment: strings.TrimSpace(comment), SubmittedAt: at}
	replaced := false
	for i := range e.Validations {
		if e.Validations[i].UserID == actorID {
			e.Validations[i] = v
			replaced = true
		}
	}
	if !replaced {
		e.Validations = append(e.Validations, v)
	}
	e.UpdatedAt = now

	if !succeeded {
		e.Status = ExchangeStatusCancelled
		e.CancelledBy = actorID
		e.CancellationReason = "meeting not validated: " + v.Comment
		return nil
	}
	if e.SuccessfulValidations() >= RequiredValidations {
		e.Status = ExchangeStatusCompleted
		e.CompletedAt = &now
	}
	return nil
}

// Complete closes an aceptado exchange once both parties validated success.
func (e *Exchange) Complete(actorID string, now time.Time) error {
	if !e.IsParticipant(actorID) {
		return ErrNotParticipant
	}
	if e.Status != ExchangeStatusAccepted {
		return fmt.Errorf("%w: only an %s exchange can be completed", ErrInvalidState, ExchangeStatusAccepted)
	}
	if e.SuccessfulValidations() < RequiredValidations {
		return fmt.Errorf("%w: both parties must validate the meeting first", ErrIncompleteValidation)
	}
	if err := e.transition(ExchangeStatusCompleted, now); err != nil {
		return err
	}
	e.CompletedAt = &now
	return nil
}
