package domain

import "time"

type EventKind string

const (
	EventMessageCreated   EventKind = "message.created"
	EventProposalCreated  EventKind = "proposal.created"
	EventProposalAccepted EventKind = "proposal.accepted"
	EventProposalRejected EventKind = "proposal.rejected"
	EventProposalCounter  EventKind = "proposal.counter_proposed"
	EventProposalCancel   EventKind = "proposal.cancelled"
	EventExchangeProposed EventKind = "exchange.proposed"
	EventExchangeMeeting  EventKind = "exchange.meeting_updated"
	EventExchangeAmount   EventKind = "exchange.extra_amount_updated"
	EventExchangeValidate EventKind = "exchange.validated"
	EventRatingCreated    EventKind = "rating.created"
	EventProductSold      EventKind = "product.sold"
)

// ExchangeEventKind is the event emitted when an exchange reaches status.
func ExchangeEventKind(status ExchangeStatus) EventKind {
	return EventKind("exchange." + string(status))
}

// Event describes a state change for out-of-band delivery.
type Event struct {
	Kind       EventKind
	ActorID    string
	TargetID   string
	EntityType string
	EntityID   string
	OccurredAt time.Time
	Data       map[string]any
}
