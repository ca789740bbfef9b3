package domain

import (
	"fmt"
	"strings"
	"time"
)

// MessageKind tags the payload carried by a Message.
type MessageKind string

const (
	MessageKindText     MessageKind = "text"
	MessageKindImage    MessageKind = "image"
	MessageKindLocation MessageKind = "location"
)

func (k MessageKind) IsValid() bool {
	switch k {
	case MessageKindText, MessageKindImage, MessageKindLocation:
		return true
	}
	return false
}

// Attachment references an object stored outside the message log.
type Attachment struct {
	URL         string
	ContentType string
	Size        int64
}

type Location struct {
	Latitude  float64
	Longitude float64
	Label     string
}

// MessageContent is a tagged variant: exactly the field matching the kind is set.
type MessageContent struct {
	Text       string
	Attachment *Attachment
	Location   *Location
}

// Validate checks that content carries the payload required by kind.
func (c MessageContent) Validate(kind MessageKind) error {
	switch kind {
	case MessageKindText:
		if strings.TrimSpace(c.Text) == "" {
			return fmt.Errorf("%w: text message cannot be empty", ErrInvalidContent)
		}
	case MessageKindImage:
		if c.Attachment == nil || c.Attachment.URL == "" {
			return fmt.Errorf("%w: image message requires an attachment URL", ErrInvalidContent)
		}
	case MessageKindLocation:
		if c.Location == nil {
			return fmt.Errorf("%w: location message requires coordinates", ErrInvalidContent)
		}
		if c.Location.Latitude < -90 || c.Location.Latitude > 90 || c.Location.Longitude < -180 || c.Location.Longitude > 180 {
			return fmt.Errorf("%w: coordinates out of range", ErrInvalidContent)
		}
	default:
		return fmt.Errorf("%w: unknown message kind %q", ErrInvalidContent, kind)
	}
	return nil
}

// Conversation is the chat between two users, optionally anchored to a product.
type Conversation struct {
	ID              string
	InitiatorID     string
	CounterpartID   string
	ParticipantKey  string
	ProductID       string
	LastMessageText string
	LastMessageAt   *time.Time
	LastMessageSeq  int64
	LastActivityAt  time.Time
	MessageSeq      int64
	Active          bool
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// ParticipantKey returns the order-independent key of a user pair.
func ParticipantKey(userA, userB string) string {
	if userA > userB {
		userA, userB = userB, userA
	}
	return userA + "|" + userB
}

// NewConversation creates an active conversation between two distinct users.
func NewConversation(initiatorID, counterpartID, productID string, now time.Time) (*Conversation, error) {
	if initiatorID == "" || counterpartID == "" {
		return nil, fmt.Errorf("%w: both participants are required", ErrValidation)
	}
	if initiatorID == counterpartID {
		return nil, fmt.Errorf("%w: a user cannot open a conversation with themselves", ErrValidation)
	}
	return &Conversation{
		InitiatorID:    initiatorID,
		CounterpartID:  counterpartID,
		ParticipantKey: ParticipantKey(initiatorID, counterpartID),
		ProductID:      productID,
		LastActivityAt: now,
		Active:         true,
		CreatedAt:      now,
		UpdatedAt:      now,
	}, nil
}

func (c *Conversation) HasParticipant(userID string) bool {
	return userID != "" && (c.InitiatorID == userID || c.CounterpartID == userID)
}

// OtherParticipant returns the participant that is not userID.
func (c *Conversation) OtherParticipant(userID string) string {
	if c.InitiatorID == userID {
		return c.CounterpartID
	}
	return c.InitiatorID
}

// Message is immutable once created except for ReadAt.
type Message struct {
	ID             string
	ConversationID string
	SenderID       string
	Seq            int64
	Kind           MessageKind
	Content        MessageContent
	ReadAt         *time.Time
	CreatedAt      time.Time
}

// Preview is the text stored as the conversation's last message.
func (m *Message) Preview() string {
	switch m.Kind {
	case MessageKindImage:
		return "[image]"
	case MessageKindLocation:
		if m.Content.Location != nil && m.Content.Location.Label != "" {
			return "[location] " + m.Content.Location.Label
		}
		return "[location]"
	default:
		return m.Content.Text
	}
}

// MessagePage is one page of a newest-first message listing.
type MessagePage struct {
	Messages   []*Message
	NextCursor string
}
