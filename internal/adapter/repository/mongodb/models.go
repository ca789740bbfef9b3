package mongodb

import (
	"fmt"
	"time"

	"github.com/angola031/Ecoswap-sub003/internal/domain"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// objectID converts a domain ID. A malformed ID cannot name a stored
// document, so it maps to ErrNotFound.
func objectID(id string) (primitive.ObjectID, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return primitive.NilObjectID, fmt.Errorf("%w: malformed id %q", domain.ErrNotFound, id)
	}
	return oid, nil
}

// docID is objectID for documents about to be written: an empty ID yields a fresh one.
func docID(id string) (primitive.ObjectID, error) {
	if id == "" {
		return primitive.NewObjectID(), nil
	}
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return primitive.NilObjectID, fmt.Errorf("%w: malformed id %q", domain.ErrValidation, id)
	}
	return oid, nil
}

// --- conversations ---

type conversationDocument struct {
	ID              primitive.ObjectID `bson:"_id,omitempty"`
	InitiatorID     string             `bson:"initiator_id"`
	CounterpartID   string             `bson:"counterpart_id"`
	Participants    []string           `bson:"participants"`
	ParticipantKey  string             `bson:"participant_key"`
	ProductID       string             `bson:"product_id"`
	LastMessageText string             `bson:"last_message_text,omitempty"`
	LastMessageAt   *time.Time         `bson:"last_message_at,omitempty"`
	LastMessageSeq  int64              `bson:"last_message_seq"`
	LastActivityAt  time.Time          `bson:"last_activity_at"`
	MessageSeq      int64              `bson:"message_seq"`
	Active          bool               `bson:"active"`
	CreatedAt       time.Time          `bson:"created_at"`
	UpdatedAt       time.Time          `bson:"updated_at"`
}

func fromDomainConversation(c *domain.Conversation) (*conversationDocument, error) {
	id, err := docID(c.ID)
	if err != nil {
		return nil, err
	}
	return &conversationDocument{
		ID:              id,
		InitiatorID:     c.InitiatorID,
		CounterpartID:   c.CounterpartID,
		Participants:    []string{c.InitiatorID, c.CounterpartID},
		ParticipantKey:  c.ParticipantKey,
		ProductID:       c.ProductID,
		LastMessageText: c.LastMessageText,
		LastMessageAt:   c.LastMessageAt,
		LastMessageSeq:  c.LastMessageSeq,
		LastActivityAt:  c.LastActivityAt,
		MessageSeq:      c.MessageSeq,
		Active:          c.Active,
		CreatedAt:       c.CreatedAt,
		UpdatedAt:       c.UpdatedAt,
	}, nil
}

func (d *conversationDocument) toDomain() *domain.Conversation {
	return &domain.Conversation{
		ID:              d.ID.Hex(),
		InitiatorID:     d.InitiatorID,
		CounterpartID:   d.CounterpartID,
		ParticipantKey:  d.ParticipantKey,
		ProductID:       d.ProductID,
		LastMessageText: d.LastMessageText,
		LastMessageAt:   d.LastMessageAt,
		LastMessageSeq:  d.LastMessageSeq,
		LastActivityAt:  d.LastActivityAt,
		MessageSeq:      d.MessageSeq,
		Active:          d.Active,
		CreatedAt:       d.CreatedAt,
		UpdatedAt:       d.UpdatedAt,
	}
}

// --- messages ---

type attachmentDocument struct {
	URL         string `bson:"url"`
	ContentType string `bson:"content_type"`
	Size        int64  `bson:"size"`
}

type locationDocument struct {
	Latitude  float64 `bson:"latitude"`
	Longitude float64 `bson:"longitude"`
	Label     string  `bson:"label,omitempty"`
}

type messageDocument struct {
	ID             primitive.ObjectID  `bson:"_id,omitempty"`
	ConversationID string              `bson:"conversation_id"`
	SenderID       string              `bson:"sender_id"`
	Seq            int64               `bson:"seq"`
	Kind           domain.MessageKind  `bson:"kind"`
	Text           string              `bson:"text,omitempty"`
	Attachment     *attachmentDocument `bson:"attachment,omitempty"`
	Location       *locationDocument   `bson:"location,omitempty"`
	ReadAt         *time.Time          `bson:"read_at"`
	CreatedAt      time.Time           `bson:"created_at"`
}

func fromDomainMessage(m *domain.Message) (*messageDocument, error) {
	id, err := docID(m.ID)
	if err != nil {
		return nil, err
	}
	doc := &messageDocument{
		ID:             id,
		ConversationID: m.ConversationID,
		SenderID:       m.SenderID,
		Seq:            m.Seq,
		Kind:           m.Kind,
		Text:           m.Content.Text,
		ReadAt:         m.ReadAt,
		CreatedAt:      m.CreatedAt,
	}
	if a := m.Content.Attachment; a != nil {
		doc.Attachment = &attachmentDocument{URL: a.URL, ContentType: a.ContentType, Size: a.Size}
	}
	if l := m.Content.Location; l != nil {
		doc.Location = &locationDocument{Latitude: l.Latitude, Longitude: l.Longitude, Label: l.Label}
	}
	return doc, nil
}

func (d *messageDocument) toDomain() *domain.Message {
	m := &domain.Message{
		ID:             d.ID.Hex(),
		ConversationID: d.ConversationID,
		SenderID:       d.SenderID,
		Seq:            d.Seq,
		Kind:           d.Kind,
		Content:        domain.MessageContent{Text: d.Text},
		ReadAt:         d.ReadAt,
		CreatedAt:      d.CreatedAt,
	}
	if a := d.Attachment; a != nil {
		m.Content.Attachment = &domain.Attachment{URL: a.URL, ContentType: a.ContentType, Size: a.Size}
	}
	if l := d.Location; l != nil {
		m.Content.Location = &domain.Location{Latitude: l.Latitude, Longitude: l.Longitude, Label: l.Label}
	}
	return m
}

// --- proposals ---

type meetingDocument struct {
	Place string    `bson:"place"`
	Date  time.Time `bson:"date"`
	Notes string    `bson:"notes,omitempty"`
}

func fromDomainMeeting(m *domain.Meeting) *meetingDocument {
	if m == nil {
		return nil
	}
	return &meetingDocument{Place: m.Place, Date: m.Date, Notes: m.Notes}
}

func (d *meetingDocument) toDomain() *domain.Meeting {
	if d == nil {
		return nil
	}
	return &domain.Meeting{Place: d.Place, Date: d.Date, Notes: d.Notes}
}

type donationDocument struct {
	Organization  string `bson:"organization,omitempty"`
	IntendedUse   string `bson:"intended_use,omitempty"`
	Beneficiaries int    `bson:"beneficiaries"`
}

type termsDocument struct {
	Price      *float64          `bson:"price,omitempty"`
	Conditions string            `bson:"conditions,omitempty"`
	Meeting    *meetingDocument  `bson:"meeting,omitempty"`
	ProductID  string            `bson:"product_id,omitempty"`
	Donation   *donationDocument `bson:"donation,omitempty"`
}

type proposalDocument struct {
	ID             primitive.ObjectID    `bson:"_id,omitempty"`
	ConversationID string                `bson:"conversation_id"`
	ExchangeID     string                `bson:"exchange_id,omitempty"`
	ParentID       string                `bson:"parent_id,omitempty"`
	Kind           domain.ProposalKind   `bson:"kind"`
	Description    string                `bson:"description"`
	Terms          termsDocument         `bson:"terms"`
	Status         domain.ProposalStatus `bson:"status"`
	ProposerID     string                `bson:"proposer_id"`
	ReceiverID     string                `bson:"receiver_id"`
	ProductID      string                `bson:"product_id,omitempty"`
	IsDonation     bool                  `bson:"is_donation"`
	ChainDepth     int                   `bson:"chain_depth"`
	CreatedAt      time.Time             `bson:"created_at"`
	RespondedAt    *time.Time            `bson:"responded_at,omitempty"`
	Response       string                `bson:"response,omitempty"`
	UpdatedAt      time.Time             `bson:"updated_at"`
	Version        int64                 `bson:"version"`
}

func fromDomainProposal(p *domain.Proposal) (*proposalDocument, error) {
	id, err := docID(p.ID)
	if err != nil {
		return nil, err
	}
	doc := &proposalDocument{
		ID:             id,
		ConversationID: p.ConversationID,
		ExchangeID:     p.ExchangeID,
		ParentID:       p.ParentID,
		Kind:           p.Kind,
		Description:    p.Description,
		Terms: termsDocument{
			Price:      p.Terms.Price,
			Conditions: p.Terms.Conditions,
			Meeting:    fromDomainMeeting(p.Terms.Meeting),
			ProductID:  p.Terms.ProductID,
		},
		Status:      p.Status,
		ProposerID:  p.ProposerID,
		ReceiverID:  p.ReceiverID,
		ProductID:   p.ProductID,
		IsDonation:  p.IsDonationRequest(),
		ChainDepth:  p.ChainDepth,
		CreatedAt:   p.CreatedAt,
		RespondedAt: p.RespondedAt,
		Response:    p.Response,
		UpdatedAt:   p.UpdatedAt,
		Version:     p.Version,
	}
	if d := p.Terms.Donation; d != nil {
		doc.Terms.Donation = &donationDocument{Organization: d.Organization, IntendedUse: d.IntendedUse, Beneficiaries: d.Beneficiaries}
	}
	return doc, nil
}

func (d *proposalDocument) toDomain() *domain.Proposal {
	p := &domain.Proposal{
		ID:             d.ID.Hex(),
		ConversationID: d.ConversationID,
		ExchangeID:     d.ExchangeID,
		ParentID:       d.ParentID,
		Kind:           d.Kind,
		Description:    d.Description,
		Terms: domain.ProposalTerms{
			Price:      d.Terms.Price,
			Conditions: d.Terms.Conditions,
			Meeting:    d.Terms.Meeting.toDomain(),
			ProductID:  d.Terms.ProductID,
		},
		Status:      d.Status,
		ProposerID:  d.ProposerID,
		ReceiverID:  d.ReceiverID,
		ProductID:   d.ProductID,
		ChainDepth:  d.ChainDepth,
		CreatedAt:   d.CreatedAt,
		RespondedAt: d.RespondedAt,
		Response:    d.Response,
		UpdatedAt:   d.UpdatedAt,
		Version:     d.Version,
	}
	if dd := d.Terms.Donation; dd != nil {
		p.Terms.Donation = &domain.DonationTerms{Organization: dd.Organization, IntendedUse: dd.IntendedUse, Beneficiaries: dd.Beneficiaries}
	}
	return p
}

// --- exchanges ---

type validationDocument struct {
	UserID      string    `bson:"user_id"`
	Succeeded   bool      `bson:"succeeded"`
	Comment     string    `bson:"comment,omitempty"`
	SubmittedAt time.Time `bson:"submitted_at"`
}

type exchangeDocument struct {
	ID                   primitive.ObjectID    `bson:"_id,omitempty"`
	ProposerID           string                `bson:"proposer_id"`
	ReceiverID           string                `bson:"receiver_id"`
	Participants         []string              `bson:"participants"`
	ProductID            string                `bson:"product_id"`
	CounterpartProductID string                `bson:"counterpart_product_id,omitempty"`
	ConversationID       string                `bson:"conversation_id,omitempty"`
	ProposalID           string                `bson:"proposal_id,omitempty"`
	Status               domain.ExchangeStatus `bson:"status"`
	Message              string                `bson:"message,omitempty"`
	AgreedPrice          *float64              `bson:"agreed_price,omitempty"`
	ExtraAmount          float64               `bson:"extra_amount"`
	Conditions           string                `bson:"conditions,omitempty"`
	IsDonation           bool                  `bson:"is_donation"`
	Meeting              *meetingDocument      `bson:"meeting,omitempty"`
	Validations          []validationDocument  `bson:"validations"`
	RejectionReason      string                `bson:"rejection_reason,omitempty"`
	CancellationReason   string                `bson:"cancellation_reason,omitempty"`
	CancelledBy          string                `bson:"cancelled_by,omitempty"`
	ProposedAt           time.Time             `bson:"proposed_at"`
	RespondedAt          *time.Time            `bson:"responded_at,omitempty"`
	CompletedAt          *time.Time            `bson:"completed_at,omitempty"`
	UpdatedAt            time.Time             `bson:"updated_at"`
	Version              int64                 `bson:"version"`
}

// donationClaimDocument is keyed by product, so a donation has at most one holder.
type donationClaimDocument struct {
	ProductID string    `bson:"_id"`
	HolderID  string    `bson:"holder_id"`
	ClaimedAt time.Time `bson:"claimed_at"`
}

func fromDomainExchange(e *domain.Exchange) (*exchangeDocument, error) {
	id, err := docID(e.ID)
	if err != nil {
		return nil, err
	}
	validations := make([]validationDocument, 0, len(e.Validations))
	for _, v := range e.Validations {
		validations = append(validations, validationDocument{
			UserID:      v.UserID,
			Succeeded:   v.Succeeded,
			Comment:     v.Comment,
			SubmittedAt: v.SubmittedAt,
		})
	}
	return &exchangeDocument{
		ID:                   id,
		ProposerID:           e.ProposerID,
		ReceiverID:           e.ReceiverID,
		Participants:         []string{e.ProposerID, e.ReceiverID},
		ProductID:            e.ProductID,
		CounterpartProductID: e.CounterpartProductID,
		ConversationID:       e.ConversationID,
		ProposalID:           e.ProposalID,
		Status:               e.Status,
		Message:              e.Message,
		AgreedPrice:          e.AgreedPrice,
		ExtraAmount:          e.ExtraAmount,
		Conditions:           e.Conditions,
		IsDonation:           e.IsDonation,
		Meeting:              fromDomainMeeting(e.Meeting),
		Validations:          validations,
		RejectionReason:      e.RejectionReason,
		CancellationReason:   e.CancellationReason,
		CancelledBy:          e.CancelledBy,
		ProposedAt:           e.ProposedAt,
		RespondedAt:          e.RespondedAt,
		CompletedAt:          e.CompletedAt,
		UpdatedAt:            e.UpdatedAt,
		Version:              e.Version,
	}, nil
}

func (d *exchangeDocument) toDomain() *domain.Exchange {
	var validations []domain.Validation
	for _, v := range d.Validations {
		validations = append(validations, domain.Validation{
			UserID:      v.UserID,
			Succeeded:   v.Succeeded,
			Comment:     v.Comment,
			SubmittedAt: v.SubmittedAt,
		})
	}
	return &domain.Exchange{
		ID:                   d.ID.Hex(),
		ProposerID:           d.ProposerID,
		ReceiverID:           d.ReceiverID,
		ProductID:            d.ProductID,
		CounterpartProductID: d.CounterpartProductID,
		ConversationID:       d.ConversationID,
		ProposalID:           d.ProposalID,
		Status:               d.Status,
		Message:              d.Message,
		AgreedPrice:          d.AgreedPrice,
		ExtraAmount:          d.ExtraAmount,
		Conditions:           d.Conditions,
		IsDonation:           d.IsDonation,
		Meeting:              d.Meeting.toDomain(),
		Validations:          validations,
		RejectionReason:      d.RejectionReason,
		CancellationReason:   d.CancellationReason,
		CancelledBy:          d.CancelledBy,
		ProposedAt:           d.ProposedAt,
		RespondedAt:          d.RespondedAt,
		CompletedAt:          d.CompletedAt,
		UpdatedAt:            d.UpdatedAt,
		Version:              d.Version,
	}
}

// --- ratings ---

type ratingDocument struct {
	ID             primitive.ObjectID `bson:"_id,omitempty"`
	ExchangeID     string             `bson:"exchange_id"`
	RaterID        string             `bson:"rater_id"`
	RatedID        string             `bson:"rated_id"`
	Score          int                `bson:"score"`
	Comment        string             `bson:"comment,omitempty"`
	Aspects        []string           `bson:"aspects,omitempty"`
	WouldRecommend bool               `bson:"would_recommend"`
	IsPublic       bool               `bson:"is_public"`
	CreatedAt      time.Time          `bson:"created_at"`
}

func fromDomainRating(r *domain.Rating) (*ratingDocument, error) {
	id, err := docID(r.ID)
	if err != nil {
		return nil, err
	}
	return &ratingDocument{
		ID:             id,
		ExchangeID:     r.ExchangeID,
		RaterID:        r.RaterID,
		RatedID:        r.RatedID,
		Score:          r.Score,
		Comment:        r.Comment,
		Aspects:        r.Aspects,
		WouldRecommend: r.WouldRecommend,
		IsPublic:       r.IsPublic,
		CreatedAt:      r.CreatedAt,
	}, nil
}

func (d *ratingDocument) toDomain() *domain.Rating {
	return &domain.Rating{
		ID:             d.ID.Hex(),
		ExchangeID:     d.ExchangeID,
		RaterID:        d.RaterID,
		RatedID:        d.RatedID,
		Score:          d.Score,
		Comment:        d.Comment,
		Aspects:        d.Aspects,
		WouldRecommend: d.WouldRecommend,
		IsPublic:       d.IsPublic,
		CreatedAt:      d.CreatedAt,
	}
}

// --- catalog ---

// productDocument is the subset of a listings document this service reads.
type productDocument struct {
	ID              primitive.ObjectID     `bson:"_id"`
	UserID          string                 `bson:"user_id"`
	Title           string                 `bson:"title"`
	Price           float64                `bson:"price"`
	TransactionType domain.TransactionType `bson:"transaction_type"`
	Status          string                 `bson:"status"`
}

func (d *productDocument) toDomain() *domain.Product {
	tt := d.TransactionType
	if tt == "" {
		tt = domain.TransactionTypeSale
	}
	return &domain.Product{
		ID:              d.ID.Hex(),
		OwnerID:         d.UserID,
		Title:           d.Title,
		Price:           d.Price,
		TransactionType: tt,
		Status:          d.Status,
	}
}
