package handler

import (
	"time"

	"github.com/angola031/Ecoswap-sub003/internal/domain"
	"github.com/angola031/Ecoswap-sub003/internal/usecase"
)

// Requests

type createConversationRequest struct {
	CounterpartID string `json:"counterpart_id" validate:"required"`
	ProductID     string `json:"product_id"`
}

type attachmentPayload struct {
	URL         string `json:"url" validate:"required,url"`
	ContentType string `json:"content_type"`
	Size        int64  `json:"size" validate:"gte=0"`
}

type locationPayload struct {
	Latitude  float64 `json:"latitude" validate:"gte=-90,lte=90"`
	Longitude float64 `json:"longitude" validate:"gte=-180,lte=180"`
	Label     string  `json:"label" validate:"max=200"`
}

type appendMessageRequest struct {
	Kind       string             `json:"kind" validate:"required,oneof=text image location"`
	Text       string             `json:"text" validate:"max=4000"`
	Attachment *attachmentPayload `json:"attachment"`
	Location   *locationPayload   `json:"location"`
}

func (req appendMessageRequest) content() domain.MessageContent {
	c := domain.MessageContent{Text: req.Text}
	if req.Attachment != nil {
		c.Attachment = &domain.Attachment{URL: req.Attachment.URL, ContentType: req.Attachment.ContentType, Size: req.Attachment.Size}
	}
	if req.Location != nil {
		c.Location = &domain.Location{Latitude: req.Location.Latitude, Longitude: req.Location.Longitude, Label: req.Location.Label}
	}
	return c
}

type markReadRequest struct {
	UptoMessageID string `json:"upto_message_id" validate:"required"`
}

type meetingPayload struct {
	Place string    `json:"place" validate:"required,max=300"`
	Date  time.Time `json:"date" validate:"required"`
	Notes string    `json:"notes" validate:"max=1000"`
}

type donationPayload struct {
	Organization  string `json:"organization" validate:"max=200"`
	IntendedUse   string `json:"intended_use" validate:"max=1000"`
	Beneficiaries int    `json:"beneficiaries" validate:"gte=0"`
}

type termsPayload struct {
	Price      *float64         `json:"price" validate:"omitempty,gte=0"`
	Conditions string           `json:"conditions" validate:"max=2000"`
	Meeting    *meetingPayload  `json:"meeting"`
	ProductID  string           `json:"product_id"`
	Donation   *donationPayload `json:"donation"`
}

func (t termsPayload) toDomain() domain.ProposalTerms {
	terms := domain.ProposalTerms{Price: t.Price, Conditions: t.Conditions, ProductID: t.ProductID}
	if t.Meeting != nil {
		terms.Meeting = &domain.Meeting{Place: t.Meeting.Place, Date: t.Meeting.Date, Notes: t.Meeting.Notes}
	}
	if t.Donation != nil {
		terms.Donation = &domain.DonationTerms{
			Organization:  t.Donation.Organization,
			IntendedUse:   t.Donation.IntendedUse,
			Beneficiaries: t.Donation.Beneficiaries,
		}
	}
	return terms
}

type proposeRequest struct {
	ReceiverID  string       `json:"receiver_id"`
	ExchangeID  string       `json:"exchange_id"`
	ProductID   string       `json:"product_id"`
	Kind        string       `json:"kind" validate:"required,oneof=price exchange meeting conditions other"`
	Description string       `json:"description" validate:"required,max=2000"`
	Terms       termsPayload `json:"terms"`
}

type counterRequest struct {
	Kind        string       `json:"kind" validate:"required,oneof=price exchange meeting conditions other"`
	Description string       `json:"description" validate:"required,max=2000"`
	Terms       termsPayload `json:"terms"`
}

type reasonRequest struct {
	Reason string `json:"reason" validate:"max=1000"`
}

type proposeExchangeRequest struct {
	ProductID            string  `json:"product_id" validate:"required"`
	CounterpartProductID string  `json:"counterpart_product_id"`
	Message              string  `json:"message" validate:"max=2000"`
	ExtraAmount          float64 `json:"extra_amount" validate:"gte=0"`
	Conditions           string  `json:"conditions" validate:"max=2000"`
}

type extraAmountRequest struct {
	Amount *float64 `json:"amount" validate:"required,gte=0"`
}

type validationRequest struct {
	Succeeded *bool      `json:"succeeded" validate:"required"`
	Comment   string     `json:"comment" validate:"max=1000"`
	At        *time.Time `json:"at"`
}

type ratingRequest struct {
	Score          int      `json:"score" validate:"required,gte=1,lte=5"`
	Comment        string   `json:"comment" validate:"max=2000"`
	Aspects        []string `json:"aspects" validate:"max=10,dive,max=50"`
	WouldRecommend bool     `json:"would_recommend"`
	IsPublic       *bool    `json:"is_public"`
}

type donationRequestRequest struct {
	ProductID     string `json:"product_id" validate:"required"`
	Message       string `json:"message" validate:"max=2000"`
	Organization  string `json:"organization" validate:"max=200"`
	IntendedUse   string `json:"intended_use" validate:"max=1000"`
	Beneficiaries int    `json:"beneficiaries" validate:"gte=0"`
}

// Responses

type conversationResponse struct {
	ID              string     `json:"id"`
	InitiatorID     string     `json:"initiator_id"`
	CounterpartID   string     `json:"counterpart_id"`
	ProductID       string     `json:"product_id,omitempty"`
	LastMessageText string     `json:"last_message_text,omitempty"`
	LastMessageAt   *time.Time `json:"last_message_at,omitempty"`
	LastActivityAt  time.Time  `json:"last_activity_at"`
	Active          bool       `json:"active"`
	CreatedAt       time.Time  `json:"created_at"`
}

func toConversationResponse(c *domain.Conversation) conversationResponse {
	return conversationResponse{
		ID:              c.ID,
		InitiatorID:     c.InitiatorID,
		CounterpartID:   c.CounterpartID,
		ProductID:       c.ProductID,
		LastMessageText: c.LastMessageText,
		LastMessageAt:   c.LastMessageAt,
		LastActivityAt:  c.LastActivityAt,
		Active:          c.Active,
		CreatedAt:       c.CreatedAt,
	}
}

type messageResponse struct {
	ID             string             `json:"id"`
	ConversationID string             `json:"conversation_id"`
	SenderID       string             `json:"sender_id"`
	Seq            int64              `json:"seq"`
	Kind           string             `json:"kind"`
	Text           string             `json:"text,omitempty"`
	Attachment     *attachmentPayload `json:"attachment,omitempty"`
	Location       *locationPayload   `json:"location,omitempty"`
	ReadAt         *time.Time         `json:"read_at,omitempty"`
	CreatedAt      time.Time          `json:"created_at"`
}

func toMessageResponse(m *domain.Message) messageResponse {
	resp := messageResponse{
		ID:             m.ID,
		ConversationID: m.ConversationID,
		SenderID:       m.SenderID,
		Seq:            m.Seq,
		Kind:           string(m.Kind),
		Text:           m.Content.Text,
		ReadAt:         m.ReadAt,
		CreatedAt:      m.CreatedAt,
	}
	if a := m.Content.Attachment; a != nil {
		resp.Attachment = &attachmentPayload{URL: a.URL, ContentType: a.ContentType, Size: a.Size}
	}
	if l := m.Content.Location; l != nil {
		resp.Location = &locationPayload{Latitude: l.Latitude, Longitude: l.Longitude, Label: l.Label}
	}
	return resp
}

type messagePageResponse struct {
	Messages   []messageResponse `json:"messages"`
	NextCursor string            `json:"next_cursor,omitempty"`
}

type proposalResponse struct {
	ID             string       `json:"id"`
	ConversationID string       `json:"conversation_id"`
	ExchangeID     string       `json:"exchange_id,omitempty"`
	ParentID       string       `json:"parent_id,omitempty"`
	Kind           string       `json:"kind"`
	Description    string       `json:"description"`
	Terms          termsPayload `json:"terms"`
	Status         string       `json:"status"`
	ProposerID     string       `json:"proposer_id"`
	ReceiverID     string       `json:"receiver_id"`
	ProductID      string       `json:"product_id,omitempty"`
	ChainDepth     int          `json:"chain_depth"`
	Response       string       `json:"response,omitempty"`
	CreatedAt      time.Time    `json:"created_at"`
	RespondedAt    *time.Time   `json:"responded_at,omitempty"`
	UpdatedAt      time.Time    `json:"updated_at"`
}

func toProposalResponse(p *domain.Proposal) proposalResponse {
	terms := termsPayload{Price: p.Terms.Price, Conditions: p.Terms.Conditions, ProductID: p.Terms.ProductID}
	if m := p.Terms.Meeting; m != nil {
		terms.Meeting = &meetingPayload{Place: m.Place, Date: m.Date, Notes: m.Notes}
	}
	if d := p.Terms.Donation; d != nil {
		terms.Donation = &donationPayload{Organization: d.Organization, IntendedUse: d.IntendedUse, Beneficiaries: d.Beneficiaries}
	}
	return proposalResponse{
		ID:             p.ID,
		ConversationID: p.ConversationID,
		ExchangeID:     p.ExchangeID,
		ParentID:       p.ParentID,
		Kind:           string(p.Kind),
		Description:    p.Description,
		Terms:          terms,
		Status:         string(p.Status),
		ProposerID:     p.ProposerID,
		ReceiverID:     p.ReceiverID,
		ProductID:      p.ProductID,
		ChainDepth:     p.ChainDepth,
		Response:       p.Response,
		CreatedAt:      p.CreatedAt,
		RespondedAt:    p.RespondedAt,
		UpdatedAt:      p.UpdatedAt,
	}
}

func toProposalList(ps []*domain.Proposal) []proposalResponse {
	out := make([]proposalResponse, 0, len(ps))
	for _, p := range ps {
		out = append(out, toProposalResponse(p))
	}
	return out
}

type validationResponse struct {
	UserID      string    `json:"user_id"`
	Succeeded   bool      `json:"succeeded"`
	Comment     string    `json:"comment,omitempty"`
	SubmittedAt time.Time `json:"submitted_at"`
}

type exchangeResponse struct {
	ID                   string               `json:"id"`
	ProposerID           string               `json:"proposer_id"`
	ReceiverID           string               `json:"receiver_id"`
	ProductID            string               `json:"product_id"`
	CounterpartProductID string               `json:"counterpart_product_id,omitempty"`
	ConversationID       string               `json:"conversation_id,omitempty"`
	ProposalID           string               `json:"proposal_id,omitempty"`
	Status               string               `json:"status"`
	Message              string               `json:"message,omitempty"`
	AgreedPrice          *float64             `json:"agreed_price,omitempty"`
	ExtraAmount          float64              `json:"extra_amount"`
	Conditions           string               `json:"conditions,omitempty"`
	IsDonation           bool                 `json:"is_donation"`
	Meeting              *meetingPayload      `json:"meeting,omitempty"`
	Validations          []validationResponse `json:"validations"`
	RejectionReason      string               `json:"rejection_reason,omitempty"`
	CancellationReason   string               `json:"cancellation_reason,omitempty"`
	CancelledBy          string               `json:"cancelled_by,omitempty"`
	ProposedAt           time.Time            `json:"proposed_at"`
	RespondedAt          *time.Time           `json:"responded_at,omitempty"`
	CompletedAt          *time.Time           `json:"completed_at,omitempty"`
	UpdatedAt            time.Time            `json:"updated_at"`
}

func toExchangeResponse(e *domain.Exchange) exchangeResponse {
	resp := exchangeResponse{
		ID:                   e.ID,
		ProposerID:           e.ProposerID,
		ReceiverID:           e.ReceiverID,
		ProductID:            e.ProductID,
		CounterpartProductID: e.CounterpartProductID,
		ConversationID:       e.ConversationID,
		ProposalID:           e.ProposalID,
		Status:               string(e.Status),
		Message:              e.Message,
		AgreedPrice:          e.AgreedPrice,
		ExtraAmount:          e.ExtraAmount,
		Conditions:           e.Conditions,
		IsDonation:           e.IsDonation,
		Validations:          make([]validationResponse, 0, len(e.Validations)),
		RejectionReason:      e.RejectionReason,
		CancellationReason:   e.CancellationReason,
		CancelledBy:          e.CancelledBy,
		ProposedAt:           e.ProposedAt,
		RespondedAt:          e.RespondedAt,
		CompletedAt:          e.CompletedAt,
		UpdatedAt:            e.UpdatedAt,
	}
	if m := e.Meeting; m != nil {
		resp.Meeting = &meetingPayload{Place: m.Place, Date: m.Date, Notes: m.Notes}
	}
	for _, v := range e.Validations {
		resp.Validations = append(resp.Validations, validationResponse(v))
	}
	return resp
}

func toExchangeList(es []*domain.Exchange) []exchangeResponse {
	out := make([]exchangeResponse, 0, len(es))
	for _, e := range es {
		out = append(out, toExchangeResponse(e))
	}
	return out
}

type acceptResponse struct {
	Proposal proposalResponse  `json:"proposal"`
	Exchange *exchangeResponse `json:"exchange,omitempty"`
}

func toAcceptResponse(res *usecase.AcceptResult) acceptResponse {
	resp := acceptResponse{Proposal: toProposalResponse(res.Proposal)}
	if res.Exchange != nil {
		ex := toExchangeResponse(res.Exchange)
		resp.Exchange = &ex
	}
	return resp
}

type ratingResponse struct {
	ID             string    `json:"id"`
	ExchangeID     string    `json:"exchange_id"`
	RaterID        string    `json:"rater_id"`
	RatedID        string    `json:"rated_id"`
	Score          int       `json:"score"`
	Comment        string    `json:"comment,omitempty"`
	Aspects        []string  `json:"aspects"`
	WouldRecommend bool      `json:"would_recommend"`
	IsPublic       bool      `json:"is_public"`
	CreatedAt      time.Time `json:"created_at"`
}

func toRatingResponse(r *domain.Rating) ratingResponse {
	aspects := r.Aspects
	if aspects == nil {
		aspects = []string{}
	}
	return ratingResponse{
		ID:             r.ID,
		ExchangeID:     r.ExchangeID,
		RaterID:        r.RaterID,
		RatedID:        r.RatedID,
		Score:          r.Score,
		Comment:        r.Comment,
		Aspects:        aspects,
		WouldRecommend: r.WouldRecommend,
		IsPublic:       r.IsPublic,
		CreatedAt:      r.CreatedAt,
	}
}

type ratingSummaryResponse struct {
	UserID         string  `json:"user_id"`
	Average        float64 `json:"average"`
	Count          int64   `json:"count"`
	RecommendRatio float64 `json:"recommend_ratio"`
}

type productResponse struct {
	ID              string  `json:"id"`
	OwnerID         string  `json:"owner_id"`
	Title           string  `json:"title"`
	Price           float64 `json:"price"`
	TransactionType string  `json:"transaction_type"`
	Status          string  `json:"status"`
}

type donationPageResponse struct {
	Products []productResponse `json:"products"`
	Total    int64             `json:"total"`
	Page     int               `json:"page"`
	Limit    int               `json:"limit"`
}

func toDonationPageResponse(p *usecase.DonationPage) donationPageResponse {
	resp := donationPageResponse{Products: make([]productResponse, 0, len(p.Products)), Total: p.Total, Page: p.Page, Limit: p.Limit}
	for _, prod := range p.Products {
		resp.Products = append(resp.Products, productResponse{
			ID:              prod.ID,
			OwnerID:         prod.OwnerID,
			Title:           prod.Title,
			Price:           prod.Price,
			TransactionType: string(prod.TransactionType),
			Status:          prod.Status,
		})
	}
	return resp
}
