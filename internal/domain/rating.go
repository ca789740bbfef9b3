package domain

import (
	"fmt"
	"strings"
	"time"
)

const (
	MinRatingScore = 1
	MaxRatingScore = 5
)

// Rating is one participant's score of the other after a completed exchange.
type Rating struct {
	ID             string
	ExchangeID     string
	RaterID        string
	RatedID        string
	Score          int
	Comment        string
	Aspects        []string
	WouldRecommend bool
	IsPublic       bool
	CreatedAt      time.Time
}

type NewRatingParams struct {
	RaterID        string
	Score          int
	Comment        string
	Aspects        []string
	WouldRecommend bool
	IsPublic       bool
}

// NewRating rates the other party of a completed exchange.
func NewRating(ex *Exchange, params NewRatingParams, now time.Time) (*Rating, error) {
	if !ex.IsParticipant(params.RaterID) {
		return nil, ErrNotParticipant
	}
	if ex.Status != ExchangeStatusCompleted {
		return nil, fmt.Errorf("%w: ratings are only accepted once the exchange is %s", ErrInvalidState, ExchangeStatusCompleted)
	}
	if params.Score < MinRatingScore || params.Score > MaxRatingScore {
		return nil, fmt.Errorf("%w: score must be between %d and %d", ErrValidation, MinRatingScore, MaxRatingScore)
	}
	aspects := make([]string, 0, len(params.Aspects))
	for _, a := range params.Aspects {
		if a = strings.TrimSpace(a); a != "" {
			aspects = append(aspects, a)
		}
	}
	return &Rating{
		ExchangeID:     ex.ID,
		RaterID:        params.RaterID,
		RatedID:        ex.OtherParty(params.RaterID),
		Score:          params.Score,
		Comment:        strings.TrimSpace(params.Comment),
		Aspects:        aspects,
		WouldRecommend: params.WouldRecommend,
		IsPublic:       params.IsPublic,
		CreatedAt:      now,
	}, nil
}

// RatingSummary aggregates the ratings a user received.
type RatingSummary struct {
	UserID         string
	Average        float64
	Count          int64
	RecommendRatio float64
}
