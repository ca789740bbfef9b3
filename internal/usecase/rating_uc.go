package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/angola031/Ecoswap-sub003/internal/domain"
	"github.com/angola031/Ecoswap-sub003/internal/platform/logger"
	"go.uber.org/zap"
)

// RatingUsecase handles post-completion ratings.
type RatingUsecase struct {
	ratings   domain.RatingRepository
	exchanges domain.ExchangeRepository
	events    *eventDispatcher
	logger    *logger.Logger
	now       func() time.Time
}

func NewRatingUsecase(ratings domain.RatingRepository, exchanges domain.ExchangeRepository, notifier domain.Notifier, log *logger.Logger) *RatingUsecase {
	l := log.Named("RatingUsecase")
	return &RatingUsecase{
		ratings:   ratings,
		exchanges: exchanges,
		events:    newEventDispatcher(notifier, l),
		logger:    l,
		now:       utcNow,
	}
}

type RatingInput struct {
	ExchangeID     string
	RaterID        string
	Score          int
	Comment        string
	Aspects        []string
	WouldRecommend bool
	IsPublic       bool
}

// SubmitRating stores the rater's score of the other party of a completed exchange.
func (uc *RatingUsecase) SubmitRating(ctx context.Context, in RatingInput) (*domain.Rating, error) {
	ex, err := uc.exchanges.GetByID(ctx, in.ExchangeID)
	if err != nil {
		return nil, err
	}
	rating, err := domain.NewRating(ex, domain.NewRatingParams{
		RaterID:        in.RaterID,
		Score:          in.Score,
		Comment:        in.Comment,
		Aspects:        in.Aspects,
		WouldRecommend: in.WouldRecommend,
		IsPublic:       in.IsPublic,
	}, uc.now())
	if err != nil {
		return nil, err
	}

	exists, err := uc.ratings.Exists(ctx, ex.ID, in.RaterID)
	if err != nil {
		return nil, err
	}
	if exists {
		return nil, fmt.Errorf("%w: you already rated this exchange", domain.ErrAlreadyRated)
	}
	if err := uc.ratings.Create(ctx, rating); err != nil {
		if !errors.Is(err, domain.ErrAlreadyRated) {
			uc.logger.Error("Failed to store rating", zap.Error(err), zap.String("exchange_id", ex.ID))
		}
		return nil, err
	}

	uc.logger.Info("Rating submitted",
		zap.String("rating_id", rating.ID),
		zap.String("exchange_id", ex.ID),
		zap.Int("score", rating.Score))
	uc.events.emit(ctx, domain.Event{
		Kind:       domain.EventRatingCreated,
		ActorID:    rating.RaterID,
		TargetID:   rating.RatedID,
		EntityType: "rating",
		EntityID:   rating.ID,
		OccurredAt: rating.CreatedAt,
		Data:       map[string]any{"exchange_id": ex.ID, "score": rating.Score},
	})
	return rating, nil
}

// ListRatingsForUser returns the ratings userID received. Private ratings are
// only visible to the rated user.
func (uc *RatingUsecase) ListRatingsForUser(ctx context.Context, userID, viewerID string) ([]*domain.Rating, error) {
	return uc.ratings.ListByRated(ctx, userID, viewerID != userID)
}

func (uc *RatingUsecase) RatingSummary(ctx context.Context, userID string) (*domain.RatingSummary, error) {
	return uc.ratings.Summary(ctx, userID)
}
