package consumers

import (
	"catalog/app"
	"catalog/domain"
	"catalog/internal/metrics"
	"catalog/internal/querycache"
	"catalog/pkg/events"
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

var (
	minScore = decimal.NewFromInt(1)
	maxScore = decimal.NewFromInt(5)
)

// ReviewEventHandler keeps product rating and reviews_count in step with the
// reviews customers leave on the storefront.
type ReviewEventHandler struct {
	repository app.Repository
	cache      *querycache.Cache
	logger     *zap.Logger
}

func NewReviewEventHandler(repository app.Repository, cache *querycache.Cache, logger *zap.Logger) *ReviewEventHandler {
	return &ReviewEventHandler{
		repository: repository,
		cache:      cache,
		logger:     logger,
	}
}

func (h *ReviewEventHandler) HandleEvent(ctx context.Context, event *events.Event) error {
	switch event.Event {
	case events.ReviewCreatedEvent:
		return h.handleReviewCreated(ctx, event)
	default:
		h.logger.Warn("Unknown review event type", zap.String("event", event.Event))
		return nil
	}
}

func (h *ReviewEventHandler) handleReviewCreated(ctx context.Context, event *events.Event) error {
	var payload events.ReviewCreatedPayload
	if err := event.DecodePayload(&payload); err != nil {
		metrics.ReviewsAppliedTotal.WithLabelValues("malformed").Inc()
		return fmt.Errorf("malformed payload: %w", err)
	}

	if payload.ProductID == "" {
		metrics.ReviewsAppliedTotal.WithLabelValues("malformed").Inc()
		return errors.New("malformed payload - productId missing")
	}
	if payload.ReviewID == "" {
		metrics.ReviewsAppliedTotal.WithLabelValues("malformed").Inc()
		return errors.New("malformed payload - reviewId missing")
	}
	if payload.Rating.LessThan(minScore) || payload.Rating.GreaterThan(maxScore) {
		metrics.ReviewsAppliedTotal.WithLabelValues("malformed").Inc()
		return fmt.Errorf("malformed payload - rating %s out of range", payload.Rating)
	}

	product, err := h.repository.ApplyProductReview(ctx, payload.ProductID, payload.ReviewID, payload.Rating)
	if errors.Is(err, domain.ErrReviewAlreadyApplied) {
		// redelivered after the rating was already updated
		metrics.ReviewsAppliedTotal.WithLabelValues("duplicate").Inc()
		h.logger.Info("Skipping review applied before",
			zap.String("reviewId", payload.ReviewID),
			zap.String("productId", payload.ProductID),
			zap.String("traceId", event.TraceID),
		)
		return nil
	}
	if errors.Is(err, sql.ErrNoRows) {
		// product deleted after the review was written; nothing left to rate
		metrics.ReviewsAppliedTotal.WithLabelValues("skipped").Inc()
		h.logger.Info("Skipping review of missing product",
			zap.String("productId", payload.ProductID),
			zap.String("traceId", event.TraceID),
		)
		return nil
	}
	if err != nil {
		metrics.ReviewsAppliedTotal.WithLabelValues("failure").Inc()
		return fmt.Errorf("failed to apply review: %w", err)
	}
	metrics.ReviewsAppliedTotal.WithLabelValues("applied").Inc()

	h.logger.Info("Review applied",
		zap.String("productId", product.ID),
		zap.Float64("rating", product.Rating),
		zap.Int("reviewsCount", product.ReviewsCount),
		zap.String("traceId", event.TraceID),
	)

	if h.cache != nil {
		if err := h.cache.Invalidate(ctx, app.ProductsEntity); err != nil {
			h.logger.Warn("Query cache invalidation failed", zap.Error(err))
		}
	}
	return nil
}
