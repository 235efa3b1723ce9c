package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/robfig/cron/v3"

	"github.com/WessleyAI/astra/engine/domain"
	"github.com/WessleyAI/astra/engine/review"
	"github.com/WessleyAI/astra/pkg/metrics"
	"github.com/WessleyAI/astra/pkg/natsutil"
)

// sentimentStore is the catalog slice the refresher reads and rewrites.
type sentimentStore interface {
	CarIDs(ctx context.Context) ([]string, error)
	ReviewsForCar(ctx context.Context, carID string) ([]domain.Review, error)
	ReplaceSentiment(ctx context.Context, carID string, aggs []domain.SentimentAggregate) error
}

type invalidator interface {
	Invalidate(ctx context.Context, id string)
}

// refresher recomputes per-aspect sentiment aggregates from stored reviews.
type refresher struct {
	store   sentimentStore
	cache   invalidator
	metrics *metrics.Metrics
	logger  *slog.Logger
}

// refreshCar rebuilds the aggregates of one car and drops its cached
// knowledge so the next visualization sees the new rows.
func (r *refresher) refreshCar(ctx context.Context, carID string) error {
	reviews, err := r.store.ReviewsForCar(ctx, carID)
	if err != nil {
		return fmt.Errorf("refresh %s: reviews: %w", carID, err)
	}
	if err := r.store.ReplaceSentiment(ctx, carID, review.AggregateAspects(carID, reviews)); err != nil {
		return fmt.Errorf("refresh %s: %w", carID, err)
	}
	if r.cache != nil {
		r.cache.Invalidate(ctx, carID)
	}
	return nil
}

// refreshAll walks every car. One failing car does not stop the others.
func (r *refresher) refreshAll(ctx context.Context) error {
	start := time.Now()
	ids, err := r.store.CarIDs(ctx)
	if err != nil {
		r.metrics.Refresh(err)
		return fmt.Errorf("refresh: list cars: %w", err)
	}
	var errs []error
	for _, id := range ids {
		if ctx.Err() != nil {
			errs = append(errs, ctx.Err())
			break
		}
		if err := r.refreshCar(ctx, id); err != nil {
			errs = append(errs, err)
		}
	}
	err = errors.Join(errs...)
	r.metrics.Refresh(err)
	r.logger.Info("sentiment refresh finished", "cars", len(ids), "failed", len(errs), "took", time.Since(start))
	return err
}

// onReviewCreated refreshes the car a new review belongs to.
func (r *refresher) onReviewCreated(ctx context.Context, ev review.Event) {
	if ev.CarID == "" {
		return
	}
	if err := r.refreshCar(ctx, ev.CarID); err != nil {
		r.metrics.Refresh(err)
		r.logger.Warn("review event refresh failed", "car_id", ev.CarID, "review_id", ev.ReviewID, "err", err)
	}
}

// subscribeReviews keeps aggregates current as reviews arrive over NATS.
func subscribeReviews(nc *nats.Conn, r *refresher) (*nats.Subscription, error) {
	return natsutil.Subscribe(nc, natsutil.SubjectReviewCreated, r.onReviewCreated, func(err error) {
		r.logger.Warn("malformed review event", "err", err)
	})
}

type pruner interface {
	Prune(maxIdle time.Duration) int
}

// scheduler runs the periodic jobs of the API process.
type scheduler struct {
	cron   *cron.Cron
	logger *slog.Logger
}

// newScheduler registers the sentiment refresh on spec and a periodic
// session sweep. An invalid spec is an error.
func newScheduler(ctx context.Context, spec string, r *refresher, sessions pruner, idle time.Duration, logger *slog.Logger) (*scheduler, error) {
	c := cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger)))
	if _, err := c.AddFunc(spec, func() {
		if err := r.refreshAll(ctx); err != nil {
			logger.Warn("scheduled sentiment refresh failed", "err", err)
		}
	}); err != nil {
		return nil, fmt.Errorf("schedule %q: %w", spec, err)
	}
	if _, err := c.AddFunc("@every 10m", func() {
		if n := sessions.Prune(idle); n > 0 {
			logger.Info("pruned idle sessions", "count", n)
		}
	}); err != nil {
		return nil, fmt.Errorf("schedule session sweep: %w", err)
	}
	return &scheduler{cron: c, logger: logger}, nil
}

func (s *scheduler) Start() { s.cron.Start() }

// Stop waits for running jobs up to ctx's deadline.
func (s *scheduler) Stop(ctx context.Context) {
	select {
	case <-s.cron.Stop().Done():
	case <-ctx.Done():
		s.logger.Warn("scheduler stop timed out")
	}
}
