package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/kursadbilgin/notification-orders/internal/domain"
	"github.com/kursadbilgin/notification-orders/internal/observability"
	"github.com/kursadbilgin/notification-orders/internal/repository"
	"go.uber.org/zap"
)

const maxFeedPageSize = 500

// FeedService serves cursor-based incremental reads of the status feed.
// Consumers re-issue GetFeed with the highest sequence number they have seen;
// a stale cursor may re-observe an entry but never misses one.
type FeedService struct {
	feed    repository.FeedRepository
	logger  *zap.Logger
	metrics *observability.Metrics
}

func NewFeedService(feed repository.FeedRepository, logger *zap.Logger) (*FeedService, error) {
	if feed == nil {
		return nil, fmt.Errorf("feed repository is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &FeedService{
		feed:   feed,
		logger: logger,
	}, nil
}

func (s *FeedService) SetMetrics(metrics *observability.Metrics) {
	if s == nil {
		return
	}
	s.metrics = metrics
}

func (s *FeedService) GetFeed(ctx context.Context, creator string, sinceSeq int64, limit int) ([]domain.StatusFeedEntry, error) {
	creator = strings.TrimSpace(creator)
	if creator == "" {
		return nil, fmt.Errorf("%w: creator is required", domain.ErrValidation)
	}
	if limit > maxFeedPageSize {
		limit = maxFeedPageSize
	}

	var entries []domain.StatusFeedEntry
	err := observability.Observe(s.metrics, "feed", "get", func() error {
		var err error
		entries, err = s.feed.GetFeed(ctx, creator, sinceSeq, limit)
		return err
	})
	if err != nil {
		return nil, err
	}
	return entries, nil
}
