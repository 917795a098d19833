package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/kursadbilgin/notification-orders/internal/domain"
	"github.com/kursadbilgin/notification-orders/internal/observability"
	"github.com/kursadbilgin/notification-orders/internal/queue"
	"github.com/kursadbilgin/notification-orders/internal/ratelimit"
	"github.com/kursadbilgin/notification-orders/internal/repository"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const (
	defaultSweepInterval = 5 * time.Second
	defaultClaimInterval = 2 * time.Second
	defaultBatchSize     = 100
	defaultSweepLimit    = 100
)

// claimTargets enumerates the (channel, policy) partitions the claim loops
// work through. Daytime rows are only claimable inside the sending window.
var claimTargets = []struct {
	channel domain.Channel
	policy  domain.SendingTimePolicy
}{
	{domain.ChannelEmail, domain.SendingPolicyAnytime},
	{domain.ChannelSMS, domain.SendingPolicyAnytime},
	{domain.ChannelSMS, domain.SendingPolicyDaytime},
}

// Dispatcher runs the claim-based dispatch loops: sweeping due orders into
// per-recipient notifications, and claiming ready rows for hand-off to the
// channel gateways. Multiple dispatcher instances can run against the same
// store; exclusivity rests entirely on the storage claim primitive.
type Dispatcher struct {
	dispatch    repository.DispatchRepository
	publisher   queue.Publisher
	rateLimiter ratelimit.RateLimiter
	logger      *zap.Logger
	metrics     *observability.Metrics

	sweepInterval time.Duration
	claimInterval time.Duration
	batchSize     int
	now           func() time.Time
}

func NewDispatcher(
	dispatch repository.DispatchRepository,
	publisher queue.Publisher,
	rateLimiter ratelimit.RateLimiter,
	sweepInterval, claimInterval time.Duration,
	batchSize int,
	logger *zap.Logger,
) (*Dispatcher, error) {
	if dispatch == nil {
		return nil, fmt.Errorf("dispatch repository is required")
	}
	if publisher == nil {
		return nil, fmt.Errorf("publisher is required")
	}
	if sweepInterval <= 0 {
		sweepInterval = defaultSweepInterval
	}
	if claimInterval <= 0 {
		claimInterval = defaultClaimInterval
	}
	if batchSize < 1 {
		batchSize = defaultBatchSize
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Dispatcher{
		dispatch:      dispatch,
		publisher:     publisher,
		rateLimiter:   rateLimiter,
		logger:        logger,
		sweepInterval: sweepInterval,
		claimInterval: claimInterval,
		batchSize:     batchSize,
		now:           time.Now,
	}, nil
}

func (s *Dispatcher) SetMetrics(metrics *observability.Metrics) {
	if s == nil {
		return
	}
	s.metrics = metrics
}

// Start runs the sweep loop and one claim loop per (channel, policy) target
// until context cancellation.
func (s *Dispatcher) Start(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}

	g, groupCtx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return s.runLoop(groupCtx, s.sweepInterval, func(loopCtx context.Context) error {
			_, err := s.SweepPastDueOrders(loopCtx)
			return err
		})
	})

	for _, target := range claimTargets {
		channel, policy := target.channel, target.policy
		g.Go(func() error {
			return s.runLoop(groupCtx, s.claimInterval, func(loopCtx context.Context) error {
				_, err := s.dispatchBatch(loopCtx, channel, policy)
				return err
			})
		})
	}

	return g.Wait()
}

func (s *Dispatcher) runLoop(ctx context.Context, interval time.Duration, step func(context.Context) error) error {
	// Run once up front so due work does not wait for the first ticker edge.
	if err := step(ctx); err != nil && ctx.Err() == nil {
		s.logger.Error("dispatch step failed", zap.Error(err))
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if err := step(ctx); err != nil {
				if ctx.Err() != nil {
					return nil
				}
				s.logger.Error("dispatch step failed", zap.Error(err))
			}
		}
	}
}

// SweepPastDueOrders claims due Registered orders; the storage layer explodes
// each into per-recipient notification rows in the same transaction, so a
// Processing order always has its rows by the time it is visible here.
func (s *Dispatcher) SweepPastDueOrders(ctx context.Context) ([]domain.NotificationOrder, error) {
	var swept []domain.NotificationOrder
	err := observability.Observe(s.metrics, "dispatcher", "sweep", func() error {
		var err error
		swept, err = s.dispatch.SweepPastDueOrders(ctx, defaultSweepLimit, s.now())
		return err
	})
	if err != nil {
		return nil, err
	}

	for i := range swept {
		s.logger.Info("order swept into processing",
			zap.String("orderId", swept[i].ID),
			zap.String("creator", swept[i].Creator),
			zap.Int("recipients", len(swept[i].Recipients)),
		)
	}
	return swept, nil
}

// ClaimBatch atomically claims up to batchSize ready notifications for the
// channel and policy. Fewer rows than the cap is normal; empty is not an error.
func (s *Dispatcher) ClaimBatch(
	ctx context.Context,
	channel domain.Channel,
	batchSize int,
	policy domain.SendingTimePolicy,
) ([]domain.ClaimedNotification, error) {
	var claimed []domain.ClaimedNotification
	err := observability.Observe(s.metrics, "dispatcher", "claim", func() error {
		var err error
		claimed, err = s.dispatch.ClaimBatch(ctx, channel, batchSize, policy, s.now())
		return err
	})
	if err != nil {
		return nil, err
	}
	if s.metrics != nil && len(claimed) > 0 {
		s.metrics.AddNotificationsClaimed(channel.String(), len(claimed))
	}
	return claimed, nil
}

func (s *Dispatcher) dispatchBatch(
	ctx context.Context,
	channel domain.Channel,
	policy domain.SendingTimePolicy,
) (int, error) {
	claimed, err := s.ClaimBatch(ctx, channel, s.batchSize, policy)
	if err != nil {
		return 0, err
	}

	published := 0
	channelName := strings.ToLower(channel.String())
	for i := range claimed {
		item := &claimed[i]

		if s.rateLimiter != nil {
			if err := s.rateLimiter.Wait(ctx, channelName); err != nil {
				return published, fmt.Errorf("rate limiter wait failed: %w", err)
			}
		}

		msg := dispatchMessageFromClaim(item)
		if err := s.publisher.Publish(ctx, queue.QueueName(channel), msg); err != nil {
			s.logger.Error("failed to publish claimed notification",
				zap.String("notificationId", item.Notification.ID),
				zap.String("channel", channelName),
				zap.Error(err),
			)
			// Put the row back to New so the next claim loop retries it.
			if releaseErr := s.dispatch.ReleaseClaim(ctx, item.Notification.ID, s.now()); releaseErr != nil {
				s.logger.Error("failed to release claimed notification",
					zap.String("notificationId", item.Notification.ID),
					zap.Error(releaseErr),
				)
			}
			continue
		}

		published++
		if s.metrics != nil {
			s.metrics.IncDispatchPublished(channelName)
		}
	}

	return published, nil
}

func dispatchMessageFromClaim(item *domain.ClaimedNotification) queue.DispatchMessage {
	msg := queue.DispatchMessage{
		NotificationID: item.Notification.ID,
		ShipmentID:     item.ShipmentID,
		Creator:        item.Creator,
		Channel:        item.Notification.Channel,
		Destination:    item.Notification.Destination,
		ExpiryTime:     item.Notification.ExpiryTime,
	}

	switch item.Notification.Channel {
	case domain.ChannelEmail:
		if item.EmailContent != nil {
			msg.Sender = item.EmailContent.FromAddress
			msg.Subject = item.EmailContent.Subject
			msg.Body = item.EmailContent.Body
			msg.ContentType = item.EmailContent.ContentType
		}
	case domain.ChannelSMS:
		if item.SmsContent != nil {
			msg.Sender = item.SmsContent.Sender
			msg.Body = item.SmsContent.Body
		}
	}

	return msg
}
