package service

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/kursadbilgin/notification-orders/internal/domain"
	"github.com/kursadbilgin/notification-orders/internal/queue"
	"go.uber.org/zap"
)

func newTestDispatcher(t *testing.T, dispatch *fakeDispatchRepo, publisher *fakePublisher, limiter *fakeRateLimiter) *Dispatcher {
	t.Helper()

	dispatcher, err := NewDispatcher(
		dispatch,
		publisher,
		limiter,
		time.Second,
		time.Second,
		10,
		zap.NewNop(),
	)
	if err != nil {
		t.Fatalf("NewDispatcher() error = %v", err)
	}
	dispatcher.now = func() time.Time { return time.Date(2026, time.June, 1, 10, 0, 0, 0, time.UTC) }
	return dispatcher
}

func claimedSms(id, destination string) domain.ClaimedNotification {
	return domain.ClaimedNotification{
		Notification: domain.ChannelNotification{
			ID:          id,
			OrderID:     "order-1",
			Channel:     domain.ChannelSMS,
			Destination: destination,
			Result:      domain.ResultSending,
		},
		ShipmentID: "ship-1",
		Creator:    "ttd",
		SmsContent: &domain.SmsContent{Sender: "Org", Body: "hello"},
	}
}

func TestDispatcherDispatchBatchPublishesClaimed(t *testing.T) {
	t.Parallel()

	dispatch := &fakeDispatchRepo{
		claimBatchFn: func(ctx context.Context, channel domain.Channel, batchSize int, policy domain.SendingTimePolicy, now time.Time) ([]domain.ClaimedNotification, error) {
			if channel != domain.ChannelSMS {
				t.Fatalf("channel = %s, want SMS", channel)
			}
			if policy != domain.SendingPolicyAnytime {
				t.Fatalf("policy = %s, want ANYTIME", policy)
			}
			return []domain.ClaimedNotification{
				claimedSms("n1", "+4799999991"),
				claimedSms("n2", "+4799999992"),
			}, nil
		},
	}

	var published []queue.DispatchMessage
	publisher := &fakePublisher{
		publishFn: func(ctx context.Context, queueName string, msg queue.DispatchMessage) error {
			if queueName != "sms" {
				t.Fatalf("queue = %q, want sms", queueName)
			}
			published = append(published, msg)
			return nil
		},
	}

	waits := 0
	limiter := &fakeRateLimiter{
		waitFn: func(ctx context.Context, channel string) error {
			if channel != "sms" {
				t.Fatalf("rate limit channel = %q, want sms", channel)
			}
			waits++
			return nil
		},
	}

	dispatcher := newTestDispatcher(t, dispatch, publisher, limiter)

	count, err := dispatcher.dispatchBatch(context.Background(), domain.ChannelSMS, domain.SendingPolicyAnytime)
	if err != nil {
		t.Fatalf("dispatchBatch() error = %v", err)
	}
	if count != 2 {
		t.Fatalf("published count = %d, want 2", count)
	}
	if waits != 2 {
		t.Fatalf("rate limiter waits = %d, want 2", waits)
	}
	if published[0].NotificationID != "n1" || published[0].Sender != "Org" || published[0].Body != "hello" {
		t.Fatalf("unexpected first message: %+v", published[0])
	}
	if published[0].ShipmentID != "ship-1" {
		t.Fatalf("shipment id = %q, want ship-1", published[0].ShipmentID)
	}
}

func TestDispatcherDispatchBatchEmptyClaim(t *testing.T) {
	t.Parallel()

	dispatch := &fakeDispatchRepo{
		claimBatchFn: func(ctx context.Context, channel domain.Channel, batchSize int, policy domain.SendingTimePolicy, now time.Time) ([]domain.ClaimedNotification, error) {
			return nil, nil
		},
	}
	publisher := &fakePublisher{
		publishFn: func(ctx context.Context, queueName string, msg queue.DispatchMessage) error {
			t.Fatal("nothing should be published on an empty claim")
			return nil
		},
	}

	dispatcher := newTestDispatcher(t, dispatch, publisher, &fakeRateLimiter{})

	count, err := dispatcher.dispatchBatch(context.Background(), domain.ChannelEmail, domain.SendingPolicyAnytime)
	if err != nil {
		t.Fatalf("dispatchBatch() error = %v", err)
	}
	if count != 0 {
		t.Fatalf("published count = %d, want 0", count)
	}
}

func TestDispatcherDispatchBatchPublishFailureContinues(t *testing.T) {
	t.Parallel()

	dispatch := &fakeDispatchRepo{
		claimBatchFn: func(ctx context.Context, channel domain.Channel, batchSize int, policy domain.SendingTimePolicy, now time.Time) ([]domain.ClaimedNotification, error) {
			return []domain.ClaimedNotification{
				claimedSms("n1", "+4799999991"),
				claimedSms("n2", "+4799999992"),
			}, nil
		},
	}
	publisher := &fakePublisher{
		publishFn: func(ctx context.Context, queueName string, msg queue.DispatchMessage) error {
			if msg.NotificationID == "n1" {
				return fmt.Errorf("broker unavailable")
			}
			return nil
		},
	}

	dispatcher := newTestDispatcher(t, dispatch, publisher, &fakeRateLimiter{})

	count, err := dispatcher.dispatchBatch(context.Background(), domain.ChannelSMS, domain.SendingPolicyAnytime)
	if err != nil {
		t.Fatalf("dispatchBatch() error = %v", err)
	}
	if count != 1 {
		t.Fatalf("published count = %d, want 1", count)
	}
}

func TestDispatcherSweepReturnsClaimedOrders(t *testing.T) {
	t.Parallel()

	order := domain.NotificationOrder{
		ID:         "order-1",
		Creator:    "ttd",
		Channel:    domain.ChannelEmail,
		Recipients: []string{"a@example.com", "b@example.com"},
	}

	var gotLimit int
	dispatch := &fakeDispatchRepo{
		sweepFn: func(ctx context.Context, limit int, now time.Time) ([]domain.NotificationOrder, error) {
			gotLimit = limit
			return []domain.NotificationOrder{order}, nil
		},
	}

	dispatcher := newTestDispatcher(t, dispatch, &fakePublisher{}, &fakeRateLimiter{})

	swept, err := dispatcher.SweepPastDueOrders(context.Background())
	if err != nil {
		t.Fatalf("SweepPastDueOrders() error = %v", err)
	}
	if len(swept) != 1 || swept[0].ID != "order-1" {
		t.Fatalf("swept orders = %+v, want [order-1]", swept)
	}
	if gotLimit != defaultSweepLimit {
		t.Fatalf("sweep limit = %d, want %d", gotLimit, defaultSweepLimit)
	}
}

func TestDispatcherPublishFailureReleasesClaim(t *testing.T) {
	t.Parallel()

	var released []string
	dispatch := &fakeDispatchRepo{
		claimBatchFn: func(ctx context.Context, channel domain.Channel, batchSize int, policy domain.SendingTimePolicy, now time.Time) ([]domain.ClaimedNotification, error) {
			return []domain.ClaimedNotification{
				claimedSms("n1", "+4799999991"),
				claimedSms("n2", "+4799999992"),
			}, nil
		},
		releaseClaimFn: func(ctx context.Context, notificationID string, now time.Time) error {
			released = append(released, notificationID)
			return nil
		},
	}
	publisher := &fakePublisher{
		publishFn: func(ctx context.Context, queueName string, msg queue.DispatchMessage) error {
			if msg.NotificationID == "n1" {
				return fmt.Errorf("broker unavailable")
			}
			return nil
		},
	}

	dispatcher := newTestDispatcher(t, dispatch, publisher, &fakeRateLimiter{})

	count, err := dispatcher.dispatchBatch(context.Background(), domain.ChannelSMS, domain.SendingPolicyAnytime)
	if err != nil {
		t.Fatalf("dispatchBatch() error = %v", err)
	}
	if count != 1 {
		t.Fatalf("published count = %d, want 1", count)
	}
	if len(released) != 1 || released[0] != "n1" {
		t.Fatalf("released claims = %v, want [n1]", released)
	}
}

func TestClaimTargetsCoverEveryStoredPolicy(t *testing.T) {
	t.Parallel()

	// Every (channel, policy) combination the registrar can store must have a
	// claim loop, or rows with that combination would never leave New.
	channels := []domain.Channel{domain.ChannelEmail, domain.ChannelSMS}
	policies := []domain.SendingTimePolicy{
		domain.SendingPolicyAnytime,
		domain.SendingPolicyDaytime,
		"",
	}

	for _, channel := range channels {
		for _, requested := range policies {
			stored := policyFor(channel, requested)

			covered := false
			for _, target := range claimTargets {
				if target.channel == channel && target.policy == stored {
					covered = true
					break
				}
			}
			if !covered {
				t.Fatalf("no claim loop for channel %s with stored policy %s (requested %q)", channel, stored, requested)
			}
		}
	}
}

func TestDispatcherClaimBatchPropagatesError(t *testing.T) {
	t.Parallel()

	claimErr := errors.New("deadlock detected")
	dispatch := &fakeDispatchRepo{
		claimBatchFn: func(ctx context.Context, channel domain.Channel, batchSize int, policy domain.SendingTimePolicy, now time.Time) ([]domain.ClaimedNotification, error) {
			return nil, claimErr
		},
	}

	dispatcher := newTestDispatcher(t, dispatch, &fakePublisher{}, &fakeRateLimiter{})

	if _, err := dispatcher.ClaimBatch(context.Background(), domain.ChannelSMS, 10, domain.SendingPolicyAnytime); !errors.Is(err, claimErr) {
		t.Fatalf("ClaimBatch() error = %v, want claim error", err)
	}
}

func TestDispatcherStartStopsOnContextCancel(t *testing.T) {
	t.Parallel()

	dispatch := &fakeDispatchRepo{
		claimBatchFn: func(ctx context.Context, channel domain.Channel, batchSize int, policy domain.SendingTimePolicy, now time.Time) ([]domain.ClaimedNotification, error) {
			return nil, nil
		},
		sweepFn: func(ctx context.Context, limit int, now time.Time) ([]domain.NotificationOrder, error) {
			return nil, nil
		},
	}

	dispatcher := newTestDispatcher(t, dispatch, &fakePublisher{}, &fakeRateLimiter{})
	dispatcher.sweepInterval = 10 * time.Millisecond
	dispatcher.claimInterval = 10 * time.Millisecond

	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() {
		done <- dispatcher.Start(ctx)
	}()

	time.Sleep(30 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Start() error = %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("Start() did not stop after cancellation")
	}
}

type fakeDispatchRepo struct {
	claimBatchFn    func(ctx context.Context, channel domain.Channel, batchSize int, policy domain.SendingTimePolicy, now time.Time) ([]domain.ClaimedNotification, error)
	sweepFn         func(ctx context.Context, limit int, now time.Time) ([]domain.NotificationOrder, error)
	releaseClaimFn  func(ctx context.Context, notificationID string, now time.Time) error
	setSendResultFn func(ctx context.Context, notificationID string, result domain.SendResult, gatewayReference *string, now time.Time) error
}

func (f *fakeDispatchRepo) ClaimBatch(ctx context.Context, channel domain.Channel, batchSize int, policy domain.SendingTimePolicy, now time.Time) ([]domain.ClaimedNotification, error) {
	if f.claimBatchFn == nil {
		return nil, nil
	}
	return f.claimBatchFn(ctx, channel, batchSize, policy, now)
}

func (f *fakeDispatchRepo) SweepPastDueOrders(ctx context.Context, limit int, now time.Time) ([]domain.NotificationOrder, error) {
	if f.sweepFn == nil {
		return nil, nil
	}
	return f.sweepFn(ctx, limit, now)
}

func (f *fakeDispatchRepo) ReleaseClaim(ctx context.Context, notificationID string, now time.Time) error {
	if f.releaseClaimFn == nil {
		return nil
	}
	return f.releaseClaimFn(ctx, notificationID, now)
}

func (f *fakeDispatchRepo) SetSendResult(ctx context.Context, notificationID string, result domain.SendResult, gatewayReference *string, now time.Time) error {
	if f.setSendResultFn == nil {
		return nil
	}
	return f.setSendResultFn(ctx, notificationID, result, gatewayReference, now)
}

type fakePublisher struct {
	publishFn func(ctx context.Context, queueName string, msg queue.DispatchMessage) error
	closeFn   func() error
}

func (f *fakePublisher) Publish(ctx context.Context, queueName string, msg queue.DispatchMessage) error {
	if f.publishFn == nil {
		return nil
	}
	return f.publishFn(ctx, queueName, msg)
}

func (f *fakePublisher) Close() error {
	if f.closeFn == nil {
		return nil
	}
	return f.closeFn()
}

type fakeRateLimiter struct {
	allowFn func(ctx context.Context, channel string) (bool, error)
	waitFn  func(ctx context.Context, channel string) error
}

func (f *fakeRateLimiter) Allow(ctx context.Context, channel string) (bool, error) {
	if f.allowFn == nil {
		return true, nil
	}
	return f.allowFn(ctx, channel)
}

func (f *fakeRateLimiter) Wait(ctx context.Context, channel string) error {
	if f.waitFn == nil {
		return nil
	}
	return f.waitFn(ctx, channel)
}
