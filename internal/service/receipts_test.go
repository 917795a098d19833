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

func newTestReceiptService(t *testing.T, dispatch *fakeDispatchRepo, deadLetters *fakeDeadLetterRepo) *ReceiptService {
	t.Helper()

	svc, err := NewReceiptService(dispatch, deadLetters, zap.NewNop())
	if err != nil {
		t.Fatalf("NewReceiptService() error = %v", err)
	}
	svc.now = func() time.Time { return time.Date(2026, time.June, 1, 10, 0, 0, 0, time.UTC) }
	return svc
}

func smsReceipt(id, result string) queue.DeliveryReceipt {
	ref := "gw-1"
	return queue.DeliveryReceipt{
		NotificationID:   id,
		Channel:          domain.ChannelSMS,
		Result:           result,
		GatewayReference: &ref,
		ReceivedAt:       time.Date(2026, time.June, 1, 10, 0, 0, 0, time.UTC),
		RawReport:        []byte(`{"messageId":"gw-1","status":"DELIVRD"}`),
	}
}

func TestReceiptServiceAppliesResult(t *testing.T) {
	t.Parallel()

	var gotID string
	var gotResult domain.SendResult
	dispatch := &fakeDispatchRepo{
		setSendResultFn: func(ctx context.Context, notificationID string, result domain.SendResult, gatewayReference *string, now time.Time) error {
			gotID = notificationID
			gotResult = result
			if gatewayReference == nil || *gatewayReference != "gw-1" {
				t.Fatalf("gateway reference = %v, want gw-1", gatewayReference)
			}
			return nil
		},
	}
	deadLetters := &fakeDeadLetterRepo{
		recordFn: func(ctx context.Context, report *domain.DeadDeliveryReport) (string, error) {
			t.Fatal("valid receipt must not be dead-lettered")
			return "", nil
		},
	}

	svc := newTestReceiptService(t, dispatch, deadLetters)

	if err := svc.HandleReceipt(context.Background(), smsReceipt("n1", "Delivered")); err != nil {
		t.Fatalf("HandleReceipt() error = %v", err)
	}
	if gotID != "n1" {
		t.Fatalf("notification id = %q, want n1", gotID)
	}
	if gotResult != domain.ResultDelivered {
		t.Fatalf("result = %s, want Delivered", gotResult)
	}
}

func TestReceiptServiceDuplicateTerminalIsIgnored(t *testing.T) {
	t.Parallel()

	dispatch := &fakeDispatchRepo{
		setSendResultFn: func(ctx context.Context, notificationID string, result domain.SendResult, gatewayReference *string, now time.Time) error {
			return fmt.Errorf("%w: already terminal", domain.ErrConflict)
		},
	}
	deadLetters := &fakeDeadLetterRepo{
		recordFn: func(ctx context.Context, report *domain.DeadDeliveryReport) (string, error) {
			t.Fatal("duplicate receipt must not be dead-lettered")
			return "", nil
		},
	}

	svc := newTestReceiptService(t, dispatch, deadLetters)

	if err := svc.HandleReceipt(context.Background(), smsReceipt("n1", "Delivered")); err != nil {
		t.Fatalf("HandleReceipt() on duplicate = %v, want nil", err)
	}
}

func TestReceiptServiceUnknownResultIsDeadLettered(t *testing.T) {
	t.Parallel()

	dispatch := &fakeDispatchRepo{
		setSendResultFn: func(ctx context.Context, notificationID string, result domain.SendResult, gatewayReference *string, now time.Time) error {
			t.Fatal("unknown result must not reach storage")
			return nil
		},
	}

	var recorded *domain.DeadDeliveryReport
	deadLetters := &fakeDeadLetterRepo{
		recordFn: func(ctx context.Context, report *domain.DeadDeliveryReport) (string, error) {
			recorded = report
			return "report-1", nil
		},
	}

	svc := newTestReceiptService(t, dispatch, deadLetters)

	if err := svc.HandleReceipt(context.Background(), smsReceipt("n1", "DELIVRD")); err != nil {
		t.Fatalf("HandleReceipt() error = %v, want nil (acked after dead-letter)", err)
	}
	if recorded == nil {
		t.Fatal("unknown result should produce a dead delivery report")
	}
	if recorded.NotificationID == nil || *recorded.NotificationID != "n1" {
		t.Fatalf("report notification id = %v, want n1", recorded.NotificationID)
	}
	if len(recorded.DeliveryReport) == 0 {
		t.Fatal("report should preserve the raw gateway payload")
	}
}

func TestReceiptServiceUnknownNotificationIsDeadLettered(t *testing.T) {
	t.Parallel()

	dispatch := &fakeDispatchRepo{
		setSendResultFn: func(ctx context.Context, notificationID string, result domain.SendResult, gatewayReference *string, now time.Time) error {
			return domain.ErrNotFound
		},
	}

	recorded := false
	deadLetters := &fakeDeadLetterRepo{
		recordFn: func(ctx context.Context, report *domain.DeadDeliveryReport) (string, error) {
			recorded = true
			return "report-1", nil
		},
	}

	svc := newTestReceiptService(t, dispatch, deadLetters)

	if err := svc.HandleReceipt(context.Background(), smsReceipt("ghost", "Delivered")); err != nil {
		t.Fatalf("HandleReceipt() error = %v, want nil", err)
	}
	if !recorded {
		t.Fatal("receipt for unknown notification should be dead-lettered")
	}
}

func TestReceiptServiceStorageErrorRequeues(t *testing.T) {
	t.Parallel()

	storageErr := errors.New("connection reset")
	dispatch := &fakeDispatchRepo{
		setSendResultFn: func(ctx context.Context, notificationID string, result domain.SendResult, gatewayReference *string, now time.Time) error {
			return storageErr
		},
	}
	deadLetters := &fakeDeadLetterRepo{
		recordFn: func(ctx context.Context, report *domain.DeadDeliveryReport) (string, error) {
			t.Fatal("transient storage error must not be dead-lettered")
			return "", nil
		},
	}

	svc := newTestReceiptService(t, dispatch, deadLetters)

	if err := svc.HandleReceipt(context.Background(), smsReceipt("n1", "Delivered")); !errors.Is(err, storageErr) {
		t.Fatalf("HandleReceipt() error = %v, want storage error for requeue", err)
	}
}

func TestReceiptServiceDeadLetterFailurePropagates(t *testing.T) {
	t.Parallel()

	dispatch := &fakeDispatchRepo{}
	recordErr := errors.New("disk full")
	deadLetters := &fakeDeadLetterRepo{
		recordFn: func(ctx context.Context, report *domain.DeadDeliveryReport) (string, error) {
			return "", recordErr
		},
	}

	svc := newTestReceiptService(t, dispatch, deadLetters)

	if err := svc.HandleReceipt(context.Background(), smsReceipt("n1", "DELIVRD")); !errors.Is(err, recordErr) {
		t.Fatalf("HandleReceipt() error = %v, want record error", err)
	}
}

type fakeDeadLetterRepo struct {
	recordFn      func(ctx context.Context, report *domain.DeadDeliveryReport) (string, error)
	getFn         func(ctx context.Context, id string) (*domain.DeadDeliveryReport, error)
	setResolvedFn func(ctx context.Context, id string, resolved bool) error
}

func (f *fakeDeadLetterRepo) Record(ctx context.Context, report *domain.DeadDeliveryReport) (string, error) {
	if f.recordFn == nil {
		return "report-1", nil
	}
	return f.recordFn(ctx, report)
}

func (f *fakeDeadLetterRepo) Get(ctx context.Context, id string) (*domain.DeadDeliveryReport, error) {
	if f.getFn == nil {
		return nil, domain.ErrNotFound
	}
	return f.getFn(ctx, id)
}

func (f *fakeDeadLetterRepo) SetResolved(ctx context.Context, id string, resolved bool) error {
	if f.setResolvedFn == nil {
		return nil
	}
	return f.setResolvedFn(ctx, id, resolved)
}
