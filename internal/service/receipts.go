package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/kursadbilgin/notification-orders/internal/domain"
	"github.com/kursadbilgin/notification-orders/internal/observability"
	"github.com/kursadbilgin/notification-orders/internal/queue"
	"github.com/kursadbilgin/notification-orders/internal/repository"
	"go.uber.org/zap"
)

// ReceiptService applies gateway delivery receipts to notification state.
// It is the inline end of the feedback path: receipts that cannot be applied
// are never dropped, they land in the dead letter store.
type ReceiptService struct {
	dispatch    repository.DispatchRepository
	deadLetters repository.DeadLetterRepository
	logger      *zap.Logger
	metrics     *observability.Metrics
	now         func() time.Time
}

func NewReceiptService(
	dispatch repository.DispatchRepository,
	deadLetters repository.DeadLetterRepository,
	logger *zap.Logger,
) (*ReceiptService, error) {
	if dispatch == nil {
		return nil, fmt.Errorf("dispatch repository is required")
	}
	if deadLetters == nil {
		return nil, fmt.Errorf("dead letter repository is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &ReceiptService{
		dispatch:    dispatch,
		deadLetters: deadLetters,
		logger:      logger,
		now:         time.Now,
	}, nil
}

func (s *ReceiptService) SetMetrics(metrics *observability.Metrics) {
	if s == nil {
		return
	}
	s.metrics = metrics
}

// HandleReceipt is the queue.ReceiptHandler for the receipts queue. A non-nil
// return requeues the receipt; classification failures are dead-lettered and
// acked instead, so poison receipts cannot wedge the queue.
func (s *ReceiptService) HandleReceipt(ctx context.Context, receipt queue.DeliveryReceipt) error {
	return observability.Observe(s.metrics, "receipts", "handle", func() error {
		return s.handleReceipt(ctx, receipt)
	})
}

func (s *ReceiptService) handleReceipt(ctx context.Context, receipt queue.DeliveryReceipt) error {
	if _, err := domain.MapChannelLifecycle(receipt.Channel, receipt.Result); err != nil {
		// Contract mismatch with the gateway; capture durably, never default.
		return s.deadLetter(ctx, receipt, "unrecognized result", err)
	}

	result := domain.SendResult(receipt.Result)
	err := s.dispatch.SetSendResult(ctx, receipt.NotificationID, result, receipt.GatewayReference, s.now())
	switch {
	case err == nil:
	case errors.Is(err, domain.ErrConflict):
		// Gateways may report the same terminal outcome more than once.
		observability.WithContextLogger(s.logger, ctx).Info("duplicate terminal receipt ignored",
			zap.String("notificationId", receipt.NotificationID),
			zap.String("result", receipt.Result),
		)
		return nil
	case errors.Is(err, domain.ErrNotFound):
		return s.deadLetter(ctx, receipt, "unknown notification", err)
	default:
		return err
	}

	if s.metrics != nil {
		s.metrics.IncDeliveryResult(receipt.Channel.String(), receipt.Result)
	}
	return nil
}

func (s *ReceiptService) deadLetter(ctx context.Context, receipt queue.DeliveryReceipt, reason string, cause error) error {
	message := cause.Error()
	payload := receipt.RawReport
	if len(payload) == 0 {
		payload = []byte(fmt.Sprintf(`{"notificationId":%q,"result":%q}`, receipt.NotificationID, receipt.Result))
	}

	report := &domain.DeadDeliveryReport{
		NotificationID: &receipt.NotificationID,
		Channel:        receipt.Channel,
		AttemptCount:   1,
		DeliveryReport: payload,
		Reason:         &reason,
		Message:        &message,
	}

	id, err := s.deadLetters.Record(ctx, report)
	if err != nil {
		return fmt.Errorf("failed to dead-letter receipt for %s: %w", receipt.NotificationID, err)
	}

	if s.metrics != nil {
		s.metrics.IncDeadLetters(receipt.Channel.String())
	}
	observability.WithContextLogger(s.logger, ctx).Warn("delivery receipt dead-lettered",
		zap.String("notificationId", receipt.NotificationID),
		zap.String("reportId", id),
		zap.String("reason", reason),
	)
	return nil
}
