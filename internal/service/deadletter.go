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

// DeadLetterService records and serves dead delivery reports. Reports are an
// audit log: never deleted, and only the Resolved flag ever changes, through
// the operator path.
type DeadLetterService struct {
	reports repository.DeadLetterRepository
	logger  *zap.Logger
	metrics *observability.Metrics
}

func NewDeadLetterService(reports repository.DeadLetterRepository, logger *zap.Logger) (*DeadLetterService, error) {
	if reports == nil {
		return nil, fmt.Errorf("dead letter repository is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &DeadLetterService{
		reports: reports,
		logger:  logger,
	}, nil
}

func (s *DeadLetterService) SetMetrics(metrics *observability.Metrics) {
	if s == nil {
		return
	}
	s.metrics = metrics
}

func (s *DeadLetterService) Record(ctx context.Context, report *domain.DeadDeliveryReport) (string, error) {
	var id string
	err := observability.Observe(s.metrics, "deadletter", "record", func() error {
		var err error
		id, err = s.reports.Record(ctx, report)
		return err
	})
	if err != nil {
		return "", err
	}

	if s.metrics != nil {
		s.metrics.IncDeadLetters(report.Channel.String())
	}
	return id, nil
}

func (s *DeadLetterService) Get(ctx context.Context, id string) (*domain.DeadDeliveryReport, error) {
	if strings.TrimSpace(id) == "" {
		return nil, fmt.Errorf("%w: report id is required", domain.ErrValidation)
	}

	var report *domain.DeadDeliveryReport
	err := observability.Observe(s.metrics, "deadletter", "get", func() error {
		var err error
		report, err = s.reports.Get(ctx, strings.TrimSpace(id))
		return err
	})
	if err != nil {
		return nil, err
	}
	return report, nil
}

// Resolve flips the resolution flag. This is the operator workflow; automated
// retry logic never calls it.
func (s *DeadLetterService) Resolve(ctx context.Context, id string, resolved bool) error {
	if strings.TrimSpace(id) == "" {
		return fmt.Errorf("%w: report id is required", domain.ErrValidation)
	}

	err := observability.Observe(s.metrics, "deadletter", "resolve", func() error {
		return s.reports.SetResolved(ctx, strings.TrimSpace(id), resolved)
	})
	if err != nil {
		return err
	}

	s.logger.Info("dead delivery report resolution updated",
		zap.String("reportId", id),
		zap.Bool("resolved", resolved),
	)
	return nil
}
