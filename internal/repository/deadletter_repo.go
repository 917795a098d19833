package repository

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/kursadbilgin/notification-orders/internal/domain"
	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type DeadLetterRepository interface {
	// Record inserts a new dead delivery report, or — when an unresolved
	// report for the same notification already exists — increments its
	// attempt count and refreshes the stored payload. Returns the report id.
	Record(ctx context.Context, report *domain.DeadDeliveryReport) (string, error)
	Get(ctx context.Context, id string) (*domain.DeadDeliveryReport, error)
	// SetResolved flips the operator-controlled resolution flag.
	SetResolved(ctx context.Context, id string, resolved bool) error
}

type GormDeadLetterRepo struct {
	db  *gorm.DB
	now func() time.Time
}

func NewGormDeadLetterRepo(db *gorm.DB) *GormDeadLetterRepo {
	return &GormDeadLetterRepo{db: db, now: time.Now}
}

func (r *GormDeadLetterRepo) Record(ctx context.Context, report *domain.DeadDeliveryReport) (string, error) {
	if err := report.Validate(); err != nil {
		return "", err
	}

	now := r.now().UTC()
	var id string

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if report.NotificationID != nil {
			var existing DeadLetterModel
			err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
				Where("notification_id = ? AND channel = ? AND resolved = false",
					*report.NotificationID, report.Channel).
				First(&existing).Error
			if err == nil {
				// Same delivery attempt reported again: the recorder owns the
				// attempt count, the caller's value is ignored.
				updates := map[string]any{
					"attempt_count":   gorm.Expr("attempt_count + 1"),
					"last_attempt":    now,
					"delivery_report": datatypes.JSON(report.DeliveryReport),
				}
				if report.Reason != nil {
					updates["reason"] = *report.Reason
				}
				if report.Message != nil {
					updates["message"] = *report.Message
				}
				if err := tx.Model(&DeadLetterModel{}).
					Where("id = ?", existing.ID).
					Updates(updates).Error; err != nil {
					return err
				}
				id = existing.ID
				return nil
			}
			if !errors.Is(err, gorm.ErrRecordNotFound) {
				return err
			}
		}

		model := deadLetterModelFromDomain(report)
		model.ID = uuid.NewString()
		model.Resolved = false
		model.FirstSeen = now
		model.LastAttempt = now
		if model.AttemptCount < 1 {
			model.AttemptCount = 1
		}
		if err := tx.Create(model).Error; err != nil {
			return err
		}
		id = model.ID
		return nil
	})
	if err != nil {
		return "", domain.WrapAborted(ctx, err)
	}

	return id, nil
}

func (r *GormDeadLetterRepo) Get(ctx context.Context, id string) (*domain.DeadDeliveryReport, error) {
	var model DeadLetterModel
	err := r.db.WithContext(ctx).First(&model, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, domain.WrapAborted(ctx, err)
	}
	return deadLetterModelToDomain(&model), nil
}

func (r *GormDeadLetterRepo) SetResolved(ctx context.Context, id string, resolved bool) error {
	result := r.db.WithContext(ctx).
		Model(&DeadLetterModel{}).
		Where("id = ?", id).
		Update("resolved", resolved)
	if result.Error != nil {
		return domain.WrapAborted(ctx, result.Error)
	}
	if result.RowsAffected == 0 {
		return domain.ErrNotFound
	}
	return nil
}
