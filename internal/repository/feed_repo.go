package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/kursadbilgin/notification-orders/internal/domain"
	"gorm.io/gorm"
)

type FeedRepository interface {
	// GetFeed returns committed entries for the creator with sequence numbers
	// greater than sinceSeq, ascending, truncated to limit.
	GetFeed(ctx context.Context, creator string, sinceSeq int64, limit int) ([]domain.StatusFeedEntry, error)
}

type GormFeedRepo struct {
	db *gorm.DB
}

func NewGormFeedRepo(db *gorm.DB) *GormFeedRepo {
	return &GormFeedRepo{db: db}
}

const defaultFeedPageSize = 50

func (r *GormFeedRepo) GetFeed(ctx context.Context, creator string, sinceSeq int64, limit int) ([]domain.StatusFeedEntry, error) {
	if limit < 1 {
		limit = defaultFeedPageSize
	}

	var models []FeedEntryModel
	err := r.db.WithContext(ctx).
		Where("creator = ? AND sequence_number > ?", creator, sinceSeq).
		Order("sequence_number ASC").
		Limit(limit).
		Find(&models).Error
	if err != nil {
		return nil, domain.WrapAborted(ctx, err)
	}

	entries := make([]domain.StatusFeedEntry, 0, len(models))
	for i := range models {
		var snapshot domain.OrderStatusSnapshot
		if err := json.Unmarshal(models[i].OrderStatus, &snapshot); err != nil {
			return nil, fmt.Errorf("failed to decode feed entry %d: %w", models[i].SequenceNumber, err)
		}
		entries = append(entries, domain.StatusFeedEntry{
			SequenceNumber: models[i].SequenceNumber,
			OrderStatus:    snapshot,
			Created:        models[i].CreatedAt,
		})
	}
	return entries, nil
}

// appendFeedTx appends one feed entry inside the caller's transaction so the
// entry commits if and only if the status mutation it records commits.
//
// The sequence number comes from an upserted per-creator counter row; the row
// lock it takes serializes concurrent appends for the creator, so sequence
// order matches commit order and a stale cursor can never skip an entry.
func appendFeedTx(tx *gorm.DB, creator string, snapshot domain.OrderStatusSnapshot, now time.Time) error {
	payload, err := json.Marshal(snapshot)
	if err != nil {
		return fmt.Errorf("failed to serialize status snapshot: %w", err)
	}

	var seq int64
	err = tx.Raw(`
		INSERT INTO feed_sequences (creator, value)
		VALUES (?, 1)
		ON CONFLICT (creator) DO UPDATE SET value = feed_sequences.value + 1
		RETURNING value`,
		creator,
	).Scan(&seq).Error
	if err != nil {
		return fmt.Errorf("failed to advance feed sequence for %s: %w", creator, err)
	}

	entry := FeedEntryModel{
		Creator:        creator,
		SequenceNumber: seq,
		OrderStatus:    payload,
		CreatedAt:      now.UTC(),
	}
	return tx.Create(&entry).Error
}
