package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/kursadbilgin/notification-orders/internal/domain"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// smsExpiryWindow is how long an exploded SMS row stays valid past its
// requested send time before the gateway should stop trying.
const smsExpiryWindow = 48 * time.Hour

type DispatchRepository interface {
	// ClaimBatch atomically selects up to batchSize ready rows for the channel
	// and policy whose owning order is due, and marks them Sending in the same
	// statement. Concurrent callers never receive overlapping rows.
	ClaimBatch(ctx context.Context, channel domain.Channel, batchSize int, policy domain.SendingTimePolicy, now time.Time) ([]domain.ClaimedNotification, error)

	// SweepPastDueOrders atomically moves due Registered orders to Processing,
	// explodes each into per-recipient notification rows and appends the
	// Processing feed entries, all in one transaction. A crash can therefore
	// never leave a Processing order without its notification rows.
	SweepPastDueOrders(ctx context.Context, limit int, now time.Time) ([]domain.NotificationOrder, error)

	// ReleaseClaim returns a claimed notification to the ready pool. Only rows
	// still marked Sending are touched; a row already written by a receipt is
	// left alone.
	ReleaseClaim(ctx context.Context, notificationID string, now time.Time) error

	// SetSendResult writes a gateway outcome for one notification and appends
	// the matching status feed entry in the same transaction. Terminal results
	// are immutable; a second terminal write returns ErrConflict. When the
	// last notification of an order turns terminal the order itself moves to
	// Processed, again with a feed append in the same transaction.
	SetSendResult(ctx context.Context, notificationID string, result domain.SendResult, gatewayReference *string, now time.Time) error
}

type GormDispatchRepo struct {
	db *gorm.DB
}

func NewGormDispatchRepo(db *gorm.DB) *GormDispatchRepo {
	return &GormDispatchRepo{db: db}
}

func (r *GormDispatchRepo) ClaimBatch(
	ctx context.Context,
	channel domain.Channel,
	batchSize int,
	policy domain.SendingTimePolicy,
	now time.Time,
) ([]domain.ClaimedNotification, error) {
	if batchSize < 1 {
		return nil, nil
	}
	if !policy.PermitsAt(now) {
		return nil, nil
	}

	var models []NotificationModel
	err := r.db.WithContext(ctx).Raw(`
		UPDATE notifications
		SET result = ?, result_time = ?, updated_at = ?
		WHERE id IN (
			SELECT n.id
			FROM notifications n
			JOIN orders o ON o.id = n.order_id
			WHERE n.result = ?
			  AND n.channel = ?
			  AND n.sending_time_policy = ?
			  AND o.requested_send_time <= ?
			ORDER BY o.requested_send_time ASC
			LIMIT ?
			FOR UPDATE OF n SKIP LOCKED
		)
		RETURNING id, order_id, channel, destination, result, result_time,
		          gateway_reference, expiry_time, sending_time_policy,
		          created_at, updated_at`,
		domain.ResultSending, now, now,
		domain.ResultNew, channel, policy, now, batchSize,
	).Scan(&models).Error
	if err != nil {
		return nil, domain.WrapAborted(ctx, err)
	}
	if len(models) == 0 {
		return nil, nil
	}

	return r.loadClaimContent(ctx, models)
}

// loadClaimContent resolves creator and channel content for claimed rows. The
// claim itself already committed; these are plain reads.
func (r *GormDispatchRepo) loadClaimContent(ctx context.Context, models []NotificationModel) ([]domain.ClaimedNotification, error) {
	orderIDs := make([]string, 0, len(models))
	seen := make(map[string]struct{}, len(models))
	for i := range models {
		if _, ok := seen[models[i].OrderID]; ok {
			continue
		}
		seen[models[i].OrderID] = struct{}{}
		orderIDs = append(orderIDs, models[i].OrderID)
	}

	var orders []OrderModel
	if err := r.db.WithContext(ctx).Where("id IN ?", orderIDs).Find(&orders).Error; err != nil {
		return nil, domain.WrapAborted(ctx, err)
	}
	ordersByID := make(map[string]*OrderModel, len(orders))
	for i := range orders {
		ordersByID[orders[i].ID] = &orders[i]
	}

	var emailContents []EmailContentModel
	if err := r.db.WithContext(ctx).Where("order_id IN ?", orderIDs).Find(&emailContents).Error; err != nil {
		return nil, domain.WrapAborted(ctx, err)
	}
	emailByOrder := make(map[string]*EmailContentModel, len(emailContents))
	for i := range emailContents {
		emailByOrder[emailContents[i].OrderID] = &emailContents[i]
	}

	var smsContents []SmsContentModel
	if err := r.db.WithContext(ctx).Where("order_id IN ?", orderIDs).Find(&smsContents).Error; err != nil {
		return nil, domain.WrapAborted(ctx, err)
	}
	smsByOrder := make(map[string]*SmsContentModel, len(smsContents))
	for i := range smsContents {
		smsByOrder[smsContents[i].OrderID] = &smsContents[i]
	}

	claimed := make([]domain.ClaimedNotification, 0, len(models))
	for i := range models {
		order, ok := ordersByID[models[i].OrderID]
		if !ok {
			return nil, fmt.Errorf("claimed notification %s references missing order %s", models[i].ID, models[i].OrderID)
		}

		item := domain.ClaimedNotification{
			Notification: *notificationModelToDomain(&models[i]),
			ShipmentID:   order.AlternateID,
			Creator:      order.Creator,
		}
		if email, ok := emailByOrder[order.ID]; ok {
			item.EmailContent = &domain.EmailContent{
				FromAddress: email.FromAddress,
				Subject:     email.Subject,
				Body:        email.Body,
				ContentType: email.ContentType,
			}
		}
		if sms, ok := smsByOrder[order.ID]; ok {
			item.SmsContent = &domain.SmsContent{
				Sender: sms.Sender,
				Body:   sms.Body,
			}
		}
		claimed = append(claimed, item)
	}

	return claimed, nil
}

func (r *GormDispatchRepo) SweepPastDueOrders(ctx context.Context, limit int, now time.Time) ([]domain.NotificationOrder, error) {
	if limit < 1 {
		return nil, nil
	}

	var orders []domain.NotificationOrder
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var swept []OrderModel
		err := tx.Raw(`
			UPDATE orders
			SET processing_status = ?, updated_at = ?
			WHERE id IN (
				SELECT id
				FROM orders
				WHERE processing_status = ?
				  AND requested_send_time <= ?
				ORDER BY requested_send_time ASC
				LIMIT ?
				FOR UPDATE SKIP LOCKED
			)
			RETURNING id, alternate_id, chain_id, creator, senders_reference, type,
			          channel, recipients, requested_send_time, sending_time_policy,
			          processing_status, created_at, updated_at`,
			domain.OrderStatusProcessing, now,
			domain.OrderStatusRegistered, now, limit,
		).Scan(&swept).Error
		if err != nil {
			return err
		}

		orders = make([]domain.NotificationOrder, 0, len(swept))
		for i := range swept {
			order, err := orderModelToDomain(&swept[i])
			if err != nil {
				return err
			}
			orders = append(orders, *order)

			if err := explodeOrderTx(tx, order, now); err != nil {
				return err
			}

			snapshot := domain.OrderStatusSnapshot{
				ShipmentID:       swept[i].AlternateID,
				SendersReference: swept[i].SendersReference,
				Status:           domain.LifecycleProcessing,
				LastUpdate:       now.UTC(),
			}
			if err := appendFeedTx(tx, swept[i].Creator, snapshot, now); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, domain.WrapAborted(ctx, err)
	}
	return orders, nil
}

// explodeOrderTx creates one ready notification row per recipient inside the
// sweep transaction. Email rows always store ANYTIME so the claim partitions
// cover them even if the order carried a stray daytime policy.
func explodeOrderTx(tx *gorm.DB, order *domain.NotificationOrder, now time.Time) error {
	if order == nil || len(order.Recipients) == 0 {
		return nil
	}

	policy := order.SendingTimePolicy
	if order.Channel == domain.ChannelEmail || policy == "" {
		policy = domain.SendingPolicyAnytime
	}

	models := make([]NotificationModel, 0, len(order.Recipients))
	for _, recipient := range order.Recipients {
		model := NotificationModel{
			ID:                uuid.NewString(),
			OrderID:           order.ID,
			Channel:           order.Channel,
			Destination:       recipient,
			Result:            domain.ResultNew,
			ResultTime:        now.UTC(),
			SendingTimePolicy: policy,
		}
		if order.Channel == domain.ChannelSMS {
			expiry := order.RequestedSendTime.UTC().Add(smsExpiryWindow)
			model.ExpiryTime = &expiry
		}
		models = append(models, model)
	}

	return tx.Create(&models).Error
}

func (r *GormDispatchRepo) ReleaseClaim(ctx context.Context, notificationID string, now time.Time) error {
	err := r.db.WithContext(ctx).Model(&NotificationModel{}).
		Where("id = ? AND result = ?", notificationID, domain.ResultSending).
		Updates(map[string]any{
			"result":      domain.ResultNew,
			"result_time": now.UTC(),
			"updated_at":  now.UTC(),
		}).Error
	return domain.WrapAborted(ctx, err)
}

func (r *GormDispatchRepo) SetSendResult(
	ctx context.Context,
	notificationID string,
	result domain.SendResult,
	gatewayReference *string,
	now time.Time,
) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var notification NotificationModel
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			First(&notification, "id = ?", notificationID).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domain.ErrNotFound
		}
		if err != nil {
			return err
		}

		if notification.Result.IsTerminal() {
			return fmt.Errorf("%w: notification %s already has terminal result %s",
				domain.ErrConflict, notificationID, notification.Result)
		}

		updates := map[string]any{
			"result":      result,
			"result_time": now.UTC(),
			"updated_at":  now.UTC(),
		}
		if gatewayReference != nil {
			updates["gateway_reference"] = *gatewayReference
		}
		if err := tx.Model(&NotificationModel{}).
			Where("id = ?", notificationID).
			Updates(updates).Error; err != nil {
			return err
		}

		var order OrderModel
		if err := tx.First(&order, "id = ?", notification.OrderID).Error; err != nil {
			return err
		}

		orderLifecycle, err := domain.MapOrderLifecycle(order.ProcessingStatus.String())
		if err != nil {
			return err
		}
		recipientLifecycle, err := domain.MapChannelLifecycle(notification.Channel, result.String())
		if err != nil {
			return err
		}

		snapshot := domain.OrderStatusSnapshot{
			ShipmentID:       order.AlternateID,
			SendersReference: order.SendersReference,
			Status:           orderLifecycle,
			Recipients: []domain.RecipientDelivery{{
				Destination: notification.Destination,
				Status:      recipientLifecycle,
				LastUpdate:  now.UTC(),
			}},
			LastUpdate: now.UTC(),
		}
		if err := appendFeedTx(tx, order.Creator, snapshot, now); err != nil {
			return err
		}

		if !result.IsTerminal() {
			return nil
		}
		return completeOrderIfDone(tx, &order, now)
	})

	return domain.WrapAborted(ctx, err)
}

// completeOrderIfDone moves the order to Processed once every notification of
// the order has a terminal result, appending the matching feed entry.
func completeOrderIfDone(tx *gorm.DB, order *OrderModel, now time.Time) error {
	var open int64
	err := tx.Model(&NotificationModel{}).
		Where("order_id = ? AND result IN ?", order.ID, []domain.SendResult{
			domain.ResultNew, domain.ResultSending, domain.ResultAccepted,
		}).
		Count(&open).Error
	if err != nil {
		return err
	}
	if open > 0 {
		return nil
	}

	res := tx.Model(&OrderModel{}).
		Where("id = ? AND processing_status = ?", order.ID, domain.OrderStatusProcessing).
		Updates(map[string]any{
			"processing_status": domain.OrderStatusProcessed,
			"updated_at":        now.UTC(),
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		// Another writer completed the order already.
		return nil
	}

	snapshot := domain.OrderStatusSnapshot{
		ShipmentID:       order.AlternateID,
		SendersReference: order.SendersReference,
		Status:           domain.LifecycleProcessed,
		LastUpdate:       now.UTC(),
	}
	return appendFeedTx(tx, order.Creator, snapshot, now)
}
