package repository

import (
	"context"
	"errors"

	"github.com/kursadbilgin/notification-orders/internal/domain"
	"gorm.io/gorm"
)

type ShipmentRepository interface {
	// GetManifest builds the delivery manifest for one shipment. A missing
	// shipment and a shipment owned by another creator are both ErrNotFound.
	GetManifest(ctx context.Context, shipmentID, creator string) (*domain.DeliveryManifest, error)
}

type GormShipmentRepo struct {
	db *gorm.DB
}

func NewGormShipmentRepo(db *gorm.DB) *GormShipmentRepo {
	return &GormShipmentRepo{db: db}
}

// GetManifest runs two typed queries: the shipment header, then the
// per-recipient detail rows. The header status is authoritative as written by
// the last status-changing event; it is never derived from the detail rows.
func (r *GormShipmentRepo) GetManifest(ctx context.Context, shipmentID, creator string) (*domain.DeliveryManifest, error) {
	var header OrderModel
	err := r.db.WithContext(ctx).
		Where("alternate_id = ? AND creator = ?", shipmentID, creator).
		First(&header).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, domain.WrapAborted(ctx, err)
	}

	status, err := domain.MapOrderLifecycle(header.ProcessingStatus.String())
	if err != nil {
		return nil, err
	}

	manifest := &domain.DeliveryManifest{
		ShipmentID: header.AlternateID,
		Type:       header.Type,
		Status:     status,
		LastUpdate: header.UpdatedAt,
		Recipients: []domain.RecipientDelivery{},
	}
	if header.SendersReference != nil {
		manifest.SendersReference = *header.SendersReference
	}

	var details []NotificationModel
	err = r.db.WithContext(ctx).
		Where("order_id = ?", header.ID).
		Order("created_at ASC, id ASC").
		Find(&details).Error
	if err != nil {
		return nil, domain.WrapAborted(ctx, err)
	}

	for i := range details {
		// Channel is inferred from the destination shape, not the stored tag,
		// for compatibility with rows that predate the channel column.
		channel := domain.ChannelOfDestination(details[i].Destination)
		lifecycle, err := domain.MapChannelLifecycle(channel, details[i].Result.String())
		if err != nil {
			return nil, err
		}
		manifest.Recipients = append(manifest.Recipients, domain.RecipientDelivery{
			Destination: details[i].Destination,
			Status:      lifecycle,
			LastUpdate:  details[i].ResultTime,
		})
	}

	return manifest, nil
}
