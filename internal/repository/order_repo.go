package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/kursadbilgin/notification-orders/internal/domain"
	"gorm.io/gorm"
)

// RegisterChainParams carries everything the registrar resolved for one chain:
// the raw request for the audit payload, the chain id, and the fully prepared
// orders in registration sequence (main order first, reminders after).
type RegisterChainParams struct {
	ChainID string
	Request *domain.OrderChainRequest
	Orders  []domain.NotificationOrder
	Receipt *domain.OrderChainReceipt
}

type OrderRepository interface {
	GetChainReceipt(ctx context.Context, creator, idempotencyID string) (*domain.OrderChainReceipt, error)
	RegisterChain(ctx context.Context, params RegisterChainParams) error
}

type GormOrderRepo struct {
	db *gorm.DB
}

func NewGormOrderRepo(db *gorm.DB) *GormOrderRepo {
	return &GormOrderRepo{db: db}
}

// GetChainReceipt is the read-only idempotency lookup. A hit returns the
// receipt exactly as it was written at registration time.
func (r *GormOrderRepo) GetChainReceipt(ctx context.Context, creator, idempotencyID string) (*domain.OrderChainReceipt, error) {
	var model OrderChainModel
	err := r.db.WithContext(ctx).
		Where("creator = ? AND idempotency_id = ?", creator, idempotencyID).
		First(&model).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, domain.WrapAborted(ctx, err)
	}

	var receipt domain.OrderChainReceipt
	if err := json.Unmarshal(model.Receipt, &receipt); err != nil {
		return nil, fmt.Errorf("failed to decode stored chain receipt: %w", err)
	}
	return &receipt, nil
}

// RegisterChain inserts the chain record, every order and its content rows in
// one transaction. Any failure rolls the whole chain back; no partial chain is
// ever visible to a reader.
func (r *GormOrderRepo) RegisterChain(ctx context.Context, params RegisterChainParams) error {
	payload, err := json.Marshal(params.Request)
	if err != nil {
		return fmt.Errorf("failed to serialize chain payload: %w", err)
	}
	receipt, err := json.Marshal(params.Receipt)
	if err != nil {
		return fmt.Errorf("failed to serialize chain receipt: %w", err)
	}

	err = r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		chain := OrderChainModel{
			ID:            params.ChainID,
			Creator:       params.Request.Creator,
			IdempotencyID: params.Request.IdempotencyID,
			Payload:       payload,
			Receipt:       receipt,
		}
		if err := tx.Create(&chain).Error; err != nil {
			if isUniqueViolationError(err) {
				return fmt.Errorf("%w: chain already registered", domain.ErrConflict)
			}
			return err
		}

		for i := range params.Orders {
			order := &params.Orders[i]
			orderType := OrderTypeReminder
			if i == 0 {
				orderType = OrderTypeNotification
			}

			model, err := orderModelFromDomain(order, params.ChainID, orderType)
			if err != nil {
				return err
			}
			if err := tx.Create(model).Error; err != nil {
				return err
			}

			switch order.Channel {
			case domain.ChannelEmail:
				content := EmailContentModel{
					OrderID:     order.ID,
					FromAddress: order.EmailContent.FromAddress,
					Subject:     order.EmailContent.Subject,
					Body:        order.EmailContent.Body,
					ContentType: order.EmailContent.ContentType,
				}
				if err := tx.Create(&content).Error; err != nil {
					return err
				}
			case domain.ChannelSMS:
				content := SmsContentModel{
					OrderID: order.ID,
					Sender:  order.SmsContent.Sender,
					Body:    order.SmsContent.Body,
				}
				if err := tx.Create(&content).Error; err != nil {
					return err
				}
			}
		}

		return nil
	})

	return domain.WrapAborted(ctx, err)
}

func isUniqueViolationError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}

	msg := err.Error()
	return strings.Contains(msg, "duplicate key") || strings.Contains(msg, "unique constraint")
}
