package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/kursadbilgin/notification-orders/internal/domain"
	"github.com/kursadbilgin/notification-orders/internal/observability"
	"github.com/kursadbilgin/notification-orders/internal/repository"
	"go.uber.org/zap"
)

// Registrar registers order chains idempotently: one (Creator, IdempotencyID)
// pair maps to at most one chain, permanently.
type Registrar struct {
	orders  repository.OrderRepository
	logger  *zap.Logger
	metrics *observability.Metrics
	now     func() time.Time
	newID   func() string
}

func NewRegistrar(orders repository.OrderRepository, logger *zap.Logger) (*Registrar, error) {
	if orders == nil {
		return nil, fmt.Errorf("order repository is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Registrar{
		orders: orders,
		logger: logger,
		now:    time.Now,
		newID:  uuid.NewString,
	}, nil
}

func (s *Registrar) SetMetrics(metrics *observability.Metrics) {
	if s == nil {
		return
	}
	s.metrics = metrics
}

// Register creates the chain's main order plus one order per reminder in a
// single transaction, or returns the previously written receipt unchanged
// when the same (Creator, IdempotencyID) was registered before.
func (s *Registrar) Register(ctx context.Context, req *domain.OrderChainRequest) (*domain.OrderChainReceipt, error) {
	var receipt *domain.OrderChainReceipt
	err := observability.Observe(s.metrics, "registrar", "register", func() error {
		var err error
		receipt, err = s.register(ctx, req)
		return err
	})
	return receipt, err
}

func (s *Registrar) register(ctx context.Context, req *domain.OrderChainRequest) (*domain.OrderChainReceipt, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	existing, err := s.orders.GetChainReceipt(ctx, req.Creator, req.IdempotencyID)
	if err == nil {
		s.logger.Info("chain registration replayed",
			zap.String("creator", req.Creator),
			zap.String("orderChainId", existing.OrderChainID),
		)
		return existing, nil
	}
	if !errors.Is(err, domain.ErrNotFound) {
		return nil, err
	}

	params := s.buildChain(req)
	if err := s.orders.RegisterChain(ctx, params); err != nil {
		if errors.Is(err, domain.ErrConflict) {
			// Lost a race against a concurrent identical registration; the
			// committed receipt is the one that counts.
			return s.orders.GetChainReceipt(ctx, req.Creator, req.IdempotencyID)
		}
		return nil, err
	}

	if s.metrics != nil {
		s.metrics.IncOrdersRegistered(req.Channel.String())
		for i := range req.Reminders {
			s.metrics.IncOrdersRegistered(req.Reminders[i].Channel.String())
		}
	}
	s.logger.Info("chain registered",
		zap.String("creator", req.Creator),
		zap.String("orderChainId", params.ChainID),
		zap.Int("reminders", len(req.Reminders)),
	)

	return params.Receipt, nil
}

// buildChain resolves ids, send times and statuses for the whole chain before
// anything touches storage. Index 0 is always the main order.
func (s *Registrar) buildChain(req *domain.OrderChainRequest) repository.RegisterChainParams {
	now := s.now().UTC()
	base := req.RequestedSendTime.UTC()

	orders := make([]domain.NotificationOrder, 0, len(req.Reminders)+1)
	orders = append(orders, domain.NotificationOrder{
		ID:                s.newID(),
		AlternateID:       s.newID(),
		Creator:           req.Creator,
		SendersReference:  req.SendersReference,
		Created:           now,
		RequestedSendTime: base,
		Channel:           req.Channel,
		Recipients:        req.Recipients,
		EmailContent:      req.EmailContent,
		SmsContent:        req.SmsContent,
		SendingTimePolicy: policyFor(req.Channel, req.SendingTimePolicy),
		ProcessingStatus:  domain.OrderStatusRegistered,
	})

	for i := range req.Reminders {
		reminder := &req.Reminders[i]
		orders = append(orders, domain.NotificationOrder{
			ID:                s.newID(),
			AlternateID:       s.newID(),
			Creator:           req.Creator,
			SendersReference:  reminder.SendersReference,
			Created:           now,
			RequestedSendTime: reminder.SendTimeFrom(base),
			Channel:           reminder.Channel,
			Recipients:        reminder.Recipients,
			EmailContent:      reminder.EmailContent,
			SmsContent:        reminder.SmsContent,
			SendingTimePolicy: policyFor(reminder.Channel, reminder.SendingTimePolicy),
			ProcessingStatus:  domain.OrderStatusRegistered,
		})
	}

	receipt := &domain.OrderChainReceipt{
		OrderChainID: s.newID(),
		Shipment: domain.ShipmentReceipt{
			ShipmentID:       orders[0].AlternateID,
			SendersReference: orders[0].SendersReference,
		},
	}
	for i := 1; i < len(orders); i++ {
		receipt.Reminders = append(receipt.Reminders, domain.ShipmentReceipt{
			ShipmentID:       orders[i].AlternateID,
			SendersReference: orders[i].SendersReference,
		})
	}

	return repository.RegisterChainParams{
		ChainID: receipt.OrderChainID,
		Request: req,
		Orders:  orders,
		Receipt: receipt,
	}
}

// policyFor normalizes the stored sending-time policy. The daytime window
// gates SMS only; an email order always stores ANYTIME so its exploded rows
// stay claimable around the clock.
func policyFor(channel domain.Channel, policy domain.SendingTimePolicy) domain.SendingTimePolicy {
	if channel == domain.ChannelEmail {
		return domain.SendingPolicyAnytime
	}
	if !policy.IsValid() {
		return domain.SendingPolicyAnytime
	}
	return policy
}
