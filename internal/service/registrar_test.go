package service

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/kursadbilgin/notification-orders/internal/domain"
	"github.com/kursadbilgin/notification-orders/internal/repository"
	"go.uber.org/zap"
)

func validChainRequest() *domain.OrderChainRequest {
	return &domain.OrderChainRequest{
		Creator:           "ttd",
		IdempotencyID:     "idem-1",
		RequestedSendTime: time.Date(2026, time.June, 1, 8, 0, 0, 0, time.UTC),
		Channel:           domain.ChannelEmail,
		Recipients:        []string{"user@example.com"},
		EmailContent: &domain.EmailContent{
			FromAddress: "noreply@example.com",
			Subject:     "subject",
			Body:        "body",
			ContentType: "text/plain",
		},
	}
}

func newTestRegistrar(t *testing.T, orders repository.OrderRepository) *Registrar {
	t.Helper()

	registrar, err := NewRegistrar(orders, zap.NewNop())
	if err != nil {
		t.Fatalf("NewRegistrar() error = %v", err)
	}

	registrar.now = func() time.Time { return time.Date(2026, time.May, 30, 12, 0, 0, 0, time.UTC) }
	nextID := 0
	registrar.newID = func() string {
		nextID++
		return fmt.Sprintf("id-%d", nextID)
	}
	return registrar
}

func TestRegistrarRegisterNewChain(t *testing.T) {
	t.Parallel()

	var gotParams repository.RegisterChainParams
	orders := &fakeOrderRepo{
		getChainReceiptFn: func(ctx context.Context, creator, idempotencyID string) (*domain.OrderChainReceipt, error) {
			return nil, domain.ErrNotFound
		},
		registerChainFn: func(ctx context.Context, params repository.RegisterChainParams) error {
			gotParams = params
			return nil
		},
	}

	registrar := newTestRegistrar(t, orders)

	delay := 2
	req := validChainRequest()
	req.Reminders = []domain.Reminder{{
		DelayDays:         &delay,
		Channel:           domain.ChannelSMS,
		Recipients:        []string{"+4799999999"},
		SmsContent:        &domain.SmsContent{Sender: "Org", Body: "reminder"},
		SendingTimePolicy: domain.SendingPolicyDaytime,
	}}

	receipt, err := registrar.Register(context.Background(), req)
	if err != nil {
		t.Fatalf("Register() error = %v", err)
	}

	if receipt.OrderChainID == "" {
		t.Fatal("receipt should carry a chain id")
	}
	if receipt.Shipment.ShipmentID == "" {
		t.Fatal("receipt should carry the main shipment id")
	}
	if len(receipt.Reminders) != 1 {
		t.Fatalf("receipt reminders = %d, want 1", len(receipt.Reminders))
	}

	if len(gotParams.Orders) != 2 {
		t.Fatalf("registered orders = %d, want 2", len(gotParams.Orders))
	}
	main, reminder := gotParams.Orders[0], gotParams.Orders[1]
	if main.ProcessingStatus != domain.OrderStatusRegistered {
		t.Fatalf("main order status = %s, want REGISTERED", main.ProcessingStatus)
	}
	wantReminderTime := req.RequestedSendTime.Add(48 * time.Hour)
	if !reminder.RequestedSendTime.Equal(wantReminderTime) {
		t.Fatalf("reminder send time = %s, want %s", reminder.RequestedSendTime, wantReminderTime)
	}
	if main.SendingTimePolicy != domain.SendingPolicyAnytime {
		t.Fatalf("main policy = %s, want ANYTIME default", main.SendingTimePolicy)
	}
	if reminder.SendingTimePolicy != domain.SendingPolicyDaytime {
		t.Fatalf("reminder policy = %s, want DAYTIME", reminder.SendingTimePolicy)
	}
}

func TestRegistrarEmailDaytimePolicyStoredAsAnytime(t *testing.T) {
	t.Parallel()

	var gotParams repository.RegisterChainParams
	orders := &fakeOrderRepo{
		getChainReceiptFn: func(ctx context.Context, creator, idempotencyID string) (*domain.OrderChainReceipt, error) {
			return nil, domain.ErrNotFound
		},
		registerChainFn: func(ctx context.Context, params repository.RegisterChainParams) error {
			gotParams = params
			return nil
		},
	}

	registrar := newTestRegistrar(t, orders)

	// The daytime window gates SMS only. An email order requesting DAYTIME
	// must be stored ANYTIME, or its notification rows would sit in a
	// partition no claim loop reads.
	delay := 1
	req := validChainRequest()
	req.SendingTimePolicy = domain.SendingPolicyDaytime
	req.Reminders = []domain.Reminder{{
		DelayDays:         &delay,
		Channel:           domain.ChannelEmail,
		Recipients:        []string{"late@example.com"},
		EmailContent:      req.EmailContent,
		SendingTimePolicy: domain.SendingPolicyDaytime,
	}}

	if _, err := registrar.Register(context.Background(), req); err != nil {
		t.Fatalf("Register() error = %v", err)
	}

	if len(gotParams.Orders) != 2 {
		t.Fatalf("registered orders = %d, want 2", len(gotParams.Orders))
	}
	for i := range gotParams.Orders {
		if got := gotParams.Orders[i].SendingTimePolicy; got != domain.SendingPolicyAnytime {
			t.Fatalf("order %d policy = %s, want ANYTIME for email", i, got)
		}
	}
}

func TestRegistrarRegisterReplaysExistingReceipt(t *testing.T) {
	t.Parallel()

	stored := &domain.OrderChainReceipt{
		OrderChainID: "chain-1",
		Shipment:     domain.ShipmentReceipt{ShipmentID: "ship-1"},
	}
	registerCalled := false
	orders := &fakeOrderRepo{
		getChainReceiptFn: func(ctx context.Context, creator, idempotencyID string) (*domain.OrderChainReceipt, error) {
			return stored, nil
		},
		registerChainFn: func(ctx context.Context, params repository.RegisterChainParams) error {
			registerCalled = true
			return nil
		},
	}

	registrar := newTestRegistrar(t, orders)

	receipt, err := registrar.Register(context.Background(), validChainRequest())
	if err != nil {
		t.Fatalf("Register() error = %v", err)
	}
	if receipt != stored {
		t.Fatal("replay should return the stored receipt unchanged")
	}
	if registerCalled {
		t.Fatal("replay must not write a second chain")
	}
}

func TestRegistrarRegisterConflictRaceFallsBackToLookup(t *testing.T) {
	t.Parallel()

	stored := &domain.OrderChainReceipt{OrderChainID: "chain-won"}
	lookups := 0
	orders := &fakeOrderRepo{
		getChainReceiptFn: func(ctx context.Context, creator, idempotencyID string) (*domain.OrderChainReceipt, error) {
			lookups++
			if lookups == 1 {
				return nil, domain.ErrNotFound
			}
			return stored, nil
		},
		registerChainFn: func(ctx context.Context, params repository.RegisterChainParams) error {
			return fmt.Errorf("%w: chain already registered", domain.ErrConflict)
		},
	}

	registrar := newTestRegistrar(t, orders)

	receipt, err := registrar.Register(context.Background(), validChainRequest())
	if err != nil {
		t.Fatalf("Register() error = %v", err)
	}
	if receipt != stored {
		t.Fatal("conflict race should resolve to the committed receipt")
	}
}

func TestRegistrarRegisterValidation(t *testing.T) {
	t.Parallel()

	orders := &fakeOrderRepo{
		getChainReceiptFn: func(ctx context.Context, creator, idempotencyID string) (*domain.OrderChainReceipt, error) {
			t.Fatal("invalid request must not reach storage")
			return nil, nil
		},
	}

	registrar := newTestRegistrar(t, orders)

	req := validChainRequest()
	req.IdempotencyID = ""
	if _, err := registrar.Register(context.Background(), req); !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("Register() error = %v, want ErrValidation", err)
	}
}

func TestRegistrarRegisterPropagatesStorageError(t *testing.T) {
	t.Parallel()

	storageErr := fmt.Errorf("connection reset")
	orders := &fakeOrderRepo{
		getChainReceiptFn: func(ctx context.Context, creator, idempotencyID string) (*domain.OrderChainReceipt, error) {
			return nil, domain.ErrNotFound
		},
		registerChainFn: func(ctx context.Context, params repository.RegisterChainParams) error {
			return storageErr
		},
	}

	registrar := newTestRegistrar(t, orders)

	if _, err := registrar.Register(context.Background(), validChainRequest()); !errors.Is(err, storageErr) {
		t.Fatalf("Register() error = %v, want storage error", err)
	}
}

type fakeOrderRepo struct {
	getChainReceiptFn func(ctx context.Context, creator, idempotencyID string) (*domain.OrderChainReceipt, error)
	registerChainFn   func(ctx context.Context, params repository.RegisterChainParams) error
}

func (f *fakeOrderRepo) GetChainReceipt(ctx context.Context, creator, idempotencyID string) (*domain.OrderChainReceipt, error) {
	if f.getChainReceiptFn == nil {
		return nil, domain.ErrNotFound
	}
	return f.getChainReceiptFn(ctx, creator, idempotencyID)
}

func (f *fakeOrderRepo) RegisterChain(ctx context.Context, params repository.RegisterChainParams) error {
	if f.registerChainFn == nil {
		return nil
	}
	return f.registerChainFn(ctx, params)
}
