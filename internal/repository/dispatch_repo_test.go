package repository

import (
	"context"
	"testing"
	"time"

	"github.com/kursadbilgin/notification-orders/internal/domain"
)

func TestClaimBatchOutsideSendWindow(t *testing.T) {
	t.Parallel()

	// DAYTIME claims outside the send window return before touching storage,
	// so a repo without a live connection must still answer empty.
	repo := NewGormDispatchRepo(nil)

	night := time.Date(2026, time.June, 1, 3, 0, 0, 0, time.UTC)
	claimed, err := repo.ClaimBatch(context.Background(), domain.ChannelSMS, 10, domain.SendingPolicyDaytime, night)
	if err != nil {
		t.Fatalf("ClaimBatch() error = %v", err)
	}
	if claimed != nil {
		t.Fatalf("claimed = %v, want nil outside send window", claimed)
	}
}

func TestClaimBatchRejectsEmptyBatch(t *testing.T) {
	t.Parallel()

	repo := NewGormDispatchRepo(nil)

	claimed, err := repo.ClaimBatch(context.Background(), domain.ChannelSMS, 0, domain.SendingPolicyAnytime, time.Now())
	if err != nil {
		t.Fatalf("ClaimBatch() error = %v", err)
	}
	if claimed != nil {
		t.Fatalf("claimed = %v, want nil for zero batch size", claimed)
	}
}
