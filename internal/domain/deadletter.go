package domain

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// DeadDeliveryReport is a durable record of a channel-delivery attempt that
// inline handling could not resolve. Records are never deleted; only the
// Resolved flag mutates, and only through an operator action.
type DeadDeliveryReport struct {
	ID string
	// NotificationID correlates repeated reports for the same delivery
	// attempt so the recorder can increment AttemptCount server-side.
	NotificationID *string
	Channel        Channel
	AttemptCount   int
	DeliveryReport json.RawMessage
	Resolved       bool
	FirstSeen      time.Time
	LastAttempt    time.Time
	Reason         *string
	Message        *string
}

func (r *DeadDeliveryReport) Validate() error {
	if r == nil {
		return fmt.Errorf("%w: report is required", ErrValidation)
	}
	if !r.Channel.IsValid() {
		return fmt.Errorf("%w: invalid channel %q", ErrValidation, r.Channel)
	}
	if len(r.DeliveryReport) == 0 {
		return fmt.Errorf("%w: delivery report payload is required", ErrValidation)
	}
	if r.AttemptCount < 0 {
		return fmt.Errorf("%w: attempt count cannot be negative", ErrValidation)
	}
	if r.Reason != nil && strings.TrimSpace(*r.Reason) == "" {
		return fmt.Errorf("%w: reason cannot be blank when set", ErrValidation)
	}
	return nil
}
