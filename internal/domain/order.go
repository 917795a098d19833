package domain

import (
	"fmt"
	"strings"
	"time"
)

// Channel represents the delivery channel of an order.
type Channel string

const (
	ChannelEmail Channel = "EMAIL"
	ChannelSMS   Channel = "SMS"
)

func (c Channel) String() string { return string(c) }

func (c Channel) IsValid() bool {
	switch c {
	case ChannelEmail, ChannelSMS:
		return true
	}
	return false
}

func ParseChannelFromString(s string) (Channel, error) {
	ch := Channel(strings.ToUpper(strings.TrimSpace(s)))
	if !ch.IsValid() {
		return "", fmt.Errorf("%w: invalid channel %q", ErrValidation, s)
	}
	return ch, nil
}

// ProcessingStatus represents the order-level processing state.
type ProcessingStatus string

const (
	OrderStatusRegistered ProcessingStatus = "REGISTERED"
	OrderStatusProcessing ProcessingStatus = "PROCESSING"
	OrderStatusProcessed  ProcessingStatus = "PROCESSED"
	OrderStatusCancelled  ProcessingStatus = "CANCELLED"
)

func (s ProcessingStatus) String() string { return string(s) }

func (s ProcessingStatus) IsValid() bool {
	switch s {
	case OrderStatusRegistered, OrderStatusProcessing, OrderStatusProcessed, OrderStatusCancelled:
		return true
	}
	return false
}

// SendingTimePolicy gates when an SMS notification may be handed to the gateway.
type SendingTimePolicy string

const (
	SendingPolicyAnytime SendingTimePolicy = "ANYTIME"
	SendingPolicyDaytime SendingTimePolicy = "DAYTIME"
)

// Daytime window boundaries, local wall-clock hours.
const (
	daytimeStartHour = 9
	daytimeEndHour   = 17
)

func (p SendingTimePolicy) String() string { return string(p) }

func (p SendingTimePolicy) IsValid() bool {
	switch p {
	case SendingPolicyAnytime, SendingPolicyDaytime:
		return true
	}
	return false
}

// PermitsAt reports whether the policy allows sending at the given wall-clock time.
func (p SendingTimePolicy) PermitsAt(t time.Time) bool {
	if p != SendingPolicyDaytime {
		return true
	}
	hour := t.Hour()
	return hour >= daytimeStartHour && hour < daytimeEndHour
}

// EmailContent is the channel-specific content of an email order.
type EmailContent struct {
	FromAddress string
	Subject     string
	Body        string
	ContentType string
}

// SmsContent is the channel-specific content of an SMS order.
type SmsContent struct {
	Sender string
	Body   string
}

// NotificationOrder is one externally trackable shipment: the main order of a
// chain or one of its reminders. Immutable once processed except for status.
type NotificationOrder struct {
	ID                string
	AlternateID       string
	Creator           string
	SendersReference  *string
	Created           time.Time
	RequestedSendTime time.Time
	Channel           Channel
	Recipients        []string
	EmailContent      *EmailContent
	SmsContent        *SmsContent
	SendingTimePolicy SendingTimePolicy
	ProcessingStatus  ProcessingStatus
}

func (o *NotificationOrder) Validate() error {
	if o == nil {
		return fmt.Errorf("%w: order is required", ErrValidation)
	}
	if strings.TrimSpace(o.Creator) == "" {
		return fmt.Errorf("%w: creator is required", ErrValidation)
	}
	if !o.Channel.IsValid() {
		return fmt.Errorf("%w: invalid channel %q", ErrValidation, o.Channel)
	}
	if len(o.Recipients) == 0 {
		return fmt.Errorf("%w: at least one recipient is required", ErrValidation)
	}
	switch o.Channel {
	case ChannelEmail:
		if o.EmailContent == nil || strings.TrimSpace(o.EmailContent.Body) == "" {
			return fmt.Errorf("%w: email content is required", ErrValidation)
		}
	case ChannelSMS:
		if o.SmsContent == nil || strings.TrimSpace(o.SmsContent.Body) == "" {
			return fmt.Errorf("%w: sms content is required", ErrValidation)
		}
		if !o.SendingTimePolicy.IsValid() {
			return fmt.Errorf("%w: invalid sending time policy %q", ErrValidation, o.SendingTimePolicy)
		}
	}
	return nil
}

// Reminder is a follow-up order registered together with the main order.
// Exactly one of DelayDays and RequestedSendTime must be set.
type Reminder struct {
	SendersReference  *string
	DelayDays         *int
	RequestedSendTime *time.Time
	Channel           Channel
	Recipients        []string
	EmailContent      *EmailContent
	SmsContent        *SmsContent
	SendingTimePolicy SendingTimePolicy
}

func (r *Reminder) Validate() error {
	if r == nil {
		return fmt.Errorf("%w: reminder is required", ErrValidation)
	}
	if r.DelayDays == nil && r.RequestedSendTime == nil {
		return fmt.Errorf("%w: reminder requires delay days or a requested send time", ErrValidation)
	}
	if r.DelayDays != nil && r.RequestedSendTime != nil {
		return fmt.Errorf("%w: reminder cannot set both delay days and a requested send time", ErrValidation)
	}
	if r.DelayDays != nil && *r.DelayDays < 1 {
		return fmt.Errorf("%w: reminder delay days must be positive", ErrValidation)
	}
	order := NotificationOrder{
		Creator:           "reminder", // ownership is validated on the chain
		Channel:           r.Channel,
		Recipients:        r.Recipients,
		EmailContent:      r.EmailContent,
		SmsContent:        r.SmsContent,
		SendingTimePolicy: r.SendingTimePolicy,
	}
	return order.Validate()
}

// SendTimeFrom resolves the reminder's send time relative to the chain's base
// send time: base + DelayDays when the delay is set, the absolute time otherwise.
func (r *Reminder) SendTimeFrom(base time.Time) time.Time {
	if r.DelayDays != nil {
		return base.UTC().Add(time.Duration(*r.DelayDays) * 24 * time.Hour)
	}
	return r.RequestedSendTime.UTC()
}

// OrderChainRequest is one registration event: a main order plus zero or more
// reminders registered under a single idempotency key.
type OrderChainRequest struct {
	Creator           string
	IdempotencyID     string
	SendersReference  *string
	RequestedSendTime time.Time
	Channel           Channel
	Recipients        []string
	EmailContent      *EmailContent
	SmsContent        *SmsContent
	SendingTimePolicy SendingTimePolicy
	Reminders         []Reminder
}

func (c *OrderChainRequest) Validate() error {
	if c == nil {
		return fmt.Errorf("%w: chain is required", ErrValidation)
	}
	if strings.TrimSpace(c.Creator) == "" {
		return fmt.Errorf("%w: creator is required", ErrValidation)
	}
	if strings.TrimSpace(c.IdempotencyID) == "" {
		return fmt.Errorf("%w: idempotency id is required", ErrValidation)
	}
	main := NotificationOrder{
		Creator:           c.Creator,
		Channel:           c.Channel,
		Recipients:        c.Recipients,
		EmailContent:      c.EmailContent,
		SmsContent:        c.SmsContent,
		SendingTimePolicy: c.SendingTimePolicy,
	}
	if err := main.Validate(); err != nil {
		return err
	}
	for i := range c.Reminders {
		if err := c.Reminders[i].Validate(); err != nil {
			return fmt.Errorf("reminder %d: %w", i, err)
		}
	}
	return nil
}

// ShipmentReceipt identifies one order of a registered chain.
type ShipmentReceipt struct {
	ShipmentID       string
	SendersReference *string
}

// OrderChainReceipt is the durable result of a chain registration. Replays of
// the same (Creator, IdempotencyID) return the identical receipt.
type OrderChainReceipt struct {
	OrderChainID string
	Shipment     ShipmentReceipt
	Reminders    []ShipmentReceipt
}
