package repository

import (
	"encoding/json"
	"time"

	"github.com/kursadbilgin/notification-orders/internal/domain"
	"gorm.io/datatypes"
)

// Order types stored in the orders table.
const (
	OrderTypeNotification = "Notification"
	OrderTypeReminder     = "Reminder"
)

// OrderChainModel is the persistence model for order_chains. The serialized
// registration payload and receipt make idempotent replay a pure read.
type OrderChainModel struct {
	ID            string         `gorm:"type:uuid;primaryKey"`
	Creator       string         `gorm:"type:varchar(64);not null;uniqueIndex:idx_chain_idempotency,priority:1"`
	IdempotencyID string         `gorm:"type:varchar(255);not null;uniqueIndex:idx_chain_idempotency,priority:2"`
	Payload       datatypes.JSON `gorm:"not null"`
	Receipt       datatypes.JSON `gorm:"not null"`
	CreatedAt     time.Time
}

func (OrderChainModel) TableName() string {
	return "order_chains"
}

// OrderModel is the persistence model for the orders table. One row per
// shipment: the main order of a chain or one of its reminders.
type OrderModel struct {
	ID                string                   `gorm:"type:uuid;primaryKey"`
	AlternateID       string                   `gorm:"type:uuid;not null"`
	ChainID           string                   `gorm:"type:uuid;not null"`
	Creator           string                   `gorm:"type:varchar(64);not null"`
	SendersReference  *string                  `gorm:"type:varchar(255)"`
	Type              string                   `gorm:"type:varchar(16);not null"`
	Channel           domain.Channel           `gorm:"type:varchar(10);not null"`
	Recipients        datatypes.JSON           `gorm:"not null"`
	RequestedSendTime time.Time                `gorm:"type:timestamptz;not null"`
	SendingTimePolicy domain.SendingTimePolicy `gorm:"type:varchar(10);not null"`
	ProcessingStatus  domain.ProcessingStatus  `gorm:"type:varchar(20);not null"`
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

func (OrderModel) TableName() string {
	return "orders"
}

// EmailContentModel holds the email-specific content of an order.
type EmailContentModel struct {
	OrderID     string `gorm:"type:uuid;primaryKey"`
	FromAddress string `gorm:"type:varchar(255);not null"`
	Subject     string `gorm:"type:varchar(512);not null"`
	Body        string `gorm:"type:text;not null"`
	ContentType string `gorm:"type:varchar(32);not null"`
}

func (EmailContentModel) TableName() string {
	return "email_contents"
}

// SmsContentModel holds the SMS-specific content of an order.
type SmsContentModel struct {
	OrderID string `gorm:"type:uuid;primaryKey"`
	Sender  string `gorm:"type:varchar(32);not null"`
	Body    string `gorm:"type:text;not null"`
}

func (SmsContentModel) TableName() string {
	return "sms_contents"
}

// NotificationModel is one per-recipient delivery row exploded from an order.
// The channel tag is explicit here; the manifest read path still sniffs the
// destination shape for rows that predate the tag.
type NotificationModel struct {
	ID                string                   `gorm:"type:uuid;primaryKey"`
	OrderID           string                   `gorm:"type:uuid;not null"`
	Channel           domain.Channel           `gorm:"type:varchar(10);not null"`
	Destination       string                   `gorm:"type:varchar(255);not null"`
	Result            domain.SendResult        `gorm:"type:varchar(40);not null"`
	ResultTime        time.Time                `gorm:"type:timestamptz;not null"`
	GatewayReference  *string                  `gorm:"type:varchar(255)"`
	ExpiryTime        *time.Time               `gorm:"type:timestamptz"`
	SendingTimePolicy domain.SendingTimePolicy `gorm:"type:varchar(10);not null"`
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

func (NotificationModel) TableName() string {
	return "notifications"
}

// FeedSequenceModel is the per-creator sequence counter. The row lock taken by
// the upsert serializes concurrent appends so commit order matches sequence order.
type FeedSequenceModel struct {
	Creator string `gorm:"type:varchar(64);primaryKey"`
	Value   int64  `gorm:"not null"`
}

func (FeedSequenceModel) TableName() string {
	return "feed_sequences"
}

// FeedEntryModel is one append-only status feed row.
type FeedEntryModel struct {
	ID             uint64         `gorm:"primaryKey;autoIncrement"`
	Creator        string         `gorm:"type:varchar(64);not null;uniqueIndex:idx_feed_creator_seq,priority:1"`
	SequenceNumber int64          `gorm:"not null;uniqueIndex:idx_feed_creator_seq,priority:2"`
	OrderStatus    datatypes.JSON `gorm:"not null"`
	CreatedAt      time.Time
}

func (FeedEntryModel) TableName() string {
	return "status_feed"
}

// DeadLetterModel is the persistence model for dead delivery reports.
type DeadLetterModel struct {
	ID             string         `gorm:"type:uuid;primaryKey"`
	NotificationID *string        `gorm:"type:uuid"`
	Channel        domain.Channel `gorm:"type:varchar(10);not null"`
	AttemptCount   int            `gorm:"not null;default:1"`
	DeliveryReport datatypes.JSON `gorm:"not null"`
	Resolved       bool           `gorm:"not null;default:false"`
	FirstSeen      time.Time      `gorm:"type:timestamptz;not null"`
	LastAttempt    time.Time      `gorm:"type:timestamptz;not null"`
	Reason         *string        `gorm:"type:varchar(255)"`
	Message        *string        `gorm:"type:text"`
}

func (DeadLetterModel) TableName() string {
	return "dead_delivery_reports"
}

func orderModelFromDomain(o *domain.NotificationOrder, chainID, orderType string) (*OrderModel, error) {
	if o == nil {
		return nil, nil
	}

	recipients, err := json.Marshal(o.Recipients)
	if err != nil {
		return nil, err
	}

	return &OrderModel{
		ID:                o.ID,
		AlternateID:       o.AlternateID,
		ChainID:           chainID,
		Creator:           o.Creator,
		SendersReference:  o.SendersReference,
		Type:              orderType,
		Channel:           o.Channel,
		Recipients:        recipients,
		RequestedSendTime: o.RequestedSendTime,
		SendingTimePolicy: o.SendingTimePolicy,
		ProcessingStatus:  o.ProcessingStatus,
		CreatedAt:         o.Created,
	}, nil
}

func orderModelToDomain(m *OrderModel) (*domain.NotificationOrder, error) {
	if m == nil {
		return nil, nil
	}

	var recipients []string
	if len(m.Recipients) > 0 {
		if err := json.Unmarshal(m.Recipients, &recipients); err != nil {
			return nil, err
		}
	}

	return &domain.NotificationOrder{
		ID:                m.ID,
		AlternateID:       m.AlternateID,
		Creator:           m.Creator,
		SendersReference:  m.SendersReference,
		Created:           m.CreatedAt,
		RequestedSendTime: m.RequestedSendTime,
		Channel:           m.Channel,
		Recipients:        recipients,
		SendingTimePolicy: m.SendingTimePolicy,
		ProcessingStatus:  m.ProcessingStatus,
	}, nil
}

func notificationModelToDomain(m *NotificationModel) *domain.ChannelNotification {
	if m == nil {
		return nil
	}

	return &domain.ChannelNotification{
		ID:                m.ID,
		OrderID:           m.OrderID,
		Channel:           m.Channel,
		Destination:       m.Destination,
		Result:            m.Result,
		ResultTime:        m.ResultTime,
		GatewayReference:  m.GatewayReference,
		ExpiryTime:        m.ExpiryTime,
		SendingTimePolicy: m.SendingTimePolicy,
	}
}

func deadLetterModelFromDomain(r *domain.DeadDeliveryReport) *DeadLetterModel {
	if r == nil {
		return nil
	}

	return &DeadLetterModel{
		ID:             r.ID,
		NotificationID: r.NotificationID,
		Channel:        r.Channel,
		AttemptCount:   r.AttemptCount,
		DeliveryReport: datatypes.JSON(r.DeliveryReport),
		Resolved:       r.Resolved,
		FirstSeen:      r.FirstSeen,
		LastAttempt:    r.LastAttempt,
		Reason:         r.Reason,
		Message:        r.Message,
	}
}

func deadLetterModelToDomain(m *DeadLetterModel) *domain.DeadDeliveryReport {
	if m == nil {
		return nil
	}

	return &domain.DeadDeliveryReport{
		ID:             m.ID,
		NotificationID: m.NotificationID,
		Channel:        m.Channel,
		AttemptCount:   m.AttemptCount,
		DeliveryReport: json.RawMessage(m.DeliveryReport),
		Resolved:       m.Resolved,
		FirstSeen:      m.FirstSeen,
		LastAttempt:    m.LastAttempt,
		Reason:         m.Reason,
		Message:        m.Message,
	}
}
