package queue

import (
	"fmt"
	"strings"
	"time"

	"github.com/kursadbilgin/notification-orders/internal/domain"
)

// DispatchMessage is the broker payload for one claimed notification handed
// to a channel gateway.
type DispatchMessage struct {
	NotificationID string         `json:"notificationId"`
	ShipmentID     string         `json:"shipmentId,omitempty"`
	Creator        string         `json:"creator"`
	Channel        domain.Channel `json:"channel"`
	Destination    string         `json:"destination"`
	Subject        string         `json:"subject,omitempty"`
	Body           string         `json:"body"`
	Sender         string         `json:"sender,omitempty"`
	ContentType    string         `json:"contentType,omitempty"`
	ExpiryTime     *time.Time     `json:"expiryTime,omitempty"`
}

func (m DispatchMessage) Validate() error {
	if strings.TrimSpace(m.NotificationID) == "" {
		return fmt.Errorf("notificationId is required")
	}
	if !m.Channel.IsValid() {
		return fmt.Errorf("invalid channel %q", m.Channel)
	}
	if strings.TrimSpace(m.Destination) == "" {
		return fmt.Errorf("destination is required")
	}
	if strings.TrimSpace(m.Body) == "" {
		return fmt.Errorf("body is required")
	}
	return nil
}

// DeliveryReceipt is the broker payload a gateway reports back after a
// delivery attempt. RawReport carries the gateway's unparsed response for
// dead-letter capture.
type DeliveryReceipt struct {
	NotificationID   string         `json:"notificationId"`
	Channel          domain.Channel `json:"channel"`
	Result           string         `json:"result"`
	GatewayReference *string        `json:"gatewayReference,omitempty"`
	ReceivedAt       time.Time      `json:"receivedAt"`
	RawReport        []byte         `json:"rawReport,omitempty"`
}

func (r DeliveryReceipt) Validate() error {
	if strings.TrimSpace(r.NotificationID) == "" {
		return fmt.Errorf("notificationId is required")
	}
	if !r.Channel.IsValid() {
		return fmt.Errorf("invalid channel %q", r.Channel)
	}
	if strings.TrimSpace(r.Result) == "" {
		return fmt.Errorf("result is required")
	}
	return nil
}
