package domain

import "time"

// OrderStatusSnapshot is the serialized payload of one status feed entry.
type OrderStatusSnapshot struct {
	ShipmentID       string              `json:"shipmentId"`
	SendersReference *string             `json:"sendersReference,omitempty"`
	Status           ProcessingLifecycle `json:"status"`
	Recipients       []RecipientDelivery `json:"recipients,omitempty"`
	LastUpdate       time.Time           `json:"lastUpdate"`
}

// StatusFeedEntry is one append-only, creator-scoped feed record. Sequence
// numbers are strictly increasing per creator and never reused.
type StatusFeedEntry struct {
	SequenceNumber int64
	OrderStatus    OrderStatusSnapshot
	Created        time.Time
}
