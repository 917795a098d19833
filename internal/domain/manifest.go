package domain

import "time"

// RecipientDelivery is one per-recipient line of a delivery manifest.
type RecipientDelivery struct {
	Destination string              `json:"destination"`
	Status      ProcessingLifecycle `json:"status"`
	LastUpdate  time.Time           `json:"lastUpdate"`
}

// DeliveryManifest is the tracking read model for one shipment. The
// shipment-level Status carries the value written by the last status-changing
// event; it is never derived from the recipient lines.
type DeliveryManifest struct {
	ShipmentID       string
	SendersReference string
	Type             string
	Status           ProcessingLifecycle
	LastUpdate       time.Time
	Recipients       []RecipientDelivery
}
