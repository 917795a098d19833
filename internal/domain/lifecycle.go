package domain

import (
	"fmt"
	"regexp"
)

// ProcessingLifecycle is the typed state a shipment or a per-recipient
// delivery occupies on the tracking read path.
type ProcessingLifecycle string

const (
	LifecycleRegistered ProcessingLifecycle = "Registered"
	LifecycleProcessing ProcessingLifecycle = "Processing"
	LifecycleProcessed  ProcessingLifecycle = "Processed"
	LifecycleCancelled  ProcessingLifecycle = "Cancelled"

	LifecycleNew       ProcessingLifecycle = "New"
	LifecycleSending   ProcessingLifecycle = "Sending"
	LifecycleAccepted  ProcessingLifecycle = "Accepted"
	LifecycleSucceeded ProcessingLifecycle = "Succeeded"
	LifecycleDelivered ProcessingLifecycle = "Delivered"

	LifecycleFailed                       ProcessingLifecycle = "Failed"
	LifecycleFailedRecipientNotIdentified ProcessingLifecycle = "Failed_RecipientNotIdentified"
	LifecycleFailedInvalidEmailFormat     ProcessingLifecycle = "Failed_InvalidEmailFormat"
	LifecycleFailedBounced                ProcessingLifecycle = "Failed_Bounced"
	LifecycleFailedFilteredSpam           ProcessingLifecycle = "Failed_FilteredSpam"
	LifecycleFailedTransientError         ProcessingLifecycle = "Failed_TransientError"
	LifecycleFailedInvalidRecipient       ProcessingLifecycle = "Failed_InvalidRecipient"
	LifecycleFailedBarredReceiver         ProcessingLifecycle = "Failed_BarredReceiver"
	LifecycleFailedExpired                ProcessingLifecycle = "Failed_Expired"
	LifecycleFailedUndelivered            ProcessingLifecycle = "Failed_Undelivered"
	LifecycleFailedRejected               ProcessingLifecycle = "Failed_Rejected"
)

func (l ProcessingLifecycle) String() string { return string(l) }

// IsTerminal reports whether the lifecycle state is final for the attempt.
func (l ProcessingLifecycle) IsTerminal() bool {
	switch l {
	case LifecycleRegistered, LifecycleProcessing, LifecycleNew, LifecycleSending, LifecycleAccepted:
		return false
	}
	return l != ""
}

var orderLifecycles = map[string]ProcessingLifecycle{
	"REGISTERED": LifecycleRegistered,
	"PROCESSING": LifecycleProcessing,
	"PROCESSED":  LifecycleProcessed,
	"CANCELLED":  LifecycleCancelled,
}

var emailLifecycles = map[string]ProcessingLifecycle{
	"New":                           LifecycleNew,
	"Sending":                       LifecycleSending,
	"Succeeded":                     LifecycleSucceeded,
	"Delivered":                     LifecycleDelivered,
	"Failed":                        LifecycleFailed,
	"Failed_RecipientNotIdentified": LifecycleFailedRecipientNotIdentified,
	"Failed_InvalidEmailFormat":     LifecycleFailedInvalidEmailFormat,
	"Failed_Bounced":                LifecycleFailedBounced,
	"Failed_FilteredSpam":           LifecycleFailedFilteredSpam,
	"Failed_TransientError":         LifecycleFailedTransientError,
}

var smsLifecycles = map[string]ProcessingLifecycle{
	"New":                           LifecycleNew,
	"Sending":                       LifecycleSending,
	"Accepted":                      LifecycleAccepted,
	"Delivered":                     LifecycleDelivered,
	"Failed":                        LifecycleFailed,
	"Failed_RecipientNotIdentified": LifecycleFailedRecipientNotIdentified,
	"Failed_InvalidRecipient":       LifecycleFailedInvalidRecipient,
	"Failed_BarredReceiver":         LifecycleFailedBarredReceiver,
	"Failed_Expired":                LifecycleFailedExpired,
	"Failed_Undelivered":            LifecycleFailedUndelivered,
	"Failed_Rejected":               LifecycleFailedRejected,
}

// MapOrderLifecycle maps a stored order processing status to its lifecycle.
func MapOrderLifecycle(raw string) (ProcessingLifecycle, error) {
	if l, ok := orderLifecycles[raw]; ok {
		return l, nil
	}
	return "", fmt.Errorf("%w: order status %q", ErrUnknownStatus, raw)
}

// MapEmailLifecycle maps a stored email send result to its lifecycle.
func MapEmailLifecycle(raw string) (ProcessingLifecycle, error) {
	if l, ok := emailLifecycles[raw]; ok {
		return l, nil
	}
	return "", fmt.Errorf("%w: email status %q", ErrUnknownStatus, raw)
}

// MapSmsLifecycle maps a stored SMS send result to its lifecycle.
func MapSmsLifecycle(raw string) (ProcessingLifecycle, error) {
	if l, ok := smsLifecycles[raw]; ok {
		return l, nil
	}
	return "", fmt.Errorf("%w: sms status %q", ErrUnknownStatus, raw)
}

// MapChannelLifecycle maps a stored per-recipient status for the given channel.
func MapChannelLifecycle(channel Channel, raw string) (ProcessingLifecycle, error) {
	if channel == ChannelSMS {
		return MapSmsLifecycle(raw)
	}
	return MapEmailLifecycle(raw)
}

// mobilePattern matches destinations that look like a mobile number: optional
// + or 00 prefix followed by digits only.
var mobilePattern = regexp.MustCompile(`^(\+|00)?\d+$`)

// ChannelOfDestination infers the channel from the destination's shape.
// Kept for compatibility with stored rows that carry no channel tag.
func ChannelOfDestination(destination string) Channel {
	if mobilePattern.MatchString(destination) {
		return ChannelSMS
	}
	return ChannelEmail
}
