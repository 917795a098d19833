package domain

import "time"

// SendResult is the per-recipient delivery state of a channel notification.
// Raw values are stored as-is; lifecycle mapping happens on the read path.
type SendResult string

const (
	ResultNew     SendResult = "New"
	ResultSending SendResult = "Sending"

	// Email results reported by the email gateway.
	ResultSucceeded                    SendResult = "Succeeded"
	ResultDelivered                    SendResult = "Delivered"
	ResultFailed                       SendResult = "Failed"
	ResultFailedRecipientNotIdentified SendResult = "Failed_RecipientNotIdentified"
	ResultFailedInvalidEmailFormat     SendResult = "Failed_InvalidEmailFormat"
	ResultFailedBounced                SendResult = "Failed_Bounced"
	ResultFailedFilteredSpam           SendResult = "Failed_FilteredSpam"
	ResultFailedTransientError         SendResult = "Failed_TransientError"

	// SMS results reported by the SMS gateway.
	ResultAccepted               SendResult = "Accepted"
	ResultFailedInvalidRecipient SendResult = "Failed_InvalidRecipient"
	ResultFailedBarredReceiver   SendResult = "Failed_BarredReceiver"
	ResultFailedExpired          SendResult = "Failed_Expired"
	ResultFailedUndelivered      SendResult = "Failed_Undelivered"
	ResultFailedRejected         SendResult = "Failed_Rejected"
)

func (r SendResult) String() string { return string(r) }

// IsTerminal reports whether the result closes the delivery attempt. Terminal
// results are immutable once written.
func (r SendResult) IsTerminal() bool {
	switch r {
	case ResultNew, ResultSending, ResultAccepted:
		return false
	}
	return r != ""
}

// ChannelNotification is one per-recipient delivery unit exploded from an order.
type ChannelNotification struct {
	ID                string
	OrderID           string
	Channel           Channel
	Destination       string
	Result            SendResult
	ResultTime        time.Time
	GatewayReference  *string
	ExpiryTime        *time.Time
	SendingTimePolicy SendingTimePolicy
}

// ClaimedNotification is a notification atomically marked for sending,
// together with the content the gateway needs.
type ClaimedNotification struct {
	Notification ChannelNotification
	ShipmentID   string
	Creator      string
	EmailContent *EmailContent
	SmsContent   *SmsContent
}
