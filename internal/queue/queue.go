package queue

import (
	"context"
	"fmt"
	"strings"

	"github.com/kursadbilgin/notification-orders/internal/domain"
)

// Publisher hands claimed notifications to the channel gateways.
type Publisher interface {
	Publish(ctx context.Context, queue string, msg DispatchMessage) error
	Close() error
}

// ReceiptHandler handles one consumed delivery receipt.
type ReceiptHandler func(ctx context.Context, receipt DeliveryReceipt) error

// Consumer consumes delivery receipts reported back by the gateways.
type Consumer interface {
	Consume(ctx context.Context, queue string, handler ReceiptHandler) error
	Close() error
}

var supportedChannels = []domain.Channel{
	domain.ChannelEmail,
	domain.ChannelSMS,
}

// ReceiptQueueName is the queue gateways publish delivery receipts to.
const ReceiptQueueName = "receipts"

// QueueName returns the channel dispatch queue name, e.g. sms.
func QueueName(channel domain.Channel) string {
	return strings.ToLower(channel.String())
}

// DLQName returns the dead-letter queue name for a channel, e.g. dlq.sms.
func DLQName(channel domain.Channel) string {
	return fmt.Sprintf("dlq.%s", QueueName(channel))
}

// DispatchQueueNames returns all channel dispatch queues.
func DispatchQueueNames() []string {
	queues := make([]string, 0, len(supportedChannels))
	for _, channel := range supportedChannels {
		queues = append(queues, QueueName(channel))
	}
	return queues
}

// DLQNames returns all dead-letter queues.
func DLQNames() []string {
	queues := make([]string, 0, len(supportedChannels))
	for _, channel := range supportedChannels {
		queues = append(queues, DLQName(channel))
	}
	return queues
}
