// Package queue is the durable point-to-point transport behind the
// fulfillment saga: named at-least-once channels with publish and a
// competing-consumer subscribe. The Kafka implementation is the production
// transport; the in-memory broker backs tests.
package queue

import "context"

// Queue names, matching the GlobalBooks channel layout.
const (
	OrderQueue           = "order.queue"
	PaymentQueue         = "payment.queue"
	ShippingQueue        = "shipping.queue"
	PaymentConfirmQueue  = "paymentconfirm.queue"
	ShippingConfirmQueue = "shippingconfirm.queue"
)

// DeadLetter names the fallback channel for messages that exhausted their
// retry budget on the given queue.
func DeadLetter(queue string) string {
	return queue + ".dlq"
}

// Message is one delivery. Attempt counts prior deliveries of the same
// payload on this queue.
type Message struct {
	Queue   string
	Key     string
	Value   []byte
	Headers map[string]string
	Attempt int
}

// Handler processes one delivery. A nil return acknowledges the message; an
// error leaves it unacknowledged so the transport redelivers it.
type Handler func(ctx context.Context, msg Message) error

type Publisher interface {
	// Publish marshals payload as JSON and sends it to the named queue.
	// It returns only after the transport has durably accepted the
	// message.
	Publish(ctx context.Context, queue, key string, payload any) error
}

type Consumer interface {
	// Consume delivers messages from the named queue to the handler until
	// ctx is cancelled. Multiple consumers on the same queue compete for
	// messages.
	Consume(ctx context.Context, queue string, h Handler) error
}
