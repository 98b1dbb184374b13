package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"go.opentelemetry.io/otel"
)

// MemoryBroker is an in-process transport with at-least-once semantics:
// a handler error requeues the message with an incremented attempt count.
// It backs the package tests and the end-to-end saga test.
type MemoryBroker struct {
	mu     sync.Mutex
	queues map[string]chan Message
}

func NewMemoryBroker() *MemoryBroker {
	return &MemoryBroker{queues: make(map[string]chan Message)}
}

func (b *MemoryBroker) channel(queue string) chan Message {
	b.mu.Lock()
	defer b.mu.Unlock()
	ch, ok := b.queues[queue]
	if !ok {
		ch = make(chan Message, 1024)
		b.queues[queue] = ch
	}
	return ch
}

func (b *MemoryBroker) Publish(ctx context.Context, queue, key string, payload any) error {
	value, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal message: %w", err)
	}

	headers := mapCarrier{}
	otel.GetTextMapPropagator().Inject(ctx, headers)

	select {
	case b.channel(queue) <- Message{Queue: queue, Key: key, Value: value, Headers: headers}:
		return nil
	default:
		return fmt.Errorf("queue %s full", queue)
	}
}

// Consume competes with any other consumer of the same queue. A handler
// error puts the message back with Attempt+1; bounding redelivery is the
// Retrying wrapper's job, not the broker's.
func (b *MemoryBroker) Consume(ctx context.Context, queue string, h Handler) error {
	ch := b.channel(queue)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg := <-ch:
			msgCtx := otel.GetTextMapPropagator().Extract(ctx, mapCarrier(msg.Headers))
			if err := h(msgCtx, msg); err != nil {
				msg.Attempt++
				select {
				case ch <- msg:
				default:
				}
			}
		}
	}
}

// Len reports the number of undelivered messages on a queue. Test helper.
func (b *MemoryBroker) Len(queue string) int {
	return len(b.channel(queue))
}

// Drain removes and returns all undelivered messages on a queue. Test
// helper for asserting what was (or was not) published.
func (b *MemoryBroker) Drain(queue string) []Message {
	ch := b.channel(queue)
	var msgs []Message
	for {
		select {
		case msg := <-ch:
			msgs = append(msgs, msg)
		default:
			return msgs
		}
	}
}
