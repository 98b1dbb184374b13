package queue

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/IBM/sarama"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// KafkaPublisher publishes JSON messages through a synchronous producer.
// WaitForAll acks mean Publish does not return until the broker has
// durably accepted the message.
type KafkaPublisher struct {
	producer sarama.SyncProducer
	logger   *zap.Logger
}

func NewKafkaPublisher(brokers []string, logger *zap.Logger) (*KafkaPublisher, error) {
	config := sarama.NewConfig()
	config.Producer.Return.Successes = true
	config.Producer.RequiredAcks = sarama.WaitForAll
	config.Producer.Retry.Max = 5

	producer, err := sarama.NewSyncProducer(brokers, config)
	if err != nil {
		return nil, fmt.Errorf("failed to create Kafka producer: %w", err)
	}

	logger.Info("Kafka producer initialized")
	return &KafkaPublisher{producer: producer, logger: logger}, nil
}

func (p *KafkaPublisher) Publish(ctx context.Context, queue, key string, payload any) error {
	value, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal message: %w", err)
	}

	msg := &sarama.ProducerMessage{
		Topic: queue,
		Key:   sarama.StringEncoder(key),
		Value: sarama.ByteEncoder(value),
	}

	// Inject trace context into the record headers so the consumer side
	// continues the same trace.
	carrier := make(producerHeaderCarrier, 0)
	otel.GetTextMapPropagator().Inject(ctx, &carrier)
	msg.Headers = []sarama.RecordHeader(carrier)

	partition, offset, err := p.producer.SendMessage(msg)
	if err != nil {
		return fmt.Errorf("failed to send message to %s: %w", queue, err)
	}

	span := trace.SpanFromContext(ctx)
	traceID := ""
	if span.SpanContext().IsValid() {
		traceID = span.SpanContext().TraceID().String()
	}

	p.logger.Info("Message published",
		zap.String("trace_id", traceID),
		zap.String("queue", queue),
		zap.Int32("partition", partition),
		zap.Int64("offset", offset),
	)
	return nil
}

func (p *KafkaPublisher) Close() error {
	return p.producer.Close()
}

// KafkaConsumer consumes a queue through a consumer group, so instances of
// the same service compete for messages. Offsets are committed only after
// the handler returns nil, which is the acknowledge-after-durable-effect
// rule: a crash mid-handler leaves the message uncommitted and it is
// redelivered.
type KafkaConsumer struct {
	group   sarama.ConsumerGroup
	groupID string
	logger  *zap.Logger
}

func NewKafkaConsumer(brokers []string, groupID string, logger *zap.Logger) (*KafkaConsumer, error) {
	config := sarama.NewConfig()
	config.Consumer.Return.Errors = true
	config.Consumer.Offsets.Initial = sarama.OffsetOldest

	group, err := sarama.NewConsumerGroup(brokers, groupID, config)
	if err != nil {
		return nil, fmt.Errorf("failed to create Kafka consumer group: %w", err)
	}

	logger.Info("Kafka consumer initialized", zap.String("group", groupID))
	return &KafkaConsumer{group: group, groupID: groupID, logger: logger}, nil
}

func (c *KafkaConsumer) Consume(ctx context.Context, queue string, h Handler) error {
	go func() {
		for err := range c.group.Errors() {
			c.logger.Error("Kafka consumer error", zap.String("group", c.groupID), zap.Error(err))
		}
	}()

	handler := &groupHandler{queue: queue, h: h, logger: c.logger}
	for {
		if err := c.group.Consume(ctx, []string{queue}, handler); err != nil {
			c.logger.Error("Kafka consume session ended", zap.String("queue", queue), zap.Error(err))
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
	}
}

func (c *KafkaConsumer) Close() error {
	return c.group.Close()
}

type groupHandler struct {
	queue  string
	h      Handler
	logger *zap.Logger
}

func (g *groupHandler) Setup(sarama.ConsumerGroupSession) error   { return nil }
func (g *groupHandler) Cleanup(sarama.ConsumerGroupSession) error { return nil }

func (g *groupHandler) ConsumeClaim(sess sarama.ConsumerGroupSession, claim sarama.ConsumerGroupClaim) error {
	for message := range claim.Messages() {
		ctx := otel.GetTextMapPropagator().Extract(sess.Context(), consumerHeaderCarrier(message.Headers))
		ctx, span := otel.Tracer("queue").Start(ctx, "Consume "+g.queue)
		span.SetAttributes(
			attribute.String("queue", g.queue),
			attribute.Int64("offset", message.Offset),
		)

		headers := make(map[string]string, len(message.Headers))
		for _, h := range message.Headers {
			headers[string(h.Key)] = string(h.Value)
		}

		err := g.h(ctx, Message{
			Queue:   g.queue,
			Key:     string(message.Key),
			Value:   message.Value,
			Headers: headers,
		})
		if err != nil {
			span.RecordError(err)
			span.End()
			g.logger.Error("Message handling failed, leaving unacknowledged",
				zap.String("queue", g.queue),
				zap.Int64("offset", message.Offset),
				zap.Error(err),
			)
			// Returning the error tears down the session without
			// committing; the message is redelivered.
			return err
		}

		sess.MarkMessage(message, "")
		span.End()
	}
	return nil
}
