// Package orders owns the Order record: the processor creates it from an
// intake task and chains the payment stage; the reconciler merges the
// confirmation fan-in back into it.
package orders

import (
	"context"
	"encoding/json"

	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/Chamal1120/globalbooks-soa/errdefs"
	"github.com/Chamal1120/globalbooks-soa/middleware"
	"github.com/Chamal1120/globalbooks-soa/models"
	"github.com/Chamal1120/globalbooks-soa/pricing"
	"github.com/Chamal1120/globalbooks-soa/queue"
	"github.com/Chamal1120/globalbooks-soa/store"
)

type Processor struct {
	store     store.OrderStore
	publisher queue.Publisher
	pricer    pricing.Pricer
	logger    *zap.Logger
}

func NewProcessor(orderStore store.OrderStore, publisher queue.Publisher, pricer pricing.Pricer, logger *zap.Logger) *Processor {
	return &Processor{
		store:     orderStore,
		publisher: publisher,
		pricer:    pricer,
		logger:    logger,
	}
}

// HandleOrderTask consumes one order task: persist the order, compute the
// amount, publish the payment task. The task's idempotency key makes
// redelivery safe: an already-persisted order is not re-created, and an
// already-published payment task is not re-published.
func (p *Processor) HandleOrderTask(ctx context.Context, msg queue.Message) error {
	ctx, span := otel.Tracer("orders").Start(ctx, "HandleOrderTask")
	defer span.End()

	var task models.OrderTask
	if err := json.Unmarshal(msg.Value, &task); err != nil {
		span.RecordError(err)
		middleware.OrdersProcessedTotal.WithLabelValues("invalid").Inc()
		return errdefs.Validationf("failed to unmarshal order task: %v", err)
	}
	if task.IdempotencyKey == "" {
		middleware.OrdersProcessedTotal.WithLabelValues("invalid").Inc()
		return errdefs.Validationf("order task missing idempotency key")
	}

	span.SetAttributes(attribute.String("idempotency_key", task.IdempotencyKey))
	traceID := middleware.GetTraceID(ctx)

	order, err := p.store.GetByIdempotencyKey(ctx, task.IdempotencyKey)
	switch {
	case errdefs.IsNotFound(err):
		order = &models.Order{
			IdempotencyKey: task.IdempotencyKey,
			CustomerID:     task.CustomerID,
			Items:          task.Items,
			PaymentStatus:  models.PaymentProcessing,
			ShippingStatus: models.ShippingNone,
		}
		if err := p.store.Create(ctx, order); err != nil {
			span.RecordError(err)
			return err
		}
		p.logger.Info("Order created",
			zap.String("trace_id", traceID),
			zap.Int64("order_id", order.ID),
			zap.String("customer_id", order.CustomerID),
		)
	case err != nil:
		span.RecordError(err)
		return err
	default:
		p.logger.Info("Order already persisted, resuming publish",
			zap.String("trace_id", traceID),
			zap.Int64("order_id", order.ID),
		)
	}

	span.SetAttributes(attribute.Int64("order.id", order.ID))

	if order.PaymentTaskPublished {
		middleware.OrdersProcessedTotal.WithLabelValues("duplicate").Inc()
		return nil
	}

	amount := p.totalAmount(order.Items)
	paymentTask := models.PaymentTask{
		OrderID:         order.ID,
		CustomerID:      order.CustomerID,
		Amount:          amount,
		Items:           order.Items,
		ShippingAddress: task.ShippingAddress,
		PaymentMethod:   task.PaymentMethod,
	}

	if err := p.publisher.Publish(ctx, queue.PaymentQueue, task.IdempotencyKey, paymentTask); err != nil {
		span.RecordError(err)
		return errdefs.Transient(err)
	}
	if err := p.store.MarkPaymentTaskPublished(ctx, order.ID); err != nil {
		// The publish committed; failing here only risks one extra
		// payment task on redelivery, which the payments processor
		// deduplicates.
		p.logger.Warn("Failed to record payment task publish",
			zap.String("trace_id", traceID),
			zap.Int64("order_id", order.ID),
			zap.Error(err),
		)
	}

	middleware.OrdersProcessedTotal.WithLabelValues("processed").Inc()
	p.logger.Info("Payment task published",
		zap.String("trace_id", traceID),
		zap.Int64("order_id", order.ID),
		zap.String("amount", amount.String()),
	)
	return nil
}

// totalAmount is Σ(unit price × quantity); the catalog-supplied price wins
// over the configured one.
func (p *Processor) totalAmount(items []models.OrderItem) decimal.Decimal {
	total := decimal.Zero
	for _, item := range items {
		unit := item.UnitPrice
		if unit.IsZero() {
			unit = p.pricer.UnitPrice(item.BookID)
		}
		total = total.Add(unit.Mul(decimal.NewFromInt(int64(item.Quantity))))
	}
	return total
}
