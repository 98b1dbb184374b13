package orders

import (
	"context"
	"encoding/json"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/Chamal1120/globalbooks-soa/errdefs"
	"github.com/Chamal1120/globalbooks-soa/middleware"
	"github.com/Chamal1120/globalbooks-soa/models"
	"github.com/Chamal1120/globalbooks-soa/queue"
	"github.com/Chamal1120/globalbooks-soa/store"
)

// Reconciler consumes both confirmation streams and merges outcomes into
// the order. The two streams are unordered and at-least-once; correctness
// rests on the merge being monotonic and the two kinds touching disjoint
// fields.
type Reconciler struct {
	store  store.OrderStore
	logger *zap.Logger
}

func NewReconciler(orderStore store.OrderStore, logger *zap.Logger) *Reconciler {
	return &Reconciler{store: orderStore, logger: logger}
}

func (r *Reconciler) HandlePaymentConfirmation(ctx context.Context, msg queue.Message) error {
	ctx, span := otel.Tracer("orders").Start(ctx, "HandlePaymentConfirmation")
	defer span.End()

	var conf models.PaymentConfirmation
	if err := json.Unmarshal(msg.Value, &conf); err != nil {
		span.RecordError(err)
		return errdefs.Validationf("failed to unmarshal payment confirmation: %v", err)
	}

	var to models.PaymentStatus
	switch conf.Status {
	case models.ConfirmationCompleted:
		to = models.PaymentPaid
	case models.ConfirmationFailed:
		to = models.PaymentFailed
	default:
		return errdefs.Validationf("unknown payment confirmation status %q", conf.Status)
	}

	span.SetAttributes(
		attribute.Int64("order.id", conf.OrderID),
		attribute.String("status", conf.Status),
	)

	applied, err := r.store.ApplyPaymentStatus(ctx, conf.OrderID, to)
	if err != nil {
		span.RecordError(err)
		if errdefs.IsNotFound(err) {
			// The order may not be visible yet; redeliver rather than
			// drop the confirmation.
			r.logger.Warn("Order not found for payment confirmation, redelivering",
				zap.Int64("order_id", conf.OrderID),
			)
			return errdefs.Transient(err)
		}
		return err
	}

	r.recordMerge(ctx, "payment", conf.OrderID, string(to), applied)
	return nil
}

func (r *Reconciler) HandleShippingConfirmation(ctx context.Context, msg queue.Message) error {
	ctx, span := otel.Tracer("orders").Start(ctx, "HandleShippingConfirmation")
	defer span.End()

	var conf models.ShippingConfirmation
	if err := json.Unmarshal(msg.Value, &conf); err != nil {
		span.RecordError(err)
		return errdefs.Validationf("failed to unmarshal shipping confirmation: %v", err)
	}

	var to models.ShippingStatus
	switch conf.Status {
	case models.ConfirmationShipped:
		to = models.ShippingShipped
	case models.ConfirmationFailed:
		to = models.ShippingFailed
	default:
		return errdefs.Validationf("unknown shipping confirmation status %q", conf.Status)
	}

	span.SetAttributes(
		attribute.Int64("order.id", conf.OrderID),
		attribute.String("status", conf.Status),
	)

	applied, err := r.store.ApplyShippingStatus(ctx, conf.OrderID, to)
	if err != nil {
		span.RecordError(err)
		if errdefs.IsNotFound(err) {
			r.logger.Warn("Order not found for shipping confirmation, redelivering",
				zap.Int64("order_id", conf.OrderID),
			)
			return errdefs.Transient(err)
		}
		return err
	}

	r.recordMerge(ctx, "shipping", conf.OrderID, string(to), applied)
	return nil
}

func (r *Reconciler) recordMerge(ctx context.Context, kind string, orderID int64, status string, applied bool) {
	outcome := "applied"
	if !applied {
		// Duplicate or out-of-order confirmation; the monotonic rule
		// already rejected it, so acknowledging is safe.
		outcome = "skipped"
	}
	middleware.ConfirmationsAppliedTotal.WithLabelValues(kind, outcome).Inc()
	r.logger.Info("Confirmation reconciled",
		zap.String("trace_id", middleware.GetTraceID(ctx)),
		zap.String("kind", kind),
		zap.Int64("order_id", orderID),
		zap.String("status", status),
		zap.String("outcome", outcome),
	)
}
