// Package payments settles payment tasks. The processor is idempotent on
// orderId: a redelivered task never charges twice, it re-derives the
// outcome from the persisted record and completes whatever publish is
// missing.
package payments

import (
	"context"
	"encoding/json"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/Chamal1120/globalbooks-soa/errdefs"
	"github.com/Chamal1120/globalbooks-soa/middleware"
	"github.com/Chamal1120/globalbooks-soa/models"
	"github.com/Chamal1120/globalbooks-soa/queue"
	"github.com/Chamal1120/globalbooks-soa/store"
)

type Processor struct {
	store         store.PaymentStore
	publisher     queue.Publisher
	charger       Charger
	chargeTimeout time.Duration
	logger        *zap.Logger
}

func NewProcessor(paymentStore store.PaymentStore, publisher queue.Publisher, charger Charger, chargeTimeout time.Duration, logger *zap.Logger) *Processor {
	return &Processor{
		store:         paymentStore,
		publisher:     publisher,
		charger:       charger,
		chargeTimeout: chargeTimeout,
		logger:        logger,
	}
}

func (p *Processor) HandlePaymentTask(ctx context.Context, msg queue.Message) error {
	ctx, span := otel.Tracer("payments").Start(ctx, "HandlePaymentTask")
	defer span.End()

	var task models.PaymentTask
	if err := json.Unmarshal(msg.Value, &task); err != nil {
		span.RecordError(err)
		return errdefs.Validationf("failed to unmarshal payment task: %v", err)
	}
	if task.OrderID == 0 {
		return errdefs.Validationf("payment task missing order id")
	}

	span.SetAttributes(attribute.Int64("order.id", task.OrderID))
	traceID := middleware.GetTraceID(ctx)

	payment, err := p.store.GetByOrderID(ctx, task.OrderID)
	switch {
	case errdefs.IsNotFound(err):
		payment = &models.Payment{
			OrderID: task.OrderID,
			Amount:  task.Amount,
			Status:  models.PaymentStateProcessing,
		}
		if err := p.store.Create(ctx, payment); err != nil {
			span.RecordError(err)
			return err
		}
	case err != nil:
		span.RecordError(err)
		return err
	default:
		p.logger.Info("Payment already exists for order, resuming",
			zap.String("trace_id", traceID),
			zap.Int64("order_id", task.OrderID),
			zap.Int64("payment_id", payment.ID),
			zap.String("status", string(payment.Status)),
		)
	}

	span.SetAttributes(attribute.Int64("payment.id", payment.ID))

	// A terminal record means the charge already settled; only the
	// publishes may be missing.
	if !payment.Status.Terminal() {
		chargeCtx, cancel := context.WithTimeout(ctx, p.chargeTimeout)
		outcome, err := p.charger.Charge(chargeCtx, task.OrderID, payment.Amount)
		cancel()
		if err != nil {
			// Unknown outcome; redeliver and try again.
			span.RecordError(err)
			return errdefs.Transient(err)
		}

		txn := ""
		status := models.PaymentStateFailed
		if outcome == Completed {
			status = models.PaymentStateCompleted
			txn = transactionID(task.OrderID)
		}
		if err := p.store.SetStatus(ctx, payment.ID, status, txn); err != nil {
			span.RecordError(err)
			return err
		}
		payment.Status = status
		payment.TransactionID = txn

		middleware.PaymentsProcessedTotal.WithLabelValues(string(status)).Inc()
		p.logger.Info("Payment settled",
			zap.String("trace_id", traceID),
			zap.Int64("payment_id", payment.ID),
			zap.Int64("order_id", task.OrderID),
			zap.String("status", string(status)),
			zap.String("transaction_id", txn),
		)
	}

	return p.finish(ctx, payment, task)
}

// finish publishes the confirmation and, for completed payments, the
// shipping task, skipping whichever already went out. The confirmation is
// published unconditionally; on a failed payment it alone tells the
// reconciler the saga halted.
func (p *Processor) finish(ctx context.Context, payment *models.Payment, task models.PaymentTask) error {
	traceID := middleware.GetTraceID(ctx)

	if !payment.ConfirmationSent {
		status := models.ConfirmationFailed
		if payment.Status == models.PaymentStateCompleted {
			status = models.ConfirmationCompleted
		}
		conf := models.PaymentConfirmation{
			OrderID:   payment.OrderID,
			PaymentID: payment.ID,
			Status:    status,
			Amount:    payment.Amount,
		}
		if err := p.publisher.Publish(ctx, queue.PaymentConfirmQueue, task.CustomerID, conf); err != nil {
			return errdefs.Transient(err)
		}
		if err := p.store.MarkConfirmationSent(ctx, payment.ID); err != nil {
			p.logger.Warn("Failed to record confirmation publish",
				zap.String("trace_id", traceID),
				zap.Int64("payment_id", payment.ID),
				zap.Error(err),
			)
		}
		payment.ConfirmationSent = true
		p.logger.Info("Payment confirmation published",
			zap.String("trace_id", traceID),
			zap.Int64("order_id", payment.OrderID),
			zap.String("status", status),
		)
	}

	// The saga chains forward only on success; a declined payment halts
	// here with no compensation.
	if payment.Status == models.PaymentStateCompleted && !payment.ShippingTaskSent {
		shippingTask := models.ShippingTask{
			OrderID:         payment.OrderID,
			CustomerID:      task.CustomerID,
			Items:           task.Items,
			ShippingAddress: task.ShippingAddress,
		}
		if err := p.publisher.Publish(ctx, queue.ShippingQueue, task.CustomerID, shippingTask); err != nil {
			return errdefs.Transient(err)
		}
		if err := p.store.MarkShippingTaskSent(ctx, payment.ID); err != nil {
			p.logger.Warn("Failed to record shipping task publish",
				zap.String("trace_id", traceID),
				zap.Int64("payment_id", payment.ID),
				zap.Error(err),
			)
		}
		payment.ShippingTaskSent = true
		p.logger.Info("Shipping task published",
			zap.String("trace_id", traceID),
			zap.Int64("order_id", payment.OrderID),
		)
	}

	return nil
}
