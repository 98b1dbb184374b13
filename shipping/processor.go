// Package shipping fulfills shipping tasks. Idempotent on orderId, same
// recovery shape as payments: a redelivered task never dispatches twice.
package shipping

import (
	"context"
	"encoding/json"
	"fmt"
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
	store           store.ShipmentStore
	publisher       queue.Publisher
	dispatcher      Dispatcher
	dispatchTimeout time.Duration
	logger          *zap.Logger
}

func NewProcessor(shipmentStore store.ShipmentStore, publisher queue.Publisher, dispatcher Dispatcher, dispatchTimeout time.Duration, logger *zap.Logger) *Processor {
	return &Processor{
		store:           shipmentStore,
		publisher:       publisher,
		dispatcher:      dispatcher,
		dispatchTimeout: dispatchTimeout,
		logger:          logger,
	}
}

func (p *Processor) HandleShippingTask(ctx context.Context, msg queue.Message) error {
	ctx, span := otel.Tracer("shipping").Start(ctx, "HandleShippingTask")
	defer span.End()

	var task models.ShippingTask
	if err := json.Unmarshal(msg.Value, &task); err != nil {
		span.RecordError(err)
		return errdefs.Validationf("failed to unmarshal shipping task: %v", err)
	}
	if task.OrderID == 0 {
		return errdefs.Validationf("shipping task missing order id")
	}

	span.SetAttributes(attribute.Int64("order.id", task.OrderID))
	traceID := middleware.GetTraceID(ctx)

	shipment, err := p.store.GetByOrderID(ctx, task.OrderID)
	switch {
	case errdefs.IsNotFound(err):
		shipment = &models.Shipment{
			OrderID: task.OrderID,
			Address: task.ShippingAddress.Flatten(),
			Status:  models.ShipmentStatePreparing,
		}
		if err := p.store.Create(ctx, shipment); err != nil {
			span.RecordError(err)
			return err
		}
	case err != nil:
		span.RecordError(err)
		return err
	default:
		p.logger.Info("Shipment already exists for order, resuming",
			zap.String("trace_id", traceID),
			zap.Int64("order_id", task.OrderID),
			zap.Int64("shipment_id", shipment.ID),
			zap.String("status", string(shipment.Status)),
		)
	}

	span.SetAttributes(attribute.Int64("shipment.id", shipment.ID))

	if !shipment.Status.Terminal() {
		dispatchCtx, cancel := context.WithTimeout(ctx, p.dispatchTimeout)
		outcome, err := p.dispatcher.Dispatch(dispatchCtx, task.OrderID, shipment.Address)
		cancel()
		if err != nil {
			span.RecordError(err)
			return errdefs.Transient(err)
		}

		tracking := ""
		status := models.ShipmentStateFailed
		if outcome == Shipped {
			status = models.ShipmentStateShipped
			tracking = fmt.Sprintf("TRK%d", shipment.ID)
		}
		if err := p.store.SetStatus(ctx, shipment.ID, status, tracking); err != nil {
			span.RecordError(err)
			return err
		}
		shipment.Status = status
		shipment.TrackingNumber = tracking

		middleware.ShipmentsProcessedTotal.WithLabelValues(string(status)).Inc()
		p.logger.Info("Shipment dispatched",
			zap.String("trace_id", traceID),
			zap.Int64("shipment_id", shipment.ID),
			zap.Int64("order_id", task.OrderID),
			zap.String("status", string(status)),
			zap.String("tracking_number", tracking),
		)
	}

	if !shipment.ConfirmationSent {
		status := models.ConfirmationFailed
		if shipment.Status == models.ShipmentStateShipped {
			status = models.ConfirmationShipped
		}
		conf := models.ShippingConfirmation{
			OrderID:        shipment.OrderID,
			ShipmentID:     shipment.ID,
			Status:         status,
			TrackingNumber: shipment.TrackingNumber,
		}
		if err := p.publisher.Publish(ctx, queue.ShippingConfirmQueue, task.CustomerID, conf); err != nil {
			return errdefs.Transient(err)
		}
		if err := p.store.MarkConfirmationSent(ctx, shipment.ID); err != nil {
			p.logger.Warn("Failed to record confirmation publish",
				zap.String("trace_id", traceID),
				zap.Int64("shipment_id", shipment.ID),
				zap.Error(err),
			)
		}
		shipment.ConfirmationSent = true
		p.logger.Info("Shipping confirmation published",
			zap.String("trace_id", traceID),
			zap.Int64("order_id", shipment.OrderID),
			zap.String("status", status),
		)
	}

	return nil
}
