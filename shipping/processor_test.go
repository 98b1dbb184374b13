package shipping

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"testing"
	"time"

	"go.uber.org/zap/zaptest"

	"github.com/Chamal1120/globalbooks-soa/errdefs"
	"github.com/Chamal1120/globalbooks-soa/models"
	"github.com/Chamal1120/globalbooks-soa/queue"
	"github.com/Chamal1120/globalbooks-soa/store"
)

type countingDispatcher struct {
	calls   int
	outcome Outcome
	err     error
}

func (d *countingDispatcher) Dispatch(ctx context.Context, orderID int64, address string) (Outcome, error) {
	d.calls++
	return d.outcome, d.err
}

func shippingTaskMessage(t *testing.T, task models.ShippingTask) queue.Message {
	value, err := json.Marshal(task)
	if err != nil {
		t.Fatalf("Failed to marshal task: %v", err)
	}
	return queue.Message{Queue: queue.ShippingQueue, Value: value}
}

func testTask() models.ShippingTask {
	return models.ShippingTask{
		OrderID:    7,
		CustomerID: "c1",
		Items:      []models.OrderItem{{BookID: "1", Quantity: 2}},
		ShippingAddress: models.Address{
			Street: "123 Main St", City: "Springfield", State: "IL", ZipCode: "62704",
		},
	}
}

func TestHandleShippingTask_ShippedPublishesConfirmationWithTracking(t *testing.T) {
	shipments := store.NewMemoryShipmentStore()
	broker := queue.NewMemoryBroker()
	dispatcher := &countingDispatcher{outcome: Shipped}
	processor := NewProcessor(shipments, broker, dispatcher, time.Second, zaptest.NewLogger(t))

	if err := processor.HandleShippingTask(context.Background(), shippingTaskMessage(t, testTask())); err != nil {
		t.Fatalf("HandleShippingTask failed: %v", err)
	}

	shipment, err := shipments.GetByOrderID(context.Background(), 7)
	if err != nil {
		t.Fatalf("Shipment not persisted: %v", err)
	}
	if shipment.Status != models.ShipmentStateShipped {
		t.Errorf("Status = %s, want %s", shipment.Status, models.ShipmentStateShipped)
	}
	if want := fmt.Sprintf("TRK%d", shipment.ID); shipment.TrackingNumber != want {
		t.Errorf("TrackingNumber = %q, want %q", shipment.TrackingNumber, want)
	}
	if want := "123 Main St, Springfield, IL 62704"; shipment.Address != want {
		t.Errorf("Address = %q, want %q", shipment.Address, want)
	}

	confs := broker.Drain(queue.ShippingConfirmQueue)
	if len(confs) != 1 {
		t.Fatalf("Confirmation queue has %d messages, want 1", len(confs))
	}
	var conf models.ShippingConfirmation
	if err := json.Unmarshal(confs[0].Value, &conf); err != nil {
		t.Fatalf("Failed to unmarshal confirmation: %v", err)
	}
	if conf.Status != models.ConfirmationShipped {
		t.Errorf("Confirmation status = %s, want %s", conf.Status, models.ConfirmationShipped)
	}
	if conf.TrackingNumber != shipment.TrackingNumber {
		t.Errorf("Confirmation tracking = %q, want %q", conf.TrackingNumber, shipment.TrackingNumber)
	}
}

func TestHandleShippingTask_FailedDispatchConfirmsWithoutTracking(t *testing.T) {
	shipments := store.NewMemoryShipmentStore()
	broker := queue.NewMemoryBroker()
	dispatcher := &countingDispatcher{outcome: Failed}
	processor := NewProcessor(shipments, broker, dispatcher, time.Second, zaptest.NewLogger(t))

	if err := processor.HandleShippingTask(context.Background(), shippingTaskMessage(t, testTask())); err != nil {
		t.Fatalf("HandleShippingTask failed: %v", err)
	}

	shipment, err := shipments.GetByOrderID(context.Background(), 7)
	if err != nil {
		t.Fatalf("Shipment not persisted: %v", err)
	}
	if shipment.Status != models.ShipmentStateFailed {
		t.Errorf("Status = %s, want %s", shipment.Status, models.ShipmentStateFailed)
	}
	if shipment.TrackingNumber != "" {
		t.Errorf("TrackingNumber = %q, want empty on failure", shipment.TrackingNumber)
	}

	confs := broker.Drain(queue.ShippingConfirmQueue)
	if len(confs) != 1 {
		t.Fatalf("Confirmation queue has %d messages, want 1", len(confs))
	}
	var conf models.ShippingConfirmation
	if err := json.Unmarshal(confs[0].Value, &conf); err != nil {
		t.Fatalf("Failed to unmarshal confirmation: %v", err)
	}
	if conf.Status != models.ConfirmationFailed {
		t.Errorf("Confirmation status = %s, want %s", conf.Status, models.ConfirmationFailed)
	}
	if conf.TrackingNumber != "" {
		t.Errorf("Confirmation tracking = %q, want empty on failure", conf.TrackingNumber)
	}
}

func TestHandleShippingTask_RedeliveryDoesNotDispatchTwice(t *testing.T) {
	shipments := store.NewMemoryShipmentStore()
	broker := queue.NewMemoryBroker()
	dispatcher := &countingDispatcher{outcome: Shipped}
	processor := NewProcessor(shipments, broker, dispatcher, time.Second, zaptest.NewLogger(t))

	msg := shippingTaskMessage(t, testTask())
	if err := processor.HandleShippingTask(context.Background(), msg); err != nil {
		t.Fatalf("First delivery failed: %v", err)
	}
	if err := processor.HandleShippingTask(context.Background(), msg); err != nil {
		t.Fatalf("Redelivery failed: %v", err)
	}

	if dispatcher.calls != 1 {
		t.Errorf("Dispatch called %d times, want 1", dispatcher.calls)
	}
	if got := broker.Len(queue.ShippingConfirmQueue); got != 1 {
		t.Errorf("Confirmation queue has %d messages after redelivery, want 1", got)
	}
}

func TestHandleShippingTask_CarrierErrorIsTransient(t *testing.T) {
	shipments := store.NewMemoryShipmentStore()
	broker := queue.NewMemoryBroker()
	dispatcher := &countingDispatcher{err: errors.New("carrier timeout")}
	processor := NewProcessor(shipments, broker, dispatcher, time.Second, zaptest.NewLogger(t))

	err := processor.HandleShippingTask(context.Background(), shippingTaskMessage(t, testTask()))
	if !errdefs.IsTransient(err) {
		t.Fatalf("Error = %v, want transient", err)
	}
	if got := broker.Len(queue.ShippingConfirmQueue); got != 0 {
		t.Errorf("Confirmation queue has %d messages, want 0", got)
	}

	dispatcher.err = nil
	if err := processor.HandleShippingTask(context.Background(), shippingTaskMessage(t, testTask())); err != nil {
		t.Fatalf("Retry failed: %v", err)
	}
	if dispatcher.calls != 2 {
		t.Errorf("Dispatch called %d times, want 2", dispatcher.calls)
	}
}

func TestHandleShippingTask_RejectsMalformedTask(t *testing.T) {
	shipments := store.NewMemoryShipmentStore()
	processor := NewProcessor(shipments, queue.NewMemoryBroker(), &countingDispatcher{}, time.Second, zaptest.NewLogger(t))

	err := processor.HandleShippingTask(context.Background(), queue.Message{Value: []byte("not json")})
	if !errdefs.IsValidation(err) {
		t.Errorf("Error = %v, want validation", err)
	}
}
