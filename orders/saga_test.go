package orders_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/shopspring/decimal"
	"go.uber.org/zap/zaptest"

	"github.com/Chamal1120/globalbooks-soa/catalog"
	"github.com/Chamal1120/globalbooks-soa/gateway"
	"github.com/Chamal1120/globalbooks-soa/models"
	"github.com/Chamal1120/globalbooks-soa/orders"
	"github.com/Chamal1120/globalbooks-soa/payments"
	"github.com/Chamal1120/globalbooks-soa/pricing"
	"github.com/Chamal1120/globalbooks-soa/queue"
	"github.com/Chamal1120/globalbooks-soa/shipping"
	"github.com/Chamal1120/globalbooks-soa/store"
)

type staticCatalog struct{}

func (staticCatalog) Lookup(ctx context.Context, bookID string) (catalog.Book, error) {
	return catalog.Book{
		ID:     bookID,
		Title:  "Dune",
		Author: "Frank Herbert",
		Price:  decimal.RequireFromString("29.99"),
	}, nil
}

// sagaHarness runs every processor against one in-memory broker, the way
// the deployed services share one Kafka cluster.
type sagaHarness struct {
	broker *queue.MemoryBroker
	orders *store.MemoryOrderStore
	server *httptest.Server
	secret []byte
}

func startSaga(t *testing.T, charger payments.Charger, dispatcher shipping.Dispatcher) *sagaHarness {
	t.Helper()
	gin.SetMode(gin.TestMode)
	logger := zaptest.NewLogger(t)

	broker := queue.NewMemoryBroker()
	orderStore := store.NewMemoryOrderStore()
	paymentStore := store.NewMemoryPaymentStore()
	shipmentStore := store.NewMemoryShipmentStore()

	pricer := pricing.NewStatic(decimal.RequireFromString("29.99"), nil)
	orderProcessor := orders.NewProcessor(orderStore, broker, pricer, logger)
	reconciler := orders.NewReconciler(orderStore, logger)
	paymentProcessor := payments.NewProcessor(paymentStore, broker, charger, time.Second, logger)
	shippingProcessor := shipping.NewProcessor(shipmentStore, broker, dispatcher, time.Second, logger)

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go broker.Consume(ctx, queue.OrderQueue, orderProcessor.HandleOrderTask)
	go broker.Consume(ctx, queue.PaymentQueue, paymentProcessor.HandlePaymentTask)
	go broker.Consume(ctx, queue.ShippingQueue, shippingProcessor.HandleShippingTask)
	go broker.Consume(ctx, queue.PaymentConfirmQueue, reconciler.HandlePaymentConfirmation)
	go broker.Consume(ctx, queue.ShippingConfirmQueue, reconciler.HandleShippingConfirmation)

	secret := []byte("test-secret")
	handler := gateway.NewHandler(broker, staticCatalog{}, secret, logger)
	router := gin.New()
	router.POST("/orders", handler.SubmitOrder)
	server := httptest.NewServer(router)
	t.Cleanup(server.Close)

	return &sagaHarness{broker: broker, orders: orderStore, server: server, secret: secret}
}

func (h *sagaHarness) submitOrder(t *testing.T) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"user_id": 1,
		"exp":     time.Now().Add(time.Hour).Unix(),
	})
	signed, err := token.SignedString(h.secret)
	if err != nil {
		t.Fatalf("Failed to sign token: %v", err)
	}

	body := `{"customerId":"c1","items":[{"bookId":"1","quantity":2}],"shippingAddress":{"street":"123 Main St","city":"Springfield","state":"IL","zipCode":"62704"},"paymentMethod":"CARD"}`
	req, err := http.NewRequest(http.MethodPost, h.server.URL+"/orders", strings.NewReader(body))
	if err != nil {
		t.Fatalf("Failed to build request: %v", err)
	}
	req.Header.Set("Authorization", "Bearer "+signed)
	req.Header.Set("Content-Type", "application/json")

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("Submit request failed: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusAccepted {
		t.Fatalf("Submit status = %d, want %d", resp.StatusCode, http.StatusAccepted)
	}

	var submitted gateway.SubmitOrderResponse
	if err := json.NewDecoder(resp.Body).Decode(&submitted); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	if submitted.CorrelationID == "" {
		t.Fatal("Response has no correlation id")
	}
	return submitted.CorrelationID
}

// awaitOrder polls until the order reaches the wanted statuses or the
// deadline passes.
func (h *sagaHarness) awaitOrder(t *testing.T, key string, payment models.PaymentStatus, shippingStatus models.ShippingStatus) *models.Order {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		order, err := h.orders.GetByIdempotencyKey(context.Background(), key)
		if err == nil && order.PaymentStatus == payment && order.ShippingStatus == shippingStatus {
			return order
		}
		time.Sleep(10 * time.Millisecond)
	}
	order, err := h.orders.GetByIdempotencyKey(context.Background(), key)
	t.Fatalf("Order never reached %s/%s (order=%+v, err=%v)", payment, shippingStatus, order, err)
	return nil
}

func TestSaga_HappyPathEndsPaidAndShipped(t *testing.T) {
	h := startSaga(t, &payments.SimulatedCharger{}, &shipping.SimulatedDispatcher{})

	key := h.submitOrder(t)
	order := h.awaitOrder(t, key, models.PaymentPaid, models.ShippingShipped)

	if order.CustomerID != "c1" {
		t.Errorf("CustomerID = %q, want c1", order.CustomerID)
	}
	if len(order.Items) != 1 || order.Items[0].Title != "Dune" {
		t.Errorf("Items = %+v, want one catalog-enriched item", order.Items)
	}
}

func TestSaga_DeclinedPaymentHaltsBeforeShipping(t *testing.T) {
	charger := &payments.SimulatedCharger{
		Decline: func(orderID int64, amount decimal.Decimal) bool { return true },
	}
	h := startSaga(t, charger, &shipping.SimulatedDispatcher{})

	key := h.submitOrder(t)
	order := h.awaitOrder(t, key, models.PaymentFailed, models.ShippingNone)

	if order.ShippingStatus != models.ShippingNone {
		t.Errorf("ShippingStatus = %s, want %s", order.ShippingStatus, models.ShippingNone)
	}
	// Nothing was ever queued for shipping.
	if got := h.broker.Len(queue.ShippingQueue); got != 0 {
		t.Errorf("Shipping queue has %d messages, want 0", got)
	}
}

func TestSaga_UndeliverableShipmentEndsPaidAndFailed(t *testing.T) {
	dispatcher := &shipping.SimulatedDispatcher{
		Fail: func(orderID int64, address string) bool { return true },
	}
	h := startSaga(t, &payments.SimulatedCharger{}, dispatcher)

	key := h.submitOrder(t)
	h.awaitOrder(t, key, models.PaymentPaid, models.ShippingFailed)
}
