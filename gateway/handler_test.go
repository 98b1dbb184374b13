package gateway

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap/zaptest"

	"github.com/Chamal1120/globalbooks-soa/catalog"
	"github.com/Chamal1120/globalbooks-soa/errdefs"
	"github.com/Chamal1120/globalbooks-soa/queue"
)

var testSecret = []byte("test-secret")

// Mock catalog client for testing.
type mockCatalog struct {
	lookupFunc func(ctx context.Context, bookID string) (catalog.Book, error)
}

func (m *mockCatalog) Lookup(ctx context.Context, bookID string) (catalog.Book, error) {
	if m.lookupFunc != nil {
		return m.lookupFunc(ctx, bookID)
	}
	return catalog.Book{ID: bookID, Title: "The Great Gatsby", Author: "F. Scott Fitzgerald"}, nil
}

type failingPublisher struct{}

func (failingPublisher) Publish(ctx context.Context, queueName, key string, payload any) error {
	return errors.New("broker unavailable")
}

func testToken(t *testing.T) string {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"user_id": 1,
		"exp":     time.Now().Add(time.Hour).Unix(),
	})
	signed, err := token.SignedString(testSecret)
	if err != nil {
		t.Fatalf("Failed to sign token: %v", err)
	}
	return signed
}

func setupGatewayTest(t *testing.T, publisher queue.Publisher, cat catalog.Client) *gin.Engine {
	gin.SetMode(gin.TestMode)
	handler := NewHandler(publisher, cat, testSecret, zaptest.NewLogger(t))
	router := gin.New()
	router.POST("/orders", handler.SubmitOrder)
	return router
}

const validBody = `{"customerId":"c1","items":[{"bookId":"1","quantity":2}],"shippingAddress":{"street":"123 Main St","city":"Springfield","state":"IL","zipCode":"62704"}}`

func TestSubmitOrder_Success(t *testing.T) {
	broker := queue.NewMemoryBroker()
	router := setupGatewayTest(t, broker, &mockCatalog{})

	req := httptest.NewRequest(http.MethodPost, "/orders", strings.NewReader(validBody))
	req.Header.Set("Authorization", "Bearer "+testToken(t))
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusAccepted {
		t.Fatalf("Status = %d, want %d (body: %s)", w.Code, http.StatusAccepted, w.Body.String())
	}
	if !strings.Contains(w.Body.String(), `"status":"submitted"`) {
		t.Errorf("Body = %s, want submitted status", w.Body.String())
	}

	tasks := broker.Drain(queue.OrderQueue)
	if len(tasks) != 1 {
		t.Fatalf("Order queue has %d tasks, want 1", len(tasks))
	}
	if !strings.Contains(string(tasks[0].Value), `"title":"The Great Gatsby"`) {
		t.Errorf("Task = %s, want catalog-enriched items", tasks[0].Value)
	}
}

func TestSubmitOrder_MissingToken(t *testing.T) {
	broker := queue.NewMemoryBroker()
	router := setupGatewayTest(t, broker, &mockCatalog{})

	req := httptest.NewRequest(http.MethodPost, "/orders", strings.NewReader(validBody))
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusUnauthorized {
		t.Errorf("Status = %d, want %d", w.Code, http.StatusUnauthorized)
	}
	if got := broker.Len(queue.OrderQueue); got != 0 {
		t.Errorf("Order queue has %d tasks, want 0", got)
	}
}

func TestSubmitOrder_InvalidToken(t *testing.T) {
	broker := queue.NewMemoryBroker()
	router := setupGatewayTest(t, broker, &mockCatalog{})

	req := httptest.NewRequest(http.MethodPost, "/orders", strings.NewReader(validBody))
	req.Header.Set("Authorization", "Bearer not-a-token")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusUnauthorized {
		t.Errorf("Status = %d, want %d", w.Code, http.StatusUnauthorized)
	}
}

func TestSubmitOrder_UnknownBook(t *testing.T) {
	broker := queue.NewMemoryBroker()
	cat := &mockCatalog{lookupFunc: func(ctx context.Context, bookID string) (catalog.Book, error) {
		return catalog.Book{}, errdefs.NotFoundf("book %s", bookID)
	}}
	router := setupGatewayTest(t, broker, cat)

	req := httptest.NewRequest(http.MethodPost, "/orders", strings.NewReader(validBody))
	req.Header.Set("Authorization", "Bearer "+testToken(t))
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusNotFound {
		t.Errorf("Status = %d, want %d", w.Code, http.StatusNotFound)
	}
	// No order task may ever be published for a rejected request.
	if got := broker.Len(queue.OrderQueue); got != 0 {
		t.Errorf("Order queue has %d tasks, want 0", got)
	}
}

func TestSubmitOrder_CatalogUnavailable(t *testing.T) {
	broker := queue.NewMemoryBroker()
	cat := &mockCatalog{lookupFunc: func(ctx context.Context, bookID string) (catalog.Book, error) {
		return catalog.Book{}, errdefs.Upstreamf("catalog request failed")
	}}
	router := setupGatewayTest(t, broker, cat)

	req := httptest.NewRequest(http.MethodPost, "/orders", strings.NewReader(validBody))
	req.Header.Set("Authorization", "Bearer "+testToken(t))
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusServiceUnavailable {
		t.Errorf("Status = %d, want %d", w.Code, http.StatusServiceUnavailable)
	}
}

func TestSubmitOrder_PublishFailureSurfacesToCaller(t *testing.T) {
	router := setupGatewayTest(t, failingPublisher{}, &mockCatalog{})

	req := httptest.NewRequest(http.MethodPost, "/orders", strings.NewReader(validBody))
	req.Header.Set("Authorization", "Bearer "+testToken(t))
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusBadGateway {
		t.Errorf("Status = %d, want %d", w.Code, http.StatusBadGateway)
	}
}

func TestSubmitOrder_MissingItems(t *testing.T) {
	broker := queue.NewMemoryBroker()
	router := setupGatewayTest(t, broker, &mockCatalog{})

	req := httptest.NewRequest(http.MethodPost, "/orders", strings.NewReader(`{"customerId":"c1","items":[]}`))
	req.Header.Set("Authorization", "Bearer "+testToken(t))
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusBadRequest {
		t.Errorf("Status = %d, want %d", w.Code, http.StatusBadRequest)
	}
}
