package store

import (
	"context"
	"testing"

	"github.com/Chamal1120/globalbooks-soa/errdefs"
	"github.com/Chamal1120/globalbooks-soa/models"
)

func TestMemoryOrderStore_CreateIsIdempotentOnKey(t *testing.T) {
	s := NewMemoryOrderStore()
	ctx := context.Background()

	first := &models.Order{
		IdempotencyKey: "key-1",
		CustomerID:     "c1",
		PaymentStatus:  models.PaymentProcessing,
		ShippingStatus: models.ShippingNone,
	}
	if err := s.Create(ctx, first); err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if first.ID == 0 {
		t.Fatal("Expected an id to be assigned")
	}

	second := &models.Order{
		IdempotencyKey: "key-1",
		CustomerID:     "c1",
	}
	if err := s.Create(ctx, second); err != nil {
		t.Fatalf("Duplicate create failed: %v", err)
	}
	if second.ID != first.ID {
		t.Errorf("Duplicate create assigned id %d, want existing id %d", second.ID, first.ID)
	}
}

func TestMemoryOrderStore_GetByIDNotFound(t *testing.T) {
	s := NewMemoryOrderStore()
	if _, err := s.GetByID(context.Background(), 42); !errdefs.IsNotFound(err) {
		t.Errorf("Expected not-found error, got %v", err)
	}
}

func TestMemoryOrderStore_MonotonicPaymentMerge(t *testing.T) {
	s := NewMemoryOrderStore()
	ctx := context.Background()

	order := &models.Order{
		IdempotencyKey: "key-1",
		PaymentStatus:  models.PaymentProcessing,
		ShippingStatus: models.ShippingNone,
	}
	if err := s.Create(ctx, order); err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	applied, err := s.ApplyPaymentStatus(ctx, order.ID, models.PaymentPaid)
	if err != nil {
		t.Fatalf("ApplyPaymentStatus failed: %v", err)
	}
	if !applied {
		t.Error("Expected first PAID merge to apply")
	}

	// Duplicate confirmation is a no-op.
	applied, err = s.ApplyPaymentStatus(ctx, order.ID, models.PaymentPaid)
	if err != nil {
		t.Fatalf("ApplyPaymentStatus failed: %v", err)
	}
	if applied {
		t.Error("Expected duplicate PAID merge to be rejected")
	}

	// Terminal never regresses.
	applied, err = s.ApplyPaymentStatus(ctx, order.ID, models.PaymentProcessing)
	if err != nil {
		t.Fatalf("ApplyPaymentStatus failed: %v", err)
	}
	if applied {
		t.Error("Expected regression to PROCESSING to be rejected")
	}

	got, err := s.GetByID(ctx, order.ID)
	if err != nil {
		t.Fatalf("GetByID failed: %v", err)
	}
	if got.PaymentStatus != models.PaymentPaid {
		t.Errorf("PaymentStatus = %s, want %s", got.PaymentStatus, models.PaymentPaid)
	}
}

func TestMemoryOrderStore_DisjointFieldMerges(t *testing.T) {
	s := NewMemoryOrderStore()
	ctx := context.Background()

	order := &models.Order{
		IdempotencyKey: "key-1",
		PaymentStatus:  models.PaymentProcessing,
		ShippingStatus: models.ShippingNone,
	}
	if err := s.Create(ctx, order); err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	// Shipping confirmation lands first; payment later. Same final state
	// as the reverse order.
	if _, err := s.ApplyShippingStatus(ctx, order.ID, models.ShippingShipped); err != nil {
		t.Fatalf("ApplyShippingStatus failed: %v", err)
	}
	if _, err := s.ApplyPaymentStatus(ctx, order.ID, models.PaymentPaid); err != nil {
		t.Fatalf("ApplyPaymentStatus failed: %v", err)
	}

	got, _ := s.GetByID(ctx, order.ID)
	if got.PaymentStatus != models.PaymentPaid || got.ShippingStatus != models.ShippingShipped {
		t.Errorf("Final state = %s/%s, want PAID/SHIPPED", got.PaymentStatus, got.ShippingStatus)
	}
}

func TestMemoryPaymentStore_CreateIsIdempotentOnOrder(t *testing.T) {
	s := NewMemoryPaymentStore()
	ctx := context.Background()

	first := &models.Payment{OrderID: 7, Status: models.PaymentStateProcessing}
	if err := s.Create(ctx, first); err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	second := &models.Payment{OrderID: 7, Status: models.PaymentStateProcessing}
	if err := s.Create(ctx, second); err != nil {
		t.Fatalf("Duplicate create failed: %v", err)
	}
	if second.ID != first.ID {
		t.Errorf("Duplicate create assigned id %d, want existing id %d", second.ID, first.ID)
	}
}
