package store

import (
	"context"
	"sync"
	"time"

	"github.com/Chamal1120/globalbooks-soa/errdefs"
	"github.com/Chamal1120/globalbooks-soa/models"
)

// In-memory store implementations with the same merge semantics as the
// Postgres ones. Used by tests.

type MemoryOrderStore struct {
	mu     sync.Mutex
	nextID int64
	orders map[int64]*models.Order
	byKey  map[string]int64
}

func NewMemoryOrderStore() *MemoryOrderStore {
	return &MemoryOrderStore{
		orders: make(map[int64]*models.Order),
		byKey:  make(map[string]int64),
	}
}

func (s *MemoryOrderStore) Create(ctx context.Context, order *models.Order) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if id, ok := s.byKey[order.IdempotencyKey]; ok {
		*order = *s.orders[id]
		return nil
	}

	s.nextID++
	order.ID = s.nextID
	order.CreatedAt = time.Now()
	order.UpdatedAt = order.CreatedAt
	cp := *order
	s.orders[order.ID] = &cp
	s.byKey[order.IdempotencyKey] = order.ID
	return nil
}

func (s *MemoryOrderStore) GetByID(ctx context.Context, id int64) (*models.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	order, ok := s.orders[id]
	if !ok {
		return nil, errdefs.NotFoundf("order")
	}
	cp := *order
	return &cp, nil
}

func (s *MemoryOrderStore) GetByIdempotencyKey(ctx context.Context, key string) (*models.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id, ok := s.byKey[key]
	if !ok {
		return nil, errdefs.NotFoundf("order")
	}
	cp := *s.orders[id]
	return &cp, nil
}

func (s *MemoryOrderStore) MarkPaymentTaskPublished(ctx context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if order, ok := s.orders[id]; ok {
		order.PaymentTaskPublished = true
		order.UpdatedAt = time.Now()
	}
	return nil
}

func (s *MemoryOrderStore) ApplyPaymentStatus(ctx context.Context, id int64, to models.PaymentStatus) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	order, ok := s.orders[id]
	if !ok {
		return false, errdefs.NotFoundf("order")
	}
	if !order.PaymentStatus.CanAdvance(to) {
		return false, nil
	}
	order.PaymentStatus = to
	order.Version++
	order.UpdatedAt = time.Now()
	return true, nil
}

func (s *MemoryOrderStore) ApplyShippingStatus(ctx context.Context, id int64, to models.ShippingStatus) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	order, ok := s.orders[id]
	if !ok {
		return false, errdefs.NotFoundf("order")
	}
	if !order.ShippingStatus.CanAdvance(to) {
		return false, nil
	}
	order.ShippingStatus = to
	order.Version++
	order.UpdatedAt = time.Now()
	return true, nil
}

type MemoryPaymentStore struct {
	mu       sync.Mutex
	nextID   int64
	payments map[int64]*models.Payment
	byOrder  map[int64]int64
}

func NewMemoryPaymentStore() *MemoryPaymentStore {
	return &MemoryPaymentStore{
		payments: make(map[int64]*models.Payment),
		byOrder:  make(map[int64]int64),
	}
}

func (s *MemoryPaymentStore) Create(ctx context.Context, payment *models.Payment) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if id, ok := s.byOrder[payment.OrderID]; ok {
		*payment = *s.payments[id]
		return nil
	}

	s.nextID++
	payment.ID = s.nextID
	payment.CreatedAt = time.Now()
	payment.UpdatedAt = payment.CreatedAt
	cp := *payment
	s.payments[payment.ID] = &cp
	s.byOrder[payment.OrderID] = payment.ID
	return nil
}

func (s *MemoryPaymentStore) GetByOrderID(ctx context.Context, orderID int64) (*models.Payment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id, ok := s.byOrder[orderID]
	if !ok {
		return nil, errdefs.NotFoundf("payment for order %d", orderID)
	}
	cp := *s.payments[id]
	return &cp, nil
}

func (s *MemoryPaymentStore) SetStatus(ctx context.Context, id int64, status models.PaymentState, transactionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if payment, ok := s.payments[id]; ok {
		payment.Status = status
		payment.TransactionID = transactionID
		payment.UpdatedAt = time.Now()
	}
	return nil
}

func (s *MemoryPaymentStore) MarkConfirmationSent(ctx context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if payment, ok := s.payments[id]; ok {
		payment.ConfirmationSent = true
	}
	return nil
}

func (s *MemoryPaymentStore) MarkShippingTaskSent(ctx context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if payment, ok := s.payments[id]; ok {
		payment.ShippingTaskSent = true
	}
	return nil
}

type MemoryShipmentStore struct {
	mu        sync.Mutex
	nextID    int64
	shipments map[int64]*models.Shipment
	byOrder   map[int64]int64
}

func NewMemoryShipmentStore() *MemoryShipmentStore {
	return &MemoryShipmentStore{
		shipments: make(map[int64]*models.Shipment),
		byOrder:   make(map[int64]int64),
	}
}

func (s *MemoryShipmentStore) Create(ctx context.Context, shipment *models.Shipment) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if id, ok := s.byOrder[shipment.OrderID]; ok {
		*shipment = *s.shipments[id]
		return nil
	}

	s.nextID++
	shipment.ID = s.nextID
	shipment.CreatedAt = time.Now()
	shipment.UpdatedAt = shipment.CreatedAt
	cp := *shipment
	s.shipments[shipment.ID] = &cp
	s.byOrder[shipment.OrderID] = shipment.ID
	return nil
}

func (s *MemoryShipmentStore) GetByOrderID(ctx context.Context, orderID int64) (*models.Shipment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id, ok := s.byOrder[orderID]
	if !ok {
		return nil, errdefs.NotFoundf("shipment for order %d", orderID)
	}
	cp := *s.shipments[id]
	return &cp, nil
}

func (s *MemoryShipmentStore) SetStatus(ctx context.Context, id int64, status models.ShipmentState, trackingNumber string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if shipment, ok := s.shipments[id]; ok {
		shipment.Status = status
		shipment.TrackingNumber = trackingNumber
		shipment.UpdatedAt = time.Now()
	}
	return nil
}

func (s *MemoryShipmentStore) MarkConfirmationSent(ctx context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if shipment, ok := s.shipments[id]; ok {
		shipment.ConfirmationSent = true
	}
	return nil
}
