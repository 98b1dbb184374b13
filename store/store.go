// Package store holds the keyed persistence behind each processor. Every
// entity type has exactly one owning processor; the order store is the only
// one written to from two sides (reconciler payment/shipping merges), which
// is why its status updates go through a versioned compare-and-swap.
package store

import (
	"context"

	"github.com/Chamal1120/globalbooks-soa/models"
)

type OrderStore interface {
	// Create persists a new order and assigns its id. When a racing
	// consumer already persisted an order with the same idempotency key,
	// Create loads the existing row into order instead of duplicating it.
	Create(ctx context.Context, order *models.Order) error
	GetByID(ctx context.Context, id int64) (*models.Order, error)
	GetByIdempotencyKey(ctx context.Context, key string) (*models.Order, error)
	// MarkPaymentTaskPublished records that the downstream publish for
	// this order committed, so a redelivered order task skips it.
	MarkPaymentTaskPublished(ctx context.Context, id int64) error
	// ApplyPaymentStatus merges a payment outcome under the monotonic
	// rule. It reports false, nil for a duplicate or regressing update.
	ApplyPaymentStatus(ctx context.Context, id int64, to models.PaymentStatus) (bool, error)
	ApplyShippingStatus(ctx context.Context, id int64, to models.ShippingStatus) (bool, error)
}

type PaymentStore interface {
	Create(ctx context.Context, payment *models.Payment) error
	GetByOrderID(ctx context.Context, orderID int64) (*models.Payment, error)
	SetStatus(ctx context.Context, id int64, status models.PaymentState, transactionID string) error
	MarkConfirmationSent(ctx context.Context, id int64) error
	MarkShippingTaskSent(ctx context.Context, id int64) error
}

type ShipmentStore interface {
	Create(ctx context.Context, shipment *models.Shipment) error
	GetByOrderID(ctx context.Context, orderID int64) (*models.Shipment, error)
	SetStatus(ctx context.Context, id int64, status models.ShipmentState, trackingNumber string) error
	MarkConfirmationSent(ctx context.Context, id int64) error
}
