package models

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// OrderItem is a single catalog-enriched line item.
type OrderItem struct {
	BookID   string `json:"bookId"`
	Title    string `json:"title"`
	Author   string `json:"author"`
	Quantity int    `json:"quantity"`
	// UnitPrice is set when the catalog supplied a price; zero means the
	// configured default applies.
	UnitPrice decimal.Decimal `json:"unitPrice,omitempty"`
}

// Address is the structured shipping destination carried through the saga.
type Address struct {
	Street  string `json:"street"`
	City    string `json:"city"`
	State   string `json:"state"`
	ZipCode string `json:"zipCode"`
}

// Flatten renders the address as the single display string stored on a
// shipment record.
func (a Address) Flatten() string {
	return fmt.Sprintf("%s, %s, %s %s", a.Street, a.City, a.State, a.ZipCode)
}

// Order is created once by the orders processor and mutated afterwards only
// by the status reconciler. Version backs the compare-and-swap used for the
// concurrent field-level status merges.
type Order struct {
	ID                   int64          `json:"id"`
	IdempotencyKey       string         `json:"idempotencyKey"`
	CustomerID           string         `json:"customerId"`
	Items                []OrderItem    `json:"items"`
	PaymentStatus        PaymentStatus  `json:"paymentStatus"`
	ShippingStatus       ShippingStatus `json:"shippingStatus"`
	PaymentTaskPublished bool           `json:"-"`
	Version              int64          `json:"-"`
	CreatedAt            time.Time      `json:"created_at"`
	UpdatedAt            time.Time      `json:"updated_at"`
}

// OrderTask is the message published to order.queue by the intake gateway.
// OrderID is assigned downstream; the idempotency key lets the orders
// processor detect an already-persisted order on redelivery.
type OrderTask struct {
	IdempotencyKey  string      `json:"idempotencyKey"`
	CustomerID      string      `json:"customerId"`
	Items           []OrderItem `json:"items"`
	ShippingAddress Address     `json:"shippingAddress"`
	PaymentMethod   string      `json:"paymentMethod,omitempty"`
}
