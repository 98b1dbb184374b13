package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Payment is owned solely by the payments processor. The two publish flags
// are the outbox markers that let a redelivered task complete only the
// missing publish instead of charging again.
type Payment struct {
	ID               int64           `json:"id"`
	OrderID          int64           `json:"order_id"`
	Amount           decimal.Decimal `json:"amount"`
	Status           PaymentState    `json:"status"`
	TransactionID    string          `json:"transaction_id,omitempty"`
	ConfirmationSent bool            `json:"-"`
	ShippingTaskSent bool            `json:"-"`
	CreatedAt        time.Time       `json:"created_at"`
	UpdatedAt        time.Time       `json:"updated_at"`
}

// PaymentTask is the message published to payment.queue, exactly once per
// order, by the orders processor.
type PaymentTask struct {
	OrderID         int64           `json:"orderId"`
	CustomerID      string          `json:"customerId"`
	Amount          decimal.Decimal `json:"amount"`
	Items           []OrderItem     `json:"items"`
	ShippingAddress Address         `json:"shippingAddress"`
	PaymentMethod   string          `json:"paymentMethod,omitempty"`
}

// PaymentConfirmation fans back into the order via paymentconfirm.queue.
// Status is COMPLETED or FAILED.
type PaymentConfirmation struct {
	OrderID   int64           `json:"orderId"`
	PaymentID int64           `json:"paymentId"`
	Status    string          `json:"status"`
	Amount    decimal.Decimal `json:"amount"`
}

const (
	ConfirmationCompleted = "COMPLETED"
	ConfirmationFailed    = "FAILED"
	ConfirmationShipped   = "SHIPPED"
)
