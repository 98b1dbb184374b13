package models

// Order status fields advance along a fixed partial order:
// NONE < PROCESSING/PREPARING < terminal (PAID/SHIPPED/FAILED).
// A transition that does not strictly advance is rejected, which makes
// duplicate and out-of-order confirmations safe to apply.

type PaymentStatus string

const (
	PaymentNone       PaymentStatus = "NONE"
	PaymentProcessing PaymentStatus = "PROCESSING"
	PaymentPaid       PaymentStatus = "PAID"
	PaymentFailed     PaymentStatus = "FAILED"
)

func (s PaymentStatus) rank() int {
	switch s {
	case PaymentNone:
		return 0
	case PaymentProcessing:
		return 1
	case PaymentPaid, PaymentFailed:
		return 2
	}
	return -1
}

// CanAdvance reports whether moving to the given status is a strict
// advance. Terminal statuses never advance to each other.
func (s PaymentStatus) CanAdvance(to PaymentStatus) bool {
	return to.rank() > s.rank()
}

type ShippingStatus string

const (
	ShippingNone      ShippingStatus = "NONE"
	ShippingPreparing ShippingStatus = "PREPARING"
	ShippingShipped   ShippingStatus = "SHIPPED"
	ShippingFailed    ShippingStatus = "FAILED"
)

func (s ShippingStatus) rank() int {
	switch s {
	case ShippingNone:
		return 0
	case ShippingPreparing:
		return 1
	case ShippingShipped, ShippingFailed:
		return 2
	}
	return -1
}

func (s ShippingStatus) CanAdvance(to ShippingStatus) bool {
	return to.rank() > s.rank()
}

// PaymentState is the lifecycle of a Payment record, owned solely by the
// payments processor.
type PaymentState string

const (
	PaymentStateProcessing PaymentState = "PROCESSING"
	PaymentStateCompleted  PaymentState = "COMPLETED"
	PaymentStateFailed     PaymentState = "FAILED"
)

// Terminal reports whether the payment has settled one way or the other.
func (s PaymentState) Terminal() bool {
	return s == PaymentStateCompleted || s == PaymentStateFailed
}

// ShipmentState is the lifecycle of a Shipment record, owned solely by the
// shipping processor.
type ShipmentState string

const (
	ShipmentStatePreparing ShipmentState = "PREPARING"
	ShipmentStateShipped   ShipmentState = "SHIPPED"
	ShipmentStateFailed    ShipmentState = "FAILED"
)

func (s ShipmentState) Terminal() bool {
	return s == ShipmentStateShipped || s == ShipmentStateFailed
}
