package models

import "time"

// Shipment is owned solely by the shipping processor. Address is the
// flattened display string, not the structured form.
type Shipment struct {
	ID               int64         `json:"id"`
	OrderID          int64         `json:"order_id"`
	Address          string        `json:"address"`
	Status           ShipmentState `json:"status"`
	TrackingNumber   string        `json:"tracking_number,omitempty"`
	ConfirmationSent bool          `json:"-"`
	CreatedAt        time.Time     `json:"created_at"`
	UpdatedAt        time.Time     `json:"updated_at"`
}

// ShippingTask is published to shipping.queue only after a completed
// payment.
type ShippingTask struct {
	OrderID         int64       `json:"orderId"`
	CustomerID      string      `json:"customerId"`
	Items           []OrderItem `json:"items"`
	ShippingAddress Address     `json:"shippingAddress"`
}

// ShippingConfirmation fans back into the order via shippingconfirm.queue.
// Status is SHIPPED or FAILED; the tracking number is present only on
// success.
type ShippingConfirmation struct {
	OrderID        int64  `json:"orderId"`
	ShipmentID     int64  `json:"shipmentId"`
	Status         string `json:"status"`
	TrackingNumber string `json:"trackingNumber,omitempty"`
}
