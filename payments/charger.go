package payments

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// Outcome is a settlement decision. An error from Charge means the answer
// is unknown (timeout, provider down) and the attempt must be retried; a
// Declined outcome is definitive and terminal.
type Outcome int

const (
	Completed Outcome = iota
	Declined
)

type Charger interface {
	Charge(ctx context.Context, orderID int64, amount decimal.Decimal) (Outcome, error)
}

// SimulatedCharger stands in for the external payment provider. Decline,
// when set, lets tests and demos force declines for particular orders.
type SimulatedCharger struct {
	Decline func(orderID int64, amount decimal.Decimal) bool
}

func (s *SimulatedCharger) Charge(ctx context.Context, orderID int64, amount decimal.Decimal) (Outcome, error) {
	if err := ctx.Err(); err != nil {
		return Declined, err
	}
	if s.Decline != nil && s.Decline(orderID, amount) {
		return Declined, nil
	}
	return Completed, nil
}

func transactionID(orderID int64) string {
	return fmt.Sprintf("TXN-%d-%d", orderID, time.Now().Unix())
}
