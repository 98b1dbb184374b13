package shipping

import "context"

// Outcome is a fulfillment decision. An error from Dispatch means the
// outcome is unknown and the attempt must be retried; Failed is definitive
// (undeliverable) and terminal.
type Outcome int

const (
	Shipped Outcome = iota
	Failed
)

type Dispatcher interface {
	Dispatch(ctx context.Context, orderID int64, address string) (Outcome, error)
}

// SimulatedDispatcher stands in for the carrier integration. Fail, when
// set, lets tests force undeliverable shipments.
type SimulatedDispatcher struct {
	Fail func(orderID int64, address string) bool
}

func (s *SimulatedDispatcher) Dispatch(ctx context.Context, orderID int64, address string) (Outcome, error) {
	if err := ctx.Err(); err != nil {
		return Failed, err
	}
	if s.Fail != nil && s.Fail(orderID, address) {
		return Failed, nil
	}
	return Shipped, nil
}
