// Package pricing abstracts unit pricing. Real pricing belongs to a
// collaborator; the static implementation covers the catalog's flat price
// list with a configured default.
package pricing

import "github.com/shopspring/decimal"

type Pricer interface {
	UnitPrice(bookID string) decimal.Decimal
}

// Static prices from a fixed table, falling back to a default unit price.
type Static struct {
	overrides map[string]decimal.Decimal
	def       decimal.Decimal
}

func NewStatic(def decimal.Decimal, overrides map[string]decimal.Decimal) *Static {
	return &Static{overrides: overrides, def: def}
}

func (s *Static) UnitPrice(bookID string) decimal.Decimal {
	if price, ok := s.overrides[bookID]; ok {
		return price
	}
	return s.def
}
