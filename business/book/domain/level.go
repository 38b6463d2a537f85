// Package domain contains the core order book types for the aggregation
// context.
package domain

import "github.com/shopspring/decimal"

// Exchange identifiers for the supported venues.
const (
	ExchangeBinance  = "binance"
	ExchangeBitstamp = "bitstamp"
)

// Level is a single price level attributed to one venue. Levels are value
// types and are never mutated after construction; published levels always
// carry a positive amount (zero-amount entries are delete markers and are
// dropped during parsing).
type Level struct {
	Exchange string
	Price    decimal.Decimal
	Amount   decimal.Decimal
}

// Book is a snapshot of both sides of the market, either from a single
// venue or consolidated across venues. Invariants: bids sorted by price
// descending, asks ascending, amount-descending tie-break on equal prices,
// at most depth levels per side.
type Book struct {
	Bids   []Level
	Asks   []Level
	Spread decimal.Decimal
}

// NewBook returns an empty book with zero spread.
func NewBook() Book {
	return Book{}
}

// IsEmpty reports whether the book has no levels on either side.
func (b Book) IsEmpty() bool {
	return len(b.Bids) == 0 && len(b.Asks) == 0
}

// Clone returns a deep copy of the book. The hub hands clones to the
// fan-out so subscribers never share backing arrays with the slots.
func (b Book) Clone() Book {
	out := Book{Spread: b.Spread}
	if len(b.Bids) > 0 {
		out.Bids = make([]Level, len(b.Bids))
		copy(out.Bids, b.Bids)
	}
	if len(b.Asks) > 0 {
		out.Asks = make([]Level, len(b.Asks))
		copy(out.Asks, b.Asks)
	}
	return out
}

// ComputeSpread returns asks[0].Price − bids[0].Price when both sides are
// non-empty and zero otherwise. The sides must already be sorted. A
// negative result indicates a crossed book, which is a legitimate state
// for a consolidated view across venues.
func ComputeSpread(bids, asks []Level) decimal.Decimal {
	if len(bids) == 0 || len(asks) == 0 {
		return decimal.Zero
	}
	return asks[0].Price.Sub(bids[0].Price)
}
