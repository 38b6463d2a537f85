// Package ingest maintains the upstream exchange sessions and converts
// their wire frames into normalized domain books.
package ingest

import (
	"bytes"
	"encoding/json"

	"github.com/shopspring/decimal"

	"github.com/fd1az/orderbook-aggregator/business/book/domain"
)

// rawBook is the common shape of a depth payload: two arrays of
// [price, amount] string pairs. Pointers distinguish a missing key from an
// empty side, and raw elements let a single bad entry be skipped without
// rejecting the whole frame.
type rawBook struct {
	Data json.RawMessage    `json:"data"`
	Bids *[]json.RawMessage `json:"bids"`
	Asks *[]json.RawMessage `json:"asks"`
}

// ParseFrame decodes one upstream text frame into a book tagged with the
// exchange, sorted and truncated to depth. It returns false for frames
// that are not book updates: undecodable JSON, subscription acks,
// heartbeats, or payloads without both sides. Binance carries bids/asks at
// the document root, Bitstamp nests them under "data".
func ParseFrame(frame []byte, exchange string, depth int) (domain.Book, bool) {
	var raw rawBook
	if err := json.Unmarshal(frame, &raw); err != nil {
		return domain.Book{}, false
	}

	// Bitstamp envelope: the sides live one level down.
	if len(raw.Data) > 0 && !bytes.Equal(raw.Data, []byte("null")) {
		var inner rawBook
		if err := json.Unmarshal(raw.Data, &inner); err != nil {
			return domain.Book{}, false
		}
		raw = inner
	}

	if raw.Bids == nil || raw.Asks == nil {
		return domain.Book{}, false
	}

	book := domain.Book{
		Bids: domain.SortLevels(parseLevels(*raw.Bids, exchange), depth, false),
		Asks: domain.SortLevels(parseLevels(*raw.Asks, exchange), depth, true),
	}
	book.Spread = domain.ComputeSpread(book.Bids, book.Asks)

	return book, true
}

// parseLevels converts raw [price, amount] pairs into levels. Entries that
// are not arrays of strings, that have fewer than two elements, or whose
// first two elements are not decimal strings are skipped; elements past the
// second are ignored. Negative values and zero-amount delete markers are
// skipped too.
func parseLevels(entries []json.RawMessage, exchange string) []domain.Level {
	levels := make([]domain.Level, 0, len(entries))

	for _, entry := range entries {
		var pair []string
		if err := json.Unmarshal(entry, &pair); err != nil || len(pair) < 2 {
			continue
		}

		price, err := decimal.NewFromString(pair[0])
		if err != nil {
			continue
		}
		amount, err := decimal.NewFromString(pair[1])
		if err != nil {
			continue
		}

		if price.IsNegative() || amount.IsNegative() {
			continue
		}
		if amount.IsZero() {
			continue
		}

		levels = append(levels, domain.Level{
			Exchange: exchange,
			Price:    price,
			Amount:   amount,
		})
	}

	return levels
}
