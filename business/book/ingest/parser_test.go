package ingest

import (
	"encoding/json"
	"fmt"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/fd1az/orderbook-aggregator/business/book/domain"
)

func level(exchange, price, amount string) domain.Level {
	return domain.Level{
		Exchange: exchange,
		Price:    decimal.RequireFromString(price),
		Amount:   decimal.RequireFromString(amount),
	}
}

func checkBook(t *testing.T, got domain.Book, wantBids, wantAsks []domain.Level, wantSpread string) {
	t.Helper()

	check := func(side string, got, want []domain.Level) {
		if len(got) != len(want) {
			t.Fatalf("%s: got %d levels, want %d", side, len(got), len(want))
		}
		for i := range want {
			if got[i].Exchange != want[i].Exchange ||
				!got[i].Price.Equal(want[i].Price) ||
				!got[i].Amount.Equal(want[i].Amount) {
				t.Errorf("%s[%d] = %s %s@%s, want %s %s@%s",
					side, i, got[i].Exchange, got[i].Amount, got[i].Price,
					want[i].Exchange, want[i].Amount, want[i].Price)
			}
		}
	}

	check("bids", got.Bids, wantBids)
	check("asks", got.Asks, wantAsks)

	if !got.Spread.Equal(decimal.RequireFromString(wantSpread)) {
		t.Errorf("spread = %s, want %s", got.Spread, wantSpread)
	}
}

func TestParseFrame_Binance(t *testing.T) {
	frame := `{"bids":[["10.0","1.0"],["9.5","2.0"]],"asks":[["11.0","0.8"],["11.5","0.7"]]}`

	book, ok := ParseFrame([]byte(frame), domain.ExchangeBinance, 2)
	if !ok {
		t.Fatal("expected frame to parse")
	}

	checkBook(t, book,
		[]domain.Level{
			level(domain.ExchangeBinance, "10.0", "1.0"),
			level(domain.ExchangeBinance, "9.5", "2.0"),
		},
		[]domain.Level{
			level(domain.ExchangeBinance, "11.0", "0.8"),
			level(domain.ExchangeBinance, "11.5", "0.7"),
		},
		"1.0",
	)
}

func TestParseFrame_BitstampEnvelope(t *testing.T) {
	frame := `{"data":{"bids":[["10.0","1.0"]],"asks":[["11.0","0.8"]]}}`

	book, ok := ParseFrame([]byte(frame), domain.ExchangeBitstamp, 5)
	if !ok {
		t.Fatal("expected frame to parse")
	}

	checkBook(t, book,
		[]domain.Level{level(domain.ExchangeBitstamp, "10.0", "1.0")},
		[]domain.Level{level(domain.ExchangeBitstamp, "11.0", "0.8")},
		"1.0",
	)

	for _, l := range append(book.Bids, book.Asks...) {
		if l.Exchange != domain.ExchangeBitstamp {
			t.Errorf("level tagged %q, want %q", l.Exchange, domain.ExchangeBitstamp)
		}
	}
}

func TestParseFrame_TieBreakByAmount(t *testing.T) {
	frame := `{"bids":[["10.0","1.0"],["10.0","2.0"]],"asks":[]}`

	book, ok := ParseFrame([]byte(frame), domain.ExchangeBinance, 5)
	if !ok {
		t.Fatal("expected frame to parse")
	}

	checkBook(t, book,
		[]domain.Level{
			level(domain.ExchangeBinance, "10.0", "2.0"),
			level(domain.ExchangeBinance, "10.0", "1.0"),
		},
		[]domain.Level{},
		"0",
	)
}

func TestParseFrame_Rejects(t *testing.T) {
	tests := []struct {
		name  string
		frame string
	}{
		{"not_json", `not json at all`},
		{"binance_ack", `{"result":null,"id":1}`},
		{"bitstamp_ack", `{"event":"bts:subscription_succeeded","channel":"detail_order_book_ethbtc","data":{}}`},
		{"missing_bids", `{"asks":[["11.0","0.8"]]}`},
		{"missing_asks", `{"bids":[["10.0","1.0"]]}`},
		{"heartbeat", `{"event":"bts:heartbeat"}`},
		{"data_not_object", `{"data":"pong"}`},
		{"empty_object", `{}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, ok := ParseFrame([]byte(tt.frame), domain.ExchangeBinance, 5); ok {
				t.Errorf("frame %q parsed, want reject", tt.frame)
			}
		})
	}
}

func TestParseFrame_SkipsBadEntries(t *testing.T) {
	frame := `{"bids":[["10.0","1.0"],["oops","1.0"],["9.0"],[1,2],["9.5","NaN"],["-1.0","1.0"]],"asks":[["11.0","0.8"]]}`

	book, ok := ParseFrame([]byte(frame), domain.ExchangeBinance, 10)
	if !ok {
		t.Fatal("expected frame to parse")
	}

	checkBook(t, book,
		[]domain.Level{level(domain.ExchangeBinance, "10.0", "1.0")},
		[]domain.Level{level(domain.ExchangeBinance, "11.0", "0.8")},
		"1.0",
	)
}

func TestParseFrame_DropsZeroAmountMarkers(t *testing.T) {
	frame := `{"bids":[["10.0","0"],["9.5","1.0"]],"asks":[["11.0","0.00"]]}`

	book, ok := ParseFrame([]byte(frame), domain.ExchangeBinance, 10)
	if !ok {
		t.Fatal("expected frame to parse")
	}

	checkBook(t, book,
		[]domain.Level{level(domain.ExchangeBinance, "9.5", "1.0")},
		[]domain.Level{},
		"0",
	)
}

func TestParseFrame_BothSidesEmptyAfterFiltering(t *testing.T) {
	frame := `{"bids":[],"asks":[["11.0","0"]]}`

	book, ok := ParseFrame([]byte(frame), domain.ExchangeBinance, 10)
	if !ok {
		t.Fatal("expected frame to parse")
	}
	if !book.IsEmpty() {
		t.Error("expected empty book")
	}
	if !book.Spread.IsZero() {
		t.Errorf("spread = %s, want 0", book.Spread)
	}
}

func TestParseFrame_TruncatesToDepth(t *testing.T) {
	frame := `{"bids":[["10.0","1"],["9.9","1"],["9.8","1"]],"asks":[["11.0","1"],["11.1","1"],["11.2","1"]]}`

	book, ok := ParseFrame([]byte(frame), domain.ExchangeBinance, 2)
	if !ok {
		t.Fatal("expected frame to parse")
	}
	if len(book.Bids) != 2 || len(book.Asks) != 2 {
		t.Errorf("got %d bids, %d asks, want 2 each", len(book.Bids), len(book.Asks))
	}
}

// TestParseFrame_Reparse round-trips a parsed book through the canonical
// wire schema and checks that parsing the result reproduces the book.
func TestParseFrame_Reparse(t *testing.T) {
	frame := `{"bids":[["10.0","1.0"],["10.0","2.0"],["9.5","0.5"]],"asks":[["11.0","0.8"],["11.5","0.7"]]}`

	first, ok := ParseFrame([]byte(frame), domain.ExchangeBinance, 10)
	if !ok {
		t.Fatal("expected frame to parse")
	}

	encode := func(levels []domain.Level) [][]string {
		out := make([][]string, 0, len(levels))
		for _, l := range levels {
			out = append(out, []string{l.Price.String(), l.Amount.String()})
		}
		return out
	}

	reframed, err := json.Marshal(map[string]any{
		"bids": encode(first.Bids),
		"asks": encode(first.Asks),
	})
	if err != nil {
		t.Fatal(err)
	}

	second, ok := ParseFrame(reframed, domain.ExchangeBinance, 10)
	if !ok {
		t.Fatal("expected re-serialized frame to parse")
	}

	checkBook(t, second, first.Bids, first.Asks, first.Spread.String())
}

func TestParseFrame_GeneratedInvariants(t *testing.T) {
	// A grid of frames with duplicated prices and shuffled order; every
	// parsed book must satisfy the sorting and depth invariants.
	prices := []string{"10.0", "9.5", "10.0", "11.2", "10.7"}
	amounts := []string{"1.0", "2.5", "3.0", "0.4", "1.9"}

	var entries []string
	for i := range prices {
		entries = append(entries, fmt.Sprintf("[%q,%q]", prices[i], amounts[i]))
	}

	for depth := 1; depth <= len(entries)+1; depth++ {
		frame := fmt.Sprintf(`{"bids":[%s,%s,%s,%s,%s],"asks":[%s,%s,%s,%s,%s]}`,
			entries[0], entries[1], entries[2], entries[3], entries[4],
			entries[4], entries[3], entries[2], entries[1], entries[0])

		book, ok := ParseFrame([]byte(frame), domain.ExchangeBinance, depth)
		if !ok {
			t.Fatalf("depth %d: expected frame to parse", depth)
		}

		if len(book.Bids) > depth || len(book.Asks) > depth {
			t.Errorf("depth %d: side exceeds depth", depth)
		}
		for i := 1; i < len(book.Bids); i++ {
			if book.Bids[i-1].Price.Cmp(book.Bids[i].Price) < 0 {
				t.Errorf("depth %d: bids increase at %d", depth, i)
			}
		}
		for i := 1; i < len(book.Asks); i++ {
			if book.Asks[i-1].Price.Cmp(book.Asks[i].Price) > 0 {
				t.Errorf("depth %d: asks decrease at %d", depth, i)
			}
		}
		if len(book.Bids) > 0 && len(book.Asks) > 0 {
			want := book.Asks[0].Price.Sub(book.Bids[0].Price)
			if !book.Spread.Equal(want) {
				t.Errorf("depth %d: spread = %s, want %s", depth, book.Spread, want)
			}
		}
	}
}
