package app

import (
	"context"
	"io"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/fd1az/orderbook-aggregator/business/book/domain"
	"github.com/fd1az/orderbook-aggregator/internal/logger"
)

// fakeUpstream is a scripted Upstream for hub tests.
type fakeUpstream struct {
	name  string
	books chan domain.Book
}

func newFakeUpstream(name string) *fakeUpstream {
	return &fakeUpstream{name: name, books: make(chan domain.Book)}
}

func (f *fakeUpstream) Name() string              { return f.name }
func (f *fakeUpstream) Books() <-chan domain.Book { return f.books }
func (f *fakeUpstream) push(b domain.Book)        { f.books <- b }
func (f *fakeUpstream) closeStream()              { close(f.books) }

func testLogger() *logger.Logger {
	return logger.New(io.Discard, logger.LevelError, "test", nil)
}

func bookWithBid(exchange, price string) domain.Book {
	b := domain.Book{
		Bids: []domain.Level{{
			Exchange: exchange,
			Price:    decimal.RequireFromString(price),
			Amount:   decimal.RequireFromString("1.0"),
		}},
	}
	return b
}

func mustRecv(t *testing.T, ch <-chan domain.Book) domain.Book {
	t.Helper()
	select {
	case b, ok := <-ch:
		if !ok {
			t.Fatal("subscriber channel closed unexpectedly")
		}
		return b
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for snapshot")
	}
	return domain.Book{}
}

func newTestHub(t *testing.T, depth int) (*Hub, *fakeUpstream, *fakeUpstream) {
	t.Helper()
	binance := newFakeUpstream(domain.ExchangeBinance)
	bitstamp := newFakeUpstream(domain.ExchangeBitstamp)

	hub, err := NewHub(binance, bitstamp, HubConfig{Depth: depth}, testLogger())
	if err != nil {
		t.Fatalf("NewHub failed: %v", err)
	}
	return hub, binance, bitstamp
}

func TestHub_PublishesMergedOnEitherUpdate(t *testing.T) {
	hub, binance, bitstamp := newTestHub(t, 10)

	sub, cancel := hub.Subscribe()
	defer cancel()

	hub.Start(context.Background())
	defer hub.Stop()

	binance.push(bookWithBid(domain.ExchangeBinance, "10.0"))
	got := mustRecv(t, sub)
	if len(got.Bids) != 1 || got.Bids[0].Exchange != domain.ExchangeBinance {
		t.Errorf("first snapshot bids = %+v", got.Bids)
	}

	bitstamp.push(bookWithBid(domain.ExchangeBitstamp, "10.2"))
	got = mustRecv(t, sub)
	if len(got.Bids) != 2 {
		t.Fatalf("second snapshot has %d bids, want 2", len(got.Bids))
	}
	// Bitstamp's higher bid leads the merged book.
	if got.Bids[0].Exchange != domain.ExchangeBitstamp {
		t.Errorf("best bid from %q, want bitstamp", got.Bids[0].Exchange)
	}
}

func TestHub_LastKnownBookSurvivesUpstreamClose(t *testing.T) {
	hub, binance, bitstamp := newTestHub(t, 10)

	sub, cancel := hub.Subscribe()
	defer cancel()

	hub.Start(context.Background())
	defer hub.Stop()

	binance.push(bookWithBid(domain.ExchangeBinance, "10.0"))
	mustRecv(t, sub)

	// Binance dies; Bitstamp updates must still merge against the
	// last-known Binance book.
	binance.closeStream()

	bitstamp.push(bookWithBid(domain.ExchangeBitstamp, "9.9"))
	got := mustRecv(t, sub)
	if len(got.Bids) != 2 {
		t.Fatalf("got %d bids, want 2 (stale binance book retained)", len(got.Bids))
	}
	if got.Bids[0].Exchange != domain.ExchangeBinance {
		t.Errorf("best bid from %q, want binance", got.Bids[0].Exchange)
	}
}

func TestHub_BothUpstreamsClosedKeepsQueuesOpen(t *testing.T) {
	hub, binance, bitstamp := newTestHub(t, 10)

	sub, cancel := hub.Subscribe()
	defer cancel()

	hub.Start(context.Background())

	binance.closeStream()
	bitstamp.closeStream()

	// No publishes, but the queue must not be closed out from under the
	// subscriber until the hub is stopped.
	select {
	case _, open := <-sub:
		if !open {
			t.Fatal("subscriber queue closed while hub still running")
		}
		t.Fatal("unexpected snapshot")
	case <-time.After(200 * time.Millisecond):
	}

	hub.Stop()

	select {
	case _, open := <-sub:
		if open {
			t.Error("expected closed subscriber queue after Stop")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("subscriber queue not closed after Stop")
	}
}

func TestHub_SubscriberOverflowDropsNewest(t *testing.T) {
	const published = 200

	hub, binance, _ := newTestHub(t, 10)

	slow, cancelSlow := hub.Subscribe()
	defer cancelSlow()
	fast, cancelFast := hub.Subscribe()
	defer cancelFast()

	hub.Start(context.Background())
	defer hub.Stop()

	// Drive one update at a time and drain the fast subscriber in
	// lockstep, so its queue never fills. The slow subscriber reads
	// nothing.
	fastReceived := 0
	for i := 0; i < published; i++ {
		binance.push(bookWithBid(domain.ExchangeBinance, decimal.NewFromInt(int64(i+1)).String()))
		mustRecv(t, fast)
		fastReceived++
	}

	if fastReceived != published {
		t.Errorf("fast subscriber received %d snapshots, want %d", fastReceived, published)
	}

	// The slow queue holds the first SubscriberQueueSize snapshots; the
	// rest were dropped without blocking the hub.
	cancelSlow()
	slowReceived := 0
	for range slow {
		slowReceived++
	}
	if slowReceived != SubscriberQueueSize {
		t.Errorf("slow subscriber received %d snapshots, want %d", slowReceived, SubscriberQueueSize)
	}
}

func TestHub_SnapshotsAreIndependentCopies(t *testing.T) {
	hub, binance, _ := newTestHub(t, 10)

	subA, cancelA := hub.Subscribe()
	defer cancelA()
	subB, cancelB := hub.Subscribe()
	defer cancelB()

	hub.Start(context.Background())
	defer hub.Stop()

	binance.push(bookWithBid(domain.ExchangeBinance, "10.0"))

	a := mustRecv(t, subA)
	b := mustRecv(t, subB)

	a.Bids[0].Exchange = "mutated"
	if b.Bids[0].Exchange != domain.ExchangeBinance {
		t.Error("subscribers share backing arrays")
	}
}

func TestHub_SeedProvidesInitialMerge(t *testing.T) {
	hub, binance, _ := newTestHub(t, 10)

	hub.Seed(domain.ExchangeBitstamp, bookWithBid(domain.ExchangeBitstamp, "10.5"))

	sub, cancel := hub.Subscribe()
	defer cancel()

	hub.Start(context.Background())
	defer hub.Stop()

	binance.push(bookWithBid(domain.ExchangeBinance, "10.0"))
	got := mustRecv(t, sub)

	if len(got.Bids) != 2 {
		t.Fatalf("got %d bids, want seeded bitstamp + streamed binance", len(got.Bids))
	}
	if got.Bids[0].Exchange != domain.ExchangeBitstamp {
		t.Errorf("best bid from %q, want seeded bitstamp level", got.Bids[0].Exchange)
	}
}

func TestHub_UnsubscribeStopsDelivery(t *testing.T) {
	hub, binance, _ := newTestHub(t, 10)

	sub, cancel := hub.Subscribe()

	hub.Start(context.Background())
	defer hub.Stop()

	binance.push(bookWithBid(domain.ExchangeBinance, "10.0"))
	mustRecv(t, sub)

	cancel()
	cancel() // idempotent

	// Draining after cancel terminates: the channel is closed.
	for range sub {
	}

	// Further publishes must not panic on the removed queue.
	binance.push(bookWithBid(domain.ExchangeBinance, "10.1"))
	time.Sleep(100 * time.Millisecond)
}

func TestHub_CurrentTracksLatestMerge(t *testing.T) {
	hub, binance, _ := newTestHub(t, 10)

	sub, cancel := hub.Subscribe()
	defer cancel()

	hub.Start(context.Background())
	defer hub.Stop()

	binance.push(bookWithBid(domain.ExchangeBinance, "10.0"))
	mustRecv(t, sub)

	current := hub.Current()
	if len(current.Bids) != 1 || !current.Bids[0].Price.Equal(decimal.RequireFromString("10.0")) {
		t.Errorf("Current() = %+v", current)
	}
}
