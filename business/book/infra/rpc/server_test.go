package rpc

import (
	"context"
	"errors"
	"io"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/test/bufconn"

	"github.com/fd1az/orderbook-aggregator/api/orderbookpb"
	"github.com/fd1az/orderbook-aggregator/business/book/domain"
	"github.com/fd1az/orderbook-aggregator/internal/logger"
)

// fakeSource hands each subscriber its own channel and records cancels.
type fakeSource struct {
	mu        sync.Mutex
	queues    []chan domain.Book
	cancelled int
}

func (f *fakeSource) Subscribe() (<-chan domain.Book, func()) {
	ch := make(chan domain.Book, 16)
	f.mu.Lock()
	f.queues = append(f.queues, ch)
	f.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			f.mu.Lock()
			f.cancelled++
			f.mu.Unlock()
		})
	}
}

func (f *fakeSource) push(b domain.Book) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, ch := range f.queues {
		ch <- b
	}
}

func (f *fakeSource) closeAll() {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, ch := range f.queues {
		close(ch)
	}
	f.queues = nil
}

func (f *fakeSource) cancelCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.cancelled
}

func testBook(price string) domain.Book {
	b := domain.Book{
		Bids: []domain.Level{{
			Exchange: domain.ExchangeBinance,
			Price:    decimal.RequireFromString(price),
			Amount:   decimal.RequireFromString("1.5"),
		}},
		Asks: []domain.Level{{
			Exchange: domain.ExchangeBitstamp,
			Price:    decimal.RequireFromString(price).Add(decimal.RequireFromString("1.0")),
			Amount:   decimal.RequireFromString("0.5"),
		}},
	}
	b.Spread = domain.ComputeSpread(b.Bids, b.Asks)
	return b
}

// startTestServer serves the RPC surface over an in-memory listener.
func startTestServer(t *testing.T, source BookSource) orderbookpb.OrderbookAggregatorClient {
	t.Helper()

	server, err := NewServer(source, logger.New(io.Discard, logger.LevelError, "test", nil))
	if err != nil {
		t.Fatalf("NewServer failed: %v", err)
	}

	lis := bufconn.Listen(1024 * 1024)
	grpcServer := grpc.NewServer()
	orderbookpb.RegisterOrderbookAggregatorServer(grpcServer, server)

	go func() {
		if err := grpcServer.Serve(lis); err != nil {
			t.Logf("serve: %v", err)
		}
	}()
	t.Cleanup(grpcServer.Stop)

	conn, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
			return lis.DialContext(ctx)
		}),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	if err != nil {
		t.Fatalf("failed to dial bufnet: %v", err)
	}
	t.Cleanup(func() { conn.Close() })

	return orderbookpb.NewOrderbookAggregatorClient(conn)
}

func TestBookSummary_StreamsSnapshots(t *testing.T) {
	source := &fakeSource{}
	client := startTestServer(t, source)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	stream, err := client.BookSummary(ctx, &orderbookpb.Empty{})
	if err != nil {
		t.Fatalf("BookSummary failed: %v", err)
	}

	// Wait for the handler to register its queue.
	waitFor(t, func() bool {
		source.mu.Lock()
		defer source.mu.Unlock()
		return len(source.queues) == 1
	})

	source.push(testBook("10.0"))
	source.push(testBook("10.5"))

	first, err := stream.Recv()
	if err != nil {
		t.Fatalf("Recv failed: %v", err)
	}
	if first.Spread != 1.0 {
		t.Errorf("spread = %v, want 1.0", first.Spread)
	}
	if len(first.Bids) != 1 || first.Bids[0].Exchange != domain.ExchangeBinance {
		t.Errorf("bids = %+v", first.Bids)
	}
	if first.Bids[0].Price != 10.0 || first.Bids[0].Amount != 1.5 {
		t.Errorf("bid level = %+v", first.Bids[0])
	}

	second, err := stream.Recv()
	if err != nil {
		t.Fatalf("Recv failed: %v", err)
	}
	if second.Bids[0].Price != 10.5 {
		t.Errorf("snapshots out of order: second bid price = %v", second.Bids[0].Price)
	}
}

func TestBookSummary_EndsWhenSourceCloses(t *testing.T) {
	source := &fakeSource{}
	client := startTestServer(t, source)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	stream, err := client.BookSummary(ctx, &orderbookpb.Empty{})
	if err != nil {
		t.Fatalf("BookSummary failed: %v", err)
	}

	waitFor(t, func() bool {
		source.mu.Lock()
		defer source.mu.Unlock()
		return len(source.queues) == 1
	})

	source.closeAll()

	if _, err := stream.Recv(); !errors.Is(err, io.EOF) {
		t.Errorf("Recv after hub close = %v, want io.EOF", err)
	}
}

func TestBookSummary_ClientDisconnectDeregisters(t *testing.T) {
	source := &fakeSource{}
	client := startTestServer(t, source)

	ctx, cancel := context.WithCancel(context.Background())

	if _, err := client.BookSummary(ctx, &orderbookpb.Empty{}); err != nil {
		cancel()
		t.Fatalf("BookSummary failed: %v", err)
	}

	waitFor(t, func() bool {
		source.mu.Lock()
		defer source.mu.Unlock()
		return len(source.queues) == 1
	})

	cancel()

	waitFor(t, func() bool { return source.cancelCount() == 1 })
}

func TestBookSummary_IndependentSubscribers(t *testing.T) {
	source := &fakeSource{}
	client := startTestServer(t, source)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	streamA, err := client.BookSummary(ctx, &orderbookpb.Empty{})
	if err != nil {
		t.Fatalf("BookSummary failed: %v", err)
	}
	streamB, err := client.BookSummary(ctx, &orderbookpb.Empty{})
	if err != nil {
		t.Fatalf("BookSummary failed: %v", err)
	}

	waitFor(t, func() bool {
		source.mu.Lock()
		defer source.mu.Unlock()
		return len(source.queues) == 2
	})

	source.push(testBook("10.0"))

	for _, stream := range []orderbookpb.OrderbookAggregator_BookSummaryClient{streamA, streamB} {
		summary, err := stream.Recv()
		if err != nil {
			t.Fatalf("Recv failed: %v", err)
		}
		if summary.Bids[0].Price != 10.0 {
			t.Errorf("bid price = %v, want 10.0", summary.Bids[0].Price)
		}
	}
}

func TestSummaryFromBook_NegativeSpread(t *testing.T) {
	book := domain.Book{
		Bids: []domain.Level{{
			Exchange: domain.ExchangeBinance,
			Price:    decimal.RequireFromString("10.2"),
			Amount:   decimal.RequireFromString("1.0"),
		}},
		Asks: []domain.Level{{
			Exchange: domain.ExchangeBitstamp,
			Price:    decimal.RequireFromString("10.0"),
			Amount:   decimal.RequireFromString("1.0"),
		}},
	}
	book.Spread = domain.ComputeSpread(book.Bids, book.Asks)

	summary := SummaryFromBook(book)

	if summary.Spread >= 0 {
		t.Errorf("spread = %v, want negative (crossed book)", summary.Spread)
	}
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("condition not met in time")
}
