package ingest

import (
	"context"
	"fmt"

	"github.com/sony/gobreaker/v2"

	"github.com/fd1az/orderbook-aggregator/business/book/domain"
	"github.com/fd1az/orderbook-aggregator/internal/apperror"
	"github.com/fd1az/orderbook-aggregator/internal/httpclient"
	"github.com/fd1az/orderbook-aggregator/internal/logger"
)

// SnapshotFetcher seeds a per-exchange book over REST before the streaming
// session delivers its first frame. Both venues expose the same
// bids/asks-of-string-pairs shape over REST as over the socket, so the
// response goes through the regular frame parser. Requests run through a
// circuit breaker that stops calling the endpoint after repeated
// consecutive failures.
type SnapshotFetcher struct {
	exchange Exchange
	baseURL  string
	symbol   string
	depth    int
	client   httpclient.Client
	breaker  *gobreaker.CircuitBreaker[domain.Book]
	logger   logger.LoggerInterface
}

// NewSnapshotFetcher creates a fetcher for the given exchange.
func NewSnapshotFetcher(exchange Exchange, baseURL, symbol string, depth int, log logger.LoggerInterface) (*SnapshotFetcher, error) {
	client, err := httpclient.NewInstrumentedClient(
		httpclient.WithProviderName(exchange.Name + "_snapshot"),
	)
	if err != nil {
		return nil, err
	}

	breaker := gobreaker.NewCircuitBreaker[domain.Book](gobreaker.Settings{
		Name: exchange.Name + "-snapshot",
	})

	return &SnapshotFetcher{
		exchange: exchange,
		baseURL:  baseURL,
		symbol:   symbol,
		depth:    depth,
		client:   client,
		breaker:  breaker,
		logger:   log,
	}, nil
}

// Fetch retrieves one full book. Failures are soft: callers fall back to
// an empty slot and wait for the stream.
func (f *SnapshotFetcher) Fetch(ctx context.Context) (domain.Book, error) {
	return f.breaker.Execute(func() (domain.Book, error) {
		url := f.exchange.SnapshotURL(f.baseURL, f.symbol, f.depth)

		resp, err := f.client.NewRequest().Get(ctx, url)
		if err != nil {
			return domain.Book{}, apperror.New(apperror.CodeSnapshotFailed,
				apperror.WithCause(err),
				apperror.WithContext(f.exchange.Name+" snapshot request"))
		}
		if resp.IsError() {
			return domain.Book{}, apperror.New(apperror.CodeSnapshotFailed,
				apperror.WithContext(fmt.Sprintf("%s snapshot returned %d", f.exchange.Name, resp.StatusCode)))
		}

		book, ok := ParseFrame(resp.Body(), f.exchange.Name, f.depth)
		if !ok {
			return domain.Book{}, apperror.New(apperror.CodeInvalidOrderbook,
				apperror.WithContext(f.exchange.Name+" snapshot body"))
		}

		f.logger.Debug(ctx, "snapshot fetched",
			"exchange", f.exchange.Name,
			"bids", len(book.Bids),
			"asks", len(book.Asks),
		)

		return book, nil
	})
}
