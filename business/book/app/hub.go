package app

import (
	"context"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/fd1az/orderbook-aggregator/business/book/domain"
	"github.com/fd1az/orderbook-aggregator/internal/logger"
)

const meterName = "github.com/fd1az/orderbook-aggregator/business/book/app"

// SubscriberQueueSize is the bounded per-subscriber queue capacity. A full
// queue drops the newest snapshot for that subscriber only.
const SubscriberQueueSize = 100

// HubConfig holds configuration for the aggregation hub.
type HubConfig struct {
	Depth int
}

// hubMetrics holds OTEL metric instruments for the hub.
type hubMetrics struct {
	upstreamUpdates    metric.Int64Counter
	snapshotsPublished metric.Int64Counter
	snapshotsDropped   metric.Int64Counter
	subscribersActive  metric.Int64UpDownCounter
}

// Hub owns the two per-exchange book slots, merges them on every upstream
// update, and fans the consolidated book out to subscribers. The slots are
// written only by the run loop; subscribers receive immutable value
// copies, never shared state.
type Hub struct {
	config HubConfig
	first  Upstream
	second Upstream
	logger logger.LoggerInterface

	// Slots, touched only by the run goroutine after Start.
	firstBook  domain.Book
	secondBook domain.Book

	subscribers map[int]chan domain.Book
	nextID      int
	subsMu      sync.RWMutex

	current   domain.Book
	currentMu sync.RWMutex

	stop     chan struct{}
	stopOnce sync.Once
	done     chan struct{}

	metrics *hubMetrics
}

// NewHub creates a hub over two upstream sessions. Both slots start empty.
func NewHub(first, second Upstream, cfg HubConfig, log logger.LoggerInterface) (*Hub, error) {
	h := &Hub{
		config:      cfg,
		first:       first,
		second:      second,
		logger:      log,
		firstBook:   domain.NewBook(),
		secondBook:  domain.NewBook(),
		subscribers: make(map[int]chan domain.Book),
		stop:        make(chan struct{}),
		done:        make(chan struct{}),
	}

	if err := h.initMetrics(); err != nil {
		return nil, err
	}

	return h, nil
}

func (h *Hub) initMetrics() error {
	meter := otel.Meter(meterName)
	var err error

	h.metrics = &hubMetrics{}

	h.metrics.upstreamUpdates, err = meter.Int64Counter(
		"hub_upstream_updates_total",
		metric.WithDescription("Total per-exchange book updates consumed"),
		metric.WithUnit("{update}"),
	)
	if err != nil {
		return err
	}

	h.metrics.snapshotsPublished, err = meter.Int64Counter(
		"hub_snapshots_published_total",
		metric.WithDescription("Total consolidated snapshots delivered to subscriber queues"),
		metric.WithUnit("{snapshot}"),
	)
	if err != nil {
		return err
	}

	h.metrics.snapshotsDropped, err = meter.Int64Counter(
		"hub_snapshots_dropped_total",
		metric.WithDescription("Total snapshots dropped on full subscriber queues"),
		metric.WithUnit("{snapshot}"),
	)
	if err != nil {
		return err
	}

	h.metrics.subscribersActive, err = meter.Int64UpDownCounter(
		"hub_subscribers_active",
		metric.WithDescription("Currently registered subscribers"),
		metric.WithUnit("{subscriber}"),
	)
	if err != nil {
		return err
	}

	return nil
}

// Seed sets an initial book for the named exchange. Must be called before
// Start; the REST bootstrap uses it so the first merged publish carries
// both venues.
func (h *Hub) Seed(exchange string, book domain.Book) {
	switch exchange {
	case h.first.Name():
		h.firstBook = book
	case h.second.Name():
		h.secondBook = book
	}
}

// Start launches the hub loop.
func (h *Hub) Start(ctx context.Context) {
	go h.run(ctx)
}

// Stop terminates the hub loop and closes all subscriber queues.
func (h *Hub) Stop() {
	h.stopOnce.Do(func() { close(h.stop) })
	<-h.done
}

// Subscribe registers a new subscriber queue and returns its consumer side
// together with an unsubscribe func. The queue holds at most
// SubscriberQueueSize snapshots; when it is full, new snapshots for this
// subscriber are dropped.
func (h *Hub) Subscribe() (<-chan domain.Book, func()) {
	ch := make(chan domain.Book, SubscriberQueueSize)

	h.subsMu.Lock()
	id := h.nextID
	h.nextID++
	h.subscribers[id] = ch
	h.subsMu.Unlock()

	h.metrics.subscribersActive.Add(context.Background(), 1)

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			h.subsMu.Lock()
			_, ok := h.subscribers[id]
			if ok {
				delete(h.subscribers, id)
				close(ch)
			}
			h.subsMu.Unlock()
			if ok {
				h.metrics.subscribersActive.Add(context.Background(), -1)
			}
		})
	}

	return ch, cancel
}

// Current returns the latest consolidated book.
func (h *Hub) Current() domain.Book {
	h.currentMu.RLock()
	defer h.currentMu.RUnlock()
	return h.current
}

// run consumes both upstreams concurrently. Whichever side produces, the
// matching slot is replaced, the books are re-merged, and the result is
// published. A closed upstream channel parks that side; the loop keeps
// serving the other venue from its last-known slot.
func (h *Hub) run(ctx context.Context) {
	defer close(h.done)
	defer h.closeSubscribers()

	firstCh := h.first.Books()
	secondCh := h.second.Books()

	for {
		select {
		case <-ctx.Done():
			h.logger.Info(ctx, "hub stopping", "reason", ctx.Err())
			return

		case <-h.stop:
			h.logger.Info(ctx, "hub stopped")
			return

		case book, ok := <-firstCh:
			if !ok {
				h.logger.Warn(ctx, "upstream closed", "exchange", h.first.Name())
				firstCh = nil
				break
			}
			h.firstBook = book
			h.publish(ctx, h.first.Name())

		case book, ok := <-secondCh:
			if !ok {
				h.logger.Warn(ctx, "upstream closed", "exchange", h.second.Name())
				secondCh = nil
				break
			}
			h.secondBook = book
			h.publish(ctx, h.second.Name())
		}

		if firstCh == nil && secondCh == nil {
			// Both upstreams are gone. Queues stay open for their
			// consumers, but nothing more will be published.
			h.logger.Error(ctx, "all upstreams closed, hub idle")
			select {
			case <-ctx.Done():
			case <-h.stop:
			}
			return
		}
	}
}

// publish merges the slots and delivers the consolidated book to every
// subscriber queue, dropping the snapshot for queues that are full.
func (h *Hub) publish(ctx context.Context, source string) {
	merged := domain.Merge(h.firstBook, h.secondBook, h.config.Depth)

	h.currentMu.Lock()
	h.current = merged
	h.currentMu.Unlock()

	h.metrics.upstreamUpdates.Add(ctx, 1, metric.WithAttributes(
		attribute.String("exchange", source),
	))

	h.subsMu.RLock()
	defer h.subsMu.RUnlock()

	for id, ch := range h.subscribers {
		select {
		case ch <- merged.Clone():
			h.metrics.snapshotsPublished.Add(ctx, 1)
		default:
			h.metrics.snapshotsDropped.Add(ctx, 1)
			h.logger.Debug(ctx, "subscriber queue full, snapshot dropped", "subscriber", id)
		}
	}
}

func (h *Hub) closeSubscribers() {
	h.subsMu.Lock()
	defer h.subsMu.Unlock()

	for id, ch := range h.subscribers {
		delete(h.subscribers, id)
		close(ch)
		h.metrics.subscribersActive.Add(context.Background(), -1)
	}
}
