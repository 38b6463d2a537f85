package ingest

import (
	"context"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/fd1az/orderbook-aggregator/business/book/domain"
	"github.com/fd1az/orderbook-aggregator/internal/apperror"
	"github.com/fd1az/orderbook-aggregator/internal/logger"
	"github.com/fd1az/orderbook-aggregator/internal/ratelimit"
	"github.com/fd1az/orderbook-aggregator/internal/wsconn"
)

const (
	tracerName = "github.com/fd1az/orderbook-aggregator/business/book/ingest"
	meterName  = "github.com/fd1az/orderbook-aggregator/business/book/ingest"

	// Binance allows 5 inbound messages per second per connection; the
	// same budget is generous enough for Bitstamp control frames.
	controlFramesPerSecond = 5
)

// Exchange describes the venue-specific wiring of an upstream session.
// Adding a venue means providing another descriptor.
type Exchange struct {
	Name             string
	WSURL            string
	SubscribeFrame   func(symbol string, depth int) []byte
	UnsubscribeFrame func(symbol string, depth int) []byte
	VerifyAck        func(frame []byte, symbol string) bool
	SnapshotURL      func(baseURL, symbol string, depth int) string
}

// SessionConfig holds configuration for one upstream session.
type SessionConfig struct {
	Symbol         string
	Depth          int
	WebSocketURL   string // empty = exchange default
	AckTimeout     time.Duration
	MaxReconnects  int
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
}

// sessionMetrics holds OTEL metric instruments.
type sessionMetrics struct {
	booksParsed   metric.Int64Counter
	framesSkipped metric.Int64Counter
}

// Session maintains one subscribed upstream connection and produces the
// parsed book snapshots it receives. The socket is owned by a single
// reader; consumers only see the Books channel.
type Session struct {
	exchange Exchange
	config   SessionConfig
	logger   logger.LoggerInterface

	conn    *wsconn.Client
	books   chan domain.Book
	limiter *ratelimit.Limiter
	done    chan struct{}
	closed  atomic.Bool

	tracer  trace.Tracer
	metrics *sessionMetrics
}

// NewSession creates a session for the given exchange. Connect must be
// called before Books produces anything.
func NewSession(exchange Exchange, cfg SessionConfig, log logger.LoggerInterface) (*Session, error) {
	wsURL := cfg.WebSocketURL
	if wsURL == "" {
		wsURL = exchange.WSURL
	}

	wsCfg := wsconn.DefaultConfig(wsURL, exchange.Name)
	if cfg.MaxReconnects != 0 {
		wsCfg.MaxReconnects = cfg.MaxReconnects
	}
	if cfg.InitialBackoff > 0 {
		wsCfg.InitialBackoff = cfg.InitialBackoff
	}
	if cfg.MaxBackoff > 0 {
		wsCfg.MaxBackoff = cfg.MaxBackoff
	}

	conn, err := wsconn.New(wsCfg)
	if err != nil {
		return nil, apperror.New(apperror.CodeWebSocketConnectionError,
			apperror.WithCause(err),
			apperror.WithContext("failed to create wsconn for "+exchange.Name))
	}

	s := &Session{
		exchange: exchange,
		config:   cfg,
		logger:   log,
		conn:     conn,
		books:    make(chan domain.Book),
		limiter:  ratelimit.NewWithBurst(controlFramesPerSecond, controlFramesPerSecond),
		done:     make(chan struct{}),
		tracer:   otel.Tracer(tracerName),
	}

	if err := s.initMetrics(); err != nil {
		return nil, err
	}

	return s, nil
}

func (s *Session) initMetrics() error {
	meter := otel.Meter(meterName)
	var err error

	s.metrics = &sessionMetrics{}

	s.metrics.booksParsed, err = meter.Int64Counter(
		"upstream_books_parsed_total",
		metric.WithDescription("Total book snapshots parsed from upstream frames"),
		metric.WithUnit("{snapshot}"),
	)
	if err != nil {
		return err
	}

	s.metrics.framesSkipped, err = meter.Int64Counter(
		"upstream_frames_skipped_total",
		metric.WithDescription("Total upstream frames skipped by the parser"),
		metric.WithUnit("{frame}"),
	)
	if err != nil {
		return err
	}

	return nil
}

// Connect dials the exchange, performs the subscription handshake, and
// starts the streaming loop. The subscribe frame is registered with the
// transport so it is replayed after every reconnect.
func (s *Session) Connect(ctx context.Context) error {
	ctx, span := s.tracer.Start(ctx, "session.connect",
		trace.WithAttributes(
			attribute.String("exchange", s.exchange.Name),
			attribute.String("symbol", s.config.Symbol),
			attribute.Int("depth", s.config.Depth),
		),
	)
	defer span.End()

	// Control frames share the Binance 5 msg/s budget.
	if err := s.limiter.Wait(ctx); err != nil {
		return err
	}

	s.conn.SetSubscribeFrame(s.exchange.SubscribeFrame(s.config.Symbol, s.config.Depth))

	if err := s.conn.Connect(ctx); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "dial failed")
		return apperror.New(apperror.CodeUpstreamUnavailable,
			apperror.WithCause(err),
			apperror.WithContext("dial "+s.exchange.Name))
	}

	if err := s.awaitAck(ctx); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "handshake failed")
		s.conn.Close()
		return err
	}

	span.SetStatus(codes.Ok, "subscribed")
	s.logger.Info(ctx, "upstream session subscribed",
		"exchange", s.exchange.Name,
		"symbol", s.config.Symbol,
		"depth", s.config.Depth,
	)

	go s.run(context.Background())

	return nil
}

// awaitAck scans inbound frames for the subscription acknowledgement.
// Anything that is not the ack is discarded; the deadline converts an
// absent ack into a handshake failure.
func (s *Session) awaitAck(ctx context.Context) error {
	ackTimeout := s.config.AckTimeout
	if ackTimeout <= 0 {
		ackTimeout = 10 * time.Second
	}

	deadline := time.NewTimer(ackTimeout)
	defer deadline.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-deadline.C:
			return apperror.New(apperror.CodeHandshakeFailed,
				apperror.WithContext("no subscription ack from "+s.exchange.Name))
		case frame := <-s.conn.Messages():
			if s.exchange.VerifyAck(frame, s.config.Symbol) {
				return nil
			}
			s.logger.Debug(ctx, "discarding pre-ack frame", "exchange", s.exchange.Name)
		}
	}
}

// run parses inbound frames until the session is closed. Frames the parser
// rejects (acks after a reconnect, heartbeats, junk) are counted and
// skipped.
func (s *Session) run(ctx context.Context) {
	defer close(s.books)

	attrs := metric.WithAttributes(attribute.String("exchange", s.exchange.Name))

	for {
		select {
		case <-s.done:
			return
		case frame := <-s.conn.Messages():
			book, ok := ParseFrame(frame, s.exchange.Name, s.config.Depth)
			if !ok {
				s.metrics.framesSkipped.Add(ctx, 1, attrs)
				continue
			}
			s.metrics.booksParsed.Add(ctx, 1, attrs)

			select {
			case s.books <- book:
			case <-s.done:
				return
			}
		}
	}
}

// Books returns the stream of parsed snapshots. The channel is closed when
// the session closes.
func (s *Session) Books() <-chan domain.Book {
	return s.books
}

// Name returns the exchange identifier this session is bound to.
func (s *Session) Name() string {
	return s.exchange.Name
}

// IsConnected reports whether the underlying socket is connected.
func (s *Session) IsConnected() bool {
	return s.conn.IsConnected()
}

// Close unsubscribes best-effort and tears the connection down. It is safe
// to call more than once.
func (s *Session) Close() error {
	if s.closed.Swap(true) {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	if s.exchange.UnsubscribeFrame != nil && s.conn.IsConnected() {
		if err := s.limiter.Wait(ctx); err == nil {
			frame := s.exchange.UnsubscribeFrame(s.config.Symbol, s.config.Depth)
			if err := s.conn.Send(ctx, frame); err != nil {
				s.logger.Debug(ctx, "unsubscribe failed", "exchange", s.exchange.Name, "error", err)
			}
		}
	}

	close(s.done)
	return s.conn.Close()
}
