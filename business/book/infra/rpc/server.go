// Package rpc exposes the consolidated book over gRPC server streaming.
package rpc

import (
	"context"
	"net"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/fd1az/orderbook-aggregator/api/orderbookpb"
	"github.com/fd1az/orderbook-aggregator/business/book/domain"
	"github.com/fd1az/orderbook-aggregator/internal/logger"
)

const meterName = "github.com/fd1az/orderbook-aggregator/business/book/infra/rpc"

// BookSource is the server's view of the hub fan-out.
type BookSource interface {
	Subscribe() (<-chan domain.Book, func())
}

// serverMetrics holds OTEL metric instruments.
type serverMetrics struct {
	streamsOpened metric.Int64Counter
	streamsClosed metric.Int64Counter
	summariesSent metric.Int64Counter
}

// Server implements the OrderbookAggregator streaming service. Each
// BookSummary call gets its own bounded queue from the source; slow
// clients only ever shed their own snapshots.
type Server struct {
	orderbookpb.UnimplementedOrderbookAggregatorServer

	source BookSource
	logger logger.LoggerInterface

	grpcServer *grpc.Server
	metrics    *serverMetrics
}

// NewServer creates the gRPC surface over the given book source.
func NewServer(source BookSource, log logger.LoggerInterface) (*Server, error) {
	s := &Server{
		source: source,
		logger: log,
	}

	if err := s.initMetrics(); err != nil {
		return nil, err
	}

	return s, nil
}

func (s *Server) initMetrics() error {
	meter := otel.Meter(meterName)
	var err error

	s.metrics = &serverMetrics{}

	s.metrics.streamsOpened, err = meter.Int64Counter(
		"rpc_book_summary_streams_opened_total",
		metric.WithDescription("Total BookSummary streams opened"),
		metric.WithUnit("{stream}"),
	)
	if err != nil {
		return err
	}

	s.metrics.streamsClosed, err = meter.Int64Counter(
		"rpc_book_summary_streams_closed_total",
		metric.WithDescription("Total BookSummary streams closed"),
		metric.WithUnit("{stream}"),
	)
	if err != nil {
		return err
	}

	s.metrics.summariesSent, err = meter.Int64Counter(
		"rpc_summaries_sent_total",
		metric.WithDescription("Total consolidated summaries sent to clients"),
		metric.WithUnit("{summary}"),
	)
	if err != nil {
		return err
	}

	return nil
}

// BookSummary streams consolidated snapshots until the client disconnects
// or the hub closes the queue.
func (s *Server) BookSummary(_ *orderbookpb.Empty, stream orderbookpb.OrderbookAggregator_BookSummaryServer) error {
	ctx := stream.Context()

	books, cancel := s.source.Subscribe()
	defer cancel()

	s.metrics.streamsOpened.Add(ctx, 1)
	defer s.metrics.streamsClosed.Add(context.Background(), 1)

	s.logger.Info(ctx, "book summary stream opened")

	for {
		select {
		case <-ctx.Done():
			s.logger.Info(ctx, "book summary stream closed by client")
			return nil

		case book, ok := <-books:
			if !ok {
				// Hub shut down; end the stream cleanly.
				s.logger.Info(ctx, "book summary stream closed by hub")
				return nil
			}
			if err := stream.Send(SummaryFromBook(book)); err != nil {
				s.logger.Warn(ctx, "failed to send summary", "error", err)
				return status.Error(codes.Internal, "failed to deliver summary")
			}
			s.metrics.summariesSent.Add(ctx, 1)
		}
	}
}

// Serve binds addr and serves until ctx is cancelled. The bind error is
// returned to the caller; it is an initialization failure.
func (s *Server) Serve(ctx context.Context, addr string) error {
	lis, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}

	s.grpcServer = grpc.NewServer()
	orderbookpb.RegisterOrderbookAggregatorServer(s.grpcServer, s)

	go func() {
		<-ctx.Done()
		s.grpcServer.GracefulStop()
	}()

	s.logger.Info(ctx, "gRPC server listening", "addr", addr)

	return s.grpcServer.Serve(lis)
}

// SummaryFromBook converts a domain book to the wire representation.
func SummaryFromBook(book domain.Book) *orderbookpb.Summary {
	summary := &orderbookpb.Summary{
		Spread: book.Spread.InexactFloat64(),
		Bids:   make([]*orderbookpb.Level, 0, len(book.Bids)),
		Asks:   make([]*orderbookpb.Level, 0, len(book.Asks)),
	}

	for _, l := range book.Bids {
		summary.Bids = append(summary.Bids, levelFromDomain(l))
	}
	for _, l := range book.Asks {
		summary.Asks = append(summary.Asks, levelFromDomain(l))
	}

	return summary
}

func levelFromDomain(l domain.Level) *orderbookpb.Level {
	return &orderbookpb.Level{
		Exchange: l.Exchange,
		Price:    l.Price.InexactFloat64(),
		Amount:   l.Amount.InexactFloat64(),
	}
}
