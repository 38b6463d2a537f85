// Package main is the demo client: it subscribes to the aggregator's
// BookSummary stream and renders each consolidated snapshot as a ladder.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	tea "github.com/charmbracelet/bubbletea"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/fd1az/orderbook-aggregator/api/orderbookpb"
	"github.com/fd1az/orderbook-aggregator/pkg/ui"
)

func main() {
	addr := flag.String("addr", "localhost:50051", "Aggregator server address")
	plain := flag.Bool("plain", false, "Print ladders to stdout instead of the TUI")
	flag.Parse()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		cancel()
	}()

	if err := run(ctx, *addr, *plain); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, addr string, plain bool) error {
	conn, err := grpc.NewClient(addr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return fmt.Errorf("failed to connect to %s: %w", addr, err)
	}
	defer conn.Close()

	client := orderbookpb.NewOrderbookAggregatorClient(conn)

	stream, err := client.BookSummary(ctx, &orderbookpb.Empty{})
	if err != nil {
		return fmt.Errorf("book summary subscription failed: %w", err)
	}

	if plain {
		return runPlain(stream)
	}
	return runTUI(ctx, addr, stream)
}

// runPlain prints every summary as a text ladder.
func runPlain(stream orderbookpb.OrderbookAggregator_BookSummaryClient) error {
	for {
		summary, err := stream.Recv()
		if err != nil {
			return fmt.Errorf("stream ended: %w", err)
		}
		printSummary(summary)
	}
}

func printSummary(summary *orderbookpb.Summary) {
	fmt.Printf("Spread: %.8f\n", summary.Spread)
	fmt.Printf("%-6s %-12s %-16s %-14s | %-14s %-16s %-12s\n",
		"Depth", "BidExchange", "BidVolume", "BidPrice", "AskPrice", "AskVolume", "AskExchange")

	rows := len(summary.Bids)
	if len(summary.Asks) > rows {
		rows = len(summary.Asks)
	}

	for i := 0; i < rows; i++ {
		var bidExchange, bidVolume, bidPrice string
		if i < len(summary.Bids) {
			bid := summary.Bids[i]
			bidExchange = bid.Exchange
			bidVolume = fmt.Sprintf("%.8f", bid.Amount)
			bidPrice = fmt.Sprintf("%.8f", bid.Price)
		}

		var askPrice, askVolume, askExchange string
		if i < len(summary.Asks) {
			ask := summary.Asks[i]
			askPrice = fmt.Sprintf("%.8f", ask.Price)
			askVolume = fmt.Sprintf("%.8f", ask.Amount)
			askExchange = ask.Exchange
		}

		fmt.Printf("%-6s %-12s %-16s %-14s | %-14s %-16s %-12s\n",
			fmt.Sprintf("[%d]", i+1),
			bidExchange, bidVolume, bidPrice,
			askPrice, askVolume, askExchange)
	}

	fmt.Println()
}

// runTUI renders the stream in the Bubble Tea ladder.
func runTUI(ctx context.Context, addr string, stream orderbookpb.OrderbookAggregator_BookSummaryClient) error {
	p := tea.NewProgram(ui.New(addr), tea.WithAltScreen())
	ui.Program = p

	go func() {
		ui.Send(ui.ConnectedMsg{Target: addr})
		for {
			summary, err := stream.Recv()
			if err != nil {
				if ctx.Err() == nil {
					ui.Send(ui.ErrorMsg{Error: err})
				} else {
					p.Quit()
				}
				return
			}
			ui.Send(ui.SnapshotMsg{Snapshot: snapshotFromSummary(summary)})
		}
	}()

	if _, err := p.Run(); err != nil {
		return fmt.Errorf("TUI error: %w", err)
	}

	return nil
}

func snapshotFromSummary(summary *orderbookpb.Summary) ui.Snapshot {
	snapshot := ui.Snapshot{
		Spread: summary.Spread,
		Bids:   make([]ui.Row, 0, len(summary.Bids)),
		Asks:   make([]ui.Row, 0, len(summary.Asks)),
	}
	for _, l := range summary.Bids {
		snapshot.Bids = append(snapshot.Bids, ui.Row{Exchange: l.Exchange, Price: l.Price, Amount: l.Amount})
	}
	for _, l := range summary.Asks {
		snapshot.Asks = append(snapshot.Asks, ui.Row{Exchange: l.Exchange, Price: l.Price, Amount: l.Amount})
	}
	return snapshot
}
