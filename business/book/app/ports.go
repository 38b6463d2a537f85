// Package app contains the aggregation hub for the book context.
package app

import "github.com/fd1az/orderbook-aggregator/business/book/domain"

// Upstream is the hub's view of an exchange session: a venue name and a
// stream of parsed snapshots. The channel closes when the session closes.
type Upstream interface {
	Name() string
	Books() <-chan domain.Book
}
