package ingest

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/fd1az/orderbook-aggregator/business/book/domain"
)

// Bitstamp WebSocket and REST endpoints.
const (
	BitstampWSURL   = "wss://ws.bitstamp.net/"
	BitstampHTTPURL = "https://www.bitstamp.net"
)

// btsRequest is the Bitstamp channel control message.
type btsRequest struct {
	Event string  `json:"event"`
	Data  btsData `json:"data"`
}

type btsData struct {
	Channel string `json:"channel"`
}

// btsEvent is the Bitstamp channel control acknowledgement.
type btsEvent struct {
	Event   string `json:"event"`
	Channel string `json:"channel"`
}

func bitstampChannel(symbol string) string {
	return "detail_order_book_" + strings.ToLower(symbol)
}

// Bitstamp returns the exchange descriptor for the Bitstamp detail order
// book channel.
func Bitstamp() Exchange {
	return Exchange{
		Name:  domain.ExchangeBitstamp,
		WSURL: BitstampWSURL,

		SubscribeFrame: func(symbol string, depth int) []byte {
			frame, _ := json.Marshal(btsRequest{
				Event: "bts:subscribe",
				Data:  btsData{Channel: bitstampChannel(symbol)},
			})
			return frame
		},

		UnsubscribeFrame: func(symbol string, depth int) []byte {
			frame, _ := json.Marshal(btsRequest{
				Event: "bts:unsubscribe",
				Data:  btsData{Channel: bitstampChannel(symbol)},
			})
			return frame
		},

		VerifyAck: func(frame []byte, symbol string) bool {
			var event btsEvent
			if err := json.Unmarshal(frame, &event); err != nil {
				return false
			}
			return event.Event == "bts:subscription_succeeded" &&
				event.Channel == bitstampChannel(symbol)
		},

		SnapshotURL: func(baseURL, symbol string, depth int) string {
			return fmt.Sprintf("%s/api/v2/order_book/%s",
				strings.TrimSuffix(baseURL, "/"), strings.ToLower(symbol))
		},
	}
}
