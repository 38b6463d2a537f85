package ingest

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/fd1az/orderbook-aggregator/business/book/domain"
)

// Binance WebSocket and REST endpoints.
const (
	BinanceWSURL   = "wss://stream.binance.com:9443/ws"
	BinanceHTTPURL = "https://api.binance.com"
)

// wsRequest is the Binance stream control message.
type wsRequest struct {
	Method string   `json:"method"`
	Params []string `json:"params"`
	ID     int64    `json:"id"`
}

// wsResponse is the Binance stream control acknowledgement.
type wsResponse struct {
	Result json.RawMessage `json:"result"`
	ID     *int64          `json:"id"`
}

// subscribeID is the request id used for the depth subscription. The ack
// check keys on it.
const subscribeID int64 = 1

// Binance returns the exchange descriptor for the Binance partial depth
// stream.
func Binance() Exchange {
	return Exchange{
		Name:  domain.ExchangeBinance,
		WSURL: BinanceWSURL,

		SubscribeFrame: func(symbol string, depth int) []byte {
			frame, _ := json.Marshal(wsRequest{
				Method: "SUBSCRIBE",
				Params: []string{fmt.Sprintf("%s@depth%d", strings.ToLower(symbol), depth)},
				ID:     subscribeID,
			})
			return frame
		},

		UnsubscribeFrame: func(symbol string, depth int) []byte {
			frame, _ := json.Marshal(wsRequest{
				Method: "UNSUBSCRIBE",
				Params: []string{fmt.Sprintf("%s@depth%d", strings.ToLower(symbol), depth)},
				ID:     subscribeID + 1,
			})
			return frame
		},

		// Binance documents the ack as {"result":null,"id":1} but the exact
		// bytes vary, so accept any response carrying the subscribe id with
		// an absent or null result.
		VerifyAck: func(frame []byte, symbol string) bool {
			var resp wsResponse
			if err := json.Unmarshal(frame, &resp); err != nil {
				return false
			}
			if resp.ID == nil || *resp.ID != subscribeID {
				return false
			}
			return len(resp.Result) == 0 || string(resp.Result) == "null"
		},

		SnapshotURL: func(baseURL, symbol string, depth int) string {
			return fmt.Sprintf("%s/api/v3/depth?symbol=%s&limit=%d",
				strings.TrimSuffix(baseURL, "/"), strings.ToUpper(symbol), depth)
		},
	}
}
