package client

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/gorilla/websocket"

	"predictterm/logger"
)

// MarketStream delivers live price updates over a websocket, feeding the
// ticker and market detail surfaces.
type MarketStream struct {
	conn         *websocket.Conn
	url          string
	log          *logger.Logger
	pingInterval time.Duration
	stopPing     chan struct{}

	onPriceChange    func(PriceChangeMessage)
	onLastTradePrice func(LastTradePriceMessage)
	onBook           func(BookMessage)
}

type StreamCallbacks struct {
	OnPriceChange    func(PriceChangeMessage)
	OnLastTradePrice func(LastTradePriceMessage)
	OnBook           func(BookMessage)
}

type streamSubscribeMessage struct {
	Type    string   `json:"type"`
	Markets []string `json:"markets"`
}

type streamMessage struct {
	EventType string `json:"event_type"`
}

type PriceChangeMessage struct {
	EventType string        `json:"event_type"` // "price_change"
	Market    string        `json:"market"`
	Outcome   string        `json:"outcome"`
	Price     StringFloat64 `json:"price"`
	Side      string        `json:"side"`
	Timestamp int64         `json:"timestamp"`
}

type LastTradePriceMessage struct {
	EventType string        `json:"event_type"` // "last_trade_price"
	Market    string        `json:"market"`
	Price     StringFloat64 `json:"price"`
	Size      StringFloat64 `json:"size"`
	Side      string        `json:"side"`
	Timestamp int64         `json:"timestamp"`
}

type BookMessage struct {
	EventType string       `json:"event_type"` // "book"
	Market    string       `json:"market"`
	Bids      []PriceLevel `json:"bids"`
	Asks      []PriceLevel `json:"asks"`
	Timestamp int64        `json:"timestamp"`
}

func NewMarketStream(url string, callbacks StreamCallbacks, log *logger.Logger) *MarketStream {
	return &MarketStream{
		url:              url,
		log:              log,
		pingInterval:     50 * time.Second,
		stopPing:         make(chan struct{}),
		onPriceChange:    callbacks.OnPriceChange,
		onLastTradePrice: callbacks.OnLastTradePrice,
		onBook:           callbacks.OnBook,
	}
}

func (s *MarketStream) Connect() error {
	conn, resp, err := websocket.DefaultDialer.Dial(s.url, nil)
	if err != nil {
		if resp != nil {
			s.log.Error("stream_connect_failed", "status", resp.Status, "err", err)
		}
		return err
	}
	s.conn = conn
	s.log.Info("stream_connected", "url", s.url)

	go s.startPinger()

	return nil
}

func (s *MarketStream) Close() error {
	close(s.stopPing)
	if s.conn != nil {
		return s.conn.Close()
	}
	return nil
}

func (s *MarketStream) Subscribe(conditionIDs []string) error {
	if s.conn == nil {
		return fmt.Errorf("stream not connected")
	}

	msg := streamSubscribeMessage{Type: "subscribe", Markets: conditionIDs}
	if err := s.conn.WriteJSON(msg); err != nil {
		return fmt.Errorf("failed to send subscribe message: %w", err)
	}
	s.log.Info("stream_subscribed", "count", len(conditionIDs))
	return nil
}

func (s *MarketStream) Listen(ctx context.Context) error {
	if s.conn == nil {
		return fmt.Errorf("stream not connected")
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
			_, message, err := s.conn.ReadMessage()
			if err != nil {
				return err
			}
			s.dispatch(message)
		}
	}
}

func (s *MarketStream) dispatch(message []byte) {
	var msgType streamMessage
	if err := json.Unmarshal(message, &msgType); err != nil {
		return
	}

	switch msgType.EventType {
	case "price_change":
		if s.onPriceChange != nil {
			var m PriceChangeMessage
			if err := json.Unmarshal(message, &m); err == nil {
				s.onPriceChange(m)
			}
		}
	case "last_trade_price":
		if s.onLastTradePrice != nil {
			var m LastTradePriceMessage
			if err := json.Unmarshal(message, &m); err == nil {
				s.onLastTradePrice(m)
			}
		}
	case "book":
		if s.onBook != nil {
			var m BookMessage
			if err := json.Unmarshal(message, &m); err == nil {
				s.onBook(m)
			}
		}
	}
}

func (s *MarketStream) startPinger() {
	ticker := time.NewTicker(s.pingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-s.stopPing:
			return
		case <-ticker.C:
			if err := s.conn.WriteMessage(websocket.TextMessage, []byte("PING")); err != nil {
				s.log.Error("stream_ping_failed", "err", err)
				return
			}
		}
	}
}
