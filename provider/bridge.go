package provider

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"predictterm/logger"
)

// Bridge is a Provider backed by a JSON-RPC websocket connection to an
// external wallet application. It fills the role the injected browser
// provider plays in a web client: calls block until the wallet (and its
// user) answers, and the wallet pushes accountsChanged/chainChanged events
// over the same connection.
type Bridge struct {
	url          string
	log          *logger.Logger
	pingInterval time.Duration

	conn     *websocket.Conn
	writeMu  sync.Mutex
	stopPing chan struct{}

	mu       sync.Mutex
	nextID   uint64
	pending  map[uint64]chan bridgeReply
	handlers map[string]EventHandler
	closed   bool
}

type bridgeReply struct {
	result json.RawMessage
	err    error
}

type bridgeEnvelope struct {
	ID     uint64          `json:"id,omitempty"`
	Method string          `json:"method,omitempty"`
	Params json.RawMessage `json:"params,omitempty"`
	Result json.RawMessage `json:"result,omitempty"`
	Error  *RPCError       `json:"error,omitempty"`
}

type bridgeRequest struct {
	ID     uint64 `json:"id"`
	Method string `json:"method"`
	Params []any  `json:"params,omitempty"`
}

var ErrBridgeClosed = errors.New("wallet bridge connection closed")

func NewBridge(url string, log *logger.Logger) *Bridge {
	return &Bridge{
		url:          url,
		log:          log,
		pingInterval: 50 * time.Second,
		stopPing:     make(chan struct{}),
		pending:      map[uint64]chan bridgeReply{},
		handlers:     map[string]EventHandler{},
	}
}

func (b *Bridge) Connect() error {
	conn, resp, err := websocket.DefaultDialer.Dial(b.url, nil)
	if err != nil {
		if resp != nil {
			b.log.Error("bridge_connect_failed", "status", resp.Status, "err", err)
		}
		return err
	}
	b.conn = conn
	b.log.Info("bridge_connected", "url", b.url)

	go b.startPinger()
	go b.readLoop()

	return nil
}

func (b *Bridge) Close() error {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return nil
	}
	b.closed = true
	b.failPendingLocked(ErrBridgeClosed)
	b.mu.Unlock()

	close(b.stopPing)
	if b.conn != nil {
		return b.conn.Close()
	}
	return nil
}

func (b *Bridge) Request(ctx context.Context, method string, params ...any) (json.RawMessage, error) {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return nil, ErrBridgeClosed
	}
	b.nextID++
	id := b.nextID
	reply := make(chan bridgeReply, 1)
	b.pending[id] = reply
	b.mu.Unlock()

	if err := b.writeJSON(bridgeRequest{ID: id, Method: method, Params: params}); err != nil {
		b.mu.Lock()
		delete(b.pending, id)
		b.mu.Unlock()
		return nil, fmt.Errorf("bridge write failed: %w", err)
	}

	select {
	case <-ctx.Done():
		b.mu.Lock()
		delete(b.pending, id)
		b.mu.Unlock()
		return nil, ctx.Err()
	case r := <-reply:
		return r.result, r.err
	}
}

func (b *Bridge) On(event string, handler EventHandler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.handlers[event] = handler
}

func (b *Bridge) RemoveListener(event string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.handlers, event)
}

func (b *Bridge) writeJSON(v any) error {
	b.writeMu.Lock()
	defer b.writeMu.Unlock()
	return b.conn.WriteJSON(v)
}

func (b *Bridge) readLoop() {
	for {
		_, message, err := b.conn.ReadMessage()
		if err != nil {
			b.mu.Lock()
			if !b.closed {
				b.log.Error("bridge_read_failed", "err", err)
				b.closed = true
				b.failPendingLocked(ErrBridgeClosed)
			}
			b.mu.Unlock()
			return
		}

		var env bridgeEnvelope
		if err := json.Unmarshal(message, &env); err != nil {
			b.log.Warn("bridge_bad_frame", "err", err)
			continue
		}

		if env.Method != "" {
			b.dispatchEvent(env.Method, env.Params)
			continue
		}

		b.mu.Lock()
		reply, ok := b.pending[env.ID]
		delete(b.pending, env.ID)
		b.mu.Unlock()
		if !ok {
			continue
		}

		if env.Error != nil {
			reply <- bridgeReply{err: env.Error}
		} else {
			reply <- bridgeReply{result: env.Result}
		}
	}
}

func (b *Bridge) dispatchEvent(event string, payload json.RawMessage) {
	b.mu.Lock()
	handler := b.handlers[event]
	b.mu.Unlock()
	if handler != nil {
		handler(payload)
	}
}

func (b *Bridge) failPendingLocked(err error) {
	for id, reply := range b.pending {
		reply <- bridgeReply{err: err}
		delete(b.pending, id)
	}
}

func (b *Bridge) startPinger() {
	ticker := time.NewTicker(b.pingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-b.stopPing:
			return
		case <-ticker.C:
			b.writeMu.Lock()
			err := b.conn.WriteMessage(websocket.TextMessage, []byte("PING"))
			b.writeMu.Unlock()
			if err != nil {
				b.log.Error("bridge_ping_failed", "err", err)
				return
			}
		}
	}
}
