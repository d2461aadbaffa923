package provider

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"

	"predictterm/logger"
)

type testFrame struct {
	ID     uint64 `json:"id"`
	Method string `json:"method"`
	Params []any  `json:"params"`
}

func newBridgeServer(t *testing.T, handler func(conn *websocket.Conn)) *httptest.Server {
	t.Helper()
	upgrader := websocket.Upgrader{}
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		require.NoError(t, err)
		defer conn.Close()
		handler(conn)
	}))
}

func dialBridge(t *testing.T, server *httptest.Server) *Bridge {
	t.Helper()
	url := "ws" + strings.TrimPrefix(server.URL, "http")
	bridge := NewBridge(url, logger.Discard())
	require.NoError(t, bridge.Connect())
	t.Cleanup(func() { bridge.Close() })
	return bridge
}

func TestBridgeRequestResponse(t *testing.T) {
	server := newBridgeServer(t, func(conn *websocket.Conn) {
		var frame testFrame
		require.NoError(t, conn.ReadJSON(&frame))
		require.Equal(t, MethodAccounts, frame.Method)
		require.NoError(t, conn.WriteJSON(map[string]any{
			"id":     frame.ID,
			"result": []string{"0xabc0000000000000000000000000000000000abc"},
		}))
	})
	defer server.Close()

	bridge := dialBridge(t, server)

	raw, err := bridge.Request(context.Background(), MethodAccounts)
	require.NoError(t, err)

	var accounts []string
	require.NoError(t, json.Unmarshal(raw, &accounts))
	require.Equal(t, []string{"0xabc0000000000000000000000000000000000abc"}, accounts)
}

func TestBridgeSurfacesRPCErrors(t *testing.T) {
	server := newBridgeServer(t, func(conn *websocket.Conn) {
		var frame testFrame
		require.NoError(t, conn.ReadJSON(&frame))
		require.NoError(t, conn.WriteJSON(map[string]any{
			"id":    frame.ID,
			"error": map[string]any{"code": CodeUserRejected, "message": "User rejected the request"},
		}))
	})
	defer server.Close()

	bridge := dialBridge(t, server)

	_, err := bridge.Request(context.Background(), MethodRequestAccounts)
	require.Error(t, err)
	require.True(t, IsUserRejection(err))
}

func TestBridgeCorrelatesConcurrentRequests(t *testing.T) {
	server := newBridgeServer(t, func(conn *websocket.Conn) {
		var first, second testFrame
		require.NoError(t, conn.ReadJSON(&first))
		require.NoError(t, conn.ReadJSON(&second))

		// Answer out of order; the bridge must route by id.
		require.NoError(t, conn.WriteJSON(map[string]any{"id": second.ID, "result": second.Method}))
		require.NoError(t, conn.WriteJSON(map[string]any{"id": first.ID, "result": first.Method}))
	})
	defer server.Close()

	bridge := dialBridge(t, server)

	results := make(chan string, 2)
	for _, method := range []string{MethodChainID, MethodAccounts} {
		go func(method string) {
			raw, err := bridge.Request(context.Background(), method)
			if err != nil {
				results <- "error: " + err.Error()
				return
			}
			var echoed string
			_ = json.Unmarshal(raw, &echoed)
			results <- method + "=" + echoed
		}(method)
		time.Sleep(20 * time.Millisecond) // keep send order deterministic
	}

	got := map[string]bool{<-results: true, <-results: true}
	require.True(t, got[MethodChainID+"="+MethodChainID])
	require.True(t, got[MethodAccounts+"="+MethodAccounts])
}

func TestBridgeDispatchesEvents(t *testing.T) {
	server := newBridgeServer(t, func(conn *websocket.Conn) {
		// Answer one request first so the client is known to be listening,
		// then push the event.
		var frame testFrame
		require.NoError(t, conn.ReadJSON(&frame))
		require.NoError(t, conn.WriteJSON(map[string]any{"id": frame.ID, "result": []string{}}))
		require.NoError(t, conn.WriteJSON(map[string]any{
			"method": EventAccountsChanged,
			"params": []string{"0xdef0000000000000000000000000000000000def"},
		}))
		// Keep the connection open until the client is done.
		conn.ReadMessage()
	})
	defer server.Close()

	bridge := dialBridge(t, server)

	received := make(chan []string, 1)
	bridge.On(EventAccountsChanged, func(payload json.RawMessage) {
		var accounts []string
		require.NoError(t, json.Unmarshal(payload, &accounts))
		received <- accounts
	})

	_, err := bridge.Request(context.Background(), MethodAccounts)
	require.NoError(t, err)

	select {
	case accounts := <-received:
		require.Equal(t, []string{"0xdef0000000000000000000000000000000000def"}, accounts)
	case <-time.After(2 * time.Second):
		t.Fatal("event was never dispatched")
	}
}

func TestBridgeRequestHonorsContext(t *testing.T) {
	server := newBridgeServer(t, func(conn *websocket.Conn) {
		// Swallow the request and never answer, like a wallet stuck on a
		// user prompt.
		var frame testFrame
		_ = conn.ReadJSON(&frame)
		conn.ReadMessage()
	})
	defer server.Close()

	bridge := dialBridge(t, server)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := bridge.Request(ctx, MethodSignTypedData)
	require.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestBridgeCloseFailsPendingRequests(t *testing.T) {
	server := newBridgeServer(t, func(conn *websocket.Conn) {
		var frame testFrame
		_ = conn.ReadJSON(&frame)
		conn.ReadMessage()
	})
	defer server.Close()

	bridge := dialBridge(t, server)

	done := make(chan error, 1)
	go func() {
		_, err := bridge.Request(context.Background(), MethodSignTypedData)
		done <- err
	}()

	time.Sleep(50 * time.Millisecond)
	require.NoError(t, bridge.Close())

	select {
	case err := <-done:
		require.ErrorIs(t, err, ErrBridgeClosed)
	case <-time.After(2 * time.Second):
		t.Fatal("pending request was never failed")
	}
}
