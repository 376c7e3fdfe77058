package stream

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeTicks(t *testing.T) {
	one := DecodeTicks([]byte(`{"symbol":"BTC/USD","price":80,"quantity":2,"timestamp":"2026-03-01T12:00:00Z"}`))
	require.Len(t, one, 1)
	assert.Equal(t, 80.0, one[0].Price)

	batch := DecodeTicks([]byte(`[{"symbol":"BTC/USD","price":80},{"price":1},{"symbol":"ETH/USD","price":3000}]`))
	require.Len(t, batch, 2)
	assert.Equal(t, "ETH/USD", batch[1].Symbol)

	assert.Empty(t, DecodeTicks([]byte(`{"type":"ping"}`)))
	assert.Empty(t, DecodeTicks([]byte(`not json`)))
}

func TestClientStreamsTicks(t *testing.T) {
	subscribed := make(chan string, 2)
	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		for i := 0; i < 2; i++ {
			var m subscribeMessage
			if err := conn.ReadJSON(&m); err != nil {
				return
			}
			subscribed <- m.Symbol
		}
		_ = conn.WriteMessage(websocket.TextMessage, []byte(`[{"symbol":"BTC/USD","price":80,"quantity":1,"timestamp":"2026-03-01T12:00:00Z","exchange_id":"test"}]`))
		_ = conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"heartbeat"}`))
		_ = conn.WriteMessage(websocket.TextMessage, []byte(`{"symbol":"ETH/USD","price":3000,"timestamp":"2026-03-01T12:00:01Z"}`))
		// Hold the connection until the client closes it.
		_, _, _ = conn.ReadMessage()
	}))
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	c := New("ws"+strings.TrimPrefix(srv.URL, "http"), []string{"BTC/USD", "ETH/USD"}, time.Second, nil)
	require.NoError(t, c.Connect(ctx))
	require.NoError(t, c.Subscribe(ctx))
	assert.True(t, c.IsConnected())
	assert.Equal(t, "BTC/USD", <-subscribed)
	assert.Equal(t, "ETH/USD", <-subscribed)

	ticks, _ := c.Read(ctx)
	first := <-ticks
	second := <-ticks
	assert.Equal(t, "BTC/USD", first.Symbol)
	assert.Equal(t, "test", first.ExchangeID)
	assert.Equal(t, "ETH/USD", second.Symbol)

	require.NoError(t, c.Close())
	assert.False(t, c.IsConnected())
}

func TestSubscribeRequiresConnection(t *testing.T) {
	c := New("ws://127.0.0.1:1", []string{"BTC/USD"}, 0, nil)
	assert.Error(t, c.Subscribe(context.Background()))
}
