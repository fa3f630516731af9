package venue

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

func TestWSURL(t *testing.T) {
	tests := map[string]string{
		MainnetAPI:              "wss://api.hyperliquid.xyz/ws",
		TestnetAPI + "/":        "wss://api.hyperliquid-testnet.xyz/ws",
		"http://localhost:3001": "ws://localhost:3001/ws",
	}
	for in, want := range tests {
		if got := WSURL(in); got != want {
			t.Errorf("WSURL(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestFeed_SubscribeMids(t *testing.T) {
	subscribed := make(chan subscribeMessage, 1)
	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		var msg subscribeMessage
		if err := conn.ReadJSON(&msg); err != nil {
			return
		}
		subscribed <- msg
		conn.WriteJSON(map[string]interface{}{
			"channel": "allMids",
			"data":    map[string]interface{}{"mids": map[string]string{"eth": "2000.5", "BTC": "30000", "BAD": "x"}},
		})
		// Hold the connection until the client goes away.
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	feed := NewFeed(WSURL(srv.URL), quietLogger())
	if err := feed.Connect(ctx); err != nil {
		t.Fatalf("Connect() error: %v", err)
	}

	got := make(chan map[string]float64, 1)
	if err := feed.SubscribeMids(func(mids map[string]float64) { got <- mids }); err != nil {
		t.Fatalf("SubscribeMids() error: %v", err)
	}

	select {
	case msg := <-subscribed:
		if msg.Method != "subscribe" || msg.Subscription["type"] != "allMids" {
			t.Errorf("subscription = %+v, want allMids", msg)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("server never saw the subscription")
	}

	select {
	case mids := <-got:
		if mids["ETH"] != 2000.5 || mids["BTC"] != 30000 {
			t.Errorf("mids = %v, want ETH 2000.5 and BTC 30000", mids)
		}
		if _, ok := mids["BAD"]; ok {
			t.Error("unparseable mid was kept")
		}
	case <-time.After(5 * time.Second):
		t.Fatal("no mids delivered")
	}

	cancel()
	select {
	case <-feed.Done():
	case <-time.After(5 * time.Second):
		t.Fatal("feed did not stop after cancel")
	}
}

func TestFeed_SubscribeBeforeConnect(t *testing.T) {
	feed := NewFeed("ws://127.0.0.1:0/ws", quietLogger())
	if err := feed.Subscribe(map[string]string{"type": "allMids"}); err == nil {
		t.Error("Subscribe() expected error before Connect")
	}
}
