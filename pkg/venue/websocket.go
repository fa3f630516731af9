package venue

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
)

type MessageHandler func(data json.RawMessage) error

type WSMessage struct {
	Channel string          `json:"channel"`
	Data    json.RawMessage `json:"data"`
}

type subscribeMessage struct {
	Method       string            `json:"method"`
	Subscription map[string]string `json:"subscription,omitempty"`
}

// Feed is a streaming connection to the venue's websocket endpoint.
type Feed struct {
	url       string
	conn      *websocket.Conn
	mu        sync.Mutex
	connected bool
	handlers  map[string]MessageHandler
	done      chan struct{}
	logger    *logrus.Logger
}

// WSURL derives the websocket endpoint from the REST base URL.
func WSURL(api string) string {
	u := strings.TrimRight(api, "/")
	u = strings.Replace(u, "https://", "wss://", 1)
	u = strings.Replace(u, "http://", "ws://", 1)
	return u + "/ws"
}

func NewFeed(url string, logger *logrus.Logger) *Feed {
	return &Feed{
		url:      url,
		handlers: make(map[string]MessageHandler),
		done:     make(chan struct{}),
		logger:   logger,
	}
}

func (f *Feed) Connect(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.connected {
		return nil
	}

	dialer := websocket.Dialer{
		HandshakeTimeout: 10 * time.Second,
	}

	conn, _, err := dialer.DialContext(ctx, f.url, nil)
	if err != nil {
		return fmt.Errorf("%w: websocket dial: %v", ErrNetwork, err)
	}

	f.conn = conn
	f.connected = true

	go f.readLoop(ctx)
	go f.keepAlive(ctx)
	go func() {
		select {
		case <-ctx.Done():
			f.Close()
		case <-f.done:
		}
	}()

	return nil
}

// Done is closed when the read loop exits.
func (f *Feed) Done() <-chan struct{} { return f.done }

func (f *Feed) RegisterHandler(channel string, handler MessageHandler) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.handlers[channel] = handler
}

func (f *Feed) Subscribe(subscription map[string]string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if !f.connected {
		return fmt.Errorf("websocket not connected")
	}
	return f.conn.WriteJSON(subscribeMessage{Method: "subscribe", Subscription: subscription})
}

// SubscribeMids streams the allMids channel, calling fn with mids keyed by
// upper-case symbol.
func (f *Feed) SubscribeMids(fn func(mids map[string]float64)) error {
	f.RegisterHandler("allMids", func(data json.RawMessage) error {
		var payload struct {
			Mids map[string]string `json:"mids"`
		}
		if err := json.Unmarshal(data, &payload); err != nil {
			return fmt.Errorf("%w: allMids: %v", ErrMalformedJSON, err)
		}
		mids := make(map[string]float64, len(payload.Mids))
		for sym, s := range payload.Mids {
			px, err := strconv.ParseFloat(s, 64)
			if err != nil {
				continue
			}
			mids[strings.ToUpper(sym)] = px
		}
		fn(mids)
		return nil
	})
	return f.Subscribe(map[string]string{"type": "allMids"})
}

func (f *Feed) handler(channel string) (MessageHandler, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	h, ok := f.handlers[channel]
	return h, ok
}

func (f *Feed) readLoop(ctx context.Context) {
	defer close(f.done)
	for {
		var msg WSMessage
		if err := f.conn.ReadJSON(&msg); err != nil {
			if ctx.Err() == nil {
				f.logger.WithError(err).Error("Failed to read websocket message")
			}
			f.Close()
			return
		}

		if handler, ok := f.handler(msg.Channel); ok {
			if err := handler(msg.Data); err != nil {
				f.logger.WithError(err).WithField("channel", msg.Channel).Error("Handler error")
			}
		}
	}
}

func (f *Feed) keepAlive(ctx context.Context) {
	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-f.done:
			return
		case <-ticker.C:
			f.mu.Lock()
			if f.connected {
				if err := f.conn.WriteJSON(subscribeMessage{Method: "ping"}); err != nil {
					f.logger.WithError(err).Error("Failed to send ping")
				}
			}
			f.mu.Unlock()
		}
	}
}

func (f *Feed) Close() {
	f.mu.Lock()
	defer f.mu.Unlock()

	if !f.connected {
		return
	}
	f.connected = false
	if f.conn != nil {
		f.conn.Close()
	}
}
