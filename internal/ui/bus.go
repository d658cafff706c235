package ui

import (
	"context"
	"encoding/json"
	"fmt"
	log "log/slog"
	"net/url"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const (
	KindDisplay = "display"
	KindText    = "text"
	KindListen  = "listen"

	busName      = "dollar"
	writeTimeout = 5 * time.Second
	displayQueue = 16
)

// BusMessage is one frame on the hub.
type BusMessage struct {
	From    string `json:"from"`
	To      string `json:"to"`
	Kind    string `json:"kind"`
	Content string `json:"content"`
}

// Bus mirrors display updates to a websocket hub and accepts triggers
// from it.
type Bus struct {
	conn *websocket.Conn
	wmu  sync.Mutex

	display   chan string
	done      chan struct{}
	closeOnce sync.Once
}

func DialBus(ctx context.Context, wsURL string) (*Bus, error) {
	u, err := url.Parse(wsURL)
	if err != nil {
		return nil, fmt.Errorf("parse bus url: %w", err)
	}

	conn, _, err := websocket.DefaultDialer.DialContext(ctx, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("dial bus: %w", err)
	}

	log.Info("Connected to bus", "url", wsURL)
	b := &Bus{
		conn:    conn,
		display: make(chan string, displayQueue),
		done:    make(chan struct{}),
	}
	go b.mirror()
	return b, nil
}

// SetText queues a display update for the hub and returns at once. Updates
// go out in order; when the hub falls behind the queue overflows and the
// update is dropped.
func (b *Bus) SetText(text string) {
	select {
	case <-b.done:
	case b.display <- text:
	default:
		log.Warn("Bus is slow, dropping display update")
	}
}

func (b *Bus) mirror() {
	for {
		select {
		case <-b.done:
			return
		case text := <-b.display:
			if err := b.Write(&BusMessage{From: busName, Kind: KindDisplay, Content: text}); err != nil {
				log.Warn("Failed to mirror display", "err", err)
			}
		}
	}
}

func (b *Bus) Write(m *BusMessage) error {
	data, err := json.Marshal(m)
	if err != nil {
		return err
	}

	b.wmu.Lock()
	defer b.wmu.Unlock()
	_ = b.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	return b.conn.WriteMessage(websocket.TextMessage, data)
}

// Run reads until the connection fails or ctx is done, passing messages
// addressed to this assistant (or to nobody) to handle.
func (b *Bus) Run(ctx context.Context, handle func(BusMessage)) error {
	stop := context.AfterFunc(ctx, func() { b.conn.Close() })
	defer stop()

	for {
		_, data, err := b.conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return fmt.Errorf("bus read: %w", err)
		}

		var m BusMessage
		if err := json.Unmarshal(data, &m); err != nil {
			log.Warn("Failed to parse bus message", "msg", string(data), "err", err)
			continue
		}
		if m.From == busName || (m.To != "" && m.To != busName) {
			continue
		}
		handle(m)
	}
}

func (b *Bus) Close() error {
	b.closeOnce.Do(func() { close(b.done) })
	return b.conn.Close()
}
