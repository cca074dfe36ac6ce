// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package connection

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// WebSocketDialer dials the device with gorilla/websocket.
type WebSocketDialer struct {
	Dialer       *websocket.Dialer // defaults to websocket.DefaultDialer
	WriteTimeout time.Duration     // 0 means no deadline
}

func (d WebSocketDialer) Dial(ctx context.Context, url string) (Conn, error) {
	dialer := d.Dialer
	if dialer == nil {
		dialer = websocket.DefaultDialer
	}
	c := &wsConn{
		events:       make(chan Event, 16),
		closed:       make(chan struct{}),
		writeTimeout: d.WriteTimeout,
	}
	go c.run(ctx, dialer, url)
	return c, nil
}

type wsConn struct {
	events       chan Event
	closed       chan struct{}
	closeOnce    sync.Once
	writeTimeout time.Duration

	mu sync.Mutex
	ws *websocket.Conn
}

func (c *wsConn) Events() <-chan Event { return c.events }

func (c *wsConn) run(ctx context.Context, dialer *websocket.Dialer, url string) {
	defer close(c.events)

	ws, _, err := dialer.DialContext(ctx, url, nil)
	if err != nil {
		c.emit(Event{Kind: EventClosed, Err: err})
		return
	}

	c.mu.Lock()
	select {
	case <-c.closed:
		c.mu.Unlock()
		ws.Close()
		return
	default:
	}
	c.ws = ws
	c.mu.Unlock()

	c.emit(Event{Kind: EventOpened})

	for {
		mt, data, err := ws.ReadMessage()
		if err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				err = nil
			}
			c.emit(Event{Kind: EventClosed, Err: err})
			return
		}
		if mt != websocket.TextMessage {
			continue
		}
		if !c.emit(Event{Kind: EventMessage, Data: data}) {
			return
		}
	}
}

// emit delivers ev unless the connection was closed by its owner.
func (c *wsConn) emit(ev Event) bool {
	select {
	case c.events <- ev:
		return true
	case <-c.closed:
		return false
	}
}

func (c *wsConn) Send(text string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.ws == nil {
		return errors.New("websocket not established")
	}
	if c.writeTimeout > 0 {
		if err := c.ws.SetWriteDeadline(time.Now().Add(c.writeTimeout)); err != nil {
			return err
		}
	}
	return c.ws.WriteMessage(websocket.TextMessage, []byte(text))
}

func (c *wsConn) Close() error {
	var err error
	c.closeOnce.Do(func() {
		close(c.closed)
		c.mu.Lock()
		defer c.mu.Unlock()
		if c.ws != nil {
			_ = c.ws.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
				time.Now().Add(time.Second))
			err = c.ws.Close()
		}
	})
	return err
}
