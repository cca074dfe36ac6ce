// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package connection keeps the websocket to the leveling sensor alive: it
// connects, polls at a fixed interval while open, and reconnects after a
// fixed delay whenever the connection closes or fails.
package connection

import (
	"context"
	"errors"
	"net/url"
	"strings"
)

var (
	// ErrNotOpen is returned by Send while the connection is not open.
	// Nothing is queued.
	ErrNotOpen = errors.New("connection not open")
	// ErrStopped is returned by Send once the manager has stopped.
	ErrStopped = errors.New("connection manager stopped")
)

// State is the lifecycle state of the device connection.
type State int32

const (
	Disconnected State = iota
	Connecting
	Open
)

func (s State) String() string {
	switch s {
	case Disconnected:
		return "disconnected"
	case Connecting:
		return "connecting"
	case Open:
		return "open"
	default:
		return "unknown"
	}
}

// EventKind tells what happened on a connection.
type EventKind int

const (
	EventOpened EventKind = iota
	EventMessage
	EventClosed
)

func (k EventKind) String() string {
	switch k {
	case EventOpened:
		return "opened"
	case EventMessage:
		return "message"
	case EventClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// Event is delivered on a Conn's event channel.
type Event struct {
	Kind EventKind
	Data []byte // EventMessage only
	Err  error  // EventClosed only; nil for a clean close
}

// Conn is one connection attempt. Dial returns it before the connection is
// established; EventOpened or EventClosed follows on Events.
type Conn interface {
	Events() <-chan Event
	// Send writes one text frame.
	Send(text string) error
	// Close tears the connection down. No events are delivered afterwards.
	Close() error
}

// Dialer starts connection attempts.
type Dialer interface {
	Dial(ctx context.Context, url string) (Conn, error)
}

// DeviceURL returns the websocket endpoint for host, e.g. ws://192.168.4.1/ws.
func DeviceURL(host, path string) string {
	if path == "" {
		path = "/ws"
	}
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	u := url.URL{Scheme: "ws", Host: host, Path: path}
	return u.String()
}
