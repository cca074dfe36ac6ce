// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package connection

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/relabs-tech/leveler/internal/protocol"
)

const (
	DefaultPollInterval   = 300 * time.Millisecond
	DefaultReconnectDelay = 2000 * time.Millisecond
)

// MessageHandler receives every inbound text payload, in arrival order, on
// the manager's goroutine.
type MessageHandler interface {
	HandleMessage(data []byte)
}

// HandlerFunc adapts a function to MessageHandler.
type HandlerFunc func(data []byte)

func (f HandlerFunc) HandleMessage(data []byte) { f(data) }

// Options configure a Manager. URL and Dialer are required.
type Options struct {
	URL            string
	Dialer         Dialer
	Scheduler      Scheduler // defaults to SystemScheduler
	Handler        MessageHandler
	PollInterval   time.Duration // defaults to DefaultPollInterval
	ReconnectDelay time.Duration // defaults to DefaultReconnectDelay
	Logger         *slog.Logger
	Metrics        *Metrics
	// OnStateChange is called on the manager's goroutine after every transition.
	OnStateChange func(State)
}

type sendRequest struct {
	text  string
	reply chan error
}

// Manager owns the device connection. All of its work (events, poll ticks,
// the reconnect timer and outbound sends) runs on the goroutine that calls
// Run, one item at a time.
type Manager struct {
	opts   Options
	logger *slog.Logger

	state   atomic.Int32
	running atomic.Bool

	// owned by the Run goroutine
	conn      Conn
	events    <-chan Event
	poll      ScheduledTask
	reconnect ScheduledTask

	sendCh chan sendRequest
	done   chan struct{}
}

// NewManager returns a manager in the Disconnected state.
func NewManager(opts Options) *Manager {
	if opts.Scheduler == nil {
		opts.Scheduler = SystemScheduler{}
	}
	if opts.PollInterval <= 0 {
		opts.PollInterval = DefaultPollInterval
	}
	if opts.ReconnectDelay <= 0 {
		opts.ReconnectDelay = DefaultReconnectDelay
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	m := &Manager{
		opts:   opts,
		logger: logger.With("component", "connection", "url", opts.URL),
		sendCh: make(chan sendRequest),
		done:   make(chan struct{}),
	}
	opts.Metrics.setState(Disconnected)
	return m
}

// State returns the current state. Safe from any goroutine.
func (m *Manager) State() State { return State(m.state.Load()) }

// Run connects and keeps the connection alive until ctx is cancelled.
// It returns ctx.Err(). Run may only be called once.
func (m *Manager) Run(ctx context.Context) error {
	if m.opts.Dialer == nil {
		return errors.New("connection: no dialer")
	}
	if !m.running.CompareAndSwap(false, true) {
		return errors.New("connection: manager already running")
	}
	defer close(m.done)
	defer m.shutdown()

	m.start(ctx)
	for {
		var pollC, reconnectC <-chan time.Time
		if m.poll != nil {
			pollC = m.poll.C()
		}
		if m.reconnect != nil {
			reconnectC = m.reconnect.C()
		}

		select {
		case <-ctx.Done():
			return ctx.Err()

		case ev, ok := <-m.events:
			if !ok {
				m.closed(errors.New("event stream ended"))
				continue
			}
			m.handle(ev)

		case <-pollC:
			m.sendPoll()

		case <-reconnectC:
			m.reconnect = nil
			m.start(ctx)

		case req := <-m.sendCh:
			req.reply <- m.send(req.text)
		}
	}
}

// Send writes text to the device. It fails fast with ErrNotOpen unless the
// connection is open.
func (m *Manager) Send(ctx context.Context, text string) error {
	if s := m.State(); s != Open {
		m.opts.Metrics.sendFailed()
		return fmt.Errorf("%w (state %s)", ErrNotOpen, s)
	}
	reply := make(chan error, 1)
	select {
	case m.sendCh <- sendRequest{text: text, reply: reply}:
	case <-m.done:
		return ErrStopped
	case <-ctx.Done():
		return ctx.Err()
	}
	return <-reply
}

func (m *Manager) start(ctx context.Context) {
	m.setState(Connecting)
	m.logger.Info("opening websocket connection")

	conn, err := m.opts.Dialer.Dial(ctx, m.opts.URL)
	if err != nil {
		m.closed(err)
		return
	}
	m.conn = conn
	m.events = conn.Events()
}

func (m *Manager) handle(ev Event) {
	switch ev.Kind {
	case EventOpened:
		if m.State() != Connecting {
			return
		}
		m.setState(Open)
		m.logger.Info("connection opened")
		m.cancelPoll()
		m.poll = m.opts.Scheduler.Every(m.opts.PollInterval)

	case EventMessage:
		m.opts.Metrics.messageReceived()
		if m.opts.Handler != nil {
			m.opts.Handler.HandleMessage(ev.Data)
		}

	case EventClosed:
		m.closed(ev.Err)
	}
}

// closed handles a close or an error from any state.
func (m *Manager) closed(err error) {
	if err != nil {
		m.logger.Warn("connection closed", "error", err)
	} else {
		m.logger.Info("connection closed")
	}

	m.setState(Disconnected)
	m.cancelPoll()
	m.dropConn()

	if m.reconnect != nil {
		m.reconnect.Cancel()
	}
	m.reconnect = m.opts.Scheduler.After(m.opts.ReconnectDelay)
	m.opts.Metrics.reconnectScheduled()
	m.logger.Info("reconnect scheduled", "delay", m.opts.ReconnectDelay)
}

func (m *Manager) sendPoll() {
	if m.State() != Open {
		return
	}
	if err := m.conn.Send(protocol.PollRequest); err != nil {
		m.opts.Metrics.sendFailed()
		m.logger.Warn("poll failed", "error", err)
		return
	}
	m.opts.Metrics.pollSent()
}

func (m *Manager) send(text string) error {
	if s := m.State(); s != Open {
		m.opts.Metrics.sendFailed()
		return fmt.Errorf("%w (state %s)", ErrNotOpen, s)
	}
	if err := m.conn.Send(text); err != nil {
		m.opts.Metrics.sendFailed()
		return fmt.Errorf("send: %w", err)
	}
	return nil
}

func (m *Manager) cancelPoll() {
	if m.poll != nil {
		m.poll.Cancel()
		m.poll = nil
	}
}

func (m *Manager) dropConn() {
	if m.conn != nil {
		if err := m.conn.Close(); err != nil {
			m.logger.Debug("close connection", "error", err)
		}
	}
	m.conn = nil
	m.events = nil
}

func (m *Manager) shutdown() {
	m.cancelPoll()
	if m.reconnect != nil {
		m.reconnect.Cancel()
		m.reconnect = nil
	}
	m.dropConn()
	m.setState(Disconnected)
	m.logger.Info("connection manager stopped")
}

func (m *Manager) setState(s State) {
	if State(m.state.Swap(int32(s))) == s {
		return
	}
	m.opts.Metrics.setState(s)
	if m.opts.OnStateChange != nil {
		m.opts.OnStateChange(s)
	}
}
