// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package connection

import "github.com/prometheus/client_golang/prometheus"

// Metrics are the connection counters exported on /metrics. A nil *Metrics
// records nothing.
type Metrics struct {
	state        prometheus.Gauge
	reconnects   prometheus.Counter
	polls        prometheus.Counter
	messages     prometheus.Counter
	sendFailures prometheus.Counter
	decodeErrors prometheus.Counter
}

// NewMetrics registers the connection metrics on reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		state: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "leveler",
			Name:      "connection_state",
			Help:      "Device connection state (0=disconnected, 1=connecting, 2=open).",
		}),
		reconnects: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "leveler",
			Name:      "reconnects_scheduled_total",
			Help:      "Reconnect attempts scheduled after a close or error.",
		}),
		polls: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "leveler",
			Name:      "polls_sent_total",
			Help:      "Poll requests written to the device.",
		}),
		messages: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "leveler",
			Name:      "messages_received_total",
			Help:      "Text messages received from the device.",
		}),
		sendFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "leveler",
			Name:      "send_failures_total",
			Help:      "Writes to the device that failed or were refused.",
		}),
		decodeErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "leveler",
			Name:      "decode_errors_total",
			Help:      "Inbound messages discarded because they did not decode.",
		}),
	}
	reg.MustRegister(m.state, m.reconnects, m.polls, m.messages, m.sendFailures, m.decodeErrors)
	return m
}

func (m *Metrics) setState(s State) {
	if m != nil {
		m.state.Set(float64(s))
	}
}

func (m *Metrics) reconnectScheduled() {
	if m != nil {
		m.reconnects.Inc()
	}
}

func (m *Metrics) pollSent() {
	if m != nil {
		m.polls.Inc()
	}
}

func (m *Metrics) messageReceived() {
	if m != nil {
		m.messages.Inc()
	}
}

func (m *Metrics) sendFailed() {
	if m != nil {
		m.sendFailures.Inc()
	}
}

// DecodeError counts a discarded inbound message.
func (m *Metrics) DecodeError() {
	if m != nil {
		m.decodeErrors.Inc()
	}
}
