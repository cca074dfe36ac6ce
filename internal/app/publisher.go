// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"

	"github.com/relabs-tech/leveler/internal/config"
)

const publishTimeout = 250 * time.Millisecond

// publishClient is the part of mqtt.Client the publisher uses.
type publishClient interface {
	Publish(topic string, qos byte, retained bool, payload interface{}) mqtt.Token
}

// Publisher mirrors every update to an MQTT topic as a retained TiltMessage.
type Publisher struct {
	client publishClient
	topic  string
	state  func() string
	logger *slog.Logger
}

// NewPublisher wraps an already connected client. state may be nil.
func NewPublisher(client publishClient, topic string, state func() string, logger *slog.Logger) *Publisher {
	return &Publisher{client: client, topic: topic, state: state, logger: logger.With("component", "mqtt", "topic", topic)}
}

// Publish implements FrameSink. A slow or absent broker costs at most
// publishTimeout per update.
func (p *Publisher) Publish(u TiltUpdate) {
	state := ""
	if p.state != nil {
		state = p.state()
	}
	payload, err := json.Marshal(u.Message(state))
	if err != nil {
		p.logger.Warn("json marshal error", "error", err)
		return
	}
	token := p.client.Publish(p.topic, 0, true, payload)
	if !token.WaitTimeout(publishTimeout) {
		p.logger.Debug("mqtt publish pending")
		return
	}
	if err := token.Error(); err != nil {
		p.logger.Warn("mqtt publish error", "error", err)
	}
}

// clientID appends a random suffix so several instances can share a broker.
func clientID(base string) string {
	return fmt.Sprintf("%s-%s", base, uuid.NewString()[:8])
}

// connectMQTT connects to cfg.MQTTBroker. The client keeps retrying in the
// background when the broker is not reachable yet. onConnect, if set, runs
// after every (re)connect.
func connectMQTT(cfg *config.Config, suffix string, logger *slog.Logger, onConnect func(mqtt.Client)) mqtt.Client {
	opts := mqtt.NewClientOptions().
		AddBroker(cfg.MQTTBroker).
		SetClientID(clientID(cfg.MQTTClientID + suffix)).
		SetAutoReconnect(true).
		SetConnectRetry(true).
		SetConnectRetryInterval(cfg.ReconnectDelay).
		SetOnConnectHandler(func(c mqtt.Client) {
			logger.Info("connected to MQTT broker", "broker", cfg.MQTTBroker)
			if onConnect != nil {
				onConnect(c)
			}
		}).
		SetConnectionLostHandler(func(_ mqtt.Client, err error) {
			logger.Warn("MQTT connection lost", "error", err)
		})

	client := mqtt.NewClient(opts)
	client.Connect()
	return client
}
