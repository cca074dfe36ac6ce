// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/relabs-tech/leveler/internal/config"
)

// RunMonitor subscribes to the tilt topic and prints one line per message
// until ctx is done.
func RunMonitor(ctx context.Context, cfg *config.Config, logger *slog.Logger, out io.Writer) error {
	if cfg.MQTTBroker == "" {
		return errors.New("monitor: MQTT_BROKER is not configured")
	}
	logger = logger.With("component", "monitor")

	onMessage := func(_ mqtt.Client, msg mqtt.Message) {
		line, err := monitorLine(msg.Payload())
		if err != nil {
			logger.Warn("tilt unmarshal error", "error", err)
			return
		}
		fmt.Fprintln(out, line)
	}

	client := connectMQTT(cfg, "-monitor", logger, func(c mqtt.Client) {
		token := c.Subscribe(cfg.TopicTilt, 0, onMessage)
		token.Wait()
		if token.Error() != nil {
			logger.Error("subscribe failed", "topic", cfg.TopicTilt, "error", token.Error())
			return
		}
		logger.Info("subscribed", "topic", cfg.TopicTilt)
	})

	<-ctx.Done()
	logger.Info("shutting down")
	client.Disconnect(250)
	return nil
}

func monitorLine(payload []byte) (string, error) {
	var m TiltMessage
	if err := json.Unmarshal(payload, &m); err != nil {
		return "", err
	}
	return fmt.Sprintf(
		"[TILT] ROLL=%6s° %-16s (%s)  PITCH=%6s° %-12s (%s)  state=%s",
		m.Roll.Text, m.Roll.Adjustment.Text, m.Roll.ZoneName,
		m.Pitch.Text, m.Pitch.Adjustment.Text, m.Pitch.ZoneName,
		m.State,
	), nil
}
