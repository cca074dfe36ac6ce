// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"context"
	"log/slog"
	"net/http"
	"sync"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/relabs-tech/leveler/internal/config"
	"github.com/relabs-tech/leveler/internal/orientation"
	"github.com/relabs-tech/leveler/internal/protocol"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // Allow all origins for local development
	},
}

// DefaultMockCalibration is what a freshly started mock device reports.
var DefaultMockCalibration = protocol.CalibrationState{
	RollDeviationDeg:  1.0,
	PitchDeviationDeg: 1.0,
	WheelbaseMm:       2000,
	DrawbarMm:         4000,
}

// MockDevice speaks the device side of the leveler protocol: it answers
// every poll with the current pose and stores calibration updates.
type MockDevice struct {
	src    orientation.Source
	logger *slog.Logger

	mu   sync.Mutex
	cal  protocol.CalibrationState
	zero orientation.Pose
}

// NewMockDevice returns a device reading poses from src.
func NewMockDevice(src orientation.Source, cal protocol.CalibrationState, logger *slog.Logger) *MockDevice {
	return &MockDevice{src: src, cal: cal, logger: logger.With("component", "mock-device")}
}

// Calibration returns the stored calibration.
func (d *MockDevice) Calibration() protocol.CalibrationState {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.cal
}

// reading returns the pose relative to the last zeroing, with the stored
// calibration.
func (d *MockDevice) reading() ([]byte, error) {
	pose, err := d.src.Next()
	if err != nil {
		return nil, err
	}
	d.mu.Lock()
	rel := pose.Sub(d.zero)
	cal := d.cal
	d.mu.Unlock()

	return protocol.EncodeReading(protocol.Reading{
		Telemetry:   protocol.TelemetrySample{RollAngleDeg: rel.Roll, PitchAngleDeg: rel.Pitch},
		Calibration: cal,
	})
}

// apply stores a calibration update. Zeroing makes the current pose the new
// reference.
func (d *MockDevice) apply(u protocol.CalibrationUpdate) error {
	var next protocol.CalibrationState
	for _, f := range []struct {
		text string
		dst  *float64
	}{
		{u.RollDeviation, &next.RollDeviationDeg},
		{u.PitchDeviation, &next.PitchDeviationDeg},
		{u.Wheelbase, &next.WheelbaseMm},
		{u.Drawbar, &next.DrawbarMm},
	} {
		v, err := protocol.ParseNumber(f.text)
		if err != nil {
			return err
		}
		*f.dst = v
	}

	var pose orientation.Pose
	if u.ZeroAngles {
		p, err := d.src.Next()
		if err != nil {
			return err
		}
		pose = p
	}

	d.mu.Lock()
	d.cal = next
	if u.ZeroAngles {
		d.zero = pose
	}
	d.mu.Unlock()
	return nil
}

// HandleWS serves one client connection.
func (d *MockDevice) HandleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		d.logger.Warn("websocket upgrade error", "error", err)
		return
	}
	defer conn.Close()

	logger := d.logger.With("session", uuid.NewString(), "remote", r.RemoteAddr)
	logger.Info("client connected")

	for {
		msgType, data, err := conn.ReadMessage()
		if err != nil {
			logger.Info("client disconnected", "error", err)
			return
		}
		if msgType != websocket.TextMessage {
			continue
		}

		if string(data) == protocol.PollRequest {
			reply, err := d.reading()
			if err != nil {
				logger.Error("read pose", "error", err)
				return
			}
			if err := conn.WriteMessage(websocket.TextMessage, reply); err != nil {
				logger.Info("write failed", "error", err)
				return
			}
			continue
		}

		update, err := protocol.DecodeCalibration(data)
		if err != nil {
			logger.Warn("ignoring message", "error", err)
			continue
		}
		if err := d.apply(update); err != nil {
			logger.Warn("calibration rejected", "error", err)
			continue
		}
		logger.Info("calibration applied",
			"rollDeviation", update.RollDeviation,
			"pitchDeviation", update.PitchDeviation,
			"wheelbase", update.Wheelbase,
			"drawbar", update.Drawbar,
			"zeroAngles", update.ZeroAngles)
	}
}

// RunMockDevice serves a simulated device on cfg.MockDeviceAddr until ctx is
// done.
func RunMockDevice(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	device := NewMockDevice(orientation.NewMockSource(), DefaultMockCalibration, logger)

	mux := http.NewServeMux()
	mux.HandleFunc(cfg.DeviceWSPath, device.HandleWS)

	srv := &http.Server{Addr: cfg.MockDeviceAddr, Handler: mux}
	return serveHTTP(ctx, srv, logger.With("component", "mock-device"))
}
