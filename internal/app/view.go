// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"sync"
	"time"

	"github.com/relabs-tech/leveler/internal/connection"
	"github.com/relabs-tech/leveler/internal/render"
	"github.com/relabs-tech/leveler/internal/tilt"
)

// TiltUpdate is everything produced by one inbound reading.
type TiltUpdate struct {
	Time     time.Time
	Snapshot tilt.Snapshot
	Roll     render.Result
	Pitch    render.Result
	RollPNG  []byte
	PitchPNG []byte
	Changed  []tilt.Field
}

// FrameSink receives every rendered update on the connection goroutine.
// Implementations must return within a short, bounded time; the next poll
// is not handled until they do.
type FrameSink interface {
	Publish(u TiltUpdate)
}

// AxisView is the JSON view of one axis.
type AxisView struct {
	AngleDeg     float64 `json:"angle_deg"`
	Text         string  `json:"text"`
	ToleranceDeg float64 `json:"tolerance_deg"`
	BaseLengthMm float64 `json:"base_length_mm"`
	render.Result
}

// TiltMessage is served on /api/tilt and published over MQTT.
type TiltMessage struct {
	Timestamp   time.Time `json:"timestamp"`
	State       string    `json:"state,omitempty"`
	Roll        AxisView  `json:"roll"`
	Pitch       AxisView  `json:"pitch"`
	Calibration struct {
		RollDeviationDeg  float64 `json:"roll_deviation_deg"`
		PitchDeviationDeg float64 `json:"pitch_deviation_deg"`
		WheelbaseMm       float64 `json:"wheelbase_mm"`
		DrawbarMm         float64 `json:"drawbar_mm"`
	} `json:"calibration"`
}

// Message builds the JSON view of u.
func (u TiltUpdate) Message(state string) TiltMessage {
	s := u.Snapshot
	m := TiltMessage{
		Timestamp: u.Time,
		State:     state,
		Roll: AxisView{
			AngleDeg:     s.Telemetry.RollAngleDeg,
			Text:         s.RollText,
			ToleranceDeg: s.Calibration.RollDeviationDeg,
			BaseLengthMm: s.Calibration.WheelbaseMm,
			Result:       u.Roll,
		},
		Pitch: AxisView{
			AngleDeg:     s.Telemetry.PitchAngleDeg,
			Text:         s.PitchText,
			ToleranceDeg: s.Calibration.PitchDeviationDeg,
			BaseLengthMm: s.Calibration.DrawbarMm,
			Result:       u.Pitch,
		},
	}
	m.Calibration.RollDeviationDeg = s.Calibration.RollDeviationDeg
	m.Calibration.PitchDeviationDeg = s.Calibration.PitchDeviationDeg
	m.Calibration.WheelbaseMm = s.Calibration.WheelbaseMm
	m.Calibration.DrawbarMm = s.Calibration.DrawbarMm
	return m
}

// ViewStore keeps the latest update for the view server and the console.
type ViewStore struct {
	mu     sync.RWMutex
	last   TiltUpdate
	have   bool
	state  connection.State
	frames uint64
}

func NewViewStore() *ViewStore { return &ViewStore{} }

func (s *ViewStore) Publish(u TiltUpdate) {
	s.mu.Lock()
	s.last = u
	s.have = true
	s.frames++
	s.mu.Unlock()
}

// SetState records the connection state. It matches
// connection.Options.OnStateChange.
func (s *ViewStore) SetState(st connection.State) {
	s.mu.Lock()
	s.state = st
	s.mu.Unlock()
}

// Latest returns the last update and whether there is one.
func (s *ViewStore) Latest() (TiltUpdate, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.last, s.have
}

// State returns the last recorded connection state.
func (s *ViewStore) State() connection.State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

// Frames returns how many updates have been published.
func (s *ViewStore) Frames() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.frames
}
