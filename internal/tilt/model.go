// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package tilt

import (
	"math"
	"strconv"

	"github.com/relabs-tech/leveler/internal/protocol"
)

// Field identifies one calibration value reported by the device.
type Field int

const (
	FieldRollDeviation Field = iota
	FieldPitchDeviation
	FieldWheelbase
	FieldDrawbar
)

func (f Field) String() string {
	switch f {
	case FieldRollDeviation:
		return "rollDeviation"
	case FieldPitchDeviation:
		return "pitchDeviation"
	case FieldWheelbase:
		return "wheelbase"
	case FieldDrawbar:
		return "drawbar"
	default:
		return "unknown"
	}
}

// Fields lists every calibration field in wire order.
var Fields = []Field{FieldRollDeviation, FieldPitchDeviation, FieldWheelbase, FieldDrawbar}

// Defaults used until the device reports its own values.
const (
	DefaultWheelbaseMm = 2000
	DefaultDrawbarMm   = 4000
)

// Snapshot is an immutable copy of the model state.
type Snapshot struct {
	Calibration protocol.CalibrationState `json:"calibration"`
	Telemetry   protocol.TelemetrySample  `json:"telemetry"`
	RollText    string                    `json:"roll_text"`
	PitchText   string                    `json:"pitch_text"`
	HaveSample  bool                      `json:"have_sample"`
}

// Change reports which calibration fields an update modified.
type Change struct {
	Fields []Field
}

// Has reports whether f changed.
func (c Change) Has(f Field) bool {
	for _, x := range c.Fields {
		if x == f {
			return true
		}
	}
	return false
}

// Empty reports whether no calibration field changed.
func (c Change) Empty() bool { return len(c.Fields) == 0 }

// Model holds the latest device state. It is owned by a single goroutine
// and is not safe for concurrent use; hand Snapshot values to other
// goroutines instead.
type Model struct {
	state Snapshot
}

// NewModel returns a model holding the defaults shown before the first reading.
func NewModel() *Model {
	return &Model{state: Snapshot{
		Calibration: protocol.CalibrationState{
			WheelbaseMm: DefaultWheelbaseMm,
			DrawbarMm:   DefaultDrawbarMm,
		},
		RollText:  FormatAngle(0),
		PitchText: FormatAngle(0),
	}}
}

// Update applies a decoded reading. The sample always replaces the previous
// one; calibration fields are written only when they differ from the stored
// value.
func (m *Model) Update(r protocol.Reading) Change {
	m.state.Telemetry = r.Telemetry
	m.state.RollText = FormatAngle(r.Telemetry.RollAngleDeg)
	m.state.PitchText = FormatAngle(r.Telemetry.PitchAngleDeg)
	m.state.HaveSample = true

	var ch Change
	set := func(f Field, dst *float64, v float64) {
		if math.Float64bits(*dst) == math.Float64bits(v) {
			return
		}
		*dst = v
		ch.Fields = append(ch.Fields, f)
	}
	c := &m.state.Calibration
	set(FieldRollDeviation, &c.RollDeviationDeg, r.Calibration.RollDeviationDeg)
	set(FieldPitchDeviation, &c.PitchDeviationDeg, r.Calibration.PitchDeviationDeg)
	set(FieldWheelbase, &c.WheelbaseMm, r.Calibration.WheelbaseMm)
	set(FieldDrawbar, &c.DrawbarMm, r.Calibration.DrawbarMm)
	return ch
}

// Snapshot returns a copy of the current state.
func (m *Model) Snapshot() Snapshot { return m.state }

// FormatAngle renders an angle with one decimal. Values inside (-0.1, 0.1)
// render as "0.0" so a signed zero never shows.
func FormatAngle(deg float64) string {
	if math.Abs(deg) < 0.1 {
		return "0.0"
	}
	return strconv.FormatFloat(deg, 'f', 1, 64)
}

// FieldValue returns the stored value of f.
func FieldValue(c protocol.CalibrationState, f Field) float64 {
	switch f {
	case FieldRollDeviation:
		return c.RollDeviationDeg
	case FieldPitchDeviation:
		return c.PitchDeviationDeg
	case FieldWheelbase:
		return c.WheelbaseMm
	case FieldDrawbar:
		return c.DrawbarMm
	}
	return 0
}
