// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package protocol implements the JSON wire format spoken by the leveling
// sensor's websocket endpoint.
//
// Every numeric value travels as a JSON string in both directions. The
// device firmware depends on that, and on the key order of calibration
// updates, so both are kept exactly as the device expects them.
package protocol

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// PollRequest is the literal text the client sends to ask for a reading.
const PollRequest = "getValues"

// Inbound keys.
const (
	KeyRollValue      = "rollValue"
	KeyPitchValue     = "pitchValue"
	KeyRollDeviation  = "rollDeviation"
	KeyPitchDeviation = "pitchDeviation"
	KeyWheelbase      = "wheelbase"
	KeyDrawbar        = "drawbar"
	KeyZeroAngles     = "zeroAngles"
)

var (
	// ErrProtocolDecode is wrapped by every inbound decode failure.
	ErrProtocolDecode = errors.New("protocol decode error")
	// ErrInvalidField is returned when a calibration update carries a
	// value that is not a number.
	ErrInvalidField = errors.New("invalid calibration field")
)

// DecodeError describes why an inbound message was rejected.
type DecodeError struct {
	Key string // empty when the message was not valid JSON
	Err error
}

func (e *DecodeError) Error() string {
	if e.Key == "" {
		return fmt.Sprintf("%v: %v", ErrProtocolDecode, e.Err)
	}
	return fmt.Sprintf("%v: key %q: %v", ErrProtocolDecode, e.Key, e.Err)
}

func (e *DecodeError) Unwrap() []error { return []error{ErrProtocolDecode, e.Err} }

// TelemetrySample is the device's current tilt.
type TelemetrySample struct {
	RollAngleDeg  float64 `json:"roll_angle_deg"`
	PitchAngleDeg float64 `json:"pitch_angle_deg"`
}

// CalibrationState is the tolerance and geometry configuration the device reports.
type CalibrationState struct {
	RollDeviationDeg  float64 `json:"roll_deviation_deg"`
	PitchDeviationDeg float64 `json:"pitch_deviation_deg"`
	WheelbaseMm       float64 `json:"wheelbase_mm"`
	DrawbarMm         float64 `json:"drawbar_mm"`
}

// Reading is one decoded telemetry reply.
type Reading struct {
	Telemetry   TelemetrySample
	Calibration CalibrationState
}

// CalibrationUpdate is what the operator proposes to the device. Numeric
// fields are kept as the text the operator typed.
type CalibrationUpdate struct {
	RollDeviation  string
	PitchDeviation string
	Wheelbase      string
	Drawbar        string
	ZeroAngles     bool
}

// wireCalibration field order is the wire key order.
type wireCalibration struct {
	RollDeviation  string `json:"rollDeviation"`
	PitchDeviation string `json:"pitchDeviation"`
	Wheelbase      string `json:"wheelbase"`
	Drawbar        string `json:"drawbar"`
	ZeroAngles     string `json:"zeroAngles"`
}

// wireNumber accepts a numeric string ("2.0") or a bare JSON number.
type wireNumber float64

func (n *wireNumber) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		v, err := ParseNumber(s)
		if err != nil {
			return err
		}
		*n = wireNumber(v)
		return nil
	}
	var v float64
	if err := json.Unmarshal(b, &v); err != nil {
		return fmt.Errorf("not a number: %s", b)
	}
	*n = wireNumber(v)
	return nil
}

// Decode parses one inbound telemetry message. On error the returned
// Reading is the zero value and must not be applied.
func Decode(data []byte) (Reading, error) {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return Reading{}, &DecodeError{Err: err}
	}

	var r Reading
	for _, f := range []struct {
		key string
		dst *float64
	}{
		{KeyRollValue, &r.Telemetry.RollAngleDeg},
		{KeyPitchValue, &r.Telemetry.PitchAngleDeg},
		{KeyRollDeviation, &r.Calibration.RollDeviationDeg},
		{KeyPitchDeviation, &r.Calibration.PitchDeviationDeg},
		{KeyWheelbase, &r.Calibration.WheelbaseMm},
		{KeyDrawbar, &r.Calibration.DrawbarMm},
	} {
		v, ok := raw[f.key]
		if !ok || string(bytes.TrimSpace(v)) == "null" {
			return Reading{}, &DecodeError{Key: f.key, Err: errors.New("missing")}
		}
		var n wireNumber
		if err := n.UnmarshalJSON(v); err != nil {
			return Reading{}, &DecodeError{Key: f.key, Err: err}
		}
		*f.dst = float64(n)
	}
	return r, nil
}

// EncodeCalibration renders a calibration update in the exact shape the
// device expects, e.g.
//
//	{"rollDeviation":"2.0","pitchDeviation":"2.0","wheelbase":"2000","drawbar":"4000","zeroAngles":"true"}
func EncodeCalibration(u CalibrationUpdate) ([]byte, error) {
	w := wireCalibration{
		RollDeviation:  strings.TrimSpace(u.RollDeviation),
		PitchDeviation: strings.TrimSpace(u.PitchDeviation),
		Wheelbase:      strings.TrimSpace(u.Wheelbase),
		Drawbar:        strings.TrimSpace(u.Drawbar),
		ZeroAngles:     strconv.FormatBool(u.ZeroAngles),
	}
	for _, f := range [][2]string{
		{KeyRollDeviation, w.RollDeviation},
		{KeyPitchDeviation, w.PitchDeviation},
		{KeyWheelbase, w.Wheelbase},
		{KeyDrawbar, w.Drawbar},
	} {
		if _, err := ParseNumber(f[1]); err != nil {
			return nil, fmt.Errorf("%w: %s: %v", ErrInvalidField, f[0], err)
		}
	}
	return json.Marshal(w)
}

// DecodeCalibration parses a calibration update as the device receives it.
func DecodeCalibration(data []byte) (CalibrationUpdate, error) {
	var w wireCalibration
	if err := json.Unmarshal(data, &w); err != nil {
		return CalibrationUpdate{}, &DecodeError{Err: err}
	}
	zero, err := strconv.ParseBool(w.ZeroAngles)
	if err != nil {
		return CalibrationUpdate{}, &DecodeError{Key: KeyZeroAngles, Err: err}
	}
	u := CalibrationUpdate{
		RollDeviation:  w.RollDeviation,
		PitchDeviation: w.PitchDeviation,
		Wheelbase:      w.Wheelbase,
		Drawbar:        w.Drawbar,
		ZeroAngles:     zero,
	}
	for _, f := range [][2]string{
		{KeyRollDeviation, u.RollDeviation},
		{KeyPitchDeviation, u.PitchDeviation},
		{KeyWheelbase, u.Wheelbase},
		{KeyDrawbar, u.Drawbar},
	} {
		if _, err := ParseNumber(f[1]); err != nil {
			return CalibrationUpdate{}, &DecodeError{Key: f[0], Err: err}
		}
	}
	return u, nil
}

// EncodeReading renders a reading in the inbound shape. Angles and
// deviations carry one decimal, lengths none, as the device formats them.
func EncodeReading(r Reading) ([]byte, error) {
	// Key order follows the device firmware's output.
	var buf bytes.Buffer
	buf.WriteByte('{')
	pairs := []struct {
		key  string
		val  float64
		prec int
	}{
		{KeyRollValue, r.Telemetry.RollAngleDeg, 1},
		{KeyPitchValue, r.Telemetry.PitchAngleDeg, 1},
		{KeyRollDeviation, r.Calibration.RollDeviationDeg, 1},
		{KeyPitchDeviation, r.Calibration.PitchDeviationDeg, 1},
		{KeyWheelbase, r.Calibration.WheelbaseMm, 0},
		{KeyDrawbar, r.Calibration.DrawbarMm, 0},
	}
	for i, p := range pairs {
		if i > 0 {
			buf.WriteByte(',')
		}
		fmt.Fprintf(&buf, "%q:%q", p.key, strconv.FormatFloat(p.val, 'f', p.prec, 64))
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// ParseNumber parses a wire numeric string. NaN and infinities are rejected.
func ParseNumber(s string) (float64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, errors.New("empty value")
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, fmt.Errorf("not a number: %q", s)
	}
	return v, nil
}
