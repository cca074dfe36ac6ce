// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package calibration turns operator edits into a confirmed calibration
// update for the device.
package calibration

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"sync"

	"github.com/relabs-tech/leveler/internal/protocol"
	"github.com/relabs-tech/leveler/internal/tilt"
)

var (
	// ErrUserDeclined is returned when the operator cancels the confirmation.
	ErrUserDeclined = errors.New("calibration declined by operator")
	// ErrInvalidInput is returned when a form field is not a number.
	ErrInvalidInput = errors.New("invalid calibration input")
)

// Operator-facing messages.
const (
	ZeroWarning = "Warning: Before clicking OK, ensure device is firmly mounted to a" +
		" known level surface.  Displayed angles will be zeroed to their current values."
	ChangeMessage = "Click OK to change roll and pitch zones, drawbar and wheelbase lengths." +
		" Displayed angles will not be zeroed."
	DeclinedNotice = "No calibration done"
)

// Prompter asks the operator a yes/no question and shows notices.
type Prompter interface {
	Ask(message string) bool
	Notify(message string)
}

// Sender delivers encoded text to the device.
type Sender interface {
	Send(ctx context.Context, text string) error
}

// Values is a copy of the form contents.
type Values struct {
	RollDeviation  string `json:"rollDeviation"`
	PitchDeviation string `json:"pitchDeviation"`
	Wheelbase      string `json:"wheelbase"`
	Drawbar        string `json:"drawbar"`
	ZeroAngles     bool   `json:"zeroAngles"`
}

// Form holds the operator's proposal. Device values are copied in only for
// fields the device changed, so a field being edited is not overwritten on
// every poll.
type Form struct {
	mu sync.Mutex
	v  Values
}

// NewForm returns a form showing the model defaults.
func NewForm(initial protocol.CalibrationState) *Form {
	f := &Form{}
	for _, field := range tilt.Fields {
		f.setLocked(field, formatField(field, tilt.FieldValue(initial, field)))
	}
	return f
}

// Values returns a copy of the form.
func (f *Form) Values() Values {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.v
}

// Set stores operator input for field.
func (f *Form) Set(field tilt.Field, value string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.setLocked(field, strings.TrimSpace(value))
}

// SetZeroAngles sets the one-shot zeroing flag.
func (f *Form) SetZeroAngles(on bool) {
	f.mu.Lock()
	f.v.ZeroAngles = on
	f.mu.Unlock()
}

// ApplyDeviceValues copies the fields listed in change from state.
func (f *Form) ApplyDeviceValues(state protocol.CalibrationState, change tilt.Change) {
	if change.Empty() {
		return
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, field := range change.Fields {
		f.setLocked(field, formatField(field, tilt.FieldValue(state, field)))
	}
}

func (f *Form) setLocked(field tilt.Field, value string) {
	switch field {
	case tilt.FieldRollDeviation:
		f.v.RollDeviation = value
	case tilt.FieldPitchDeviation:
		f.v.PitchDeviation = value
	case tilt.FieldWheelbase:
		f.v.Wheelbase = value
	case tilt.FieldDrawbar:
		f.v.Drawbar = value
	}
}

func formatField(field tilt.Field, v float64) string {
	switch field {
	case tilt.FieldWheelbase, tilt.FieldDrawbar:
		return strconv.FormatFloat(v, 'f', -1, 64)
	default:
		return strconv.FormatFloat(v, 'f', 1, 64)
	}
}

// ParseField maps a field name as typed by the operator to a Field.
func ParseField(name string) (tilt.Field, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "rolldeviation", "roll", "rolld":
		return tilt.FieldRollDeviation, nil
	case "pitchdeviation", "pitch", "pitchd":
		return tilt.FieldPitchDeviation, nil
	case "wheelbase", "wbase":
		return tilt.FieldWheelbase, nil
	case "drawbar", "dbar":
		return tilt.FieldDrawbar, nil
	}
	return 0, fmt.Errorf("unknown field %q", name)
}

// Controller confirms and submits the form.
type Controller struct {
	form     *Form
	prompter Prompter
	sender   Sender
	logger   *slog.Logger
}

// NewController wires a form to a prompter and a sender.
func NewController(form *Form, prompter Prompter, sender Sender, logger *slog.Logger) *Controller {
	if logger == nil {
		logger = slog.Default()
	}
	return &Controller{
		form:     form,
		prompter: prompter,
		sender:   sender,
		logger:   logger.With("component", "calibration"),
	}
}

// Form returns the form the controller submits.
func (c *Controller) Form() *Form { return c.form }

// Submit asks the operator to confirm the current form and sends it. The
// zeroing flag is cleared once the update has been sent.
func (c *Controller) Submit(ctx context.Context) error {
	v := c.form.Values()
	update := protocol.CalibrationUpdate{
		RollDeviation:  v.RollDeviation,
		PitchDeviation: v.PitchDeviation,
		Wheelbase:      v.Wheelbase,
		Drawbar:        v.Drawbar,
		ZeroAngles:     v.ZeroAngles,
	}
	payload, err := protocol.EncodeCalibration(update)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}

	message := ChangeMessage
	if v.ZeroAngles {
		message = ZeroWarning
	}
	if !c.prompter.Ask(message) {
		c.prompter.Notify(DeclinedNotice)
		c.logger.Info("calibration declined")
		return ErrUserDeclined
	}

	if err := c.sender.Send(ctx, string(payload)); err != nil {
		return fmt.Errorf("send calibration: %w", err)
	}
	c.form.SetZeroAngles(false)
	c.logger.Info("calibration sent", "zero_angles", v.ZeroAngles, "payload", string(payload))
	return nil
}
