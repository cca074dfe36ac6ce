// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"log/slog"
	"time"

	"github.com/relabs-tech/leveler/internal/calibration"
	"github.com/relabs-tech/leveler/internal/connection"
	"github.com/relabs-tech/leveler/internal/protocol"
	"github.com/relabs-tech/leveler/internal/render"
	"github.com/relabs-tech/leveler/internal/tilt"
)

type pngEncoder interface {
	PNG() ([]byte, error)
}

// Pipeline handles inbound device messages: decode, update the model, copy
// changed calibration values into the form, draw both views and fan the
// result out to the sinks.
type Pipeline struct {
	model   *tilt.Model
	roll    *render.Renderer
	pitch   *render.Renderer
	form    *calibration.Form
	sinks   []FrameSink
	logger  *slog.Logger
	metrics *connection.Metrics
	now     func() time.Time
}

// NewPipeline wires the components. form and metrics may be nil.
func NewPipeline(model *tilt.Model, roll, pitch *render.Renderer, form *calibration.Form,
	logger *slog.Logger, metrics *connection.Metrics, sinks ...FrameSink) *Pipeline {
	if logger == nil {
		logger = slog.Default()
	}
	return &Pipeline{
		model:   model,
		roll:    roll,
		pitch:   pitch,
		form:    form,
		sinks:   sinks,
		logger:  logger.With("component", "pipeline"),
		metrics: metrics,
		now:     time.Now,
	}
}

// HandleMessage implements connection.MessageHandler.
func (p *Pipeline) HandleMessage(data []byte) {
	p.logger.Debug("message received", "data", string(data))

	reading, err := protocol.Decode(data)
	if err != nil {
		p.metrics.DecodeError()
		p.logger.Warn("discarding message", "error", err)
		return
	}

	change := p.model.Update(reading)
	snap := p.model.Snapshot()
	if p.form != nil {
		p.form.ApplyDeviceValues(snap.Calibration, change)
	}

	u := TiltUpdate{
		Time:     p.now(),
		Snapshot: snap,
		Changed:  change.Fields,
	}
	u.Pitch = p.pitch.Draw(render.Frame{
		AngleDeg:     snap.Telemetry.PitchAngleDeg,
		ToleranceDeg: snap.Calibration.PitchDeviationDeg,
		BaseLengthMm: snap.Calibration.DrawbarMm,
		AngleText:    snap.PitchText,
	})
	u.Roll = p.roll.Draw(render.Frame{
		AngleDeg:     snap.Telemetry.RollAngleDeg,
		ToleranceDeg: snap.Calibration.RollDeviationDeg,
		BaseLengthMm: snap.Calibration.WheelbaseMm,
		AngleText:    snap.RollText,
	})
	u.PitchPNG = p.encode(p.pitch)
	u.RollPNG = p.encode(p.roll)

	for _, s := range p.sinks {
		s.Publish(u)
	}
}

func (p *Pipeline) encode(r *render.Renderer) []byte {
	enc, ok := r.Surface().(pngEncoder)
	if !ok {
		return nil
	}
	data, err := enc.PNG()
	if err != nil {
		p.logger.Warn("encode view", "axis", r.Axis().String(), "error", err)
		return nil
	}
	return data
}
