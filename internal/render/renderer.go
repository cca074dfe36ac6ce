// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package render draws the roll and pitch views: a background colour for the
// tolerance zone, the angle and adjustment text, and the vehicle image
// rotated by the current angle.
package render

import (
	"image"
	"image/color"
	"math"
)

// Surface is the drawing capability a renderer needs.
type Surface interface {
	Bounds() image.Rectangle
	// Clear resets every pixel to transparent.
	Clear()
	// Fill paints the whole surface.
	Fill(c color.Color)
	// DrawText draws text horizontally centred on x with its baseline at y.
	DrawText(text string, x, y float64, c color.Color)
	// DrawRotatedImage scales img to the surface, centres it on (cx, cy) and
	// rotates it clockwise by angleRad about that point.
	DrawRotatedImage(img image.Image, cx, cy, angleRad float64)
}

// Palette holds the colours of a view.
type Palette struct {
	InTolerance    color.Color
	OutOfTolerance color.Color
	Text           color.Color
}

// DefaultPalette matches the device's stock web page.
var DefaultPalette = Palette{
	InTolerance:    color.RGBA{R: 0x00, G: 0x80, B: 0x00, A: 0xff}, // green
	OutOfTolerance: color.RGBA{R: 0xff, G: 0xff, B: 0xf0, A: 0xff}, // ivory
	Text:           color.RGBA{R: 0x00, G: 0x00, B: 0x8b, A: 0xff}, // dark blue
}

// Frame is the input for one draw of one axis.
type Frame struct {
	AngleDeg     float64 // as reported by the device
	ToleranceDeg float64
	BaseLengthMm float64
	AngleText    string // display text for AngleDeg
}

// Result describes what was drawn.
type Result struct {
	Axis         Axis       `json:"-"`
	ViewAngleDeg float64    `json:"view_angle_deg"`
	Zone         Zone       `json:"-"`
	ZoneName     string     `json:"zone"`
	Adjustment   Adjustment `json:"adjustment"`
}

// Renderer draws one axis onto its own surface.
type Renderer struct {
	axis       Axis
	surface    Surface
	background image.Image
	palette    Palette
}

// New returns a renderer for axis. background may be nil, in which case
// only the colour and text are drawn.
func New(axis Axis, surface Surface, background image.Image) *Renderer {
	return &Renderer{
		axis:       axis,
		surface:    surface,
		background: background,
		palette:    DefaultPalette,
	}
}

// WithPalette replaces the colours.
func (r *Renderer) WithPalette(p Palette) *Renderer {
	r.palette = p
	return r
}

// Axis returns the axis this renderer draws.
func (r *Renderer) Axis() Axis { return r.axis }

// Surface returns the surface this renderer draws on.
func (r *Renderer) Surface() Surface { return r.surface }

// Draw renders f. Text is drawn before the image is rotated so it stays
// upright.
func (r *Renderer) Draw(f Frame) Result {
	view := r.axis.ViewAngle(f.AngleDeg)
	zone := Classify(view, f.ToleranceDeg)
	adj := ComputeAdjustment(r.axis, view, f.BaseLengthMm)

	s := r.surface
	b := s.Bounds()
	w, h := float64(b.Dx()), float64(b.Dy())

	s.Clear()
	if zone == InTolerance {
		s.Fill(r.palette.InTolerance)
	} else {
		s.Fill(r.palette.OutOfTolerance)
	}

	s.DrawText(r.axis.String()+" Angle: "+f.AngleText+"°", float64(b.Min.X)+w/2, float64(b.Min.Y)+h*0.1, r.palette.Text)
	s.DrawText(adj.Text, float64(b.Min.X)+w/2, float64(b.Min.Y)+h*0.95, r.palette.Text)

	if r.background != nil {
		s.DrawRotatedImage(r.background, float64(b.Min.X)+w/2, float64(b.Min.Y)+h/2, view*math.Pi/180)
	}

	return Result{
		Axis:         r.axis,
		ViewAngleDeg: view,
		Zone:         zone,
		ZoneName:     zone.String(),
		Adjustment:   adj,
	}
}
