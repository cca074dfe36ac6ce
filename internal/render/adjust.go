// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package render

import (
	"fmt"
	"math"
)

// Axis selects which view a renderer draws.
type Axis int

const (
	// AxisRoll is the rear view; its base length is the wheelbase.
	AxisRoll Axis = iota
	// AxisPitch is the side view; its base length is the drawbar.
	AxisPitch
)

func (a Axis) String() string {
	if a == AxisRoll {
		return "Roll"
	}
	return "Pitch"
}

// ViewAngle converts a device angle into the angle drawn on screen. The roll
// view looks at the device from the rear, which mirrors the sign.
func (a Axis) ViewAngle(deg float64) float64 {
	if a == AxisRoll {
		return -deg
	}
	return deg
}

// Zone is the tolerance classification of an angle.
type Zone int

const (
	InTolerance Zone = iota
	OutOfTolerance
)

func (z Zone) String() string {
	if z == InTolerance {
		return "in_tolerance"
	}
	return "out_of_tolerance"
}

// Classify places angle in the closed interval [-tolerance, tolerance].
func Classify(angleDeg, toleranceDeg float64) Zone {
	if angleDeg >= -toleranceDeg && angleDeg <= toleranceDeg {
		return InTolerance
	}
	return OutOfTolerance
}

// Adjustment is the height change that brings one axis back to level.
type Adjustment struct {
	Delta  float64 `json:"delta"`
	Amount int64   `json:"amount"`
	Text   string  `json:"text"`
}

// ComputeAdjustment converts a view angle into an instruction for the
// operator. delta = base * sin(angle); a delta of exactly zero takes the
// non-negative branch.
func ComputeAdjustment(axis Axis, viewAngleDeg, baseLengthMm float64) Adjustment {
	delta := baseLengthMm * math.Sin(viewAngleDeg*math.Pi/180)
	amount := int64(math.Round(math.Abs(delta)))

	var text string
	switch {
	case axis == AxisRoll && delta < 0:
		text = fmt.Sprintf("Raise right %d cm", amount)
	case axis == AxisRoll:
		text = fmt.Sprintf("Raise left %d cm", amount)
	case delta < 0:
		// jockey wheel
		text = fmt.Sprintf("Raise %d cm", amount)
	default:
		text = fmt.Sprintf("Lower %d cm", amount)
	}
	return Adjustment{Delta: delta, Amount: amount, Text: text}
}
