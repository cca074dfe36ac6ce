// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package orientation

// Pose is the tilt of the leveling sensor in degrees.
type Pose struct {
	Roll  float64 `json:"roll"`
	Pitch float64 `json:"pitch"`
}

// Sub returns p relative to ref.
func (p Pose) Sub(ref Pose) Pose {
	return Pose{Roll: p.Roll - ref.Roll, Pitch: p.Pitch - ref.Pitch}
}

// Source is anything that can provide poses over time.
type Source interface {
	Next() (Pose, error)
}
