// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package orientation

import (
	"math"
	"time"
)

type mockSource struct {
	start time.Time
	now   func() time.Time
}

// NewMockSource creates a mock orientation source that generates a slow
// rocking motion of a few degrees, like a van being levelled on ramps.
func NewMockSource() Source {
	return NewMockSourceAt(time.Now)
}

// NewMockSourceAt is NewMockSource with an injected clock.
func NewMockSourceAt(now func() time.Time) Source {
	return &mockSource{start: now(), now: now}
}

func (m *mockSource) Next() (Pose, error) {
	elapsed := m.now().Sub(m.start).Seconds()

	return Pose{
		Roll:  6 * math.Sin(elapsed*0.4),
		Pitch: 4 * math.Cos(elapsed*0.25),
	}, nil
}

// FixedSource always returns the same pose.
type FixedSource Pose

func (f FixedSource) Next() (Pose, error) { return Pose(f), nil }
