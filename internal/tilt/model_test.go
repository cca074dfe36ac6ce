package tilt

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/relabs-tech/leveler/internal/protocol"
)

func reading(roll, pitch float64, cal protocol.CalibrationState) protocol.Reading {
	return protocol.Reading{
		Telemetry:   protocol.TelemetrySample{RollAngleDeg: roll, PitchAngleDeg: pitch},
		Calibration: cal,
	}
}

var baseCal = protocol.CalibrationState{
	RollDeviationDeg:  2,
	PitchDeviationDeg: 2,
	WheelbaseMm:       2000,
	DrawbarMm:         4000,
}

func TestFormatAngle(t *testing.T) {
	tests := []struct {
		in   float64
		want string
	}{
		{0, "0.0"},
		{0.09, "0.0"},
		{-0.09, "0.0"},
		{-0.0999999, "0.0"},
		{0.1, "0.1"},
		{-0.1, "-0.1"},
		{5, "5.0"},
		{-12.34, "-12.3"},
		{1.26, "1.3"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, FormatAngle(tt.in), "FormatAngle(%v)", tt.in)
	}
}

func TestFormatAngle_NeverNegativeZero(t *testing.T) {
	for a := -0.0999; a < 0.1; a += 0.0007 {
		assert.Equal(t, "0.0", FormatAngle(a), "angle %v", a)
	}
}

func TestModel_Defaults(t *testing.T) {
	s := NewModel().Snapshot()
	assert.False(t, s.HaveSample)
	assert.Equal(t, "0.0", s.RollText)
	assert.Equal(t, "0.0", s.PitchText)
	assert.Equal(t, float64(DefaultWheelbaseMm), s.Calibration.WheelbaseMm)
	assert.Equal(t, float64(DefaultDrawbarMm), s.Calibration.DrawbarMm)
	assert.Zero(t, s.Calibration.RollDeviationDeg)
}

func TestModel_UpdateReportsChangedFieldsOnly(t *testing.T) {
	m := NewModel()

	ch := m.Update(reading(5, 0, baseCal))
	// Wheelbase and drawbar match the defaults.
	assert.ElementsMatch(t, []Field{FieldRollDeviation, FieldPitchDeviation}, ch.Fields)

	s := m.Snapshot()
	assert.True(t, s.HaveSample)
	assert.Equal(t, "5.0", s.RollText)
	assert.Equal(t, "0.0", s.PitchText)
	assert.Equal(t, baseCal, s.Calibration)

	// Same calibration again: no signal for any field.
	ch = m.Update(reading(-3.3, 1.2, baseCal))
	assert.True(t, ch.Empty())
	assert.Equal(t, "-3.3", m.Snapshot().RollText)

	next := baseCal
	next.DrawbarMm = 3500
	ch = m.Update(reading(0, 0, next))
	require.Len(t, ch.Fields, 1)
	assert.True(t, ch.Has(FieldDrawbar))
	assert.False(t, ch.Has(FieldWheelbase))
	assert.Equal(t, 3500.0, m.Snapshot().Calibration.DrawbarMm)
}

func TestModel_SnapshotIsACopy(t *testing.T) {
	m := NewModel()
	m.Update(reading(1, 1, baseCal))
	s := m.Snapshot()

	next := baseCal
	next.WheelbaseMm = 1
	m.Update(reading(9, 9, next))

	assert.Equal(t, 2000.0, s.Calibration.WheelbaseMm)
	assert.Equal(t, "1.0", s.RollText)
}

func TestFieldValueAndString(t *testing.T) {
	for _, f := range Fields {
		assert.NotEqual(t, "unknown", f.String())
	}
	assert.Equal(t, 4000.0, FieldValue(baseCal, FieldDrawbar))
	assert.Equal(t, 2.0, FieldValue(baseCal, FieldPitchDeviation))
}
