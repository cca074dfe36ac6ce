package orientation

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMockSource_StaysWithinRange(t *testing.T) {
	now := time.Unix(0, 0)
	src := NewMockSourceAt(func() time.Time { return now })

	first, err := src.Next()
	require.NoError(t, err)
	assert.InDelta(t, 0, first.Roll, 1e-9)
	assert.InDelta(t, 4, first.Pitch, 1e-9)

	for i := 0; i < 200; i++ {
		now = now.Add(250 * time.Millisecond)
		p, err := src.Next()
		require.NoError(t, err)
		assert.LessOrEqual(t, p.Roll, 6.0)
		assert.GreaterOrEqual(t, p.Roll, -6.0)
		assert.LessOrEqual(t, p.Pitch, 4.0)
		assert.GreaterOrEqual(t, p.Pitch, -4.0)
	}
}

func TestPoseSub(t *testing.T) {
	p := Pose{Roll: 3, Pitch: -1}.Sub(Pose{Roll: 1, Pitch: -2})
	assert.Equal(t, Pose{Roll: 2, Pitch: 1}, p)

	fixed, err := FixedSource{Roll: 5}.Next()
	require.NoError(t, err)
	assert.Equal(t, 5.0, fixed.Roll)
}
