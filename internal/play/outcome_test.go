package play

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClassify(t *testing.T) {
	cases := []struct {
		name          string
		distance      int
		halfmoveClock int
		want          Outcome
	}{
		{"win inside rule clock", 5, 90, OutcomeWin},
		{"win degraded by rule clock", 5, 96, OutcomeCursedWin},
		{"exact boundary still a win", 10, 90, OutcomeWin},
		{"loss inside rule clock", -5, 90, OutcomeLoss},
		{"loss saved by rule clock", -5, 96, OutcomeBlessedLoss},
		{"drawn regardless of clock", 0, 40, OutcomeDraw},
		{"long win always cursed", 120, 0, OutcomeCursedWin},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, Classify(tc.distance, tc.halfmoveClock))
		})
	}
}

func TestClassifyAntisymmetry(t *testing.T) {
	for _, distance := range []int{1, 3, 5, 42, 97, 150} {
		for _, clock := range []int{0, 10, 50, 96, 99} {
			pos := Classify(distance, clock)
			neg := Classify(-distance, clock)
			assert.Equal(t, pos, -neg,
				"classify(%d,%d) and classify(%d,%d) must mirror", distance, clock, -distance, clock)
		}
	}
}

func TestBiasAtZeroClock(t *testing.T) {
	assert.Equal(t, 12-10000, BiasAtZeroClock(12, 0, OutcomeWin))
	assert.Equal(t, -12+10000, BiasAtZeroClock(-12, 0, OutcomeLoss))
	assert.Equal(t, 0, BiasAtZeroClock(0, 0, OutcomeDraw))

	// A non-zero clock leaves the distance untouched.
	assert.Equal(t, 12, BiasAtZeroClock(12, 7, OutcomeWin))
	assert.Equal(t, -12, BiasAtZeroClock(-12, 7, OutcomeLoss))
}
