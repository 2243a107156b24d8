package risk

import (
	"math"
	"strings"
	"testing"
)

// TestATRBasedR tests the expectancy formula against hand-computed values
func TestATRBasedR(t *testing.T) {
	c := NewCalculator()

	// 2% stop, 4% target on a price of 100 with ATR 2: stop 1 ATR,
	// target 2 ATR, ratio 2. E = 0.5*2 - 0.5*1 = 0.5
	got := c.ATRBasedR(2, 100, 2, 4, 0.5)
	if math.Abs(got-0.5) > 1e-9 {
		t.Errorf("Expected 0.5R, got %.4f", got)
	}

	// Zero ATR: ratio falls back to 1, E = win_prob*1 - (1-win_prob)
	got = c.ATRBasedR(0, 100, 2, 4, 0.6)
	if math.Abs(got-0.2) > 1e-9 {
		t.Errorf("Expected 0.2R with degenerate ATR, got %.4f", got)
	}
}

// TestScenarioBasedR tests probability weighting and the empty guard
func TestScenarioBasedR(t *testing.T) {
	c := NewCalculator()

	if got := c.ScenarioBasedR(nil); got != 0 {
		t.Errorf("No scenarios should yield 0, got %.4f", got)
	}

	scenarios := []Scenario{
		{Probability: 0.6, TargetR: 2, StopR: 1},  // E = 0.6*2 - 0.4*1 = 0.8
		{Probability: 0.4, TargetR: 1, StopR: 1},  // E = 0.4*1 - 0.6*1 = -0.2
	}
	// Weighted: (0.8*0.6 + -0.2*0.4) / 1.0 = 0.4
	got := c.ScenarioBasedR(scenarios)
	if math.Abs(got-0.4) > 1e-9 {
		t.Errorf("Expected 0.4R, got %.4f", got)
	}
}

// TestHistoricalPatternR tests count/similarity weighting
func TestHistoricalPatternR(t *testing.T) {
	c := NewCalculator()

	history := []HistoricalOutcome{
		{OutcomeR: 1.0, Count: 3, Similarity: 1.0},
		{OutcomeR: -1.0, Count: 1, Similarity: 1.0},
	}
	// (1*3 - 1*1) / 4 = 0.5
	got := c.HistoricalPatternR(history, 1.0)
	if math.Abs(got-0.5) > 1e-9 {
		t.Errorf("Expected 0.5R, got %.4f", got)
	}
}

// TestCalculateBlend verifies the 40/30/30 blend and the asymmetry sign
func TestCalculateBlend(t *testing.T) {
	c := NewCalculator()

	long := SideInputs{
		Stop: 98, Target: 104, WinProb: 0.5,
		Scenarios: []Scenario{{Probability: 1.0, TargetR: 1.0, StopR: 0}},
	}
	short := SideInputs{Stop: 102, Target: 96, WinProb: 0.3}

	got := c.Calculate(100, 2, long, short, 1.0)

	// Long ATR leg: stop 2% = 1 ATR, target 4% = 2 ATR, E = 0.5*2-0.5 = 0.5.
	// Scenario leg: 1.0. History leg: 0. Blend = 0.5*0.4 + 1.0*0.3 = 0.5
	if math.Abs(got.LongR-0.5) > 1e-9 {
		t.Errorf("Expected long R 0.5, got %.4f", got.LongR)
	}
	// Short ATR leg: E = 0.3*2 - 0.7 = -0.1. Blend = -0.1*0.4 = -0.04
	if math.Abs(got.ShortR+0.04) > 1e-9 {
		t.Errorf("Expected short R -0.04, got %.4f", got.ShortR)
	}
	if math.Abs(got.Asymmetry-(got.LongR-got.ShortR)) > 1e-12 {
		t.Errorf("Asymmetry must equal LongR - ShortR")
	}
}

// TestInterpretationBands tests the strong/slight/neutral banding
func TestInterpretationBands(t *testing.T) {
	c := NewCalculator()

	cases := []struct {
		asym float64
		want string
	}{
		{0.5, "strongly favors longs"},
		{0.2, "slightly favors longs"},
		{-0.5, "strongly favors shorts"},
		{-0.2, "slightly favors shorts"},
		{0.05, "neutral"},
	}
	for _, tc := range cases {
		got := c.interpret(tc.asym)
		if !strings.Contains(got, tc.want) {
			t.Errorf("Asymmetry %.2f: expected %q in %q", tc.asym, tc.want, got)
		}
	}
}
