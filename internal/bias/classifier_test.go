package bias

import (
	"strings"
	"testing"

	"market-doctor/internal/snapshot"
)

func f(v float64) *float64 { return &v }

// TestStructuralNearEQH tests the stop-run rule for price just below an EQH
func TestStructuralNearEQH(t *testing.T) {
	c := NewClassifier()

	got, note := c.ClassifyStructural(99500, nil, nil, []float64{100000, 110000}, nil)
	if got != AboveEQH {
		t.Errorf("Expected above_eqh, got %s", got)
	}
	if !strings.Contains(note, "100000") {
		t.Errorf("Note should cite the nearest EQH: %s", note)
	}

	// Too far from the EQH: falls through to neutral
	got, _ = c.ClassifyStructural(90000, nil, nil, []float64{100000}, nil)
	if got != NeutralStructure {
		t.Errorf("Expected neutral_structure far from EQH, got %s", got)
	}
}

// TestStructuralNearEQL tests the support rule for price just above an EQL
func TestStructuralNearEQL(t *testing.T) {
	c := NewClassifier()

	got, _ := c.ClassifyStructural(90500, nil, nil, nil, []float64{90000, 85000})
	if got != BelowEQL {
		t.Errorf("Expected below_eql, got %s", got)
	}
}

// TestStructuralInsideImbalance tests direction labeling inside unfilled gaps
func TestStructuralInsideImbalance(t *testing.T) {
	c := NewClassifier()
	imbs := []snapshot.Imbalance{
		{PriceLow: 94000, PriceHigh: 95000, Direction: "bearish", Filled: true},
		{PriceLow: 95500, PriceHigh: 96500, Direction: "bearish"},
	}

	// Filled gaps are skipped
	got, _ := c.ClassifyStructural(96000, nil, imbs, nil, nil)
	if got != BearishImbalance {
		t.Errorf("Expected bearish_imbalance, got %s", got)
	}

	imbs[1].Direction = "bullish"
	got, _ = c.ClassifyStructural(96000, nil, imbs, nil, nil)
	if got != BullishImbalance {
		t.Errorf("Expected bullish_imbalance, got %s", got)
	}
}

// TestStructuralHTFMajority tests the 70/30 higher-timeframe rule
func TestStructuralHTFMajority(t *testing.T) {
	c := NewClassifier()
	htf := map[string][]float64{
		"1d": {80000, 82000, 84000, 86000},
	}

	got, note := c.ClassifyStructural(90000, htf, nil, nil, nil)
	if got != BullishStructure {
		t.Errorf("Price above all levels should be bullish_structure, got %s", got)
	}
	if !strings.Contains(note, "1d") {
		t.Errorf("Note should name the timeframe: %s", note)
	}

	got, _ = c.ClassifyStructural(79000, htf, nil, nil, nil)
	if got != BearishStructure {
		t.Errorf("Price below all levels should be bearish_structure, got %s", got)
	}

	// 2 of 4 above: neither threshold fires
	got, _ = c.ClassifyStructural(83000, htf, nil, nil, nil)
	if got != NeutralStructure {
		t.Errorf("Mid-structure should be neutral, got %s", got)
	}
}

// TestStructuralEQHPrecedence verifies the EQH rule outranks imbalances
func TestStructuralEQHPrecedence(t *testing.T) {
	c := NewClassifier()
	imbs := []snapshot.Imbalance{{PriceLow: 99000, PriceHigh: 100000, Direction: "bullish"}}

	got, _ := c.ClassifyStructural(99500, nil, imbs, []float64{100000}, nil)
	if got != AboveEQH {
		t.Errorf("EQH proximity must win over imbalance, got %s", got)
	}
}

// TestLiquidityDominance tests the 1.5x pool dominance rules
func TestLiquidityDominance(t *testing.T) {
	c := NewClassifier()

	got, _ := c.ClassifyLiquidity(100, []float64{100}, []float64{200}, 0, 0, nil, nil)
	if got != LiquidityBelow {
		t.Errorf("Expected liquidity_below, got %s", got)
	}

	got, _ = c.ClassifyLiquidity(100, []float64{300}, []float64{100}, 0, 0, nil, nil)
	if got != LiquidityAbove {
		t.Errorf("Expected liquidity_above, got %s", got)
	}
}

// TestLiquidityAccumulation tests the quiet-volume + positive OI rule
func TestLiquidityAccumulation(t *testing.T) {
	c := NewClassifier()

	got, _ := c.ClassifyLiquidity(100, nil, nil, 50, 100, f(0.02), nil)
	if got != Accumulation {
		t.Errorf("Expected accumulation, got %s", got)
	}

	// Same volumes but OI falling: no accumulation
	got, _ = c.ClassifyLiquidity(100, nil, nil, 50, 100, f(-0.02), nil)
	if got != LiquidityNeutral {
		t.Errorf("Expected liquidity_neutral, got %s", got)
	}
}

// TestLiquidityOverheatedFunding pins the boundary case: funding 0.02 with no
// other liquidity signal classifies as overheated contrarian risk.
func TestLiquidityOverheatedFunding(t *testing.T) {
	c := NewClassifier()

	got, note := c.ClassifyLiquidity(100, nil, nil, 100, 100, nil, f(0.02))
	if got != SFPRiskHigh {
		t.Errorf("Expected sfp_risk_high, got %s", got)
	}
	if !strings.Contains(note, "contrarian") {
		t.Errorf("Note should warn about a contrarian reaction: %s", note)
	}

	got, _ = c.ClassifyLiquidity(100, nil, nil, 100, 100, nil, f(0.005))
	if got != LiquidityNeutral {
		t.Errorf("Funding below threshold should be neutral, got %s", got)
	}
}

// TestAnalyzeSkipsAbsentCascades verifies fully absent inputs leave the
// corresponding verdict empty instead of inventing a neutral one.
func TestAnalyzeSkipsAbsentCascades(t *testing.T) {
	c := NewClassifier()

	out := c.Analyze("bullish", "bullish", 100, nil, nil, nil, nil, nil, nil, 0, 0, nil, nil)
	if out.Structural != "" || out.Liquidity != "" {
		t.Errorf("Absent inputs should produce no verdicts: %+v", out)
	}
	if out.Tactical != "bullish" {
		t.Errorf("Tactical lean should pass through, got %s", out.Tactical)
	}
}
