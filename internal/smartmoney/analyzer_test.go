package smartmoney

import (
	"math"
	"strings"
	"testing"
)

func f(v float64) *float64 { return &v }

// TestBehaviorCascadeOrder verifies the order-block rule outranks the rest
func TestBehaviorCascadeOrder(t *testing.T) {
	a := NewAnalyzer()

	in := Inputs{
		Price:            100000,
		WeeklyOrderBlock: f(95000),
		DailyFVG:         &PriceRange{Low: 99000, High: 101000},
	}
	behavior, desc := a.ClassifyBehavior(in)
	if behavior != NotInterested {
		t.Fatalf("Order block rule must win, got %s", behavior)
	}
	if !strings.Contains(desc, "95000") {
		t.Errorf("Description should cite the order block: %s", desc)
	}
}

// TestBehaviorDailyFVG tests the distribution rule inside the daily gap
func TestBehaviorDailyFVG(t *testing.T) {
	a := NewAnalyzer()

	in := Inputs{Price: 100000, DailyFVG: &PriceRange{Low: 99000, High: 101000}}
	behavior, _ := a.ClassifyBehavior(in)
	if behavior != Distributing {
		t.Errorf("Expected distributing inside the daily FVG, got %s", behavior)
	}
}

// TestBehaviorLimitBookSkew tests bid/ask dominance classification
func TestBehaviorLimitBookSkew(t *testing.T) {
	a := NewAnalyzer()

	in := Inputs{
		Price:       100,
		LimitOrders: map[float64]float64{95: 300, 105: 100},
	}
	behavior, _ := a.ClassifyBehavior(in)
	if behavior != Accumulating {
		t.Errorf("Bid-heavy book should be accumulating, got %s", behavior)
	}

	in.LimitOrders = map[float64]float64{95: 100, 105: 300}
	behavior, _ = a.ClassifyBehavior(in)
	if behavior != Distributing {
		t.Errorf("Ask-heavy book should be distributing, got %s", behavior)
	}
}

// TestBehaviorFallback tests the waiting fallback with no observations
func TestBehaviorFallback(t *testing.T) {
	a := NewAnalyzer()

	behavior, _ := a.ClassifyBehavior(Inputs{Price: 100})
	if behavior != Waiting {
		t.Errorf("Expected waiting fallback, got %s", behavior)
	}
}

// TestSFPDirectionAndFactors tests additive scoring toward the larger pool
func TestSFPDirectionAndFactors(t *testing.T) {
	a := NewAnalyzer()

	in := Inputs{
		Price:          100,
		LiquidityAbove: []float64{500},
		LiquidityBelow: []float64{100},
		OIDelta:        f(0.05),
	}
	got := a.SFP(in)
	if got.Direction != "up" {
		t.Errorf("Larger pool above should point up, got %s", got.Direction)
	}
	// 0.3 liquidity + 0.1 OI growth
	if math.Abs(got.Probability1h-0.4) > 1e-9 {
		t.Errorf("Expected 1h probability 0.4, got %.2f", got.Probability1h)
	}
	if len(got.Factors) != 2 {
		t.Errorf("Expected 2 contributing factors, got %v", got.Factors)
	}
}

// TestSFPCap verifies the 0.95 probability ceiling
func TestSFPCap(t *testing.T) {
	a := NewAnalyzer()

	wicks := []float64{1, 1, 10, 10, 10}
	in := Inputs{
		Price:            100,
		LiquidityAbove:   []float64{500},
		LiquidityBelow:   []float64{100},
		RecentWicks:      wicks,
		VolumeAbsorption: 0.9,
		OIDelta:          f(0.05),
	}
	got := a.SFP(in)
	if got.Probability1h > 0.95 || got.Probability4h > 0.95 {
		t.Errorf("Probabilities must cap at 0.95: %+v", got)
	}
}

// TestAnalyzeAttachesSFPOnlyWithLiquidity verifies the optional estimate
func TestAnalyzeAttachesSFPOnlyWithLiquidity(t *testing.T) {
	a := NewAnalyzer()

	got := a.Analyze(Inputs{Price: 100})
	if got.SFP != nil {
		t.Error("No liquidity observations should mean no SFP estimate")
	}

	got = a.Analyze(Inputs{Price: 100, LiquidityAbove: []float64{10}})
	if got.SFP == nil {
		t.Error("Liquidity observations should attach an SFP estimate")
	}
}

// TestNarrativeMentionsNearbyKeyLevel tests the level suffix
func TestNarrativeMentionsNearbyKeyLevel(t *testing.T) {
	a := NewAnalyzer()

	got := a.Analyze(Inputs{Price: 100000, KeyLevels: []float64{100200, 90000}})
	if !strings.Contains(got.Narrative, "100200") {
		t.Errorf("Narrative should cite the nearby key level: %s", got.Narrative)
	}
}
