package decision

import (
	"testing"

	"market-doctor/internal/snapshot"
)

func scores(long, short float64) snapshot.DirectionalScores {
	return snapshot.DirectionalScores{Long: long, Short: short}
}

func TestDecideStrongLong(t *testing.T) {
	e := NewEngine(DefaultConfig())
	got := e.Decide(Inputs{
		Scores:     scores(6.5, 4.0), // edge 2.5
		LongR:      0.4,
		ShortR:     -0.1,
		Confidence: 0.70,
	})
	if got.Action != ActionLong || got.Strength != StrengthStrong {
		t.Fatalf("got %s/%s, want LONG/strong", got.Action, got.Strength)
	}
	if got.Verbosity != VerbosityFull {
		t.Fatalf("Verbosity = %s, want full", got.Verbosity)
	}
}

func TestDecideWaitBothNegative(t *testing.T) {
	e := NewEngine(DefaultConfig())
	got := e.Decide(Inputs{
		Scores:     scores(5.2, 4.9), // edge 0.3
		LongR:      -0.09,
		ShortR:     -0.12,
		Confidence: 0.6,
	})
	if got.Action != ActionWait {
		t.Fatalf("Action = %s, want WAIT", got.Action)
	}
	if got.Reason != "no edge for either side" {
		t.Fatalf("Reason = %q", got.Reason)
	}
}

func TestDecideWeakLong(t *testing.T) {
	e := NewEngine(DefaultConfig())
	got := e.Decide(Inputs{
		Scores:     scores(5.5, 4.2), // edge 1.3
		LongR:      0.1,
		ShortR:     -0.2,
		Confidence: 0.5,
	})
	if got.Action != ActionLong || got.Strength != StrengthWeak {
		t.Fatalf("got %s/%s, want LONG/weak", got.Action, got.Strength)
	}
}

func TestDecideStrongShort(t *testing.T) {
	e := NewEngine(DefaultConfig())
	got := e.Decide(Inputs{
		Scores:     scores(3.0, 5.5), // edge -2.5
		LongR:      -0.3,
		ShortR:     0.5,
		Confidence: 0.8,
	})
	if got.Action != ActionShort || got.Strength != StrengthStrong {
		t.Fatalf("got %s/%s, want SHORT/strong", got.Action, got.Strength)
	}
}

func TestDecideWeakShort(t *testing.T) {
	e := NewEngine(DefaultConfig())
	got := e.Decide(Inputs{
		Scores:     scores(4.0, 5.2), // edge -1.2
		LongR:      -0.1,
		ShortR:     0.05,
		Confidence: 0.5,
	})
	if got.Action != ActionShort || got.Strength != StrengthWeak {
		t.Fatalf("got %s/%s, want SHORT/weak", got.Action, got.Strength)
	}
}

func TestDecideStrongEdgeLowConfidenceFallsToWeak(t *testing.T) {
	e := NewEngine(DefaultConfig())
	// Edge clears the strong bar but confidence does not, so rule 3
	// catches it as a weak long instead.
	got := e.Decide(Inputs{
		Scores:     scores(7.0, 4.0), // edge 3.0
		LongR:      0.4,
		ShortR:     -0.1,
		Confidence: 0.5,
	})
	if got.Action != ActionLong || got.Strength != StrengthWeak {
		t.Fatalf("got %s/%s, want LONG/weak", got.Action, got.Strength)
	}
}

func TestDecideAvoidHostileConditions(t *testing.T) {
	e := NewEngine(DefaultConfig())
	got := e.Decide(Inputs{
		Scores:     scores(6.0, 4.0), // edge 2.0, would otherwise be a long
		LongR:      0.3,
		ShortR:     -0.1,
		Confidence: 0.5,
		RiskBoard: &snapshot.RiskBoard{
			Overbought:   "high",
			StopHuntRisk: "high",
		},
	})
	if got.Action != ActionAvoid {
		t.Fatalf("Action = %s, want AVOID", got.Action)
	}
}

func TestDecideNoAvoidWhenConfident(t *testing.T) {
	e := NewEngine(DefaultConfig())
	got := e.Decide(Inputs{
		Scores:     scores(6.0, 4.0),
		LongR:      0.3,
		ShortR:     -0.1,
		Confidence: 0.7,
		RiskBoard: &snapshot.RiskBoard{
			Overbought:   "high",
			StopHuntRisk: "high",
		},
	})
	if got.Action != ActionLong {
		t.Fatalf("Action = %s, want LONG", got.Action)
	}
}

func TestDecideWaitRuleBeatsAvoidGuard(t *testing.T) {
	e := NewEngine(DefaultConfig())
	// Both expectancies negative with no edge: the no-edge wait fires
	// before the hostile-conditions guard.
	got := e.Decide(Inputs{
		Scores:     scores(5.0, 4.8),
		LongR:      -0.1,
		ShortR:     -0.1,
		Confidence: 0.4,
		RiskBoard: &snapshot.RiskBoard{
			Overbought:   "high",
			StopHuntRisk: "high",
		},
	})
	if got.Action != ActionWait {
		t.Fatalf("Action = %s, want WAIT", got.Action)
	}
}

func TestDecideShortVerbosity(t *testing.T) {
	e := NewEngine(DefaultConfig())
	got := e.Decide(Inputs{
		Scores:     scores(5.0, 4.8), // edge 0.2
		LongR:      0.1,
		ShortR:     0.1,
		Confidence: 0.5,
	})
	if got.Action != ActionWait {
		t.Fatalf("Action = %s, want WAIT", got.Action)
	}
	if got.Verbosity != VerbosityShort {
		t.Fatalf("Verbosity = %s, want short", got.Verbosity)
	}
}

func TestDecideFullVerbosityOnHighConfidence(t *testing.T) {
	e := NewEngine(DefaultConfig())
	// Thin edge but confident read: keep the full report
	got := e.Decide(Inputs{
		Scores:     scores(5.0, 4.8),
		LongR:      0.1,
		ShortR:     0.1,
		Confidence: 0.7,
	})
	if got.Verbosity != VerbosityFull {
		t.Fatalf("Verbosity = %s, want full", got.Verbosity)
	}
}

func TestDecideDeterministic(t *testing.T) {
	e := NewEngine(DefaultConfig())
	in := Inputs{
		Scores:     scores(5.8, 4.1),
		LongR:      0.2,
		ShortR:     -0.05,
		Confidence: 0.62,
	}
	first := e.Decide(in)
	for i := 0; i < 100; i++ {
		if got := e.Decide(in); got != first {
			t.Fatalf("run %d diverged: %+v vs %+v", i, got, first)
		}
	}
}

func TestDecideEqualRTieBreaksLong(t *testing.T) {
	e := NewEngine(DefaultConfig())
	// Positive edge with equal expectancy on both sides still reads as
	// a weak long because the asymmetry check is >=.
	got := e.Decide(Inputs{
		Scores:     scores(5.5, 4.0),
		LongR:      0.1,
		ShortR:     0.1,
		Confidence: 0.5,
	})
	if got.Action != ActionLong || got.Strength != StrengthWeak {
		t.Fatalf("got %s/%s, want LONG/weak", got.Action, got.Strength)
	}
}

func TestNewEngineDefaultsZeroConfig(t *testing.T) {
	e := NewEngine(Config{})
	if e.cfg != DefaultConfig() {
		t.Fatalf("cfg = %+v, want defaults", e.cfg)
	}
}
