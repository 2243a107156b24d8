package engine

import (
	"strings"
	"testing"

	"github.com/rs/zerolog"

	"market-doctor/internal/decision"
	"market-doctor/internal/risk"
	"market-doctor/internal/shift"
	"market-doctor/internal/smartmoney"
	"market-doctor/internal/snapshot"
)

func f(v float64) *float64 { return &v }

func fixtureRequest() Request {
	return Request{
		Signal: snapshot.SignalSnapshot{
			Symbol:           "BTCUSDT",
			Timeframe:        "1h",
			Price:            92150,
			TrendScore:       f(0.4),
			MomentumScore:    f(0.5),
			VolumeScore:      f(0.2),
			LiquidityAbove:   []float64{93400, 93800},
			LiquidityBelow:   []float64{89500},
			EQHLevels:        []float64{92500},
			FundingRate:      f(0.004),
			OIDelta:          f(0.04),
			CVDHistory:       cvdSeries(),
			PriceChanges:     []float64{0.4, 0.5, 0.3, 0.6, 0.4, 0.5, 0.4, 0.3, 0.5, 0.6},
			Volumes:          []float64{100, 110, 120, 105, 115, 100, 110, 120, 105, 115},
			RecentWicks:      []float64{10, 12, 9, 11, 10},
			RecentVolume:     f(130),
			AvgVolume:        f(100),
			Volatility:       f(0.012),
			AvgVolatility:    f(0.012),
			ATR:              f(850),
			DataCompleteness: 0.9,
			DataFreshness:    0.95,
		},
		Market: snapshot.MarketSnapshot{
			Phase:     snapshot.PhaseRange,
			SetupType: snapshot.SetupRange,
			Bias:      snapshot.Bias{Tactical: "bullish", Strategic: "bullish"},
			DirScores: snapshot.DirectionalScores{Long: 6.2, Short: 4.1},
			DemandZone: snapshot.Zone{Name: "the demand zone", Role: "demand", Lower: 89200, Upper: 90100},
			SupplyZone: snapshot.Zone{Name: "the supply zone", Role: "supply", Lower: 93400, Upper: 94200},
			RiskBoard: snapshot.RiskBoard{
				Overbought: "medium", Liquidity: "medium",
				FlushRisk: "low", StopHuntRisk: "medium",
			},
		},
		LongSide:  risk.SideInputs{WinProb: 0.55},
		ShortSide: risk.SideInputs{WinProb: 0.40},
	}
}

func cvdSeries() []float64 {
	out := make([]float64, 25)
	for i := range out {
		out[i] = 100 + float64(i)*2
	}
	return out
}

func TestDiagnoseProducesReport(t *testing.T) {
	e := New(decision.DefaultConfig(), zerolog.Nop())
	report := e.Diagnose(fixtureRequest())

	if report.ID == "" {
		t.Fatal("report has no ID")
	}
	if report.Symbol != "BTCUSDT" || report.Timeframe != "1h" {
		t.Fatalf("report identity = %s/%s", report.Symbol, report.Timeframe)
	}
	if report.Decision == "" {
		t.Fatal("report has no decision")
	}
	if report.Confidence < 0 || report.Confidence > 1 {
		t.Fatalf("confidence %v out of [0,1]", report.Confidence)
	}
	if !strings.Contains(report.Text, "Market Doctor — BTCUSDT | 1h") {
		t.Fatal("report text missing header")
	}
	if report.GeneratedAt.IsZero() {
		t.Fatal("report has no timestamp")
	}
}

func TestDiagnoseAttachesAnalyses(t *testing.T) {
	e := New(decision.DefaultConfig(), zerolog.Nop())
	report := e.Diagnose(fixtureRequest())

	if report.Analyses.Regime.Primary == "" {
		t.Fatal("regime analysis missing")
	}
	if report.Analyses.Flow.CVDRateOfChange == 0 {
		t.Fatal("flow analysis missing CVD rate of change")
	}
	if len(report.Analyses.Confidence.Factors) == 0 {
		t.Fatal("confidence factors missing")
	}
	if len(report.Analyses.Shift.Checks) == 0 {
		t.Fatal("shift checks missing")
	}
}

func TestDiagnoseEmptySnapshotStillRenders(t *testing.T) {
	e := New(decision.DefaultConfig(), zerolog.Nop())
	report := e.Diagnose(Request{
		Signal: snapshot.SignalSnapshot{Symbol: "ETHUSDT", Timeframe: "4h", Price: 3200},
		Market: snapshot.MarketSnapshot{
			DemandZone: snapshot.Zone{Role: "demand", Lower: 3000, Upper: 3060},
			SupplyZone: snapshot.Zone{Role: "supply", Lower: 3350, Upper: 3400},
		},
	})

	if report.Text == "" {
		t.Fatal("empty snapshot must still produce a report")
	}
	if report.Decision != decision.ActionWait {
		t.Fatalf("decision = %s, want WAIT on an empty snapshot", report.Decision)
	}
}

func TestDiagnoseDeterministic(t *testing.T) {
	e := New(decision.DefaultConfig(), zerolog.Nop())
	req := fixtureRequest()
	first := e.Diagnose(req)
	for i := 0; i < 5; i++ {
		got := e.Diagnose(req)
		if got.Text != first.Text {
			t.Fatalf("run %d produced different text", i)
		}
		if got.Decision != first.Decision || got.Confidence != first.Confidence {
			t.Fatalf("run %d produced a different verdict", i)
		}
	}
}

func TestProtectSwallowsPanic(t *testing.T) {
	value := "default"
	protect(zerolog.Nop(), "boom", func() {
		panic("analyzer blew up")
	})
	protect(zerolog.Nop(), "ok", func() {
		value = "updated"
	})
	if value != "updated" {
		t.Fatal("protect must run non-panicking functions normally")
	}
}

func TestPriceDirection(t *testing.T) {
	if got := priceDirection([]float64{0.1, -0.2}); got != "down" {
		t.Errorf("priceDirection = %q, want down", got)
	}
	if got := priceDirection([]float64{0.1, 0.2}); got != "up" {
		t.Errorf("priceDirection = %q, want up", got)
	}
	if got := priceDirection(nil); got != "neutral" {
		t.Errorf("priceDirection = %q, want neutral", got)
	}
}

func TestShiftDefaultTargetIsBullish(t *testing.T) {
	e := New(decision.DefaultConfig(), zerolog.Nop())
	req := fixtureRequest()
	req.Signal.MomentumScore = f(0.6)
	req.ShiftTarget = ""

	report := e.Diagnose(req)
	sh := report.Analyses.Shift

	if sh.TargetBias != "LONG" {
		t.Fatalf("default target = %q, want LONG", sh.TargetBias)
	}
	for _, c := range sh.Checks {
		if c.Condition == shift.MomentumConfirmation {
			if !c.Met {
				t.Fatalf("positive momentum must satisfy a bullish flip, required %q current %q",
					c.RequiredState, c.CurrentState)
			}
			return
		}
	}
	t.Fatal("momentum check missing from the shift checklist")
}

func TestShiftTargetNormalization(t *testing.T) {
	cases := map[string]string{
		"":        "LONG",
		"bullish": "LONG",
		"long":    "LONG",
		"LONG":    "LONG",
		"bearish": "SHORT",
		"short":   "SHORT",
		"SHORT":   "SHORT",
	}
	for in, want := range cases {
		if got := shiftTarget(in); got != want {
			t.Errorf("shiftTarget(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestShiftBearishTargetFlipsMomentumDirection(t *testing.T) {
	e := New(decision.DefaultConfig(), zerolog.Nop())
	req := fixtureRequest()
	req.Signal.MomentumScore = f(0.6)
	req.ShiftTarget = "bearish"

	report := e.Diagnose(req)
	if report.Analyses.Shift.TargetBias != "SHORT" {
		t.Fatalf("target = %q, want SHORT", report.Analyses.Shift.TargetBias)
	}
	for _, c := range report.Analyses.Shift.Checks {
		if c.Condition == shift.MomentumConfirmation && c.Met {
			t.Fatal("positive momentum must not satisfy a bearish flip")
		}
	}
}

func TestShiftStructureBreakFromKeyLevels(t *testing.T) {
	e := New(decision.DefaultConfig(), zerolog.Nop())
	req := fixtureRequest()
	req.Signal.KeyLevels = []float64{91800, 95000}

	report := e.Diagnose(req)
	for _, c := range report.Analyses.Shift.Checks {
		if c.Condition == shift.StructureBreak {
			// Price 92150 already above the nearest level 91800
			if !c.Met {
				t.Fatalf("break above the nearest key level should be met, required %q current %q",
					c.RequiredState, c.CurrentState)
			}
			return
		}
	}
	t.Fatal("structure-break check missing when key levels are present")
}

func TestShiftStructureBreakPrefersBreakoutTrigger(t *testing.T) {
	e := New(decision.DefaultConfig(), zerolog.Nop())
	req := fixtureRequest()
	req.Signal.KeyLevels = []float64{91800}
	trigger := 93000.0
	req.Market.BreakoutTrigger = &trigger

	report := e.Diagnose(req)
	for _, c := range report.Analyses.Shift.Checks {
		if c.Condition == shift.StructureBreak {
			if !strings.Contains(c.Description, "93000") {
				t.Fatalf("trigger level should win over key levels, got %q", c.Description)
			}
			if c.Met {
				t.Fatal("price 92150 has not broken the 93000 trigger")
			}
			return
		}
	}
	t.Fatal("structure-break check missing when a trigger is present")
}

func TestSmartMoneyOrderBlockReachesCascade(t *testing.T) {
	e := New(decision.DefaultConfig(), zerolog.Nop())
	req := fixtureRequest()
	req.Signal.WeeklyOrderBlock = f(91000) // price 92150 sits above it

	report := e.Diagnose(req)
	if report.Analyses.SmartMoney.Behavior != smartmoney.NotInterested {
		t.Fatalf("behavior = %q, want %q",
			report.Analyses.SmartMoney.Behavior, smartmoney.NotInterested)
	}
}

func TestSmartMoneyLimitBookReachesCascade(t *testing.T) {
	e := New(decision.DefaultConfig(), zerolog.Nop())
	req := fixtureRequest()
	req.Signal.LimitOrders = []snapshot.PriceVolume{
		{Price: 91000, Volume: 900},
		{Price: 93000, Volume: 100},
	}

	report := e.Diagnose(req)
	if report.Analyses.SmartMoney.Behavior != smartmoney.Accumulating {
		t.Fatalf("behavior = %q, want %q",
			report.Analyses.SmartMoney.Behavior, smartmoney.Accumulating)
	}
}

func TestLevelMapMergesDuplicates(t *testing.T) {
	m := levelMap([]snapshot.PriceVolume{
		{Price: 91000, Volume: 100},
		{Price: 91000, Volume: 50},
	})
	if m[91000] != 150 {
		t.Fatalf("levelMap[91000] = %v, want 150", m[91000])
	}
	if levelMap(nil) != nil {
		t.Fatal("empty input should map to nil")
	}
}
