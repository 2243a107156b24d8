// Package engine joins the sub-analyzers, confidence fusion, decision
// cascade and narrative assembly into one diagnosis call. Sub-analyzers
// have no data dependencies on each other and run concurrently; all
// results must be joined before fusion and decision evaluation.
package engine

import (
	"math"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"market-doctor/internal/bias"
	"market-doctor/internal/confluence"
	"market-doctor/internal/decision"
	"market-doctor/internal/flow"
	"market-doctor/internal/narrative"
	"market-doctor/internal/patterns"
	"market-doctor/internal/regime"
	"market-doctor/internal/risk"
	"market-doctor/internal/shift"
	"market-doctor/internal/smartmoney"
	"market-doctor/internal/snapshot"
)

// Request is one diagnosis invocation. Signal carries the raw series
// for the sub-analyzers; Market carries the presentation context built
// upstream (zones, scenarios, phase, directional scores).
type Request struct {
	Signal snapshot.SignalSnapshot
	Market snapshot.MarketSnapshot

	// Multi-timeframe verdicts for the confluence factor, keyed by
	// timeframe label. Empty skips the factor.
	TimeframeScores map[string]confluence.TimeframeScore

	// Risk estimator inputs per side. Zero values fall back to the
	// calculator's ATR defaults.
	LongSide        risk.SideInputs
	ShortSide       risk.SideInputs
	SetupSimilarity float64

	// Shift checklist target, e.g. current "neutral" -> target "bullish"
	ShiftTarget string
}

// Analyses bundles every sub-analyzer output attached to a report
type Analyses struct {
	Bias       bias.Analysis         `json:"bias"`
	Regime     regime.Analysis       `json:"regime"`
	Flow       flow.Analysis         `json:"flow"`
	Patterns   []patterns.Detection  `json:"patterns,omitempty"`
	Risk       risk.Asymmetry        `json:"risk"`
	Shift      shift.Result          `json:"shift"`
	SmartMoney smartmoney.Analysis   `json:"smart_money"`
	Confidence confluence.Analysis   `json:"confidence"`
}

// Report is the final diagnosis output
type Report struct {
	ID          string            `json:"id"`
	Symbol      string            `json:"symbol"`
	Timeframe   string            `json:"timeframe"`
	Decision    decision.Action   `json:"decision"`
	Strength    decision.Strength `json:"strength,omitempty"`
	Confidence  float64           `json:"confidence"`
	Text        string            `json:"text"`
	Analyses    Analyses          `json:"analyses"`
	GeneratedAt time.Time         `json:"generated_at"`
}

// Engine owns the analyzer instances. All of them are stateless, so
// one engine serves concurrent requests.
type Engine struct {
	bias       *bias.Classifier
	regime     *regime.Detector
	flow       *flow.Analyzer
	patterns   *patterns.Detector
	risk       *risk.Calculator
	shift      *shift.Evaluator
	smartMoney *smartmoney.Analyzer
	scorer     *confluence.Scorer
	decider    *decision.Engine
	assembler  *narrative.Assembler
	log        zerolog.Logger
}

// New wires an engine with the supplied decision thresholds
func New(cfg decision.Config, log zerolog.Logger) *Engine {
	return &Engine{
		bias:       bias.NewClassifier(),
		regime:     regime.NewDetector(),
		flow:       flow.NewAnalyzer(),
		patterns:   patterns.NewDetector(),
		risk:       risk.NewCalculator(),
		shift:      shift.NewEvaluator(),
		smartMoney: smartmoney.NewAnalyzer(),
		scorer:     confluence.NewScorer(confluence.DefaultWeights()),
		decider:    decision.NewEngine(cfg),
		assembler:  narrative.NewAssembler(cfg),
		log:        log.With().Str("component", "engine").Logger(),
	}
}

// Diagnose runs the full pipeline for one snapshot. No step is fatal: a
// failed sub-analyzer is replaced by its neutral default and the report
// still renders, just shorter and less confident.
func (e *Engine) Diagnose(req Request) Report {
	start := time.Now()
	sig := req.Signal
	analyses := e.runAnalyzers(req)

	// Fuse confidence from whatever factors the snapshot carries
	protect(e.log, "confluence", func() {
		analyses.Confidence = e.scorer.Fuse(confluence.Inputs{
			TimeframeScores:  req.TimeframeScores,
			IndicatorScores:  indicatorScores(sig),
			RecentVolume:     sig.RecentVolume,
			AvgVolume:        sig.AvgVolume,
			PriceDirection:   priceDirection(sig.PriceChanges),
			OIDelta:          sig.OIDelta,
			Volatility:       sig.Volatility,
			AvgVolatility:    sig.AvgVolatility,
			Regime:           analyses.Regime.Primary,
			DataCompleteness: sig.DataCompleteness,
			DataFreshness:    sig.DataFreshness,
		})
	})

	market := e.assembleMarket(req, analyses)

	d := e.decider.Decide(decision.Inputs{
		Scores:     market.DirScores,
		LongR:      analyses.Risk.LongR,
		ShortR:     analyses.Risk.ShortR,
		Confidence: market.DirScores.Confidence,
		RiskBoard:  &market.RiskBoard,
	})

	text := e.assembler.Render(market, d)

	report := Report{
		ID:          uuid.New().String(),
		Symbol:      sig.Symbol,
		Timeframe:   sig.Timeframe,
		Decision:    d.Action,
		Strength:    d.Strength,
		Confidence:  market.DirScores.Confidence,
		Text:        text,
		Analyses:    analyses,
		GeneratedAt: time.Now().UTC(),
	}

	e.log.Info().
		Str("symbol", report.Symbol).
		Str("timeframe", report.Timeframe).
		Str("decision", string(report.Decision)).
		Float64("confidence", report.Confidence).
		Dur("elapsed", time.Since(start)).
		Msg("Diagnosis complete")

	return report
}

// runAnalyzers evaluates every sub-analyzer concurrently and joins the
// results. Each goroutine is isolated: a panic in one analyzer leaves
// the documented neutral default in its slot.
func (e *Engine) runAnalyzers(req Request) Analyses {
	sig := req.Signal
	out := Analyses{
		Regime: regime.Analysis{Primary: snapshot.RegimeChop, Description: "regime unavailable"},
	}

	var wg sync.WaitGroup
	run := func(name string, fn func()) {
		wg.Add(1)
		go func() {
			defer wg.Done()
			protect(e.log, name, fn)
		}()
	}

	run("bias", func() {
		recentVol, avgVol := 0.0, 0.0
		if sig.RecentVolume != nil {
			recentVol = *sig.RecentVolume
		}
		if sig.AvgVolume != nil {
			avgVol = *sig.AvgVolume
		}
		out.Bias = e.bias.Analyze(
			req.Market.Bias.Tactical, req.Market.Bias.Strategic,
			sig.Price, sig.HTFLevels, sig.Imbalances,
			sig.EQHLevels, sig.EQLLevels,
			sig.LiquidityAbove, sig.LiquidityBelow,
			recentVol, avgVol,
			sig.OIDelta, sig.FundingRate,
		)
	})

	run("regime", func() {
		volatility, momentum := 0.0, 0.0
		if sig.Volatility != nil {
			volatility = *sig.Volatility
		}
		if sig.MomentumScore != nil {
			momentum = *sig.MomentumScore
		}
		out.Regime = e.regime.Detect(
			sig.PriceChanges, sig.Volumes,
			volatility, momentum,
			sig.LiquidityAbove, sig.LiquidityBelow,
			sig.RecentWicks,
		)
	})

	run("flow", func() {
		out.Flow = e.flow.Analyze(
			sig.CVDHistory, sig.OIHistory,
			sig.FundingRate, sig.FundingHistory,
			sig.BuyVolumes, sig.SellVolumes,
		)
	})

	run("patterns", func() {
		out.Patterns = e.patterns.DetectAll(
			sig.Candles, sig.Volumes,
			sig.BuyVolumes, sig.SellVolumes, sig.PriceChanges,
			sig.KeyLevels, sig.Imbalances, sig.Price,
		)
	})

	run("risk", func() {
		atr := 0.0
		if sig.ATR != nil {
			atr = *sig.ATR
		}
		out.Risk = e.risk.Calculate(sig.Price, atr, req.LongSide, req.ShortSide, req.SetupSimilarity)
	})

	run("shift", func() {
		in := shift.Inputs{
			OIDelta:        sig.OIDelta,
			CurrentVolume:  sig.RecentVolume,
			AvgVolume:      sig.AvgVolume,
			LiquidityAbove: sig.LiquidityAbove,
			Funding:        sig.FundingRate,
			Momentum:       sig.MomentumScore,
		}
		// The level to break: the announced breakout trigger when the
		// upstream pipeline named one, otherwise the key level nearest
		// to price. Current price is what has to cross it.
		if level := structureLevel(req.Market.BreakoutTrigger, sig.KeyLevels, sig.Price); level != nil {
			price := sig.Price
			in.StructureLevel = level
			in.BreakLevel = &price
		}
		out.Shift = e.shift.Evaluate(req.Market.Bias.Tactical, shiftTarget(req.ShiftTarget), in)
	})

	run("smart_money", func() {
		in := smartmoney.Inputs{
			Price:            sig.Price,
			WeeklyOrderBlock: sig.WeeklyOrderBlock,
			VolumeProfile:    levelMap(sig.VolumeProfile),
			LimitOrders:      levelMap(sig.LimitOrders),
			LiquidityAbove:   sig.LiquidityAbove,
			LiquidityBelow:   sig.LiquidityBelow,
			RecentWicks:      sig.RecentWicks,
			OIDelta:          sig.OIDelta,
			KeyLevels:        sig.KeyLevels,
		}
		if sig.DailyFVG != nil {
			in.DailyFVG = &smartmoney.PriceRange{Low: sig.DailyFVG.PriceLow, High: sig.DailyFVG.PriceHigh}
		}
		if sig.VolumeAbsorption != nil {
			in.VolumeAbsorption = *sig.VolumeAbsorption
		}
		out.SmartMoney = e.smartMoney.Analyze(in)
	})

	wg.Wait()
	return out
}

// assembleMarket folds the analyzer outputs into the upstream market
// context so the narrative renders one coherent picture.
func (e *Engine) assembleMarket(req Request, analyses Analyses) snapshot.MarketSnapshot {
	market := req.Market
	market.Symbol = req.Signal.Symbol
	market.Timeframe = req.Signal.Timeframe
	market.Price = req.Signal.Price

	market.MicroRegime = analyses.Regime.Primary
	if analyses.Bias.StructuralNote != "" {
		market.Bias.Structural = analyses.Bias.StructuralNote
	}
	if analyses.Bias.LiquidityNote != "" {
		market.Bias.Liquidity = analyses.Bias.LiquidityNote
	}
	market.DirScores.Confidence = analyses.Confidence.Confidence

	if len(req.Signal.CVDHistory) > 0 {
		cvd := analyses.Flow.CVDRateOfChange
		market.Flow.CVDChangePct = &cvd
	}
	if market.Flow.Comment == "" {
		market.Flow.Comment = analyses.Flow.Interpretation
	}
	market.Flow.Funding = req.Signal.FundingRate

	market.RAsym = snapshot.RAsymmetry{
		LongR:  analyses.Risk.LongR,
		ShortR: analyses.Risk.ShortR,
	}
	if market.Narrative == "" {
		market.Narrative = analyses.SmartMoney.Narrative
	}
	return market
}

// protect runs fn and downgrades any panic to an error log, leaving the
// caller's neutral default in place.
func protect(log zerolog.Logger, name string, fn func()) {
	defer func() {
		if r := recover(); r != nil {
			log.Error().Str("analyzer", name).Interface("panic", r).Msg("Analyzer failed, using neutral default")
		}
	}()
	fn()
}

// indicatorScores collects the present signed scores for the alignment
// factor, scaled from [-1,1] to the [-2,2] range the factor expects.
func indicatorScores(sig snapshot.SignalSnapshot) map[string]float64 {
	out := map[string]float64{}
	add := func(name string, v *float64) {
		if v != nil {
			out[name] = *v * 2
		}
	}
	add("trend", sig.TrendScore)
	add("momentum", sig.MomentumScore)
	add("volume", sig.VolumeScore)
	add("structure", sig.StructureScore)
	add("derivatives", sig.DerivativesScore)
	add("volatility", sig.VolatilityScore)
	if len(out) == 0 {
		return nil
	}
	return out
}

// shiftTarget maps the requested flip direction onto the evaluator's
// LONG/SHORT vocabulary. Bullish flips are the default.
func shiftTarget(s string) string {
	switch strings.ToLower(s) {
	case "bearish", "short":
		return "SHORT"
	default:
		return "LONG"
	}
}

// structureLevel picks the level the shift checklist watches for a
// break: an explicit breakout trigger wins, otherwise the key level
// nearest to price. Nil when neither source is available.
func structureLevel(trigger *float64, keyLevels []float64, price float64) *float64 {
	if trigger != nil {
		return trigger
	}
	if len(keyLevels) == 0 {
		return nil
	}
	nearest := keyLevels[0]
	for _, level := range keyLevels[1:] {
		if math.Abs(level-price) < math.Abs(nearest-price) {
			nearest = level
		}
	}
	return &nearest
}

// levelMap converts price/volume pairs into the lookup form the
// smart-money analyzer consumes
func levelMap(levels []snapshot.PriceVolume) map[float64]float64 {
	if len(levels) == 0 {
		return nil
	}
	out := make(map[float64]float64, len(levels))
	for _, l := range levels {
		out[l.Price] += l.Volume
	}
	return out
}

// priceDirection reads the last price change sign
func priceDirection(changes []float64) string {
	if len(changes) == 0 {
		return "neutral"
	}
	last := changes[len(changes)-1]
	switch {
	case last > 0:
		return "up"
	case last < 0:
		return "down"
	}
	return "neutral"
}
