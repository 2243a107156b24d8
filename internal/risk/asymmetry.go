// Package risk estimates the expected return per trade side in R units
// and the asymmetry between the two sides. Three independent estimators
// (ATR distance, scenario probabilities, historical pattern outcomes)
// are blended 40/30/30; estimators without input contribute zero.
package risk

import "fmt"

// Scenario is one probability-weighted outcome path
type Scenario struct {
	Probability float64
	TargetR     float64
	StopR       float64
}

// HistoricalOutcome is one past comparable setup and its realized R
type HistoricalOutcome struct {
	OutcomeR   float64
	Count      int
	Similarity float64 // 0-1 resemblance to the current setup
}

// Asymmetry is the blended per-side expectation and its interpretation
type Asymmetry struct {
	LongR          float64
	ShortR         float64
	Asymmetry      float64 // LongR - ShortR
	Interpretation string
}

// SideInputs bundles one side's estimator inputs
type SideInputs struct {
	Stop       float64 // stop price, 0 if unknown
	Target     float64 // target price, 0 if unknown
	WinProb    float64
	Scenarios  []Scenario
	Historical []HistoricalOutcome
}

// Calculator blends the three R estimators
type Calculator struct {
	atrWeight      float64
	scenarioWeight float64
	historyWeight  float64

	strongBand float64
	slightBand float64
}

// NewCalculator creates a calculator with the standard 40/30/30 blend
func NewCalculator() *Calculator {
	return &Calculator{
		atrWeight:      0.4,
		scenarioWeight: 0.3,
		historyWeight:  0.3,
		strongBand:     0.3,
		slightBand:     0.1,
	}
}

// ATRBasedR returns win_prob * (target/stop in ATR) - (1 - win_prob).
// Degenerate distances fall back to a 1.0 ratio.
func (c *Calculator) ATRBasedR(atr, price, stopPct, targetPct, winProb float64) float64 {
	stopATR, targetATR := 1.0, 1.0
	if atr > 0 {
		stopATR = price * stopPct / 100 / atr
		targetATR = price * targetPct / 100 / atr
	}
	rRatio := 1.0
	if stopATR > 0 {
		rRatio = targetATR / stopATR
	}
	return winProb*rRatio - (1-winProb)*1.0
}

// ScenarioBasedR returns the probability-weighted expectation over the
// supplied scenarios, or 0 when none exist.
func (c *Calculator) ScenarioBasedR(scenarios []Scenario) float64 {
	if len(scenarios) == 0 {
		return 0
	}
	totalR, totalProb := 0.0, 0.0
	for _, s := range scenarios {
		scenarioR := s.Probability*s.TargetR - (1-s.Probability)*s.StopR
		totalR += scenarioR * s.Probability
		totalProb += s.Probability
	}
	if totalProb == 0 {
		return 0
	}
	return totalR / totalProb
}

// HistoricalPatternR returns the count- and similarity-weighted average
// outcome R over comparable past setups.
func (c *Calculator) HistoricalPatternR(history []HistoricalOutcome, setupSimilarity float64) float64 {
	if len(history) == 0 {
		return 0
	}
	totalR, totalWeight := 0.0, 0.0
	for _, h := range history {
		count := h.Count
		if count == 0 {
			count = 1
		}
		similarity := h.Similarity
		if similarity == 0 {
			similarity = 1.0
		}
		weight := float64(count) * similarity * setupSimilarity
		totalR += h.OutcomeR * weight
		totalWeight += weight
	}
	if totalWeight == 0 {
		return 0
	}
	return totalR / totalWeight
}

// Calculate blends all three estimators per side and bands the
// asymmetry. Stop/target distances default to 2%/4% when unknown.
func (c *Calculator) Calculate(price, atr float64, long, short SideInputs, setupSimilarity float64) Asymmetry {
	if setupSimilarity == 0 {
		setupSimilarity = 1.0
	}

	longR := c.sideR(price, atr, long, true, setupSimilarity)
	shortR := c.sideR(price, atr, short, false, setupSimilarity)
	asym := longR - shortR

	return Asymmetry{
		LongR:          longR,
		ShortR:         shortR,
		Asymmetry:      asym,
		Interpretation: c.interpret(asym),
	}
}

func (c *Calculator) sideR(price, atr float64, in SideInputs, isLong bool, setupSimilarity float64) float64 {
	stopPct, targetPct := 2.0, 4.0
	if price > 0 {
		if in.Stop > 0 {
			if isLong {
				stopPct = absf(price-in.Stop) / price * 100
			} else {
				stopPct = absf(in.Stop-price) / price * 100
			}
		}
		if in.Target > 0 {
			if isLong {
				targetPct = absf(in.Target-price) / price * 100
			} else {
				targetPct = absf(price-in.Target) / price * 100
			}
		}
	}

	atrR := c.ATRBasedR(atr, price, stopPct, targetPct, in.WinProb)
	scenarioR := c.ScenarioBasedR(in.Scenarios)
	histR := c.HistoricalPatternR(in.Historical, setupSimilarity)

	return atrR*c.atrWeight + scenarioR*c.scenarioWeight + histR*c.historyWeight
}

func (c *Calculator) interpret(asym float64) string {
	switch {
	case asym > c.strongBand:
		return fmt.Sprintf("Market strongly favors longs (+%.2fR)", asym)
	case asym > c.slightBand:
		return fmt.Sprintf("Market slightly favors longs (+%.2fR)", asym)
	case asym < -c.strongBand:
		return fmt.Sprintf("Market strongly favors shorts (%.2fR)", asym)
	case asym < -c.slightBand:
		return fmt.Sprintf("Market slightly favors shorts (%.2fR)", asym)
	default:
		return "Market is neutral on asymmetry"
	}
}

func absf(x float64) float64 {
	if x < 0 {
		return -x
	}
	return x
}
