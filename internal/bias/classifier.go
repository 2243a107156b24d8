// Package bias classifies the structural and liquidity lean of a symbol.
// Both classifications are first-match cascades: the rule order is a
// behavioral contract, reordering the checks changes the result.
package bias

import (
	"fmt"
	"sort"

	"market-doctor/internal/snapshot"
)

// Structural represents the structure-derived bias
type Structural string

const (
	BullishStructure Structural = "bullish_structure"
	BearishStructure Structural = "bearish_structure"
	NeutralStructure Structural = "neutral_structure"
	BullishImbalance Structural = "bullish_imbalance"
	BearishImbalance Structural = "bearish_imbalance"
	AboveEQH         Structural = "above_eqh"
	BelowEQL         Structural = "below_eql"
)

// Liquidity represents the order-flow-derived bias
type Liquidity string

const (
	LiquidityBelow   Liquidity = "liquidity_below"
	LiquidityAbove   Liquidity = "liquidity_above"
	SFPRiskHigh      Liquidity = "sfp_risk_high"
	LiquidityNeutral Liquidity = "liquidity_neutral"
	Accumulation     Liquidity = "accumulation"
)

// Analysis is the combined bias result for one snapshot
type Analysis struct {
	Tactical       string
	Strategic      string
	Structural     Structural
	StructuralNote string
	Liquidity      Liquidity
	LiquidityNote  string
}

// Classifier runs the structural and liquidity bias cascades
type Classifier struct {
	// Proximity to an EQH/EQL level, as a fraction of price
	levelProximity float64
	// Liquidity side dominance multiplier
	dominanceRatio float64
	// Volume ratio below which quiet accumulation is considered
	quietVolumeRatio float64
	// Funding rate above which the market is treated as overheated
	hotFunding float64
}

// NewClassifier creates a classifier with the standard thresholds
func NewClassifier() *Classifier {
	return &Classifier{
		levelProximity:   0.01,
		dominanceRatio:   1.5,
		quietVolumeRatio: 0.7,
		hotFunding:       0.01,
	}
}

// ClassifyStructural walks the structural cascade: EQH proximity, EQL
// proximity, unfilled imbalances, then higher-timeframe level position.
// Absent inputs skip their rule; the terminal fallback is neutral.
func (c *Classifier) ClassifyStructural(
	price float64,
	htfLevels map[string][]float64,
	imbalances []snapshot.Imbalance,
	eqhLevels, eqlLevels []float64,
) (Structural, string) {
	// 1. Price just below an equal-high cluster above
	if nearest, ok := nearestAbove(eqhLevels, price); ok {
		if price > 0 && abs(price-nearest)/price < c.levelProximity {
			return AboveEQH, fmt.Sprintf("Near daily EQH (%.0f), stop-run risk above", nearest)
		}
	}

	// 2. Price just above an equal-low cluster below
	if nearest, ok := nearestBelow(eqlLevels, price); ok {
		if price > 0 && abs(price-nearest)/price < c.levelProximity {
			return BelowEQL, fmt.Sprintf("Near daily EQL (%.0f), support below", nearest)
		}
	}

	// 3. Price inside an unfilled imbalance
	for _, im := range imbalances {
		if im.Filled {
			continue
		}
		if im.Contains(price) {
			if im.Direction == "bearish" {
				return BearishImbalance, fmt.Sprintf("Inside daily bearish imbalance (%.0f-%.0f)", im.PriceLow, im.PriceHigh)
			}
			return BullishImbalance, fmt.Sprintf("Inside daily bullish imbalance (%.0f-%.0f)", im.PriceLow, im.PriceHigh)
		}
	}

	// 4. Higher-timeframe level position. Timeframes are walked in sorted
	// order so the cascade stays deterministic across runs.
	for _, tf := range sortedKeys(htfLevels) {
		levels := htfLevels[tf]
		if len(levels) == 0 {
			continue
		}
		above := 0
		for _, level := range levels {
			if price > level {
				above++
			}
		}
		if float64(above) > float64(len(levels))*0.7 {
			return BullishStructure, fmt.Sprintf("Bullish structure on %s", tf)
		}
		if float64(above) < float64(len(levels))*0.3 {
			return BearishStructure, fmt.Sprintf("Bearish structure on %s", tf)
		}
	}

	return NeutralStructure, "Neutral structure"
}

// ClassifyLiquidity walks the liquidity cascade: pool dominance below,
// pool dominance above, quiet-volume accumulation, overheated funding.
func (c *Classifier) ClassifyLiquidity(
	price float64,
	liquidityAbove, liquidityBelow []float64,
	recentVolume, avgVolume float64,
	oiDelta, fundingRate *float64,
) (Liquidity, string) {
	liqAbove := sum(liquidityAbove)
	liqBelow := sum(liquidityBelow)

	if liqBelow > liqAbove*c.dominanceRatio {
		return LiquidityBelow, fmt.Sprintf("Liquidity resting below (%.0f vs %.0f), elevated stop-run risk", liqBelow, liqAbove)
	}
	if liqAbove > liqBelow*c.dominanceRatio {
		return LiquidityAbove, fmt.Sprintf("Liquidity resting above (%.0f vs %.0f), possible run-up before reversal", liqAbove, liqBelow)
	}

	if recentVolume < avgVolume*c.quietVolumeRatio {
		if oiDelta != nil && *oiDelta > 0 {
			return Accumulation, "Quiet accumulation of liquidity above local highs"
		}
	}

	if fundingRate != nil && *fundingRate > c.hotFunding {
		return SFPRiskHigh, fmt.Sprintf("Funding %.3f%% is overheated, contrarian reaction likely", *fundingRate*100)
	}

	return LiquidityNeutral, "Neutral, liquidity building above local highs"
}

// Analyze runs both cascades and merges the tactical/strategic leans
// supplied by the scoring layer. Structural inputs entirely absent means
// no structural verdict is recorded, same for liquidity.
func (c *Classifier) Analyze(
	tactical, strategic string,
	price float64,
	htfLevels map[string][]float64,
	imbalances []snapshot.Imbalance,
	eqhLevels, eqlLevels []float64,
	liquidityAbove, liquidityBelow []float64,
	recentVolume, avgVolume float64,
	oiDelta, fundingRate *float64,
) Analysis {
	out := Analysis{Tactical: tactical, Strategic: strategic}

	if len(htfLevels) > 0 || len(imbalances) > 0 || len(eqhLevels) > 0 || len(eqlLevels) > 0 {
		out.Structural, out.StructuralNote = c.ClassifyStructural(price, htfLevels, imbalances, eqhLevels, eqlLevels)
	}
	if liquidityAbove != nil || liquidityBelow != nil {
		out.Liquidity, out.LiquidityNote = c.ClassifyLiquidity(price, liquidityAbove, liquidityBelow, recentVolume, avgVolume, oiDelta, fundingRate)
	}
	return out
}

// nearestAbove returns the smallest level strictly above price
func nearestAbove(levels []float64, price float64) (float64, bool) {
	best, found := 0.0, false
	for _, l := range levels {
		if l > price && (!found || l < best) {
			best, found = l, true
		}
	}
	return best, found
}

// nearestBelow returns the largest level strictly below price
func nearestBelow(levels []float64, price float64) (float64, bool) {
	best, found := 0.0, false
	for _, l := range levels {
		if l < price && (!found || l > best) {
			best, found = l, true
		}
	}
	return best, found
}

func sortedKeys(m map[string][]float64) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func sum(vals []float64) float64 {
	total := 0.0
	for _, v := range vals {
		total += v
	}
	return total
}

func abs(x float64) float64 {
	if x < 0 {
		return -x
	}
	return x
}
