// Package regime detects the market meta-regime through an ordered
// priority cascade. Only the first matching rule fires; the order
// TREND, EXHAUSTION, LIQUIDITY_HUNT, CHOP is a behavioral contract.
package regime

import "market-doctor/internal/snapshot"

// Analysis is one regime verdict with its conviction
type Analysis struct {
	Primary     snapshot.MicroRegime
	Confidence  float64
	Description string
}

// Detector evaluates the regime cascade
type Detector struct {
	lookback int

	trendStrengthMin float64
	trendMomentumMin float64
	exhaustionVolumeRatio float64
	exhaustionMomentumMax float64
	wickMultiple   float64
	wickFraction   float64
	chopVolatility float64
	chopTrendMax   float64
}

// NewDetector creates a detector with the standard thresholds
func NewDetector() *Detector {
	return &Detector{
		lookback:              20,
		trendStrengthMin:      0.4,
		trendMomentumMin:      0.3,
		exhaustionVolumeRatio: 0.7,
		exhaustionMomentumMax: 0.2,
		wickMultiple:          1.5,
		wickFraction:          0.3,
		chopVolatility:        0.02,
		chopTrendMax:          0.2,
	}
}

// Detect runs the cascade over the recent window and returns the first
// matching regime. The fallback is a low-conviction TREND verdict.
func (d *Detector) Detect(
	priceChanges []float64,
	volumes []float64,
	volatility float64,
	momentumScore float64,
	liquidityAbove, liquidityBelow []float64,
	recentWicks []float64,
) Analysis {
	lookback := d.lookback
	if len(priceChanges) < lookback {
		lookback = len(priceChanges)
	}
	recentChanges := tail(priceChanges, lookback)
	recentVolumes := tail(volumes, lookback)

	trendStrength := trendStrength(recentChanges)

	// 1. TREND: sustained one-sided movement with live momentum
	if trendStrength > d.trendStrengthMin && abs(momentumScore) > d.trendMomentumMin {
		conf := trendStrength
		if conf > 0.9 {
			conf = 0.9
		}
		return Analysis{
			Primary:     snapshot.RegimeTrend,
			Confidence:  conf,
			Description: "Market is in a trending regime",
		}
	}

	// 2. EXHAUSTION: volume drying up while momentum fades
	if len(recentVolumes) >= 5 {
		recentAvg := mean(tail(recentVolumes, 5))
		earlierAvg := recentAvg
		if len(recentVolumes) >= 10 {
			earlierAvg = mean(recentVolumes[len(recentVolumes)-10 : len(recentVolumes)-5])
		}
		if recentAvg < earlierAvg*d.exhaustionVolumeRatio && abs(momentumScore) < d.exhaustionMomentumMax {
			return Analysis{
				Primary:     snapshot.RegimeExhaustion,
				Confidence:  0.7,
				Description: "Exhaustion regime, the impulse is fading",
			}
		}
	}

	// 3. LIQUIDITY_HUNT: outsized wicks with resting liquidity on a side
	if len(recentWicks) > 0 {
		avgWick := mean(recentWicks)
		large := 0
		for _, w := range recentWicks {
			if w > avgWick*d.wickMultiple {
				large++
			}
		}
		liqAbove := sum(liquidityAbove)
		liqBelow := sum(liquidityBelow)
		if float64(large) > float64(len(recentWicks))*d.wickFraction && (liqAbove > 0 || liqBelow > 0) {
			direction := "downward"
			if liqAbove > liqBelow {
				direction = "upward"
			}
			return Analysis{
				Primary:     snapshot.RegimeLiquidityHunt,
				Confidence:  0.75,
				Description: "Liquidity-hunt regime, " + direction + " sweep likely before a reversal",
			}
		}
	}

	// 4. CHOP: volatile but directionless
	if volatility > d.chopVolatility && trendStrength < d.chopTrendMax {
		return Analysis{
			Primary:     snapshot.RegimeChop,
			Confidence:  0.7,
			Description: "Chop regime, high volatility without direction",
		}
	}

	return Analysis{
		Primary:     snapshot.RegimeTrend,
		Confidence:  0.5,
		Description: "Market is in a trending regime (default, low conviction)",
	}
}

// trendStrength is |up moves - down moves| / window
func trendStrength(changes []float64) float64 {
	if len(changes) == 0 {
		return 0
	}
	up, down := 0, 0
	for _, chg := range changes {
		if chg > 0 {
			up++
		} else if chg < 0 {
			down++
		}
	}
	return abs(float64(up-down)) / float64(len(changes))
}

func tail(vals []float64, n int) []float64 {
	if len(vals) <= n {
		return vals
	}
	return vals[len(vals)-n:]
}

func mean(vals []float64) float64 {
	if len(vals) == 0 {
		return 0
	}
	return sum(vals) / float64(len(vals))
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
