// Package patterns recognizes short-horizon micro patterns in recent
// candle data. The five detectors are independent and optional: each
// scans its own trailing window, returns at most one detection with a
// fixed confidence and forward horizon, and missing inputs simply
// disable the detector. Results are concatenated, never merged.
package patterns

import (
	"math"

	"market-doctor/internal/snapshot"
)

// PatternType represents the supported micro patterns
type PatternType string

const (
	ThreeBarReversal       PatternType = "3_bar_reversal"
	StopRunRecoil          PatternType = "stop_run_recoil"
	DeltaAbsorption        PatternType = "delta_absorption"
	ImbalanceRefillImpulse PatternType = "imbalance_refill_impulse"
	VolumeClimaxCompression PatternType = "volume_climax_compression"
)

// Detection represents one recognized micro pattern
type Detection struct {
	Pattern      PatternType
	Confidence   float64 // fixed per pattern
	Description  string
	HorizonHours int // expected forward relevance window
	Direction    string // "bullish" / "bearish"
}

// Detector runs all micro-pattern scans
type Detector struct {
	absorptionLookback int
	climaxLookback     int
	absorptionRatio    float64
	flatPriceThreshold float64
}

// NewDetector creates a detector with the standard windows
func NewDetector() *Detector {
	return &Detector{
		absorptionLookback: 10,
		climaxLookback:     20,
		absorptionRatio:    1.5,
		flatPriceThreshold: 0.001,
	}
}

// DetectThreeBarReversal checks the last three candles for two
// same-direction bars followed by an opposite close beyond the middle
// bar's extreme.
func (d *Detector) DetectThreeBarReversal(candles []snapshot.Candle) *Detection {
	if len(candles) < 3 {
		return nil
	}
	c1 := candles[len(candles)-3]
	c2 := candles[len(candles)-2]
	c3 := candles[len(candles)-1]

	if c1.Bearish() && c2.Bearish() && c3.Bullish() && c3.Close > c2.High {
		return &Detection{
			Pattern:      ThreeBarReversal,
			Confidence:   0.7,
			Description:  "3-bar reversal forming, pullback likely within the next 4-8 bars",
			HorizonHours: 4,
			Direction:    "bullish",
		}
	}
	if c1.Bullish() && c2.Bullish() && c3.Bearish() && c3.Close < c2.Low {
		return &Detection{
			Pattern:      ThreeBarReversal,
			Confidence:   0.7,
			Description:  "3-bar reversal forming, pullback likely within the next 4-8 bars",
			HorizonHours: 4,
			Direction:    "bearish",
		}
	}
	return nil
}

// DetectStopRunRecoil checks for a key level pierced and reclaimed
// within the last two candles.
func (d *Detector) DetectStopRunRecoil(candles []snapshot.Candle, keyLevels []float64) *Detection {
	if len(candles) < 2 || len(keyLevels) == 0 {
		return nil
	}
	last := candles[len(candles)-1]
	prev := candles[len(candles)-2]

	for _, level := range keyLevels {
		// Sweep below the level, close back above
		if prev.Low > level && last.Low < level && last.Close > level {
			return &Detection{
				Pattern:      StopRunRecoil,
				Confidence:   0.75,
				Description:  "Stop run and recoil: stops swept below the level, price reclaimed it",
				HorizonHours: 4,
				Direction:    "bullish",
			}
		}
		// Sweep above the level, close back below
		if prev.High < level && last.High > level && last.Close < level {
			return &Detection{
				Pattern:      StopRunRecoil,
				Confidence:   0.75,
				Description:  "Stop run and recoil: stops swept above the level, price rejected it",
				HorizonHours: 4,
				Direction:    "bearish",
			}
		}
	}
	return nil
}

// DetectDeltaAbsorption checks for one side soaking 1.5x the opposing
// volume while price stays effectively flat.
func (d *Detector) DetectDeltaAbsorption(buyVolume, sellVolume, priceChanges []float64) *Detection {
	if len(buyVolume) < d.absorptionLookback || len(sellVolume) < d.absorptionLookback {
		return nil
	}
	buys := sum(buyVolume[len(buyVolume)-d.absorptionLookback:])
	sells := sum(sellVolume[len(sellVolume)-d.absorptionLookback:])
	avgChange := 0.0
	if len(priceChanges) > 0 {
		avgChange = sum(tail(priceChanges, d.absorptionLookback)) / float64(d.absorptionLookback)
	}

	if buys > sells*d.absorptionRatio && math.Abs(avgChange) < d.flatPriceThreshold {
		return &Detection{
			Pattern:      DeltaAbsorption,
			Confidence:   0.65,
			Description:  "Delta absorption: heavy buying volume with a flat price, accumulation",
			HorizonHours: 8,
			Direction:    "bullish",
		}
	}
	if sells > buys*d.absorptionRatio && math.Abs(avgChange) < d.flatPriceThreshold {
		return &Detection{
			Pattern:      DeltaAbsorption,
			Confidence:   0.65,
			Description:  "Delta absorption: heavy selling volume with a flat price, distribution",
			HorizonHours: 8,
			Direction:    "bearish",
		}
	}
	return nil
}

// DetectImbalanceRefill checks whether price re-entered an unfilled
// imbalance and the latest candle closed bullish.
func (d *Detector) DetectImbalanceRefill(candles []snapshot.Candle, imbalances []snapshot.Imbalance, price float64) *Detection {
	if len(imbalances) == 0 || len(candles) < 2 {
		return nil
	}
	for _, im := range imbalances {
		if im.Filled || !im.Contains(price) {
			continue
		}
		if candles[len(candles)-1].Bullish() {
			return &Detection{
				Pattern:      ImbalanceRefillImpulse,
				Confidence:   0.7,
				Description:  "Imbalance refill with impulse continuation",
				HorizonHours: 6,
				Direction:    "bullish",
			}
		}
	}
	return nil
}

// DetectVolumeClimaxCompression checks for a volume peak followed by at
// least three compressed bars and a 1.5x expansion off the compressed
// average.
func (d *Detector) DetectVolumeClimaxCompression(candles []snapshot.Candle, volumes []float64) *Detection {
	if len(candles) < d.climaxLookback || len(volumes) < d.climaxLookback {
		return nil
	}
	recentVolumes := volumes[len(volumes)-d.climaxLookback:]
	recentCandles := candles[len(candles)-d.climaxLookback:]

	climaxIdx := 0
	for i, v := range recentVolumes {
		if v > recentVolumes[climaxIdx] {
			climaxIdx = i
		}
	}
	if climaxIdx >= len(recentVolumes)-5 {
		return nil // climax too recent, no room for compression
	}

	postClimax := recentVolumes[climaxIdx+1:]
	if len(postClimax) < 3 {
		return nil
	}
	compressedAvg := sum(postClimax[:3]) / 3
	if compressedAvg >= recentVolumes[climaxIdx]*0.5 {
		return nil
	}
	if len(postClimax) < 5 {
		return nil
	}
	latest := postClimax[len(postClimax)-1]
	if latest <= compressedAvg*1.5 {
		return nil
	}

	direction := "bearish"
	if recentCandles[len(recentCandles)-1].Bullish() {
		direction = "bullish"
	}
	return &Detection{
		Pattern:      VolumeClimaxCompression,
		Confidence:   0.8,
		Description:  "Volume climax, compression, then expansion: strong impulse likely",
		HorizonHours: 8,
		Direction:    direction,
	}
}

// DetectAll runs every detector the inputs allow and concatenates the
// detections in a fixed order.
func (d *Detector) DetectAll(
	candles []snapshot.Candle,
	volumes []float64,
	buyVolume, sellVolume, priceChanges []float64,
	keyLevels []float64,
	imbalances []snapshot.Imbalance,
	price float64,
) []Detection {
	var out []Detection

	if p := d.DetectThreeBarReversal(candles); p != nil {
		out = append(out, *p)
	}
	if len(keyLevels) > 0 {
		if p := d.DetectStopRunRecoil(candles, keyLevels); p != nil {
			out = append(out, *p)
		}
	}
	if len(buyVolume) > 0 && len(sellVolume) > 0 && len(priceChanges) > 0 {
		if p := d.DetectDeltaAbsorption(buyVolume, sellVolume, priceChanges); p != nil {
			out = append(out, *p)
		}
	}
	if len(imbalances) > 0 {
		if p := d.DetectImbalanceRefill(candles, imbalances, price); p != nil {
			out = append(out, *p)
		}
	}
	if len(volumes) > 0 {
		if p := d.DetectVolumeClimaxCompression(candles, volumes); p != nil {
			out = append(out, *p)
		}
	}
	return out
}

func tail(vals []float64, n int) []float64 {
	if len(vals) <= n {
		return vals
	}
	return vals[len(vals)-n:]
}

func sum(vals []float64) float64 {
	total := 0.0
	for _, v := range vals {
		total += v
	}
	return total
}
