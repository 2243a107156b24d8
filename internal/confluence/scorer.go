// Package confluence fuses up to seven optional confidence factors into
// one calibrated scalar. The key invariant: weights of absent factors
// are dropped entirely and the remaining weights renormalized to sum to
// 1, never defaulted to a neutral score.
package confluence

import (
	"fmt"
	"strings"

	"market-doctor/internal/snapshot"
)

// Factor is one evaluated confidence contributor
type Factor struct {
	Name         string
	Contribution float64 // 0-1
	Status       string
}

// Analysis is the fused confidence with its ranked factors
type Analysis struct {
	Confidence  float64 // 0-1
	Factors     []Factor
	Explanation string
}

// TimeframeScore is one timeframe's directional verdict
type TimeframeScore struct {
	Direction string  // "LONG" / "SHORT" / "NEUTRAL"
	Score     float64 // 0-10
}

// Inputs carries the optional observations for each factor
type Inputs struct {
	TimeframeScores  map[string]TimeframeScore
	IndicatorScores  map[string]float64 // signed scores per indicator
	RecentVolume     *float64
	AvgVolume        *float64
	PriceDirection   string // "up" / "down" / "neutral"
	OIDelta          *float64
	Volatility       *float64
	AvgVolatility    *float64
	Regime           snapshot.MicroRegime // empty when unknown
	DataCompleteness float64
	DataFreshness    float64
}

// Weights holds the fixed fusion weights per factor
type Weights struct {
	Confluence  float64
	Alignment   float64
	Volume      float64
	OI          float64
	Volatility  float64
	Regime      float64
	DataQuality float64
}

// DefaultWeights returns the calibrated production weights
func DefaultWeights() Weights {
	return Weights{
		Confluence:  0.25,
		Alignment:   0.20,
		Volume:      0.15,
		OI:          0.15,
		Volatility:  0.10,
		Regime:      0.10,
		DataQuality: 0.05,
	}
}

// Scorer fuses the confidence factors
type Scorer struct {
	weights Weights

	// Factors outside these bands are called out in the explanation
	extremeHigh float64
	extremeLow  float64
}

// NewScorer creates a scorer with the supplied weights
func NewScorer(weights Weights) *Scorer {
	return &Scorer{
		weights:     weights,
		extremeHigh: 0.7,
		extremeLow:  0.4,
	}
}

// TimeframeConfluence scores directional agreement across timeframes:
// 0.7 x agreement ratio + 0.3 x average-score strength.
func (s *Scorer) TimeframeConfluence(scores map[string]TimeframeScore) (float64, string) {
	if len(scores) == 0 {
		return 0.5, "no data"
	}
	longCount, shortCount := 0, 0
	totalScore := 0.0
	for _, ts := range scores {
		switch ts.Direction {
		case "LONG":
			longCount++
		case "SHORT":
			shortCount++
		}
		totalScore += ts.Score
	}
	total := len(scores)
	maxAgreement := longCount
	if shortCount > maxAgreement {
		maxAgreement = shortCount
	}
	agreementRatio := float64(maxAgreement) / float64(total)

	avgScore := totalScore / float64(total)
	scoreFactor := 0.0
	if avgScore > 4.0 {
		scoreFactor = (avgScore - 4.0) / 4.0
		if scoreFactor > 1 {
			scoreFactor = 1
		}
	}

	final := agreementRatio*0.7 + scoreFactor*0.3
	switch {
	case final > 0.8:
		return final, "strong timeframe confluence"
	case final > 0.6:
		return final, "moderate timeframe confluence"
	default:
		return final, "weak timeframe confluence"
	}
}

// IndicatorAlignment scores how one-sided the signed indicator scores
// are: 0.6 x alignment ratio + 0.4 x average strength.
func (s *Scorer) IndicatorAlignment(scores map[string]float64) (float64, string) {
	if len(scores) == 0 {
		return 0.5, "no data"
	}
	positive, negative := 0, 0
	absSum := 0.0
	for _, v := range scores {
		if v > 0 {
			positive++
		} else if v < 0 {
			negative++
		}
		absSum += absf(v)
	}
	total := len(scores)
	maxSide := positive
	if negative > maxSide {
		maxSide = negative
	}
	alignmentRatio := float64(maxSide) / float64(total)

	strengthFactor := absSum / float64(total) / 2.0
	if strengthFactor > 1 {
		strengthFactor = 1
	}

	final := alignmentRatio*0.6 + strengthFactor*0.4
	switch {
	case final > 0.7:
		return final, "strong indicator alignment"
	case final > 0.5:
		return final, "moderate indicator alignment"
	default:
		return final, "weak indicator alignment"
	}
}

// VolumeConfirmation bands the recent/average volume ratio
func (s *Scorer) VolumeConfirmation(recentVolume, avgVolume float64) (float64, string) {
	if avgVolume == 0 {
		return 0.5, "no data"
	}
	ratio := recentVolume / avgVolume
	switch {
	case ratio >= 1.2:
		return 0.8, "strong volume support"
	case ratio >= 1.0:
		return 0.6, "moderate volume support"
	case ratio >= 0.8:
		return 0.4, "weak volume support"
	default:
		return 0.2, "no volume confirmation"
	}
}

// OIConfirmation scores whether open interest moves with price
func (s *Scorer) OIConfirmation(oiDelta float64, priceDirection string) (float64, string) {
	switch {
	case priceDirection == "up" && oiDelta > 0.02:
		return 0.8, "OI confirms the move"
	case priceDirection == "down" && oiDelta < -0.02:
		return 0.8, "OI confirms the move"
	case absf(oiDelta) < 0.01:
		return 0.5, "OI is flat"
	default:
		return 0.3, "no OI confirmation"
	}
}

// VolatilityFactor rewards normal volatility and penalizes extremes
func (s *Scorer) VolatilityFactor(volatility, avgVolatility float64) (float64, string) {
	if avgVolatility == 0 {
		return 0.5, "no data"
	}
	ratio := volatility / avgVolatility
	switch {
	case ratio >= 0.8 && ratio <= 1.2:
		return 0.7, "normal volatility"
	case ratio > 1.5:
		return 0.4, "elevated volatility lowers conviction"
	case ratio < 0.5:
		return 0.6, "low volatility, quiet market"
	default:
		return 0.5, "moderate volatility"
	}
}

// RegimeFactor is a fixed lookup per detected regime
func (s *Scorer) RegimeFactor(regime snapshot.MicroRegime) (float64, string) {
	score := 0.5
	switch regime {
	case snapshot.RegimeTrend:
		score = 0.8
	case snapshot.RegimeExhaustion:
		score = 0.4
	case snapshot.RegimeChop:
		score = 0.3
	case snapshot.RegimeLiquidityHunt:
		score = 0.5
	}
	return score, fmt.Sprintf("%s regime", regime)
}

// DataQuality is 0.6 x completeness + 0.4 x freshness; always evaluated
func (s *Scorer) DataQuality(completeness, freshness float64) (float64, string) {
	score := completeness*0.6 + freshness*0.4
	switch {
	case score > 0.9:
		return score, "excellent data quality"
	case score > 0.7:
		return score, "good data quality"
	case score > 0.5:
		return score, "acceptable data quality"
	default:
		return score, "poor data quality"
	}
}

// Fuse evaluates every factor the inputs allow, renormalizes the present
// weights to sum to 1 and returns the clamped weighted average.
func (s *Scorer) Fuse(in Inputs) Analysis {
	var factors []Factor
	var weights []float64

	if len(in.TimeframeScores) > 0 {
		score, status := s.TimeframeConfluence(in.TimeframeScores)
		factors = append(factors, Factor{Name: "timeframe_confluence", Contribution: score, Status: status})
		weights = append(weights, s.weights.Confluence)
	}
	if len(in.IndicatorScores) > 0 {
		score, status := s.IndicatorAlignment(in.IndicatorScores)
		factors = append(factors, Factor{Name: "indicator_alignment", Contribution: score, Status: status})
		weights = append(weights, s.weights.Alignment)
	}
	if in.RecentVolume != nil && in.AvgVolume != nil {
		score, status := s.VolumeConfirmation(*in.RecentVolume, *in.AvgVolume)
		factors = append(factors, Factor{Name: "volume_confirmation", Contribution: score, Status: status})
		weights = append(weights, s.weights.Volume)
	}
	if in.OIDelta != nil {
		score, status := s.OIConfirmation(*in.OIDelta, in.PriceDirection)
		factors = append(factors, Factor{Name: "oi_confirmation", Contribution: score, Status: status})
		weights = append(weights, s.weights.OI)
	}
	if in.Volatility != nil && in.AvgVolatility != nil {
		score, status := s.VolatilityFactor(*in.Volatility, *in.AvgVolatility)
		factors = append(factors, Factor{Name: "volatility", Contribution: score, Status: status})
		weights = append(weights, s.weights.Volatility)
	}
	if in.Regime != "" {
		score, status := s.RegimeFactor(in.Regime)
		factors = append(factors, Factor{Name: "regime", Contribution: score, Status: status})
		weights = append(weights, s.weights.Regime)
	}

	// Data quality is the one mandatory factor
	score, status := s.DataQuality(in.DataCompleteness, in.DataFreshness)
	factors = append(factors, Factor{Name: "data_quality", Contribution: score, Status: status})
	weights = append(weights, s.weights.DataQuality)

	totalWeight := 0.0
	for _, w := range weights {
		totalWeight += w
	}
	confidence := 0.0
	if totalWeight > 0 {
		for i, f := range factors {
			confidence += f.Contribution * (weights[i] / totalWeight)
		}
	}
	confidence = clamp01(confidence)

	return Analysis{
		Confidence:  confidence,
		Factors:     factors,
		Explanation: s.explain(factors),
	}
}

// explain lists only the extreme factors; quiet fusions get a fixed line
func (s *Scorer) explain(factors []Factor) string {
	var parts []string
	for _, f := range factors {
		if f.Contribution > s.extremeHigh || f.Contribution < s.extremeLow {
			parts = append(parts, "- "+f.Status)
		}
	}
	if len(parts) == 0 {
		return "Standard confidence"
	}
	return strings.Join(parts, "\n")
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

func absf(x float64) float64 {
	if x < 0 {
		return -x
	}
	return x
}
