// Package flow analyzes capital flows: cumulative volume delta momentum,
// open-interest delta clusters, funding deviation and aggressive-order
// imbalance. Every metric degrades to a neutral zero on missing or
// degenerate input; the analyzer never fails.
package flow

import (
	"fmt"
	"math"
	"sort"
	"strings"
)

// Analysis holds the computed flow metrics and their interpretation
type Analysis struct {
	CVDRateOfChange      float64
	OIDeltaClusters      map[string]float64
	FundingZScore        float64
	AggressiveImbalance  float64
	Interpretation       string
}

// Analyzer computes flow metrics over trailing windows
type Analyzer struct {
	cvdPeriod      int
	fundingWindow  int
	orderLookback  int
	minFundingHist int
	stdevFloor     float64
}

// NewAnalyzer creates an analyzer with the standard windows
func NewAnalyzer() *Analyzer {
	return &Analyzer{
		cvdPeriod:      20,
		fundingWindow:  100,
		orderLookback:  20,
		minFundingHist: 10,
		stdevFloor:     0.001,
	}
}

// CVDRateOfChange returns the percentage change of CVD over the period,
// or 0 when history is too short or the base value is 0.
func (a *Analyzer) CVDRateOfChange(cvd []float64) float64 {
	if len(cvd) < a.cvdPeriod+1 {
		return 0
	}
	current := cvd[len(cvd)-1]
	previous := cvd[len(cvd)-1-a.cvdPeriod]
	if previous == 0 {
		return 0
	}
	return (current - previous) / math.Abs(previous) * 100
}

// OIDeltaClusters returns the percentage change between the last two OI
// observations per timeframe. Timeframes with fewer than two points are
// skipped; a zero previous value yields a 0 delta.
func (a *Analyzer) OIDeltaClusters(oiData map[string][]float64) map[string]float64 {
	clusters := make(map[string]float64)
	for tf, values := range oiData {
		if len(values) < 2 {
			continue
		}
		current := values[len(values)-1]
		previous := values[len(values)-2]
		if previous == 0 {
			clusters[tf] = 0
			continue
		}
		clusters[tf] = (current - previous) / previous * 100
	}
	return clusters
}

// FundingZScore returns how many standard deviations the current funding
// rate sits from its trailing mean. Requires at least ten historical
// points; the stdev is floored at 0.001 to avoid degenerate spikes.
func (a *Analyzer) FundingZScore(current float64, history []float64) float64 {
	if len(history) < a.minFundingHist {
		return 0
	}
	recent := history
	if len(recent) > a.fundingWindow {
		recent = recent[len(recent)-a.fundingWindow:]
	}

	m := mean(recent)
	sd := stdev(recent, m)
	if sd == 0 {
		return 0
	}
	if sd < a.stdevFloor {
		sd = a.stdevFloor
	}
	return (current - m) / sd
}

// AggressiveImbalance returns (buys - sells) / (buys + sells) over the
// trailing lookback, shrinking the lookback to the shorter series.
func (a *Analyzer) AggressiveImbalance(buyOrders, sellOrders []float64) float64 {
	lookback := a.orderLookback
	if len(buyOrders) < lookback || len(sellOrders) < lookback {
		lookback = min(len(buyOrders), len(sellOrders))
	}
	if lookback == 0 {
		return 0
	}
	buys := sum(buyOrders[len(buyOrders)-lookback:])
	sells := sum(sellOrders[len(sellOrders)-lookback:])

	total := buys + sells
	if total == 0 {
		return 0
	}
	return (buys - sells) / total
}

// Analyze computes every metric the inputs allow and attaches the
// threshold-gated interpretation text.
func (a *Analyzer) Analyze(
	cvd []float64,
	oiData map[string][]float64,
	currentFunding *float64,
	fundingHistory []float64,
	buyOrders, sellOrders []float64,
) Analysis {
	out := Analysis{OIDeltaClusters: map[string]float64{}}

	if len(cvd) > 0 {
		out.CVDRateOfChange = a.CVDRateOfChange(cvd)
	}
	if len(oiData) > 0 {
		out.OIDeltaClusters = a.OIDeltaClusters(oiData)
	}
	if currentFunding != nil && len(fundingHistory) > 0 {
		out.FundingZScore = a.FundingZScore(*currentFunding, fundingHistory)
	}
	if len(buyOrders) > 0 && len(sellOrders) > 0 {
		out.AggressiveImbalance = a.AggressiveImbalance(buyOrders, sellOrders)
	}

	out.Interpretation = a.interpret(out)
	return out
}

// interpret renders only the metrics that exceed their magnitude
// thresholds; quiet flows collapse to a single neutral line.
func (a *Analyzer) interpret(f Analysis) string {
	var parts []string

	if math.Abs(f.CVDRateOfChange) > 5 {
		direction := "rising"
		if f.CVDRateOfChange < 0 {
			direction = "falling"
		}
		parts = append(parts, fmt.Sprintf("CVD %s (%+.1f%%)", direction, f.CVDRateOfChange))
	}

	if len(f.OIDeltaClusters) > 0 {
		avg := 0.0
		for _, tf := range sortedClusterKeys(f.OIDeltaClusters) {
			avg += f.OIDeltaClusters[tf]
		}
		avg /= float64(len(f.OIDeltaClusters))
		if math.Abs(avg) > 2 {
			if avg > 0 {
				parts = append(parts, fmt.Sprintf("OI rising +%.1f%% while price stalls, limit absorption signal", avg))
			} else {
				parts = append(parts, fmt.Sprintf("OI falling %.1f%%, positions likely unwinding", avg))
			}
		}
	}

	if math.Abs(f.FundingZScore) > 2 {
		if f.FundingZScore > 0 {
			parts = append(parts, fmt.Sprintf("Funding %.1f sigma hot, contrarian reaction likely", f.FundingZScore))
		} else {
			parts = append(parts, fmt.Sprintf("Funding %.1f sigma cold, bounce possible", f.FundingZScore))
		}
	}

	if math.Abs(f.AggressiveImbalance) > 0.3 {
		side := "buyers"
		if f.AggressiveImbalance < 0 {
			side = "sellers"
		}
		parts = append(parts, fmt.Sprintf("Aggressive order imbalance favors %s (%+.0f%%)", side, f.AggressiveImbalance*100))
	}

	if len(parts) == 0 {
		return "Capital flows are neutral"
	}
	return strings.Join(parts, ". ")
}

func sortedClusterKeys(m map[string]float64) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func mean(vals []float64) float64 {
	if len(vals) == 0 {
		return 0
	}
	return sum(vals) / float64(len(vals))
}

func stdev(vals []float64, m float64) float64 {
	if len(vals) < 2 {
		return 0
	}
	ss := 0.0
	for _, v := range vals {
		d := v - m
		ss += d * d
	}
	return math.Sqrt(ss / float64(len(vals)-1))
}

func sum(vals []float64) float64 {
	total := 0.0
	for _, v := range vals {
		total += v
	}
	return total
}

func min(a, b int) int {
	if a < b {
		return a
	}
	return b
}
