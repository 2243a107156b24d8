// Package smartmoney interprets where institutional participants are
// likely positioned: a first-match behavior cascade over order blocks,
// daily gaps, volume-profile accumulation zones and the limit book,
// plus a stop-hunt probability estimate for the 1h and 4h horizons.
package smartmoney

import "fmt"

// Behavior represents the inferred smart-money posture
type Behavior string

const (
	Accumulating   Behavior = "accumulating"
	Distributing   Behavior = "distributing"
	NotInterested  Behavior = "not_interested"
	Waiting        Behavior = "waiting"
	AggressiveBuy  Behavior = "aggressive_buy"
	AggressiveSell Behavior = "aggressive_sell"
)

// PriceRange is a low/high pair
type PriceRange struct {
	Low  float64
	High float64
}

// SFPProbability estimates the stop-hunt chance per horizon
type SFPProbability struct {
	Probability1h float64
	Probability4h float64
	Direction     string // "up" / "down" / "neutral"
	Factors       []string
}

// Analysis is the complete smart-money verdict
type Analysis struct {
	Behavior       Behavior
	Description    string
	Narrative      string
	SFP            *SFPProbability
}

// Inputs bundles the optional smart-money observations
type Inputs struct {
	Price            float64
	WeeklyOrderBlock *float64
	DailyFVG         *PriceRange
	VolumeProfile    map[float64]float64 // price level -> traded volume
	LimitOrders      map[float64]float64 // price level -> resting volume
	LiquidityAbove   []float64
	LiquidityBelow   []float64
	RecentWicks      []float64
	VolumeAbsorption float64 // 0-1
	OIDelta          *float64
	KeyLevels        []float64
}

// Analyzer classifies smart-money behavior
type Analyzer struct {
	dominanceRatio float64
	probCap        float64
}

// NewAnalyzer creates an analyzer with the standard thresholds
func NewAnalyzer() *Analyzer {
	return &Analyzer{dominanceRatio: 1.5, probCap: 0.95}
}

// ClassifyBehavior walks the behavior cascade, first match wins
func (a *Analyzer) ClassifyBehavior(in Inputs) (Behavior, string) {
	// 1. Price above the weekly order block: no appetite to buy high
	if in.WeeklyOrderBlock != nil && in.Price > *in.WeeklyOrderBlock {
		return NotInterested, fmt.Sprintf("Price above the weekly order block (%.0f), smart money will not buy this high", *in.WeeklyOrderBlock)
	}

	// 2. Price inside the daily FVG: a typical distribution spot
	if in.DailyFVG != nil && in.Price >= in.DailyFVG.Low && in.Price <= in.DailyFVG.High {
		return Distributing, fmt.Sprintf("Price reached the daily FVG (%.0f-%.0f), a typical unloading area", in.DailyFVG.Low, in.DailyFVG.High)
	}

	// 3. Price close to a high-volume accumulation shelf below
	if len(in.VolumeProfile) > 0 {
		if shelf, ok := accumulationShelf(in.VolumeProfile, in.Price); ok {
			return Accumulating, fmt.Sprintf("Price at an accumulation shelf (%.0f), smart money is absorbing", shelf)
		}
	}

	// 4. Limit book skew
	if len(in.LimitOrders) > 0 {
		bids, asks := 0.0, 0.0
		for price, vol := range in.LimitOrders {
			if price < in.Price {
				bids += vol
			} else if price > in.Price {
				asks += vol
			}
		}
		if bids > asks*a.dominanceRatio {
			return Accumulating, "Resting bids dominate the book, accumulation"
		}
		if asks > bids*a.dominanceRatio {
			return Distributing, "Resting asks dominate the book, distribution"
		}
	}

	return Waiting, "Smart money is waiting for better levels"
}

// SFP estimates the stop-hunt probability for the 1h and 4h horizons.
// Contributions are additive per factor and capped at 0.95.
func (a *Analyzer) SFP(in Inputs) SFPProbability {
	out := SFPProbability{Direction: "neutral"}

	liqAbove := sum(in.LiquidityAbove)
	liqBelow := sum(in.LiquidityBelow)
	if liqAbove > liqBelow*a.dominanceRatio {
		out.Direction = "up"
		out.Probability1h += 0.3
		out.Probability4h += 0.4
		out.Factors = append(out.Factors, "liquidity above")
	} else if liqBelow > liqAbove*a.dominanceRatio {
		out.Direction = "down"
		out.Probability1h += 0.3
		out.Probability4h += 0.4
		out.Factors = append(out.Factors, "liquidity below")
	}

	if len(in.RecentWicks) > 0 {
		avgWick := sum(in.RecentWicks) / float64(len(in.RecentWicks))
		large := 0
		for _, w := range in.RecentWicks {
			if w > avgWick*a.dominanceRatio {
				large++
			}
		}
		if float64(large) > float64(len(in.RecentWicks))*0.3 {
			out.Probability1h += 0.2
			out.Probability4h += 0.15
			out.Factors = append(out.Factors, "oversized wicks")
		}
	}

	if in.VolumeAbsorption > 0.7 {
		out.Probability1h += 0.2
		out.Probability4h += 0.1
		out.Factors = append(out.Factors, "volume absorption")
	} else if in.VolumeAbsorption > 0 && in.VolumeAbsorption < 0.3 {
		out.Probability1h += 0.1
		out.Probability4h += 0.05
		out.Factors = append(out.Factors, "weak absorption")
	}

	if in.OIDelta != nil {
		if *in.OIDelta > 0.03 {
			out.Probability1h += 0.1
			out.Probability4h += 0.15
			out.Factors = append(out.Factors, "OI growth")
		} else if *in.OIDelta < -0.03 {
			out.Probability1h += 0.1
			out.Probability4h += 0.15
			out.Factors = append(out.Factors, "OI decline")
		}
	}

	if out.Probability1h > a.probCap {
		out.Probability1h = a.probCap
	}
	if out.Probability4h > a.probCap {
		out.Probability4h = a.probCap
	}
	return out
}

// Analyze produces the full smart-money verdict, attaching the SFP
// estimate only when liquidity observations exist.
func (a *Analyzer) Analyze(in Inputs) Analysis {
	behavior, desc := a.ClassifyBehavior(in)

	out := Analysis{
		Behavior:    behavior,
		Description: desc,
		Narrative:   a.narrative(behavior, desc, in.Price, in.KeyLevels),
	}
	if in.LiquidityAbove != nil || in.LiquidityBelow != nil {
		sfp := a.SFP(in)
		out.SFP = &sfp
	}
	return out
}

func (a *Analyzer) narrative(behavior Behavior, fallback string, price float64, keyLevels []float64) string {
	base := fallback
	switch behavior {
	case Accumulating:
		base = "Smart money is building positions, a supportive signal for longs"
	case Distributing:
		base = "Smart money is unloading positions, caution for longs"
	case NotInterested:
		base = "Smart money shows no interest in buying at these levels"
	case Waiting:
		base = "Smart money is in waiting mode, holding out for better levels"
	case AggressiveBuy:
		base = "Smart money is buying aggressively, a strong bullish signal"
	case AggressiveSell:
		base = "Smart money is selling aggressively, a strong bearish signal"
	}

	if len(keyLevels) > 0 && price > 0 {
		nearest := keyLevels[0]
		for _, l := range keyLevels[1:] {
			if absf(l-price) < absf(nearest-price) {
				nearest = l
			}
		}
		if absf(nearest-price)/price < 0.01 {
			base += fmt.Sprintf(" Price sits at the key %.0f level.", nearest)
		}
	}
	return base
}

// accumulationShelf finds a high-volume support level within 2% below price
func accumulationShelf(profile map[float64]float64, price float64) (float64, bool) {
	if price <= 0 {
		return 0, false
	}
	total := 0.0
	for _, v := range profile {
		total += v
	}
	avg := total / float64(len(profile))

	best, found := 0.0, false
	for level, vol := range profile {
		if vol <= avg*1.5 || level >= price {
			continue
		}
		if !found || level > best {
			best, found = level, true
		}
	}
	if !found || absf(price-best)/price >= 0.02 {
		return 0, false
	}
	return best, true
}

func sum(vals []float64) float64 {
	total := 0.0
	for _, v := range vals {
		total += v
	}
	return total
}

func absf(x float64) float64 {
	if x < 0 {
		return -x
	}
	return x
}
