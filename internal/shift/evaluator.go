// Package shift evaluates what still has to happen before the current
// bias can flip to the target bias. Up to six independent boolean checks
// run, one per available input; the summary bands on the fraction met.
package shift

import "fmt"

// Condition identifies one shift prerequisite
type Condition string

const (
	OIGrowth             Condition = "oi_growth"
	VolumeReturn         Condition = "volume_return"
	LiquidityRemoval     Condition = "liquidity_removal"
	FundingNeutral       Condition = "funding_neutral"
	StructureBreak       Condition = "structure_break"
	MomentumConfirmation Condition = "momentum_confirmation"
)

// Check is one evaluated condition with its current and required state
type Check struct {
	Condition     Condition
	Description   string
	CurrentState  string
	RequiredState string
	Met           bool
}

// Result is the full shift evaluation
type Result struct {
	CurrentBias string
	TargetBias  string
	Checks      []Check
	Summary     string
}

// Inputs carries the optional observations feeding the six checks
type Inputs struct {
	OIDelta         *float64
	CurrentVolume   *float64
	AvgVolume       *float64
	LiquidityAbove  []float64
	Funding         *float64
	StructureLevel  *float64
	BreakLevel      *float64
	Momentum        *float64
}

// Evaluator runs the shift checklist
type Evaluator struct {
	requiredOIDelta    float64
	neutralFundingLow  float64
	neutralFundingHigh float64
	requiredMomentum   float64
}

// NewEvaluator creates an evaluator with the standard thresholds
func NewEvaluator() *Evaluator {
	return &Evaluator{
		requiredOIDelta:    0.03,
		neutralFundingLow:  -0.005,
		neutralFundingHigh: 0.005,
		requiredMomentum:   0.5,
	}
}

// Evaluate runs every check whose input is present and summarizes how
// close the target bias is to high conviction.
func (e *Evaluator) Evaluate(currentBias, targetBias string, in Inputs) Result {
	var checks []Check

	// 1. OI grows alongside price
	if in.OIDelta != nil {
		checks = append(checks, Check{
			Condition:     OIGrowth,
			Description:   "Open interest starts rising with price",
			CurrentState:  fmt.Sprintf("OI delta %+.2f%%", *in.OIDelta*100),
			RequiredState: fmt.Sprintf("OI delta >= %.1f%%", e.requiredOIDelta*100),
			Met:           *in.OIDelta >= e.requiredOIDelta,
		})
	}

	// 2. Volume returns to at least its average
	if in.CurrentVolume != nil && in.AvgVolume != nil {
		ratio := 1.0
		if *in.AvgVolume > 0 {
			ratio = *in.CurrentVolume / *in.AvgVolume
		}
		checks = append(checks, Check{
			Condition:     VolumeReturn,
			Description:   "Volume comes back",
			CurrentState:  fmt.Sprintf("Volume %.2fx average", ratio),
			RequiredState: "Volume >= average",
			Met:           ratio >= 1.0,
		})
	}

	// 3. Liquidity above has been swept
	if in.LiquidityAbove != nil {
		liq := sum(in.LiquidityAbove)
		checks = append(checks, Check{
			Condition:     LiquidityRemoval,
			Description:   "Liquidity above gets swept",
			CurrentState:  fmt.Sprintf("Liquidity above %.0f", liq),
			RequiredState: "Liquidity above = 0",
			Met:           liq == 0,
		})
	}

	// 4. Funding stays neutral
	if in.Funding != nil {
		checks = append(checks, Check{
			Condition:     FundingNeutral,
			Description:   "Funding stays neutral",
			CurrentState:  fmt.Sprintf("Funding %+.3f%%", *in.Funding*100),
			RequiredState: fmt.Sprintf("Funding within %.3f%% to %.3f%%", e.neutralFundingLow*100, e.neutralFundingHigh*100),
			Met:           *in.Funding >= e.neutralFundingLow && *in.Funding <= e.neutralFundingHigh,
		})
	}

	// 5. Structure break in the target direction
	if in.StructureLevel != nil && in.BreakLevel != nil {
		met := *in.BreakLevel > *in.StructureLevel
		op := ">"
		if targetBias != "LONG" {
			met = *in.BreakLevel < *in.StructureLevel
			op = "<"
		}
		checks = append(checks, Check{
			Condition:     StructureBreak,
			Description:   fmt.Sprintf("Break of the %.0f level", *in.StructureLevel),
			CurrentState:  fmt.Sprintf("Price %.0f", *in.BreakLevel),
			RequiredState: fmt.Sprintf("Price %s %.0f", op, *in.StructureLevel),
			Met:           met,
		})
	}

	// 6. Momentum crosses the directional threshold
	if in.Momentum != nil {
		met := *in.Momentum >= e.requiredMomentum
		required := fmt.Sprintf("Momentum >= %.2f", e.requiredMomentum)
		if targetBias != "LONG" {
			met = *in.Momentum <= -e.requiredMomentum
			required = fmt.Sprintf("Momentum <= %.2f", -e.requiredMomentum)
		}
		checks = append(checks, Check{
			Condition:     MomentumConfirmation,
			Description:   "Momentum confirms",
			CurrentState:  fmt.Sprintf("Momentum %+.2f", *in.Momentum),
			RequiredState: required,
			Met:           met,
		})
	}

	return Result{
		CurrentBias: currentBias,
		TargetBias:  targetBias,
		Checks:      checks,
		Summary:     summarize(targetBias, checks),
	}
}

func summarize(targetBias string, checks []Check) string {
	met := 0
	for _, c := range checks {
		if c.Met {
			met++
		}
	}
	total := len(checks)

	switch {
	case total > 0 && met == total:
		return fmt.Sprintf("All conditions met (%d/%d), %s is high-conviction", met, total, targetBias)
	case total > 0 && float64(met) >= float64(total)*0.7:
		return fmt.Sprintf("Most conditions met (%d/%d), %s is near high-conviction", met, total, targetBias)
	default:
		return fmt.Sprintf("Conditions partially met (%d/%d), %s needs further confirmation", met, total, targetBias)
	}
}

func sum(vals []float64) float64 {
	total := 0.0
	for _, v := range vals {
		total += v
	}
	return total
}
