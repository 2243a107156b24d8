// Package decision turns directional scores, risk asymmetry and fused
// confidence into the final trading verdict. The rule cascade is an
// ordered contract: rules are evaluated top to bottom and the first
// match wins.
package decision

import "market-doctor/internal/snapshot"

// Action is the final verdict
type Action string

const (
	ActionLong  Action = "LONG"
	ActionShort Action = "SHORT"
	ActionWait  Action = "WAIT"
	ActionAvoid Action = "AVOID"
)

// Strength qualifies a directional verdict
type Strength string

const (
	StrengthStrong Strength = "strong"
	StrengthWeak   Strength = "weak"
	StrengthNone   Strength = ""
)

// Verbosity selects between the full report and the short form
type Verbosity string

const (
	VerbosityFull  Verbosity = "full"
	VerbosityShort Verbosity = "short"
)

// Decision is the engine output
type Decision struct {
	Action     Action
	Strength   Strength
	Reason     string
	Edge       float64
	Confidence float64
	Verbosity  Verbosity
}

// Config carries the decision thresholds
type Config struct {
	EdgeStrong     float64 // edge needed for a strong directional call
	EdgeNormal     float64 // minimum edge for any directional call
	ConfidenceHigh float64 // confidence needed for a strong call
	ConfidenceLow  float64 // below this, hostile conditions mean AVOID
}

// DefaultConfig returns the calibrated thresholds
func DefaultConfig() Config {
	return Config{
		EdgeStrong:     2.0,
		EdgeNormal:     1.0,
		ConfidenceHigh: 0.65,
		ConfidenceLow:  0.55,
	}
}

// Inputs is everything the cascade looks at
type Inputs struct {
	Scores     snapshot.DirectionalScores
	LongR      float64
	ShortR     float64
	Confidence float64
	RiskBoard  *snapshot.RiskBoard
}

// Engine applies the decision cascade
type Engine struct {
	cfg Config
}

// NewEngine creates an engine, substituting defaults for zero thresholds
func NewEngine(cfg Config) *Engine {
	def := DefaultConfig()
	if cfg.EdgeStrong <= 0 {
		cfg.EdgeStrong = def.EdgeStrong
	}
	if cfg.EdgeNormal <= 0 {
		cfg.EdgeNormal = def.EdgeNormal
	}
	if cfg.ConfidenceHigh <= 0 {
		cfg.ConfidenceHigh = def.ConfidenceHigh
	}
	if cfg.ConfidenceLow <= 0 {
		cfg.ConfidenceLow = def.ConfidenceLow
	}
	return &Engine{cfg: cfg}
}

// Decide runs the cascade. The rule order is load-bearing: a case that
// matches an earlier rule must never fall through to a later one.
func (e *Engine) Decide(in Inputs) Decision {
	edge := in.Scores.Edge()
	absEdge := edge
	if absEdge < 0 {
		absEdge = -absEdge
	}

	d := Decision{Edge: edge, Confidence: in.Confidence}

	// 1. Both sides negative expectancy and no meaningful edge
	if in.LongR <= 0 && in.ShortR <= 0 && absEdge < e.cfg.EdgeNormal {
		d.Action = ActionWait
		d.Reason = "no edge for either side"
		d.Verbosity = e.verbosity(absEdge, in.Confidence)
		return d
	}

	// Hostile-conditions guard: active stop hunting into an overbought
	// market with shaky confidence is a market to stay out of entirely.
	if in.RiskBoard != nil &&
		in.RiskBoard.StopHuntRisk == "high" &&
		in.RiskBoard.Overbought == "high" &&
		in.Confidence < e.cfg.ConfidenceLow {
		d.Action = ActionAvoid
		d.Reason = "hostile conditions: stop hunts into an overbought market"
		d.Verbosity = e.verbosity(absEdge, in.Confidence)
		return d
	}

	// 2. Strong long: wide edge, positive expectancy, high confidence
	if edge >= e.cfg.EdgeStrong && in.LongR > 0 && in.Confidence >= e.cfg.ConfidenceHigh {
		d.Action = ActionLong
		d.Strength = StrengthStrong
		d.Reason = "strong long edge with positive expectancy"
		d.Verbosity = e.verbosity(absEdge, in.Confidence)
		return d
	}

	// 3. Weak long: normal edge and asymmetry not against longs
	if edge >= e.cfg.EdgeNormal && in.LongR >= in.ShortR {
		d.Action = ActionLong
		d.Strength = StrengthWeak
		d.Reason = "modest long edge"
		d.Verbosity = e.verbosity(absEdge, in.Confidence)
		return d
	}

	// 4. Strong short, mirror of rule 2
	if edge <= -e.cfg.EdgeStrong && in.ShortR > 0 && in.Confidence >= e.cfg.ConfidenceHigh {
		d.Action = ActionShort
		d.Strength = StrengthStrong
		d.Reason = "strong short edge with positive expectancy"
		d.Verbosity = e.verbosity(absEdge, in.Confidence)
		return d
	}

	// 5. Weak short, mirror of rule 3
	if edge <= -e.cfg.EdgeNormal && in.ShortR >= in.LongR {
		d.Action = ActionShort
		d.Strength = StrengthWeak
		d.Reason = "modest short edge"
		d.Verbosity = e.verbosity(absEdge, in.Confidence)
		return d
	}

	// 6. Everything else: wait for a setup
	d.Action = ActionWait
	d.Reason = "mixed signals, waiting for a cleaner setup"
	d.Verbosity = e.verbosity(absEdge, in.Confidence)
	return d
}

// verbosity picks the short report only when nothing interesting is
// happening: a thin edge with below-high confidence.
func (e *Engine) verbosity(absEdge, confidence float64) Verbosity {
	if absEdge < e.cfg.EdgeNormal && confidence < e.cfg.ConfidenceHigh {
		return VerbosityShort
	}
	return VerbosityFull
}
