package snapshot

// Phase represents the macro market phase
type Phase string

const (
	PhaseAccumulation Phase = "accumulation"
	PhaseExpansionUp   Phase = "exp_up"
	PhaseExpansionDown Phase = "exp_down"
	PhaseRange         Phase = "range"
	PhaseDistribution  Phase = "distribution"
)

// SetupType represents the active setup category
type SetupType string

const (
	SetupRange         SetupType = "range"
	SetupContinuation  SetupType = "continuation"
	SetupReversal      SetupType = "reversal"
	SetupMeanReversion SetupType = "mean_reversion"
)

// MicroRegime represents the detected meta-regime
type MicroRegime string

const (
	RegimeTrend         MicroRegime = "trend"
	RegimeExhaustion    MicroRegime = "exhaustion"
	RegimeLiquidityHunt MicroRegime = "liquidity_hunt"
	RegimeChop          MicroRegime = "chop"
)

// Bias carries the directional leans for one snapshot. Structural and
// Liquidity are free-text descriptions produced by the bias classifier;
// empty means the classifier had nothing to say.
type Bias struct {
	Tactical   string `json:"tactical"`  // "bullish" / "bearish" / "neutral"
	Strategic  string `json:"strategic"` // "bullish" / "bearish" / "neutral"
	Structural string `json:"structural,omitempty"`
	Liquidity  string `json:"liquidity,omitempty"`
}

// DirectionalScores holds the 0-10 long/short scores and model confidence
type DirectionalScores struct {
	Long       float64 `json:"long"`
	Short      float64 `json:"short"`
	Confidence float64 `json:"confidence"` // 0-1
}

// Edge returns long minus short
func (d DirectionalScores) Edge() float64 {
	return d.Long - d.Short
}

// Zone represents a priced area of interest
type Zone struct {
	Name    string  `json:"name"`
	Role    string  `json:"role"` // "demand" / "supply" / "wait"
	Lower   float64 `json:"lower"`
	Upper   float64 `json:"upper"`
	Comment string  `json:"comment,omitempty"`
}

// FibLevels carries optional retracement levels
type FibLevels struct {
	Level382 float64 `json:"level_382"`
	Level50  float64 `json:"level_50"`
	Level618 float64 `json:"level_618"`
}

// Scenario is a probability-weighted forward path
type Scenario struct {
	Name         string       `json:"name"`
	Probability  float64      `json:"probability"` // 0-1
	Description  string       `json:"description"`
	LongTargets  [][2]float64 `json:"long_targets,omitempty"`
	ShortTargets [][2]float64 `json:"short_targets,omitempty"`
	RiskComment  string       `json:"risk_comment,omitempty"`
}

// RiskBoard holds qualitative risk labels ("low" / "medium" / "high")
type RiskBoard struct {
	Overbought       string `json:"overbought"`
	Liquidity        string `json:"liquidity"`
	FlushRisk        string `json:"flush_risk"`
	StopHuntRisk     string `json:"stop_hunt_risk"`
	FundingOIComment string `json:"funding_oi_comment,omitempty"`
}

// RAsymmetry is the blended expected return per side, in R units
type RAsymmetry struct {
	LongR  float64 `json:"long_r"`
	ShortR float64 `json:"short_r"`
}

// LongChecklist tracks the five conditions a long needs to become strong
type LongChecklist struct {
	VolumesBack            bool `json:"volumes_back"`
	LiquidityAboveCleared  bool `json:"liquidity_above_cleared"`
	FundingOK              bool `json:"funding_ok"`
	StructureFixed         bool `json:"structure_fixed"`
	MomentumConfirmed      bool `json:"momentum_confirmed"`
}

// Met returns how many checklist items are satisfied
func (lc LongChecklist) Met() int {
	n := 0
	for _, ok := range []bool{lc.VolumesBack, lc.LiquidityAboveCleared, lc.FundingOK, lc.StructureFixed, lc.MomentumConfirmed} {
		if ok {
			n++
		}
	}
	return n
}

// FlowSummary is the flow engine output attached to a market snapshot
type FlowSummary struct {
	CVDChangePct *float64 `json:"cvd_change_pct,omitempty"`
	Funding      *float64 `json:"funding,omitempty"`
	OIChangePct  *float64 `json:"oi_change_pct,omitempty"`
	Comment      string   `json:"comment,omitempty"`
}

// FVGZone is an unfilled gap annotated with its position relative to price
type FVGZone struct {
	Lower    float64 `json:"lower"`
	Upper    float64 `json:"upper"`
	Position string  `json:"position"` // "above" / "below" / "around"
}

// MarketSnapshot is the assembled decision-engine input. It is built
// upstream from a SignalSnapshot plus the sub-analyzer outputs and is
// never mutated once constructed.
type MarketSnapshot struct {
	Symbol    string `json:"symbol"`
	Timeframe string `json:"timeframe"`
	Price     float64 `json:"price"`

	Phase       Phase       `json:"phase"`
	SetupType   SetupType   `json:"setup_type"`
	MicroRegime MicroRegime `json:"micro_regime"`

	Bias      Bias              `json:"bias"`
	DirScores DirectionalScores `json:"dir_scores"`

	PumpScore       float64 `json:"pump_score"` // 0-1
	RiskScore       float64 `json:"risk_score"` // 0-1
	LiquidityLevel  string  `json:"liquidity_level"`  // "low" / "medium" / "high"
	VolatilityLevel string  `json:"volatility_level"` // "low" / "medium" / "high"
	Narrative       string  `json:"narrative,omitempty"`

	Flow FlowSummary `json:"flow"`

	DemandZone Zone       `json:"demand_zone"`
	SupplyZone Zone       `json:"supply_zone"`
	WaitZone   *Zone      `json:"wait_zone,omitempty"`
	FVGs       []FVGZone  `json:"fvgs,omitempty"`
	Fib        *FibLevels `json:"fib,omitempty"`

	Scenarios []Scenario `json:"scenarios,omitempty"`
	RiskBoard RiskBoard  `json:"risk_board"`

	RAsym          RAsymmetry    `json:"r_asym"`
	LongChecklist  LongChecklist `json:"long_checklist"`
	BreakoutTrigger *float64     `json:"breakout_trigger,omitempty"`
}
