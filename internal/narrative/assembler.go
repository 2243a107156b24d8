// Package narrative renders a decision plus its supporting analysis into
// the final report text. Sections are emitted in a fixed order, a zone
// tracker keeps each price range from being restated inside a section,
// and contradictory bias lines get an explicit note instead of being
// presented side by side.
package narrative

import (
	"fmt"
	"strings"

	"market-doctor/internal/decision"
	"market-doctor/internal/snapshot"
)

const divider = "━━━━━━━━━━━━━━━━━━"

// Section classes for the zone tracker. A zone's numeric range may
// appear at most once per class; repeats fall back to the zone's name.
const (
	sectionHeader          = "header"
	sectionScores          = "scores"
	sectionStructure       = "structure"
	sectionTriggers        = "triggers"
	sectionRecommendations = "recommendations"
	sectionShortCore       = "short_core"
	sectionTLDR            = "tldr"
)

// placeholderNarratives are upstream filler lines that add nothing
var placeholderNarratives = map[string]bool{
	"Market is in a neutral state.":  true,
	"Market is showing buyer fatigue.": true,
}

// Assembler renders reports. Safe for concurrent use; per-render state
// lives in the tracker created inside Render.
type Assembler struct {
	edgeStrong float64
	edgeNormal float64
}

// NewAssembler creates an assembler sharing the decision engine's edge
// thresholds so the prose and the verdict never disagree about what
// counts as a strong edge.
func NewAssembler(cfg decision.Config) *Assembler {
	def := decision.DefaultConfig()
	if cfg.EdgeStrong <= 0 {
		cfg.EdgeStrong = def.EdgeStrong
	}
	if cfg.EdgeNormal <= 0 {
		cfg.EdgeNormal = def.EdgeNormal
	}
	return &Assembler{edgeStrong: cfg.EdgeStrong, edgeNormal: cfg.EdgeNormal}
}

// zoneTracker dedupes zone range strings within one render
type zoneTracker struct {
	emitted map[string]bool
}

func newZoneTracker() *zoneTracker {
	return &zoneTracker{emitted: make(map[string]bool)}
}

// rangeFor returns the zone's numeric range the first time a section
// class asks for it and the zone's name on any repeat within that class.
func (t *zoneTracker) rangeFor(section string, z snapshot.Zone) string {
	r := formatRange(z.Lower, z.Upper)
	key := section + "|" + r
	if t.emitted[key] {
		if z.Name != "" {
			return z.Name
		}
		return "the " + z.Role + " zone"
	}
	t.emitted[key] = true
	return r
}

// Render produces the full or short report per the decision's verbosity
func (a *Assembler) Render(snap snapshot.MarketSnapshot, d decision.Decision) string {
	tracker := newZoneTracker()
	var blocks []string

	blocks = append(blocks, a.blockHeader(snap, d, tracker))

	if d.Verbosity == decision.VerbosityShort {
		blocks = append(blocks, a.blockShortCore(snap, d, tracker))
		blocks = append(blocks, a.blockShortTriggers(snap, tracker))
		blocks = append(blocks, a.blockTLDR(snap, d, tracker))
	} else {
		blocks = append(blocks, a.blockRegime(snap))
		blocks = append(blocks, a.blockDirectionalScores(snap, d, tracker))
		blocks = append(blocks, a.blockContext(snap))
		blocks = append(blocks, a.blockConsensus(snap, d))
		if snap.Flow.CVDChangePct != nil {
			blocks = append(blocks, a.blockFlow(snap))
		}
		blocks = append(blocks, a.blockStructureMap(snap, tracker))
		if snap.Fib != nil {
			blocks = append(blocks, a.blockFib(snap))
		}
		if len(snap.Scenarios) > 0 {
			blocks = append(blocks, a.blockScenarios(snap))
		}
		blocks = append(blocks, a.blockTriggers(snap, tracker))
		blocks = append(blocks, a.blockRiskBoard(snap))
		blocks = append(blocks, a.blockRecommendations(snap, tracker))
		blocks = append(blocks, a.blockRAsymmetry(snap))
		blocks = append(blocks, a.blockLongConditions(snap))
		blocks = append(blocks, a.blockTLDR(snap, d, tracker))
	}

	var kept []string
	for _, b := range blocks {
		if strings.TrimSpace(b) != "" {
			kept = append(kept, b)
		}
	}
	return strings.Join(kept, "\n\n")
}

func (a *Assembler) blockHeader(snap snapshot.MarketSnapshot, d decision.Decision, tracker *zoneTracker) string {
	edgeWord := "absent"
	absEdge := d.Edge
	if absEdge < 0 {
		absEdge = -absEdge
	}
	if absEdge >= a.edgeStrong {
		edgeWord = "strong"
	} else if absEdge >= a.edgeNormal {
		edgeWord = "moderate"
	}

	var reason, action string
	switch d.Action {
	case decision.ActionLong:
		reason = fmt.Sprintf("%s edge in favor of longs, price is close to the demand zone", edgeWord)
		action = fmt.Sprintf("wait for a return into %s, where real demand sits", tracker.rangeFor(sectionHeader, snap.DemandZone))
	case decision.ActionShort:
		reason = fmt.Sprintf("%s edge in favor of shorts, price is close to the supply zone", edgeWord)
		action = fmt.Sprintf("wait for a seller reaction in %s", tracker.rangeFor(sectionHeader, snap.SupplyZone))
	case decision.ActionAvoid:
		reason = d.Reason
		action = "stand aside until conditions normalize"
	default: // WAIT
		if snap.Price >= snap.SupplyZone.Lower {
			reason = "price sits in the upper part of the range, the premium zone, so an entry here offers no edge"
		} else {
			reason = "neither side has a clear advantage while price sits mid-range"
		}
		action = "watch the reaction at the key levels without opening new positions at the current price"
	}

	return fmt.Sprintf(
		"Market Doctor — %s | %s\n%s\n\nDecision: %s / OBSERVE\n\nReason: %s.\n\nBest action: %s.",
		snap.Symbol, snap.Timeframe, divider, d.Action, reason, action,
	)
}

func (a *Assembler) blockRegime(snap snapshot.MarketSnapshot) string {
	phaseMap := map[snapshot.Phase]string{
		snapshot.PhaseAccumulation:  "Accumulation",
		snapshot.PhaseExpansionUp:   "Expansion up",
		snapshot.PhaseExpansionDown: "Expansion down",
		snapshot.PhaseRange:         "Range",
		snapshot.PhaseDistribution:  "Distribution",
	}
	microMap := map[snapshot.MicroRegime]string{
		snapshot.RegimeTrend:         "Trending regime",
		snapshot.RegimeExhaustion:    "Momentum exhaustion regime",
		snapshot.RegimeLiquidityHunt: "Liquidity hunt",
		snapshot.RegimeChop:          "Choppy / rangebound",
	}

	phaseTxt, ok := phaseMap[snap.Phase]
	if !ok {
		phaseTxt = "—"
	}
	microTxt, ok := microMap[snap.MicroRegime]
	if !ok {
		microTxt = "—"
	}

	confPct := int(snap.DirScores.Confidence * 100)
	confLabel := "low"
	switch {
	case confPct >= 65:
		confLabel = "high"
	case confPct >= 55:
		confLabel = "moderate"
	}

	parts := []string{
		"Market regime",
		"",
		"Phase: " + phaseTxt,
		"Setup type: " + setupTypeText(snap.SetupType),
		"Sub-regime: " + microTxt,
		"Tactical bias: " + biasText(snap.Bias.Tactical),
		"Strategic bias: " + biasText(snap.Bias.Strategic),
	}
	if snap.Bias.Structural != "" {
		parts = append(parts, "Structural bias: "+snap.Bias.Structural)
	}
	if snap.Bias.Liquidity != "" {
		parts = append(parts, "Liquidity bias: "+snap.Bias.Liquidity)
	}

	line := fmt.Sprintf("Model confidence: %d%% (%s)", confPct, confLabel)
	if note := biasConflict(snap); note != "" {
		line += "\n\nNote: " + note
	}
	parts = append(parts, line)

	return strings.Join(parts, "\n")
}

// biasConflict flags bias lines that contradict each other so the reader
// is not left to reconcile them
func biasConflict(snap snapshot.MarketSnapshot) string {
	if snap.MicroRegime == snapshot.RegimeExhaustion &&
		strings.Contains(strings.ToLower(snap.Bias.Structural), "above") &&
		snap.Bias.Strategic == "bullish" {
		return "exhaustion while holding above equal highs usually signals bearish risk, " +
			"yet the strategic bias is bullish — this points to a possible continuation after a corrective leg."
	}
	return ""
}

func setupTypeText(st snapshot.SetupType) string {
	switch st {
	case snapshot.SetupRange:
		return "Range play"
	case snapshot.SetupContinuation:
		return "Trend continuation"
	case snapshot.SetupReversal:
		return "Reversal"
	case snapshot.SetupMeanReversion:
		return "Mean reversion"
	}
	return "—"
}

func biasText(b string) string {
	switch b {
	case "bullish":
		return "Bullish"
	case "bearish":
		return "Bearish"
	case "neutral":
		return "Neutral"
	}
	return b
}

func (a *Assembler) blockDirectionalScores(snap snapshot.MarketSnapshot, d decision.Decision, tracker *zoneTracker) string {
	absEdge := d.Edge
	if absEdge < 0 {
		absEdge = -absEdge
	}
	category := "weak"
	switch {
	case absEdge >= a.edgeStrong:
		category = "strong"
	case absEdge >= 0.7:
		category = "moderate"
	}

	var explanation string
	switch {
	case absEdge < a.edgeNormal:
		explanation = "\n\nMeaning: the market is mid-range; entering here is unprofitable in either direction."
	case d.Edge > 0:
		explanation = fmt.Sprintf(
			"\n\nMeaning: the edge belongs to longs only, and only from the lower boundary of the range (%s).",
			tracker.rangeFor(sectionScores, snap.DemandZone))
	default:
		explanation = fmt.Sprintf(
			"\n\nMeaning: the edge belongs to shorts only, and only from the upper boundary of the range (%s).",
			tracker.rangeFor(sectionScores, snap.SupplyZone))
	}

	return fmt.Sprintf(
		"Directional scores\n\nLONG: %.1f/10   SHORT: %.1f/10   Edge: %+.1f (%s)%s",
		snap.DirScores.Long, snap.DirScores.Short, d.Edge, category, explanation,
	)
}

func (a *Assembler) blockContext(snap snapshot.MarketSnapshot) string {
	riskLine := fmt.Sprintf("Risk score: %.2f", snap.RiskScore)
	if snap.RiskScore >= 0.3 && snap.RiskScore <= 0.7 {
		riskLine += " (standard risk)"
	}
	parts := []string{
		"Detailed context",
		"",
		"Trend: " + biasText(snap.Bias.Tactical),
		"Momentum: " + momentumText(snap.MicroRegime),
		fmt.Sprintf("Pump score: %.2f", snap.PumpScore),
		riskLine,
		"Liquidity: " + capitalize(snap.LiquidityLevel),
		"Volatility: " + capitalize(snap.VolatilityLevel),
	}
	if snap.Narrative != "" && !placeholderNarratives[snap.Narrative] {
		parts = append(parts, "Narrative: "+snap.Narrative)
	}
	return strings.Join(parts, "\n")
}

func momentumText(regime snapshot.MicroRegime) string {
	switch regime {
	case snapshot.RegimeExhaustion:
		return "momentum is fading"
	case snapshot.RegimeTrend:
		return "strong momentum with the trend"
	case snapshot.RegimeLiquidityHunt:
		return "momentum aimed at collecting liquidity"
	case snapshot.RegimeChop:
		return "momentum is diffuse, chop regime"
	}
	return "momentum is neutral"
}

func (a *Assembler) blockConsensus(snap snapshot.MarketSnapshot, d decision.Decision) string {
	lean := "neutral"
	if d.Edge > 0.3 {
		lean = "a slight long lean"
	} else if d.Edge < -0.3 {
		lean = "a slight short lean"
	}
	lines := []string{
		"Indicator consensus",
		"",
		fmt.Sprintf("Overall: the signal is close to neutral with %s.", lean),
	}
	if snap.RiskBoard.StopHuntRisk == "high" || snap.RiskBoard.StopHuntRisk == "medium" {
		lines = append(lines, "Market structure remains vulnerable to stop runs above the local highs.")
	}
	return strings.Join(lines, "\n")
}

func (a *Assembler) blockFlow(snap snapshot.MarketSnapshot) string {
	cvd := *snap.Flow.CVDChangePct
	comment := "CVD is falling: sellers are applying pressure."
	if cvd > 0 {
		comment = "CVD is rising: demand is present, but without an aggressive impulse."
	}
	if snap.Flow.Comment != "" {
		comment = snap.Flow.Comment
	}
	lines := []string{
		"Capital flows",
		"",
		fmt.Sprintf("CVD: %+.1f%%", cvd),
	}
	if snap.Flow.Funding != nil {
		lines = append(lines, fmt.Sprintf("Funding: %+.4f", *snap.Flow.Funding))
	}
	if snap.Flow.OIChangePct != nil {
		lines = append(lines, fmt.Sprintf("OI change: %+.1f%%", *snap.Flow.OIChangePct))
	}
	lines = append(lines, comment)
	return strings.Join(lines, "\n")
}

func (a *Assembler) blockStructureMap(snap snapshot.MarketSnapshot, tracker *zoneTracker) string {
	parts := []string{
		"Smart money map",
		"",
		"Current price: " + formatPrice(snap.Price),
	}
	if snap.Price >= snap.SupplyZone.Lower {
		parts = append(parts, "Position: upper part of the range, near the supply zone — an elevated-risk area.")
	} else if snap.Price <= snap.DemandZone.Upper {
		parts = append(parts, "Position: lower part of the range, inside or near the demand zone.")
	} else {
		parts = append(parts, "Position: mid-range, between the two zones.")
	}
	parts = append(parts, "", "Demand zone (long): "+tracker.rangeFor(sectionStructure, snap.DemandZone))
	if snap.DemandZone.Comment != "" {
		parts = append(parts, snap.DemandZone.Comment)
	}
	parts = append(parts, "", "Supply zone (short): "+tracker.rangeFor(sectionStructure, snap.SupplyZone))
	if snap.SupplyZone.Comment != "" {
		parts = append(parts, snap.SupplyZone.Comment)
	}

	if len(snap.FVGs) > 0 {
		parts = append(parts, "", "Unfilled FVGs (magnets):")
		shown := snap.FVGs
		if len(shown) > 3 {
			shown = shown[:3]
		}
		for _, fvg := range shown {
			pos := "near"
			switch fvg.Position {
			case "below":
				pos = "below"
			case "above":
				pos = "above"
			}
			parts = append(parts, fmt.Sprintf("- %s (%s current price)", formatRange(fvg.Lower, fvg.Upper), pos))
		}
	}
	return strings.Join(parts, "\n")
}

func (a *Assembler) blockFib(snap snapshot.MarketSnapshot) string {
	f := snap.Fib
	return fmt.Sprintf(
		"Fibonacci\n\n38.2%%: %s | 50.0%%: %s | 61.8%%: %s\n"+
			"The fib levels reinforce the lower part of the range as the buyers' area of interest.",
		formatPrice(f.Level382), formatPrice(f.Level50), formatPrice(f.Level618),
	)
}

func (a *Assembler) blockScenarios(snap snapshot.MarketSnapshot) string {
	lines := []string{"Scenarios (4-24h)", ""}
	for _, sc := range snap.Scenarios {
		lines = append(lines, fmt.Sprintf("%s — %d%%", sc.Name, int(sc.Probability*100)))
		lines = append(lines, "  "+sc.Description)
		if len(sc.LongTargets) > 0 {
			lines = append(lines, "  Long targets: "+formatTargets(sc.LongTargets))
		}
		if len(sc.ShortTargets) > 0 {
			lines = append(lines, "  Short targets: "+formatTargets(sc.ShortTargets))
		}
		if sc.RiskComment != "" {
			lines = append(lines, "  Risk: "+sc.RiskComment)
		}
		lines = append(lines, "")
	}
	return strings.TrimRight(strings.Join(lines, "\n"), "\n ")
}

func formatTargets(targets [][2]float64) string {
	var parts []string
	for _, t := range targets {
		parts = append(parts, formatPrice(t[0])+" -> "+formatPrice(t[1]))
	}
	return strings.Join(parts, ", ")
}

func (a *Assembler) blockTriggers(snap snapshot.MarketSnapshot, tracker *zoneTracker) string {
	breakout := ""
	if snap.BreakoutTrigger != nil {
		breakout = fmt.Sprintf(" or an hourly close above %s", formatPrice(*snap.BreakoutTrigger))
	}
	waitZone := ""
	if snap.WaitZone != nil {
		waitZone = fmt.Sprintf("\n\nWAIT:\n%s: no edge inside this band", tracker.rangeFor(sectionTriggers, *snap.WaitZone))
	}
	return fmt.Sprintf(
		"Decision triggers\n\n"+
			"LONG:\n- Price returns into %s with reversal signs%s.\n\n"+
			"SHORT:\n- Seller reaction in %s (SFP, absorption, fading volume).%s",
		tracker.rangeFor(sectionTriggers, snap.DemandZone), breakout,
		tracker.rangeFor(sectionTriggers, snap.SupplyZone), waitZone,
	)
}

func (a *Assembler) blockRiskBoard(snap snapshot.MarketSnapshot) string {
	rb := snap.RiskBoard
	if rb.Overbought == "" && rb.Liquidity == "" && rb.FlushRisk == "" && rb.StopHuntRisk == "" {
		return ""
	}
	text := fmt.Sprintf(
		"Risk board\n\nOverbought: %s\nLiquidity: %s\nFlush risk: %s\nStop-hunt risk: %s",
		strings.ToUpper(rb.Overbought), strings.ToUpper(rb.Liquidity),
		strings.ToUpper(rb.FlushRisk), strings.ToUpper(rb.StopHuntRisk),
	)
	if rb.FundingOIComment != "" {
		text += "\n" + rb.FundingOIComment
	}
	return text
}

func (a *Assembler) blockRecommendations(snap snapshot.MarketSnapshot, tracker *zoneTracker) string {
	return fmt.Sprintf(
		"Practical notes (not financial advice)\n\n"+
			"For longs:\n- Only interesting from %s on setup confirmation.\n- Position size: 0.25R (conservative).\n\n"+
			"For shorts:\n- Only on a reaction in %s, counter-trend.\n- Position size: 0.25R.\n\n"+
			"Holding horizon: 4-24 hours.",
		tracker.rangeFor(sectionRecommendations, snap.DemandZone),
		tracker.rangeFor(sectionRecommendations, snap.SupplyZone),
	)
}

func (a *Assembler) blockRAsymmetry(snap snapshot.MarketSnapshot) string {
	ra := snap.RAsym
	comment := "At the current price the asymmetry is weak; the market is statistically neutral for new entries."
	if absf(ra.LongR) < 0.2 && absf(ra.ShortR) < 0.2 {
		comment = "No statistical case for an active entry right here; sound longs only from the lower zone."
	}
	return fmt.Sprintf(
		"R-asymmetry\n\nLong: %+.2fR | Short: %+.2fR\n%s",
		ra.LongR, ra.ShortR, comment,
	)
}

func (a *Assembler) blockLongConditions(snap snapshot.MarketSnapshot) string {
	ch := snap.LongChecklist
	items := []struct {
		name string
		ok   bool
	}{
		{"Volumes have returned", ch.VolumesBack},
		{"Liquidity above has been cleared", ch.LiquidityAboveCleared},
		{"Funding/OI are normal", ch.FundingOK},
		{"Structure has improved", ch.StructureFixed},
		{"Momentum has confirmed", ch.MomentumConfirmed},
	}
	lines := []string{"What has to happen for the long to become strong", ""}
	for _, it := range items {
		mark := "[ ]"
		if it.ok {
			mark = "[x]"
		}
		lines = append(lines, mark+" "+it.name)
	}
	lines = append(lines, "", fmt.Sprintf("Conditions met: %d/%d — the long still needs confirmations.", ch.Met(), len(items)))
	return strings.Join(lines, "\n")
}

func (a *Assembler) blockShortCore(snap snapshot.MarketSnapshot, d decision.Decision, tracker *zoneTracker) string {
	favor := "neither side"
	if d.Edge > 0 {
		favor = "longs"
	} else if d.Edge < 0 {
		favor = "shorts"
	}
	return fmt.Sprintf(
		"Summary\n\nRegime: %s / %s.\nEdge: %+.1f in favor of %s.\nEntering at the current price is unprofitable.\n"+
			"Best levels: long %s, short %s.",
		snap.Phase, snap.MicroRegime, d.Edge, favor,
		tracker.rangeFor(sectionShortCore, snap.DemandZone),
		tracker.rangeFor(sectionShortCore, snap.SupplyZone),
	)
}

func (a *Assembler) blockShortTriggers(snap snapshot.MarketSnapshot, tracker *zoneTracker) string {
	return fmt.Sprintf(
		"Triggers (short form)\n\nLONG: only from %s or above a key breakout.\nSHORT: only on a reaction in %s.\n"+
			"Between the zones: observation mode.",
		tracker.rangeFor(sectionTriggers, snap.DemandZone),
		tracker.rangeFor(sectionTriggers, snap.SupplyZone),
	)
}

func (a *Assembler) blockTLDR(snap snapshot.MarketSnapshot, d decision.Decision, tracker *zoneTracker) string {
	return fmt.Sprintf(
		"%s\nTL;DR:\n\n- The market is rangebound, momentum is tiring.\n- At current prices: %s.\n"+
			"- Working zones: long %s, short %s.",
		divider, d.Action,
		tracker.rangeFor(sectionTLDR, snap.DemandZone),
		tracker.rangeFor(sectionTLDR, snap.SupplyZone),
	)
}

// formatPrice renders a price with thousands separators and no decimals
func formatPrice(v float64) string {
	neg := v < 0
	if neg {
		v = -v
	}
	n := int64(v + 0.5)
	s := fmt.Sprintf("%d", n)
	var b strings.Builder
	if neg {
		b.WriteByte('-')
	}
	for i, r := range s {
		if i > 0 && (len(s)-i)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteRune(r)
	}
	return b.String()
}

func formatRange(lower, upper float64) string {
	return formatPrice(lower) + "–" + formatPrice(upper)
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}

func absf(x float64) float64 {
	if x < 0 {
		return -x
	}
	return x
}
