// Package snapshot defines the immutable per-request input records for the
// diagnostics engine. A snapshot is built once by the upstream data
// pipeline, handed to exactly one engine invocation and discarded.
package snapshot

// Candle represents a single OHLCV bar
type Candle struct {
	Open   float64 `json:"open"`
	High   float64 `json:"high"`
	Low    float64 `json:"low"`
	Close  float64 `json:"close"`
	Volume float64 `json:"volume"`
}

// Bullish reports whether the candle closed above its open
func (c Candle) Bullish() bool {
	return c.Close > c.Open
}

// Bearish reports whether the candle closed below its open
func (c Candle) Bearish() bool {
	return c.Close < c.Open
}

// Imbalance represents a Fair Value Gap left by rapid price movement
type Imbalance struct {
	PriceLow  float64 `json:"price_low"`
	PriceHigh float64 `json:"price_high"`
	Direction string  `json:"direction"` // "bullish" or "bearish"
	Filled    bool    `json:"filled"`
}

// Contains reports whether price sits inside the gap
func (im Imbalance) Contains(price float64) bool {
	return price >= im.PriceLow && price <= im.PriceHigh
}

// PriceVolume is one level of a volume profile or resting limit book
type PriceVolume struct {
	Price  float64 `json:"price"`
	Volume float64 `json:"volume"`
}

// SignalSnapshot bundles the raw per-timeframe series the sub-analyzers
// consume. Optional fields are pointers; nil means the upstream pipeline
// could not populate them and the dependent factor must be skipped.
type SignalSnapshot struct {
	Symbol    string  `json:"symbol"`
	Timeframe string  `json:"timeframe"`
	Price     float64 `json:"price"`

	// Directional scores, roughly [-1, 1]
	TrendScore       *float64 `json:"trend_score,omitempty"`
	MomentumScore    *float64 `json:"momentum_score,omitempty"`
	VolumeScore      *float64 `json:"volume_score,omitempty"`
	StructureScore   *float64 `json:"structure_score,omitempty"`
	DerivativesScore *float64 `json:"derivatives_score,omitempty"`
	VolatilityScore  *float64 `json:"volatility_score,omitempty"`

	// Structure and liquidity
	LiquidityAbove []float64            `json:"liquidity_above,omitempty"`
	LiquidityBelow []float64            `json:"liquidity_below,omitempty"`
	Imbalances     []Imbalance          `json:"imbalances,omitempty"`
	EQHLevels      []float64            `json:"eqh_levels,omitempty"`
	EQLLevels      []float64            `json:"eql_levels,omitempty"`
	HTFLevels      map[string][]float64 `json:"htf_levels,omitempty"`
	KeyLevels      []float64            `json:"key_levels,omitempty"`

	// Derivatives
	FundingRate    *float64             `json:"funding_rate,omitempty"`
	FundingHistory []float64            `json:"funding_history,omitempty"`
	OIDelta        *float64             `json:"oi_delta,omitempty"`
	OIHistory      map[string][]float64 `json:"oi_history,omitempty"`

	// Smart-money observations
	WeeklyOrderBlock *float64      `json:"weekly_order_block,omitempty"`
	DailyFVG         *Imbalance    `json:"daily_fvg,omitempty"`
	VolumeProfile    []PriceVolume `json:"volume_profile,omitempty"`
	LimitOrders      []PriceVolume `json:"limit_orders,omitempty"`
	VolumeAbsorption *float64      `json:"volume_absorption,omitempty"`

	// Order flow
	CVDHistory   []float64 `json:"cvd_history,omitempty"`
	BuyVolumes   []float64 `json:"buy_volumes,omitempty"`
	SellVolumes  []float64 `json:"sell_volumes,omitempty"`
	PriceChanges []float64 `json:"price_changes,omitempty"`

	// Recent history
	Candles     []Candle  `json:"candles,omitempty"`
	Volumes     []float64 `json:"volumes,omitempty"`
	RecentWicks []float64 `json:"recent_wicks,omitempty"`

	RecentVolume  *float64 `json:"recent_volume,omitempty"`
	AvgVolume     *float64 `json:"avg_volume,omitempty"`
	Volatility    *float64 `json:"volatility,omitempty"`
	AvgVolatility *float64 `json:"avg_volatility,omitempty"`
	ATR           *float64 `json:"atr,omitempty"`

	// Data quality, 0-1 each. Zero values are treated as unknown-bad,
	// not missing; quality is the one factor that is always evaluated.
	DataCompleteness float64 `json:"data_completeness"`
	DataFreshness    float64 `json:"data_freshness"`
}
