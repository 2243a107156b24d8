package patterns

import (
	"testing"

	"market-doctor/internal/snapshot"
)

// TestThreeBarReversalBullish tests two down bars then a reclaim close
func TestThreeBarReversalBullish(t *testing.T) {
	d := NewDetector()

	candles := []snapshot.Candle{
		{Open: 102, High: 103, Low: 100, Close: 101}, // down
		{Open: 101, High: 102, Low: 99, Close: 100},  // down
		{Open: 100, High: 104, Low: 99, Close: 103},  // up, closes above c2 high
	}
	got := d.DetectThreeBarReversal(candles)
	if got == nil {
		t.Fatal("Should detect bullish 3-bar reversal")
	}
	if got.Direction != "bullish" || got.Confidence != 0.7 || got.HorizonHours != 4 {
		t.Errorf("Unexpected detection: %+v", got)
	}

	// Close inside c2's range: no pattern
	candles[2].Close = 101.5
	if d.DetectThreeBarReversal(candles) != nil {
		t.Error("Close inside the middle bar's range should not trigger")
	}
}

// TestThreeBarReversalBearish tests two up bars then a breakdown close
func TestThreeBarReversalBearish(t *testing.T) {
	d := NewDetector()

	candles := []snapshot.Candle{
		{Open: 100, High: 102, Low: 99, Close: 101},
		{Open: 101, High: 103, Low: 100, Close: 102},
		{Open: 102, High: 103, Low: 98, Close: 99}, // down, closes below c2 low
	}
	got := d.DetectThreeBarReversal(candles)
	if got == nil || got.Direction != "bearish" {
		t.Fatalf("Should detect bearish 3-bar reversal, got %+v", got)
	}
}

// TestStopRunRecoil tests a level pierced and reclaimed within two bars
func TestStopRunRecoil(t *testing.T) {
	d := NewDetector()

	candles := []snapshot.Candle{
		{Open: 101, High: 102, Low: 100.5, Close: 101.5}, // stays above the level
		{Open: 101.5, High: 102, Low: 99, Close: 100.8},  // pierces 100, closes back above
	}
	got := d.DetectStopRunRecoil(candles, []float64{100})
	if got == nil {
		t.Fatal("Should detect bullish stop run and recoil")
	}
	if got.Direction != "bullish" || got.Confidence != 0.75 {
		t.Errorf("Unexpected detection: %+v", got)
	}

	// Upward sweep rejected
	candles = []snapshot.Candle{
		{Open: 99, High: 99.5, Low: 98, Close: 99},
		{Open: 99, High: 100.5, Low: 98.5, Close: 99.2},
	}
	got = d.DetectStopRunRecoil(candles, []float64{100})
	if got == nil || got.Direction != "bearish" {
		t.Fatalf("Should detect bearish stop run, got %+v", got)
	}
}

// TestDeltaAbsorption tests heavy one-sided volume with a flat price
func TestDeltaAbsorption(t *testing.T) {
	d := NewDetector()

	buys := make([]float64, 10)
	sells := make([]float64, 10)
	flat := make([]float64, 10)
	for i := range buys {
		buys[i] = 100
		sells[i] = 50
		flat[i] = 0.0001
	}

	got := d.DetectDeltaAbsorption(buys, sells, flat)
	if got == nil || got.Direction != "bullish" {
		t.Fatalf("Should detect bullish absorption, got %+v", got)
	}
	if got.Confidence != 0.65 || got.HorizonHours != 8 {
		t.Errorf("Unexpected detection: %+v", got)
	}

	// Moving price disqualifies absorption
	moving := make([]float64, 10)
	for i := range moving {
		moving[i] = 0.01
	}
	if d.DetectDeltaAbsorption(buys, sells, moving) != nil {
		t.Error("Moving price should not trigger absorption")
	}
}

// TestImbalanceRefill tests price re-entering an unfilled gap with a
// bullish latest candle
func TestImbalanceRefill(t *testing.T) {
	d := NewDetector()

	candles := []snapshot.Candle{
		{Open: 100, High: 101, Low: 99, Close: 100.5},
		{Open: 100.5, High: 102, Low: 100, Close: 101.5},
	}
	imbs := []snapshot.Imbalance{{PriceLow: 101, PriceHigh: 103, Direction: "bullish"}}

	got := d.DetectImbalanceRefill(candles, imbs, 101.5)
	if got == nil || got.Pattern != ImbalanceRefillImpulse {
		t.Fatalf("Should detect imbalance refill impulse, got %+v", got)
	}

	// Filled gaps are ignored
	imbs[0].Filled = true
	if d.DetectImbalanceRefill(candles, imbs, 101.5) != nil {
		t.Error("Filled imbalance should not trigger")
	}
}

// TestVolumeClimaxCompression tests climax, compression, then expansion
func TestVolumeClimaxCompression(t *testing.T) {
	d := NewDetector()

	volumes := make([]float64, 20)
	candles := make([]snapshot.Candle, 20)
	for i := range volumes {
		volumes[i] = 100
		candles[i] = snapshot.Candle{Open: 100, High: 101, Low: 99, Close: 100.5}
	}
	volumes[10] = 1000              // climax
	volumes[11], volumes[12], volumes[13] = 100, 100, 100 // compression (avg 100 < 500)
	volumes[19] = 400               // expansion past 1.5x the compressed average

	got := d.DetectVolumeClimaxCompression(candles, volumes)
	if got == nil {
		t.Fatal("Should detect climax-compression-expansion")
	}
	if got.Confidence != 0.8 || got.Direction != "bullish" {
		t.Errorf("Unexpected detection: %+v", got)
	}
}

// TestDetectAllConcatenates verifies independent detections stack up
func TestDetectAllConcatenates(t *testing.T) {
	d := NewDetector()

	candles := []snapshot.Candle{
		{Open: 102, High: 103, Low: 100, Close: 101},
		{Open: 101, High: 102, Low: 99, Close: 100},
		{Open: 100, High: 104, Low: 99, Close: 103},
	}
	imbs := []snapshot.Imbalance{{PriceLow: 102, PriceHigh: 105, Direction: "bullish"}}

	got := d.DetectAll(candles, nil, nil, nil, nil, nil, imbs, 103)
	if len(got) != 2 {
		t.Fatalf("Expected 2 detections (reversal + refill), got %d: %+v", len(got), got)
	}
	if got[0].Pattern != ThreeBarReversal || got[1].Pattern != ImbalanceRefillImpulse {
		t.Errorf("Unexpected ordering: %+v", got)
	}
}
