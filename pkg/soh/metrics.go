package soh

import (
	"math"
	"math/rand"
	"time"
)

const (
	// barScale converts a degradation rate (% per 100 cycles) to bar width (%).
	barScale = 5.0
	// trendFloor is the lowest SoH value a trend point may take.
	trendFloor = 0.5
	// trendJitter is the total width of the uniform noise added to each point.
	trendJitter = 0.05
)

// MaxCycleCount is the largest cycle count accepted from outside input.
// TrendCurve allocates one point per cycle, so larger counts are rejected
// where they enter: uploads, the HTTP API and the CLI.
const MaxCycleCount = 100_000

// Source supplies uniformly distributed numbers in [0, 1). *rand.Rand
// satisfies it.
type Source interface {
	Float64() float64
}

// NewSource returns a deterministic Source for the given seed. It is not safe
// for concurrent use.
func NewSource(seed int64) Source {
	return rand.New(rand.NewSource(seed))
}

// TrendPoint is one sample of the illustrative degradation curve. Cycle is
// 1-based.
type TrendPoint struct {
	Cycle int     `json:"cycle"`
	SoH   float64 `json:"soh"`
}

// DisplayMetrics are the derived values the dashboard and report show for a
// PredictionResult.
type DisplayMetrics struct {
	Percent                    int          `json:"percent"`
	DegradationBarWidthPercent float64      `json:"degradationBarWidthPercent"`
	TrendPoints                []TrendPoint `json:"trendPoints"`
}

// Percent converts a ratio to a whole percentage, rounding half away from
// zero. NaN yields 0 and infinities saturate.
func Percent(ratio float64) int {
	p := math.Round(ratio * 100)
	switch {
	case math.IsNaN(p):
		return 0
	case p >= math.MaxInt32:
		return math.MaxInt32
	case p <= math.MinInt32:
		return math.MinInt32
	}
	return int(p)
}

// DegradationBarWidth scales a degradation rate onto a 0-100 bar.
func DegradationBarWidth(rate float64) float64 {
	w := rate * barScale
	if math.IsNaN(w) || w < 0 {
		return 0
	}
	return math.Min(w, 100)
}

// TrendCurve generates cycleCount samples of a linear decline of rate percent
// per 100 cycles with uniform jitter of +/-0.025, never below 0.5.
// A nil src uses a fresh time-seeded source, so output differs between calls.
func TrendCurve(cycleCount int, rate float64, src Source) []TrendPoint {
	if cycleCount <= 0 {
		return []TrendPoint{}
	}
	if src == nil {
		src = NewSource(time.Now().UnixNano())
	}

	points := make([]TrendPoint, cycleCount)
	for i := range points {
		jitter := (src.Float64() - 0.5) * trendJitter
		points[i] = TrendPoint{
			Cycle: i + 1,
			SoH:   math.Max(trendFloor, 1-(float64(i)*rate/100)+jitter),
		}
	}
	return points
}

// ComputeDisplayMetrics derives the dashboard values for r. Remaining cycles
// and confidence are not part of the output; callers read them from r.
func ComputeDisplayMetrics(r PredictionResult, src Source) DisplayMetrics {
	return DisplayMetrics{
		Percent:                    Percent(r.PredictedSoH),
		DegradationBarWidthPercent: DegradationBarWidth(r.DegradationRate),
		TrendPoints:                TrendCurve(r.CycleCount, r.DegradationRate, src),
	}
}
