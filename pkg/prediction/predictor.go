package prediction

import (
	"context"
	"errors"
	"math"
	"sync"
	"time"

	"github.com/charlie0129/battsense/pkg/dataset"
	"github.com/charlie0129/battsense/pkg/soh"
)

// ErrAPIKeyMissing is returned by the DeepSeek predictor when no key is set.
var ErrAPIKeyMissing = errors.New("DeepSeek API key not configured")

// Demo values returned for every upload. They are illustrative only.
const (
	demoBatteryID       = "B0005"
	demoSoH             = 0.78
	demoConfidence      = 0.92
	demoCycleCount      = 150
	demoDegradationRate = 0.15
	demoRemainingCycles = 45
)

// Input is what a predictor receives for one upload.
type Input struct {
	Model   string
	Dataset *dataset.Summary
}

// Predictor produces a prediction for an upload. Implementations block for
// their processing delay and return ctx.Err() if ctx ends first.
type Predictor interface {
	Predict(ctx context.Context, in Input) (soh.PredictionResult, error)
}

// Options configure New.
type Options struct {
	Delay          time.Duration
	DeepSeekAPIKey string
	// Source drives the DeepSeek simulation. nil uses a time-seeded source.
	Source soh.Source
}

// New returns the predictor for a catalog model.
func New(model string, opts Options) (Predictor, error) {
	m, err := Lookup(model)
	if err != nil {
		return nil, err
	}

	if m.ID == ModelDeepSeek {
		return &DeepSeekPredictor{
			APIKey: opts.DeepSeekAPIKey,
			Delay:  opts.Delay,
			Source: opts.Source,
		}, nil
	}
	return &DemoPredictor{Delay: opts.Delay}, nil
}

// DemoPredictor returns the fixed demonstration result after Delay.
type DemoPredictor struct {
	Delay time.Duration
}

func (p *DemoPredictor) Predict(ctx context.Context, in Input) (soh.PredictionResult, error) {
	if err := wait(ctx, p.Delay); err != nil {
		return soh.PredictionResult{}, err
	}
	return demoResult(in.Model), nil
}

// DeepSeekPredictor simulates a remote model: SoH falls 0.002 per cycle from
// 0.95 with +/-0.05 noise and is clamped to [0.4, 0.98]; confidence is drawn
// from [0.8, 1.0).
type DeepSeekPredictor struct {
	APIKey string
	Delay  time.Duration
	Source soh.Source

	mu sync.Mutex
}

func (p *DeepSeekPredictor) Predict(ctx context.Context, in Input) (soh.PredictionResult, error) {
	if p.APIKey == "" {
		return soh.PredictionResult{}, ErrAPIKeyMissing
	}
	if err := wait(ctx, p.Delay); err != nil {
		return soh.PredictionResult{}, err
	}

	r := demoResult(in.Model)
	if in.Dataset != nil && in.Dataset.CycleCount > 0 {
		r.CycleCount = in.Dataset.CycleCount
	}

	noise, conf := p.draw()
	predicted := 0.95 - float64(r.CycleCount)*0.002 + (noise-0.5)*0.1
	r.PredictedSoH = math.Max(0.4, math.Min(0.98, predicted))
	r.Confidence = conf*0.2 + 0.8
	return r, nil
}

func (p *DeepSeekPredictor) draw() (float64, float64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.Source == nil {
		p.Source = soh.NewSource(time.Now().UnixNano())
	}
	return p.Source.Float64(), p.Source.Float64()
}

func demoResult(model string) soh.PredictionResult {
	return soh.PredictionResult{
		BatteryID:       demoBatteryID,
		PredictedSoH:    demoSoH,
		Confidence:      demoConfidence,
		CycleCount:      demoCycleCount,
		DegradationRate: demoDegradationRate,
		RemainingCycles: demoRemainingCycles,
		Model:           model,
	}
}

func wait(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
