package daemon

import (
	"testing"

	"github.com/charlie0129/battsense/pkg/dataset"
	"github.com/charlie0129/battsense/pkg/soh"
)

func TestSession(t *testing.T) {
	s := NewSession()
	if _, _, _, ok := s.Latest(); ok {
		t.Fatalf("new session should be empty")
	}

	first := soh.PredictionResult{BatteryID: "B0005", PredictedSoH: 0.78}
	s.Set(first, nil)
	r, ds, updatedAt, ok := s.Latest()
	if !ok || r != first || ds != nil || updatedAt.IsZero() {
		t.Fatalf("unexpected latest: %+v %v %v %v", r, ds, updatedAt, ok)
	}

	second := soh.PredictionResult{BatteryID: "B0006", PredictedSoH: 0.91}
	s.Set(second, &dataset.Summary{FileName: "b6.csv"})
	r, ds, _, _ = s.Latest()
	if r != second {
		t.Fatalf("expected second prediction to replace the first, got %+v", r)
	}
	if ds == nil || ds.FileName != "b6.csv" {
		t.Fatalf("unexpected dataset: %+v", ds)
	}

	s.Clear()
	if _, _, _, ok := s.Latest(); ok {
		t.Fatalf("cleared session should be empty")
	}
}
