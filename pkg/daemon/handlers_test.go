package daemon

import (
	"encoding/json"
	"fmt"
	"math"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/charlie0129/battsense/pkg/config"
	"github.com/charlie0129/battsense/pkg/events"
	"github.com/charlie0129/battsense/pkg/report"
	"github.com/charlie0129/battsense/pkg/soh"
	"github.com/charlie0129/battsense/pkg/utils/ptr"
)

const sampleCSV = `cycle,voltage,current,temperature,capacity
1,3.9,-2.0,24.0,1.85
2,3.8,-2.0,25.0,1.84
3,3.7,-2.0,26.0,1.83
`

func setupTestDaemon(t *testing.T, model string) http.Handler {
	t.Helper()
	t.Setenv(config.EnvDeepSeekAPIKey, "")

	conf = config.NewFileFromConfig(&config.RawFileConfig{
		Model:             ptr.To(model),
		ProcessingDelayMs: ptr.To(0),
	}, filepath.Join(t.TempDir(), "config.json"))
	session.Clear()
	analysisScheduler = NewScheduler(scheduledAnalysis, scheduledAnalysisPreCheck, onScheduledAnalysisError)
	t.Cleanup(analysisScheduler.Stop)

	return setupRoutes()
}

func do(t *testing.T, h http.Handler, method, target, contentType, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(w.Body.Bytes(), &v); err != nil {
		t.Fatalf("failed to decode response %q: %v", w.Body.String(), err)
	}
	return v
}

func TestGetClassify(t *testing.T) {
	h := setupTestDaemon(t, "SVR")

	tests := []struct {
		ratio string
		want  soh.Category
	}{
		{"0.95", soh.Excellent},
		{"0.85", soh.Good},
		{"0.80", soh.Good},
		{"0.6", soh.Moderate},
		{"0.45", soh.Poor},
		{"0.1", soh.Critical},
	}
	for _, tt := range tests {
		w := do(t, h, http.MethodGet, "/classify?ratio="+tt.ratio, "", "")
		if w.Code != http.StatusOK {
			t.Fatalf("ratio %s: expected 200, got %d", tt.ratio, w.Code)
		}
		got := decode[soh.Status](t, w)
		if got != soh.StatusOf(tt.want) {
			t.Errorf("ratio %s: got %+v, want %+v", tt.ratio, got, soh.StatusOf(tt.want))
		}
	}

	if w := do(t, h, http.MethodGet, "/classify?ratio=abc", "", ""); w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for invalid ratio, got %d", w.Code)
	}
}

func TestPostDisplayMetrics(t *testing.T) {
	h := setupTestDaemon(t, "SVR")

	body := `{"batteryId":"B0005","predictedSoH":0.78,"confidence":0.92,"cycleCount":150,"degradationRate":0.15,"remainingCycles":45,"model":"SVR"}`
	w := do(t, h, http.MethodPost, "/display-metrics?seed=1", "application/json", body)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}

	got := decode[soh.DisplayMetrics](t, w)
	if got.Percent != 78 {
		t.Errorf("expected percent 78, got %d", got.Percent)
	}
	if math.Abs(got.DegradationBarWidthPercent-0.75) > 1e-9 {
		t.Errorf("expected bar width 0.75, got %v", got.DegradationBarWidthPercent)
	}
	if len(got.TrendPoints) != 150 {
		t.Errorf("expected 150 trend points, got %d", len(got.TrendPoints))
	}

	again := decode[soh.DisplayMetrics](t, do(t, h, http.MethodPost, "/display-metrics?seed=1", "application/json", body))
	if len(again.TrendPoints) != len(got.TrendPoints) || again.TrendPoints[42] != got.TrendPoints[42] {
		t.Errorf("expected the same seed to produce the same trend")
	}

	if w := do(t, h, http.MethodPost, "/display-metrics?seed=x", "application/json", body); w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for invalid seed, got %d", w.Code)
	}
}

func TestPostDisplayMetricsCycleBound(t *testing.T) {
	h := setupTestDaemon(t, "SVR")

	body := func(cycles int) string {
		return fmt.Sprintf(`{"predictedSoH":0.78,"cycleCount":%d,"degradationRate":0.15}`, cycles)
	}

	w := do(t, h, http.MethodPost, "/display-metrics?seed=1", "application/json", body(soh.MaxCycleCount))
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200 at the maximum, got %d", w.Code)
	}
	if got := decode[soh.DisplayMetrics](t, w); len(got.TrendPoints) != soh.MaxCycleCount {
		t.Fatalf("expected %d trend points, got %d", soh.MaxCycleCount, len(got.TrendPoints))
	}

	for _, cycles := range []int{soh.MaxCycleCount + 1, 1 << 40} {
		w := do(t, h, http.MethodPost, "/display-metrics", "application/json", body(cycles))
		if w.Code != http.StatusBadRequest {
			t.Fatalf("cycleCount %d: expected 400, got %d", cycles, w.Code)
		}
	}
}

func TestModelSelection(t *testing.T) {
	h := setupTestDaemon(t, "SVR")

	w := do(t, h, http.MethodPut, "/model", "application/json", `"lstm"`)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	if got := conf.Model(); got != "LSTM" {
		t.Fatalf("expected model LSTM, got %s", got)
	}

	if w := do(t, h, http.MethodPut, "/model", "application/json", `"nope"`); w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for unknown model, got %d", w.Code)
	}
	if got := conf.Model(); got != "LSTM" {
		t.Fatalf("unknown model should not change the selection, got %s", got)
	}
}

func TestPredictionFlow(t *testing.T) {
	h := setupTestDaemon(t, "SVR")

	for _, path := range []string{"/predictions/latest", "/dashboard", "/report"} {
		if w := do(t, h, http.MethodGet, path, "", ""); w.Code != http.StatusNotFound {
			t.Fatalf("%s: expected 404 before any upload, got %d", path, w.Code)
		}
	}

	sub := hub.Subscribe()
	defer hub.Unsubscribe(sub)

	w := do(t, h, http.MethodPost, "/predictions?filename=B0005.csv", "application/octet-stream", sampleCSV)
	if w.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", w.Code, w.Body.String())
	}
	r := decode[soh.PredictionResult](t, w)
	if r.BatteryID != "B0005" || r.PredictedSoH != 0.78 || r.Model != "SVR" {
		t.Fatalf("unexpected prediction: %+v", r)
	}

	select {
	case ev := <-sub:
		if ev.Name != events.PredictionCompleted {
			t.Fatalf("unexpected event %s", ev.Name)
		}
		payload, err := events.DecodeAs[events.PredictionCompletedEvent](ev)
		if err != nil {
			t.Fatalf("failed to decode event: %v", err)
		}
		if payload.Category != "Moderate" || payload.Trigger != events.TriggerUpload {
			t.Fatalf("unexpected event payload: %+v", payload)
		}
	case <-time.After(time.Second):
		t.Fatalf("expected a prediction event")
	}

	latest := decode[soh.PredictionResult](t, do(t, h, http.MethodGet, "/predictions/latest", "", ""))
	if latest != r {
		t.Fatalf("latest %+v does not match uploaded %+v", latest, r)
	}

	dash := decode[report.Dashboard](t, do(t, h, http.MethodGet, "/dashboard?seed=7", "", ""))
	if dash.Status.Category != soh.Moderate || dash.Metrics.Percent != 78 {
		t.Fatalf("unexpected dashboard: %+v", dash)
	}
	if dash.Dataset == nil || dash.Dataset.FileName != "B0005.csv" || dash.Dataset.Rows != 3 {
		t.Fatalf("unexpected dashboard dataset: %+v", dash.Dataset)
	}

	rep := decode[report.Report](t, do(t, h, http.MethodGet, "/report", "", ""))
	if rep.SoHPercent != 78 || rep.Status.Category != soh.Moderate {
		t.Fatalf("unexpected report: %+v", rep)
	}
}

func TestPostPredictionRejectsInvalidUpload(t *testing.T) {
	h := setupTestDaemon(t, "SVR")

	w := do(t, h, http.MethodPost, "/predictions?filename=notes.txt", "text/plain", sampleCSV)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for non-CSV upload, got %d", w.Code)
	}

	w = do(t, h, http.MethodPost, "/predictions?filename=empty.csv", "text/csv", "")
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for empty dataset, got %d", w.Code)
	}

	w = do(t, h, http.MethodPost, "/predictions", "text/csv", "cycle\nx\n")
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for malformed dataset, got %d", w.Code)
	}

	if _, _, _, ok := session.Latest(); ok {
		t.Fatalf("rejected uploads must not replace the session")
	}
}

func TestPostPredictionRejectsNonFiniteAndHugeValues(t *testing.T) {
	h := setupTestDaemon(t, "DeepSeek")
	conf.SetDeepSeekAPIKey("sk-test")

	for _, csv := range []string{
		"cycle,voltage\n1,NaN\n",
		"cycle,voltage\n1,-Inf\n",
		"cycle,voltage\n1099511627776,3.7\n",
	} {
		w := do(t, h, http.MethodPost, "/predictions?filename=B0005.csv", "text/csv", csv)
		if w.Code != http.StatusBadRequest {
			t.Fatalf("%q: expected 400, got %d: %s", csv, w.Code, w.Body.String())
		}
	}

	if w := do(t, h, http.MethodGet, "/dashboard", "", ""); w.Code != http.StatusNotFound {
		t.Fatalf("rejected uploads must not reach the dashboard, got %d", w.Code)
	}
}

func TestPostPredictionDeepSeekWithoutKey(t *testing.T) {
	h := setupTestDaemon(t, "DeepSeek")

	w := do(t, h, http.MethodPost, "/predictions?filename=B0005.csv", "text/csv", sampleCSV)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 without API key, got %d: %s", w.Code, w.Body.String())
	}
}

func TestPostPredictionDeepSeek(t *testing.T) {
	h := setupTestDaemon(t, "DeepSeek")
	conf.SetDeepSeekAPIKey("sk-test")

	w := do(t, h, http.MethodPost, "/predictions?filename=B0005.csv", "text/csv", sampleCSV)
	if w.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", w.Code, w.Body.String())
	}
	r := decode[soh.PredictionResult](t, w)
	if r.CycleCount != 3 {
		t.Errorf("expected cycle count from dataset, got %d", r.CycleCount)
	}
	if r.PredictedSoH < 0.4 || r.PredictedSoH > 0.98 {
		t.Errorf("predicted SoH %v out of range", r.PredictedSoH)
	}
}

func TestGetAnalysisScheduleDisabled(t *testing.T) {
	h := setupTestDaemon(t, "SVR")

	got := decode[map[string]any](t, do(t, h, http.MethodGet, "/analysis-schedule", "", ""))
	if got["enabled"] != false {
		t.Fatalf("expected schedule to be disabled, got %v", got)
	}
	if _, ok := got["nextRun"]; ok {
		t.Fatalf("disabled schedule should not report a next run")
	}
}

func TestGetConfigMasksKey(t *testing.T) {
	h := setupTestDaemon(t, "SVR")
	conf.SetDeepSeekAPIKey("sk-1234567890")

	got := decode[config.RawFileConfig](t, do(t, h, http.MethodGet, "/config", "", ""))
	if got.DeepSeekAPIKey == nil || *got.DeepSeekAPIKey != "sk*********90" {
		t.Fatalf("expected masked key, got %v", got.DeepSeekAPIKey)
	}
}
