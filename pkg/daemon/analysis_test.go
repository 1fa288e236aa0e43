package daemon

import (
	"net/http"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/charlie0129/battsense/pkg/events"
)

func TestScheduledAnalysis(t *testing.T) {
	setupTestDaemon(t, "SVR")

	path := filepath.Join(t.TempDir(), "B0005.csv")
	if err := os.WriteFile(path, []byte(sampleCSV), 0600); err != nil {
		t.Fatalf("failed to write dataset: %v", err)
	}
	conf.SetAnalysisDataset(path)

	if err := scheduledAnalysisPreCheck(); err != nil {
		t.Fatalf("precheck failed: %v", err)
	}

	sub := hub.Subscribe()
	defer hub.Unsubscribe(sub)

	if err := scheduledAnalysis(); err != nil {
		t.Fatalf("scheduled analysis failed: %v", err)
	}

	_, ds, _, ok := session.Latest()
	if !ok || ds == nil || ds.FileName != "B0005.csv" {
		t.Fatalf("expected scheduled analysis to update the session, got %+v", ds)
	}

	select {
	case ev := <-sub:
		payload, err := events.DecodeAs[events.PredictionCompletedEvent](ev)
		if err != nil {
			t.Fatalf("failed to decode event: %v", err)
		}
		if payload.Trigger != events.TriggerSchedule {
			t.Fatalf("expected schedule trigger, got %s", payload.Trigger)
		}
	case <-time.After(time.Second):
		t.Fatalf("expected a prediction event")
	}
}

func TestScheduledAnalysisMissingDataset(t *testing.T) {
	setupTestDaemon(t, "SVR")
	conf.SetAnalysisDataset(filepath.Join(t.TempDir(), "missing.csv"))

	if err := scheduledAnalysisPreCheck(); err == nil {
		t.Fatalf("expected precheck to fail for a missing dataset")
	}

	sub := hub.Subscribe()
	defer hub.Unsubscribe(sub)

	onScheduledAnalysisError(os.ErrNotExist)
	select {
	case ev := <-sub:
		if ev.Name != events.AnalysisFailed {
			t.Fatalf("unexpected event %s", ev.Name)
		}
	case <-time.After(time.Second):
		t.Fatalf("expected an analysis failure event")
	}
}

func TestSetupAnalysisSchedule(t *testing.T) {
	setupTestDaemon(t, "SVR")

	if err := setupAnalysisSchedule(); err != nil {
		t.Fatalf("setup with no schedule failed: %v", err)
	}
	if _, running := analysisScheduler.Status(); running {
		t.Fatalf("scheduler should not start without a cron expression")
	}

	conf.SetAnalysisCron("0 3 * * *")
	conf.SetAnalysisDataset(filepath.Join(t.TempDir(), "B0005.csv"))
	if err := setupAnalysisSchedule(); err != nil {
		t.Fatalf("setup failed: %v", err)
	}
	next, running := analysisScheduler.Status()
	if !running {
		t.Fatalf("expected scheduler to be running")
	}
	if next.IsZero() || next.Hour() != 3 {
		t.Fatalf("unexpected next run %v", next)
	}

	conf.SetAnalysisCron("not a cron")
	if err := setupAnalysisSchedule(); err == nil {
		t.Fatalf("expected error for invalid cron expression")
	}

	conf.SetAnalysisCron("")
	if err := setupAnalysisSchedule(); err != nil {
		t.Fatalf("disabling failed: %v", err)
	}
	if _, running := analysisScheduler.Status(); running {
		t.Fatalf("expected scheduler to be stopped")
	}

	// Re-enabling reuses the same scheduler.
	s := analysisScheduler
	conf.SetAnalysisCron("@every 1h")
	if err := setupAnalysisSchedule(); err != nil {
		t.Fatalf("re-enabling failed: %v", err)
	}
	if _, running := analysisScheduler.Status(); !running || analysisScheduler != s {
		t.Fatalf("expected the same scheduler to be running again")
	}
}

func TestAnalysisScheduleReloadWhileServing(t *testing.T) {
	h := setupTestDaemon(t, "SVR")
	conf.SetAnalysisDataset(filepath.Join(t.TempDir(), "B0005.csv"))

	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 50; i++ {
			if i%2 == 0 {
				conf.SetAnalysisCron("@every 1h")
			} else {
				conf.SetAnalysisCron("")
			}
			if err := setupAnalysisSchedule(); err != nil {
				t.Errorf("setup failed: %v", err)
				return
			}
		}
	}()

	for i := 0; i < 50; i++ {
		w := do(t, h, http.MethodGet, "/analysis-schedule", "", "")
		if w.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d", w.Code)
		}
		_ = do(t, h, http.MethodPost, "/analysis-schedule/skip", "", "")
	}
	<-done
}

func TestSkipAnalysis(t *testing.T) {
	h := setupTestDaemon(t, "SVR")

	if w := do(t, h, http.MethodPost, "/analysis-schedule/skip", "", ""); w.Code != http.StatusConflict {
		t.Fatalf("expected 409 without a schedule, got %d", w.Code)
	}

	conf.SetAnalysisCron("0 3 * * *")
	conf.SetAnalysisDataset(filepath.Join(t.TempDir(), "B0005.csv"))
	if err := setupAnalysisSchedule(); err != nil {
		t.Fatalf("setup failed: %v", err)
	}
	before, _ := analysisScheduler.Status()

	w := do(t, h, http.MethodPost, "/analysis-schedule/skip", "", "")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	got := decode[analysisSchedule](t, w)
	if !got.Enabled || got.NextRun == nil {
		t.Fatalf("unexpected schedule %+v", got)
	}
	if !got.NextRun.After(before) || got.NextRun.Local().Hour() != 3 {
		t.Fatalf("expected next run to move past %v, got %v", before, got.NextRun)
	}
}
