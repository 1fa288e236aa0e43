package daemon

import (
	"context"
	"os"
	"time"

	pkgerrors "github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/charlie0129/battsense/pkg/dataset"
	"github.com/charlie0129/battsense/pkg/events"
	"github.com/charlie0129/battsense/pkg/prediction"
	"github.com/charlie0129/battsense/pkg/soh"
)

// scheduledAnalysisTimeout bounds a scheduled run, including the simulated
// processing delay.
const scheduledAnalysisTimeout = time.Minute

// analysisScheduler is created once; config reloads only reschedule, start or
// stop it.
var analysisScheduler = NewScheduler(scheduledAnalysis, scheduledAnalysisPreCheck, onScheduledAnalysisError)

// runPrediction predicts with the configured model, stores the result as the
// current session and announces it.
func runPrediction(ctx context.Context, ds *dataset.Summary, trigger string) (soh.PredictionResult, error) {
	model := conf.Model()
	p, err := prediction.New(model, prediction.Options{
		Delay:          conf.ProcessingDelay(),
		DeepSeekAPIKey: conf.DeepSeekAPIKey(),
	})
	if err != nil {
		predictionFailures.WithLabelValues(model, trigger).Inc()
		return soh.PredictionResult{}, err
	}

	start := time.Now()
	r, err := p.Predict(ctx, prediction.Input{Model: model, Dataset: ds})
	predictionLatency.Observe(time.Since(start).Seconds())
	if err != nil {
		predictionFailures.WithLabelValues(model, trigger).Inc()
		return soh.PredictionResult{}, err
	}

	session.Set(r, ds)

	status := r.Status()
	predictionsTotal.WithLabelValues(model, trigger).Inc()
	classificationsTotal.WithLabelValues(status.Category.String()).Inc()

	hub.Publish(events.PredictionCompleted, events.PredictionCompletedEvent{
		BatteryID:    r.BatteryID,
		Model:        r.Model,
		PredictedSoH: r.PredictedSoH,
		Category:     status.Category.String(),
		Trigger:      trigger,
		Ts:           time.Now().Unix(),
	})

	logrus.WithFields(logrus.Fields{
		"batteryId": r.BatteryID,
		"model":     r.Model,
		"soh":       r.PredictedSoH,
		"category":  status.Category,
		"trigger":   trigger,
	}).Info("prediction completed")

	return r, nil
}

func scheduledAnalysis() error {
	path := conf.AnalysisDataset()
	ds, err := dataset.Load(path)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), scheduledAnalysisTimeout)
	defer cancel()

	_, err = runPrediction(ctx, ds, events.TriggerSchedule)
	return err
}

func scheduledAnalysisPreCheck() error {
	path := conf.AnalysisDataset()
	if _, err := os.Stat(path); err != nil {
		return pkgerrors.Wrapf(err, "dataset %s is not readable", path)
	}
	return nil
}

func onScheduledAnalysisError(data any) {
	err, ok := data.(error)
	if !ok {
		return
	}
	logrus.Errorf("scheduled analysis failed: %v", err)
	hub.Publish(events.AnalysisFailed, events.AnalysisFailedEvent{
		Dataset: conf.AnalysisDataset(),
		Error:   err.Error(),
		Ts:      time.Now().Unix(),
	})
}

// setupAnalysisSchedule starts, reschedules or stops the scheduled analysis to
// match the current config.
func setupAnalysisSchedule() error {
	expr, path := conf.AnalysisCron(), conf.AnalysisDataset()
	if expr == "" || path == "" {
		if _, running := analysisScheduler.Status(); running {
			analysisScheduler.Stop()
			logrus.Info("scheduled analysis disabled")
		}
		return nil
	}

	if err := analysisScheduler.Schedule(expr); err != nil {
		return pkgerrors.Wrapf(err, "invalid analysis cron %q", expr)
	}
	analysisScheduler.Start()

	next, _ := analysisScheduler.Status()
	logrus.WithFields(logrus.Fields{
		"cron":    expr,
		"dataset": path,
		"nextRun": next.Format(time.DateTime),
	}).Info("scheduled analysis enabled")
	return nil
}
