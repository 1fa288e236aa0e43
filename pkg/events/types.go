package events

import "encoding/json"

// Event name constants
const (
	PredictionCompleted = "prediction.completed"
	AnalysisFailed      = "analysis.failed"
)

// Trigger values for PredictionCompletedEvent.Trigger.
const (
	TriggerUpload   = "upload"
	TriggerSchedule = "schedule"
)

// Event is a generic SSE event from daemon.
type Event struct {
	Name string          // SSE event name
	Data json.RawMessage // Raw JSON payload
}

// PredictionCompletedEvent is the typed payload for prediction.completed.
type PredictionCompletedEvent struct {
	BatteryID    string  `json:"batteryId"`
	Model        string  `json:"model"`
	PredictedSoH float64 `json:"predictedSoH"`
	Category     string  `json:"category"`
	Trigger      string  `json:"trigger"`
	Ts           int64   `json:"ts"`
}

// AnalysisFailedEvent is the typed payload for analysis.failed.
type AnalysisFailedEvent struct {
	Dataset string `json:"dataset,omitempty"`
	Error   string `json:"error"`
	Ts      int64  `json:"ts"`
}

// DecodeAs decodes the event payload into the caller-specified generic type T.
// If Data is empty, it returns the zero value of T with a nil error.
//
// Example:
//
//	payload, err := events.DecodeAs[events.PredictionCompletedEvent](ev)
//	if err != nil { /* handle */ }
//	fmt.Println(payload.Model, payload.Category)
func DecodeAs[T any](e Event) (T, error) {
	var zero T
	if len(e.Data) == 0 {
		return zero, nil
	}
	var v T
	if err := json.Unmarshal(e.Data, &v); err != nil {
		return zero, err
	}
	return v, nil
}
