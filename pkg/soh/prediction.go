package soh

// PredictionResult is what a predictor produces for one uploaded dataset.
//
// The fields are supplied together and none is recomputed from another:
// RemainingCycles and Confidence in particular pass through to the dashboard
// and report unchanged.
type PredictionResult struct {
	BatteryID       string  `json:"batteryId"`
	PredictedSoH    float64 `json:"predictedSoH"`
	Confidence      float64 `json:"confidence"`
	CycleCount      int     `json:"cycleCount"`
	DegradationRate float64 `json:"degradationRate"` // percent per 100 cycles
	RemainingCycles int     `json:"remainingCycles"`
	Model           string  `json:"model"`
}

// Status classifies the predicted SoH.
func (r PredictionResult) Status() Status {
	return Classify(r.PredictedSoH)
}
