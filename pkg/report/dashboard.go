package report

import (
	"time"

	"github.com/charlie0129/battsense/pkg/dataset"
	"github.com/charlie0129/battsense/pkg/soh"
)

// Dashboard is everything the dashboard view shows for the current upload.
type Dashboard struct {
	Prediction soh.PredictionResult `json:"prediction"`
	Status     soh.Status           `json:"status"`
	Metrics    soh.DisplayMetrics   `json:"metrics"`
	Dataset    *dataset.Summary     `json:"dataset,omitempty"`
	UpdatedAt  time.Time            `json:"updatedAt"`
}

// NewDashboard derives the dashboard for r. src drives the trend jitter and
// may be nil.
func NewDashboard(r soh.PredictionResult, ds *dataset.Summary, updatedAt time.Time, src soh.Source) *Dashboard {
	return &Dashboard{
		Prediction: r,
		Status:     r.Status(),
		Metrics:    soh.ComputeDisplayMetrics(r, src),
		Dataset:    ds,
		UpdatedAt:  updatedAt,
	}
}
