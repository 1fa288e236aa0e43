package client

import (
	"bytes"
	"encoding/json"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"time"

	pkgerrors "github.com/pkg/errors"

	"github.com/charlie0129/battsense/pkg/config"
	"github.com/charlie0129/battsense/pkg/hostbattery"
	"github.com/charlie0129/battsense/pkg/prediction"
	"github.com/charlie0129/battsense/pkg/report"
	"github.com/charlie0129/battsense/pkg/soh"
)

// VersionInfo is the daemon build information.
type VersionInfo struct {
	Version   string `json:"version"`
	GitCommit string `json:"gitCommit"`
}

// AnalysisSchedule is the state of the scheduled analysis.
type AnalysisSchedule struct {
	Enabled bool       `json:"enabled"`
	Cron    string     `json:"cron"`
	Dataset string     `json:"dataset"`
	NextRun *time.Time `json:"nextRun,omitempty"`
}

func (c *Client) GetVersion() (*VersionInfo, error) {
	var v VersionInfo
	if err := c.getJSON("/version", &v); err != nil {
		return nil, pkgerrors.Wrapf(err, "failed to get version")
	}
	return &v, nil
}

func (c *Client) GetConfig() (*config.RawFileConfig, error) {
	var conf config.RawFileConfig
	if err := c.getJSON("/config", &conf); err != nil {
		return nil, pkgerrors.Wrapf(err, "failed to get config")
	}
	return &conf, nil
}

func (c *Client) Classify(ratio float64) (*soh.Status, error) {
	var s soh.Status
	path := "/classify?ratio=" + strconv.FormatFloat(ratio, 'g', -1, 64)
	if err := c.getJSON(path, &s); err != nil {
		return nil, pkgerrors.Wrapf(err, "failed to classify %v", ratio)
	}
	return &s, nil
}

// DisplayMetrics asks the daemon to derive display metrics for r. A nil seed
// lets the daemon pick one.
func (c *Client) DisplayMetrics(r soh.PredictionResult, seed *int64) (*soh.DisplayMetrics, error) {
	payload, err := json.Marshal(r)
	if err != nil {
		return nil, err
	}

	ret, err := c.Post("/display-metrics"+seedQuery(seed), "application/json", bytes.NewReader(payload))
	if err != nil {
		return nil, pkgerrors.Wrapf(err, "failed to compute display metrics")
	}

	var m soh.DisplayMetrics
	if err := json.Unmarshal([]byte(ret), &m); err != nil {
		return nil, pkgerrors.Wrapf(err, "failed to unmarshal display metrics")
	}
	return &m, nil
}

func (c *Client) GetModels() ([]prediction.Model, error) {
	var models []prediction.Model
	if err := c.getJSON("/models", &models); err != nil {
		return nil, pkgerrors.Wrapf(err, "failed to get models")
	}
	return models, nil
}

func (c *Client) GetModel() (*prediction.Model, error) {
	var m prediction.Model
	if err := c.getJSON("/model", &m); err != nil {
		return nil, pkgerrors.Wrapf(err, "failed to get model")
	}
	return &m, nil
}

func (c *Client) SetModel(id string) (*prediction.Model, error) {
	payload, err := json.Marshal(id)
	if err != nil {
		return nil, err
	}

	ret, err := c.Put("/model", string(payload))
	if err != nil {
		return nil, pkgerrors.Wrapf(err, "failed to set model")
	}

	var m prediction.Model
	if err := json.Unmarshal([]byte(ret), &m); err != nil {
		return nil, pkgerrors.Wrapf(err, "failed to unmarshal model")
	}
	return &m, nil
}

// UploadDataset sends the CSV file at path to the daemon and returns the
// prediction made from it.
func (c *Client) UploadDataset(path string) (*soh.PredictionResult, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, pkgerrors.Wrapf(err, "failed to open dataset")
	}
	defer f.Close() //nolint:errcheck

	q := url.Values{"filename": []string{filepath.Base(path)}}
	ret, err := c.Post("/predictions?"+q.Encode(), "text/csv", f)
	if err != nil {
		return nil, pkgerrors.Wrapf(err, "failed to upload dataset")
	}

	var r soh.PredictionResult
	if err := json.Unmarshal([]byte(ret), &r); err != nil {
		return nil, pkgerrors.Wrapf(err, "failed to unmarshal prediction")
	}
	return &r, nil
}

func (c *Client) GetLatestPrediction() (*soh.PredictionResult, error) {
	var r soh.PredictionResult
	if err := c.getJSON("/predictions/latest", &r); err != nil {
		return nil, pkgerrors.Wrapf(err, "failed to get latest prediction")
	}
	return &r, nil
}

func (c *Client) GetDashboard(seed *int64) (*report.Dashboard, error) {
	var d report.Dashboard
	if err := c.getJSON("/dashboard"+seedQuery(seed), &d); err != nil {
		return nil, pkgerrors.Wrapf(err, "failed to get dashboard")
	}
	return &d, nil
}

func (c *Client) GetReport() (*report.Report, error) {
	var r report.Report
	if err := c.getJSON("/report", &r); err != nil {
		return nil, pkgerrors.Wrapf(err, "failed to get report")
	}
	return &r, nil
}

func (c *Client) GetHostBattery() (*hostbattery.Reading, error) {
	var r hostbattery.Reading
	if err := c.getJSON("/host-battery", &r); err != nil {
		return nil, pkgerrors.Wrapf(err, "failed to get host battery")
	}
	return &r, nil
}

func (c *Client) GetAnalysisSchedule() (*AnalysisSchedule, error) {
	var s AnalysisSchedule
	if err := c.getJSON("/analysis-schedule", &s); err != nil {
		return nil, pkgerrors.Wrapf(err, "failed to get analysis schedule")
	}
	return &s, nil
}

// SkipAnalysis skips the next scheduled analysis run.
func (c *Client) SkipAnalysis() (*AnalysisSchedule, error) {
	ret, err := c.Post("/analysis-schedule/skip", "", nil)
	if err != nil {
		return nil, pkgerrors.Wrapf(err, "failed to skip scheduled analysis")
	}

	var s AnalysisSchedule
	if err := json.Unmarshal([]byte(ret), &s); err != nil {
		return nil, pkgerrors.Wrapf(err, "failed to unmarshal analysis schedule")
	}
	return &s, nil
}

func (c *Client) getJSON(path string, v any) error {
	ret, err := c.Get(path)
	if err != nil {
		return err
	}
	if err := json.Unmarshal([]byte(ret), v); err != nil {
		return pkgerrors.Wrapf(err, "failed to unmarshal response")
	}
	return nil
}

func seedQuery(seed *int64) string {
	if seed == nil {
		return ""
	}
	return "?seed=" + strconv.FormatInt(*seed, 10)
}
