package daemon

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/charlie0129/battsense/pkg/config"
	"github.com/charlie0129/battsense/pkg/dataset"
	"github.com/charlie0129/battsense/pkg/events"
	"github.com/charlie0129/battsense/pkg/hostbattery"
	"github.com/charlie0129/battsense/pkg/prediction"
	"github.com/charlie0129/battsense/pkg/report"
	"github.com/charlie0129/battsense/pkg/soh"
	"github.com/charlie0129/battsense/pkg/version"
)

// maxUploadSize caps uploaded datasets at 32 MiB.
const maxUploadSize = 32 << 20

var errNoPrediction = errors.New("no prediction yet, upload a dataset first")

func getVersion(c *gin.Context) {
	c.IndentedJSON(http.StatusOK, gin.H{
		"version":   version.Version,
		"gitCommit": version.GitCommit,
	})
}

func getConfig(c *gin.Context) {
	fc, err := config.NewRawFileConfigFromConfig(conf)
	if err != nil {
		_ = c.AbortWithError(http.StatusInternalServerError, err)
		return
	}
	c.IndentedJSON(http.StatusOK, fc)
}

func getClassify(c *gin.Context) {
	ratio, err := strconv.ParseFloat(c.Query("ratio"), 64)
	if err != nil {
		abortWithError(c, http.StatusBadRequest, fmt.Errorf("invalid ratio %q", c.Query("ratio")))
		return
	}

	status := soh.Classify(ratio)
	classificationsTotal.WithLabelValues(status.Category.String()).Inc()
	c.IndentedJSON(http.StatusOK, status)
}

func postDisplayMetrics(c *gin.Context) {
	var r soh.PredictionResult
	if err := c.BindJSON(&r); err != nil {
		abortWithError(c, http.StatusBadRequest, err)
		return
	}
	if r.CycleCount > soh.MaxCycleCount {
		abortWithError(c, http.StatusBadRequest, fmt.Errorf("cycleCount %d exceeds the maximum of %d", r.CycleCount, soh.MaxCycleCount))
		return
	}

	src, err := sourceFromQuery(c)
	if err != nil {
		abortWithError(c, http.StatusBadRequest, err)
		return
	}

	c.IndentedJSON(http.StatusOK, soh.ComputeDisplayMetrics(r, src))
}

func getModels(c *gin.Context) {
	c.IndentedJSON(http.StatusOK, prediction.Models())
}

func getModel(c *gin.Context) {
	m, err := prediction.Lookup(conf.Model())
	if err != nil {
		abortWithError(c, http.StatusInternalServerError, err)
		return
	}
	c.IndentedJSON(http.StatusOK, m)
}

func setModel(c *gin.Context) {
	var id string
	if err := c.BindJSON(&id); err != nil {
		abortWithError(c, http.StatusBadRequest, err)
		return
	}

	m, err := prediction.Lookup(id)
	if err != nil {
		abortWithError(c, http.StatusBadRequest, err)
		return
	}

	conf.SetModel(m.ID)
	if err := conf.Save(); err != nil {
		logrus.Errorf("saveConfig failed: %v", err)
		abortWithError(c, http.StatusInternalServerError, err)
		return
	}

	logrus.Infof("set prediction model to %s", m.ID)

	c.IndentedJSON(http.StatusOK, m)
}

// postPrediction takes the raw CSV as the request body. The uploaded file name
// is passed in the filename query parameter.
func postPrediction(c *gin.Context) {
	name := c.Query("filename")
	if err := dataset.ValidateFile(name, c.ContentType()); err != nil {
		abortWithError(c, http.StatusBadRequest, err)
		return
	}

	body := http.MaxBytesReader(c.Writer, c.Request.Body, maxUploadSize)
	ds, err := dataset.Parse(body)
	if err != nil {
		code := http.StatusBadRequest
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			code = http.StatusRequestEntityTooLarge
		}
		abortWithError(c, code, err)
		return
	}
	ds.FileName = name
	_, _ = io.Copy(io.Discard, body)

	r, err := runPrediction(c.Request.Context(), ds, events.TriggerUpload)
	if err != nil {
		code := http.StatusInternalServerError
		if errors.Is(err, prediction.ErrAPIKeyMissing) || errors.Is(err, prediction.ErrUnknownModel) {
			code = http.StatusBadRequest
		}
		abortWithError(c, code, err)
		return
	}

	c.IndentedJSON(http.StatusCreated, r)
}

func getLatestPrediction(c *gin.Context) {
	r, _, _, ok := session.Latest()
	if !ok {
		abortWithError(c, http.StatusNotFound, errNoPrediction)
		return
	}
	c.IndentedJSON(http.StatusOK, r)
}

func getDashboard(c *gin.Context) {
	r, ds, updatedAt, ok := session.Latest()
	if !ok {
		abortWithError(c, http.StatusNotFound, errNoPrediction)
		return
	}

	src, err := sourceFromQuery(c)
	if err != nil {
		abortWithError(c, http.StatusBadRequest, err)
		return
	}

	c.IndentedJSON(http.StatusOK, report.NewDashboard(r, ds, updatedAt, src))
}

func getReport(c *gin.Context) {
	r, ds, _, ok := session.Latest()
	if !ok {
		abortWithError(c, http.StatusNotFound, errNoPrediction)
		return
	}

	c.IndentedJSON(http.StatusOK, report.Assemble(r, ds, time.Now()))
}

func getHostBattery(c *gin.Context) {
	reading, err := hostbattery.Read()
	if err != nil {
		code := http.StatusInternalServerError
		if errors.Is(err, hostbattery.ErrNoBattery) {
			code = http.StatusNotFound
		}
		abortWithError(c, code, err)
		return
	}

	classificationsTotal.WithLabelValues(reading.Status.Category.String()).Inc()
	c.IndentedJSON(http.StatusOK, reading)
}

// analysisSchedule is the state reported by the analysis schedule endpoints.
type analysisSchedule struct {
	Enabled bool       `json:"enabled"`
	Cron    string     `json:"cron"`
	Dataset string     `json:"dataset"`
	NextRun *time.Time `json:"nextRun,omitempty"`
}

func currentAnalysisSchedule() analysisSchedule {
	next, running := analysisScheduler.Status()
	s := analysisSchedule{
		Enabled: running,
		Cron:    conf.AnalysisCron(),
		Dataset: conf.AnalysisDataset(),
	}
	if running && !next.IsZero() {
		s.NextRun = &next
	}
	return s
}

func getAnalysisSchedule(c *gin.Context) {
	c.IndentedJSON(http.StatusOK, currentAnalysisSchedule())
}

func skipAnalysis(c *gin.Context) {
	next, err := analysisScheduler.Skip()
	if err != nil {
		abortWithError(c, http.StatusConflict, err)
		return
	}

	logrus.Infof("skipped next scheduled analysis, next run at %s", next.Format(time.DateTime))

	c.IndentedJSON(http.StatusOK, currentAnalysisSchedule())
}

// getEvents streams hub events to the client as server-sent events until the
// client goes away.
func getEvents(c *gin.Context) {
	ch := hub.Subscribe()
	defer func() {
		if n := hub.Unsubscribe(ch); n > 0 {
			logrus.Warnf("event stream closed, client missed %d events", n)
		}
	}()

	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")

	ctx := c.Request.Context()
	c.Stream(func(w io.Writer) bool {
		select {
		case <-ctx.Done():
			return false
		case ev, ok := <-ch:
			if !ok {
				return false
			}
			c.SSEvent(ev.Name, string(ev.Data))
			return true
		}
	})
}

// sourceFromQuery returns a seeded source when the seed query parameter is
// present, and nil otherwise.
func sourceFromQuery(c *gin.Context) (soh.Source, error) {
	s, ok := c.GetQuery("seed")
	if !ok {
		return nil, nil
	}
	seed, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid seed %q", s)
	}
	return soh.NewSource(seed), nil
}
