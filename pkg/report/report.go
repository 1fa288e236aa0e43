// Package report assembles the exported battery health report and the
// dashboard view from a prediction and its derived metrics.
package report

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/charlie0129/battsense/pkg/dataset"
	"github.com/charlie0129/battsense/pkg/prediction"
	"github.com/charlie0129/battsense/pkg/soh"
)

const Title = "Battery Health Report"

var disclaimer = []string{
	"This report is generated by BattSense for educational and demonstration purposes.",
	"Predictions are based on machine learning models and should not be used for critical decisions.",
}

var summaries = map[soh.Category]string{
	soh.Excellent: "Battery is in excellent condition with minimal degradation. Continue regular monitoring and maintain current usage patterns.",
	soh.Good:      "Battery shows some degradation but is still in good working condition. Regular monitoring is advised to track degradation trends.",
	soh.Moderate:  "Battery shows noticeable degradation that may start to affect runtime. Monitor more frequently and plan for maintenance.",
	soh.Poor:      "Battery is significantly degraded and may affect performance. Consider scheduling maintenance or planning for replacement.",
	soh.Critical:  "Battery is critically degraded and likely needs replacement soon. Performance is significantly affected.",
}

// Row is one label/value line of a report section.
type Row struct {
	Label string `json:"label"`
	Value string `json:"value"`
}

// Report is the content of an exported health report. Layout is left to the
// renderer.
type Report struct {
	Title       string     `json:"title"`
	GeneratedAt time.Time  `json:"generatedAt"`
	Battery     []Row      `json:"battery"`
	Inputs      []Row      `json:"inputs,omitempty"`
	SoHPercent  int        `json:"sohPercent"`
	Status      soh.Status `json:"status"`
	Metrics     []Row      `json:"metrics"`
	Summary     string     `json:"summary"`
	PoweredBy   string     `json:"poweredBy,omitempty"`
	Disclaimer  []string   `json:"disclaimer"`
}

// Summary returns the analysis summary for a category.
func Summary(c soh.Category) string {
	if s, ok := summaries[c]; ok {
		return s
	}
	return summaries[soh.Critical]
}

// Assemble builds the report for r. ds may be nil when the dataset summary is
// not available.
func Assemble(r soh.PredictionResult, ds *dataset.Summary, now time.Time) *Report {
	status := r.Status()

	fileName := "N/A"
	if ds != nil && ds.FileName != "" {
		fileName = ds.FileName
	}

	rep := &Report{
		Title:       Title,
		GeneratedAt: now,
		Battery: []Row{
			{"Battery ID", r.BatteryID},
			{"Dataset", fileName},
			{"Model Used", prediction.DisplayName(r.Model)},
			{"Analysis Date", now.Format("January 2, 2006")},
		},
		SoHPercent: soh.Percent(r.PredictedSoH),
		Status:     status,
		Metrics: []Row{
			{"Model Confidence", fmt.Sprintf("%d%%", soh.Percent(r.Confidence))},
			{"Cycle Count", fmt.Sprintf("%d cycles", r.CycleCount)},
			{"Degradation Rate", fmt.Sprintf("%g%% per 100 cycles", r.DegradationRate)},
			{"Estimated Remaining Cycles", fmt.Sprintf("%d cycles", r.RemainingCycles)},
		},
		Summary:    Summary(status.Category),
		Disclaimer: disclaimer,
	}

	if ds != nil {
		rep.Inputs = []Row{
			{"Voltage", unit(ds.Voltage, "V")},
			{"Current", unit(ds.Current, "A")},
			{"Temperature", unit(ds.Temperature, "°C")},
			{"Capacity", unit(ds.Capacity, "Ah")},
		}
	}

	if strings.EqualFold(r.Model, prediction.ModelDeepSeek) {
		rep.PoweredBy = "Powered by DeepSeek AI"
	}

	return rep
}

func unit(v *float64, u string) string {
	if v == nil {
		return "N/A"
	}
	return fmt.Sprintf("%.2f %s", *v, u)
}

// Render writes r as plain text.
func (r *Report) Render(w io.Writer) error {
	b := &strings.Builder{}

	fmt.Fprintf(b, "%s\n%s\n", r.Title, strings.Repeat("=", len(r.Title)))
	fmt.Fprintf(b, "Generated: %s\n\n", r.GeneratedAt.Format("January 2, 2006 - 3:04 PM"))

	section(b, "Battery Information", r.Battery)
	if len(r.Inputs) > 0 {
		section(b, "Input Parameters", r.Inputs)
	}

	fmt.Fprintf(b, "Prediction Results\n")
	fmt.Fprintf(b, "  State of Health: %d%%\n", r.SoHPercent)
	fmt.Fprintf(b, "  Status: %s\n", r.Status.Category)
	for _, row := range r.Metrics {
		fmt.Fprintf(b, "  %-28s %s\n", row.Label+":", row.Value)
	}
	b.WriteString("\n")

	fmt.Fprintf(b, "Analysis Summary\n  %s\n\n", r.Summary)
	if r.PoweredBy != "" {
		fmt.Fprintf(b, "%s\n\n", r.PoweredBy)
	}
	for _, line := range r.Disclaimer {
		fmt.Fprintln(b, line)
	}

	_, err := io.WriteString(w, b.String())
	return err
}

func section(b *strings.Builder, title string, rows []Row) {
	fmt.Fprintf(b, "%s\n", title)
	for _, row := range rows {
		fmt.Fprintf(b, "  %-28s %s\n", row.Label+":", row.Value)
	}
	b.WriteString("\n")
}
