package main

import (
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"

	"github.com/fatih/color"

	"github.com/charlie0129/battsense/pkg/prediction"
	"github.com/charlie0129/battsense/pkg/report"
	"github.com/charlie0129/battsense/pkg/soh"
)

// barCells is the width of text-mode bars.
const barCells = 20

var categoryColors = map[soh.Category]*color.Color{
	soh.Excellent: color.New(color.Bold, color.FgGreen),
	soh.Good:      color.New(color.Bold, color.FgHiGreen),
	soh.Moderate:  color.New(color.Bold, color.FgYellow),
	soh.Poor:      color.New(color.Bold, color.FgHiRed),
	soh.Critical:  color.New(color.Bold, color.FgRed),
}

func parseRatioArg(args []string) (float64, error) {
	if len(args) != 1 {
		return 0, fmt.Errorf("invalid number of arguments")
	}

	s := strings.TrimSpace(args[0])
	// "78%" is accepted as well as 0.78.
	if p, ok := strings.CutSuffix(s, "%"); ok {
		v, err := strconv.ParseFloat(p, 64)
		if err != nil {
			return 0, fmt.Errorf("invalid ratio: %v", err)
		}
		return v / 100, nil
	}

	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid ratio: %v", err)
	}
	return v, nil
}

func bool2Text(b bool) string {
	if b {
		return color.New(color.Bold, color.FgGreen).Sprint("✔")
	}
	return color.New(color.Bold, color.FgRed).Sprint("✘")
}

func bold(format string, a ...interface{}) string {
	return color.New(color.Bold).Sprintf(format, a...)
}

func categoryText(c soh.Category) string {
	if cc, ok := categoryColors[c]; ok {
		return cc.Sprint(c.String())
	}
	return c.String()
}

// bar draws percent (0-100) as a fixed-width text bar.
func bar(percent float64) string {
	if math.IsNaN(percent) || percent < 0 {
		percent = 0
	}
	filled := int(math.Round(math.Min(percent, 100) / 100 * barCells))
	return "[" + strings.Repeat("#", filled) + strings.Repeat(".", barCells-filled) + "]"
}

func printStatus(w io.Writer, ratio float64, s soh.Status) {
	fmt.Fprintf(w, "State of Health: %s\n", bold("%d%%", soh.Percent(ratio)))
	fmt.Fprintf(w, "Category: %s\n", categoryText(s.Category))
	fmt.Fprintf(w, "Color tag: %s\n", s.ColorTag)
	fmt.Fprintf(w, "Background tag: %s\n", s.BackgroundTag)
}

func printMetrics(w io.Writer, rate float64, m soh.DisplayMetrics) {
	fmt.Fprintf(w, "  SoH: %s %s\n", bold("%d%%", m.Percent), bar(float64(m.Percent)))
	fmt.Fprintf(w, "  Degradation: %s %s\n", bold("%g%% per 100 cycles", rate), bar(m.DegradationBarWidthPercent))
	if n := len(m.TrendPoints); n > 0 {
		first, last := m.TrendPoints[0], m.TrendPoints[n-1]
		fmt.Fprintf(w, "  Trend: %d points, cycle %d at %.1f%% to cycle %d at %.1f%%\n",
			n, first.Cycle, first.SoH*100, last.Cycle, last.SoH*100)
	} else {
		fmt.Fprintln(w, "  Trend: no cycles")
	}
}

func printPrediction(w io.Writer, r soh.PredictionResult) {
	s := r.Status()
	fmt.Fprintf(w, "  Battery ID: %s\n", bold("%s", r.BatteryID))
	fmt.Fprintf(w, "  Model: %s\n", prediction.DisplayName(r.Model))
	fmt.Fprintf(w, "  State of Health: %s (%s)\n", bold("%d%%", soh.Percent(r.PredictedSoH)), categoryText(s.Category))
	fmt.Fprintf(w, "  Confidence: %s\n", bold("%d%%", soh.Percent(r.Confidence)))
	fmt.Fprintf(w, "  Cycle count: %s\n", bold("%d cycles", r.CycleCount))
	fmt.Fprintf(w, "  Remaining useful life: %s\n", bold("%d cycles", r.RemainingCycles))
}

func printDashboard(w io.Writer, d *report.Dashboard) {
	fmt.Fprintln(w, bold("Prediction:"))
	printPrediction(w, d.Prediction)
	fmt.Fprintf(w, "  Updated: %s\n", d.UpdatedAt.Local().Format("January 2, 2006 - 3:04 PM"))
	fmt.Fprintln(w)

	fmt.Fprintln(w, bold("Metrics:"))
	printMetrics(w, d.Prediction.DegradationRate, d.Metrics)

	if ds := d.Dataset; ds != nil {
		fmt.Fprintln(w)
		fmt.Fprintln(w, bold("Dataset:"))
		name := ds.FileName
		if name == "" {
			name = "N/A"
		}
		fmt.Fprintf(w, "  File: %s\n", name)
		fmt.Fprintf(w, "  Rows: %d\n", ds.Rows)
		fmt.Fprintf(w, "  Cycles: %d\n", ds.CycleCount)
	}
}
