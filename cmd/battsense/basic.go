package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/charlie0129/battsense/pkg/client"
	"github.com/charlie0129/battsense/pkg/prediction"
	"github.com/charlie0129/battsense/pkg/report"
	"github.com/charlie0129/battsense/pkg/soh"
	"github.com/charlie0129/battsense/pkg/version"
)

func NewVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:         "version",
		Short:       "Print version",
		Annotations: map[string]string{localAnnotation: ""},
		Run: func(cmd *cobra.Command, _ []string) {
			cmd.Printf("%s %s\n", version.Version, version.GitCommit)
		},
	}
}

func NewClassifyCommand() *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:     "classify [ratio]",
		Short:   "Classify a State of Health ratio",
		GroupID: gBasic,
		Long: `Classify a State of Health ratio into a health category.

The ratio is the remaining fraction of design capacity, e.g. 0.85 or 85%.`,
		Example: `  battsense classify 0.85
  battsense classify 62%`,
		Annotations: map[string]string{localAnnotation: ""},
		RunE: func(cmd *cobra.Command, args []string) error {
			ratio, err := parseRatioArg(args)
			if err != nil {
				return err
			}

			s := soh.Classify(ratio)
			if asJSON {
				return writeJSON(cmd.OutOrStdout(), s)
			}
			printStatus(cmd.OutOrStdout(), ratio, s)
			return nil
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "print the status as JSON")

	return cmd
}

func NewMetricsCommand() *cobra.Command {
	var (
		r      soh.PredictionResult
		seed   int64
		asJSON bool
	)

	cmd := &cobra.Command{
		Use:     "metrics",
		Short:   "Compute dashboard metrics for a prediction",
		GroupID: gBasic,
		Long: `Compute the SoH percentage, the degradation bar width and the
simulated SoH trend for a prediction, without a daemon.`,
		Example:     `  battsense metrics --soh 0.78 --cycles 150 --rate 0.15 --seed 1`,
		Annotations: map[string]string{localAnnotation: ""},
		Args:        cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if r.CycleCount < 0 || r.CycleCount > soh.MaxCycleCount {
				return fmt.Errorf("invalid cycles: %d is outside [0, %d]", r.CycleCount, soh.MaxCycleCount)
			}

			var src soh.Source
			if cmd.Flags().Changed("seed") {
				src = soh.NewSource(seed)
			}

			m := soh.ComputeDisplayMetrics(r, src)
			if asJSON {
				return writeJSON(cmd.OutOrStdout(), m)
			}
			cmd.Println(bold("Metrics:"))
			printMetrics(cmd.OutOrStdout(), r.DegradationRate, m)
			return nil
		},
	}

	f := cmd.Flags()
	f.Float64Var(&r.PredictedSoH, "soh", 0, "predicted SoH ratio")
	f.IntVar(&r.CycleCount, "cycles", 0, "cycle count")
	f.Float64Var(&r.DegradationRate, "rate", 0, "degradation rate in percent per 100 cycles")
	f.Int64Var(&seed, "seed", 0, "seed for the trend jitter (random when unset)")
	f.BoolVar(&asJSON, "json", false, "print the metrics as JSON")
	_ = cmd.MarkFlagRequired("soh")

	return cmd
}

func NewUploadCommand() *cobra.Command {
	return &cobra.Command{
		Use:     "upload [dataset.csv]",
		Short:   "Upload a dataset and predict its State of Health",
		GroupID: gBasic,
		Long: `Upload a CSV dataset to the daemon and predict its State of Health with the selected model.

The prediction replaces the current dashboard.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			logrus.Infof("analyzing %s, this may take a few seconds", args[0])

			r, err := apiClient.UploadDataset(args[0])
			if err != nil {
				return err
			}

			cmd.Println(bold("Prediction:"))
			printPrediction(cmd.OutOrStdout(), *r)
			return nil
		},
	}
}

type dashboardData struct {
	dashboard *report.Dashboard
	model     *prediction.Model
	schedule  *client.AnalysisSchedule
}

// fetchDashboardData gathers everything the dashboard command shows from the daemon.
func fetchDashboardData(c *client.Client, seed *int64) (*dashboardData, error) {
	var data dashboardData
	var g errgroup.Group

	g.Go(func() error {
		d, err := c.GetDashboard(seed)
		data.dashboard = d
		return err
	})
	g.Go(func() error {
		m, err := c.GetModel()
		data.model = m
		return err
	})
	g.Go(func() error {
		s, err := c.GetAnalysisSchedule()
		data.schedule = s
		return err
	})

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return &data, nil
}

func NewDashboardCommand() *cobra.Command {
	var (
		seed   int64
		asJSON bool
	)

	cmd := &cobra.Command{
		Use:     "dashboard",
		Aliases: []string{"status"},
		Short:   "Show the dashboard for the latest prediction",
		GroupID: gBasic,
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			var seedp *int64
			if cmd.Flags().Changed("seed") {
				seedp = &seed
			}

			data, err := fetchDashboardData(apiClient, seedp)
			if err != nil {
				return fmt.Errorf("failed to get dashboard: %w", err)
			}

			if asJSON {
				return writeJSON(cmd.OutOrStdout(), data.dashboard)
			}

			printDashboard(cmd.OutOrStdout(), data.dashboard)
			cmd.Println()
			cmd.Println(bold("Configuration:"))
			cmd.Printf("  Selected model: %s\n", bold("%s", data.model.Name))
			cmd.Printf("  Scheduled analysis: %s\n", bool2Text(data.schedule.Enabled))
			if data.schedule.Enabled && data.schedule.NextRun != nil {
				cmd.Printf("    Next run: %s\n", data.schedule.NextRun.Local().Format("January 2, 2006 - 3:04 PM"))
			}
			return nil
		},
	}

	f := cmd.Flags()
	f.Int64Var(&seed, "seed", 0, "seed for the trend jitter (random when unset)")
	f.BoolVar(&asJSON, "json", false, "print the dashboard as JSON")

	return cmd
}

func NewReportCommand() *cobra.Command {
	var (
		output string
		asJSON bool
	)

	cmd := &cobra.Command{
		Use:     "report",
		Short:   "Export a health report for the latest prediction",
		GroupID: gBasic,
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			r, err := apiClient.GetReport()
			if err != nil {
				return err
			}

			w := cmd.OutOrStdout()
			if output != "" {
				f, err := os.Create(output)
				if err != nil {
					return fmt.Errorf("failed to create report file: %w", err)
				}
				defer f.Close() //nolint:errcheck
				w = f
			}

			if asJSON {
				err = writeJSON(w, r)
			} else {
				err = r.Render(w)
			}
			if err != nil {
				return fmt.Errorf("failed to write report: %w", err)
			}

			if output != "" {
				logrus.Infof("report written to %s", output)
			}
			return nil
		},
	}

	f := cmd.Flags()
	f.StringVarP(&output, "output", "o", "", "write the report to a file instead of stdout")
	f.BoolVar(&asJSON, "json", false, "export the report as JSON")

	return cmd
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
