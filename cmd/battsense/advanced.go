package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/charlie0129/battsense/pkg/client"
	"github.com/charlie0129/battsense/pkg/events"
	"github.com/charlie0129/battsense/pkg/hostbattery"
)

func NewModelsCommand() *cobra.Command {
	return &cobra.Command{
		Use:     "models",
		Short:   "List available prediction models",
		GroupID: gAdvanced,
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			models, err := apiClient.GetModels()
			if err != nil {
				return err
			}
			current, err := apiClient.GetModel()
			if err != nil {
				return err
			}

			for _, m := range models {
				marker := " "
				if m.ID == current.ID {
					marker = "*"
				}
				cmd.Printf("%s %s (%s)\n", marker, bold("%s", m.Name), m.ID)
				cmd.Printf("    Accuracy: %g%%  Speed: %s\n", m.Accuracy, m.Speed)
				cmd.Printf("    %s\n", m.Description)
				if len(m.Pros) > 0 {
					cmd.Printf("    Pros: %s\n", strings.Join(m.Pros, ", "))
				}
				if len(m.Cons) > 0 {
					cmd.Printf("    Cons: %s\n", strings.Join(m.Cons, ", "))
				}
			}
			return nil
		},
	}
}

func NewModelCommand() *cobra.Command {
	return &cobra.Command{
		Use:     "model [id]",
		Short:   "Show or select the prediction model",
		GroupID: gAdvanced,
		Long: `Show or select the prediction model.

Without an argument the selected model is shown. Run "battsense models" to list the available ids.`,
		Example: `  battsense model LSTM`,
		Args:    cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 0 {
				m, err := apiClient.GetModel()
				if err != nil {
					return err
				}
				cmd.Printf("%s (%s)\n", bold("%s", m.Name), m.ID)
				return nil
			}

			m, err := apiClient.SetModel(args[0])
			if err != nil {
				return fmt.Errorf("failed to set model: %w", err)
			}
			logrus.Infof("successfully selected model %s", m.Name)
			return nil
		},
	}
}

func NewHostBatteryCommand() *cobra.Command {
	var local bool

	cmd := &cobra.Command{
		Use:     "host-battery",
		Short:   "Show the health of this machine's battery",
		GroupID: gAdvanced,
		Long: `Show the health of this machine's battery, classified like a prediction.

Health is the ratio of full charge capacity to design capacity.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			var (
				r   *hostbattery.Reading
				err error
			)
			if local {
				r, err = hostbattery.Read()
			} else {
				r, err = apiClient.GetHostBattery()
			}
			if err != nil {
				return err
			}

			cmd.Println(bold("Battery %d:", r.Index))
			cmd.Printf("  Full capacity: %s\n", bold("%.0f mWh", r.FullMWh))
			cmd.Printf("  Design capacity: %s\n", bold("%.0f mWh", r.DesignMWh))
			cmd.Printf("  Health: %s %s (%s)\n", bold("%d%%", r.Percent), bar(float64(r.Percent)), categoryText(r.Status.Category))
			return nil
		},
	}

	cmd.Flags().BoolVar(&local, "local", false, "read the battery directly instead of asking the daemon")

	return cmd
}

func NewScheduleCommand() *cobra.Command {
	var skip bool

	cmd := &cobra.Command{
		Use:     "schedule",
		Aliases: []string{"sch", "sched"},
		Short:   "Show the scheduled analysis",
		GroupID: gAdvanced,
		Long: `Show the scheduled analysis.

The daemon re-analyzes a dataset on a cron schedule when both analysisCron and
analysisDataset are set in its config. Edit the config and send SIGHUP to the
daemon to change it.`,
		Example: `  battsense schedule
  battsense schedule --skip`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			var (
				s   *client.AnalysisSchedule
				err error
			)
			if skip {
				s, err = apiClient.SkipAnalysis()
			} else {
				s, err = apiClient.GetAnalysisSchedule()
			}
			if err != nil {
				return err
			}
			if skip {
				logrus.Info("skipped the next scheduled analysis")
			}

			cmd.Printf("Enabled: %s\n", bool2Text(s.Enabled))
			if s.Cron != "" {
				cmd.Printf("Cron: %s\n", s.Cron)
			}
			if s.Dataset != "" {
				cmd.Printf("Dataset: %s\n", s.Dataset)
			}
			if s.NextRun != nil {
				cmd.Printf("Next run: %s (in %s)\n", s.NextRun.Local().Format("January 2, 2006 - 3:04 PM"),
					time.Until(*s.NextRun).Round(time.Minute))
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&skip, "skip", false, "skip the next scheduled run")

	return cmd
}

func NewWatchCommand() *cobra.Command {
	return &cobra.Command{
		Use:     "watch",
		Short:   "Stream prediction events from the daemon",
		GroupID: gAdvanced,
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			ch, err := apiClient.Events(ctx)
			if err != nil {
				return err
			}

			for ev := range ch {
				switch ev.Name {
				case events.PredictionCompleted:
					p, err := events.DecodeAs[events.PredictionCompletedEvent](ev)
					if err != nil {
						logrus.Warnf("failed to decode %s event: %v", ev.Name, err)
						continue
					}
					cmd.Printf("%s %s: %s %s via %s (%s)\n",
						time.Unix(p.Ts, 0).Format(time.Kitchen), p.BatteryID,
						bold("%.0f%%", p.PredictedSoH*100), p.Category, p.Model, p.Trigger)
				case events.AnalysisFailed:
					p, err := events.DecodeAs[events.AnalysisFailedEvent](ev)
					if err != nil {
						logrus.Warnf("failed to decode %s event: %v", ev.Name, err)
						continue
					}
					logrus.WithField("dataset", p.Dataset).Errorf("scheduled analysis failed: %s", p.Error)
				default:
					logrus.Debugf("ignoring event %s", ev.Name)
				}
			}
			return nil
		},
	}
}
