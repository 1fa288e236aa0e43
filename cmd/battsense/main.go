package main

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/charlie0129/battsense/pkg/client"
	"github.com/charlie0129/battsense/pkg/version"
)

var (
	logLevel       = "info"
	unixSocketPath = "/var/run/battsense.sock"
	configPath     = "/etc/battsense.json"
)

var (
	gBasic        = "Basic:"
	gAdvanced     = "Advanced:"
	commandGroups = []string{
		gBasic,
		gAdvanced,
	}
)

var apiClient = client.NewClient(unixSocketPath)

func setupLogger() error {
	level, err := logrus.ParseLevel(logLevel)
	if err != nil {
		return fmt.Errorf("failed to parse log level: %v", err)
	}
	logrus.SetLevel(level)
	logrus.SetFormatter(&logrus.TextFormatter{})
	if term.IsTerminal(int(os.Stderr.Fd())) {
		logrus.SetFormatter(&logrus.TextFormatter{
			FullTimestamp:   true,
			TimestampFormat: time.Kitchen,
		})
	}

	return nil
}

func handleCmdError(err error) {
	if errors.Is(err, client.ErrDaemonNotRunning) {
		fmt.Fprintln(os.Stderr, "\nError: battsense daemon is not running")
		fmt.Fprintln(os.Stderr, "Start it with 'battsense daemon' and try again.")
	} else if errors.Is(err, client.ErrPermissionDenied) {
		fmt.Fprintln(os.Stderr, "\nError: Permission Denied")
		fmt.Fprintln(os.Stderr, "  - Try running the command again with 'sudo'")
		fmt.Fprintln(os.Stderr, "  - Or start the daemon with '--always-allow-non-root-access' to grant permissions to your user")
	}
}

func main() {
	cmd := NewCommand()
	if err := cmd.Execute(); err != nil {
		handleCmdError(err)
		os.Exit(1)
	}
}

func NewCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "battsense",
		Short: "battsense predicts battery State of Health from cycling data",
		Long: `battsense predicts battery State of Health (SoH) from cycling data.

Upload a CSV dataset to the daemon, then inspect the dashboard or export a
health report. Classification and display metrics can also be computed
locally without a daemon.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			err := setupLogger()
			if err != nil {
				return err
			}

			apiClient = client.NewClient(unixSocketPath)

			if !needsDaemon(cmd) {
				return nil
			}

			if v, err := apiClient.GetVersion(); err == nil {
				if v.Version != version.Version {
					logrus.WithFields(logrus.Fields{
						"clientVersion": version.Version,
						"daemonVersion": v.Version,
					}).Warn("Version mismatch between client and daemon. battsense may not work as expected.")
				}
			} else if errors.Is(err, client.ErrNotFound) {
				logrus.Error("battsense daemon is too old to report its version.")
			}

			return nil
		},
	}

	globalFlags := cmd.PersistentFlags()
	globalFlags.StringVarP(&logLevel, "log-level", "l", "info", "log level (trace, debug, info, warn, error, fatal, panic)")
	globalFlags.StringVar(&configPath, "config", configPath, "config file path (.json or .yaml)")
	globalFlags.StringVar(&unixSocketPath, "daemon-socket", unixSocketPath, "battsense daemon unix socket path")

	for _, i := range commandGroups {
		cmd.AddGroup(&cobra.Group{
			ID:    i,
			Title: i,
		})
	}

	cmd.AddCommand(
		NewDaemonCommand(),
		NewVersionCommand(),
		NewClassifyCommand(),
		NewMetricsCommand(),
		NewUploadCommand(),
		NewDashboardCommand(),
		NewReportCommand(),
		NewModelsCommand(),
		NewModelCommand(),
		NewHostBatteryCommand(),
		NewScheduleCommand(),
		NewWatchCommand(),
		NewInstallCommand(),
		NewUninstallCommand(),
	)

	return cmd
}

// localAnnotation marks commands that never talk to the daemon.
const localAnnotation = "battsense/local"

func needsDaemon(cmd *cobra.Command) bool {
	_, local := cmd.Annotations[localAnnotation]
	return !local
}
