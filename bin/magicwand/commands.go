package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/palantir/stacktrace"
	"github.com/spf13/cobra"
	"github.com/twosixlabs/magicwand/pkg/calibrate"
	"github.com/twosixlabs/magicwand/pkg/cerrors"
	"github.com/twosixlabs/magicwand/pkg/flows"
	"github.com/twosixlabs/magicwand/pkg/history"
	"github.com/twosixlabs/magicwand/pkg/log"
	"github.com/twosixlabs/magicwand/pkg/project"
	"github.com/twosixlabs/magicwand/pkg/ratio"
	"github.com/twosixlabs/magicwand/pkg/runner"
	"github.com/twosixlabs/magicwand/pkg/telemetry"
)

var verbose bool

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "magicwand",
		Short:         "Generate and calibrate labeled DoS datasets",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			log.SetVerbose(verbose)
		},
	}
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
	rootCmd.AddCommand(newInitCmd(), newRunCmd(), newCalibrateCmd(), newConvertCmd(), newHistoryCmd(), newVersionCmd())
	return rootCmd
}

func newInitCmd() *cobra.Command {
	var folder string
	cmd := &cobra.Command{
		Use:                   "init",
		Short:                 "Create a magicwand project",
		Long:                  "Create a project folder holding the default components, run configurations and data folder",
		Args:                  cobra.MaximumNArgs(0),
		Example:               "magicwand init --project my_project",
		DisableFlagsInUseLine: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := project.Init(folder); err != nil {
				return err
			}
			log.Infof("[Status]: project created in %s", folder)
			return nil
		},
	}
	cmd.Flags().StringVarP(&folder, "project", "p", "", "name of the project folder")
	cmd.MarkFlagRequired("project")
	return cmd
}

func newRunCmd() *cobra.Command {
	var configPath, dataVersion string
	var count int
	cmd := &cobra.Command{
		Use:                   "run",
		Short:                 "Perform runs of a run configuration",
		Args:                  cobra.MaximumNArgs(0),
		Example:               "magicwand run --config configs/apachekill-only.json --data_version test_runs --count 2",
		DisableFlagsInUseLine: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if count < 1 {
				return cerrors.Config{Path: configPath, Reason: "count must be at least 1"}
			}
			s, err := newSession(cmd.Context(), false, dataVersion)
			if err != nil {
				return err
			}
			defer s.close()

			dirs, err := s.orchestrator.Execute(s.ctx, s.settings.ConfigPath(configPath), dataVersion, count)
			for _, dir := range dirs {
				log.Infof("[Status]: run archived in %s", dir)
			}
			return err
		},
	}
	cmd.Flags().StringVarP(&configPath, "config", "c", "", "path or name of the run configuration")
	cmd.Flags().StringVarP(&dataVersion, "data_version", "d", "", "data folder the runs are archived in")
	cmd.Flags().IntVarP(&count, "count", "n", 1, "number of runs to perform")
	cmd.MarkFlagRequired("config")
	cmd.MarkFlagRequired("data_version")
	return cmd
}

func newCalibrateCmd() *cobra.Command {
	var attack, ratioPath string
	cmd := &cobra.Command{
		Use:                   "calibrate",
		Short:                 "Tune an attack until it measurably degrades the sut",
		Long:                  "Alternate baseline and attack runs, adjusting the attack, client and sut settings until the ratio checks pass",
		Args:                  cobra.MaximumNArgs(0),
		Example:               "magicwand calibrate --attack apachekill",
		DisableFlagsInUseLine: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			checks, err := loadChecks(attack, ratioPath)
			if err != nil {
				return err
			}
			s, err := newSession(cmd.Context(), true, calibrate.DataVersion)
			if err != nil {
				return err
			}
			defer s.close()

			store, err := history.Open(s.dataDir)
			if err != nil {
				return err
			}
			defer store.Close()

			c := calibrate.New(attack, s.orchestrator.Store, &calibrate.OrchestratorRunner{
				Orchestrator: s.orchestrator,
				Attack:       attack,
				DataVersion:  calibrate.DataVersion,
			}, checks)
			c.BaselineConfig = s.settings.ConfigPath(calibrate.BaselineConfig)
			c.AttackConfig = s.settings.ConfigPath(calibrate.AttackConfig(attack))
			c.History = store
			c.Metrics = s.metrics

			report, err := c.Calibrate(s.ctx)
			log.InfoWithValues("[Calibrate]: session finished", map[string]interface{}{
				"Session":  report.SessionID,
				"State":    string(report.State),
				"Attempts": report.Attempts,
			})
			return err
		},
	}
	cmd.Flags().StringVarP(&attack, "attack", "a", "", "attack to calibrate")
	cmd.Flags().StringVarP(&ratioPath, "ratio", "r", "", "YAML file overriding the built in ratio checks")
	cmd.MarkFlagRequired("attack")
	return cmd
}

func newConvertCmd() *cobra.Command {
	var pcap, output, image, docker string
	var force bool
	cmd := &cobra.Command{
		Use:                   "convert",
		Short:                 "Convert a pcap into a CIC flow table",
		Args:                  cobra.MaximumNArgs(0),
		Example:               "magicwand convert --pcap data_runs/test/run/tcpdump.pcap -o flows.csv -f",
		DisableFlagsInUseLine: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			out, err := flows.Convert(cmd.Context(), flows.NewDockerConverter(docker, image), pcap, output, force)
			if err != nil {
				return err
			}
			log.Infof("[Status]: flow table written to %s", out)
			return nil
		},
	}
	cmd.Flags().StringVarP(&pcap, "pcap", "p", "", "pcap file to convert")
	cmd.Flags().StringVarP(&output, "output", "o", flows.DefaultOutput, "output csv, bare names are placed next to the pcap")
	cmd.Flags().BoolVarP(&force, "force", "f", false, "overwrite an existing output file")
	cmd.Flags().StringVar(&image, "image", "twosixlabsmagicwand/mw-cic-converter", "converter container image")
	cmd.Flags().StringVar(&docker, "docker", "docker", "docker binary")
	cmd.MarkFlagRequired("pcap")
	return cmd
}

func newHistoryCmd() *cobra.Command {
	var attack string
	cmd := &cobra.Command{
		Use:                   "history",
		Short:                 "List recorded calibration iterations",
		Args:                  cobra.MaximumNArgs(0),
		Example:               "magicwand history --attack apachekill",
		DisableFlagsInUseLine: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			settings, err := loadSettings()
			if err != nil {
				return err
			}
			store, err := history.Open(filepath.Join(settings.DataDir, calibrate.DataVersion))
			if err != nil {
				return err
			}
			defer store.Close()
			return printHistory(store, attack)
		},
	}
	cmd.Flags().StringVarP(&attack, "attack", "a", "", "only list iterations of this attack")
	return cmd
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the magicwand version",
		Args:  cobra.MaximumNArgs(0),
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintln(cmd.OutOrStdout(), runner.Version)
		},
	}
}

func loadChecks(attack, ratioPath string) (ratio.CheckSet, error) {
	if ratioPath != "" {
		set, err := ratio.LoadChecks(ratioPath)
		if err != nil {
			return set, err
		}
		if set.Attack != "" && set.Attack != attack {
			return set, cerrors.UnsupportedAttack{Attack: attack, Reason: "checks in " + ratioPath + " are defined for '" + set.Attack + "'"}
		}
		return set, nil
	}
	return ratio.ChecksFor(attack)
}

func loadSettings() (*project.Settings, error) {
	cwd, err := os.Getwd()
	if err != nil {
		return nil, err
	}
	return project.LoadSettings(cwd)
}

func printHistory(store *history.Store, attack string) error {
	attacks := []string{attack}
	if attack == "" {
		var err error
		if attacks, err = store.Attacks(); err != nil {
			return err
		}
	}
	for _, a := range attacks {
		items, err := store.List(a)
		if err != nil {
			return err
		}
		if len(items) == 0 {
			log.Infof("[Status]: no calibration iterations recorded for %s", a)
			continue
		}
		for _, it := range items {
			fields := map[string]interface{}{
				"Attack":      it.Attack,
				"Session":     it.SessionID,
				"Attempt":     it.Attempt,
				"Time":        it.Timestamp.Format("2006-01-02 15:04:05"),
				"Verdict":     it.Verdict,
				"BaselineRTT": it.BaselineRTT.Mean,
				"AttackRTT":   it.AttackRTT.Mean,
			}
			if it.Suggestion != nil {
				fields["Suggestion"] = fmt.Sprintf("threads=%d clients=%d max_clients=%d",
					it.Suggestion.Threads, it.Suggestion.Clients, it.Suggestion.MaxClients)
			}
			log.InfoWithValues("[History]: calibration iteration", fields)
		}
	}
	return nil
}

// session holds what run and calibrate share: the project settings, the
// orchestrator and the telemetry exporters
type session struct {
	ctx          context.Context
	settings     *project.Settings
	orchestrator *runner.Orchestrator
	metrics      *telemetry.Metrics
	dataDir      string
	shutdown     func(context.Context) error
}

func newSession(ctx context.Context, isCalibration bool, dataVersion string) (*session, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	settings, err := loadSettings()
	if err != nil {
		return nil, err
	}
	s := &session{ctx: ctx, settings: settings, dataDir: filepath.Join(settings.DataDir, dataVersion)}
	if err := os.MkdirAll(s.dataDir, 0755); err != nil {
		return nil, stacktrace.Propagate(err, "could not create data folder %s", s.dataDir)
	}

	if settings.OTelEndpoint != "" {
		if s.shutdown, err = telemetry.InitOTelSDK(ctx, isCalibration, settings.OTelEndpoint); err != nil {
			log.Warnf("[Status]: failed to initialize tracing, err: %v", err)
		}
	}
	if parent := os.Getenv(telemetry.TraceParent); parent != "" {
		if pctx, err := telemetry.GetTraceParentContext(parent); err == nil {
			s.ctx = pctx
		} else {
			log.Warnf("[Status]: ignoring malformed %s, err: %v", telemetry.TraceParent, err)
		}
	}

	if s.metrics, err = telemetry.NewMetrics(); err != nil {
		log.Warnf("[Status]: failed to initialize metrics, err: %v", err)
	}
	s.orchestrator = runner.New(settings)
	s.orchestrator.Metrics = s.metrics
	return s, nil
}

func (s *session) close() {
	if s.metrics != nil {
		path := filepath.Join(s.dataDir, telemetry.MetricsFile)
		if err := s.metrics.WriteTextfile(path); err != nil {
			log.Warnf("[Status]: failed to write %s, err: %v", path, err)
		}
		s.metrics.Shutdown(context.Background())
	}
	if s.shutdown != nil {
		if err := s.shutdown(context.Background()); err != nil {
			log.Warnf("[Status]: failed to flush traces, err: %v", err)
		}
	}
}
