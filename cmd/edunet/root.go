package main

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/ambiyansyah-risyal/edunet"
	"github.com/ambiyansyah-risyal/edunet/config"
)

// app carries what every subcommand needs once configuration is loaded.
type app struct {
	cfgFile string
	verbose bool

	cfg     *config.Config
	metrics *edunet.MetricsCollector
	monitor *edunet.NetworkMonitor
	client  *edunet.Client
	stdout  io.Writer
	stderr  io.Writer
}

func newRootCmd(stdout, stderr io.Writer) *cobra.Command {
	a := &app{stdout: stdout, stderr: stderr}

	root := &cobra.Command{
		Use:   "edunet",
		Short: "Call the e-learning API through the edunet network layer",
		Long: `edunet sends requests to the e-learning backend with the same retry,
connectivity and caching rules the apps use. Configuration is read from
edunet.yaml and EDUNET_* environment variables.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.init(cmd.Context())
		},
	}
	root.PersistentFlags().StringVar(&a.cfgFile, "config", config.DefaultConfigFile, "path to the YAML configuration file")
	root.PersistentFlags().BoolVarP(&a.verbose, "verbose", "v", false, "print retry progress and error diagnostics")

	for _, verb := range []string{"get", "post", "put", "patch", "delete"} {
		root.AddCommand(newRequestCmd(a, verb))
	}
	root.AddCommand(newFetchCmd(a))
	root.AddCommand(newWatchCmd(a))
	root.AddCommand(newVersionCmd(a))
	return root
}

// init loads configuration and builds the shared client and monitor.
func (a *app) init(ctx context.Context) error {
	cfg, err := config.LoadFrom(a.cfgFile)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	a.cfg = cfg
	a.metrics = edunet.NewMetricsCollector()

	logger := edunet.NewLogger(a.stderr, cfg.Logging.Level, cfg.Logging.Format)
	monitorOpts := []edunet.MonitorOption{
		edunet.WithMonitorLogger(logger),
		edunet.WithMonitorMetrics(a.metrics),
	}
	if cfg.Network.ProbeAddress != "" {
		monitorOpts = append(monitorOpts, edunet.WithProbe(edunet.DialProbe(cfg.Network.ProbeAddress, cfg.Network.ProbeTimeout)))
	}
	a.monitor = edunet.NewNetworkMonitor(true, monitorOpts...)
	a.monitor.CheckNow(ctx)

	opts := edunet.OptionsFromConfig(cfg, a.stderr)
	opts = append(opts,
		edunet.WithNetworkStatus(a.monitor),
		edunet.WithMetricsCollector(a.metrics),
	)
	if a.verbose {
		opts = append(opts, edunet.WithRetryNotifier(func(e edunet.RetryEvent) {
			fmt.Fprintf(a.stderr, "retrying %s %s (%d/%d) in %v: %s\n",
				e.Method, e.URL, e.Attempt, e.MaxRetries, e.Delay, edunet.Message(e.Err))
		}))
	}

	a.client = edunet.New(opts...)
	if !a.client.IsValid() {
		return a.client.ValidationError()
	}
	return nil
}

// report prints the display message for err and, when verbose, its
// diagnostics. It returns err so callers can exit non-zero.
func (a *app) report(err error) error {
	fmt.Fprintln(a.stderr, edunet.Message(err))
	if a.verbose {
		var ce *edunet.ClientError
		if errors.As(err, &ce) {
			fmt.Fprint(a.stderr, ce.DebugInfo())
		}
	}
	return err
}

func newVersionCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		PersistentPreRunE: func(*cobra.Command, []string) error {
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			_, err := fmt.Fprintln(a.stdout, edunet.GetVersion())
			return err
		},
	}
}
