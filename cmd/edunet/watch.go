package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/ambiyansyah-risyal/edunet"
)

func newWatchCmd(a *app) *cobra.Command {
	var (
		interval    time.Duration
		probeAddr   string
		metricsAddr string
	)

	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Probe connectivity and report online/offline transitions",
		Long: `watch dials --probe (or network.probe_address) every --interval and prints each
transition. With --metrics-addr the Prometheus metrics are served on
/metrics until interrupted.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if probeAddr == "" {
				probeAddr = a.cfg.Network.ProbeAddress
			}
			if probeAddr == "" {
				return errors.New("no probe address: pass --probe or set network.probe_address")
			}
			if interval <= 0 {
				interval = a.cfg.Network.ProbeInterval
			}
			if interval <= 0 {
				interval = edunet.DefaultProbeInterval
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			unsubscribe := a.monitor.Subscribe(func(e edunet.NetworkEvent) {
				fmt.Fprintf(a.stdout, "%s %s\n", time.Now().Format(time.RFC3339), e)
			})
			defer unsubscribe()

			fmt.Fprintf(a.stdout, "%s initial state: %s\n", time.Now().Format(time.RFC3339), state(a.monitor.IsOnline()))
			done := a.monitor.StartProbe(ctx, interval,
				edunet.DialProbe(probeAddr, a.cfg.Network.ProbeTimeout))

			if metricsAddr != "" {
				if err := serveMetrics(ctx, a, metricsAddr); err != nil {
					return err
				}
			}
			<-done
			return nil
		},
	}
	cmd.Flags().DurationVar(&interval, "interval", 0, "probe interval (default network.probe_interval)")
	cmd.Flags().StringVar(&probeAddr, "probe", "", "host:port to dial (default network.probe_address)")
	cmd.Flags().StringVar(&metricsAddr, "metrics-addr", "", "serve Prometheus metrics on this address, e.g. :9090")
	return cmd
}

// serveMetrics blocks serving /metrics until ctx is done.
func serveMetrics(ctx context.Context, a *app, addr string) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(a.metrics.Registry(), promhttp.HandlerOpts{}))
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	errc := make(chan error, 1)
	go func() {
		errc <- srv.ListenAndServe()
	}()

	select {
	case err := <-errc:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("metrics server: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func state(online bool) string {
	if online {
		return edunet.WentOnline.String()
	}
	return edunet.WentOffline.String()
}
