package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"time"

	"github.com/looptide/looptide/engine"
	"github.com/looptide/looptide/oto"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

func newPlayCmd() *cobra.Command {
	var metricsAddr string
	cmd := &cobra.Command{
		Use:   "play <graph.yml>",
		Short: "Play a graph and edit it live from standard input",
		Long: `Plays a graph on the default audio device. Standard input accepts:

  load <file>   compile a graph and swap it in, keeping the clock and tails
  hush          silence now, keeping the clock running
  panic         silence now without waiting for the audio thread
  stats         print engine diagnostics
  quit          stop playing`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log, err := setup()
			if err != nil {
				return err
			}
			if metricsAddr != "" {
				cfg.MetricsAddr = metricsAddr
			}
			e := engine.New(cfg, log)
			if err := loadFile(e.Coordinator, args[0]); err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
			defer stop()
			g, gctx := errgroup.WithContext(ctx)
			if cfg.MetricsAddr != "" {
				reg := prometheus.NewRegistry()
				if err := e.Register(reg); err != nil {
					return fmt.Errorf("could not register metrics: %w", err)
				}
				serveMetrics(gctx, g, cfg.MetricsAddr, reg, log)
			}
			for e.Producer.Step() {
			}
			audio, err := oto.NewContext(cfg.SampleRate, cfg.OutputLatency)
			if err != nil {
				return err
			}
			defer audio.Close()
			output, err := audio.Play(e.Player)
			if err != nil {
				return err
			}
			defer output.Close()
			g.Go(func() error { return e.Run(gctx) })
			g.Go(func() error {
				return newEditor(e, cmd.OutOrStdout()).run(gctx, cmd.InOrStdin())
			})
			if err := g.Wait(); err != nil && !errors.Is(err, errQuit) {
				return err
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&metricsAddr, "metrics-addr", "", "serve Prometheus metrics on host:port")
	return cmd
}

func serveMetrics(ctx context.Context, g *errgroup.Group, addr string, reg *prometheus.Registry, log *logrus.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	g.Go(func() error {
		log.WithField("addr", addr).Info("serving metrics")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("metrics server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		shutdown, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		return srv.Shutdown(shutdown)
	})
}

func loadFile(c *engine.Coordinator, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("could not open graph: %w", err)
	}
	defer f.Close()
	if _, err := c.LoadYAML(f); err != nil {
		return fmt.Errorf("%s: %w", path, err)
	}
	return nil
}
