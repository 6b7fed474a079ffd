package main

import (
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
	"github.com/urfave/cli/v2"

	"github.com/zsiec/reframe/internal/config"
	"github.com/zsiec/reframe/internal/server"
	"github.com/zsiec/reframe/pkg/version"
)

func serveCommand() *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "Serve the probe and demux API over HTTP",
		Flags: []cli.Flag{
			&cli.IntFlag{
				Name:  "port",
				Usage: "Override the configured HTTP port",
			},
		},
		Action: serveAction,
	}
}

func serveAction(c *cli.Context) error {
	cfg, log, err := setup(c)
	if err != nil {
		return err
	}
	if c.IsSet("port") {
		cfg.Server.HTTPPort = c.Int("port")
	}

	log.WithField("version", version.GetInfo().Short()).Info("Starting reframe server")

	ctx, stop := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
	defer stop()

	client := connectIndexCache(ctx, cfg, log)
	defer func() {
		if client == nil {
			return
		}
		if err := client.Close(); err != nil {
			log.WithError(err).Error("Failed to close Redis connection")
		}
	}()

	if cfg.Metrics.Enabled {
		go startMetricsServer(cfg.Metrics, log)
	}

	srv := server.New(cfg, log, client)
	if err := srv.Start(ctx); err != nil {
		log.WithError(err).Error("Server error")
		return cli.Exit(err.Error(), 1)
	}

	log.Info("Server shutdown complete")
	return nil
}

// startMetricsServer starts the Prometheus metrics server
func startMetricsServer(cfg config.MetricsConfig, log *logrus.Logger) {
	mux := http.NewServeMux()
	mux.Handle(cfg.Path, promhttp.Handler())

	addr := fmt.Sprintf(":%d", cfg.Port)
	log.WithField("addr", addr).Info("Starting metrics server")

	if err := http.ListenAndServe(addr, mux); err != nil {
		log.WithError(err).Error("Metrics server error")
	}
}
