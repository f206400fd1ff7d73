package main

import (
	"context"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"etasensor/internal/config"
	"etasensor/internal/metrics"
	"etasensor/internal/poller"
	"etasensor/internal/publisher"
	"etasensor/internal/reconcile"
	"etasensor/internal/sensor"
	"etasensor/internal/server"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Poll every configured sensor and serve their state over HTTP",
	RunE:  runServe,
}

func init() {
	serveCmd.Flags().IntVar(&cfg.Port, "port", cfg.Port, "HTTP server port")
	serveCmd.Flags().StringVar(&cfg.SensorsFile, "sensors", cfg.SensorsFile, "sensor YAML file")
	serveCmd.Flags().DurationVar(&cfg.PollInterval, "interval", cfg.PollInterval, "poll interval")
}

func runServe(cmd *cobra.Command, args []string) error {
	logger := newLogger()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	specs, err := config.LoadSensors(cfg.SensorsFile)
	if err != nil {
		return err
	}

	client := newClient(logger)
	table := buildLookup(ctx, client, logger)

	sensors, err := sensor.FromSpecs(specs, client, sensor.Deps{
		Stops:  table,
		Routes: table,
		Engine: reconcile.NewEngine(logger),
		Logger: logger,
	})
	if err != nil {
		return err
	}
	logger.Info("sensors configured", "count", len(sensors), "interval", cfg.PollInterval)

	collector := metrics.NewCollector(cfg.PollInterval)
	opts := []poller.Option{poller.WithObserver(collector)}

	if cfg.NATSURL != "" {
		pub, err := publisher.Connect(cfg.NATSURL, cfg.NATSSubject, collector, logger)
		if err != nil {
			return err
		}
		defer pub.Close()
		opts = append(opts, poller.WithPublisher(pub))
	}

	var mainMetrics http.Handler
	if cfg.MetricsAddr != "" {
		go server.ServeMetrics(ctx, cfg.MetricsAddr, collector.Handler(), logger)
	} else {
		mainMetrics = collector.Handler()
	}

	srv := server.New(cfg.Port, sensors, mainMetrics, logger)
	opts = append(opts, poller.WithFirstRound(srv.SetReady))
	go poller.New(sensors, cfg.PollInterval, logger, opts...).Start(ctx)

	if err := srv.ListenAndServe(ctx); err != nil {
		return fmt.Errorf("server: %w", err)
	}
	logger.Info("shutting down")
	return nil
}
