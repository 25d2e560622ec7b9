package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"drone-spoof-sim/internal/api"
	"drone-spoof-sim/internal/app"
	"drone-spoof-sim/internal/config"
	"drone-spoof-sim/internal/logging"
	"drone-spoof-sim/internal/metrics"
	"drone-spoof-sim/internal/sim"
	"drone-spoof-sim/internal/storage"
	"drone-spoof-sim/internal/storage/factory"
	"drone-spoof-sim/internal/telemetry"
)

var (
	configDir = flag.String("config", ".", "Directory containing "+config.FileName)
	addr      = flag.String("addr", "", "Listen address, overrides api.addr")
)

func main() {
	flag.Parse()

	if err := config.Load(*configDir); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	// stdout carries telemetry, logs go to stderr
	logger, closeLogs, err := logging.New(config.GetLoggingConfig(), os.Stderr)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	defer closeLogs()

	simCfg := config.GetSimConfig()
	opts, err := app.SimOptions(simCfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("invalid simulation config")
	}
	geo := app.GeoRef(simCfg)

	inst, err := metrics.NewGlobal()
	if err != nil {
		logger.Fatal().Err(err).Msg("metrics setup failed")
	}

	store, err := factory.NewBackend(config.GetStorageConfig(), config.GetInfluxConfig(), inst, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("storage setup failed")
	}
	defer func() {
		if err := store.Close(); err != nil {
			logger.Error().Err(err).Msg("storage close failed")
		}
	}()

	// fault events are written off the engine goroutine
	events := make(chan sim.Event, 64)
	simEngine := sim.New(sim.Config{
		Options: opts,
		Logger:  logger,
		Metrics: inst,
		OnEvent: func(ev sim.Event) {
			select {
			case events <- ev:
			default:
				logger.Warn().Str("kind", ev.Kind).Msg("fault event dropped")
			}
		},
	})

	listen := *addr
	if listen == "" {
		listen = config.GetAPIConfig().Addr
	}
	server := api.NewServer(simEngine, api.Options{
		Store:   store,
		Geo:     geo,
		Target:  opts.Target,
		FrameHz: opts.FrameHz,
		Logger:  logger,
	})
	httpServer := &http.Server{
		Addr:    listen,
		Handler: server.Handler(),
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// writers must drain before the deferred store Close runs
	var writers sync.WaitGroup

	go func() {
		if err := simEngine.Run(ctx); err != nil && err != context.Canceled {
			logger.Error().Err(err).Msg("simulation error")
		}
	}()

	writers.Add(1)
	go func() {
		defer writers.Done()
		for {
			select {
			case <-ctx.Done():
				return
			case ev := <-events:
				if err := store.RecordFaultEvent(storage.FromEngineEvent(ev)); err != nil {
					logger.Error().Err(err).Msg("record fault event")
				}
			}
		}
	}()

	telCfg := config.GetTelemetryConfig()
	out, closeOut, err := telemetryOutput(telCfg.Output)
	if err != nil {
		logger.Fatal().Err(err).Msg("telemetry output")
	}
	defer closeOut()

	snapshots, unsub := simEngine.Subscribe(ctx)
	defer unsub()
	emitter := telemetry.NewEmitter(out, telemetry.Style(telCfg.Style), telCfg.Interval, geo)
	writers.Add(1)
	go func() {
		defer writers.Done()
		telemetry.Pump(ctx, snapshots, emitter, store, func(err error) {
			logger.Error().Err(err).Msg("telemetry")
		})
	}()

	go func() {
		logger.Info().Str("addr", listen).Msg("Starting HTTP server")
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("HTTP server error")
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	logger.Info().Msg("Shutting down...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("HTTP server shutdown error")
	}

	cancel()
	writers.Wait()
	logger.Info().Msg("Shutdown complete")
}

// telemetryOutput opens the configured telemetry destination.
func telemetryOutput(dest string) (io.Writer, func(), error) {
	switch dest {
	case "stdout":
		return os.Stdout, func() {}, nil
	case "":
		return io.Discard, func() {}, nil
	}
	f, err := os.OpenFile(dest, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return nil, nil, fmt.Errorf("open %s: %w", dest, err)
	}
	return f, func() { _ = f.Close() }, nil
}
