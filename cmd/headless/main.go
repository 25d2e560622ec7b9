package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"time"

	"drone-spoof-sim/internal/app"
	"drone-spoof-sim/internal/config"
	"drone-spoof-sim/internal/forensics"
	"drone-spoof-sim/internal/logging"
	"drone-spoof-sim/internal/sim"
	"drone-spoof-sim/internal/storage/memory"
	"drone-spoof-sim/internal/telemetry"
)

func main() {
	configDir := flag.String("config", ".", "Directory containing "+config.FileName)
	ticks := flag.Uint64("ticks", 3600, "Number of frames to run")
	seed := flag.Uint64("seed", 0, "Random seed, overrides sim.seed")
	script := flag.String("script", "", `Scripted key presses as tick:key pairs, e.g. "120:3,300:s"`)
	audit := flag.Bool("audit", false, "Print a forensic audit of the emitted telemetry at the end")
	flag.Parse()

	if err := config.Load(*configDir); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	logger, closeLogs, err := logging.New(config.GetLoggingConfig(), os.Stderr)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	defer closeLogs()

	simCfg := config.GetSimConfig()
	if *seed != 0 {
		simCfg.Seed = *seed
	}
	if simCfg.Seed == 0 {
		simCfg.Seed = 1
	}
	opts, err := app.SimOptions(simCfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("invalid simulation config")
	}
	presses, err := app.ParseScript(*script)
	if err != nil {
		logger.Fatal().Err(err).Msg("invalid script")
	}

	telCfg := config.GetTelemetryConfig()
	emitter := telemetry.NewEmitter(os.Stdout, telemetry.Style(telCfg.Style), telCfg.Interval, app.GeoRef(simCfg))
	recorded := memory.New(0)

	// simulated clock: each frame advances by the current frame interval
	s := sim.NewSimulation(opts)
	clock := time.Unix(0, 0).UTC()
	next := 0
	for s.TickCount() < *ticks {
		for next < len(presses) && presses[next].Tick <= s.TickCount() {
			key := string(presses[next].Key)
			if a, err := s.Press(presses[next].Key); err != nil {
				logger.Warn().Err(err).Str("key", key).Msg("key ignored")
			} else {
				logger.Info().Uint64("tick", s.TickCount()).Str("key", key).
					Str("action", a.Kind.String()).Strs("faults", s.Drone().Faults.Labels()).
					Msg("key pressed")
			}
			next++
		}

		clock = clock.Add(s.FrameInterval())
		s.Advance()

		r, emitted, err := emitter.Offer(s.Snapshot(clock))
		if err != nil {
			logger.Fatal().Err(err).Msg("write telemetry")
		}
		if emitted {
			if err := recorded.RecordTelemetry(&r); err != nil {
				logger.Error().Err(err).Msg("record telemetry")
			}
		}
	}

	d := s.Drone()
	logger.Info().Uint64("ticks", s.TickCount()).
		Float64("x", d.Position.X).Float64("y", d.Position.Y).
		Float64("distance", d.DistanceToTarget()).
		Strs("faults", d.Faults.Labels()).
		Msg("run complete")

	if !*audit {
		return
	}
	records, err := recorded.Telemetry(0)
	if err != nil {
		logger.Fatal().Err(err).Msg("read recorded telemetry")
	}
	universe := forensics.UniverseFor(d.RealTarget, opts.FrameHz)
	report, err := forensics.Audit(forensics.FromRecords(records), universe)
	if err != nil {
		logger.Fatal().Err(err).Msg("audit failed")
	}
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(report); err != nil {
		logger.Fatal().Err(err).Msg("write report")
	}
}
