// Package app turns loaded configuration into simulation options. Both
// commands share it.
package app

import (
	"fmt"

	"drone-spoof-sim/internal/config"
	"drone-spoof-sim/internal/env"
	"drone-spoof-sim/internal/geometry/vector"
	"drone-spoof-sim/internal/remediation"
	"drone-spoof-sim/internal/sim"
)

// SimOptions builds the simulation options described by cfg.
func SimOptions(cfg config.SimConfig) (sim.Options, error) {
	opts := sim.Options{
		Spawn:   vector.NewVec2(cfg.SpawnX, cfg.SpawnY),
		Target:  vector.NewVec2(cfg.TargetX, cfg.TargetY),
		FrameHz: cfg.FrameHz,
		Seed:    cfg.Seed,
	}

	effects := []env.Environment{}
	if cfg.WindSpeed != 0 {
		effects = append(effects, env.FromSpeedAndDir(cfg.WindSpeed, cfg.WindDirDeg))
	}
	if cfg.ArenaWidth > 0 && cfg.ArenaHeight > 0 {
		effects = append(effects, env.Bounds{
			Width:    cfg.ArenaWidth,
			Height:   cfg.ArenaHeight,
			MarginPx: cfg.ArenaMargin,
		})
	}
	if len(effects) > 0 {
		opts.Environment = &env.Chain{Effects: effects}
	}

	for _, label := range cfg.InitialFaults {
		f, err := sim.ParseFault(label)
		if err != nil {
			return sim.Options{}, fmt.Errorf("initial faults: %w", err)
		}
		opts.InitialFaults = append(opts.InitialFaults, f)
	}

	gt := sim.DefaultGroundTruth()
	gt.Target = opts.Target
	if cfg.RemediationFile != "" {
		p, err := remediation.LoadFile(cfg.RemediationFile)
		if err != nil {
			return sim.Options{}, err
		}
		gt, err = p.GroundTruth(opts.Target)
		if err != nil {
			return sim.Options{}, err
		}
	}
	opts.Remediation = &gt

	if cfg.Guard {
		// a guarded flight starts where the payload says, then holds course
		if gt.Spawn != nil {
			opts.Spawn = *gt.Spawn
		}
		guard := gt
		// the guard runs every frame; it must never teleport or damp
		guard.Spawn = nil
		guard.VelocityScale = 1
		opts.Guard = &guard
	}
	return opts, nil
}

// GeoRef returns the geographic anchor, disabled when no scale is set.
func GeoRef(cfg config.SimConfig) sim.GeoRef {
	return sim.GeoRef{
		OriginLat:     cfg.OriginLat,
		OriginLon:     cfg.OriginLon,
		MetersPerUnit: cfg.MetersPerUnit,
	}
}
