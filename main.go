package main

import (
	"flag"
	"log/slog"
	"os"
	"time"

	"github.com/pthm-cable/abp2d/config"
	"github.com/pthm-cable/abp2d/export"
	"github.com/pthm-cable/abp2d/observables"
	"github.com/pthm-cable/abp2d/sim"
	"github.com/pthm-cable/abp2d/telemetry"
)

// perfWindow is the rolling window, in steps, of the perf collector.
const perfWindow = 1000

func main() {
	// CLI flags
	configPath := flag.String("config", "", "Path to config.yaml (empty = use defaults)")
	seed := flag.Int64("seed", 0, "RNG seed (0 = time-based)")
	outputDir := flag.String("output-dir", "", "Output directory for CSV logs and config snapshot")
	maxIters := flag.Int("max-iters", 0, "Override n_iters from config (0 = use config)")
	quiet := flag.Bool("quiet", false, "Suppress progress logs")

	flag.Parse()

	// Initialize config before anything else
	if err := config.Init(*configPath); err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	cfg := config.Cfg()

	// Set up slog (JSON to stdout for structured logging)
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	nIters := cfg.Run.NIters
	if *maxIters > 0 {
		nIters = *maxIters
	}

	noise, err := sim.NewNoiseSource(cfg.Noise.Backend, uint64(*seed))
	if err != nil {
		slog.Error("failed to build noise source", "error", err)
		os.Exit(1)
	}

	state, err := sim.NewState(sim.Params{
		Length:            cfg.Derived.Length,
		NParts:            cfg.Physics.NParts,
		PotStrength:       cfg.Physics.PotStrength,
		Temperature:       cfg.Physics.Temperature,
		RotDif:            cfg.Physics.RotDif,
		Activity:          cfg.Physics.Activity,
		DT:                cfg.Physics.DT,
		Workers:           cfg.Parallel.Workers,
		ParallelThreshold: cfg.Parallel.Threshold,
	}, noise)
	if err != nil {
		slog.Error("invalid configuration", "error", err)
		os.Exit(1)
	}
	defer state.Close()

	mode := observables.ModeFor(cfg.Observables.Less, cfg.Observables.Cartesian)
	acc, err := observables.New(cfg.Derived.Length, cfg.Physics.NParts,
		cfg.Observables.StepR, cfg.Observables.DivAngle, mode)
	if err != nil {
		slog.Error("invalid observables configuration", "error", err)
		os.Exit(1)
	}

	out, err := export.NewOutput(*outputDir)
	if err != nil {
		slog.Error("failed to open output directory", "error", err)
		os.Exit(1)
	}
	defer out.Close()

	if err := out.WriteConfig(cfg); err != nil {
		slog.Warn("failed to snapshot config", "error", err)
	}

	slog.Info("starting simulation",
		"n_parts", cfg.Physics.NParts,
		"length", cfg.Derived.Length,
		"rho", cfg.Derived.Rho,
		"seed", *seed,
		"n_iters", nIters,
		"n_iters_th", cfg.Run.NItersTh,
		"skip", cfg.Run.Skip,
		"noise_backend", cfg.Noise.Backend,
		"workers", cfg.Parallel.Workers,
	)

	// Thermalization: evolve without sampling.
	start := time.Now()
	for i := 0; i < cfg.Run.NItersTh; i++ {
		state.Evolve()
	}
	if cfg.Run.NItersTh > 0 {
		slog.Info("thermalization done",
			"iters", cfg.Run.NItersTh,
			"elapsed", time.Since(start).Round(time.Millisecond).String(),
		)
	}

	perf := telemetry.NewPerfCollector(perfWindow)
	sleep := time.Duration(cfg.Run.SleepMS) * time.Millisecond
	dt := cfg.Physics.DT

	for i := 1; i <= nIters; i++ {
		perf.StartStep()
		perf.StartPhase(telemetry.PhaseForces)
		state.ComputeForces()
		perf.StartPhase(telemetry.PhaseIntegrate)
		state.Integrate()

		if i%cfg.Run.Skip == 0 {
			perf.StartPhase(telemetry.PhaseSample)
			acc.Sample(state.Snapshot())
			if err := out.WriteSample(export.SampleRecord{
				Step:     i,
				SimTime:  float64(i) * dt,
				FAlong:   acc.LastFAlong(),
				FAlongSq: acc.LastFAlong() * acc.LastFAlong(),
			}); err != nil {
				slog.Error("failed to write sample", "error", err)
				os.Exit(1)
			}
		}
		perf.EndStep()

		if !*quiet && cfg.Run.ProgressEvery > 0 && i%cfg.Run.ProgressEvery == 0 {
			stats := perf.Stats()
			stats.LogStats()
			slog.Info("progress",
				"iter", i,
				"pct", 100*i/nIters,
				"sim_time", float64(i)*dt,
				"f_along", acc.LastFAlong(),
			)
			if err := out.WritePerf(stats.ToRecord(i)); err != nil {
				slog.Warn("failed to write perf record", "error", err)
			}
		}

		if sleep > 0 {
			time.Sleep(sleep)
		}
	}

	sum := acc.Summary()
	slog.Info("simulation finished",
		"elapsed", time.Since(start).Round(time.Millisecond).String(),
		"samples", sum.NCalls,
		"f_along_mean", sum.FAlongMean,
		"f_along_msq", sum.FAlongMsq,
	)

	if cfg.Output.File != "" {
		params := export.RunParams{
			Rho:         cfg.Derived.Rho,
			Length:      cfg.Derived.Length,
			NParts:      int64(cfg.Physics.NParts),
			PotStrength: cfg.Physics.PotStrength,
			Temperature: cfg.Physics.Temperature,
			RotDif:      cfg.Physics.RotDif,
			Activity:    cfg.Physics.Activity,
			DT:          dt,
			NIters:      int64(nIters),
			NItersTh:    int64(cfg.Run.NItersTh),
			Skip:        int64(cfg.Run.Skip),
			Seed:        *seed,
		}
		if err := export.WriteHDF5(cfg.Output.File, params, acc); err != nil {
			slog.Error("failed to write HDF5 output", "error", err)
			os.Exit(1)
		}
		slog.Info("observables written", "file", cfg.Output.File)
	}
}
