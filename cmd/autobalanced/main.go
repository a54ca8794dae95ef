// Package main runs the dev harness: a ticking Lua scenario against the
// scaling engine, with configuration hot reload and a Prometheus endpoint.
package main

import (
	"context"
	"flag"
	"log"
	"net/http"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/cory-johannsen/autobalance/internal/config"
	"github.com/cory-johannsen/autobalance/internal/content"
	"github.com/cory-johannsen/autobalance/internal/game/instance"
	"github.com/cory-johannsen/autobalance/internal/observability"
	"github.com/cory-johannsen/autobalance/internal/scenario"
	"github.com/cory-johannsen/autobalance/internal/server"
)

func main() {
	start := time.Now()

	configPath := flag.String("config", "configs/dev.yaml", "path to configuration file")
	scenarioPath := flag.String("scenario", "", "Lua scenario to run; overrides simulation.scenario")
	flag.Parse()

	// .env is optional; real environment variables take precedence.
	_ = godotenv.Load()

	ctx := context.Background()

	reloads := make(chan config.Config, 1)
	watchErrs := make(chan error, 1)
	cfg, err := config.Watch(*configPath,
		func(next config.Config) {
			// Only the newest pending revision is kept.
			select {
			case <-reloads:
			default:
			}
			reloads <- next
		},
		func(err error) {
			select {
			case watchErrs <- err:
			default:
			}
		},
	)
	if err != nil {
		log.Fatalf("loading config: %v", err)
	}

	logger, err := observability.NewLogger(cfg.Logging)
	if err != nil {
		log.Fatalf("initializing logger: %v", err)
	}
	defer logger.Sync()

	tables, err := content.Load(ctx, cfg, logger)
	if err != nil {
		logger.Fatal("loading reference data", zap.Error(err))
	}

	snap, err := cfg.Scaling.Snapshot()
	if err != nil {
		logger.Fatal("building scaling snapshot", zap.Error(err))
	}

	metrics := observability.NewMetrics()
	engine, err := instance.NewEngine(snap, tables.LFG, tables.BaseStats, logger, instance.WithRecorder(metrics))
	if err != nil {
		logger.Fatal("creating engine", zap.Error(err))
	}

	path := cfg.Simulation.Scenario
	if *scenarioPath != "" {
		path = *scenarioPath
	}
	sim := scenario.New(engine, logger)
	defer sim.Close()
	if path != "" {
		if err := sim.Load(path, cfg.Simulation.InstructionLimit); err != nil {
			logger.Fatal("loading scenario", zap.Error(err))
		}
	}

	lc := server.NewLifecycle(logger)

	watchCtx, stopWatch := context.WithCancel(ctx)
	lc.Add("config-watcher", &server.FuncService{
		StartFn: func() error {
			for {
				select {
				case <-watchCtx.Done():
					return nil
				case next := <-reloads:
					s, err := next.Scaling.Snapshot()
					if err != nil {
						logger.Error("rejecting configuration reload", zap.Error(err))
						continue
					}
					engine.Reload(s)
				case err := <-watchErrs:
					logger.Warn("ignoring invalid configuration revision", zap.Error(err))
				}
			}
		},
		StopFn: stopWatch,
	})

	if cfg.Simulation.TickInterval > 0 && path != "" {
		lc.Add("scenario", server.NewTickerService(cfg.Simulation.TickInterval, func(context.Context) error {
			n, err := sim.Tick()
			if err != nil {
				logger.Warn("scenario tick failed", zap.Error(err))
				return nil
			}
			for _, r := range sim.Results() {
				logger.Info("instance scaling",
					zap.Int("tick", n),
					zap.Uint32("instance", uint32(r.InstanceID)),
					zap.Uint32("map", r.MapID),
					zap.Bool("enabled", r.Enabled),
					zap.Int("players", r.PlayerCount),
					zap.Int("adjusted", r.AdjustedPlayerCount),
					zap.Int("map_level", r.MapLevel),
					zap.Bool("combat_locked", r.CombatLocked),
					zap.Float64("world_health", r.World.Health),
					zap.Float64("world_damage", r.World.DamageHealing),
				)
			}
			return nil
		}))
	}

	if cfg.Metrics.Enabled {
		mux := http.NewServeMux()
		mux.Handle(cfg.Metrics.Path, metrics.Handler())
		mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusOK)
		})
		lc.Add("metrics", server.NewHTTPService(cfg.Metrics.Addr(), mux, 5*time.Second, logger))
	}

	logger.Info("autobalanced initialized",
		zap.String("scenario", sim.Name()),
		zap.Uint64("generation", engine.Generation()),
		zap.Duration("startup", time.Since(start)),
	)

	if err := lc.Run(ctx); err != nil {
		logger.Fatal("lifecycle error", zap.Error(err))
	}
}
