// Package main provides the simulation server binary that drives scenario
// agents through plan/execute cycles on a fixed tick.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"path/filepath"
	"time"

	"go.uber.org/zap"

	"github.com/ashkettle/forage/internal/config"
	"github.com/ashkettle/forage/internal/goap"
	"github.com/ashkettle/forage/internal/observability"
	"github.com/ashkettle/forage/internal/scenario"
	"github.com/ashkettle/forage/internal/scripting"
	"github.com/ashkettle/forage/internal/server"
	"github.com/ashkettle/forage/internal/sim"
	"github.com/ashkettle/forage/internal/storage/postgres"
)

func main() {
	start := time.Now()

	configPath := flag.String("config", "configs/dev.yaml", "path to configuration file")
	flag.Parse()

	ctx := context.Background()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("loading config: %v", err)
	}

	logger, err := observability.NewLogger(cfg.Logging)
	if err != nil {
		log.Fatalf("initializing logger: %v", err)
	}
	defer logger.Sync()

	logger.Info("starting simulation server",
		zap.String("scenario", cfg.Sim.Scenario),
		zap.String("mode", cfg.Server.Mode),
		zap.Duration("tick_interval", cfg.Sim.TickInterval),
	)

	// Load scenario content
	loadStart := time.Now()
	scenarios, err := scenario.LoadFromDir(cfg.Sim.ScenarioDir)
	if err != nil {
		logger.Fatal("loading scenarios", zap.Error(err))
	}
	var active *scenario.Scenario
	ids := make([]string, 0, len(scenarios))
	for _, s := range scenarios {
		ids = append(ids, s.ID)
		if s.ID == cfg.Sim.Scenario {
			active = s
		}
	}
	if active == nil {
		logger.Fatal("configured scenario not found",
			zap.String("scenario", cfg.Sim.Scenario),
			zap.Strings("available", ids),
		)
	}
	logger.Info("scenarios loaded",
		zap.Int("count", len(scenarios)),
		zap.String("active", active.ID),
		zap.Duration("elapsed", time.Since(loadStart)),
	)

	// Initialise scripting engine when the scenario ships Lua hooks
	var scriptMgr *scripting.Manager
	if active.ScriptDir != "" {
		scriptStart := time.Now()
		scriptMgr = scripting.NewManager(logger)
		defer scriptMgr.Close()

		scriptDir := filepath.Join(cfg.Sim.ContentDir, active.ScriptDir)
		if err := scriptMgr.LoadScenario(active.ID, scriptDir, active.ScriptInstructionLimit); err != nil {
			logger.Fatal("loading scenario scripts",
				zap.String("dir", scriptDir), zap.Error(err))
		}
		logger.Info("scenario scripts loaded",
			zap.String("dir", scriptDir),
			zap.Duration("elapsed", time.Since(scriptStart)),
		)
	}

	// Compile the scenario into plannable stores, actions, and goals.
	// A typed nil manager must not reach the builder as a non-nil interface.
	var builder *scenario.Builder
	if scriptMgr != nil {
		builder = scenario.NewBuilder(scriptMgr)
	} else {
		builder = scenario.NewBuilder(nil)
	}
	built, err := builder.Build(active)
	if err != nil {
		logger.Fatal("building scenario", zap.Error(err))
	}
	if len(built.Goals) == 0 {
		logger.Fatal("scenario has no goals", zap.String("scenario", active.ID))
	}

	planner := goap.NewPlanner()
	planner.SetDepth(cfg.Planner.Depth)
	planner.SetActions(built.Actions)
	planner.SetAmbientActions(built.Ambient)

	runner := sim.NewRunner(active.ID, planner, built.World, built.Ambient, logger)

	// Each agent plans against its own copy of the scenario's starting store.
	for i := 0; i < cfg.Sim.Agents; i++ {
		goal := built.Goals[i%len(built.Goals)]
		name := fmt.Sprintf("agent-%d", i+1)
		if _, err := runner.AddAgent(name, goap.CloneStore(built.Agent), goal); err != nil {
			logger.Fatal("registering agent", zap.String("agent", name), zap.Error(err))
		}
	}
	logger.Info("agents registered",
		zap.Int("count", cfg.Sim.Agents),
		zap.Int("goals", len(built.Goals)),
	)

	// Connect to PostgreSQL for plan persistence
	var pool *postgres.Pool
	if cfg.Server.PersistenceEnabled() {
		dbStart := time.Now()
		pool, err = postgres.NewPool(ctx, cfg.Database)
		if err != nil {
			logger.Fatal("connecting to database", zap.Error(err))
		}
		logger.Info("database connected",
			zap.String("host", cfg.Database.Host),
			zap.Duration("elapsed", time.Since(dbStart)),
		)

		sessions := postgres.NewSessionRepository(pool.DB())
		snapshots := postgres.NewSnapshotRepository(pool.DB())
		runner.SetRecorder(postgres.NewPlanRecorder(sessions, snapshots))
		logger.Info("plan persistence enabled")
	} else {
		logger.Info("running standalone, plans are not persisted")
	}

	tickMgr := sim.NewTickManager(cfg.Sim.TickInterval)
	tickMgr.RegisterTick(active.ID, func() {
		runner.Step(ctx)
	})

	// Wire lifecycle
	lifecycle := server.NewLifecycle(logger)

	tickCtx, tickCancel := context.WithCancel(ctx)
	lifecycle.Add("ticker", &server.FuncService{
		StartFn: func() error {
			tickMgr.Start(tickCtx)
			return nil
		},
		StopFn: func() {
			tickCancel()
		},
	})

	if pool != nil {
		healthStop := make(chan struct{})
		lifecycle.Add("postgres", &server.FuncService{
			StartFn: func() error {
				ticker := time.NewTicker(30 * time.Second)
				defer ticker.Stop()
				for {
					select {
					case <-healthStop:
						return nil
					case <-ticker.C:
						if err := pool.Health(ctx, 5*time.Second); err != nil {
							logger.Warn("database health check failed", zap.Error(err))
						}
					}
				}
			},
			StopFn: func() {
				close(healthStop)
				pool.Close()
			},
		})
	}

	logger.Info("simulation server initialized",
		zap.Duration("startup", time.Since(start)),
		zap.String("scenario", active.ID),
		zap.Int("agents", cfg.Sim.Agents),
	)

	if err := lifecycle.Run(ctx); err != nil {
		logger.Fatal("server error", zap.Error(err))
	}
}
