// Command vpod is the orchestrator daemon: it owns the catalog store, runs
// the job queue worker pool, and serves vpoctl's requests over a Unix
// socket. Grounded on five82-spindle's cmd/spindled, generalized from
// wiring a disc-ripping daemon.Daemon to wiring the store/jobqueue/ipc
// triple this rewrite introduced.
package main

import (
	"context"
	"log"
	"log/slog"
	"os/signal"
	"syscall"

	"spindle/internal/config"
	"spindle/internal/externaltool/fake"
	"spindle/internal/ipc"
	"spindle/internal/jobhandlers"
	"spindle/internal/jobqueue"
	"spindle/internal/logging"
	"spindle/internal/phaseexec"
	"spindle/internal/policy"
	"spindle/internal/store"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	cfg, _, _, err := config.Load("")
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	if err := cfg.EnsureDirectories(); err != nil {
		log.Fatalf("ensure directories: %v", err)
	}

	logger, err := logging.NewFromConfig(cfg)
	if err != nil {
		log.Fatalf("init logger: %v", err)
	}

	catalog, err := store.Open(cfg.Paths.CatalogPath)
	if err != nil {
		logger.Error("open catalog store", logging.Error(err))
		return
	}
	defer catalog.Close()

	pool := buildPool(cfg, catalog, logger)
	if err := pool.Start(ctx); err != nil {
		logger.Error("start worker pool", logging.Error(err))
		return
	}
	defer pool.Stop()

	socketPath := buildSocketPath(cfg)
	server, err := ipc.NewServer(ctx, socketPath, catalog, pool, logger)
	if err != nil {
		logger.Error("start ipc server", logging.Error(err))
		return
	}
	defer server.Close()
	server.Serve()

	logger.Info("vpod started", slog.String("socket", socketPath), slog.String("catalog", cfg.Paths.CatalogPath))
	<-ctx.Done()
	logger.Info("vpod shutting down")
}

// buildPool assembles the job handlers (spec §4.5) over a Toolset. Per
// spec §1 Non-goals, no process-invoking tool implementation is built
// here; externaltool/fake stands in as the only Toolset this repo ships,
// same as its test suite uses it.
func buildPool(cfg *config.Config, catalog *store.Store, logger *slog.Logger) *jobqueue.Pool {
	tools := fake.New()
	executor := &phaseexec.Executor{
		Store:  catalog,
		Tools:  tools,
		Logger: logging.NewComponentLogger(logger, "phaseexec"),
	}
	registry := &jobhandlers.Registry{
		Store:    catalog,
		Tools:    tools,
		Executor: executor,
		Policies: map[string]policy.EvaluationPolicy{},
		Logger:   logging.NewComponentLogger(logger, "jobhandlers"),
	}

	poolCfg := jobqueueConfigFromWorkflow(cfg.Workflow)
	return jobqueue.NewPool(catalog, registry.Build(), poolCfg, logging.NewComponentLogger(logger, "jobqueue"))
}
