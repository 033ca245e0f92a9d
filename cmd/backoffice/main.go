// Command backoffice runs the assignment worker: it keeps the schema
// current, hosts the background sweep runner and reconverges all tenants on
// a schedule. The HTTP front end lives in a separate deployment and talks to
// the same database.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/biurosoft/backoffice/internal/config"
	"github.com/biurosoft/backoffice/internal/db"
	"github.com/biurosoft/backoffice/internal/services"
	"github.com/biurosoft/backoffice/internal/tasks"
	"github.com/joho/godotenv"
	"github.com/lmittmann/tint"
	"github.com/mattn/go-colorable"
	"github.com/mattn/go-isatty"
	"github.com/robfig/cron/v3"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "backoffice: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	// .env is optional; real deployments set the environment directly.
	_ = godotenv.Load()
	cfg := config.Load()

	logger := slog.New(tint.NewHandler(colorable.NewColorable(os.Stderr), &tint.Options{
		Level:      slog.LevelInfo,
		TimeFormat: time.TimeOnly,
		NoColor:    !isatty.IsTerminal(os.Stderr.Fd()),
	}))
	slog.SetDefault(logger)

	gdb, err := db.Connect(cfg.DatabaseDSN)
	if err != nil {
		return err
	}

	runner := tasks.NewRunner(logger, cfg.WorkerLimit)
	autoAssign := services.NewAutoAssignService(gdb, logger, runner, cfg.SweepBatchSize)

	c := cron.New()
	if _, err := c.AddFunc(cfg.ResyncCron, func() {
		if err := autoAssign.ResyncAll(context.Background()); err != nil {
			logger.Error("scheduled resync failed", "err", err)
		}
	}); err != nil {
		return fmt.Errorf("invalid RESYNC_CRON %q: %w", cfg.ResyncCron, err)
	}
	c.Start()
	logger.Info("backoffice worker started", "env", cfg.Env, "resync_cron", cfg.ResyncCron)

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop
	logger.Info("shutting down")

	<-c.Stop().Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := runner.Shutdown(shutdownCtx); err != nil {
		logger.Warn("background sweeps did not drain in time", "err", err)
	}
	return nil
}
