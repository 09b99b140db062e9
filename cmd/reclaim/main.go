// Command reclaim runs a single lease reclamation sweep and exits. It is
// intended for deployments that disable the in-process scheduler and drive
// sweeps from an external cron job instead.
//
// Exit codes: 0 = success, 1 = error.
package main

import (
	"context"
	"flag"
	"log"
	"log/slog"
	"os"
	"time"

	"github.com/heartmarshall/recordreview-backend/internal/app"
	"github.com/heartmarshall/recordreview-backend/internal/config"
)

func main() {
	reconcile := flag.Bool("reconcile", false, "also recount operator assignment counters")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	logger := app.NewLogger(cfg.Log)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	c, err := app.Build(ctx, cfg, logger)
	if err != nil {
		logger.Error("build engine", slog.String("error", err.Error()))
		os.Exit(1)
	}
	defer c.Close()

	res, err := c.Scheduler.Sweep(ctx)
	if err != nil {
		logger.Error("reclaim sweep failed", slog.String("error", err.Error()))
		c.Close()
		os.Exit(1)
	}

	logger.Info("reclaim sweep completed",
		slog.Int("expired", res.Expired),
		slog.Int("reassigned", res.Reassigned),
		slog.Int("unassigned", res.Unassigned),
		slog.Int("skipped", res.Skipped),
		slog.Int("failed", res.Failed),
	)

	if *reconcile {
		drifts, err := c.Scheduler.Reconcile(ctx)
		if err != nil {
			logger.Error("reconcile failed", slog.String("error", err.Error()))
			c.Close()
			os.Exit(1)
		}
		logger.Info("reconcile completed", slog.Int("drifted", len(drifts)))
	}

	if res.Failed > 0 {
		c.Close()
		os.Exit(1)
	}
}
