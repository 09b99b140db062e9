// Command operators registers an operator or changes their role. It is used
// to provision the agents that records are balanced across.
//
// Usage:
//
//	operators --username=va1 --role=AGENT
//
// Requires the same environment as the server (DATABASE_DSN, CRYPTO_MASTER_KEY).
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/heartmarshall/recordreview-backend/internal/adapter/postgres"
	"github.com/heartmarshall/recordreview-backend/internal/adapter/postgres/operator"
	"github.com/heartmarshall/recordreview-backend/internal/app"
	"github.com/heartmarshall/recordreview-backend/internal/config"
	"github.com/heartmarshall/recordreview-backend/internal/domain"
)

func main() {
	username := flag.String("username", "", "operator username")
	roleFlag := flag.String("role", string(domain.RoleAgent), "operator role (AGENT or ADMIN)")
	flag.Parse()

	name := strings.TrimSpace(*username)
	role := domain.Role(strings.ToUpper(strings.TrimSpace(*roleFlag)))
	if name == "" || !role.IsValid() {
		fmt.Fprintln(os.Stderr, "Usage: operators --username=va1 --role=AGENT")
		os.Exit(1)
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	logger := app.NewLogger(cfg.Log)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	pool, err := postgres.NewPool(ctx, cfg.Database)
	if err != nil {
		logger.Error("connect to database", slog.String("error", err.Error()))
		os.Exit(1)
	}
	defer pool.Close()

	if err := operator.New(pool).Upsert(ctx, name, role); err != nil {
		logger.Error("upsert operator failed",
			slog.String("username", name),
			slog.String("error", err.Error()),
		)
		pool.Close()
		os.Exit(1)
	}

	logger.Info("operator registered",
		slog.String("username", name),
		slog.String("role", role.String()),
	)
}
