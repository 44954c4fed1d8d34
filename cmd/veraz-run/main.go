// CLAUDE:SUMMARY One-shot pipeline cycle for cron and ad-hoc runs; prints the run record as JSON.
package main

import (
	"context"
	"encoding/json"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	_ "modernc.org/sqlite"

	"github.com/hazyhaar/veraz/dbopen"
	"github.com/hazyhaar/veraz/veraz"
)

type envSpec struct {
	DBPath         string `envconfig:"DB_PATH" default:"db/veraz.db"`
	LogLevel       string `envconfig:"LOG_LEVEL" default:"info"`
	SourcesFile    string `envconfig:"SOURCES_FILE"`
	ScoringVersion string `envconfig:"SCORING_VERSION"`
	OnEmptySource  string `envconfig:"ON_EMPTY_SOURCE" default:"substitute"`
}

func main() {
	_ = godotenv.Load()

	var env envSpec
	if err := envconfig.Process("veraz", &env); err != nil {
		slog.Error("environment", "error", err)
		os.Exit(1)
	}

	lvl := slog.LevelInfo
	if env.LogLevel == "debug" {
		lvl = slog.LevelDebug
	}
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: lvl}))
	slog.SetDefault(logger)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	db, err := dbopen.Open(env.DBPath, dbopen.WithMkdirAll())
	if err != nil {
		slog.Error("open db", "path", env.DBPath, "error", err)
		os.Exit(1)
	}
	defer db.Close()

	sources := veraz.DefaultSources()
	if env.SourcesFile != "" {
		sources, err = veraz.LoadSources(env.SourcesFile)
		if err != nil {
			slog.Error("load sources", "path", env.SourcesFile, "error", err)
			os.Exit(1)
		}
	}

	svc, err := veraz.New(db, veraz.Config{
		ScoringVersion: env.ScoringVersion,
		OnEmptySource:  veraz.Policy(env.OnEmptySource),
		Sources:        sources,
	}, veraz.WithLogger(logger))
	if err != nil {
		slog.Error("veraz service", "error", err)
		os.Exit(1)
	}

	run, runErr := svc.RunCycle(ctx)
	if run != nil {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		_ = enc.Encode(run)
	}
	if runErr != nil {
		slog.Error("cycle failed", "error", runErr)
		os.Exit(1)
	}
}
