// CLAUDE:SUMMARY Entry point for the veraz HTTP service — chi router, scheduler, Prometheus metrics, graceful shutdown.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	_ "modernc.org/sqlite"

	"github.com/hazyhaar/veraz/dbopen"
	"github.com/hazyhaar/veraz/veraz"
)

// envSpec is the process environment, prefixed VERAZ_ (VERAZ_PORT, ...).
type envSpec struct {
	Port           string        `default:"8087"`
	DBPath         string        `envconfig:"DB_PATH" default:"db/veraz.db"`
	LogLevel       string        `envconfig:"LOG_LEVEL" default:"info"`
	SourcesFile    string        `envconfig:"SOURCES_FILE"`
	ScoringVersion string        `envconfig:"SCORING_VERSION"`
	OnEmptySource  string        `envconfig:"ON_EMPTY_SOURCE" default:"substitute"`
	Interval       time.Duration `default:"6h"`
	Scheduler      bool          `default:"true"`
}

func main() {
	// .env is optional; real deployments set the environment directly.
	_ = godotenv.Load()

	var env envSpec
	if err := envconfig.Process("veraz", &env); err != nil {
		slog.Error("environment", "error", err)
		os.Exit(1)
	}

	// Logging.
	var lvl slog.Level
	switch env.LogLevel {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: lvl}))
	slog.SetDefault(logger)

	// Signal context.
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
		Interval:       env.Interval,
		Sources:        sources,
	}, veraz.WithLogger(logger))
	if err != nil {
		slog.Error("veraz service", "error", err)
		os.Exit(1)
	}

	if env.Scheduler {
		go func() {
			if err := svc.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
				slog.Error("scheduler stopped", "error", err)
			}
		}()
	}

	// Router.
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, 200, map[string]string{"status": "ok"})
	})
	r.Handle("/metrics", promhttp.HandlerFor(svc.Metrics().Registry(), promhttp.HandlerOpts{}))

	r.Get("/api/deals", func(w http.ResponseWriter, r *http.Request) {
		filter := veraz.DealFilter{
			MinScore:           queryFloat(r, "min_score", 0),
			Label:              r.URL.Query().Get("label"),
			Retailer:           r.URL.Query().Get("retailer"),
			Brand:              r.URL.Query().Get("brand"),
			CrossStorePositive: r.URL.Query().Get("cross_positive") == "true",
			Limit:              queryInt(r, "limit", 50),
		}
		if s := r.URL.Query().Get("min_discount"); s != "" {
			if v, err := strconv.ParseFloat(s, 64); err == nil {
				filter.MinDiscountPct = &v
			}
		}
		deals, err := svc.Deals(r.Context(), filter)
		if err != nil {
			writeError(w, 500, err)
			return
		}
		if deals == nil {
			deals = []*veraz.Deal{}
		}
		writeJSON(w, 200, deals)
	})

	r.Get("/api/runs/latest", func(w http.ResponseWriter, r *http.Request) {
		run, err := svc.LatestRun(r.Context())
		if err != nil {
			writeError(w, 500, err)
			return
		}
		if run == nil {
			writeJSON(w, 404, map[string]string{"error": "no runs yet"})
			return
		}
		writeJSON(w, 200, run)
	})

	r.Get("/api/runs", func(w http.ResponseWriter, r *http.Request) {
		runs, err := svc.ListRuns(r.Context(), queryInt(r, "limit", 20))
		if err != nil {
			writeError(w, 500, err)
			return
		}
		if runs == nil {
			runs = []*veraz.PipelineRun{}
		}
		writeJSON(w, 200, runs)
	})

	r.Post("/api/runs", func(w http.ResponseWriter, r *http.Request) {
		run, err := svc.RunCycle(r.Context())
		if err != nil && run == nil {
			writeError(w, 500, err)
			return
		}
		// Degraded and failed cycles still return their run record.
		writeJSON(w, 200, run)
	})

	r.Get("/api/retailers", func(w http.ResponseWriter, r *http.Request) {
		retailers, err := svc.Retailers(r.Context())
		if err != nil {
			writeError(w, 500, err)
			return
		}
		if retailers == nil {
			retailers = []*veraz.Retailer{}
		}
		writeJSON(w, 200, retailers)
	})

	r.Get("/api/stats", func(w http.ResponseWriter, r *http.Request) {
		stats, err := svc.Stats(r.Context())
		if err != nil {
			writeError(w, 500, err)
			return
		}
		writeJSON(w, 200, stats)
	})

	srv := &http.Server{
		Addr:              ":" + env.Port,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		slog.Info("server starting", "port", env.Port, "db", env.DBPath)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	<-ctx.Done()
	slog.Info("shutting down")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("shutdown", "error", err)
	}
	slog.Info("server stopped")
}

// --- Helpers ---

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, code int, err error) {
	writeJSON(w, code, map[string]string{"error": err.Error()})
}

func queryInt(r *http.Request, key string, def int) int {
	s := r.URL.Query().Get(key)
	if s == "" {
		return def
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		return def
	}
	return v
}

func queryFloat(r *http.Request, key string, def float64) float64 {
	s := r.URL.Query().Get(key)
	if s == "" {
		return def
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return def
	}
	return v
}
