// Command score serves math-score predictions over HTTP.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/banshee-data/score.report/internal/api"
	"github.com/banshee-data/score.report/internal/artifact"
	"github.com/banshee-data/score.report/internal/config"
	"github.com/banshee-data/score.report/internal/db"
	"github.com/banshee-data/score.report/internal/inference"
	"github.com/banshee-data/score.report/internal/monitoring"
	"github.com/banshee-data/score.report/internal/version"
)

var (
	configPath   = flag.String("config", "", "Path to a JSON server config (default "+config.DefaultConfigPath+" when present)")
	listen       = flag.String("listen", "", "Listen address; overrides config and $PORT")
	artifactsDir = flag.String("artifacts", "", "Directory holding the preprocessor and model; overrides artifact_roots")
	dbPath       = flag.String("db", "", "Prediction log database path; overrides db_path")
	showVersion  = flag.Bool("version", false, "Print version and exit")
)

// resolveConfig loads the config file and applies, in increasing priority,
// $PORT and the command-line overrides.
func resolveConfig(path, listenFlag, artifactsFlag, dbFlag string, getenv func(string) string) (*config.ServerConfig, error) {
	cfg, err := config.LoadOrDefault(path)
	if err != nil {
		return nil, err
	}
	if listenFlag == "" && cfg.Listen == nil {
		if port := getenv("PORT"); port != "" {
			listenFlag = ":" + port
		}
	}
	cfg.ApplyOverrides(listenFlag, artifactsFlag, dbFlag)
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// app is the wired service.
type app struct {
	handler  http.Handler
	pipeline *inference.Pipeline
	db       *db.DB
}

func newApp(cfg *config.ServerConfig) (*app, error) {
	resolver := artifact.NewResolver(artifact.Options{
		Roots:  cfg.GetArtifactRoots(),
		Ext:    cfg.GetArtifactExt(),
		Codecs: inference.NewCodecs(),
		Cache:  cfg.GetCacheArtifacts(),
	})
	monitoring.Logf("artifact roots: %v", resolver.Roots())

	a := &app{
		pipeline: inference.New(inference.Config{
			Source:           resolver,
			PreprocessorName: cfg.GetPreprocessorName(),
			ModelName:        cfg.GetModelName(),
		}),
	}

	if cfg.GetRecordPredictions() {
		database, err := db.NewDB(cfg.GetDBPath())
		if err != nil {
			return nil, fmt.Errorf("failed to open prediction log: %w", err)
		}
		a.db = database
	}

	mux := api.NewServer(api.Options{Pipeline: a.pipeline, DB: a.db, Config: cfg}).ServeMux()
	if a.db != nil {
		if err := a.db.AttachAdminRoutes(mux); err != nil {
			a.Close()
			return nil, err
		}
	}
	a.handler = api.LoggingMiddleware(mux)
	return a, nil
}

func (a *app) Close() error {
	if a.db == nil {
		return nil
	}
	return a.db.Close()
}

func main() {
	flag.Parse()

	if *showVersion {
		fmt.Println("score", version.String())
		return
	}

	cfg, err := resolveConfig(*configPath, *listen, *artifactsDir, *dbPath, os.Getenv)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	a, err := newApp(cfg)
	if err != nil {
		log.Fatalf("failed to start: %v", err)
	}
	defer a.Close()

	h := a.pipeline.Check()
	if h.Status != inference.StatusHealthy {
		log.Printf("warning: artifacts not loadable at startup (preprocessor: %s, model: %s)", h.Preprocessor.Error, h.Model.Error)
	}

	var wg sync.WaitGroup
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	server := &http.Server{
		Addr:    cfg.GetListen(),
		Handler: a.handler,
	}

	wg.Add(1)
	go func() {
		defer wg.Done()

		go func() {
			log.Printf("score %s listening on %s", version.Version, server.Addr)
			if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.Fatalf("failed to start server: %v", err)
			}
		}()

		<-ctx.Done()
		log.Println("shutting down HTTP server...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.GetShutdownTimeout())
		defer cancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			log.Printf("HTTP server shutdown error: %v", err)
			if err := server.Close(); err != nil {
				log.Printf("HTTP server force close error: %v", err)
			}
		}
		log.Printf("HTTP server routine stopped")
	}()

	wg.Wait()
	log.Printf("Graceful shutdown complete")
}
