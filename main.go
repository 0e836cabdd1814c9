package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"ingest_server/config"
	"ingest_server/internal/bootstrap"
	"ingest_server/pkg/logger"

	"github.com/joho/godotenv"
)

func main() {
	log := logger.New(logger.Config{
		Level:   logger.ParseLevel(os.Getenv("LOG_LEVEL")),
		Service: "ingest",
	})

	// Load .env file if exists (for local development)
	if err := godotenv.Load(); err != nil {
		log.Debug("No .env file found, using environment variables")
	}

	mode := flag.String("mode", "run", "Run mode: enqueue, run")
	user := flag.String("user", "", "User email to enqueue (enqueue mode)")
	jobID := flag.Int64("job", 0, "Job id to report status on (run mode)")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		log.Fatal("Failed to load config: %v", err)
	}
	log = log.WithField("run_id", cfg.RunID)

	// SIGINT/SIGTERM cancel the run; in-flight stages see the
	// cancelled context and stop between items.
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	deps, cleanup, err := bootstrap.NewDependencies(ctx, cfg, log)
	if err != nil {
		log.Fatal("Failed to initialize dependencies: %v", err)
	}
	defer cleanup()

	pipeline := bootstrap.NewPipeline(deps)

	switch *mode {
	case "enqueue":
		if *user == "" {
			log.Fatal("enqueue mode requires -user")
		}
		job, err := pipeline.Enqueue(ctx, *user)
		if err != nil {
			log.Fatal("Failed to enqueue: %v", err)
		}
		log.Info("job %d enqueued and dispatched for %s", job.ID, *user)
	case "run":
		if err := pipeline.Run(ctx, cfg.RefreshToken, *jobID); err != nil {
			log.Fatal("Pipeline run failed: %v", err)
		}
		log.Info("pipeline run finished")
	default:
		log.Fatal("Unknown mode: %s", *mode)
	}
}
