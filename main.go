package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/toftmakemore/makemoreV2/config"
	"github.com/toftmakemore/makemoreV2/httputil"
	"github.com/toftmakemore/makemoreV2/logging"
	"github.com/toftmakemore/makemoreV2/pipeline"
	"github.com/toftmakemore/makemoreV2/render"
	"github.com/toftmakemore/makemoreV2/scheduler"
	"github.com/toftmakemore/makemoreV2/services"
	"github.com/toftmakemore/makemoreV2/storage"
	"github.com/toftmakemore/makemoreV2/workers"
)

var (
	runNow = flag.Bool("run", false, "Run the pipeline once and exit")
)

func main() {
	flag.Parse()
	log.SetFlags(log.LstdFlags | log.Lshortfile)

	logFile, err := logging.Setup("daemon.log")
	if err != nil {
		log.Printf("Warning: could not set up file logging: %v", err)
	} else {
		defer logFile.Close()
	}

	log.Println("Starting makemore engine...")

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	log.Printf("Loaded %d source configs", len(cfg.Sources))
	for id, source := range cfg.Sources {
		log.Printf("  - %s (%s)", source.Name, id)
	}

	clients := httputil.NewClients()

	ctx := context.Background()

	if err := storage.RunMigrations(cfg.Database.URL); err != nil {
		log.Fatalf("Migrations failed: %v", err)
	}

	pgStore, err := storage.NewPostgresStore(ctx, cfg.Database.URL)
	if err != nil {
		log.Fatalf("Failed to connect to Postgres: %v", err)
	}
	defer pgStore.Close()
	log.Printf("Connected to Postgres: %s", maskConnectionString(cfg.Database.URL))

	sqliteStore, err := storage.NewSQLiteStore(cfg.OpsDBPath)
	if err != nil {
		log.Fatalf("Failed to open SQLite: %v", err)
	}
	defer sqliteStore.Close()
	log.Printf("Ops database: %s", cfg.OpsDBPath)

	// Asset pipeline: render via Robolly, re-host on S3. Without S3 config
	// the signed render links are used directly.
	var uploader workers.Uploader
	if cfg.S3.Bucket != "" {
		s3Uploader, err := storage.NewS3Uploader(ctx, cfg.S3)
		if err != nil {
			log.Fatalf("Failed to init S3 uploader: %v", err)
		}
		uploader = s3Uploader
		log.Printf("S3 uploads to bucket %s", cfg.S3.Bucket)
	} else {
		uploader = workers.NewNoOpUploader()
		log.Println("S3 not configured, using render links directly")
	}

	assetWorker := workers.NewAssetWorker(cfg.Robolly.APIKey, clients.Assets, uploader)
	renderQueue := render.NewQueue(assetWorker, cfg.Robolly.RequestDelay, cfg.Robolly.RequestTimeout)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	renderQueue.Start(ctx)

	categoryService := services.NewCategoryService(pgStore)
	forwarder := services.NewForwarder(cfg.Forward.URL, clients.Inventory)
	autopostService := services.NewAutoPostService(renderQueue, pgStore, forwarder)

	orchestrator := pipeline.NewOrchestrator(cfg, sqliteStore, pgStore, categoryService, autopostService)

	if *runNow {
		log.Println("Running pipeline...")
		if err := orchestrator.RunAll(ctx); err != nil {
			log.Fatalf("Pipeline failed: %v", err)
		}
		log.Println("Pipeline complete!")
		return
	}

	sched, err := scheduler.New(cfg, orchestrator, sqliteStore)
	if err != nil {
		log.Fatalf("Failed to create scheduler: %v", err)
	}
	if err := sched.Start(ctx); err != nil {
		log.Fatalf("Failed to start scheduler: %v", err)
	}

	log.Println("Daemon running. Press Ctrl+C to stop.")

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	log.Println("Shutting down...")
	sched.Stop()
	log.Println("Goodbye!")
}

// maskConnectionString masks the password in a connection string for logging.
func maskConnectionString(connStr string) string {
	start := 0
	for i := 0; i < len(connStr)-3; i++ {
		if connStr[i:i+3] == "://" {
			start = i + 3
			break
		}
	}
	if start == 0 {
		return connStr
	}

	colonIdx := -1
	atIdx := -1
	for i := start; i < len(connStr); i++ {
		if connStr[i] == ':' && colonIdx == -1 {
			colonIdx = i
		}
		if connStr[i] == '@' {
			atIdx = i
			break
		}
	}

	if colonIdx > 0 && atIdx > colonIdx {
		return connStr[:colonIdx+1] + "****" + connStr[atIdx:]
	}
	return connStr
}
