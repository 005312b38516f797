package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/banshee-data/spike.report/internal/config"
	"github.com/banshee-data/spike.report/internal/db"
	"github.com/banshee-data/spike.report/internal/spike"
	"github.com/banshee-data/spike.report/internal/spike/monitor"
	storage "github.com/banshee-data/spike.report/internal/spike/storage/sqlite"
	"github.com/banshee-data/spike.report/internal/version"
)

var (
	listen        = flag.String("listen", ":8080", "Listen address")
	dbPath        = flag.String("db-path", "spikes.db", "Path to the analysis database")
	recordingsDir = flag.String("recordings", "recordings", "Folder holding CSV recordings")
	exportDir     = flag.String("exports", "exports", "Folder stat exports are written to")
	configPath    = flag.String("config", config.DefaultConfigPath, "Detection defaults JSON file")
	migrationsDir = flag.String("migrations", "migrations", "Path to migrations directory")
)

func main() {
	flag.Parse()

	// Subcommand dispatch: `spike-report migrate <up|down|status|force>`.
	if args := flag.Args(); len(args) > 0 && args[0] == "migrate" {
		db.RunMigrateCommand(args[1:], *dbPath, *migrationsDir)
		return
	}

	if *listen == "" {
		log.Fatal("Listen address is required")
	}
	log.Printf("spike-report %s (%s, built %s)", version.Version, version.GitSHA, version.BuildTime)

	defaults := config.EmptyDetectionDefaults()
	if _, err := os.Stat(*configPath); err == nil {
		defaults, err = config.LoadDetectionDefaults(*configPath)
		if err != nil {
			log.Fatalf("Failed to load detection defaults: %v", err)
		}
		log.Printf("Loaded detection defaults from %s", *configPath)
	} else {
		log.Printf("No defaults file at %s, using built-in defaults", *configPath)
	}

	database, err := db.NewDB(*dbPath)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer database.Close()

	// Migrations are idempotent; applying at startup keeps a fresh checkout
	// runnable without a separate migrate step.
	if err := database.MigrateUp(*migrationsDir); err != nil {
		log.Fatalf("Failed to apply migrations: %v", err)
	}

	for _, dir := range []string{*recordingsDir, *exportDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			log.Fatalf("Failed to create %s: %v", dir, err)
		}
	}

	ws := monitor.NewWebServer(monitor.WebServerConfig{
		Address:       *listen,
		Session:       spike.NewSession(),
		Store:         storage.NewAnalysisStore(database.DB),
		DB:            database,
		Defaults:      defaults,
		RecordingsDir: *recordingsDir,
		ExportDir:     *exportDir,
	})

	var wg sync.WaitGroup
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := ws.Start(ctx); err != nil {
			log.Printf("web server error: %v", err)
		}
	}()

	wg.Wait()
	log.Printf("Graceful shutdown complete")
}
