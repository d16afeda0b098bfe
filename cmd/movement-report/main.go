// Command movement-report is the wildlife movement analytics service: it
// imports GPS tracking CSVs into SQLite and serves the analysis API and
// charts over HTTP.
//
// Usage:
//
//	movement-report [flags] serve
//	movement-report [flags] import <file.csv> [more.csv ...]
//	movement-report [flags] migrate <up|down|status|force>
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/wildtrack-data/movement.report/internal/config"
	"github.com/wildtrack-data/movement.report/internal/db"
	"github.com/wildtrack-data/movement.report/internal/geo"
	"github.com/wildtrack-data/movement.report/internal/report"
	"github.com/wildtrack-data/movement.report/internal/trackdb"
)

var (
	configPath = flag.String("config", "", "Path to JSON config file (optional)")
	dbPath     = flag.String("db", "", "Path to the SQLite database file (overrides config)")
	listen     = flag.String("listen", "", "HTTP listen address (overrides config)")
	migrations = flag.String("migrations", "", "Path to the migrations directory (overrides config)")
)

func main() {
	flag.Parse()

	cfg := config.Empty()
	if *configPath != "" {
		var err error
		cfg, err = config.Load(*configPath)
		if err != nil {
			log.Fatalf("Failed to load config: %v", err)
		}
	}
	if *dbPath != "" {
		cfg.DatabasePath = dbPath
	}
	if *listen != "" {
		cfg.ListenAddr = listen
	}
	if *migrations != "" {
		cfg.MigrationsDir = migrations
	}

	args := flag.Args()
	command := "serve"
	if len(args) > 0 {
		command = args[0]
	}

	switch command {
	case "serve":
		runServe(cfg)
	case "import":
		if len(args) < 2 {
			log.Fatal("Usage: movement-report import <file.csv> [more.csv ...]")
		}
		runImport(cfg, args[1:])
	case "migrate":
		db.RunMigrateCommand(args[1:], cfg.GetDatabasePath(), cfg.GetMigrationsDir())
	case "help":
		flag.Usage()
	default:
		fmt.Printf("Unknown command: %s\n\n", command)
		flag.Usage()
		os.Exit(1)
	}
}

func openDB(cfg *config.AnalysisConfig) *db.DB {
	database, err := db.New(cfg.GetDatabasePath())
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	if err := database.CheckMigrations(cfg.GetMigrationsDir()); err != nil {
		log.Fatalf("Schema check failed: %v", err)
	}
	return database
}

func runImport(cfg *config.AnalysisConfig, paths []string) {
	database := openDB(cfg)
	defer database.Close()

	importer := &trackdb.Importer{
		Store: trackdb.NewFixStore(database),
		Proj:  geo.MustByCode(cfg.GetSourceCRS()),
		Loc:   cfg.GetLocation(),
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	for _, path := range paths {
		batch, err := importer.ImportCSV(ctx, path)
		if err != nil {
			log.Fatalf("Import of %s failed: %v", path, err)
		}
		fmt.Printf("%s: %d fixes imported, %d rows dropped (batch %s)\n",
			path, batch.RowCount, batch.DroppedCount, batch.ID)
	}
}

func runServe(cfg *config.AnalysisConfig) {
	database := openDB(cfg)
	defer database.Close()

	store := trackdb.NewFixStore(database)
	srv := report.NewServer(store, cfg)

	server := &http.Server{
		Addr:    cfg.GetListenAddr(),
		Handler: report.LoggingMiddleware(srv.ServeMux()),
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go func() {
		log.Printf("movement-report listening on %s", cfg.GetListenAddr())
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("failed to start server: %v", err)
		}
	}()

	<-ctx.Done()
	log.Println("shutting down HTTP server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("HTTP server shutdown error: %v", err)
	}
	log.Println("Graceful shutdown complete")
}
