package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"photodex/internal/catalog"
	"photodex/internal/database"
	"photodex/internal/geocode"
	"photodex/internal/handlers"
	"photodex/internal/importer"
	"photodex/internal/jobs"
	"photodex/internal/logging"
	"photodex/internal/media"
	"photodex/internal/metrics"
	"photodex/internal/middleware"
	"photodex/internal/scanner"
	"photodex/internal/startup"
	"photodex/internal/workers"
)

const defaultCatalog = "master"

func main() {
	startTime := time.Now()
	ctx := context.Background()

	config, err := startup.LoadConfig()
	if err != nil {
		logging.Fatal("Configuration error: %v", err)
	}

	metrics.InitializeMetrics()

	// Initialize database
	dbStart := time.Now()
	db, err := database.New(ctx, config.DatabasePath)
	if err != nil {
		logging.Fatal("Failed to initialize database: %v", err)
	}
	defer db.Close()
	logging.Info("Database ready in %v", time.Since(dbStart))

	catalogID, err := db.EnsureCatalog(ctx, defaultCatalog, "library")
	if err != nil {
		logging.Fatal("Failed to ensure default catalog: %v", err)
	}

	// Wire the ingestion pipeline
	deriv := media.NewGenerator(config.DerivRoot)
	geo := geocode.NewResolver(config.Geocode, db)
	pipeline := scanner.NewPipeline(db, catalog.NewCataloger(db), deriv, geo)
	sc := scanner.New(pipeline, config.PhotoExts)
	im := importer.New(sc, pipeline)

	// Job runner: pool sized for I/O-bound work, overridable via env
	workerCount := config.JobWorkers
	if workerCount <= 0 {
		workerCount = workers.ForIO(16)
	}
	runner := jobs.NewRunner(db, sc, im, deriv, jobs.Roots{
		PhotoRoot:  config.PhotoRoot,
		ImportRoot: config.ImportRoot,
		FailedRoot: config.FailedRoot,
	}, workerCount)
	runner.Start(ctx)

	// Periodically refresh DB connection metrics
	go func() {
		ticker := time.NewTicker(30 * time.Second)
		defer ticker.Stop()
		for range ticker.C {
			db.UpdateDBMetrics()
		}
	}()

	// Setup router. The metrics middleware runs inside the router so it
	// sees the matched route and can label by its path template.
	router := mux.NewRouter()
	router.Use(middleware.Metrics(middleware.DefaultMetricsConfig()))
	api := handlers.New(runner, catalogID, config.PhotoRoot).
		WithReadyCheck(func() error { return db.Healthy(context.Background()) })
	api.Register(router)

	loggingConfig := middleware.DefaultLoggingConfig()
	loggingConfig.LogHealthChecks = config.LogHealthChecks
	handler := middleware.Logger(loggingConfig)(router)

	srv := &http.Server{
		Addr:         ":" + config.Port,
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	var metricsSrv *http.Server
	if config.MetricsEnabled {
		metricsMux := http.NewServeMux()
		metricsMux.Handle("/metrics", promhttp.Handler())
		metricsSrv = &http.Server{
			Addr:    ":" + config.MetricsPort,
			Handler: metricsMux,
		}
		go func() {
			if err := metricsSrv.ListenAndServe(); err != http.ErrServerClosed {
				logging.Error("Metrics server error: %v", err)
			}
		}()
	}

	go handleShutdown(srv, metricsSrv, runner)

	startup.LogServerStarted(startup.ServerConfig{
		Port:            config.Port,
		MetricsPort:     config.MetricsPort,
		MetricsEnabled:  config.MetricsEnabled,
		StartupDuration: time.Since(startTime),
	})
	if err := srv.ListenAndServe(); err != http.ErrServerClosed {
		logging.Fatal("Server error: %v", err)
	}
}

func handleShutdown(srv, metricsSrv *http.Server, runner *jobs.Runner) {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigChan

	startup.LogShutdownInitiated(sig.String())

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	// The HTTP server drains first so no submission races the queue close.
	if err := srv.Shutdown(ctx); err != nil {
		logging.Warn("Server shutdown error: %v", err)
	} else {
		startup.LogShutdownStepComplete("HTTP server stopped")
	}

	runner.Stop()
	startup.LogShutdownStepComplete("Job runner stopped")

	if metricsSrv != nil {
		if err := metricsSrv.Shutdown(ctx); err != nil {
			logging.Warn("Metrics server shutdown error: %v", err)
		} else {
			startup.LogShutdownStepComplete("Metrics server stopped")
		}
	}

	startup.LogShutdownComplete()
}
