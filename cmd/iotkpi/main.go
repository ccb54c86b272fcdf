package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/tulaskaratul/IoT-KPI-Dashboard/internal/collector"
	"github.com/tulaskaratul/IoT-KPI-Dashboard/internal/config"
	"github.com/tulaskaratul/IoT-KPI-Dashboard/internal/core/storage/postgres"
	"github.com/tulaskaratul/IoT-KPI-Dashboard/internal/devices"
	"github.com/tulaskaratul/IoT-KPI-Dashboard/internal/ingestion"
	"github.com/tulaskaratul/IoT-KPI-Dashboard/internal/kpi"
	"github.com/tulaskaratul/IoT-KPI-Dashboard/internal/migrations"
	"github.com/tulaskaratul/IoT-KPI-Dashboard/internal/rollup"
	"github.com/tulaskaratul/IoT-KPI-Dashboard/internal/server"
)

func main() {
	configPath := flag.String("config", "iotkpi.yaml", "Path to configuration file")
	flag.Parse()

	// 0. Initialize Logger
	logger := slog.New(slog.NewTextHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	// 1. Load Configuration
	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("Failed to load config", "error", err)
		os.Exit(1)
	}

	schedule, err := cfg.ParseSchedule()
	if err != nil {
		slog.Error("Invalid schedule configuration", "error", err)
		os.Exit(1)
	}

	// 2. Initialize Storage (PostgreSQL)
	telemetryStore, err := postgres.NewTelemetryAdapter(
		cfg.Database.DSN,
		cfg.Database.MaxOpenConns,
		cfg.Database.MaxIdleConns,
	)
	if err != nil {
		slog.Error("Failed to initialize database", "error", err)
		os.Exit(1)
	}
	defer telemetryStore.Close()

	// 2.1. Run Database Migrations
	if err := migrations.RunMigrations(telemetryStore.DB(), cfg.Database.AutoMigrate); err != nil {
		slog.Error("Failed to run database migrations", "error", err)
		os.Exit(1)
	}
	if err := telemetryStore.ValidateSchema(); err != nil {
		slog.Error("Database schema validation failed", "error", err)
		os.Exit(1)
	}

	rollupStore := postgres.NewRollupAdapter(telemetryStore.DB())
	deviceStore := postgres.NewDeviceAdapter(telemetryStore.DB())
	kpiStore := postgres.NewKPIAdapter(telemetryStore.DB())

	// 3. Initialize the rollup pipeline (collect → aggregate → sweep)
	aggregator := rollup.NewAggregator(telemetryStore, rollupStore, rollup.Options{
		WindowSize:      schedule.WindowSize,
		StaleThreshold:  schedule.StaleThreshold,
		LookbackWindows: cfg.Rollup.LookbackWindows,
		WorkerCount:     cfg.Rollup.WorkerCount,
		UpsertRetries:   cfg.Rollup.UpsertRetries,
	})

	var sweeper *rollup.Sweeper
	if cfg.Retention.Enabled {
		sweeper = rollup.NewSweeper(telemetryStore, schedule.RetentionAge, schedule.Lookback)
	} else {
		slog.Info("Retention sweeping disabled by config")
	}

	var puller rollup.SamplePuller
	if cfg.Collector.Enabled {
		timeout, err := time.ParseDuration(cfg.Collector.RequestTimeout)
		if err != nil {
			slog.Error("Invalid collector request timeout", "value", cfg.Collector.RequestTimeout, "error", err)
			os.Exit(1)
		}
		client := collector.NewClient(cfg.Collector.BaseURL, cfg.Collector.APIKey, cfg.Collector.PageSize, timeout)
		puller = collector.New(client, telemetryStore, deviceStore, schedule.CronInterval)
	} else {
		slog.Info("Remote collector disabled by config")
	}

	scheduler := rollup.NewScheduler(schedule.CronInterval, puller, aggregator, sweeper)

	slog.Info("Rollup scheduler initialized",
		"interval", schedule.CronInterval,
		"enabled", cfg.Rollup.Enabled,
		"window_size", schedule.WindowSize,
		"stale_threshold", schedule.StaleThreshold,
		"lookback_windows", cfg.Rollup.LookbackWindows,
		"worker_count", cfg.Rollup.WorkerCount,
	)

	// 4. Initialize HTTP services
	ingestionSvc := ingestion.NewService(telemetryStore, deviceStore, cfg.Server.MaxBodySizeMB)
	deviceSvc := devices.NewService(deviceStore)
	kpiSvc := kpi.NewService(rollupStore, deviceStore, kpiStore, cfg.KPI.UptimeThreshold)

	// 5. Initialize Server
	srv := server.New(fmtAddr(cfg.Server.Host, cfg.Server.Port), telemetryStore.DB(), cfg.Server.Mode)
	ingestionSvc.RegisterRoutes(srv.Engine)
	deviceSvc.RegisterRoutes(srv.Engine)
	kpiSvc.RegisterRoutes(srv.Engine)

	// 6. Start Services
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if cfg.Rollup.Enabled {
		go func() {
			if err := scheduler.Start(ctx); err != nil {
				slog.Error("Scheduler stopped with error", "error", err)
			}
		}()
	} else {
		slog.Info("Rollup scheduler disabled by config")
	}

	// Signal handler triggers the shutdown sequence below.
	go func() {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
		<-quit
		slog.Info("Signal received, shutting down...")
		cancel()
	}()

	// HTTP server blocks until ctx is cancelled.
	if err := srv.Run(ctx); err != nil {
		slog.Error("Server stopped with error", "error", err)
	}

	slog.Info("Shutdown complete")
}

func fmtAddr(host string, port int) string {
	return fmt.Sprintf("%s:%d", host, port)
}
