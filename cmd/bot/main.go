package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/fleetops/fleetbot/internal/bot"
	"github.com/fleetops/fleetbot/internal/core/flow"
	"github.com/fleetops/fleetbot/internal/core/service"
	"github.com/fleetops/fleetbot/internal/infrastructure/config"
	mongodb "github.com/fleetops/fleetbot/internal/infrastructure/db/mongo"
	redisdb "github.com/fleetops/fleetbot/internal/infrastructure/db/redis"
	"github.com/fleetops/fleetbot/internal/infrastructure/queue"
	"github.com/fleetops/fleetbot/internal/infrastructure/telegram"
	"github.com/fleetops/fleetbot/internal/ops"
	"github.com/fleetops/fleetbot/internal/reports"
	"github.com/fleetops/fleetbot/pkg/logger"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load(ctx)
	if err != nil {
		fmt.Fprintln(os.Stderr, "fleetbot:", err)
		os.Exit(1)
	}

	log := logger.Init(logger.Options{
		Level:  cfg.LogLevel,
		Pretty: cfg.Env == "development",
	})
	log.Info().Str("env", cfg.Env).Msg("starting fleetbot")

	// --- Storage ---
	client, db, err := mongodb.Connect(ctx, mongodb.Config{
		URI:      cfg.Mongo.URI,
		Database: cfg.Mongo.Database,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("mongodb connection failed")
	}
	defer func() { _ = client.Disconnect(context.Background()) }()

	userRepo := mongodb.NewUserRepository(db)
	vehicleRepo := mongodb.NewVehicleRepository(db)
	serviceRepo := mongodb.NewServiceRepository(db)
	if err := vehicleRepo.EnsureIndexes(ctx); err != nil {
		log.Fatal().Err(err).Msg("failed to create vehicle indexes")
	}
	if err := serviceRepo.EnsureIndexes(ctx); err != nil {
		log.Fatal().Err(err).Msg("failed to create service indexes")
	}

	rdb, err := redisdb.Connect(ctx, redisdb.Config{
		Addr: cfg.Redis.Addr,
		DB:   cfg.Redis.DB,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("redis connection failed")
	}
	defer func() { _ = rdb.Close() }()

	// --- Messaging ---
	gw, err := telegram.New(cfg.BotToken, log)
	if err != nil {
		log.Fatal().Err(err).Msg("telegram authorization failed")
	}

	// --- Core services ---
	notifier := bot.NewNotifier(gw, log)
	userSvc := service.NewUserService(userRepo, log)
	fleetSvc := service.NewFleetService(vehicleRepo, log)
	maintSvc := service.NewMaintenanceService(serviceRepo, notifier, log)
	reportSvc := service.NewReportService(serviceRepo, log)

	engine := flow.NewEngine(redisdb.NewFlowStore(rdb), fleetSvc, maintSvc, userSvc, gw, log)
	router := bot.NewRouter(gw, userSvc, fleetSvc, maintSvc, reportSvc, engine, log)

	dispatcher := queue.NewDispatcher(cfg.Workers, router, log)
	dispatcher.Start(ctx)

	// --- Monthly report push ---
	scheduler := reports.NewScheduler(reportSvc, userSvc, gw, log)
	if err := scheduler.Start(); err != nil {
		log.Fatal().Err(err).Msg("failed to schedule monthly report push")
	}
	defer scheduler.Stop()

	// --- Ops HTTP surface ---
	opsServer := ops.NewServer(db, rdb)
	go func() {
		if err := opsServer.Start(":" + cfg.OpsPort); err != nil {
			log.Warn().Err(err).Msg("ops server stopped")
		}
	}()
	defer func() { _ = opsServer.Shutdown(context.Background()) }()

	log.Info().Int("workers", cfg.Workers).Msg("fleetbot is running")
	for u := range gw.Updates(ctx) {
		dispatcher.Enqueue(u)
	}
	log.Info().Msg("shutting down")
}
