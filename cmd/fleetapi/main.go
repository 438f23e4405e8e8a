package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rideops/fleet-backoffice/internal/api"
	"github.com/rideops/fleet-backoffice/internal/api/handler"
	"github.com/rideops/fleet-backoffice/internal/core/service"
	"github.com/rideops/fleet-backoffice/internal/infrastructure/db/mongo"
	"github.com/rideops/fleet-backoffice/internal/infrastructure/db/redis"
	"github.com/rideops/fleet-backoffice/internal/infrastructure/storage"
	"github.com/rideops/fleet-backoffice/internal/pkg/config"
	fleet "github.com/rideops/fleet-backoffice/pkg/domain"
	"github.com/rideops/fleet-backoffice/pkg/logger"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.LoadServer(ctx)
	if err != nil {
		l := logger.Init(logger.Options{Service: "fleetapi"})
		l.Fatal().Err(err).Msg("failed to load configuration")
	}

	log := logger.Init(logger.Options{
		Level:   cfg.LogLevel,
		Pretty:  !cfg.Production(),
		Service: "fleetapi",
	})

	mongoClient, db, err := mongo.Connect(ctx, mongo.Config{URI: cfg.Mongo.URI, Database: cfg.Mongo.Database})
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to mongodb")
	}
	defer func() {
		dctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = mongoClient.Disconnect(dctx)
	}()

	rdb, err := redis.Connect(ctx, redis.Config{Addr: cfg.Redis.Addr, Password: cfg.Redis.Password, DB: cfg.Redis.DB})
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to redis")
	}
	defer rdb.Close()

	repos := mongo.NewRepositories(db)
	if err := mongo.EnsureIndexes(ctx, repos.Indexers()...); err != nil {
		log.Fatal().Err(err).Msg("failed to create indexes")
	}

	files, err := storage.NewLocal(cfg.UploadDir, cfg.PublicURL+"/uploads")
	if err != nil {
		log.Fatal().Err(err).Msg("failed to prepare upload directory")
	}

	svcLog := logger.Named("service")
	tokens := service.NewTokens(cfg.JWTSecret, cfg.TokenTTL, redis.NewRevocationList(rdb), svcLog)

	vehicles := service.NewResourceService[fleet.Vehicle, *fleet.Vehicle]("vehicles", repos.Vehicles, repos.Audit, svcLog)
	drivers := service.NewResourceService[fleet.Driver, *fleet.Driver]("drivers", repos.Drivers, repos.Audit, svcLog)
	schedules := service.NewResourceService[fleet.Schedule, *fleet.Schedule]("schedules", repos.Schedules, repos.Audit, svcLog)
	payments := service.NewResourceService[fleet.Payment, *fleet.Payment]("payments", repos.Payments, repos.Audit, svcLog)
	documents := service.NewResourceService[fleet.Document, *fleet.Document]("documents", repos.Documents, repos.Audit, svcLog)
	media := service.NewResourceService[fleet.Media, *fleet.Media]("media", repos.Media, repos.Audit, svcLog)
	notifications := service.NewResourceService[fleet.Notification, *fleet.Notification]("notifications", repos.Notifications, repos.Audit, svcLog)

	e := api.NewRouter(api.Deps{
		Log:           logger.Named("http"),
		Auth:          service.NewAuthService(repos.Users, tokens, svcLog),
		Vehicles:      vehicles,
		Drivers:       drivers,
		Schedules:     schedules,
		Payments:      payments,
		Documents:     documents,
		Media:         media,
		Notifications: service.NewNotificationService(notifications),
		Uploads:       service.NewUploadService(files, media, documents, vehicles, drivers, svcLog),
		UploadDir:     files.Dir(),
		Health: map[string]handler.Pinger{
			"mongodb": handler.MongoPinger(db),
			"redis":   handler.RedisPinger(rdb),
		},
	})

	go func() {
		log.Info().Str("port", cfg.Port).Str("env", cfg.Env).Msg("fleetapi started")
		if err := e.Start(":" + cfg.Port); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("http server failed")
		}
	}()

	<-ctx.Done()
	log.Info().Msg("shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := e.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("graceful shutdown failed")
		return
	}
	log.Info().Msg("fleetapi stopped cleanly")
}
