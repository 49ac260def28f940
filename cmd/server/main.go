package main

import (
	"context"
	"log"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/example/storefront/internal/analytics"
	"github.com/example/storefront/internal/config"
	"github.com/example/storefront/internal/database"
	"github.com/example/storefront/internal/middleware"
	"github.com/example/storefront/internal/notify"
	"github.com/example/storefront/internal/pages"
	"github.com/example/storefront/internal/persist"
	"github.com/example/storefront/internal/routes"
	"github.com/example/storefront/internal/sdk"
	"github.com/example/storefront/internal/session"
)

const (
	sweepInterval = 5 * time.Minute
	analyticsBuf  = 1024
)

func main() {
	cfg := config.Load()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	client := sdk.New(sdk.Config{
		BaseURL:   cfg.APIBaseURL,
		PublicKey: cfg.PublicKey,
		SecretKey: cfg.SecretKey,
		Timeout:   cfg.SDKTimeout,
	})

	var storage persist.Storage
	if cfg.DatabaseURL != "" {
		storage = persist.NewGormStorage(database.Connect(cfg.DatabaseURL, cfg.IsDevelopment()))
	} else {
		log.Println("DATABASE_URL not set, keeping client state in memory")
		storage = persist.NewMemoryStorage()
	}

	var tracker analytics.Tracker = analytics.LogTracker{}
	var kafkaTracker *analytics.KafkaTracker
	if len(cfg.KafkaBrokers) > 0 {
		kafkaTracker = analytics.NewKafkaTracker(cfg.KafkaBrokers, cfg.AnalyticsTopic, analyticsBuf)
		kafkaTracker.Start(ctx)
		tracker = kafkaTracker
	}

	hub := notify.NewHub()
	var publisher notify.Publisher = hub
	var sessions *session.Manager
	var broadcaster *notify.RedisBroadcaster
	if cfg.RedisAddr != "" {
		rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr, Password: cfg.RedisPassword})
		if err := rdb.Ping(ctx).Err(); err != nil {
			log.Fatalf("redis ping failed: %v", err)
		}
		defer rdb.Close()

		broadcaster = notify.NewRedisBroadcaster(rdb, hub, uuid.NewString(), func(change notify.Change) {
			sessions.ReloadAsync(change.SessionID)
		})
		publisher = broadcaster
	}

	sessions = session.NewManager(session.Options{
		Client:    client,
		Storage:   storage,
		Publisher: publisher,
		Tracker:   tracker,
		IDs: analytics.IDs{
			FacebookPixelID: cfg.FacebookPixelID,
			GTMID:           cfg.GTMID,
		},
	})
	if broadcaster != nil {
		go broadcaster.Run(ctx)
	}
	go sessions.RunSweeper(ctx, sweepInterval, cfg.SessionIdle, cfg.SessionTTL)

	app := fiber.New(fiber.Config{
		AppName:      "Storefront",
		ErrorHandler: middleware.ErrorHandler,
	})

	app.Use(recover.New())
	app.Use(logger.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins:     cfg.AllowedOrigins,
		AllowHeaders:     "Origin, Content-Type, Accept, " + middleware.SessionHeader,
		ExposeHeaders:    middleware.SessionHeader,
		AllowCredentials: cfg.AllowedOrigins != "*",
	}))

	routes.Register(app, routes.Deps{
		Config:   cfg,
		Sessions: sessions,
		Pages:    pages.NewService(client),
		Hub:      hub,
		Shutdown: ctx,
	})

	go func() {
		<-ctx.Done()
		log.Println("Shutting down server")
		if err := app.ShutdownWithTimeout(10 * time.Second); err != nil {
			log.Printf("fiber.Shutdown error: %v", err)
		}
	}()

	log.Printf("Starting server on :%s", cfg.AppPort)
	if err := app.Listen(":" + cfg.AppPort); err != nil {
		log.Fatalf("fiber.Listen error: %v", err)
	}

	if kafkaTracker != nil {
		kafkaTracker.WaitClosed()
	}
}
