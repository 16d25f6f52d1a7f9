package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/labstack/echo/v4"
	"golang.org/x/sync/errgroup"

	"github.com/iliyamo/event-capacity-reservation/internal/config"
	"github.com/iliyamo/event-capacity-reservation/internal/database"
	"github.com/iliyamo/event-capacity-reservation/internal/handler"
	"github.com/iliyamo/event-capacity-reservation/internal/queue"
	"github.com/iliyamo/event-capacity-reservation/internal/repository"
	"github.com/iliyamo/event-capacity-reservation/internal/router"
	"github.com/iliyamo/event-capacity-reservation/internal/service"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Printf("no .env file loaded: %v", err)
	}
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, dialect, err := database.Open(cfg.DB)
	if err != nil {
		log.Fatalf("database: %v", err)
	}
	defer db.Close()
	if err := database.Migrate(ctx, db, dialect); err != nil {
		log.Fatalf("migrate: %v", err)
	}

	rdb := config.NewRedisClient()
	if rdb == nil {
		log.Printf("redis unavailable: rate limiting and caching disabled, hold warnings deduplicated in-process")
	} else {
		defer rdb.Close()
	}

	var notifier service.Notifier = service.LogNotifier{}
	if cfg.RabbitMQURL != "" {
		amqpNotifier := service.NewAMQPNotifier(cfg.RabbitMQURL)
		defer amqpNotifier.Close()
		notifier = service.MultiNotifier{amqpNotifier, service.LogNotifier{}}
	}

	events := repository.NewEventRepo(db, dialect)
	requests := repository.NewJoinRequestRepo(db, dialect)
	participants := repository.NewParticipantRepo(db, dialect)
	availability := repository.NewAvailabilityRepo(db, dialect)
	svc := service.NewRequestService(events, requests, participants, availability, notifier, cfg.Reservation)

	var dedupe service.Deduper
	if rdb != nil {
		dedupe = service.NewRedisDeduper(rdb, "reservations:")
	}
	sweeper := service.NewHoldSweeper(requests, notifier, dedupe, cfg.Reservation)
	if err := sweeper.Start(); err != nil {
		log.Fatalf("sweeper: %v", err)
	}
	defer func() {
		if err := sweeper.Stop(); err != nil {
			log.Printf("sweeper stop: %v", err)
		}
	}()

	e := echo.New()
	e.HideBanner = true
	router.Register(e, router.Deps{
		DB:        db,
		Guest:     handler.NewGuestHandler(svc),
		Host:      handler.NewHostHandler(svc),
		JWTSecret: cfg.JWTSecret,
		Redis:     rdb,
		RateLimit: config.LoadRateLimitConfig(),
		Cache:     config.LoadCacheConfig(),
	})

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		addr := ":" + cfg.Port
		log.Printf("listening on %s (env=%s, db=%s)", addr, cfg.Env, dialect.Name)
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return e.Shutdown(shutdownCtx)
	})
	if cfg.NotifyConsumerEnabled && cfg.RabbitMQURL != "" {
		g.Go(func() error {
			err := queue.StartNotificationConsumer(gctx, cfg.RabbitMQURL, cfg.NotificationLogDir)
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		})
	}

	if err := g.Wait(); err != nil {
		log.Printf("server stopped: %v", err)
	}
}
