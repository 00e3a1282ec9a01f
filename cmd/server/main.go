package main // Entry point package

import (
	"context"
	"errors"
	"log" // Logging library
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4" // Echo web framework
	echomw "github.com/labstack/echo/v4/middleware"

	"github.com/iliyamo/parking-reservation/internal/cache"
	"github.com/iliyamo/parking-reservation/internal/config" // Internal config loader
	"github.com/iliyamo/parking-reservation/internal/database"
	"github.com/iliyamo/parking-reservation/internal/handler"
	"github.com/iliyamo/parking-reservation/internal/middleware"
	"github.com/iliyamo/parking-reservation/internal/queue"
	"github.com/iliyamo/parking-reservation/internal/repository"
	"github.com/iliyamo/parking-reservation/internal/router" // Internal router setup
	"github.com/iliyamo/parking-reservation/internal/service"
	"github.com/iliyamo/parking-reservation/internal/utils"
)

func main() {
	config.LoadDotEnv()
	cfg := config.Load() // Load environment config

	zone, err := utils.LoadZone(cfg.TimeZone)
	if err != nil {
		log.Fatal(err)
	}

	db, err := database.Open(database.Options{
		Driver: cfg.DBDriver,
		User:   cfg.DBUser,
		Pass:   cfg.DBPass,
		Host:   cfg.DBHost,
		Port:   cfg.DBPort,
		Name:   cfg.DBName,
	})
	if err != nil {
		log.Fatalf("database: %v", err)
	}
	defer db.Close()

	rdb := config.NewRedisClient() // nil disables rate limit and cache
	cacheCfg := config.LoadCacheConfig()
	invalidator := cache.NewInvalidator(rdb, cacheCfg.Prefix)

	bgCtx, stopBackground := context.WithCancel(context.Background())
	var wg sync.WaitGroup

	// audit: publisher used by the services, consumer writing the sinks
	publisher := queue.NewPublisher(cfg.Audit.RabbitURL, cfg.Audit.Queue, 1024)
	sinks := []queue.Sink{queue.NewFileSink(cfg.Audit.LogDir)}
	if cfg.Audit.MongoURI != "" {
		mctx, cancel := context.WithTimeout(bgCtx, 10*time.Second)
		ms, err := queue.NewMongoSink(mctx, cfg.Audit.MongoURI, cfg.Audit.MongoDB)
		cancel()
		if err != nil {
			log.Printf("audit: mongo sink disabled: %v", err)
		} else {
			sinks = append(sinks, ms)
			defer func() { _ = ms.Close(context.Background()) }()
		}
	}
	wg.Add(2)
	go func() {
		defer wg.Done()
		publisher.Run(bgCtx)
	}()
	go func() {
		defer wg.Done()
		_ = queue.StartAuditConsumer(bgCtx, cfg.Audit.RabbitURL, cfg.Audit.Queue, sinks...)
	}()

	parkings := repository.NewParkingRepo(db)
	store := repository.NewSQLReservationStore(parkings, repository.NewReservationRepo(db))
	reservations := service.NewReservationService(store, zone, publisher, invalidator)

	if cfg.Sweeper.Enabled {
		sweeper := service.NewNoShowSweeper(store, zone, cfg.Sweeper.Grace, publisher, invalidator)
		c, err := sweeper.Schedule(bgCtx, cfg.Sweeper.Schedule)
		if err != nil {
			log.Fatalf("sweeper: %v", err)
		}
		c.Start()
		defer func() { <-c.Stop().Done() }()
	}

	e := echo.New() // Create Echo instance
	e.HideBanner = true
	e.HTTPErrorHandler = handler.HTTPErrorHandler
	e.Use(echomw.Recover())
	e.Use(echomw.RequestIDWithConfig(echomw.RequestIDConfig{Generator: uuid.NewString}))
	e.Use(echomw.Logger())
	e.Use(middleware.NewTokenBucket(config.LoadRateLimitConfig(), rdb))

	resHandler := handler.NewReservationHandler(reservations)
	router.RegisterRoutes(e, db)
	router.RegisterAuth(e, handler.NewAuthHandler(cfg, repository.NewUserRepo(db), repository.NewTokenRepo(db)), cfg.JWTSecret)
	router.RegisterReservations(e, resHandler, cfg.JWTSecret, middleware.NewRedisCache(cacheCfg, rdb))
	router.RegisterParkings(e, handler.NewParkingHandler(parkings, invalidator), resHandler, cfg.JWTSecret)

	addr := ":" + cfg.Port // Address string with port
	log.Printf("listening on %s (env=%s, tz=%s, db=%s)", addr, cfg.Env, zone.Name(), cfg.DBDriver)

	go func() {
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal(err) // Log and exit if server fails
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		log.Printf("server shutdown: %v", err)
	}

	stopBackground()
	done := make(chan struct{})
	go func() {
		defer close(done)
		wg.Wait()
	}()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		log.Println("audit workers did not stop in time")
	}
}
