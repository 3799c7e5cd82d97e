package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"time"
	_ "time/tzdata"

	"golang.org/x/sync/errgroup"

	"subtrack/internal/amqp"
	"subtrack/internal/auth"
	"subtrack/internal/cache"
	"subtrack/internal/cli"
	"subtrack/internal/config"
	"subtrack/internal/core"
	apphttp "subtrack/internal/http"
	"subtrack/internal/log"
	"subtrack/internal/middleware/ratelimit"
	"subtrack/internal/realtime"
	"subtrack/internal/schedule"
	"subtrack/internal/services"
)

func main() {
	if err := run(); err != nil {
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		log.New(log.DefaultConfig()).Error("Failed to load configuration", log.FieldError, err)
		return err
	}

	logger, err := cli.SetupLogger(cfg.LogLevel, log.ComponentApp, os.Stdout)
	if err != nil {
		logger = log.New(log.DefaultConfig())
		logger.Warn("Invalid log level, using info", log.FieldError, err)
	}

	if err := cfg.Validate(); err != nil {
		logger.Error("Configuration validation failed", log.FieldError, err)
		return err
	}
	if cfg.JWTSecret == "" {
		err := errors.New("JWT_SECRET is required")
		logger.Error("Configuration validation failed", log.FieldError, err)
		return err
	}

	loc, err := cfg.Location()
	if err != nil {
		logger.Error("Invalid time zone", log.FieldError, err, "timezone", cfg.Timezone)
		return err
	}

	ctx, stop := cli.SignalContext(context.Background())
	defer stop()

	store, closeStore, err := cli.OpenStore(ctx, cfg, logger)
	if err != nil {
		logger.Error("Failed to initialize store", log.FieldError, err, "backend", cfg.DataBackend)
		return err
	}
	defer closeStore()

	calendar := services.NewCalendarService(store,
		cache.NewTTLCache[[]core.Subscription](cfg.CacheTTL, 2*cfg.CacheTTL),
		loc, logger.Base())
	hub := realtime.NewHub(store, logger.Base())

	// Optional: change messages for the sync worker
	var publisher services.ChangePublisher
	if cfg.AMQPURL != "" {
		client, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
		if err != nil {
			logger.Warn("Failed to initialize AMQP client, continuing without sync", log.FieldError, err)
		} else {
			defer client.Close()
			publisher = client
			logger.Info("Initialized AMQP client", "exchange", cfg.AMQPExchange, "queue", cfg.AMQPQueue)
		}
	}

	// Optional: fan changes out to other server instances
	var bus *realtime.RedisBus
	if cfg.RedisURL != "" {
		bus, err = realtime.NewRedisBus(ctx, cfg.RedisURL, logger.Base())
		if err != nil {
			logger.Warn("Failed to connect to Redis, realtime updates stay local", log.FieldError, err)
			bus = nil
		} else {
			defer bus.Close()
			hub.SetPublisher(bus)
		}
	}

	categories := services.NewCategoryService(store, store)
	subs := services.NewSubscriptionService(store, categories, publisher, calendar, hub)
	subs.SetLocation(loc)

	verifier, err := auth.NewVerifier(cfg.JWTSecret, cfg.JWTIssuer)
	if err != nil {
		logger.Error("Failed to initialize token verifier", log.FieldError, err)
		return err
	}

	ws := realtime.NewWebSocketHandler(hub, auth.UserFromRequest,
		logger.Base(),
		schedule.WithHorizonMonths(cfg.HorizonMonths), schedule.WithLocation(loc))

	srv, err := apphttp.NewServer(":"+cfg.Port, apphttp.Deps{
		Subscriptions: subs,
		Categories:    categories,
		Calendar:      calendar,
		Verifier:      verifier,
		Realtime:      ws,
		Store:         store,
		HorizonMonths: cfg.HorizonMonths,
		RateLimit: ratelimit.Config{
			RequestsPerSecond: cfg.RateLimitRPS,
			Burst:             cfg.RateLimitBurst,
		},
		Logger: logger.WithComponent(log.ComponentHTTP),
	})
	if err != nil {
		logger.Error("Failed to create HTTP server", log.FieldError, err)
		return err
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info("Starting subtrack server",
			"port", cfg.Port,
			"backend", cfg.DataBackend,
			"timezone", cfg.Timezone,
			"version", cli.Version())
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	if bus != nil {
		g.Go(func() error {
			err := bus.Run(gctx, func(userID string) {
				calendar.Invalidate(userID)
				hub.NotifyLocal(userID)
			})
			if err != nil && !errors.Is(err, context.Canceled) {
				logger.Warn("Redis subscription ended", log.FieldError, err)
			}
			return nil
		})
	}

	g.Go(func() error {
		<-gctx.Done()
		logger.Info("Shutdown signal received")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("Server shutdown error", log.FieldError, err)
			return err
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		logger.Error("Server error", log.FieldError, err, "port", cfg.Port)
		return err
	}

	logger.Info("Server stopped gracefully")
	return nil
}
