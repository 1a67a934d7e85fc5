package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"roombooking/internal/access"
	"roombooking/internal/api"
	"roombooking/internal/booking"
	"roombooking/internal/cache"
	"roombooking/internal/config"
	"roombooking/internal/database"
	"roombooking/internal/events"
	"roombooking/internal/groups"
	"roombooking/internal/metrics"
	"roombooking/internal/report"
	"roombooking/internal/rooms"
)

func main() {
	// Initialize logger
	output := zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339}
	logger := zerolog.New(output).With().Timestamp().Logger()

	if err := godotenv.Load(); err != nil {
		logger.Debug().Msg("no .env file, using process environment")
	}

	configPath := os.Getenv("ROOMBOOKING_CONFIG_PATH")
	if configPath == "" {
		configPath = "configs/config.yaml"
	}
	cfg, err := config.Load(configPath)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to load config")
	}
	loc, err := cfg.Location()
	if err != nil {
		logger.Fatal().Err(err).Msg("invalid booking timezone")
	}

	db, err := database.NewDB(cfg.Database.Path, loc, &logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("open db error")
	}
	defer db.Close()

	var rdb *redis.Client
	if cfg.Redis.Address != "" && cfg.CacheTTL() > 0 {
		rdb = redis.NewClient(&redis.Options{Addr: cfg.Redis.Address, Password: cfg.Redis.Password, DB: cfg.Redis.DB})
		defer rdb.Close()
	}
	roomCache := cache.NewRoomCache(db, rdb, cfg.CacheTTL(), &logger)

	accessService := access.NewService(db, db, cfg.PrivilegedUserType(), cfg.RestrictedRoomType(), logger)

	validator := booking.NewValidator(booking.Rules{
		ClockSkew:   cfg.ClockSkew(),
		MinDuration: cfg.MinDuration(),
		Grid:        cfg.Grid(),
		Location:    loc,
	}, time.Now)
	bookingService := booking.NewService(db, roomCache, db, accessService, validator, &logger)

	bus := events.NewEventBus()
	bus.OnError(func(ev events.Event, err error) {
		logger.Error().Err(err).Str("event", ev.Type).Msg("event handler failed")
	})
	bus.Subscribe(events.ReservationCreated, booking.RecordLastReserved(db))
	bookingService.UseEvents(bus)

	roomService := rooms.NewService(roomCache, db, accessService, &logger)
	groupService := groups.NewService(db, db, cfg.GroupCapacity(), &logger)
	reportService := report.NewService(db, roomCache, nil, loc, &logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.Rooms.SeedPath != "" {
		err := config.WatchRooms(ctx, cfg.Rooms.SeedPath, cfg.RoomsWatchInterval(), func(rc *config.RoomsConfig) {
			syncCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
			defer cancel()
			if err := roomService.Sync(syncCtx, rc); err != nil {
				logger.Error().Err(err).Msg("room inventory sync failed")
			}
		}, func(err error) {
			logger.Warn().Err(err).Msg("rooms.yaml reload skipped")
		})
		if err != nil {
			logger.Fatal().Err(err).Str("path", cfg.Rooms.SeedPath).Msg("failed to load room inventory")
		}
	}

	backup := database.NewBackupService(db, cfg.Backup, &logger)
	go func() {
		if err := backup.Start(ctx); err != nil {
			logger.Error().Err(err).Msg("backup scheduler stopped")
		}
	}()

	if cfg.Monitoring.HealthCheckPort == 0 {
		cfg.Monitoring.HealthCheckPort = 8090
	}
	go startHealthServer(ctx, cfg.Monitoring.HealthCheckPort, db, roomCache, &logger)

	if cfg.Monitoring.PrometheusEnabled {
		if cfg.Monitoring.PrometheusPort == 0 {
			cfg.Monitoring.PrometheusPort = 9090
		}
		metrics.Register()
		go startMetricsServer(ctx, cfg.Monitoring.PrometheusPort, &logger)
	}

	server := api.NewHTTPServer(api.Options{
		Port:           cfg.Server.Port,
		APIKeys:        cfg.Server.APIKeys,
		RateLimit:      cfg.Server.RateLimitPerSec,
		RateBurst:      cfg.Server.RateLimitBurst,
		AllowedOrigins: cfg.Server.AllowedOrigins,
	}, api.Deps{
		Bookings: bookingService,
		Rooms:    roomService,
		Groups:   groupService,
		Access:   accessService,
		Reports:  reportService,
		History:  db,
	}, &logger)

	go func() {
		<-ctx.Done()
		ctxShutdown, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := server.Shutdown(ctxShutdown); err != nil {
			logger.Error().Err(err).Msg("api shutdown error")
		}
	}()

	logger.Info().Str("timezone", loc.String()).Msg("room booking service started")
	if err := server.Start(); err != nil {
		logger.Error().Err(err).Msg("api server error")
	}
	logger.Info().Msg("room booking service stopped")
}

func startHealthServer(ctx context.Context, port int, db *database.DB, roomCache *cache.RoomCache, logger *zerolog.Logger) {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	mux.HandleFunc("/readyz", func(w http.ResponseWriter, _ *http.Request) {
		ctxPing, cancel := context.WithTimeout(ctx, time.Second)
		defer cancel()
		if err := db.PingContext(ctxPing); err != nil {
			http.Error(w, "db not ready", http.StatusServiceUnavailable)
			return
		}
		// The cache degrades to the database, so a failed ping is reported but not fatal.
		if err := roomCache.Ping(ctxPing); err != nil {
			_, _ = w.Write([]byte("ready (cache unavailable)"))
			return
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ready"))
	})

	srv := &http.Server{Addr: fmt.Sprintf(":%d", port), Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		<-ctx.Done()
		ctxShutdown, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctxShutdown)
	}()
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Error().Err(err).Msg("health server error")
	}
}

func startMetricsServer(ctx context.Context, port int, logger *zerolog.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	srv := &http.Server{Addr: fmt.Sprintf(":%d", port), Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		<-ctx.Done()
		ctxShutdown, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctxShutdown)
	}()
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Error().Err(err).Msg("metrics server error")
	}
}
