package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"

	"github.com/hackgods/civil-registry-booking/internal/api"
	"github.com/hackgods/civil-registry-booking/internal/appointment"
	"github.com/hackgods/civil-registry-booking/internal/assistant"
	"github.com/hackgods/civil-registry-booking/internal/booking"
	"github.com/hackgods/civil-registry-booking/internal/config"
	"github.com/hackgods/civil-registry-booking/internal/logging"
	"github.com/hackgods/civil-registry-booking/internal/notify"
	"github.com/hackgods/civil-registry-booking/internal/receipt"
	redisclient "github.com/hackgods/civil-registry-booking/internal/redis"
	"github.com/hackgods/civil-registry-booking/internal/storage"
)

const version = "0.1.0"

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("config load error")
	}

	logging.Init("api-server", cfg.Env, cfg.LogLevel)
	log.Info().
		Str("env", cfg.Env).
		Str("http_port", cfg.HTTPPort).
		Str("storage", cfg.StorageDriver).
		Str("facility_tz", cfg.FacilityTZ).
		Msg("api-server starting up")

	rootCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var rdb *redis.Client
	if cfg.UsesRedis() {
		rdb, err = redisclient.NewRedisClient(rootCtx, cfg.RedisAddr, cfg.RedisUsername, cfg.RedisPassword)
		if err != nil {
			log.Fatal().Err(err).Msg("redis connection error")
		}
		defer func() {
			if err := rdb.Close(); err != nil {
				log.Error().Err(err).Msg("error closing redis")
			}
		}()
		log.Info().Str("addr", cfg.RedisAddr).Msg("connected to Redis")
	}

	kv, pgPool, err := storage.Open(rootCtx, cfg, rdb)
	if err != nil {
		log.Fatal().Err(err).Msg("storage setup error")
	}
	if pgPool != nil {
		defer pgPool.Close()
	}

	var (
		locker storage.Locker = storage.NewLocalLocker()
		board  notify.Board   = notify.NewMemoryBoard(cfg.MessageTTL, time.Now)
	)
	if rdb != nil {
		locker = redisclient.NewKeyLocker(rdb, cfg.LockTTL)
		board = notify.NewRedisBoard(rdb, cfg.MessageTTL)
	}

	catalog := appointment.DefaultCatalog()
	renderer := receipt.NewRenderer(catalog, "")
	outbox := receipt.NewOutbox(renderer)
	scheduler := booking.NewTimerScheduler(cfg.ReceiptDelay)

	desks, err := booking.NewDesks(booking.DesksConfig{
		KV:        kv,
		Locker:    locker,
		Location:  cfg.Location(),
		Catalog:   catalog,
		Board:     board,
		Receipts:  outbox,
		Scheduler: scheduler,
		Logger:    log.Logger,
		Size:      cfg.DeskCacheSize,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("desk setup error")
	}

	router := api.NewRouter(api.RouterConfig{
		Desks:       desks,
		Outbox:      outbox,
		Renderer:    renderer,
		Assistant:   assistant.New(assistant.DefaultEntries()),
		RateLimiter: api.NewRateLimiter(rootCtx, cfg.RateLimitRPS, cfg.RateLimitBurst),
		PgPool:      pgPool,
		Redis:       rdb,
		Storage:     cfg.StorageDriver,
		Env:         cfg.Env,
		Version:     version,
	})

	srv := &http.Server{
		Addr:              ":" + cfg.HTTPPort,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		log.Info().Str("addr", srv.Addr).Msg("http server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("http server error")
		}
	}()

	<-rootCtx.Done()
	log.Info().Msg("shutting down api-server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("http server shutdown error")
	}

	// Let pending receipts finish before the stores they read from go away.
	scheduler.Wait()
	log.Info().Msg("api-server stopped")
}
