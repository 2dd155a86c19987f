// Command server runs the send-pacer HTTP API.
//
//	@title			Send Pacer API
//	@version		1.0
//	@description	Campaign send pacing: safe per-channel rates, account quota status, admission checks and business-hours scheduling.
//	@BasePath		/api/v1
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"

	_ "github.com/tbourn/go-send-pacer/docs"
	"github.com/tbourn/go-send-pacer/internal/config"
	httpapi "github.com/tbourn/go-send-pacer/internal/http"
	"github.com/tbourn/go-send-pacer/internal/observability"
	"github.com/tbourn/go-send-pacer/internal/policy"
	"github.com/tbourn/go-send-pacer/internal/repo"
	"github.com/tbourn/go-send-pacer/internal/services"
	"github.com/tbourn/go-send-pacer/internal/statusclient"
	"github.com/tbourn/go-send-pacer/internal/sysutil"
)

// version is stamped at build time with -ldflags "-X main.version=...".
var version string

const shutdownTimeout = 10 * time.Second

func main() {
	// .env is optional; real env vars win.
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		sysutil.SetupLogger(os.Stderr, "info", "go-send-pacer", false)
		log.Fatal().Err(err).Msg("invalid configuration")
	}

	sysutil.SetupLogger(os.Stdout, cfg.LogLevel, cfg.OTEL.ServiceName, cfg.LogPretty)
	ver := sysutil.FirstNonEmpty(version, os.Getenv("APP_VERSION"), "dev")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownOTel, err := observability.SetupOTel(ctx, cfg.OTEL, ver)
	if err != nil {
		log.Fatal().Err(err).Msg("otel setup failed")
	}

	pol := policy.Default()
	if cfg.PolicyFile != "" {
		if pol, err = policy.LoadFile(cfg.PolicyFile); err != nil {
			log.Fatal().Err(err).Str("file", cfg.PolicyFile).Msg("load pacing policy")
		}
	}

	db, err := repo.OpenSQLite(cfg.DB)
	if err != nil {
		log.Fatal().Err(err).Str("path", cfg.DB.Path).Msg("open database")
	}
	if err := repo.AutoMigrate(db); err != nil {
		log.Fatal().Err(err).Msg("migrate database")
	}
	if cfg.DB.PurgeInterval > 0 {
		go purgeIdempotency(ctx, db, cfg.DB.PurgeInterval)
	}

	// Without a source every lookup fails open to the policy defaults.
	var src services.StatusSource
	if cfg.Status.SourceURL != "" {
		src = statusclient.New(cfg.Status.SourceURL, cfg.Status.FetchTimeout, cfg.Status.SourceRPS, cfg.Status.SourceBurst)
	} else {
		log.Warn().Msg("STATUS_SOURCE_URL not set; account statuses use permissive defaults")
	}

	cache := services.NewStatusCache(src, pol, cfg.Status.CacheTTL, cfg.Status.FetchTimeout)
	pacing := services.NewPacingService(pol, cache)
	pacing.DefaultTimezone = cfg.Pacing.DefaultTimezone
	pacing.DefaultBusinessHours.Start = cfg.Pacing.BusinessHoursStart
	pacing.DefaultBusinessHours.End = cfg.Pacing.BusinessHoursEnd
	if cfg.Pacing.ScheduleThresholdMinutes > 0 {
		pacing.ScheduleThresholdMinutes = cfg.Pacing.ScheduleThresholdMinutes
	}

	gin.SetMode(cfg.GinMode)
	r := gin.New()
	httpapi.RegisterRoutes(r, db, pacing, cfg)

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           r,
		ReadTimeout:       cfg.ReadTimeout,
		ReadHeaderTimeout: cfg.ReadHeaderTimeout,
		WriteTimeout:      cfg.WriteTimeout,
		IdleTimeout:       cfg.IdleTimeout,
		MaxHeaderBytes:    cfg.MaxHeaderBytes,
	}

	go func() {
		log.Info().
			Str("addr", srv.Addr).
			Str("version", ver).
			Str("api_base", cfg.APIBasePath).
			Bool("status_source", src != nil).
			Msg("server starting")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("listen")
		}
	}()

	<-ctx.Done()
	log.Info().Msg("shutting down")

	shCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shCtx); err != nil {
		log.Error().Err(err).Msg("http shutdown")
	}
	if err := shutdownOTel(shCtx); err != nil {
		log.Error().Err(err).Msg("otel shutdown")
	}
	if sqlDB, err := db.DB(); err == nil {
		_ = sqlDB.Close()
	}
	log.Info().Msg("bye")
}

// purgeIdempotency deletes expired idempotency records every interval until
// ctx ends.
func purgeIdempotency(ctx context.Context, db *gorm.DB, every time.Duration) {
	t := time.NewTicker(every)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-t.C:
			n, err := repo.PurgeExpiredIdempotency(ctx, db, now.UTC())
			if err != nil {
				log.Warn().Err(err).Msg("idempotency purge failed")
				continue
			}
			if n > 0 {
				log.Debug().Int64("deleted", n).Msg("idempotency records purged")
			}
		}
	}
}
