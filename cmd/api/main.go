package main

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"callcore/internal/audit"
	"callcore/internal/auth"
	"callcore/internal/config"
	"callcore/internal/coordinator"
	"callcore/internal/history"
	"callcore/internal/stream"
	"callcore/internal/telephony"
	"callcore/pkg/logger"
	"callcore/pkg/utils"

	"github.com/gin-gonic/gin"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

func main() {
	// Root context that cancels on shutdown
	rootCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := config.LoadEnv(); err != nil {
		slog.Error("env file load failed", "err", err)
		os.Exit(1)
	}
	cfg, err := config.Load()
	if err != nil {
		slog.Error("config load failed", "err", err)
		os.Exit(1)
	}

	log, logCloser := logger.NewWithFile(cfg.App.Env, cfg.App.LogFile)
	defer logCloser.Close()
	slog.SetDefault(log)

	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	authManager, err := auth.NewManager(cfg.Auth)
	if err != nil {
		log.Error("auth init failed", "err", err)
		os.Exit(1)
	}

	rdb, err := utils.OpenRedis(rootCtx, utils.RedisConfig{
		Addr:     cfg.RedisAddr(),
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	if err != nil {
		log.Error("redis init failed", "err", err)
		os.Exit(1)
	}
	defer rdb.Close()

	var db *sql.DB
	var historyRepo history.Repository = history.NewMemoryRepo()
	if cfg.HasDatabase() {
		db, err = utils.OpenPostgres(rootCtx, "pgx", cfg.PostgresDSN(), utils.PostgresPoolConfig{
			MaxOpenConns: cfg.DB.MaxOpenConns,
		})
		if err != nil {
			log.Error("postgres init failed", "err", err)
			os.Exit(1)
		}
		defer db.Close()

		pg := history.NewPostgresRepo(db)
		if err := pg.EnsureSchema(rootCtx); err != nil {
			log.Error("history schema failed", "err", err)
			os.Exit(1)
		}
		historyRepo = pg
	} else {
		log.Warn("DB_HOST not set; call history is kept in memory")
	}

	promRegistry := prometheus.NewRegistry()
	promRegistry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	metrics := coordinator.NewPrometheusMetrics(promRegistry)

	registry := telephony.NewMemoryRegistry()
	policy := config.NewPolicyConfig(cfg.Policy)
	auditSvc := audit.NewService(audit.NewMemoryRepo(0))

	coord := coordinator.New(registry, policy, coordinator.Options{
		Logger:  log,
		Actions: coordinator.AuditAdapter{Audit: auditSvc},
		Metrics: metrics,
	})
	coord.Start(rootCtx)
	defer coord.Stop()

	recorder := history.NewRecorder(historyRepo, history.RecorderOptions{Logger: log})
	recorder.Watch(registry)
	defer recorder.Stop()

	hub := stream.NewHub(log)
	stopStream := hub.Watch(registry)
	defer stopStream()

	// Gin router
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(logger.Middleware(log))

	registerRoutes(r, deps{
		cfg:      cfg,
		log:      log,
		auth:     authManager,
		db:       db,
		rdb:      rdb,
		registry: registry,
		policy:   policy,
		coord:    coord,
		history:  history.NewService(historyRepo),
		audit:    auditSvc,
		hub:      hub,
		metrics:  metrics,
	})

	srv := &http.Server{
		Addr:              cfg.HTTPAddr(),
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		log.Info("api listening", "addr", srv.Addr, "env", cfg.App.Env)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("http server failed", "err", err)
			stop()
		}
	}()

	<-rootCtx.Done()
	log.Info("shutdown initiated")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("http shutdown failed", "err", err)
	}
}
