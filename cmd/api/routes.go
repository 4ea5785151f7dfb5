package main

import (
	"database/sql"
	"log/slog"
	"net/http"
	"time"

	"callcore/internal/audit"
	"callcore/internal/auth"
	"callcore/internal/config"
	"callcore/internal/coordinator"
	"callcore/internal/history"
	"callcore/internal/httpapi"
	"callcore/internal/remote"
	"callcore/internal/stream"
	"callcore/internal/telephony"
	"callcore/pkg/utils"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
)

type deps struct {
	cfg      config.Config
	log      *slog.Logger
	auth     *auth.Manager
	db       *sql.DB
	rdb      *redis.Client
	registry *telephony.MemoryRegistry
	policy   *config.PolicyConfig
	coord    *coordinator.Coordinator
	history  *history.Service
	audit    *audit.Service
	hub      *stream.Hub
	metrics  *coordinator.PrometheusMetrics
}

// registerRoutes wires HTTP routes to handlers.
// Keep this file free of business logic. Handlers should delegate to internal modules.
func registerRoutes(r *gin.Engine, d deps) {
	sink := remote.NewRedisSink(d.rdb)
	store := remote.NewRedisPresenceStore(d.rdb)

	h := httpapi.Handlers{
		Auth:        d.auth,
		IssueTokens: d.cfg.IsDevelopment(),
		Registry:    d.registry,
		NewProvider: func(opts remote.Options) (*remote.Provider, error) {
			opts.Sink = sink
			opts.Presence = store
			opts.Logger = d.log
			return remote.NewProvider(opts)
		},
		Coordinator: d.coord,
		Policy:      d.policy,
		History:     d.history,
		Audit:       d.audit,
		Stream:      d.hub,
		Metrics:     d.metrics.Handler(),
		Log:         d.log,
	}
	h.Register(r, auth.RequireAccessToken(d.auth))

	r.GET("/readyz", func(c *gin.Context) {
		ctx := c.Request.Context()
		if err := utils.PingRedis(ctx, d.rdb, 2*time.Second); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "redis unavailable"})
			return
		}
		if d.db != nil {
			if err := utils.HealthCheck(ctx, d.db, 2*time.Second); err != nil {
				c.JSON(http.StatusServiceUnavailable, gin.H{"status": "postgres unavailable"})
				return
			}
		}
		c.JSON(http.StatusOK, gin.H{"status": "ready"})
	})
}
