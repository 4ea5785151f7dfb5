// Package httpapi exposes the call core to signaling stacks and operators.
package httpapi

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"callcore/internal/audit"
	"callcore/internal/auth"
	"callcore/internal/config"
	"callcore/internal/coordinator"
	"callcore/internal/history"
	"callcore/internal/rbac"
	"callcore/internal/remote"
	"callcore/internal/stream"
	"callcore/internal/telephony"
	"callcore/pkg/logger"

	"github.com/gin-gonic/gin"
)

// ProviderFactory builds a provider from the per-account options sent by the
// signaling stack. It supplies the sink, presence store and logger.
type ProviderFactory func(opts remote.Options) (*remote.Provider, error)

// Handlers groups HTTP handlers for dependency injection.
// Keep these thin: parse/validate input, call internal services, return JSON.
type Handlers struct {
	Auth *auth.Manager
	// IssueTokens enables /v1/token. Only set outside production.
	IssueTokens bool

	Registry    *telephony.MemoryRegistry
	NewProvider ProviderFactory
	Coordinator *coordinator.Coordinator
	Policy      *config.PolicyConfig
	History     *history.Service
	Audit       *audit.Service
	Stream      *stream.Hub
	Metrics     http.Handler

	Log *slog.Logger
}

func (h Handlers) reqLog(c *gin.Context) *slog.Logger {
	fallback := h.Log
	if fallback == nil {
		fallback = slog.Default()
	}
	return logger.FromGinOr(c, fallback)
}

func abort(c *gin.Context, code int, msg string) {
	c.AbortWithStatusJSON(code, gin.H{"error": msg})
}

func (h Handlers) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

type tokenRequest struct {
	UserID   string   `json:"user_id"`
	Role     string   `json:"role"`
	Accounts []string `json:"accounts"`
}

// IssueToken hands out access tokens without checking credentials. It is
// mounted only in development.
func (h Handlers) IssueToken(c *gin.Context) {
	if !h.IssueTokens || h.Auth == nil {
		abort(c, http.StatusNotFound, "not found")
		return
	}
	var req tokenRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abort(c, http.StatusBadRequest, "invalid json")
		return
	}
	if req.UserID == "" || !rbac.Known(req.Role) {
		abort(c, http.StatusBadRequest, "user_id and a known role required")
		return
	}
	tok, err := h.Auth.Issue(time.Now(), req.UserID, req.Role, req.Accounts...)
	if err != nil {
		abort(c, http.StatusInternalServerError, "token issuance failed")
		return
	}
	c.JSON(http.StatusOK, gin.H{"access_token": tok, "expires_in": int(h.Auth.TTL().Seconds())})
}

// statusFor maps domain errors to HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, remote.ErrDuplicateCall):
		return http.StatusConflict
	case errors.Is(err, remote.ErrUnsupportedStatus),
		errors.Is(err, history.ErrInvalidQuery),
		errors.Is(err, audit.ErrInvalidEvent):
		return http.StatusBadRequest
	case errors.Is(err, remote.ErrNoSignalingStack):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
