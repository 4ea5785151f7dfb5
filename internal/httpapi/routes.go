package httpapi

import (
	"callcore/internal/rbac"

	"github.com/gin-gonic/gin"
)

// Register mounts every route on r. authMW guards everything under /v1
// except token issuance.
func (h Handlers) Register(r *gin.Engine, authMW gin.HandlerFunc) {
	r.GET("/healthz", h.Health)
	if h.Metrics != nil {
		r.GET("/metrics", gin.WrapH(h.Metrics))
	}
	if h.IssueTokens {
		r.POST("/v1/token", h.IssueToken)
	}

	v1 := r.Group("/v1")
	v1.Use(authMW)

	// Reads, open to observers and the signaling stacks.
	read := v1.Group("")
	read.Use(rbac.RequireAnyRole(rbac.RoleObserver, rbac.RoleSignaling))
	{
		read.GET("/providers", h.ListProviders)
		read.GET("/calls", h.ListCalls)
		read.GET("/providers/:account/calls/:call_id", h.GetCall)
		read.GET("/coordinator", h.CoordinatorStatus)
		read.GET("/history", h.ListHistory)
		read.GET("/history/summary", h.HistorySummary)
		read.GET("/audit", h.ListAudit)
		read.GET("/policy", h.GetPolicy)
		if h.Stream != nil {
			read.GET("/events", h.Events)
		}
	}

	// State reported by the signaling stacks. Tokens scoped to accounts only
	// reach their own providers.
	sig := v1.Group("/providers")
	sig.Use(rbac.RequireAnyRole(rbac.RoleSignaling))
	sig.POST("", h.RegisterProvider)

	acct := sig.Group("/:account")
	acct.Use(rbac.RequireAccount("account"))
	{
		acct.DELETE("", h.UnregisterProvider)
		acct.PUT("/status", h.PublishStatus)
		acct.POST("/calls", h.CreateCall)
		acct.PUT("/calls/:call_id/state", h.SetCallState)
		acct.POST("/calls/:call_id/peers", h.AddPeer)
		acct.DELETE("/calls/:call_id/peers/:peer_id", h.RemovePeer)
		acct.PUT("/calls/:call_id/peers/:peer_id/state", h.SetPeerState)
		acct.PATCH("/calls/:call_id/peers/:peer_id", h.UpdatePeer)
		acct.POST("/calls/:call_id/peers/:peer_id/members", h.AddMember)
		acct.DELETE("/calls/:call_id/peers/:peer_id/members/:address", h.RemoveMember)
		acct.POST("/conferences", h.MergeCalls)
	}

	admin := v1.Group("/admin")
	admin.Use(rbac.RequireAnyRole(rbac.RoleAdmin))
	{
		admin.PUT("/policy", h.UpdatePolicy)
	}
}
