package httpapi

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"callcore/internal/audit"
	"callcore/internal/auth"
	"callcore/internal/config"
	"callcore/internal/history"
	"callcore/internal/telephony"

	"github.com/gin-gonic/gin"
)

const maxListLimit = 500

// ListCalls returns the active calls of every provider, or of one account
// when the account query parameter is set.
func (h Handlers) ListCalls(c *gin.Context) {
	account := c.Query("account")
	out := []callView{}
	for _, p := range h.Registry.Providers() {
		if account != "" && p.AccountID() != account {
			continue
		}
		ops, ok := telephony.TelephonyOf(p)
		if !ok {
			continue
		}
		for _, call := range ops.ActiveCalls() {
			out = append(out, newCallView(call))
		}
	}
	c.JSON(http.StatusOK, gin.H{"calls": out})
}

func (h Handlers) GetCall(c *gin.Context) {
	_, call, ok := h.call(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, newCallView(call))
}

type coordinatorView struct {
	Tracked    []string              `json:"tracked"`
	InProgress []string              `json:"in_progress"`
	Remembered map[string]string     `json:"remembered_statuses"`
	Policy     config.PolicySettings `json:"policy"`
}

// CoordinatorStatus shows what the single-active-call policy currently sees.
func (h Handlers) CoordinatorStatus(c *gin.Context) {
	v := coordinatorView{
		Tracked:    callIDs(h.Coordinator.Tracked()),
		InProgress: callIDs(h.Coordinator.InProgress()),
		Remembered: map[string]string{},
		Policy:     h.Policy.Policy(),
	}
	for _, p := range h.Registry.Providers() {
		if s, ok := h.Coordinator.Remembered(p.AccountID()); ok {
			v.Remembered[p.AccountID()] = s.Name
		}
	}
	c.JSON(http.StatusOK, v)
}

func (h Handlers) ListHistory(c *gin.Context) {
	q, err := historyQuery(c)
	if err != nil {
		abort(c, http.StatusBadRequest, err.Error())
		return
	}
	rows, err := h.History.List(c.Request.Context(), q)
	if err != nil {
		abort(c, statusFor(err), err.Error())
		return
	}
	if rows == nil {
		rows = []history.Record{}
	}
	c.JSON(http.StatusOK, gin.H{"records": rows})
}

func (h Handlers) HistorySummary(c *gin.Context) {
	q, err := historyQuery(c)
	if err != nil {
		abort(c, http.StatusBadRequest, err.Error())
		return
	}
	sum, err := h.History.Summary(c.Request.Context(), q)
	if err != nil {
		abort(c, statusFor(err), err.Error())
		return
	}
	c.JSON(http.StatusOK, sum)
}

func historyQuery(c *gin.Context) (history.Query, error) {
	q := history.Query{AccountID: c.Query("account")}
	var err error
	if q.From, err = parseTime(c.Query("from")); err != nil {
		return q, fmt.Errorf("from: %w", err)
	}
	if q.To, err = parseTime(c.Query("to")); err != nil {
		return q, fmt.Errorf("to: %w", err)
	}
	if q.Limit, err = parseLimit(c.Query("limit")); err != nil {
		return q, err
	}
	return q, nil
}

func (h Handlers) ListAudit(c *gin.Context) {
	limit, err := parseLimit(c.Query("limit"))
	if err != nil {
		abort(c, http.StatusBadRequest, err.Error())
		return
	}
	events, err := h.Audit.List(c.Request.Context(), audit.Filter{
		AccountID: c.Query("account"),
		Type:      audit.EventType(c.Query("type")),
		Limit:     limit,
	})
	if err != nil {
		abort(c, statusFor(err), err.Error())
		return
	}
	if events == nil {
		events = []audit.Event{}
	}
	c.JSON(http.StatusOK, gin.H{"events": events})
}

func (h Handlers) GetPolicy(c *gin.Context) {
	c.JSON(http.StatusOK, h.Policy.Policy())
}

// globalAccount is the audit account for changes that apply to every account.
const globalAccount = "*"

// UpdatePolicy replaces the call policy. The coordinator reads it on the
// next call event.
func (h Handlers) UpdatePolicy(c *gin.Context) {
	var req config.PolicySettings
	if err := c.ShouldBindJSON(&req); err != nil {
		abort(c, http.StatusBadRequest, "invalid json")
		return
	}
	old := h.Policy.Policy()
	h.Policy.SetPolicy(req)

	actor, _ := auth.UserID(c.Request.Context())
	msg := fmt.Sprintf("call_waiting_disabled=%t reject_calls_on_dnd=%t dnd_accounts=%v on_the_phone=%t",
		req.CallWaitingDisabled, req.RejectCallsOnDND, req.RejectCallsOnDNDAccounts, req.OnThePhoneStatus)
	if h.Audit != nil {
		if err := h.Audit.LogPolicyUpdate(c.Request.Context(), globalAccount, actor, msg); err != nil {
			h.reqLog(c).Warn("policy audit failed", "err", err)
		}
	}
	h.reqLog(c).Info("policy updated", "actor", actor, "old", old, "new", req)
	c.JSON(http.StatusOK, h.Policy.Policy())
}

func (h Handlers) Events(c *gin.Context) {
	h.Stream.ServeWS(c)
}

func parseTime(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	return time.Parse(time.RFC3339, s)
}

func parseLimit(s string) (int, error) {
	if s == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil || n < 0 {
		return 0, fmt.Errorf("limit must be a non-negative integer")
	}
	if n > maxListLimit {
		n = maxListLimit
	}
	return n, nil
}

