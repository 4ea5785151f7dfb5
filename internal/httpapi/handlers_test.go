package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
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

	"github.com/gin-gonic/gin"
)

type testEnv struct {
	router   *gin.Engine
	auth     *auth.Manager
	sink     *remote.MemorySink
	policy   *config.PolicyConfig
	auditLog *audit.MemoryRepo
	history  *history.MemoryRepo
	recorder *history.Recorder
	registry *telephony.MemoryRegistry
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)
	log := slog.New(slog.NewTextHandler(io.Discard, nil))

	am, err := auth.NewManager(config.AuthConfig{JWTSecret: "secret", AccessTokenTTL: time.Minute})
	if err != nil {
		t.Fatalf("auth: %v", err)
	}
	env := &testEnv{
		auth:     am,
		sink:     &remote.MemorySink{},
		policy:   config.NewPolicyConfig(config.PolicySettings{OnThePhoneStatus: true}),
		auditLog: audit.NewMemoryRepo(0),
		history:  history.NewMemoryRepo(),
	}
	store := remote.NewMemoryPresenceStore()
	reg := telephony.NewMemoryRegistry()
	env.registry = reg
	auditSvc := audit.NewService(env.auditLog)

	coord := coordinator.New(reg, env.policy, coordinator.Options{
		Logger:  log,
		Actions: coordinator.AuditAdapter{Audit: auditSvc},
	})
	coord.Start(context.Background())
	t.Cleanup(coord.Stop)

	env.recorder = history.NewRecorder(env.history, history.RecorderOptions{Logger: log})
	env.recorder.Watch(reg)
	t.Cleanup(env.recorder.Stop)

	h := Handlers{
		Auth:        am,
		IssueTokens: true,
		Registry:    reg,
		NewProvider: func(opts remote.Options) (*remote.Provider, error) {
			opts.Sink = env.sink
			opts.Presence = store
			opts.Logger = log
			return remote.NewProvider(opts)
		},
		Coordinator: coord,
		Policy:      env.policy,
		History:     history.NewService(env.history),
		Audit:       auditSvc,
		Stream:      stream.NewHub(log),
		Log:         log,
	}
	env.router = gin.New()
	h.Register(env.router, auth.RequireAccessToken(am))
	return env
}

func (e *testEnv) token(t *testing.T, role string) string {
	t.Helper()
	tok, err := e.auth.Issue(time.Now(), "user-"+role, role)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	return tok
}

func (e *testEnv) do(t *testing.T, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var r io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal: %v", err)
		}
		r = bytes.NewReader(b)
	}
	req := httptest.NewRequest(method, path, r)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(w.Body.Bytes(), &v); err != nil {
		t.Fatalf("decode %q: %v", w.Body.String(), err)
	}
	return v
}

func expectCode(t *testing.T, w *httptest.ResponseRecorder, code int) {
	t.Helper()
	if w.Code != code {
		t.Fatalf("expected %d, got %d: %s", code, w.Code, w.Body.String())
	}
}

func (e *testEnv) registerAccount(t *testing.T, tok, account string) {
	t.Helper()
	w := e.do(t, http.MethodPost, "/v1/providers", tok, map[string]any{"account_id": account})
	expectCode(t, w, http.StatusCreated)
}

func (e *testEnv) connectCall(t *testing.T, tok, account, callID, peerID string) {
	t.Helper()
	w := e.do(t, http.MethodPost, "/v1/providers/"+account+"/calls", tok, map[string]any{
		"id":        callID,
		"direction": "outgoing",
		"peers":     []map[string]string{{"id": peerID, "address": "sip:" + peerID + "@example.com"}},
	})
	expectCode(t, w, http.StatusCreated)
	w = e.do(t, http.MethodPut, "/v1/providers/"+account+"/calls/"+callID+"/peers/"+peerID+"/state", tok,
		map[string]any{"state": "Connected"})
	expectCode(t, w, http.StatusOK)
}

func TestHealthz(t *testing.T) {
	env := newTestEnv(t)
	expectCode(t, env.do(t, http.MethodGet, "/healthz", "", nil), http.StatusOK)
}

func TestIssueToken(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(t, http.MethodPost, "/v1/token", "", map[string]string{"user_id": "u", "role": rbac.RoleObserver})
	expectCode(t, w, http.StatusOK)
	body := decode[map[string]any](t, w)
	tok, _ := body["access_token"].(string)
	if _, err := env.auth.Verify(tok, time.Now()); err != nil {
		t.Fatalf("issued token does not verify: %v", err)
	}

	w = env.do(t, http.MethodPost, "/v1/token", "", map[string]string{"user_id": "u", "role": "root"})
	expectCode(t, w, http.StatusBadRequest)
}

func TestRoutesRequireAuthAndRole(t *testing.T) {
	env := newTestEnv(t)

	expectCode(t, env.do(t, http.MethodGet, "/v1/calls", "", nil), http.StatusUnauthorized)

	observer := env.token(t, rbac.RoleObserver)
	expectCode(t, env.do(t, http.MethodGet, "/v1/calls", observer, nil), http.StatusOK)
	w := env.do(t, http.MethodPost, "/v1/providers", observer, map[string]any{"account_id": "a"})
	expectCode(t, w, http.StatusForbidden)
	w = env.do(t, http.MethodPut, "/v1/admin/policy", env.token(t, rbac.RoleSignaling), config.PolicySettings{})
	expectCode(t, w, http.StatusForbidden)
}

func TestScopedTokenReachesOnlyItsAccounts(t *testing.T) {
	env := newTestEnv(t)
	env.registerAccount(t, env.token(t, rbac.RoleSignaling), "acct-2")

	w := env.do(t, http.MethodPost, "/v1/token", "", map[string]any{
		"user_id":  "stack-1",
		"role":     rbac.RoleSignaling,
		"accounts": []string{"acct-1"},
	})
	expectCode(t, w, http.StatusOK)
	scoped, _ := decode[map[string]any](t, w)["access_token"].(string)

	env.registerAccount(t, scoped, "acct-1")
	w = env.do(t, http.MethodPost, "/v1/providers", scoped, map[string]any{"account_id": "acct-3"})
	expectCode(t, w, http.StatusForbidden)

	w = env.do(t, http.MethodPost, "/v1/providers/acct-2/calls", scoped, map[string]any{"direction": "outgoing"})
	expectCode(t, w, http.StatusForbidden)
	w = env.do(t, http.MethodPost, "/v1/providers/acct-1/calls", scoped, map[string]any{"direction": "outgoing"})
	expectCode(t, w, http.StatusCreated)
}

func TestRegisterProvider(t *testing.T) {
	env := newTestEnv(t)
	sig := env.token(t, rbac.RoleSignaling)

	env.registerAccount(t, sig, "acct-1")
	w := env.do(t, http.MethodPost, "/v1/providers", sig, map[string]any{"account_id": "acct-1"})
	expectCode(t, w, http.StatusConflict)

	w = env.do(t, http.MethodPost, "/v1/providers", sig, map[string]any{
		"account_id":         "acct-2",
		"supported_statuses": []string{"no-such-status"},
	})
	expectCode(t, w, http.StatusBadRequest)

	w = env.do(t, http.MethodGet, "/v1/providers", sig, nil)
	expectCode(t, w, http.StatusOK)
	list := decode[struct {
		Providers []providerView `json:"providers"`
	}](t, w)
	if len(list.Providers) != 1 || list.Providers[0].AccountID != "acct-1" || list.Providers[0].Protocol != "sip" {
		t.Fatalf("unexpected providers: %+v", list.Providers)
	}

	expectCode(t, env.do(t, http.MethodDelete, "/v1/providers/acct-1", sig, nil), http.StatusNoContent)
	expectCode(t, env.do(t, http.MethodDelete, "/v1/providers/acct-1", sig, nil), http.StatusNotFound)
}

func TestSecondCallHoldsFirst(t *testing.T) {
	env := newTestEnv(t)
	sig := env.token(t, rbac.RoleSignaling)
	env.registerAccount(t, sig, "acct-1")

	env.connectCall(t, sig, "acct-1", "call-1", "alice")
	env.connectCall(t, sig, "acct-1", "call-2", "bob")

	cmds := env.sink.Commands()
	if len(cmds) != 1 || cmds[0].Kind != remote.CommandHold || cmds[0].CallID != "call-1" || cmds[0].PeerID != "alice" {
		t.Fatalf("expected one hold for alice, got %+v", cmds)
	}

	w := env.do(t, http.MethodGet, "/v1/providers/acct-1/calls/call-1", sig, nil)
	expectCode(t, w, http.StatusOK)
	view := decode[callView](t, w)
	if view.State != "InProgress" || len(view.Peers) != 1 || view.Peers[0].State != "OnHoldLocal" {
		t.Fatalf("unexpected call view: %+v", view)
	}

	w = env.do(t, http.MethodGet, "/v1/coordinator", env.token(t, rbac.RoleObserver), nil)
	expectCode(t, w, http.StatusOK)
	status := decode[coordinatorView](t, w)
	if len(status.Tracked) != 2 || len(status.InProgress) != 2 {
		t.Fatalf("unexpected coordinator view: %+v", status)
	}
	if status.Remembered["acct-1"] != "online" {
		t.Fatalf("expected online remembered, got %+v", status.Remembered)
	}
}

func TestMergedCallsAreNotHeld(t *testing.T) {
	env := newTestEnv(t)
	sig := env.token(t, rbac.RoleSignaling)
	env.registerAccount(t, sig, "acct-1")

	for _, id := range []string{"call-1", "call-2"} {
		w := env.do(t, http.MethodPost, "/v1/providers/acct-1/calls", sig, map[string]any{
			"id": id, "direction": "incoming", "peers": []map[string]string{{"id": id + "-peer"}},
		})
		expectCode(t, w, http.StatusCreated)
	}
	w := env.do(t, http.MethodPost, "/v1/providers/acct-1/conferences", sig, map[string]any{
		"call_ids": []string{"call-1", "call-2"},
	})
	expectCode(t, w, http.StatusOK)
	conf := decode[conferenceView](t, w)
	if len(conf.Calls) != 2 {
		t.Fatalf("expected two calls in the conference, got %+v", conf)
	}

	for _, id := range []string{"call-1", "call-2"} {
		w = env.do(t, http.MethodPut, "/v1/providers/acct-1/calls/"+id+"/peers/"+id+"-peer/state", sig,
			map[string]any{"state": "Connected"})
		expectCode(t, w, http.StatusOK)
	}
	if cmds := env.sink.Commands(); len(cmds) != 0 {
		t.Fatalf("conference legs must not be held, got %+v", cmds)
	}
}

func TestPeerAndMemberRoutes(t *testing.T) {
	env := newTestEnv(t)
	sig := env.token(t, rbac.RoleSignaling)
	env.registerAccount(t, sig, "acct-1")
	env.connectCall(t, sig, "acct-1", "call-1", "alice")

	base := "/v1/providers/acct-1/calls/call-1/peers"
	w := env.do(t, http.MethodPost, base, sig, map[string]string{"id": "carol", "address": "sip:carol@example.com"})
	expectCode(t, w, http.StatusCreated)
	w = env.do(t, http.MethodPost, base, sig, map[string]string{"id": "carol"})
	expectCode(t, w, http.StatusConflict)

	w = env.do(t, http.MethodPatch, base+"/alice", sig, map[string]any{"mute": true, "conference_focus": true})
	expectCode(t, w, http.StatusOK)
	if pv := decode[peerView](t, w); !pv.Mute || !pv.Focus {
		t.Fatalf("expected muted focus peer, got %+v", pv)
	}

	w = env.do(t, http.MethodPost, base+"/alice/members", sig, map[string]string{"address": "dave", "state": "connected"})
	expectCode(t, w, http.StatusCreated)
	w = env.do(t, http.MethodPost, base+"/alice/members", sig, map[string]string{"address": "dave"})
	expectCode(t, w, http.StatusConflict)
	expectCode(t, env.do(t, http.MethodDelete, base+"/alice/members/dave", sig, nil), http.StatusNoContent)
	expectCode(t, env.do(t, http.MethodDelete, base+"/alice/members/dave", sig, nil), http.StatusNotFound)

	expectCode(t, env.do(t, http.MethodDelete, base+"/carol", sig, nil), http.StatusNoContent)
	w = env.do(t, http.MethodPut, base+"/alice/state", sig, map[string]any{"state": "Sideways"})
	expectCode(t, w, http.StatusBadRequest)
}

func TestEndedCallViewHasNoConference(t *testing.T) {
	env := newTestEnv(t)
	sig := env.token(t, rbac.RoleSignaling)
	env.registerAccount(t, sig, "acct-1")
	env.connectCall(t, sig, "acct-1", "call-1", "alice")

	p, _ := env.registry.Provider("acct-1")
	call, _ := p.(*remote.Provider).Call("call-1")
	call.Conference()

	w := env.do(t, http.MethodPut, "/v1/providers/acct-1/calls/call-1/state", sig, map[string]any{"state": "Ended"})
	expectCode(t, w, http.StatusOK)
	if v := decode[callView](t, w); v.State != "Ended" || v.Conference != nil {
		t.Fatalf("expected ended call without aggregate, got %+v", v)
	}
	if call.CurrentConference() != nil {
		t.Fatalf("reading an ended call must not re-attach it")
	}
}

func TestEndedCallIsRecorded(t *testing.T) {
	env := newTestEnv(t)
	sig := env.token(t, rbac.RoleSignaling)
	env.registerAccount(t, sig, "acct-1")
	env.connectCall(t, sig, "acct-1", "call-1", "alice")

	w := env.do(t, http.MethodPut, "/v1/providers/acct-1/calls/call-1/peers/alice/state", sig,
		map[string]any{"state": "Disconnected", "reason": "bye", "reason_code": 200})
	expectCode(t, w, http.StatusOK)
	expectCode(t, env.do(t, http.MethodGet, "/v1/providers/acct-1/calls/call-1", sig, nil), http.StatusNotFound)

	observer := env.token(t, rbac.RoleObserver)
	deadline := time.Now().Add(2 * time.Second)
	for {
		w = env.do(t, http.MethodGet, "/v1/history?account=acct-1", observer, nil)
		expectCode(t, w, http.StatusOK)
		got := decode[struct {
			Records []history.Record `json:"records"`
		}](t, w)
		if len(got.Records) == 1 {
			if got.Records[0].CallID != "call-1" || got.Records[0].Reason != "bye" {
				t.Fatalf("unexpected record: %+v", got.Records[0])
			}
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("history record was not written")
		}
		time.Sleep(10 * time.Millisecond)
	}

	w = env.do(t, http.MethodGet, "/v1/history/summary?account=acct-1", observer, nil)
	expectCode(t, w, http.StatusOK)
	if sum := decode[history.Summary](t, w); sum.TotalCalls != 1 || sum.OutgoingCalls != 1 {
		t.Fatalf("unexpected summary: %+v", sum)
	}
	expectCode(t, env.do(t, http.MethodGet, "/v1/history", observer, nil), http.StatusBadRequest)
}

func TestUpdatePolicyIsAudited(t *testing.T) {
	env := newTestEnv(t)
	admin := env.token(t, rbac.RoleAdmin)

	w := env.do(t, http.MethodPut, "/v1/admin/policy", admin, config.PolicySettings{CallWaitingDisabled: true})
	expectCode(t, w, http.StatusOK)
	if !env.policy.CallWaitingDisabled() {
		t.Fatalf("policy was not applied")
	}

	w = env.do(t, http.MethodGet, "/v1/audit?type=policy_update", admin, nil)
	expectCode(t, w, http.StatusOK)
	got := decode[struct {
		Events []audit.Event `json:"events"`
	}](t, w)
	if len(got.Events) != 1 || got.Events[0].ActorUserID != "user-admin" {
		t.Fatalf("unexpected audit events: %+v", got.Events)
	}
}

func TestCallWaitingDisabledRejectsOverApi(t *testing.T) {
	env := newTestEnv(t)
	env.policy.SetPolicy(config.PolicySettings{CallWaitingDisabled: true})
	sig := env.token(t, rbac.RoleSignaling)
	env.registerAccount(t, sig, "acct-1")
	env.connectCall(t, sig, "acct-1", "call-1", "alice")

	w := env.do(t, http.MethodPost, "/v1/providers/acct-1/calls", sig, map[string]any{
		"id": "call-2", "direction": "incoming", "peers": []map[string]string{{"id": "bob"}},
	})
	expectCode(t, w, http.StatusCreated)

	cmds := env.sink.Commands()
	if len(cmds) != 1 || cmds[0].Kind != remote.CommandHangup || cmds[0].PeerID != "bob" || cmds[0].ReasonCode != telephony.ReasonBusyHere {
		t.Fatalf("expected busy hangup for bob, got %+v", cmds)
	}
}
