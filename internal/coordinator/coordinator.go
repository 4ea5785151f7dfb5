// Package coordinator enforces the single-active-call policy across every
// call the process manages.
//
// When a call becomes active, every other active call that is not part of
// the same conference is put on hold. Incoming calls may be rejected as busy
// and the accounts' presence follows whether any call is in progress.
package coordinator

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"

	"callcore/internal/calls"
	"callcore/internal/presence"
	"callcore/internal/telephony"
)

// Settings are the policy switches. They are read on every decision so
// changes apply to the next call event.
type Settings interface {
	CallWaitingDisabled() bool
	RejectCallsOnDND(accountID string) bool
	OnThePhoneStatusEnabled() bool
}

// Calendar vetoes restoring the pre-call presence while the user is in a
// scheduled meeting.
type Calendar interface {
	InMeeting() bool
}

// Options holds optional collaborators. Zero values are valid.
type Options struct {
	Logger   *slog.Logger
	Calendar Calendar
	Actions  ActionLog
	Metrics  Metrics
}

type trackedCall struct {
	call      *calls.Call
	provider  telephony.Provider
	activated atomic.Bool

	unsubscribe func()
}

type Coordinator struct {
	registry telephony.Registry
	settings Settings
	calendar Calendar
	actions  ActionLog
	metrics  Metrics
	log      *slog.Logger

	ctx    context.Context
	cancel context.CancelFunc

	// mu guards the tracked and rejected sets and the lifecycle fields. It
	// is never held while calling into providers.
	mu        sync.Mutex
	tracked   map[*calls.Call]*trackedCall
	rejected  map[*calls.Call]*rejectedCall
	running   bool
	stopCalls func()
	stopWatch func()

	// presenceMu serializes presence updates. rememberMu guards remembered,
	// the status each account had before the phone status replaced it.
	presenceMu sync.Mutex
	rememberMu sync.Mutex
	remembered map[string]presence.Status
}

func New(registry telephony.Registry, settings Settings, opts Options) *Coordinator {
	log := opts.Logger
	if log == nil {
		log = slog.Default()
	}
	metrics := opts.Metrics
	if metrics == nil {
		metrics = nopMetrics{}
	}
	actions := opts.Actions
	if actions == nil {
		actions = nopActions{}
	}
	return &Coordinator{
		registry:   registry,
		settings:   settings,
		calendar:   opts.Calendar,
		actions:    actions,
		metrics:    metrics,
		log:        log.With("component", "coordinator"),
		tracked:    make(map[*calls.Call]*trackedCall),
		rejected:   make(map[*calls.Call]*rejectedCall),
		remembered: make(map[string]presence.Status),
	}
}

// Start subscribes to the registry. Calls already present on registered
// providers are picked up as well. Start is a no-op when running.
func (c *Coordinator) Start(ctx context.Context) {
	c.mu.Lock()
	if c.running {
		c.mu.Unlock()
		return
	}
	c.running = true
	c.ctx, c.cancel = context.WithCancel(ctx)
	c.mu.Unlock()

	stopWatch := c.watchProviders()
	stopCalls := telephony.WatchCalls(c.registry, c.onCall)

	// Calls that predate Start are adopted as they are; busy rejection only
	// applies to calls that arrive while running.
	telephony.EachActiveCall(c.registry, c.track)

	c.mu.Lock()
	c.stopCalls, c.stopWatch = stopCalls, stopWatch
	c.mu.Unlock()
	c.log.Info("coordinator started")
}

// Stop unsubscribes from providers and calls and forgets the tracked set.
func (c *Coordinator) Stop() {
	c.mu.Lock()
	if !c.running {
		c.mu.Unlock()
		return
	}
	c.running = false
	stopCalls, stopWatch := c.stopCalls, c.stopWatch
	tracked := c.tracked
	c.tracked = make(map[*calls.Call]*trackedCall)
	rejected := c.rejected
	c.rejected = make(map[*calls.Call]*rejectedCall)
	c.metrics.SetTracked(0)
	c.mu.Unlock()

	if stopCalls != nil {
		stopCalls()
	}
	if stopWatch != nil {
		stopWatch()
	}
	for _, tc := range tracked {
		if tc.unsubscribe != nil {
			tc.unsubscribe()
		}
	}
	for _, rc := range rejected {
		for _, unsub := range rc.unsubscribe {
			unsub()
		}
	}
	c.cancel()
	c.log.Info("coordinator stopped")
}

// Tracked returns the calls currently watched.
func (c *Coordinator) Tracked() []*calls.Call {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]*calls.Call, 0, len(c.tracked))
	for call := range c.tracked {
		out = append(out, call)
	}
	return out
}

// IsTracked reports whether call is watched.
func (c *Coordinator) IsTracked(call *calls.Call) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.tracked[call]
	return ok
}

// InProgress returns the tracked calls whose state is CallInProgress.
func (c *Coordinator) InProgress() []*calls.Call {
	var out []*calls.Call
	for _, tc := range c.snapshot() {
		if tc.call.State() == calls.CallInProgress {
			out = append(out, tc.call)
		}
	}
	return out
}

func (c *Coordinator) snapshot() []*trackedCall {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]*trackedCall, 0, len(c.tracked))
	for _, tc := range c.tracked {
		out = append(out, tc)
	}
	return out
}

func (c *Coordinator) context() context.Context {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.ctx == nil {
		return context.Background()
	}
	return c.ctx
}

func (c *Coordinator) onCall(ev telephony.CallEvent) {
	if ev.Call == nil {
		return
	}
	if ev.Incoming() && ev.Call.State() == calls.CallInitializing {
		if reason, busy := c.busyReason(ev); busy {
			c.reject(ev, reason)
			return
		}
	}
	c.track(ev)
}

func (c *Coordinator) track(ev telephony.CallEvent) {
	call := ev.Call
	tc := &trackedCall{call: call, provider: ev.Provider}

	c.mu.Lock()
	if !c.running {
		c.mu.Unlock()
		return
	}
	if _, ok := c.tracked[call]; ok {
		c.mu.Unlock()
		return
	}
	if _, ok := c.rejected[call]; ok {
		c.mu.Unlock()
		return
	}
	c.tracked[call] = tc
	c.metrics.SetTracked(len(c.tracked))
	c.mu.Unlock()

	unsub := call.OnStateChange(func(e calls.CallStateEvent) { c.onCallState(tc, e) })

	c.mu.Lock()
	current := c.tracked[call] == tc
	if current {
		tc.unsubscribe = unsub
	}
	c.mu.Unlock()
	if !current {
		unsub()
		return
	}

	c.log.Debug("tracking call", "call_id", call.ID(), "account", call.AccountID())

	// The call may have moved before the subscription was in place.
	switch call.State() {
	case calls.CallInProgress:
		c.activated(tc)
	case calls.CallEnded:
		c.untrack(tc)
		c.updatePresence()
	}
}

func (c *Coordinator) untrack(tc *trackedCall) {
	c.mu.Lock()
	if c.tracked[tc.call] != tc {
		c.mu.Unlock()
		return
	}
	delete(c.tracked, tc.call)
	c.metrics.SetTracked(len(c.tracked))
	unsub := tc.unsubscribe
	c.mu.Unlock()

	if unsub != nil {
		unsub()
	}
	c.log.Debug("untracked call", "call_id", tc.call.ID())
}

func (c *Coordinator) onCallState(tc *trackedCall, ev calls.CallStateEvent) {
	switch ev.New {
	case calls.CallInProgress:
		c.activated(tc)
	case calls.CallEnded:
		c.untrack(tc)
		c.updatePresence()
	}
}

// activated runs once per call, when it first reaches CallInProgress.
func (c *Coordinator) activated(tc *trackedCall) {
	if !tc.activated.CompareAndSwap(false, true) {
		return
	}
	c.holdOthers(tc)
	c.updatePresence()
}
