package coordinator

import (
	"sync"

	"callcore/internal/calls"
	"callcore/internal/presence"
	"callcore/internal/telephony"
)

// phoneStatus reports whether any tracked call is in progress and which
// status to publish for it.
func (c *Coordinator) phoneStatus() (presence.Status, bool) {
	busy := false
	for _, tc := range c.snapshot() {
		if tc.call.State() != calls.CallInProgress {
			continue
		}
		busy = true
		conf := tc.call.Conference()
		if conf != nil && (conf.IsConferenceFocus() || conf.CallCount() > 1) {
			return presence.StatusInAMeeting, true
		}
	}
	return presence.StatusOnThePhone, busy
}

// updatePresence publishes the phone status on every presence-capable
// provider while a call is in progress and restores the remembered status
// once none is.
func (c *Coordinator) updatePresence() {
	if c.settings == nil || !c.settings.OnThePhoneStatusEnabled() {
		return
	}
	c.presenceMu.Lock()
	defer c.presenceMu.Unlock()

	status, busy := c.phoneStatus()
	for _, p := range c.registry.Providers() {
		ops, ok := telephony.PresenceOf(p)
		if !ok {
			continue
		}
		if busy {
			c.publishPhoneStatus(p, ops, status)
		} else {
			c.restoreStatus(p, ops)
		}
	}
}

func (c *Coordinator) publishPhoneStatus(p telephony.Provider, ops telephony.PresenceOperations, status presence.Status) {
	current := ops.Status()
	if !current.IsOnline() || current == status {
		return
	}
	if !presence.Supports(ops.SupportedStatuses(), status) {
		return
	}
	account := p.AccountID()
	log := c.log.With("account", account, "status", status.Name)

	fresh := !current.IsPhoneStatus()
	if fresh {
		c.remember(account, current)
	}
	if err := ops.PublishStatus(c.context(), status, ""); err != nil {
		log.Error("presence publish failed", "err", err)
		c.metrics.PresenceFailed()
		if fresh {
			c.forget(account)
		}
		return
	}
	log.Info("presence published")
	c.metrics.PresencePublished(status.Name)
	c.record(Action{Kind: ActionPresencePublish, AccountID: account, Detail: status.Name})
}

func (c *Coordinator) restoreStatus(p telephony.Provider, ops telephony.PresenceOperations) {
	account := p.AccountID()
	prev, ok := c.rememberedFor(account)
	if !ok {
		return
	}
	// A scheduled meeting keeps the phone status; the remembered status
	// stays for the next restore.
	if c.calendar != nil && c.calendar.InMeeting() {
		c.log.Debug("presence restore vetoed by calendar", "account", account)
		return
	}
	defer c.forget(account)

	current := ops.Status()
	if !current.IsPhoneStatus() {
		// The user picked another status while on the phone.
		return
	}
	log := c.log.With("account", account, "status", prev.Name)
	if err := ops.PublishStatus(c.context(), prev, ""); err != nil {
		log.Error("presence restore failed", "err", err)
		c.metrics.PresenceFailed()
		return
	}
	log.Info("presence restored")
	c.metrics.PresencePublished(prev.Name)
	c.record(Action{Kind: ActionPresenceRestore, AccountID: account, Detail: prev.Name})
}

func (c *Coordinator) remember(account string, s presence.Status) {
	c.rememberMu.Lock()
	defer c.rememberMu.Unlock()
	c.remembered[account] = s
}

func (c *Coordinator) rememberedFor(account string) (presence.Status, bool) {
	c.rememberMu.Lock()
	defer c.rememberMu.Unlock()
	s, ok := c.remembered[account]
	return s, ok
}

func (c *Coordinator) forget(account string) {
	c.rememberMu.Lock()
	defer c.rememberMu.Unlock()
	delete(c.remembered, account)
}

// Remembered returns the status an account will get back when no call is
// in progress.
func (c *Coordinator) Remembered(account string) (presence.Status, bool) {
	return c.rememberedFor(account)
}

// watchProviders drops remembered statuses of providers that go offline,
// leave the phone status on their own, or are unregistered.
func (c *Coordinator) watchProviders() (stop func()) {
	var mu sync.Mutex
	subs := make(map[telephony.Provider]func())

	watch := func(p telephony.Provider) {
		ops, ok := telephony.PresenceOf(p)
		if !ok {
			return
		}
		mu.Lock()
		defer mu.Unlock()
		if _, ok := subs[p]; ok {
			return
		}
		subs[p] = ops.OnStatusChange(c.onPresence)
	}

	unsubReg := c.registry.OnProviderChange(func(ev telephony.ProviderEvent) {
		switch ev.Kind {
		case telephony.ProviderRegistered:
			watch(ev.Provider)
		case telephony.ProviderUnregistered:
			mu.Lock()
			unsub := subs[ev.Provider]
			delete(subs, ev.Provider)
			mu.Unlock()
			if unsub != nil {
				unsub()
			}
			c.forget(ev.Provider.AccountID())
		}
	})
	for _, p := range c.registry.Providers() {
		watch(p)
	}

	return func() {
		unsubReg()
		mu.Lock()
		all := subs
		subs = make(map[telephony.Provider]func())
		mu.Unlock()
		for _, unsub := range all {
			unsub()
		}
	}
}

func (c *Coordinator) onPresence(ev telephony.PresenceEvent) {
	if ev.Provider == nil {
		return
	}
	if !ev.New.IsOnline() || (ev.Old.IsPhoneStatus() && !ev.New.IsPhoneStatus()) {
		c.forget(ev.Provider.AccountID())
	}
}
