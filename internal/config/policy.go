package config

import (
	"slices"
	"sync/atomic"
)

// PolicySettings are the call policy switches.
type PolicySettings struct {
	CallWaitingDisabled bool `json:"call_waiting_disabled"`

	// RejectCallsOnDND applies to every account; RejectCallsOnDNDAccounts
	// enables it for the listed accounts only.
	RejectCallsOnDND         bool     `json:"reject_calls_on_dnd"`
	RejectCallsOnDNDAccounts []string `json:"reject_calls_on_dnd_accounts,omitempty"`

	OnThePhoneStatus bool `json:"on_the_phone_status_enabled"`
}

// PolicyConfig serves the current PolicySettings to readers without locking
// and lets operators replace them at runtime.
type PolicyConfig struct {
	current atomic.Pointer[PolicySettings]
}

func NewPolicyConfig(p PolicySettings) *PolicyConfig {
	pc := &PolicyConfig{}
	pc.SetPolicy(p)
	return pc
}

// Policy returns a copy of the current settings.
func (pc *PolicyConfig) Policy() PolicySettings {
	p := *pc.current.Load()
	p.RejectCallsOnDNDAccounts = slices.Clone(p.RejectCallsOnDNDAccounts)
	return p
}

func (pc *PolicyConfig) SetPolicy(p PolicySettings) {
	p.RejectCallsOnDNDAccounts = slices.Clone(p.RejectCallsOnDNDAccounts)
	pc.current.Store(&p)
}

func (pc *PolicyConfig) CallWaitingDisabled() bool {
	return pc.current.Load().CallWaitingDisabled
}

func (pc *PolicyConfig) RejectCallsOnDND(accountID string) bool {
	p := pc.current.Load()
	return p.RejectCallsOnDND || slices.Contains(p.RejectCallsOnDNDAccounts, accountID)
}

func (pc *PolicyConfig) OnThePhoneStatusEnabled() bool {
	return pc.current.Load().OnThePhoneStatus
}
