package config

import (
	"sync"
	"testing"
)

func TestPolicyConfig_DNDPerAccount(t *testing.T) {
	pc := NewPolicyConfig(PolicySettings{RejectCallsOnDNDAccounts: []string{"alice"}})

	if !pc.RejectCallsOnDND("alice") {
		t.Fatalf("expected alice enabled")
	}
	if pc.RejectCallsOnDND("bob") {
		t.Fatalf("expected bob disabled")
	}

	pc.SetPolicy(PolicySettings{RejectCallsOnDND: true})
	if !pc.RejectCallsOnDND("bob") {
		t.Fatalf("expected global flag to apply to every account")
	}
}

func TestPolicyConfig_PolicyIsACopy(t *testing.T) {
	accounts := []string{"alice"}
	pc := NewPolicyConfig(PolicySettings{RejectCallsOnDNDAccounts: accounts})
	accounts[0] = "mallory"

	p := pc.Policy()
	p.RejectCallsOnDNDAccounts[0] = "eve"

	if !pc.RejectCallsOnDND("alice") {
		t.Fatalf("stored settings must not alias caller slices")
	}
}

func TestPolicyConfig_ConcurrentSwap(t *testing.T) {
	pc := NewPolicyConfig(PolicySettings{})
	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(2)
		go func(i int) {
			defer wg.Done()
			for j := 0; j < 200; j++ {
				pc.SetPolicy(PolicySettings{CallWaitingDisabled: (i+j)%2 == 0, OnThePhoneStatus: true})
			}
		}(i)
		go func() {
			defer wg.Done()
			for j := 0; j < 200; j++ {
				p := pc.Policy()
				if p.CallWaitingDisabled && !p.OnThePhoneStatus {
					t.Errorf("observed a mixed snapshot")
					return
				}
			}
		}()
	}
	wg.Wait()
}
