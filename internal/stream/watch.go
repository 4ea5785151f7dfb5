package stream

import (
	"sync"

	"callcore/internal/calls"
	"callcore/internal/telephony"
)

// Watch broadcasts the activity of every call on every provider in reg until
// the returned function is called.
func (h *Hub) Watch(reg telephony.Registry) (stop func()) {
	w := &watcher{hub: h, calls: make(map[*calls.Call][]func())}
	track := func(ev telephony.CallEvent) { w.track(ev.Call) }
	stopCalls := telephony.WatchCalls(reg, track)
	telephony.EachActiveCall(reg, track)
	return func() {
		stopCalls()
		w.stopAll()
	}
}

type watcher struct {
	hub *Hub

	mu      sync.Mutex
	calls   map[*calls.Call][]func()
	stopped bool
}

func (w *watcher) track(call *calls.Call) {
	w.mu.Lock()
	if _, ok := w.calls[call]; ok || w.stopped {
		w.mu.Unlock()
		return
	}
	w.calls[call] = nil
	w.mu.Unlock()

	base := Message{AccountID: call.AccountID(), CallID: call.ID()}
	msg := base
	msg.Type, msg.New = TypeCallCreated, call.State().String()
	w.hub.Broadcast(msg)

	var peerSubs sync.Map
	watchPeer := func(p *calls.Peer) {
		unsubState := p.OnStateChange(func(ev calls.PeerStateEvent) {
			m := base
			m.Type, m.PeerID = TypePeerState, p.ID()
			m.Old, m.New, m.Reason = ev.Old.String(), ev.New.String(), ev.Reason
			if ev.ReasonCode != calls.NoReasonCode {
				code := ev.ReasonCode
				m.ReasonCode = &code
			}
			w.hub.Broadcast(m)
		})
		unsubMembers := p.OnMemberChange(func(ev calls.ConferenceMemberEvent) {
			m := base
			m.PeerID, m.Member = p.ID(), ev.Member.Address()
			m.Type = TypeMemberAdded
			if ev.Kind == calls.MemberRemoved {
				m.Type = TypeMemberRemoved
			}
			w.hub.Broadcast(m)
		})
		if _, loaded := peerSubs.LoadOrStore(p, func() { unsubState(); unsubMembers() }); loaded {
			unsubState()
			unsubMembers()
		}
	}
	unwatchPeer := func(p *calls.Peer) {
		if v, ok := peerSubs.LoadAndDelete(p); ok {
			v.(func())()
		}
	}

	subs := []func(){
		call.OnPeerChange(func(ev calls.CallPeerEvent) {
			m := base
			m.PeerID = ev.Peer.ID()
			if ev.Kind == calls.PeerAdded {
				m.Type = TypePeerAdded
				watchPeer(ev.Peer)
			} else {
				m.Type = TypePeerRemoved
				unwatchPeer(ev.Peer)
			}
			w.hub.Broadcast(m)
		}),
		call.OnConferenceChange(func(ev calls.CallConferenceEvent) {
			m := base
			m.Type = TypeConferenceChange
			if ev.New != nil {
				m.Conference = ev.New.CallCount()
			}
			w.hub.Broadcast(m)
		}),
		call.OnStateChange(func(ev calls.CallStateEvent) {
			m := base
			m.Type, m.Old, m.New = TypeCallState, ev.Old.String(), ev.New.String()
			w.hub.Broadcast(m)
			if ev.New == calls.CallEnded {
				w.untrack(call)
			}
		}),
		func() {
			peerSubs.Range(func(k, v any) bool {
				v.(func())()
				peerSubs.Delete(k)
				return true
			})
		},
	}
	for _, p := range call.Peers() {
		watchPeer(p)
	}

	w.mu.Lock()
	if _, ok := w.calls[call]; ok && !w.stopped {
		w.calls[call] = subs
		subs = nil
	}
	w.mu.Unlock()
	for _, unsub := range subs {
		unsub()
	}
	if call.State() == calls.CallEnded {
		w.untrack(call)
	}
}

func (w *watcher) untrack(call *calls.Call) {
	w.mu.Lock()
	subs := w.calls[call]
	delete(w.calls, call)
	w.mu.Unlock()
	for _, unsub := range subs {
		unsub()
	}
}

func (w *watcher) stopAll() {
	w.mu.Lock()
	w.stopped = true
	all := w.calls
	w.calls = make(map[*calls.Call][]func())
	w.mu.Unlock()
	for _, subs := range all {
		for _, unsub := range subs {
			unsub()
		}
	}
}
