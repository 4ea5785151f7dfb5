package history

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"callcore/internal/calls"
	"callcore/internal/telephony"
)

// RecorderOptions tune the Recorder. Zero values are valid.
type RecorderOptions struct {
	Logger       *slog.Logger
	QueueSize    int
	WriteTimeout time.Duration
}

// Recorder watches calls and appends a Record for each one that ends.
// Writes happen on a background worker so call handling never waits on the
// repository.
type Recorder struct {
	repo    Repository
	log     *slog.Logger
	clock   func() time.Time
	timeout time.Duration

	qmu    sync.RWMutex
	queue  chan Record
	closed bool
	done   chan struct{}

	mu        sync.Mutex
	active    map[*calls.Call]*callTrace
	stopWatch func()
}

type callTrace struct {
	mu          sync.Mutex
	seen        map[*calls.Peer]bool
	peers       []string
	connectedAt time.Time
	lastState   calls.PeerState
	reason      string
	reasonCode  int
	unsubscribe []func()
}

func NewRecorder(repo Repository, opts RecorderOptions) *Recorder {
	log := opts.Logger
	if log == nil {
		log = slog.Default()
	}
	size := opts.QueueSize
	if size <= 0 {
		size = 256
	}
	timeout := opts.WriteTimeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	r := &Recorder{
		repo:    repo,
		log:     log.With("component", "history"),
		clock:   time.Now,
		timeout: timeout,
		queue:   make(chan Record, size),
		done:    make(chan struct{}),
		active:  make(map[*calls.Call]*callTrace),
	}
	go r.run()
	return r
}

// Watch records every call of every provider in reg, including calls
// already active.
func (r *Recorder) Watch(reg telephony.Registry) {
	track := func(ev telephony.CallEvent) { r.Track(ev.Call) }
	stop := telephony.WatchCalls(reg, track)
	telephony.EachActiveCall(reg, track)
	r.mu.Lock()
	r.stopWatch = stop
	r.mu.Unlock()
}

// Stop detaches from the registry and waits for queued records to be written.
func (r *Recorder) Stop() {
	r.mu.Lock()
	stop := r.stopWatch
	r.stopWatch = nil
	r.mu.Unlock()
	if stop != nil {
		stop()
	}

	r.qmu.Lock()
	if !r.closed {
		r.closed = true
		close(r.queue)
	}
	r.qmu.Unlock()
	<-r.done
}

// Track starts recording call. Tracking a call twice is a no-op.
func (r *Recorder) Track(call *calls.Call) {
	if call == nil {
		return
	}
	tr := &callTrace{seen: make(map[*calls.Peer]bool), reasonCode: calls.NoReasonCode}

	r.mu.Lock()
	if _, ok := r.active[call]; ok {
		r.mu.Unlock()
		return
	}
	r.active[call] = tr
	r.mu.Unlock()

	unsubPeers := call.OnPeerChange(func(ev calls.CallPeerEvent) {
		if ev.Kind == calls.PeerAdded {
			tr.watchPeer(ev.Peer)
		}
	})
	unsubState := call.OnStateChange(func(ev calls.CallStateEvent) {
		if ev.New != calls.CallEnded {
			return
		}
		// The peer that ended the call may not have reached our peer
		// observer yet.
		if ev.Cause != nil {
			tr.observe(*ev.Cause)
		}
		r.finish(call)
	})
	tr.mu.Lock()
	tr.unsubscribe = append(tr.unsubscribe, unsubPeers, unsubState)
	tr.mu.Unlock()

	for _, p := range call.Peers() {
		tr.watchPeer(p)
	}
	if call.State() == calls.CallEnded {
		r.finish(call)
	}
}

func (tr *callTrace) watchPeer(p *calls.Peer) {
	tr.mu.Lock()
	if tr.seen[p] {
		tr.mu.Unlock()
		return
	}
	tr.seen[p] = true
	tr.peers = append(tr.peers, p.Address())
	tr.mu.Unlock()

	unsub := p.OnStateChange(func(ev calls.PeerStateEvent) { tr.observe(ev) })
	tr.mu.Lock()
	tr.unsubscribe = append(tr.unsubscribe, unsub)
	if p.State().IsConnected() && tr.connectedAt.IsZero() {
		tr.connectedAt = p.DurationStart()
	}
	tr.mu.Unlock()
}

func (tr *callTrace) observe(ev calls.PeerStateEvent) {
	tr.mu.Lock()
	defer tr.mu.Unlock()
	if ev.New == calls.PeerConnected && tr.connectedAt.IsZero() {
		tr.connectedAt = ev.Peer.DurationStart()
	}
	if ev.New.IsTerminal() {
		tr.lastState = ev.New
		tr.reason = ev.Reason
		tr.reasonCode = ev.ReasonCode
	}
}

func (r *Recorder) finish(call *calls.Call) {
	r.mu.Lock()
	tr, ok := r.active[call]
	delete(r.active, call)
	r.mu.Unlock()
	if !ok {
		return
	}

	tr.mu.Lock()
	unsubs := tr.unsubscribe
	tr.unsubscribe = nil
	rec := tr.record(call, r.clock())
	tr.mu.Unlock()
	for _, unsub := range unsubs {
		unsub()
	}
	r.enqueue(rec)
}

func (tr *callTrace) record(call *calls.Call, ended time.Time) Record {
	rec := Record{
		CallID:      call.ID(),
		AccountID:   call.AccountID(),
		Direction:   string(call.Direction()),
		Peers:       append([]string(nil), tr.peers...),
		StartedAt:   call.CreatedAt(),
		ConnectedAt: tr.connectedAt,
		EndedAt:     ended,
		Reason:      tr.reason,
		ReasonCode:  tr.reasonCode,
	}
	switch {
	case !tr.connectedAt.IsZero():
		rec.Outcome = OutcomeCompleted
		rec.DurationSeconds = int(ended.Sub(tr.connectedAt).Seconds())
	case tr.lastState == calls.PeerBusy:
		rec.Outcome = OutcomeBusy
	case tr.lastState == calls.PeerFailed:
		rec.Outcome = OutcomeFailed
	default:
		rec.Outcome = OutcomeNoAnswer
	}
	return rec
}

// enqueue never blocks; a full queue drops the record.
func (r *Recorder) enqueue(rec Record) {
	r.qmu.RLock()
	defer r.qmu.RUnlock()
	if r.closed {
		return
	}
	select {
	case r.queue <- rec:
	default:
		r.log.Warn("history queue full, dropping record", "call_id", rec.CallID)
	}
}

func (r *Recorder) run() {
	defer close(r.done)
	for rec := range r.queue {
		ctx, cancel := context.WithTimeout(context.Background(), r.timeout)
		if err := r.repo.Append(ctx, rec); err != nil {
			r.log.Error("history append failed", "call_id", rec.CallID, "err", err)
		}
		cancel()
	}
}
