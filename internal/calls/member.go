package calls

import (
	"sync"

	"callcore/internal/event"
)

// UnsetSSRC marks an SSRC the focus has not reported yet.
const UnsetSSRC int64 = -1

// ConferenceMember is one participant listed in a focus peer's roster.
// It is owned by exactly one Peer; its address is stable for its lifetime.
type ConferenceMember struct {
	address string

	mu          sync.Mutex
	displayName string
	state       MemberState
	audioSSRC   int64
	videoSSRC   int64
	audioStatus MediaDirection
	videoStatus MediaDirection

	observers event.Registry[MemberPropertyEvent]
}

// NewConferenceMember returns a member in state MemberUnknown with unset SSRCs.
func NewConferenceMember(address, displayName string) *ConferenceMember {
	return &ConferenceMember{
		address:     address,
		displayName: displayName,
		state:       MemberUnknown,
		audioSSRC:   UnsetSSRC,
		videoSSRC:   UnsetSSRC,
		audioStatus: MediaInactive,
		videoStatus: MediaInactive,
	}
}

func (m *ConferenceMember) Address() string { return m.address }

func (m *ConferenceMember) DisplayName() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.displayName
}

func (m *ConferenceMember) State() MemberState {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

func (m *ConferenceMember) AudioSSRC() int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.audioSSRC
}

func (m *ConferenceMember) VideoSSRC() int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.videoSSRC
}

func (m *ConferenceMember) AudioStatus() MediaDirection {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.audioStatus
}

func (m *ConferenceMember) VideoStatus() MediaDirection {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.videoStatus
}

func (m *ConferenceMember) SetDisplayName(v string) {
	setMemberField(m, &m.displayName, v, MemberPropertyDisplayName)
}

func (m *ConferenceMember) SetState(v MemberState) {
	setMemberField(m, &m.state, v, MemberPropertyState)
}

func (m *ConferenceMember) SetAudioSSRC(v int64) {
	setMemberField(m, &m.audioSSRC, v, MemberPropertyAudioSSRC)
}

func (m *ConferenceMember) SetVideoSSRC(v int64) {
	setMemberField(m, &m.videoSSRC, v, MemberPropertyVideoSSRC)
}

func (m *ConferenceMember) SetAudioStatus(v MediaDirection) {
	setMemberField(m, &m.audioStatus, v, MemberPropertyAudioStatus)
}

func (m *ConferenceMember) SetVideoStatus(v MediaDirection) {
	setMemberField(m, &m.videoStatus, v, MemberPropertyVideoStatus)
}

// OnPropertyChange subscribes to attribute changes of this member.
func (m *ConferenceMember) OnPropertyChange(fn func(MemberPropertyEvent)) func() {
	return m.observers.Subscribe(fn)
}

func setMemberField[T comparable](m *ConferenceMember, field *T, v T, prop MemberProperty) {
	m.mu.Lock()
	old := *field
	if old == v {
		m.mu.Unlock()
		return
	}
	*field = v
	m.mu.Unlock()

	m.observers.Fire(MemberPropertyEvent{Member: m, Property: prop, Old: old, New: v})
}
