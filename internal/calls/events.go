package calls

// PeerStateEvent reports a peer state transition.
type PeerStateEvent struct {
	Peer       *Peer
	Old, New   PeerState
	Reason     string
	ReasonCode int
}

// PeerProperty names a peer attribute other than its state.
type PeerProperty string

const (
	PeerPropertyMute            PeerProperty = "mute"
	PeerPropertyConferenceFocus PeerProperty = "conference_focus"
	PeerPropertyDisplayName     PeerProperty = "display_name"
)

// PeerPropertyEvent reports a change of a peer attribute.
type PeerPropertyEvent struct {
	Peer     *Peer
	Property PeerProperty
	Old, New any
}

// MemberChange is the kind of a ConferenceMemberEvent.
type MemberChange int

const (
	MemberAdded MemberChange = iota
	MemberRemoved
)

func (k MemberChange) String() string {
	if k == MemberAdded {
		return "member_added"
	}
	return "member_removed"
}

// ConferenceMemberEvent reports a change in a focus peer's member roster.
type ConferenceMemberEvent struct {
	Peer   *Peer
	Member *ConferenceMember
	Kind   MemberChange
}

// MemberProperty names a ConferenceMember attribute.
type MemberProperty string

const (
	MemberPropertyDisplayName MemberProperty = "display_name"
	MemberPropertyState       MemberProperty = "state"
	MemberPropertyAudioSSRC   MemberProperty = "audio_ssrc"
	MemberPropertyVideoSSRC   MemberProperty = "video_ssrc"
	MemberPropertyAudioStatus MemberProperty = "audio_status"
	MemberPropertyVideoStatus MemberProperty = "video_status"
)

// MemberPropertyEvent reports a change of a ConferenceMember attribute.
type MemberPropertyEvent struct {
	Member   *ConferenceMember
	Property MemberProperty
	Old, New any
}

// CallStateEvent reports a call state transition. Cause is the peer
// transition that triggered it, if any.
type CallStateEvent struct {
	Call     *Call
	Old, New CallState
	Cause    *PeerStateEvent
}

// PeerChange is the kind of a CallPeerEvent.
type PeerChange int

const (
	PeerAdded PeerChange = iota
	PeerRemoved
)

func (k PeerChange) String() string {
	if k == PeerAdded {
		return "peer_added"
	}
	return "peer_removed"
}

// CallPeerEvent reports a peer joining or leaving a call.
type CallPeerEvent struct {
	Call *Call
	Peer *Peer
	Kind PeerChange
}

// CallConferenceEvent reports that a call moved between aggregates.
// Either side may be nil.
type CallConferenceEvent struct {
	Call     *Call
	Old, New *Conference
}

// ConferenceChange is the kind of a ConferenceEvent.
type ConferenceChange int

const (
	ConferenceCallAdded ConferenceChange = iota
	ConferenceCallRemoved
	ConferenceFocusChanged
)

func (k ConferenceChange) String() string {
	switch k {
	case ConferenceCallAdded:
		return "call_added"
	case ConferenceCallRemoved:
		return "call_removed"
	default:
		return "focus_changed"
	}
}

// ConferenceEvent reports a membership or focus change of a Conference.
// Call is nil for ConferenceFocusChanged.
type ConferenceEvent struct {
	Conference *Conference
	Kind       ConferenceChange
	Call       *Call
	Focus      bool
}
