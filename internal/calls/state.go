package calls

import "fmt"

// CallState is the lifecycle state of a Call. It only moves forward:
// Initializing, InProgress, Ended.
type CallState int

const (
	CallInitializing CallState = iota
	CallInProgress
	CallEnded
)

func (s CallState) String() string {
	switch s {
	case CallInitializing:
		return "Initializing"
	case CallInProgress:
		return "InProgress"
	case CallEnded:
		return "Ended"
	default:
		return fmt.Sprintf("CallState(%d)", int(s))
	}
}

// ParseCallState is the inverse of CallState.String.
func ParseCallState(s string) (CallState, bool) {
	for st := CallInitializing; st <= CallEnded; st++ {
		if st.String() == s {
			return st, true
		}
	}
	return 0, false
}

// PeerState is the state of one remote party within a call.
type PeerState int

const (
	PeerUnknown PeerState = iota
	PeerInitiatingCall
	PeerIncomingCall
	PeerConnecting
	PeerConnectingWithEarlyMedia
	PeerAlerting
	PeerConnected
	PeerOnHoldLocal
	PeerOnHoldRemote
	PeerOnHoldMutual
	PeerDisconnected
	PeerFailed
	PeerBusy
	PeerReferred
)

var peerStateNames = [...]string{
	PeerUnknown:                  "Unknown",
	PeerInitiatingCall:           "InitiatingCall",
	PeerIncomingCall:             "IncomingCall",
	PeerConnecting:               "Connecting",
	PeerConnectingWithEarlyMedia: "ConnectingWithEarlyMedia",
	PeerAlerting:                 "Alerting",
	PeerConnected:                "Connected",
	PeerOnHoldLocal:              "OnHoldLocal",
	PeerOnHoldRemote:             "OnHoldRemote",
	PeerOnHoldMutual:             "OnHoldMutual",
	PeerDisconnected:             "Disconnected",
	PeerFailed:                   "Failed",
	PeerBusy:                     "Busy",
	PeerReferred:                 "Referred",
}

func (s PeerState) String() string {
	if s >= 0 && int(s) < len(peerStateNames) {
		return peerStateNames[s]
	}
	return fmt.Sprintf("PeerState(%d)", int(s))
}

// ParsePeerState is the inverse of PeerState.String.
func ParsePeerState(s string) (PeerState, bool) {
	for i, name := range peerStateNames {
		if name == s {
			return PeerState(i), true
		}
	}
	return 0, false
}

// IsOnHold reports whether s is one of the three hold variants.
func (s PeerState) IsOnHold() bool {
	return s == PeerOnHoldLocal || s == PeerOnHoldRemote || s == PeerOnHoldMutual
}

// IsTerminal reports whether the peer has left the call for good.
func (s PeerState) IsTerminal() bool {
	return s == PeerDisconnected || s == PeerFailed || s == PeerBusy
}

// IsConnected reports whether media is established, held or not.
func (s PeerState) IsConnected() bool {
	return s == PeerConnected || s.IsOnHold()
}

// MemberState is the state of a conference member as reported by a focus.
type MemberState string

const (
	MemberAlerting     MemberState = "alerting"
	MemberConnected    MemberState = "connected"
	MemberDialingIn    MemberState = "dialing-in"
	MemberDialingOut   MemberState = "dialing-out"
	MemberDisconnected MemberState = "disconnected"
	MemberOnHold       MemberState = "on-hold"
	MemberPending      MemberState = "pending"
	MemberUnknown      MemberState = "unknown"
)

// ParseMemberState maps a protocol string to a MemberState, falling back to
// MemberUnknown for anything unrecognised.
func ParseMemberState(s string) MemberState {
	switch st := MemberState(s); st {
	case MemberAlerting, MemberConnected, MemberDialingIn, MemberDialingOut,
		MemberDisconnected, MemberOnHold, MemberPending:
		return st
	default:
		return MemberUnknown
	}
}

// MediaDirection describes which way a media stream flows.
type MediaDirection string

const (
	MediaInactive MediaDirection = "inactive"
	MediaSendOnly MediaDirection = "sendonly"
	MediaRecvOnly MediaDirection = "recvonly"
	MediaSendRecv MediaDirection = "sendrecv"
)

// NoReasonCode marks a state change that carries no protocol reason code.
const NoReasonCode = -1
