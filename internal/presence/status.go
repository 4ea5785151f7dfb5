// Package presence defines the presence statuses providers can publish and
// the connectivity thresholds used to compare them.
package presence

import "strings"

// Connectivity thresholds. A status level at or above OnlineThreshold means
// the account is reachable; lower levels within a band are "less available".
const (
	Offline               = 0
	OnlineThreshold       = 20
	DoNotDisturbLevel     = 30
	ExtendedAwayThreshold = 35
	AwayThreshold         = 36
	OnThePhoneLevel       = 37
	InAMeetingLevel       = 38
	AwayLevel             = 40
	AvailableThreshold    = 50
	OnlineLevel           = 65
	EagerToCommunicate    = 80
	FreeForChatLevel      = 85
	MaxLevel              = 100
)

// Status is a named presence value. Two statuses are equal when both name
// and level match.
type Status struct {
	Name  string `json:"name"`
	Level int    `json:"level"`
}

var (
	StatusOffline      = Status{Name: "offline", Level: Offline}
	StatusDoNotDisturb = Status{Name: "do-not-disturb", Level: DoNotDisturbLevel}
	StatusExtendedAway = Status{Name: "extended-away", Level: ExtendedAwayThreshold}
	StatusOnThePhone   = Status{Name: "on-the-phone", Level: OnThePhoneLevel}
	StatusInAMeeting   = Status{Name: "in-a-meeting", Level: InAMeetingLevel}
	StatusAway         = Status{Name: "away", Level: AwayLevel}
	StatusOnline       = Status{Name: "online", Level: OnlineLevel}
	StatusFreeForChat  = Status{Name: "free-for-chat", Level: FreeForChatLevel}
)

// Standard lists every predefined status, lowest level first.
var Standard = []Status{
	StatusOffline,
	StatusDoNotDisturb,
	StatusExtendedAway,
	StatusOnThePhone,
	StatusInAMeeting,
	StatusAway,
	StatusOnline,
	StatusFreeForChat,
}

func (s Status) String() string { return s.Name }

// IsOnline reports whether the status is reachable at all.
func (s Status) IsOnline() bool { return s.Level >= OnlineThreshold }

// IsBusy reports whether the status lies in the do-not-disturb band
// [OnlineThreshold, ExtendedAwayThreshold].
func (s Status) IsBusy() bool {
	return s.Level >= OnlineThreshold && s.Level <= ExtendedAwayThreshold
}

// IsPhoneStatus reports whether s is one of the statuses published while a
// call is active.
func (s Status) IsPhoneStatus() bool {
	return s == StatusOnThePhone || s == StatusInAMeeting
}

// ByName finds a predefined status, ignoring case.
func ByName(name string) (Status, bool) {
	for _, s := range Standard {
		if strings.EqualFold(s.Name, name) {
			return s, true
		}
	}
	return Status{}, false
}

// Supports reports whether set contains s.
func Supports(set []Status, s Status) bool {
	for _, v := range set {
		if v == s {
			return true
		}
	}
	return false
}
