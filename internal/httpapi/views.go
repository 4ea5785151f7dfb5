package httpapi

import (
	"time"

	"callcore/internal/calls"
)

type memberView struct {
	Address     string `json:"address"`
	DisplayName string `json:"display_name,omitempty"`
	State       string `json:"state"`
}

type peerView struct {
	ID          string       `json:"id"`
	Address     string       `json:"address"`
	DisplayName string       `json:"display_name,omitempty"`
	State       string       `json:"state"`
	Mute        bool         `json:"mute"`
	Focus       bool         `json:"conference_focus"`
	Members     []memberView `json:"members,omitempty"`
}

type conferenceView struct {
	Calls        []string `json:"calls"`
	Focus        bool     `json:"conference_focus"`
	MixingBridge bool     `json:"mixing_bridge"`
}

type callView struct {
	ID         string          `json:"id"`
	AccountID  string          `json:"account_id"`
	Direction  string          `json:"direction"`
	State      string          `json:"state"`
	CreatedAt  time.Time       `json:"created_at"`
	Peers      []peerView      `json:"peers"`
	Conference *conferenceView `json:"conference,omitempty"`
}

// newConferenceView returns nil for a call that has no aggregate.
func newConferenceView(cf *calls.Conference) *conferenceView {
	if cf == nil {
		return nil
	}
	v := &conferenceView{Focus: cf.IsConferenceFocus(), MixingBridge: cf.UsesMixingBridge()}
	for _, c := range cf.Calls() {
		v.Calls = append(v.Calls, c.ID())
	}
	return v
}

func newPeerView(p *calls.Peer) peerView {
	v := peerView{
		ID:          p.ID(),
		Address:     p.Address(),
		DisplayName: p.DisplayName(),
		State:       p.State().String(),
		Mute:        p.IsMute(),
		Focus:       p.IsConferenceFocus(),
	}
	for _, m := range p.ConferenceMembers() {
		v.Members = append(v.Members, memberView{
			Address:     m.Address(),
			DisplayName: m.DisplayName(),
			State:       string(m.State()),
		})
	}
	return v
}

func newCallView(c *calls.Call) callView {
	v := callView{
		ID:         c.ID(),
		AccountID:  c.AccountID(),
		Direction:  string(c.Direction()),
		State:      c.State().String(),
		CreatedAt:  c.CreatedAt(),
		Peers:      []peerView{},
		Conference: newConferenceView(c.CurrentConference()),
	}
	for _, p := range c.Peers() {
		v.Peers = append(v.Peers, newPeerView(p))
	}
	return v
}

func callIDs(cs []*calls.Call) []string {
	out := make([]string, 0, len(cs))
	for _, c := range cs {
		out = append(out, c.ID())
	}
	return out
}
