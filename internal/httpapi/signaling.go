package httpapi

import (
	"net/http"

	"callcore/internal/auth"
	"callcore/internal/calls"
	"callcore/internal/presence"
	"callcore/internal/rbac"
	"callcore/internal/remote"

	"github.com/gin-gonic/gin"
)

type registerProviderRequest struct {
	AccountID    string   `json:"account_id"`
	Protocol     string   `json:"protocol"`
	MixingBridge bool     `json:"mixing_bridge"`
	Supported    []string `json:"supported_statuses"`
}

type providerView struct {
	AccountID string   `json:"account_id"`
	Protocol  string   `json:"protocol"`
	Status    string   `json:"status,omitempty"`
	Supported []string `json:"supported_statuses,omitempty"`
}

func newProviderView(p *remote.Provider) providerView {
	v := providerView{AccountID: p.AccountID(), Protocol: p.Protocol(), Status: p.Status().Name}
	for _, s := range p.SupportedStatuses() {
		v.Supported = append(v.Supported, s.Name)
	}
	return v
}

// RegisterProvider brings an account online. Statuses stored by an earlier
// registration are restored before the provider becomes visible.
func (h Handlers) RegisterProvider(c *gin.Context) {
	var req registerProviderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abort(c, http.StatusBadRequest, "invalid json")
		return
	}
	if req.AccountID == "" {
		abort(c, http.StatusBadRequest, "account_id required")
		return
	}
	if id, _ := auth.IdentityFrom(c.Request.Context()); !rbac.CanAccess(id, req.AccountID) {
		abort(c, http.StatusForbidden, "account not allowed")
		return
	}
	supported := make([]presence.Status, 0, len(req.Supported))
	for _, name := range req.Supported {
		s, ok := presence.ByName(name)
		if !ok {
			abort(c, http.StatusBadRequest, "unknown status "+name)
			return
		}
		supported = append(supported, s)
	}

	p, err := h.NewProvider(remote.Options{
		AccountID:    req.AccountID,
		Protocol:     req.Protocol,
		Supported:    supported,
		MixingBridge: req.MixingBridge,
	})
	if err != nil {
		abort(c, http.StatusBadRequest, err.Error())
		return
	}
	if err := p.LoadStatus(c.Request.Context()); err != nil {
		h.reqLog(c).Warn("presence restore failed", "account", req.AccountID, "err", err)
	}
	if !h.Registry.Register(p) {
		abort(c, http.StatusConflict, "account already registered")
		return
	}
	h.reqLog(c).Info("provider registered", "account", req.AccountID, "protocol", p.Protocol())
	c.JSON(http.StatusCreated, newProviderView(p))
}

func (h Handlers) UnregisterProvider(c *gin.Context) {
	p, ok := h.provider(c)
	if !ok {
		return
	}
	h.Registry.Unregister(p)
	h.reqLog(c).Info("provider unregistered", "account", p.AccountID())
	c.Status(http.StatusNoContent)
}

func (h Handlers) ListProviders(c *gin.Context) {
	out := []providerView{}
	for _, p := range h.Registry.Providers() {
		if rp, ok := p.(*remote.Provider); ok {
			out = append(out, newProviderView(rp))
		}
	}
	c.JSON(http.StatusOK, gin.H{"providers": out})
}

type statusRequest struct {
	Status  string `json:"status"`
	Message string `json:"message"`
}

// PublishStatus records a status change made by the user on the device.
func (h Handlers) PublishStatus(c *gin.Context) {
	p, ok := h.provider(c)
	if !ok {
		return
	}
	var req statusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abort(c, http.StatusBadRequest, "invalid json")
		return
	}
	s, found := presence.ByName(req.Status)
	if !found {
		abort(c, http.StatusBadRequest, "unknown status")
		return
	}
	if err := p.PublishStatus(c.Request.Context(), s, req.Message); err != nil {
		abort(c, statusFor(err), err.Error())
		return
	}
	c.JSON(http.StatusOK, newProviderView(p))
}

type createCallRequest struct {
	ID        string            `json:"id"`
	Direction calls.Direction   `json:"direction"`
	Peers     []remote.PeerSpec `json:"peers"`
}

func (h Handlers) CreateCall(c *gin.Context) {
	p, ok := h.provider(c)
	if !ok {
		return
	}
	var req createCallRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abort(c, http.StatusBadRequest, "invalid json")
		return
	}
	switch req.Direction {
	case calls.DirectionIncoming, calls.DirectionOutgoing:
	default:
		abort(c, http.StatusBadRequest, "direction must be incoming or outgoing")
		return
	}
	call, err := p.CreateCall(req.ID, req.Direction, req.Peers)
	if err != nil {
		abort(c, statusFor(err), err.Error())
		return
	}
	c.JSON(http.StatusCreated, newCallView(call))
}

type callStateRequest struct {
	State string `json:"state"`
}

// SetCallState lets the stack end a whole call at once. Calls only move
// forward, so stale reports are ignored.
func (h Handlers) SetCallState(c *gin.Context) {
	_, call, ok := h.call(c)
	if !ok {
		return
	}
	var req callStateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abort(c, http.StatusBadRequest, "invalid json")
		return
	}
	st, found := calls.ParseCallState(req.State)
	if !found {
		abort(c, http.StatusBadRequest, "unknown call state")
		return
	}
	call.SetState(st, nil)
	c.JSON(http.StatusOK, newCallView(call))
}

func (h Handlers) AddPeer(c *gin.Context) {
	p, call, ok := h.call(c)
	if !ok {
		return
	}
	var req remote.PeerSpec
	if err := c.ShouldBindJSON(&req); err != nil {
		abort(c, http.StatusBadRequest, "invalid json")
		return
	}
	if req.ID != "" {
		if _, exists := call.Peer(req.ID); exists {
			abort(c, http.StatusConflict, "peer already in call")
			return
		}
	}
	peer, err := p.AddPeer(call.ID(), req)
	if err != nil {
		abort(c, http.StatusNotFound, err.Error())
		return
	}
	c.JSON(http.StatusCreated, newPeerView(peer))
}

func (h Handlers) RemovePeer(c *gin.Context) {
	_, call, ok := h.call(c)
	if !ok {
		return
	}
	peer, ok := h.peer(c, call)
	if !ok {
		return
	}
	call.RemovePeer(peer)
	c.Status(http.StatusNoContent)
}

type peerStateRequest struct {
	State      string `json:"state"`
	Reason     string `json:"reason"`
	ReasonCode *int   `json:"reason_code"`
}

func (h Handlers) SetPeerState(c *gin.Context) {
	_, call, ok := h.call(c)
	if !ok {
		return
	}
	peer, ok := h.peer(c, call)
	if !ok {
		return
	}
	var req peerStateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abort(c, http.StatusBadRequest, "invalid json")
		return
	}
	st, found := calls.ParsePeerState(req.State)
	if !found {
		abort(c, http.StatusBadRequest, "unknown peer state")
		return
	}
	code := calls.NoReasonCode
	if req.ReasonCode != nil {
		code = *req.ReasonCode
	}
	peer.SetState(st, req.Reason, code)
	c.JSON(http.StatusOK, newPeerView(peer))
}

type peerPropertiesRequest struct {
	Mute            *bool   `json:"mute"`
	ConferenceFocus *bool   `json:"conference_focus"`
	DisplayName     *string `json:"display_name"`
}

func (h Handlers) UpdatePeer(c *gin.Context) {
	_, call, ok := h.call(c)
	if !ok {
		return
	}
	peer, ok := h.peer(c, call)
	if !ok {
		return
	}
	var req peerPropertiesRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abort(c, http.StatusBadRequest, "invalid json")
		return
	}
	if req.Mute != nil {
		peer.SetMute(*req.Mute)
	}
	if req.ConferenceFocus != nil {
		peer.SetConferenceFocus(*req.ConferenceFocus)
	}
	if req.DisplayName != nil {
		peer.SetDisplayName(*req.DisplayName)
	}
	c.JSON(http.StatusOK, newPeerView(peer))
}

type memberRequest struct {
	Address     string `json:"address"`
	DisplayName string `json:"display_name"`
	State       string `json:"state"`
}

func (h Handlers) AddMember(c *gin.Context) {
	_, call, ok := h.call(c)
	if !ok {
		return
	}
	peer, ok := h.peer(c, call)
	if !ok {
		return
	}
	var req memberRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abort(c, http.StatusBadRequest, "invalid json")
		return
	}
	if req.Address == "" {
		abort(c, http.StatusBadRequest, "address required")
		return
	}
	if _, exists := peer.ConferenceMember(req.Address); exists {
		abort(c, http.StatusConflict, "member already present")
		return
	}
	m := calls.NewConferenceMember(req.Address, req.DisplayName)
	if req.State != "" {
		m.SetState(calls.ParseMemberState(req.State))
	}
	peer.AddConferenceMember(m)
	c.JSON(http.StatusCreated, newPeerView(peer))
}

func (h Handlers) RemoveMember(c *gin.Context) {
	_, call, ok := h.call(c)
	if !ok {
		return
	}
	peer, ok := h.peer(c, call)
	if !ok {
		return
	}
	m, found := peer.ConferenceMember(c.Param("address"))
	if !found {
		abort(c, http.StatusNotFound, "member not found")
		return
	}
	peer.RemoveConferenceMember(m)
	c.Status(http.StatusNoContent)
}

type mergeRequest struct {
	CallIDs      []string `json:"call_ids"`
	MixingBridge bool     `json:"mixing_bridge"`
}

// MergeCalls moves the listed calls into one new conference. Each call
// leaves its previous aggregate.
func (h Handlers) MergeCalls(c *gin.Context) {
	p, ok := h.provider(c)
	if !ok {
		return
	}
	var req mergeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abort(c, http.StatusBadRequest, "invalid json")
		return
	}
	if len(req.CallIDs) < 2 {
		abort(c, http.StatusBadRequest, "at least two call_ids required")
		return
	}
	members := make([]*calls.Call, 0, len(req.CallIDs))
	for _, id := range req.CallIDs {
		call, found := p.Call(id)
		if !found {
			abort(c, http.StatusNotFound, "call "+id+" not found")
			return
		}
		members = append(members, call)
	}

	conf := calls.NewConference(req.MixingBridge)
	for _, call := range members {
		conf.AddCall(call)
	}
	h.reqLog(c).Info("calls merged", "account", p.AccountID(), "calls", req.CallIDs)
	c.JSON(http.StatusOK, newConferenceView(conf))
}

func (h Handlers) provider(c *gin.Context) (*remote.Provider, bool) {
	p, found := h.Registry.Provider(c.Param("account"))
	if !found {
		abort(c, http.StatusNotFound, "provider not found")
		return nil, false
	}
	rp, isRemote := p.(*remote.Provider)
	if !isRemote {
		abort(c, http.StatusConflict, "provider is not driven through the API")
		return nil, false
	}
	return rp, true
}

func (h Handlers) call(c *gin.Context) (*remote.Provider, *calls.Call, bool) {
	p, ok := h.provider(c)
	if !ok {
		return nil, nil, false
	}
	call, found := p.Call(c.Param("call_id"))
	if !found {
		abort(c, http.StatusNotFound, "call not found")
		return nil, nil, false
	}
	return p, call, true
}

func (h Handlers) peer(c *gin.Context, call *calls.Call) (*calls.Peer, bool) {
	peer, found := call.Peer(c.Param("peer_id"))
	if !found {
		abort(c, http.StatusNotFound, "peer not found")
		return nil, false
	}
	return peer, true
}
