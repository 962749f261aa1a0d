// Package remote implements the remote-control half of the broker: the host
// registry, claim and assignment arbitration, the two consent handshakes, and
// the frame/input relay for active sessions.
//
// All registries live behind a single mutex. Timers are time.AfterFunc tokens
// owned by the pending records; a firing timer re-checks registry state under
// the lock and is a no-op if the record is already gone.
package remote

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/RoseWrightdev/Remote-Control/internal/v1/logging"
	"github.com/RoseWrightdev/Remote-Control/internal/v1/metrics"
	"github.com/RoseWrightdev/Remote-Control/internal/v1/types"
	"go.uber.org/zap"
)

const (
	// EventError carries a {code, message} failure to a single connection.
	EventError = "remote-session-error"

	EventHostRegistered    = "remote-host-registered"
	EventHostsList         = "remote-hosts-list"
	EventHostClaimed       = "remote-host-claimed"
	EventHostSetupPending  = "remote-host-setup-pending"
	EventHostSetupRequest  = "remote-host-setup-requested"
	EventHostSetupResult   = "remote-host-setup-result"
	EventSessionPending    = "remote-session-pending"
	EventSessionRequestUI  = "remote-session-requested-ui"
	EventSessionStarted    = "remote-session-started"
	EventSessionEnded      = "remote-session-ended"
	EventFrame             = "remote-frame"
	EventInput             = "remote-input"
)

const (
	// MaxFrameImageBytes caps the encoded image of a single relayed frame.
	MaxFrameImageBytes = 6 * 1024 * 1024

	defaultRequestTTL    = 45 * time.Second
	defaultAssignmentTTL = 15 * time.Minute
	debugReportInterval  = 2 * time.Second
)

// Config carries the policy knobs for the engine.
type Config struct {
	// AllowSameMachine disables the same-network guard on session requests.
	AllowSameMachine bool
	// Debug enables per-session traffic counters logged every two seconds.
	Debug bool
}

type hostEntry struct {
	connID          types.ConnectionID
	networkID       string
	activeSessionID types.SessionID
}

// claim binds a host id to the room participant who may approve sessions on
// it. Claims are scoped to one room.
type claim struct {
	connID types.ConnectionID
	roomID types.RoomID
}

// assignment reserves a host id for one participant ahead of the host agent
// registering, created by an accepted setup handshake.
type assignment struct {
	targetConnID types.ConnectionID
	roomID       types.RoomID
	expiresAt    time.Time
	timer        *time.Timer
}

type pendingRequest struct {
	id               types.RequestID
	hostID           types.HostID
	hostConnID       types.ConnectionID
	controllerConnID types.ConnectionID
	requesterPeerID  types.PeerID
	roomID           types.RoomID
	approverConnID   types.ConnectionID
	timer            *time.Timer
}

type pendingSetup struct {
	id              types.RequestID
	requesterConnID types.ConnectionID
	requesterPeerID types.PeerID
	targetConnID    types.ConnectionID
	targetPeerID    types.PeerID
	roomID          types.RoomID
	suggestedHostID types.HostID
	timer           *time.Timer
}

type session struct {
	id               types.SessionID
	hostID           types.HostID
	hostConnID       types.ConnectionID
	controllerConnID types.ConnectionID

	// Debug traffic counters, guarded by the engine mutex.
	frames     int64
	frameBytes int64
	inputs     int64
	stopDebug  chan struct{}
}

// Engine owns every remote-control registry. It implements
// gateway.RemoteEngine.
type Engine struct {
	mu        sync.Mutex
	transport types.Transport
	cfg       Config

	hosts       map[types.HostID]*hostEntry
	claims      map[types.HostID]claim
	assignments map[types.HostID]assignment

	pending             map[types.RequestID]*pendingRequest
	pendingByHost       map[types.HostID]types.RequestID
	pendingByController map[types.ConnectionID]types.RequestID

	setupPending map[types.RequestID]*pendingSetup

	sessions map[types.SessionID]*session

	requestTTL    time.Duration
	assignmentTTL time.Duration
	now           func() time.Time
}

// NewEngine creates a remote-control engine emitting through transport.
func NewEngine(transport types.Transport, cfg Config) *Engine {
	return &Engine{
		transport:           transport,
		cfg:                 cfg,
		hosts:               make(map[types.HostID]*hostEntry),
		claims:              make(map[types.HostID]claim),
		assignments:         make(map[types.HostID]assignment),
		pending:             make(map[types.RequestID]*pendingRequest),
		pendingByHost:       make(map[types.HostID]types.RequestID),
		pendingByController: make(map[types.ConnectionID]types.RequestID),
		setupPending:        make(map[types.RequestID]*pendingSetup),
		sessions:            make(map[types.SessionID]*session),
		requestTTL:          defaultRequestTTL,
		assignmentTTL:       defaultAssignmentTTL,
		now:                 time.Now,
	}
}

func (e *Engine) emitError(connID types.ConnectionID, code string) {
	e.emitErrorMsg(connID, code, "")
}

func (e *Engine) emitErrorMsg(connID types.ConnectionID, code, message string) {
	e.transport.EmitToConnection(connID, EventError, errorPayload(code, message))
}

// hostListEntry is one row of the personalized hosts list.
type hostListEntry struct {
	HostID    types.HostID `json:"hostId"`
	Busy      bool         `json:"busy"`
	Ownership string       `json:"ownership"`
}

type hostsListPayload struct {
	Hosts []hostListEntry `json:"hosts"`
}

// liveClaimLocked reports the claim on hostID if its holder is still live and
// still in the claim's room. A stale claim is garbage-collected on the spot.
func (e *Engine) liveClaimLocked(hostID types.HostID) (claim, bool) {
	cl, ok := e.claims[hostID]
	if !ok {
		return claim{}, false
	}
	holder, live := e.transport.Connection(cl.connID)
	if !live || holder.GetRoomID() != cl.roomID {
		delete(e.claims, hostID)
		return claim{}, false
	}
	return cl, true
}

// hostsListFor builds the hosts list as seen by viewer. Ownership is relative
// to the viewer's room: "you", "other", or "unclaimed".
func (e *Engine) hostsListFor(viewer types.Conn) []hostListEntry {
	ids := make([]types.HostID, 0, len(e.hosts))
	for id := range e.hosts {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	list := make([]hostListEntry, 0, len(ids))
	for _, id := range ids {
		entry := e.hosts[id]
		row := hostListEntry{
			HostID:    id,
			Busy:      entry.activeSessionID != "",
			Ownership: "unclaimed",
		}
		if cl, ok := e.liveClaimLocked(id); ok && cl.roomID == viewer.GetRoomID() && cl.roomID != "" {
			if cl.connID == viewer.GetID() {
				row.Ownership = "you"
			} else {
				row.Ownership = "other"
			}
		}
		list = append(list, row)
	}
	return list
}

// broadcastHostsLocked pushes a personalized hosts list to every live
// connection. Called after any mutation that changes the list.
func (e *Engine) broadcastHostsLocked() {
	e.transport.ForEachConnection(func(conn types.Conn) {
		e.transport.EmitToConnection(conn.GetID(), EventHostsList, hostsListPayload{Hosts: e.hostsListFor(conn)})
	})
}

// removeAssignmentLocked drops the assignment for hostID and stops its timer.
func (e *Engine) removeAssignmentLocked(hostID types.HostID) {
	a, ok := e.assignments[hostID]
	if !ok {
		return
	}
	if a.timer != nil {
		a.timer.Stop()
	}
	delete(e.assignments, hostID)
}

// removePendingLocked drops a pending session request, its indexes, its timer,
// and the requester's pending stamp. Returns the record for notification.
func (e *Engine) removePendingLocked(id types.RequestID) (*pendingRequest, bool) {
	req, ok := e.pending[id]
	if !ok {
		return nil, false
	}
	if req.timer != nil {
		req.timer.Stop()
	}
	delete(e.pending, id)
	if e.pendingByHost[req.hostID] == id {
		delete(e.pendingByHost, req.hostID)
	}
	if e.pendingByController[req.controllerConnID] == id {
		delete(e.pendingByController, req.controllerConnID)
	}
	if requester, live := e.transport.Connection(req.controllerConnID); live && requester.GetPendingRemoteRequestID() == id {
		requester.SetPendingRemoteRequestID("")
	}
	return req, true
}

// removeSetupLocked drops a pending setup request, its timer, and both
// participants' stamps. Returns the record for notification.
func (e *Engine) removeSetupLocked(id types.RequestID) (*pendingSetup, bool) {
	ps, ok := e.setupPending[id]
	if !ok {
		return nil, false
	}
	if ps.timer != nil {
		ps.timer.Stop()
	}
	delete(e.setupPending, id)
	if requester, live := e.transport.Connection(ps.requesterConnID); live && requester.GetPendingHostSetupRequestID() == id {
		requester.SetPendingHostSetupRequestID("")
	}
	if target, live := e.transport.Connection(ps.targetConnID); live && target.GetIncomingHostSetupRequestID() == id {
		target.SetIncomingHostSetupRequestID("")
	}
	return ps, true
}

// expireRequest fires when a session request's consent window lapses.
func (e *Engine) expireRequest(id types.RequestID) {
	e.mu.Lock()
	defer e.mu.Unlock()
	req, ok := e.removePendingLocked(id)
	if !ok {
		return
	}
	logging.Info(context.Background(), "remote session request timed out",
		zap.String("request_id", string(id)), zap.String("host_id", string(req.hostID)))
	e.emitError(req.controllerConnID, CodeRequestTimeout)
}

// expireSetup fires when a setup request's consent window lapses.
func (e *Engine) expireSetup(id types.RequestID) {
	e.mu.Lock()
	defer e.mu.Unlock()
	ps, ok := e.removeSetupLocked(id)
	if !ok {
		return
	}
	e.transport.EmitToConnection(ps.requesterConnID, EventHostSetupResult, setupResultPayload{
		RequestID:       ps.id,
		Status:          "timeout",
		TargetPeerID:    ps.targetPeerID,
		SuggestedHostID: ps.suggestedHostID,
	})
}

// expireAssignment fires when an accepted setup assignment lapses unused.
func (e *Engine) expireAssignment(hostID types.HostID) {
	e.mu.Lock()
	defer e.mu.Unlock()
	a, ok := e.assignments[hostID]
	if !ok || e.now().Before(a.expiresAt) {
		return
	}
	delete(e.assignments, hostID)
	logging.Info(context.Background(), "host assignment expired", zap.String("host_id", string(hostID)))
}

type setupResultPayload struct {
	RequestID       types.RequestID `json:"requestId"`
	Status          string          `json:"status"`
	TargetPeerID    types.PeerID    `json:"targetPeerId,omitempty"`
	SuggestedHostID types.HostID    `json:"suggestedHostId,omitempty"`
}

func (e *Engine) setRegisteredHostsGauge() {
	metrics.RegisteredHosts.Set(float64(len(e.hosts)))
}
