package remote

import (
	"context"
	"encoding/json"
	"time"

	"github.com/RoseWrightdev/Remote-Control/internal/v1/logging"
	"github.com/RoseWrightdev/Remote-Control/internal/v1/metrics"
	"github.com/RoseWrightdev/Remote-Control/internal/v1/sanitize"
	"github.com/RoseWrightdev/Remote-Control/internal/v1/types"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

type sessionRequestPayload struct {
	HostID any `json:"hostId"`
}

type sessionDecisionPayload struct {
	RequestID any  `json:"requestId"`
	Accepted  bool `json:"accepted"`
	Reason    any  `json:"reason"`
}

type sessionStopPayload struct {
	SessionID any `json:"sessionId"`
}

type sessionPendingPayload struct {
	RequestID types.RequestID `json:"requestId"`
	HostID    types.HostID    `json:"hostId"`
}

type sessionRequestedPayload struct {
	RequestID       types.RequestID `json:"requestId"`
	HostID          types.HostID    `json:"hostId"`
	RequesterPeerID types.PeerID    `json:"requesterPeerId"`
}

type sessionStartedPayload struct {
	SessionID types.SessionID `json:"sessionId"`
	HostID    types.HostID    `json:"hostId"`
}

type sessionEndedPayload struct {
	SessionID types.SessionID `json:"sessionId"`
	HostID    types.HostID    `json:"hostId"`
	EndedBy   string          `json:"endedBy"`
}

// HandleSessionRequest opens the consent phase: the requester asks to control
// hostID, and the claim holder is asked to approve.
func (e *Engine) HandleSessionRequest(ctx context.Context, conn types.Conn, payload json.RawMessage) {
	var p sessionRequestPayload
	_ = json.Unmarshal(payload, &p)

	hostID := types.HostID(sanitize.String(p.HostID, 64))
	if hostID == "" {
		e.emitError(conn.GetID(), CodeHostRequired)
		return
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	entry, ok := e.hosts[hostID]
	if !ok {
		e.emitError(conn.GetID(), CodeHostNotFound)
		return
	}
	if _, live := e.transport.Connection(entry.connID); !live {
		delete(e.hosts, hostID)
		e.setRegisteredHostsGauge()
		e.emitError(conn.GetID(), CodeHostOffline)
		return
	}

	if !e.cfg.AllowSameMachine {
		reqNet := conn.GetNetworkID()
		if reqNet != "" && reqNet == entry.networkID && sanitize.IsLikelyPrivateOrLocal(reqNet) {
			e.emitError(conn.GetID(), CodeSelfHostMachine)
			return
		}
	}

	if entry.activeSessionID != "" {
		e.emitError(conn.GetID(), CodeHostBusy)
		return
	}
	if _, ok := e.pendingByHost[hostID]; ok {
		e.emitError(conn.GetID(), CodeHostPending)
		return
	}
	if conn.GetControllerSessionID() != "" {
		e.emitError(conn.GetID(), CodeControllerBusy)
		return
	}
	if _, ok := e.pendingByController[conn.GetID()]; ok {
		e.emitError(conn.GetID(), CodeControllerPending)
		return
	}

	roomID := conn.GetRoomID()
	if roomID == "" {
		e.emitError(conn.GetID(), CodeRoomRequired)
		return
	}

	cl, claimed := e.liveClaimLocked(hostID)
	if !claimed || cl.roomID != roomID {
		e.emitError(conn.GetID(), CodeHostOwnerUnclaimed)
		return
	}
	if cl.connID == conn.GetID() {
		e.emitError(conn.GetID(), CodeSelfHostRequest)
		return
	}

	req := &pendingRequest{
		id:               types.RequestID(uuid.NewString()),
		hostID:           hostID,
		hostConnID:       entry.connID,
		controllerConnID: conn.GetID(),
		requesterPeerID:  conn.GetPeerID(),
		roomID:           roomID,
		approverConnID:   cl.connID,
	}
	id := req.id
	req.timer = time.AfterFunc(e.requestTTL, func() { e.expireRequest(id) })
	e.pending[id] = req
	e.pendingByHost[hostID] = id
	e.pendingByController[conn.GetID()] = id
	conn.SetPendingRemoteRequestID(id)

	e.transport.EmitToConnection(conn.GetID(), EventSessionPending, sessionPendingPayload{
		RequestID: id,
		HostID:    hostID,
	})
	e.transport.EmitToConnection(cl.connID, EventSessionRequestUI, sessionRequestedPayload{
		RequestID:       id,
		HostID:          hostID,
		RequesterPeerID: req.requesterPeerID,
	})
	logging.Info(ctx, "remote session requested",
		zap.String("request_id", string(id)), zap.String("host_id", string(hostID)),
		zap.String("room_id", string(roomID)))
}

// HandleSessionDecision resolves a pending request. Only the approver or the
// host agent may decide; anyone else is ignored. Acceptance re-validates both
// endpoints before minting the session.
func (e *Engine) HandleSessionDecision(ctx context.Context, conn types.Conn, payload json.RawMessage) {
	var p sessionDecisionPayload
	_ = json.Unmarshal(payload, &p)

	e.mu.Lock()
	defer e.mu.Unlock()

	id := types.RequestID(sanitize.String(p.RequestID, 64))
	req, ok := e.pending[id]
	if !ok {
		return
	}
	if conn.GetID() != req.approverConnID && conn.GetID() != req.hostConnID {
		return
	}
	e.removePendingLocked(id)

	if !p.Accepted {
		e.emitErrorMsg(req.controllerConnID, CodeRequestRejected, sanitize.String(p.Reason, 256))
		return
	}

	entry, ok := e.hosts[req.hostID]
	if !ok || entry.connID != req.hostConnID {
		e.emitError(req.controllerConnID, CodeHostOffline)
		return
	}
	hostConn, live := e.transport.Connection(entry.connID)
	if !live {
		delete(e.hosts, req.hostID)
		e.setRegisteredHostsGauge()
		e.emitError(req.controllerConnID, CodeHostOffline)
		return
	}
	if entry.activeSessionID != "" {
		e.emitError(req.controllerConnID, CodeHostBusy)
		return
	}
	controller, live := e.transport.Connection(req.controllerConnID)
	if !live {
		e.emitError(entry.connID, CodeControllerDisconnect)
		return
	}
	if controller.GetControllerSessionID() != "" {
		e.emitError(entry.connID, CodeControllerBusy)
		return
	}

	s := &session{
		id:               types.SessionID(uuid.NewString()),
		hostID:           req.hostID,
		hostConnID:       entry.connID,
		controllerConnID: req.controllerConnID,
	}
	e.sessions[s.id] = s
	entry.activeSessionID = s.id
	controller.SetControllerSessionID(s.id)
	hostConn.SetHostSessionID(s.id)
	metrics.ActiveSessions.Inc()
	if e.cfg.Debug {
		s.stopDebug = make(chan struct{})
		go e.reportTraffic(s.id, s.stopDebug)
	}

	started := sessionStartedPayload{SessionID: s.id, HostID: s.hostID}
	e.transport.EmitToConnection(s.controllerConnID, EventSessionStarted, started)
	e.transport.EmitToConnection(s.hostConnID, EventSessionStarted, started)
	logging.Info(ctx, "remote session started",
		zap.String("session_id", string(s.id)), zap.String("host_id", string(s.hostID)))
	e.broadcastHostsLocked()
}

// HandleSessionStop ends a session from either endpoint. Without an active
// session, a requester's own pending request is cancelled instead.
func (e *Engine) HandleSessionStop(ctx context.Context, conn types.Conn, payload json.RawMessage) {
	var p sessionStopPayload
	_ = json.Unmarshal(payload, &p)

	e.mu.Lock()
	defer e.mu.Unlock()

	id := types.SessionID(sanitize.String(p.SessionID, 64))
	if id != "" {
		if _, ok := e.sessions[id]; !ok {
			// An explicit id naming no live session resolves the same as
			// no id at all.
			id = ""
		}
	}
	if id == "" {
		if id = conn.GetHostSessionID(); id == "" {
			id = conn.GetControllerSessionID()
		}
	}
	if id == "" {
		if reqID := conn.GetPendingRemoteRequestID(); reqID != "" {
			if req, ok := e.removePendingLocked(reqID); ok {
				e.emitError(req.hostConnID, CodeRequestCancelled)
			}
		}
		return
	}

	s, ok := e.sessions[id]
	if !ok {
		return
	}
	switch conn.GetID() {
	case s.hostConnID:
		e.endSessionLocked(id, "host")
	case s.controllerConnID:
		e.endSessionLocked(id, "controller")
	}
}

// endSessionLocked tears a session down, notifies both endpoints, releases
// the host, and re-broadcasts the hosts list. Idempotent.
func (e *Engine) endSessionLocked(id types.SessionID, endedBy string) {
	s, ok := e.sessions[id]
	if !ok {
		return
	}
	delete(e.sessions, id)
	if s.stopDebug != nil {
		close(s.stopDebug)
	}

	if entry, ok := e.hosts[s.hostID]; ok && entry.activeSessionID == id {
		entry.activeSessionID = ""
	}

	ended := sessionEndedPayload{SessionID: id, HostID: s.hostID, EndedBy: endedBy}
	e.transport.EmitToConnection(s.controllerConnID, EventSessionEnded, ended)
	e.transport.EmitToConnection(s.hostConnID, EventSessionEnded, ended)

	if controller, live := e.transport.Connection(s.controllerConnID); live && controller.GetControllerSessionID() == id {
		controller.SetControllerSessionID("")
	}
	if host, live := e.transport.Connection(s.hostConnID); live && host.GetHostSessionID() == id {
		host.SetHostSessionID("")
	}

	metrics.ActiveSessions.Dec()
	metrics.SessionOutcomes.WithLabelValues(endedBy).Inc()
	logging.Info(context.Background(), "remote session ended",
		zap.String("session_id", string(id)), zap.String("ended_by", endedBy))
	e.broadcastHostsLocked()
}

// reportTraffic logs per-session relay counters every two seconds until the
// session ends. Enabled by Config.Debug only.
func (e *Engine) reportTraffic(id types.SessionID, stop <-chan struct{}) {
	ticker := time.NewTicker(debugReportInterval)
	defer ticker.Stop()
	var lastFrames, lastBytes, lastInputs int64
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			e.mu.Lock()
			s, ok := e.sessions[id]
			if !ok {
				e.mu.Unlock()
				return
			}
			frames, bytes, inputs := s.frames, s.frameBytes, s.inputs
			e.mu.Unlock()
			logging.Info(context.Background(), "session traffic",
				zap.String("session_id", string(id)),
				zap.Int64("frames", frames-lastFrames),
				zap.Int64("frame_bytes", bytes-lastBytes),
				zap.Int64("inputs", inputs-lastInputs))
			lastFrames, lastBytes, lastInputs = frames, bytes, inputs
		}
	}
}
