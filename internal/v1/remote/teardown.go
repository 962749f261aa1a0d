package remote

import (
	"context"

	"github.com/RoseWrightdev/Remote-Control/internal/v1/logging"
	"github.com/RoseWrightdev/Remote-Control/internal/v1/types"
	"go.uber.org/zap"
)

// HandleDisconnect runs the full remote-control teardown for a vanished
// connection. The hub invokes it before the room engine's disconnect so the
// cascade observes the connection as already dead.
func (e *Engine) HandleDisconnect(ctx context.Context, conn types.Conn) {
	e.mu.Lock()
	defer e.mu.Unlock()

	listDirty := false

	// 1. Host agent teardown: end sessions, cancel requests targeting its
	// hosts, drop the registrations. The connection stamp only records the
	// latest id, and an agent that re-registered under a new id still owns
	// its earlier entries, so every entry is swept by connection id.
	for hostID, entry := range e.hosts {
		if entry.connID != conn.GetID() {
			continue
		}
		if entry.activeSessionID != "" {
			e.endSessionLocked(entry.activeSessionID, "host-disconnected")
		}
		if reqID, ok := e.pendingByHost[hostID]; ok {
			if req, ok := e.removePendingLocked(reqID); ok {
				e.emitError(req.controllerConnID, CodeHostDisconnected)
			}
		}
		delete(e.hosts, hostID)
		listDirty = true
		logging.Info(ctx, "host deregistered on disconnect",
			zap.String("host_id", string(hostID)))
	}
	if listDirty {
		e.setRegisteredHostsGauge()
	}

	// 2. Claims held by the connection and assignments reserved for it.
	if e.dropOwnershipLocked(conn.GetID()) {
		listDirty = true
	}

	// 3. The connection's own outgoing session request.
	if reqID := conn.GetPendingRemoteRequestID(); reqID != "" {
		if req, ok := e.removePendingLocked(reqID); ok {
			e.emitError(req.hostConnID, CodeControllerDisconnect)
		}
	}

	// 4. Requests the connection was asked to approve.
	for id, req := range e.pending {
		if req.approverConnID == conn.GetID() {
			e.removePendingLocked(id)
			e.emitError(req.controllerConnID, CodeApproverDisconnected)
		}
	}

	// 5. Setup requests on either side.
	e.cancelSetupLocked(conn)

	// 6. An active session the connection controlled.
	if sid := conn.GetControllerSessionID(); sid != "" {
		e.endSessionLocked(sid, "controller-disconnected")
	}

	if listDirty {
		e.broadcastHostsLocked()
	}
}

// HandleLeaveRoom runs the reduced teardown for a connection leaving its room
// while staying connected: claims, assignments, and setup requests are scoped
// to the room; sessions and the host registration are not.
func (e *Engine) HandleLeaveRoom(ctx context.Context, conn types.Conn) {
	e.mu.Lock()
	defer e.mu.Unlock()

	dirty := e.dropOwnershipLocked(conn.GetID())
	e.cancelSetupLocked(conn)
	if dirty {
		e.broadcastHostsLocked()
	}
}

// dropOwnershipLocked removes every claim held by connID and every assignment
// reserved for it. Reports whether the hosts list changed.
func (e *Engine) dropOwnershipLocked(connID types.ConnectionID) bool {
	dirty := false
	for hostID, cl := range e.claims {
		if cl.connID == connID {
			delete(e.claims, hostID)
			dirty = true
		}
	}
	for hostID, a := range e.assignments {
		if a.targetConnID == connID {
			e.removeAssignmentLocked(hostID)
		}
	}
	return dirty
}

// cancelSetupLocked cancels the connection's outgoing setup request silently
// and any setup request targeting it with a target-disconnected result.
func (e *Engine) cancelSetupLocked(conn types.Conn) {
	if id := conn.GetPendingHostSetupRequestID(); id != "" {
		e.removeSetupLocked(id)
	}
	for id, ps := range e.setupPending {
		if ps.targetConnID == conn.GetID() {
			e.removeSetupLocked(id)
			e.transport.EmitToConnection(ps.requesterConnID, EventHostSetupResult, setupResultPayload{
				RequestID:       id,
				Status:          "target-disconnected",
				TargetPeerID:    ps.targetPeerID,
				SuggestedHostID: ps.suggestedHostID,
			})
		}
	}
}
