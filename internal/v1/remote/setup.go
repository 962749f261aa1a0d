package remote

import (
	"context"
	"encoding/json"
	"time"

	"github.com/RoseWrightdev/Remote-Control/internal/v1/logging"
	"github.com/RoseWrightdev/Remote-Control/internal/v1/sanitize"
	"github.com/RoseWrightdev/Remote-Control/internal/v1/types"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

type setupRequestPayload struct {
	TargetPeerID any `json:"targetPeerId"`
}

type setupDecisionPayload struct {
	RequestID any `json:"requestId"`
	Accepted  bool `json:"accepted"`
}

type setupPendingPayload struct {
	RequestID       types.RequestID `json:"requestId"`
	TargetPeerID    types.PeerID    `json:"targetPeerId"`
	SuggestedHostID types.HostID    `json:"suggestedHostId"`
}

type setupRequestedPayload struct {
	RequestID       types.RequestID `json:"requestId"`
	RequesterPeerID types.PeerID    `json:"requesterPeerId"`
	SuggestedHostID types.HostID    `json:"suggestedHostId"`
}

// HandleHostSetupRequest asks another participant to install and run the host
// agent. The target is the named peer, or the only other peer when the room
// has exactly two participants.
func (e *Engine) HandleHostSetupRequest(ctx context.Context, conn types.Conn, payload json.RawMessage) {
	var p setupRequestPayload
	_ = json.Unmarshal(payload, &p)

	roomID := conn.GetRoomID()
	if roomID == "" {
		e.emitError(conn.GetID(), CodeRoomRequired)
		return
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if conn.GetPendingHostSetupRequestID() != "" {
		e.emitError(conn.GetID(), CodeControllerPending)
		return
	}

	// Candidates are the room's other identified participants.
	var candidates []types.Conn
	for _, id := range e.transport.ConnectionsInRoom(roomID) {
		if id == conn.GetID() {
			continue
		}
		other, live := e.transport.Connection(id)
		if !live || other.GetPeerID() == "" {
			continue
		}
		candidates = append(candidates, other)
	}
	if len(candidates) == 0 {
		e.emitError(conn.GetID(), CodeParticipantNotFound)
		return
	}

	var target types.Conn
	if wanted := types.PeerID(sanitize.String(p.TargetPeerID, 128)); wanted != "" {
		for _, c := range candidates {
			if c.GetPeerID() == wanted {
				target = c
				break
			}
		}
		if target == nil {
			e.emitError(conn.GetID(), CodeParticipantNotFound)
			return
		}
	} else if len(candidates) == 1 {
		target = candidates[0]
	} else {
		e.emitError(conn.GetID(), CodeParticipantRequired)
		return
	}

	ps := &pendingSetup{
		id:              types.RequestID(uuid.NewString()),
		requesterConnID: conn.GetID(),
		requesterPeerID: conn.GetPeerID(),
		targetConnID:    target.GetID(),
		targetPeerID:    target.GetPeerID(),
		roomID:          roomID,
		suggestedHostID: types.HostID(sanitize.BuildSuggestedHostID(string(target.GetPeerID()))),
	}
	id := ps.id
	ps.timer = time.AfterFunc(e.requestTTL, func() { e.expireSetup(id) })
	e.setupPending[id] = ps
	conn.SetPendingHostSetupRequestID(id)
	target.SetIncomingHostSetupRequestID(id)

	e.transport.EmitToConnection(conn.GetID(), EventHostSetupPending, setupPendingPayload{
		RequestID:       id,
		TargetPeerID:    ps.targetPeerID,
		SuggestedHostID: ps.suggestedHostID,
	})
	e.transport.EmitToConnection(target.GetID(), EventHostSetupRequest, setupRequestedPayload{
		RequestID:       id,
		RequesterPeerID: ps.requesterPeerID,
		SuggestedHostID: ps.suggestedHostID,
	})
	logging.Info(ctx, "host setup requested",
		zap.String("request_id", string(id)), zap.String("room_id", string(roomID)),
		zap.String("target_peer", string(ps.targetPeerID)))
}

// HandleHostSetupDecision resolves a setup request. Only the targeted
// participant may decide; anyone else is ignored. Acceptance reserves the
// suggested host id for the target and, when the agent is already online,
// claims it immediately.
func (e *Engine) HandleHostSetupDecision(ctx context.Context, conn types.Conn, payload json.RawMessage) {
	var p setupDecisionPayload
	_ = json.Unmarshal(payload, &p)

	e.mu.Lock()
	defer e.mu.Unlock()

	id := types.RequestID(sanitize.String(p.RequestID, 64))
	ps, ok := e.setupPending[id]
	if !ok || ps.targetConnID != conn.GetID() {
		return
	}
	e.removeSetupLocked(id)

	if !p.Accepted {
		e.transport.EmitToConnection(ps.requesterConnID, EventHostSetupResult, setupResultPayload{
			RequestID:       id,
			Status:          "rejected",
			TargetPeerID:    ps.targetPeerID,
			SuggestedHostID: ps.suggestedHostID,
		})
		return
	}

	hostID := ps.suggestedHostID
	e.removeAssignmentLocked(hostID)
	a := assignment{
		targetConnID: ps.targetConnID,
		roomID:       ps.roomID,
		expiresAt:    e.now().Add(e.assignmentTTL),
	}
	a.timer = time.AfterFunc(e.assignmentTTL, func() { e.expireAssignment(hostID) })
	e.assignments[hostID] = a

	// The agent may already be running under the suggested id.
	if entry, ok := e.hosts[hostID]; ok {
		if _, live := e.transport.Connection(entry.connID); live && conn.GetRoomID() == ps.roomID {
			e.claims[hostID] = claim{connID: ps.targetConnID, roomID: ps.roomID}
			e.removeAssignmentLocked(hostID)
			e.transport.EmitToConnection(ps.targetConnID, EventHostClaimed, hostClaimedPayload{
				HostID: hostID,
				RoomID: ps.roomID,
				Auto:   true,
			})
		}
	}

	e.transport.EmitToConnection(ps.requesterConnID, EventHostSetupResult, setupResultPayload{
		RequestID:       id,
		Status:          "accepted",
		TargetPeerID:    ps.targetPeerID,
		SuggestedHostID: hostID,
	})
	logging.Info(ctx, "host setup accepted",
		zap.String("request_id", string(id)), zap.String("host_id", string(hostID)))
	e.broadcastHostsLocked()
}
