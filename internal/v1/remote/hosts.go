package remote

import (
	"context"
	"encoding/json"

	"github.com/RoseWrightdev/Remote-Control/internal/v1/logging"
	"github.com/RoseWrightdev/Remote-Control/internal/v1/sanitize"
	"github.com/RoseWrightdev/Remote-Control/internal/v1/types"
	"go.uber.org/zap"
)

type hostRegisterPayload struct {
	HostID any `json:"hostId"`
}

type hostClaimPayload struct {
	HostID any `json:"hostId"`
}

type hostClaimedPayload struct {
	HostID types.HostID `json:"hostId"`
	RoomID types.RoomID `json:"roomId"`
	Auto   bool         `json:"auto,omitempty"`
}

type hostRegisteredPayload struct {
	HostID types.HostID `json:"hostId"`
}

// HandleHostRegister records conn as the agent for a host id. A live holder
// keeps the id; a dead holder is replaced in place. Registration may consume
// a matching setup assignment into an immediate auto-claim.
func (e *Engine) HandleHostRegister(ctx context.Context, conn types.Conn, payload json.RawMessage) {
	var p hostRegisterPayload
	_ = json.Unmarshal(payload, &p)
	hostID := types.HostID(sanitize.String(p.HostID, 64))
	if hostID == "" {
		e.emitError(conn.GetID(), CodeHostRequired)
		return
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if entry, ok := e.hosts[hostID]; ok && entry.connID != conn.GetID() {
		if _, live := e.transport.Connection(entry.connID); live {
			e.emitError(conn.GetID(), CodeHostIDInUse)
			return
		}
		// Stale registration from a vanished agent; replace it.
		logging.Info(ctx, "replacing stale host registration",
			zap.String("host_id", string(hostID)), zap.String("old_conn", string(entry.connID)))
	}

	e.hosts[hostID] = &hostEntry{
		connID:    conn.GetID(),
		networkID: conn.GetNetworkID(),
	}
	conn.SetRemoteHostID(hostID)
	e.setRegisteredHostsGauge()

	// An accepted setup handshake may have reserved this id for a waiting
	// participant. Honor it now if the target is still live and in its room.
	if a, ok := e.assignments[hostID]; ok && e.now().Before(a.expiresAt) {
		if target, live := e.transport.Connection(a.targetConnID); live && target.GetRoomID() == a.roomID {
			e.claims[hostID] = claim{connID: a.targetConnID, roomID: a.roomID}
			e.transport.EmitToConnection(a.targetConnID, EventHostClaimed, hostClaimedPayload{
				HostID: hostID,
				RoomID: a.roomID,
				Auto:   true,
			})
			e.removeAssignmentLocked(hostID)
		}
	}

	e.transport.EmitToConnection(conn.GetID(), EventHostRegistered, hostRegisteredPayload{HostID: hostID})
	logging.Info(ctx, "host registered",
		zap.String("host_id", string(hostID)), zap.String("connection_id", string(conn.GetID())))
	e.broadcastHostsLocked()
}

// HandleHostsRequest replies with the caller's personalized hosts list. Stale
// claims observed while building the list are garbage-collected; if any were,
// the change is visible to everyone, so the list is re-broadcast.
func (e *Engine) HandleHostsRequest(ctx context.Context, conn types.Conn) {
	e.mu.Lock()
	defer e.mu.Unlock()

	before := len(e.claims)
	list := e.hostsListFor(conn)
	if len(e.claims) != before {
		e.broadcastHostsLocked()
		return
	}
	e.transport.EmitToConnection(conn.GetID(), EventHostsList, hostsListPayload{Hosts: list})
}

// HandleHostClaim makes conn the approver for a host id within its room.
//
// Validation order: room membership, assignment reservation, host liveness,
// network ownership, existing claim. An existing claim held by a vanished or
// out-of-room connection is stolen silently.
func (e *Engine) HandleHostClaim(ctx context.Context, conn types.Conn, payload json.RawMessage) {
	var p hostClaimPayload
	_ = json.Unmarshal(payload, &p)

	roomID := conn.GetRoomID()
	if roomID == "" {
		e.emitError(conn.GetID(), CodeRoomRequired)
		return
	}
	hostID := types.HostID(sanitize.String(p.HostID, 64))
	if hostID == "" {
		e.emitError(conn.GetID(), CodeHostRequired)
		return
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if a, ok := e.assignments[hostID]; ok && e.now().Before(a.expiresAt) {
		if a.targetConnID != conn.GetID() || a.roomID != roomID {
			e.emitError(conn.GetID(), CodeHostClaimAssigned)
			return
		}
	}

	entry, ok := e.hosts[hostID]
	if !ok {
		e.emitError(conn.GetID(), CodeHostOffline)
		return
	}
	if _, live := e.transport.Connection(entry.connID); !live {
		delete(e.hosts, hostID)
		e.setRegisteredHostsGauge()
		e.emitError(conn.GetID(), CodeHostOffline)
		return
	}

	// The claimer must originate from the same network as the host agent.
	// Either side missing a network id skips the check.
	if claimerNet := conn.GetNetworkID(); claimerNet != "" && entry.networkID != "" && claimerNet != entry.networkID {
		e.emitError(conn.GetID(), CodeHostClaimMismatch)
		return
	}

	if cl, live := e.liveClaimLocked(hostID); live && cl.connID != conn.GetID() && cl.roomID == roomID {
		e.emitError(conn.GetID(), CodeHostClaimedByOther)
		return
	}

	e.claims[hostID] = claim{connID: conn.GetID(), roomID: roomID}
	e.removeAssignmentLocked(hostID)
	e.transport.EmitToConnection(conn.GetID(), EventHostClaimed, hostClaimedPayload{HostID: hostID, RoomID: roomID})
	logging.Info(ctx, "host claimed",
		zap.String("host_id", string(hostID)), zap.String("room_id", string(roomID)),
		zap.String("connection_id", string(conn.GetID())))
	e.broadcastHostsLocked()
}
