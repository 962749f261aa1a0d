// Package rooms implements the room membership registry: room lifecycle,
// the participant list, and the peer<->connection bijection. It has no
// knowledge of the remote-control engine; that engine reads membership
// through connection-attached identity only.
package rooms

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/RoseWrightdev/Remote-Control/internal/v1/logging"
	"github.com/RoseWrightdev/Remote-Control/internal/v1/metrics"
	"github.com/RoseWrightdev/Remote-Control/internal/v1/sanitize"
	"github.com/RoseWrightdev/Remote-Control/internal/v1/types"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Outbound event names.
const (
	EventRoomCreated  = "room-created"
	EventRoomNotFound = "room-not-found"
	EventGetUsers     = "get-users"
	EventUserJoined   = "user-joined"
	EventUserLeft     = "user-left"
)

type joinedRoomPayload struct {
	RoomID any `json:"roomId"`
	PeerID any `json:"peerId"`
}

type roomCreatedPayload struct {
	RoomID types.RoomID `json:"roomId"`
}

type getUsersPayload struct {
	RoomID       types.RoomID   `json:"roomId"`
	Participants []types.PeerID `json:"participants"`
}

type peerPayload struct {
	PeerID types.PeerID `json:"peerId"`
}

// roomState is one room's registry entry. The two maps are strict inverses;
// the pruning pass re-establishes that invariant after transport races.
type roomState struct {
	participants []types.PeerID // join order, no duplicates
	peerToConn   map[types.PeerID]types.ConnectionID
	connToPeer   map[types.ConnectionID]types.PeerID
}

func newRoomState() *roomState {
	return &roomState{
		peerToConn: make(map[types.PeerID]types.ConnectionID),
		connToPeer: make(map[types.ConnectionID]types.PeerID),
	}
}

// Engine owns the rooms registry. All mutations run under one mutex; the
// transport primitives it calls complete synchronously, so membership reads
// after a join/leave observe the effect.
type Engine struct {
	mu         sync.Mutex
	transport  types.Transport
	rooms      map[types.RoomID]*roomState
	autoCreate bool
}

// NewEngine creates a room engine. autoCreate enables creating UUID-shaped
// rooms on joined-room when they don't exist yet.
func NewEngine(transport types.Transport, autoCreate bool) *Engine {
	return &Engine{
		transport:  transport,
		rooms:      make(map[types.RoomID]*roomState),
		autoCreate: autoCreate,
	}
}

// HandleCreateRoom mints a room and joins the creator at transport level.
// The creator is not a participant yet; it announces its peerId with a
// subsequent joined-room.
func (e *Engine) HandleCreateRoom(ctx context.Context, conn types.Conn) {
	e.mu.Lock()
	defer e.mu.Unlock()

	roomID := types.RoomID(uuid.NewString())
	e.rooms[roomID] = newRoomState()
	metrics.ActiveRooms.Inc()

	e.transport.JoinRoom(conn.GetID(), roomID)
	conn.SetRoomID(roomID)

	logging.Info(ctx, "Room created",
		zap.String("roomId", string(roomID)), zap.String("connectionId", string(conn.GetID())))

	e.transport.EmitToConnection(conn.GetID(), EventRoomCreated, roomCreatedPayload{RoomID: roomID})
}

// HandleJoinedRoom binds a (roomId, peerId) announcement to the connection.
func (e *Engine) HandleJoinedRoom(ctx context.Context, conn types.Conn, payload json.RawMessage) {
	var p joinedRoomPayload
	if err := json.Unmarshal(payload, &p); err != nil {
		return
	}
	roomID := types.RoomID(sanitize.StringDefault(p.RoomID))
	peerID := types.PeerID(sanitize.StringDefault(p.PeerID))
	if roomID == "" || peerID == "" {
		return
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	room, exists := e.rooms[roomID]
	if !exists {
		if !e.autoCreate || !sanitize.IsUUIDLike(string(roomID)) {
			e.transport.EmitToConnection(conn.GetID(), EventRoomNotFound, roomCreatedPayload{RoomID: roomID})
			return
		}
		room = newRoomState()
		e.rooms[roomID] = room
		metrics.ActiveRooms.Inc()
		logging.Info(ctx, "Auto-created room on join", zap.String("roomId", string(roomID)))
	}

	e.transport.JoinRoom(conn.GetID(), roomID)
	e.pruneLocked(roomID)

	// The connection may be migrating from a previous identity.
	prevRoomID := conn.GetRoomID()
	prevPeerID := conn.GetPeerID()
	if prevRoomID != "" && (prevRoomID != roomID || prevPeerID != peerID) {
		if prevRoom, ok := e.rooms[prevRoomID]; ok && prevPeerID != "" {
			e.removePeerLocked(prevRoom, prevPeerID)
		}
		if prevRoomID != roomID {
			e.transport.LeaveRoom(conn.GetID(), prevRoomID)
			e.pruneLocked(prevRoomID)
		}
	}

	// Evict a different live connection holding the same peerId.
	if oldConnID, ok := room.peerToConn[peerID]; ok && oldConnID != conn.GetID() {
		if oldConn, live := e.transport.Connection(oldConnID); live {
			e.removePeerLocked(room, peerID)
			e.transport.EmitToRoom(roomID, EventUserLeft, peerPayload{PeerID: peerID}, oldConnID)
			e.transport.LeaveRoom(oldConnID, roomID)
			oldConn.SetRoomID("")
			oldConn.SetPeerID("")
			logging.Info(ctx, "Evicted stale connection for peer",
				zap.String("roomId", string(roomID)), zap.String("peerId", string(peerID)))
		} else {
			e.removePeerLocked(room, peerID)
		}
	}

	// Idempotent insert.
	if _, present := room.peerToConn[peerID]; !present {
		room.participants = append(room.participants, peerID)
	}
	room.peerToConn[peerID] = conn.GetID()
	room.connToPeer[conn.GetID()] = peerID
	conn.SetRoomID(roomID)
	conn.SetPeerID(peerID)

	metrics.RoomParticipants.WithLabelValues(string(roomID)).Set(float64(len(room.participants)))

	e.transport.EmitToConnection(conn.GetID(), EventGetUsers, getUsersPayload{
		RoomID:       roomID,
		Participants: append([]types.PeerID(nil), room.participants...),
	})
}

// HandleReady fans out user-joined to the rest of the room once the
// connection's identity is consistent with room state.
func (e *Engine) HandleReady(ctx context.Context, conn types.Conn) {
	e.mu.Lock()
	defer e.mu.Unlock()

	roomID := conn.GetRoomID()
	peerID := conn.GetPeerID()
	if roomID == "" || peerID == "" {
		return
	}

	e.pruneLocked(roomID)
	room, ok := e.rooms[roomID]
	if !ok {
		return
	}
	if room.connToPeer[conn.GetID()] != peerID {
		return
	}

	e.transport.EmitToRoom(roomID, EventUserJoined, peerPayload{PeerID: peerID}, conn.GetID())
}

// HandleLeaveRoom removes the connection's peer from its room.
func (e *Engine) HandleLeaveRoom(ctx context.Context, conn types.Conn) {
	e.leave(ctx, conn)
}

// HandleDisconnect is the room half of the teardown cascade.
func (e *Engine) HandleDisconnect(ctx context.Context, conn types.Conn) {
	e.leave(ctx, conn)
}

func (e *Engine) leave(ctx context.Context, conn types.Conn) {
	e.mu.Lock()
	defer e.mu.Unlock()

	roomID := conn.GetRoomID()
	if roomID == "" {
		return
	}

	if room, ok := e.rooms[roomID]; ok {
		if peerID, present := room.connToPeer[conn.GetID()]; present {
			e.removePeerLocked(room, peerID)
			e.transport.EmitToRoom(roomID, EventUserLeft, peerPayload{PeerID: peerID}, conn.GetID())
			logging.Info(ctx, "Peer left room",
				zap.String("roomId", string(roomID)), zap.String("peerId", string(peerID)))
		}
	}

	e.transport.LeaveRoom(conn.GetID(), roomID)
	conn.SetRoomID("")
	conn.SetPeerID("")
	e.pruneLocked(roomID)
}

// ParticipantsOf returns a copy of a room's participant list.
func (e *Engine) ParticipantsOf(roomID types.RoomID) []types.PeerID {
	e.mu.Lock()
	defer e.mu.Unlock()
	room, ok := e.rooms[roomID]
	if !ok {
		return nil
	}
	return append([]types.PeerID(nil), room.participants...)
}

// removePeerLocked drops one peer from a room's maps and participant list.
func (e *Engine) removePeerLocked(room *roomState, peerID types.PeerID) {
	if connID, ok := room.peerToConn[peerID]; ok {
		if room.connToPeer[connID] == peerID {
			delete(room.connToPeer, connID)
		}
		delete(room.peerToConn, peerID)
	}
	for i, p := range room.participants {
		if p == peerID {
			room.participants = append(room.participants[:i], room.participants[i+1:]...)
			break
		}
	}
}

// pruneLocked re-establishes the registry invariants for one room: both maps
// strict inverses, every mapped connection live, participants the deduped
// set of live peers. The room is deleted only when it has no participants
// AND no sockets joined at transport level -- the conjunction keeps a
// just-created room alive until its creator announces a peerId.
func (e *Engine) pruneLocked(roomID types.RoomID) {
	room, ok := e.rooms[roomID]
	if !ok {
		return
	}

	for peerID, connID := range room.peerToConn {
		_, live := e.transport.Connection(connID)
		if !live || room.connToPeer[connID] != peerID {
			delete(room.peerToConn, peerID)
		}
	}
	for connID, peerID := range room.connToPeer {
		if room.peerToConn[peerID] != connID {
			delete(room.connToPeer, connID)
		}
	}

	pruned := room.participants[:0]
	seen := make(map[types.PeerID]bool, len(room.participants))
	for _, peerID := range room.participants {
		if seen[peerID] {
			continue
		}
		seen[peerID] = true
		if _, ok := room.peerToConn[peerID]; ok {
			pruned = append(pruned, peerID)
		}
	}
	room.participants = pruned

	if len(room.participants) == 0 && len(e.transport.ConnectionsInRoom(roomID)) == 0 {
		delete(e.rooms, roomID)
		metrics.ActiveRooms.Dec()
		metrics.RoomParticipants.DeleteLabelValues(string(roomID))
		logging.Info(context.Background(), "Removed empty room", zap.String("roomId", string(roomID)))
		return
	}

	metrics.RoomParticipants.WithLabelValues(string(roomID)).Set(float64(len(room.participants)))
}
