package remote

import (
	"sort"
	"sync"

	"github.com/RoseWrightdev/Remote-Control/internal/v1/types"
)

// mockConn implements types.Conn
type mockConn struct {
	id        types.ConnectionID
	networkID string
	arrival   int64

	roomID types.RoomID
	peerID types.PeerID

	hostID        types.HostID
	controllerSID types.SessionID
	hostSID       types.SessionID
	pendingReq    types.RequestID
	pendingSetup  types.RequestID
	incomingSetup types.RequestID
}

func (m *mockConn) GetID() types.ConnectionID    { return m.id }
func (m *mockConn) GetNetworkID() string         { return m.networkID }
func (m *mockConn) GetArrival() int64            { return m.arrival }
func (m *mockConn) GetRoomID() types.RoomID      { return m.roomID }
func (m *mockConn) SetRoomID(r types.RoomID)     { m.roomID = r }
func (m *mockConn) GetPeerID() types.PeerID      { return m.peerID }
func (m *mockConn) SetPeerID(p types.PeerID)     { m.peerID = p }
func (m *mockConn) GetRemoteHostID() types.HostID                 { return m.hostID }
func (m *mockConn) SetRemoteHostID(h types.HostID)                { m.hostID = h }
func (m *mockConn) GetControllerSessionID() types.SessionID       { return m.controllerSID }
func (m *mockConn) SetControllerSessionID(s types.SessionID)      { m.controllerSID = s }
func (m *mockConn) GetHostSessionID() types.SessionID             { return m.hostSID }
func (m *mockConn) SetHostSessionID(s types.SessionID)            { m.hostSID = s }
func (m *mockConn) GetPendingRemoteRequestID() types.RequestID    { return m.pendingReq }
func (m *mockConn) SetPendingRemoteRequestID(r types.RequestID)   { m.pendingReq = r }
func (m *mockConn) GetPendingHostSetupRequestID() types.RequestID { return m.pendingSetup }
func (m *mockConn) SetPendingHostSetupRequestID(r types.RequestID) {
	m.pendingSetup = r
}
func (m *mockConn) GetIncomingHostSetupRequestID() types.RequestID { return m.incomingSetup }
func (m *mockConn) SetIncomingHostSetupRequestID(r types.RequestID) {
	m.incomingSetup = r
}

// emitted is one recorded transport send.
type emitted struct {
	to      types.ConnectionID
	event   string
	payload any
}

// mockTransport implements types.Transport with in-memory membership and a
// recording of every emit.
type mockTransport struct {
	mu    sync.Mutex
	conns map[types.ConnectionID]*mockConn
	rooms map[types.RoomID]map[types.ConnectionID]bool
	sent  []emitted
}

func newMockTransport() *mockTransport {
	return &mockTransport{
		conns: make(map[types.ConnectionID]*mockConn),
		rooms: make(map[types.RoomID]map[types.ConnectionID]bool),
	}
}

func (t *mockTransport) addConn(id types.ConnectionID) *mockConn {
	t.mu.Lock()
	defer t.mu.Unlock()
	c := &mockConn{id: id, arrival: int64(len(t.conns))}
	t.conns[id] = c
	return c
}

// dropConn simulates a transport-level disconnect without the engine
// noticing, for pruning tests.
func (t *mockTransport) dropConn(id types.ConnectionID) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.conns, id)
	for _, members := range t.rooms {
		delete(members, id)
	}
}

func (t *mockTransport) EmitToConnection(id types.ConnectionID, event string, payload any) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.sent = append(t.sent, emitted{to: id, event: event, payload: payload})
}

func (t *mockTransport) EmitToRoom(roomID types.RoomID, event string, payload any, except ...types.ConnectionID) {
	t.mu.Lock()
	defer t.mu.Unlock()
	skip := make(map[types.ConnectionID]bool, len(except))
	for _, id := range except {
		skip[id] = true
	}
	for id := range t.rooms[roomID] {
		if !skip[id] {
			t.sent = append(t.sent, emitted{to: id, event: event, payload: payload})
		}
	}
}

func (t *mockTransport) Broadcast(event string, payload any) {
	t.mu.Lock()
	defer t.mu.Unlock()
	for id := range t.conns {
		t.sent = append(t.sent, emitted{to: id, event: event, payload: payload})
	}
}

func (t *mockTransport) JoinRoom(id types.ConnectionID, roomID types.RoomID) {
	t.mu.Lock()
	defer t.mu.Unlock()
	members, ok := t.rooms[roomID]
	if !ok {
		members = make(map[types.ConnectionID]bool)
		t.rooms[roomID] = members
	}
	members[id] = true
}

func (t *mockTransport) LeaveRoom(id types.ConnectionID, roomID types.RoomID) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if members, ok := t.rooms[roomID]; ok {
		delete(members, id)
		if len(members) == 0 {
			delete(t.rooms, roomID)
		}
	}
}

func (t *mockTransport) ConnectionsInRoom(roomID types.RoomID) []types.ConnectionID {
	t.mu.Lock()
	defer t.mu.Unlock()
	ids := make([]types.ConnectionID, 0, len(t.rooms[roomID]))
	for id := range t.rooms[roomID] {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

func (t *mockTransport) Connection(id types.ConnectionID) (types.Conn, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	c, ok := t.conns[id]
	if !ok {
		return nil, false
	}
	return c, true
}

func (t *mockTransport) ForEachConnection(fn func(types.Conn)) {
	t.mu.Lock()
	ids := make([]types.ConnectionID, 0, len(t.conns))
	for id := range t.conns {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	conns := make([]*mockConn, 0, len(ids))
	for _, id := range ids {
		conns = append(conns, t.conns[id])
	}
	t.mu.Unlock()
	for _, c := range conns {
		fn(c)
	}
}

// eventsFor filters the recording by recipient and event name.
func (t *mockTransport) eventsFor(id types.ConnectionID, event string) []emitted {
	t.mu.Lock()
	defer t.mu.Unlock()
	var out []emitted
	for _, e := range t.sent {
		if e.to == id && e.event == event {
			out = append(out, e)
		}
	}
	return out
}

func (t *mockTransport) clearSent() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.sent = nil
}
