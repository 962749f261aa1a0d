package types

// --- Core Domain Types ---

// ConnectionID uniquely identifies a single transport connection.
type ConnectionID string

// RoomID identifies a meeting room. Rooms minted by the server are UUIDv4.
type RoomID string

// PeerID is the client-chosen identifier for a participant within a room.
type PeerID string

// HostID names a registered remote-control host agent.
type HostID string

// SessionID identifies an active remote-control session.
type SessionID string

// RequestID identifies a pending consent-phase record.
type RequestID string

// Conn is the engine-facing view of one live transport connection. It exposes
// the connection's identity plus the mutable scratch state the engines stamp
// on it (current room, peer id, and the remote-control bindings).
//
// The gateway's Client implements this; tests use mock implementations.
type Conn interface {
	GetID() ConnectionID
	// GetNetworkID returns the normalized remote origin of the connection:
	// the first forwarded-for entry or the raw peer address, with all
	// loopback addresses collapsed to "loopback-local".
	GetNetworkID() string
	// GetArrival returns the monotonic arrival order of the connection.
	GetArrival() int64

	GetRoomID() RoomID
	SetRoomID(RoomID)
	GetPeerID() PeerID
	SetPeerID(PeerID)

	GetRemoteHostID() HostID
	SetRemoteHostID(HostID)
	GetControllerSessionID() SessionID
	SetControllerSessionID(SessionID)
	GetHostSessionID() SessionID
	SetHostSessionID(SessionID)
	GetPendingRemoteRequestID() RequestID
	SetPendingRemoteRequestID(RequestID)
	GetPendingHostSetupRequestID() RequestID
	SetPendingHostSetupRequestID(RequestID)
	GetIncomingHostSetupRequestID() RequestID
	SetIncomingHostSetupRequestID(RequestID)
}

// Transport is the set of fanout and membership primitives the engines use to
// reach connections. The gateway Hub implements it.
//
// Join/leave complete their mutation before returning, so membership reads
// that follow observe the effect.
type Transport interface {
	// EmitToConnection sends a named event to one connection. Unknown or dead
	// connection ids are ignored.
	EmitToConnection(id ConnectionID, event string, payload any)
	// EmitToRoom sends a named event to every connection joined to the
	// transport-level room, excluding any ids in except.
	EmitToRoom(roomID RoomID, event string, payload any, except ...ConnectionID)
	// Broadcast sends a named event to every live connection.
	Broadcast(event string, payload any)

	JoinRoom(id ConnectionID, roomID RoomID)
	LeaveRoom(id ConnectionID, roomID RoomID)
	// ConnectionsInRoom enumerates the transport-level membership of a room.
	ConnectionsInRoom(roomID RoomID) []ConnectionID
	// Connection resolves a connection id to its live Conn. The second return
	// is false once the connection has been torn down.
	Connection(id ConnectionID) (Conn, bool)
	// ForEachConnection visits every live connection. Used for personalized
	// broadcasts (each receiver gets its own payload).
	ForEachConnection(fn func(Conn))
}

// ErrorPayload is the wire shape of engine-reported failures.
type ErrorPayload struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}
