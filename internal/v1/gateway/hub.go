// Package gateway implements the transport layer of the broker: it accepts
// WebSocket connections, enforces the admission gate, and routes named JSON
// events to the room and remote-control engines. It also provides the fanout
// and membership primitives the engines emit through.
package gateway

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"sync/atomic"

	"github.com/RoseWrightdev/Remote-Control/internal/v1/auth"
	"github.com/RoseWrightdev/Remote-Control/internal/v1/logging"
	"github.com/RoseWrightdev/Remote-Control/internal/v1/metrics"
	"github.com/RoseWrightdev/Remote-Control/internal/v1/ratelimit"
	"github.com/RoseWrightdev/Remote-Control/internal/v1/sanitize"
	"github.com/RoseWrightdev/Remote-Control/internal/v1/types"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
	"k8s.io/utils/set"
)

// MaxPayloadBytes caps a single inbound frame. Anything larger tears the
// connection down at transport level before dispatch.
const MaxPayloadBytes = 8 << 20 // 8 MiB

// Inbound event names; the wire contract.
const (
	EventCreateRoom        = "create-room"
	EventJoinedRoom        = "joined-room"
	EventReady             = "ready"
	EventLeaveRoom         = "leave-room"
	EventHostRegister      = "remote-host-register"
	EventHostClaim         = "remote-host-claim"
	EventHostsRequest      = "remote-hosts-request"
	EventHostSetupRequest  = "remote-host-setup-request"
	EventHostSetupDecision = "remote-host-setup-decision"
	EventSessionRequest    = "remote-session-request"
	EventSessionDecision   = "remote-session-decision"
	EventSessionUIDecision = "remote-session-ui-decision" // legacy alias
	EventSessionStop       = "remote-session-stop"
	EventHostFrame         = "remote-host-frame"
	EventInput             = "remote-input"
)

// RoomEngine is the room-membership half of the broker.
type RoomEngine interface {
	HandleCreateRoom(ctx context.Context, conn types.Conn)
	HandleJoinedRoom(ctx context.Context, conn types.Conn, payload json.RawMessage)
	HandleReady(ctx context.Context, conn types.Conn)
	HandleLeaveRoom(ctx context.Context, conn types.Conn)
	HandleDisconnect(ctx context.Context, conn types.Conn)
}

// RemoteEngine is the remote-control half: host registry, claims, consent,
// sessions, and the frame/input relay.
type RemoteEngine interface {
	HandleHostRegister(ctx context.Context, conn types.Conn, payload json.RawMessage)
	HandleHostsRequest(ctx context.Context, conn types.Conn)
	HandleHostClaim(ctx context.Context, conn types.Conn, payload json.RawMessage)
	HandleHostSetupRequest(ctx context.Context, conn types.Conn, payload json.RawMessage)
	HandleHostSetupDecision(ctx context.Context, conn types.Conn, payload json.RawMessage)
	HandleSessionRequest(ctx context.Context, conn types.Conn, payload json.RawMessage)
	HandleSessionDecision(ctx context.Context, conn types.Conn, payload json.RawMessage)
	HandleSessionStop(ctx context.Context, conn types.Conn, payload json.RawMessage)
	HandleHostFrame(ctx context.Context, conn types.Conn, payload json.RawMessage)
	HandleInput(ctx context.Context, conn types.Conn, payload json.RawMessage)
	// HandleLeaveRoom runs the reduced teardown for a room leave without a
	// transport disconnect (claims and setup requests only).
	HandleLeaveRoom(ctx context.Context, conn types.Conn)
	HandleDisconnect(ctx context.Context, conn types.Conn)
}

// Hub owns the connection registry and transport-level room membership, and
// routes inbound events to the engines. It implements types.Transport.
type Hub struct {
	mu          sync.Mutex
	clients     map[types.ConnectionID]*Client
	roomMembers map[types.RoomID]set.Set[types.ConnectionID]

	gate           *auth.Gate
	rateLimiter    *ratelimit.RateLimiter
	allowedOrigins []string

	rooms  RoomEngine
	remote RemoteEngine

	arrivalSeq atomic.Int64
}

// NewHub creates a Hub. Engines are attached afterwards via Attach since they
// need the Hub as their transport.
func NewHub(gate *auth.Gate, rateLimiter *ratelimit.RateLimiter, allowedOrigins []string) *Hub {
	return &Hub{
		clients:        make(map[types.ConnectionID]*Client),
		roomMembers:    make(map[types.RoomID]set.Set[types.ConnectionID]),
		gate:           gate,
		rateLimiter:    rateLimiter,
		allowedOrigins: allowedOrigins,
	}
}

// Attach wires the engines into the dispatch table.
func (h *Hub) Attach(rooms RoomEngine, remote RemoteEngine) {
	h.rooms = rooms
	h.remote = remote
}

// ServeWs authenticates the handshake and upgrades to a WebSocket connection.
//
// Responses:
//   - 429 when the IP connection limit is exceeded.
//   - 401 {"error":"unauthorized"} when the admission gate refuses the token.
//   - 403 when the Origin is not allow-listed.
//   - Upgrades on success.
func (h *Hub) ServeWs(c *gin.Context) {
	if !h.rateLimiter.CheckWebSocket(c) {
		return // Response already written by CheckWebSocket
	}

	token := c.Query("token")
	if token == "" {
		token = c.GetHeader("Authorization")
	}
	if err := h.gate.Authorize(token); err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	if !auth.OriginAllowed(c.Request, h.allowedOrigins) {
		c.JSON(http.StatusForbidden, gin.H{"error": "origin not allowed"})
		return
	}

	upgrader := websocket.Upgrader{
		CheckOrigin: func(r *http.Request) bool {
			return auth.OriginAllowed(r, h.allowedOrigins)
		},
		WriteBufferPool: &sync.Pool{
			New: func() any {
				// Pre-allocate 4KB buffers
				return make([]byte, 4096)
			},
		},
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		logging.Error(c.Request.Context(), "Failed to upgrade connection", zap.Error(err))
		return
	}
	conn.SetReadLimit(MaxPayloadBytes)

	networkID := sanitize.NetworkID(c.GetHeader("X-Forwarded-For"), c.Request.RemoteAddr)
	h.HandleConnection(conn, networkID)
}

// HandleConnection registers an established WebSocket connection and starts
// its pumps. Split out of ServeWs for tests that inject mock connections.
func (h *Hub) HandleConnection(conn wsConnection, networkID string) *Client {
	client := &Client{
		conn:      conn,
		hub:       h,
		id:        types.ConnectionID(uuid.NewString()),
		networkID: networkID,
		arrival:   h.arrivalSeq.Add(1),
		send:      make(chan []byte, 256),
	}

	h.mu.Lock()
	h.clients[client.id] = client
	h.mu.Unlock()

	metrics.IncConnection()
	logging.Info(context.Background(), "Connection established",
		zap.String("connectionId", string(client.id)), zap.String("networkId", networkID))

	go client.writePump()
	go client.readPump()
	return client
}

// dispatch routes one inbound envelope. Handler panics are recovered so a
// single malformed event can never take the process down.
func (h *Hub) dispatch(ctx context.Context, client *Client, env *Envelope) {
	status := "ok"
	defer func() {
		if r := recover(); r != nil {
			status = "panic"
			logging.Error(ctx, "Recovered from panic in event handler",
				zap.String("event", env.Event),
				zap.String("connectionId", string(client.id)),
				zap.Any("panic", r))
		}
		metrics.WebsocketEvents.WithLabelValues(env.Event, status).Inc()
	}()

	switch env.Event {
	case EventCreateRoom:
		h.rooms.HandleCreateRoom(ctx, client)
	case EventJoinedRoom:
		h.rooms.HandleJoinedRoom(ctx, client, env.Payload)
	case EventReady:
		h.rooms.HandleReady(ctx, client)
	case EventLeaveRoom:
		// Claims and setup requests fall away with room membership.
		h.remote.HandleLeaveRoom(ctx, client)
		h.rooms.HandleLeaveRoom(ctx, client)
	case EventHostRegister:
		h.remote.HandleHostRegister(ctx, client, env.Payload)
	case EventHostsRequest:
		h.remote.HandleHostsRequest(ctx, client)
	case EventHostClaim:
		h.remote.HandleHostClaim(ctx, client, env.Payload)
	case EventHostSetupRequest:
		h.remote.HandleHostSetupRequest(ctx, client, env.Payload)
	case EventHostSetupDecision:
		h.remote.HandleHostSetupDecision(ctx, client, env.Payload)
	case EventSessionRequest:
		h.remote.HandleSessionRequest(ctx, client, env.Payload)
	case EventSessionDecision, EventSessionUIDecision:
		h.remote.HandleSessionDecision(ctx, client, env.Payload)
	case EventSessionStop:
		h.remote.HandleSessionStop(ctx, client, env.Payload)
	case EventHostFrame:
		h.remote.HandleHostFrame(ctx, client, env.Payload)
	case EventInput:
		h.remote.HandleInput(ctx, client, env.Payload)
	default:
		status = "unknown"
		logging.GetLogger().Debug("Unknown event dropped", zap.String("event", env.Event))
	}
}

// handleDisconnect runs the full teardown cascade for a dropped connection:
// deregister first (the connection is no longer live), then the remote-control
// cascade, then the room leave path.
func (h *Hub) handleDisconnect(client *Client) {
	h.mu.Lock()
	if _, ok := h.clients[client.id]; !ok {
		h.mu.Unlock()
		return // already torn down
	}
	delete(h.clients, client.id)
	h.mu.Unlock()

	ctx := context.Background()
	if h.remote != nil {
		h.remote.HandleDisconnect(ctx, client)
	}
	if h.rooms != nil {
		h.rooms.HandleDisconnect(ctx, client)
	}

	// Drop any transport-room membership the engines didn't clear.
	h.mu.Lock()
	for roomID, members := range h.roomMembers {
		if members.Has(client.id) {
			members.Delete(client.id)
			if members.Len() == 0 {
				delete(h.roomMembers, roomID)
			}
		}
	}
	h.mu.Unlock()

	client.Disconnect()
	logging.Info(ctx, "Connection closed", zap.String("connectionId", string(client.id)))
}

// --- types.Transport ---

func (h *Hub) EmitToConnection(id types.ConnectionID, event string, payload any) {
	h.mu.Lock()
	client, ok := h.clients[id]
	h.mu.Unlock()
	if !ok {
		return
	}
	client.SendEvent(event, payload)
}

func (h *Hub) EmitToRoom(roomID types.RoomID, event string, payload any, except ...types.ConnectionID) {
	skip := make(map[types.ConnectionID]bool, len(except))
	for _, id := range except {
		skip[id] = true
	}

	h.mu.Lock()
	var targets []*Client
	if members, ok := h.roomMembers[roomID]; ok {
		for _, id := range members.UnsortedList() {
			if skip[id] {
				continue
			}
			if client, live := h.clients[id]; live {
				targets = append(targets, client)
			}
		}
	}
	h.mu.Unlock()

	for _, client := range targets {
		client.SendEvent(event, payload)
	}
}

func (h *Hub) Broadcast(event string, payload any) {
	h.mu.Lock()
	targets := make([]*Client, 0, len(h.clients))
	for _, client := range h.clients {
		targets = append(targets, client)
	}
	h.mu.Unlock()

	for _, client := range targets {
		client.SendEvent(event, payload)
	}
}

// JoinRoom adds the connection to the transport-level room. The mutation is
// complete when this returns, so membership reads that follow observe it.
func (h *Hub) JoinRoom(id types.ConnectionID, roomID types.RoomID) {
	h.mu.Lock()
	defer h.mu.Unlock()
	members, ok := h.roomMembers[roomID]
	if !ok {
		members = set.New[types.ConnectionID]()
		h.roomMembers[roomID] = members
	}
	members.Insert(id)
}

func (h *Hub) LeaveRoom(id types.ConnectionID, roomID types.RoomID) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if members, ok := h.roomMembers[roomID]; ok {
		members.Delete(id)
		if members.Len() == 0 {
			delete(h.roomMembers, roomID)
		}
	}
}

func (h *Hub) ConnectionsInRoom(roomID types.RoomID) []types.ConnectionID {
	h.mu.Lock()
	defer h.mu.Unlock()
	if members, ok := h.roomMembers[roomID]; ok {
		return members.SortedList()
	}
	return nil
}

func (h *Hub) Connection(id types.ConnectionID) (types.Conn, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	client, ok := h.clients[id]
	if !ok {
		return nil, false
	}
	return client, true
}

func (h *Hub) ForEachConnection(fn func(types.Conn)) {
	h.mu.Lock()
	targets := make([]*Client, 0, len(h.clients))
	for _, client := range h.clients {
		targets = append(targets, client)
	}
	h.mu.Unlock()

	for _, client := range targets {
		fn(client)
	}
}

// Shutdown disconnects every client so pumps drain and exit.
func (h *Hub) Shutdown(ctx context.Context) error {
	h.mu.Lock()
	targets := make([]*Client, 0, len(h.clients))
	for _, client := range h.clients {
		targets = append(targets, client)
	}
	h.mu.Unlock()

	for _, client := range targets {
		client.Disconnect()
	}

	logging.Info(ctx, "All connections closed", zap.Int("count", len(targets)))
	return nil
}
