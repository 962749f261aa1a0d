package gateway

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/RoseWrightdev/Remote-Control/internal/v1/logging"
	"github.com/RoseWrightdev/Remote-Control/internal/v1/metrics"
	"github.com/RoseWrightdev/Remote-Control/internal/v1/types"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// wsConnection defines the interface for WebSocket connection operations.
// In production this is *websocket.Conn; tests substitute mocks.
type wsConnection interface {
	ReadMessage() (messageType int, p []byte, err error)
	WriteMessage(messageType int, data []byte) error
	Close() error
	SetWriteDeadline(t time.Time) error
}

// Envelope is the wire frame: one JSON object per WebSocket text message.
type Envelope struct {
	Event   string          `json:"event"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// Client is one live transport connection together with the engine-owned
// scratch state stamped onto it (room membership and remote-control
// bindings). It implements types.Conn.
type Client struct {
	conn      wsConnection
	hub       *Hub
	id        types.ConnectionID
	networkID string
	arrival   int64

	send chan []byte // Buffered channel for outgoing messages

	mu        sync.RWMutex // Protects closed flag and attached state
	closed    bool
	closeOnce sync.Once

	// Attached state, mutated only by the engines.
	roomID                     types.RoomID
	peerID                     types.PeerID
	remoteHostID               types.HostID
	controllerSessionID        types.SessionID
	hostSessionID              types.SessionID
	pendingRemoteRequestID     types.RequestID
	pendingHostSetupRequestID  types.RequestID
	incomingHostSetupRequestID types.RequestID
}

// --- types.Conn ---

func (c *Client) GetID() types.ConnectionID { return c.id }
func (c *Client) GetNetworkID() string      { return c.networkID }
func (c *Client) GetArrival() int64         { return c.arrival }

func (c *Client) GetRoomID() types.RoomID {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.roomID
}

func (c *Client) SetRoomID(id types.RoomID) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.roomID = id
}

func (c *Client) GetPeerID() types.PeerID {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.peerID
}

func (c *Client) SetPeerID(id types.PeerID) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.peerID = id
}

func (c *Client) GetRemoteHostID() types.HostID {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.remoteHostID
}

func (c *Client) SetRemoteHostID(id types.HostID) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.remoteHostID = id
}

func (c *Client) GetControllerSessionID() types.SessionID {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.controllerSessionID
}

func (c *Client) SetControllerSessionID(id types.SessionID) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.controllerSessionID = id
}

func (c *Client) GetHostSessionID() types.SessionID {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.hostSessionID
}

func (c *Client) SetHostSessionID(id types.SessionID) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.hostSessionID = id
}

func (c *Client) GetPendingRemoteRequestID() types.RequestID {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.pendingRemoteRequestID
}

func (c *Client) SetPendingRemoteRequestID(id types.RequestID) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.pendingRemoteRequestID = id
}

func (c *Client) GetPendingHostSetupRequestID() types.RequestID {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.pendingHostSetupRequestID
}

func (c *Client) SetPendingHostSetupRequestID(id types.RequestID) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.pendingHostSetupRequestID = id
}

func (c *Client) GetIncomingHostSetupRequestID() types.RequestID {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.incomingHostSetupRequestID
}

func (c *Client) SetIncomingHostSetupRequestID(id types.RequestID) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.incomingHostSetupRequestID = id
}

// Disconnect closes the send channel, which drives the write pump to flush
// and close the underlying connection.
func (c *Client) Disconnect() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	c.mu.Unlock()

	c.closeOnce.Do(func() {
		close(c.send)
	})
}

// SendEvent serializes the envelope and queues it for the write pump.
// A full or closed buffer drops the message rather than blocking the caller.
func (c *Client) SendEvent(event string, payload any) {
	c.mu.RLock()
	if c.closed {
		c.mu.RUnlock()
		logging.GetLogger().Debug("Skipping send to closed client", zap.String("connectionId", string(c.id)))
		return
	}
	c.mu.RUnlock()

	body, err := json.Marshal(payload)
	if err != nil {
		logging.Error(context.Background(), "Failed to marshal event payload", zap.String("event", event), zap.Error(err))
		return
	}
	data, err := json.Marshal(Envelope{Event: event, Payload: body})
	if err != nil {
		logging.Error(context.Background(), "Failed to marshal envelope", zap.String("event", event), zap.Error(err))
		return
	}

	// Safety net: the channel may be closed between the flag check and the send.
	defer func() {
		if r := recover(); r != nil {
			logging.GetLogger().Debug("Recovered from send to closed client", zap.String("connectionId", string(c.id)))
		}
	}()

	select {
	case c.send <- data:
	default:
		logging.Warn(context.Background(), "Client send channel full - dropping message",
			zap.String("connectionId", string(c.id)), zap.String("event", event))
	}
}

// readPump processes inbound frames one at a time, which serializes every
// event on this connection.
func (c *Client) readPump() {
	defer func() {
		c.hub.handleDisconnect(c)
		c.conn.Close()
		metrics.DecConnection()
	}()

	for {
		messageType, data, err := c.conn.ReadMessage()
		if err != nil {
			break
		}
		if messageType != websocket.TextMessage {
			continue
		}

		var env Envelope
		if err := json.Unmarshal(data, &env); err != nil {
			logging.Warn(context.Background(), "Failed to unmarshal envelope",
				zap.String("connectionId", string(c.id)), zap.Error(err))
			continue
		}

		c.hub.dispatch(context.Background(), c, &env)
	}
}

func (c *Client) writePump() {
	defer c.conn.Close()
	writeWait := 10 * time.Second

	for message := range c.send {
		_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
			logging.Error(context.Background(), "error writing message", zap.Error(err))
			return
		}
	}
	_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
}
