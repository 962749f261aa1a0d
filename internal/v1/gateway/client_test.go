package gateway

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/RoseWrightdev/Remote-Control/internal/v1/types"
)

// bareClient builds a Client without pumps so channel behavior can be
// observed directly.
func bareClient(buffer int) *Client {
	return &Client{
		id:   types.ConnectionID("c1"),
		send: make(chan []byte, buffer),
	}
}

func TestSendEvent_EnvelopeFormat(t *testing.T) {
	client := bareClient(4)

	client.SendEvent("room-created", map[string]string{"roomId": "r1"})

	select {
	case data := <-client.send:
		var env Envelope
		require.NoError(t, json.Unmarshal(data, &env))
		assert.Equal(t, "room-created", env.Event)
		assert.JSONEq(t, `{"roomId":"r1"}`, string(env.Payload))
	case <-time.After(time.Second):
		t.Fatal("nothing queued")
	}
}

func TestSendEvent_DropsWhenBufferFull(t *testing.T) {
	client := bareClient(1)

	client.SendEvent("first", nil)
	client.SendEvent("second", nil) // must not block

	assert.Len(t, client.send, 1, "overflow is dropped, not queued")
}

func TestSendEvent_AfterDisconnect(t *testing.T) {
	client := bareClient(1)
	client.Disconnect()

	// Must neither panic nor deliver.
	client.SendEvent("late", nil)

	_, open := <-client.send
	assert.False(t, open)
}

func TestDisconnect_Idempotent(t *testing.T) {
	client := bareClient(1)
	client.Disconnect()
	client.Disconnect()

	_, open := <-client.send
	assert.False(t, open)
}

func TestClientStateAccessors(t *testing.T) {
	client := bareClient(1)

	client.SetRoomID("room-1")
	client.SetPeerID("alice")
	client.SetRemoteHostID("host-a")
	client.SetControllerSessionID("s1")
	client.SetHostSessionID("s2")
	client.SetPendingRemoteRequestID("req-1")
	client.SetPendingHostSetupRequestID("req-2")
	client.SetIncomingHostSetupRequestID("req-3")

	assert.Equal(t, types.RoomID("room-1"), client.GetRoomID())
	assert.Equal(t, types.PeerID("alice"), client.GetPeerID())
	assert.Equal(t, types.HostID("host-a"), client.GetRemoteHostID())
	assert.Equal(t, types.SessionID("s1"), client.GetControllerSessionID())
	assert.Equal(t, types.SessionID("s2"), client.GetHostSessionID())
	assert.Equal(t, types.RequestID("req-1"), client.GetPendingRemoteRequestID())
	assert.Equal(t, types.RequestID("req-2"), client.GetPendingHostSetupRequestID())
	assert.Equal(t, types.RequestID("req-3"), client.GetIncomingHostSetupRequestID())
}
