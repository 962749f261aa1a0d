package remote

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/RoseWrightdev/Remote-Control/internal/v1/types"
)

func TestHandleDisconnect_HostAgent(t *testing.T) {
	t.Run("ends the active session", func(t *testing.T) {
		f := newBrokerFixture(t, Config{})
		f.accept(t, f.request(t))
		f.transport.clearSent()

		f.transport.dropConn("agent")
		f.engine.HandleDisconnect(context.Background(), f.agent)

		ended := f.transport.eventsFor("ctrl", EventSessionEnded)
		require.Len(t, ended, 1)
		assert.Equal(t, "host-disconnected", ended[0].payload.(sessionEndedPayload).EndedBy)
		assert.Empty(t, f.engine.sessions)
		assert.Empty(t, f.engine.hosts)
		assert.Empty(t, lastHostsList(f.transport, "holder"))
	})

	t.Run("cancels a pending request targeting it", func(t *testing.T) {
		f := newBrokerFixture(t, Config{})
		f.request(t)

		f.transport.dropConn("agent")
		f.engine.HandleDisconnect(context.Background(), f.agent)

		assert.Equal(t, CodeHostDisconnected, lastErrorCode(f.transport, "ctrl"))
		assert.Empty(t, f.engine.pending)
		assert.Empty(t, f.controller.GetPendingRemoteRequestID())
	})

	t.Run("sweeps every id the agent registered", func(t *testing.T) {
		engine, transport := newTestEngine(Config{})
		agent := transport.addConn("agent")
		engine.HandleHostRegister(context.Background(), agent, raw(map[string]any{"hostId": "host-a"}))
		engine.HandleHostRegister(context.Background(), agent, raw(map[string]any{"hostId": "host-b"}))
		require.Len(t, engine.hosts, 2)

		transport.dropConn("agent")
		engine.HandleDisconnect(context.Background(), agent)

		assert.Empty(t, engine.hosts, "re-registering under a new id must not strand the old one")
		viewer := transport.addConn("viewer")
		engine.HandleHostsRequest(context.Background(), viewer)
		assert.Empty(t, lastHostsList(transport, "viewer"))
	})
}

func TestHandleDisconnect_Controller(t *testing.T) {
	t.Run("ends its session", func(t *testing.T) {
		f := newBrokerFixture(t, Config{})
		f.accept(t, f.request(t))
		f.transport.clearSent()

		f.transport.dropConn("ctrl")
		f.engine.HandleDisconnect(context.Background(), f.controller)

		ended := f.transport.eventsFor("agent", EventSessionEnded)
		require.Len(t, ended, 1)
		assert.Equal(t, "controller-disconnected", ended[0].payload.(sessionEndedPayload).EndedBy)
		assert.Empty(t, f.engine.sessions)
		assert.Empty(t, f.agent.GetHostSessionID())
	})

	t.Run("cancels its pending request", func(t *testing.T) {
		f := newBrokerFixture(t, Config{})
		f.request(t)

		f.transport.dropConn("ctrl")
		f.engine.HandleDisconnect(context.Background(), f.controller)

		assert.Equal(t, CodeControllerDisconnect, lastErrorCode(f.transport, "agent"))
		assert.Empty(t, f.engine.pending)
	})
}

func TestHandleDisconnect_Approver(t *testing.T) {
	f := newBrokerFixture(t, Config{})
	f.request(t)

	f.transport.dropConn("holder")
	f.engine.HandleDisconnect(context.Background(), f.holder)

	assert.Equal(t, CodeApproverDisconnected, lastErrorCode(f.transport, "ctrl"))
	assert.Empty(t, f.engine.pending)
	assert.Empty(t, f.engine.claims, "the holder's claim dies with it")
}

func TestHandleDisconnect_SetupRequests(t *testing.T) {
	t.Run("target disconnect notifies the requester", func(t *testing.T) {
		engine, transport := newTestEngine(Config{})
		requester := transport.addConn("a")
		target := transport.addConn("b")
		joinRoom(transport, requester, "room-1", "alice")
		joinRoom(transport, target, "room-1", "bob")
		engine.HandleHostSetupRequest(context.Background(), requester, raw(map[string]any{}))

		transport.dropConn("b")
		engine.HandleDisconnect(context.Background(), target)

		results := transport.eventsFor("a", EventHostSetupResult)
		require.Len(t, results, 1)
		assert.Equal(t, "target-disconnected", results[0].payload.(setupResultPayload).Status)
		assert.Empty(t, engine.setupPending)
		assert.Empty(t, requester.GetPendingHostSetupRequestID())
	})

	t.Run("requester disconnect is silent", func(t *testing.T) {
		engine, transport := newTestEngine(Config{})
		requester := transport.addConn("a")
		target := transport.addConn("b")
		joinRoom(transport, requester, "room-1", "alice")
		joinRoom(transport, target, "room-1", "bob")
		engine.HandleHostSetupRequest(context.Background(), requester, raw(map[string]any{}))
		transport.clearSent()

		transport.dropConn("a")
		engine.HandleDisconnect(context.Background(), requester)

		assert.Empty(t, engine.setupPending)
		assert.Empty(t, target.GetIncomingHostSetupRequestID())
		assert.Empty(t, transport.eventsFor("b", EventHostSetupResult))
	})
}

func TestHandleLeaveRoom(t *testing.T) {
	f := newBrokerFixture(t, Config{})
	sessionID := f.accept(t, f.request(t))

	f.engine.assignments["host-spare"] = assignment{
		targetConnID: "holder",
		roomID:       "room-1",
		expiresAt:    f.engine.now().Add(f.engine.assignmentTTL),
	}
	f.transport.clearSent()

	f.engine.HandleLeaveRoom(context.Background(), f.holder)

	assert.Empty(t, f.engine.claims, "claims drop on leave")
	assert.Empty(t, f.engine.assignments, "assignments drop on leave")
	// The running session and host registration outlive a room leave.
	assert.Contains(t, f.engine.sessions, sessionID)
	assert.Contains(t, f.engine.hosts, types.HostID("host-desk"))
	assert.Equal(t, "unclaimed", lastHostsList(f.transport, "ctrl")[0].Ownership)
}

func TestAssignmentExpiry(t *testing.T) {
	engine, transport := newTestEngine(Config{})
	engine.assignmentTTL = 10 * time.Millisecond

	requester := transport.addConn("a")
	target := transport.addConn("b")
	joinRoom(transport, requester, "room-1", "alice")
	joinRoom(transport, target, "room-1", "bob")
	engine.HandleHostSetupRequest(context.Background(), requester, raw(map[string]any{}))
	pending := transport.eventsFor("a", EventHostSetupPending)
	require.Len(t, pending, 1)
	engine.HandleHostSetupDecision(context.Background(), target,
		raw(map[string]any{"requestId": string(pending[0].payload.(setupPendingPayload).RequestID), "accepted": true}))

	engine.mu.Lock()
	require.Contains(t, engine.assignments, types.HostID("host-bob"))
	engine.mu.Unlock()

	assert.Eventually(t, func() bool {
		engine.mu.Lock()
		defer engine.mu.Unlock()
		_, ok := engine.assignments["host-bob"]
		return !ok
	}, time.Second, 5*time.Millisecond)
}
