package gateway

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/RoseWrightdev/Remote-Control/internal/v1/types"
)

// mockWsConn implements wsConnection. Inbound frames are fed through a
// channel; outbound writes are recorded.
type mockWsConn struct {
	inbound chan inboundFrame

	mu      sync.Mutex
	written [][]byte
	closed  bool
}

type inboundFrame struct {
	messageType int
	data        []byte
}

func newMockWsConn() *mockWsConn {
	return &mockWsConn{inbound: make(chan inboundFrame, 16)}
}

func (m *mockWsConn) ReadMessage() (int, []byte, error) {
	frame, ok := <-m.inbound
	if !ok {
		return 0, nil, context.Canceled
	}
	return frame.messageType, frame.data, nil
}

func (m *mockWsConn) WriteMessage(messageType int, data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.written = append(m.written, data)
	return nil
}

func (m *mockWsConn) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.closed {
		m.closed = true
		close(m.inbound)
	}
	return nil
}

func (m *mockWsConn) SetWriteDeadline(t time.Time) error { return nil }

// feed queues one inbound text frame.
func (m *mockWsConn) feed(messageType int, data []byte) {
	m.inbound <- inboundFrame{messageType: messageType, data: data}
}

func (m *mockWsConn) writtenFrames() [][]byte {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([][]byte(nil), m.written...)
}

// recordedCall is one engine invocation seen by the stubs.
type recordedCall struct {
	method  string
	connID  types.ConnectionID
	payload json.RawMessage
}

type callRecorder struct {
	mu    sync.Mutex
	calls []recordedCall
}

func (r *callRecorder) record(method string, conn types.Conn, payload json.RawMessage) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, recordedCall{method: method, connID: conn.GetID(), payload: payload})
}

func (r *callRecorder) methods() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, len(r.calls))
	for i, c := range r.calls {
		out[i] = c.method
	}
	return out
}

// stubRoomEngine implements RoomEngine.
type stubRoomEngine struct {
	rec *callRecorder
}

func (s *stubRoomEngine) HandleCreateRoom(ctx context.Context, conn types.Conn) {
	s.rec.record("rooms.CreateRoom", conn, nil)
}
func (s *stubRoomEngine) HandleJoinedRoom(ctx context.Context, conn types.Conn, payload json.RawMessage) {
	s.rec.record("rooms.JoinedRoom", conn, payload)
}
func (s *stubRoomEngine) HandleReady(ctx context.Context, conn types.Conn) {
	s.rec.record("rooms.Ready", conn, nil)
}
func (s *stubRoomEngine) HandleLeaveRoom(ctx context.Context, conn types.Conn) {
	s.rec.record("rooms.LeaveRoom", conn, nil)
}
func (s *stubRoomEngine) HandleDisconnect(ctx context.Context, conn types.Conn) {
	s.rec.record("rooms.Disconnect", conn, nil)
}

// stubRemoteEngine implements RemoteEngine. A non-nil panicOn makes the named
// handler panic, for dispatch recovery tests.
type stubRemoteEngine struct {
	rec     *callRecorder
	panicOn string
}

func (s *stubRemoteEngine) maybePanic(method string) {
	if s.panicOn == method {
		panic("handler blew up")
	}
}

func (s *stubRemoteEngine) HandleHostRegister(ctx context.Context, conn types.Conn, payload json.RawMessage) {
	s.rec.record("remote.HostRegister", conn, payload)
	s.maybePanic("remote.HostRegister")
}
func (s *stubRemoteEngine) HandleHostsRequest(ctx context.Context, conn types.Conn) {
	s.rec.record("remote.HostsRequest", conn, nil)
}
func (s *stubRemoteEngine) HandleHostClaim(ctx context.Context, conn types.Conn, payload json.RawMessage) {
	s.rec.record("remote.HostClaim", conn, payload)
}
func (s *stubRemoteEngine) HandleHostSetupRequest(ctx context.Context, conn types.Conn, payload json.RawMessage) {
	s.rec.record("remote.HostSetupRequest", conn, payload)
}
func (s *stubRemoteEngine) HandleHostSetupDecision(ctx context.Context, conn types.Conn, payload json.RawMessage) {
	s.rec.record("remote.HostSetupDecision", conn, payload)
}
func (s *stubRemoteEngine) HandleSessionRequest(ctx context.Context, conn types.Conn, payload json.RawMessage) {
	s.rec.record("remote.SessionRequest", conn, payload)
}
func (s *stubRemoteEngine) HandleSessionDecision(ctx context.Context, conn types.Conn, payload json.RawMessage) {
	s.rec.record("remote.SessionDecision", conn, payload)
}
func (s *stubRemoteEngine) HandleSessionStop(ctx context.Context, conn types.Conn, payload json.RawMessage) {
	s.rec.record("remote.SessionStop", conn, payload)
}
func (s *stubRemoteEngine) HandleHostFrame(ctx context.Context, conn types.Conn, payload json.RawMessage) {
	s.rec.record("remote.HostFrame", conn, payload)
}
func (s *stubRemoteEngine) HandleInput(ctx context.Context, conn types.Conn, payload json.RawMessage) {
	s.rec.record("remote.Input", conn, payload)
}
func (s *stubRemoteEngine) HandleLeaveRoom(ctx context.Context, conn types.Conn) {
	s.rec.record("remote.LeaveRoom", conn, nil)
}
func (s *stubRemoteEngine) HandleDisconnect(ctx context.Context, conn types.Conn) {
	s.rec.record("remote.Disconnect", conn, nil)
}
