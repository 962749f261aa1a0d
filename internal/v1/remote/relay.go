package remote

import (
	"context"
	"encoding/json"

	"github.com/RoseWrightdev/Remote-Control/internal/v1/metrics"
	"github.com/RoseWrightdev/Remote-Control/internal/v1/sanitize"
	"github.com/RoseWrightdev/Remote-Control/internal/v1/types"
)

type hostFramePayload struct {
	SessionID any `json:"sessionId"`
	Image     any `json:"image"`
	Width     any `json:"width"`
	Height    any `json:"height"`
	Timestamp any `json:"timestamp"`
}

type framePayload struct {
	SessionID types.SessionID `json:"sessionId"`
	Image     string          `json:"image"`
	Width     *float64        `json:"width"`
	Height    *float64        `json:"height"`
	Timestamp float64         `json:"timestamp"`
}

type inputPayload struct {
	SessionID any `json:"sessionId"`
	Event     any `json:"event"`
}

type relayedInputPayload struct {
	SessionID types.SessionID `json:"sessionId"`
	Event     map[string]any  `json:"event"`
}

// HandleHostFrame forwards a screen frame from the host agent to the
// controller. Frames from anyone but the session's host, without an image, or
// over the size cap are dropped without a reply.
func (e *Engine) HandleHostFrame(ctx context.Context, conn types.Conn, payload json.RawMessage) {
	var p hostFramePayload
	if err := json.Unmarshal(payload, &p); err != nil {
		return
	}
	image, ok := p.Image.(string)
	if !ok || image == "" || len(image) > MaxFrameImageBytes {
		return
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	s, ok := e.sessions[types.SessionID(sanitize.String(p.SessionID, 64))]
	if !ok || s.hostConnID != conn.GetID() {
		return
	}

	out := framePayload{
		SessionID: s.id,
		Image:     image,
		Timestamp: float64(e.now().UnixMilli()),
	}
	if w, ok := finite(p.Width); ok {
		out.Width = &w
	}
	if h, ok := finite(p.Height); ok {
		out.Height = &h
	}
	if ts, ok := finite(p.Timestamp); ok {
		out.Timestamp = ts
	}

	e.transport.EmitToConnection(s.controllerConnID, EventFrame, out)
	s.frames++
	s.frameBytes += int64(len(image))
	metrics.RelayedFrames.Inc()
}

// HandleInput forwards a sanitized input event from the controller to the
// host agent. Events from anyone but the session's controller, or that do not
// survive sanitization, are dropped without a reply.
func (e *Engine) HandleInput(ctx context.Context, conn types.Conn, payload json.RawMessage) {
	var p inputPayload
	if err := json.Unmarshal(payload, &p); err != nil {
		return
	}
	event := sanitize.RemoteEvent(p.Event)
	if event == nil {
		return
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	s, ok := e.sessions[types.SessionID(sanitize.String(p.SessionID, 64))]
	if !ok || s.controllerConnID != conn.GetID() {
		return
	}

	e.transport.EmitToConnection(s.hostConnID, EventInput, relayedInputPayload{
		SessionID: s.id,
		Event:     event,
	})
	s.inputs++
	metrics.RelayedInputs.Inc()
}

func finite(v any) (float64, bool) {
	f, ok := v.(float64)
	return f, ok
}
