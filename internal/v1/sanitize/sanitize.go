// Package sanitize holds the pure validators and normalizers applied to
// user-supplied fields before they touch any registry: identifier trimming,
// UUID shape checks, remote input event normalization, and network origin
// classification.
package sanitize

import (
	"math"
	"net"
	"regexp"
	"strings"

	"github.com/google/uuid"
)

// DefaultMaxLen is the string cap applied when callers don't pass their own.
const DefaultMaxLen = 128

var (
	uuidLikeRe    = regexp.MustCompile(`^[0-9a-fA-F]{8}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{12}$`)
	hostIDCharsRe = regexp.MustCompile(`[^A-Za-z0-9_-]`)
)

// String returns the trimmed input truncated to maxLen if the value is a
// string, and "" for every other type.
func String(v any, maxLen int) string {
	s, ok := v.(string)
	if !ok {
		return ""
	}
	s = strings.TrimSpace(s)
	if runes := []rune(s); len(runes) > maxLen {
		s = string(runes[:maxLen])
	}
	return s
}

// StringDefault is String with the default 128-char cap.
func StringDefault(v any) string {
	return String(v, DefaultMaxLen)
}

// IsUUIDLike reports whether the value matches the canonical 8-4-4-4-12 hex
// form, case-insensitive.
func IsUUIDLike(v any) bool {
	s, ok := v.(string)
	if !ok {
		return false
	}
	return uuidLikeRe.MatchString(s)
}

// BuildSuggestedHostID derives a host identifier from a peer id: the peer id
// stripped to [A-Za-z0-9_-] and capped at 20 chars, or the first 8 chars of a
// fresh UUID when nothing survives the strip. The result carries a "host-"
// prefix.
func BuildSuggestedHostID(peerID string) string {
	suffix := hostIDCharsRe.ReplaceAllString(peerID, "")
	if len(suffix) > 20 {
		suffix = suffix[:20]
	}
	if suffix == "" {
		suffix = uuid.NewString()[:8]
	}
	return "host-" + suffix
}

// Pointer event types accepted by RemoteEvent.
var pointerTypes = map[string]bool{
	"move":       true,
	"click":      true,
	"mouse-down": true,
	"mouse-up":   true,
	"wheel":      true,
}

// Key event types accepted by RemoteEvent.
var keyTypes = map[string]bool{
	"key-down": true,
	"key-up":   true,
}

var mouseButtons = map[string]bool{
	"left":   true,
	"right":  true,
	"middle": true,
}

// RemoteEvent validates an inbound input event and returns its normalized
// shape, or nil when the event is malformed and must be dropped.
//
// Pointer types require finite x/y which are clamped to [0,1]. Button events
// default to the left button; wheel deltas default to 0. Key types require at
// least one of key/code and carry a boolean repeat flag.
func RemoteEvent(raw any) map[string]any {
	m, ok := raw.(map[string]any)
	if !ok {
		return nil
	}

	typ := String(m["type"], 32)

	switch {
	case pointerTypes[typ]:
		x, okX := finiteNumber(m["x"])
		y, okY := finiteNumber(m["y"])
		if !okX || !okY {
			return nil
		}
		out := map[string]any{
			"type": typ,
			"x":    clamp01(x),
			"y":    clamp01(y),
		}
		switch typ {
		case "click", "mouse-down", "mouse-up":
			button := String(m["button"], 16)
			if !mouseButtons[button] {
				button = "left"
			}
			out["button"] = button
		case "wheel":
			dx, ok := finiteNumber(m["deltaX"])
			if !ok {
				dx = 0
			}
			dy, ok := finiteNumber(m["deltaY"])
			if !ok {
				dy = 0
			}
			out["deltaX"] = dx
			out["deltaY"] = dy
		}
		return out

	case keyTypes[typ]:
		key := String(m["key"], 64)
		code := String(m["code"], 64)
		if key == "" && code == "" {
			return nil
		}
		repeat, _ := m["repeat"].(bool)
		return map[string]any{
			"type":   typ,
			"key":    key,
			"code":   code,
			"repeat": repeat,
		}
	}

	return nil
}

func finiteNumber(v any) (float64, bool) {
	f, ok := v.(float64)
	if !ok || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}

func clamp01(f float64) float64 {
	if f < 0 {
		return 0
	}
	if f > 1 {
		return 1
	}
	return f
}

// LoopbackNetworkID is the collapsed origin for all loopback addresses. Local
// agents during development therefore share one origin; intentional.
const LoopbackNetworkID = "loopback-local"

// NetworkID normalizes a connection's remote origin: the first forwarded-for
// entry when present, else the host portion of the raw peer address, with
// loopback addresses collapsed to LoopbackNetworkID.
func NetworkID(forwardedFor, remoteAddr string) string {
	candidate := ""
	if forwardedFor != "" {
		candidate = strings.TrimSpace(strings.Split(forwardedFor, ",")[0])
	}
	if candidate == "" {
		candidate = remoteAddr
		if host, _, err := net.SplitHostPort(remoteAddr); err == nil {
			candidate = host
		}
	}

	candidate = stripMappedPrefix(strings.TrimSpace(candidate))
	if candidate == "" {
		return ""
	}
	if isLoopback(candidate) {
		return LoopbackNetworkID
	}
	return candidate
}

// IsLikelyPrivateOrLocal reports whether a normalized network id points at a
// loopback, RFC1918, link-local, or IPv6 ULA origin.
func IsLikelyPrivateOrLocal(networkID string) bool {
	id := stripMappedPrefix(networkID)
	if id == "" {
		return false
	}
	if id == LoopbackNetworkID || isLoopback(id) {
		return true
	}
	if strings.HasPrefix(id, "10.") ||
		strings.HasPrefix(id, "192.168.") ||
		strings.HasPrefix(id, "169.254.") {
		return true
	}
	// 172.16.0.0/12
	if strings.HasPrefix(id, "172.") {
		rest := strings.TrimPrefix(id, "172.")
		if dot := strings.IndexByte(rest, '.'); dot > 0 {
			octet := rest[:dot]
			if len(octet) == 2 && octet >= "16" && octet <= "31" {
				return true
			}
		}
	}
	// IPv6 unique-local fc00::/7
	lower := strings.ToLower(id)
	if strings.HasPrefix(lower, "fc") || strings.HasPrefix(lower, "fd") {
		return true
	}
	return false
}

func stripMappedPrefix(id string) string {
	return strings.TrimPrefix(id, "::ffff:")
}

func isLoopback(id string) bool {
	if id == "::1" || id == "localhost" {
		return true
	}
	if ip := net.ParseIP(id); ip != nil {
		return ip.IsLoopback()
	}
	return strings.HasPrefix(id, "127.")
}
