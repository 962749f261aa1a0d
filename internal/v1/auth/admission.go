// Package auth implements the admission gate for inbound transport
// connections and helpers for origin allow-list handling.
package auth

import (
	"errors"
	"strings"
)

// ErrUnauthorized is returned when a handshake fails the admission gate.
// The literal message is part of the wire contract.
var ErrUnauthorized = errors.New("unauthorized")

// TokenValidator validates bearer tokens in JWT admission mode.
type TokenValidator interface {
	ValidateToken(tokenString string) (*CustomClaims, error)
}

// Gate decides whether a handshake may attach connection state.
//
// Modes, in precedence order:
//   - JWT mode: a validator is configured; the declared token must parse and
//     verify as a JWT.
//   - Static mode: a shared token is configured; the declared token must
//     match it exactly after trimming.
//   - Open mode: neither is configured; handshakes are accepted
//     unconditionally.
type Gate struct {
	sharedToken string
	validator   TokenValidator
}

// NewGate builds an admission gate. sharedToken is trimmed; an empty value
// disables static-token checking. validator may be nil.
func NewGate(sharedToken string, validator TokenValidator) *Gate {
	return &Gate{
		sharedToken: strings.TrimSpace(sharedToken),
		validator:   validator,
	}
}

// Authorize checks the token declared during the handshake. The returned
// error is ErrUnauthorized (or wraps the validator failure) when the
// connection must be refused before any state is attached.
func (g *Gate) Authorize(declared string) error {
	if g.validator != nil {
		if _, err := g.validator.ValidateToken(strings.TrimSpace(declared)); err != nil {
			return ErrUnauthorized
		}
		return nil
	}
	if g.sharedToken != "" {
		if strings.TrimSpace(declared) != g.sharedToken {
			return ErrUnauthorized
		}
	}
	return nil
}
