package signaling

import (
	"bytes"
	"encoding/json"
	"errors"
	"time"
)

// Role is the side of the handshake a connection speaks for.
type Role string

const (
	RoleCreator Role = "creator"
	RoleJoiner  Role = "joiner"
)

var ErrInvalidRole = errors.New("signaling: role must be creator or joiner")

func ParseRole(s string) (Role, error) {
	switch Role(s) {
	case RoleCreator, RoleJoiner:
		return Role(s), nil
	}
	return "", ErrInvalidRole
}

// Conn is a live transport attached to one role of a session.
// Implementations must be comparable (pointer types) since slot ownership is
// decided by identity.
type Conn interface {
	ID() string
	// Send queues an encoded frame. It must not block.
	Send(frame []byte) error
	// Close requests a normal closure with the given reason. It must not block
	// and may be called more than once.
	Close(reason string)
}

type session struct {
	code         string
	offer        json.RawMessage
	answer       json.RawMessage
	creator      Conn
	joiner       Conn
	createdAt    time.Time
	lastActivity time.Time
}

func (s *session) conn(r Role) Conn {
	if r == RoleCreator {
		return s.creator
	}
	return s.joiner
}

func (s *session) setConn(r Role, c Conn) {
	if r == RoleCreator {
		s.creator = c
		return
	}
	s.joiner = c
}

func (s *session) idle() bool { return s.creator == nil && s.joiner == nil }

func (s *session) info() SessionInfo {
	return SessionInfo{
		Code:             s.code,
		HasOffer:         present(s.offer),
		HasAnswer:        present(s.answer),
		CreatorConnected: s.creator != nil,
		JoinerConnected:  s.joiner != nil,
		CreatedAt:        s.createdAt,
		LastActivity:     s.lastActivity,
	}
}

// SessionInfo is a read-only snapshot of a session for diagnostics.
type SessionInfo struct {
	Code             string    `json:"code"`
	HasOffer         bool      `json:"has_offer"`
	HasAnswer        bool      `json:"has_answer"`
	CreatorConnected bool      `json:"creator_connected"`
	JoinerConnected  bool      `json:"joiner_connected"`
	CreatedAt        time.Time `json:"created_at"`
	LastActivity     time.Time `json:"last_activity"`
}

// present reports whether a stored payload counts as available for delivery.
// Falsy JSON values are treated as absent.
func present(raw json.RawMessage) bool {
	v := bytes.TrimSpace(raw)
	if len(v) == 0 {
		return false
	}
	switch string(v) {
	case "null", "false", `""`, "0":
		return false
	}
	return true
}
