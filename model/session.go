package model

import (
	"time"

	"github.com/google/uuid"
)

// SessionStatus is the lifecycle state of a Session (spec §3).
type SessionStatus string

const (
	SessionActive    SessionStatus = "active"
	SessionCompleted SessionStatus = "completed"
	SessionExpired   SessionStatus = "expired"
)

// SessionTTL is the hard expiry window from creation, fixed per spec §9's
// resolution of the open question (24h, not unbounded).
const SessionTTL = 24 * time.Hour

// Fingerprint is an optional client identity hint attached at session-open
// time. It is never used for authentication — sessions remain opaque
// tokens per spec §1's Non-goals.
type Fingerprint struct {
	UserAgent string
	IP        string
}

// Session is the opaque per-conversation record (spec §3).
type Session struct {
	SessionID   string
	Status      SessionStatus
	CreatedAt   time.Time
	UpdatedAt   time.Time
	ExpiresAt   time.Time
	Fingerprint *Fingerprint
}

// NewSession allocates a fresh session with a version-4 UUID id and a 24h
// hard expiry, per spec §4.2 `open`.
func NewSession(fp *Fingerprint) *Session {
	now := time.Now()
	return &Session{
		SessionID:   uuid.NewString(),
		Status:      SessionActive,
		CreatedAt:   now,
		UpdatedAt:   now,
		ExpiresAt:   now.Add(SessionTTL),
		Fingerprint: fp,
	}
}

// Usable reports whether the session may accept a new turn: active status
// and not yet past its expiry (spec §3 invariant).
func (s *Session) Usable(now time.Time) bool {
	return s.Status == SessionActive && now.Before(s.ExpiresAt)
}

// SessionSnapshot bundles everything a single `load` call returns per
// spec §4.2: session metadata, current parameters, the tracking row, and
// ordered conversation history.
type SessionSnapshot struct {
	Session    *Session
	Parameters LoanParameters
	Tracking   ParameterTracking
	History    []ChatMessage
}
