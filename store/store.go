// Package store implements the durability layer for sessions, parameters,
// conversation history, and match results (spec §4.2, component C2).
package store

import (
	"context"

	"github.com/vulbsti/loanmatchmaker/model"
)

// SessionStore is the durability contract consumed by tracker,
// orchestrator, and httpserver. It owns Session, ChatMessage, ParameterTracking, and
// LoanParameters rows (spec §3 "Ownership") and LenderMatch rows on behalf
// of the scoring engine.
//
// All mutating operations on a single session are expected to be called
// inside a WithSessionLock closure by the orchestrator so that per-session
// writes never interleave (spec §5).
type SessionStore interface {
	// Open allocates a new session with empty parameters/tracking rows.
	Open(fp *model.Fingerprint) (*model.Session, error)

	// Load returns session metadata, current parameters, tracking, and
	// ordered history. Returns a NotFound or Expired *model.Error.
	Load(sessionID string) (*model.SessionSnapshot, error)

	// AppendMessage atomically appends msg, assigning ID/Seq/CreatedAt.
	AppendMessage(sessionID string, msg model.ChatMessage) (model.ChatMessage, error)

	// Touch updates last-touched (UpdatedAt).
	Touch(sessionID string) error

	// Close sets status = completed.
	Close(sessionID string) error

	// SweepExpired flips active-but-past-expiry sessions to expired and
	// returns how many were swept.
	SweepExpired() (int, error)

	// GetParameters returns the current LoanParameters and ParameterTracking
	// rows for a session.
	GetParameters(sessionID string) (model.LoanParameters, model.ParameterTracking, error)

	// SaveParameters persists both rows atomically. Called only by tracker,
	// which has already validated the new value.
	SaveParameters(sessionID string, params model.LoanParameters, tracking model.ParameterTracking) error

	// ReplaceMatches atomically replaces all LenderMatch rows for a session.
	ReplaceMatches(sessionID string, matches []model.LenderMatch) error

	// GetMatches returns the last persisted matches, ordered by finalScore desc.
	GetMatches(sessionID string) ([]model.LenderMatch, error)

	// WithSessionLock serialises all mutating operations for one session,
	// per spec §5's "short per-session lock for load -> mutations -> append".
	WithSessionLock(sessionID string, fn func() error) error

	// Shutdown closes the underlying connection/handle.
	Shutdown() error

	// Ping reports whether the underlying storage is reachable, used by
	// the health endpoint's "database" status (spec §6).
	Ping(ctx context.Context) error
}
