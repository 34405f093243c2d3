// Package store defines the persistence interface for completed calls.
//
// Each call produces exactly one CallRecord, written once at teardown. The
// record carries the full conversation plus the facts extracted during the
// call, flattened for querying.
package store

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned by Get when no record exists for a session ID.
var ErrNotFound = errors.New("store: call record not found")

// Turn is a single conversational exchange within a call.
type Turn struct {
	// Number is the 1-based position of the turn within the call.
	Number int `json:"turn_number"`

	// Role is "agent" or "user".
	Role string `json:"role"`

	// Content is the spoken text of the turn.
	Content string `json:"content"`

	// Timestamp is when the turn was recorded.
	Timestamp time.Time `json:"timestamp"`
}

// CallRecord is the persistent outcome of one call.
type CallRecord struct {
	// SessionID uniquely identifies the call. Saving twice with the same
	// SessionID overwrites the earlier record.
	SessionID string

	// PhoneNumber is the dialled number, when known.
	PhoneNumber string

	// StartedAt and EndedAt bound the call in wall-clock time.
	StartedAt time.Time
	EndedAt   time.Time

	// Status is the teardown reason: "completed", "not_interested",
	// "customer_upset", "interested_customer_ready", "disconnected", or
	// "error".
	Status string

	// Extracted facts, flattened for querying. MedicalConditions holds the
	// comma-joined condition list. Interested is nil until the customer has
	// stated a preference either way.
	PatientName       string
	MedicalConditions string
	LastVisitDate     string
	Interested        *bool

	// Turns is the full conversation in order.
	Turns []Turn

	// TotalTurns is len(Turns), stored separately for cheap aggregation.
	TotalTurns int

	// Greeting is the agent's opening line; FirstUserResponse is the
	// customer's first reply. Both may be empty on very short calls.
	Greeting          string
	FirstUserResponse string
}

// CallStore persists call records.
//
// Implementations must be safe for concurrent use.
type CallStore interface {
	// Save writes rec, replacing any existing record with the same SessionID.
	Save(ctx context.Context, rec CallRecord) error

	// Get returns the record for sessionID, or ErrNotFound.
	Get(ctx context.Context, sessionID string) (*CallRecord, error)

	// Ping reports whether the backing storage is reachable.
	Ping(ctx context.Context) error
}
