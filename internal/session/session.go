// Package session tracks per-call conversation state while a call is live and
// assembles the persistent record at teardown.
//
// The gateway appends one entry per spoken turn; when the call ends, End
// flattens the buffered conversation plus the extracted patient facts into a
// [store.CallRecord] ready for a single Save.
package session

import (
	"sync"
	"time"

	"github.com/AmaanP314/AI-Caller-Agent/internal/policy"
	"github.com/AmaanP314/AI-Caller-Agent/pkg/store"
)

// Roles recorded in the conversation log.
const (
	RoleAgent = "agent"
	RoleUser  = "user"
)

// call is the in-memory state of one live call.
type call struct {
	phoneNumber string
	startedAt   time.Time
	turns       []store.Turn
}

// Manager holds the conversation buffers of all live calls.
// Safe for concurrent use.
type Manager struct {
	mu    sync.Mutex
	calls map[string]*call
	now   func() time.Time
}

// NewManager creates an empty Manager.
func NewManager() *Manager {
	return &Manager{
		calls: make(map[string]*call),
		now:   time.Now,
	}
}

// Start registers a live call. Calling Start again for the same session is a
// no-op, so the original start time survives reconnect races.
func (m *Manager) Start(sessionID, phoneNumber string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.calls[sessionID]; ok {
		return
	}
	m.calls[sessionID] = &call{
		phoneNumber: phoneNumber,
		startedAt:   m.now(),
	}
}

// Append records one spoken turn. Empty content is dropped, as are appends
// for sessions that were never started or have already ended: a transcript
// finishing after End must not resurrect the buffer as an orphan that no
// teardown will ever flush.
func (m *Manager) Append(sessionID, role, content string) {
	if content == "" {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.calls[sessionID]
	if !ok {
		return
	}
	c.turns = append(c.turns, store.Turn{
		Number:    len(c.turns) + 1,
		Role:      role,
		Content:   content,
		Timestamp: m.now(),
	})
}

// Turns returns a copy of the conversation so far. Nil for unknown sessions.
func (m *Manager) Turns(sessionID string) []store.Turn {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.calls[sessionID]
	if !ok {
		return nil
	}
	out := make([]store.Turn, len(c.turns))
	copy(out, c.turns)
	return out
}

// Active returns the session IDs of all live calls.
func (m *Manager) Active() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, 0, len(m.calls))
	for id := range m.calls {
		out = append(out, id)
	}
	return out
}

// End removes the call and assembles its persistent record. The second
// return value is false when the session is unknown (already ended).
func (m *Manager) End(sessionID, status string, info policy.PatientInfo) (store.CallRecord, bool) {
	m.mu.Lock()
	c, ok := m.calls[sessionID]
	if !ok {
		m.mu.Unlock()
		return store.CallRecord{}, false
	}
	delete(m.calls, sessionID)
	m.mu.Unlock()

	rec := store.CallRecord{
		SessionID:         sessionID,
		PhoneNumber:       c.phoneNumber,
		StartedAt:         c.startedAt,
		EndedAt:           m.now(),
		Status:            status,
		PatientName:       info.PatientName,
		MedicalConditions: info.ConditionsJoined(),
		LastVisitDate:     info.LastVisitDate,
		Interested:        info.Interested,
		Turns:             c.turns,
		TotalTurns:        len(c.turns),
	}
	for _, t := range c.turns {
		if rec.Greeting == "" && t.Role == RoleAgent {
			rec.Greeting = t.Content
		}
		if rec.FirstUserResponse == "" && t.Role == RoleUser {
			rec.FirstUserResponse = t.Content
		}
		if rec.Greeting != "" && rec.FirstUserResponse != "" {
			break
		}
	}
	return rec, true
}
