package services

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"trafficlens/pkg/contracts/domain"
)

// Session is the explicit per-caller context for the pipeline: created on
// first use, cleared on reset, discarded with the process. Nothing in it
// survives across sessions.
type Session struct {
	ID        string
	CreatedAt time.Time

	mu           sync.Mutex
	sourceName   string
	table        *domain.RecordSet
	report       *domain.DashboardReport
	lastActivity time.Time
}

// SetResult stores the outcome of an analysis run.
func (s *Session) SetResult(sourceName string, res *AnalysisResult) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sourceName = sourceName
	s.table = res.Table
	s.report = res.Report
	s.lastActivity = time.Now()
}

// Result returns the stored table and report; ok is false before any
// upload has been analyzed.
func (s *Session) Result() (table *domain.RecordSet, report *domain.DashboardReport, ok bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastActivity = time.Now()
	if s.table == nil {
		return nil, nil, false
	}
	return s.table, s.report, true
}

// SourceName returns the filename of the analyzed upload.
func (s *Session) SourceName() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sourceName
}

// Reset clears the session's data without destroying the session itself.
func (s *Session) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sourceName = ""
	s.table = nil
	s.report = nil
	s.lastActivity = time.Now()
}

// LastActivity reports when the session was last touched.
func (s *Session) LastActivity() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastActivity
}

// SessionStore holds live sessions in memory. No cross-session or
// cross-restart persistence by design.
type SessionStore struct {
	mu       sync.RWMutex
	sessions map[string]*Session
	ttl      time.Duration
}

// NewSessionStore creates a store whose sessions expire after ttl of
// inactivity.
func NewSessionStore(ttl time.Duration) *SessionStore {
	return &SessionStore{
		sessions: make(map[string]*Session),
		ttl:      ttl,
	}
}

// Create makes a new session with a fresh ID.
func (st *SessionStore) Create() *Session {
	now := time.Now()
	s := &Session{
		ID:           uuid.New().String(),
		CreatedAt:    now,
		lastActivity: now,
	}
	st.mu.Lock()
	st.sessions[s.ID] = s
	st.mu.Unlock()
	return s
}

// Get returns the session by ID, nil when unknown or expired.
func (st *SessionStore) Get(id string) *Session {
	st.mu.RLock()
	s := st.sessions[id]
	st.mu.RUnlock()
	if s == nil {
		return nil
	}
	if st.ttl > 0 && time.Since(s.LastActivity()) > st.ttl {
		st.Delete(id)
		return nil
	}
	return s
}

// Delete removes the session and its data.
func (st *SessionStore) Delete(id string) {
	st.mu.Lock()
	delete(st.sessions, id)
	st.mu.Unlock()
}

// Sweep drops sessions idle longer than the TTL. Returns how many were
// removed.
func (st *SessionStore) Sweep() int {
	if st.ttl <= 0 {
		return 0
	}
	st.mu.Lock()
	defer st.mu.Unlock()
	removed := 0
	for id, s := range st.sessions {
		if time.Since(s.LastActivity()) > st.ttl {
			delete(st.sessions, id)
			removed++
		}
	}
	return removed
}

// Len returns the number of live sessions.
func (st *SessionStore) Len() int {
	st.mu.RLock()
	defer st.mu.RUnlock()
	return len(st.sessions)
}
