package store

import (
	"context"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/vulbsti/loanmatchmaker/model"
)

// MemoryStore is an in-memory SessionStore, grounded on the teacher's
// map+RWMutex pattern (store/memory.go). Used by tests and as the
// zero-configuration dev backend.
type MemoryStore struct {
	mu       sync.RWMutex
	sessions map[string]*model.Session
	params   map[string]model.LoanParameters
	tracking map[string]model.ParameterTracking
	history  map[string][]model.ChatMessage
	matches  map[string][]model.LenderMatch
	seq      map[string]int

	locksMu sync.Mutex
	locks   map[string]*sync.Mutex
}

// NewMemoryStore creates a new in-memory session store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		sessions: make(map[string]*model.Session),
		params:   make(map[string]model.LoanParameters),
		tracking: make(map[string]model.ParameterTracking),
		history:  make(map[string][]model.ChatMessage),
		matches:  make(map[string][]model.LenderMatch),
		seq:      make(map[string]int),
		locks:    make(map[string]*sync.Mutex),
	}
}

func (s *MemoryStore) sessionLock(sessionID string) *sync.Mutex {
	s.locksMu.Lock()
	defer s.locksMu.Unlock()
	l, ok := s.locks[sessionID]
	if !ok {
		l = &sync.Mutex{}
		s.locks[sessionID] = l
	}
	return l
}

// WithSessionLock serialises mutations for one session (spec §5).
func (s *MemoryStore) WithSessionLock(sessionID string, fn func() error) error {
	l := s.sessionLock(sessionID)
	l.Lock()
	defer l.Unlock()
	return fn()
}

func (s *MemoryStore) Open(fp *model.Fingerprint) (*model.Session, error) {
	sess := model.NewSession(fp)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[sess.SessionID] = sess
	s.params[sess.SessionID] = model.LoanParameters{}
	s.tracking[sess.SessionID] = model.ParameterTracking{}
	s.history[sess.SessionID] = nil
	return sess, nil
}

func (s *MemoryStore) Load(sessionID string) (*model.SessionSnapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sess, ok := s.sessions[sessionID]
	if !ok {
		return nil, model.NewNotFoundError("session not found: " + sessionID)
	}
	if sess.Status == model.SessionExpired || time.Now().After(sess.ExpiresAt) {
		return nil, model.NewExpiredError("session expired: " + sessionID)
	}

	hist := s.history[sessionID]
	histCopy := make([]model.ChatMessage, len(hist))
	copy(histCopy, hist)

	return &model.SessionSnapshot{
		Session:    sess,
		Parameters: s.params[sessionID],
		Tracking:   s.tracking[sessionID],
		History:    histCopy,
	}, nil
}

func (s *MemoryStore) AppendMessage(sessionID string, msg model.ChatMessage) (model.ChatMessage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.sessions[sessionID]; !ok {
		return model.ChatMessage{}, model.NewNotFoundError("session not found: " + sessionID)
	}

	s.seq[sessionID]++
	msg.Seq = s.seq[sessionID]
	msg.SessionID = sessionID
	msg.CreatedAt = time.Now()
	if msg.ID == "" {
		msg.ID = sessionID + "-m" + strconv.Itoa(msg.Seq)
	}

	s.history[sessionID] = append(s.history[sessionID], msg)
	return msg, nil
}

func (s *MemoryStore) Touch(sessionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[sessionID]
	if !ok {
		return model.NewNotFoundError("session not found: " + sessionID)
	}
	sess.UpdatedAt = time.Now()
	return nil
}

func (s *MemoryStore) Close(sessionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[sessionID]
	if !ok {
		return model.NewNotFoundError("session not found: " + sessionID)
	}
	sess.Status = model.SessionCompleted
	sess.UpdatedAt = time.Now()
	return nil
}

func (s *MemoryStore) SweepExpired() (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	swept := 0
	for _, sess := range s.sessions {
		if sess.Status == model.SessionActive && now.After(sess.ExpiresAt) {
			sess.Status = model.SessionExpired
			swept++
		}
	}
	return swept, nil
}

func (s *MemoryStore) GetParameters(sessionID string) (model.LoanParameters, model.ParameterTracking, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if _, ok := s.sessions[sessionID]; !ok {
		return model.LoanParameters{}, model.ParameterTracking{}, model.NewNotFoundError("session not found: " + sessionID)
	}
	return s.params[sessionID], s.tracking[sessionID], nil
}

func (s *MemoryStore) SaveParameters(sessionID string, params model.LoanParameters, tracking model.ParameterTracking) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.sessions[sessionID]; !ok {
		return model.NewNotFoundError("session not found: " + sessionID)
	}
	s.params[sessionID] = params
	s.tracking[sessionID] = tracking
	return nil
}

func (s *MemoryStore) ReplaceMatches(sessionID string, matches []model.LenderMatch) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.sessions[sessionID]; !ok {
		return model.NewNotFoundError("session not found: " + sessionID)
	}
	cp := make([]model.LenderMatch, len(matches))
	copy(cp, matches)
	s.matches[sessionID] = cp
	return nil
}

func (s *MemoryStore) GetMatches(sessionID string) ([]model.LenderMatch, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ms := s.matches[sessionID]
	out := make([]model.LenderMatch, len(ms))
	copy(out, ms)
	sort.SliceStable(out, func(i, j int) bool { return out[i].FinalScore > out[j].FinalScore })
	return out, nil
}

func (s *MemoryStore) Shutdown() error { return nil }

// Ping always succeeds: there is no backing connection to lose.
func (s *MemoryStore) Ping(ctx context.Context) error { return nil }

var _ SessionStore = (*MemoryStore)(nil)
