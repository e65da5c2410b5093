package store

import (
	"context"
	"fmt"
	"slices"
	"sort"
	"sync"
	"time"

	"github.com/BTreeMap/Lumi/internal/models"
)

// InMemoryStore keeps everything in process memory. Values are copied on the
// way in and out so callers never share state with the store.
type InMemoryStore struct {
	mu       sync.RWMutex
	sessions map[string]*models.Session
	history  []models.HistoryEntry
	scales   []models.ScaleRecord
	patterns map[string]models.ResponsePattern
}

// NewInMemoryStore creates an empty in-memory store.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		sessions: make(map[string]*models.Session),
		patterns: make(map[string]models.ResponsePattern),
	}
}

func (s *InMemoryStore) GetSession(_ context.Context, senderID string) (*models.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sess, ok := s.sessions[senderID]
	if !ok {
		return nil, nil
	}
	return sess.Clone(), nil
}

func (s *InMemoryStore) CreateSession(_ context.Context, session *models.Session) error {
	if err := session.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.sessions[session.SenderID]; exists {
		return fmt.Errorf("session for %s already exists", session.SenderID)
	}
	s.sessions[session.SenderID] = session.Clone()
	return nil
}

func (s *InMemoryStore) UpdateSession(_ context.Context, session *models.Session) error {
	if err := session.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[session.SenderID] = session.Clone()
	return nil
}

func (s *InMemoryStore) SetWantsSupport(_ context.Context, senderID string, wants bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[senderID]
	if !ok {
		return ErrNotFound
	}
	sess.WantsSupport = wants
	sess.UpdatedAt = time.Now()
	return nil
}

func (s *InMemoryStore) ListFollowUpDue(_ context.Context, hhmm string) ([]*models.Session, error) {
	return s.filterSessions(func(sess *models.Session) bool {
		return sess.WantsSupport && sess.FollowUpTime == hhmm
	}), nil
}

func (s *InMemoryStore) ListLowScaleSessions(_ context.Context, threshold int) ([]*models.Session, error) {
	return s.filterSessions(func(sess *models.Session) bool {
		return sess.EmotionalScale != nil && *sess.EmotionalScale < threshold
	}), nil
}

func (s *InMemoryStore) filterSessions(keep func(*models.Session) bool) []*models.Session {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*models.Session
	for _, sess := range s.sessions {
		if keep(sess) {
			out = append(out, sess.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].SenderID < out[j].SenderID })
	return out
}

func (s *InMemoryStore) AppendMessage(_ context.Context, entry models.HistoryEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.history = append(s.history, entry)
	return nil
}

func (s *InMemoryStore) ListMessages(_ context.Context, senderID string, limit int) ([]models.HistoryEntry, error) {
	if limit <= 0 {
		limit = DefaultHistoryLimit
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []models.HistoryEntry
	for i := len(s.history) - 1; i >= 0; i-- {
		if s.history[i].SenderID != senderID {
			continue
		}
		out = append(out, s.history[i])
		if len(out) == limit {
			break
		}
	}
	return out, nil
}

func (s *InMemoryStore) SaveScale(_ context.Context, record models.ScaleRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.scales = append(s.scales, record)
	return nil
}

func (s *InMemoryStore) ListScalesSince(_ context.Context, senderID string, since time.Time) ([]models.ScaleRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []models.ScaleRecord
	for _, r := range s.scales {
		if r.SenderID == senderID && !r.RecordedAt.Before(since) {
			out = append(out, r)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].RecordedAt.Before(out[j].RecordedAt) })
	return out, nil
}

func (s *InMemoryStore) ListPatterns(_ context.Context) ([]models.ResponsePattern, error) {
	return s.filterPatterns(func(models.ResponsePattern) bool { return true }), nil
}

func (s *InMemoryStore) FindPatternsByIntent(_ context.Context, intent string) ([]models.ResponsePattern, error) {
	return s.filterPatterns(func(p models.ResponsePattern) bool { return p.Intent == intent }), nil
}

func (s *InMemoryStore) filterPatterns(keep func(models.ResponsePattern) bool) []models.ResponsePattern {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []models.ResponsePattern
	for _, p := range s.patterns {
		if keep(p) {
			out = append(out, clonePattern(p))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out
}

func (s *InMemoryStore) GetPattern(_ context.Context, id string) (*models.ResponsePattern, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.patterns[id]
	if !ok {
		return nil, nil
	}
	c := clonePattern(p)
	return &c, nil
}

func (s *InMemoryStore) SavePattern(_ context.Context, pattern models.ResponsePattern) error {
	if pattern.ID == "" {
		return fmt.Errorf("pattern id cannot be empty")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.patterns[pattern.ID] = clonePattern(pattern)
	return nil
}

func (s *InMemoryStore) DeletePattern(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.patterns[id]; !ok {
		return ErrNotFound
	}
	delete(s.patterns, id)
	return nil
}

// Close is a no-op for the in-memory store.
func (s *InMemoryStore) Close() error {
	return nil
}

func clonePattern(p models.ResponsePattern) models.ResponsePattern {
	p.Patterns = slices.Clone(p.Patterns)
	p.Responses = slices.Clone(p.Responses)
	return p
}
