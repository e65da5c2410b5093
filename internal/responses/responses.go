// Package responses manages the locally configured reply patterns and picks a
// reply for an inbound message.
package responses

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"strings"
	"time"

	"github.com/BTreeMap/Lumi/internal/models"
	"github.com/BTreeMap/Lumi/internal/store"
	"github.com/BTreeMap/Lumi/internal/util"
)

// Service looks up and maintains response patterns.
type Service struct {
	store store.PatternStore
	pick  func(n int) int
	clock func() time.Time
}

// Option configures a Service.
type Option func(*Service)

// WithPicker overrides the random index source used to choose among replies.
func WithPicker(pick func(n int) int) Option {
	return func(s *Service) {
		s.pick = pick
	}
}

// WithClock overrides the time source for CreatedAt and UpdatedAt stamps.
func WithClock(clock func() time.Time) Option {
	return func(s *Service) {
		s.clock = clock
	}
}

// NewService creates a Service over the given pattern store.
func NewService(st store.PatternStore, opts ...Option) *Service {
	s := &Service{store: st, pick: rand.IntN, clock: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// PatternUpdate is a partial update. Nil fields are left unchanged.
type PatternUpdate struct {
	Patterns  []string `json:"patterns,omitempty"`
	Intent    *string  `json:"intent,omitempty"`
	Responses []string `json:"responses,omitempty"`
}

// BestResponse returns a reply for the message. A pattern tagged with intent
// wins; otherwise the first pattern whose trigger is a case-insensitive
// substring of the message is used. Among a pattern's replies one is chosen
// uniformly at random.
func (s *Service) BestResponse(ctx context.Context, intent, message string) (string, bool, error) {
	if intent != "" {
		tagged, err := s.store.FindPatternsByIntent(ctx, intent)
		if err != nil {
			return "", false, fmt.Errorf("find patterns by intent: %w", err)
		}
		for _, p := range tagged {
			if reply, ok := s.choose(p.Responses); ok {
				return reply, true, nil
			}
		}
	}

	all, err := s.store.ListPatterns(ctx)
	if err != nil {
		return "", false, fmt.Errorf("list patterns: %w", err)
	}
	lowered := strings.ToLower(message)
	for _, p := range all {
		if !matchesAny(lowered, p.Patterns) {
			continue
		}
		if reply, ok := s.choose(p.Responses); ok {
			slog.Debug("Responses.BestResponse: pattern matched", "patternID", p.ID)
			return reply, true, nil
		}
	}
	return "", false, nil
}

func matchesAny(lowered string, triggers []string) bool {
	for _, t := range triggers {
		t = strings.ToLower(strings.TrimSpace(t))
		if t != "" && strings.Contains(lowered, t) {
			return true
		}
	}
	return false
}

func (s *Service) choose(candidates []string) (string, bool) {
	var usable []string
	for _, c := range candidates {
		if strings.TrimSpace(c) != "" {
			usable = append(usable, c)
		}
	}
	if len(usable) == 0 {
		return "", false
	}
	return usable[s.pick(len(usable))], true
}

// List returns every stored pattern.
func (s *Service) List(ctx context.Context) ([]models.ResponsePattern, error) {
	return s.store.ListPatterns(ctx)
}

// Create validates and stores a new pattern with a generated ID.
func (s *Service) Create(ctx context.Context, p models.ResponsePattern) (*models.ResponsePattern, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	now := s.clock()
	p.ID = util.GeneratePatternID()
	p.CreatedAt = now
	p.UpdatedAt = now
	if err := s.store.SavePattern(ctx, p); err != nil {
		return nil, fmt.Errorf("save pattern: %w", err)
	}
	slog.Info("Responses.Create: pattern created", "patternID", p.ID, "intent", p.Intent)
	return &p, nil
}

// Import validates every pattern before storing any of them and returns the number stored.
func (s *Service) Import(ctx context.Context, patterns []models.ResponsePattern) (int, error) {
	for i := range patterns {
		if err := patterns[i].Validate(); err != nil {
			return 0, fmt.Errorf("pattern %d: %w", i, err)
		}
	}
	imported := 0
	for _, p := range patterns {
		if _, err := s.Create(ctx, p); err != nil {
			return imported, err
		}
		imported++
	}
	return imported, nil
}

// Update applies a partial update to the pattern with the given ID.
// It returns store.ErrNotFound when the pattern does not exist.
func (s *Service) Update(ctx context.Context, id string, upd PatternUpdate) (*models.ResponsePattern, error) {
	p, err := s.store.GetPattern(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get pattern: %w", err)
	}
	if p == nil {
		return nil, store.ErrNotFound
	}
	if upd.Patterns != nil {
		p.Patterns = upd.Patterns
	}
	if upd.Intent != nil {
		p.Intent = *upd.Intent
	}
	if upd.Responses != nil {
		p.Responses = upd.Responses
	}
	if err := p.Validate(); err != nil {
		return nil, err
	}
	p.UpdatedAt = s.clock()
	if err := s.store.SavePattern(ctx, *p); err != nil {
		return nil, fmt.Errorf("save pattern: %w", err)
	}
	return p, nil
}

// Delete removes a pattern. It returns store.ErrNotFound when the pattern does not exist.
func (s *Service) Delete(ctx context.Context, id string) error {
	return s.store.DeletePattern(ctx, id)
}
