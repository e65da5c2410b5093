// Package gamification awards points and unlocks achievements for Lumi users.
package gamification

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/BTreeMap/Lumi/internal/models"
	"github.com/BTreeMap/Lumi/internal/store"
)

// Achievement is a milestone unlocked once per session.
type Achievement struct {
	ID       string
	Name     string
	Unlocked func(*models.Session) bool
}

// Achievement thresholds.
const (
	PositiveStreakGoal  = 7
	PointsGoal          = 100
	MeditationVideoGoal = 5
)

// Achievements is the fixed achievement table, checked in order.
var Achievements = []Achievement{
	{
		ID:   "7d_positive",
		Name: "Racha Positiva 🏅",
		Unlocked: func(s *models.Session) bool {
			return s.PositiveEmotionStreak >= PositiveStreakGoal
		},
	},
	{
		ID:   "100_points",
		Name: "Centenaria ✨",
		Unlocked: func(s *models.Session) bool {
			return s.Points >= PointsGoal
		},
	},
	{
		ID:   "meditation_master",
		Name: "Maestro Zen 🧘",
		Unlocked: func(s *models.Session) bool {
			return countMeditationVideos(s) >= MeditationVideoGoal
		},
	},
}

func countMeditationVideos(s *models.Session) int {
	n := 0
	for _, r := range s.ResourcesUsed {
		if r.Type == models.ResourceVideo && strings.Contains(r.Query, "meditación") {
			n++
		}
	}
	return n
}

// Service updates session points and achievements and persists the result.
type Service struct {
	sessions store.SessionStore
	clock    func() time.Time
}

// Option configures a Service.
type Option func(*Service)

// WithClock overrides the time source used for UpdatedAt stamps.
func WithClock(clock func() time.Time) Option {
	return func(s *Service) {
		s.clock = clock
	}
}

// NewService creates a Service backed by sessions.
func NewService(sessions store.SessionStore, opts ...Option) *Service {
	s := &Service{sessions: sessions, clock: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// AddPoints adds points to the session and persists the whole session.
func (s *Service) AddPoints(ctx context.Context, session *models.Session, points int) error {
	if points < 0 {
		return fmt.Errorf("points must not be negative: %d", points)
	}
	session.Points += points
	session.UpdatedAt = s.clock()
	if err := s.sessions.UpdateSession(ctx, session); err != nil {
		return fmt.Errorf("persist points: %w", err)
	}
	slog.Debug("Gamification.AddPoints: points added", "senderID", session.SenderID, "added", points, "total", session.Points)
	return nil
}

// CheckAchievements unlocks every achievement the session now qualifies for
// and returns their display names. The session is persisted only when
// something new is unlocked.
func (s *Service) CheckAchievements(ctx context.Context, session *models.Session) ([]string, error) {
	var names []string
	for _, a := range Achievements {
		if session.HasAchievement(a.ID) || !a.Unlocked(session) {
			continue
		}
		session.UnlockedAchievements = append(session.UnlockedAchievements, a.ID)
		names = append(names, a.Name)
	}
	if len(names) == 0 {
		return nil, nil
	}
	session.UpdatedAt = s.clock()
	if err := s.sessions.UpdateSession(ctx, session); err != nil {
		return nil, fmt.Errorf("persist achievements: %w", err)
	}
	slog.Info("Gamification.CheckAchievements: achievements unlocked", "senderID", session.SenderID, "achievements", names)
	return names, nil
}
