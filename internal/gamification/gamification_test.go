package gamification

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/BTreeMap/Lumi/internal/models"
	"github.com/BTreeMap/Lumi/internal/store"
)

var fixedNow = time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)

func newTestService(t *testing.T) (*Service, *store.InMemoryStore, *models.Session) {
	t.Helper()
	st := store.NewInMemoryStore()
	sess := models.NewSession("5550001", fixedNow)
	require.NoError(t, st.CreateSession(context.Background(), sess))
	return NewService(st, WithClock(func() time.Time { return fixedNow })), st, sess
}

func TestAddPointsPersists(t *testing.T) {
	svc, st, sess := newTestService(t)
	ctx := context.Background()

	require.NoError(t, svc.AddPoints(ctx, sess, 3))
	require.NoError(t, svc.AddPoints(ctx, sess, 2))
	assert.Equal(t, 5, sess.Points)

	stored, err := st.GetSession(ctx, sess.SenderID)
	require.NoError(t, err)
	assert.Equal(t, 5, stored.Points)
}

func TestAddPointsRejectsNegative(t *testing.T) {
	svc, _, sess := newTestService(t)
	err := svc.AddPoints(context.Background(), sess, -1)
	assert.Error(t, err)
	assert.Equal(t, 0, sess.Points)
}

func TestCheckAchievements(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*models.Session)
		want   []string
	}{
		{
			name:   "nothing unlocked",
			mutate: func(*models.Session) {},
			want:   nil,
		},
		{
			name:   "positive streak",
			mutate: func(s *models.Session) { s.PositiveEmotionStreak = 7 },
			want:   []string{"Racha Positiva 🏅"},
		},
		{
			name:   "points",
			mutate: func(s *models.Session) { s.Points = 100 },
			want:   []string{"Centenaria ✨"},
		},
		{
			name: "meditation videos",
			mutate: func(s *models.Session) {
				for i := 0; i < 5; i++ {
					s.ResourcesUsed = append(s.ResourcesUsed, models.ResourceUse{Type: models.ResourceVideo, Query: "meditación guiada"})
				}
			},
			want: []string{"Maestro Zen 🧘"},
		},
		{
			name: "music videos do not count",
			mutate: func(s *models.Session) {
				for i := 0; i < 5; i++ {
					s.ResourcesUsed = append(s.ResourcesUsed, models.ResourceUse{Type: models.ResourceMusic, Query: "música relajante"})
				}
			},
			want: nil,
		},
		{
			name: "several at once",
			mutate: func(s *models.Session) {
				s.PositiveEmotionStreak = 9
				s.Points = 150
			},
			want: []string{"Racha Positiva 🏅", "Centenaria ✨"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, _, sess := newTestService(t)
			tt.mutate(sess)
			got, err := svc.CheckAchievements(context.Background(), sess)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestCheckAchievementsUnlocksOnce(t *testing.T) {
	svc, st, sess := newTestService(t)
	ctx := context.Background()
	sess.Points = 120

	first, err := svc.CheckAchievements(ctx, sess)
	require.NoError(t, err)
	assert.Equal(t, []string{"Centenaria ✨"}, first)

	stored, err := st.GetSession(ctx, sess.SenderID)
	require.NoError(t, err)
	assert.Equal(t, []string{"100_points"}, stored.UnlockedAchievements)

	second, err := svc.CheckAchievements(ctx, stored)
	require.NoError(t, err)
	assert.Empty(t, second)
}

type failingSessions struct {
	store.SessionStore
}

func (failingSessions) UpdateSession(context.Context, *models.Session) error {
	return errors.New("disk full")
}

func TestCheckAchievementsPersistError(t *testing.T) {
	svc := NewService(failingSessions{})
	sess := models.NewSession("5550002", fixedNow)
	sess.Points = 100

	_, err := svc.CheckAchievements(context.Background(), sess)
	assert.ErrorContains(t, err, "disk full")
}
