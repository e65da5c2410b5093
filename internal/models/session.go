package models

import (
	"regexp"
	"slices"
	"time"
)

// SessionMode is the modal state of a conversation. Exactly one mode is active.
type SessionMode string

const (
	// ModeGeneral is the default, non-modal state.
	ModeGeneral SessionMode = "general"
	// ModeAwaitingFollowUpTime waits for an HH:mm reminder time.
	ModeAwaitingFollowUpTime SessionMode = "awaiting_followup_time"
	// ModeChoosingResource waits for foto / video / música.
	ModeChoosingResource SessionMode = "choosing_resource"
	// ModeChoosingStressOption waits for one of the five stress-support options.
	ModeChoosingStressOption SessionMode = "choosing_stress_option"
)

// IsValid reports whether m is one of the known session modes.
func (m SessionMode) IsValid() bool {
	switch m {
	case ModeGeneral, ModeAwaitingFollowUpTime, ModeChoosingResource, ModeChoosingStressOption:
		return true
	}
	return false
}

// Feedback tokens accepted from the user.
const (
	FeedbackPositive = "👍"
	FeedbackNegative = "👎"
)

// ResourceType identifies a kind of calming resource.
type ResourceType string

const (
	ResourcePhoto ResourceType = "foto"
	ResourceVideo ResourceType = "video"
	ResourceMusic ResourceType = "musica"
)

// ResourceUse records a resource delivered to the user.
type ResourceUse struct {
	Type  ResourceType `json:"type"`
	Query string       `json:"query"`
	Date  time.Time    `json:"date"`
}

var followUpTimeRegex = regexp.MustCompile(`^([01]\d|2[0-3]):([0-5]\d)$`)

// IsValidFollowUpTime reports whether s is a zero-padded HH:mm time.
func IsValidFollowUpTime(s string) bool {
	return followUpTimeRegex.MatchString(s)
}

// Session is the per-sender conversation record.
type Session struct {
	SenderID string `json:"senderId"`
	UserName string `json:"userName"`

	EmotionalScale        *int       `json:"emotionalScale,omitempty"`
	PositiveEmotionStreak int        `json:"positiveEmotionStreak"`
	LastPositiveEmotionAt *time.Time `json:"lastPositiveEmotionAt,omitempty"`
	WeeklyAverage         *float64   `json:"weeklyAverage,omitempty"`

	InteractionStreak    int           `json:"interactionStreak"`
	LastInteractionAt    *time.Time    `json:"lastInteractionAt,omitempty"`
	Points               int           `json:"points"`
	UnlockedAchievements []string      `json:"unlockedAchievements"`
	ResourcesUsed        []ResourceUse `json:"resourcesUsed"`

	Mode                SessionMode `json:"mode"`
	RecentlyOfferedHelp bool        `json:"recentlyOfferedHelp"`

	FollowUpTime   string     `json:"followUpTime,omitempty"`
	LastFollowUpAt *time.Time `json:"lastFollowUpAt,omitempty"`

	LastFeedback string `json:"lastFeedback,omitempty"`
	WantsSupport bool   `json:"wantsSupport"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// NewSession returns a session with first-contact defaults.
func NewSession(senderID string, now time.Time) *Session {
	return &Session{
		SenderID:             senderID,
		Mode:                 ModeGeneral,
		WantsSupport:         true,
		UnlockedAchievements: []string{},
		ResourcesUsed:        []ResourceUse{},
		CreatedAt:            now,
		UpdatedAt:            now,
	}
}

// Validate checks the invariants a persisted session must hold.
func (s *Session) Validate() error {
	if s.SenderID == "" {
		return ErrEmptySenderID
	}
	if !s.Mode.IsValid() {
		return ErrInvalidMode
	}
	if s.FollowUpTime != "" && !IsValidFollowUpTime(s.FollowUpTime) {
		return ErrInvalidFollowTime
	}
	return nil
}

// HasAchievement reports whether the achievement id is already unlocked.
func (s *Session) HasAchievement(id string) bool {
	return slices.Contains(s.UnlockedAchievements, id)
}

// Clone returns a deep copy of the session.
func (s *Session) Clone() *Session {
	if s == nil {
		return nil
	}
	c := *s
	c.EmotionalScale = clonePtr(s.EmotionalScale)
	c.LastPositiveEmotionAt = clonePtr(s.LastPositiveEmotionAt)
	c.WeeklyAverage = clonePtr(s.WeeklyAverage)
	c.LastInteractionAt = clonePtr(s.LastInteractionAt)
	c.LastFollowUpAt = clonePtr(s.LastFollowUpAt)
	c.UnlockedAchievements = slices.Clone(s.UnlockedAchievements)
	c.ResourcesUsed = slices.Clone(s.ResourcesUsed)
	return &c
}

func clonePtr[T any](p *T) *T {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}
