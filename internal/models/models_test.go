package models

import (
	"errors"
	"strings"
	"testing"
	"time"
)

func TestChatbotRequestValidate(t *testing.T) {
	tests := []struct {
		name string
		req  ChatbotRequest
		want error
	}{
		{"valid", ChatbotRequest{Message: "hola", SenderID: "593991234567"}, nil},
		{"missing sender", ChatbotRequest{Message: "hola"}, ErrEmptySenderID},
		{"blank message", ChatbotRequest{Message: "   ", SenderID: "1"}, ErrEmptyMessage},
		{"sender too long", ChatbotRequest{Message: "hola", SenderID: strings.Repeat("1", MaxSenderIDLength+1)}, ErrSenderIDTooLong},
		{"message too long", ChatbotRequest{Message: strings.Repeat("a", MaxMessageLength+1), SenderID: "1"}, ErrMessageTooLong},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := tt.req.Validate(); !errors.Is(err, tt.want) {
				t.Errorf("Validate() = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestNewSessionDefaults(t *testing.T) {
	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	s := NewSession("abc", now)
	if s.Mode != ModeGeneral {
		t.Errorf("expected mode %q, got %q", ModeGeneral, s.Mode)
	}
	if !s.WantsSupport {
		t.Error("expected wantsSupport to default to true")
	}
	if s.Points != 0 || s.InteractionStreak != 0 || s.PositiveEmotionStreak != 0 {
		t.Errorf("expected zeroed counters, got %+v", s)
	}
	if !s.CreatedAt.Equal(now) || !s.UpdatedAt.Equal(now) {
		t.Error("expected timestamps to be set to now")
	}
	if err := s.Validate(); err != nil {
		t.Errorf("default session should be valid, got %v", err)
	}
}

func TestSessionValidate(t *testing.T) {
	s := NewSession("abc", time.Now())
	s.Mode = "weird"
	if err := s.Validate(); !errors.Is(err, ErrInvalidMode) {
		t.Errorf("expected ErrInvalidMode, got %v", err)
	}
	s.Mode = ModeGeneral
	s.FollowUpTime = "9:30"
	if err := s.Validate(); !errors.Is(err, ErrInvalidFollowTime) {
		t.Errorf("expected ErrInvalidFollowTime, got %v", err)
	}
	s.FollowUpTime = "09:30"
	if err := s.Validate(); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestSessionCloneIsDeep(t *testing.T) {
	scale := 4
	s := NewSession("abc", time.Now())
	s.EmotionalScale = &scale
	s.UnlockedAchievements = append(s.UnlockedAchievements, "100_points")
	s.ResourcesUsed = append(s.ResourcesUsed, ResourceUse{Type: ResourceVideo, Query: "meditación guiada"})

	c := s.Clone()
	*c.EmotionalScale = 9
	c.UnlockedAchievements[0] = "changed"
	c.ResourcesUsed[0].Query = "changed"

	if *s.EmotionalScale != 4 {
		t.Error("clone shares emotionalScale pointer")
	}
	if s.UnlockedAchievements[0] != "100_points" {
		t.Error("clone shares achievements slice")
	}
	if s.ResourcesUsed[0].Query != "meditación guiada" {
		t.Error("clone shares resources slice")
	}
	if !s.HasAchievement("100_points") || s.HasAchievement("7d_positive") {
		t.Error("HasAchievement returned wrong result")
	}
}

func TestResponsePatternValidate(t *testing.T) {
	p := ResponsePattern{Patterns: []string{" "}, Responses: []string{"hola"}}
	if err := p.Validate(); !errors.Is(err, ErrEmptyPatterns) {
		t.Errorf("expected ErrEmptyPatterns, got %v", err)
	}
	p.Patterns = []string{"gracias"}
	p.Responses = nil
	if err := p.Validate(); !errors.Is(err, ErrEmptyResponses) {
		t.Errorf("expected ErrEmptyResponses, got %v", err)
	}
	p.Responses = []string{"¡De nada! 😊"}
	if err := p.Validate(); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestAPIResponseHelpers(t *testing.T) {
	if r := Success(map[string]int{"a": 1}); r.Status != string(APIStatusOK) || r.Result == nil {
		t.Errorf("unexpected success response: %+v", r)
	}
	if r := Error("boom"); r.Status != string(APIStatusError) || r.Message != "boom" {
		t.Errorf("unexpected error response: %+v", r)
	}
	if r := RecordedWithMessage("saved"); r.Status != string(APIStatusRecorded) || r.Message != "saved" {
		t.Errorf("unexpected recorded response: %+v", r)
	}
}
