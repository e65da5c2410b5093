package models

import (
	"strings"
	"time"
)

// Reply is the single outgoing response produced for an inbound message.
type Reply struct {
	Response       string    `json:"response"`
	EmotionalScale *int      `json:"emotionalScale,omitempty"`
	UserName       string    `json:"userName,omitempty"`
	Timestamp      time.Time `json:"timestamp"`
}

// ResponsePattern maps trigger phrases (and an optional intent) to candidate replies.
type ResponsePattern struct {
	ID        string    `json:"id"`
	Patterns  []string  `json:"patterns"`
	Intent    string    `json:"intent,omitempty"`
	Responses []string  `json:"responses"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Validate checks that the pattern has at least one trigger and one reply.
func (p *ResponsePattern) Validate() error {
	if !hasNonBlank(p.Patterns) {
		return ErrEmptyPatterns
	}
	if !hasNonBlank(p.Responses) {
		return ErrEmptyResponses
	}
	return nil
}

func hasNonBlank(values []string) bool {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return true
		}
	}
	return false
}

// HistoryEntry is one processed exchange between a sender and the bot.
type HistoryEntry struct {
	ID             string    `json:"id"`
	SenderID       string    `json:"senderId"`
	Message        string    `json:"message"`
	Response       string    `json:"response"`
	EmotionalScale *int      `json:"emotionalScale,omitempty"`
	CreatedAt      time.Time `json:"createdAt"`
}

// ScaleRecord is a single self-reported 1-10 mood value.
type ScaleRecord struct {
	SenderID   string    `json:"senderId"`
	Scale      int       `json:"scale"`
	RecordedAt time.Time `json:"recordedAt"`
}
