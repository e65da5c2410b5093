package flow

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/BTreeMap/Lumi/internal/models"
	"github.com/BTreeMap/Lumi/internal/util"
)

// followUpCooldown suppresses a second check-in sent within the same minute.
const followUpCooldown = 60 * time.Second

// SweepResult counts what one follow-up sweep did.
type SweepResult struct {
	Candidates int `json:"candidates"`
	Sent       int `json:"sent"`
	Skipped    int `json:"skipped"`
	Failed     int `json:"failed"`
}

// FollowUpSweep sends the daily check-in to every session whose follow-up time
// matches the current minute.
type FollowUpSweep struct {
	deps  Dependencies
	clock func() time.Time
	locks *SenderLocks
	loc   *time.Location
}

// NewFollowUpSweep creates a sweep. Sessions, History, Gamifier and Messenger are required.
func NewFollowUpSweep(deps Dependencies, opts ...Option) (*FollowUpSweep, error) {
	if deps.Sessions == nil {
		return nil, errors.New("flow: session store is required")
	}
	if deps.History == nil {
		return nil, errors.New("flow: history store is required")
	}
	if deps.Gamifier == nil {
		return nil, errors.New("flow: gamifier is required")
	}
	if deps.Messenger == nil {
		return nil, errors.New("flow: messenger is required")
	}
	cfg := buildOpts(opts)
	return &FollowUpSweep{deps: deps, clock: cfg.Clock, locks: cfg.Locks, loc: cfg.Location}, nil
}

// Run performs one sweep. A failure for one session is logged and counted
// without stopping the others.
func (s *FollowUpSweep) Run(ctx context.Context) (SweepResult, error) {
	var result SweepResult
	now := s.clock()
	hhmm := now.In(s.loc).Format("15:04")

	candidates, err := s.deps.Sessions.ListFollowUpDue(ctx, hhmm)
	if err != nil {
		return result, fmt.Errorf("list follow-up candidates: %w", err)
	}
	result.Candidates = len(candidates)
	slog.Debug("FollowUpSweep.Run: candidates listed", "time", hhmm, "count", len(candidates))

	for _, c := range candidates {
		if err := ctx.Err(); err != nil {
			return result, err
		}
		sent, err := s.followUp(ctx, c.SenderID, hhmm, now)
		switch {
		case err != nil:
			result.Failed++
			slog.Error("FollowUpSweep.Run: follow-up failed", "senderID", c.SenderID, "error", err)
		case sent:
			result.Sent++
		default:
			result.Skipped++
		}
	}
	slog.Info("FollowUpSweep.Run: sweep complete", "time", hhmm, "sent", result.Sent, "skipped", result.Skipped, "failed", result.Failed)
	return result, nil
}

func (s *FollowUpSweep) followUp(ctx context.Context, senderID, hhmm string, now time.Time) (bool, error) {
	unlock := s.locks.Lock(senderID)
	defer unlock()

	// Re-read under the lock; the candidate list may be stale.
	sess, err := s.deps.Sessions.GetSession(ctx, senderID)
	if err != nil {
		return false, fmt.Errorf("load session: %w", err)
	}
	if sess == nil || !sess.WantsSupport || sess.FollowUpTime != hhmm {
		return false, nil
	}
	if sess.LastFollowUpAt != nil && now.Sub(*sess.LastFollowUpAt) < followUpCooldown {
		return false, nil
	}

	text := FollowUpMessage(sess)
	if err := s.deps.Messenger.SendMessage(ctx, senderID, text); err != nil {
		return false, fmt.Errorf("send follow-up: %w", err)
	}

	sentAt := now
	sess.LastFollowUpAt = &sentAt
	sess.UpdatedAt = now
	if err := s.deps.Gamifier.AddPoints(ctx, sess, followUpPoints); err != nil {
		slog.Warn("FollowUpSweep.followUp: failed to persist follow-up", "senderID", senderID, "error", err)
	}
	entry := models.HistoryEntry{
		ID:        util.GenerateHistoryID(),
		SenderID:  senderID,
		Message:   followUpHistoryMessage,
		Response:  text,
		CreatedAt: now,
	}
	if err := s.deps.History.AppendMessage(ctx, entry); err != nil {
		slog.Warn("FollowUpSweep.followUp: failed to record history", "senderID", senderID, "error", err)
	}
	slog.Info("FollowUpSweep.followUp: follow-up sent", "senderID", senderID)
	return true, nil
}
