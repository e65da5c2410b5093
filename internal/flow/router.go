package flow

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/BTreeMap/Lumi/internal/models"
	"github.com/BTreeMap/Lumi/internal/util"
)

// Router selects the reply for each inbound message and applies its side effects.
type Router struct {
	deps  Dependencies
	clock func() time.Time
	pick  func(n int) int
	locks *SenderLocks
	loc   *time.Location
}

// NewRouter creates a Router. Sessions, History and Gamifier are required.
func NewRouter(deps Dependencies, opts ...Option) (*Router, error) {
	if deps.Sessions == nil {
		return nil, errors.New("flow: session store is required")
	}
	if deps.History == nil {
		return nil, errors.New("flow: history store is required")
	}
	if deps.Gamifier == nil {
		return nil, errors.New("flow: gamifier is required")
	}
	cfg := buildOpts(opts)
	return &Router{
		deps:  deps,
		clock: cfg.Clock,
		pick:  cfg.Picker,
		locks: cfg.Locks,
		loc:   cfg.Location,
	}, nil
}

// ProcessMessage returns the single reply for raw text from senderID. It never
// fails: internal errors and panics become the generic error reply. Messages
// from the same sender are processed one at a time.
func (r *Router) ProcessMessage(ctx context.Context, raw, senderID string) (reply models.Reply) {
	defer func() {
		if p := recover(); p != nil {
			slog.Error("Router.ProcessMessage: recovered from panic", "senderID", senderID, "panic", p)
			reply = r.reply(genericErrorMessage, "", nil)
		}
	}()

	unlock := r.locks.Lock(senderID)
	defer unlock()

	out, err := r.route(ctx, raw, senderID)
	if err != nil {
		slog.Error("Router.ProcessMessage: failed to process message", "senderID", senderID, "error", err)
		return r.reply(genericErrorMessage, "", nil)
	}
	return out
}

// Converse processes raw and appends the exchange to the sender's history.
// The reply is always usable; the error only reports a failed history write.
func (r *Router) Converse(ctx context.Context, raw, senderID string) (models.Reply, error) {
	reply := r.ProcessMessage(ctx, raw, senderID)
	entry := models.HistoryEntry{
		ID:             util.GenerateHistoryID(),
		SenderID:       senderID,
		Message:        raw,
		Response:       reply.Response,
		EmotionalScale: reply.EmotionalScale,
		CreatedAt:      reply.Timestamp,
	}
	if err := r.deps.History.AppendMessage(ctx, entry); err != nil {
		return reply, fmt.Errorf("append history: %w", err)
	}
	return reply, nil
}

func (r *Router) route(ctx context.Context, raw, senderID string) (models.Reply, error) {
	normalized := Normalize(raw)

	if IsCrisis(normalized) {
		slog.Warn("Router.route: crisis keywords detected", "senderID", senderID)
		return r.reply(crisisMessage, r.userName(ctx, senderID), nil), nil
	}

	sess, err := r.deps.Sessions.GetSession(ctx, senderID)
	if err != nil {
		return models.Reply{}, fmt.Errorf("load session: %w", err)
	}
	if sess == nil {
		return r.onboard(ctx, senderID)
	}

	switch normalized {
	case models.FeedbackPositive, models.FeedbackNegative:
		return r.handleFeedback(ctx, sess, normalized)
	case cancelToken:
		return r.handleCancel(ctx, sess)
	}

	if err := r.recordInteraction(ctx, sess); err != nil {
		return models.Reply{}, err
	}

	if strings.HasPrefix(normalized, commandPrefix) {
		return r.handleCommand(ctx, sess, normalized)
	}

	if text, ok := r.matchLocal(ctx, sess, raw); ok {
		return r.reply(text, sess.UserName, nil), nil
	}

	if out, handled, err := r.handleState(ctx, sess, normalized, raw); err != nil || handled {
		return out, err
	}

	if scale, ok := ParseScale(raw); ok {
		return r.handleScale(ctx, sess, scale)
	}

	return r.fallback(ctx, sess, raw), nil
}

// userName looks up the sender's name for the crisis reply. A failed lookup
// yields "" so the safety text is never held back by the store.
func (r *Router) userName(ctx context.Context, senderID string) string {
	sess, err := r.deps.Sessions.GetSession(ctx, senderID)
	if err != nil {
		slog.Error("Router.userName: failed to load session", "senderID", senderID, "error", err)
		return ""
	}
	if sess == nil {
		return ""
	}
	return sess.UserName
}

func (r *Router) onboard(ctx context.Context, senderID string) (models.Reply, error) {
	sess := models.NewSession(senderID, r.clock())
	if err := r.deps.Sessions.CreateSession(ctx, sess); err != nil {
		return models.Reply{}, fmt.Errorf("create session: %w", err)
	}
	slog.Info("Router.onboard: new session created", "senderID", senderID)
	return r.reply(onboardingMessage, "", nil), nil
}

func (r *Router) handleFeedback(ctx context.Context, sess *models.Session, token string) (models.Reply, error) {
	sess.LastFeedback = token
	if err := r.save(ctx, sess); err != nil {
		return models.Reply{}, err
	}
	text := feedbackNegativeMessage
	if token == models.FeedbackPositive {
		text = feedbackPositiveMessage
	}
	return r.reply(text, sess.UserName, nil), nil
}

func (r *Router) handleCancel(ctx context.Context, sess *models.Session) (models.Reply, error) {
	text := cancelMessage
	if sess.Mode == models.ModeAwaitingFollowUpTime {
		text = followUpCancelledMessage
	}
	sess.Mode = models.ModeGeneral
	if err := r.save(ctx, sess); err != nil {
		return models.Reply{}, err
	}
	return r.reply(text, sess.UserName, nil), nil
}

// recordInteraction updates the interaction streak and awards the per-message
// points. The gamifier persists the session.
func (r *Router) recordInteraction(ctx context.Context, sess *models.Session) error {
	bonus := UpdateInteractionStreak(sess, r.clock(), r.loc)
	if err := r.deps.Gamifier.AddPoints(ctx, sess, interactionPoints+bonus); err != nil {
		return fmt.Errorf("record interaction: %w", err)
	}
	return nil
}

func (r *Router) matchLocal(ctx context.Context, sess *models.Session, raw string) (string, bool) {
	if r.deps.Matcher == nil {
		return "", false
	}
	text, ok, err := r.deps.Matcher.BestResponse(ctx, string(ResolveContext(sess)), raw)
	if err != nil {
		slog.Warn("Router.matchLocal: pattern lookup failed", "senderID", sess.SenderID, "error", err)
		return "", false
	}
	return text, ok
}

// handleState runs the modal handlers, then greeting, name registration and
// unsolicited stress detection. handled is false when none applies.
func (r *Router) handleState(ctx context.Context, sess *models.Session, normalized, raw string) (out models.Reply, handled bool, err error) {
	switch sess.Mode {
	case models.ModeAwaitingFollowUpTime:
		out, err = r.handleFollowUpTime(ctx, sess, raw)
		return out, true, err
	case models.ModeChoosingResource:
		rt, ok := ParseResourceChoice(normalized)
		if !ok {
			return r.reply(invalidResourceChoiceMessage, sess.UserName, nil), true, nil
		}
		out, err = r.handleResourceRequest(ctx, sess, rt)
		return out, true, err
	case models.ModeChoosingStressOption:
		out, err = r.handleStressOption(ctx, sess, normalized)
		return out, true, err
	case models.ModeGeneral:
	}

	if strings.Contains(normalized, greetingToken) {
		return r.reply(greetingMessage(sess), sess.UserName, nil), true, nil
	}
	if sess.UserName == "" {
		out, err = r.registerName(ctx, sess, raw)
		return out, true, err
	}
	if !sess.RecentlyOfferedHelp && IsStressRelated(normalized) {
		out, err = r.offerStressOptions(ctx, sess)
		return out, true, err
	}
	return models.Reply{}, false, nil
}

func (r *Router) registerName(ctx context.Context, sess *models.Session, raw string) (models.Reply, error) {
	name := strings.TrimSpace(raw)
	if name == "" {
		return r.reply(onboardingMessage, "", nil), nil
	}
	sess.UserName = name
	if err := r.save(ctx, sess); err != nil {
		return models.Reply{}, err
	}
	return r.reply(nameRegisteredMessage(name), name, nil), nil
}

func (r *Router) handleScale(ctx context.Context, sess *models.Session, scale int) (models.Reply, error) {
	now := r.clock()
	record := models.ScaleRecord{SenderID: sess.SenderID, Scale: scale, RecordedAt: now}
	if err := r.deps.History.SaveScale(ctx, record); err != nil {
		return models.Reply{}, fmt.Errorf("save scale: %w", err)
	}

	UpdatePositiveStreak(sess, scale, now, r.loc)
	sess.EmotionalScale = &scale

	text := scaleMessage(scale, sess.PositiveEmotionStreak)
	if scale < lowScale {
		sess.Mode = models.ModeChoosingStressOption
		text = stressSupportOffer(text)
	}
	if err := r.save(ctx, sess); err != nil {
		return models.Reply{}, err
	}
	return r.reply(text, sess.UserName, &scale), nil
}

// weeklyInsights summarizes the last seven days of ratings and records the
// average on the session. The caller persists the session.
func (r *Router) weeklyInsights(ctx context.Context, sess *models.Session) string {
	since := r.clock().Add(-7 * 24 * time.Hour)
	records, err := r.deps.History.ListScalesSince(ctx, sess.SenderID, since)
	if err != nil {
		slog.Warn("Router.weeklyInsights: failed to list scales", "senderID", sess.SenderID, "error", err)
		return ""
	}
	if len(records) == 0 {
		return ""
	}
	sum := 0
	for _, rec := range records {
		sum += rec.Scale
	}
	avg := float64(sum) / float64(len(records))
	previous := 0.0
	if sess.WeeklyAverage != nil {
		previous = *sess.WeeklyAverage
	}
	sess.WeeklyAverage = &avg
	return weeklyInsightMessage(avg, avg > previous)
}

func (r *Router) fallback(ctx context.Context, sess *models.Session, raw string) models.Reply {
	if r.deps.Generator == nil {
		return r.apology(sess)
	}
	text, err := r.deps.Generator.GenerateResponse(ctx, raw, BuildAIContext(sess))
	if err != nil {
		slog.Warn("Router.fallback: generation failed", "senderID", sess.SenderID, "error", err)
		return r.apology(sess)
	}
	if strings.TrimSpace(text) == "" {
		slog.Warn("Router.fallback: empty generation", "senderID", sess.SenderID)
		return r.apology(sess)
	}

	if err := r.deps.Gamifier.AddPoints(ctx, sess, aiResponsePoints); err != nil {
		slog.Warn("Router.fallback: failed to add points", "senderID", sess.SenderID, "error", err)
	}
	unlocked, err := r.deps.Gamifier.CheckAchievements(ctx, sess)
	if err != nil {
		slog.Warn("Router.fallback: failed to check achievements", "senderID", sess.SenderID, "error", err)
	}
	if len(unlocked) > 0 {
		text = achievementsMessage(text, unlocked)
	}
	return r.reply(text, sess.UserName, nil)
}

func (r *Router) apology(sess *models.Session) models.Reply {
	options := fallbackApologies(orDefault(sess.UserName, "amigo/a"))
	return r.reply(options[r.pick(len(options))], sess.UserName, nil)
}

func (r *Router) save(ctx context.Context, sess *models.Session) error {
	sess.UpdatedAt = r.clock()
	if err := r.deps.Sessions.UpdateSession(ctx, sess); err != nil {
		return fmt.Errorf("save session: %w", err)
	}
	return nil
}

func (r *Router) reply(text, userName string, scale *int) models.Reply {
	return models.Reply{
		Response:       text,
		EmotionalScale: scale,
		UserName:       userName,
		Timestamp:      r.clock(),
	}
}
