package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/BTreeMap/Lumi/internal/models"
)

// sqlStore implements Store over database/sql. Queries are written with '?'
// placeholders and rebound to '$n' for PostgreSQL.
type sqlStore struct {
	db       *sql.DB
	name     string
	postgres bool
}

// openDB opens and pings db, tunes the pool and applies the embedded schema.
func openDB(name, driver, dsn, migrations string, tune func(*sql.DB)) (*sql.DB, error) {
	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("%s: open: %w", name, err)
	}
	tune(db)
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("%s: ping: %w", name, err)
	}
	if _, err := db.Exec(migrations); err != nil {
		db.Close()
		return nil, fmt.Errorf("%s: migrate: %w", name, err)
	}
	slog.Debug(name+".openDB: schema ready", "driver", driver)
	return db, nil
}

const sessionColumns = `sender_id, user_name, emotional_scale, positive_emotion_streak, last_positive_emotion_at,
	weekly_average, interaction_streak, last_interaction_at, points, unlocked_achievements, resources_used,
	mode, recently_offered_help, follow_up_time, last_follow_up_at, last_feedback, wants_support,
	created_at, updated_at`

const sessionColumnCount = 19

// sessionUpsertAssignments lists every mutable column; sender_id and created_at never change.
const sessionUpsertAssignments = `user_name = excluded.user_name,
	emotional_scale = excluded.emotional_scale,
	positive_emotion_streak = excluded.positive_emotion_streak,
	last_positive_emotion_at = excluded.last_positive_emotion_at,
	weekly_average = excluded.weekly_average,
	interaction_streak = excluded.interaction_streak,
	last_interaction_at = excluded.last_interaction_at,
	points = excluded.points,
	unlocked_achievements = excluded.unlocked_achievements,
	resources_used = excluded.resources_used,
	mode = excluded.mode,
	recently_offered_help = excluded.recently_offered_help,
	follow_up_time = excluded.follow_up_time,
	last_follow_up_at = excluded.last_follow_up_at,
	last_feedback = excluded.last_feedback,
	wants_support = excluded.wants_support,
	updated_at = excluded.updated_at`

// rebind rewrites '?' placeholders to '$1..$n' when talking to PostgreSQL.
func (s *sqlStore) rebind(query string) string {
	if !s.postgres {
		return query
	}
	var b strings.Builder
	b.Grow(len(query) + 8)
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?, ", n), ", ")
}

type rowScanner interface {
	Scan(dest ...any) error
}

func sessionArgs(sess *models.Session) ([]any, error) {
	achievements := sess.UnlockedAchievements
	if achievements == nil {
		achievements = []string{}
	}
	achievementsJSON, err := json.Marshal(achievements)
	if err != nil {
		return nil, fmt.Errorf("failed to encode achievements: %w", err)
	}
	resources := sess.ResourcesUsed
	if resources == nil {
		resources = []models.ResourceUse{}
	}
	resourcesJSON, err := json.Marshal(resources)
	if err != nil {
		return nil, fmt.Errorf("failed to encode resources: %w", err)
	}
	return []any{
		sess.SenderID,
		sess.UserName,
		nullInt(sess.EmotionalScale),
		sess.PositiveEmotionStreak,
		nullTime(sess.LastPositiveEmotionAt),
		nullFloat(sess.WeeklyAverage),
		sess.InteractionStreak,
		nullTime(sess.LastInteractionAt),
		sess.Points,
		string(achievementsJSON),
		string(resourcesJSON),
		string(sess.Mode),
		sess.RecentlyOfferedHelp,
		sess.FollowUpTime,
		nullTime(sess.LastFollowUpAt),
		sess.LastFeedback,
		sess.WantsSupport,
		sess.CreatedAt.UTC(),
		sess.UpdatedAt.UTC(),
	}, nil
}

func scanSession(row rowScanner) (*models.Session, error) {
	var sess models.Session
	var scale sql.NullInt64
	var weekly sql.NullFloat64
	var lastPositive, lastInteraction, lastFollowUp sql.NullTime
	var achievementsJSON, resourcesJSON, mode string
	err := row.Scan(
		&sess.SenderID, &sess.UserName, &scale, &sess.PositiveEmotionStreak, &lastPositive,
		&weekly, &sess.InteractionStreak, &lastInteraction, &sess.Points, &achievementsJSON, &resourcesJSON,
		&mode, &sess.RecentlyOfferedHelp, &sess.FollowUpTime, &lastFollowUp, &sess.LastFeedback, &sess.WantsSupport,
		&sess.CreatedAt, &sess.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	sess.Mode = models.SessionMode(mode)
	if scale.Valid {
		v := int(scale.Int64)
		sess.EmotionalScale = &v
	}
	if weekly.Valid {
		v := weekly.Float64
		sess.WeeklyAverage = &v
	}
	sess.LastPositiveEmotionAt = timePtr(lastPositive)
	sess.LastInteractionAt = timePtr(lastInteraction)
	sess.LastFollowUpAt = timePtr(lastFollowUp)
	if err := json.Unmarshal([]byte(achievementsJSON), &sess.UnlockedAchievements); err != nil {
		return nil, fmt.Errorf("failed to decode achievements for %s: %w", sess.SenderID, err)
	}
	if err := json.Unmarshal([]byte(resourcesJSON), &sess.ResourcesUsed); err != nil {
		return nil, fmt.Errorf("failed to decode resources for %s: %w", sess.SenderID, err)
	}
	return &sess, nil
}

func (s *sqlStore) GetSession(ctx context.Context, senderID string) (*models.Session, error) {
	query := s.rebind(`SELECT ` + sessionColumns + ` FROM sessions WHERE sender_id = ?`)
	sess, err := scanSession(s.db.QueryRowContext(ctx, query, senderID))
	if errors.Is(err, sql.ErrNoRows) {
		slog.Debug(s.name+".GetSession: not found", "senderID", senderID)
		return nil, nil
	}
	if err != nil {
		slog.Error(s.name+".GetSession: query failed", "error", err, "senderID", senderID)
		return nil, fmt.Errorf("failed to load session %s: %w", senderID, err)
	}
	return sess, nil
}

func (s *sqlStore) CreateSession(ctx context.Context, session *models.Session) error {
	if err := session.Validate(); err != nil {
		return err
	}
	args, err := sessionArgs(session)
	if err != nil {
		return err
	}
	query := s.rebind(`INSERT INTO sessions (` + sessionColumns + `) VALUES (` + placeholders(sessionColumnCount) + `)`)
	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		slog.Error(s.name+".CreateSession: insert failed", "error", err, "senderID", session.SenderID)
		return fmt.Errorf("failed to create session %s: %w", session.SenderID, err)
	}
	slog.Debug(s.name+".CreateSession: created", "senderID", session.SenderID)
	return nil
}

func (s *sqlStore) UpdateSession(ctx context.Context, session *models.Session) error {
	if err := session.Validate(); err != nil {
		return err
	}
	args, err := sessionArgs(session)
	if err != nil {
		return err
	}
	query := s.rebind(`INSERT INTO sessions (` + sessionColumns + `) VALUES (` + placeholders(sessionColumnCount) + `)
		ON CONFLICT (sender_id) DO UPDATE SET ` + sessionUpsertAssignments)
	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		slog.Error(s.name+".UpdateSession: upsert failed", "error", err, "senderID", session.SenderID)
		return fmt.Errorf("failed to update session %s: %w", session.SenderID, err)
	}
	slog.Debug(s.name+".UpdateSession: saved", "senderID", session.SenderID, "mode", session.Mode)
	return nil
}

func (s *sqlStore) SetWantsSupport(ctx context.Context, senderID string, wants bool) error {
	query := s.rebind(`UPDATE sessions SET wants_support = ?, updated_at = ? WHERE sender_id = ?`)
	res, err := s.db.ExecContext(ctx, query, wants, time.Now().UTC(), senderID)
	if err != nil {
		slog.Error(s.name+".SetWantsSupport: update failed", "error", err, "senderID", senderID)
		return fmt.Errorf("failed to update support flag for %s: %w", senderID, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *sqlStore) ListFollowUpDue(ctx context.Context, hhmm string) ([]*models.Session, error) {
	query := s.rebind(`SELECT ` + sessionColumns + ` FROM sessions
		WHERE wants_support = ? AND follow_up_time = ? ORDER BY sender_id`)
	return s.listSessions(ctx, "ListFollowUpDue", query, true, hhmm)
}

func (s *sqlStore) ListLowScaleSessions(ctx context.Context, threshold int) ([]*models.Session, error) {
	query := s.rebind(`SELECT ` + sessionColumns + ` FROM sessions
		WHERE emotional_scale IS NOT NULL AND emotional_scale < ? ORDER BY sender_id`)
	return s.listSessions(ctx, "ListLowScaleSessions", query, threshold)
}

func (s *sqlStore) listSessions(ctx context.Context, op, query string, args ...any) ([]*models.Session, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		slog.Error(s.name+"."+op+": query failed", "error", err)
		return nil, fmt.Errorf("failed to list sessions: %w", err)
	}
	defer rows.Close()

	var out []*models.Session
	for rows.Next() {
		sess, err := scanSession(rows)
		if err != nil {
			slog.Error(s.name+"."+op+": scan failed", "error", err)
			return nil, fmt.Errorf("failed to scan session row: %w", err)
		}
		out = append(out, sess)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate session rows: %w", err)
	}
	slog.Debug(s.name+"."+op+": listed", "count", len(out))
	return out, nil
}

func (s *sqlStore) AppendMessage(ctx context.Context, entry models.HistoryEntry) error {
	query := s.rebind(`INSERT INTO history (id, sender_id, message, response, emotional_scale, created_at)
		VALUES (?, ?, ?, ?, ?, ?)`)
	_, err := s.db.ExecContext(ctx, query, entry.ID, entry.SenderID, entry.Message, entry.Response,
		nullInt(entry.EmotionalScale), entry.CreatedAt.UTC())
	if err != nil {
		slog.Error(s.name+".AppendMessage: insert failed", "error", err, "senderID", entry.SenderID)
		return fmt.Errorf("failed to append history for %s: %w", entry.SenderID, err)
	}
	return nil
}

func (s *sqlStore) ListMessages(ctx context.Context, senderID string, limit int) ([]models.HistoryEntry, error) {
	if limit <= 0 {
		limit = DefaultHistoryLimit
	}
	query := s.rebind(`SELECT id, sender_id, message, response, emotional_scale, created_at
		FROM history WHERE sender_id = ? ORDER BY created_at DESC, id DESC LIMIT ?`)
	rows, err := s.db.QueryContext(ctx, query, senderID, limit)
	if err != nil {
		slog.Error(s.name+".ListMessages: query failed", "error", err, "senderID", senderID)
		return nil, fmt.Errorf("failed to list history for %s: %w", senderID, err)
	}
	defer rows.Close()

	var out []models.HistoryEntry
	for rows.Next() {
		var e models.HistoryEntry
		var scale sql.NullInt64
		if err := rows.Scan(&e.ID, &e.SenderID, &e.Message, &e.Response, &scale, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan history row: %w", err)
		}
		if scale.Valid {
			v := int(scale.Int64)
			e.EmotionalScale = &v
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func (s *sqlStore) SaveScale(ctx context.Context, record models.ScaleRecord) error {
	query := s.rebind(`INSERT INTO scale_records (sender_id, scale, recorded_at) VALUES (?, ?, ?)`)
	if _, err := s.db.ExecContext(ctx, query, record.SenderID, record.Scale, record.RecordedAt.UTC()); err != nil {
		slog.Error(s.name+".SaveScale: insert failed", "error", err, "senderID", record.SenderID)
		return fmt.Errorf("failed to save scale for %s: %w", record.SenderID, err)
	}
	slog.Debug(s.name+".SaveScale: saved", "senderID", record.SenderID, "scale", record.Scale)
	return nil
}

func (s *sqlStore) ListScalesSince(ctx context.Context, senderID string, since time.Time) ([]models.ScaleRecord, error) {
	query := s.rebind(`SELECT sender_id, scale, recorded_at FROM scale_records
		WHERE sender_id = ? AND recorded_at >= ? ORDER BY recorded_at ASC`)
	rows, err := s.db.QueryContext(ctx, query, senderID, since.UTC())
	if err != nil {
		slog.Error(s.name+".ListScalesSince: query failed", "error", err, "senderID", senderID)
		return nil, fmt.Errorf("failed to list scales for %s: %w", senderID, err)
	}
	defer rows.Close()

	var out []models.ScaleRecord
	for rows.Next() {
		var r models.ScaleRecord
		if err := rows.Scan(&r.SenderID, &r.Scale, &r.RecordedAt); err != nil {
			return nil, fmt.Errorf("failed to scan scale row: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

const patternColumns = `id, patterns, intent, responses, created_at, updated_at`

func scanPattern(row rowScanner) (models.ResponsePattern, error) {
	var p models.ResponsePattern
	var patternsJSON, responsesJSON string
	if err := row.Scan(&p.ID, &patternsJSON, &p.Intent, &responsesJSON, &p.CreatedAt, &p.UpdatedAt); err != nil {
		return p, err
	}
	if err := json.Unmarshal([]byte(patternsJSON), &p.Patterns); err != nil {
		return p, fmt.Errorf("failed to decode patterns for %s: %w", p.ID, err)
	}
	if err := json.Unmarshal([]byte(responsesJSON), &p.Responses); err != nil {
		return p, fmt.Errorf("failed to decode responses for %s: %w", p.ID, err)
	}
	return p, nil
}

func (s *sqlStore) ListPatterns(ctx context.Context) ([]models.ResponsePattern, error) {
	query := `SELECT ` + patternColumns + ` FROM response_patterns ORDER BY created_at, id`
	return s.listPatterns(ctx, "ListPatterns", query)
}

func (s *sqlStore) FindPatternsByIntent(ctx context.Context, intent string) ([]models.ResponsePattern, error) {
	query := s.rebind(`SELECT ` + patternColumns + ` FROM response_patterns WHERE intent = ? ORDER BY created_at, id`)
	return s.listPatterns(ctx, "FindPatternsByIntent", query, intent)
}

func (s *sqlStore) listPatterns(ctx context.Context, op, query string, args ...any) ([]models.ResponsePattern, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		slog.Error(s.name+"."+op+": query failed", "error", err)
		return nil, fmt.Errorf("failed to list patterns: %w", err)
	}
	defer rows.Close()

	var out []models.ResponsePattern
	for rows.Next() {
		p, err := scanPattern(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan pattern row: %w", err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (s *sqlStore) GetPattern(ctx context.Context, id string) (*models.ResponsePattern, error) {
	query := s.rebind(`SELECT ` + patternColumns + ` FROM response_patterns WHERE id = ?`)
	p, err := scanPattern(s.db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		slog.Error(s.name+".GetPattern: query failed", "error", err, "id", id)
		return nil, fmt.Errorf("failed to load pattern %s: %w", id, err)
	}
	return &p, nil
}

func (s *sqlStore) SavePattern(ctx context.Context, pattern models.ResponsePattern) error {
	patternsJSON, err := json.Marshal(pattern.Patterns)
	if err != nil {
		return fmt.Errorf("failed to encode patterns: %w", err)
	}
	responsesJSON, err := json.Marshal(pattern.Responses)
	if err != nil {
		return fmt.Errorf("failed to encode responses: %w", err)
	}
	query := s.rebind(`INSERT INTO response_patterns (` + patternColumns + `) VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET patterns = excluded.patterns, intent = excluded.intent,
		responses = excluded.responses, updated_at = excluded.updated_at`)
	_, err = s.db.ExecContext(ctx, query, pattern.ID, string(patternsJSON), pattern.Intent, string(responsesJSON),
		pattern.CreatedAt.UTC(), pattern.UpdatedAt.UTC())
	if err != nil {
		slog.Error(s.name+".SavePattern: upsert failed", "error", err, "id", pattern.ID)
		return fmt.Errorf("failed to save pattern %s: %w", pattern.ID, err)
	}
	slog.Debug(s.name+".SavePattern: saved", "id", pattern.ID, "intent", pattern.Intent)
	return nil
}

func (s *sqlStore) DeletePattern(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, s.rebind(`DELETE FROM response_patterns WHERE id = ?`), id)
	if err != nil {
		slog.Error(s.name+".DeletePattern: delete failed", "error", err, "id", id)
		return fmt.Errorf("failed to delete pattern %s: %w", id, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrNotFound
	}
	return nil
}

// Close closes the underlying database connection.
func (s *sqlStore) Close() error {
	slog.Debug(s.name + ".Close: closing database connection")
	if err := s.db.Close(); err != nil {
		slog.Error(s.name+".Close: failed to close database", "error", err)
		return err
	}
	return nil
}

func nullInt(v *int) sql.NullInt64 {
	if v == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: int64(*v), Valid: true}
}

func nullFloat(v *float64) sql.NullFloat64 {
	if v == nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: *v, Valid: true}
}

func nullTime(v *time.Time) sql.NullTime {
	if v == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: v.UTC(), Valid: true}
}

func timePtr(v sql.NullTime) *time.Time {
	if !v.Valid {
		return nil
	}
	t := v.Time
	return &t
}
