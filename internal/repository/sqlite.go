package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/mattn/go-sqlite3"

	"github.com/xiaot623/gogo/flightdeck/api"
	"github.com/xiaot623/gogo/flightdeck/internal/domain"
)

// SQLiteStore implements Store using SQLite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore creates a new SQLite store.
func NewSQLiteStore(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// For in-memory SQLite, multiple connections create separate databases.
	// Keep a single connection to avoid schema/data disappearing across goroutines.
	if dsn == ":memory:" || strings.Contains(dsn, "mode=memory") {
		db.SetMaxOpenConns(1)
		db.SetMaxIdleConns(1)
	}

	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	store := &SQLiteStore{db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	return store, nil
}

// migrate runs database migrations.
func (s *SQLiteStore) migrate() error {
	migrations := []string{
		`CREATE TABLE IF NOT EXISTS runs (
			run_id TEXT PRIMARY KEY,
			trace_id TEXT NOT NULL,
			app_id TEXT NOT NULL,
			environment TEXT NOT NULL,
			status TEXT NOT NULL,
			source_type TEXT NOT NULL DEFAULT 'live',
			source_run_id TEXT,
			started_at DATETIME NOT NULL,
			ended_at DATETIME,
			retention_class TEXT NOT NULL DEFAULT 'standard',
			tags TEXT,
			FOREIGN KEY (source_run_id) REFERENCES runs(run_id)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_runs_started ON runs(started_at, run_id)`,
		`CREATE INDEX IF NOT EXISTS idx_runs_trace ON runs(trace_id)`,
		`CREATE TABLE IF NOT EXISTS events (
			event_id TEXT PRIMARY KEY,
			run_id TEXT NOT NULL,
			step_id TEXT NOT NULL,
			parent_step_id TEXT,
			sequence_no INTEGER NOT NULL,
			event_type TEXT NOT NULL,
			ts DATETIME NOT NULL,
			determinism_mode TEXT NOT NULL,
			redaction_status TEXT NOT NULL,
			payload TEXT,
			idempotency_key TEXT,
			actor_type TEXT NOT NULL,
			FOREIGN KEY (run_id) REFERENCES runs(run_id)
		)`,
		`CREATE UNIQUE INDEX IF NOT EXISTS idx_events_run_seq ON events(run_id, sequence_no)`,
		`CREATE UNIQUE INDEX IF NOT EXISTS idx_events_idempotency ON events(run_id, idempotency_key)`,
		`CREATE INDEX IF NOT EXISTS idx_events_step ON events(run_id, step_id)`,
		`CREATE TABLE IF NOT EXISTS replay_sessions (
			replay_session_id TEXT PRIMARY KEY,
			source_run_id TEXT NOT NULL,
			fork_step_id TEXT,
			override_profile TEXT NOT NULL,
			preferences TEXT NOT NULL,
			status TEXT NOT NULL DEFAULT 'pending',
			derived_run_id TEXT,
			reason_codes TEXT,
			failure_reason_code TEXT,
			cancel_requested INTEGER NOT NULL DEFAULT 0,
			created_at DATETIME NOT NULL,
			ended_at DATETIME,
			FOREIGN KEY (source_run_id) REFERENCES runs(run_id),
			FOREIGN KEY (derived_run_id) REFERENCES runs(run_id)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_replay_sessions_status ON replay_sessions(status, created_at)`,
	}

	for _, m := range migrations {
		if _, err := s.db.Exec(m); err != nil {
			return fmt.Errorf("migration failed: %w\n%s", err, m)
		}
	}

	// Add new columns for existing DBs (SQLite has limited ALTER TABLE support).
	if err := s.ensureColumn("runs", "retention_class", "ALTER TABLE runs ADD COLUMN retention_class TEXT NOT NULL DEFAULT 'standard'"); err != nil {
		return err
	}
	return s.ensureColumn("replay_sessions", "cancel_requested", "ALTER TABLE replay_sessions ADD COLUMN cancel_requested INTEGER NOT NULL DEFAULT 0")
}

func (s *SQLiteStore) ensureColumn(tableName, columnName, ddl string) error {
	rows, err := s.db.Query(fmt.Sprintf("PRAGMA table_info(%s)", tableName))
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		var cid int
		var name, ctype string
		var notnull int
		var dfltValue sql.NullString
		var pk int
		if err := rows.Scan(&cid, &name, &ctype, &notnull, &dfltValue, &pk); err != nil {
			return err
		}
		if name == columnName {
			return nil
		}
	}
	if err := rows.Err(); err != nil {
		return err
	}

	_, err = s.db.Exec(ddl)
	return err
}

// Ping checks that the database is reachable.
func (s *SQLiteStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
}

// CreateRun creates a new run.
func (s *SQLiteStore) CreateRun(ctx context.Context, run *domain.Run) error {
	return insertRun(ctx, s.db, run)
}

func insertRun(ctx context.Context, db execer, run *domain.Run) error {
	var endedAt sql.NullTime
	if run.EndedAt != nil {
		endedAt = sql.NullTime{Time: run.EndedAt.UTC(), Valid: true}
	}
	_, err := db.ExecContext(ctx,
		`INSERT INTO runs (run_id, trace_id, app_id, environment, status, source_type, source_run_id, started_at, ended_at, retention_class, tags)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		run.RunID, run.TraceID, run.AppID, run.Environment, run.Status, run.SourceType,
		nullString(run.SourceRunID), run.StartedAt.UTC(), endedAt, run.RetentionClass, nullStringBytes(run.Tags))
	return translate(err)
}

const runColumns = `run_id, trace_id, app_id, environment, status, source_type, source_run_id, started_at, ended_at, retention_class, tags`

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanRun(row scanner) (*domain.Run, error) {
	var run domain.Run
	var sourceRunID, tags sql.NullString
	var endedAt sql.NullTime
	if err := row.Scan(&run.RunID, &run.TraceID, &run.AppID, &run.Environment, &run.Status, &run.SourceType,
		&sourceRunID, &run.StartedAt, &endedAt, &run.RetentionClass, &tags); err != nil {
		return nil, err
	}
	if sourceRunID.Valid {
		run.SourceRunID = sourceRunID.String
	}
	if endedAt.Valid {
		run.EndedAt = &endedAt.Time
	}
	if tags.Valid {
		run.Tags = json.RawMessage(tags.String)
	}
	return &run, nil
}

// GetRun retrieves a run by ID.
func (s *SQLiteStore) GetRun(ctx context.Context, runID string) (*domain.Run, error) {
	run, err := scanRun(s.db.QueryRowContext(ctx, `SELECT `+runColumns+` FROM runs WHERE run_id = ?`, runID))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return run, nil
}

// ListRuns lists runs newest first.
func (s *SQLiteStore) ListRuns(ctx context.Context, filter domain.RunFilter) ([]domain.Run, error) {
	query := `SELECT ` + runColumns + ` FROM runs WHERE 1 = 1`
	var args []interface{}

	for _, f := range []struct {
		column, value string
	}{
		{"app_id", filter.AppID},
		{"environment", filter.Environment},
		{"status", filter.Status},
		{"source_type", filter.SourceType},
	} {
		if f.value != "" {
			query += fmt.Sprintf(" AND %s = ?", f.column)
			args = append(args, f.value)
		}
	}
	if filter.From != nil {
		query += ` AND started_at >= ?`
		args = append(args, filter.From.UTC())
	}
	if filter.To != nil {
		query += ` AND started_at <= ?`
		args = append(args, filter.To.UTC())
	}
	if filter.Before != nil {
		query += ` AND (started_at < ? OR (started_at = ? AND run_id < ?))`
		args = append(args, filter.Before.UTC(), filter.Before.UTC(), filter.BeforeRunID)
	}

	query += ` ORDER BY started_at DESC, run_id DESC`
	if filter.Limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", filter.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var runs []domain.Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, *run)
	}
	return runs, rows.Err()
}

// FinalizeRun moves a running run to its final status.
func (s *SQLiteStore) FinalizeRun(ctx context.Context, runID string, status domain.RunStatus, endedAt time.Time) (bool, error) {
	res, err := s.db.ExecContext(ctx,
		`UPDATE runs SET status = ?, ended_at = ? WHERE run_id = ? AND status = ?`,
		status, endedAt.UTC(), runID, domain.RunStatusRunning)
	if err != nil {
		return false, err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return affected > 0, nil
}

// CountEvents returns per-event-type and per-mode counts plus total_events.
func (s *SQLiteStore) CountEvents(ctx context.Context, runID string) (map[string]int64, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT event_type, determinism_mode, COUNT(*) FROM events WHERE run_id = ? GROUP BY event_type, determinism_mode`,
		runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	counters := map[string]int64{"total_events": 0}
	for rows.Next() {
		var eventType, mode string
		var n int64
		if err := rows.Scan(&eventType, &mode, &n); err != nil {
			return nil, err
		}
		counters[eventType] += n
		counters["mode_"+mode] += n
		counters["total_events"] += n
	}
	return counters, rows.Err()
}

// CreateEvent creates a new event.
func (s *SQLiteStore) CreateEvent(ctx context.Context, event *domain.Event) error {
	return insertEvent(ctx, s.db, event)
}

func insertEvent(ctx context.Context, db execer, event *domain.Event) error {
	_, err := db.ExecContext(ctx,
		`INSERT INTO events (event_id, run_id, step_id, parent_step_id, sequence_no, event_type, ts, determinism_mode, redaction_status, payload, idempotency_key, actor_type)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		event.EventID, event.RunID, event.StepID, nullString(event.ParentStepID), event.SequenceNo, event.EventType,
		event.Timestamp.UTC(), event.DeterminismMode, event.RedactionStatus, nullStringBytes(event.Payload),
		nullString(event.IdempotencyKey), event.ActorType)
	return translate(err)
}

const eventColumns = `event_id, run_id, step_id, parent_step_id, sequence_no, event_type, ts, determinism_mode, redaction_status, payload, idempotency_key, actor_type`

func scanEvent(row scanner) (*domain.Event, error) {
	var ev domain.Event
	var parentStepID, payload, idempotencyKey sql.NullString
	if err := row.Scan(&ev.EventID, &ev.RunID, &ev.StepID, &parentStepID, &ev.SequenceNo, &ev.EventType, &ev.Timestamp,
		&ev.DeterminismMode, &ev.RedactionStatus, &payload, &idempotencyKey, &ev.ActorType); err != nil {
		return nil, err
	}
	if parentStepID.Valid {
		ev.ParentStepID = parentStepID.String
	}
	if payload.Valid {
		ev.Payload = json.RawMessage(payload.String)
	}
	if idempotencyKey.Valid {
		ev.IdempotencyKey = idempotencyKey.String
	}
	return &ev, nil
}

// GetEventByIdempotencyKey retrieves the event ingested under key within a run.
func (s *SQLiteStore) GetEventByIdempotencyKey(ctx context.Context, runID, key string) (*domain.Event, error) {
	ev, err := scanEvent(s.db.QueryRowContext(ctx,
		`SELECT `+eventColumns+` FROM events WHERE run_id = ? AND idempotency_key = ?`, runID, key))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return ev, nil
}

// ListEvents retrieves a run's events in ascending sequence order.
func (s *SQLiteStore) ListEvents(ctx context.Context, runID string, filter domain.EventFilter) ([]domain.Event, error) {
	query := `SELECT ` + eventColumns + ` FROM events WHERE run_id = ?`
	args := []interface{}{runID}

	if filter.EventType != "" {
		query += ` AND event_type = ?`
		args = append(args, filter.EventType)
	}
	if filter.StepID != "" {
		query += ` AND step_id = ?`
		args = append(args, filter.StepID)
	}
	if filter.SequenceFrom != nil {
		query += ` AND sequence_no >= ?`
		args = append(args, *filter.SequenceFrom)
	}
	if filter.SequenceTo != nil {
		query += ` AND sequence_no <= ?`
		args = append(args, *filter.SequenceTo)
	}
	if filter.After != nil {
		query += ` AND sequence_no > ?`
		args = append(args, *filter.After)
	}

	query += ` ORDER BY sequence_no ASC`
	if filter.Limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", filter.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var events []domain.Event
	for rows.Next() {
		ev, err := scanEvent(rows)
		if err != nil {
			return nil, err
		}
		events = append(events, *ev)
	}
	return events, rows.Err()
}

// StepExists reports whether any event of the run was recorded for stepID.
func (s *SQLiteStore) StepExists(ctx context.Context, runID, stepID string) (bool, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM events WHERE run_id = ? AND step_id = ?`, runID, stepID).Scan(&n)
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// CreateReplaySession creates a new replay session.
func (s *SQLiteStore) CreateReplaySession(ctx context.Context, session *domain.ReplaySession) error {
	profile, err := json.Marshal(session.OverrideProfile)
	if err != nil {
		return fmt.Errorf("failed to marshal override profile: %w", err)
	}
	prefs, err := json.Marshal(session.Preferences)
	if err != nil {
		return fmt.Errorf("failed to marshal preferences: %w", err)
	}
	reasons, _ := json.Marshal(session.ReasonCodes)
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO replay_sessions (replay_session_id, source_run_id, fork_step_id, override_profile, preferences, status, reason_codes, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		session.ReplaySessionID, session.SourceRunID, nullString(session.ForkStepID), string(profile), string(prefs),
		session.Status, string(reasons), session.CreatedAt.UTC())
	return translate(err)
}

const replayColumns = `replay_session_id, source_run_id, fork_step_id, override_profile, preferences, status, derived_run_id, reason_codes, failure_reason_code, cancel_requested, created_at, ended_at`

func scanReplaySession(row scanner) (*domain.ReplaySession, error) {
	var rs domain.ReplaySession
	var forkStepID, derivedRunID, reasons, failure sql.NullString
	var profile, prefs string
	var endedAt sql.NullTime
	if err := row.Scan(&rs.ReplaySessionID, &rs.SourceRunID, &forkStepID, &profile, &prefs, &rs.Status, &derivedRunID,
		&reasons, &failure, &rs.CancelRequested, &rs.CreatedAt, &endedAt); err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(profile), &rs.OverrideProfile); err != nil {
		return nil, fmt.Errorf("failed to decode override profile: %w", err)
	}
	if err := json.Unmarshal([]byte(prefs), &rs.Preferences); err != nil {
		return nil, fmt.Errorf("failed to decode preferences: %w", err)
	}
	if forkStepID.Valid {
		rs.ForkStepID = forkStepID.String
	}
	if derivedRunID.Valid {
		rs.DerivedRunID = derivedRunID.String
	}
	if reasons.Valid && reasons.String != "" {
		_ = json.Unmarshal([]byte(reasons.String), &rs.ReasonCodes)
	}
	if failure.Valid {
		rs.FailureReasonCode = failure.String
	}
	if endedAt.Valid {
		rs.EndedAt = &endedAt.Time
	}
	return &rs, nil
}

// GetReplaySession retrieves a replay session by ID.
func (s *SQLiteStore) GetReplaySession(ctx context.Context, sessionID string) (*domain.ReplaySession, error) {
	rs, err := scanReplaySession(s.db.QueryRowContext(ctx,
		`SELECT `+replayColumns+` FROM replay_sessions WHERE replay_session_id = ?`, sessionID))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return rs, nil
}

// ClaimPendingReplaySessions moves up to limit pending sessions to running
// and returns them. A session is only ever claimed once.
func (s *SQLiteStore) ClaimPendingReplaySessions(ctx context.Context, limit int) ([]domain.ReplaySession, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT replay_session_id FROM replay_sessions WHERE status = ? AND cancel_requested = 0 ORDER BY created_at ASC LIMIT ?`,
		domain.ReplayStatusPending, limit)
	if err != nil {
		return nil, err
	}
	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return nil, err
		}
		ids = append(ids, id)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	var claimed []domain.ReplaySession
	for _, id := range ids {
		res, err := s.db.ExecContext(ctx,
			`UPDATE replay_sessions SET status = ? WHERE replay_session_id = ? AND status = ? AND cancel_requested = 0`,
			domain.ReplayStatusRunning, id, domain.ReplayStatusPending)
		if err != nil {
			return claimed, err
		}
		affected, err := res.RowsAffected()
		if err != nil {
			return claimed, err
		}
		if affected == 0 {
			continue
		}
		rs, err := s.GetReplaySession(ctx, id)
		if err != nil {
			return claimed, err
		}
		if rs != nil {
			claimed = append(claimed, *rs)
		}
	}
	return claimed, nil
}

// RequestReplayCancel flags the session for cancellation and fails it when it
// has not yet finished. Terminal sessions keep their outcome. Returns nil if
// the session does not exist.
func (s *SQLiteStore) RequestReplayCancel(ctx context.Context, sessionID string, at time.Time) (*domain.ReplaySession, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx,
		`UPDATE replay_sessions SET cancel_requested = 1 WHERE replay_session_id = ?`, sessionID)
	if err != nil {
		return nil, err
	}
	if affected, err := res.RowsAffected(); err != nil {
		return nil, err
	} else if affected == 0 {
		return nil, nil
	}

	if _, err := tx.ExecContext(ctx,
		`UPDATE replay_sessions SET status = ?, failure_reason_code = ?, reason_codes = ?, ended_at = ?
		 WHERE replay_session_id = ? AND status IN (?, ?)`,
		domain.ReplayStatusFailedExecution, api.ReasonCancelRequested, `["`+api.ReasonCancelRequested+`"]`, at.UTC(),
		sessionID, domain.ReplayStatusPending, domain.ReplayStatusRunning); err != nil {
		return nil, err
	}

	rs, err := scanReplaySession(tx.QueryRowContext(ctx,
		`SELECT `+replayColumns+` FROM replay_sessions WHERE replay_session_id = ?`, sessionID))
	if err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return rs, nil
}

// CommitReplayOutcome stores the derived run and its events and completes the
// session, all in one transaction. It returns false without writing anything
// when the session is no longer running (for example after a cancel).
func (s *SQLiteStore) CommitReplayOutcome(ctx context.Context, sessionID string, outcome *domain.ReplayOutcome, endedAt time.Time) (bool, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return false, err
	}
	defer tx.Rollback()

	var status domain.ReplayStatus
	var cancelRequested bool
	err = tx.QueryRowContext(ctx,
		`SELECT status, cancel_requested FROM replay_sessions WHERE replay_session_id = ?`, sessionID).Scan(&status, &cancelRequested)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if status != domain.ReplayStatusRunning || cancelRequested {
		return false, nil
	}

	var derivedRunID sql.NullString
	if outcome.DerivedRun != nil {
		if err := insertRun(ctx, tx, outcome.DerivedRun); err != nil {
			return false, fmt.Errorf("failed to insert derived run: %w", err)
		}
		for i := range outcome.Events {
			if err := insertEvent(ctx, tx, &outcome.Events[i]); err != nil {
				return false, fmt.Errorf("failed to insert derived event: %w", err)
			}
		}
		derivedRunID = sql.NullString{String: outcome.DerivedRun.RunID, Valid: true}
	}

	reasons, _ := json.Marshal(outcome.ReasonCodes)
	res, err := tx.ExecContext(ctx,
		`UPDATE replay_sessions SET status = ?, derived_run_id = ?, reason_codes = ?, failure_reason_code = ?, ended_at = ?
		 WHERE replay_session_id = ? AND status = ?`,
		outcome.Status, derivedRunID, string(reasons), nullString(outcome.FailureReasonCode), endedAt.UTC(),
		sessionID, domain.ReplayStatusRunning)
	if err != nil {
		return false, err
	}
	if affected, err := res.RowsAffected(); err != nil || affected == 0 {
		return false, err
	}
	if err := tx.Commit(); err != nil {
		return false, err
	}
	return true, nil
}

// FailReplaySession moves a non-terminal session to a failure status.
func (s *SQLiteStore) FailReplaySession(ctx context.Context, sessionID string, status domain.ReplayStatus, reasonCode string, endedAt time.Time) (bool, error) {
	reasons, _ := json.Marshal([]string{reasonCode})
	res, err := s.db.ExecContext(ctx,
		`UPDATE replay_sessions SET status = ?, failure_reason_code = ?, reason_codes = ?, ended_at = ?
		 WHERE replay_session_id = ? AND status IN (?, ?)`,
		status, reasonCode, string(reasons), endedAt.UTC(),
		sessionID, domain.ReplayStatusPending, domain.ReplayStatusRunning)
	if err != nil {
		return false, err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return affected > 0, nil
}

// translate maps uniqueness violations to ErrDuplicate.
func translate(err error) error {
	if err == nil {
		return nil
	}
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) &&
		(sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique || sqliteErr.ExtendedCode == sqlite3.ErrConstraintPrimaryKey) {
		return fmt.Errorf("%w: %v", ErrDuplicate, err)
	}
	return err
}

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

func nullStringBytes(b []byte) sql.NullString {
	if len(b) == 0 {
		return sql.NullString{}
	}
	return sql.NullString{String: string(b), Valid: true}
}
