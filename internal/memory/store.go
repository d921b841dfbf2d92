package memory

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"
	"github.com/rs/zerolog/log"

	vitalisotel "github.com/tehqua/Vitalis/internal/otel"
)

var tracer = vitalisotel.Tracer("github.com/tehqua/Vitalis/internal/memory")

// ErrSessionNotFound is returned when a session does not exist.
var ErrSessionNotFound = errors.New("session not found")

const schema = `
CREATE TABLE IF NOT EXISTS sessions (
    id TEXT PRIMARY KEY,
    patient_id TEXT NOT NULL,
    created_at TIMESTAMP NOT NULL,
    last_active TIMESTAMP NOT NULL
);

CREATE TABLE IF NOT EXISTS session_messages (
    id TEXT PRIMARY KEY,
    session_id TEXT NOT NULL,
    seq INTEGER NOT NULL,
    role TEXT NOT NULL,
    content TEXT NOT NULL,
    created_at TIMESTAMP NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_messages_session ON session_messages(session_id, seq);
CREATE INDEX IF NOT EXISTS idx_sessions_last_active ON sessions(last_active);
`

// Store persists per-session conversation history to SQLite, applying the
// same bounded-retention rule as History. Access to any one session is
// serialized through a per-session lock; sessions never share locks.
type Store struct {
	db     *sql.DB
	maxLen int

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// NewStore opens (and migrates) the session database at path. maxLen is
// the per-session retention bound.
func NewStore(path string, maxLen int) (*Store, error) {
	if maxLen < 1 {
		maxLen = 1
	}
	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("opening session db: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrating session db: %w", err)
	}
	return &Store{db: db, maxLen: maxLen, locks: make(map[string]*sync.Mutex)}, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

// sessionLock returns the lock owned by the given session, creating it on
// first use.
func (s *Store) sessionLock(sessionID string) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.locks[sessionID]
	if !ok {
		l = &sync.Mutex{}
		s.locks[sessionID] = l
	}
	return l
}

// Append adds messages to a session's log, creating the session if needed
// and truncating per the retention rule.
func (s *Store) Append(ctx context.Context, sessionID, patientID string, msgs ...Message) error {
	ctx, span := tracer.Start(ctx, "memory.append")
	defer span.End()

	lock := s.sessionLock(sessionID)
	lock.Lock()
	defer lock.Unlock()

	now := time.Now().UTC()
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning append tx: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO sessions (id, patient_id, created_at, last_active) VALUES (?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET last_active = excluded.last_active`,
		sessionID, patientID, now, now); err != nil {
		return fmt.Errorf("upserting session: %w", err)
	}

	var maxSeq sql.NullInt64
	if err := tx.QueryRowContext(ctx,
		`SELECT MAX(seq) FROM session_messages WHERE session_id = ?`, sessionID).Scan(&maxSeq); err != nil {
		return fmt.Errorf("reading message seq: %w", err)
	}
	seq := maxSeq.Int64

	for _, m := range msgs {
		seq++
		createdAt := m.CreatedAt
		if createdAt.IsZero() {
			createdAt = now
		}
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO session_messages (id, session_id, seq, role, content, created_at)
			VALUES (?, ?, ?, ?, ?, ?)`,
			uuid.New().String(), sessionID, seq, m.Role, m.Content, createdAt); err != nil {
			return fmt.Errorf("inserting message: %w", err)
		}
	}

	if err := truncateSession(ctx, tx, sessionID, s.maxLen); err != nil {
		return err
	}
	return tx.Commit()
}

// truncateSession deletes the oldest non-system messages until the session
// fits within maxLen. System messages are never deleted.
func truncateSession(ctx context.Context, tx *sql.Tx, sessionID string, maxLen int) error {
	var total, system int
	if err := tx.QueryRowContext(ctx, `
		SELECT COUNT(*), COALESCE(SUM(CASE WHEN role = ? THEN 1 ELSE 0 END), 0)
		FROM session_messages WHERE session_id = ?`, RoleSystem, sessionID).Scan(&total, &system); err != nil {
		return fmt.Errorf("counting messages: %w", err)
	}
	excess := total - maxLen
	if excess <= 0 {
		return nil
	}
	if _, err := tx.ExecContext(ctx, `
		DELETE FROM session_messages WHERE id IN (
			SELECT id FROM session_messages
			WHERE session_id = ? AND role != ?
			ORDER BY seq ASC LIMIT ?
		)`, sessionID, RoleSystem, excess); err != nil {
		return fmt.Errorf("truncating session: %w", err)
	}
	return nil
}

// Messages returns a session's log in order. A missing session yields an
// empty slice, not an error, so a first turn reads cleanly.
func (s *Store) Messages(ctx context.Context, sessionID string) ([]Message, error) {
	ctx, span := tracer.Start(ctx, "memory.messages")
	defer span.End()

	rows, err := s.db.QueryContext(ctx, `
		SELECT role, content, created_at FROM session_messages
		WHERE session_id = ? ORDER BY seq ASC`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("querying messages: %w", err)
	}
	defer rows.Close()

	var msgs []Message
	for rows.Next() {
		var m Message
		if err := rows.Scan(&m.Role, &m.Content, &m.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning message: %w", err)
		}
		msgs = append(msgs, m)
	}
	return msgs, rows.Err()
}

// SessionInfo summarizes one stored session.
type SessionInfo struct {
	ID         string    `json:"id"`
	PatientID  string    `json:"patient_id"`
	CreatedAt  time.Time `json:"created_at"`
	LastActive time.Time `json:"last_active"`
	Messages   int       `json:"messages"`
}

// ListSessions returns all sessions ordered by most recent activity.
func (s *Store) ListSessions(ctx context.Context) ([]SessionInfo, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT s.id, s.patient_id, s.created_at, s.last_active,
		       (SELECT COUNT(*) FROM session_messages m WHERE m.session_id = s.id)
		FROM sessions s ORDER BY s.last_active DESC`)
	if err != nil {
		return nil, fmt.Errorf("listing sessions: %w", err)
	}
	defer rows.Close()

	var out []SessionInfo
	for rows.Next() {
		var info SessionInfo
		if err := rows.Scan(&info.ID, &info.PatientID, &info.CreatedAt, &info.LastActive, &info.Messages); err != nil {
			return nil, fmt.Errorf("scanning session: %w", err)
		}
		out = append(out, info)
	}
	return out, rows.Err()
}

// Clear removes a session and its messages.
func (s *Store) Clear(ctx context.Context, sessionID string) error {
	lock := s.sessionLock(sessionID)
	lock.Lock()
	defer lock.Unlock()

	res, err := s.db.ExecContext(ctx, `DELETE FROM sessions WHERE id = ?`, sessionID)
	if err != nil {
		return fmt.Errorf("deleting session: %w", err)
	}
	if _, err := s.db.ExecContext(ctx, `DELETE FROM session_messages WHERE session_id = ?`, sessionID); err != nil {
		return fmt.Errorf("deleting session messages: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrSessionNotFound
	}
	return nil
}

// ExpireIdle removes sessions older than the idle cutoff and returns how
// many were dropped. Run periodically by the serve command's sweeper.
func (s *Store) ExpireIdle(ctx context.Context, idle time.Duration) (int, error) {
	cutoff := time.Now().UTC().Add(-idle)
	if _, err := s.db.ExecContext(ctx, `
		DELETE FROM session_messages WHERE session_id IN
		(SELECT id FROM sessions WHERE last_active < ?)`, cutoff); err != nil {
		return 0, fmt.Errorf("expiring session messages: %w", err)
	}
	res, err := s.db.ExecContext(ctx, `DELETE FROM sessions WHERE last_active < ?`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("expiring sessions: %w", err)
	}
	n, _ := res.RowsAffected()
	if n > 0 {
		log.Info().Int64("expired", n).Msg("idle_sessions_expired")
	}
	return int(n), nil
}
