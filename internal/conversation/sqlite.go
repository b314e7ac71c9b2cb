package conversation

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// SQLiteSessionStore persists sessions as JSON blobs keyed by
// (user_id, session_id), sharing the task database connection.
type SQLiteSessionStore struct {
	conn *sql.DB
	ttl  time.Duration
}

// NewSQLiteSessionStore creates the session table if needed. Sessions older
// than ttl are treated as absent on read; a ttl of zero keeps them forever.
func NewSQLiteSessionStore(conn *sql.DB, ttl time.Duration) (*SQLiteSessionStore, error) {
	create := `
CREATE TABLE IF NOT EXISTS conversation_sessions (
	user_id TEXT NOT NULL,
	session_id TEXT NOT NULL,
	state TEXT NOT NULL,
	updated_at INTEGER NOT NULL,
	PRIMARY KEY (user_id, session_id)
);`
	if _, err := conn.Exec(create); err != nil {
		return nil, fmt.Errorf("create session table: %w", err)
	}
	return &SQLiteSessionStore{conn: conn, ttl: ttl}, nil
}

// Get implements SessionStore.
func (s *SQLiteSessionStore) Get(ctx context.Context, userID, sessionID string) (Session, bool, error) {
	var (
		blob    string
		updated int64
	)
	err := s.conn.QueryRowContext(ctx,
		`SELECT state, updated_at FROM conversation_sessions WHERE user_id = ? AND session_id = ?`,
		userID, sessionID).Scan(&blob, &updated)
	if errors.Is(err, sql.ErrNoRows) {
		return Session{}, false, nil
	}
	if err != nil {
		return Session{}, false, fmt.Errorf("load session: %w", err)
	}

	sess := Session{}
	if err := json.Unmarshal([]byte(blob), &sess); err != nil {
		return Session{}, false, fmt.Errorf("decode session: %w", err)
	}
	sess.UpdatedAt = time.Unix(updated, 0).UTC()

	if s.ttl > 0 && time.Since(sess.UpdatedAt) > s.ttl {
		_ = s.Delete(ctx, userID, sessionID)
		return Session{}, false, nil
	}
	return sess, true, nil
}

// Put implements SessionStore.
func (s *SQLiteSessionStore) Put(ctx context.Context, sess Session) error {
	blob, err := json.Marshal(sess)
	if err != nil {
		return fmt.Errorf("encode session: %w", err)
	}
	_, err = s.conn.ExecContext(ctx, `
INSERT INTO conversation_sessions (user_id, session_id, state, updated_at)
VALUES (?, ?, ?, ?)
ON CONFLICT(user_id, session_id) DO UPDATE SET state = excluded.state, updated_at = excluded.updated_at`,
		sess.UserID, sess.SessionID, string(blob), sess.UpdatedAt.Unix())
	if err != nil {
		return fmt.Errorf("save session: %w", err)
	}
	return nil
}

// Delete implements SessionStore.
func (s *SQLiteSessionStore) Delete(ctx context.Context, userID, sessionID string) error {
	_, err := s.conn.ExecContext(ctx,
		`DELETE FROM conversation_sessions WHERE user_id = ? AND session_id = ?`, userID, sessionID)
	return err
}

// Sweep deletes sessions untouched for ttl. Intended to be called
// periodically by the daemon.
func (s *SQLiteSessionStore) Sweep(ctx context.Context) (int64, error) {
	if s.ttl <= 0 {
		return 0, nil
	}
	res, err := s.conn.ExecContext(ctx,
		`DELETE FROM conversation_sessions WHERE updated_at < ?`,
		time.Now().Add(-s.ttl).Unix())
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

var _ SessionStore = (*SQLiteSessionStore)(nil)
