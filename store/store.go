// Package store is the SQLite persistence collaborator for the analysis
// pipeline. A session's derived artifacts (relationship sets, timeline,
// unfollowed records, summary counts) are written atomically in one
// transaction, with the session row last: readers key everything off the
// sessions table, so a half-written session is never visible.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	_ "modernc.org/sqlite"

	"github.com/tushrpal/instagram-follower-analyzer/analyze"
	"github.com/tushrpal/instagram-follower-analyzer/dbopen"
	"github.com/tushrpal/instagram-follower-analyzer/normalize"
	"github.com/tushrpal/instagram-follower-analyzer/unfollow"
)

// ErrSessionNotFound reports a lookup for a session id that does not exist.
var ErrSessionNotFound = errors.New("session not found")

const schema = `
CREATE TABLE IF NOT EXISTS sessions (
    id                    TEXT PRIMARY KEY,
    uploaded_at           INTEGER NOT NULL,
    followers_count       INTEGER NOT NULL DEFAULT 0,
    following_count       INTEGER NOT NULL DEFAULT 0,
    mutual_count          INTEGER NOT NULL DEFAULT 0,
    followers_only_count  INTEGER NOT NULL DEFAULT 0,
    following_only_count  INTEGER NOT NULL DEFAULT 0,
    pending_count         INTEGER NOT NULL DEFAULT 0,
    event_count           INTEGER NOT NULL DEFAULT 0,
    unfollowed_count      INTEGER NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS contacts (
    session_id   TEXT NOT NULL,
    category     TEXT NOT NULL,
    handle       TEXT NOT NULL,
    profile_url  TEXT NOT NULL DEFAULT '',
    observed_at  INTEGER,
    PRIMARY KEY (session_id, category, handle)
);

CREATE TABLE IF NOT EXISTS events (
    session_id       TEXT NOT NULL,
    seq              INTEGER NOT NULL,
    ts               INTEGER NOT NULL,
    handle           TEXT NOT NULL,
    direction        TEXT NOT NULL,
    followers_after  INTEGER NOT NULL,
    following_after  INTEGER NOT NULL,
    PRIMARY KEY (session_id, seq)
);

CREATE TABLE IF NOT EXISTS unfollowed (
    session_id     TEXT NOT NULL,
    source         TEXT NOT NULL,
    handle         TEXT NOT NULL,
    profile_url    TEXT NOT NULL DEFAULT '',
    unfollowed_at  INTEGER NOT NULL,
    PRIMARY KEY (session_id, source, handle)
);

CREATE TABLE IF NOT EXISTS pipeline_events (
    event_id    TEXT PRIMARY KEY,
    event_type  TEXT NOT NULL,
    session_id  TEXT,
    action      TEXT NOT NULL,
    details     TEXT,
    success     INTEGER NOT NULL,
    created_at  INTEGER NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_sessions_uploaded ON sessions(uploaded_at);
CREATE INDEX IF NOT EXISTS idx_contacts_handle   ON contacts(session_id, category, handle);
CREATE INDEX IF NOT EXISTS idx_unfollowed_at     ON unfollowed(session_id, unfollowed_at);
`

// Category scopes a persisted contact row to one derived list.
type Category string

const (
	CategoryMutual        Category = "mutual"
	CategoryFollowersOnly Category = "followers_only"
	CategoryFollowingOnly Category = "following_only"
	CategoryPending       Category = "pending"

	// categoryFollowing holds the complete following list of a session.
	// It exists for cross-session diffing and is not exposed for listing.
	categoryFollowing Category = "following"
)

// Session is the summary row of one upload-and-analysis run.
type Session struct {
	ID                 string `json:"id"`
	UploadedAt         int64  `json:"uploadedAt"`
	FollowersCount     int    `json:"followersCount"`
	FollowingCount     int    `json:"followingCount"`
	MutualCount        int    `json:"mutualCount"`
	FollowersOnlyCount int    `json:"followersOnlyCount"`
	FollowingOnlyCount int    `json:"followingOnlyCount"`
	PendingCount       int    `json:"pendingCount"`
	EventCount         int    `json:"eventCount"`
	UnfollowedCount    int    `json:"unfollowedCount"`
}

// Artifacts bundles everything one pipeline run derives for a session.
type Artifacts struct {
	Sets       analyze.RelationshipSets
	Following  []normalize.Contact // full following list, kept for diffing
	Pending    []normalize.Contact
	Events     []analyze.FollowEvent
	Unfollowed []unfollow.Profile
}

// Store wraps the analyzer database.
type Store struct {
	db     *sql.DB
	logger *slog.Logger
}

// Open opens (or creates) the database at path and runs migrations.
func Open(path string, logger *slog.Logger) (*Store, error) {
	db, err := dbopen.Open(path, dbopen.WithMkdirAll(), dbopen.WithSchema(schema))
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}
	return New(db, logger), nil
}

// New wraps an already opened database. Migrations must have run
// (dbopen.WithSchema(Schema)).
func New(db *sql.DB, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{db: db, logger: logger}
}

// Schema is the DDL for callers that open the database themselves (tests).
const Schema = schema

// DB exposes the underlying handle for sharing with the event logger.
func (s *Store) DB() *sql.DB { return s.db }

// Close closes the underlying database.
func (s *Store) Close() error { return s.db.Close() }

// SaveSession persists a session and all of its artifacts atomically. On any
// failure the transaction rolls back and the session stays absent.
func (s *Store) SaveSession(ctx context.Context, sess Session, art Artifacts) error {
	err := dbopen.RunTx(ctx, s.db, func(tx *sql.Tx) error {
		if err := insertContacts(tx, sess.ID, CategoryMutual, art.Sets.Mutual); err != nil {
			return err
		}
		if err := insertContacts(tx, sess.ID, CategoryFollowersOnly, art.Sets.FollowersOnly); err != nil {
			return err
		}
		if err := insertContacts(tx, sess.ID, CategoryFollowingOnly, art.Sets.FollowingOnly); err != nil {
			return err
		}
		if err := insertContacts(tx, sess.ID, CategoryPending, art.Pending); err != nil {
			return err
		}
		if err := insertContacts(tx, sess.ID, categoryFollowing, art.Following); err != nil {
			return err
		}

		for seq, e := range art.Events {
			if _, err := tx.ExecContext(ctx, `
				INSERT INTO events (session_id, seq, ts, handle, direction, followers_after, following_after)
				VALUES (?, ?, ?, ?, ?, ?, ?)`,
				sess.ID, seq, e.Timestamp, e.Handle, e.Direction, e.FollowersAfter, e.FollowingAfter,
			); err != nil {
				return fmt.Errorf("insert event %d: %w", seq, err)
			}
		}

		for _, u := range art.Unfollowed {
			if _, err := tx.ExecContext(ctx, `
				INSERT OR IGNORE INTO unfollowed (session_id, source, handle, profile_url, unfollowed_at)
				VALUES (?, ?, ?, ?, ?)`,
				sess.ID, u.Source, u.Handle, u.ProfileURL, u.UnfollowedAt,
			); err != nil {
				return fmt.Errorf("insert unfollowed %s: %w", u.Handle, err)
			}
		}

		// Session row last: its presence is what makes the session visible.
		_, err := tx.ExecContext(ctx, `
			INSERT INTO sessions (id, uploaded_at, followers_count, following_count, mutual_count,
				followers_only_count, following_only_count, pending_count, event_count, unfollowed_count)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			sess.ID, sess.UploadedAt, sess.FollowersCount, sess.FollowingCount, sess.MutualCount,
			sess.FollowersOnlyCount, sess.FollowingOnlyCount, sess.PendingCount, sess.EventCount, sess.UnfollowedCount,
		)
		if err != nil {
			return fmt.Errorf("insert session: %w", err)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("save session %s: %w", sess.ID, err)
	}
	return nil
}

func insertContacts(tx *sql.Tx, sessionID string, cat Category, contacts []normalize.Contact) error {
	for _, c := range contacts {
		var observedAt any
		if c.ObservedAt != nil {
			observedAt = *c.ObservedAt
		}
		if _, err := tx.Exec(`
			INSERT OR IGNORE INTO contacts (session_id, category, handle, profile_url, observed_at)
			VALUES (?, ?, ?, ?, ?)`,
			sessionID, cat, c.Handle, c.ProfileURL, observedAt,
		); err != nil {
			return fmt.Errorf("insert %s contact %s: %w", cat, c.Handle, err)
		}
	}
	return nil
}

const sessionCols = `id, uploaded_at, followers_count, following_count, mutual_count,
	followers_only_count, following_only_count, pending_count, event_count, unfollowed_count`

func scanSession(row interface{ Scan(...any) error }) (*Session, error) {
	var sess Session
	err := row.Scan(&sess.ID, &sess.UploadedAt, &sess.FollowersCount, &sess.FollowingCount,
		&sess.MutualCount, &sess.FollowersOnlyCount, &sess.FollowingOnlyCount,
		&sess.PendingCount, &sess.EventCount, &sess.UnfollowedCount)
	if err != nil {
		return nil, err
	}
	return &sess, nil
}

// GetSession returns one session summary.
func (s *Store) GetSession(ctx context.Context, id string) (*Session, error) {
	sess, err := scanSession(s.db.QueryRowContext(ctx,
		`SELECT `+sessionCols+` FROM sessions WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrSessionNotFound, id)
	}
	if err != nil {
		return nil, err
	}
	return sess, nil
}

// ListSessions returns up to limit sessions, most recent first.
func (s *Store) ListSessions(ctx context.Context, limit int) ([]*Session, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+sessionCols+` FROM sessions ORDER BY uploaded_at DESC, id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*Session
	for rows.Next() {
		sess, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, sess)
	}
	return out, rows.Err()
}

// LatestSessionID returns the most recent session id, or "" when no session
// has been persisted yet. Part of the unfollow.History port.
func (s *Store) LatestSessionID(ctx context.Context) (string, error) {
	var id string
	err := s.db.QueryRowContext(ctx,
		`SELECT id FROM sessions ORDER BY uploaded_at DESC, id DESC LIMIT 1`).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return id, nil
}

// FollowingContacts returns the full following list persisted for a session.
// Part of the unfollow.History port.
func (s *Store) FollowingContacts(ctx context.Context, sessionID string) ([]normalize.Contact, error) {
	return s.contactsByCategory(ctx, sessionID, categoryFollowing)
}

func (s *Store) contactsByCategory(ctx context.Context, sessionID string, cat Category) ([]normalize.Contact, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT handle, profile_url, observed_at FROM contacts
		WHERE session_id = ? AND category = ? ORDER BY handle`, sessionID, cat)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectContacts(rows)
}

func collectContacts(rows *sql.Rows) ([]normalize.Contact, error) {
	var out []normalize.Contact
	for rows.Next() {
		var c normalize.Contact
		var observedAt sql.NullInt64
		if err := rows.Scan(&c.Handle, &c.ProfileURL, &observedAt); err != nil {
			return nil, err
		}
		if observedAt.Valid {
			c.ObservedAt = normalize.Ts(observedAt.Int64)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// Timeline returns a session's persisted event sequence in order.
func (s *Store) Timeline(ctx context.Context, sessionID string) ([]analyze.FollowEvent, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT ts, handle, direction, followers_after, following_after
		FROM events WHERE session_id = ? ORDER BY seq`, sessionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []analyze.FollowEvent
	for rows.Next() {
		var e analyze.FollowEvent
		if err := rows.Scan(&e.Timestamp, &e.Handle, &e.Direction, &e.FollowersAfter, &e.FollowingAfter); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// DeleteSession removes a session and all of its artifacts wholesale.
func (s *Store) DeleteSession(ctx context.Context, id string) error {
	return dbopen.RunTx(ctx, s.db, func(tx *sql.Tx) error {
		for _, q := range []string{
			`DELETE FROM contacts WHERE session_id = ?`,
			`DELETE FROM events WHERE session_id = ?`,
			`DELETE FROM unfollowed WHERE session_id = ?`,
			`DELETE FROM sessions WHERE id = ?`,
		} {
			if _, err := tx.ExecContext(ctx, q, id); err != nil {
				return err
			}
		}
		return nil
	})
}
