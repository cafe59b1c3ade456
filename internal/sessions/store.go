package sessions

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/ziadkadry99/claimdesk/internal/db"
	"github.com/ziadkadry99/claimdesk/internal/keylock"
)

// DefaultHistoryCap bounds the number of messages kept per session.
const DefaultHistoryCap = 50

// Store persists sessions. Writes to the same session are serialised.
type Store struct {
	db         *db.DB
	historyCap int
	locks      *keylock.Map
}

// NewStore creates a session store keeping at most historyCap messages per
// session. A non-positive cap selects DefaultHistoryCap.
func NewStore(database *db.DB, historyCap int) *Store {
	if historyCap <= 0 {
		historyCap = DefaultHistoryCap
	}
	return &Store{db: database, historyCap: historyCap, locks: keylock.New()}
}

// NewID returns a fresh session id.
func NewID() string {
	return uuid.New().String()
}

// GetSession loads a session, creating an empty one if it does not exist.
// An empty id allocates a new session.
func (s *Store) GetSession(ctx context.Context, id string) (*Session, error) {
	if id == "" {
		id = NewID()
	}
	if err := s.ensure(ctx, id); err != nil {
		return nil, err
	}
	return s.load(ctx, id)
}

// Find loads an existing session without creating it.
func (s *Store) Find(ctx context.Context, id string) (*Session, error) {
	return s.load(ctx, id)
}

// BindMember records which member a session talks about. The first
// binding wins.
func (s *Store) BindMember(ctx context.Context, id, memberID string) error {
	if err := s.ensure(ctx, id); err != nil {
		return err
	}
	_, err := s.db.ExecContext(ctx,
		`UPDATE chat_sessions SET member_id = ? WHERE id = ? AND member_id = ''`, memberID, id)
	if err != nil {
		return fmt.Errorf("binding session %s: %w", id, err)
	}
	return nil
}

// AppendMessage adds a message and evicts the oldest entries beyond the
// history cap.
func (s *Store) AppendMessage(ctx context.Context, id, role, content string) error {
	content = strings.TrimSpace(content)
	if content == "" {
		return ErrEmptyMessage
	}
	if role != RoleUser && role != RoleAssistant {
		return fmt.Errorf("%w: %q", ErrInvalidRole, role)
	}

	unlock, err := s.locks.Lock(ctx, id)
	if err != nil {
		return err
	}
	defer unlock()

	if err := s.ensure(ctx, id); err != nil {
		return err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	now := time.Now().UTC()
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO chat_messages (session_id, role, content, created_at) VALUES (?, ?, ?, ?)`,
		id, role, content, now,
	); err != nil {
		return fmt.Errorf("adding message: %w", err)
	}
	if _, err := tx.ExecContext(ctx,
		`DELETE FROM chat_messages WHERE session_id = ? AND id NOT IN (
			SELECT id FROM chat_messages WHERE session_id = ? ORDER BY id DESC LIMIT ?)`,
		id, id, s.historyCap,
	); err != nil {
		return fmt.Errorf("trimming history: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `UPDATE chat_sessions SET updated_at = ? WHERE id = ?`, now, id); err != nil {
		return fmt.Errorf("touching session: %w", err)
	}
	return tx.Commit()
}

// SaveLastClaimContext replaces the session's last decision snapshot.
func (s *Store) SaveLastClaimContext(ctx context.Context, id string, cc ClaimContext) error {
	data, err := json.Marshal(cc)
	if err != nil {
		return fmt.Errorf("marshalling claim context: %w", err)
	}

	unlock, err := s.locks.Lock(ctx, id)
	if err != nil {
		return err
	}
	defer unlock()

	if err := s.ensure(ctx, id); err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx,
		`UPDATE chat_sessions SET last_claim_context = ?, updated_at = ? WHERE id = ?`,
		string(data), time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("saving claim context: %w", err)
	}
	return nil
}

func (s *Store) ensure(ctx context.Context, id string) error {
	now := time.Now().UTC()
	_, err := s.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO chat_sessions (id, created_at, updated_at) VALUES (?, ?, ?)`, id, now, now)
	if err != nil {
		return fmt.Errorf("creating session %s: %w", id, err)
	}
	return nil
}

func (s *Store) load(ctx context.Context, id string) (*Session, error) {
	var (
		sess   = Session{ID: id, Messages: []Message{}}
		lastCC sql.NullString
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT member_id, last_claim_context, created_at, updated_at FROM chat_sessions WHERE id = ?`, id,
	).Scan(&sess.MemberID, &lastCC, &sess.CreatedAt, &sess.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrSessionNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("getting session %s: %w", id, err)
	}
	if lastCC.Valid && lastCC.String != "" {
		var cc ClaimContext
		if err := json.Unmarshal([]byte(lastCC.String), &cc); err != nil {
			return nil, fmt.Errorf("decoding claim context of %s: %w", id, err)
		}
		sess.LastClaimContext = &cc
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT role, content, created_at FROM chat_messages WHERE session_id = ? ORDER BY id ASC`, id)
	if err != nil {
		return nil, fmt.Errorf("querying messages: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var m Message
		if err := rows.Scan(&m.Role, &m.Content, &m.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning message: %w", err)
		}
		sess.Messages = append(sess.Messages, m)
	}
	return &sess, rows.Err()
}
