package notifications

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
)

// ErrNotFound is returned when a notification does not exist.
var ErrNotFound = errors.New("notification not found")

// ListFilter controls which notifications are returned by List.
type ListFilter struct {
	Type      NotificationType
	Severity  Severity
	MemberID  string
	Delivered *bool
	Since     time.Time
	Limit     int
	Offset    int
}

// Store provides CRUD operations for notifications and preferences.
type Store struct {
	db *db.DB
}

// NewStore creates a Store backed by the given database.
func NewStore(database *db.DB) *Store {
	return &Store{db: database}
}

// Create inserts a new notification, filling in ID and CreatedAt when
// they are empty.
func (s *Store) Create(ctx context.Context, n *Notification) error {
	if n.ID == "" {
		n.ID = uuid.New().String()
	}
	if n.CreatedAt.IsZero() {
		n.CreatedAt = time.Now().UTC()
	}

	teams, err := json.Marshal(nonNil(n.Teams))
	if err != nil {
		return fmt.Errorf("marshalling teams: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO notifications (id, type, severity, title, message, member_id, claim_id, teams, delivered, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		n.ID, string(n.Type), string(n.Severity), n.Title, n.Message,
		n.MemberID, n.ClaimID, string(teams), boolInt(n.Delivered),
		n.CreatedAt.UTC().Format(time.DateTime),
	)
	if err != nil {
		return fmt.Errorf("inserting notification: %w", err)
	}
	return nil
}

const notificationColumns = `id, type, severity, title, message, member_id, claim_id, teams, delivered, created_at`

// GetByID retrieves a single notification.
func (s *Store) GetByID(ctx context.Context, id string) (*Notification, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+notificationColumns+` FROM notifications WHERE id = ?`, id)
	n, err := scanInto(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return n, err
}

// List returns notifications matching the filter, newest first.
func (s *Store) List(ctx context.Context, filter ListFilter) ([]Notification, error) {
	var (
		clauses []string
		args    []any
	)

	if filter.Type != "" {
		clauses = append(clauses, "type = ?")
		args = append(args, string(filter.Type))
	}
	if filter.Severity != "" {
		clauses = append(clauses, "severity = ?")
		args = append(args, string(filter.Severity))
	}
	if filter.MemberID != "" {
		clauses = append(clauses, "member_id = ?")
		args = append(args, filter.MemberID)
	}
	if filter.Delivered != nil {
		clauses = append(clauses, "delivered = ?")
		args = append(args, boolInt(*filter.Delivered))
	}
	if !filter.Since.IsZero() {
		clauses = append(clauses, "created_at >= ?")
		args = append(args, filter.Since.UTC().Format(time.DateTime))
	}

	query := "SELECT " + notificationColumns + " FROM notifications"
	if len(clauses) > 0 {
		query += " WHERE " + strings.Join(clauses, " AND ")
	}
	query += " ORDER BY created_at DESC, rowid DESC"

	if filter.Limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", filter.Limit)
		if filter.Offset > 0 {
			query += fmt.Sprintf(" OFFSET %d", filter.Offset)
		}
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying notifications: %w", err)
	}
	defer rows.Close()

	result := []Notification{}
	for rows.Next() {
		n, err := scanInto(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *n)
	}
	return result, rows.Err()
}

// MarkDelivered sets delivered=1 for the given notification.
func (s *Store) MarkDelivered(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, "UPDATE notifications SET delivered = 1 WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("marking notification delivered: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return nil
}

// GetPending returns all undelivered notifications.
func (s *Store) GetPending(ctx context.Context) ([]Notification, error) {
	delivered := false
	return s.List(ctx, ListFilter{Delivered: &delivered})
}

// SetPreference upserts a notification preference.
func (s *Store) SetPreference(ctx context.Context, pref Preference) error {
	var webhookURL sql.NullString
	if pref.WebhookURL != "" {
		webhookURL = sql.NullString{String: pref.WebhookURL, Valid: true}
	}
	if pref.SeverityFilter == "" {
		pref.SeverityFilter = SeverityInfo
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO notification_preferences (team_id, channel, severity_filter, webhook_url)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(team_id, channel) DO UPDATE SET
			severity_filter = excluded.severity_filter,
			webhook_url = excluded.webhook_url`,
		pref.TeamID, pref.Channel, string(pref.SeverityFilter), webhookURL,
	)
	if err != nil {
		return fmt.Errorf("upserting preference: %w", err)
	}
	return nil
}

// GetPreferences returns all notification preferences for a team.
func (s *Store) GetPreferences(ctx context.Context, teamID string) ([]Preference, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT team_id, channel, severity_filter, webhook_url
		FROM notification_preferences WHERE team_id = ? ORDER BY channel`, teamID)
	if err != nil {
		return nil, fmt.Errorf("querying preferences: %w", err)
	}
	defer rows.Close()

	prefs := []Preference{}
	for rows.Next() {
		var (
			p          Preference
			sevFilter  string
			webhookURL sql.NullString
		)
		if err := rows.Scan(&p.TeamID, &p.Channel, &sevFilter, &webhookURL); err != nil {
			return nil, fmt.Errorf("scanning preference: %w", err)
		}
		p.SeverityFilter = Severity(sevFilter)
		p.WebhookURL = webhookURL.String
		prefs = append(prefs, p)
	}
	return prefs, rows.Err()
}

// scanner is implemented by both *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

func scanInto(sc scanner) (*Notification, error) {
	var (
		n               Notification
		ntype, severity string
		teamsJSON       string
		delivered       int
		ts              string
	)

	err := sc.Scan(&n.ID, &ntype, &severity, &n.Title, &n.Message,
		&n.MemberID, &n.ClaimID, &teamsJSON, &delivered, &ts)
	if err != nil {
		return nil, err
	}

	n.Type = NotificationType(ntype)
	n.Severity = Severity(severity)
	n.Delivered = delivered != 0

	if t, parseErr := time.Parse(time.DateTime, ts); parseErr == nil {
		n.CreatedAt = t
	} else if t, parseErr := time.Parse(time.RFC3339, ts); parseErr == nil {
		n.CreatedAt = t
	}

	if err := json.Unmarshal([]byte(teamsJSON), &n.Teams); err != nil {
		n.Teams = nil
	}
	return &n, nil
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
