package db

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"
)

// DB wraps a sql.DB with claimdesk-specific helpers.
type DB struct {
	*sql.DB
	path string
}

// Open creates or opens a SQLite database at the given path.
func Open(path string) (*DB, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("creating database directory: %w", err)
	}

	sqlDB, err := sql.Open("sqlite", path+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)")
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	if err := sqlDB.Ping(); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}

	d := &DB{DB: sqlDB, path: path}
	if err := d.migrate(); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	return d, nil
}

// OpenMemory creates an in-memory SQLite database (useful for testing).
// Every pooled connection would otherwise see its own empty database, so
// the pool is pinned to a single connection.
func OpenMemory() (*DB, error) {
	sqlDB, err := sql.Open("sqlite", ":memory:?_pragma=foreign_keys(1)")
	if err != nil {
		return nil, fmt.Errorf("opening in-memory database: %w", err)
	}
	sqlDB.SetMaxOpenConns(1)

	d := &DB{DB: sqlDB, path: ":memory:"}
	if err := d.migrate(); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	return d, nil
}

// Path returns the file the database was opened from.
func (d *DB) Path() string { return d.path }

// migrate runs all schema migrations.
func (d *DB) migrate() error {
	_, err := d.Exec(schema)
	return err
}

// schema contains the full database schema. New tables are added here.
const schema = `
CREATE TABLE IF NOT EXISTS members (
    member_id TEXT PRIMARY KEY,
    first_name TEXT NOT NULL DEFAULT '',
    last_name TEXT NOT NULL DEFAULT '',
    email TEXT NOT NULL DEFAULT '',
    scheme_name TEXT NOT NULL DEFAULT '',
    policy_start_date TEXT NOT NULL,
    status TEXT NOT NULL DEFAULT 'Active'
);

CREATE TABLE IF NOT EXISTS usage_ledger (
    member_id TEXT PRIMARY KEY REFERENCES members(member_id) ON DELETE CASCADE,
    gp_visits INTEGER NOT NULL DEFAULT 0 CHECK(gp_visits >= 0),
    consultant_visits INTEGER NOT NULL DEFAULT 0 CHECK(consultant_visits >= 0),
    prescriptions INTEGER NOT NULL DEFAULT 0 CHECK(prescriptions >= 0),
    dental_optical INTEGER NOT NULL DEFAULT 0 CHECK(dental_optical >= 0),
    therapy_sessions INTEGER NOT NULL DEFAULT 0 CHECK(therapy_sessions >= 0),
    scans INTEGER NOT NULL DEFAULT 0 CHECK(scans >= 0),
    hospital_days INTEGER NOT NULL DEFAULT 0 CHECK(hospital_days >= 0),
    quarterly_accumulated_receipts REAL NOT NULL DEFAULT 0 CHECK(quarterly_accumulated_receipts >= 0),
    maternity_claimed INTEGER NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS claims (
    claim_id TEXT PRIMARY KEY,
    member_id TEXT NOT NULL REFERENCES members(member_id) ON DELETE CASCADE,
    seq INTEGER NOT NULL,
    treatment_type TEXT NOT NULL DEFAULT '',
    treatment_date TEXT NOT NULL DEFAULT '',
    practitioner_name TEXT NOT NULL DEFAULT '',
    claimed_amount REAL NOT NULL DEFAULT 0,
    approved_amount REAL NOT NULL DEFAULT 0,
    status TEXT NOT NULL,
    submitted_date TEXT NOT NULL DEFAULT '',
    ai_recommendation TEXT NOT NULL DEFAULT '',
    ai_reasoning TEXT NOT NULL DEFAULT '',
    ai_confidence REAL NOT NULL DEFAULT 0,
    ai_payout_amount REAL NOT NULL DEFAULT 0,
    ai_flags TEXT NOT NULL DEFAULT '[]',
    deferred_usage_updates TEXT NOT NULL DEFAULT '[]',
    reviewed_by TEXT NOT NULL DEFAULT '',
    reviewed_at TEXT,
    reviewer_notes TEXT NOT NULL DEFAULT ''
);

CREATE INDEX IF NOT EXISTS idx_claims_member ON claims(member_id, seq);
CREATE INDEX IF NOT EXISTS idx_claims_status ON claims(status);

CREATE TABLE IF NOT EXISTS chat_sessions (
    id TEXT PRIMARY KEY,
    member_id TEXT NOT NULL DEFAULT '',
    last_claim_context TEXT,
    created_at DATETIME NOT NULL DEFAULT (datetime('now')),
    updated_at DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS chat_messages (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    session_id TEXT NOT NULL REFERENCES chat_sessions(id) ON DELETE CASCADE,
    role TEXT NOT NULL CHECK(role IN ('user','assistant')),
    content TEXT NOT NULL,
    created_at DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE INDEX IF NOT EXISTS idx_chat_messages_session ON chat_messages(session_id, id);

CREATE TABLE IF NOT EXISTS audit_entries (
    id TEXT PRIMARY KEY,
    timestamp DATETIME NOT NULL DEFAULT (datetime('now')),
    actor_type TEXT NOT NULL CHECK(actor_type IN ('customer','operator','system')),
    actor_id TEXT NOT NULL,
    action TEXT NOT NULL,
    member_id TEXT NOT NULL DEFAULT '',
    claim_id TEXT NOT NULL DEFAULT '',
    summary TEXT NOT NULL DEFAULT '',
    detail TEXT NOT NULL DEFAULT '',
    session_id TEXT,
    previous_value TEXT,
    new_value TEXT
);

CREATE INDEX IF NOT EXISTS idx_audit_timestamp ON audit_entries(timestamp);
CREATE INDEX IF NOT EXISTS idx_audit_member ON audit_entries(member_id);
CREATE INDEX IF NOT EXISTS idx_audit_action ON audit_entries(action);

CREATE TABLE IF NOT EXISTS notifications (
    id TEXT PRIMARY KEY,
    type TEXT NOT NULL,
    severity TEXT NOT NULL CHECK(severity IN ('info','warning','critical')),
    title TEXT NOT NULL,
    message TEXT NOT NULL DEFAULT '',
    member_id TEXT NOT NULL DEFAULT '',
    claim_id TEXT NOT NULL DEFAULT '',
    teams TEXT NOT NULL DEFAULT '[]',
    delivered INTEGER NOT NULL DEFAULT 0,
    created_at DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE INDEX IF NOT EXISTS idx_notifications_delivered ON notifications(delivered);
CREATE INDEX IF NOT EXISTS idx_notifications_member ON notifications(member_id);

CREATE TABLE IF NOT EXISTS notification_preferences (
    team_id TEXT NOT NULL,
    channel TEXT NOT NULL,
    severity_filter TEXT NOT NULL DEFAULT 'info',
    webhook_url TEXT,
    PRIMARY KEY (team_id, channel)
);
`
