package ledger

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/ziadkadry99/claimdesk/internal/claims"
	"github.com/ziadkadry99/claimdesk/internal/db"
	"github.com/ziadkadry99/claimdesk/internal/keylock"
	"github.com/ziadkadry99/claimdesk/internal/rules"
)

// Store persists members, their usage ledger and claim history.
//
// Ledger mutations for one member must be serialised: callers that read a
// member snapshot and then write based on it hold LockMember for the whole
// read-decide-write span. Review takes the lock itself.
type Store struct {
	db     *db.DB
	limits map[claims.Field]int
	locks  *keylock.Map
	now    func() time.Time
}

// NewStore creates a Store backed by the given database. Annual counter
// ceilings come from policy.
func NewStore(database *db.DB, policy rules.Policy) *Store {
	return &Store{
		db:     database,
		limits: policy.AnnualMaximums(),
		locks:  keylock.New(),
		now:    time.Now,
	}
}

// SetClock overrides the time source used for review timestamps and queue
// scoring.
func (s *Store) SetClock(now func() time.Time) { s.now = now }

// LockMember serialises ledger work for one member.
func (s *Store) LockMember(ctx context.Context, memberID string) (func(), error) {
	return s.locks.Lock(ctx, "member:"+memberID)
}

// execer is implemented by both *sql.DB and *sql.Tx.
type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// GetMember returns a full snapshot: profile, usage and claim history.
func (s *Store) GetMember(ctx context.Context, memberID string) (*claims.Member, error) {
	var (
		m           claims.Member
		policyStart string
		maternity   int
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT m.member_id, m.first_name, m.last_name, m.email, m.scheme_name, m.policy_start_date, m.status,
		       u.gp_visits, u.consultant_visits, u.prescriptions, u.dental_optical, u.therapy_sessions,
		       u.scans, u.hospital_days, u.quarterly_accumulated_receipts, u.maternity_claimed
		FROM members m JOIN usage_ledger u ON u.member_id = m.member_id
		WHERE m.member_id = ?`, memberID,
	).Scan(&m.ID, &m.FirstName, &m.LastName, &m.Email, &m.Scheme, &policyStart, &m.Status,
		&m.Usage.GPVisits, &m.Usage.ConsultantVisits, &m.Usage.Prescriptions, &m.Usage.DentalOptical,
		&m.Usage.TherapySessions, &m.Usage.Scans, &m.Usage.HospitalDays, &m.Usage.QuarterlyReceipts, &maternity)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrMemberNotFound, memberID)
	}
	if err != nil {
		return nil, fmt.Errorf("getting member %s: %w", memberID, err)
	}
	m.Usage.MaternityClaimed = maternity != 0
	if m.PolicyStart, err = claims.ParseDate(policyStart); err != nil {
		return nil, fmt.Errorf("member %s: %w", memberID, err)
	}

	if m.Claims, err = s.listClaims(ctx, s.db, memberID); err != nil {
		return nil, err
	}
	return &m, nil
}

// ListMembers returns summaries of every member ordered by id.
func (s *Store) ListMembers(ctx context.Context) ([]MemberSummary, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT m.member_id, m.first_name, m.last_name, m.scheme_name, m.policy_start_date, m.status,
		       (SELECT COUNT(*) FROM claims c WHERE c.member_id = m.member_id)
		FROM members m ORDER BY m.member_id`)
	if err != nil {
		return nil, fmt.Errorf("listing members: %w", err)
	}
	defer rows.Close()

	var out []MemberSummary
	for rows.Next() {
		var (
			ms          MemberSummary
			first, last string
			start       string
		)
		if err := rows.Scan(&ms.MemberID, &first, &last, &ms.Scheme, &start, &ms.Status, &ms.ClaimCount); err != nil {
			return nil, fmt.Errorf("scanning member: %w", err)
		}
		ms.Name = (&claims.Member{FirstName: first, LastName: last}).FullName()
		ms.PolicyStart, _ = claims.ParseDate(start)
		out = append(out, ms)
	}
	return out, rows.Err()
}

// SaveMember creates or replaces a member, their usage ledger and their
// claim history. Used for seeding fixtures.
func (s *Store) SaveMember(ctx context.Context, m claims.Member) error {
	if m.ID == "" {
		return fmt.Errorf("member id is required")
	}
	if m.PolicyStart.IsZero() {
		return fmt.Errorf("member %s: policy_start_date is required", m.ID)
	}
	if m.Status == "" {
		m.Status = "Active"
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO members (member_id, first_name, last_name, email, scheme_name, policy_start_date, status)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(member_id) DO UPDATE SET
			first_name = excluded.first_name, last_name = excluded.last_name, email = excluded.email,
			scheme_name = excluded.scheme_name, policy_start_date = excluded.policy_start_date,
			status = excluded.status`,
		m.ID, m.FirstName, m.LastName, m.Email, m.Scheme, m.PolicyStart.String(), m.Status)
	if err != nil {
		return fmt.Errorf("saving member %s: %w", m.ID, err)
	}

	u := m.Usage
	_, err = tx.ExecContext(ctx, `
		INSERT INTO usage_ledger (member_id, gp_visits, consultant_visits, prescriptions, dental_optical,
			therapy_sessions, scans, hospital_days, quarterly_accumulated_receipts, maternity_claimed)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(member_id) DO UPDATE SET
			gp_visits = excluded.gp_visits, consultant_visits = excluded.consultant_visits,
			prescriptions = excluded.prescriptions, dental_optical = excluded.dental_optical,
			therapy_sessions = excluded.therapy_sessions, scans = excluded.scans,
			hospital_days = excluded.hospital_days,
			quarterly_accumulated_receipts = excluded.quarterly_accumulated_receipts,
			maternity_claimed = excluded.maternity_claimed`,
		m.ID, u.GPVisits, u.ConsultantVisits, u.Prescriptions, u.DentalOptical,
		u.TherapySessions, u.Scans, u.HospitalDays, u.QuarterlyReceipts, boolInt(u.MaternityClaimed))
	if err != nil {
		return fmt.Errorf("saving usage for %s: %w", m.ID, err)
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM claims WHERE member_id = ?`, m.ID); err != nil {
		return fmt.Errorf("clearing claims for %s: %w", m.ID, err)
	}
	for _, c := range m.Claims {
		if err := s.insertClaim(ctx, tx, m.ID, c); err != nil {
			return err
		}
	}

	return tx.Commit()
}

// IncrementUsage adds amount to one ledger field. Counters never pass
// their annual maximum, receipts only grow, and maternity_claimed flips to
// true at most once.
func (s *Store) IncrementUsage(ctx context.Context, memberID string, field claims.Field, amount float64) error {
	return s.increment(ctx, s.db, memberID, claims.DeferredUpdate{Field: field, Increment: amount})
}

// ApplyUpdates applies a list of ledger deltas in one transaction. Deltas
// that would break a ceiling are skipped and reported rather than failing
// the batch.
func (s *Store) ApplyUpdates(ctx context.Context, memberID string, updates []claims.DeferredUpdate) (ApplyResult, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return ApplyResult{}, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	res, err := s.applyAll(ctx, tx, memberID, updates)
	if err != nil {
		return ApplyResult{}, err
	}
	if err := tx.Commit(); err != nil {
		return ApplyResult{}, fmt.Errorf("committing usage: %w", err)
	}
	return res, nil
}

func (s *Store) applyAll(ctx context.Context, ex execer, memberID string, updates []claims.DeferredUpdate) (ApplyResult, error) {
	res := ApplyResult{Applied: []claims.DeferredUpdate{}}
	for _, u := range updates {
		err := s.increment(ctx, ex, memberID, u)
		switch {
		case err == nil:
			res.Applied = append(res.Applied, u)
		case errors.Is(err, ErrLimitExceeded):
			res.Skipped = append(res.Skipped, u)
		default:
			return ApplyResult{}, err
		}
	}
	return res, nil
}

func (s *Store) increment(ctx context.Context, ex execer, memberID string, u claims.DeferredUpdate) error {
	var (
		result sql.Result
		err    error
	)
	switch u.Field {
	case claims.FieldMaternityClaimed:
		result, err = ex.ExecContext(ctx,
			`UPDATE usage_ledger SET maternity_claimed = 1 WHERE member_id = ? AND maternity_claimed = 0`, memberID)
	case claims.FieldQuarterlyReceipts:
		if u.Increment <= 0 {
			return fmt.Errorf("%w: %s %v", ErrInvalidAmount, u.Field, u.Increment)
		}
		result, err = ex.ExecContext(ctx,
			`UPDATE usage_ledger SET quarterly_accumulated_receipts = quarterly_accumulated_receipts + ? WHERE member_id = ?`,
			u.Increment, memberID)
	default:
		limit, ok := s.limits[u.Field]
		if !ok {
			return fmt.Errorf("%w: %q", ErrUnknownField, u.Field)
		}
		n := int(u.Increment)
		if n <= 0 || float64(n) != u.Increment {
			return fmt.Errorf("%w: %s %v", ErrInvalidAmount, u.Field, u.Increment)
		}
		// Column name is whitelisted by the limits map above.
		query := fmt.Sprintf(`UPDATE usage_ledger SET %[1]s = %[1]s + ? WHERE member_id = ? AND %[1]s + ? <= ?`, u.Field)
		result, err = ex.ExecContext(ctx, query, n, memberID, n, limit)
	}
	if err != nil {
		return fmt.Errorf("incrementing %s for %s: %w", u.Field, memberID, err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("incrementing %s for %s: %w", u.Field, memberID, err)
	}
	if affected > 0 {
		return nil
	}

	var one int
	err = ex.QueryRowContext(ctx, `SELECT 1 FROM usage_ledger WHERE member_id = ?`, memberID).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%w: %s", ErrMemberNotFound, memberID)
	}
	if err != nil {
		return fmt.Errorf("checking member %s: %w", memberID, err)
	}
	return fmt.Errorf("%w: %s", ErrLimitExceeded, u.Field)
}

// AppendClaim adds a record to the end of the member's claim history.
func (s *Store) AppendClaim(ctx context.Context, memberID string, rec claims.ClaimRecord) error {
	var one int
	err := s.db.QueryRowContext(ctx, `SELECT 1 FROM members WHERE member_id = ?`, memberID).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%w: %s", ErrMemberNotFound, memberID)
	}
	if err != nil {
		return fmt.Errorf("checking member %s: %w", memberID, err)
	}
	return s.insertClaim(ctx, s.db, memberID, rec)
}

func (s *Store) insertClaim(ctx context.Context, ex execer, memberID string, c claims.ClaimRecord) error {
	if c.ClaimID == "" {
		return fmt.Errorf("claim id is required")
	}
	flags, err := json.Marshal(nonNilFlags(c.AIFlags))
	if err != nil {
		return fmt.Errorf("marshalling flags: %w", err)
	}
	deferred, err := json.Marshal(nonNilUpdates(c.DeferredUpdates))
	if err != nil {
		return fmt.Errorf("marshalling deferred updates: %w", err)
	}
	var reviewedAt sql.NullString
	if c.ReviewedAt != nil {
		reviewedAt = sql.NullString{String: c.ReviewedAt.UTC().Format(time.RFC3339), Valid: true}
	}

	_, err = ex.ExecContext(ctx, `
		INSERT INTO claims (
			claim_id, member_id, seq, treatment_type, treatment_date, practitioner_name,
			claimed_amount, approved_amount, status, submitted_date,
			ai_recommendation, ai_reasoning, ai_confidence, ai_payout_amount, ai_flags,
			deferred_usage_updates, reviewed_by, reviewed_at, reviewer_notes
		) VALUES (?, ?, (SELECT COALESCE(MAX(seq), 0) + 1 FROM claims WHERE member_id = ?),
			?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		c.ClaimID, memberID, memberID, string(c.TreatmentType), c.TreatmentDate.String(), c.PractitionerName,
		c.ClaimedAmount, c.ApprovedAmount, string(c.Status), c.SubmittedDate.String(),
		string(c.AIRecommendation), c.AIReasoning, c.AIConfidence, c.AIPayout, string(flags),
		string(deferred), c.ReviewedBy, reviewedAt, c.ReviewerNotes,
	)
	if err != nil {
		return fmt.Errorf("inserting claim %s: %w", c.ClaimID, err)
	}
	return nil
}

// ListClaims returns the member's claim history in submission order.
func (s *Store) ListClaims(ctx context.Context, memberID string) ([]claims.ClaimRecord, error) {
	return s.listClaims(ctx, s.db, memberID)
}

// GetClaim returns one claim of a member.
func (s *Store) GetClaim(ctx context.Context, memberID, claimID string) (*claims.ClaimRecord, error) {
	return s.getClaim(ctx, s.db, memberID, claimID)
}

const claimColumns = `claim_id, treatment_type, treatment_date, practitioner_name,
	claimed_amount, approved_amount, status, submitted_date,
	ai_recommendation, ai_reasoning, ai_confidence, ai_payout_amount, ai_flags,
	deferred_usage_updates, reviewed_by, reviewed_at, reviewer_notes`

func (s *Store) listClaims(ctx context.Context, ex execer, memberID string) ([]claims.ClaimRecord, error) {
	rows, err := ex.QueryContext(ctx,
		`SELECT `+claimColumns+` FROM claims WHERE member_id = ? ORDER BY seq`, memberID)
	if err != nil {
		return nil, fmt.Errorf("listing claims for %s: %w", memberID, err)
	}
	defer rows.Close()

	out := []claims.ClaimRecord{}
	for rows.Next() {
		c, err := scanClaim(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *c)
	}
	return out, rows.Err()
}

func (s *Store) getClaim(ctx context.Context, ex execer, memberID, claimID string) (*claims.ClaimRecord, error) {
	row := ex.QueryRowContext(ctx,
		`SELECT `+claimColumns+` FROM claims WHERE member_id = ? AND claim_id = ?`, memberID, claimID)
	c, err := scanClaim(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s/%s", ErrClaimNotFound, memberID, claimID)
	}
	return c, err
}

// scanner is implemented by both *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

func scanClaim(sc scanner) (*claims.ClaimRecord, error) {
	var (
		c                                  claims.ClaimRecord
		treatmentType, status, recommended string
		treatmentDate, submitted           string
		flagsJSON, deferredJSON            string
		reviewedAt                         sql.NullString
	)
	err := sc.Scan(&c.ClaimID, &treatmentType, &treatmentDate, &c.PractitionerName,
		&c.ClaimedAmount, &c.ApprovedAmount, &status, &submitted,
		&recommended, &c.AIReasoning, &c.AIConfidence, &c.AIPayout, &flagsJSON,
		&deferredJSON, &c.ReviewedBy, &reviewedAt, &c.ReviewerNotes)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scanning claim: %w", err)
	}

	c.TreatmentType = claims.TreatmentType(treatmentType)
	c.Status = claims.Decision(status)
	c.AIRecommendation = claims.Decision(recommended)
	c.TreatmentDate, _ = claims.ParseDate(treatmentDate)
	c.SubmittedDate, _ = claims.ParseDate(submitted)
	if err := json.Unmarshal([]byte(flagsJSON), &c.AIFlags); err != nil {
		return nil, fmt.Errorf("decoding flags of %s: %w", c.ClaimID, err)
	}
	if err := json.Unmarshal([]byte(deferredJSON), &c.DeferredUpdates); err != nil {
		return nil, fmt.Errorf("decoding deferred updates of %s: %w", c.ClaimID, err)
	}
	if reviewedAt.Valid {
		if t, err := time.Parse(time.RFC3339, reviewedAt.String); err == nil {
			c.ReviewedAt = &t
		}
	}
	return &c, nil
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func nonNilFlags(f []claims.Flag) []claims.Flag {
	if f == nil {
		return []claims.Flag{}
	}
	return f
}

func nonNilUpdates(u []claims.DeferredUpdate) []claims.DeferredUpdate {
	if u == nil {
		return []claims.DeferredUpdate{}
	}
	return u
}
