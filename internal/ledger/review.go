package ledger

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/ziadkadry99/claimdesk/internal/claims"
)

var reviewStatuses = map[claims.Decision]bool{
	claims.Approved:          true,
	claims.PartiallyApproved: true,
	claims.Rejected:          true,
}

// Review records an operator's verdict on a claim. The claim's deferred
// usage updates are swapped out and, for paying verdicts, applied inside
// the same transaction that records the status, so they reach the ledger
// exactly once no matter how many reviews race. A paying verdict whose
// updates would pass an annual maximum fails with ErrLimitExceeded and
// leaves the claim pending.
func (s *Store) Review(ctx context.Context, req ReviewRequest) (*ReviewResult, error) {
	if strings.TrimSpace(req.Reviewer) == "" {
		return nil, fmt.Errorf("%w: reviewer is required", ErrInvalidReview)
	}
	if !reviewStatuses[req.Status] {
		return nil, fmt.Errorf("%w: status %q", ErrInvalidReview, req.Status)
	}
	if req.Payout != nil && *req.Payout < 0 {
		return nil, fmt.Errorf("%w: negative payout", ErrInvalidReview)
	}

	unlock, err := s.LockMember(ctx, req.MemberID)
	if err != nil {
		return nil, err
	}
	defer unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	rec, err := s.getClaim(ctx, tx, req.MemberID, req.ClaimID)
	if err != nil {
		return nil, err
	}
	if rec.ReviewedBy != "" {
		return nil, fmt.Errorf("%w: %s by %s", ErrAlreadyReviewed, rec.ClaimID, rec.ReviewedBy)
	}

	previous := rec.Status
	deferred := rec.DeferredUpdates
	approved := rec.ApprovedAmount
	if approved == 0 {
		approved = rec.AIPayout
	}
	if req.Payout != nil {
		approved = *req.Payout
	}
	if !req.Status.Pays() {
		approved = 0
	}
	reviewedAt := s.now().UTC().Truncate(time.Second)

	res, err := tx.ExecContext(ctx, `
		UPDATE claims SET status = ?, approved_amount = ?, reviewed_by = ?, reviewed_at = ?,
			reviewer_notes = ?, deferred_usage_updates = '[]'
		WHERE member_id = ? AND claim_id = ? AND reviewed_by = ''`,
		string(req.Status), approved, req.Reviewer, reviewedAt.Format(time.RFC3339),
		req.Notes, req.MemberID, req.ClaimID)
	if err != nil {
		return nil, fmt.Errorf("updating claim %s: %w", req.ClaimID, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return nil, fmt.Errorf("%w: %s", ErrAlreadyReviewed, req.ClaimID)
	}

	applied := ApplyResult{Applied: []claims.DeferredUpdate{}}
	if req.Status.Pays() && len(deferred) > 0 {
		if applied, err = s.applyAll(ctx, tx, req.MemberID, deferred); err != nil {
			return nil, err
		}
		// Another claim reviewed first may have used the remaining allowance.
		if len(applied.Skipped) > 0 {
			return nil, fmt.Errorf("%w: %s for claim %s", ErrLimitExceeded,
				describeUpdates(applied.Skipped), req.ClaimID)
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("committing review: %w", err)
	}

	rec.Status = req.Status
	rec.ApprovedAmount = approved
	rec.ReviewedBy = req.Reviewer
	rec.ReviewedAt = &reviewedAt
	rec.ReviewerNotes = req.Notes
	rec.DeferredUpdates = []claims.DeferredUpdate{}

	return &ReviewResult{Claim: *rec, PreviousStatus: previous, Usage: applied}, nil
}
