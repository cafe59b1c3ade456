package ledger

import (
	"context"
	"fmt"
	"strings"

	"github.com/ziadkadry99/claimdesk/internal/audit"
	"github.com/ziadkadry99/claimdesk/internal/claims"
)

// RecordReview writes the audit entries for a completed review. Audit
// failures never undo the review, so errors are returned for logging only.
func RecordReview(ctx context.Context, auditLog audit.Logger, req ReviewRequest, res *ReviewResult) error {
	err := auditLog.Log(ctx, audit.Entry{
		ActorType:     audit.ActorOperator,
		ActorID:       req.Reviewer,
		Action:        audit.ActionClaimReviewed,
		MemberID:      req.MemberID,
		ClaimID:       req.ClaimID,
		Summary:       fmt.Sprintf("Claim %s reviewed: %s", req.ClaimID, res.Claim.Status),
		Detail:        req.Notes,
		PreviousValue: string(res.PreviousStatus),
		NewValue:      string(res.Claim.Status),
	})
	if err != nil {
		return err
	}
	if len(res.Usage.Applied) > 0 {
		return auditLog.Log(ctx, audit.Entry{
			ActorType: audit.ActorOperator,
			ActorID:   req.Reviewer,
			Action:    audit.ActionUsageApplied,
			MemberID:  req.MemberID,
			ClaimID:   req.ClaimID,
			Summary:   "Deferred usage applied: " + describeUpdates(res.Usage.Applied),
		})
	}
	return nil
}

func describeUpdates(updates []claims.DeferredUpdate) string {
	parts := make([]string, 0, len(updates))
	for _, u := range updates {
		parts = append(parts, fmt.Sprintf("%s +%g", u.Field, u.Increment))
	}
	return strings.Join(parts, ", ")
}
