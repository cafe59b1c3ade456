package ledger

import (
	"errors"
	"time"

	"github.com/ziadkadry99/claimdesk/internal/claims"
)

var (
	ErrMemberNotFound  = errors.New("member not found")
	ErrClaimNotFound   = errors.New("claim not found")
	ErrUnknownField    = errors.New("unknown usage field")
	ErrLimitExceeded   = errors.New("usage increment exceeds annual maximum")
	ErrInvalidAmount   = errors.New("usage increment must be positive")
	ErrAlreadyReviewed = errors.New("claim already reviewed")
	ErrInvalidReview   = errors.New("invalid review")
)

// MemberSummary is the list view of a member.
type MemberSummary struct {
	MemberID    string      `json:"member_id"`
	Name        string      `json:"name"`
	Scheme      string      `json:"scheme_name"`
	PolicyStart claims.Date `json:"policy_start_date"`
	Status      string      `json:"status"`
	ClaimCount  int         `json:"claim_count"`
}

// ReviewRequest is an operator's verdict on a pending claim.
type ReviewRequest struct {
	MemberID string          `json:"member_id"`
	ClaimID  string          `json:"claim_id"`
	Reviewer string          `json:"reviewed_by"`
	Status   claims.Decision `json:"status"`
	Notes    string          `json:"reviewer_notes"`
	Payout   *float64        `json:"payout_amount,omitempty"`
}

// ApplyResult reports which deferred updates reached the ledger.
type ApplyResult struct {
	Applied []claims.DeferredUpdate `json:"applied"`
	Skipped []claims.DeferredUpdate `json:"skipped,omitempty"`
}

// ReviewResult is the claim after review plus the ledger effect.
type ReviewResult struct {
	Claim          claims.ClaimRecord `json:"claim"`
	PreviousStatus claims.Decision    `json:"previous_status"`
	Usage          ApplyResult        `json:"usage"`
}

// Priority ranks a claim in the operator queue.
type Priority struct {
	Score   int      `json:"score"`
	Level   string   `json:"level"`
	Reasons []string `json:"reasons"`
}

// QueueItem is a claim enriched with member context for the review queue.
type QueueItem struct {
	claims.ClaimRecord
	MemberID          string      `json:"member_id"`
	MemberName        string      `json:"member_name"`
	Scheme            string      `json:"scheme_name"`
	PolicyStart       claims.Date `json:"policy_start_date"`
	QuarterlyReceipts float64     `json:"q_accumulated_receipts"`
	Priority          Priority    `json:"priority"`
}

// MemberRisk scores how close a member is to their benefit ceilings.
type MemberRisk struct {
	MemberID   string `json:"member_id"`
	MemberName string `json:"member_name"`
	RiskScore  int    `json:"risk_score"`
	ClaimCount int    `json:"total_claims"`
}

// Analytics summarises the claim book.
type Analytics struct {
	TotalMembers int                          `json:"total_members"`
	TotalClaims  int                          `json:"total_claims"`
	ByStatus     map[claims.Decision]int      `json:"by_status"`
	TotalPayout  float64                      `json:"total_payout"`
	ByType       map[claims.TreatmentType]int `json:"claim_types"`
	MemberRisk   []MemberRisk                 `json:"member_risk_scores"`
	GeneratedAt  time.Time                    `json:"generated_at"`
}
