package audit

import "time"

// ActorType identifies who performed an action.
type ActorType string

const (
	ActorCustomer ActorType = "customer"
	ActorOperator ActorType = "operator"
	ActorSystem   ActorType = "system"
)

// Action describes what was done.
type Action string

const (
	ActionClaimAdjudicated Action = "claim_adjudicated"
	ActionClaimDeferred    Action = "claim_deferred"
	ActionUsageApplied     Action = "usage_applied"
	ActionUsageSkipped     Action = "usage_skipped"
	ActionClaimReviewed    Action = "claim_reviewed"
	ActionFollowUpAnswered Action = "follow_up_answered"
	ActionMembersSeeded    Action = "members_seeded"
)

// Entry is a single audit trail record.
type Entry struct {
	ID            string    `json:"id"`
	Timestamp     time.Time `json:"timestamp"`
	ActorType     ActorType `json:"actor_type"`
	ActorID       string    `json:"actor_id"`
	Action        Action    `json:"action"`
	MemberID      string    `json:"member_id,omitempty"`
	ClaimID       string    `json:"claim_id,omitempty"`
	Summary       string    `json:"summary"`
	Detail        string    `json:"detail,omitempty"`
	SessionID     string    `json:"session_id,omitempty"`
	PreviousValue string    `json:"previous_value,omitempty"`
	NewValue      string    `json:"new_value,omitempty"`
}
