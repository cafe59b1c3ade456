package notifications

import "time"

// Severity indicates the importance of a notification.
type Severity string

const (
	SeverityInfo     Severity = "info"
	SeverityWarning  Severity = "warning"
	SeverityCritical Severity = "critical"
)

// NotificationType categorises the claim event that triggered the notification.
type NotificationType string

const (
	TypeClaimPending       NotificationType = "claim_pending"
	TypeLegalReview        NotificationType = "legal_review"
	TypeMaternityUpdate    NotificationType = "maternity_update"
	TypeDuplicateSuspected NotificationType = "duplicate_suspected"
)

// Teams that receive claim notifications.
const (
	TeamClaimsOps = "claims-ops"
	TeamLegal     = "legal"
)

// Notification is a single operator alert about a claim.
type Notification struct {
	ID        string           `json:"id"`
	Type      NotificationType `json:"type"`
	Severity  Severity         `json:"severity"`
	Title     string           `json:"title"`
	Message   string           `json:"message"`
	MemberID  string           `json:"member_id"`
	ClaimID   string           `json:"claim_id"`
	Teams     []string         `json:"teams"`
	Delivered bool             `json:"delivered"`
	CreatedAt time.Time        `json:"created_at"`
}

// Preference stores a team's webhook subscription.
type Preference struct {
	TeamID         string   `json:"team_id"`
	Channel        string   `json:"channel"`
	SeverityFilter Severity `json:"severity_filter"`
	WebhookURL     string   `json:"webhook_url,omitempty"`
}
