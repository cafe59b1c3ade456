// Package sessions keeps per-session chat history and the context of the
// most recent claim decision so follow-up questions can be answered
// without re-running the pipeline.
package sessions

import (
	"errors"
	"time"

	"github.com/ziadkadry99/claimdesk/internal/claims"
)

var (
	ErrEmptyMessage    = errors.New("message is empty")
	ErrInvalidRole     = errors.New("invalid message role")
	ErrSessionNotFound = errors.New("session not found")
)

// Message roles.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Message is one entry of a session's history.
type Message struct {
	Role      string    `json:"role"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
}

// ClaimContext is the snapshot of the last decision made in a session.
type ClaimContext struct {
	ClaimID    string           `json:"claim_id"`
	MemberID   string           `json:"member_id"`
	MemberName string           `json:"member_name,omitempty"`
	Scheme     string           `json:"scheme_name,omitempty"`
	Decision   claims.Decision  `json:"decision"`
	Reasoning  string           `json:"reasoning"`
	Payout     float64          `json:"payout_amount"`
	Flags      []claims.Flag    `json:"flags"`
	NeedsInfo  []string         `json:"needs_info,omitempty"`
	Route      claims.Route     `json:"route,omitempty"`
	Document   *claims.Document `json:"claim_document,omitempty"`
	DecidedAt  time.Time        `json:"decided_at"`
}

// Session is a conversation keyed by id.
type Session struct {
	ID               string        `json:"session_id"`
	MemberID         string        `json:"member_id,omitempty"`
	Messages         []Message     `json:"messages"`
	LastClaimContext *ClaimContext `json:"last_claim_context,omitempty"`
	CreatedAt        time.Time     `json:"created_at"`
	UpdatedAt        time.Time     `json:"updated_at"`
}

// HasContext reports whether the session has history and a prior decision
// to refer back to.
func (s *Session) HasContext() bool {
	return s != nil && len(s.Messages) > 0 && s.LastClaimContext != nil
}
