package adjudication

import (
	"github.com/ziadkadry99/claimdesk/internal/claims"
)

// Request is one message submitted to the pipeline.
type Request struct {
	MemberID  string           `json:"member_id"`
	Message   string           `json:"message"`
	Document  *claims.Document `json:"claim_document,omitempty"`
	Role      claims.Role      `json:"role"`
	SessionID string           `json:"session_id,omitempty"`
}

// Result is the pipeline's answer. Streamed stage events carry the same
// shape, filled in as far as the pipeline has got.
type Result struct {
	Decision         claims.Decision `json:"decision"`
	Reasoning        string          `json:"reasoning"`
	ReasoningHTML    string          `json:"reasoning_html,omitempty"`
	Payout           float64         `json:"payout_amount"`
	Flags            []claims.Flag   `json:"flags"`
	NeedsInfo        []string        `json:"needs_info"`
	Trace            []string        `json:"agent_trace"`
	SessionID        string          `json:"session_id"`
	ClaimID          string          `json:"claim_id,omitempty"`
	Route            claims.Route    `json:"route,omitempty"`
	AIRecommendation claims.Decision `json:"ai_recommendation,omitempty"`
	FollowUp         bool            `json:"follow_up"`
}

// Event types emitted while streaming.
const (
	EventStatus     = "status"
	EventNodeUpdate = "node_update"
	EventResult     = "result"
	EventError      = "error"
)

// Event is one streamed update.
type Event struct {
	Type  string `json:"type"`
	Stage string `json:"node,omitempty"`
	Error string `json:"error,omitempty"`
	Result
}

// outcome is a stage's verdict. An empty Decision means "keep going".
type outcome struct {
	Decision  claims.Decision
	Reasoning string
	Payout    float64
	Flags     []claims.Flag
	NeedsInfo []string
}

func (o outcome) terminal() bool { return o.Decision != "" }

// state is the request-scoped pipeline state. Trace is append-only.
type state struct {
	req       Request
	member    *claims.Member
	doc       *claims.Document
	route     claims.Route
	outcome   outcome
	trace     []string
	flags     []claims.Flag
	claimID   string
	aiVerdict claims.Decision

	// approvedDays is set by the hospital processor so the ledger delta
	// matches the days actually paid.
	approvedDays int
}

func (s *state) log(entries ...string) {
	s.trace = append(s.trace, entries...)
}

func (s *state) addFlags(flags ...claims.Flag) {
	for _, f := range flags {
		if !claims.HasFlag(s.flags, f) {
			s.flags = append(s.flags, f)
		}
	}
}

// snapshot renders the state as a Result without sharing slices.
func (s *state) snapshot() Result {
	r := Result{
		Decision:         s.outcome.Decision,
		Reasoning:        s.outcome.Reasoning,
		Payout:           s.outcome.Payout,
		Flags:            append([]claims.Flag{}, s.flags...),
		NeedsInfo:        append([]string{}, s.outcome.NeedsInfo...),
		Trace:            append([]string{}, s.trace...),
		SessionID:        s.req.SessionID,
		ClaimID:          s.claimID,
		Route:            s.route,
		AIRecommendation: s.aiVerdict,
	}
	return r
}
