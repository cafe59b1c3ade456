package notifications

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/ziadkadry99/claimdesk/internal/claims"
)

const queueSize = 64

// Digest summarises notifications for a team over a time period.
type Digest struct {
	TeamID        string                   `json:"team_id"`
	Period        string                   `json:"period"`
	Counts        map[NotificationType]int `json:"counts"`
	Notifications []Notification           `json:"notifications"`
	Summary       string                   `json:"summary"`
}

// Dispatcher creates notifications and delivers them to webhook
// subscribers. Delivery happens on the Run loop so callers never wait on
// a webhook.
type Dispatcher struct {
	store  *Store
	client *http.Client
	logger *zap.Logger
	queue  chan Notification
}

// NewDispatcher creates a Dispatcher backed by the given store.
func NewDispatcher(store *Store, logger *zap.Logger) *Dispatcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Dispatcher{
		store: store,
		client: &http.Client{
			Timeout: 10 * time.Second,
		},
		logger: logger,
		queue:  make(chan Notification, queueSize),
	}
}

// ForClaim returns the alerts a recorded claim raises. Claims that need
// no operator attention raise none.
func ForClaim(memberID, memberName string, rec claims.ClaimRecord) []Notification {
	var out []Notification
	base := func(t NotificationType, sev Severity, title, msg string, teams ...string) Notification {
		return Notification{
			Type: t, Severity: sev, Title: title, Message: msg,
			MemberID: memberID, ClaimID: rec.ClaimID, Teams: teams,
		}
	}

	if rec.Status == claims.Pending {
		out = append(out, base(TypeClaimPending, SeverityInfo,
			fmt.Sprintf("Claim %s awaiting review", rec.ClaimID),
			fmt.Sprintf("%s submitted %s for €%.2f. AI recommends %s (€%.2f).",
				memberName, orUnknown(string(rec.TreatmentType)), rec.ClaimedAmount, rec.AIRecommendation, rec.AIPayout),
			TeamClaimsOps))
	}
	if claims.HasFlag(rec.AIFlags, claims.FlagLegalReview) {
		out = append(out, base(TypeLegalReview, SeverityCritical,
			fmt.Sprintf("Claim %s needs legal review", rec.ClaimID),
			fmt.Sprintf("%s reported an accident or solicitor involvement on %s.", memberName, rec.TreatmentDate),
			TeamLegal, TeamClaimsOps))
	}
	if claims.HasFlag(rec.AIFlags, claims.FlagMaternityUpdate) {
		out = append(out, base(TypeMaternityUpdate, SeverityWarning,
			fmt.Sprintf("Maternity benefit claimed on %s", rec.ClaimID),
			fmt.Sprintf("%s claimed the once-per-year maternity benefit. Confirm the member record is updated.", memberName),
			TeamClaimsOps))
	}
	if claims.HasFlag(rec.AIFlags, claims.FlagDuplicate) {
		out = append(out, base(TypeDuplicateSuspected, SeverityWarning,
			fmt.Sprintf("Possible duplicate on %s", rec.ClaimID),
			fmt.Sprintf("%s resubmitted a receipt from %s at %s for €%.2f.",
				memberName, rec.TreatmentDate, orUnknown(rec.PractitionerName), rec.ClaimedAmount),
			TeamClaimsOps))
	}
	return out
}

// NotifyClaim persists and queues the alerts for a recorded claim.
func (d *Dispatcher) NotifyClaim(ctx context.Context, memberID, memberName string, rec claims.ClaimRecord) error {
	for _, n := range ForClaim(memberID, memberName, rec) {
		if err := d.Dispatch(ctx, n); err != nil {
			return err
		}
	}
	return nil
}

// Dispatch persists a notification and queues it for delivery. A full
// queue leaves the notification pending; Run picks it up on restart.
func (d *Dispatcher) Dispatch(ctx context.Context, n Notification) error {
	if err := d.store.Create(ctx, &n); err != nil {
		return fmt.Errorf("creating notification: %w", err)
	}
	select {
	case d.queue <- n:
	default:
		d.logger.Warn("notification queue full, left pending", zap.String("id", n.ID))
	}
	return nil
}

// Run delivers queued notifications until ctx is cancelled. Anything left
// pending by an earlier run is redelivered first.
func (d *Dispatcher) Run(ctx context.Context) error {
	pending, err := d.store.GetPending(ctx)
	if err != nil {
		return fmt.Errorf("loading pending notifications: %w", err)
	}
	for i := len(pending) - 1; i >= 0; i-- {
		d.deliver(ctx, pending[i])
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case n := <-d.queue:
			d.deliver(ctx, n)
		}
	}
}

// deliver posts n to every matching webhook and marks it delivered once
// at least one accepted it.
func (d *Dispatcher) deliver(ctx context.Context, n Notification) {
	payload, err := json.Marshal(n)
	if err != nil {
		d.logger.Error("encoding notification", zap.String("id", n.ID), zap.Error(err))
		return
	}

	delivered := false
	seen := map[string]bool{}
	for _, teamID := range n.Teams {
		prefs, err := d.store.GetPreferences(ctx, teamID)
		if err != nil {
			d.logger.Warn("loading preferences", zap.String("team", teamID), zap.Error(err))
			continue
		}
		for _, pref := range prefs {
			if pref.WebhookURL == "" || seen[pref.WebhookURL] {
				continue
			}
			if !severityMatches(n.Severity, pref.SeverityFilter) {
				continue
			}
			seen[pref.WebhookURL] = true
			if err := d.SendWebhook(ctx, pref.WebhookURL, payload); err != nil {
				d.logger.Warn("webhook delivery failed",
					zap.String("id", n.ID), zap.String("team", teamID), zap.Error(err))
				continue
			}
			delivered = true
		}
	}

	if delivered {
		if err := d.store.MarkDelivered(ctx, n.ID); err != nil {
			d.logger.Warn("marking delivered", zap.String("id", n.ID), zap.Error(err))
		}
	}
}

// GenerateDigest builds a summary of notifications for a team since the given time.
func (d *Dispatcher) GenerateDigest(ctx context.Context, teamID string, since time.Time) (*Digest, error) {
	all, err := d.store.List(ctx, ListFilter{Since: since})
	if err != nil {
		return nil, fmt.Errorf("listing notifications for digest: %w", err)
	}

	matched := []Notification{}
	counts := map[NotificationType]int{}
	for _, n := range all {
		for _, t := range n.Teams {
			if t == teamID {
				matched = append(matched, n)
				counts[n.Type]++
				break
			}
		}
	}

	period := fmt.Sprintf("%s to %s",
		since.UTC().Format(time.RFC3339),
		time.Now().UTC().Format(time.RFC3339))

	summary := fmt.Sprintf("%d notification(s) for team %s", len(matched), teamID)
	if n := counts[TypeClaimPending]; n > 0 {
		summary += fmt.Sprintf(", %d claim(s) awaiting review", n)
	}

	return &Digest{
		TeamID:        teamID,
		Period:        period,
		Counts:        counts,
		Notifications: matched,
		Summary:       summary,
	}, nil
}

// SendWebhook POSTs payload to the given URL.
func (d *Dispatcher) SendWebhook(ctx context.Context, url string, payload []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("creating webhook request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := d.client.Do(req)
	if err != nil {
		return fmt.Errorf("sending webhook: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return fmt.Errorf("webhook returned status %d", resp.StatusCode)
	}
	return nil
}

// severityMatches returns true if the notification severity meets or exceeds the filter threshold.
func severityMatches(actual, filter Severity) bool {
	levels := map[Severity]int{
		SeverityInfo:     0,
		SeverityWarning:  1,
		SeverityCritical: 2,
	}
	return levels[actual] >= levels[filter]
}

func orUnknown(s string) string {
	if s == "" {
		return "unknown"
	}
	return s
}
