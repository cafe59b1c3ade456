package adjudication

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/ziadkadry99/claimdesk/internal/audit"
	"github.com/ziadkadry99/claimdesk/internal/claims"
	"github.com/ziadkadry99/claimdesk/internal/rules"
	"github.com/ziadkadry99/claimdesk/internal/sessions"
)

const reviewNote = "Your claim has been submitted and is now with our claims team for review. " +
	"You will be notified once a final decision has been made."

// decide turns the upstream verdict into the final decision and commits
// it: claim history, ledger usage, session context and audit trail.
// Persistence failures are logged and traced but never change the
// decision or payout.
func (p *Pipeline) decide(ctx context.Context, st *state) (Stage, error) {
	o := st.outcome
	if !o.terminal() {
		o = outcome{Decision: claims.Approved, Reasoning: "All checks passed."}
	}
	st.aiVerdict = o.Decision
	aiPayout := o.Payout

	name := ""
	if st.member != nil {
		name = st.member.FullName()
	}
	reasoning := p.enhancer.Enhance(ctx, EnhanceInput{
		MemberName: name,
		Decision:   o.Decision,
		Payout:     o.Payout,
		Flags:      st.flags,
		Route:      st.route,
		Document:   st.doc,
		Reasoning:  o.Reasoning,
	})

	if o.Decision == claims.Approved && claims.HasFlag(st.flags, claims.FlagPendingThreshold) {
		o.Decision = claims.Pending
		reasoning += fmt.Sprintf("\n\n**Note:** Your accumulated receipts for this quarter are below the €%.0f quarterly "+
			"threshold. This claim is approved and will be paid once your receipts reach €%.0f.",
			p.policy.QuarterlyThreshold, p.policy.QuarterlyThreshold)
		st.log("Decision → Threshold not reached: payment held as PENDING")
	}

	var deltas []claims.DeferredUpdate
	if st.aiVerdict.Pays() && st.member != nil && st.doc != nil {
		deltas = usageDeltas(st)
	}

	customer := st.req.Role != claims.RoleOperator
	if customer && st.member != nil && o.Decision != claims.ActionRequired {
		st.log(fmt.Sprintf("Decision → AI recommendation %s held for operator review", st.aiVerdict))
		o.Decision = claims.Pending
		reasoning += "\n\n" + reviewNote
	}
	if customer && st.member != nil {
		reasoning = fmt.Sprintf("Hi %s, %s", st.member.FirstName, lowerFirst(reasoning))
	}

	st.outcome = outcome{
		Decision:  o.Decision,
		Reasoning: reasoning,
		Payout:    o.Payout,
		NeedsInfo: o.NeedsInfo,
	}
	st.log(fmt.Sprintf("Decision → Final: %s (AI recommendation: %s, payout €%.2f)", o.Decision, st.aiVerdict, o.Payout))

	// The request may be gone by now; writes already under way must land.
	wctx := context.WithoutCancel(ctx)
	if st.member != nil {
		st.claimID = newClaimID(p.now().Format("20060102150405"))
		p.commit(wctx, st, aiPayout, deltas, customer)
	}
	p.saveSession(wctx, st)
	return StageDone, nil
}

// usageDeltas lists the ledger increments a paid claim consumes. The
// category counter only moves when the outpatient processor checked it.
func usageDeltas(st *state) []claims.DeferredUpdate {
	var deltas []claims.DeferredUpdate
	if st.route == claims.RouteOutpatient {
		if b, ok := rules.OutpatientBenefit(st.doc.TreatmentType); ok {
			deltas = append(deltas, claims.DeferredUpdate{Field: b.Field, Increment: 1})
		}
	}
	if st.approvedDays > 0 {
		deltas = append(deltas, claims.DeferredUpdate{Field: claims.FieldHospitalDays, Increment: float64(st.approvedDays)})
	}
	if st.doc.TotalCost > 0 {
		deltas = append(deltas, claims.DeferredUpdate{Field: claims.FieldQuarterlyReceipts, Increment: st.doc.TotalCost})
	}
	if claims.HasFlag(st.flags, claims.FlagMaternityUpdate) {
		deltas = append(deltas, claims.DeferredUpdate{Field: claims.FieldMaternityClaimed, Increment: 1})
	}
	return deltas
}

func (p *Pipeline) commit(ctx context.Context, st *state, aiPayout float64, deltas []claims.DeferredUpdate, customer bool) {
	memberID := st.member.ID
	log := p.logger.With(zap.String("member_id", memberID), zap.String("claim_id", st.claimID))

	rec := claims.ClaimRecord{
		ClaimID:          st.claimID,
		Status:           st.outcome.Decision,
		SubmittedDate:    p.today(),
		TreatmentDate:    p.today(),
		AIRecommendation: st.aiVerdict,
		AIReasoning:      st.outcome.Reasoning,
		AIConfidence:     confidence(st.aiVerdict),
		AIFlags:          append([]claims.Flag{}, st.flags...),
	}
	if st.doc != nil {
		rec.TreatmentType = st.doc.TreatmentType
		rec.PractitionerName = st.doc.PractitionerName
		rec.ClaimedAmount = st.doc.TotalCost
		if !st.doc.TreatmentDate.IsZero() {
			rec.TreatmentDate = st.doc.TreatmentDate
		}
	}
	if st.aiVerdict.Pays() {
		rec.AIPayout = aiPayout
		rec.ApprovedAmount = aiPayout
	}
	if customer {
		rec.DeferredUpdates = deltas
	}

	if err := p.ledger.AppendClaim(ctx, memberID, rec); err != nil {
		log.Error("recording claim", zap.Error(err))
		st.log("Decision → WARNING: claim could not be saved to history")
	} else {
		st.log(fmt.Sprintf("Decision → Claim %s recorded", st.claimID))
		if p.notifier != nil {
			if err := p.notifier.NotifyClaim(ctx, memberID, st.member.FullName(), rec); err != nil {
				log.Warn("notifying operators", zap.Error(err))
			}
		}
	}

	actor := actorFor(st.req.Role)
	p.record(ctx, audit.Entry{
		ActorType: audit.ActorSystem,
		ActorID:   "adjudication",
		Action:    audit.ActionClaimAdjudicated,
		MemberID:  memberID,
		ClaimID:   st.claimID,
		SessionID: st.req.SessionID,
		Summary:   fmt.Sprintf("Claim %s adjudicated: %s (AI %s, €%.2f)", st.claimID, rec.Status, st.aiVerdict, aiPayout),
		NewValue:  string(rec.Status),
	})

	if len(deltas) == 0 {
		return
	}
	if customer {
		st.log(fmt.Sprintf("Decision → Usage updates deferred until review: %s", describeDeltas(deltas)))
		p.record(ctx, audit.Entry{
			ActorType: actor,
			ActorID:   memberID,
			Action:    audit.ActionClaimDeferred,
			MemberID:  memberID,
			ClaimID:   st.claimID,
			SessionID: st.req.SessionID,
			Summary:   "Usage updates deferred: " + describeDeltas(deltas),
		})
		return
	}

	applied, err := p.ledger.ApplyUpdates(ctx, memberID, deltas)
	if err != nil {
		log.Error("applying usage", zap.Error(err))
		st.log("Decision → WARNING: usage ledger could not be updated")
		return
	}
	if len(applied.Applied) > 0 {
		st.log(fmt.Sprintf("Decision → Usage updated: %s", describeDeltas(applied.Applied)))
		p.record(ctx, audit.Entry{
			ActorType: actor,
			ActorID:   memberID,
			Action:    audit.ActionUsageApplied,
			MemberID:  memberID,
			ClaimID:   st.claimID,
			SessionID: st.req.SessionID,
			Summary:   "Usage applied: " + describeDeltas(applied.Applied),
		})
	}
	if len(applied.Skipped) > 0 {
		st.log(fmt.Sprintf("Decision → Usage skipped at annual maximum: %s", describeDeltas(applied.Skipped)))
		p.record(ctx, audit.Entry{
			ActorType: actor,
			ActorID:   memberID,
			Action:    audit.ActionUsageSkipped,
			MemberID:  memberID,
			ClaimID:   st.claimID,
			Summary:   "Usage skipped at annual maximum: " + describeDeltas(applied.Skipped),
		})
	}
}

func (p *Pipeline) saveSession(ctx context.Context, st *state) {
	sid := st.req.SessionID
	log := p.logger.With(zap.String("session_id", sid))

	if st.req.Message != "" {
		if err := p.sessions.AppendMessage(ctx, sid, sessions.RoleUser, st.req.Message); err != nil {
			log.Warn("saving user message", zap.Error(err))
		}
	}
	if err := p.sessions.AppendMessage(ctx, sid, sessions.RoleAssistant, st.outcome.Reasoning); err != nil {
		log.Warn("saving assistant message", zap.Error(err))
	}

	cc := sessions.ClaimContext{
		ClaimID:   st.claimID,
		MemberID:  st.req.MemberID,
		Decision:  st.outcome.Decision,
		Reasoning: st.outcome.Reasoning,
		Payout:    st.outcome.Payout,
		Flags:     append([]claims.Flag{}, st.flags...),
		NeedsInfo: st.outcome.NeedsInfo,
		Route:     st.route,
		Document:  st.doc.Clone(),
		DecidedAt: p.now(),
	}
	if st.member != nil {
		cc.MemberName = st.member.FullName()
		cc.Scheme = st.member.Scheme
		if err := p.sessions.BindMember(ctx, sid, st.member.ID); err != nil {
			log.Warn("binding session member", zap.Error(err))
		}
	}
	if err := p.sessions.SaveLastClaimContext(ctx, sid, cc); err != nil {
		log.Warn("saving claim context", zap.Error(err))
		st.log("Decision → WARNING: session context could not be saved")
	}
}

func newClaimID(stamp string) string {
	suffix := strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", "")[:4])
	return fmt.Sprintf("CLM-%s-%s", stamp, suffix)
}

func confidence(d claims.Decision) float64 {
	if d == claims.Approved || d == claims.Rejected {
		return 0.95
	}
	return 0.70
}

func describeDeltas(updates []claims.DeferredUpdate) string {
	parts := make([]string, 0, len(updates))
	for _, u := range updates {
		parts = append(parts, fmt.Sprintf("%s +%g", u.Field, u.Increment))
	}
	return strings.Join(parts, ", ")
}

func lowerFirst(s string) string {
	if s == "" {
		return s
	}
	// Keep acronyms and markdown intact.
	if len(s) > 1 && (s[1] >= 'A' && s[1] <= 'Z' || s[0] < 'A' || s[0] > 'Z') {
		return s
	}
	return strings.ToLower(s[:1]) + s[1:]
}
