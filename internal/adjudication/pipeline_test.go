package adjudication

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/zap"

	"github.com/ziadkadry99/claimdesk/internal/audit"
	"github.com/ziadkadry99/claimdesk/internal/claims"
	"github.com/ziadkadry99/claimdesk/internal/db"
	"github.com/ziadkadry99/claimdesk/internal/ledger"
	"github.com/ziadkadry99/claimdesk/internal/llm"
	"github.com/ziadkadry99/claimdesk/internal/rules"
	"github.com/ziadkadry99/claimdesk/internal/sessions"
)

var testNow = time.Date(2026, 6, 15, 10, 0, 0, 0, time.UTC)

type recordingAudit struct {
	mu      sync.Mutex
	entries []audit.Entry
}

func (r *recordingAudit) Log(_ context.Context, e audit.Entry) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries = append(r.entries, e)
	return nil
}

func (r *recordingAudit) actions() []audit.Action {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]audit.Action, 0, len(r.entries))
	for _, e := range r.entries {
		out = append(out, e.Action)
	}
	return out
}

type harness struct {
	pipeline *Pipeline
	ledger   *ledger.Store
	sessions *sessions.Store
	audit    *recordingAudit
}

func newHarness(t *testing.T, members ...claims.Member) *harness {
	t.Helper()
	database, err := db.OpenMemory()
	require.NoError(t, err)
	t.Cleanup(func() { database.Close() })

	policy := rules.DefaultPolicy()
	ls := ledger.NewStore(database, policy)
	ls.SetClock(func() time.Time { return testNow })
	for _, m := range members {
		require.NoError(t, ls.SaveMember(context.Background(), m))
	}
	ss := sessions.NewStore(database, sessions.DefaultHistoryCap)

	p := NewPipeline(ls, ss, Config{Policy: policy, FollowUpWordLimit: 8, MaxMessageLength: 2000}, zap.NewNop())
	p.SetClock(func() time.Time { return testNow })
	rec := &recordingAudit{}
	p.SetAuditLog(rec)

	return &harness{pipeline: p, ledger: ls, sessions: ss, audit: rec}
}

func (h *harness) member(t *testing.T, id string) *claims.Member {
	t.Helper()
	m, err := h.ledger.GetMember(context.Background(), id)
	require.NoError(t, err)
	return m
}

func member(id string) claims.Member {
	return claims.Member{
		ID:          id,
		FirstName:   "Sean",
		LastName:    "Murphy",
		Scheme:      "Money Smart 20 Family",
		PolicyStart: claims.MustDate("2024-01-01"),
		Status:      "Active",
		Usage:       claims.Usage{QuarterlyReceipts: 200},
	}
}

func gpDoc(cost float64) *claims.Document {
	return &claims.Document{
		FormType:         claims.FormOutpatient,
		TreatmentType:    claims.TreatmentGP,
		TreatmentDate:    claims.MustDate("2026-06-01"),
		PractitionerName: "Dr. Mary Walsh",
		TotalCost:        cost,
		SignaturePresent: claims.Bool(true),
	}
}

func operator(memberID string, doc *claims.Document) Request {
	return Request{MemberID: memberID, Message: "Please process this claim", Document: doc, Role: claims.RoleOperator}
}

func traceContains(res *Result, substr string) bool {
	for _, line := range res.Trace {
		if strings.Contains(line, substr) {
			return true
		}
	}
	return false
}

func TestWaitingPeriodRejects(t *testing.T) {
	m := member("MEM-A")
	m.PolicyStart = claims.MustDate("2026-02-01")
	h := newHarness(t, m)
	h.pipeline.SetClock(func() time.Time { return time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC) })

	doc := gpDoc(60)
	doc.TreatmentDate = claims.MustDate("2026-02-20")
	res, err := h.pipeline.ProcessClaim(context.Background(), operator("MEM-A", doc))
	require.NoError(t, err)

	assert.Equal(t, claims.Rejected, res.Decision)
	assert.Zero(t, res.Payout)
	assert.Contains(t, res.Reasoning, "65 days remaining")
	assert.True(t, traceContains(res, "Eligibility → FAILED"))
	assert.Equal(t, 0, h.member(t, "MEM-A").Usage.GPVisits)
}

func TestThresholdCrossedApproves(t *testing.T) {
	m := member("MEM-B")
	m.Usage.QuarterlyReceipts = 110
	h := newHarness(t, m)

	res, err := h.pipeline.ProcessClaim(context.Background(), operator("MEM-B", gpDoc(50)))
	require.NoError(t, err)

	assert.Equal(t, claims.Approved, res.Decision)
	assert.Equal(t, 20.0, res.Payout)
	assert.NotContains(t, res.Flags, claims.FlagPendingThreshold)
	assert.True(t, traceContains(res, "Threshold CROSSED: €110.00 + €50.00 = €160.00"))

	got := h.member(t, "MEM-B")
	assert.Equal(t, 1, got.Usage.GPVisits)
	assert.InDelta(t, 160.0, got.Usage.QuarterlyReceipts, 0.001)
	require.Len(t, got.Claims, 1)
	assert.Equal(t, res.ClaimID, got.Claims[0].ClaimID)
	assert.Empty(t, got.Claims[0].DeferredUpdates)
}

func TestScanLimitReachedFromMessage(t *testing.T) {
	m := member("MEM-C")
	m.Usage.Scans = 10
	h := newHarness(t, m)

	res, err := h.pipeline.ProcessClaim(context.Background(), Request{
		MemberID: "MEM-C",
		Message:  "I had an MRI scan at the Beacon Clinic yesterday, it cost €150",
		Role:     claims.RoleOperator,
	})
	require.NoError(t, err)

	assert.Equal(t, claims.RouteOutpatient, res.Route)
	assert.Equal(t, claims.Rejected, res.Decision)
	assert.Zero(t, res.Payout)
	assert.True(t, traceContains(res, "Setup → Inferred from message: Scan Cover"))
	assert.Equal(t, 10, h.member(t, "MEM-C").Usage.Scans)
}

func TestHospitalDaysPartiallyApproved(t *testing.T) {
	m := member("MEM-D")
	m.Usage.HospitalDays = 38
	h := newHarness(t, m)

	doc := &claims.Document{
		FormType:         claims.FormHospital,
		TreatmentType:    claims.TreatmentHospital,
		TreatmentDate:    claims.MustDate("2026-06-02"),
		PractitionerName: "St. James Hospital",
		TotalCost:        500,
		HospitalDays:     5,
	}
	res, err := h.pipeline.ProcessClaim(context.Background(), operator("MEM-D", doc))
	require.NoError(t, err)

	assert.Equal(t, claims.RouteHospital, res.Route)
	assert.Equal(t, claims.PartiallyApproved, res.Decision)
	assert.Equal(t, 40.0, res.Payout)
	assert.True(t, traceContains(res, "5 days requested, 2 of 40 available, 2 approved"))
	assert.Equal(t, 40, h.member(t, "MEM-D").Usage.HospitalDays)
}

func TestMaternityFlatPayout(t *testing.T) {
	h := newHarness(t, member("MEM-E"))

	doc := &claims.Document{
		FormType:         claims.FormMaternity,
		TreatmentType:    claims.TreatmentMaternity,
		TreatmentDate:    claims.MustDate("2026-05-20"),
		PractitionerName: "Rotunda Hospital",
		TotalCost:        1500,
	}
	res, err := h.pipeline.ProcessClaim(context.Background(), operator("MEM-E", doc))
	require.NoError(t, err)

	assert.Equal(t, claims.RouteExceptions, res.Route)
	assert.Equal(t, claims.Approved, res.Decision)
	assert.Equal(t, 200.0, res.Payout)
	assert.Contains(t, res.Flags, claims.FlagMaternityUpdate)
	assert.Contains(t, res.Reasoning, "€1300.00 is not covered")
	assert.True(t, h.member(t, "MEM-E").Usage.MaternityClaimed)

	// One per policy year.
	doc.TreatmentDate = claims.MustDate("2026-05-28")
	res, err = h.pipeline.ProcessClaim(context.Background(), operator("MEM-E", doc))
	require.NoError(t, err)
	assert.Equal(t, claims.Rejected, res.Decision)
}

func TestThanksIsFollowUp(t *testing.T) {
	h := newHarness(t, member("MEM-F"))
	ctx := context.Background()

	first, err := h.pipeline.ProcessClaim(ctx, operator("MEM-F", gpDoc(60)))
	require.NoError(t, err)
	require.False(t, first.FollowUp)
	before := h.member(t, "MEM-F")

	res, err := h.pipeline.ProcessClaim(ctx, Request{
		MemberID:  "MEM-F",
		Message:   "thanks!",
		SessionID: first.SessionID,
		Role:      claims.RoleCustomer,
	})
	require.NoError(t, err)

	assert.True(t, res.FollowUp)
	assert.Equal(t, first.Decision, res.Decision)
	assert.Equal(t, first.Payout, res.Payout)
	assert.Equal(t, first.ClaimID, res.ClaimID)
	assert.Len(t, res.Trace, 3)
	assert.Contains(t, res.Reasoning, "You're welcome, Sean")

	after := h.member(t, "MEM-F")
	assert.Equal(t, before.Usage, after.Usage, "follow-ups never touch the ledger")
	assert.Len(t, after.Claims, len(before.Claims))

	sess, err := h.sessions.Find(ctx, first.SessionID)
	require.NoError(t, err)
	assert.Len(t, sess.Messages, 4)
	assert.Equal(t, "MEM-F", sess.MemberID)
}

func TestCustomerClaimDeferredUntilReview(t *testing.T) {
	h := newHarness(t, member("MEM-G"))
	ctx := context.Background()

	res, err := h.pipeline.ProcessClaim(ctx, Request{
		MemberID: "MEM-G",
		Message:  "GP visit",
		Document: gpDoc(60),
		Role:     claims.RoleCustomer,
	})
	require.NoError(t, err)

	assert.Equal(t, claims.Pending, res.Decision)
	assert.Equal(t, claims.Approved, res.AIRecommendation)
	assert.Equal(t, 20.0, res.Payout)
	assert.True(t, strings.HasPrefix(res.Reasoning, "Hi Sean, "))
	assert.Contains(t, res.ReasoningHTML, "<p>")

	got := h.member(t, "MEM-G")
	assert.Equal(t, 0, got.Usage.GPVisits)
	require.Len(t, got.Claims, 1)
	rec := got.Claims[0]
	assert.Equal(t, claims.Pending, rec.Status)
	assert.Equal(t, 20.0, rec.AIPayout)
	assert.Equal(t, 0.95, rec.AIConfidence)
	assert.ElementsMatch(t, []claims.DeferredUpdate{
		{Field: claims.FieldGPVisits, Increment: 1},
		{Field: claims.FieldQuarterlyReceipts, Increment: 60},
	}, rec.DeferredUpdates)
	assert.Contains(t, h.audit.actions(), audit.ActionClaimDeferred)

	review := ledger.ReviewRequest{MemberID: "MEM-G", ClaimID: res.ClaimID, Reviewer: "ops-1", Status: claims.Approved}
	_, err = h.ledger.Review(ctx, review)
	require.NoError(t, err)
	_, err = h.ledger.Review(ctx, review)
	assert.ErrorIs(t, err, ledger.ErrAlreadyReviewed)

	got = h.member(t, "MEM-G")
	assert.Equal(t, 1, got.Usage.GPVisits, "deferred updates apply exactly once")
	assert.InDelta(t, 260.0, got.Usage.QuarterlyReceipts, 0.001)
}

func TestCustomerRejectionHeldForReview(t *testing.T) {
	m := member("MEM-H")
	m.Usage.Scans = 10
	h := newHarness(t, m)

	doc := gpDoc(150)
	doc.TreatmentType = claims.TreatmentScan
	res, err := h.pipeline.ProcessClaim(context.Background(), Request{MemberID: "MEM-H", Document: doc, Role: claims.RoleCustomer})
	require.NoError(t, err)

	assert.Equal(t, claims.Pending, res.Decision)
	assert.Equal(t, claims.Rejected, res.AIRecommendation)
	assert.Empty(t, h.member(t, "MEM-H").Claims[0].DeferredUpdates)
}

func TestThresholdPendingStillPays(t *testing.T) {
	m := member("MEM-I")
	m.Usage.QuarterlyReceipts = 0
	h := newHarness(t, m)

	res, err := h.pipeline.ProcessClaim(context.Background(), operator("MEM-I", gpDoc(50)))
	require.NoError(t, err)

	assert.Equal(t, claims.Pending, res.Decision)
	assert.Equal(t, claims.Approved, res.AIRecommendation)
	assert.Equal(t, 20.0, res.Payout)
	assert.Contains(t, res.Flags, claims.FlagPendingThreshold)
	assert.Contains(t, res.Reasoning, "**Note:**")
	assert.InDelta(t, 50.0, h.member(t, "MEM-I").Usage.QuarterlyReceipts, 0.001)
}

func TestUnknownMember(t *testing.T) {
	h := newHarness(t)

	res, err := h.pipeline.ProcessClaim(context.Background(), operator("MEM-404", gpDoc(60)))
	require.NoError(t, err)

	assert.Equal(t, claims.Rejected, res.Decision)
	assert.Contains(t, res.Reasoning, "MEM-404")
	assert.Equal(t, "Setup → ERROR: Member MEM-404 not found", res.Trace[0])
	assert.Empty(t, res.ClaimID)
}

func TestIntakeFailureOutranksEligibility(t *testing.T) {
	m := member("MEM-J")
	m.PolicyStart = claims.MustDate("2026-06-01")
	h := newHarness(t, m)

	doc := gpDoc(60)
	doc.SignaturePresent = claims.Bool(false)
	res, err := h.pipeline.ProcessClaim(context.Background(), operator("MEM-J", doc))
	require.NoError(t, err)

	assert.Equal(t, claims.ActionRequired, res.Decision)
	assert.Equal(t, []string{"signed claim form"}, res.NeedsInfo)

	// Both checks still ran; intake lines come first.
	intake, eligibility := -1, -1
	for i, line := range res.Trace {
		if intake < 0 && strings.HasPrefix(line, "Intake →") {
			intake = i
		}
		if eligibility < 0 && strings.HasPrefix(line, "Eligibility →") {
			eligibility = i
		}
	}
	require.GreaterOrEqual(t, intake, 0)
	require.GreaterOrEqual(t, eligibility, 0)
	assert.Less(t, intake, eligibility)
}

func TestDuplicateClaimRejected(t *testing.T) {
	m := member("MEM-K")
	m.Claims = []claims.ClaimRecord{{
		ClaimID: "CLM-OLD", TreatmentType: claims.TreatmentGP, TreatmentDate: claims.MustDate("2026-06-01"),
		PractitionerName: "dr. mary walsh", ClaimedAmount: 60.004, Status: claims.Approved,
	}}
	h := newHarness(t, m)

	res, err := h.pipeline.ProcessClaim(context.Background(), operator("MEM-K", gpDoc(60)))
	require.NoError(t, err)

	assert.Equal(t, claims.Rejected, res.Decision)
	assert.Contains(t, res.Flags, claims.FlagDuplicate)
	assert.Contains(t, res.Reasoning, "CLM-OLD")
}

func TestMessageValidation(t *testing.T) {
	h := newHarness(t, member("MEM-L"))
	ctx := context.Background()

	_, err := h.pipeline.ProcessClaim(ctx, Request{MemberID: "MEM-L", Message: "  \x00 "})
	assert.ErrorIs(t, err, sessions.ErrEmptyMessage)

	_, err = h.pipeline.ProcessClaim(ctx, Request{MemberID: "MEM-L", Message: strings.Repeat("a", 2001)})
	assert.ErrorIs(t, err, ErrMessageTooLong)
	assert.True(t, IsInputError(err))
}

func TestStreamEmitsEveryStage(t *testing.T) {
	h := newHarness(t, member("MEM-M"))

	var events []Event
	res, err := h.pipeline.ProcessClaimStream(context.Background(), operator("MEM-M", gpDoc(60)), func(ev Event) {
		events = append(events, ev)
	})
	require.NoError(t, err)

	var kinds, nodes []string
	for _, ev := range events {
		kinds = append(kinds, ev.Type)
		if ev.Type == EventNodeUpdate {
			nodes = append(nodes, ev.Stage)
		}
	}
	assert.Equal(t, EventStatus, kinds[0])
	assert.Equal(t, EventResult, kinds[len(kinds)-1])
	assert.Equal(t, []string{"setup", "validating", "routing", "processing", "deciding"}, nodes)
	assert.Equal(t, res.Decision, events[len(events)-1].Decision)
}

func TestConcurrentClaimsRespectAnnualLimit(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreTopFunction("database/sql.(*DB).connectionOpener"))

	m := member("MEM-N")
	m.Usage.GPVisits = 5
	h := newHarness(t, m)

	const n = 10
	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		approved int
	)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			res, err := h.pipeline.ProcessClaim(context.Background(), operator("MEM-N", gpDoc(float64(30+i))))
			if !assert.NoError(t, err) {
				return
			}
			if res.Decision == claims.Approved {
				mu.Lock()
				approved++
				mu.Unlock()
			}
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 5, approved)
	got := h.member(t, "MEM-N")
	assert.Equal(t, 10, got.Usage.GPVisits)
	assert.Len(t, got.Claims, n)
}

type stubProvider struct {
	content string
	err     error
}

func (s stubProvider) Name() string { return "stub" }

func (s stubProvider) Complete(ctx context.Context, req llm.CompletionRequest) (*llm.CompletionResponse, error) {
	if s.err != nil {
		return nil, s.err
	}
	return &llm.CompletionResponse{Content: s.content}, nil
}

func TestModelRouteHint(t *testing.T) {
	for _, tc := range []struct {
		hint string
		want claims.Route
	}{
		{"exceptions", claims.RouteExceptions},
		{" Hospital\n", claims.RouteHospital},
		{"banana", claims.RouteOutpatient},
	} {
		t.Run(tc.hint, func(t *testing.T) {
			h := newHarness(t, member("MEM-O"))
			h.pipeline.SetRouteSuggester(NewLLMEnhancer(stubProvider{content: tc.hint}, "m", time.Second, zap.NewNop()))

			res, err := h.pipeline.ProcessClaim(context.Background(), operator("MEM-O", gpDoc(60)))
			require.NoError(t, err)
			assert.Equal(t, tc.want, res.Route)
		})
	}
}

func TestEnhancerFailureKeepsReasoning(t *testing.T) {
	h := newHarness(t, member("MEM-P"))
	h.pipeline.SetEnhancer(NewLLMEnhancer(stubProvider{err: fmt.Errorf("upstream 503")}, "m", time.Second, zap.NewNop()))

	res, err := h.pipeline.ProcessClaim(context.Background(), operator("MEM-P", gpDoc(60)))
	require.NoError(t, err)
	assert.Equal(t, claims.Approved, res.Decision)
	assert.Contains(t, res.Reasoning, "€20.00 will be paid")
}

func TestEnhancerRewritesReasoning(t *testing.T) {
	h := newHarness(t, member("MEM-Q"))
	h.pipeline.SetEnhancer(NewLLMEnhancer(stubProvider{content: "Good news, **€20** is on its way."}, "m", time.Second, zap.NewNop()))

	res, err := h.pipeline.ProcessClaim(context.Background(), operator("MEM-Q", gpDoc(60)))
	require.NoError(t, err)
	assert.Equal(t, claims.Approved, res.Decision)
	assert.Equal(t, 20.0, res.Payout)
	assert.Equal(t, "Good news, **€20** is on its way.", res.Reasoning)
	assert.Contains(t, res.ReasoningHTML, "<strong>€20</strong>")
}

type recordingNotifier struct {
	mu      sync.Mutex
	records []claims.ClaimRecord
	names   []string
}

func (n *recordingNotifier) NotifyClaim(_ context.Context, _, memberName string, rec claims.ClaimRecord) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.records = append(n.records, rec)
	n.names = append(n.names, memberName)
	return fmt.Errorf("webhook store offline")
}

func TestNotifierSeesRecordedClaims(t *testing.T) {
	h := newHarness(t, member("MEM-N"))
	notifier := &recordingNotifier{}
	h.pipeline.SetNotifier(notifier)

	res, err := h.pipeline.ProcessClaim(context.Background(), Request{
		MemberID: "MEM-N",
		Document: gpDoc(60),
		Role:     claims.RoleCustomer,
	})
	require.NoError(t, err)
	assert.Equal(t, claims.Pending, res.Decision)

	_, err = h.pipeline.ProcessClaim(context.Background(), Request{MemberID: "MEM-404", Document: gpDoc(60), Role: claims.RoleCustomer})
	require.NoError(t, err)

	require.Len(t, notifier.records, 1)
	assert.Equal(t, res.ClaimID, notifier.records[0].ClaimID)
	assert.Equal(t, claims.Pending, notifier.records[0].Status)
	assert.Equal(t, "Sean Murphy", notifier.names[0])
}
