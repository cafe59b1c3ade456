package adjudication

import (
	"fmt"

	"github.com/ziadkadry99/claimdesk/internal/claims"
	"github.com/ziadkadry99/claimdesk/internal/rules"
)

// checkEligibility runs the waiting period, submission deadline, quarterly
// threshold and duplicate checks in order. Only the threshold check
// continues past a miss: it raises PENDING_THRESHOLD instead of rejecting.
func checkEligibility(policy rules.Policy, member *claims.Member, doc *claims.Document, today claims.Date) (outcome, []string) {
	if doc.IsEmpty() {
		return outcome{}, []string{"Eligibility → No claim details to check"}
	}

	var trace []string
	treatment := doc.TreatmentDate
	if treatment.IsZero() {
		treatment = today
		trace = append(trace, fmt.Sprintf("Eligibility → No treatment date provided, defaulting to today: %s", today))
	}

	trace = append(trace, fmt.Sprintf("Eligibility → Checking %d-day waiting period...", policy.WaitingPeriodDays))
	if wp := policy.WaitingPeriod(member.PolicyStart, treatment); wp.Blocked {
		trace = append(trace, fmt.Sprintf("Eligibility → FAILED: treatment on %s is within the waiting period (%d days remaining)",
			treatment, wp.DaysRemaining))
		return outcome{
			Decision: claims.Rejected,
			Reasoning: fmt.Sprintf("A %d-week initial waiting period applies to your scheme. Your policy started on %s "+
				"and the treatment date (%s) falls within this waiting period. The waiting period ends on %s "+
				"(%d days remaining).", policy.WaitingPeriodDays/7, member.PolicyStart, treatment, wp.EligibleFrom, wp.DaysRemaining),
		}, trace
	}
	trace = append(trace, "Eligibility → Waiting period check PASSED ✓")

	trace = append(trace, "Eligibility → Checking submission deadline...")
	if expired, deadline := policy.SubmissionDeadline(treatment, today); expired {
		overdue := deadline.DaysUntil(today)
		trace = append(trace, fmt.Sprintf("Eligibility → FAILED: receipt from %s is past its deadline of %s", treatment, deadline))
		return outcome{
			Decision: claims.Rejected,
			Reasoning: fmt.Sprintf("Claims must be submitted within %d days of the treatment date on your receipt. "+
				"This receipt from %s is too old (deadline was %s, %d days overdue).",
				policy.SubmissionWindowDays, treatment, deadline, overdue),
		}, trace
	}
	trace = append(trace, "Eligibility → Submission deadline check PASSED ✓")

	var flags []claims.Flag
	accumulated := member.Usage.QuarterlyReceipts
	total, crossed := policy.Threshold(accumulated, doc.TotalCost)
	if crossed {
		trace = append(trace, fmt.Sprintf("Eligibility → Threshold CROSSED: €%.2f + €%.2f = €%.2f (≥ €%.2f) ✓",
			accumulated, doc.TotalCost, total, policy.QuarterlyThreshold))
	} else {
		trace = append(trace, fmt.Sprintf("Eligibility → Below threshold: €%.2f + €%.2f = €%.2f (< €%.2f)",
			accumulated, doc.TotalCost, total, policy.QuarterlyThreshold))
		flags = append(flags, claims.FlagPendingThreshold)
	}

	trace = append(trace, "Eligibility → Checking for duplicate claims...")
	if dup, found := rules.FindDuplicate(member.Claims, treatment, doc.PractitionerName, doc.TotalCost); found {
		trace = append(trace, fmt.Sprintf("Eligibility → FAILED: duplicate of %s", dup.ClaimID))
		return outcome{
			Decision: claims.Rejected,
			Reasoning: fmt.Sprintf("Duplicate claim detected. A claim with the same treatment date (%s), practitioner (%s) "+
				"and amount (€%.2f) already exists (Claim %s, %s).",
				treatment, doc.PractitionerName, doc.TotalCost, dup.ClaimID, dup.Status),
			Flags: []claims.Flag{claims.FlagDuplicate},
		}, trace
	}
	trace = append(trace, "Eligibility → No duplicate claims found ✓")
	trace = append(trace, "Eligibility → All eligibility checks complete ✓")

	return outcome{Flags: flags}, trace
}
