package adjudication

import (
	"fmt"
	"strings"

	"github.com/ziadkadry99/claimdesk/internal/claims"
	"github.com/ziadkadry99/claimdesk/internal/rules"
)

// Procedure codes with extra documentation requirements.
const (
	procedureColonoscopy = "29"
	procedureEndoscopy   = "16"
	indicatorAnaemia     = "0222"
)

// hospitalVerdict is the hospital processor's outcome plus the days it
// approved, which become the hospital_days ledger delta.
type hospitalVerdict struct {
	outcome
	approvedDays int
}

func processHospital(policy rules.Policy, member *claims.Member, doc *claims.Document) (hospitalVerdict, []string) {
	var trace []string

	if doc.TotalCost > policy.PrivateInvoiceCutoff && doc.TreatmentType != claims.TreatmentHospital {
		trace = append(trace, fmt.Sprintf("Hospital → REJECTED: €%.2f exceeds the €%.0f private invoice cutoff",
			doc.TotalCost, policy.PrivateInvoiceCutoff))
		return hospitalVerdict{outcome: outcome{
			Decision: claims.Rejected,
			Reasoning: fmt.Sprintf("This looks like a private hospital invoice (€%.2f). Your cash plan does not cover "+
				"hospital invoices; these should be sent to your health insurer. The cash plan pays a daily in-patient "+
				"benefit of €%.0f per night instead.", doc.TotalCost, policy.HospitalDailyRate),
		}}, trace
	}

	code := strings.TrimSpace(doc.ProcedureCode)
	if code != "" {
		trace = append(trace, fmt.Sprintf("Hospital → Checking procedure code %s", code))
		switch {
		case code == procedureColonoscopy && !doc.HistologyReportAttached:
			trace = append(trace, "Hospital → REJECTED: histology report missing for code 29")
			return hospitalVerdict{outcome: outcome{
				Decision:  claims.Rejected,
				Reasoning: "Procedure code 29 requires a histology report. Please attach the report and resubmit the claim.",
				NeedsInfo: []string{"histology report"},
			}}, trace
		case code == procedureEndoscopy && strings.TrimSpace(doc.ClinicalIndicator) == indicatorAnaemia && !doc.SerumFerritinProvided:
			trace = append(trace, "Hospital → REJECTED: serum ferritin results missing for code 16 / indicator 0222")
			return hospitalVerdict{outcome: outcome{
				Decision: claims.Rejected,
				Reasoning: "Procedure code 16 with clinical indicator 0222 (anaemia) requires serum ferritin test results. " +
					"Please attach them and resubmit the claim.",
				NeedsInfo: []string{"serum ferritin results"},
			}}, trace
		}
		trace = append(trace, "Hospital → Procedure documentation complete ✓")
	}

	if doc.HospitalDays > 0 {
		days := policy.HospitalPayout(doc.HospitalDays, member.Usage.HospitalDays)
		payout := rules.Round2(rules.CapClaimed(days.Payout, doc.TotalCost))
		trace = append(trace, fmt.Sprintf("Hospital → %d days requested, %d of %d available, %d approved",
			days.Requested, days.Available, policy.MaxHospitalDays, days.Approved))

		v := hospitalVerdict{approvedDays: days.Approved}
		switch {
		case days.Approved == 0:
			trace = append(trace, "Hospital → REJECTED: no in-patient days remaining")
			v.outcome = outcome{
				Decision: claims.Rejected,
				Reasoning: fmt.Sprintf("You have already used all %d in-patient days for this policy year, so no "+
					"hospital cash back can be paid for this stay.", policy.MaxHospitalDays),
			}
		case days.Rejected > 0:
			trace = append(trace, fmt.Sprintf("Hospital → PARTIALLY APPROVED: €%.2f for %d days", payout, days.Approved))
			v.outcome = outcome{
				Decision: claims.PartiallyApproved,
				Payout:   payout,
				Reasoning: fmt.Sprintf("You claimed %d in-patient days but only %d remain of your annual %d-day limit. "+
					"%d days are approved at €%.0f per day (€%.2f); the remaining %d days are not covered.",
					days.Requested, days.Available, policy.MaxHospitalDays, days.Approved, policy.HospitalDailyRate,
					payout, days.Rejected),
			}
		default:
			trace = append(trace, fmt.Sprintf("Hospital → APPROVED: €%.2f for %d days", payout, days.Approved))
			v.outcome = outcome{
				Decision: claims.Approved,
				Payout:   payout,
				Reasoning: fmt.Sprintf("Your %d in-patient days are approved at €%.0f per day, a total of €%.2f.",
					days.Approved, policy.HospitalDailyRate, payout),
			}
		}
		return v, trace
	}

	payout := rules.Round2(rules.Cap(doc.TotalCost, policy.DefaultPayoutCap))
	trace = append(trace, fmt.Sprintf("Hospital → Day-case: APPROVED €%.2f", payout))
	return hospitalVerdict{outcome: outcome{
		Decision: claims.Approved,
		Payout:   payout,
		Reasoning: fmt.Sprintf("Your day-case claim of €%.2f is approved. Day-case cash back is capped at €%.2f, "+
			"so €%.2f will be paid.", doc.TotalCost, policy.DefaultPayoutCap, payout),
	}}, trace
}
