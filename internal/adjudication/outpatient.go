package adjudication

import (
	"fmt"
	"html"
	"regexp"
	"strings"

	"github.com/ziadkadry99/claimdesk/internal/claims"
	"github.com/ziadkadry99/claimdesk/internal/rules"
)

var physio = regexp.MustCompile(`(?i)\bphysio\b`)

// processOutpatient applies the per-category annual limit and payout cap.
func processOutpatient(policy rules.Policy, member *claims.Member, doc *claims.Document, message string) (outcome, []string) {
	benefit, ok := rules.OutpatientBenefit(doc.TreatmentType)
	if !ok {
		return outcome{
				Decision: claims.ActionRequired,
				Reasoning: fmt.Sprintf("Unknown treatment type '%s'. Please specify one of: GP & A&E, Consultant Fee, "+
					"Prescription, Day to Day Therapy, Dental & Optical or Scan Cover.", orUnknown(string(doc.TreatmentType))),
				NeedsInfo: []string{"treatment type"},
			}, []string{
				fmt.Sprintf("Outpatient → Unknown treatment type %q", doc.TreatmentType),
			}
	}

	used := member.Usage.Count(benefit.Field)
	trace := []string{fmt.Sprintf("Outpatient → %s: %d/%d used this year", doc.TreatmentType, used, benefit.AnnualMax)}

	remaining, within := rules.WithinLimit(used, benefit.AnnualMax)
	if !within {
		trace = append(trace, fmt.Sprintf("Outpatient → REJECTED: annual limit of %d reached", benefit.AnnualMax))
		return outcome{
			Decision: claims.Rejected,
			Reasoning: fmt.Sprintf("You have used all %d of your %s benefits for this policy year. "+
				"No further cash back is available for this category until your policy renews.", benefit.AnnualMax, doc.TreatmentType),
		}, trace
	}

	if doc.TreatmentType == claims.TreatmentTherapy && !validTherapy(doc.PractitionerName, message) {
		trace = append(trace, "Outpatient → REJECTED: therapy type is not covered")
		return outcome{
			Decision: claims.Rejected,
			Reasoning: "Day to Day Therapy covers physiotherapy, reflexology, acupuncture, osteopathy, physical therapy " +
				"and chiropractic treatment only. The therapy on this claim is not on the approved list.",
		}, trace
	}

	payout := rules.Round2(rules.Cap(doc.TotalCost, benefit.PayoutCap))
	trace = append(trace, fmt.Sprintf("Outpatient → APPROVED: €%.2f (cap €%.2f, %d visits remaining after this claim)",
		payout, benefit.PayoutCap, remaining-1))

	reasoning := fmt.Sprintf("Your %s claim of €%.2f has been approved. The cash back for this benefit is capped at €%.2f "+
		"per visit, so €%.2f will be paid. You have %d of %d visits remaining this year.",
		doc.TreatmentType, doc.TotalCost, benefit.PayoutCap, payout, remaining-1, benefit.AnnualMax)
	return outcome{Decision: claims.Approved, Reasoning: reasoning, Payout: payout}, trace
}

func validTherapy(practitioner, message string) bool {
	if rules.ValidTherapy(practitioner) {
		return true
	}
	msg := strings.ToLower(physio.ReplaceAllString(html.UnescapeString(message), "physiotherapy"))
	return containsTherapy(msg)
}

func containsTherapy(text string) bool {
	for _, t := range []string{"physiotherapy", "reflexology", "acupuncture", "osteopathy",
		"physical therapist", "physical therapy", "chiropractor", "chiropractic"} {
		if strings.Contains(text, t) {
			return true
		}
	}
	return false
}
