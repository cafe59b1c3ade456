package adjudication

import (
	"fmt"

	"github.com/ziadkadry99/claimdesk/internal/claims"
	"github.com/ziadkadry99/claimdesk/internal/rules"
)

// processExceptions handles maternity, accident and solicitor claims. A
// missing treatment date is taken as today, as eligibility does.
func processExceptions(policy rules.Policy, member *claims.Member, doc *claims.Document, today claims.Date) (outcome, []string) {
	if doc.IsMaternity() {
		if member.Usage.MaternityClaimed {
			return outcome{
					Decision:  claims.Rejected,
					Reasoning: "A maternity or adoption cash back has already been paid in this policy year. Only one claim per policy year is allowed.",
				}, []string{
					"Exceptions → Maternity/adoption claim",
					"Exceptions → REJECTED: already claimed this policy year",
				}
		}
		payout := rules.Round2(rules.CapClaimed(policy.MaternityPayout, doc.TotalCost))
		reasoning := fmt.Sprintf("Your maternity/adoption claim is approved. The benefit is a flat €%.0f cash back per policy year.",
			policy.MaternityPayout)
		if excess := doc.TotalCost - payout; excess > 0 {
			reasoning += fmt.Sprintf(" Of the €%.2f claimed, €%.2f is not covered by this benefit.", doc.TotalCost, excess)
		}
		return outcome{
				Decision:  claims.Approved,
				Reasoning: reasoning,
				Payout:    payout,
				Flags:     []claims.Flag{claims.FlagMaternityUpdate},
			}, []string{
				"Exceptions → Maternity/adoption claim",
				fmt.Sprintf("Exceptions → APPROVED: flat €%.2f, ledger flag set on payment", payout),
			}
	}

	payout := rules.Round2(rules.Cap(doc.TotalCost, policy.DefaultPayoutCap))

	if doc.Accident || doc.SolicitorInvolved {
		return outcome{
				Decision: claims.Approved,
				Payout:   payout,
				Reasoning: fmt.Sprintf("Your claim is approved for €%.2f. Because it relates to an accident or involves a "+
					"solicitor, it has been marked for legal review so treatment costs can be recovered from the third party.", payout),
				Flags: []claims.Flag{claims.FlagLegalReview},
			}, []string{
				"Exceptions → Accident/solicitor involvement detected",
				fmt.Sprintf("Exceptions → APPROVED: €%.2f, flagged for legal review", payout),
			}
	}

	treatment := doc.TreatmentDate
	if treatment.IsZero() {
		treatment = today
	}
	if dup, found := rules.FindDuplicate(member.Claims, treatment, doc.PractitionerName, doc.TotalCost); found {
		return outcome{
				Decision:  claims.Rejected,
				Reasoning: fmt.Sprintf("This claim duplicates claim %s. The same treatment cannot be claimed twice.", dup.ClaimID),
				Flags:     []claims.Flag{claims.FlagDuplicate},
			}, []string{
				fmt.Sprintf("Exceptions → REJECTED: duplicate of %s", dup.ClaimID),
			}
	}

	return outcome{
			Decision:  claims.Approved,
			Payout:    payout,
			Reasoning: fmt.Sprintf("Your claim is approved. €%.2f will be paid.", payout),
		}, []string{
			fmt.Sprintf("Exceptions → APPROVED: €%.2f", payout),
		}
}
