package adjudication

import (
	"fmt"

	"github.com/ziadkadry99/claimdesk/internal/claims"
	"github.com/ziadkadry99/claimdesk/internal/rules"
)

// checkIntake verifies the document is processable. The first failing
// check wins.
func checkIntake(doc *claims.Document) (outcome, []string) {
	if doc.IsEmpty() {
		return outcome{
			Decision:  claims.ActionRequired,
			Reasoning: "No document or claim details were provided. Please upload a claim form or receipt, or describe the treatment, date and cost.",
			NeedsInfo: []string{"document"},
		}, []string{"Intake → No document data provided. Cannot process."}
	}

	trace := []string{fmt.Sprintf("Intake → Form classified as: %s", orUnknown(doc.FormType))}
	trace = append(trace, fmt.Sprintf("Intake → Data extracted: %s by %s",
		orUnknown(string(doc.TreatmentType)), orUnknown(doc.PractitionerName)))

	if !doc.Signed() {
		trace = append(trace, "Intake → FAILED: Member signature is missing")
		return outcome{
			Decision:  claims.ActionRequired,
			Reasoning: "The main member or policyholder signature is missing on the claim form. Please sign and re-upload the form.",
			NeedsInfo: []string{"signed claim form"},
		}, trace
	}

	if _, outpatient := rules.OutpatientBenefit(doc.TreatmentType); outpatient && doc.FormType == claims.FormHospital {
		trace = append(trace, "Intake → FAILED: Hospital claim form used for an out-patient cash back claim")
		return outcome{
			Decision: claims.ActionRequired,
			Reasoning: fmt.Sprintf("It looks like you uploaded the '%s', which is meant for hospital and surgical procedures. "+
				"To claim your cash back, please upload the '%s' with your receipt.", claims.FormHospital, claims.FormOutpatient),
			NeedsInfo: []string{claims.FormOutpatient},
		}, trace
	}

	trace = append(trace, "Intake → All compliance checks passed ✓")
	return outcome{}, trace
}

func orUnknown(s string) string {
	if s == "" {
		return "Unknown"
	}
	return s
}
