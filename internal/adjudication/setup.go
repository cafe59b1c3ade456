package adjudication

import (
	"context"
	"errors"
	"fmt"

	"github.com/ziadkadry99/claimdesk/internal/claims"
	"github.com/ziadkadry99/claimdesk/internal/ledger"
)

// setup loads the member snapshot and completes the claim document from
// the message when needed.
func (p *Pipeline) setup(ctx context.Context, st *state) (Stage, error) {
	member, err := p.ledger.GetMember(ctx, st.req.MemberID)
	if errors.Is(err, ledger.ErrMemberNotFound) {
		st.log(fmt.Sprintf("Setup → ERROR: Member %s not found", st.req.MemberID))
		st.outcome = outcome{
			Decision: claims.Rejected,
			Reasoning: fmt.Sprintf("Member ID '%s' was not found in the member database. "+
				"Please verify your membership number.", st.req.MemberID),
		}
		return StageDeciding, nil
	}
	if err != nil {
		return 0, fmt.Errorf("loading member %s: %w", st.req.MemberID, err)
	}
	st.member = member
	st.log(fmt.Sprintf("Setup → Member %s (%s) loaded", member.ID, member.FullName()))

	supplied := st.req.Document
	st.doc = DocumentFromMessage(st.req.Message, supplied.Clone(), p.today())
	if st.doc != nil && st.doc.TreatmentType != "" && (supplied == nil || supplied.TreatmentType == "") {
		st.log(fmt.Sprintf("Setup → Inferred from message: %s (date: %s, cost: €%.2f)",
			st.doc.TreatmentType, st.doc.TreatmentDate, st.doc.TotalCost))
	}
	return StageValidating, nil
}
