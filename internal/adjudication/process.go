package adjudication

import (
	"context"
	"fmt"

	"github.com/ziadkadry99/claimdesk/internal/claims"
)

// process dispatches to the processor picked by the router.
func (p *Pipeline) process(_ context.Context, st *state) (Stage, error) {
	var (
		o     outcome
		trace []string
	)
	switch st.route {
	case claims.RouteHospital:
		var v hospitalVerdict
		v, trace = processHospital(p.policy, st.member, st.doc)
		o, st.approvedDays = v.outcome, v.approvedDays
	case claims.RouteExceptions:
		o, trace = processExceptions(p.policy, st.member, st.doc, p.today())
	case claims.RouteOutpatient:
		o, trace = processOutpatient(p.policy, st.member, st.doc, st.req.Message)
	default:
		return 0, fmt.Errorf("no processor for route %q", st.route)
	}
	st.log(trace...)
	st.outcome = o
	st.addFlags(o.Flags...)
	return StageDeciding, nil
}
