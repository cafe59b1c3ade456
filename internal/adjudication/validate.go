package adjudication

import (
	"context"

	"golang.org/x/sync/errgroup"
)

// validate runs intake and eligibility concurrently over the same
// snapshot. Traces are merged intake first and an intake failure outranks
// any eligibility verdict.
func (p *Pipeline) validate(ctx context.Context, st *state) (Stage, error) {
	var (
		intake, eligible           outcome
		intakeTrace, eligibleTrace []string
		today                      = p.today()
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := gctx.Err(); err != nil {
			return err
		}
		intake, intakeTrace = checkIntake(st.doc)
		return nil
	})
	g.Go(func() error {
		if err := gctx.Err(); err != nil {
			return err
		}
		eligible, eligibleTrace = checkEligibility(p.policy, st.member, st.doc, today)
		return nil
	})
	if err := g.Wait(); err != nil {
		return 0, err
	}

	st.log("Validation → Running intake & eligibility checks concurrently...")
	st.log(intakeTrace...)
	st.log(eligibleTrace...)
	st.log("Validation → Both checks completed ✓")

	switch {
	case intake.terminal():
		st.outcome = intake
	case eligible.terminal():
		st.outcome = eligible
		st.addFlags(eligible.Flags...)
	default:
		st.addFlags(eligible.Flags...)
	}
	return next(st.outcome.terminal(), StageRouting), nil
}
