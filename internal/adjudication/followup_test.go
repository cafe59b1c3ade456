package adjudication

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/ziadkadry99/claimdesk/internal/claims"
	"github.com/ziadkadry99/claimdesk/internal/sessions"
)

func sessionWithContext() *sessions.Session {
	return &sessions.Session{
		ID:       "s1",
		Messages: []sessions.Message{{Role: sessions.RoleUser, Content: "GP visit €60"}, {Role: sessions.RoleAssistant, Content: "Approved"}},
		LastClaimContext: &sessions.ClaimContext{
			ClaimID:    "CLM-1",
			MemberName: "Sean Murphy",
			Decision:   claims.Rejected,
			Reasoning:  "A 12-week initial waiting period applies to your scheme.",
			Document:   &claims.Document{TreatmentType: claims.TreatmentGP},
		},
	}
}

func TestClassifyIntent(t *testing.T) {
	sess := sessionWithContext()
	tests := []struct {
		msg  string
		want Intent
	}{
		{"thanks!", IntentFollowUp},
		{"why was my claim rejected?", IntentFollowUp},
		{"when can I submit again for the consultant fee claim I mentioned earlier on?", IntentFollowUp},
		{"I want to claim for a GP visit", IntentNewClaim},
		{"cost was €60", IntentNewClaim},
		{"Yesterday I went to the physiotherapist for my back and the total came to 55 euro", IntentNewClaim},
		{"Could you go through the decision again and the reason behind it in full please", IntentFollowUp},
		{"I had my teeth cleaned at the local dental surgery on the second of the month", IntentNewClaim},
	}
	for _, tt := range tests {
		t.Run(tt.msg, func(t *testing.T) {
			assert.Equal(t, tt.want, ClassifyIntent(tt.msg, sess, 8))
		})
	}
}

func TestClassifyIntentWithoutContext(t *testing.T) {
	assert.Equal(t, IntentNewClaim, ClassifyIntent("thanks!", &sessions.Session{}, 8))

	noContext := sessionWithContext()
	noContext.LastClaimContext = nil
	assert.Equal(t, IntentNewClaim, ClassifyIntent("why?", noContext, 8))
}

func TestAnswerFollowUp(t *testing.T) {
	cc := sessionWithContext().LastClaimContext
	policy := policyView{threshold: 150, waitingWeeks: 12}

	assert.Contains(t, answerFollowUp("why?", cc, policy), "**Decision: REJECTED**")
	assert.Contains(t, answerFollowUp("how much will I get", cc, policy), "no payout has been issued")
	assert.Contains(t, answerFollowUp("what are the next steps", cc, policy), "Wait and resubmit")
	assert.Contains(t, answerFollowUp("is physio covered on my plan", cc, policy), "Money Smart 20 Family")
	assert.Contains(t, answerFollowUp("great", cc, policy), "You're welcome, Sean!")
	assert.Contains(t, answerFollowUp("hmm", cc, policy), "**Treatment:** GP & A&E")

	cc.Decision = claims.Approved
	cc.Payout = 20
	assert.Contains(t, answerFollowUp("when is the payment", cc, policy), "**€20.00**")
}
