package adjudication

import (
	"fmt"
	"html"
	"regexp"
	"strings"

	"github.com/ziadkadry99/claimdesk/internal/claims"
	"github.com/ziadkadry99/claimdesk/internal/sessions"
)

// Intent is the follow-up gate's verdict on an incoming message.
type Intent int

const (
	IntentNewClaim Intent = iota
	IntentFollowUp
)

func (i Intent) String() string {
	if i == IntentFollowUp {
		return "FOLLOW_UP"
	}
	return "NEW_CLAIM"
}

var questionStarters = []string{
	"when", "why", "how", "what", "where", "can i", "could i",
	"will i", "am i", "do i", "is my", "was my", "are there",
	"tell me", "explain", "please",
}

var newClaimPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)\bclaim\s+for\s+(a|my|the)\b`),
	regexp.MustCompile(`(?i)\bsubmit\s+(a|my|the)\b`),
	regexp.MustCompile(`(?i)\b(gp|doctor|dentist|hospital|consultant|scan|mri|prescription|therapy|maternity)\s+(visit|fee|claim|receipt|stay|session|appointment)\b`),
	regexp.MustCompile(`(?i)\b(receipt|invoice|bill)\s+(for|from|of)\b`),
	regexp.MustCompile(`(?i)\bEUR\s+\d+`),
	regexp.MustCompile(`(?i)\b\d+\s*euro\b`),
	regexp.MustCompile(`(?i)\bcost\s+(was|is|of)\s+(EUR|€|\d)`),
}

// followUpPatterns are counted by category; two or more matches mark a
// longer message as a follow-up.
var followUpPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)\b(why|what|how|can you|could you|please|tell me|explain)\b`),
	regexp.MustCompile(`(?i)\b(reason|detail|elaborate|clarify|more info|summary)\b`),
	regexp.MustCompile(`(?i)\b(the rejection|the decision|the claim|my claim|the result|the payout)\b`),
	regexp.MustCompile(`(?i)\b(previous|above|that|this|earlier|just now|you said|you mentioned)\b`),
	regexp.MustCompile(`(?i)^(thanks|thank you|ok|okay|got it|sure|yes|no|great|understood)`),
	regexp.MustCompile(`(?i)\b(what is|what are|how does|how do|when can|how much|is there|am i|do i)\b`),
	regexp.MustCompile(`(?i)\b(covered|benefit|policy|plan|scheme|waiting period|threshold|limit)\b`),
}

// ClassifyIntent decides whether message continues the conversation about
// the session's last claim or starts a new one. Sessions without history
// or a prior decision always start a new claim.
func ClassifyIntent(message string, sess *sessions.Session, wordLimit int) Intent {
	if !sess.HasContext() {
		return IntentNewClaim
	}
	msg := strings.ToLower(strings.TrimSpace(html.UnescapeString(message)))

	question := strings.HasSuffix(msg, "?")
	for _, q := range questionStarters {
		if strings.HasPrefix(msg, q) {
			question = true
			break
		}
	}
	if !question {
		for _, re := range newClaimPatterns {
			if re.MatchString(msg) {
				return IntentNewClaim
			}
		}
	}

	if len(strings.Fields(msg)) <= wordLimit {
		return IntentFollowUp
	}

	score := 0
	for _, re := range followUpPatterns {
		if re.MatchString(msg) {
			score++
		}
	}
	if score >= 2 {
		return IntentFollowUp
	}
	return IntentNewClaim
}

func containsAny(s string, words ...string) bool {
	for _, w := range words {
		if strings.Contains(s, w) {
			return true
		}
	}
	return false
}

// answerFollowUp is the rule-based reply used when no model is
// configured or the model call fails.
func answerFollowUp(question string, cc *sessions.ClaimContext, policy policyView) string {
	msg := strings.ToLower(html.UnescapeString(question))
	name := "there"
	if f := strings.Fields(cc.MemberName); len(f) > 0 {
		name = f[0]
	}

	switch {
	case containsAny(msg, "reason", "why", "explain", "detail", "rejected", "denied"):
		return fmt.Sprintf("Hi %s, here's a detailed explanation of your claim decision:\n\n**Decision: %s**\n\n%s\n\n"+
			"If you have any further questions or believe this decision is incorrect, you can ask our claims team for a review.",
			name, cc.Decision, cc.Reasoning)

	case containsAny(msg, "payout", "amount", "how much", "payment", "reimburse"):
		if cc.Decision.Pays() || (cc.Decision == claims.Pending && cc.Payout > 0) {
			return fmt.Sprintf("Hi %s, the payout for your claim is **€%.2f**.\n\n"+
				"This will be transferred to your registered bank account once the quarterly threshold of €%.0f has been met.",
				name, cc.Payout, policy.threshold)
		}
		return fmt.Sprintf("Hi %s, unfortunately your claim was **%s** so no payout has been issued.\n\n%s",
			name, cc.Decision, cc.Reasoning)

	case containsAny(msg, "next", "what can", "what should", "now what", "step"):
		if cc.Decision == claims.Rejected {
			return fmt.Sprintf("Hi %s, here are your options:\n\n"+
				"1. **Wait and resubmit**: if the rejection was due to a waiting period, you can resubmit after it ends.\n"+
				"2. **Ask for a review**: if you believe the decision is incorrect, contact the claims team.\n"+
				"3. **Submit a different claim**: type your new claim details or upload a new receipt.", name)
		}
		return fmt.Sprintf("Hi %s, your claim has been processed with decision: **%s**.\n\n"+
			"You can submit another claim by typing your claim details or uploading a new receipt.", name, cc.Decision)

	case containsAny(msg, "policy", "benefit", "cover", "plan", "scheme"):
		scheme := cc.Scheme
		if scheme == "" {
			scheme = "Money Smart 20 Family"
		}
		return fmt.Sprintf("Hi %s, you're on the **%s** plan.\n\n"+
			"This plan includes cash back for GP visits, consultant fees, prescriptions, dental & optical, therapy, "+
			"scans, hospital stays and maternity.\n\n"+
			"Claims are paid out once accumulated receipts total €%.0f or more per quarter. "+
			"A %d-week initial waiting period applies to new policies.", name, scheme, policy.threshold, policy.waitingWeeks)

	case containsAny(msg, "thank", "thanks", "great", "got it", "ok", "understood"):
		return fmt.Sprintf("You're welcome, %s! If you need anything else, such as submitting another claim or "+
			"checking your benefits, just type your question or upload a new receipt.", name)
	}

	treatment := "N/A"
	if cc.Document != nil && cc.Document.TreatmentType != "" {
		treatment = string(cc.Document.TreatmentType)
	}
	return fmt.Sprintf("Hi %s, regarding your recent claim:\n\n**Decision:** %s\n**Treatment:** %s\n**Reasoning:** %s\n\n"+
		"Is there anything specific you'd like to know? I can explain the decision, go through your benefits, "+
		"or help you submit a new claim.", name, cc.Decision, treatment, cc.Reasoning)
}

type policyView struct {
	threshold    float64
	waitingWeeks int
}
