package adjudication

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/ziadkadry99/claimdesk/internal/claims"
	"github.com/ziadkadry99/claimdesk/internal/llm"
	"github.com/ziadkadry99/claimdesk/internal/sessions"
)

// EnhanceInput is what an Enhancer sees of a decision.
type EnhanceInput struct {
	MemberName string
	Decision   claims.Decision
	Payout     float64
	Flags      []claims.Flag
	Route      claims.Route
	Document   *claims.Document
	Reasoning  string
}

// Enhancer rewrites decision reasoning. It must return in.Reasoning
// unchanged when it cannot do better; it never changes the decision.
type Enhancer interface {
	Enhance(ctx context.Context, in EnhanceInput) string
}

// RouteSuggester proposes a route. Anything outside the route vocabulary
// is ignored by the caller.
type RouteSuggester interface {
	SuggestRoute(ctx context.Context, doc *claims.Document, message string) string
}

// Answerer replies to a follow-up question about the last decision.
type Answerer interface {
	Answer(ctx context.Context, question string, cc *sessions.ClaimContext, history []sessions.Message) (string, error)
}

type identityEnhancer struct{}

func (identityEnhancer) Enhance(_ context.Context, in EnhanceInput) string { return in.Reasoning }

// LLMEnhancer implements Enhancer, RouteSuggester and Answerer on top of
// an llm.Provider. Every call runs under its own timeout and failures
// degrade to the deterministic text.
type LLMEnhancer struct {
	provider llm.Provider
	model    string
	timeout  time.Duration
	logger   *zap.Logger
}

// NewLLMEnhancer wraps provider. A zero timeout means 30 seconds.
func NewLLMEnhancer(provider llm.Provider, model string, timeout time.Duration, logger *zap.Logger) *LLMEnhancer {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &LLMEnhancer{provider: provider, model: model, timeout: timeout, logger: logger}
}

const enhancePrompt = `You are a friendly healthcare cash-back claims assistant.
Rewrite the claim decision explanation below so a member can understand it.
Keep every amount, date, limit and the decision itself exactly as given.
Do not promise anything the explanation does not say. Use short paragraphs and markdown bold for amounts.
Reply with the rewritten explanation only.`

func (e *LLMEnhancer) Enhance(ctx context.Context, in EnhanceInput) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Member: %s\nDecision: %s\nPayout: €%.2f\nRoute: %s\n", in.MemberName, in.Decision, in.Payout, in.Route)
	if len(in.Flags) > 0 {
		fmt.Fprintf(&b, "Flags: %v\n", in.Flags)
	}
	if in.Document != nil {
		fmt.Fprintf(&b, "Treatment: %s on %s by %s, cost €%.2f\n",
			in.Document.TreatmentType, in.Document.TreatmentDate, in.Document.PractitionerName, in.Document.TotalCost)
	}
	fmt.Fprintf(&b, "\nExplanation:\n%s", in.Reasoning)

	out, err := e.complete(ctx, enhancePrompt, b.String(), 600)
	if err != nil {
		e.logger.Warn("reasoning enhancement failed, using deterministic text", zap.Error(err))
		return in.Reasoning
	}
	if out == "" {
		return in.Reasoning
	}
	return out
}

const routePrompt = `Classify a healthcare cash-back claim into exactly one route.
Routes: outpatient (GP, consultant, prescription, therapy, dental, optical, scans),
hospital (in-patient stays, day cases, procedures), exceptions (maternity, adoption, accidents, solicitors, suspected fraud).
Reply with the single route word only.`

func (e *LLMEnhancer) SuggestRoute(ctx context.Context, doc *claims.Document, message string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Message: %s\n", message)
	if doc != nil {
		fmt.Fprintf(&b, "Treatment type: %s\nForm: %s\nHospital days: %d\nProcedure code: %s\n",
			doc.TreatmentType, doc.FormType, doc.HospitalDays, doc.ProcedureCode)
	}
	out, err := e.complete(ctx, routePrompt, b.String(), 10)
	if err != nil {
		e.logger.Warn("route suggestion failed", zap.Error(err))
		return ""
	}
	return out
}

const followUpPrompt = `You are a healthcare cash-back claims assistant in the middle of a conversation with a member.
Answer the member's follow-up question using the last claim decision below. Use the member's first name.
If they ask why, explain the reasoning. If they want to make a new claim, tell them to type the claim details or upload a receipt.
Be concise (2-4 short paragraphs) and use markdown.

LAST CLAIM:
%s

CONVERSATION:
%s`

func (e *LLMEnhancer) Answer(ctx context.Context, question string, cc *sessions.ClaimContext, history []sessions.Message) (string, error) {
	var claim strings.Builder
	fmt.Fprintf(&claim, "- Member: %s (%s)\n- Decision: %s\n- Payout: €%.2f\n- Reasoning: %s\n",
		cc.MemberName, cc.MemberID, cc.Decision, cc.Payout, cc.Reasoning)
	if cc.Document != nil {
		fmt.Fprintf(&claim, "- Treatment: %s on %s, cost €%.2f\n",
			cc.Document.TreatmentType, cc.Document.TreatmentDate, cc.Document.TotalCost)
	}

	var conv strings.Builder
	if len(history) > 10 {
		history = history[len(history)-10:]
	}
	for _, m := range history {
		label := "Member"
		if m.Role == sessions.RoleAssistant {
			label = "Assistant"
		}
		fmt.Fprintf(&conv, "%s: %s\n", label, m.Content)
	}

	out, err := e.complete(ctx, fmt.Sprintf(followUpPrompt, claim.String(), conv.String()), question, 600)
	if err != nil {
		return "", err
	}
	if out == "" {
		return "", fmt.Errorf("empty answer from %s", e.provider.Name())
	}
	return out, nil
}

func (e *LLMEnhancer) complete(ctx context.Context, system, user string, maxTokens int) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	resp, err := e.provider.Complete(ctx, llm.CompletionRequest{
		Model:       e.model,
		Messages:    []llm.Message{llm.System(system), llm.User(user)},
		MaxTokens:   maxTokens,
		Temperature: 0.2,
	})
	if err != nil {
		return "", fmt.Errorf("%s completion: %w", e.provider.Name(), err)
	}
	return strings.TrimSpace(resp.Content), nil
}
