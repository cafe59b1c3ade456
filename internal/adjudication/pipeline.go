// Package adjudication runs a claim through setup, validation, routing,
// treatment processing and the decision stage, or answers a follow-up
// question about the last claim of a session.
package adjudication

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/ziadkadry99/claimdesk/internal/audit"
	"github.com/ziadkadry99/claimdesk/internal/claims"
	"github.com/ziadkadry99/claimdesk/internal/ledger"
	"github.com/ziadkadry99/claimdesk/internal/render"
	"github.com/ziadkadry99/claimdesk/internal/rules"
	"github.com/ziadkadry99/claimdesk/internal/sessions"
)

// ErrNoClaimContext means a follow-up was asked in a session that has
// not decided a claim yet.
var ErrNoClaimContext = errors.New("session has no previous claim")

// Ledger is the slice of the member store the pipeline needs.
type Ledger interface {
	GetMember(ctx context.Context, memberID string) (*claims.Member, error)
	LockMember(ctx context.Context, memberID string) (func(), error)
	ApplyUpdates(ctx context.Context, memberID string, updates []claims.DeferredUpdate) (ledger.ApplyResult, error)
	AppendClaim(ctx context.Context, memberID string, rec claims.ClaimRecord) error
}

// SessionStore keeps conversation history between requests.
type SessionStore interface {
	GetSession(ctx context.Context, id string) (*sessions.Session, error)
	BindMember(ctx context.Context, id, memberID string) error
	AppendMessage(ctx context.Context, id, role, content string) error
	SaveLastClaimContext(ctx context.Context, id string, cc sessions.ClaimContext) error
}

// Notifier is told about every recorded claim so operators can be alerted
// to the ones that need attention.
type Notifier interface {
	NotifyClaim(ctx context.Context, memberID, memberName string, rec claims.ClaimRecord) error
}

// Config tunes the pipeline.
type Config struct {
	Policy            rules.Policy
	FollowUpWordLimit int
	MaxMessageLength  int
}

// Pipeline adjudicates claims. It is safe for concurrent use; work for
// one member is serialised through the ledger's member lock.
type Pipeline struct {
	ledger   Ledger
	sessions SessionStore
	policy   rules.Policy
	cfg      Config
	logger   *zap.Logger

	enhancer Enhancer
	router   RouteSuggester
	answerer Answerer
	auditLog audit.Logger
	notifier Notifier
	now      func() time.Time
}

// NewPipeline creates a Pipeline with the deterministic defaults: no
// model, identity enhancement and no audit trail.
func NewPipeline(store Ledger, sessionStore SessionStore, cfg Config, logger *zap.Logger) *Pipeline {
	if cfg.FollowUpWordLimit <= 0 {
		cfg.FollowUpWordLimit = 8
	}
	return &Pipeline{
		ledger:   store,
		sessions: sessionStore,
		policy:   cfg.Policy,
		cfg:      cfg,
		logger:   logger,
		enhancer: identityEnhancer{},
		now:      time.Now,
	}
}

// SetEnhancer replaces the identity reasoning enhancer.
func (p *Pipeline) SetEnhancer(e Enhancer) { p.enhancer = e }

// SetRouteSuggester sets an optional model hint for the router. Hints
// outside the route vocabulary are ignored.
func (p *Pipeline) SetRouteSuggester(r RouteSuggester) { p.router = r }

// SetAnswerer sets the follow-up answerer. Without one, follow-ups get
// rule-based answers.
func (p *Pipeline) SetAnswerer(a Answerer) { p.answerer = a }

// SetAuditLog enables the audit trail for decisions and ledger updates.
func (p *Pipeline) SetAuditLog(l audit.Logger) { p.auditLog = l }

// SetNotifier sets the hook called after each recorded claim.
func (p *Pipeline) SetNotifier(n Notifier) { p.notifier = n }

// SetClock overrides time.Now for claim dates and IDs.
func (p *Pipeline) SetClock(now func() time.Time) { p.now = now }

func (p *Pipeline) today() claims.Date { return claims.NewDate(p.now()) }

// ProcessClaim runs one message to completion.
func (p *Pipeline) ProcessClaim(ctx context.Context, req Request) (*Result, error) {
	return p.ProcessClaimStream(ctx, req, nil)
}

// ProcessClaimStream runs one message and calls emit after every stage
// with the state so far. emit may be nil.
func (p *Pipeline) ProcessClaimStream(ctx context.Context, req Request, emit func(Event)) (*Result, error) {
	if emit == nil {
		emit = func(Event) {}
	}

	msg, err := SanitizeMessage(req.Message, p.cfg.MaxMessageLength)
	if err != nil {
		return nil, err
	}
	if msg == "" && req.Document == nil {
		return nil, sessions.ErrEmptyMessage
	}
	req.Message = msg
	if req.Role == "" {
		req.Role = claims.RoleCustomer
	}

	sess, err := p.sessions.GetSession(ctx, req.SessionID)
	if err != nil {
		return nil, fmt.Errorf("loading session: %w", err)
	}
	req.SessionID = sess.ID

	emit(Event{Type: EventStatus, Stage: StageSetup.String(), Result: Result{SessionID: sess.ID}})

	if req.Document == nil && ClassifyIntent(req.Message, sess, p.cfg.FollowUpWordLimit) == IntentFollowUp {
		res, err := p.followUp(ctx, req, sess)
		if err != nil {
			return nil, err
		}
		emit(Event{Type: EventResult, Result: *res})
		return res, nil
	}

	unlock, err := p.ledger.LockMember(ctx, req.MemberID)
	if err != nil {
		return nil, err
	}
	defer unlock()

	st := &state{req: req}
	res, err := p.run(ctx, st, emit)
	if err != nil {
		return nil, err
	}
	emit(Event{Type: EventResult, Result: *res})
	return res, nil
}

// stageFunc advances the machine by one stage and names the next one.
type stageFunc func(ctx context.Context, st *state) (Stage, error)

func (p *Pipeline) stages() map[Stage]stageFunc {
	return map[Stage]stageFunc{
		StageSetup:      p.setup,
		StageValidating: p.validate,
		StageRouting:    p.routeClaim,
		StageProcessing: p.process,
		StageDeciding:   p.decide,
	}
}

func (p *Pipeline) run(ctx context.Context, st *state, emit func(Event)) (*Result, error) {
	stages := p.stages()
	for stage := StageSetup; stage != StageDone; {
		fn, ok := stages[stage]
		if !ok {
			return nil, fmt.Errorf("no handler for stage %s", stage)
		}
		if stage != StageDeciding {
			// Decision writes must land once started, so only earlier
			// stages observe cancellation.
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}
		nextStage, err := fn(ctx, st)
		if err != nil {
			return nil, fmt.Errorf("%s stage: %w", stage, err)
		}
		if !CanTransition(stage, nextStage) {
			return nil, fmt.Errorf("illegal transition %s → %s", stage, nextStage)
		}
		p.logger.Debug("stage complete",
			zap.String("member_id", st.req.MemberID),
			zap.Stringer("stage", stage),
			zap.Stringer("next", nextStage))
		emit(Event{Type: EventNodeUpdate, Stage: stage.String(), Result: st.snapshot()})
		stage = nextStage
	}

	res := st.snapshot()
	res.ReasoningHTML = p.renderHTML(res.Reasoning)
	return &res, nil
}

func (p *Pipeline) renderHTML(markdown string) string {
	out, err := render.HTML(markdown)
	if err != nil {
		p.logger.Warn("rendering reasoning", zap.Error(err))
		return ""
	}
	return out
}

// followUp answers from the session's last claim context without
// touching the ledger.
func (p *Pipeline) followUp(ctx context.Context, req Request, sess *sessions.Session) (*Result, error) {
	cc := sess.LastClaimContext
	history := sess.Messages

	var answer string
	if p.answerer != nil {
		a, err := p.answerer.Answer(ctx, req.Message, cc, history)
		if err != nil {
			p.logger.Warn("follow-up answer failed, using rule-based reply", zap.Error(err))
		}
		answer = a
	}
	if answer == "" {
		answer = answerFollowUp(req.Message, cc, policyView{
			threshold:    p.policy.QuarterlyThreshold,
			waitingWeeks: p.policy.WaitingPeriodDays / 7,
		})
	}

	wctx := context.WithoutCancel(ctx)
	if err := p.sessions.AppendMessage(wctx, sess.ID, sessions.RoleUser, req.Message); err != nil {
		return nil, fmt.Errorf("saving follow-up question: %w", err)
	}
	if err := p.sessions.AppendMessage(wctx, sess.ID, sessions.RoleAssistant, answer); err != nil {
		return nil, fmt.Errorf("saving follow-up answer: %w", err)
	}

	treatment := "N/A"
	if cc.Document != nil && cc.Document.TreatmentType != "" {
		treatment = string(cc.Document.TreatmentType)
	}
	res := &Result{
		Decision:  cc.Decision,
		Reasoning: answer,
		Payout:    cc.Payout,
		Flags:     append([]claims.Flag{}, cc.Flags...),
		NeedsInfo: []string{},
		Trace: []string{
			fmt.Sprintf("Conversation → Follow-up detected (session has %d prior messages)", len(history)),
			fmt.Sprintf("Conversation → Using claim context: %s for %s", cc.Decision, treatment),
			"Conversation → Generated contextual response ✓",
		},
		SessionID: sess.ID,
		ClaimID:   cc.ClaimID,
		Route:     cc.Route,
		FollowUp:  true,
	}
	res.ReasoningHTML = p.renderHTML(answer)

	p.record(wctx, audit.Entry{
		ActorType: actorFor(req.Role),
		ActorID:   req.MemberID,
		Action:    audit.ActionFollowUpAnswered,
		MemberID:  cc.MemberID,
		ClaimID:   cc.ClaimID,
		SessionID: sess.ID,
		Summary:   "Follow-up question answered",
	})
	return res, nil
}

func (p *Pipeline) record(ctx context.Context, e audit.Entry) {
	if p.auditLog == nil {
		return
	}
	if err := p.auditLog.Log(ctx, e); err != nil {
		p.logger.Warn("writing audit entry", zap.String("action", string(e.Action)), zap.Error(err))
	}
}

func actorFor(role claims.Role) audit.ActorType {
	if role == claims.RoleOperator {
		return audit.ActorOperator
	}
	return audit.ActorCustomer
}

// AnswerFollowUp answers a question about the session's last claim
// without running the claim stages, whatever the message looks like.
func (p *Pipeline) AnswerFollowUp(ctx context.Context, req Request) (*Result, error) {
	msg, err := SanitizeMessage(req.Message, p.cfg.MaxMessageLength)
	if err != nil {
		return nil, err
	}
	if msg == "" {
		return nil, sessions.ErrEmptyMessage
	}
	req.Message = msg

	sess, err := p.sessions.GetSession(ctx, req.SessionID)
	if err != nil {
		return nil, fmt.Errorf("loading session: %w", err)
	}
	if sess.LastClaimContext == nil {
		return nil, ErrNoClaimContext
	}
	return p.followUp(ctx, req, sess)
}

// IsInputError reports whether err was caused by the request rather than
// the pipeline.
func IsInputError(err error) bool {
	return errors.Is(err, ErrMessageTooLong) || errors.Is(err, sessions.ErrEmptyMessage) ||
		errors.Is(err, ErrNoClaimContext)
}
