package turn

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/oklog/ulid/v2"
	"github.com/samber/lo"
	"github.com/sandevgo/factbot/internal/core"
	"github.com/sandevgo/factbot/internal/service/citation"
	"github.com/sandevgo/factbot/internal/service/intent"
	"github.com/sandevgo/factbot/internal/service/memory"
	"github.com/sandevgo/factbot/internal/service/quota"
	"github.com/sandevgo/factbot/pkg/log"
	"github.com/sandevgo/factbot/pkg/retry"
)

const (
	MaxMessageRunes = 4000

	// historyContext is how many trailing history entries feed memory ranking.
	historyContext = 3
)

// Names recorded in Result.Degraded.
const (
	DegradedIdentity    = "identity"
	DegradedEvidence    = "evidence"
	DegradedMemory      = "memory"
	DegradedPreferences = "preferences"
)

type Request struct {
	UID       string
	Message   string
	History   []core.Message
	ModelID   string
	Timezone  string
	Anonymous *core.AnonymousCounter
}

type Result struct {
	TurnID    string
	Text      string
	Evidence  []core.EvidenceItem
	ModelID   string
	Timestamp time.Time
	// Anonymous and Counter are set only for gated anonymous turns.
	Anonymous *core.AnonymousUsage
	Counter   *core.AnonymousCounter
	Credits   int
	Degraded  []string
}

// AssistantTurn is the reply in the shape callers persist.
func (r Result) AssistantTurn() core.ConversationTurn {
	return core.ConversationTurn{
		ID:        r.TurnID,
		Role:      core.RoleAssistant,
		Content:   r.Text,
		Timestamp: r.Timestamp,
		ModelID:   r.ModelID,
		Evidence:  r.Evidence,
	}
}

type MemoryRanker interface {
	Relevant(ctx context.Context, uid, contextText string, limit int) memory.Selection
}

type MemoryExtractor interface {
	Remember(ctx context.Context, uid, userMessage string) (int, error)
}

type QuotaLedger interface {
	EnsureQuota(ctx context.Context, uid string, credits int, loc *time.Location) error
}

// Deps are the collaborators of a turn. Evidence, Memories, Extractor and
// Preferences may be nil; the turn then runs without them.
type Deps struct {
	Plans       core.PlanResolver
	Model       core.Completer
	Ledger      QuotaLedger
	Evidence    core.EvidenceSource
	Memories    MemoryRanker
	Extractor   MemoryExtractor
	Preferences core.PreferenceSource
	Detach      core.Detacher
	Estimator   quota.TokenEstimator
	Prompt      *PromptBuilder
}

type Options struct {
	DefaultModel     string
	ChatModelMarkers []string
	DefaultTimezone  string
	Attempts         int
}

type Orchestrator struct {
	deps    Deps
	opts    Options
	gate    quota.AnonymousGate
	retrier *retry.Retrier
	now     func() time.Time
}

func NewOrchestrator(deps Deps, opts Options) *Orchestrator {
	if deps.Estimator == nil {
		deps.Estimator = quota.NewTokenEstimator()
	}
	if deps.Prompt == nil {
		deps.Prompt = NewPromptBuilder("")
	}
	if opts.DefaultTimezone == "" {
		opts.DefaultTimezone = "UTC"
	}
	return &Orchestrator{
		deps:    deps,
		opts:    opts,
		gate:    quota.NewAnonymousGate(),
		retrier: retry.NewRetrier(retry.NewImmediateConfig(opts.Attempts)),
		now:     time.Now,
	}
}

// IsChatModel reports whether modelID names one of the conversational models.
func (o *Orchestrator) IsChatModel(modelID string) bool {
	id := strings.ToLower(modelID)
	return lo.SomeBy(o.opts.ChatModelMarkers, func(m string) bool {
		m = strings.ToLower(strings.TrimSpace(m))
		return m != "" && strings.Contains(id, m)
	})
}

// turnState accumulates what one Handle call learns along the way.
type turnState struct {
	req      Request
	text     string
	modelID  string
	loc      *time.Location
	plan     core.Plan
	degraded []string
}

func (s *turnState) degrade(dep string) {
	if !lo.Contains(s.degraded, dep) {
		s.degraded = append(s.degraded, dep)
	}
}

// Handle runs one turn. It fails with *core.ValidationError,
// *core.AnonymousLimitError, *core.QuotaExceededError or
// *core.ModelInvocationError; other dependency failures are absorbed and
// listed in Result.Degraded.
func (o *Orchestrator) Handle(ctx context.Context, req Request) (Result, error) {
	st, err := o.validate(req)
	if err != nil {
		return Result{}, err
	}

	ctx = log.WithFields(ctx, map[string]string{
		"component": "turn",
		"uid":       req.UID,
		"model":     st.modelID,
	})
	logger := log.FromCtx(ctx)

	anonymous := core.IsAnonymous(req.UID)
	chatModel := o.IsChatModel(st.modelID)

	var (
		usage   *core.AnonymousUsage
		counter *core.AnonymousCounter
	)
	switch {
	case anonymous && chatModel:
		var in core.AnonymousCounter
		if req.Anonymous != nil {
			in = *req.Anonymous
		}
		u, next, err := o.gate.Admit(in, o.now())
		if err != nil {
			logger.Info().Int("count", in.Count).Msg("anonymous limit reached")
			return Result{}, err
		}
		usage, counter = &u, &next
		// Anonymous chat-model turns get the full pipeline, never billed.
		st.plan = core.PlanPro
	case anonymous:
		st.plan = core.PlanFree
	default:
		st.plan = o.resolvePlan(ctx, st)
	}

	var res Result
	if st.plan == core.PlanFree && !chatModel {
		res, err = o.lightweight(ctx, st)
	} else {
		res, err = o.full(ctx, st, anonymous)
	}
	if err != nil {
		return Result{}, err
	}

	res.Anonymous = usage
	res.Counter = counter
	res.Degraded = st.degraded

	if !anonymous && o.deps.Extractor != nil {
		uid, text := req.UID, st.text
		o.detach(ctx, "memory.extract", func(ctx context.Context) error {
			_, err := o.deps.Extractor.Remember(ctx, uid, text)
			return err
		})
	}

	logger.Info().
		Str("turn_id", res.TurnID).
		Str("plan", string(st.plan)).
		Int("evidence", len(res.Evidence)).
		Int("credits", res.Credits).
		Strs("degraded", res.Degraded).
		Msg("turn completed")

	return res, nil
}

func (o *Orchestrator) validate(req Request) (*turnState, error) {
	text := strings.TrimSpace(req.Message)
	if text == "" {
		return nil, &core.ValidationError{Field: "message", Reason: "must not be empty"}
	}
	if utf8.RuneCountInString(text) > MaxMessageRunes {
		return nil, &core.ValidationError{
			Field:  "message",
			Reason: fmt.Sprintf("must be at most %d characters", MaxMessageRunes),
		}
	}

	tz := strings.TrimSpace(req.Timezone)
	if tz == "" {
		tz = o.opts.DefaultTimezone
	}
	loc, err := time.LoadLocation(tz)
	if err != nil {
		return nil, &core.ValidationError{Field: "timezone", Reason: fmt.Sprintf("unknown timezone %q", tz)}
	}

	modelID := strings.TrimSpace(req.ModelID)
	if modelID == "" {
		modelID = o.opts.DefaultModel
	}
	if modelID == "" {
		return nil, &core.ValidationError{Field: "model", Reason: "must not be empty"}
	}

	return &turnState{req: req, text: text, modelID: modelID, loc: loc}, nil
}

func (o *Orchestrator) resolvePlan(ctx context.Context, st *turnState) core.Plan {
	plan, err := o.deps.Plans.ResolvePlan(ctx, st.req.UID)
	if err != nil {
		var transient *core.TransientError
		if !errors.As(err, &transient) {
			log.Absorbed(ctx, DegradedIdentity, err)
		}
		st.degrade(DegradedIdentity)
		return core.PlanFree
	}
	return plan
}

// lightweight answers with a single flat call: no history, no memories, no billing.
func (o *Orchestrator) lightweight(ctx context.Context, st *turnState) (Result, error) {
	evidence, fetched := o.gatherEvidence(ctx, st)

	text, _, err := o.invoke(ctx, st, o.deps.Prompt.Flat(st.text, evidence))
	if err != nil {
		return Result{}, err
	}
	if fetched {
		text = citation.Integrate(text, evidence)
	}
	return o.result(st, text, evidence, 0), nil
}

func (o *Orchestrator) full(ctx context.Context, st *turnState, anonymous bool) (Result, error) {
	evidence, fetched := o.gatherEvidence(ctx, st)

	var (
		memories []core.MemoryRecord
		hint     string
	)
	if !anonymous {
		memories = o.relevantMemories(ctx, st)
		hint = o.preferenceHint(ctx, st)
	}

	prompt := o.deps.Prompt.Full(st.text, st.req.History, memories, evidence, hint)
	text, completion, err := o.invoke(ctx, st, prompt)
	if err != nil {
		return Result{}, err
	}
	if fetched {
		text = citation.Integrate(text, evidence)
	}

	credits := 0
	if !anonymous {
		credits = quota.Credits(completion, prompt, o.deps.Estimator)
		if err := o.deps.Ledger.EnsureQuota(ctx, st.req.UID, credits, st.loc); err != nil {
			var exceeded *core.QuotaExceededError
			if errors.As(err, &exceeded) {
				log.FromCtx(ctx).Info().Int("credits", credits).Msg("reply discarded, quota exceeded")
				return Result{}, err
			}
			return Result{}, fmt.Errorf("failed to charge turn: %w", err)
		}
	}

	return o.result(st, text, evidence, credits), nil
}

// gatherEvidence reports whether the classifier asked for evidence; the
// returned slice can still be empty when every backend failed.
func (o *Orchestrator) gatherEvidence(ctx context.Context, st *turnState) ([]core.EvidenceItem, bool) {
	reason, needed := intent.Classify(st.text, st.req.History)
	log.FromCtx(ctx).Debug().Str("reason", reason).Bool("needs_evidence", needed).Msg("intent classified")
	if !needed || o.deps.Evidence == nil {
		return []core.EvidenceItem{}, false
	}

	items, err := retry.Value(ctx, o.retrier, func() ([]core.EvidenceItem, error) {
		return o.deps.Evidence.Search(ctx, st.text)
	})
	if err != nil {
		log.Absorbed(ctx, DegradedEvidence, &core.TransientError{Dependency: DegradedEvidence, Err: err})
		st.degrade(DegradedEvidence)
		return []core.EvidenceItem{}, true
	}
	if items == nil {
		items = []core.EvidenceItem{}
	}
	return items, true
}

func (o *Orchestrator) relevantMemories(ctx context.Context, st *turnState) []core.MemoryRecord {
	if o.deps.Memories == nil {
		return nil
	}
	sel := o.deps.Memories.Relevant(ctx, st.req.UID, memoryContext(st.text, st.req.History), memory.DefaultLimit)
	if sel.Absorbed != nil {
		st.degrade(DegradedMemory)
	}
	return sel.Records
}

func (o *Orchestrator) preferenceHint(ctx context.Context, st *turnState) string {
	if o.deps.Preferences == nil {
		return ""
	}
	hint, err := retry.Value(ctx, o.retrier, func() (string, error) {
		return o.deps.Preferences.PreferenceHint(ctx, st.req.UID)
	})
	if err != nil {
		log.Absorbed(ctx, DegradedPreferences, err)
		st.degrade(DegradedPreferences)
		return ""
	}
	return hint
}

// invoke calls the model once. Failures are not retried.
func (o *Orchestrator) invoke(ctx context.Context, st *turnState, prompt []core.Message) (string, core.Completion, error) {
	completion, err := o.deps.Model.Complete(ctx, prompt, st.modelID)
	if err != nil {
		return "", core.Completion{}, &core.ModelInvocationError{ModelID: st.modelID, Err: err}
	}
	text := strings.TrimSpace(completion.Content)
	if text == "" {
		return "", core.Completion{}, &core.ModelInvocationError{ModelID: st.modelID, Err: errors.New("empty completion")}
	}
	return text, completion, nil
}

func (o *Orchestrator) result(st *turnState, text string, evidence []core.EvidenceItem, credits int) Result {
	return Result{
		TurnID:    ulid.Make().String(),
		Text:      text,
		Evidence:  evidence,
		ModelID:   st.modelID,
		Timestamp: o.now(),
		Credits:   credits,
	}
}

func (o *Orchestrator) detach(ctx context.Context, name string, fn func(ctx context.Context) error) {
	if o.deps.Detach == nil {
		return
	}
	o.deps.Detach.Go(ctx, name, fn)
}

// memoryContext joins the message with the last few history entries.
func memoryContext(text string, history []core.Message) string {
	parts := []string{text}
	start := max(0, len(history)-historyContext)
	for _, m := range history[start:] {
		if c := strings.TrimSpace(m.Content); c != "" {
			parts = append(parts, c)
		}
	}
	return strings.Join(parts, "\n")
}
