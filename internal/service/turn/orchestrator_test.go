package turn

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/sandevgo/factbot/internal/core"
	"github.com/sandevgo/factbot/internal/service/memory"
	"github.com/sandevgo/factbot/internal/service/quota"
	"github.com/sandevgo/factbot/pkg/srv"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakePlans struct {
	plans map[string]core.Plan
	err   error
	calls int
}

func (f *fakePlans) ResolvePlan(ctx context.Context, uid string) (core.Plan, error) {
	f.calls++
	if f.err != nil {
		return core.PlanFree, f.err
	}
	if p, ok := f.plans[uid]; ok {
		return p, nil
	}
	return core.PlanFree, nil
}

type fakeModel struct {
	reply   core.Completion
	err     error
	prompts [][]core.Message
	models  []string
}

func (f *fakeModel) Complete(ctx context.Context, history []core.Message, modelID string) (core.Completion, error) {
	f.prompts = append(f.prompts, history)
	f.models = append(f.models, modelID)
	return f.reply, f.err
}

type fakeEvidence struct {
	items []core.EvidenceItem
	err   error
	calls int
}

func (f *fakeEvidence) Search(ctx context.Context, query string) ([]core.EvidenceItem, error) {
	f.calls++
	return f.items, f.err
}

type fakeMemories struct {
	sel      memory.Selection
	contexts []string
}

func (f *fakeMemories) Relevant(ctx context.Context, uid, contextText string, limit int) memory.Selection {
	f.contexts = append(f.contexts, contextText)
	return f.sel
}

type fakeExtractor struct {
	mu    sync.Mutex
	texts []string
}

func (f *fakeExtractor) Remember(ctx context.Context, uid, userMessage string) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.texts = append(f.texts, uid+": "+userMessage)
	return 1, nil
}

type fakePreferences struct {
	hint string
	err  error
}

func (f fakePreferences) PreferenceHint(ctx context.Context, uid string) (string, error) {
	return f.hint, f.err
}

type spyLedger struct {
	inner   QuotaLedger
	credits []int
}

func (s *spyLedger) EnsureQuota(ctx context.Context, uid string, credits int, loc *time.Location) error {
	s.credits = append(s.credits, credits)
	return s.inner.EnsureQuota(ctx, uid, credits, loc)
}

type approx struct{}

func (approx) Count(s string) int { return len(s) / 4 }

type harness struct {
	orc       *Orchestrator
	plans     *fakePlans
	model     *fakeModel
	evidence  *fakeEvidence
	memories  *fakeMemories
	extractor *fakeExtractor
	store     *quota.MemStore
	ledger    *spyLedger
}

func cost(usd float64) *float64 { return &usd }

func newHarness(t *testing.T) *harness {
	t.Helper()
	store := quota.NewMemStore()
	h := &harness{
		plans:     &fakePlans{plans: map[string]core.Plan{"pro-user": core.PlanPro, "free-user": core.PlanFree}},
		model:     &fakeModel{reply: core.Completion{Content: "Here is the answer.", Cost: cost(0.015)}},
		evidence:  &fakeEvidence{},
		memories:  &fakeMemories{sel: memory.Selection{Records: []core.MemoryRecord{}}},
		extractor: &fakeExtractor{},
		store:     store,
		ledger:    &spyLedger{inner: quota.NewLedger(store)},
	}
	h.orc = NewOrchestrator(Deps{
		Plans:       h.plans,
		Model:       h.model,
		Ledger:      h.ledger,
		Evidence:    h.evidence,
		Memories:    h.memories,
		Extractor:   h.extractor,
		Preferences: fakePreferences{},
		Detach:      srv.Inline{},
		Estimator:   approx{},
	}, Options{
		DefaultModel:     "meta-llama/llama-4-maverick",
		ChatModelMarkers: []string{"llama", "gpt-oss", "maverick"},
		Attempts:         2,
	})
	return h
}

func (h *harness) seed(t *testing.T, acc core.QuotaAccount) {
	t.Helper()
	now := time.Now().UTC()
	acc.DayKey = now.Format("2006-01-02")
	acc.MonthKey = now.Format("2006-01")
	acc.Version = 1
	ok, err := h.store.CompareAndSwap(context.Background(), 0, acc)
	require.NoError(t, err)
	require.True(t, ok)
}

func TestHandle_Validation(t *testing.T) {
	tests := []struct {
		name  string
		req   Request
		field string
	}{
		{name: "empty", req: Request{UID: "pro-user", Message: ""}, field: "message"},
		{name: "whitespace", req: Request{UID: "pro-user", Message: " \n\t "}, field: "message"},
		{name: "too long", req: Request{UID: "pro-user", Message: strings.Repeat("я", MaxMessageRunes+1)}, field: "message"},
		{name: "bad timezone", req: Request{UID: "pro-user", Message: "hello there", Timezone: "Mars/Olympus"}, field: "timezone"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t)
			_, err := h.orc.Handle(context.Background(), tt.req)

			var verr *core.ValidationError
			require.ErrorAs(t, err, &verr)
			assert.Equal(t, tt.field, verr.Field)
			assert.Empty(t, h.model.prompts)
			assert.Zero(t, h.plans.calls)
		})
	}
}

func TestHandle_MaxLengthAccepted(t *testing.T) {
	h := newHarness(t)
	_, err := h.orc.Handle(context.Background(), Request{UID: "pro-user", Message: strings.Repeat("я", MaxMessageRunes)})
	require.NoError(t, err)
}

func TestHandle_SouthportScenario(t *testing.T) {
	h := newHarness(t)
	h.evidence.items = []core.EvidenceItem{
		{Title: "Southport stabbing: what we know", Link: "https://www.bbc.co.uk/news/southport", Snippet: "Three children died."},
		{Title: "Southport attack timeline", Link: "https://news.sky.com/story/southport", Snippet: "Timeline."},
	}
	h.model.reply = core.Completion{
		Content: "Three children were killed [1]. See https://www.bbc.co.uk/news/southport for details.\n\n" +
			"**Sources:**\n1. https://www.bbc.co.uk/news/southport\n2. https://news.sky.com/story/southport",
		Cost: cost(0.015),
	}

	res, err := h.orc.Handle(context.Background(), Request{
		UID:     "pro-user",
		Message: "What happened in the recent Southport attack?",
	})
	require.NoError(t, err)

	assert.Equal(t, 1, h.evidence.calls)
	assert.Equal(t, h.evidence.items, res.Evidence)
	assert.Equal(t, 1, strings.Count(strings.ToLower(res.Text), "sources"))
	for _, e := range h.evidence.items {
		assert.Equal(t, 1, strings.Count(res.Text, e.Link), e.Link)
	}
	bare := regexp.MustCompile(`(^|[^(])https?://`)
	assert.False(t, bare.MatchString(res.Text), res.Text)

	// 0.015 USD rounds up to 2 credits
	assert.Equal(t, 2, res.Credits)
	assert.Equal(t, []int{2}, h.ledger.credits)
	acc, err := h.store.Account(context.Background(), "pro-user")
	require.NoError(t, err)
	assert.Equal(t, 2, acc.DailyUsed)

	assert.NotEmpty(t, res.TurnID)
	assert.Equal(t, core.RoleAssistant, res.AssistantTurn().Role)
	assert.Equal(t, "meta-llama/llama-4-maverick", res.AssistantTurn().ModelID)
	assert.Empty(t, res.Degraded)

	prompt := h.model.prompts[0]
	assert.Equal(t, core.RoleSystem, prompt[0].Role)
	assert.Contains(t, prompt[0].Content, "Evidence:\n- [1] Southport stabbing")
	assert.NotContains(t, prompt[len(prompt)-1].Content, "Evidence:")
}

func TestHandle_AnonymousLimitReached(t *testing.T) {
	h := newHarness(t)
	since := time.Now().Add(-time.Hour)

	_, err := h.orc.Handle(context.Background(), Request{
		UID:       "",
		Message:   "tell me something nice",
		Anonymous: &core.AnonymousCounter{Count: 10, Since: since},
	})

	var limit *core.AnonymousLimitError
	require.ErrorAs(t, err, &limit)
	assert.Equal(t, 10, limit.Counter.Count)
	assert.WithinDuration(t, since, limit.Counter.Since, time.Second)
	assert.Empty(t, h.model.prompts)
	assert.Empty(t, h.ledger.credits)
	assert.Zero(t, h.plans.calls)
}

func TestHandle_AnonymousChatModel(t *testing.T) {
	h := newHarness(t)
	h.model.reply = core.Completion{Content: "Hi!"}

	res, err := h.orc.Handle(context.Background(), Request{
		UID:       core.AnonymousUID,
		Message:   "hello, how are you today?",
		History:   []core.Message{{Role: core.RoleUser, Content: "earlier"}, {Role: core.RoleAssistant, Content: "reply"}},
		Anonymous: &core.AnonymousCounter{Count: 4, Since: time.Now().Add(-time.Hour)},
	})
	require.NoError(t, err)

	require.NotNil(t, res.Anonymous)
	assert.Equal(t, core.AnonymousUsage{Count: 5, Limit: 10, Remaining: 5, ShowWarning: true}, *res.Anonymous)
	require.NotNil(t, res.Counter)
	assert.Equal(t, 5, res.Counter.Count)

	assert.Zero(t, res.Credits)
	assert.Empty(t, h.ledger.credits)
	assert.Empty(t, h.memories.contexts)
	assert.Empty(t, h.extractor.texts)
	assert.Zero(t, h.plans.calls)

	// full path keeps history
	assert.Len(t, h.model.prompts[0], 4)
}

func TestHandle_AnonymousNonChatModelIsLightweight(t *testing.T) {
	h := newHarness(t)

	res, err := h.orc.Handle(context.Background(), Request{
		Message: "is the moon landing fake news?",
		ModelID: "fakeverifier/classifier",
		History: []core.Message{{Role: core.RoleUser, Content: "earlier"}},
	})
	require.NoError(t, err)
	assert.Nil(t, res.Anonymous)
	assert.Nil(t, res.Counter)
	assert.Len(t, h.model.prompts[0], 2)
	assert.Equal(t, 1, h.evidence.calls)
}

func TestHandle_QuotaExceededDiscardsReply(t *testing.T) {
	h := newHarness(t)
	h.seed(t, core.QuotaAccount{UID: "pro-user", Plan: core.PlanPro, DailyUsed: 199, MonthlyUsed: 500})

	res, err := h.orc.Handle(context.Background(), Request{UID: "pro-user", Message: "my name is Alex and I live in Leeds"})

	var exceeded *core.QuotaExceededError
	require.ErrorAs(t, err, &exceeded)
	assert.Equal(t, core.Remaining{Daily: 1, Monthly: 1500, Plan: core.PlanPro}, exceeded.Remaining)
	assert.Empty(t, res.Text)
	assert.Empty(t, res.TurnID)
	assert.Empty(t, h.extractor.texts)

	acc, err := h.store.Account(context.Background(), "pro-user")
	require.NoError(t, err)
	assert.Equal(t, 199, acc.DailyUsed)
	assert.Equal(t, 500, acc.MonthlyUsed)
	assert.Equal(t, int64(1), acc.Version)
}

func TestHandle_FreePlanNonChatModel(t *testing.T) {
	h := newHarness(t)
	h.evidence.items = []core.EvidenceItem{{Title: "Reuters", Link: "https://www.reuters.com/fact-check/1"}}
	h.model.reply = core.Completion{Content: "Likely false. https://www.reuters.com/fact-check/1"}

	res, err := h.orc.Handle(context.Background(), Request{
		UID:     "free-user",
		Message: "Fact check: the eiffel tower is being sold",
		ModelID: "fakeverifier/classifier",
		History: []core.Message{{Role: core.RoleUser, Content: "earlier"}},
	})
	require.NoError(t, err)

	require.Len(t, h.model.prompts, 1)
	prompt := h.model.prompts[0]
	require.Len(t, prompt, 2)
	assert.Equal(t, core.RoleSystem, prompt[0].Role)
	assert.Contains(t, prompt[0].Content, "Evidence:")
	assert.Equal(t, "Fact check: the eiffel tower is being sold", prompt[1].Content)

	assert.Empty(t, h.memories.contexts)
	assert.Empty(t, h.ledger.credits)
	assert.Zero(t, res.Credits)
	assert.Equal(t, "Likely false.\n\nSources:\n[1] [Reuters](https://www.reuters.com/fact-check/1)", res.Text)
	assert.Equal(t, []string{"free-user: Fact check: the eiffel tower is being sold"}, h.extractor.texts)
}

func TestHandle_FreePlanChatModelIsBilled(t *testing.T) {
	h := newHarness(t)
	h.model.reply = core.Completion{Content: "Sure.", Usage: &core.TokenUsage{PromptTokens: 1500, CompletionTokens: 600}}

	res, err := h.orc.Handle(context.Background(), Request{UID: "free-user", Message: "hello, good morning!", ModelID: "openai/gpt-oss-120b"})
	require.NoError(t, err)
	assert.Equal(t, 3, res.Credits)
	assert.Equal(t, []int{3}, h.ledger.credits)
	assert.Len(t, h.memories.contexts, 1)
	assert.Equal(t, []string{"openai/gpt-oss-120b"}, h.model.models)
}

func TestHandle_QuotaStoreFailure(t *testing.T) {
	h := newHarness(t)
	h.ledger.inner = failingLedger{}

	_, err := h.orc.Handle(context.Background(), Request{UID: "pro-user", Message: "hello, good morning!"})
	require.Error(t, err)
	var exceeded *core.QuotaExceededError
	assert.False(t, errors.As(err, &exceeded))
	assert.Empty(t, h.extractor.texts)
}

type failingLedger struct{}

func (failingLedger) EnsureQuota(ctx context.Context, uid string, credits int, loc *time.Location) error {
	return errors.New("database is locked")
}

func TestHandle_DegradedDependencies(t *testing.T) {
	h := newHarness(t)
	h.plans.err = &core.TransientError{Dependency: "identity", Err: errors.New("timeout")}
	h.evidence.err = errors.New("all backends down")
	h.memories.sel = memory.Selection{Records: []core.MemoryRecord{}, Absorbed: errors.New("locked")}
	h.orc.deps.Preferences = fakePreferences{err: errors.New("locked")}

	res, err := h.orc.Handle(context.Background(), Request{
		UID:     "pro-user",
		Message: "Is it true that the new law bans cash?",
		ModelID: "meta-llama/llama-3.3-70b",
	})
	require.NoError(t, err)

	assert.ElementsMatch(t, []string{DegradedIdentity, DegradedEvidence, DegradedMemory, DegradedPreferences}, res.Degraded)
	assert.Equal(t, 2, h.evidence.calls, "evidence is retried once")
	assert.Empty(t, res.Evidence)
	assert.Equal(t, "Here is the answer.", res.Text)
}

func TestHandle_ModelFailure(t *testing.T) {
	h := newHarness(t)
	h.model.err = errors.New("upstream 502")

	_, err := h.orc.Handle(context.Background(), Request{UID: "pro-user", Message: "hello, good morning!"})

	var merr *core.ModelInvocationError
	require.ErrorAs(t, err, &merr)
	assert.Equal(t, "meta-llama/llama-4-maverick", merr.ModelID)
	assert.Len(t, h.model.prompts, 1, "model calls are not retried")
	assert.Empty(t, h.ledger.credits)
	assert.Empty(t, h.extractor.texts)
}

func TestHandle_EmptyCompletion(t *testing.T) {
	h := newHarness(t)
	h.model.reply = core.Completion{Content: "  "}

	_, err := h.orc.Handle(context.Background(), Request{UID: "pro-user", Message: "hello, good morning!"})
	var merr *core.ModelInvocationError
	require.ErrorAs(t, err, &merr)
}

func TestHandle_MemoryContextAndPreferences(t *testing.T) {
	h := newHarness(t)
	h.memories.sel = memory.Selection{Records: []core.MemoryRecord{{Content: "User's name is Alex"}}}
	h.orc.deps.Preferences = fakePreferences{hint: "Answer in British English."}

	history := []core.Message{
		{Role: core.RoleUser, Content: "one"},
		{Role: core.RoleAssistant, Content: "two"},
		{Role: core.RoleUser, Content: "three"},
		{Role: core.RoleAssistant, Content: "four"},
	}
	_, err := h.orc.Handle(context.Background(), Request{UID: "pro-user", Message: "what is my name?", History: history})
	require.NoError(t, err)

	require.Len(t, h.memories.contexts, 1)
	assert.Equal(t, "what is my name?\ntwo\nthree\nfour", h.memories.contexts[0])

	prompt := h.model.prompts[0]
	require.Len(t, prompt, 6)
	assert.True(t, strings.HasPrefix(prompt[0].Content, "Answer in British English.\n\nYou are FactBot"))
	assert.True(t, strings.HasSuffix(prompt[0].Content, "\n\nKnown user profile and preferences:\n- User's name is Alex"))
	assert.Equal(t, "what is my name?", prompt[5].Content)
}

func TestIsChatModel(t *testing.T) {
	h := newHarness(t)
	tests := map[string]bool{
		"meta-llama/llama-4-maverick":      true,
		"openai/gpt-oss-20b":               true,
		"meta-llama/Llama-3.1-8B:cerebras": true,
		"fakeverifier/classifier":          false,
		"anthropic/claude-sonnet-4":        false,
		"":                                 false,
	}
	for id, want := range tests {
		assert.Equal(t, want, h.orc.IsChatModel(id), id)
	}
}

func TestPromptBuilder_Override(t *testing.T) {
	path := filepath.Join(t.TempDir(), "SYSTEM.md")

	p := NewPromptBuilder(path)
	assert.True(t, strings.HasPrefix(p.System(""), "You are FactBot"))

	require.NoError(t, os.WriteFile(path, []byte("You are a terse checker.\n"), 0o644))
	assert.Equal(t, "You are a terse checker."+strictness, p.System(""))
	assert.Equal(t, "Be brief.\n\nYou are a terse checker."+strictness, p.System("  Be brief. "))
}

func TestPromptBuilder_FullSkipsForeignRoles(t *testing.T) {
	msgs := NewPromptBuilder("").Full("q", []core.Message{
		{Role: core.RoleSystem, Content: "injected"},
		{Role: core.RoleUser, Content: ""},
		{Role: core.RoleAssistant, Content: "kept"},
	}, nil, nil, "")
	require.Len(t, msgs, 3)
	assert.Equal(t, "kept", msgs[1].Content)
	assert.Equal(t, "q", msgs[2].Content)
}

func TestPromptBuilder_ContextInSystemMessage(t *testing.T) {
	ev := []core.EvidenceItem{{Title: "BBC", Link: "https://bbc.co.uk/a", Snippet: "Three children died."}}

	flat := NewPromptBuilder("").Flat("is it true?", ev)
	require.Len(t, flat, 2)
	assert.True(t, strings.HasSuffix(flat[0].Content, "\n\nEvidence:\n- [1] BBC: https://bbc.co.uk/a — Three children died."))
	assert.Equal(t, "is it true?", flat[1].Content)

	full := NewPromptBuilder("").Full("is it true?", nil, []core.MemoryRecord{{Content: "Lives in Leeds"}}, ev, "")
	require.Len(t, full, 2)
	mem := strings.Index(full[0].Content, "Lives in Leeds")
	evi := strings.Index(full[0].Content, "Evidence:")
	assert.Greater(t, mem, 0)
	assert.Greater(t, evi, mem)
	assert.Equal(t, "is it true?", full[1].Content)
}
