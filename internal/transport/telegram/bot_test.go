package telegram

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/sandevgo/factbot/internal/core"
	"github.com/sandevgo/factbot/internal/service/state"
	"github.com/sandevgo/factbot/internal/service/turn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeTurns struct {
	reqs []turn.Request
	text string
	err  error
}

func (f *fakeTurns) Handle(ctx context.Context, req turn.Request) (turn.Result, error) {
	f.reqs = append(f.reqs, req)
	if f.err != nil {
		return turn.Result{}, f.err
	}
	return turn.Result{Text: f.text}, nil
}

type fakeCommand struct{ name, desc string }

func (c fakeCommand) Name() string        { return c.name }
func (c fakeCommand) Description() string { return c.desc }
func (c fakeCommand) Execute(ctx context.Context, uid string, args []string) (string, error) {
	return "ran " + c.name + " for " + uid, nil
}

type fakeRouter struct{ cmds []core.Command }

func (r *fakeRouter) Execute(ctx context.Context, uid, input string) (string, bool) {
	fields := strings.Fields(input)
	if len(fields) == 0 {
		return "", false
	}
	name := strings.TrimPrefix(fields[0], "/")
	for _, c := range r.cmds {
		if strings.HasPrefix(input, "/") && c.Name() == name {
			out, _ := c.Execute(ctx, uid, nil)
			return out, true
		}
	}
	return "", false
}

func (r *fakeRouter) ListCommands() []core.Command { return r.cmds }

func newTestBot(turns *fakeTurns) (*Bot, *state.Conversations) {
	history := state.NewConversations(4)
	router := &fakeRouter{cmds: []core.Command{fakeCommand{"quota", "Show remaining credits"}}}
	models := state.NewModelSelection("openai/gpt-4o-mini")
	return newBot(turns, router, models, history, "Europe/London", nil), history
}

func TestReply_Help(t *testing.T) {
	b, _ := newTestBot(&fakeTurns{})

	for _, in := range []string{"/start", "/help", "  /help  "} {
		out := b.reply(context.Background(), "telegram-1", in)
		assert.Contains(t, out, "/quota - Show remaining credits")
		assert.Contains(t, out, "/reset - Forget this conversation")
	}
}

func TestReply_Command(t *testing.T) {
	turns := &fakeTurns{}
	b, _ := newTestBot(turns)

	out := b.reply(context.Background(), "telegram-1", "/quota")
	assert.Equal(t, "ran quota for telegram-1", out)
	assert.Empty(t, turns.reqs)
}

func TestReply_TurnAppendsHistory(t *testing.T) {
	turns := &fakeTurns{text: "Partly true."}
	b, history := newTestBot(turns)
	ctx := context.Background()

	out := b.reply(ctx, "telegram-7", "  Was the bridge closed yesterday?  ")
	assert.Equal(t, "Partly true.", out)

	require.Len(t, turns.reqs, 1)
	req := turns.reqs[0]
	assert.Equal(t, "telegram-7", req.UID)
	assert.Equal(t, "openai/gpt-4o-mini", req.ModelID)
	assert.Equal(t, "Europe/London", req.Timezone)
	assert.Empty(t, req.History)

	assert.Equal(t, []core.Message{
		{Role: core.RoleUser, Content: "Was the bridge closed yesterday?"},
		{Role: core.RoleAssistant, Content: "Partly true."},
	}, history.History("telegram-7"))

	b.reply(ctx, "telegram-7", "and today?")
	require.Len(t, turns.reqs, 2)
	assert.Len(t, turns.reqs[1].History, 2)

	assert.Equal(t, "Conversation cleared.", b.reply(ctx, "telegram-7", "/reset"))
	assert.Empty(t, history.History("telegram-7"))
}

func TestReply_BlankText(t *testing.T) {
	turns := &fakeTurns{err: &core.ValidationError{Field: "message", Reason: "message is empty"}}
	b, history := newTestBot(turns)

	for _, in := range []string{"", "   ", "\n\t"} {
		assert.NotPanics(t, func() {
			out := b.reply(context.Background(), "telegram-3", in)
			assert.Contains(t, out, "I can't process that")
		})
	}
	assert.Len(t, turns.reqs, 3)
	assert.Empty(t, history.History("telegram-3"))
}

func TestReply_Errors(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{
			name: "validation",
			err:  &core.ValidationError{Field: "message", Reason: "message is empty"},
			want: "I can't process that: message is empty.",
		},
		{
			name: "quota",
			err:  &core.QuotaExceededError{Remaining: core.Remaining{Daily: 0, Monthly: 40, Plan: core.PlanFree}},
			want: "free plan: 0 left today, 40 this month",
		},
		{
			name: "internal",
			err:  errors.New("db locked"),
			want: "Sorry, something went wrong. Please try again.",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b, history := newTestBot(&fakeTurns{err: tt.err})
			out := b.reply(context.Background(), "telegram-2", "Is the moon made of cheese?")
			assert.Contains(t, out, tt.want)
			assert.Empty(t, history.History("telegram-2"))
		})
	}
}

func TestIsAllowed(t *testing.T) {
	open := newBot(&fakeTurns{}, &fakeRouter{}, state.NewModelSelection("m"), state.NewConversations(0), "", nil)
	assert.True(t, open.isAllowed(42))

	closed := newBot(&fakeTurns{}, &fakeRouter{}, state.NewModelSelection("m"), state.NewConversations(0), "", []int64{7})
	assert.True(t, closed.isAllowed(7))
	assert.False(t, closed.isAllowed(42))
}

func TestSplitHTML(t *testing.T) {
	assert.Equal(t, []string{"short"}, splitHTML("short", 100))

	text := strings.Repeat("a", 40) + "\n" + strings.Repeat("b", 40) + "\n" + strings.Repeat("c", 40)
	chunks := splitHTML(text, 90)
	require.Len(t, chunks, 2)
	assert.Equal(t, strings.Repeat("a", 40)+"\n"+strings.Repeat("b", 40), chunks[0])
	assert.Equal(t, strings.Repeat("c", 40), chunks[1])

	for _, c := range splitHTML(strings.Repeat("x", 250), 100) {
		assert.LessOrEqual(t, len(c), 100)
	}
}
