package telegram

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/sandevgo/factbot/internal/config"
	"github.com/sandevgo/factbot/internal/core"
	"github.com/sandevgo/factbot/internal/service/turn"
	"github.com/sandevgo/factbot/pkg/log"
	tele "gopkg.in/telebot.v3"
)

const baseContextKey = "base_context"

type TurnHandler interface {
	Handle(ctx context.Context, req turn.Request) (turn.Result, error)
}

type ModelPicker interface {
	Model(uid string) string
}

type History interface {
	History(uid string) []core.Message
	Append(uid string, msgs ...core.Message)
	Reset(uid string)
}

type Bot struct {
	bot      *tele.Bot
	sender   *sender
	turns    TurnHandler
	commands core.CmdRouter
	models   ModelPicker
	history  History
	timezone string
	allowed  map[int64]struct{}
}

func NewBot(
	ctx context.Context,
	cfg *config.TelegramConfig,
	timezone string,
	turns TurnHandler,
	commands core.CmdRouter,
	models ModelPicker,
	history History,
) (*Bot, error) {
	pref := tele.Settings{
		Token:  cfg.Token,
		Poller: &tele.LongPoller{Timeout: 10 * time.Second},
	}

	b, err := tele.NewBot(pref)
	if err != nil {
		return nil, fmt.Errorf("failed to create telegram bot: %w", err)
	}

	bot := newBot(turns, commands, models, history, timezone, cfg.AllowedUsers)
	bot.bot = b
	bot.sender = newSender(b)

	// Use context from Signal with logger
	b.Use(func(next tele.HandlerFunc) tele.HandlerFunc {
		return func(c tele.Context) error {
			c.Set(baseContextKey, ctx)
			return next(c)
		}
	})

	b.Use(func(next tele.HandlerFunc) tele.HandlerFunc {
		return func(c tele.Context) error {
			if c.Sender() == nil || !bot.isAllowed(c.Sender().ID) {
				return nil // Ignore unauthorized users
			}
			return next(c)
		}
	})

	b.Handle(tele.OnText, bot.handleMessage)

	return bot, nil
}

func newBot(turns TurnHandler, commands core.CmdRouter, models ModelPicker, history History, timezone string, allowed []int64) *Bot {
	bot := &Bot{
		turns:    turns,
		commands: commands,
		models:   models,
		history:  history,
		timezone: timezone,
		allowed:  make(map[int64]struct{}, len(allowed)),
	}
	for _, id := range allowed {
		bot.allowed[id] = struct{}{}
	}
	return bot
}

func (b *Bot) Start(ctx context.Context) error {
	log.FromCtx(ctx).Info().Msg("starting telegram bot")
	b.bot.Start()
	return nil
}

func (b *Bot) Shutdown(ctx context.Context) error {
	b.bot.Stop()
	return nil
}

func (b *Bot) isAllowed(id int64) bool {
	if len(b.allowed) == 0 {
		return true
	}
	_, ok := b.allowed[id]
	return ok
}

func (b *Bot) handleMessage(c tele.Context) error {
	ctx := c.Get(baseContextKey).(context.Context)
	uid := fmt.Sprintf("telegram-%d", c.Sender().ID)

	// Notify user we are working
	_ = c.Notify(tele.Typing)

	reply := b.reply(ctx, uid, c.Text())
	return b.sender.sendMarkdown(ctx, c.Recipient(), reply, false)
}

// reply answers one incoming text with markdown.
func (b *Bot) reply(ctx context.Context, uid, text string) string {
	ctx = log.WithFields(ctx, map[string]string{"transport": "telegram"})

	var first string
	if fields := strings.Fields(text); len(fields) > 0 {
		first = fields[0]
	}
	switch first {
	case "/start", "/help":
		return b.help()
	case "/reset":
		b.history.Reset(uid)
		return "Conversation cleared."
	}
	if out, ok := b.commands.Execute(ctx, uid, text); ok {
		return out
	}

	res, err := b.turns.Handle(ctx, turn.Request{
		UID:      uid,
		Message:  text,
		History:  b.history.History(uid),
		ModelID:  b.models.Model(uid),
		Timezone: b.timezone,
	})
	if err != nil {
		return userMessage(ctx, err)
	}

	b.history.Append(uid,
		core.Message{Role: core.RoleUser, Content: strings.TrimSpace(text)},
		core.Message{Role: core.RoleAssistant, Content: res.Text},
	)
	return res.Text
}

func (b *Bot) help() string {
	var sb strings.Builder
	sb.WriteString("Send me a claim, a headline or a link and I will check it against current sources.\n\n")
	for _, cmd := range b.commands.ListCommands() {
		fmt.Fprintf(&sb, "/%s - %s\n", cmd.Name(), cmd.Description())
	}
	sb.WriteString("/reset - Forget this conversation\n")
	return sb.String()
}

func userMessage(ctx context.Context, err error) string {
	var (
		verr     *core.ValidationError
		exceeded *core.QuotaExceededError
	)
	switch {
	case errors.As(err, &verr):
		return "I can't process that: " + verr.Reason + "."
	case errors.As(err, &exceeded):
		r := exceeded.Remaining
		return fmt.Sprintf("You have used your credits for now (%s plan: %d left today, %d this month). The answer was not charged.",
			r.Plan, max(r.Daily, 0), max(r.Monthly, 0))
	default:
		log.FromCtx(ctx).Error().Err(err).Msg("turn failed")
		return "Sorry, something went wrong. Please try again."
	}
}
