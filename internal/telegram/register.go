package telegram

import (
	"context"
	"fmt"

	tg "github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"

	"github.com/0xsamyy/callpoll/internal/vote"
)

// AllowedUpdates are the update types the bot consumes.
var AllowedUpdates = []string{"message", "callback_query", "poll_answer"}

// Commands is the menu published with setMyCommands.
func Commands() []models.BotCommand {
	cmds := []models.BotCommand{
		{Command: "ca", Description: "Show all commands"},
		{Command: "card", Description: "Generate call card for a CA"},
		{Command: "lb", Description: "Full leaderboard"},
	}
	for _, c := range []vote.Category{vote.Gamble, vote.CTO, vote.Volume, vote.GoodDev, vote.Alpha} {
		cmds = append(cmds, models.BotCommand{Command: c.Command, Description: c.Label + " leaderboard"})
	}
	return cmds
}

// Registration is the outcome of Register.
type Registration struct {
	Webhook  bool   `json:"webhook"`
	Commands bool   `json:"commands"`
	URL      string `json:"url"`
}

// Register points Telegram at url and publishes the command menu.
func Register(ctx context.Context, bot *tg.Bot, url, secret string) (Registration, error) {
	reg := Registration{URL: url}
	ok, err := bot.SetWebhook(ctx, &tg.SetWebhookParams{
		URL:            url,
		SecretToken:    secret,
		AllowedUpdates: AllowedUpdates,
	})
	if err != nil {
		return reg, fmt.Errorf("set webhook: %w", err)
	}
	reg.Webhook = ok

	ok, err = bot.SetMyCommands(ctx, &tg.SetMyCommandsParams{Commands: Commands()})
	if err != nil {
		return reg, fmt.Errorf("set my commands: %w", err)
	}
	reg.Commands = ok
	return reg, nil
}

// WebhookStatus returns Telegram's view of the webhook.
func WebhookStatus(ctx context.Context, bot *tg.Bot) (*models.WebhookInfo, error) {
	info, err := bot.GetWebhookInfo(ctx)
	if err != nil {
		return nil, fmt.Errorf("get webhook info: %w", err)
	}
	return info, nil
}

// DropWebhook switches the bot back to long polling.
func DropWebhook(ctx context.Context, bot *tg.Bot) error {
	if _, err := bot.DeleteWebhook(ctx, &tg.DeleteWebhookParams{}); err != nil {
		return fmt.Errorf("delete webhook: %w", err)
	}
	return nil
}

// Webhook binds registration to one URL and secret.
type Webhook struct {
	bot    *tg.Bot
	url    string
	secret string
}

func NewWebhook(bot *tg.Bot, url, secret string) *Webhook {
	return &Webhook{bot: bot, url: url, secret: secret}
}

func (w *Webhook) Register(ctx context.Context) (Registration, error) {
	return Register(ctx, w.bot, w.url, w.secret)
}

func (w *Webhook) Status(ctx context.Context) (*models.WebhookInfo, error) {
	return WebhookStatus(ctx, w.bot)
}
