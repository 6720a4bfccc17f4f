// Package telegram adapts the Bot API to the poll engine: an outbound
// gateway, an update dispatcher and webhook registration.
package telegram

import (
	"bytes"
	"context"
	"errors"
	"fmt"

	tg "github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"

	"github.com/0xsamyy/callpoll/internal/poll"
	"github.com/0xsamyy/callpoll/internal/render"
)

// Gateway sends and edits messages through the Bot API.
type Gateway struct {
	bot *tg.Bot
}

func NewGateway(bot *tg.Bot) *Gateway { return &Gateway{bot: bot} }

var _ poll.Gateway = (*Gateway)(nil)

func noPreview() *models.LinkPreviewOptions {
	disable := true
	return &models.LinkPreviewOptions{IsDisabled: &disable}
}

// markup converts a keyboard. An empty keyboard yields a nil interface so
// the field is omitted.
func markup(kb render.Keyboard) models.ReplyMarkup {
	if len(kb) == 0 {
		return nil
	}
	rows := make([][]models.InlineKeyboardButton, len(kb))
	for i, row := range kb {
		rows[i] = make([]models.InlineKeyboardButton, len(row))
		for j, b := range row {
			rows[i][j] = models.InlineKeyboardButton{Text: b.Text, CallbackData: b.Data, URL: b.URL}
		}
	}
	return &models.InlineKeyboardMarkup{InlineKeyboard: rows}
}

func (g *Gateway) SendText(ctx context.Context, chatID int64, html string, kb render.Keyboard) (int, error) {
	msg, err := g.bot.SendMessage(ctx, &tg.SendMessageParams{
		ChatID:             chatID,
		Text:               html,
		ParseMode:          models.ParseModeHTML,
		LinkPreviewOptions: noPreview(),
		ReplyMarkup:        markup(kb),
	})
	if err != nil {
		return 0, fmt.Errorf("send message: %w", err)
	}
	return msg.ID, nil
}

func (g *Gateway) SendPhoto(ctx context.Context, chatID int64, p poll.Photo, caption string, kb render.Keyboard) (int, error) {
	var file models.InputFile
	switch {
	case p.URL != "":
		file = &models.InputFileString{Data: p.URL}
	case len(p.Data) > 0:
		name := p.Filename
		if name == "" {
			name = "image.png"
		}
		file = &models.InputFileUpload{Filename: name, Data: bytes.NewReader(p.Data)}
	default:
		return 0, errors.New("send photo: empty photo")
	}
	msg, err := g.bot.SendPhoto(ctx, &tg.SendPhotoParams{
		ChatID:      chatID,
		Photo:       file,
		Caption:     caption,
		ParseMode:   models.ParseModeHTML,
		ReplyMarkup: markup(kb),
	})
	if err != nil {
		return 0, fmt.Errorf("send photo: %w", err)
	}
	return msg.ID, nil
}

// SendPoll posts a non-anonymous multiple-answer poll.
func (g *Gateway) SendPoll(ctx context.Context, chatID int64, question string, options []string) (poll.SentPoll, error) {
	opts := make([]models.InputPollOption, len(options))
	for i, o := range options {
		opts[i] = models.InputPollOption{Text: o}
	}
	anonymous := false
	msg, err := g.bot.SendPoll(ctx, &tg.SendPollParams{
		ChatID:                chatID,
		Question:              question,
		Options:               opts,
		IsAnonymous:           &anonymous,
		AllowsMultipleAnswers: true,
	})
	if err != nil {
		return poll.SentPoll{}, fmt.Errorf("send poll: %w", err)
	}
	if msg.Poll == nil {
		return poll.SentPoll{}, errors.New("send poll: response has no poll")
	}
	return poll.SentPoll{MessageID: msg.ID, PollID: msg.Poll.ID}, nil
}

func (g *Gateway) EditText(ctx context.Context, chatID int64, messageID int, html string, kb render.Keyboard) error {
	_, err := g.bot.EditMessageText(ctx, &tg.EditMessageTextParams{
		ChatID:             chatID,
		MessageID:          messageID,
		Text:               html,
		ParseMode:          models.ParseModeHTML,
		LinkPreviewOptions: noPreview(),
		ReplyMarkup:        markup(kb),
	})
	if err != nil {
		return fmt.Errorf("edit message text: %w", err)
	}
	return nil
}

func (g *Gateway) EditCaption(ctx context.Context, chatID int64, messageID int, caption string, kb render.Keyboard) error {
	_, err := g.bot.EditMessageCaption(ctx, &tg.EditMessageCaptionParams{
		ChatID:      chatID,
		MessageID:   messageID,
		Caption:     caption,
		ParseMode:   models.ParseModeHTML,
		ReplyMarkup: markup(kb),
	})
	if err != nil {
		return fmt.Errorf("edit message caption: %w", err)
	}
	return nil
}

func (g *Gateway) Delete(ctx context.Context, chatID int64, messageID int) error {
	if _, err := g.bot.DeleteMessage(ctx, &tg.DeleteMessageParams{ChatID: chatID, MessageID: messageID}); err != nil {
		return fmt.Errorf("delete message: %w", err)
	}
	return nil
}

func (g *Gateway) AnswerCallback(ctx context.Context, callbackID, text string) error {
	if _, err := g.bot.AnswerCallbackQuery(ctx, &tg.AnswerCallbackQueryParams{
		CallbackQueryID: callbackID,
		Text:            text,
	}); err != nil {
		return fmt.Errorf("answer callback query: %w", err)
	}
	return nil
}
