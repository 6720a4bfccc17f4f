package telegram

import (
	"context"
	"fmt"

	tg "github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
	"go.uber.org/zap"

	"github.com/0xsamyy/callpoll/internal/dedupe"
	"github.com/0xsamyy/callpoll/internal/poll"
)

// Handler is the engine side of the dispatcher.
type Handler interface {
	HandleMessage(ctx context.Context, ev poll.MessageEvent) error
	HandleVote(ctx context.Context, ev poll.VoteEvent) error
	HandleCallback(ctx context.Context, ev poll.CallbackEvent) error
}

// Dispatcher turns updates into engine events, once per update id.
type Dispatcher struct {
	h      Handler
	claims dedupe.Claimer
	log    *zap.Logger
}

func NewDispatcher(h Handler, claims dedupe.Claimer, log *zap.Logger) *Dispatcher {
	return &Dispatcher{h: h, claims: claims, log: log.Named("telegram")}
}

// Dispatch routes u. A returned error means the update was not handled
// and its claim was released for redelivery.
func (d *Dispatcher) Dispatch(ctx context.Context, u *models.Update) error {
	claimed, err := d.claims.Claim(ctx, u.ID)
	if err != nil {
		// The store invariants still hold without the claim.
		d.log.Warn("claim update failed", zap.Int64("update", u.ID), zap.Error(err))
		claimed = true
	}
	if !claimed {
		d.log.Debug("duplicate update skipped", zap.Int64("update", u.ID))
		return nil
	}
	if err := d.route(ctx, u); err != nil {
		if rerr := d.claims.Release(ctx, u.ID); rerr != nil {
			d.log.Warn("release update failed", zap.Int64("update", u.ID), zap.Error(rerr))
		}
		return fmt.Errorf("update %d: %w", u.ID, err)
	}
	return nil
}

func (d *Dispatcher) route(ctx context.Context, u *models.Update) error {
	switch {
	case u.Message != nil:
		m := u.Message
		if m.From == nil {
			return nil
		}
		text := m.Text
		if text == "" {
			text = m.Caption
		}
		return d.h.HandleMessage(ctx, poll.MessageEvent{
			ChatID:     m.Chat.ID,
			SenderID:   m.From.ID,
			SenderName: displayName(m.From),
			Text:       text,
		})

	case u.PollAnswer != nil:
		a := u.PollAnswer
		if a.User == nil {
			return nil
		}
		return d.h.HandleVote(ctx, poll.VoteEvent{
			PollID:    a.PollID,
			VoterID:   a.User.ID,
			VoterName: displayName(a.User),
			OptionIDs: a.OptionIDs,
		})

	case u.CallbackQuery != nil:
		q := u.CallbackQuery
		ev := poll.CallbackEvent{ID: q.ID, Data: q.Data}
		switch {
		case q.Message.Message != nil:
			ev.ChatID = q.Message.Message.Chat.ID
			ev.MessageID = q.Message.Message.ID
			ev.HasPhoto = len(q.Message.Message.Photo) > 0
		case q.Message.InaccessibleMessage != nil:
			ev.ChatID = q.Message.InaccessibleMessage.Chat.ID
			ev.MessageID = q.Message.InaccessibleMessage.MessageID
		}
		return d.h.HandleCallback(ctx, ev)
	}
	return nil
}

// DefaultHandler serves long polling, where failed updates cannot be
// redelivered and are only logged.
func (d *Dispatcher) DefaultHandler(ctx context.Context, _ *tg.Bot, u *models.Update) {
	if err := d.Dispatch(ctx, u); err != nil {
		d.log.Error("dispatch failed", zap.Error(err))
	}
}

func displayName(u *models.User) string {
	if u.Username != "" {
		return u.Username
	}
	return u.FirstName
}
