package poll

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/0xsamyy/callpoll/internal/card"
	"github.com/0xsamyy/callpoll/internal/render"
	"github.com/0xsamyy/callpoll/internal/store"
)

// Callback acknowledgements.
const (
	AckDeleted   = "Deleted"
	AckRefreshed = "Refreshed ✅"
)

// cardTimeout bounds one image generation.
const cardTimeout = 90 * time.Second

// HandleCallback runs an inline button action. Every press is answered,
// including unknown tokens.
func (e *Engine) HandleCallback(ctx context.Context, ev CallbackEvent) error {
	ack := ""
	defer func() {
		if err := e.gw.AnswerCallback(ctx, ev.ID, ack); err != nil {
			e.log.Warn("answer callback failed", zap.Error(err))
		}
	}()

	cb, ok := render.ParseCallback(ev.Data)
	if !ok {
		return nil
	}
	switch cb.Action {
	case render.ActionDelete:
		if err := e.gw.Delete(ctx, ev.ChatID, ev.MessageID); err != nil {
			e.log.Warn("delete message failed", zap.Int64("chat", ev.ChatID), zap.Error(err))
		}
		ack = AckDeleted

	case render.ActionRefresh:
		e.refresh(ctx, ev, cb.CA)
		ack = AckRefreshed

	case render.ActionCard:
		ack = AckRefreshed
		e.sendCard(ctx, ev.ChatID, cb.CA)

	case render.ActionLeaderboard:
		board, err := e.boards.Build(ctx, ev.ChatID, cb.Period, cb.Filter)
		if err != nil {
			e.log.Error("build leaderboard failed", zap.Int64("chat", ev.ChatID), zap.Error(err))
			return nil
		}
		if err := e.gw.EditText(ctx, ev.ChatID, ev.MessageID, render.Leaderboard(board),
			render.LeaderboardKeyboard(board.Period, cb.Filter)); err != nil {
			e.log.Warn("edit leaderboard failed", zap.Int64("chat", ev.ChatID), zap.Error(err))
		}
	}
	return nil
}

// refresh re-renders a result card in place.
func (e *Engine) refresh(ctx context.Context, ev CallbackEvent, addr string) {
	rec, err := e.st.GetPoll(ctx, ev.ChatID, addr)
	if err != nil {
		if !errors.Is(err, store.ErrNotFound) {
			e.log.Warn("refresh lookup failed", zap.Int64("chat", ev.ChatID), zap.Error(err))
		}
		return
	}
	if rec.IsOpen() {
		return
	}
	text, _ := e.resultMessage(ctx, rec, false)
	kb := render.ResultKeyboard(addr)
	if ev.HasPhoto {
		err = e.gw.EditCaption(ctx, ev.ChatID, ev.MessageID, text, kb)
	} else {
		err = e.gw.EditText(ctx, ev.ChatID, ev.MessageID, text, kb)
	}
	if err != nil {
		e.log.Warn("refresh edit failed", zap.Int64("chat", ev.ChatID), zap.Error(err))
	}
}

// sendCard posts the call card for addr's record in chatID.
func (e *Engine) sendCard(ctx context.Context, chatID int64, addr string) {
	rec, err := e.st.GetPoll(ctx, chatID, addr)
	if err != nil {
		if !errors.Is(err, store.ErrNotFound) {
			e.log.Warn("card lookup failed", zap.Int64("chat", chatID), zap.Error(err))
		}
		e.sendText(ctx, chatID, render.MsgNoCall, nil)
		return
	}
	q, err := e.oracle.Quote(ctx, addr)
	if err != nil {
		e.log.Warn("card quote failed", zap.String("ca", addr), zap.Error(err))
		e.sendText(ctx, chatID, render.MsgNoTokenData, nil)
		return
	}

	entry, current := rec.Entry(), q.PriceUSD
	peak := rec.Peak()
	if current > peak {
		if _, err := e.st.RaisePeak(ctx, chatID, addr, current); err != nil {
			e.log.Warn("raise peak failed", zap.String("ca", addr), zap.Error(err))
		}
		peak = current
	}
	entryMC := "N/A"
	if supply := q.Supply(); entry > 0 && supply > 0 {
		entryMC = render.Compact(entry * supply)
	}
	athPrice := 0.0
	if ath, err := e.st.GetATH(ctx, addr); err == nil {
		athPrice = ath.MaxPriceUSD
	}

	c := card.Card{
		CA:          addr,
		CoinName:    q.Name,
		Caller:      rec.SenderUsername,
		Votes:       rec.Votes(),
		Performance: render.Performance(entry, current),
		Highest:     render.Performance(entry, peak),
		EntryMC:     entryMC,
		CurrentMC:   render.USD(q.MarketCapUSD),
		Price:       render.Price(current),
		ATH:         render.ATH(q, athPrice),
		Elapsed:     render.Elapsed(e.now().Sub(rec.CreatedAt)),
		Positive:    entry > 0 && current >= entry,
	}
	caption := render.CardCaption(c)
	kb := render.CardKeyboard(addr)

	if e.cards == nil {
		e.sendText(ctx, chatID, caption, kb)
		return
	}
	e.sendText(ctx, chatID, render.MsgGeneratingCard, nil)

	gctx, cancel := context.WithTimeout(ctx, cardTimeout)
	defer cancel()
	img, err := e.cards.Generate(gctx, c)
	if err != nil {
		e.log.Warn("card generation failed", zap.String("ca", addr), zap.Error(err))
		e.sendText(ctx, chatID, caption, kb)
		return
	}
	if _, err := e.gw.SendPhoto(ctx, chatID, Photo{Data: img.Data, Filename: "card.png"}, caption, kb); err != nil {
		e.log.Warn("send card failed", zap.Int64("chat", chatID), zap.Error(err))
		e.sendText(ctx, chatID, render.MsgCardFailed, nil)
	}
}
