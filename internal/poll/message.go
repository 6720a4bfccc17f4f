package poll

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/0xsamyy/callpoll/internal/ca"
	"github.com/0xsamyy/callpoll/internal/render"
	"github.com/0xsamyy/callpoll/internal/store"
	"github.com/0xsamyy/callpoll/internal/vote"
)

// HandleMessage reacts to a chat message: a command, a contract address,
// or nothing. The returned error is non-nil only when the store failed and
// a redelivery may succeed.
func (e *Engine) HandleMessage(ctx context.Context, ev MessageEvent) error {
	text := strings.TrimSpace(ev.Text)
	if text == "" {
		return nil
	}
	if strings.HasPrefix(text, "/") && e.handleCommand(ctx, ev, text) {
		return nil
	}
	addr, ok := ca.Extract(text)
	if !ok {
		return nil
	}
	return e.handleCA(ctx, ev, addr)
}

// handleCommand runs a known command and reports whether it did.
func (e *Engine) handleCommand(ctx context.Context, ev MessageEvent, text string) bool {
	fields := strings.Fields(text)
	cmd := strings.ToLower(strings.TrimPrefix(fields[0], "/"))
	if idx := strings.IndexRune(cmd, '@'); idx != -1 {
		cmd = cmd[:idx]
	}
	args := fields[1:]

	switch cmd {
	case "ca", "start", "help":
		e.sendText(ctx, ev.ChatID, render.Help(), nil)
	case "card":
		addr := ""
		if len(args) > 0 {
			addr, _ = ca.Extract(strings.Join(args, " "))
		}
		if addr == "" {
			e.sendText(ctx, ev.ChatID, render.MsgCardUsage, nil)
			return true
		}
		e.sendCard(ctx, ev.ChatID, addr)
	case "lb":
		e.sendLeaderboard(ctx, ev.ChatID, "")
	case "health":
		e.sendHealth(ctx, ev.ChatID)
	default:
		c, ok := vote.ByCommand(cmd)
		if !ok {
			return false
		}
		e.sendLeaderboard(ctx, ev.ChatID, c.Key)
	}
	return true
}

func (e *Engine) handleCA(ctx context.Context, ev MessageEvent, addr string) error {
	rec, err := e.st.GetPoll(ctx, ev.ChatID, addr)
	switch {
	case err == nil:
		return e.handleExisting(ctx, rec)
	case !errors.Is(err, store.ErrNotFound):
		return fmt.Errorf("get poll: %w", err)
	}

	now := e.now()
	rec = &store.PollRecord{
		ChatID:          ev.ChatID,
		ContractAddress: addr,
		SenderUserID:    ev.SenderID,
		SenderUsername:  ev.SenderName,
		CreatedAt:       now,
	}

	pref, hasPref := e.preference(ctx, ev.SenderID, addr)
	if hasPref {
		rec.Vote = &pref
		rec.VotedAt = &now
	}

	q, _ := e.quote(ctx, addr)
	if q != nil && q.PriceUSD > 0 {
		entry, peak := q.PriceUSD, q.PriceUSD
		rec.EntryPriceUSD = &entry
		rec.PeakPriceUSD = &peak
	}

	if err := e.st.CreatePoll(ctx, rec); err != nil {
		if !errors.Is(err, store.ErrPollExists) {
			return fmt.Errorf("create poll: %w", err)
		}
		// Lost the race for (chat, CA): answer like a repeated post.
		existing, err := e.st.GetPoll(ctx, ev.ChatID, addr)
		if err != nil {
			return fmt.Errorf("get poll: %w", err)
		}
		return e.handleExisting(ctx, existing)
	}
	e.changed()

	if hasPref {
		e.log.Info("auto-resolved from preference",
			zap.Int64("chat", ev.ChatID), zap.String("ca", addr), zap.String("vote", pref))
		e.sendResult(ctx, rec, true)
		return nil
	}

	opened, err := e.openPoll(ctx, rec)
	if err != nil {
		return err
	}
	if mc := q.MarketCap(); opened && mc > 0 {
		e.sendText(ctx, ev.ChatID, render.FirstCallAnnouncement(ev.SenderName, mc), nil)
	}
	return nil
}

// handleExisting answers a repeated post of a known CA.
func (e *Engine) handleExisting(ctx context.Context, rec *store.PollRecord) error {
	if !rec.IsOpen() {
		e.sendResult(ctx, rec, false)
		return nil
	}
	if !rec.HasPoll() && e.now().Sub(rec.CreatedAt) >= pollGrace {
		_, err := e.openPoll(ctx, rec)
		return err
	}
	e.sendText(ctx, rec.ChatID, render.StillOpen(rec.SenderUsername, rec.ChatID, rec.MessageID), nil)
	return nil
}

// openPoll posts the native poll and binds it to rec. A failed send leaves
// the record open without a poll; the next post of the CA retries.
func (e *Engine) openPoll(ctx context.Context, rec *store.PollRecord) (bool, error) {
	sent, err := e.gw.SendPoll(ctx, rec.ChatID, render.PollQuestion, vote.Labels())
	if err != nil {
		e.log.Warn("send poll failed", zap.Int64("chat", rec.ChatID), zap.String("ca", rec.ContractAddress), zap.Error(err))
		return false, nil
	}
	err = e.st.AttachPoll(ctx, rec.ChatID, rec.ContractAddress, sent.MessageID, sent.PollID)
	if err == nil {
		rec.MessageID = sent.MessageID
		rec.TelegramPollID = &sent.PollID
		return true, nil
	}
	if derr := e.gw.Delete(ctx, rec.ChatID, sent.MessageID); derr != nil {
		e.log.Warn("delete orphan poll failed", zap.Int64("chat", rec.ChatID), zap.Error(derr))
	}
	if errors.Is(err, store.ErrPollAttached) {
		return false, nil
	}
	return false, fmt.Errorf("attach poll: %w", err)
}

// preference returns the poster's stored vote for addr, per-CA first.
func (e *Engine) preference(ctx context.Context, userID int64, addr string) (string, bool) {
	var keys []string
	if e.cfg.PreferenceScope.perCA() {
		keys = append(keys, addr)
	}
	if e.cfg.PreferenceScope.global() {
		keys = append(keys, "")
	}
	for _, key := range keys {
		p, err := e.st.GetPreference(ctx, userID, key)
		if err != nil {
			if !errors.Is(err, store.ErrNotFound) {
				e.log.Warn("preference lookup failed", zap.Int64("user", userID), zap.Error(err))
			}
			continue
		}
		if p.Vote != "" {
			return p.Vote, true
		}
	}
	return "", false
}

func (e *Engine) sendLeaderboard(ctx context.Context, chatID int64, filter string) {
	board, err := e.boards.Build(ctx, chatID, e.cfg.DefaultPeriod, filter)
	if err != nil {
		e.log.Error("build leaderboard failed", zap.Int64("chat", chatID), zap.Error(err))
		e.sendText(ctx, chatID, render.MsgNoLeaderboard, nil)
		return
	}
	e.sendText(ctx, chatID, render.Leaderboard(board), render.LeaderboardKeyboard(board.Period, filter))
}

func (e *Engine) sendHealth(ctx context.Context, chatID int64) {
	if e.health == nil || e.cfg.AdminChatID == 0 || chatID != e.cfg.AdminChatID {
		e.sendText(ctx, chatID, render.MsgNotAdmin, nil)
		return
	}
	e.sendText(ctx, chatID, render.HealthReport(e.health.Snapshot(ctx)), nil)
}
