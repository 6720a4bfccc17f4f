package poll

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/0xsamyy/callpoll/internal/render"
	"github.com/0xsamyy/callpoll/internal/store"
	"github.com/0xsamyy/callpoll/internal/vote"
)

// HandleVote resolves a poll when its poster answers. Answers to unknown
// polls, retracted answers and answers to resolved polls are ignored.
func (e *Engine) HandleVote(ctx context.Context, ev VoteEvent) error {
	rec, err := e.st.GetPollByTelegramID(ctx, ev.PollID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil
		}
		return fmt.Errorf("get poll by telegram id: %w", err)
	}

	set := vote.FromIndices(ev.OptionIDs)
	if len(set) == 0 {
		return nil
	}
	if ev.VoterID != rec.SenderUserID {
		e.sendText(ctx, rec.ChatID, render.NotAuthorized(ev.VoterName, rec.ChatID, rec.MessageID), nil)
		return nil
	}
	if !rec.IsOpen() {
		return nil
	}

	now := e.now()
	if err := e.st.ResolveVote(ctx, rec.ChatID, rec.ContractAddress, set.String(), now); err != nil {
		if errors.Is(err, store.ErrAlreadyResolved) {
			return nil
		}
		return fmt.Errorf("resolve vote: %w", err)
	}
	v := set.String()
	rec.Vote, rec.VotedAt = &v, &now
	e.changed()
	e.log.Info("poll resolved", zap.Int64("chat", rec.ChatID), zap.String("ca", rec.ContractAddress), zap.String("vote", v))

	e.rememberPreference(ctx, rec, ev.VoterName, v)

	if rec.MessageID != 0 {
		if err := e.gw.Delete(ctx, rec.ChatID, rec.MessageID); err != nil {
			e.log.Warn("delete poll message failed", zap.Int64("chat", rec.ChatID), zap.Error(err))
		}
	}
	e.sendResult(ctx, rec, false)
	return nil
}

// rememberPreference upserts the voter's preferences. Failures only cost
// a future auto-resolve, so they are logged.
func (e *Engine) rememberPreference(ctx context.Context, rec *store.PollRecord, username, v string) {
	var keys []string
	if e.cfg.PreferenceScope.global() {
		keys = append(keys, "")
	}
	if e.cfg.PreferenceScope.perCA() {
		keys = append(keys, rec.ContractAddress)
	}
	for _, key := range keys {
		err := e.st.PutPreference(ctx, store.VotePreference{
			UserID:          rec.SenderUserID,
			ContractAddress: key,
			Username:        username,
			Vote:            v,
			UpdatedAt:       e.now(),
		})
		if err != nil {
			e.log.Warn("save preference failed", zap.Int64("user", rec.SenderUserID), zap.Error(err))
		}
	}
}
