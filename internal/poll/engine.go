// Package poll implements the single-voter poll lifecycle for contract
// addresses posted in group chats.
//
// Per (chat, CA) the state moves NoRecord -> Open -> Resolved, or
// NoRecord -> Resolved directly when the poster has a stored preference.
// The store's unique key and vote compare-and-set arbitrate every race;
// the engine never holds locks of its own.
package poll

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/0xsamyy/callpoll/internal/card"
	"github.com/0xsamyy/callpoll/internal/health"
	"github.com/0xsamyy/callpoll/internal/leaderboard"
	"github.com/0xsamyy/callpoll/internal/market"
	"github.com/0xsamyy/callpoll/internal/render"
	"github.com/0xsamyy/callpoll/internal/store"
)

// AffiliateSetting is the bot_settings key holding the referral code.
const AffiliateSetting = "affiliate_code"

// pollGrace is how long a fresh Open record without a bound poll is assumed
// to belong to an in-flight creation.
const pollGrace = 30 * time.Second

// Photo is an image to send. Exactly one of URL or Data is set.
type Photo struct {
	URL      string
	Data     []byte
	Filename string
}

// SentPoll identifies a native poll after it has been posted.
type SentPoll struct {
	MessageID int
	PollID    string
}

// Gateway is the chat platform as seen by the engine. Message bodies are
// Telegram HTML.
type Gateway interface {
	SendText(ctx context.Context, chatID int64, html string, kb render.Keyboard) (int, error)
	SendPhoto(ctx context.Context, chatID int64, photo Photo, caption string, kb render.Keyboard) (int, error)
	SendPoll(ctx context.Context, chatID int64, question string, options []string) (SentPoll, error)
	EditText(ctx context.Context, chatID int64, messageID int, html string, kb render.Keyboard) error
	EditCaption(ctx context.Context, chatID int64, messageID int, caption string, kb render.Keyboard) error
	Delete(ctx context.Context, chatID int64, messageID int) error
	AnswerCallback(ctx context.Context, callbackID, text string) error
}

// Boards builds leaderboards.
type Boards interface {
	Build(ctx context.Context, chatID int64, period leaderboard.Period, filter string) (*leaderboard.Board, error)
}

// Reporter produces health snapshots for the admin command.
type Reporter interface {
	Snapshot(ctx context.Context) health.Report
}

// PreferenceScope selects which stored preferences auto-resolve a poll.
type PreferenceScope string

const (
	ScopeBoth   PreferenceScope = "both"
	ScopeGlobal PreferenceScope = "global"
	ScopePerCA  PreferenceScope = "per_ca"
	ScopeOff    PreferenceScope = "off"
)

func (s PreferenceScope) perCA() bool  { return s == ScopeBoth || s == ScopePerCA }
func (s PreferenceScope) global() bool { return s == ScopeBoth || s == ScopeGlobal }

// Config holds the engine's tunables.
type Config struct {
	PreferenceScope PreferenceScope
	AffiliateCode   string // fallback when the setting is absent
	DefaultPeriod   leaderboard.Period
	AdminChatID     int64
}

// Deps are the engine's collaborators. Cards and Health may be nil.
type Deps struct {
	Store   store.Store
	Oracle  market.Oracle
	Gateway Gateway
	Boards  Boards
	Cards   card.Generator
	Health  Reporter
	Logger  *zap.Logger
}

// Engine reacts to chat messages, poll answers and button presses.
type Engine struct {
	st     store.Store
	oracle market.Oracle
	gw     Gateway
	boards Boards
	cards  card.Generator
	health Reporter
	log    *zap.Logger
	cfg    Config

	now      func() time.Time
	onChange func()
}

// New wires an Engine.
func New(d Deps, cfg Config) *Engine {
	if cfg.PreferenceScope == "" {
		cfg.PreferenceScope = ScopeBoth
	}
	if cfg.DefaultPeriod == "" {
		cfg.DefaultPeriod = leaderboard.Period1d
	}
	log := d.Logger
	if log == nil {
		log = zap.NewNop()
	}
	return &Engine{
		st:     d.Store,
		oracle: d.Oracle,
		gw:     d.Gateway,
		boards: d.Boards,
		cards:  d.Cards,
		health: d.Health,
		log:    log.Named("poll"),
		cfg:    cfg,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// OnChange registers fn to run after a record is created or resolved.
func (e *Engine) OnChange(fn func()) { e.onChange = fn }

func (e *Engine) changed() {
	if e.onChange != nil {
		e.onChange()
	}
}

// MessageEvent is a text message posted in a chat.
type MessageEvent struct {
	ChatID     int64
	SenderID   int64
	SenderName string
	Text       string
}

// VoteEvent is an answer to a native poll. An empty OptionIDs is a
// retracted vote.
type VoteEvent struct {
	PollID    string
	VoterID   int64
	VoterName string
	OptionIDs []int
}

// CallbackEvent is an inline keyboard press.
type CallbackEvent struct {
	ID        string
	Data      string
	ChatID    int64
	MessageID int
	HasPhoto  bool
}

// quote fetches market data and records it as an ATH candidate. It returns
// a nil quote when the oracle fails; the ATH price is 0 when unknown.
func (e *Engine) quote(ctx context.Context, addr string) (*market.Quote, float64) {
	q, err := e.oracle.Quote(ctx, addr)
	if err != nil {
		e.log.Warn("quote failed", zap.String("ca", addr), zap.Error(err))
		return nil, 0
	}
	if q.PriceUSD > 0 {
		if _, err := e.st.RaiseATH(ctx, store.AthRecord{
			ContractAddress: addr,
			MaxPriceUSD:     q.PriceUSD,
			CoinName:        q.Name,
			UpdatedAt:       e.now(),
		}); err != nil {
			e.log.Warn("raise ath failed", zap.String("ca", addr), zap.Error(err))
		}
	}
	ath, err := e.st.GetATH(ctx, addr)
	if err != nil {
		if !errors.Is(err, store.ErrNotFound) {
			e.log.Warn("get ath failed", zap.String("ca", addr), zap.Error(err))
		}
		return q, 0
	}
	return q, ath.MaxPriceUSD
}

func (e *Engine) affiliateCode(ctx context.Context) string {
	code, err := e.st.GetSetting(ctx, AffiliateSetting)
	if err == nil && code != "" {
		return code
	}
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		e.log.Warn("read affiliate setting failed", zap.Error(err))
	}
	return e.cfg.AffiliateCode
}

func (e *Engine) firstCall(ctx context.Context, addr string) *render.FirstCall {
	rec, err := e.st.FirstCall(ctx, addr)
	if err != nil {
		if !errors.Is(err, store.ErrNotFound) {
			e.log.Warn("first call lookup failed", zap.String("ca", addr), zap.Error(err))
		}
		return nil
	}
	return &render.FirstCall{Username: rec.SenderUsername, EntryPrice: rec.Entry(), CreatedAt: rec.CreatedAt}
}

// resultMessage renders the result card for a resolved record.
func (e *Engine) resultMessage(ctx context.Context, rec *store.PollRecord, autoUsed bool) (string, *market.Quote) {
	q, ath := e.quote(ctx, rec.ContractAddress)
	text := render.ResultCard(render.Result{
		CA:        rec.ContractAddress,
		Votes:     rec.Votes(),
		VotedBy:   rec.SenderUsername,
		AutoUsed:  autoUsed,
		Quote:     q,
		ATHPrice:  ath,
		FirstCall: e.firstCall(ctx, rec.ContractAddress),
		Affiliate: render.AffiliateLinks(rec.ContractAddress, e.affiliateCode(ctx)),
		Now:       e.now(),
	})
	return text, q
}

// sendResult posts the result card, as a photo when the token has an
// image. A failed photo send falls back to text.
func (e *Engine) sendResult(ctx context.Context, rec *store.PollRecord, autoUsed bool) {
	text, q := e.resultMessage(ctx, rec, autoUsed)
	kb := render.ResultKeyboard(rec.ContractAddress)
	if q != nil && q.ImageURL != "" {
		_, err := e.gw.SendPhoto(ctx, rec.ChatID, Photo{URL: q.ImageURL}, text, kb)
		if err == nil {
			return
		}
		e.log.Warn("send result photo failed, falling back to text", zap.Int64("chat", rec.ChatID), zap.Error(err))
	}
	e.sendText(ctx, rec.ChatID, text, kb)
}

func (e *Engine) sendText(ctx context.Context, chatID int64, html string, kb render.Keyboard) {
	if _, err := e.gw.SendText(ctx, chatID, html, kb); err != nil {
		e.log.Warn("send message failed", zap.Int64("chat", chatID), zap.Error(err))
	}
}
