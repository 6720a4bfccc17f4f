// Package store persists polls, vote preferences, all-time-high prices and
// bot settings.
//
// Three backends implement Store: bbolt (the default embedded file), gorm
// over sqlite or postgres, and an in-memory map. Every backend guarantees
// the two invariants the poll engine relies on: one record per
// (chat, contract address), and a vote that is written at most once.
package store

import (
	"context"
	"errors"
	"sort"
	"time"

	"github.com/0xsamyy/callpoll/internal/vote"
)

var (
	ErrNotFound        = errors.New("store: not found")
	ErrPollExists      = errors.New("store: poll already exists for chat and contract address")
	ErrAlreadyResolved = errors.New("store: poll already resolved")
	ErrPollAttached    = errors.New("store: a native poll is already attached")
)

// PollRecord is one (chat, contract address) pair that has been posted.
// A nil Vote means the poll is open.
type PollRecord struct {
	ID              string     `gorm:"primaryKey;size:36" json:"id"`
	ChatID          int64      `gorm:"not null;uniqueIndex:ux_polls_chat_ca,priority:1" json:"chat_id"`
	ContractAddress string     `gorm:"not null;size:64;uniqueIndex:ux_polls_chat_ca,priority:2;index" json:"contract_address"`
	SenderUserID    int64      `gorm:"not null" json:"sender_user_id"`
	SenderUsername  string     `json:"sender_username"`
	MessageID       int        `json:"message_id,omitempty"`
	TelegramPollID  *string    `gorm:"uniqueIndex" json:"telegram_poll_id,omitempty"`
	Vote            *string    `json:"vote,omitempty"`
	CreatedAt       time.Time  `gorm:"not null;index" json:"created_at"`
	VotedAt         *time.Time `json:"voted_at,omitempty"`
	EntryPriceUSD   *float64   `json:"entry_price_usd,omitempty"`
	PeakPriceUSD    *float64   `json:"peak_price_usd,omitempty"`
}

func (PollRecord) TableName() string { return "polls" }

// IsOpen reports whether the poll still waits for its vote.
func (r *PollRecord) IsOpen() bool { return r.Vote == nil }

// HasPoll reports whether a native poll is bound to the record.
func (r *PollRecord) HasPoll() bool { return r.TelegramPollID != nil && *r.TelegramPollID != "" }

// Votes returns the stored vote as a set; empty while open.
func (r *PollRecord) Votes() vote.Set {
	if r.Vote == nil {
		return nil
	}
	return vote.Parse(*r.Vote)
}

// Entry returns the entry price, or 0 when unknown.
func (r *PollRecord) Entry() float64 {
	if r.EntryPriceUSD == nil {
		return 0
	}
	return *r.EntryPriceUSD
}

// Peak returns the peak price, or 0 when unknown.
func (r *PollRecord) Peak() float64 {
	if r.PeakPriceUSD == nil {
		return 0
	}
	return *r.PeakPriceUSD
}

func (r *PollRecord) clone() *PollRecord {
	c := *r
	if r.TelegramPollID != nil {
		v := *r.TelegramPollID
		c.TelegramPollID = &v
	}
	if r.Vote != nil {
		v := *r.Vote
		c.Vote = &v
	}
	if r.VotedAt != nil {
		v := *r.VotedAt
		c.VotedAt = &v
	}
	if r.EntryPriceUSD != nil {
		v := *r.EntryPriceUSD
		c.EntryPriceUSD = &v
	}
	if r.PeakPriceUSD != nil {
		v := *r.PeakPriceUSD
		c.PeakPriceUSD = &v
	}
	return &c
}

// VotePreference is a user's default vote. An empty ContractAddress is the
// global preference; otherwise it is scoped to that address.
type VotePreference struct {
	UserID          int64     `gorm:"primaryKey;autoIncrement:false" json:"user_id"`
	ContractAddress string    `gorm:"primaryKey;size:64" json:"contract_address"`
	Username        string    `json:"username"`
	Vote            string    `gorm:"not null" json:"vote"`
	UpdatedAt       time.Time `json:"updated_at"`
}

func (VotePreference) TableName() string { return "vote_preferences" }

// AthRecord is the highest price observed for a contract address.
type AthRecord struct {
	ContractAddress string    `gorm:"primaryKey;size:64" json:"contract_address"`
	MaxPriceUSD     float64   `gorm:"not null" json:"max_price_usd"`
	CoinName        string    `json:"coin_name"`
	UpdatedAt       time.Time `json:"updated_at"`
}

func (AthRecord) TableName() string { return "token_ath" }

// Setting is one bot_settings row.
type Setting struct {
	Key       string    `gorm:"primaryKey;size:128" json:"key"`
	Value     string    `json:"value"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (Setting) TableName() string { return "bot_settings" }

// ResolvedQuery selects resolved polls with a known entry price.
type ResolvedQuery struct {
	ChatID   int64 // 0 selects every chat
	Since    time.Time
	Category string // empty selects every category
}

func (q ResolvedQuery) match(r *PollRecord) bool {
	if r.Vote == nil || r.EntryPriceUSD == nil {
		return false
	}
	if q.ChatID != 0 && r.ChatID != q.ChatID {
		return false
	}
	if r.CreatedAt.Before(q.Since) {
		return false
	}
	return q.Category == "" || r.Votes().Contains(q.Category)
}

// Counts summarises the poll table.
type Counts struct {
	Total    int `json:"total"`
	Open     int `json:"open"`
	Resolved int `json:"resolved"`
}

// Store is the persistence port used by the engine, the leaderboard and
// the dashboard.
type Store interface {
	// CreatePoll inserts rec. It returns ErrPollExists when a record for
	// the same chat and contract address is already present.
	CreatePoll(ctx context.Context, rec *PollRecord) error
	GetPoll(ctx context.Context, chatID int64, ca string) (*PollRecord, error)
	GetPollByTelegramID(ctx context.Context, pollID string) (*PollRecord, error)
	// AttachPoll binds a native poll to an open record that has none.
	AttachPoll(ctx context.Context, chatID int64, ca string, messageID int, pollID string) error
	// ResolveVote writes the vote only if the record has none yet.
	ResolveVote(ctx context.Context, chatID int64, ca, vote string, at time.Time) error
	// RaisePeak stores price as the peak when it exceeds the current one.
	RaisePeak(ctx context.Context, chatID int64, ca string, price float64) (bool, error)
	// FirstCall returns the earliest record with a known entry price for
	// ca, across chats.
	FirstCall(ctx context.Context, ca string) (*PollRecord, error)
	// ListResolved returns matching records, newest first.
	ListResolved(ctx context.Context, q ResolvedQuery) ([]PollRecord, error)
	// ListPolls returns every record, oldest first.
	ListPolls(ctx context.Context) ([]PollRecord, error)
	CountPolls(ctx context.Context) (Counts, error)

	GetPreference(ctx context.Context, userID int64, ca string) (*VotePreference, error)
	PutPreference(ctx context.Context, p VotePreference) error

	GetATH(ctx context.Context, ca string) (*AthRecord, error)
	// RaiseATH upserts rec when its price exceeds the stored maximum.
	RaiseATH(ctx context.Context, rec AthRecord) (bool, error)

	GetSetting(ctx context.Context, key string) (string, error)
	SetSetting(ctx context.Context, key, value string) error

	Close() error
}

func sortNewestFirst(recs []PollRecord) {
	sort.SliceStable(recs, func(i, j int) bool { return recs[i].CreatedAt.After(recs[j].CreatedAt) })
}

func sortOldestFirst(recs []PollRecord) {
	sort.SliceStable(recs, func(i, j int) bool { return recs[i].CreatedAt.Before(recs[j].CreatedAt) })
}

func countOf(recs []PollRecord) Counts {
	c := Counts{Total: len(recs)}
	for i := range recs {
		if recs[i].IsOpen() {
			c.Open++
		}
	}
	c.Resolved = c.Total - c.Open
	return c
}
