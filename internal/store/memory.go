package store

import (
	"context"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Memory is an in-process Store. It loses everything on restart.
type Memory struct {
	mu       sync.Mutex
	polls    map[string]*PollRecord
	pollIDs  map[string]string
	prefs    map[string]VotePreference
	aths     map[string]AthRecord
	settings map[string]string
}

// NewMemory returns an empty Memory store.
func NewMemory() *Memory {
	return &Memory{
		polls:    make(map[string]*PollRecord),
		pollIDs:  make(map[string]string),
		prefs:    make(map[string]VotePreference),
		aths:     make(map[string]AthRecord),
		settings: make(map[string]string),
	}
}

func pollKey(chatID int64, ca string) string {
	return strconv.FormatInt(chatID, 10) + "|" + ca
}

func prefKey(userID int64, ca string) string {
	return strconv.FormatInt(userID, 10) + "|" + ca
}

func (m *Memory) CreatePoll(_ context.Context, rec *PollRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	k := pollKey(rec.ChatID, rec.ContractAddress)
	if _, ok := m.polls[k]; ok {
		return ErrPollExists
	}
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	if rec.HasPoll() {
		if _, ok := m.pollIDs[*rec.TelegramPollID]; ok {
			return ErrPollAttached
		}
		m.pollIDs[*rec.TelegramPollID] = k
	}
	m.polls[k] = rec.clone()
	return nil
}

func (m *Memory) GetPoll(_ context.Context, chatID int64, ca string) (*PollRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.polls[pollKey(chatID, ca)]
	if !ok {
		return nil, ErrNotFound
	}
	return r.clone(), nil
}

func (m *Memory) GetPollByTelegramID(_ context.Context, pollID string) (*PollRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	k, ok := m.pollIDs[pollID]
	if !ok {
		return nil, ErrNotFound
	}
	return m.polls[k].clone(), nil
}

func (m *Memory) AttachPoll(_ context.Context, chatID int64, ca string, messageID int, pollID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	k := pollKey(chatID, ca)
	r, ok := m.polls[k]
	if !ok {
		return ErrNotFound
	}
	if r.HasPoll() {
		return ErrPollAttached
	}
	if _, taken := m.pollIDs[pollID]; taken {
		return ErrPollAttached
	}
	r.MessageID = messageID
	r.TelegramPollID = &pollID
	m.pollIDs[pollID] = k
	return nil
}

func (m *Memory) ResolveVote(_ context.Context, chatID int64, ca, v string, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.polls[pollKey(chatID, ca)]
	if !ok {
		return ErrNotFound
	}
	if r.Vote != nil {
		return ErrAlreadyResolved
	}
	r.Vote = &v
	r.VotedAt = &at
	return nil
}

func (m *Memory) RaisePeak(_ context.Context, chatID int64, ca string, price float64) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.polls[pollKey(chatID, ca)]
	if !ok {
		return false, ErrNotFound
	}
	if r.PeakPriceUSD != nil && *r.PeakPriceUSD >= price {
		return false, nil
	}
	r.PeakPriceUSD = &price
	return true, nil
}

func (m *Memory) FirstCall(_ context.Context, ca string) (*PollRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var first *PollRecord
	for _, r := range m.polls {
		if r.ContractAddress != ca || r.EntryPriceUSD == nil {
			continue
		}
		if first == nil || r.CreatedAt.Before(first.CreatedAt) {
			first = r
		}
	}
	if first == nil {
		return nil, ErrNotFound
	}
	return first.clone(), nil
}

func (m *Memory) ListResolved(_ context.Context, q ResolvedQuery) ([]PollRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []PollRecord
	for _, r := range m.polls {
		if q.match(r) {
			out = append(out, *r.clone())
		}
	}
	sortNewestFirst(out)
	return out, nil
}

func (m *Memory) ListPolls(_ context.Context) ([]PollRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]PollRecord, 0, len(m.polls))
	for _, r := range m.polls {
		out = append(out, *r.clone())
	}
	sortOldestFirst(out)
	return out, nil
}

func (m *Memory) CountPolls(ctx context.Context) (Counts, error) {
	recs, err := m.ListPolls(ctx)
	if err != nil {
		return Counts{}, err
	}
	return countOf(recs), nil
}

func (m *Memory) GetPreference(_ context.Context, userID int64, ca string) (*VotePreference, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.prefs[prefKey(userID, ca)]
	if !ok {
		return nil, ErrNotFound
	}
	return &p, nil
}

func (m *Memory) PutPreference(_ context.Context, p VotePreference) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.prefs[prefKey(p.UserID, p.ContractAddress)] = p
	return nil
}

func (m *Memory) GetATH(_ context.Context, ca string) (*AthRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.aths[ca]
	if !ok {
		return nil, ErrNotFound
	}
	return &a, nil
}

func (m *Memory) RaiseATH(_ context.Context, rec AthRecord) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if cur, ok := m.aths[rec.ContractAddress]; ok && cur.MaxPriceUSD >= rec.MaxPriceUSD {
		return false, nil
	}
	m.aths[rec.ContractAddress] = rec
	return true, nil
}

func (m *Memory) GetSetting(_ context.Context, key string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.settings[key]
	if !ok {
		return "", ErrNotFound
	}
	return v, nil
}

func (m *Memory) SetSetting(_ context.Context, key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.settings[key] = value
	return nil
}

func (m *Memory) Close() error { return nil }
