package store

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	bolt "go.etcd.io/bbolt"
)

var (
	bucketPolls    = []byte("polls")
	bucketPollIDs  = []byte("poll_ids")
	bucketPrefs    = []byte("vote_preferences")
	bucketATH      = []byte("token_ath")
	bucketSettings = []byte("bot_settings")
)

// Bolt is a Store backed by a single bbolt file. bbolt runs one write
// transaction at a time, so every conditional update below is atomic.
type Bolt struct {
	db *bolt.DB
}

// NewBolt opens (or creates) the database at path.
func NewBolt(path string) (*Bolt, error) {
	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: 2 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("open bolt %s: %w", path, err)
	}
	err = db.Update(func(tx *bolt.Tx) error {
		for _, name := range [][]byte{bucketPolls, bucketPollIDs, bucketPrefs, bucketATH, bucketSettings} {
			if _, err := tx.CreateBucketIfNotExists(name); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("init buckets: %w", err)
	}
	return &Bolt{db: db}, nil
}

func (s *Bolt) Close() error { return s.db.Close() }

func getJSON(b *bolt.Bucket, key []byte, v any) error {
	raw := b.Get(key)
	if raw == nil {
		return ErrNotFound
	}
	return json.Unmarshal(raw, v)
}

func putJSON(b *bolt.Bucket, key []byte, v any) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return b.Put(key, raw)
}

func (s *Bolt) CreatePoll(_ context.Context, rec *PollRecord) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		polls := tx.Bucket(bucketPolls)
		k := []byte(pollKey(rec.ChatID, rec.ContractAddress))
		if polls.Get(k) != nil {
			return ErrPollExists
		}
		if rec.ID == "" {
			rec.ID = uuid.NewString()
		}
		if rec.HasPoll() {
			ids := tx.Bucket(bucketPollIDs)
			if ids.Get([]byte(*rec.TelegramPollID)) != nil {
				return ErrPollAttached
			}
			if err := ids.Put([]byte(*rec.TelegramPollID), k); err != nil {
				return err
			}
		}
		return putJSON(polls, k, rec)
	})
}

func (s *Bolt) GetPoll(_ context.Context, chatID int64, ca string) (*PollRecord, error) {
	var rec PollRecord
	err := s.db.View(func(tx *bolt.Tx) error {
		return getJSON(tx.Bucket(bucketPolls), []byte(pollKey(chatID, ca)), &rec)
	})
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

func (s *Bolt) GetPollByTelegramID(_ context.Context, pollID string) (*PollRecord, error) {
	var rec PollRecord
	err := s.db.View(func(tx *bolt.Tx) error {
		k := tx.Bucket(bucketPollIDs).Get([]byte(pollID))
		if k == nil {
			return ErrNotFound
		}
		return getJSON(tx.Bucket(bucketPolls), k, &rec)
	})
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

// update loads the record under key, lets fn mutate it and writes it back.
func (s *Bolt) update(chatID int64, ca string, fn func(tx *bolt.Tx, rec *PollRecord) error) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		polls := tx.Bucket(bucketPolls)
		k := []byte(pollKey(chatID, ca))
		var rec PollRecord
		if err := getJSON(polls, k, &rec); err != nil {
			return err
		}
		if err := fn(tx, &rec); err != nil {
			return err
		}
		return putJSON(polls, k, &rec)
	})
}

func (s *Bolt) AttachPoll(_ context.Context, chatID int64, ca string, messageID int, pollID string) error {
	return s.update(chatID, ca, func(tx *bolt.Tx, rec *PollRecord) error {
		if rec.HasPoll() {
			return ErrPollAttached
		}
		ids := tx.Bucket(bucketPollIDs)
		if ids.Get([]byte(pollID)) != nil {
			return ErrPollAttached
		}
		rec.MessageID = messageID
		rec.TelegramPollID = &pollID
		return ids.Put([]byte(pollID), []byte(pollKey(chatID, ca)))
	})
}

func (s *Bolt) ResolveVote(_ context.Context, chatID int64, ca, v string, at time.Time) error {
	return s.update(chatID, ca, func(_ *bolt.Tx, rec *PollRecord) error {
		if rec.Vote != nil {
			return ErrAlreadyResolved
		}
		rec.Vote = &v
		rec.VotedAt = &at
		return nil
	})
}

var errNoChange = errors.New("no change")

func (s *Bolt) RaisePeak(_ context.Context, chatID int64, ca string, price float64) (bool, error) {
	err := s.update(chatID, ca, func(_ *bolt.Tx, rec *PollRecord) error {
		if rec.PeakPriceUSD != nil && *rec.PeakPriceUSD >= price {
			return errNoChange
		}
		rec.PeakPriceUSD = &price
		return nil
	})
	switch {
	case errors.Is(err, errNoChange):
		return false, nil
	case err != nil:
		return false, err
	}
	return true, nil
}

// scan decodes every poll whose key starts with prefix.
func (s *Bolt) scan(prefix []byte, fn func(rec *PollRecord)) error {
	return s.db.View(func(tx *bolt.Tx) error {
		c := tx.Bucket(bucketPolls).Cursor()
		k, v := c.First()
		if len(prefix) > 0 {
			k, v = c.Seek(prefix)
		}
		for ; k != nil && bytes.HasPrefix(k, prefix); k, v = c.Next() {
			var rec PollRecord
			if err := json.Unmarshal(v, &rec); err != nil {
				return fmt.Errorf("decode poll %s: %w", k, err)
			}
			fn(&rec)
		}
		return nil
	})
}

func (s *Bolt) FirstCall(_ context.Context, ca string) (*PollRecord, error) {
	var first *PollRecord
	err := s.scan(nil, func(rec *PollRecord) {
		if rec.ContractAddress != ca || rec.EntryPriceUSD == nil {
			return
		}
		if first == nil || rec.CreatedAt.Before(first.CreatedAt) {
			first = rec
		}
	})
	if err != nil {
		return nil, err
	}
	if first == nil {
		return nil, ErrNotFound
	}
	return first, nil
}

func (s *Bolt) ListResolved(_ context.Context, q ResolvedQuery) ([]PollRecord, error) {
	var prefix []byte
	if q.ChatID != 0 {
		prefix = []byte(strconv.FormatInt(q.ChatID, 10) + "|")
	}
	var out []PollRecord
	err := s.scan(prefix, func(rec *PollRecord) {
		if q.match(rec) {
			out = append(out, *rec)
		}
	})
	if err != nil {
		return nil, err
	}
	sortNewestFirst(out)
	return out, nil
}

func (s *Bolt) ListPolls(_ context.Context) ([]PollRecord, error) {
	var out []PollRecord
	if err := s.scan(nil, func(rec *PollRecord) { out = append(out, *rec) }); err != nil {
		return nil, err
	}
	sortOldestFirst(out)
	return out, nil
}

func (s *Bolt) CountPolls(ctx context.Context) (Counts, error) {
	recs, err := s.ListPolls(ctx)
	if err != nil {
		return Counts{}, err
	}
	return countOf(recs), nil
}

func (s *Bolt) GetPreference(_ context.Context, userID int64, ca string) (*VotePreference, error) {
	var p VotePreference
	err := s.db.View(func(tx *bolt.Tx) error {
		return getJSON(tx.Bucket(bucketPrefs), []byte(prefKey(userID, ca)), &p)
	})
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (s *Bolt) PutPreference(_ context.Context, p VotePreference) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		return putJSON(tx.Bucket(bucketPrefs), []byte(prefKey(p.UserID, p.ContractAddress)), p)
	})
}

func (s *Bolt) GetATH(_ context.Context, ca string) (*AthRecord, error) {
	var a AthRecord
	err := s.db.View(func(tx *bolt.Tx) error {
		return getJSON(tx.Bucket(bucketATH), []byte(ca), &a)
	})
	if err != nil {
		return nil, err
	}
	return &a, nil
}

func (s *Bolt) RaiseATH(_ context.Context, rec AthRecord) (bool, error) {
	raised := false
	err := s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketATH)
		var cur AthRecord
		switch err := getJSON(b, []byte(rec.ContractAddress), &cur); {
		case err == nil && cur.MaxPriceUSD >= rec.MaxPriceUSD:
			return nil
		case err != nil && !errors.Is(err, ErrNotFound):
			return err
		}
		raised = true
		return putJSON(b, []byte(rec.ContractAddress), rec)
	})
	return raised, err
}

func (s *Bolt) GetSetting(_ context.Context, key string) (string, error) {
	var v string
	err := s.db.View(func(tx *bolt.Tx) error {
		raw := tx.Bucket(bucketSettings).Get([]byte(key))
		if raw == nil {
			return ErrNotFound
		}
		v = string(raw)
		return nil
	})
	return v, err
}

func (s *Bolt) SetSetting(_ context.Context, key, value string) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketSettings).Put([]byte(key), []byte(value))
	})
}
