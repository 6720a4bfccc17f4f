// Package dashboard aggregates usage analytics over the poll table and
// pushes them to websocket clients.
package dashboard

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/0xsamyy/callpoll/internal/store"
	"github.com/0xsamyy/callpoll/internal/vote"
)

const (
	days       = 30
	topSenders = 10
	topGroups  = 5
)

// Day is one bar of the activity chart.
type Day struct {
	Date  string `json:"date"` // YYYY-MM-DD
	Polls int    `json:"polls"`
}

// Count is a labelled tally.
type Count struct {
	Name  string `json:"name"`
	Count int    `json:"count"`
}

// Snapshot is the dashboard payload.
type Snapshot struct {
	GeneratedAt  time.Time `json:"generated_at"`
	TotalPolls   int       `json:"total_polls"`
	VotedPolls   int       `json:"voted_polls"`
	OpenPolls    int       `json:"open_polls"`
	UniqueGroups int       `json:"unique_groups"`
	Daily        []Day     `json:"daily"`
	Votes        []Count   `json:"votes"`
	TopSenders   []Count   `json:"top_senders"`
	TopGroups    []Count   `json:"top_groups"`
}

// Compute builds a snapshot from every poll record.
func Compute(recs []store.PollRecord, now time.Time) Snapshot {
	now = now.UTC()
	s := Snapshot{GeneratedAt: now, TotalPolls: len(recs)}

	daily := make(map[string]int, days)
	order := make([]string, 0, days)
	for i := days - 1; i >= 0; i-- {
		d := now.AddDate(0, 0, -i).Format(time.DateOnly)
		daily[d] = 0
		order = append(order, d)
	}

	groups := make(map[int64]int)
	senders := make(map[string]int)
	votes := make(map[string]int)
	for i := range recs {
		r := &recs[i]
		if !r.IsOpen() {
			s.VotedPolls++
			for _, k := range r.Votes() {
				label := k
				if c, ok := vote.Lookup(k); ok {
					label = c.Label
				}
				votes[label]++
			}
		}
		groups[r.ChatID]++
		name := r.SenderUsername
		if name == "" {
			name = "Unknown"
		}
		senders[name]++
		if d := r.CreatedAt.UTC().Format(time.DateOnly); hasDay(daily, d) {
			daily[d]++
		}
	}
	s.OpenPolls = s.TotalPolls - s.VotedPolls
	s.UniqueGroups = len(groups)

	s.Daily = make([]Day, len(order))
	for i, d := range order {
		s.Daily[i] = Day{Date: d, Polls: daily[d]}
	}
	s.Votes = ranked(votes, 0)
	s.TopSenders = ranked(senders, topSenders)

	named := make(map[string]int, len(groups))
	for id, n := range groups {
		named[groupName(id)] = n
	}
	s.TopGroups = ranked(named, topGroups)
	return s
}

func hasDay(daily map[string]int, d string) bool {
	_, ok := daily[d]
	return ok
}

// groupName shortens a chat id to its last six digits.
func groupName(id int64) string {
	s := fmt.Sprint(id)
	if len(s) > 6 {
		s = s[len(s)-6:]
	}
	return "…" + s
}

// ranked sorts tallies by count, then name. limit <= 0 keeps all.
func ranked(m map[string]int, limit int) []Count {
	out := make([]Count, 0, len(m))
	for name, n := range m {
		out = append(out, Count{Name: name, Count: n})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Name < out[j].Name
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}

// Lister is the store subset the dashboard reads.
type Lister interface {
	ListPolls(ctx context.Context) ([]store.PollRecord, error)
}

// Stats computes snapshots from the store.
type Stats struct {
	st  Lister
	now func() time.Time
}

func NewStats(st Lister) *Stats {
	return &Stats{st: st, now: time.Now}
}

// Snapshot reads every poll and aggregates it.
func (s *Stats) Snapshot(ctx context.Context) (Snapshot, error) {
	recs, err := s.st.ListPolls(ctx)
	if err != nil {
		return Snapshot{}, fmt.Errorf("list polls: %w", err)
	}
	return Compute(recs, s.now()), nil
}
