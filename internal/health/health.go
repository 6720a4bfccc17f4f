package health

import (
	"context"
	"time"

	"github.com/0xsamyy/callpoll/internal/store"
)

// PollCounter is the minimal interface we need from the store.
type PollCounter interface {
	CountPolls(ctx context.Context) (store.Counts, error)
}

// ClientCounter reports live dashboard connections.
type ClientCounter interface {
	Clients() int
}

// Health exposes a read-only snapshot of service state for /healthz and
// the /health command.
type Health struct {
	started time.Time
	st      PollCounter
	driver  string
	dedupe  string
	feed    ClientCounter
}

// New returns a Health aggregator. feed may be nil.
func New(st PollCounter, storeDriver, dedupeBackend string, feed ClientCounter) *Health {
	return &Health{started: time.Now(), st: st, driver: storeDriver, dedupe: dedupeBackend, feed: feed}
}

// Report is the struct returned to callers for formatting.
type Report struct {
	GeneratedAt time.Time `json:"generated_at"`
	Uptime      string    `json:"uptime"`

	StoreDriver string       `json:"store_driver"`
	Polls       store.Counts `json:"polls"`
	StoreError  string       `json:"store_error,omitempty"`

	DedupeBackend string `json:"dedupe_backend"`
	FeedClients   int    `json:"feed_clients"`
}

// OK reports whether the store answered.
func (r Report) OK() bool { return r.StoreError == "" }

// Snapshot gathers a point-in-time report.
func (h *Health) Snapshot(ctx context.Context) Report {
	rep := Report{
		GeneratedAt:   time.Now().UTC(),
		Uptime:        time.Since(h.started).Truncate(time.Second).String(),
		StoreDriver:   h.driver,
		DedupeBackend: h.dedupe,
	}
	if counts, err := h.st.CountPolls(ctx); err != nil {
		rep.StoreError = err.Error()
	} else {
		rep.Polls = counts
	}
	if h.feed != nil {
		rep.FeedClients = h.feed.Clients()
	}
	return rep
}
