// Package dedupe claims Telegram update ids so redelivered updates are
// dispatched once.
package dedupe

import (
	"context"
	"strconv"
)

// Claimer reserves update ids.
type Claimer interface {
	// Claim reports true when id was not claimed within the TTL.
	Claim(ctx context.Context, id int64) (bool, error)
	// Release forgets id so a redelivery is dispatched again.
	Release(ctx context.Context, id int64) error
	// Backend names the implementation for health reports.
	Backend() string
	Close() error
}

func key(id int64) string { return "callpoll:update:" + strconv.FormatInt(id, 10) }
