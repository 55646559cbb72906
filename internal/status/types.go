package status

import (
	"context"
	"errors"
	"time"
)

// TimestampLayout is the wire format of Update.Timestamp (UTC, microseconds).
const TimestampLayout = "2006-01-02T15:04:05.000000Z"

// DefaultMaxUpdates bounds the log when no explicit limit is configured
const DefaultMaxUpdates = 20

// ErrUnknownBackend is returned by NewStore for an unsupported backend name
var ErrUnknownBackend = errors.New("unknown storage backend")

// Update is a single published status update
type Update struct {
	Timestamp string `json:"ts" db:"ts"`
	Draft     string `json:"draft" db:"draft"`
}

// NewUpdate stamps draft with the given time
func NewUpdate(draft string, at time.Time) Update {
	return Update{Timestamp: at.UTC().Format(TimestampLayout), Draft: draft}
}

// Store is an append-only log of the most recent published updates.
//
// List returns at most the configured number of updates, newest first.
type Store interface {
	Append(ctx context.Context, update Update) error
	List(ctx context.Context) ([]Update, error)
	Close() error
}
