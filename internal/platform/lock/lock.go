// Package lock provides keyed mutual exclusion with a bounded wait, used to serialize
// booking writes per (tenant, practitioner, date) partition.
package lock

import (
	"context"
	"errors"
	"strings"
)

// ErrTimeout is returned when a key stays held for longer than the locker's wait bound.
var ErrTimeout = errors.New("lock: wait timed out")

// Locker grants exclusive ownership of a key. The returned release func is safe to
// call more than once.
type Locker interface {
	Acquire(ctx context.Context, key string) (release func(), err error)
	Backend() string
}

// Key joins parts into a lock key.
func Key(parts ...string) string {
	return strings.Join(parts, ":")
}
