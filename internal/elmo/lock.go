package elmo

import (
	"context"
	"sync"
)

// Lock is a held global system lock.
// The alarm system drops it on its own after about a minute.
type Lock struct {
	// client is the session that took the lock.
	client *Client

	once sync.Once
	// err is the outcome of the single release attempt.
	err error
}

// Release gives the lock back. Only the first call reaches the alarm system;
// later calls return the first result.
func (l *Lock) Release(ctx context.Context) error {
	l.once.Do(func() {
		l.err = l.client.unlock(ctx)
	})

	return l.err
}
