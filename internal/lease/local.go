package lease

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// LocalLocker is an in-process Locker.
type LocalLocker struct {
	mu   sync.Mutex
	held map[string]localEntry
	now  func() time.Time
}

type localEntry struct {
	token   string
	expires time.Time
}

// NewLocalLocker creates a new in-process locker.
func NewLocalLocker() *LocalLocker {
	return &LocalLocker{held: make(map[string]localEntry), now: time.Now}
}

// TryAcquire implements Locker.
func (l *LocalLocker) TryAcquire(_ context.Context, key string, ttl time.Duration) (Lease, bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	if e, ok := l.held[key]; ok && now.Before(e.expires) {
		return nil, false, nil
	}

	token := uuid.NewString()
	l.held[key] = localEntry{token: token, expires: now.Add(ttl)}
	return &localLease{locker: l, key: key, token: token}, true, nil
}

type localLease struct {
	locker *LocalLocker
	key    string
	token  string
}

func (ll *localLease) Release(context.Context) error {
	ll.locker.mu.Lock()
	defer ll.locker.mu.Unlock()

	if e, ok := ll.locker.held[ll.key]; ok && e.token == ll.token {
		delete(ll.locker.held, ll.key)
	}
	return nil
}

var _ Locker = (*LocalLocker)(nil)
