// Package lease provides a cross-process guard so that scheduler replicas
// never run overlapping cycles for the same key.
package lease

import (
	"context"
	"time"
)

// Locker hands out exclusive, expiring leases.
type Locker interface {
	// TryAcquire takes the lease for key if nobody holds it.
	// It returns ok=false without error when another holder has it.
	TryAcquire(ctx context.Context, key string, ttl time.Duration) (l Lease, ok bool, err error)
}

// Lease is a held lease.
type Lease interface {
	// Release gives the lease up. Releasing an expired or lost lease is not an error.
	Release(ctx context.Context) error
}
