package ports

import (
	"context"
	"time"
)

// UnlockFunc releases a distributed lock.
type UnlockFunc func(ctx context.Context) error

// DistributedLocker provides mutual exclusion across processes sharing a backend.
type DistributedLocker interface {
	// Lock blocks until the lock for key is held or ctx is done. The lock expires after
	// ttl even if it is never released. The returned UnlockFunc MUST be called.
	Lock(ctx context.Context, key string, ttl time.Duration) (UnlockFunc, error)
}
