package driven

import (
	"context"
	"time"
)

// DistributedLock serializes ingestion runs and deletions of a project across
// API and worker processes. Locks are named "ingest:<project id>".
type DistributedLock interface {
	// Acquire takes name for ttl. It reports false, without error, when
	// another holder owns the lock.
	Acquire(ctx context.Context, name string, ttl time.Duration) (acquired bool, err error)

	// Release frees a lock held by this process. Releasing an expired or
	// foreign lock is a no-op.
	Release(ctx context.Context, name string) error

	// Extend renews a held lock. Long ingestion runs call it periodically;
	// backends whose locks cannot expire treat it as a liveness check.
	Extend(ctx context.Context, name string, ttl time.Duration) error

	Ping(ctx context.Context) error
}
