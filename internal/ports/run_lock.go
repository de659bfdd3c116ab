package ports

import "context"

type RunLock interface {
	// Acquire returns domain.ErrConsolidationBusy while another live holder
	// owns the lock.
	Acquire(ctx context.Context, owner string) (LockHandle, error)
}

type LockHandle interface {
	Token() string
	Release() error
}
