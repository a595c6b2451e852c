package driven

// ProcessLock is a held named lock. Release must be called exactly once.
type ProcessLock interface {
	Release() error
}

// Locker defines the driven port for process-wide mutual exclusion.
type Locker interface {
	// TryAcquire attempts to take the lock named name without blocking.
	// It returns ok=false and a nil error when another holder owns the lock.
	TryAcquire(name string) (lock ProcessLock, ok bool, err error)
}
