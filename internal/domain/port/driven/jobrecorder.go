package driven

import "time"

// JobRecorder defines the driven port for update job observability.
type JobRecorder interface {
	// ObserveRefresh records the duration and outcome of one repository refresh.
	ObserveRefresh(repoFullName string, d time.Duration, success bool)
	// IncSkipped records an invocation skipped because the lock was held.
	IncSkipped()
}
