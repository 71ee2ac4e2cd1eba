package topdf

import "runtime"

// Pool sizing constants.
const (
	// MinPoolSize ensures at least one worker is available.
	MinPoolSize = 1

	// MaxPoolSize caps workers; each holds one parsed document and its PDF
	// in memory.
	MaxPoolSize = 64
)

// ResolvePoolSize determines the number of workers for jobs jobs.
// Priority: explicit workers > GOMAXPROCS. The result never exceeds the
// number of jobs.
func ResolvePoolSize(workers, jobs int) int {
	n := workers
	if n <= 0 {
		// GOMAXPROCS is container-aware once automaxprocs has run.
		n = runtime.GOMAXPROCS(0)
	}
	n = min(n, MaxPoolSize)
	if jobs > 0 {
		n = min(n, jobs)
	}
	return max(n, MinPoolSize)
}
