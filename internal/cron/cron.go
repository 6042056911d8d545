// Package cron runs periodic background jobs: reminder digests built from
// read tools and audit chain verification.
package cron

import "context"

// Job defines a periodic background task.
type Job interface {
	// Name returns a unique identifier used for logging and dedup.
	Name() string

	// Schedule returns a 5-field cron expression (e.g., "0 9 * * *").
	Schedule() string

	// Run executes the job and should return promptly once ctx is done.
	Run(ctx context.Context) error
}
