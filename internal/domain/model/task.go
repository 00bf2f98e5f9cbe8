package model

import "time"

// TraceContext carries the W3C trace-context values a task was created under
// (spec.md §3, §4.5, §4.7). Workers start their span as a remote child of this.
type TraceContext struct {
	Traceparent string
	Tracestate  string
}

// Task is the unit the queue engine delivers to a worker. It carries only a
// blob reference to the source image, never inline bytes (spec.md §9,
// resolving the "inline base64 through the queue" open question).
type Task struct {
	ID           string
	JobID        string
	OwnerID      string
	Prompt       string
	SourceObject string
	Debit        CreditDebit
	Trace        TraceContext

	Attempt      int
	MaxAttempts  int
	AvailableAt  time.Time // task is not claimable before this instant (backoff delay)
	LockedBy     string
	LockedAt     time.Time
	HeartbeatAt  time.Time
	CreatedAt    time.Time

	// Replay marks a task re-enqueued from the dead-letter archive.
	Replay *ReplayMarker
}

type ReplayMarker struct {
	OriginalJobID   string
	DeadLetterID    string
	PreviousAttempts int
	Reason          string
}

// TaskHeader is the retained, trimmed record of a completed or failed task
// kept for inspection (spec.md §4.5 retention).
type TaskHeader struct {
	TaskID      string
	JobID       string
	OwnerID     string
	Outcome     string // "completed" | "failed"
	Attempts    int
	FinishedAt  time.Time
}

// DeadLetter is what the queue engine archives when a task exhausts its
// attempt budget (spec.md §4.6).
type DeadLetter struct {
	ID              string
	JobID           string
	OwnerID         string
	OriginalTask    Task
	FailureKind     ErrorKind
	FailureMessage  string
	FailureStack    string
	Attempts        int
	FailedAt        time.Time
}

// ReplayAudit records who replayed a dead-lettered job and why.
type ReplayAudit struct {
	ID           string
	DeadLetterID string
	JobID        string
	Operator     string
	Reason       string
	CreatedAt    time.Time
}
