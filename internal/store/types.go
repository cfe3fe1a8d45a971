package store

import "time"

// BuildRecord captures the result of one build step.
type BuildRecord struct {
	JobID     string    `json:"job_id"`
	Artifact  string    `json:"artifact"`
	Timestamp time.Time `json:"timestamp"`
	Success   bool      `json:"success"`
	Duration  string    `json:"duration"`
	SizeBytes int64     `json:"size_bytes,omitempty"`
}

// FlashRecord captures the terminal result of one flash job, including
// which strategy (if any) won.
type FlashRecord struct {
	JobID     string    `json:"job_id"`
	Port      string    `json:"port"`
	Artifact  string    `json:"artifact"`
	Timestamp time.Time `json:"timestamp"`
	Success   bool      `json:"success"`
	Strategy  string    `json:"strategy,omitempty"`
	Attempts  int       `json:"attempts"`
	Duration  string    `json:"duration"`
}
