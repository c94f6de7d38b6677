package domain

import (
	"fmt"
	"time"
)

// BatchStats counts record outcomes of a batch or a run.
//
// Processed = Successful + Failed + Skipped always holds. Unsupported is a
// subset of Skipped.
type BatchStats struct {
	Total       int `json:"total"`
	Processed   int `json:"processed"`
	Successful  int `json:"successful"`
	Failed      int `json:"failed"`
	Skipped     int `json:"skipped"`
	Unsupported int `json:"unsupported"`
}

// Add accumulates other into s.
func (s *BatchStats) Add(other BatchStats) {
	s.Total += other.Total
	s.Processed += other.Processed
	s.Successful += other.Successful
	s.Failed += other.Failed
	s.Skipped += other.Skipped
	s.Unsupported += other.Unsupported
}

// Validate checks the counter invariants.
func (s BatchStats) Validate() error {
	if s.Processed != s.Successful+s.Failed+s.Skipped {
		return fmt.Errorf("processed %d != successful %d + failed %d + skipped %d",
			s.Processed, s.Successful, s.Failed, s.Skipped)
	}
	if s.Total < s.Processed {
		return fmt.Errorf("total %d < processed %d", s.Total, s.Processed)
	}
	if s.Unsupported > s.Skipped {
		return fmt.Errorf("unsupported %d > skipped %d", s.Unsupported, s.Skipped)
	}
	return nil
}

// LogAttrs returns the counters as slog key/value pairs.
func (s BatchStats) LogAttrs() []any {
	return []any{
		"total", s.Total,
		"processed", s.Processed,
		"successful", s.Successful,
		"failed", s.Failed,
		"skipped", s.Skipped,
		"unsupported", s.Unsupported,
	}
}

// RunResult is the summary of one processor run.
type RunResult struct {
	Task       string     `json:"task"`
	RunID      string     `json:"run_id"`
	Success    bool       `json:"success"`
	Stats      BatchStats `json:"stats"`
	Batches    int        `json:"batches"`
	StartedAt  time.Time  `json:"started_at"`
	FinishedAt time.Time  `json:"finished_at"`
	Err        error      `json:"-"`
	Error      string     `json:"error,omitempty"`
}

// Duration returns how long the run took.
func (r RunResult) Duration() time.Duration {
	return r.FinishedAt.Sub(r.StartedAt)
}
