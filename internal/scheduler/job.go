// Package scheduler owns the render job lifecycle: admission, queuing,
// concurrency-capped execution of the scene pipeline, and terminal state
// bookkeeping.
package scheduler

import (
	"time"

	"motif/internal/ir"
)

type Status string

const (
	StatusPending    Status = "pending"
	StatusProcessing Status = "processing"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
)

// IsTerminal reports whether the status can never change again.
func (s Status) IsTerminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// Job is a single render request and its lifecycle record. Definition is a
// private snapshot taken at submission; later mutation of the caller's IR
// does not affect a queued job.
type Job struct {
	ID           string    `json:"id"`
	OwnerID      string    `json:"owner_id"`
	Definition   *ir.IR    `json:"definition,omitempty"`
	OutputFormat string    `json:"output_format"`
	Quality      string    `json:"quality"`
	Status       Status    `json:"status"`
	VideoURI     string    `json:"video_uri,omitempty"`
	ErrorMessage string    `json:"error_message,omitempty"`
	// EstimatedDuration is a wall-clock render estimate in seconds:
	// twice the summed scene duration.
	EstimatedDuration float64    `json:"estimated_duration"`
	CreatedAt         time.Time  `json:"created_at"`
	StartedAt         *time.Time `json:"started_at,omitempty"`
	FinishedAt        *time.Time `json:"finished_at,omitempty"`
}

// EstimateDuration predicts how long a definition takes to render.
func EstimateDuration(def *ir.IR) float64 {
	return 2 * def.TotalDuration()
}

// clone returns an independent copy safe to hand to callers.
func (j *Job) clone() *Job {
	c := *j
	if j.Definition != nil {
		c.Definition = j.Definition.Clone()
	}
	if j.StartedAt != nil {
		t := *j.StartedAt
		c.StartedAt = &t
	}
	if j.FinishedAt != nil {
		t := *j.FinishedAt
		c.FinishedAt = &t
	}
	return &c
}
