package models

import (
	"time"

	"motif/internal/ir"
)

// Template is a named, reusable animation definition. Rendering a template
// submits a job with a snapshot of its definition.
type Template struct {
	ID          string     `json:"id"`
	Name        string     `json:"name"`
	Description string     `json:"description,omitempty"`
	Definition  *ir.IR     `json:"definition,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	DeletedAt   *time.Time `json:"deleted_at,omitempty"`
}
