package application

import "github.com/bnema/openclaw-memory/internal/domain"

const (
	DefaultRetentionDays = 7
	DefaultSearchLimit   = 10
	MaxSearchLimit       = 50
	DefaultTimelineSpan  = 5
)

type RunCommand struct {
	Mode          domain.Mode
	RetentionDays int
	// Owner is recorded in the lock file for operators inspecting a busy run.
	Owner string
}

type IndexNotesCommand struct {
	Dates []domain.Date
	// All drops every stored entry before indexing cold storage again.
	All    bool
	DryRun bool
}
