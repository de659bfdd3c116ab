package domain

import "time"

type Mode string

const (
	ModeManual Mode = "manual"
	ModeAuto   Mode = "auto"
	ModeDryRun Mode = "dry-run"
)

func (m Mode) Valid() bool {
	switch m {
	case ModeManual, ModeAuto, ModeDryRun:
		return true
	default:
		return false
	}
}

type RunOutcome string

const (
	RunOutcomeOK     RunOutcome = "ok"
	RunOutcomeFailed RunOutcome = "failed"
)

type ConsolidationRun struct {
	ID           string     `json:"id"`
	Timestamp    time.Time  `json:"timestamp"`
	Mode         Mode       `json:"mode"`
	WindowStart  Date       `json:"window_start"`
	WindowEnd    Date       `json:"window_end"`
	ScannedDates []Date     `json:"scanned_dates"`
	SkippedDates []Date     `json:"skipped_dates,omitempty"`
	EventCount   int        `json:"event_count"`
	PrunedCount  int        `json:"pruned_count"`
	Outcome      RunOutcome `json:"outcome"`
	Error        string     `json:"error,omitempty"`
	// Preview is the rendered hot context. It is never journaled.
	Preview string `json:"-"`
}
