package domain

import "fmt"

type EventKind string

const (
	EventKindHeading    EventKind = "heading"
	EventKindCompletion EventKind = "completion"
	EventKindDecision   EventKind = "decision"
	EventKindOpenLoop   EventKind = "open-loop"
)

func (k EventKind) Valid() bool {
	switch k {
	case EventKindHeading, EventKindCompletion, EventKindDecision, EventKindOpenLoop:
		return true
	default:
		return false
	}
}

// LineRange is 1-based and inclusive.
type LineRange struct {
	Start int `json:"start"`
	End   int `json:"end"`
}

type Event struct {
	SourceDate Date
	Kind       EventKind
	Text       string
	Detail     []string
	Lines      LineRange
}

// Key identifies an event within cold storage by the line that opened it.
// Detail appended later under the event keeps the key stable.
func (e Event) Key() string {
	return fmt.Sprintf("%s:%d:%s", e.SourceDate, e.Lines.Start, e.Kind)
}
