package domain

// DailyNote is one append-only log file. Lines keep their original order and
// are numbered from 1 when referenced.
type DailyNote struct {
	Date  Date
	Path  string
	Lines []string
}
