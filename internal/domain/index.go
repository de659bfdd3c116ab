package domain

import "time"

const (
	MaxTitleRunes   = 50
	MaxPreviewRunes = 100
)

// MemoryIndexEntry is immutable once stored. Entries are removed only by an
// explicit reindex.
type MemoryIndexEntry struct {
	ID         int64
	Key        string
	SourceDate Date
	SourcePath string
	Kind       EventKind
	Text       string
	Detail     []string
	Lines      LineRange
	Vector     []float32
	Model      string
	Metadata   map[string]string
	CreatedAt  time.Time
}

func (e MemoryIndexEntry) Title() string {
	return Snippet(e.Text, MaxTitleRunes)
}

// IndexHit is the cheapest retrieval tier.
type IndexHit struct {
	ID     int64   `json:"id"`
	Title  string  `json:"title"`
	Date   Date    `json:"date"`
	Score  float64 `json:"score"`
	Tokens int     `json:"tokens"`
}

type TimelineEntry struct {
	ID      int64     `json:"id"`
	Title   string    `json:"title"`
	Date    Date      `json:"date"`
	Kind    EventKind `json:"kind"`
	Preview string    `json:"preview"`
	Tokens  int       `json:"tokens"`
}

type EventDetail struct {
	ID       int64             `json:"id"`
	Date     Date              `json:"date"`
	Kind     EventKind         `json:"kind"`
	Text     string            `json:"text"`
	Detail   []string          `json:"detail"`
	Source   string            `json:"source"`
	Lines    LineRange         `json:"lines"`
	Metadata map[string]string `json:"metadata,omitempty"`
	Tokens   int               `json:"tokens"`
}

type IndexStats struct {
	TotalEntries   int    `json:"total_entries"`
	IndexedEntries int    `json:"indexed_entries"`
	DistinctDates  int    `json:"distinct_dates"`
	Earliest       Date   `json:"earliest,omitempty"`
	Latest         Date   `json:"latest,omitempty"`
	Searches       int    `json:"searches"`
	Model          string `json:"model,omitempty"`
}

type IndexReport struct {
	Indexed int    `json:"indexed"`
	Skipped int    `json:"skipped"`
	Model   string `json:"model"`
	DryRun  bool   `json:"dry_run,omitempty"`
}
