package ports

import (
	"context"

	"github.com/bnema/openclaw-memory/internal/domain"
)

type Embedder interface {
	Model() string
	Embed(ctx context.Context, texts []string) ([][]float32, error)
}

type IndexStore interface {
	ExistingKeys(ctx context.Context, keys []string) (map[string]bool, error)
	Insert(ctx context.Context, entries []domain.MemoryIndexEntry) ([]int64, error)
	Embedded(ctx context.Context) ([]domain.MemoryIndexEntry, error)
	Get(ctx context.Context, ids []int64) ([]domain.MemoryIndexEntry, error)
	// Around returns the entry with id and up to window neighbours on each
	// side, ordered by source date and line.
	Around(ctx context.Context, id int64, window int) ([]domain.MemoryIndexEntry, error)
	SearchText(ctx context.Context, query string, limit int) ([]domain.MemoryIndexEntry, error)
	LogSearch(ctx context.Context, query string, results int) error
	Stats(ctx context.Context) (domain.IndexStats, error)
	Reset(ctx context.Context) error
}

type TokenCounter interface {
	CountText(text string) int
}

// EventSink receives events after they reach the hot context.
type EventSink interface {
	Index(ctx context.Context, events []domain.Event) (domain.IndexReport, error)
}
