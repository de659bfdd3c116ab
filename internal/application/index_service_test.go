package application

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/bnema/openclaw-memory/internal/adapters/embed/hashing"
	sqliteindex "github.com/bnema/openclaw-memory/internal/adapters/index/sqlite"
	notesfs "github.com/bnema/openclaw-memory/internal/adapters/notes/fs"
	"github.com/bnema/openclaw-memory/internal/adapters/tokens"
	"github.com/bnema/openclaw-memory/internal/domain"
	"github.com/bnema/openclaw-memory/internal/ports/mocks"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

const storageNote = `## Storage work
- ✅ migrated sqlite index to WAL mode
  checkpoint every 1000 pages
- ✅ lunch with the team
- [ ] fixed flaky sqlite test
`

type indexFixture struct {
	memDir  string
	notes   *notesfs.Store
	store   *sqliteindex.Store
	service *IndexService
}

func newIndexFixture(t *testing.T) *indexFixture {
	t.Helper()

	memDir := filepath.Join(t.TempDir(), "memory")
	store, err := sqliteindex.Open(filepath.Join(memDir, sqliteindex.FileName))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	f := &indexFixture{memDir: memDir, notes: notesfs.NewStore(memDir), store: store}
	f.service, err = NewIndexService(IndexDeps{
		Store:    store,
		Embedder: hashing.NewEmbedder(1024),
		Notes:    f.notes,
		Tokens:   tokens.NewHeuristicCounter(),
		Clock:    fixedClock{now: time.Date(2026, 2, 14, 18, 0, 0, 0, time.UTC)},
	})
	require.NoError(t, err)
	return f
}

func (f *indexFixture) events(t *testing.T, date string, content string) []domain.Event {
	t.Helper()

	writeFile(t, filepath.Join(f.memDir, date+".md"), content)
	note, err := f.notes.Load(context.Background(), domain.Date(date))
	require.NoError(t, err)
	return domain.NewExtractor().Extract(note)
}

func TestIndexIsIdempotent(t *testing.T) {
	t.Parallel()

	f := newIndexFixture(t)
	events := f.events(t, "2026-02-14", storageNote)
	require.Len(t, events, 4)

	first, err := f.service.Index(context.Background(), events)
	require.NoError(t, err)
	assert.Equal(t, domain.IndexReport{Indexed: 4, Model: "local-hash-1024"}, first)

	second, err := f.service.Index(context.Background(), events)
	require.NoError(t, err)
	assert.Equal(t, domain.IndexReport{Skipped: 4, Model: "local-hash-1024"}, second)

	stats, err := f.service.Stats(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 4, stats.TotalEntries)
	assert.Equal(t, 4, stats.IndexedEntries)
	assert.Equal(t, 1, stats.DistinctDates)
}

func TestSearchIndexRanksBySimilarity(t *testing.T) {
	t.Parallel()

	f := newIndexFixture(t)
	_, err := f.service.Index(context.Background(), f.events(t, "2026-02-14", storageNote))
	require.NoError(t, err)

	hits, err := f.service.SearchIndex(context.Background(), "sqlite index", 2)
	require.NoError(t, err)
	require.Len(t, hits, 2)
	assert.Equal(t, "migrated sqlite index to WAL mode", hits[0].Title)
	assert.Equal(t, domain.Date("2026-02-14"), hits[0].Date)
	assert.GreaterOrEqual(t, hits[0].Score, hits[1].Score)
	assert.Positive(t, hits[0].Tokens)

	stats, err := f.service.Stats(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Searches)
}

func TestSearchIndexFallsBackToTextWithoutVectors(t *testing.T) {
	t.Parallel()

	f := newIndexFixture(t)
	_, err := f.store.Insert(context.Background(), []domain.MemoryIndexEntry{{
		Key:        "2026-02-10:1:decision",
		SourceDate: "2026-02-10",
		Kind:       domain.EventKindDecision,
		Text:       "use sqlite for the index",
		Lines:      domain.LineRange{Start: 1, End: 1},
	}})
	require.NoError(t, err)

	hits, err := f.service.SearchIndex(context.Background(), "sqlite", 0)
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, "use sqlite for the index", hits[0].Title)
	assert.Zero(t, hits[0].Score)
}

func TestSearchRejectsEmptyQuery(t *testing.T) {
	t.Parallel()

	f := newIndexFixture(t)

	_, err := f.service.SearchIndex(context.Background(), "   ", 5)
	assert.Error(t, err)
	_, err = f.service.SearchText(context.Background(), "", 5)
	assert.Error(t, err)
}

func TestRetrievalTiersGrowInTokenCost(t *testing.T) {
	t.Parallel()

	f := newIndexFixture(t)
	_, err := f.service.Index(context.Background(), f.events(t, "2026-02-14", storageNote))
	require.NoError(t, err)

	hits, err := f.service.SearchIndex(context.Background(), "sqlite index WAL", 1)
	require.NoError(t, err)
	require.Len(t, hits, 1)
	hit := hits[0]

	timeline, err := f.service.Timeline(context.Background(), hit.ID, 1)
	require.NoError(t, err)
	var item domain.TimelineEntry
	for _, entry := range timeline {
		if entry.ID == hit.ID {
			item = entry
		}
	}
	require.Equal(t, hit.ID, item.ID)

	details, err := f.service.Details(context.Background(), []int64{hit.ID})
	require.NoError(t, err)
	require.Len(t, details, 1)

	assert.Less(t, hit.Tokens, item.Tokens)
	assert.Less(t, item.Tokens, details[0].Tokens)
}

func TestTimelineOrdersNeighboursBySourcePosition(t *testing.T) {
	t.Parallel()

	f := newIndexFixture(t)
	_, err := f.service.Index(context.Background(), f.events(t, "2026-02-14", storageNote))
	require.NoError(t, err)

	hits, err := f.service.SearchText(context.Background(), "lunch", 1)
	require.NoError(t, err)
	require.Len(t, hits, 1)

	timeline, err := f.service.Timeline(context.Background(), hits[0].ID, 1)
	require.NoError(t, err)
	require.Len(t, timeline, 3)
	assert.Equal(t, "migrated sqlite index to WAL mode", timeline[0].Title)
	assert.Equal(t, "migrated sqlite index to WAL mode checkpoint every 1000 pages", timeline[0].Preview)
	assert.Equal(t, "lunch with the team", timeline[1].Title)
	assert.Equal(t, domain.EventKindOpenLoop, timeline[2].Kind)

	_, err = f.service.Timeline(context.Background(), 9999, 1)
	assert.ErrorIs(t, err, domain.ErrEntryNotFound)
}

func TestDetailsKeepRequestedOrderAndSkipUnknownIDs(t *testing.T) {
	t.Parallel()

	f := newIndexFixture(t)
	_, err := f.service.Index(context.Background(), f.events(t, "2026-02-14", storageNote))
	require.NoError(t, err)

	details, err := f.service.Details(context.Background(), []int64{2, 424242, 1})
	require.NoError(t, err)
	require.Len(t, details, 2)

	assert.Equal(t, int64(2), details[0].ID)
	assert.Equal(t, "migrated sqlite index to WAL mode", details[0].Text)
	assert.Equal(t, []string{"checkpoint every 1000 pages"}, details[0].Detail)
	assert.Equal(t, domain.LineRange{Start: 2, End: 3}, details[0].Lines)
	assert.Equal(t, f.notes.Path("2026-02-14"), details[0].Source)
	assert.Equal(t, int64(1), details[1].ID)
	assert.Equal(t, domain.EventKindHeading, details[1].Kind)
}

func TestIndexNotesDryRunAndReindex(t *testing.T) {
	t.Parallel()

	f := newIndexFixture(t)
	f.events(t, "2026-02-13", "## Planning\n- decision: keep notes in markdown\n")
	f.events(t, "2026-02-14", storageNote)

	dry, err := f.service.IndexNotes(context.Background(), IndexNotesCommand{DryRun: true})
	require.NoError(t, err)
	assert.Equal(t, 6, dry.Indexed)
	assert.True(t, dry.DryRun)
	stats, err := f.service.Stats(context.Background())
	require.NoError(t, err)
	assert.Zero(t, stats.TotalEntries)

	report, err := f.service.IndexNotes(context.Background(), IndexNotesCommand{})
	require.NoError(t, err)
	assert.Equal(t, 6, report.Indexed)

	again, err := f.service.IndexNotes(context.Background(), IndexNotesCommand{Dates: []domain.Date{"2026-02-13"}})
	require.NoError(t, err)
	assert.Equal(t, 0, again.Indexed)
	assert.Equal(t, 2, again.Skipped)

	rebuilt, err := f.service.IndexNotes(context.Background(), IndexNotesCommand{All: true})
	require.NoError(t, err)
	assert.Equal(t, 6, rebuilt.Indexed)
	stats, err = f.service.Stats(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 6, stats.TotalEntries)
	assert.Equal(t, domain.Date("2026-02-13"), stats.Earliest)
	assert.Equal(t, domain.Date("2026-02-14"), stats.Latest)
}

func TestHitTitleIsTruncated(t *testing.T) {
	t.Parallel()

	f := newIndexFixture(t)
	long := "## " + strings.Repeat("word ", 30) + "\n"
	_, err := f.service.Index(context.Background(), f.events(t, "2026-02-14", long))
	require.NoError(t, err)

	hits, err := f.service.SearchIndex(context.Background(), "word", 1)
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Len(t, []rune(hits[0].Title), domain.MaxTitleRunes)
	assert.True(t, strings.HasSuffix(hits[0].Title, "..."))
}

func TestIndexStampsEntriesWithClock(t *testing.T) {
	t.Parallel()

	f := newIndexFixture(t)
	indexedAt := time.Date(2026, 2, 15, 7, 30, 0, 0, time.UTC)
	clock := mocks.NewMockClock(t)
	clock.EXPECT().Now().Return(indexedAt).Once()

	service, err := NewIndexService(IndexDeps{
		Store:    f.store,
		Embedder: hashing.NewEmbedder(64),
		Notes:    f.notes,
		Tokens:   tokens.NewHeuristicCounter(),
		Clock:    clock,
	})
	require.NoError(t, err)

	report, err := service.Index(context.Background(), f.events(t, "2026-02-14", storageNote))
	require.NoError(t, err)
	require.Equal(t, 4, report.Indexed)

	entries, err := f.store.Get(context.Background(), []int64{1, 4})
	require.NoError(t, err)
	require.Len(t, entries, 2)
	for _, entry := range entries {
		assert.True(t, entry.CreatedAt.Equal(indexedAt), "created at %s", entry.CreatedAt)
		assert.Equal(t, "64", entry.Metadata["dimensions"])
		assert.Equal(t, filepath.Join(f.memDir, "2026-02-14.md"), entry.SourcePath)
	}
}

func TestIndexLeavesStoreUntouchedWhenEmbeddingFails(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		vectors [][]float32
		err     error
		wantErr string
	}{
		{name: "backend error", err: errors.New("rate limited"), wantErr: "embed events: rate limited"},
		{name: "short batch", vectors: [][]float32{{1, 0}}, wantErr: "got 1 vectors for 4 texts"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			f := newIndexFixture(t)
			embedder := mocks.NewMockEmbedder(t)
			embedder.EXPECT().Model().Return("remote-model")
			embedder.EXPECT().Embed(mockAnyContext(), mock.Anything).Return(tt.vectors, tt.err).Once()

			service, err := NewIndexService(IndexDeps{
				Store:    f.store,
				Embedder: embedder,
				Tokens:   tokens.NewHeuristicCounter(),
			})
			require.NoError(t, err)

			_, err = service.Index(context.Background(), f.events(t, "2026-02-14", storageNote))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)

			stats, err := f.service.Stats(context.Background())
			require.NoError(t, err)
			assert.Zero(t, stats.TotalEntries)
		})
	}
}

func TestIndexKeepsKeyWhenDetailIsAppended(t *testing.T) {
	t.Parallel()

	f := newIndexFixture(t)
	first, err := f.service.Index(context.Background(), f.events(t, "2026-02-14", "## Storage work\n- first detail\n"))
	require.NoError(t, err)
	require.Equal(t, 1, first.Indexed)

	again, err := f.service.Index(context.Background(), f.events(t, "2026-02-14", "## Storage work\n- first detail\n- second detail\n"))
	require.NoError(t, err)
	assert.Equal(t, 0, again.Indexed)
	assert.Equal(t, 1, again.Skipped)

	hits, err := f.service.SearchText(context.Background(), "Storage work", 0)
	require.NoError(t, err)
	assert.Len(t, hits, 1)
}
