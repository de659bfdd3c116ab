package application

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/bnema/openclaw-memory/internal/adapters/hotcontext/markdown"
	"github.com/bnema/openclaw-memory/internal/adapters/journal/jsonl"
	lockfile "github.com/bnema/openclaw-memory/internal/adapters/lock/file"
	notesfs "github.com/bnema/openclaw-memory/internal/adapters/notes/fs"
	"github.com/bnema/openclaw-memory/internal/domain"
	"github.com/bnema/openclaw-memory/internal/ports"
	"github.com/bnema/openclaw-memory/internal/ports/mocks"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

var consolidationNow = time.Date(2026, 2, 14, 12, 0, 0, 0, time.UTC)

type consolidationFixture struct {
	root     string
	memDir   string
	hotPath  string
	lockPath string
	logPath  string
	hot      *markdown.Store
	runs     *jsonl.RunLog
	deps     ConsolidationDeps
}

func newConsolidationFixture(t *testing.T) *consolidationFixture {
	t.Helper()

	root := t.TempDir()
	memDir := filepath.Join(root, "memory")
	require.NoError(t, os.MkdirAll(memDir, 0o700))

	f := &consolidationFixture{
		root:     root,
		memDir:   memDir,
		hotPath:  filepath.Join(root, "MEMORY.md"),
		lockPath: filepath.Join(memDir, lockfile.FileName),
		logPath:  filepath.Join(memDir, jsonl.RunLogFile),
	}
	f.hot = markdown.NewStore(f.hotPath, markdown.DefaultDetailLines)
	f.runs = jsonl.NewRunLog(f.logPath)
	clock := fixedClock{now: consolidationNow}
	f.deps = ConsolidationDeps{
		Notes:      notesfs.NewStore(memDir),
		HotContext: f.hot,
		Lock:       lockfile.NewLock(f.lockPath, 10*time.Minute, clock, nil),
		Runs:       f.runs,
		Clock:      clock,
		Location:   time.UTC,
		MaxRun:     10 * time.Minute,
	}
	return f
}

func (f *consolidationFixture) note(t *testing.T, date string, content string) string {
	t.Helper()

	path := filepath.Join(f.memDir, date+".md")
	writeFile(t, path, content)
	return path
}

func (f *consolidationFixture) service() *ConsolidationService {
	return NewConsolidationService(f.deps)
}

func TestConsolidationRunWritesHeadingAndCompletion(t *testing.T) {
	t.Parallel()

	f := newConsolidationFixture(t)
	f.note(t, "2026-02-14", "## Built feature X\n- ✅ shipped the parser\n")

	run, err := f.service().Run(context.Background(), RunCommand{Mode: domain.ModeAuto, RetentionDays: 7})
	require.NoError(t, err)

	assert.Equal(t, domain.RunOutcomeOK, run.Outcome)
	assert.Equal(t, 2, run.EventCount)
	assert.Equal(t, []domain.Date{"2026-02-14"}, run.ScannedDates)
	assert.Equal(t, domain.Date("2026-02-08"), run.WindowStart)
	assert.Equal(t, domain.Date("2026-02-14"), run.WindowEnd)
	assert.NotEmpty(t, run.ID)

	assert.Equal(t, "<!-- recent-history:begin -->\n"+
		"## Recent History\n"+
		"\n### 2026-02-14\n"+
		"- [heading] Built feature X\n"+
		"- [completion] shipped the parser\n"+
		"<!-- recent-history:end -->\n", readFile(t, f.hotPath))

	runs, err := f.service().History(context.Background(), 0)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, run.ID, runs[0].ID)
	assert.Empty(t, runs[0].Preview)

	_, err = os.Stat(f.lockPath)
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestConsolidationRunIsIdempotentAndKeepsAgentText(t *testing.T) {
	t.Parallel()

	f := newConsolidationFixture(t)
	writeFile(t, f.hotPath, "# Agent\n\nkeep me exactly\n")
	f.note(t, "2026-02-12", "## Older work\n- [x] closed the ticket\n  extra context\n")
	f.note(t, "2026-02-14", "## Newer work\n- decided: ship on friday\n")

	svc := f.service()
	_, err := svc.Run(context.Background(), RunCommand{Mode: domain.ModeAuto, RetentionDays: 7})
	require.NoError(t, err)
	first := readFile(t, f.hotPath)

	_, err = svc.Run(context.Background(), RunCommand{Mode: domain.ModeAuto, RetentionDays: 7})
	require.NoError(t, err)
	second := readFile(t, f.hotPath)

	assert.Equal(t, first, second)
	assert.True(t, strings.HasPrefix(first, "# Agent\n\nkeep me exactly\n<!-- recent-history:begin -->\n"))
	assert.Less(t, strings.Index(first, "### 2026-02-14"), strings.Index(first, "### 2026-02-12"))
	assert.Contains(t, first, "- [completion] closed the ticket\n  - extra context\n")
	assert.Contains(t, first, "- [decision] ship on friday\n")
}

func TestConsolidationRunPrunesBlocksOutsideWindow(t *testing.T) {
	t.Parallel()

	f := newConsolidationFixture(t)
	oldNote := f.note(t, "2026-02-06", "## Ancient\n- ✅ old thing\n")
	before, err := os.Stat(oldNote)
	require.NoError(t, err)
	writeFile(t, f.hotPath, "intro\n\n<!-- recent-history:begin -->\n## Recent History\n\n### 2026-02-06\n- [heading] Ancient\n<!-- recent-history:end -->\noutro\n")

	run, err := f.service().Run(context.Background(), RunCommand{Mode: domain.ModeAuto, RetentionDays: 7})
	require.NoError(t, err)

	content := readFile(t, f.hotPath)
	assert.NotContains(t, content, "2026-02-06")
	assert.Contains(t, content, "_No recent events._")
	assert.True(t, strings.HasPrefix(content, "intro\n\n"))
	assert.True(t, strings.HasSuffix(content, "<!-- recent-history:end -->\noutro\n"))
	assert.Equal(t, 1, run.PrunedCount)
	assert.Empty(t, run.ScannedDates)

	after, err := os.Stat(oldNote)
	require.NoError(t, err)
	assert.Equal(t, before.ModTime(), after.ModTime())
	assert.Equal(t, "## Ancient\n- ✅ old thing\n", readFile(t, oldNote))
}

func TestConsolidationDryRunWritesNothing(t *testing.T) {
	t.Parallel()

	f := newConsolidationFixture(t)
	f.note(t, "2026-02-14", "## Built feature X\n")

	run, err := f.service().Run(context.Background(), RunCommand{Mode: domain.ModeDryRun, RetentionDays: 7})
	require.NoError(t, err)

	assert.Equal(t, 1, run.EventCount)
	assert.Contains(t, run.Preview, "- [heading] Built feature X")
	for _, path := range []string{f.hotPath, f.logPath, f.lockPath} {
		_, err := os.Stat(path)
		assert.ErrorIs(t, err, os.ErrNotExist, path)
	}
}

func TestConsolidationRunReportsBusyWithoutTouchingFiles(t *testing.T) {
	t.Parallel()

	f := newConsolidationFixture(t)
	f.note(t, "2026-02-14", "## Built feature X\n")
	writeFile(t, f.hotPath, "untouched\n")

	holder, err := f.deps.Lock.Acquire(context.Background(), "other run")
	require.NoError(t, err)
	t.Cleanup(func() { _ = holder.Release() })

	_, err = f.service().Run(context.Background(), RunCommand{Mode: domain.ModeAuto, RetentionDays: 7})
	require.ErrorIs(t, err, domain.ErrConsolidationBusy)

	assert.Equal(t, "untouched\n", readFile(t, f.hotPath))
	_, err = os.Stat(f.logPath)
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestConsolidationRunReclaimsStaleLock(t *testing.T) {
	t.Parallel()

	f := newConsolidationFixture(t)
	f.note(t, "2026-02-14", "## Built feature X\n")

	crashed := lockfile.NewLock(f.lockPath, 10*time.Minute, fixedClock{now: consolidationNow.Add(-30 * time.Minute)}, nil)
	_, err := crashed.Acquire(context.Background(), "crashed run")
	require.NoError(t, err)

	run, err := f.service().Run(context.Background(), RunCommand{Mode: domain.ModeAuto, RetentionDays: 7})
	require.NoError(t, err)
	assert.Equal(t, domain.RunOutcomeOK, run.Outcome)
	assert.Contains(t, readFile(t, f.hotPath), "Built feature X")
}

func TestConsolidationRunCarriesUnreadableNoteBlock(t *testing.T) {
	t.Parallel()

	f := newConsolidationFixture(t)
	writeFile(t, filepath.Join(f.memDir, "2026-02-13.md"), "## broken \xff\xfe\n")
	f.note(t, "2026-02-14", "## Fresh\n")
	writeFile(t, f.hotPath, "<!-- recent-history:begin -->\n## Recent History\n\n### 2026-02-13\n- [heading] kept from before\n<!-- recent-history:end -->\n")

	run, err := f.service().Run(context.Background(), RunCommand{Mode: domain.ModeAuto, RetentionDays: 7})
	require.NoError(t, err)

	assert.Equal(t, []domain.Date{"2026-02-13"}, run.SkippedDates)
	assert.Equal(t, []domain.Date{"2026-02-14"}, run.ScannedDates)
	content := readFile(t, f.hotPath)
	assert.Contains(t, content, "### 2026-02-13\n- [heading] kept from before\n")
	assert.Contains(t, content, "### 2026-02-14\n- [heading] Fresh\n")
}

type failingHotContext struct {
	ports.HotContextStore
	err error
}

func (f failingHotContext) Save(context.Context, domain.HotContextDocument) error {
	return f.err
}

func TestConsolidationRunWriteFailureKeepsPreviousDocument(t *testing.T) {
	t.Parallel()

	f := newConsolidationFixture(t)
	f.note(t, "2026-02-14", "## Built feature X\n")
	writeFile(t, f.hotPath, "previous\n")
	f.deps.HotContext = failingHotContext{HotContextStore: f.hot, err: errors.New("disk full")}

	run, err := f.service().Run(context.Background(), RunCommand{Mode: domain.ModeAuto, RetentionDays: 7})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "disk full")
	assert.Equal(t, domain.RunOutcomeFailed, run.Outcome)
	assert.Equal(t, "previous\n", readFile(t, f.hotPath))

	runs, err := f.runs.Recent(context.Background(), 1)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, domain.RunOutcomeFailed, runs[0].Outcome)
	assert.Contains(t, runs[0].Error, "disk full")

	_, err = os.Stat(f.lockPath)
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestConsolidationRunHandsEventsToSink(t *testing.T) {
	t.Parallel()

	f := newConsolidationFixture(t)
	f.note(t, "2026-02-14", "## Built feature X\n- ✅ shipped\n")
	sink := mocks.NewMockEventSink(t)
	sink.EXPECT().Index(mockAnyContext(), mock.MatchedBy(func(events []domain.Event) bool {
		return len(events) == 2 && events[0].Kind == domain.EventKindHeading
	})).Return(domain.IndexReport{}, errors.New("embedder offline"))
	f.deps.Sink = sink

	run, err := f.service().Run(context.Background(), RunCommand{Mode: domain.ModeAuto, RetentionDays: 7})
	require.NoError(t, err)
	assert.Equal(t, domain.RunOutcomeOK, run.Outcome)
}

func TestConsolidationRunRejectsInvalidRetention(t *testing.T) {
	t.Parallel()

	f := newConsolidationFixture(t)

	_, err := f.service().Run(context.Background(), RunCommand{Mode: domain.ModeAuto, RetentionDays: -1})
	require.ErrorIs(t, err, domain.ErrInvalidRetention)
	_, err = os.Stat(f.lockPath)
	assert.ErrorIs(t, err, os.ErrNotExist)
}
