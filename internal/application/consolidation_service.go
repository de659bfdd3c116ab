package application

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/bnema/openclaw-memory/internal/domain"
	"github.com/bnema/openclaw-memory/internal/ports"
	"github.com/google/uuid"
)

type ConsolidationDeps struct {
	Notes      ports.NoteStore
	HotContext ports.HotContextStore
	Lock       ports.RunLock
	Runs       ports.RunLog
	Clock      ports.Clock
	Logger     *slog.Logger
	Extractor  *domain.Extractor
	// Sink is optional. When set it receives the window's events after a
	// successful write.
	Sink ports.EventSink
	// Location decides which calendar day "today" is. Defaults to time.Local.
	Location *time.Location
	MaxRun   time.Duration
}

type ConsolidationService struct {
	notes     ports.NoteStore
	hot       ports.HotContextStore
	lock      ports.RunLock
	runs      ports.RunLog
	clock     ports.Clock
	logger    *slog.Logger
	extractor *domain.Extractor
	sink      ports.EventSink
	location  *time.Location
	maxRun    time.Duration
	newID     func() string
}

func NewConsolidationService(deps ConsolidationDeps) *ConsolidationService {
	s := &ConsolidationService{
		notes:     deps.Notes,
		hot:       deps.HotContext,
		lock:      deps.Lock,
		runs:      deps.Runs,
		clock:     deps.Clock,
		logger:    deps.Logger,
		extractor: deps.Extractor,
		sink:      deps.Sink,
		location:  deps.Location,
		maxRun:    deps.MaxRun,
		newID:     uuid.NewString,
	}
	if s.clock == nil {
		s.clock = ports.SystemClock{}
	}
	if s.logger == nil {
		s.logger = discardLogger()
	}
	if s.extractor == nil {
		s.extractor = domain.NewExtractor()
	}
	if s.location == nil {
		s.location = time.Local
	}

	return s
}

func (s *ConsolidationService) Run(ctx context.Context, cmd RunCommand) (run domain.ConsolidationRun, err error) {
	mode := cmd.Mode
	if mode == "" {
		mode = domain.ModeManual
	}
	if !mode.Valid() {
		return domain.ConsolidationRun{}, fmt.Errorf("unsupported consolidation mode %q", mode)
	}
	retention := cmd.RetentionDays
	if retention == 0 {
		retention = DefaultRetentionDays
	}

	now := s.clock.Now()
	window, err := domain.NewRetentionWindow(domain.DateOf(now.In(s.location)), retention)
	if err != nil {
		return domain.ConsolidationRun{}, err
	}

	if s.maxRun > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.maxRun)
		defer cancel()
	}

	dryRun := mode == domain.ModeDryRun
	if !dryRun {
		owner := cmd.Owner
		if owner == "" {
			owner = "consolidate " + string(mode)
		}
		handle, err := s.lock.Acquire(ctx, owner)
		if err != nil {
			if errors.Is(err, domain.ErrConsolidationBusy) {
				s.logger.Info("consolidation skipped", "reason", err.Error())
			}
			return domain.ConsolidationRun{}, fmt.Errorf("acquire run lock: %w", err)
		}
		defer func() {
			if releaseErr := handle.Release(); releaseErr != nil {
				s.logger.Warn("release run lock", "error", releaseErr)
				err = errors.Join(err, fmt.Errorf("release run lock: %w", releaseErr))
			}
		}()
	}

	run = domain.ConsolidationRun{
		ID:           s.newID(),
		Timestamp:    now,
		Mode:         mode,
		WindowStart:  window.Start,
		WindowEnd:    window.End,
		ScannedDates: []domain.Date{},
	}
	s.logger.Info("consolidation started", "run", run.ID, "mode", mode, "window_start", window.Start, "window_end", window.End)

	doc, err := s.hot.Load(ctx)
	if err != nil {
		return s.fail(ctx, run, fmt.Errorf("load hot context: %w", err))
	}

	blocks, events, err := s.collect(ctx, window, doc, &run)
	if err != nil {
		return s.fail(ctx, run, err)
	}
	run.EventCount = len(events)
	run.PrunedCount = prunedDates(doc.History, window)

	next := doc
	next.History = blocks
	run.Preview = s.hot.Render(next)

	if dryRun {
		run.Outcome = domain.RunOutcomeOK
		return run, nil
	}

	if err := s.hot.Save(ctx, next); err != nil {
		return s.fail(ctx, run, fmt.Errorf("save hot context: %w", err))
	}

	run.Outcome = domain.RunOutcomeOK
	if err := s.runs.Append(ctx, run); err != nil {
		return run, fmt.Errorf("append run log: %w", err)
	}
	s.logger.Info("consolidation finished",
		"run", run.ID,
		"scanned", len(run.ScannedDates),
		"skipped", len(run.SkippedDates),
		"events", run.EventCount,
		"pruned", run.PrunedCount,
	)

	s.index(ctx, events)

	return run, nil
}

// collect walks the window oldest first and returns blocks newest first.
func (s *ConsolidationService) collect(ctx context.Context, window domain.RetentionWindow, doc domain.HotContextDocument, run *domain.ConsolidationRun) ([]domain.HistoryBlock, []domain.Event, error) {
	var blocks []domain.HistoryBlock
	var events []domain.Event

	for _, date := range window.Dates() {
		note, err := s.notes.Load(ctx, date)
		switch {
		case errors.Is(err, domain.ErrNoteNotFound):
			continue
		case errors.Is(err, domain.ErrNoteUnreadable):
			s.logger.Warn("skipping unreadable daily note", "date", date, "error", err)
			run.SkippedDates = append(run.SkippedDates, date)
			if previous, ok := doc.Block(date); ok {
				blocks = append(blocks, previous)
			}
			continue
		case err != nil:
			return nil, nil, fmt.Errorf("load daily note %s: %w", date, err)
		}

		run.ScannedDates = append(run.ScannedDates, date)
		extracted := s.extractor.Extract(note)
		if len(extracted) == 0 {
			continue
		}
		events = append(events, extracted...)
		blocks = append(blocks, domain.BlockFromEvents(date, extracted))
	}

	for i, j := 0, len(blocks)-1; i < j; i, j = i+1, j-1 {
		blocks[i], blocks[j] = blocks[j], blocks[i]
	}

	return blocks, events, nil
}

// fail journals a failed run. The journal write ignores cancellation so a
// timed out run is still recorded.
func (s *ConsolidationService) fail(ctx context.Context, run domain.ConsolidationRun, cause error) (domain.ConsolidationRun, error) {
	run.Outcome = domain.RunOutcomeFailed
	run.Error = cause.Error()
	run.Preview = ""
	s.logger.Error("consolidation failed", "run", run.ID, "error", cause)

	if run.Mode == domain.ModeDryRun {
		return run, cause
	}
	if err := s.runs.Append(context.WithoutCancel(ctx), run); err != nil {
		return run, errors.Join(cause, fmt.Errorf("append failed run: %w", err))
	}

	return run, cause
}

// History returns up to limit journaled runs, newest first.
func (s *ConsolidationService) History(ctx context.Context, limit int) ([]domain.ConsolidationRun, error) {
	runs, err := s.runs.Recent(ctx, limit)
	if err != nil {
		return nil, fmt.Errorf("read run log: %w", err)
	}
	return runs, nil
}

func (s *ConsolidationService) index(ctx context.Context, events []domain.Event) {
	if s.sink == nil || len(events) == 0 {
		return
	}

	report, err := s.sink.Index(ctx, events)
	if err != nil {
		s.logger.Warn("index consolidated events", "error", err)
		return
	}
	s.logger.Info("indexed consolidated events", "indexed", report.Indexed, "skipped", report.Skipped, "model", report.Model)
}

func prunedDates(history []domain.HistoryBlock, window domain.RetentionWindow) int {
	seen := map[domain.Date]struct{}{}
	for _, block := range history {
		if window.Contains(block.Date) {
			continue
		}
		seen[block.Date] = struct{}{}
	}

	return len(seen)
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
