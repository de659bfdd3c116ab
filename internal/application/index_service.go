package application

import (
	"cmp"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"slices"
	"strconv"
	"strings"

	"github.com/bnema/openclaw-memory/internal/domain"
	"github.com/bnema/openclaw-memory/internal/ports"
)

type IndexDeps struct {
	Store     ports.IndexStore
	Embedder  ports.Embedder
	Notes     ports.NoteStore
	Tokens    ports.TokenCounter
	Extractor *domain.Extractor
	Clock     ports.Clock
	Logger    *slog.Logger
}

// IndexService serves retrieval in three tiers of growing cost: ranked hits,
// a timeline around one hit, then full details.
type IndexService struct {
	store     ports.IndexStore
	embedder  ports.Embedder
	notes     ports.NoteStore
	tokens    ports.TokenCounter
	extractor *domain.Extractor
	clock     ports.Clock
	logger    *slog.Logger
}

var _ ports.EventSink = (*IndexService)(nil)

func NewIndexService(deps IndexDeps) (*IndexService, error) {
	if deps.Store == nil || deps.Embedder == nil || deps.Tokens == nil {
		return nil, errors.New("index requires a store, an embedder and a token counter")
	}

	s := &IndexService{
		store:     deps.Store,
		embedder:  deps.Embedder,
		notes:     deps.Notes,
		tokens:    deps.Tokens,
		extractor: deps.Extractor,
		clock:     deps.Clock,
		logger:    deps.Logger,
	}
	if s.extractor == nil {
		s.extractor = domain.NewExtractor()
	}
	if s.clock == nil {
		s.clock = ports.SystemClock{}
	}
	if s.logger == nil {
		s.logger = discardLogger()
	}

	return s, nil
}

// Index stores events whose key is not indexed yet. Indexing the same events
// again reports them all as skipped.
func (s *IndexService) Index(ctx context.Context, events []domain.Event) (domain.IndexReport, error) {
	report := domain.IndexReport{Model: s.embedder.Model()}
	if len(events) == 0 {
		return report, nil
	}

	pending, err := s.pending(ctx, events)
	if err != nil {
		return report, err
	}
	report.Skipped = len(events) - len(pending)
	if len(pending) == 0 {
		return report, nil
	}

	texts := make([]string, len(pending))
	for i, event := range pending {
		texts[i] = embedText(event)
	}
	vectors, err := s.embedder.Embed(ctx, texts)
	if err != nil {
		return report, fmt.Errorf("embed events: %w", err)
	}
	if len(vectors) != len(pending) {
		return report, fmt.Errorf("embed events: got %d vectors for %d texts", len(vectors), len(pending))
	}

	now := s.clock.Now()
	entries := make([]domain.MemoryIndexEntry, len(pending))
	for i, event := range pending {
		entries[i] = domain.MemoryIndexEntry{
			Key:        event.Key(),
			SourceDate: event.SourceDate,
			SourcePath: s.sourcePath(event.SourceDate),
			Kind:       event.Kind,
			Text:       event.Text,
			Detail:     event.Detail,
			Lines:      event.Lines,
			Vector:     vectors[i],
			Model:      report.Model,
			Metadata: map[string]string{
				"dimensions": strconv.Itoa(len(vectors[i])),
			},
			CreatedAt: now,
		}
	}

	ids, err := s.store.Insert(ctx, entries)
	if err != nil {
		return report, fmt.Errorf("insert index entries: %w", err)
	}
	for _, id := range ids {
		if id == 0 {
			report.Skipped++
			continue
		}
		report.Indexed++
	}

	return report, nil
}

func (s *IndexService) pending(ctx context.Context, events []domain.Event) ([]domain.Event, error) {
	keys := make([]string, 0, len(events))
	for _, event := range events {
		keys = append(keys, event.Key())
	}
	existing, err := s.store.ExistingKeys(ctx, keys)
	if err != nil {
		return nil, fmt.Errorf("check indexed keys: %w", err)
	}

	pending := make([]domain.Event, 0, len(events))
	for _, event := range events {
		key := event.Key()
		if existing[key] {
			continue
		}
		existing[key] = true
		pending = append(pending, event)
	}

	return pending, nil
}

// IndexNotes extracts daily notes from cold storage and indexes them. With
// no dates every note is visited.
func (s *IndexService) IndexNotes(ctx context.Context, cmd IndexNotesCommand) (domain.IndexReport, error) {
	report := domain.IndexReport{Model: s.embedder.Model(), DryRun: cmd.DryRun}
	if s.notes == nil {
		return report, errors.New("index notes: no note store configured")
	}

	dates := cmd.Dates
	if len(dates) == 0 {
		listed, err := s.notes.ListDates(ctx)
		if err != nil {
			return report, fmt.Errorf("list daily notes: %w", err)
		}
		dates = listed
	}

	if cmd.All && !cmd.DryRun {
		if err := s.store.Reset(ctx); err != nil {
			return report, fmt.Errorf("reset index: %w", err)
		}
		s.logger.Info("index reset")
	}

	for _, date := range dates {
		note, err := s.notes.Load(ctx, date)
		switch {
		case errors.Is(err, domain.ErrNoteNotFound):
			s.logger.Warn("daily note not found", "date", date)
			continue
		case errors.Is(err, domain.ErrNoteUnreadable):
			s.logger.Warn("skipping unreadable daily note", "date", date, "error", err)
			continue
		case err != nil:
			return report, fmt.Errorf("load daily note %s: %w", date, err)
		}

		events := s.extractor.Extract(note)
		if len(events) == 0 {
			continue
		}

		if cmd.DryRun {
			pending := events
			if !cmd.All {
				if pending, err = s.pending(ctx, events); err != nil {
					return report, err
				}
			}
			report.Indexed += len(pending)
			report.Skipped += len(events) - len(pending)
			continue
		}

		dateReport, err := s.Index(ctx, events)
		if err != nil {
			return report, fmt.Errorf("index %s: %w", date, err)
		}
		report.Indexed += dateReport.Indexed
		report.Skipped += dateReport.Skipped
		s.logger.Debug("indexed daily note", "date", date, "indexed", dateReport.Indexed, "skipped", dateReport.Skipped)
	}

	return report, nil
}

// SearchIndex ranks entries by cosine similarity to the query. Without any
// stored vectors it falls back to SearchText.
func (s *IndexService) SearchIndex(ctx context.Context, query string, limit int) ([]domain.IndexHit, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, errors.New("search query is empty")
	}
	limit = clampLimit(limit)

	entries, err := s.store.Embedded(ctx)
	if err != nil {
		return nil, fmt.Errorf("load embedded entries: %w", err)
	}
	if len(entries) == 0 {
		return s.SearchText(ctx, query, limit)
	}

	vectors, err := s.embedder.Embed(ctx, []string{query})
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}
	if len(vectors) != 1 {
		return nil, fmt.Errorf("embed query: got %d vectors", len(vectors))
	}
	queryVec := vectors[0]

	model := s.embedder.Model()
	hits := make([]domain.IndexHit, 0, len(entries))
	mismatched := 0
	for _, entry := range entries {
		if entry.Model != model || len(entry.Vector) != len(queryVec) {
			mismatched++
			continue
		}
		hits = append(hits, domain.IndexHit{
			ID:    entry.ID,
			Title: entry.Title(),
			Date:  entry.SourceDate,
			Score: math.Round(cosine(queryVec, entry.Vector)*1e4) / 1e4,
		})
	}
	if mismatched > 0 {
		s.logger.Warn("entries embedded with another model were ignored; run index --all to rebuild", "count", mismatched, "model", model)
	}

	slices.SortStableFunc(hits, func(a, b domain.IndexHit) int {
		if c := cmp.Compare(b.Score, a.Score); c != 0 {
			return c
		}
		return cmp.Compare(a.ID, b.ID)
	})
	if len(hits) > limit {
		hits = hits[:limit]
	}
	for i := range hits {
		hits[i].Tokens = s.countJSON(hits[i])
	}

	s.logSearch(ctx, query, len(hits))
	return hits, nil
}

// SearchText matches the query as a substring of event text or detail.
func (s *IndexService) SearchText(ctx context.Context, query string, limit int) ([]domain.IndexHit, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, errors.New("search query is empty")
	}

	entries, err := s.store.SearchText(ctx, query, clampLimit(limit))
	if err != nil {
		return nil, fmt.Errorf("search text: %w", err)
	}

	hits := make([]domain.IndexHit, 0, len(entries))
	for _, entry := range entries {
		hit := domain.IndexHit{ID: entry.ID, Title: entry.Title(), Date: entry.SourceDate}
		hit.Tokens = s.countJSON(hit)
		hits = append(hits, hit)
	}

	s.logSearch(ctx, query, len(hits))
	return hits, nil
}

func (s *IndexService) Timeline(ctx context.Context, id int64, window int) ([]domain.TimelineEntry, error) {
	if window <= 0 {
		window = DefaultTimelineSpan
	}

	entries, err := s.store.Around(ctx, id, window)
	if err != nil {
		return nil, fmt.Errorf("load timeline for %d: %w", id, err)
	}

	timeline := make([]domain.TimelineEntry, 0, len(entries))
	for _, entry := range entries {
		item := domain.TimelineEntry{
			ID:      entry.ID,
			Title:   entry.Title(),
			Date:    entry.SourceDate,
			Kind:    entry.Kind,
			Preview: domain.Snippet(embedText(eventOf(entry)), domain.MaxPreviewRunes),
		}
		item.Tokens = s.countJSON(item)
		timeline = append(timeline, item)
	}

	return timeline, nil
}

// Details returns entries in the requested order. Unknown ids are skipped.
func (s *IndexService) Details(ctx context.Context, ids []int64) ([]domain.EventDetail, error) {
	entries, err := s.store.Get(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("load details: %w", err)
	}

	details := make([]domain.EventDetail, 0, len(entries))
	for _, entry := range entries {
		detail := domain.EventDetail{
			ID:       entry.ID,
			Date:     entry.SourceDate,
			Kind:     entry.Kind,
			Text:     entry.Text,
			Detail:   entry.Detail,
			Source:   entry.SourcePath,
			Lines:    entry.Lines,
			Metadata: entry.Metadata,
		}
		if detail.Detail == nil {
			detail.Detail = []string{}
		}
		detail.Tokens = s.countJSON(detail)
		details = append(details, detail)
	}

	return details, nil
}

func (s *IndexService) Stats(ctx context.Context) (domain.IndexStats, error) {
	stats, err := s.store.Stats(ctx)
	if err != nil {
		return domain.IndexStats{}, fmt.Errorf("load index stats: %w", err)
	}
	return stats, nil
}

func (s *IndexService) sourcePath(date domain.Date) string {
	if s.notes == nil {
		return ""
	}
	return s.notes.Path(date)
}

func (s *IndexService) logSearch(ctx context.Context, query string, results int) {
	if err := s.store.LogSearch(ctx, query, results); err != nil {
		s.logger.Warn("log search", "error", err)
	}
}

// countJSON counts the tokens of v as the agent receives it.
func (s *IndexService) countJSON(v any) int {
	data, err := json.Marshal(v)
	if err != nil {
		return 0
	}
	return s.tokens.CountText(string(data))
}

func clampLimit(limit int) int {
	if limit <= 0 {
		return DefaultSearchLimit
	}
	return min(limit, MaxSearchLimit)
}

func embedText(event domain.Event) string {
	if len(event.Detail) == 0 {
		return event.Text
	}
	return event.Text + "\n" + strings.Join(event.Detail, "\n")
}

func eventOf(entry domain.MemoryIndexEntry) domain.Event {
	return domain.Event{
		SourceDate: entry.SourceDate,
		Kind:       entry.Kind,
		Text:       entry.Text,
		Detail:     entry.Detail,
		Lines:      entry.Lines,
	}
}

func cosine(a, b []float32) float64 {
	var dot, normA, normB float64
	for i := range a {
		x, y := float64(a[i]), float64(b[i])
		dot += x * y
		normA += x * x
		normB += y * y
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}
