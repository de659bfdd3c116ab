package report

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/bnema/openclaw-memory/internal/application"
	"github.com/bnema/openclaw-memory/internal/domain"
	"github.com/charmbracelet/lipgloss"
)

const barWidth = 20

type RunOptions struct {
	HotContextPath string
	// ShowPreview prints the rendered document after a dry run.
	ShowPreview bool
}

func RenderRun(run domain.ConsolidationRun, opts RunOptions) (string, error) {
	return render(func(s styles) string {
		return runView(run, opts, s)
	})
}

func RenderPolls(results []application.PollResult) (string, error) {
	return render(func(s styles) string {
		return pollsView(results, s)
	})
}

func RenderStates(states []domain.ContextState, now time.Time) (string, error) {
	return render(func(s styles) string {
		return statesView(states, now, s)
	})
}

func RenderHits(query string, hits []domain.IndexHit) (string, error) {
	return render(func(s styles) string {
		return hitsView(query, hits, s)
	})
}

func RenderTimeline(focus int64, entries []domain.TimelineEntry) (string, error) {
	return render(func(s styles) string {
		return timelineView(focus, entries, s)
	})
}

func RenderDetails(details []domain.EventDetail) (string, error) {
	return render(func(s styles) string {
		return detailsView(details, s)
	})
}

func RenderStats(stats domain.IndexStats, dbPath string) (string, error) {
	return render(func(s styles) string {
		return statsView(stats, dbPath, s)
	})
}

func RenderIndexReport(report domain.IndexReport) (string, error) {
	return render(func(s styles) string {
		return indexReportView(report, s)
	})
}

func RenderHistory(runs []domain.ConsolidationRun) (string, error) {
	return render(func(s styles) string {
		return historyView(runs, s)
	})
}

func RenderAudit(records []domain.AuditRecord) (string, error) {
	return render(func(s styles) string {
		return auditView(records, s)
	})
}

func runView(run domain.ConsolidationRun, opts RunOptions, s styles) string {
	outcome := s.ok.Render(string(run.Outcome))
	if run.Outcome == domain.RunOutcomeFailed {
		outcome = s.warning.Render(string(run.Outcome))
	}

	lines := []string{
		s.title.Render(fmt.Sprintf("Consolidation (%s)", run.Mode)) + " " + outcome,
		s.header.Render(fmt.Sprintf("window: %s .. %s", run.WindowStart, run.WindowEnd)),
		field(s, "scanned", plural(len(run.ScannedDates), "date")),
		field(s, "events", fmt.Sprintf("%d", run.EventCount)),
		field(s, "pruned", plural(run.PrunedCount, "date")),
	}
	if len(run.SkippedDates) > 0 {
		dates := make([]string, len(run.SkippedDates))
		for i, date := range run.SkippedDates {
			dates[i] = date.String()
		}
		lines = append(lines, s.warning.Render("skipped unreadable: "+strings.Join(dates, ", ")))
	}
	if run.Error != "" {
		lines = append(lines, s.warning.Render("error: "+run.Error))
	}

	switch {
	case run.Mode == domain.ModeDryRun:
		lines = append(lines, s.empty.Render("dry run: nothing written"))
		if opts.ShowPreview && run.Preview != "" {
			lines = append(lines, s.section.Render(s.detail.Render(strings.TrimRight(run.Preview, "\n"))))
		}
	case run.Outcome == domain.RunOutcomeOK && opts.HotContextPath != "":
		lines = append(lines, s.header.Render("wrote "+opts.HotContextPath))
	}

	return lipgloss.JoinVertical(lipgloss.Left, lines...)
}

func historyView(runs []domain.ConsolidationRun, s styles) string {
	lines := []string{
		s.title.Render("Consolidation history"),
		s.header.Render(fmt.Sprintf("runs: %d", len(runs))),
	}
	if len(runs) == 0 {
		lines = append(lines, s.empty.Render("No consolidation runs recorded yet."))
		return lipgloss.JoinVertical(lipgloss.Left, lines...)
	}

	for _, run := range runs {
		outcome := s.ok.Render(string(run.Outcome))
		if run.Outcome == domain.RunOutcomeFailed {
			outcome = s.warning.Render(string(run.Outcome))
		}
		line := fmt.Sprintf("%s %s %s %s",
			s.date.Render(run.Timestamp.Format(time.RFC3339)),
			s.kind.Render("["+string(run.Mode)+"]"),
			outcome,
			s.detail.Render(fmt.Sprintf("%s, %s pruned", plural(run.EventCount, "event"), plural(run.PrunedCount, "date"))),
		)
		if run.Error != "" {
			line += " " + s.warning.Render(run.Error)
		}
		lines = append(lines, line)
	}

	return lipgloss.JoinVertical(lipgloss.Left, lines...)
}

func auditView(records []domain.AuditRecord, s styles) string {
	lines := []string{
		s.title.Render("Context audit"),
		s.header.Render(fmt.Sprintf("records: %d", len(records))),
	}
	if len(records) == 0 {
		lines = append(lines, s.empty.Render("No polls recorded yet."))
		return lipgloss.JoinVertical(lipgloss.Left, lines...)
	}

	for _, record := range records {
		reading := "n/a"
		if record.Percentage != nil {
			reading = fmt.Sprintf("%.0f%%", *record.Percentage)
		}
		line := fmt.Sprintf("%s %s %s %s",
			s.date.Render(record.Timestamp.Format(time.RFC3339)),
			s.id.Render(record.SessionID),
			s.value.Render(reading),
			bandStyle(domain.Band(record.Band), s).Render(record.Band),
		)
		if record.Notified {
			line += " " + s.ok.Render("notified")
		}
		if record.DeliveryError != "" {
			line += " " + s.warning.Render("delivery failed: "+record.DeliveryError)
		}
		if record.Reason != "" {
			line += " " + s.detail.Render(record.Reason)
		}
		lines = append(lines, line)
	}

	return lipgloss.JoinVertical(lipgloss.Left, lines...)
}

func pollsView(results []application.PollResult, s styles) string {
	lines := []string{
		s.title.Render("Context monitor"),
		s.header.Render(fmt.Sprintf("sessions: %d", len(results))),
	}
	if len(results) == 0 {
		lines = append(lines, s.empty.Render("No sessions polled."))
		return lipgloss.JoinVertical(lipgloss.Left, lines...)
	}

	for _, result := range results {
		lines = append(lines, s.section.Render(pollView(result, s)))
	}

	return lipgloss.JoinVertical(lipgloss.Left, lines...)
}

func pollView(result application.PollResult, s styles) string {
	parts := []string{s.id.Render(result.SessionID)}

	switch {
	case result.Error != "":
		parts = append(parts, s.warning.Render("error: "+result.Error))
	case !result.Known:
		parts = append(parts, s.empty.Render("unknown: "+result.Reason))
	default:
		line := fmt.Sprintf("%s %s %s",
			renderUsageBar(result.Percentage, barWidth, result.Band, s),
			s.value.Render(fmt.Sprintf("%.0f%%", result.Percentage)),
			bandStyle(result.Band, s).Render(string(result.Band)),
		)
		if result.PreviousBand != "" && result.PreviousBand != result.Band {
			line += " " + s.detail.Render(fmt.Sprintf("(was %s)", result.PreviousBand))
		}
		parts = append(parts, line)
		if result.Notified {
			parts = append(parts, s.ok.Render("notified: ")+s.detail.Render(result.Message))
		}
		if result.DeliveryError != "" {
			parts = append(parts, s.warning.Render("delivery failed: "+result.DeliveryError))
		}
	}

	return lipgloss.JoinVertical(lipgloss.Left, parts...)
}

func statesView(states []domain.ContextState, now time.Time, s styles) string {
	lines := []string{
		s.title.Render("Context state"),
		s.header.Render(fmt.Sprintf("sessions: %d", len(states))),
	}
	if len(states) == 0 {
		lines = append(lines, s.empty.Render("No sessions recorded yet."))
		return lipgloss.JoinVertical(lipgloss.Left, lines...)
	}

	for _, state := range states {
		lines = append(lines, fmt.Sprintf("%s %s %s",
			s.id.Render(state.SessionID),
			bandStyle(state.LastBand, s).Render(string(state.LastBand)),
			s.detail.Render(formatAgo(state.UpdatedAt, now)),
		))
	}

	return lipgloss.JoinVertical(lipgloss.Left, lines...)
}

func hitsView(query string, hits []domain.IndexHit, s styles) string {
	lines := []string{
		s.title.Render(fmt.Sprintf("Search: %q", query)),
		s.header.Render(fmt.Sprintf("results: %d", len(hits))),
	}
	if len(hits) == 0 {
		lines = append(lines, s.empty.Render("No matching memories."))
		return lipgloss.JoinVertical(lipgloss.Left, lines...)
	}

	for _, hit := range hits {
		lines = append(lines, fmt.Sprintf("%s %s %s %s %s",
			s.id.Render(fmt.Sprintf("#%d", hit.ID)),
			s.date.Render(hit.Date.String()),
			lipgloss.NewStyle().Foreground(interpolateColor(hit.Score, 0, 1)).Render(fmt.Sprintf("%.4f", hit.Score)),
			s.value.Render(hit.Title),
			s.tokens.Render(tokenLabel(hit.Tokens)),
		))
	}

	return lipgloss.JoinVertical(lipgloss.Left, lines...)
}

func timelineView(focus int64, entries []domain.TimelineEntry, s styles) string {
	lines := []string{
		s.title.Render(fmt.Sprintf("Timeline around #%d", focus)),
		s.header.Render(fmt.Sprintf("entries: %d", len(entries))),
	}

	for _, entry := range entries {
		marker := " "
		if entry.ID == focus {
			marker = ">"
		}
		head := fmt.Sprintf("%s %s %s %s %s",
			marker,
			s.id.Render(fmt.Sprintf("#%d", entry.ID)),
			s.date.Render(entry.Date.String()),
			s.kind.Render("["+string(entry.Kind)+"]"),
			s.value.Render(entry.Title),
		)
		lines = append(lines, head)
		if entry.Preview != "" && entry.Preview != entry.Title {
			lines = append(lines, "    "+s.detail.Render(entry.Preview))
		}
	}

	return lipgloss.JoinVertical(lipgloss.Left, lines...)
}

func detailsView(details []domain.EventDetail, s styles) string {
	lines := []string{
		s.title.Render("Memory details"),
		s.header.Render(fmt.Sprintf("entries: %d", len(details))),
	}
	if len(details) == 0 {
		lines = append(lines, s.empty.Render("No entries found for the given ids."))
		return lipgloss.JoinVertical(lipgloss.Left, lines...)
	}

	for _, detail := range details {
		parts := []string{
			fmt.Sprintf("%s %s %s %s",
				s.id.Render(fmt.Sprintf("#%d", detail.ID)),
				s.date.Render(detail.Date.String()),
				s.kind.Render("["+string(detail.Kind)+"]"),
				s.tokens.Render(tokenLabel(detail.Tokens)),
			),
			s.value.Render(detail.Text),
		}
		for _, line := range detail.Detail {
			parts = append(parts, s.detail.Render("  - "+line))
		}
		if detail.Source != "" {
			parts = append(parts, s.header.Render(fmt.Sprintf("source: %s:%d-%d", detail.Source, detail.Lines.Start, detail.Lines.End)))
		}
		lines = append(lines, s.section.Render(lipgloss.JoinVertical(lipgloss.Left, parts...)))
	}

	return lipgloss.JoinVertical(lipgloss.Left, lines...)
}

func statsView(stats domain.IndexStats, dbPath string, s styles) string {
	lines := []string{s.title.Render("Memory index")}
	if dbPath != "" {
		lines = append(lines, s.header.Render(dbPath))
	}

	dateRange := "n/a"
	if stats.Earliest != "" {
		dateRange = fmt.Sprintf("%s .. %s", stats.Earliest, stats.Latest)
	}
	model := stats.Model
	if model == "" {
		model = "none"
	}

	lines = append(lines,
		field(s, "entries", fmt.Sprintf("%d", stats.TotalEntries)),
		field(s, "embedded", fmt.Sprintf("%d", stats.IndexedEntries)),
		field(s, "dates", fmt.Sprintf("%d (%s)", stats.DistinctDates, dateRange)),
		field(s, "searches", fmt.Sprintf("%d", stats.Searches)),
		field(s, "model", model),
	)

	return lipgloss.JoinVertical(lipgloss.Left, lines...)
}

func indexReportView(report domain.IndexReport, s styles) string {
	title := "Indexed"
	if report.DryRun {
		title = "Would index"
	}

	return lipgloss.JoinVertical(lipgloss.Left,
		s.title.Render(fmt.Sprintf("%s %s", title, plural(report.Indexed, "event"))),
		field(s, "already indexed", fmt.Sprintf("%d", report.Skipped)),
		field(s, "model", report.Model),
	)
}

func field(s styles, label, value string) string {
	return s.label.Render(label+":") + " " + s.value.Render(value)
}

func bandStyle(band domain.Band, s styles) lipgloss.Style {
	switch band {
	case domain.BandEmergency:
		return s.emergency
	case domain.BandActive:
		return s.active
	default:
		return s.normal
	}
}

func renderUsageBar(usedPercent float64, width int, band domain.Band, s styles) string {
	if width <= 0 {
		return ""
	}

	used := clampPercent(usedPercent)
	filled := int(math.Round(float64(width) * used / 100.0))
	filled = max(0, min(filled, width))

	return lipgloss.JoinHorizontal(
		lipgloss.Top,
		s.barBracket.Render("["),
		bandStyle(band, s).Render(strings.Repeat("=", filled)),
		s.barEmpty.Render(strings.Repeat("-", width-filled)),
		s.barBracket.Render("]"),
	)
}

func clampPercent(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return v
}

func formatAgo(at, now time.Time) string {
	if at.IsZero() {
		return "never updated"
	}
	if now.IsZero() || at.After(now) {
		return "updated " + at.Format(time.RFC3339)
	}

	elapsed := now.Sub(at)
	switch {
	case elapsed < time.Minute:
		return "updated just now"
	case elapsed < time.Hour:
		return "updated " + plural(int(elapsed.Minutes()), "minute") + " ago"
	case elapsed < 24*time.Hour:
		return "updated " + plural(int(elapsed.Hours()), "hour") + " ago"
	default:
		return "updated " + plural(int(elapsed.Hours()/24), "day") + " ago"
	}
}

func plural(n int, unit string) string {
	if n == 1 {
		return fmt.Sprintf("%d %s", n, unit)
	}
	return fmt.Sprintf("%d %ss", n, unit)
}

func tokenLabel(tokens int) string {
	return fmt.Sprintf("(~%d tokens)", tokens)
}

// interpolateColor maps value onto the 240..255 greyscale ramp.
func interpolateColor(value, min, max float64) lipgloss.Color {
	if max == min {
		return lipgloss.Color("255")
	}

	normalized := (value - min) / (max - min)
	if normalized < 0 {
		normalized = 0
	}
	if normalized > 1 {
		normalized = 1
	}

	return lipgloss.Color(fmt.Sprintf("%d", int(240+15*normalized)))
}
