package domain

import (
	"regexp"
	"strings"
	"unicode/utf8"
)

const MaxSnippetRunes = 200

// Rule classifies a single trimmed line. Rules are tried in order and the
// first match wins.
type Rule interface {
	Match(line string) (kind EventKind, text string, ok bool)
}

type RuleFunc func(line string) (EventKind, string, bool)

func (f RuleFunc) Match(line string) (EventKind, string, bool) {
	return f(line)
}

var (
	headingPattern = regexp.MustCompile(`^#{1,6}\s+(.+)$`)
	bulletPattern  = regexp.MustCompile(`^(?:[-*+]|\d+[.)])\s+`)

	completionGlyphs = []string{"✅", "✔️", "✔", "✓", "☑️", "☑", "🚀", "🔥"}
)

func HeadingRule() Rule {
	return RuleFunc(func(line string) (EventKind, string, bool) {
		match := headingPattern.FindStringSubmatch(line)
		if match == nil {
			return "", "", false
		}

		return EventKindHeading, strings.TrimSpace(match[1]), true
	})
}

func CompletionRule() Rule {
	return RuleFunc(func(line string) (EventKind, string, bool) {
		body := stripBullet(line)
		if rest, ok := cutCheckbox(body, "x", "X"); ok {
			return EventKindCompletion, rest, true
		}
		if rest, ok := cutPrefixFold(body, "done:"); ok {
			return EventKindCompletion, rest, true
		}
		for _, glyph := range completionGlyphs {
			if rest, ok := strings.CutPrefix(body, glyph); ok {
				return EventKindCompletion, strings.TrimSpace(rest), true
			}
		}

		return "", "", false
	})
}

func DecisionRule() Rule {
	return RuleFunc(func(line string) (EventKind, string, bool) {
		body := stripBullet(line)
		for _, prefix := range []string{"decided:", "decision:"} {
			if rest, ok := cutPrefixFold(body, prefix); ok {
				return EventKindDecision, rest, true
			}
		}

		return "", "", false
	})
}

func OpenLoopRule() Rule {
	return RuleFunc(func(line string) (EventKind, string, bool) {
		body := stripBullet(line)
		if rest, ok := cutCheckbox(body, " "); ok {
			return EventKindOpenLoop, rest, true
		}
		for _, prefix := range []string{"todo:", "open:"} {
			if rest, ok := cutPrefixFold(body, prefix); ok {
				return EventKindOpenLoop, rest, true
			}
		}

		return "", "", false
	})
}

func DefaultRules() []Rule {
	return []Rule{HeadingRule(), CompletionRule(), DecisionRule(), OpenLoopRule()}
}

type Extractor struct {
	rules []Rule
}

func NewExtractor(rules ...Rule) *Extractor {
	if len(rules) == 0 {
		rules = DefaultRules()
	}

	return &Extractor{rules: rules}
}

// Extract never fails. Lines that match no rule become detail of the
// preceding event; those before the first event are dropped.
func (x *Extractor) Extract(note DailyNote) []Event {
	events := []Event{}
	for i, raw := range note.Lines {
		line := strings.TrimSpace(raw)
		if line == "" {
			continue
		}
		lineNo := i + 1

		if kind, text, ok := x.match(line); ok && text != "" {
			events = append(events, Event{
				SourceDate: note.Date,
				Kind:       kind,
				Text:       Snippet(text, MaxSnippetRunes),
				Lines:      LineRange{Start: lineNo, End: lineNo},
			})
			continue
		}

		if len(events) == 0 {
			continue
		}
		last := &events[len(events)-1]
		last.Detail = append(last.Detail, Snippet(stripBullet(line), MaxSnippetRunes))
		last.Lines.End = lineNo
	}

	return events
}

func (x *Extractor) match(line string) (EventKind, string, bool) {
	for _, rule := range x.rules {
		if kind, text, ok := rule.Match(line); ok {
			return kind, text, true
		}
	}

	return "", "", false
}

// Snippet cuts text to at most limit runes, marking the cut with "...".
func Snippet(text string, limit int) string {
	text = strings.Join(strings.Fields(text), " ")
	if limit <= 0 || utf8.RuneCountInString(text) <= limit {
		return text
	}
	if limit <= 3 {
		return string([]rune(text)[:limit])
	}

	return string([]rune(text)[:limit-3]) + "..."
}

func stripBullet(line string) string {
	return bulletPattern.ReplaceAllString(line, "")
}

func cutCheckbox(body string, marks ...string) (string, bool) {
	for _, mark := range marks {
		if rest, ok := strings.CutPrefix(body, "["+mark+"]"); ok {
			return strings.TrimSpace(rest), true
		}
	}

	return "", false
}

func cutPrefixFold(body, prefix string) (string, bool) {
	if len(body) < len(prefix) || !strings.EqualFold(body[:len(prefix)], prefix) {
		return "", false
	}

	return strings.TrimSpace(body[len(prefix):]), true
}
