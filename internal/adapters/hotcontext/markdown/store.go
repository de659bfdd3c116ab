package markdown

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/bnema/openclaw-memory/internal/adapters/atomicfile"
	"github.com/bnema/openclaw-memory/internal/domain"
	"github.com/bnema/openclaw-memory/internal/ports"
)

const (
	BeginMarker  = "<!-- recent-history:begin -->"
	EndMarker    = "<!-- recent-history:end -->"
	historyTitle = "## Recent History"
	blockPrefix  = "### "
	emptyHistory = "_No recent events._"

	defaultFileMode    = 0o644
	DefaultDetailLines = 2
)

// Store keeps the RecentHistory region of MEMORY.md between two HTML comment
// markers. Everything outside the markers belongs to the agent.
type Store struct {
	path        string
	detailLines int
}

var _ ports.HotContextStore = (*Store)(nil)

func NewStore(path string, detailLines int) *Store {
	if detailLines < 0 {
		detailLines = DefaultDetailLines
	}

	return &Store{path: filepath.Clean(path), detailLines: detailLines}
}

func (s *Store) Path() string {
	return s.path
}

func (s *Store) Load(ctx context.Context) (domain.HotContextDocument, error) {
	if err := ctx.Err(); err != nil {
		return domain.HotContextDocument{}, err
	}

	data, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return domain.HotContextDocument{}, nil
		}
		return domain.HotContextDocument{}, fmt.Errorf("read hot context: %w", err)
	}

	return Parse(string(data)), nil
}

func (s *Store) Save(ctx context.Context, doc domain.HotContextDocument) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	mode := os.FileMode(defaultFileMode)
	if info, err := os.Stat(s.path); err == nil {
		mode = info.Mode().Perm()
	}

	if err := atomicfile.Write(s.path, []byte(s.Render(doc)), mode); err != nil {
		return fmt.Errorf("write hot context: %w", err)
	}

	return nil
}

func (s *Store) Render(doc domain.HotContextDocument) string {
	preamble, postamble := doc.Preamble, doc.Postamble
	if !doc.HasRegion {
		// Agent text is kept as written. Only an unterminated last line gets
		// a newline so the marker starts its own line.
		if preamble != "" && !strings.HasSuffix(preamble, "\n") {
			preamble += "\n"
		}
		postamble = "\n"
	}

	var b strings.Builder
	b.WriteString(preamble)
	b.WriteString(BeginMarker)
	b.WriteString("\n")
	b.WriteString(historyTitle)
	b.WriteString("\n")
	if len(doc.History) == 0 {
		b.WriteString("\n")
		b.WriteString(emptyHistory)
		b.WriteString("\n")
	}
	for _, block := range doc.History {
		b.WriteString("\n")
		b.WriteString(blockPrefix)
		b.WriteString(block.Date.String())
		b.WriteString("\n")
		for _, entry := range block.Entries {
			if entry.Kind == "" {
				fmt.Fprintf(&b, "- %s\n", escapeComment(entry.Text))
			} else {
				fmt.Fprintf(&b, "- [%s] %s\n", entry.Kind, escapeComment(entry.Text))
			}
			for i, detail := range entry.Detail {
				if i >= s.detailLines {
					break
				}
				fmt.Fprintf(&b, "  - %s\n", escapeComment(detail))
			}
		}
	}
	b.WriteString(EndMarker)
	b.WriteString(postamble)

	return b.String()
}

// Parse splits content around the markers. Content without a complete
// marker pair is all preamble.
func Parse(content string) domain.HotContextDocument {
	begin := strings.Index(content, BeginMarker)
	if begin < 0 {
		return domain.HotContextDocument{Preamble: content}
	}
	relEnd := strings.Index(content[begin:], EndMarker)
	if relEnd < 0 {
		return domain.HotContextDocument{Preamble: content}
	}
	end := begin + relEnd

	return domain.HotContextDocument{
		Preamble:  content[:begin],
		History:   parseHistory(content[begin+len(BeginMarker) : end]),
		Postamble: content[end+len(EndMarker):],
		HasRegion: true,
	}
}

func parseHistory(region string) []domain.HistoryBlock {
	blocks := []domain.HistoryBlock{}
	for _, raw := range strings.Split(region, "\n") {
		line := strings.TrimRight(raw, " \t\r")
		switch {
		case strings.HasPrefix(line, blockPrefix):
			date, err := domain.ParseDate(strings.TrimSpace(strings.TrimPrefix(line, blockPrefix)))
			if err != nil {
				continue
			}
			blocks = append(blocks, domain.HistoryBlock{Date: date})
		case strings.HasPrefix(line, "- "):
			if len(blocks) == 0 {
				continue
			}
			block := &blocks[len(blocks)-1]
			block.Entries = append(block.Entries, parseEntry(strings.TrimPrefix(line, "- ")))
		case strings.HasPrefix(line, "  - "):
			if len(blocks) == 0 || len(blocks[len(blocks)-1].Entries) == 0 {
				continue
			}
			block := &blocks[len(blocks)-1]
			entry := &block.Entries[len(block.Entries)-1]
			entry.Detail = append(entry.Detail, strings.TrimPrefix(line, "  - "))
		}
	}

	return blocks
}

func parseEntry(body string) domain.HistoryEntry {
	if strings.HasPrefix(body, "[") {
		if closing := strings.Index(body, "] "); closing > 0 {
			kind := domain.EventKind(body[1:closing])
			if kind.Valid() {
				return domain.HistoryEntry{Kind: kind, Text: body[closing+2:]}
			}
		}
	}

	return domain.HistoryEntry{Text: body}
}

// escapeComment keeps note text from closing or reopening the region markers.
func escapeComment(text string) string {
	return strings.ReplaceAll(text, "<!--", "&lt;!--")
}
