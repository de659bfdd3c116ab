package fs

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/bnema/openclaw-memory/internal/domain"
	"github.com/bnema/openclaw-memory/internal/ports"
)

const (
	noteExt = ".md"
	// Daily notes are expected to stay small; anything larger is treated as
	// unreadable rather than loaded whole.
	maxNoteBytes = 4 << 20
)

// Store reads daily notes named YYYY-MM-DD.md from a single directory. It
// never writes.
type Store struct {
	dir string
}

var _ ports.NoteStore = (*Store)(nil)

func NewStore(dir string) *Store {
	return &Store{dir: filepath.Clean(dir)}
}

func (s *Store) Path(date domain.Date) string {
	return filepath.Join(s.dir, date.String()+noteExt)
}

func (s *Store) Load(ctx context.Context, date domain.Date) (domain.DailyNote, error) {
	if err := ctx.Err(); err != nil {
		return domain.DailyNote{}, err
	}

	path := s.Path(date)
	info, err := os.Stat(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return domain.DailyNote{}, fmt.Errorf("%w: %s", domain.ErrNoteNotFound, date)
		}
		return domain.DailyNote{}, fmt.Errorf("%w: stat %s: %v", domain.ErrNoteUnreadable, path, err)
	}
	if info.IsDir() {
		return domain.DailyNote{}, fmt.Errorf("%w: %s is a directory", domain.ErrNoteUnreadable, path)
	}
	if info.Size() > maxNoteBytes {
		return domain.DailyNote{}, fmt.Errorf("%w: %s exceeds %d bytes", domain.ErrNoteUnreadable, path, maxNoteBytes)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return domain.DailyNote{}, fmt.Errorf("%w: read %s: %v", domain.ErrNoteUnreadable, path, err)
	}
	if !utf8.Valid(data) {
		return domain.DailyNote{}, fmt.Errorf("%w: %s is not valid utf-8", domain.ErrNoteUnreadable, path)
	}

	return domain.DailyNote{Date: date, Path: path, Lines: splitLines(data)}, nil
}

func (s *Store) ListDates(ctx context.Context) ([]domain.Date, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	entries, err := os.ReadDir(s.dir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return []domain.Date{}, nil
		}
		return nil, fmt.Errorf("list daily notes: %w", err)
	}

	dates := make([]domain.Date, 0, len(entries))
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasSuffix(name, noteExt) {
			continue
		}
		date, err := domain.ParseDate(strings.TrimSuffix(name, noteExt))
		if err != nil || date.String()+noteExt != name {
			continue
		}
		dates = append(dates, date)
	}
	sort.Slice(dates, func(i, j int) bool { return dates[i] < dates[j] })

	return dates, nil
}

func splitLines(data []byte) []string {
	lines := []string{}
	scanner := bufio.NewScanner(bytes.NewReader(data))
	scanner.Buffer(make([]byte, 0, 64*1024), maxNoteBytes)
	for scanner.Scan() {
		lines = append(lines, strings.TrimSuffix(scanner.Text(), "\r"))
	}

	return lines
}
