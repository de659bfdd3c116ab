package jsonl

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/bnema/openclaw-memory/internal/domain"
	"github.com/bnema/openclaw-memory/internal/ports"
)

const (
	RunLogFile   = "consolidation.log"
	AuditLogFile = "context-audit.log"

	journalFileMode = 0o644
	journalDirMode  = 0o700
	maxRecordBytes  = 1 << 20
)

var (
	lockRegistryMu sync.Mutex
	pathLockMap    = map[string]*sync.Mutex{}
)

// Journal appends one JSON document per line. Each record is a single write
// on an O_APPEND descriptor, so concurrent writers interleave whole lines.
type Journal struct {
	path string
	mu   *sync.Mutex
}

func NewJournal(path string) *Journal {
	path = filepath.Clean(path)
	return &Journal{path: path, mu: lockForPath(path)}
}

func (j *Journal) Path() string {
	return j.path
}

func (j *Journal) append(ctx context.Context, record any) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	line, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("encode journal record: %w", err)
	}
	line = append(line, '\n')

	j.mu.Lock()
	defer j.mu.Unlock()

	if err := os.MkdirAll(filepath.Dir(j.path), journalDirMode); err != nil {
		return fmt.Errorf("create journal directory: %w", err)
	}

	f, err := os.OpenFile(j.path, os.O_WRONLY|os.O_CREATE|os.O_APPEND, journalFileMode)
	if err != nil {
		return fmt.Errorf("open journal: %w", err)
	}
	if _, err := f.Write(line); err != nil {
		_ = f.Close()
		return fmt.Errorf("append journal: %w", err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("close journal: %w", err)
	}

	return nil
}

// scan decodes every well-formed line. Lines that fail to decode are skipped
// so one torn record does not hide the rest of the history.
func scan[T any](ctx context.Context, path string) ([]T, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return []T{}, nil
		}
		return nil, fmt.Errorf("open journal: %w", err)
	}
	defer f.Close()

	records := []T{}
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), maxRecordBytes)
	for scanner.Scan() {
		var record T
		if err := json.Unmarshal(scanner.Bytes(), &record); err != nil {
			continue
		}
		records = append(records, record)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read journal: %w", err)
	}

	return records, nil
}

type RunLog struct {
	*Journal
}

var _ ports.RunLog = (*RunLog)(nil)

func NewRunLog(path string) *RunLog {
	return &RunLog{Journal: NewJournal(path)}
}

func (l *RunLog) Append(ctx context.Context, run domain.ConsolidationRun) error {
	return l.append(ctx, run)
}

// Recent returns up to limit runs, newest first. limit <= 0 returns all.
func (l *RunLog) Recent(ctx context.Context, limit int) ([]domain.ConsolidationRun, error) {
	runs, err := scan[domain.ConsolidationRun](ctx, l.path)
	if err != nil {
		return nil, err
	}

	out := make([]domain.ConsolidationRun, 0, len(runs))
	for i := len(runs) - 1; i >= 0; i-- {
		out = append(out, runs[i])
		if limit > 0 && len(out) == limit {
			break
		}
	}

	return out, nil
}

type AuditLog struct {
	*Journal
}

var _ ports.AuditLog = (*AuditLog)(nil)

func NewAuditLog(path string) *AuditLog {
	return &AuditLog{Journal: NewJournal(path)}
}

func (l *AuditLog) Append(ctx context.Context, record domain.AuditRecord) error {
	return l.append(ctx, record)
}

func (l *AuditLog) Records(ctx context.Context) ([]domain.AuditRecord, error) {
	return scan[domain.AuditRecord](ctx, l.path)
}

// Recent returns up to limit records, newest first, for one session or for
// all of them when sessionID is empty. limit <= 0 returns all.
func (l *AuditLog) Recent(ctx context.Context, sessionID string, limit int) ([]domain.AuditRecord, error) {
	records, err := l.Records(ctx)
	if err != nil {
		return nil, err
	}

	out := []domain.AuditRecord{}
	for i := len(records) - 1; i >= 0; i-- {
		if sessionID != "" && records[i].SessionID != sessionID {
			continue
		}
		out = append(out, records[i])
		if limit > 0 && len(out) == limit {
			break
		}
	}

	return out, nil
}

func lockForPath(path string) *sync.Mutex {
	lockRegistryMu.Lock()
	defer lockRegistryMu.Unlock()

	if mu, ok := pathLockMap[path]; ok {
		return mu
	}

	mu := &sync.Mutex{}
	pathLockMap[path] = mu
	return mu
}
