package sqlite

import (
	"context"
	"database/sql"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/bnema/openclaw-memory/internal/domain"
	"github.com/bnema/openclaw-memory/internal/ports"
	_ "modernc.org/sqlite"
)

const (
	FileName     = "memory.db"
	keyBatchSize = 500
)

// Store keeps index entries in memory_chunks and their vectors in a separate
// embeddings table so models can be swapped by a reindex.
type Store struct {
	db   *sql.DB
	path string
	now  func() time.Time
}

var _ ports.IndexStore = (*Store)(nil)

func Open(dbPath string) (*Store, error) {
	dbPath = strings.TrimSpace(dbPath)
	if dbPath == "" {
		return nil, errors.New("index db path is empty")
	}
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o700); err != nil {
		return nil, fmt.Errorf("create index directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	db.SetMaxOpenConns(1)

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA foreign_keys=ON",
		"PRAGMA synchronous=NORMAL",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("exec %q: %w", p, err)
		}
	}

	store := &Store{db: db, path: dbPath, now: time.Now}
	if err := store.ensureSchema(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ensure schema: %w", err)
	}

	return store, nil
}

func (s *Store) Path() string {
	return s.path
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) ensureSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS memory_chunks (
		id              INTEGER PRIMARY KEY AUTOINCREMENT,
		event_key       TEXT NOT NULL UNIQUE,
		source_date     TEXT NOT NULL,
		source_file     TEXT NOT NULL,
		line_start      INTEGER NOT NULL,
		line_end        INTEGER NOT NULL,
		event_type      TEXT NOT NULL,
		content         TEXT NOT NULL,
		detail          TEXT NOT NULL DEFAULT '[]',
		metadata        TEXT NOT NULL DEFAULT '{}',
		timestamp       INTEGER NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_chunks_position ON memory_chunks(source_date, line_start, id);
	CREATE INDEX IF NOT EXISTS idx_chunks_type ON memory_chunks(event_type);

	CREATE TABLE IF NOT EXISTS embeddings (
		chunk_id   INTEGER PRIMARY KEY REFERENCES memory_chunks(id) ON DELETE CASCADE,
		vector     BLOB NOT NULL,
		model      TEXT NOT NULL,
		created_at INTEGER NOT NULL
	);

	CREATE TABLE IF NOT EXISTS search_log (
		id           INTEGER PRIMARY KEY AUTOINCREMENT,
		query        TEXT NOT NULL,
		result_count INTEGER NOT NULL,
		timestamp    INTEGER NOT NULL
	);
	`
	_, err := s.db.Exec(schema)
	return err
}

func (s *Store) ExistingKeys(ctx context.Context, keys []string) (map[string]bool, error) {
	existing := make(map[string]bool, len(keys))
	for start := 0; start < len(keys); start += keyBatchSize {
		batch := keys[start:min(start+keyBatchSize, len(keys))]
		args := make([]any, len(batch))
		for i, key := range batch {
			args[i] = key
		}

		query := `SELECT event_key FROM memory_chunks WHERE event_key IN (` + placeholders(len(batch)) + `)`
		rows, err := s.db.QueryContext(ctx, query, args...)
		if err != nil {
			return nil, fmt.Errorf("query existing keys: %w", err)
		}
		for rows.Next() {
			var key string
			if err := rows.Scan(&key); err != nil {
				_ = rows.Close()
				return nil, fmt.Errorf("scan existing key: %w", err)
			}
			existing[key] = true
		}
		if err := rows.Close(); err != nil {
			return nil, err
		}
		if err := rows.Err(); err != nil {
			return nil, fmt.Errorf("iterate existing keys: %w", err)
		}
	}

	return existing, nil
}

// Insert stores entries in one transaction. An entry whose key is already
// present keeps its original row and reports id 0.
func (s *Store) Insert(ctx context.Context, entries []domain.MemoryIndexEntry) ([]int64, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin insert: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	ids := make([]int64, len(entries))
	for i, entry := range entries {
		detail, err := json.Marshal(nonNilStrings(entry.Detail))
		if err != nil {
			return nil, fmt.Errorf("encode detail: %w", err)
		}
		metadata, err := json.Marshal(nonNilMap(entry.Metadata))
		if err != nil {
			return nil, fmt.Errorf("encode metadata: %w", err)
		}
		created := entry.CreatedAt
		if created.IsZero() {
			created = s.now()
		}

		result, err := tx.ExecContext(ctx, `
			INSERT INTO memory_chunks (event_key, source_date, source_file, line_start, line_end, event_type, content, detail, metadata, timestamp)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT(event_key) DO NOTHING`,
			entry.Key, entry.SourceDate.String(), entry.SourcePath, entry.Lines.Start, entry.Lines.End,
			string(entry.Kind), entry.Text, string(detail), string(metadata), created.Unix(),
		)
		if err != nil {
			return nil, fmt.Errorf("insert chunk %s: %w", entry.Key, err)
		}
		affected, err := result.RowsAffected()
		if err != nil {
			return nil, fmt.Errorf("insert chunk %s: %w", entry.Key, err)
		}
		if affected == 0 {
			continue
		}
		id, err := result.LastInsertId()
		if err != nil {
			return nil, fmt.Errorf("insert chunk %s: %w", entry.Key, err)
		}
		ids[i] = id

		if len(entry.Vector) == 0 {
			continue
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO embeddings (chunk_id, vector, model, created_at) VALUES (?, ?, ?, ?)`,
			id, EncodeVector(entry.Vector), entry.Model, created.Unix(),
		); err != nil {
			return nil, fmt.Errorf("insert embedding %s: %w", entry.Key, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit insert: %w", err)
	}

	return ids, nil
}

const selectEntry = `
	SELECT c.id, c.event_key, c.source_date, c.source_file, c.line_start, c.line_end, c.event_type,
	       c.content, c.detail, c.metadata, c.timestamp, e.vector, e.model
	FROM memory_chunks c
	LEFT JOIN embeddings e ON e.chunk_id = c.id`

func (s *Store) Embedded(ctx context.Context) ([]domain.MemoryIndexEntry, error) {
	return s.query(ctx, selectEntry+` WHERE e.chunk_id IS NOT NULL ORDER BY c.source_date, c.line_start, c.id`)
}

func (s *Store) Get(ctx context.Context, ids []int64) ([]domain.MemoryIndexEntry, error) {
	if len(ids) == 0 {
		return []domain.MemoryIndexEntry{}, nil
	}

	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}
	found, err := s.query(ctx, selectEntry+` WHERE c.id IN (`+placeholders(len(ids))+`)`, args...)
	if err != nil {
		return nil, err
	}

	byID := make(map[int64]domain.MemoryIndexEntry, len(found))
	for _, entry := range found {
		byID[entry.ID] = entry
	}
	entries := make([]domain.MemoryIndexEntry, 0, len(ids))
	for _, id := range ids {
		if entry, ok := byID[id]; ok {
			entries = append(entries, entry)
		}
	}

	return entries, nil
}

func (s *Store) Around(ctx context.Context, id int64, window int) ([]domain.MemoryIndexEntry, error) {
	targets, err := s.Get(ctx, []int64{id})
	if err != nil {
		return nil, err
	}
	if len(targets) == 0 {
		return nil, fmt.Errorf("%w: %d", domain.ErrEntryNotFound, id)
	}
	target := targets[0]
	if window < 0 {
		window = 0
	}

	pos := []any{target.SourceDate.String(), target.Lines.Start, target.ID, window}
	before, err := s.query(ctx, selectEntry+`
		WHERE (c.source_date, c.line_start, c.id) < (?, ?, ?)
		ORDER BY c.source_date DESC, c.line_start DESC, c.id DESC
		LIMIT ?`, pos...)
	if err != nil {
		return nil, err
	}
	after, err := s.query(ctx, selectEntry+`
		WHERE (c.source_date, c.line_start, c.id) > (?, ?, ?)
		ORDER BY c.source_date, c.line_start, c.id
		LIMIT ?`, pos...)
	if err != nil {
		return nil, err
	}

	entries := make([]domain.MemoryIndexEntry, 0, len(before)+1+len(after))
	for i := len(before) - 1; i >= 0; i-- {
		entries = append(entries, before[i])
	}
	entries = append(entries, target)
	entries = append(entries, after...)

	return entries, nil
}

func (s *Store) SearchText(ctx context.Context, query string, limit int) ([]domain.MemoryIndexEntry, error) {
	pattern := "%" + escapeLike(strings.TrimSpace(query)) + "%"
	return s.query(ctx, selectEntry+`
		WHERE c.content LIKE ? ESCAPE '\' OR c.detail LIKE ? ESCAPE '\'
		ORDER BY c.source_date DESC, c.line_start, c.id
		LIMIT ?`, pattern, pattern, limit)
}

func (s *Store) LogSearch(ctx context.Context, query string, results int) error {
	if _, err := s.db.ExecContext(ctx,
		`INSERT INTO search_log (query, result_count, timestamp) VALUES (?, ?, ?)`,
		query, results, s.now().Unix(),
	); err != nil {
		return fmt.Errorf("log search: %w", err)
	}

	return nil
}

func (s *Store) Stats(ctx context.Context) (domain.IndexStats, error) {
	var stats domain.IndexStats
	var earliest, latest sql.NullString
	if err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*), COUNT(DISTINCT source_date), MIN(source_date), MAX(source_date)
		FROM memory_chunks`,
	).Scan(&stats.TotalEntries, &stats.DistinctDates, &earliest, &latest); err != nil {
		return domain.IndexStats{}, fmt.Errorf("query chunk stats: %w", err)
	}
	stats.Earliest = domain.Date(earliest.String)
	stats.Latest = domain.Date(latest.String)

	var model sql.NullString
	if err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*), MAX(model) FROM embeddings`,
	).Scan(&stats.IndexedEntries, &model); err != nil {
		return domain.IndexStats{}, fmt.Errorf("query embedding stats: %w", err)
	}
	stats.Model = model.String

	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM search_log`).Scan(&stats.Searches); err != nil {
		return domain.IndexStats{}, fmt.Errorf("query search stats: %w", err)
	}

	return stats, nil
}

// Reset removes every chunk and embedding. The search log is kept.
func (s *Store) Reset(ctx context.Context) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin reset: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	for _, stmt := range []string{`DELETE FROM embeddings`, `DELETE FROM memory_chunks`} {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("reset index: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit reset: %w", err)
	}
	return nil
}

func (s *Store) query(ctx context.Context, query string, args ...any) ([]domain.MemoryIndexEntry, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query entries: %w", err)
	}
	defer rows.Close()

	entries := []domain.MemoryIndexEntry{}
	for rows.Next() {
		var (
			entry            domain.MemoryIndexEntry
			sourceDate, kind string
			detail, metadata string
			created          int64
			vector           []byte
			model            sql.NullString
		)
		if err := rows.Scan(
			&entry.ID, &entry.Key, &sourceDate, &entry.SourcePath, &entry.Lines.Start, &entry.Lines.End, &kind,
			&entry.Text, &detail, &metadata, &created, &vector, &model,
		); err != nil {
			return nil, fmt.Errorf("scan entry: %w", err)
		}
		entry.SourceDate = domain.Date(sourceDate)
		entry.Kind = domain.EventKind(kind)
		entry.CreatedAt = time.Unix(created, 0)
		entry.Model = model.String
		if err := json.Unmarshal([]byte(detail), &entry.Detail); err != nil {
			return nil, fmt.Errorf("decode detail for %d: %w", entry.ID, err)
		}
		if err := json.Unmarshal([]byte(metadata), &entry.Metadata); err != nil {
			return nil, fmt.Errorf("decode metadata for %d: %w", entry.ID, err)
		}
		if len(vector) > 0 {
			decoded, err := DecodeVector(vector)
			if err != nil {
				return nil, fmt.Errorf("decode vector for %d: %w", entry.ID, err)
			}
			entry.Vector = decoded
		}
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate entries: %w", err)
	}

	return entries, nil
}

// EncodeVector packs float32 values little-endian, four bytes each.
func EncodeVector(vec []float32) []byte {
	buf := make([]byte, 4*len(vec))
	for i, v := range vec {
		binary.LittleEndian.PutUint32(buf[4*i:], math.Float32bits(v))
	}
	return buf
}

func DecodeVector(data []byte) ([]float32, error) {
	if len(data)%4 != 0 {
		return nil, fmt.Errorf("vector blob length %d is not a multiple of 4", len(data))
	}
	vec := make([]float32, len(data)/4)
	for i := range vec {
		vec[i] = math.Float32frombits(binary.LittleEndian.Uint32(data[4*i:]))
	}
	return vec, nil
}

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?,", n), ",")
}

func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}

func nonNilStrings(values []string) []string {
	if values == nil {
		return []string{}
	}
	return values
}

func nonNilMap(values map[string]string) map[string]string {
	if values == nil {
		return map[string]string{}
	}
	return values
}
