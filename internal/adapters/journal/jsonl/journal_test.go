package jsonl

import (
	"bufio"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/bnema/openclaw-memory/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRunLogAppendAndRecent(t *testing.T) {
	t.Parallel()

	log := NewRunLog(filepath.Join(t.TempDir(), RunLogFile))
	base := time.Date(2026, 2, 14, 12, 0, 0, 0, time.UTC)

	for i, id := range []string{"r1", "r2", "r3"} {
		require.NoError(t, log.Append(context.Background(), domain.ConsolidationRun{
			ID:        id,
			Timestamp: base.Add(time.Duration(i) * time.Hour),
			Mode:      domain.ModeAuto,
			Outcome:   domain.RunOutcomeOK,
		}))
	}

	recent, err := log.Recent(context.Background(), 2)
	require.NoError(t, err)
	require.Len(t, recent, 2)
	assert.Equal(t, "r3", recent[0].ID)
	assert.Equal(t, "r2", recent[1].ID)

	all, err := log.Recent(context.Background(), 0)
	require.NoError(t, err)
	assert.Len(t, all, 3)
}

func TestRunLogRecentSkipsTornLines(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), RunLogFile)
	require.NoError(t, os.WriteFile(path, []byte("{\"id\":\"ok\"}\n{\"id\":\"tor\n"), 0o644))

	recent, err := NewRunLog(path).Recent(context.Background(), 0)
	require.NoError(t, err)
	require.Len(t, recent, 1)
	assert.Equal(t, "ok", recent[0].ID)
}

func TestRunLogRecentMissingFile(t *testing.T) {
	t.Parallel()

	recent, err := NewRunLog(filepath.Join(t.TempDir(), RunLogFile)).Recent(context.Background(), 5)
	require.NoError(t, err)
	assert.Empty(t, recent)
}

func TestAuditLogConcurrentAppendsKeepWholeLines(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), AuditLogFile)
	const writers, perWriter = 8, 25

	var wg sync.WaitGroup
	for w := range writers {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			log := NewAuditLog(path)
			for i := range perWriter {
				pct := float64(i)
				assert.NoError(t, log.Append(context.Background(), domain.AuditRecord{
					SessionID:  strings.Repeat("s", w+1),
					Percentage: &pct,
					Band:       string(domain.BandNormal),
				}))
			}
		}(w)
	}
	wg.Wait()

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()

	lines := 0
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		var rec domain.AuditRecord
		require.NoError(t, json.Unmarshal(scanner.Bytes(), &rec))
		lines++
	}
	require.NoError(t, scanner.Err())
	assert.Equal(t, writers*perWriter, lines)
}

func TestAuditLogRecordsUnknownPercentageAsNull(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), AuditLogFile)
	log := NewAuditLog(path)
	require.NoError(t, log.Append(context.Background(), domain.AuditRecord{SessionID: "main", Band: domain.AuditBandUnknown}))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"percentage":null`)

	records, err := log.Records(context.Background())
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Nil(t, records[0].Percentage)
}

func TestAuditLogRecentFiltersBySessionNewestFirst(t *testing.T) {
	t.Parallel()

	log := NewAuditLog(filepath.Join(t.TempDir(), AuditLogFile))
	base := time.Date(2026, 2, 14, 12, 0, 0, 0, time.UTC)
	for i, session := range []string{"main", "side", "main", "main"} {
		require.NoError(t, log.Append(context.Background(), domain.AuditRecord{
			Timestamp: base.Add(time.Duration(i) * time.Minute),
			SessionID: session,
			Band:      string(domain.BandNormal),
		}))
	}

	recent, err := log.Recent(context.Background(), "main", 2)
	require.NoError(t, err)
	require.Len(t, recent, 2)
	assert.Equal(t, base.Add(3*time.Minute), recent[0].Timestamp)
	assert.Equal(t, base.Add(2*time.Minute), recent[1].Timestamp)

	all, err := log.Recent(context.Background(), "", 0)
	require.NoError(t, err)
	assert.Len(t, all, 4)
	assert.Equal(t, "main", all[0].SessionID)
	assert.Equal(t, "side", all[2].SessionID)
}
