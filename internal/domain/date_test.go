package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRetentionWindowCoversTodayAndPriorDays(t *testing.T) {
	window, err := NewRetentionWindow("2026-03-02", 7)
	require.NoError(t, err)

	assert.Equal(t, Date("2026-02-24"), window.Start)
	assert.Equal(t, Date("2026-03-02"), window.End)
	assert.Len(t, window.Dates(), 7)
	assert.True(t, window.Contains("2026-02-24"))
	assert.False(t, window.Contains("2026-02-23"))
	assert.False(t, window.Contains("2026-03-03"))
}

func TestRetentionWindowSingleDay(t *testing.T) {
	window, err := NewRetentionWindow("2026-03-02", 1)
	require.NoError(t, err)
	assert.Equal(t, []Date{"2026-03-02"}, window.Dates())
}

func TestRetentionWindowRejectsOutOfRangeDays(t *testing.T) {
	_, err := NewRetentionWindow("2026-03-02", 0)
	assert.ErrorIs(t, err, ErrInvalidRetention)

	_, err = NewRetentionWindow("2026-03-02", 100_000_000)
	assert.ErrorIs(t, err, ErrInvalidRetention)

	window, err := NewRetentionWindow("2026-03-02", MaxRetentionDays)
	require.NoError(t, err)
	assert.Len(t, window.Dates(), MaxRetentionDays)
}

func TestDateOfUsesLocationOfTime(t *testing.T) {
	loc := time.FixedZone("UTC+9", 9*60*60)
	at := time.Date(2026, 2, 14, 23, 30, 0, 0, time.UTC)

	assert.Equal(t, Date("2026-02-14"), DateOf(at))
	assert.Equal(t, Date("2026-02-15"), DateOf(at.In(loc)))
}

func TestParseDate(t *testing.T) {
	d, err := ParseDate("2026-02-14")
	require.NoError(t, err)
	assert.Equal(t, Date("2026-02-14"), d)

	_, err = ParseDate("14/02/2026")
	assert.Error(t, err)
}
