package command

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/bnema/openclaw-memory/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fixedClock struct {
	now time.Time
}

func (c fixedClock) Now() time.Time {
	return c.now
}

func newTestProvider(t *testing.T, run runFunc) *Provider {
	t.Helper()

	provider, err := NewProvider("openclaw status --json", time.Second, fixedClock{now: time.Date(2026, 2, 14, 12, 0, 0, 0, time.UTC)})
	require.NoError(t, err)
	provider.run = run
	return provider
}

func TestProviderPassesSessionAsLastArgument(t *testing.T) {
	t.Parallel()

	provider := newTestProvider(t, func(ctx context.Context, name string, args ...string) (string, string, error) {
		assert.Equal(t, "openclaw", name)
		assert.Equal(t, []string{"status", "--json", "agent:main"}, args)
		_, hasDeadline := ctx.Deadline()
		assert.True(t, hasDeadline)
		return `{"percentage": 42}`, "", nil
	})

	reading, err := provider.Read(context.Background(), "agent:main")
	require.NoError(t, err)
	assert.True(t, reading.Known)
	assert.InDelta(t, 42, reading.Percentage, 1e-9)
}

func TestProviderCommandFailureIsUnknown(t *testing.T) {
	t.Parallel()

	provider := newTestProvider(t, func(context.Context, string, ...string) (string, string, error) {
		return "", "session not found", errors.New("exit status 2")
	})

	reading, err := provider.Read(context.Background(), "main")
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrStatusUnavailable)
	assert.Contains(t, err.Error(), "session not found")
	assert.False(t, reading.Known)
}

func TestProviderTimeoutIsUnknown(t *testing.T) {
	t.Parallel()

	provider := newTestProvider(t, func(ctx context.Context, _ string, _ ...string) (string, string, error) {
		<-ctx.Done()
		return "", "", errors.New("signal: killed")
	})
	provider.timeout = 10 * time.Millisecond

	reading, err := provider.Read(context.Background(), "main")
	require.Error(t, err)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.ErrorIs(t, err, domain.ErrStatusUnavailable)
	assert.False(t, reading.Known)
}

func TestNewProviderRejectsEmptyCommand(t *testing.T) {
	t.Parallel()

	_, err := NewProvider("   ", time.Second, nil)
	assert.Error(t, err)
}
