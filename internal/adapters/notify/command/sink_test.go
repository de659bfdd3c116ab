package command

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSinkSendsTextOnStdin(t *testing.T) {
	t.Parallel()

	sink, err := NewSink("openclaw message --to", time.Second)
	require.NoError(t, err)

	called := false
	sink.run = func(ctx context.Context, input string, env []string, name string, args ...string) (string, error) {
		called = true
		assert.Equal(t, "flush now", input)
		assert.Equal(t, []string{"OCM_SESSION_ID=main"}, env)
		assert.Equal(t, "openclaw", name)
		assert.Equal(t, []string{"message", "--to", "main"}, args)
		return "", nil
	}

	require.NoError(t, sink.Notify(context.Background(), "main", "flush now"))
	assert.True(t, called)
}

func TestSinkReportsStderr(t *testing.T) {
	t.Parallel()

	sink, err := NewSink("notify", time.Second)
	require.NoError(t, err)
	sink.run = func(context.Context, string, []string, string, ...string) (string, error) {
		return "session closed", errors.New("exit status 1")
	}

	err = sink.Notify(context.Background(), "main", "x")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "session closed")
}

func TestSinkCanceledContextSkipsCommand(t *testing.T) {
	t.Parallel()

	sink, err := NewSink("notify", time.Second)
	require.NoError(t, err)
	sink.run = func(context.Context, string, []string, string, ...string) (string, error) {
		t.Fatal("command should not run")
		return "", nil
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, sink.Notify(ctx, "main", "x"), context.Canceled)
}
