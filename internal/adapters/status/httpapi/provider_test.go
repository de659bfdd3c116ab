package httpapi

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/bnema/openclaw-memory/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProviderReadsSessionContext(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/sessions/agent:main/context", r.URL.Path)
		assert.Equal(t, "Bearer tok", r.Header.Get("Authorization"))
		_, _ = w.Write([]byte(`{"used_tokens": 170000, "max_tokens": 200000}`))
	}))
	defer server.Close()

	provider, err := NewProvider(server.URL+"/api/", "tok", server.Client(), time.Second, nil)
	require.NoError(t, err)

	reading, err := provider.Read(context.Background(), "agent:main")
	require.NoError(t, err)
	assert.True(t, reading.Known)
	assert.InDelta(t, 85, reading.Percentage, 1e-9)
}

func TestProviderNon2xxIsUnknown(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "no such session", http.StatusNotFound)
	}))
	defer server.Close()

	provider, err := NewProvider(server.URL, "", server.Client(), time.Second, nil)
	require.NoError(t, err)

	reading, err := provider.Read(context.Background(), "ghost")
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrStatusUnavailable)
	assert.Contains(t, err.Error(), "status 404")
	assert.False(t, reading.Known)
}

func TestProviderSlowServerTimesOut(t *testing.T) {
	t.Parallel()

	release := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer server.Close()
	defer close(release)

	provider, err := NewProvider(server.URL, "", server.Client(), 20*time.Millisecond, nil)
	require.NoError(t, err)

	reading, err := provider.Read(context.Background(), "main")
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrStatusUnavailable)
	assert.False(t, reading.Known)
}

func TestNewProviderRejectsEmptyURL(t *testing.T) {
	t.Parallel()

	_, err := NewProvider(" ", "", nil, time.Second, nil)
	assert.Error(t, err)
}
