package httpapi

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/bnema/openclaw-memory/internal/adapters/status/payload"
	"github.com/bnema/openclaw-memory/internal/domain"
	"github.com/bnema/openclaw-memory/internal/ports"
)

const maxBodyBytes = 1 << 20

// Provider reads GET {baseURL}/sessions/{id}/context from the agent runtime.
type Provider struct {
	baseURL string
	token   string
	client  *http.Client
	timeout time.Duration
	clock   ports.Clock
}

var _ ports.StatusProvider = (*Provider)(nil)

func NewProvider(baseURL, token string, client *http.Client, timeout time.Duration, clock ports.Clock) (*Provider, error) {
	baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if baseURL == "" {
		return nil, errors.New("status url is empty")
	}
	if _, err := url.Parse(baseURL); err != nil {
		return nil, fmt.Errorf("parse status url: %w", err)
	}
	if client == nil {
		client = http.DefaultClient
	}
	if clock == nil {
		clock = ports.SystemClock{}
	}

	return &Provider{baseURL: baseURL, token: token, client: client, timeout: timeout, clock: clock}, nil
}

func (p *Provider) Read(ctx context.Context, sessionID string) (domain.ContextReading, error) {
	now := p.clock.Now()
	if err := ctx.Err(); err != nil {
		return payload.Unavailable(sessionID, now, err)
	}

	if p.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.timeout)
		defer cancel()
	}

	endpoint := p.baseURL + "/sessions/" + url.PathEscape(sessionID) + "/context"
	request, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return payload.Unavailable(sessionID, now, fmt.Errorf("create request: %w", err))
	}
	request.Header.Set("Accept", "application/json")
	request.Header.Set("User-Agent", "ocm/monitor")
	if p.token != "" {
		request.Header.Set("Authorization", "Bearer "+p.token)
	}

	response, err := p.client.Do(request)
	if err != nil {
		return payload.Unavailable(sessionID, now, fmt.Errorf("perform request: %w", err))
	}
	defer response.Body.Close()

	body, err := io.ReadAll(io.LimitReader(response.Body, maxBodyBytes))
	if err != nil {
		return payload.Unavailable(sessionID, now, fmt.Errorf("read response: %w", err))
	}
	if response.StatusCode < 200 || response.StatusCode > 299 {
		return payload.Unavailable(sessionID, now, fmt.Errorf("status %d: %s", response.StatusCode, strings.TrimSpace(string(body))))
	}

	return payload.Decode(sessionID, now, body)
}
