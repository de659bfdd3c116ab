package command

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"github.com/bnema/openclaw-memory/internal/adapters/status/payload"
	"github.com/bnema/openclaw-memory/internal/domain"
	"github.com/bnema/openclaw-memory/internal/ports"
)

type runFunc func(ctx context.Context, name string, args ...string) (stdout string, stderr string, err error)

// Provider asks an external command for context utilization. The session id
// is passed as the last argument and the command prints a status payload.
type Provider struct {
	name    string
	args    []string
	timeout time.Duration
	clock   ports.Clock
	run     runFunc
}

var _ ports.StatusProvider = (*Provider)(nil)

func NewProvider(commandLine string, timeout time.Duration, clock ports.Clock) (*Provider, error) {
	fields := strings.Fields(commandLine)
	if len(fields) == 0 {
		return nil, errors.New("status command is empty")
	}
	if clock == nil {
		clock = ports.SystemClock{}
	}

	return &Provider{name: fields[0], args: fields[1:], timeout: timeout, clock: clock, run: runCommand}, nil
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

	args := append(append([]string{}, p.args...), sessionID)
	stdout, stderr, err := p.run(ctx, p.name, args...)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			err = ctxErr
		}
		if stderr != "" {
			err = fmt.Errorf("status command %q: %w: %s", p.name, err, stderr)
		} else {
			err = fmt.Errorf("status command %q: %w", p.name, err)
		}
		return payload.Unavailable(sessionID, now, err)
	}

	return payload.Decode(sessionID, now, []byte(stdout))
}

func runCommand(ctx context.Context, name string, args ...string) (string, string, error) {
	path, err := exec.LookPath(name)
	if err != nil {
		return "", "", fmt.Errorf("locate command: %w", err)
	}

	cmd := exec.CommandContext(ctx, path, args...)

	var stdout bytes.Buffer
	var stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err = cmd.Run()
	return stdout.String(), strings.TrimSpace(stderr.String()), err
}
