package command

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"time"

	"github.com/bnema/openclaw-memory/internal/ports"
)

const SessionEnv = "OCM_SESSION_ID"

type runFunc func(ctx context.Context, input string, env []string, name string, args ...string) (stderr string, err error)

// Sink hands the notification text to an external command on stdin. The
// session id is exported as OCM_SESSION_ID and appended as the last argument.
type Sink struct {
	name    string
	args    []string
	timeout time.Duration
	run     runFunc
}

var _ ports.NotificationSink = (*Sink)(nil)

func NewSink(commandLine string, timeout time.Duration) (*Sink, error) {
	fields := strings.Fields(commandLine)
	if len(fields) == 0 {
		return nil, errors.New("notify command is empty")
	}

	return &Sink{name: fields[0], args: fields[1:], timeout: timeout, run: runCommand}, nil
}

func (s *Sink) Notify(ctx context.Context, sessionID string, text string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	args := append(append([]string{}, s.args...), sessionID)
	stderr, err := s.run(ctx, text, []string{SessionEnv + "=" + sessionID}, s.name, args...)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			err = ctxErr
		}
		if stderr == "" {
			return fmt.Errorf("notify command %q: %w", s.name, err)
		}
		return fmt.Errorf("notify command %q: %w: %s", s.name, err, stderr)
	}

	return nil
}

func runCommand(ctx context.Context, input string, env []string, name string, args ...string) (string, error) {
	path, err := exec.LookPath(name)
	if err != nil {
		return "", fmt.Errorf("locate command: %w", err)
	}

	cmd := exec.CommandContext(ctx, path, args...)
	cmd.Env = append(os.Environ(), env...)
	cmd.Stdin = strings.NewReader(input)

	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	err = cmd.Run()
	return strings.TrimSpace(stderr.String()), err
}
