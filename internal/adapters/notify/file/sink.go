package file

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/bnema/openclaw-memory/internal/domain"
	"github.com/bnema/openclaw-memory/internal/ports"
)

const (
	inboxDirMode  = 0o700
	inboxFileMode = 0o600
)

// Sink appends notifications to <root>/<session>.md, a per-session inbox the
// agent runtime reads on its next turn.
type Sink struct {
	root  string
	clock ports.Clock
	mu    sync.Mutex
}

var _ ports.NotificationSink = (*Sink)(nil)

func NewSink(root string, clock ports.Clock) *Sink {
	if clock == nil {
		clock = ports.SystemClock{}
	}

	return &Sink{root: filepath.Clean(root), clock: clock}
}

func (s *Sink) PathFor(sessionID string) (string, error) {
	if err := domain.ValidateSessionID(sessionID); err != nil {
		return "", fmt.Errorf("%w: %q", err, sessionID)
	}

	return filepath.Join(s.root, sessionID+".md"), nil
}

func (s *Sink) Notify(ctx context.Context, sessionID string, text string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	path, err := s.PathFor(sessionID)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.MkdirAll(s.root, inboxDirMode); err != nil {
		return fmt.Errorf("create inbox directory: %w", err)
	}

	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_APPEND, inboxFileMode)
	if err != nil {
		return fmt.Errorf("open inbox %q: %w", sessionID, err)
	}

	entry := fmt.Sprintf("## %s\n\n%s\n\n", s.clock.Now().UTC().Format(time.RFC3339), text)
	if _, err := f.WriteString(entry); err != nil {
		_ = f.Close()
		return fmt.Errorf("write inbox %q: %w", sessionID, err)
	}

	if err := f.Close(); err != nil {
		return fmt.Errorf("close inbox %q: %w", sessionID, err)
	}

	return nil
}
