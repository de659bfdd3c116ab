package ports

import (
	"context"

	"github.com/bnema/openclaw-memory/internal/domain"
)

// StatusProvider reports working-context utilization for a session. On any
// failure it returns an unknown reading together with an error wrapping
// domain.ErrStatusUnavailable.
type StatusProvider interface {
	Read(ctx context.Context, sessionID string) (domain.ContextReading, error)
}

type NotificationSink interface {
	Notify(ctx context.Context, sessionID string, text string) error
}
