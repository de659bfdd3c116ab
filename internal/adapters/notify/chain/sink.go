package chain

import (
	"context"
	"errors"
	"fmt"

	"github.com/bnema/openclaw-memory/internal/ports"
)

// Sink tries primary and falls back to the secondary sink on any failure
// other than cancellation.
type Sink struct {
	primary  ports.NotificationSink
	fallback ports.NotificationSink
}

var _ ports.NotificationSink = (*Sink)(nil)

var (
	errNilPrimarySink  = errors.New("primary notification sink is nil")
	errNilFallbackSink = errors.New("fallback notification sink is nil")
)

func NewSink(primary ports.NotificationSink, fallback ports.NotificationSink) *Sink {
	sink, err := NewSinkChecked(primary, fallback)
	if err != nil {
		panic(err)
	}

	return sink
}

func NewSinkChecked(primary ports.NotificationSink, fallback ports.NotificationSink) (*Sink, error) {
	if primary == nil {
		return nil, errNilPrimarySink
	}
	if fallback == nil {
		return nil, errNilFallbackSink
	}

	return &Sink{primary: primary, fallback: fallback}, nil
}

func (s *Sink) Notify(ctx context.Context, sessionID string, text string) error {
	err := s.primary.Notify(ctx, sessionID, text)
	if err == nil {
		return nil
	}
	if shouldSkipFallback(err) {
		return err
	}

	fallbackErr := s.fallback.Notify(ctx, sessionID, text)
	if fallbackErr == nil {
		return nil
	}

	return fmt.Errorf("primary sink notify failed: %w; fallback sink notify failed: %w", err, fallbackErr)
}

func shouldSkipFallback(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}
