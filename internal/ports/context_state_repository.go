package ports

import (
	"context"

	"github.com/bnema/openclaw-memory/internal/domain"
)

type ContextStateRepository interface {
	Get(ctx context.Context, sessionID string) (domain.ContextState, error)
	List(ctx context.Context) ([]domain.ContextState, error)
	Save(ctx context.Context, state domain.ContextState) error
}
