package ports

import (
	"context"

	"github.com/bnema/openclaw-memory/internal/domain"
)

type RunLog interface {
	Append(ctx context.Context, run domain.ConsolidationRun) error
	Recent(ctx context.Context, limit int) ([]domain.ConsolidationRun, error)
}

type AuditLog interface {
	Append(ctx context.Context, record domain.AuditRecord) error
}
