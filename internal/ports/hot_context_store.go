package ports

import (
	"context"

	"github.com/bnema/openclaw-memory/internal/domain"
)

type HotContextStore interface {
	Load(ctx context.Context) (domain.HotContextDocument, error)
	// Save must replace the document atomically.
	Save(ctx context.Context, doc domain.HotContextDocument) error
	Render(doc domain.HotContextDocument) string
}
