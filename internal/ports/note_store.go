package ports

import (
	"context"

	"github.com/bnema/openclaw-memory/internal/domain"
)

// NoteStore reads cold storage. Load returns domain.ErrNoteNotFound for a
// missing day and domain.ErrNoteUnreadable when the file cannot be decoded.
type NoteStore interface {
	Load(ctx context.Context, date domain.Date) (domain.DailyNote, error)
	ListDates(ctx context.Context) ([]domain.Date, error)
	Path(date domain.Date) string
}
