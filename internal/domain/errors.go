package domain

import "errors"

var (
	ErrConsolidationBusy = errors.New("consolidation already running")
	ErrInvalidRetention  = errors.New("retention days must be between 1 and 366")
	ErrInvalidThresholds = errors.New("thresholds must satisfy 0 < active < emergency <= 100")
	ErrNoteNotFound      = errors.New("daily note not found")
	ErrNoteUnreadable    = errors.New("daily note unreadable")
	ErrStatusUnavailable = errors.New("context status unavailable")
	ErrStateNotFound     = errors.New("context state not found")
	ErrEntryNotFound     = errors.New("memory entry not found")
	ErrInvalidSessionID  = errors.New("invalid session id")
)
