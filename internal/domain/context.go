package domain

import (
	"strings"
	"time"
)

// ContextReading is either a known percentage or an explicit unknown outcome.
type ContextReading struct {
	SessionID  string
	Timestamp  time.Time
	Percentage float64
	Known      bool
	Reason     string
}

func KnownReading(sessionID string, at time.Time, percentage float64) ContextReading {
	return ContextReading{SessionID: sessionID, Timestamp: at, Percentage: percentage, Known: true}
}

func UnknownReading(sessionID string, at time.Time, reason string) ContextReading {
	return ContextReading{SessionID: sessionID, Timestamp: at, Reason: reason}
}

type ContextState struct {
	SessionID string    `json:"session_id"`
	LastBand  Band      `json:"last_band"`
	UpdatedAt time.Time `json:"updated_at"`
}

func InitialContextState(sessionID string) ContextState {
	return ContextState{SessionID: sessionID, LastBand: BandNormal}
}

type AuditRecord struct {
	Timestamp     time.Time `json:"timestamp"`
	SessionID     string    `json:"session_id"`
	Percentage    *float64  `json:"percentage"`
	Band          string    `json:"band"`
	PreviousBand  Band      `json:"previous_band"`
	Notified      bool      `json:"notified"`
	DeliveryError string    `json:"delivery_error,omitempty"`
	Reason        string    `json:"reason,omitempty"`
}

const AuditBandUnknown = "unknown"

// ValidateSessionID rejects ids that cannot be used as a single path element.
func ValidateSessionID(id string) error {
	trimmed := strings.TrimSpace(id)
	if trimmed == "" || trimmed != id || trimmed == "." || trimmed == ".." ||
		strings.ContainsAny(id, `/\`) || strings.ContainsRune(id, 0) {
		return ErrInvalidSessionID
	}

	return nil
}
