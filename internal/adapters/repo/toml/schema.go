package toml

import (
	"fmt"
	"time"

	"github.com/bnema/openclaw-memory/internal/domain"
)

const currentSchemaVersion = 1

type contextStateSchema struct {
	Version   int       `toml:"version"`
	SessionID string    `toml:"session_id"`
	LastBand  string    `toml:"last_band"`
	UpdatedAt time.Time `toml:"updated_at"`
}

func (s *contextStateSchema) applyDefaults() {
	if s.Version == 0 {
		s.Version = currentSchemaVersion
	}
	if s.LastBand == "" {
		s.LastBand = string(domain.BandNormal)
	}
}

func (s contextStateSchema) validateVersion() error {
	if s.Version > currentSchemaVersion {
		return fmt.Errorf("unsupported context state schema version %d (current %d)", s.Version, currentSchemaVersion)
	}

	return nil
}

func toContextStateSchema(state domain.ContextState) contextStateSchema {
	return contextStateSchema{
		Version:   currentSchemaVersion,
		SessionID: state.SessionID,
		LastBand:  string(state.LastBand),
		UpdatedAt: state.UpdatedAt.UTC(),
	}
}

func fromContextStateSchema(s contextStateSchema) (domain.ContextState, error) {
	band := domain.Band(s.LastBand)
	if !band.Valid() {
		return domain.ContextState{}, fmt.Errorf("decode context state %q: unknown band %q", s.SessionID, s.LastBand)
	}

	return domain.ContextState{SessionID: s.SessionID, LastBand: band, UpdatedAt: s.UpdatedAt}, nil
}
