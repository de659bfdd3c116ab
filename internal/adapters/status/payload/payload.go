package payload

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/bnema/openclaw-memory/internal/domain"
)

// Payload is the status body shared by the command and HTTP providers. Either
// percentage or both token counts must be present.
type Payload struct {
	Percentage *float64 `json:"percentage"`
	UsedTokens *int64   `json:"used_tokens"`
	MaxTokens  *int64   `json:"max_tokens"`
}

func (p Payload) percentage() (float64, error) {
	if p.Percentage != nil {
		return *p.Percentage, nil
	}
	if p.UsedTokens == nil || p.MaxTokens == nil {
		return 0, errors.New("payload has neither percentage nor used_tokens/max_tokens")
	}
	if *p.MaxTokens <= 0 {
		return 0, fmt.Errorf("max_tokens must be positive, got %d", *p.MaxTokens)
	}

	return float64(*p.UsedTokens) / float64(*p.MaxTokens) * 100, nil
}

// Decode turns a raw body into a known reading. Any problem yields an unknown
// reading and an error wrapping domain.ErrStatusUnavailable.
func Decode(sessionID string, at time.Time, body []byte) (domain.ContextReading, error) {
	var p Payload
	if err := json.Unmarshal([]byte(strings.TrimSpace(string(body))), &p); err != nil {
		return Unavailable(sessionID, at, fmt.Errorf("decode status payload: %w", err))
	}

	pct, err := p.percentage()
	if err != nil {
		return Unavailable(sessionID, at, err)
	}
	if math.IsNaN(pct) || pct < 0 || pct > 100 {
		return Unavailable(sessionID, at, fmt.Errorf("percentage %g out of range [0,100]", pct))
	}

	return domain.KnownReading(sessionID, at, pct), nil
}

func Unavailable(sessionID string, at time.Time, cause error) (domain.ContextReading, error) {
	return domain.UnknownReading(sessionID, at, cause.Error()), fmt.Errorf("%w: %w", domain.ErrStatusUnavailable, cause)
}
