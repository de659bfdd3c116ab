package application

import "github.com/bnema/openclaw-memory/internal/domain"

// PollResult describes one monitor poll. Band is empty when the reading was
// unknown.
type PollResult struct {
	SessionID     string      `json:"session_id"`
	Known         bool        `json:"known"`
	Percentage    float64     `json:"percentage,omitempty"`
	Band          domain.Band `json:"band,omitempty"`
	PreviousBand  domain.Band `json:"previous_band"`
	Notified      bool        `json:"notified"`
	Message       string      `json:"message,omitempty"`
	DeliveryError string      `json:"delivery_error,omitempty"`
	Reason        string      `json:"reason,omitempty"`
	Error         string      `json:"error,omitempty"`
}
