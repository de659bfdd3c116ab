package domain

import "fmt"

type Band string

const (
	BandNormal    Band = "normal"
	BandActive    Band = "active"
	BandEmergency Band = "emergency"
)

const (
	DefaultActiveThreshold    = 70.0
	DefaultEmergencyThreshold = 85.0
)

func (b Band) Valid() bool {
	switch b {
	case BandNormal, BandActive, BandEmergency:
		return true
	default:
		return false
	}
}

// Severity orders bands. Unknown values rank with normal.
func (b Band) Severity() int {
	switch b {
	case BandActive:
		return 1
	case BandEmergency:
		return 2
	default:
		return 0
	}
}

func (b Band) MoreSevereThan(other Band) bool {
	return b.Severity() > other.Severity()
}

// Thresholds hold the inclusive lower edges of the active and emergency bands.
type Thresholds struct {
	Active    float64
	Emergency float64
}

func DefaultThresholds() Thresholds {
	return Thresholds{Active: DefaultActiveThreshold, Emergency: DefaultEmergencyThreshold}
}

func (t Thresholds) Validate() error {
	if t.Active <= 0 || t.Active >= t.Emergency || t.Emergency > 100 {
		return fmt.Errorf("%w: active=%g emergency=%g", ErrInvalidThresholds, t.Active, t.Emergency)
	}

	return nil
}

func (t Thresholds) Classify(percentage float64) Band {
	switch {
	case percentage >= t.Emergency:
		return BandEmergency
	case percentage >= t.Active:
		return BandActive
	default:
		return BandNormal
	}
}
