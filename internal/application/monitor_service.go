package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/bnema/openclaw-memory/internal/domain"
	"github.com/bnema/openclaw-memory/internal/ports"
)

const DefaultStatusTimeout = 10 * time.Second

type MonitorDeps struct {
	Provider   ports.StatusProvider
	Sink       ports.NotificationSink
	States     ports.ContextStateRepository
	Audit      ports.AuditLog
	Thresholds domain.Thresholds
	Timeout    time.Duration
	Clock      ports.Clock
	Logger     *slog.Logger
	// NoteDir is named in notification text so the agent knows where to flush.
	NoteDir string
}

// MonitorService turns context readings into edge-triggered notifications.
// A notification fires only when a poll lands in a more severe band than the
// last one persisted for the session.
type MonitorService struct {
	provider   ports.StatusProvider
	sink       ports.NotificationSink
	states     ports.ContextStateRepository
	audit      ports.AuditLog
	thresholds domain.Thresholds
	timeout    time.Duration
	clock      ports.Clock
	logger     *slog.Logger
	noteDir    string
}

func NewMonitorService(deps MonitorDeps) (*MonitorService, error) {
	thresholds := deps.Thresholds
	if thresholds == (domain.Thresholds{}) {
		thresholds = domain.DefaultThresholds()
	}
	if err := thresholds.Validate(); err != nil {
		return nil, err
	}
	if deps.Provider == nil || deps.Sink == nil || deps.States == nil || deps.Audit == nil {
		return nil, errors.New("monitor requires a status provider, notification sink, state repository and audit log")
	}

	s := &MonitorService{
		provider:   deps.Provider,
		sink:       deps.Sink,
		states:     deps.States,
		audit:      deps.Audit,
		thresholds: thresholds,
		timeout:    deps.Timeout,
		clock:      deps.Clock,
		logger:     deps.Logger,
		noteDir:    deps.NoteDir,
	}
	if s.timeout <= 0 {
		s.timeout = DefaultStatusTimeout
	}
	if s.clock == nil {
		s.clock = ports.SystemClock{}
	}
	if s.logger == nil {
		s.logger = discardLogger()
	}
	if s.noteDir == "" {
		s.noteDir = "memory"
	}

	return s, nil
}

func (s *MonitorService) Poll(ctx context.Context, sessionID string) (PollResult, error) {
	if err := domain.ValidateSessionID(sessionID); err != nil {
		return PollResult{SessionID: sessionID}, fmt.Errorf("poll session %q: %w", sessionID, err)
	}

	// An unreadable state file restarts the session from normal; the next
	// save replaces it.
	var stateProblem string
	state, err := s.states.Get(ctx, sessionID)
	if err != nil {
		if !errors.Is(err, domain.ErrStateNotFound) {
			s.logger.Warn("context state unreadable, starting from normal", "session", sessionID, "error", err)
			stateProblem = "previous state unreadable: " + err.Error()
		}
		state = domain.InitialContextState(sessionID)
	}

	readCtx, cancel := context.WithTimeout(ctx, s.timeout)
	reading, readErr := s.provider.Read(readCtx, sessionID)
	cancel()

	now := s.clock.Now()
	result := PollResult{SessionID: sessionID, PreviousBand: state.LastBand}
	record := domain.AuditRecord{Timestamp: now, SessionID: sessionID, PreviousBand: state.LastBand}

	if readErr != nil || !reading.Known {
		reason := reading.Reason
		if reason == "" && readErr != nil {
			reason = readErr.Error()
		}
		s.logger.Warn("context reading unknown", "session", sessionID, "reason", reason)
		if stateProblem != "" {
			reason += "; " + stateProblem
		}

		result.Reason = reason
		record.Band = domain.AuditBandUnknown
		record.Reason = reason
		if err := s.audit.Append(ctx, record); err != nil {
			return result, fmt.Errorf("append audit record: %w", err)
		}
		return result, nil
	}

	percentage := reading.Percentage
	band := s.thresholds.Classify(percentage)
	result.Known = true
	result.Percentage = percentage
	result.Band = band
	record.Percentage = &percentage
	record.Band = string(band)
	record.Reason = stateProblem
	result.Reason = stateProblem

	next := domain.ContextState{SessionID: sessionID, LastBand: band, UpdatedAt: now}
	if band.MoreSevereThan(state.LastBand) {
		text := s.message(band, percentage, now)
		if err := s.sink.Notify(ctx, sessionID, text); err != nil {
			s.logger.Error("deliver context notification", "session", sessionID, "band", band, "error", err)
			result.DeliveryError = err.Error()
			record.DeliveryError = err.Error()
			// The band is not advanced so the next poll retries the escalation.
			next.LastBand = state.LastBand
		} else {
			s.logger.Info("context notification delivered", "session", sessionID, "band", band, "percentage", percentage)
			result.Notified = true
			result.Message = text
			record.Notified = true
		}
	}

	var errs []error
	if err := s.states.Save(ctx, next); err != nil {
		errs = append(errs, fmt.Errorf("save context state: %w", err))
	}
	if err := s.audit.Append(ctx, record); err != nil {
		errs = append(errs, fmt.Errorf("append audit record: %w", err))
	}

	return result, errors.Join(errs...)
}

// PollAll polls sessions in order. A failing session is reported in its
// result and does not stop the rest.
func (s *MonitorService) PollAll(ctx context.Context, sessionIDs []string) ([]PollResult, error) {
	results := make([]PollResult, 0, len(sessionIDs))
	var errs []error
	for _, sessionID := range sessionIDs {
		if err := ctx.Err(); err != nil {
			errs = append(errs, err)
			break
		}

		result, err := s.Poll(ctx, sessionID)
		if err != nil {
			result.SessionID = sessionID
			result.Error = err.Error()
			errs = append(errs, err)
		}
		results = append(results, result)
	}

	return results, errors.Join(errs...)
}

func (s *MonitorService) States(ctx context.Context) ([]domain.ContextState, error) {
	states, err := s.states.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list context states: %w", err)
	}
	return states, nil
}

func (s *MonitorService) State(ctx context.Context, sessionID string) (domain.ContextState, error) {
	state, err := s.states.Get(ctx, sessionID)
	if err != nil {
		if errors.Is(err, domain.ErrStateNotFound) {
			return domain.InitialContextState(sessionID), nil
		}
		return domain.ContextState{}, fmt.Errorf("get context state: %w", err)
	}
	return state, nil
}

func (s *MonitorService) message(band domain.Band, percentage float64, now time.Time) string {
	note := fmt.Sprintf("%s/%s.md", s.noteDir, domain.DateOf(now))
	switch band {
	case domain.BandEmergency:
		return fmt.Sprintf("Context window at %.0f%%. Write your full working state to %s now, before context is lost.", percentage, note)
	default:
		return fmt.Sprintf("Context window at %.0f%%. Flush key points from this session to %s.", percentage, note)
	}
}
