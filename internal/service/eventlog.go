package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"dream_incubator/internal/models"
	"dream_incubator/internal/repository"
)

// LogFilter narrows the event history. Zero values mean no bound.
type LogFilter struct {
	From     time.Time // inclusive
	To       time.Time // inclusive
	Type     string    // PHASE_START, PHASE_END, RESET, SCENARIOS_UPLOADED, CUE_*
	DeviceID string
	Limit    int
}

type EventLogService struct {
	eventRepo repository.EventRepo
}

func NewEventLogService(eventRepo repository.EventRepo) *EventLogService {
	return &EventLogService{eventRepo: eventRepo}
}

var ErrInvalidTimeRange = errors.New("invalid time range: from must be <= to")

func normalizeToUTC(t time.Time) time.Time {
	if t.IsZero() {
		return t
	}
	return t.UTC()
}

func normalizeFilter(f LogFilter) (repository.EventQuery, error) {
	q := repository.EventQuery{
		From:     normalizeToUTC(f.From),
		To:       normalizeToUTC(f.To),
		Type:     strings.ToUpper(strings.TrimSpace(f.Type)),
		DeviceID: strings.TrimSpace(f.DeviceID),
		Limit:    f.Limit,
	}
	if !q.From.IsZero() && !q.To.IsZero() && q.From.After(q.To) {
		return repository.EventQuery{}, ErrInvalidTimeRange
	}
	if q.Limit < 0 {
		q.Limit = 0
	}
	return q, nil
}

func (s *EventLogService) List(ctx context.Context, f LogFilter) ([]models.RemEvent, error) {
	q, err := normalizeFilter(f)
	if err != nil {
		return nil, err
	}
	return s.eventRepo.List(ctx, q)
}
