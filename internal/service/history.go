package service

import (
	"context"
	"errors"
	"time"

	"dream_incubator/internal/models"
)

var ErrArchiveDisabled = errors.New("sample archive is disabled")

const defaultHistoryLimit = 5000

// HistoryQuery selects archived samples by received time. Zero bounds are open.
type HistoryQuery struct {
	DeviceID string
	From     time.Time
	To       time.Time
	Limit    int
}

type HistoryService struct {
	archive SampleArchive
}

func NewHistoryService(archive SampleArchive) *HistoryService {
	return &HistoryService{archive: archive}
}

func (s *HistoryService) History(_ context.Context, q HistoryQuery) ([]models.HeartRateSample, error) {
	if s.archive == nil {
		return nil, ErrArchiveDisabled
	}
	if !q.From.IsZero() && !q.To.IsZero() && q.From.After(q.To) {
		return nil, ErrInvalidTimeRange
	}
	if q.Limit <= 0 || q.Limit > defaultHistoryLimit {
		q.Limit = defaultHistoryLimit
	}
	return s.archive.Range(normalizeDeviceID(q.DeviceID), q.From, q.To, q.Limit)
}
