package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dream_incubator/internal/models"
)

func TestNormalizeFilter(t *testing.T) {
	loc := time.FixedZone("UTC+3", 3*3600)
	from := time.Date(2025, 3, 1, 5, 0, 0, 0, loc)
	to := from.Add(time.Hour)

	q, err := normalizeFilter(LogFilter{From: from, To: to, Type: " phase_start ", DeviceID: " w1 ", Limit: -4})
	require.NoError(t, err)
	assert.Equal(t, time.UTC, q.From.Location())
	assert.True(t, q.From.Equal(from))
	assert.Equal(t, models.EventPhaseStart, q.Type)
	assert.Equal(t, "w1", q.DeviceID)
	assert.Zero(t, q.Limit)

	_, err = normalizeFilter(LogFilter{From: to, To: from})
	assert.ErrorIs(t, err, ErrInvalidTimeRange)

	q, err = normalizeFilter(LogFilter{})
	require.NoError(t, err)
	assert.True(t, q.From.IsZero())
	assert.True(t, q.To.IsZero())
}

func TestEventLogService_List(t *testing.T) {
	repo := &fakeEventRepo{events: []models.RemEvent{{EventID: "e1", Type: models.EventReset}}}
	svc := NewEventLogService(repo)

	got, err := svc.List(context.Background(), LogFilter{Type: "reset", Limit: 10})
	require.NoError(t, err)
	assert.Len(t, got, 1)
	require.Len(t, repo.listed, 1)
	assert.Equal(t, models.EventReset, repo.listed[0].Type)
	assert.Equal(t, 10, repo.listed[0].Limit)

	now := time.Now()
	_, err = svc.List(context.Background(), LogFilter{From: now, To: now.Add(-time.Second)})
	assert.ErrorIs(t, err, ErrInvalidTimeRange)
	assert.Len(t, repo.listed, 1)
}
