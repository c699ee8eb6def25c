package service

import (
	"context"
	"time"

	"dream_incubator/internal/models"
)

type MonitoringService struct {
	registry *Registry
	now      func() time.Time
}

// NewMonitoringService reads device state from registry. A nil now uses the wall clock.
func NewMonitoringService(registry *Registry, now func() time.Time) *MonitoringService {
	if now == nil {
		now = time.Now
	}
	return &MonitoringService{registry: registry, now: now}
}

// Status never fails: a device that has not sent anything yet reports zeroed state.
// Samples older than the live window are dropped before the stats are computed.
func (s *MonitoringService) Status(_ context.Context, deviceID string) models.DeviceStatus {
	return s.registry.Snapshot(normalizeDeviceID(deviceID), s.now().UTC())
}

// Devices lists every known device, ordered by id.
func (s *MonitoringService) Devices(_ context.Context) []models.DeviceStatus {
	ids := s.registry.IDs()
	now := s.now().UTC()
	out := make([]models.DeviceStatus, 0, len(ids))
	for _, id := range ids {
		out = append(out, s.registry.Snapshot(id, now))
	}
	return out
}
