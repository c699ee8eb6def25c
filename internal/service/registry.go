package service

import (
	"sort"
	"sync"
	"time"

	"dream_incubator/internal/models"
	"dream_incubator/internal/rem"
)

// DeviceSession is the live detection state of one device. All fields are guarded by mu;
// sessions never share a lock.
type DeviceSession struct {
	id string

	mu          sync.Mutex
	buffer      *rem.SampleBuffer
	flags       models.SensorFlags
	tracker     rem.PhaseTracker
	remDetected bool
	lastUpdate  time.Time
}

func newDeviceSession(id string) *DeviceSession {
	return &DeviceSession{id: id, buffer: rem.NewSampleBuffer()}
}

// snapshotLocked must be called with mu held.
func (s *DeviceSession) snapshotLocked() models.DeviceStatus {
	return models.DeviceStatus{
		DeviceID:        s.id,
		RemDetected:     s.remDetected,
		SleepDetected:   s.flags.SleepFlag,
		AtoniaDetected:  s.flags.AtoniaFlag,
		CurrentRemPhase: s.tracker.Current(),
		PhasesInSession: s.tracker.PhasesInSession(),
		LastUpdate:      s.lastUpdate,
		HRStats:         rem.Stats(s.buffer.Samples()),
	}
}

// Registry maps device identifiers to their sessions. The map lock only guards
// membership; per-device mutations take the session's own lock.
type Registry struct {
	mu      sync.RWMutex
	devices map[string]*DeviceSession
}

func NewRegistry() *Registry {
	return &Registry{devices: make(map[string]*DeviceSession)}
}

// GetOrCreate returns the session for id, creating it on first sight.
func (r *Registry) GetOrCreate(id string) *DeviceSession {
	r.mu.RLock()
	s, ok := r.devices[id]
	r.mu.RUnlock()
	if ok {
		return s
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if s, ok = r.devices[id]; ok {
		return s
	}
	s = newDeviceSession(id)
	r.devices[id] = s
	return s
}

func (r *Registry) lookup(id string) (*DeviceSession, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.devices[id]
	return s, ok
}

// Len is the number of known devices.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.devices)
}

// IDs lists known devices in lexical order.
func (r *Registry) IDs() []string {
	r.mu.RLock()
	ids := make([]string, 0, len(r.devices))
	for id := range r.devices {
		ids = append(ids, id)
	}
	r.mu.RUnlock()
	sort.Strings(ids)
	return ids
}

// Append adds samples to the device's buffer in arrival order.
func (r *Registry) Append(id string, samples ...models.HeartRateSample) {
	s := r.GetOrCreate(id)
	s.mu.Lock()
	defer s.mu.Unlock()
	s.buffer.Append(samples...)
}

// Prune drops the device's samples received at or before now-15m.
func (r *Registry) Prune(id string, now time.Time) int {
	s, ok := r.lookup(id)
	if !ok {
		return 0
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.buffer.Prune(now)
}

// Samples returns a copy of the device's buffer.
func (r *Registry) Samples(id string) []models.HeartRateSample {
	s, ok := r.lookup(id)
	if !ok {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	live := s.buffer.Samples()
	out := make([]models.HeartRateSample, len(live))
	copy(out, live)
	return out
}

// Snapshot prunes the device's buffer at now and returns its status, or a zeroed
// status for an unknown device.
func (r *Registry) Snapshot(id string, now time.Time) models.DeviceStatus {
	s, ok := r.lookup(id)
	if !ok {
		return models.DeviceStatus{DeviceID: id}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.buffer.Prune(now)
	return s.snapshotLocked()
}

// Reset forces the device out of REM and zeroes its phase counters. The sample
// history is kept. The returned phase is the one in progress before the reset.
func (r *Registry) Reset(id string, now time.Time) (models.DeviceStatus, int, bool) {
	s, ok := r.lookup(id)
	if !ok {
		return models.DeviceStatus{DeviceID: id}, 0, false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	prev := s.tracker.Current()
	s.tracker.Reset()
	s.remDetected = false
	s.lastUpdate = now
	return s.snapshotLocked(), prev, true
}
