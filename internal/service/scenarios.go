package service

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"dream_incubator/internal/logger"
	"dream_incubator/internal/models"
	"dream_incubator/internal/repository"
)

// ScenarioService keeps uploaded lists in memory, written through to the repository.
// A list uploaded with a device id is bound to that device; other devices use the
// most recent upload.
type ScenarioService struct {
	repo       repository.ScenarioRepo
	dispatcher *Dispatcher
	events     *eventSink
	log        *logger.Logger

	mu        sync.RWMutex
	bySession map[string]models.ScenarioList
	byDevice  map[string]string // device id -> session id
	latest    string
}

func NewScenarioService(repo repository.ScenarioRepo, dispatcher *Dispatcher, events *eventSink, log *logger.Logger) *ScenarioService {
	if log == nil {
		log = logger.Nop()
	}
	return &ScenarioService{
		repo:       repo,
		dispatcher: dispatcher,
		events:     events,
		log:        log,
		bySession:  make(map[string]models.ScenarioList),
		byDevice:   make(map[string]string),
	}
}

// Warm loads every persisted list, oldest first, so the latest upload wins.
func (s *ScenarioService) Warm(ctx context.Context) error {
	if s.repo == nil {
		return nil
	}
	lists, err := s.repo.LoadAll(ctx)
	if err != nil {
		return fmt.Errorf("warm scenarios: %w", err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, l := range lists {
		s.putLocked(l)
	}
	s.log.Infow("scenarios_warmed", "sessions", len(lists))
	return nil
}

func (s *ScenarioService) putLocked(l models.ScenarioList) {
	if old, ok := s.bySession[l.SessionID]; ok && old.DeviceID != "" && s.byDevice[old.DeviceID] == l.SessionID {
		delete(s.byDevice, old.DeviceID)
	}
	s.bySession[l.SessionID] = l
	if l.DeviceID != "" {
		s.byDevice[l.DeviceID] = l.SessionID
	}
	s.latest = l.SessionID
}

// UploadScenarios replaces the session's list wholesale and queues an eager cue for
// every non-blank entry. A missing session id gets a generated one. An empty list
// clears the session's cues.
func (s *ScenarioService) UploadScenarios(ctx context.Context, list models.ScenarioList) (models.ScenarioList, []models.DispatchResult, error) {
	list.SessionID = strings.TrimSpace(list.SessionID)
	if list.SessionID == "" {
		list.SessionID = uuid.NewString()
	}
	list.DeviceID = strings.TrimSpace(list.DeviceID)
	list.UploadedAt = time.Now().UTC()
	list.Entries = append(make([]models.ScenarioEntry, 0, len(list.Entries)), list.Entries...)

	if s.repo != nil {
		if err := s.repo.Save(ctx, list); err != nil {
			return models.ScenarioList{}, nil, err
		}
	}

	s.mu.Lock()
	s.putLocked(list)
	s.mu.Unlock()

	blank := 0
	for _, e := range list.Entries {
		if e.IsBlank() {
			blank++
		}
	}
	s.log.Infow("scenarios_uploaded", "session_id", list.SessionID, "device_id", list.DeviceID, "entries", len(list.Entries), "blank", blank)
	if s.events != nil {
		s.events.emit(models.RemEvent{
			DeviceID:    list.DeviceID,
			OccurredAt:  list.UploadedAt,
			Type:        models.EventScenariosUploaded,
			Description: fmt.Sprintf("%d dream scenarios uploaded", len(list.Entries)),
			Metadata:    map[string]any{"session_id": list.SessionID, "entries": len(list.Entries), "blank": blank},
		})
	}

	var dispatched []models.DispatchResult
	if s.dispatcher != nil {
		dispatched = s.dispatcher.DispatchAll(list)
	}
	return list, dispatched, nil
}

// SessionScenarios returns the list of a mobile session.
func (s *ScenarioService) SessionScenarios(_ context.Context, sessionID string) (models.ScenarioList, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	l, ok := s.bySession[strings.TrimSpace(sessionID)]
	return l, ok
}

// ListFor resolves the list used for a device's phase starts, or nil when none exists.
func (s *ScenarioService) ListFor(deviceID string) *models.ScenarioList {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sessionID, ok := s.byDevice[deviceID]
	if !ok {
		sessionID = s.latest
	}
	l, ok := s.bySession[sessionID]
	if !ok {
		return nil
	}
	return &l
}

func (s *ScenarioService) RecentDispatches(limit int) []models.DispatchResult {
	if s.dispatcher == nil {
		return nil
	}
	return s.dispatcher.Recent(limit)
}
