package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"dream_incubator/internal/logger"
	"dream_incubator/internal/models"
	"dream_incubator/internal/repository"
)

const (
	eventWriteTimeout = 5 * time.Second
	eventQueueSize    = 256
)

// eventSink writes REM events to the event log and the optional publisher from its
// own goroutine, so a slow store or broker never holds up a device response.
// A full queue drops the event. Failures are logged, never returned.
type eventSink struct {
	repo repository.EventRepo
	pub  EventPublisher
	log  *logger.Logger

	queue     chan models.RemEvent
	stop      chan struct{}
	wg        sync.WaitGroup
	startOnce sync.Once
	stopOnce  sync.Once
}

func newEventSink(repo repository.EventRepo, pub EventPublisher, log *logger.Logger) *eventSink {
	if log == nil {
		log = logger.Nop()
	}
	return &eventSink{
		repo:  repo,
		pub:   pub,
		log:   log,
		queue: make(chan models.RemEvent, eventQueueSize),
		stop:  make(chan struct{}),
	}
}

// start launches the writer. Events emitted earlier wait in the queue.
func (s *eventSink) start() {
	s.startOnce.Do(func() {
		s.wg.Add(1)
		go s.run()
	})
}

// close writes whatever is still queued and stops the writer.
func (s *eventSink) close() {
	s.stopOnce.Do(func() { close(s.stop) })
	s.wg.Wait()
}

func (s *eventSink) run() {
	defer s.wg.Done()
	for {
		select {
		case e := <-s.queue:
			s.write(e)
		case <-s.stop:
			for {
				select {
				case e := <-s.queue:
					s.write(e)
				default:
					return
				}
			}
		}
	}
}

// emit queues e without blocking.
func (s *eventSink) emit(e models.RemEvent) {
	if s == nil {
		return
	}
	if e.EventID == "" {
		e.EventID = uuid.NewString()
	}
	if e.OccurredAt.IsZero() {
		e.OccurredAt = time.Now().UTC()
	}
	select {
	case s.queue <- e:
	default:
		s.log.Warnw("event_dropped", "type", e.Type, "device_id", e.DeviceID, "queue_size", cap(s.queue))
	}
}

func (s *eventSink) write(e models.RemEvent) {
	ctx, cancel := context.WithTimeout(context.Background(), eventWriteTimeout)
	defer cancel()

	if s.repo != nil {
		if err := s.repo.Append(ctx, e); err != nil {
			s.log.Errorw("event_append_failed", "err", err, "type", e.Type, "device_id", e.DeviceID)
		}
	}
	if s.pub != nil {
		if err := s.pub.Publish(ctx, e); err != nil {
			s.log.Warnw("event_publish_failed", "err", err, "type", e.Type, "device_id", e.DeviceID)
		}
	}
}

var dispatchEventTypes = map[string]string{
	models.DispatchDispatched:  models.EventCueDispatched,
	models.DispatchFailed:      models.EventCueFailed,
	models.DispatchSkipped:     models.EventCueSkipped,
	models.DispatchNoScenarios: models.EventCueSkipped,
	models.DispatchDropped:     models.EventCueDropped,
}

// dispatchResult logs the final outcome of a cue dispatch.
func (s *eventSink) dispatchResult(r models.DispatchResult) {
	typ, ok := dispatchEventTypes[r.Status]
	if !ok {
		return
	}
	meta := map[string]any{
		"dispatch_id": r.DispatchID,
		"phase":       r.Phase,
		"index":       r.Index,
		"status":      r.Status,
		"key_words":   r.Entry.KeyWords,
		"place":       r.Entry.Place,
	}
	if r.SessionID != "" {
		meta["session_id"] = r.SessionID
	}
	if r.Error != "" {
		meta["error"] = r.Error
	}
	if r.Synthesis != nil {
		meta["audio_refs"] = r.Synthesis.AudioRefs
	}
	s.emit(models.RemEvent{
		DeviceID:    r.DeviceID,
		OccurredAt:  r.At,
		Type:        typ,
		Description: fmt.Sprintf("cue %s for phase %d (entry %d)", r.Status, r.Phase, r.Index),
		Metadata:    meta,
	})
}
