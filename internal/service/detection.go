package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"dream_incubator/internal/logger"
	"dream_incubator/internal/models"
	"dream_incubator/internal/rem"
)

const tracerName = "dream_incubator/service"

// DetectionOptions configures DetectionService. Archive and Recorder may be nil.
type DetectionOptions struct {
	DefaultPolicy rem.Policy
	Archive       SampleArchive
	Recorder      Recorder
	Log           *logger.Logger
	Now           func() time.Time
}

// cueSource resolves the scenario list used for a device's phase starts.
type cueSource interface {
	ListFor(deviceID string) *models.ScenarioList
}

type DetectionService struct {
	registry   *Registry
	scenarios  cueSource
	dispatcher *Dispatcher
	events     *eventSink
	opts       DetectionOptions
}

func NewDetectionService(registry *Registry, scenarios cueSource, dispatcher *Dispatcher, events *eventSink, opts DetectionOptions) *DetectionService {
	if opts.DefaultPolicy == "" {
		opts.DefaultPolicy = rem.PolicyCanonical
	}
	if opts.Log == nil {
		opts.Log = logger.Nop()
	}
	if opts.Recorder == nil {
		opts.Recorder = nopRecorder{}
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &DetectionService{
		registry:   registry,
		scenarios:  scenarios,
		dispatcher: dispatcher,
		events:     events,
		opts:       opts,
	}
}

func normalizeDeviceID(id string) string {
	if id = strings.TrimSpace(id); id == "" {
		return DefaultDeviceID
	}
	return id
}

func (s *DetectionService) policy(name string) (rem.Policy, error) {
	if strings.TrimSpace(name) == "" {
		return s.opts.DefaultPolicy, nil
	}
	return rem.ParsePolicy(name)
}

// Ingest appends the packet's valid samples, applies its flags, evaluates the pruned
// history and advances the phase tracker. Malformed samples are skipped one by one.
// Side effects of a transition (event log, publisher, cue dispatch) run after the
// device lock is released and never fail the call.
func (s *DetectionService) Ingest(ctx context.Context, in IngestInput) (models.DetectionResult, error) {
	policy, err := s.policy(in.Policy)
	if err != nil {
		return models.DetectionResult{}, err
	}
	deviceID := normalizeDeviceID(in.DeviceID)

	_, span := otel.Tracer(tracerName).Start(ctx, "rem.ingest")
	defer span.End()

	now := s.opts.Now().UTC()
	samples, skipped := rem.DecodeSamples(in.Samples, now)

	sess := s.registry.GetOrCreate(deviceID)
	sess.mu.Lock()
	sess.buffer.Append(samples...)
	if in.Flags != nil {
		sess.flags = *in.Flags
	}
	pruned := sess.buffer.Prune(now)
	flags := sess.flags
	verdict := rem.EvaluateWith(policy, sess.buffer.Samples(), flags.SleepFlag, flags.AtoniaFlag)
	change := sess.tracker.Update(verdict.REM)
	sess.remDetected = verdict.REM
	sess.lastUpdate = now
	result := models.DetectionResult{
		DeviceID:        deviceID,
		Timestamp:       now,
		RemDetected:     verdict.REM,
		CurrentRemPhase: sess.tracker.Current(),
		Policy:          string(policy),
		Reason:          verdict.Reason,
		Transition:      change.Transition.String(),
		SamplesAccepted: len(samples),
		SamplesSkipped:  skipped,
		TotalHRHistory:  sess.buffer.Len(),
	}
	sess.mu.Unlock()

	span.SetAttributes(
		attribute.String("device.id", deviceID),
		attribute.String("rem.policy", string(policy)),
		attribute.String("rem.reason", verdict.Reason),
		attribute.Bool("rem.detected", verdict.REM),
		attribute.Int("rem.samples", verdict.Samples),
	)

	log := s.opts.Log
	if skipped > 0 {
		log.Warnw("samples_skipped", "device_id", deviceID, "skipped", skipped, "accepted", len(samples))
	}
	log.Debugw("rem_verdict",
		"device_id", deviceID,
		"policy", policy,
		"reason", verdict.Reason,
		"samples", verdict.Samples,
		"pruned", pruned,
		"baseline", verdict.Baseline,
		"recent", verdict.Recent,
		"rise", verdict.Rise,
		"sleep_flag", flags.SleepFlag,
		"atonia_flag", flags.AtoniaFlag,
	)
	s.opts.Recorder.ObserveSamples(len(samples), skipped)
	s.opts.Recorder.ObserveVerdict(string(policy), verdict.Reason)
	s.opts.Recorder.SetDevices(s.registry.Len())

	if s.opts.Archive != nil && len(samples) > 0 {
		if err := s.opts.Archive.Append(deviceID, samples); err != nil {
			log.Warnw("archive_append_failed", "err", err, "device_id", deviceID)
		}
	}

	s.handleTransition(deviceID, change, verdict, now)
	return result, nil
}

func (s *DetectionService) handleTransition(deviceID string, change rem.PhaseChange, v rem.Verdict, now time.Time) {
	switch change.Transition {
	case rem.PhaseStart:
		s.opts.Log.Infow("rem_phase_start", "device_id", deviceID, "phase", change.Phase, "rise", v.Rise, "policy", v.Policy)
		s.opts.Recorder.ObserveTransition(change.Transition.String())
		s.events.emit(models.RemEvent{
			DeviceID:    deviceID,
			OccurredAt:  now,
			Type:        models.EventPhaseStart,
			Description: fmt.Sprintf("REM phase %d started", change.Phase),
			Metadata: map[string]any{
				"phase":    change.Phase,
				"baseline": v.Baseline,
				"recent":   v.Recent,
				"rise":     v.Rise,
				"policy":   string(v.Policy),
				"degraded": v.Degraded,
			},
		})
		if s.dispatcher != nil {
			var list *models.ScenarioList
			if s.scenarios != nil {
				list = s.scenarios.ListFor(deviceID)
			}
			s.dispatcher.OnPhaseStart(deviceID, change.Phase, list)
		}
	case rem.PhaseEnd:
		s.opts.Log.Infow("rem_phase_end", "device_id", deviceID, "phase", change.Phase, "reason", v.Reason)
		s.opts.Recorder.ObserveTransition(change.Transition.String())
		s.events.emit(models.RemEvent{
			DeviceID:    deviceID,
			OccurredAt:  now,
			Type:        models.EventPhaseEnd,
			Description: fmt.Sprintf("REM phase %d ended", change.Phase),
			Metadata:    map[string]any{"phase": change.Phase, "reason": v.Reason},
		})
	}
}

// Reset zeroes the device's phase counters and REM flag, keeping its sample history.
// Resetting an unknown device is a no-op that returns a zeroed status.
func (s *DetectionService) Reset(ctx context.Context, deviceID string) (models.DeviceStatus, error) {
	deviceID = normalizeDeviceID(deviceID)
	status, prev, ok := s.registry.Reset(deviceID, s.opts.Now().UTC())
	if !ok {
		return status, nil
	}
	s.opts.Log.Infow("rem_counter_reset", "device_id", deviceID, "previous_phase", prev)
	s.events.emit(models.RemEvent{
		DeviceID:    deviceID,
		OccurredAt:  status.LastUpdate,
		Type:        models.EventReset,
		Description: "REM counter reset",
		Metadata:    map[string]any{"previous_phase": prev, "hr_history": status.HRStats.TotalSamples},
	})
	return status, nil
}
