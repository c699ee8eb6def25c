package service

import (
	"context"
	"encoding/json"
	"time"

	"dream_incubator/internal/logger"
	"dream_incubator/internal/models"
	"dream_incubator/internal/rem"
	"dream_incubator/internal/repository"
)

// DefaultDeviceID is used for packets that do not name a device.
const DefaultDeviceID = "default"

type Authorization interface {
	SignUp(ctx context.Context, username, password string) (int, error)
	GenerateToken(ctx context.Context, username, password string) (string, error)
	ParseToken(accessToken string) (int, error)
}

// IngestInput is one device submission. A nil Flags keeps the last known flags;
// empty Samples re-evaluates the existing buffer.
type IngestInput struct {
	DeviceID string
	Samples  []json.RawMessage
	Flags    *models.SensorFlags
	Policy   string // "" selects the configured default
}

// Detection runs the REM pipeline for device packets.
type Detection interface {
	Ingest(ctx context.Context, in IngestInput) (models.DetectionResult, error)
	Reset(ctx context.Context, deviceID string) (models.DeviceStatus, error)
}

// Monitoring exposes read-only device state. Unknown devices yield zeroed snapshots.
type Monitoring interface {
	Status(ctx context.Context, deviceID string) models.DeviceStatus
	Devices(ctx context.Context) []models.DeviceStatus
}

type EventLog interface {
	List(ctx context.Context, f LogFilter) ([]models.RemEvent, error)
}

// Scenarios manages the dream scenario lists uploaded by mobile sessions.
type Scenarios interface {
	UploadScenarios(ctx context.Context, list models.ScenarioList) (models.ScenarioList, []models.DispatchResult, error)
	SessionScenarios(ctx context.Context, sessionID string) (models.ScenarioList, bool)
	RecentDispatches(limit int) []models.DispatchResult
}

// Simulator plays a scripted wearable against the detection pipeline until ctx is canceled.
type Simulator interface {
	Run(ctx context.Context, tick time.Duration)
}

// Synthesizer turns a scenario into narration and audio.
type Synthesizer interface {
	Synthesize(ctx context.Context, keyWords, place string) (models.SynthesisResult, error)
}

// EventPublisher fans REM events out to other processes.
type EventPublisher interface {
	Publish(ctx context.Context, e models.RemEvent) error
}

// SampleArchive keeps accepted samples beyond the live window.
type SampleArchive interface {
	Append(deviceID string, samples []models.HeartRateSample) error
	Range(deviceID string, from, to time.Time, limit int) ([]models.HeartRateSample, error)
}

// SampleHistory reads archived samples of a device.
type SampleHistory interface {
	History(ctx context.Context, q HistoryQuery) ([]models.HeartRateSample, error)
}

// Recorder receives pipeline measurements.
type Recorder interface {
	ObserveVerdict(policy, reason string)
	ObserveSamples(accepted, skipped int)
	ObserveTransition(transition string)
	ObserveDispatch(status string, d time.Duration)
	SetDevices(n int)
}

type Service struct {
	Detection
	Monitoring
	EventLog
	Scenarios
	Simulator
	SampleHistory
	Authorization

	Dispatcher *Dispatcher
	scenarios  *ScenarioService
	events     *eventSink
}

// Options carries the collaborators and tunables NewService wires together.
// Nil collaborators are skipped.
type Options struct {
	Log           *logger.Logger
	DefaultPolicy rem.Policy
	Dispatch      DispatcherOptions
	Synthesizer   Synthesizer
	Publisher     EventPublisher
	Archive       SampleArchive
	Recorder      Recorder
	Auth          AuthOptions
	Simulator     SimulatorOptions
	Now           func() time.Time
}

// NewService wires the repository layer and collaborators into concrete services.
// Call Start before serving so cues are delivered.
func NewService(repos *repository.Repository, opts Options) *Service {
	if opts.Log == nil {
		opts.Log = logger.Nop()
	}
	if opts.Recorder == nil {
		opts.Recorder = nopRecorder{}
	}

	sink := newEventSink(repos.EventRepo, opts.Publisher, opts.Log)
	dispatcher := NewDispatcher(opts.Synthesizer, opts.Dispatch, opts.Log, opts.Recorder)
	dispatcher.OnResult(sink.dispatchResult)

	registry := NewRegistry()
	scenarios := NewScenarioService(repos.ScenarioRepo, dispatcher, sink, opts.Log)
	detection := NewDetectionService(registry, scenarios, dispatcher, sink, DetectionOptions{
		DefaultPolicy: opts.DefaultPolicy,
		Archive:       opts.Archive,
		Recorder:      opts.Recorder,
		Log:           opts.Log,
		Now:           opts.Now,
	})

	return &Service{
		Detection:     detection,
		Monitoring:    NewMonitoringService(registry, opts.Now),
		EventLog:      NewEventLogService(repos.EventRepo),
		Scenarios:     scenarios,
		Simulator:     NewSimulatorService(detection, opts.Simulator, opts.Log),
		SampleHistory: NewHistoryService(opts.Archive),
		Authorization: NewAuthService(repos.Auth, opts.Auth),
		Dispatcher:    dispatcher,
		scenarios:     scenarios,
		events:        sink,
	}
}

// Start loads persisted scenario lists and launches the cue workers and the event writer.
func (s *Service) Start(ctx context.Context) error {
	if err := s.scenarios.Warm(ctx); err != nil {
		return err
	}
	s.events.start()
	s.Dispatcher.Start(ctx)
	return nil
}

// Stop waits for in-flight cue dispatches, then flushes queued events.
func (s *Service) Stop() {
	s.Dispatcher.Stop()
	s.events.close()
}

type nopRecorder struct{}

func (nopRecorder) ObserveVerdict(string, string)         {}
func (nopRecorder) ObserveSamples(int, int)               {}
func (nopRecorder) ObserveTransition(string)              {}
func (nopRecorder) ObserveDispatch(string, time.Duration) {}
func (nopRecorder) SetDevices(int)                        {}
