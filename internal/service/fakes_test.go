package service

import (
	"context"
	"errors"
	"sync"
	"time"

	"dream_incubator/internal/models"
	"dream_incubator/internal/repository"
)

type fakeEventRepo struct {
	mu       sync.Mutex
	appended []models.RemEvent
	listed   []repository.EventQuery
	events   []models.RemEvent
	err      error
}

func (f *fakeEventRepo) Append(_ context.Context, e models.RemEvent) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.appended = append(f.appended, e)
	return f.err
}

func (f *fakeEventRepo) List(_ context.Context, q repository.EventQuery) ([]models.RemEvent, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.listed = append(f.listed, q)
	return f.events, f.err
}

func (f *fakeEventRepo) types() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, 0, len(f.appended))
	for _, e := range f.appended {
		out = append(out, e.Type)
	}
	return out
}

type fakeScenarioRepo struct {
	mu      sync.Mutex
	saved   []models.ScenarioList
	stored  []models.ScenarioList
	saveErr error
	loadErr error
}

func (f *fakeScenarioRepo) Save(_ context.Context, l models.ScenarioList) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.saveErr != nil {
		return f.saveErr
	}
	f.saved = append(f.saved, l)
	return nil
}

func (f *fakeScenarioRepo) Get(_ context.Context, sessionID string) (*models.ScenarioList, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := range f.saved {
		if f.saved[i].SessionID == sessionID {
			l := f.saved[i]
			return &l, nil
		}
	}
	return nil, nil
}

func (f *fakeScenarioRepo) LoadAll(context.Context) ([]models.ScenarioList, error) {
	return f.stored, f.loadErr
}

type synthCall struct {
	keyWords, place string
}

type fakeSynth struct {
	mu    sync.Mutex
	calls []synthCall
	err   error
	panic bool
	block chan struct{} // when set, Synthesize waits on it or ctx
}

func (f *fakeSynth) Synthesize(ctx context.Context, keyWords, place string) (models.SynthesisResult, error) {
	f.mu.Lock()
	f.calls = append(f.calls, synthCall{keyWords, place})
	block, fail, boom := f.block, f.err, f.panic
	f.mu.Unlock()

	if boom {
		panic("tts exploded")
	}
	if block != nil {
		select {
		case <-block:
		case <-ctx.Done():
			return models.SynthesisResult{}, ctx.Err()
		}
	}
	if fail != nil {
		return models.SynthesisResult{}, fail
	}
	return models.SynthesisResult{Status: "success", Narration: "drift to " + place, AudioRefs: []string{"a.mp3"}}, nil
}

func (f *fakeSynth) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

func (f *fakeEventRepo) first(typ string) (models.RemEvent, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, e := range f.appended {
		if e.Type == typ {
			return e, true
		}
	}
	return models.RemEvent{}, false
}

// stalledPublisher holds every Publish until release is closed.
type stalledPublisher struct {
	release chan struct{}
	mu      sync.Mutex
	types   []string
}

func (p *stalledPublisher) Publish(ctx context.Context, e models.RemEvent) error {
	select {
	case <-p.release:
	case <-ctx.Done():
		return ctx.Err()
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.types = append(p.types, e.Type)
	return nil
}

func (p *stalledPublisher) published() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.types...)
}

type fakePublisher struct {
	mu     sync.Mutex
	events []models.RemEvent
}

func (f *fakePublisher) Publish(_ context.Context, e models.RemEvent) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, e)
	return errors.New("redis unavailable")
}

type fakeArchive struct {
	mu      sync.Mutex
	samples map[string]int
	ranges  []HistoryQuery
}

func (f *fakeArchive) Append(deviceID string, samples []models.HeartRateSample) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.samples == nil {
		f.samples = map[string]int{}
	}
	f.samples[deviceID] += len(samples)
	return nil
}

func (f *fakeArchive) Range(deviceID string, from, to time.Time, limit int) ([]models.HeartRateSample, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.ranges = append(f.ranges, HistoryQuery{DeviceID: deviceID, From: from, To: to, Limit: limit})
	return []models.HeartRateSample{{HeartRate: 61, ReceivedAt: from}}, nil
}

type fakeRecorder struct {
	mu          sync.Mutex
	verdicts    map[string]int
	transitions []string
	dispatches  []string
	accepted    int
	skipped     int
	devices     int
}

func (f *fakeRecorder) ObserveVerdict(_, reason string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.verdicts == nil {
		f.verdicts = map[string]int{}
	}
	f.verdicts[reason]++
}

func (f *fakeRecorder) ObserveSamples(accepted, skipped int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.accepted += accepted
	f.skipped += skipped
}

func (f *fakeRecorder) ObserveTransition(tr string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.transitions = append(f.transitions, tr)
}

func (f *fakeRecorder) ObserveDispatch(status string, _ time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.dispatches = append(f.dispatches, status)
}

func (f *fakeRecorder) SetDevices(n int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.devices = n
}

// clock is a manually advanced time source.
type clock struct {
	mu  sync.Mutex
	now time.Time
}

func newClock() *clock {
	return &clock{now: time.Date(2025, 3, 1, 2, 0, 0, 0, time.UTC)}
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}
