package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"dream_incubator/internal/logger"
	"dream_incubator/internal/models"
)

// ErrSynthesizerMissing is reported for cues queued without a synthesizer.
var ErrSynthesizerMissing = errors.New("synthesizer not configured")

type DispatcherOptions struct {
	Workers   int
	QueueSize int
	Timeout   time.Duration // per synthesis call
	History   int           // results kept for RecentDispatches
}

func (o DispatcherOptions) withDefaults() DispatcherOptions {
	if o.Workers <= 0 {
		o.Workers = 2
	}
	if o.QueueSize <= 0 {
		o.QueueSize = 32
	}
	if o.Timeout <= 0 {
		o.Timeout = 60 * time.Second
	}
	if o.History <= 0 {
		o.History = 100
	}
	return o
}

// SelectScenario picks the entry for a phase: index (phase-1) mod len(entries).
// ok is false for an empty list or a phase below 1.
func SelectScenario(phase int, entries []models.ScenarioEntry) (int, models.ScenarioEntry, bool) {
	if len(entries) == 0 || phase < 1 {
		return 0, models.ScenarioEntry{}, false
	}
	idx := (phase - 1) % len(entries)
	return idx, entries[idx], true
}

// Dispatcher hands scenario cues to the synthesizer on a bounded worker pool so a slow
// or failing synthesis never holds up detection. A full queue drops the cue.
type Dispatcher struct {
	synth Synthesizer
	opts  DispatcherOptions
	log   *logger.Logger
	rec   Recorder

	queue    chan models.DispatchResult
	onResult func(models.DispatchResult)

	mu      sync.Mutex
	history []models.DispatchResult // ring, oldest first once full
	next    int

	wg      sync.WaitGroup
	startMu sync.Mutex
	cancel  context.CancelFunc
}

func NewDispatcher(synth Synthesizer, opts DispatcherOptions, log *logger.Logger, rec Recorder) *Dispatcher {
	opts = opts.withDefaults()
	if log == nil {
		log = logger.Nop()
	}
	if rec == nil {
		rec = nopRecorder{}
	}
	return &Dispatcher{
		synth:   synth,
		opts:    opts,
		log:     log,
		rec:     rec,
		queue:   make(chan models.DispatchResult, opts.QueueSize),
		history: make([]models.DispatchResult, 0, opts.History),
	}
}

// OnResult registers a hook called with every final dispatch outcome.
// Must be set before Start.
func (d *Dispatcher) OnResult(fn func(models.DispatchResult)) {
	d.onResult = fn
}

// Start launches the workers. They stop when ctx is canceled or Stop is called.
func (d *Dispatcher) Start(ctx context.Context) {
	d.startMu.Lock()
	defer d.startMu.Unlock()
	if d.cancel != nil {
		return
	}
	ctx, d.cancel = context.WithCancel(ctx)
	for i := 0; i < d.opts.Workers; i++ {
		d.wg.Add(1)
		go d.worker(ctx)
	}
	d.log.Infow("dispatcher_started", "workers", d.opts.Workers, "queue_size", d.opts.QueueSize)
}

// Stop cancels the workers and waits for in-flight cues. Queued cues are abandoned.
func (d *Dispatcher) Stop() {
	d.startMu.Lock()
	cancel := d.cancel
	d.startMu.Unlock()
	if cancel == nil {
		return
	}
	cancel()
	d.wg.Wait()
}

// OnPhaseStart selects the cue for phase from list and queues it. An empty list or a
// blank entry is recorded and nothing is synthesized.
func (d *Dispatcher) OnPhaseStart(deviceID string, phase int, list *models.ScenarioList) models.DispatchResult {
	r := models.DispatchResult{
		DispatchID: uuid.NewString(),
		DeviceID:   deviceID,
		Phase:      phase,
		At:         time.Now().UTC(),
	}
	if list != nil {
		r.SessionID = list.SessionID
	}

	var entries []models.ScenarioEntry
	if list != nil {
		entries = list.Entries
	}
	idx, entry, ok := SelectScenario(phase, entries)
	if !ok {
		r.Status = models.DispatchNoScenarios
		d.log.Infow("cue_no_scenarios", "device_id", deviceID, "phase", phase)
		d.finish(r, 0)
		return r
	}
	r.Index, r.Entry = idx, entry
	if entry.IsBlank() {
		r.Status = models.DispatchSkipped
		d.log.Infow("cue_skipped_blank", "device_id", deviceID, "phase", phase, "index", idx)
		d.finish(r, 0)
		return r
	}
	return d.enqueue(r)
}

// DispatchAll queues every non-blank entry of list as a phase-0 cue.
func (d *Dispatcher) DispatchAll(list models.ScenarioList) []models.DispatchResult {
	out := make([]models.DispatchResult, 0, len(list.Entries))
	for i, entry := range list.Entries {
		if entry.IsBlank() {
			continue
		}
		out = append(out, d.enqueue(models.DispatchResult{
			DispatchID: uuid.NewString(),
			DeviceID:   list.DeviceID,
			SessionID:  list.SessionID,
			Index:      i,
			Entry:      entry,
			At:         time.Now().UTC(),
		}))
	}
	return out
}

func (d *Dispatcher) enqueue(r models.DispatchResult) models.DispatchResult {
	r.Status = models.DispatchQueued
	select {
	case d.queue <- r:
		return r
	default:
		r.Status = models.DispatchDropped
		r.Error = "dispatch queue full"
		d.log.Warnw("cue_dropped", "device_id", r.DeviceID, "phase", r.Phase, "index", r.Index)
		d.finish(r, 0)
		return r
	}
}

func (d *Dispatcher) worker(ctx context.Context) {
	defer d.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case r := <-d.queue:
			start := time.Now()
			r = d.run(ctx, r)
			d.finish(r, time.Since(start))
		}
	}
}

// run calls the synthesizer with its own timeout; panics and errors become a failed result.
func (d *Dispatcher) run(ctx context.Context, r models.DispatchResult) (out models.DispatchResult) {
	out = r
	defer func() {
		if p := recover(); p != nil {
			out.Status = models.DispatchFailed
			out.Error = fmt.Sprintf("synthesizer panic: %v", p)
			d.log.Errorw("cue_dispatch_panic", "panic", p, "dispatch_id", r.DispatchID)
		}
	}()

	if d.synth == nil {
		out.Status = models.DispatchFailed
		out.Error = ErrSynthesizerMissing.Error()
		return out
	}

	callCtx, cancel := context.WithTimeout(ctx, d.opts.Timeout)
	defer cancel()
	callCtx, span := otel.Tracer(tracerName).Start(callCtx, "cue.synthesize",
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("dispatch.id", r.DispatchID),
			attribute.String("device.id", r.DeviceID),
			attribute.Int("rem.phase", r.Phase),
			attribute.Int("scenario.index", r.Index),
		))
	defer span.End()

	res, err := d.synth.Synthesize(callCtx, r.Entry.KeyWords, r.Entry.Place)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "synthesis failed")
		out.Status = models.DispatchFailed
		out.Error = err.Error()
		d.log.Errorw("cue_dispatch_failed", "err", err, "device_id", r.DeviceID, "phase", r.Phase, "index", r.Index)
		return out
	}
	span.SetAttributes(attribute.String("synthesis.status", res.Status))
	out.Status = models.DispatchDispatched
	out.Synthesis = &res
	d.log.Infow("cue_dispatched", "device_id", r.DeviceID, "phase", r.Phase, "index", r.Index, "synthesis", res.Status)
	return out
}

func (d *Dispatcher) finish(r models.DispatchResult, took time.Duration) {
	r.At = time.Now().UTC()
	d.mu.Lock()
	if len(d.history) < d.opts.History {
		d.history = append(d.history, r)
	} else {
		d.history[d.next] = r
		d.next = (d.next + 1) % d.opts.History
	}
	d.mu.Unlock()

	d.rec.ObserveDispatch(r.Status, took)
	if d.onResult != nil {
		d.onResult(r)
	}
}

// Recent returns up to limit final results, newest first. limit <= 0 returns all kept.
func (d *Dispatcher) Recent(limit int) []models.DispatchResult {
	d.mu.Lock()
	defer d.mu.Unlock()

	n := len(d.history)
	if limit <= 0 || limit > n {
		limit = n
	}
	out := make([]models.DispatchResult, 0, limit)
	// newest sits just before next once the ring has wrapped
	newest := n - 1
	if n == d.opts.History {
		newest = (d.next - 1 + n) % n
	}
	for i := 0; i < limit; i++ {
		out = append(out, d.history[(newest-i+n)%n])
	}
	return out
}
