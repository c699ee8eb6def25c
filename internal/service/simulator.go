package service

import (
	"context"
	"encoding/json"
	"time"

	"dream_incubator/internal/logger"
	"dream_incubator/internal/models"
)

const defaultSamplesPerTick = 30

// SimulatorOptions configures the scripted wearable.
type SimulatorOptions struct {
	DeviceID       string
	SamplesPerTick int
}

// simStage is one segment of the night script, measured in ticks.
type simStage struct {
	name   string
	ticks  int
	hr     float64
	sleep  bool
	atonia bool
}

// nightScript walks a device from wakefulness through a full REM episode and out again.
// The baseline stage fills the 900-sample window before the HR boost.
var nightScript = []simStage{
	{name: "awake", ticks: 4, hr: 72},
	{name: "sleep", ticks: 6, hr: 62, sleep: true},
	{name: "atonia_baseline", ticks: 30, hr: 60, sleep: true, atonia: true},
	{name: "hr_boost", ticks: 4, hr: 70, sleep: true, atonia: true},
	{name: "recovery", ticks: 6, hr: 58, sleep: true, atonia: true},
}

// SimulatorService feeds nightScript packets into the detection pipeline.
type SimulatorService struct {
	detection Detection
	opts      SimulatorOptions
	log       *logger.Logger
	step      int
}

// NewSimulatorService returns a simulator with defaults.
func NewSimulatorService(detection Detection, opts SimulatorOptions, log *logger.Logger) *SimulatorService {
	if opts.DeviceID == "" {
		opts.DeviceID = "simulated-wearable"
	}
	if opts.SamplesPerTick <= 0 {
		opts.SamplesPerTick = defaultSamplesPerTick
	}
	if log == nil {
		log = logger.Nop()
	}
	return &SimulatorService{detection: detection, opts: opts, log: log}
}

// Run ticks at the given interval until ctx is canceled.
func (s *SimulatorService) Run(ctx context.Context, tick time.Duration) {
	s.log.Infow("simulator_started", "device_id", s.opts.DeviceID, "tick", tick)
	t := time.NewTicker(tick)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			s.log.Infow("simulator_stopped", "device_id", s.opts.DeviceID)
			return
		case now := <-t.C:
			if _, err := s.Step(ctx, now); err != nil {
				s.log.Errorw("simulator_step_failed", "err", err, "device_id", s.opts.DeviceID)
			}
		}
	}
}

func scriptLength() int {
	n := 0
	for _, st := range nightScript {
		n += st.ticks
	}
	return n
}

func stageAt(step int) simStage {
	step %= scriptLength()
	for _, st := range nightScript {
		if step < st.ticks {
			return st
		}
		step -= st.ticks
	}
	return nightScript[len(nightScript)-1]
}

// Step sends the next scripted packet and advances the script, looping at the end.
func (s *SimulatorService) Step(ctx context.Context, now time.Time) (models.DetectionResult, error) {
	st := stageAt(s.step)
	s.step++

	raw := make([]json.RawMessage, 0, s.opts.SamplesPerTick)
	for i := 0; i < s.opts.SamplesPerTick; i++ {
		// zero-mean wobble over every 3 samples
		hr := st.hr + float64(i%3-1)*0.5
		b, err := json.Marshal(map[string]any{
			"heart_rate": hr,
			"timestamp":  now.Add(time.Duration(i) * time.Second).UTC().Format(time.RFC3339),
		})
		if err != nil {
			return models.DetectionResult{}, err
		}
		raw = append(raw, b)
	}

	res, err := s.detection.Ingest(ctx, IngestInput{
		DeviceID: s.opts.DeviceID,
		Samples:  raw,
		Flags:    &models.SensorFlags{SleepFlag: st.sleep, AtoniaFlag: st.atonia},
	})
	if err != nil {
		return res, err
	}
	s.log.Debugw("simulator_step", "stage", st.name, "rem_detected", res.RemDetected, "phase", res.CurrentRemPhase)
	return res, nil
}
