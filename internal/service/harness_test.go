package service

import (
	"context"
	"encoding/json"
	"fmt"
	"slices"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"dream_incubator/internal/models"
	"dream_incubator/internal/rem"
	"dream_incubator/internal/repository"
)

type harness struct {
	svc       *Service
	events    *fakeEventRepo
	scenarios *fakeScenarioRepo
	synth     *fakeSynth
	pub       *fakePublisher
	archive   *fakeArchive
	rec       *fakeRecorder
	clk       *clock
}

func newHarness(t *testing.T, policy rem.Policy) *harness {
	t.Helper()
	h := &harness{
		events:    &fakeEventRepo{},
		scenarios: &fakeScenarioRepo{},
		synth:     &fakeSynth{},
		pub:       &fakePublisher{},
		archive:   &fakeArchive{},
		rec:       &fakeRecorder{},
		clk:       newClock(),
	}
	h.svc = NewService(&repository.Repository{
		EventRepo:    h.events,
		ScenarioRepo: h.scenarios,
	}, Options{
		DefaultPolicy: policy,
		Dispatch:      DispatcherOptions{Workers: 1, QueueSize: 8},
		Synthesizer:   h.synth,
		Publisher:     h.pub,
		Archive:       h.archive,
		Recorder:      h.rec,
		Now:           h.clk.Now,
	})
	ctx, cancel := context.WithCancel(context.Background())
	require.NoError(t, h.svc.Start(ctx))
	t.Cleanup(func() {
		cancel()
		h.svc.Stop()
	})
	return h
}

// rawHR builds n plethysmometer entries at the given heart rate.
func rawHR(n int, hr float64) []json.RawMessage {
	out := make([]json.RawMessage, n)
	for i := range out {
		out[i] = json.RawMessage(fmt.Sprintf(`{"heart_rate": %g, "timestamp": "t%d"}`, hr, i))
	}
	return out
}

var asleep = &models.SensorFlags{SleepFlag: true, AtoniaFlag: true}

func (h *harness) ingest(t *testing.T, device string, samples []json.RawMessage, flags *models.SensorFlags) models.DetectionResult {
	t.Helper()
	res, err := h.svc.Ingest(context.Background(), IngestInput{DeviceID: device, Samples: samples, Flags: flags})
	require.NoError(t, err)
	return res
}

// waitEvent blocks until the event writer has stored an event of type typ.
func (h *harness) waitEvent(t *testing.T, typ string) {
	t.Helper()
	require.Eventually(t, func() bool {
		return slices.Contains(h.events.types(), typ)
	}, time.Second, 5*time.Millisecond, "event %s never written", typ)
}
