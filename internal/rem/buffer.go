package rem

import (
	"time"

	"dream_incubator/internal/models"
)

// Window is how far back heart-rate samples stay live.
const Window = 15 * time.Minute

// SampleBuffer is the time-windowed heart-rate history of one device.
// It is not safe for concurrent use; the device registry serializes access.
type SampleBuffer struct {
	samples []models.HeartRateSample
}

// NewSampleBuffer returns an empty buffer.
func NewSampleBuffer() *SampleBuffer {
	return &SampleBuffer{samples: make([]models.HeartRateSample, 0, BaselineSamples)}
}

// Append adds samples in arrival order. No deduplication, no range checks.
func (b *SampleBuffer) Append(samples ...models.HeartRateSample) {
	b.samples = append(b.samples, samples...)
}

// Prune drops every sample with ReceivedAt <= now-Window and returns how many were removed.
func (b *SampleBuffer) Prune(now time.Time) int {
	cutoff := now.Add(-Window)
	kept := b.samples[:0]
	for _, s := range b.samples {
		if s.ReceivedAt.After(cutoff) {
			kept = append(kept, s)
		}
	}
	removed := len(b.samples) - len(kept)
	// release references held past the new length
	for i := len(kept); i < len(b.samples); i++ {
		b.samples[i] = models.HeartRateSample{}
	}
	b.samples = kept
	return removed
}

// Samples returns the live buffer. Callers must not modify it.
func (b *SampleBuffer) Samples() []models.HeartRateSample {
	return b.samples
}

// Len is the number of live samples.
func (b *SampleBuffer) Len() int {
	return len(b.samples)
}
