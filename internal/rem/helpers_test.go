package rem

import (
	"time"

	"dream_incubator/internal/models"
)

var t0 = time.Date(2025, 3, 1, 2, 0, 0, 0, time.UTC)

// series builds n samples at the given HR, received one second apart starting at start.
func series(n int, hr float64, start time.Time) []models.HeartRateSample {
	out := make([]models.HeartRateSample, n)
	for i := range out {
		out[i] = models.HeartRateSample{HeartRate: hr, ReceivedAt: start.Add(time.Duration(i) * time.Second)}
	}
	return out
}

func concat(parts ...[]models.HeartRateSample) []models.HeartRateSample {
	var out []models.HeartRateSample
	for _, p := range parts {
		out = append(out, p...)
	}
	return out
}
