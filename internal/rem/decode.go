package rem

import (
	"encoding/json"
	"math"
	"time"

	"dream_incubator/internal/models"
)

type rawSample struct {
	HeartRate json.RawMessage `json:"heart_rate"`
	Timestamp json.RawMessage `json:"timestamp"`
}

// DecodeSamples turns raw plethysmometer entries into samples stamped with receivedAt.
// Entries that are not objects, lack heart_rate (or carry it as null), or carry a non-numeric heart_rate are
// skipped individually; the count of skipped entries is returned alongside the rest.
func DecodeSamples(raw []json.RawMessage, receivedAt time.Time) ([]models.HeartRateSample, int) {
	out := make([]models.HeartRateSample, 0, len(raw))
	skipped := 0
	for _, entry := range raw {
		s, ok := decodeSample(entry)
		if !ok {
			skipped++
			continue
		}
		s.ReceivedAt = receivedAt
		out = append(out, s)
	}
	return out, skipped
}

func decodeSample(entry json.RawMessage) (models.HeartRateSample, bool) {
	var rs rawSample
	if err := json.Unmarshal(entry, &rs); err != nil {
		return models.HeartRateSample{}, false
	}
	if len(rs.HeartRate) == 0 || string(rs.HeartRate) == "null" {
		return models.HeartRateSample{}, false
	}
	var hr float64
	if err := json.Unmarshal(rs.HeartRate, &hr); err != nil {
		return models.HeartRateSample{}, false
	}
	if math.IsNaN(hr) || math.IsInf(hr, 0) {
		return models.HeartRateSample{}, false
	}

	// timestamp is informational only; a missing or odd value does not disqualify the sample
	var ts string
	if len(rs.Timestamp) > 0 {
		_ = json.Unmarshal(rs.Timestamp, &ts)
	}
	return models.HeartRateSample{HeartRate: hr, Timestamp: ts}, true
}
