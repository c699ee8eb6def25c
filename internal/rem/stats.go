package rem

import "dream_incubator/internal/models"

// Stats summarizes a history the way the status endpoints report it.
func Stats(history []models.HeartRateSample) models.HRStats {
	if len(history) == 0 {
		return models.HRStats{}
	}
	st := models.HRStats{
		TotalSamples: len(history),
		MinHR:        history[0].HeartRate,
		MaxHR:        history[0].HeartRate,
		AvgHRAll:     meanHR(history),
	}
	for _, s := range history[1:] {
		if s.HeartRate < st.MinHR {
			st.MinHR = s.HeartRate
		}
		if s.HeartRate > st.MaxHR {
			st.MaxHR = s.HeartRate
		}
	}
	if len(history) >= RecentSamples {
		st.RecentSamples = RecentSamples
		st.AvgHRRecent = meanHR(history[len(history)-RecentSamples:])
	}
	return st
}
