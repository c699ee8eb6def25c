package models

import "time"

// HRStats are aggregate heart-rate statistics over the live buffer.
type HRStats struct {
	TotalSamples  int     `json:"total_samples"`
	AvgHRAll      float64 `json:"avg_hr_all"`
	AvgHRRecent   float64 `json:"avg_hr_recent"`
	MinHR         float64 `json:"min_hr"`
	MaxHR         float64 `json:"max_hr"`
	RecentSamples int     `json:"recent_samples"`
}

// DeviceStatus is the read-only snapshot served to the mobile client.
type DeviceStatus struct {
	DeviceID        string    `json:"device_id"`
	RemDetected     bool      `json:"rem_detected"`
	SleepDetected   bool      `json:"sleep_detected"`
	AtoniaDetected  bool      `json:"atonia_detected"`
	CurrentRemPhase int       `json:"current_rem_phase"`
	PhasesInSession int       `json:"phases_in_session"`
	LastUpdate      time.Time `json:"last_update"`
	HRStats         HRStats   `json:"hr_stats"`
}

// DetectionResult is returned to the device after each packet.
type DetectionResult struct {
	DeviceID        string    `json:"device_id"`
	Timestamp       time.Time `json:"timestamp"`
	RemDetected     bool      `json:"rem_detected"`
	CurrentRemPhase int       `json:"current_rem_phase"`
	Policy          string    `json:"policy"`
	Reason          string    `json:"reason"`
	Transition      string    `json:"transition,omitempty"` // phase_start | phase_end
	SamplesAccepted int       `json:"samples_accepted"`
	SamplesSkipped  int       `json:"samples_skipped"`
	TotalHRHistory  int       `json:"total_hr_history"`
}
