package models

import "time"

// HeartRateSample is a single plethysmometer reading. Immutable once created.
type HeartRateSample struct {
	HeartRate  float64   `json:"heart_rate"`  // BPM
	Timestamp  string    `json:"timestamp"`   // producer event time, kept verbatim
	ReceivedAt time.Time `json:"received_at"` // server ingestion time, used for windowing
}

// SensorFlags holds the latest motion and EMG derived flags of a device.
type SensorFlags struct {
	SleepFlag  bool `json:"sleep_flag"`  // from MPU
	AtoniaFlag bool `json:"atonia_flag"` // from EMG
}
