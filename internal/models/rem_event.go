package models

import "time"

// Event types written to the REM event log.
const (
	EventPhaseStart        = "PHASE_START"
	EventPhaseEnd          = "PHASE_END"
	EventReset             = "RESET"
	EventScenariosUploaded = "SCENARIOS_UPLOADED"
	EventCueDispatched     = "CUE_DISPATCHED"
	EventCueFailed         = "CUE_FAILED"
	EventCueSkipped        = "CUE_SKIPPED"
	EventCueDropped        = "CUE_DROPPED"
)

// RemEvent is a single log entry.
type RemEvent struct {
	EventID     string    `json:"event_id"`
	DeviceID    string    `json:"device_id,omitempty"`
	OccurredAt  time.Time `json:"occurred_at"`
	Type        string    `json:"type"`
	Description string    `json:"description"` // human-readable
	Metadata    any       `json:"metadata,omitempty"`
}
