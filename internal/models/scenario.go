package models

import (
	"strings"
	"time"
)

// ScenarioEntry is one dream scenario uploaded by the mobile client.
type ScenarioEntry struct {
	KeyWords string `json:"key_words"`
	Place    string `json:"place"`
}

// IsBlank reports whether both fields are empty after trimming.
func (e ScenarioEntry) IsBlank() bool {
	return strings.TrimSpace(e.KeyWords) == "" && strings.TrimSpace(e.Place) == ""
}

// ScenarioList is the ordered list owned by a mobile session. Replaced wholesale on upload.
type ScenarioList struct {
	SessionID  string          `json:"session_id"`
	DeviceID   string          `json:"device_id,omitempty"`
	Entries    []ScenarioEntry `json:"dream_scenarios"`
	UploadedAt time.Time       `json:"uploaded_at"`
}

// Dispatch statuses.
const (
	DispatchQueued      = "queued"
	DispatchDispatched  = "dispatched"
	DispatchFailed      = "failed"
	DispatchSkipped     = "skipped"
	DispatchNoScenarios = "no_scenarios"
	DispatchDropped     = "dropped"
)

// DispatchResult records the outcome of one cue dispatch attempt.
type DispatchResult struct {
	DispatchID string           `json:"dispatch_id"`
	DeviceID   string           `json:"device_id,omitempty"`
	SessionID  string           `json:"session_id,omitempty"`
	Phase      int              `json:"phase"` // 0 for eager dispatches at upload time
	Index      int              `json:"index"`
	Entry      ScenarioEntry    `json:"entry"`
	Status     string           `json:"status"`
	Error      string           `json:"error,omitempty"`
	Synthesis  *SynthesisResult `json:"synthesis,omitempty"`
	At         time.Time        `json:"at"`
}

// SynthesisResult is what the audio-synthesis collaborator reports back.
type SynthesisResult struct {
	Status    string   `json:"status"` // success | text_only
	Narration string   `json:"narration,omitempty"`
	AudioRefs []string `json:"audio_refs,omitempty"`
}
