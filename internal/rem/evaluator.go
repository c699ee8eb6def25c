package rem

import (
	"errors"
	"strings"

	"dream_incubator/internal/models"
)

// Canonical policy constants.
const (
	BaselineSamples = 900 // 15 minutes at 1 Hz
	RecentSamples   = 30
	RiseThreshold   = 5.0 // BPM, inclusive
)

// Degraded-data policy constants.
const (
	DegradedMinSamples    = 60
	DegradedRiseThreshold = 3.0 // BPM, inclusive
)

// Gate outcomes, in evaluation order.
const (
	ReasonInsufficientData = "insufficient_data"
	ReasonNotSleeping      = "not_sleeping"
	ReasonNoAtonia         = "no_atonia"
	ReasonNoHRRise         = "no_hr_rise"
	ReasonREM              = "rem"
)

// Policy selects how a history is evaluated.
type Policy string

const (
	// PolicyCanonical requires 900 samples and a 5.0 BPM rise of the last 30 over the last 900.
	PolicyCanonical Policy = "canonical"
	// PolicyDegraded falls back to a 30-vs-30 split with a 3.0 BPM rise when 60..899 samples exist.
	PolicyDegraded Policy = "degraded"
)

var ErrUnknownPolicy = errors.New("unknown evaluation policy: must be canonical or degraded")

// ParsePolicy maps a config or query value to a Policy. Empty means canonical.
func ParsePolicy(s string) (Policy, error) {
	switch Policy(strings.ToLower(strings.TrimSpace(s))) {
	case "", PolicyCanonical:
		return PolicyCanonical, nil
	case PolicyDegraded:
		return PolicyDegraded, nil
	default:
		return "", ErrUnknownPolicy
	}
}

// Verdict carries the decision plus what led to it.
type Verdict struct {
	REM      bool
	Reason   string
	Policy   Policy
	Samples  int
	Baseline float64 // mean of the comparison window; zero when not reached
	Recent   float64 // mean of the last 30 samples; zero when not reached
	Rise     float64
	Degraded bool // true when the reduced window was used
}

// Evaluate runs the canonical policy and returns only the decision.
func Evaluate(history []models.HeartRateSample, sleepFlag, atoniaFlag bool) bool {
	return EvaluateWith(PolicyCanonical, history, sleepFlag, atoniaFlag).REM
}

// EvaluateWith runs the given policy. All gates (data volume, sleep, atonia, HR rise)
// must pass; the first failing gate names the Reason.
func EvaluateWith(p Policy, history []models.HeartRateSample, sleepFlag, atoniaFlag bool) Verdict {
	v := Verdict{Policy: p, Samples: len(history)}

	n := len(history)
	useDegraded := false
	if n < BaselineSamples {
		if p != PolicyDegraded || n < DegradedMinSamples {
			v.Reason = ReasonInsufficientData
			return v
		}
		useDegraded = true
	}
	if !sleepFlag {
		v.Reason = ReasonNotSleeping
		return v
	}
	if !atoniaFlag {
		v.Reason = ReasonNoAtonia
		return v
	}

	threshold := RiseThreshold
	if useDegraded {
		v.Degraded = true
		threshold = DegradedRiseThreshold
		v.Baseline = meanHR(history[n-2*RecentSamples : n-RecentSamples])
	} else {
		v.Baseline = meanHR(history[n-BaselineSamples:])
	}
	if n < RecentSamples {
		v.Reason = ReasonInsufficientData
		return v
	}
	v.Recent = meanHR(history[n-RecentSamples:])
	v.Rise = v.Recent - v.Baseline

	if v.Rise >= threshold {
		v.REM = true
		v.Reason = ReasonREM
		return v
	}
	v.Reason = ReasonNoHRRise
	return v
}

func meanHR(samples []models.HeartRateSample) float64 {
	if len(samples) == 0 {
		return 0
	}
	var sum float64
	for _, s := range samples {
		sum += s.HeartRate
	}
	return sum / float64(len(samples))
}
