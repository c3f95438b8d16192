package session

import (
	"time"

	"live-transcript-service/internal/schema"
	"live-transcript-service/internal/service/recognition"
	"live-transcript-service/internal/service/transcript"
)

// Settings are the client-adjustable controls.
type Settings struct {
	Language            string  `json:"language"`
	MeetingMode         bool    `json:"meetingMode"`
	HighAccuracy        bool    `json:"highAccuracy"`
	ConfidenceThreshold float64 `json:"confidenceThreshold"`
}

// Config is the snapshot of Settings a session runs with. Only Language may
// change while the session is active.
type Config struct {
	Language              string
	MaxAlternatives       int
	ConfidenceThreshold   float64
	MeetingMode           bool
	HighAccuracy          bool
	LowConfidenceAdvisory float64
}

// Max alternatives requested from the engine.
const (
	MaxAlternativesDefault      = 5
	MaxAlternativesHighAccuracy = 10
)

// NewConfig snapshots settings for a session.
func NewConfig(s Settings, lowConfidenceAdvisory float64) Config {
	maxAlts := MaxAlternativesDefault
	if s.HighAccuracy {
		maxAlts = MaxAlternativesHighAccuracy
	}
	return Config{
		Language:              s.Language,
		MaxAlternatives:       maxAlts,
		ConfidenceThreshold:   s.ConfidenceThreshold,
		MeetingMode:           s.MeetingMode,
		HighAccuracy:          s.HighAccuracy,
		LowConfidenceAdvisory: lowConfidenceAdvisory,
	}
}

// Validate checks the config against what the engine accepts.
func (c Config) Validate(v *schema.Validator) error {
	if err := v.ValidateLanguage(c.Language); err != nil {
		return err
	}
	if err := v.ValidateConfidence("confidenceThreshold", c.ConfidenceThreshold); err != nil {
		return err
	}
	return v.ValidateMaxAlternatives(c.MaxAlternatives)
}

// Policy is the merge policy for this config.
func (c Config) Policy() transcript.Policy {
	return transcript.Policy{
		MeetingMode:           c.MeetingMode,
		HighAccuracy:          c.HighAccuracy,
		ConfidenceThreshold:   c.ConfidenceThreshold,
		LowConfidenceAdvisory: c.LowConfidenceAdvisory,
	}
}

// EngineSettings are the settings passed to the recognition engine.
func (c Config) EngineSettings() recognition.Settings {
	return recognition.Settings{
		Language:        c.Language,
		MaxAlternatives: c.MaxAlternatives,
		Continuous:      true,
		InterimResults:  true,
	}
}

// Timings hold the restart and advisory delays.
type Timings struct {
	EndedDelay       time.Duration
	NoSpeechDelay    time.Duration
	NetworkDelay     time.Duration
	AdvisoryDuration time.Duration
}

func DefaultTimings() Timings {
	return Timings{
		EndedDelay:       500 * time.Millisecond,
		NoSpeechDelay:    1000 * time.Millisecond,
		NetworkDelay:     2000 * time.Millisecond,
		AdvisoryDuration: 2 * time.Second,
	}
}

// restartDelay returns the delay before an auto-restart after a session end
// or a recoverable error of kind.
func (t Timings) restartDelay(kind ErrorKind, ended bool) time.Duration {
	if ended {
		return t.EndedDelay
	}
	if kind == KindNetworkError {
		return t.NetworkDelay
	}
	return t.NoSpeechDelay
}
