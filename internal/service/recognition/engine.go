// Package recognition defines the interface to speech recognition engines.
package recognition

import (
	"context"
	"errors"

	"live-transcript-service/internal/models"
)

// Error kinds reported through Sink.OnError. Engines may report other kinds.
const (
	KindNotAllowed           = "not-allowed"
	KindNoSpeech             = "no-speech"
	KindAudioCapture         = "audio-capture"
	KindAborted              = "aborted"
	KindLanguageNotSupported = "language-not-supported"
	KindNetwork              = "network"
)

// ErrAlreadyRunning is returned by Start while a session is active.
var ErrAlreadyRunning = errors.New("recognition session already running")

// Settings configure one recognition session.
type Settings struct {
	Language        string
	MaxAlternatives int
	Continuous      bool
	InterimResults  bool
}

// Sink receives engine events. Calls for one session are sequential.
type Sink interface {
	// OnStart is called once audio capture has begun.
	OnStart()

	// OnResult is called with each batch of partial and final results.
	OnResult(batch models.RecognitionBatch)

	// OnError is called when the session fails. OnEnd follows.
	OnError(kind string)

	// OnEnd is called exactly once when a started session ends for any reason.
	OnEnd()
}

// Engine is a speech recognition capability (Google, mock, etc.).
type Engine interface {
	// Name identifies the provider in logs and metrics.
	Name() string

	// Start begins a session. Events for it are delivered to sink until OnEnd.
	Start(ctx context.Context, settings Settings, sink Sink) error

	// Stop asks the active session to halt. It does not wait for OnEnd.
	Stop() error
}
