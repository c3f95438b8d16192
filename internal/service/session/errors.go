package session

import (
	"errors"
	"fmt"

	"live-transcript-service/internal/service/recognition"
)

// Errors returned by controller commands.
var (
	ErrEngineUnavailable = errors.New("speech recognition is not available")
	ErrAlreadyListening  = errors.New("session already active")
	ErrNotListening      = errors.New("no active session")
	ErrInvalidTransition = errors.New("invalid session transition")
	ErrStaleRestart      = errors.New("restart generation is stale")
	ErrNothingToExport   = errors.New("transcript is empty")
	ErrInvalidSettings   = errors.New("invalid settings")
	ErrClosed            = errors.New("controller is not running")
)

// ErrorKind classifies session failures.
type ErrorKind int

const (
	KindUnknown ErrorKind = iota
	KindEngineUnavailable
	KindPermissionDenied
	KindNoSpeechDetected
	KindAudioCaptureFailure
	KindAborted
	KindLanguageNotSupported
	KindNetworkError
)

func (k ErrorKind) String() string {
	switch k {
	case KindEngineUnavailable:
		return "ENGINE_UNAVAILABLE"
	case KindPermissionDenied:
		return "PERMISSION_DENIED"
	case KindNoSpeechDetected:
		return "NO_SPEECH_DETECTED"
	case KindAudioCaptureFailure:
		return "AUDIO_CAPTURE_FAILURE"
	case KindAborted:
		return "ABORTED"
	case KindLanguageNotSupported:
		return "LANGUAGE_NOT_SUPPORTED"
	case KindNetworkError:
		return "NETWORK_ERROR"
	default:
		return "UNKNOWN"
	}
}

// Recoverable kinds may auto-restart in meeting mode.
func (k ErrorKind) Recoverable() bool {
	return k == KindNoSpeechDetected || k == KindNetworkError
}

// FromEngineKind classifies an engine error kind.
func FromEngineKind(kind string) ErrorKind {
	switch kind {
	case recognition.KindNotAllowed:
		return KindPermissionDenied
	case recognition.KindNoSpeech:
		return KindNoSpeechDetected
	case recognition.KindAudioCapture:
		return KindAudioCaptureFailure
	case recognition.KindAborted:
		return KindAborted
	case recognition.KindLanguageNotSupported:
		return KindLanguageNotSupported
	case recognition.KindNetwork:
		return KindNetworkError
	default:
		return KindUnknown
	}
}

// Status lines shown to clients.
const (
	StatusReady            = "Click 'Start Recording' to begin"
	StatusListening        = "Listening..."
	StatusUnavailable      = "Speech recognition is not supported in this environment"
	StatusRestarting       = "Session ended, restarting..."
	StatusRestartFailed    = "Could not restart recognition. Click 'Start Recording' to try again."
	StatusLowConfidence    = "Low confidence result. Please speak clearly."
	StatusRejected         = "Result rejected: confidence below threshold."
	StatusCopied           = "Transcript copied to clipboard"
	StatusCopyFailed       = "Could not copy to clipboard. Please select the text and copy it manually."
	StatusStopped          = "Recording stopped. Click 'Start Recording' to begin again."
	StatusStartFailed      = "Could not start speech recognition. Please try again."
	statusLanguageTemplate = "Language changed to %s"
)

// StatusMessage is the status line for an engine error kind.
func StatusMessage(kind string) string {
	switch kind {
	case recognition.KindNotAllowed:
		return "Microphone access denied. Please allow microphone access."
	case recognition.KindNoSpeech:
		return "No speech detected. Please try again."
	case recognition.KindAudioCapture:
		return "No microphone found. Please check your audio device."
	case recognition.KindAborted:
		return "Speech recognition aborted."
	case recognition.KindLanguageNotSupported:
		return "Selected language is not supported."
	case recognition.KindNetwork:
		return "Network error. Please check your connection."
	default:
		return fmt.Sprintf("Error occurred: %s. Please try again.", kind)
	}
}
