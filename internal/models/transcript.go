// Package models defines the data structures for recognition results and transcript events.
package models

// TranscriptPartial represents an interim transcript result.
type TranscriptPartial struct {
	EventType string `json:"eventType"`
	SessionID string `json:"sessionId"`
	Language  string `json:"language"`
	Timestamp int64  `json:"timestamp"`
	Text      string `json:"text"`
}

// TranscriptFinal represents an accepted final transcript result with confidence score.
type TranscriptFinal struct {
	EventType   string  `json:"eventType"`
	SessionID   string  `json:"sessionId"`
	Language    string  `json:"language"`
	Timestamp   int64   `json:"timestamp"`
	SegmentID   string  `json:"segmentId,omitempty"`
	Text        string  `json:"text"`
	Confidence  float64 `json:"confidence"`
	MeetingMode bool    `json:"meetingMode"`
}

// Event type names carried in the eventType field.
const (
	EventTypePartial = "transcript.partial"
	EventTypeFinal   = "transcript.final"
)
