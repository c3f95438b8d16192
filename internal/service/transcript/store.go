package transcript

import (
	"fmt"
	"strings"
	"time"

	"live-transcript-service/internal/models"
	"live-transcript-service/internal/storage"
)

// EmptySentinel is rendered when there is no transcript text.
const EmptySentinel = "Your speech will appear here..."

// State is the accumulated transcript.
//
// Meeting selects the active representation: Segments when true, FinalText
// when false. The inactive representation keeps its content. Interim is the
// live tail of the latest batch and is never persisted.
type State struct {
	FinalText string
	Segments  []models.Segment
	Interim   string
	Meeting   bool
}

func (s State) clone() State {
	c := s
	c.Segments = append([]models.Segment(nil), s.Segments...)
	return c
}

// Store owns a State. Not safe for concurrent use.
type Store struct {
	state  State
	loc    *time.Location
	nextID func() string
}

type Option func(*Store)

// WithLocation sets the zone used for segment timestamps.
func WithLocation(loc *time.Location) Option {
	return func(s *Store) { s.loc = loc }
}

func NewStore(opts ...Option) *Store {
	s := &Store{loc: time.Local}
	for _, o := range opts {
		o(s)
	}
	return s
}

// SetSegmentIDs replaces the segment ID generator, e.g. when a new session begins.
func (s *Store) SetSegmentIDs(next func() string) {
	s.nextID = next
}

// Merge folds a recognition batch into the store.
func (s *Store) Merge(batch models.RecognitionBatch, p Policy, now time.Time) Outcome {
	return Merge(batch, &s.state, p, now, s.nextID)
}

// BeginSession prepares accumulation for a session that the user started.
// Outside meeting mode the current flat text is the seed; in meeting mode the
// flat accumulator starts empty and segments carry on.
func (s *Store) BeginSession(meeting bool) {
	s.state.Interim = ""
	s.state.Meeting = meeting
	if meeting {
		s.state.FinalText = ""
	}
}

// ClearInterim drops the live tail, e.g. when a session ends.
func (s *Store) ClearInterim() {
	s.state.Interim = ""
}

// Text is the transcript as saved and exported, without the empty sentinel.
func (s *Store) Text() string {
	if s.state.Meeting {
		return FormatTranscriptWithTimestamps(s.state.Segments, s.loc)
	}
	return strings.TrimSpace(s.state.FinalText + s.state.Interim)
}

// RenderedText is the display string.
func (s *Store) RenderedText() string {
	if t := s.Text(); t != "" {
		return t
	}
	return EmptySentinel
}

// IsEmpty reports whether there is nothing to copy or download.
func (s *Store) IsEmpty() bool {
	return s.Text() == ""
}

// ApplyManualEdit replaces the flat text with the edited text and makes the
// flat representation active.
func (s *Store) ApplyManualEdit(text string) {
	text = strings.TrimSpace(text)
	if text == EmptySentinel {
		text = ""
	}
	s.state.FinalText = withTrailingSpace(text)
	s.state.Interim = ""
	s.state.Meeting = false
}

// Clear empties both representations.
func (s *Store) Clear() {
	s.state.FinalText = ""
	s.state.Segments = []models.Segment{}
	s.state.Interim = ""
}

// Restore loads persisted content. With meetingChecked and persisted segments
// the segments win over flat text. Returns whether anything was restored.
func (s *Store) Restore(p storage.Persisted, meetingChecked bool) bool {
	if meetingChecked && p.HasSegments && len(p.Segments) > 0 {
		s.state.Segments = append([]models.Segment(nil), p.Segments...)
		texts := make([]string, 0, len(p.Segments))
		for _, seg := range p.Segments {
			texts = append(texts, seg.Text)
		}
		s.state.FinalText = withTrailingSpace(strings.Join(texts, " "))
		s.state.Meeting = true
		return true
	}
	text := strings.TrimSpace(p.Text)
	if p.HasText && text != "" && text != EmptySentinel {
		s.state.FinalText = withTrailingSpace(text)
		s.state.Meeting = false
		return true
	}
	return false
}

// State returns a copy of the current state.
func (s *Store) State() State {
	return s.state.clone()
}

// Meeting reports whether segments are the active representation.
func (s *Store) Meeting() bool {
	return s.state.Meeting
}

// Segments returns a copy of the recorded segments.
func (s *Store) Segments() []models.Segment {
	return append([]models.Segment(nil), s.state.Segments...)
}

// PersistSegments returns the segments to save alongside the text: a copy
// while meeting mode is active, nil otherwise.
func (s *Store) PersistSegments() []models.Segment {
	if !s.state.Meeting {
		return nil
	}
	return append([]models.Segment{}, s.state.Segments...)
}

// FormatTranscriptWithTimestamps renders one "[HH:MM:SS] text" block per
// segment, separated by blank lines.
func FormatTranscriptWithTimestamps(segments []models.Segment, loc *time.Location) string {
	if loc == nil {
		loc = time.Local
	}
	blocks := make([]string, 0, len(segments))
	for _, seg := range segments {
		ts := time.UnixMilli(seg.TimestampMillis).In(loc)
		blocks = append(blocks, fmt.Sprintf("[%s] %s", ts.Format("15:04:05"), seg.Text))
	}
	return strings.Join(blocks, "\n\n")
}

func withTrailingSpace(text string) string {
	if text == "" {
		return ""
	}
	return text + " "
}
