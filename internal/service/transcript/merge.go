// Package transcript holds the transcript state and the rules for merging
// recognition results into it.
package transcript

import (
	"strings"
	"time"

	"live-transcript-service/internal/models"
)

// Policy is the part of the session config the merger reads.
type Policy struct {
	MeetingMode  bool
	HighAccuracy bool
	// ConfidenceThreshold gates finals, only under HighAccuracy.
	ConfidenceThreshold float64
	// LowConfidenceAdvisory flags accepted finals without rejecting them.
	LowConfidenceAdvisory float64
}

// Advisory is a transient notice produced by a merge.
type Advisory int

const (
	AdvisoryNone Advisory = iota
	AdvisoryLowConfidence
	AdvisoryRejected
)

func (a Advisory) String() string {
	switch a {
	case AdvisoryNone:
		return "NONE"
	case AdvisoryLowConfidence:
		return "LOW_CONFIDENCE"
	case AdvisoryRejected:
		return "REJECTED"
	default:
		return "UNKNOWN"
	}
}

// Accepted is one final result that was committed to the state.
type Accepted struct {
	Text          string
	Confidence    float64
	LowConfidence bool
	// Segment is set when the result was recorded in meeting mode.
	Segment *models.Segment
}

// Outcome describes what a merge did.
type Outcome struct {
	Accepted     []Accepted
	Rejected     []models.RecognitionAlternative
	Interim      string
	InterimCount int
	// Advisory is the most severe advisory raised by the batch.
	Advisory Advisory
}

// Mutated reports whether committed state changed.
func (o Outcome) Mutated() bool {
	return len(o.Accepted) > 0
}

func (o *Outcome) raise(a Advisory) {
	if a > o.Advisory {
		o.Advisory = a
	}
}

// SelectAlternative picks the working alternative for a result. Without
// highAccuracy it is always rank 0. With it, the highest confidence wins and
// ties keep the lower rank.
func SelectAlternative(alts []models.RecognitionAlternative, highAccuracy bool) (models.RecognitionAlternative, bool) {
	if len(alts) == 0 {
		return models.RecognitionAlternative{}, false
	}
	best := alts[0]
	if !highAccuracy {
		return best, true
	}
	for _, alt := range alts[1:] {
		if alt.Confidence > best.Confidence {
			best = alt
		}
	}
	return best, true
}

// Merge folds the new results of batch into st. Results before
// batch.ResultIndex are skipped. The interim tail is rebuilt from this batch
// alone. nextID names new segments and may be nil.
func Merge(batch models.RecognitionBatch, st *State, p Policy, now time.Time, nextID func() string) Outcome {
	var out Outcome
	var interim strings.Builder

	start := batch.ResultIndex
	if start < 0 {
		start = 0
	}

	for i := start; i < len(batch.Results); i++ {
		r := batch.Results[i]
		alt, ok := SelectAlternative(r.Alternatives, p.HighAccuracy)
		if !ok {
			continue
		}

		if !r.IsFinal {
			interim.WriteString(alt.Text)
			out.InterimCount++
			continue
		}

		if p.HighAccuracy && alt.Confidence < p.ConfidenceThreshold {
			out.Rejected = append(out.Rejected, alt)
			out.raise(AdvisoryRejected)
			continue
		}

		text := strings.TrimSpace(alt.Text)
		if text == "" {
			continue
		}

		acc := Accepted{Text: text, Confidence: alt.Confidence}
		if p.MeetingMode {
			seg := models.Segment{
				Text:            text,
				TimestampMillis: now.UnixMilli(),
				Confidence:      alt.Confidence,
			}
			if nextID != nil {
				seg.ID = nextID()
			}
			st.Segments = append(st.Segments, seg)
			st.Meeting = true
			acc.Segment = &seg
		} else {
			st.FinalText += text + " "
			st.Meeting = false
		}

		if alt.Confidence < p.LowConfidenceAdvisory {
			acc.LowConfidence = true
			out.raise(AdvisoryLowConfidence)
		}
		out.Accepted = append(out.Accepted, acc)
	}

	st.Interim = interim.String()
	out.Interim = st.Interim
	return out
}
