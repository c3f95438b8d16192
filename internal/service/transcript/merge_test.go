package transcript

import (
	"fmt"
	"strings"
	"testing"
	"time"

	"live-transcript-service/internal/models"
)

func alt(text string, conf float64) models.RecognitionAlternative {
	return models.RecognitionAlternative{Text: text, Confidence: conf}
}

func final(alts ...models.RecognitionAlternative) models.RecognitionResult {
	return models.RecognitionResult{Alternatives: alts, IsFinal: true}
}

func interim(alts ...models.RecognitionAlternative) models.RecognitionResult {
	return models.RecognitionResult{Alternatives: alts}
}

func batch(results ...models.RecognitionResult) models.RecognitionBatch {
	return models.RecognitionBatch{Results: results}
}

var flatPolicy = Policy{ConfidenceThreshold: 0.5, LowConfidenceAdvisory: 0.7}

func TestSelectAlternative(t *testing.T) {
	alts := []models.RecognitionAlternative{alt("a", 0.5), alt("b", 0.9), alt("c", 0.9)}

	tests := []struct {
		name         string
		alts         []models.RecognitionAlternative
		highAccuracy bool
		want         string
		wantOK       bool
	}{
		{"default takes rank 0", alts, false, "a", true},
		{"high accuracy takes best", alts, true, "b", true},
		{"ties keep earliest", []models.RecognitionAlternative{alt("x", 0.8), alt("y", 0.8)}, true, "x", true},
		{"empty", nil, true, "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := SelectAlternative(tt.alts, tt.highAccuracy)
			if ok != tt.wantOK || got.Text != tt.want {
				t.Errorf("got (%q, %v), want (%q, %v)", got.Text, ok, tt.want, tt.wantOK)
			}
		})
	}
}

func TestMerge_InterimOnly(t *testing.T) {
	s := NewStore()
	out := s.Merge(batch(interim(alt("hello", 0.9))), flatPolicy, time.Now())

	if out.Mutated() {
		t.Error("interim results must not mutate committed state")
	}
	if got := s.RenderedText(); got != "hello" {
		t.Errorf("expected rendered 'hello', got %q", got)
	}
	if s.State().FinalText != "" {
		t.Errorf("expected no final text, got %q", s.State().FinalText)
	}
}

func TestMerge_FinalsConcatenateInArrivalOrder(t *testing.T) {
	s := NewStore()
	texts := []string{"  hello there ", "general", "kenobi  "}
	for _, txt := range texts {
		s.Merge(batch(final(alt(txt, 0.95))), flatPolicy, time.Now())
	}

	want := "hello there general kenobi"
	if got := s.RenderedText(); got != want {
		t.Errorf("expected %q, got %q", want, got)
	}
}

func TestMerge_InterimTailReplacedEachBatch(t *testing.T) {
	s := NewStore()
	s.Merge(batch(final(alt("one", 0.9)), interim(alt(" tw", 0.5))), flatPolicy, time.Now())
	if got := s.RenderedText(); got != "one  tw" {
		t.Errorf("expected final plus interim, got %q", got)
	}

	s.Merge(models.RecognitionBatch{ResultIndex: 1, Results: []models.RecognitionResult{
		final(alt("one", 0.9)),
		final(alt("two", 0.9)),
	}}, flatPolicy, time.Now())

	if got := s.RenderedText(); got != "one two" {
		t.Errorf("expected interim replaced by final, got %q", got)
	}
}

func TestMerge_SkipsResultsBeforeIndex(t *testing.T) {
	s := NewStore()
	b := models.RecognitionBatch{ResultIndex: 2, Results: []models.RecognitionResult{
		final(alt("old one", 0.9)),
		final(alt("old two", 0.9)),
		final(alt("new", 0.9)),
	}}
	out := s.Merge(b, flatPolicy, time.Now())

	if len(out.Accepted) != 1 || out.Accepted[0].Text != "new" {
		t.Errorf("expected only the new result, got %+v", out.Accepted)
	}
}

func TestMerge_NegativeIndexAndEmptyAlternatives(t *testing.T) {
	s := NewStore()
	b := models.RecognitionBatch{ResultIndex: -3, Results: []models.RecognitionResult{
		{IsFinal: true},
		final(alt("kept", 0.9)),
		final(alt("   ", 0.9)),
	}}
	out := s.Merge(b, flatPolicy, time.Now())

	if len(out.Accepted) != 1 {
		t.Fatalf("expected one accepted result, got %+v", out.Accepted)
	}
	if got := s.RenderedText(); got != "kept" {
		t.Errorf("expected 'kept', got %q", got)
	}
}

func TestMerge_HighAccuracyRejectsBelowThreshold(t *testing.T) {
	s := NewStore()
	p := Policy{HighAccuracy: true, ConfidenceThreshold: 0.8, LowConfidenceAdvisory: 0.7}
	s.Merge(batch(final(alt("keep me", 0.95))), p, time.Now())
	before := s.State()

	out := s.Merge(batch(final(alt("mumble", 0.4), alt("mumbles", 0.6))), p, time.Now())

	if out.Mutated() {
		t.Error("rejected result must not mutate state")
	}
	if out.Advisory != AdvisoryRejected {
		t.Errorf("expected rejected advisory, got %v", out.Advisory)
	}
	if len(out.Rejected) != 1 || out.Rejected[0].Text != "mumbles" {
		t.Errorf("expected best alternative recorded as rejected, got %+v", out.Rejected)
	}
	if s.State().FinalText != before.FinalText {
		t.Errorf("state changed: %q -> %q", before.FinalText, s.State().FinalText)
	}
	if got := s.RenderedText(); got != "keep me" {
		t.Errorf("expected rendered text unchanged, got %q", got)
	}
}

func TestMerge_ThresholdIgnoredWithoutHighAccuracy(t *testing.T) {
	s := NewStore()
	p := Policy{ConfidenceThreshold: 0.9, LowConfidenceAdvisory: 0.7}
	out := s.Merge(batch(final(alt("quiet", 0.3), alt("louder", 0.95))), p, time.Now())

	if len(out.Accepted) != 1 || out.Accepted[0].Text != "quiet" {
		t.Fatalf("expected rank 0 accepted, got %+v", out.Accepted)
	}
	if !out.Accepted[0].LowConfidence || out.Advisory != AdvisoryLowConfidence {
		t.Errorf("expected low confidence advisory, got %+v", out)
	}
}

func TestMerge_HighAccuracyScansInterims(t *testing.T) {
	s := NewStore()
	p := Policy{HighAccuracy: true, ConfidenceThreshold: 0.5, LowConfidenceAdvisory: 0.7}
	s.Merge(batch(interim(alt("wreck a nice", 0.2), alt("recognize", 0.8))), p, time.Now())

	if got := s.RenderedText(); got != "recognize" {
		t.Errorf("expected best interim alternative, got %q", got)
	}
}

func TestMerge_AdvisorySeverity(t *testing.T) {
	s := NewStore()
	p := Policy{HighAccuracy: true, ConfidenceThreshold: 0.5, LowConfidenceAdvisory: 0.7}
	out := s.Merge(batch(
		final(alt("rejected", 0.2)),
		final(alt("shaky", 0.6)),
	), p, time.Now())

	if out.Advisory != AdvisoryRejected {
		t.Errorf("expected rejected to outrank low confidence, got %v", out.Advisory)
	}
	if len(out.Accepted) != 1 || !out.Accepted[0].LowConfidence {
		t.Errorf("expected the shaky result accepted with advisory, got %+v", out.Accepted)
	}
}

func TestMerge_MeetingModeCreatesSegments(t *testing.T) {
	n := 0
	s := NewStore(WithLocation(time.UTC))
	s.SetSegmentIDs(func() string {
		n++
		return fmt.Sprintf("sess-seg-%d", n)
	})
	p := Policy{MeetingMode: true, LowConfidenceAdvisory: 0.7}

	t1 := time.Date(2024, 3, 1, 9, 5, 7, 0, time.UTC)
	t2 := t1.Add(75 * time.Second)
	s.Merge(batch(final(alt("first point", 0.9))), p, t1)
	out := s.Merge(batch(final(alt(" second point ", 0.8)), interim(alt("ignored", 0.5))), p, t2)

	segs := s.Segments()
	if len(segs) != 2 {
		t.Fatalf("expected 2 segments, got %d", len(segs))
	}
	if segs[0].ID != "sess-seg-1" || segs[1].ID != "sess-seg-2" {
		t.Errorf("unexpected ids: %q %q", segs[0].ID, segs[1].ID)
	}
	if segs[1].Text != "second point" || segs[1].TimestampMillis != t2.UnixMilli() || segs[1].Confidence != 0.8 {
		t.Errorf("unexpected segment: %+v", segs[1])
	}
	if out.Accepted[0].Segment == nil || out.Accepted[0].Segment.ID != "sess-seg-2" {
		t.Errorf("expected outcome to carry the new segment, got %+v", out.Accepted[0])
	}
	if s.State().Interim != "ignored" {
		t.Errorf("expected interim tail computed, got %q", s.State().Interim)
	}

	want := "[09:05:07] first point\n\n[09:06:22] second point"
	if got := s.RenderedText(); got != want {
		t.Errorf("expected %q, got %q", want, got)
	}
	if s.State().FinalText != "" {
		t.Errorf("meeting mode must not touch flat text, got %q", s.State().FinalText)
	}
}

func TestFormatTranscriptWithTimestamps(t *testing.T) {
	t1 := time.Date(2024, 1, 1, 13, 0, 1, 0, time.UTC)
	segs := []models.Segment{
		{Text: "first point", TimestampMillis: t1.UnixMilli()},
		{Text: "second point", TimestampMillis: t1.Add(time.Hour).UnixMilli()},
	}

	got := FormatTranscriptWithTimestamps(segs, time.UTC)
	blocks := strings.Split(got, "\n\n")
	if len(blocks) != 2 {
		t.Fatalf("expected two blocks separated by a blank line, got %q", got)
	}
	if blocks[0] != "[13:00:01] first point" || blocks[1] != "[14:00:01] second point" {
		t.Errorf("unexpected blocks: %q", blocks)
	}
	if FormatTranscriptWithTimestamps(nil, nil) != "" {
		t.Error("expected empty output for no segments")
	}
}

func TestAdvisory_String(t *testing.T) {
	tests := []struct {
		a    Advisory
		want string
	}{
		{AdvisoryNone, "NONE"},
		{AdvisoryLowConfidence, "LOW_CONFIDENCE"},
		{AdvisoryRejected, "REJECTED"},
		{Advisory(9), "UNKNOWN"},
	}
	for _, tt := range tests {
		if got := tt.a.String(); got != tt.want {
			t.Errorf("Advisory(%d).String() = %q, want %q", tt.a, got, tt.want)
		}
	}
}
