package mock

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"live-transcript-service/internal/models"
	"live-transcript-service/internal/service/recognition"
)

// testSink implements recognition.Sink for testing
type testSink struct {
	mu      sync.Mutex
	starts  int
	batches []models.RecognitionBatch
	errors  []string
	ends    int
	done    chan struct{}
}

func newTestSink() *testSink {
	return &testSink{done: make(chan struct{})}
}

func (s *testSink) OnStart() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.starts++
}

func (s *testSink) OnResult(batch models.RecognitionBatch) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.batches = append(s.batches, batch)
}

func (s *testSink) OnError(kind string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.errors = append(s.errors, kind)
}

func (s *testSink) OnEnd() {
	s.mu.Lock()
	s.ends++
	s.mu.Unlock()
	close(s.done)
}

func (s *testSink) wait(t *testing.T) {
	t.Helper()
	select {
	case <-s.done:
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for OnEnd")
	}
}

func (s *testSink) finals() []models.RecognitionResult {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.RecognitionResult
	for _, b := range s.batches {
		for _, r := range b.Results[b.ResultIndex:] {
			if r.IsFinal {
				out = append(out, r)
			}
		}
	}
	return out
}

var script = []SimulatedUtterance{
	{
		Partials:     []string{"he", "hello"},
		Alternatives: []models.RecognitionAlternative{{Text: "hello", Confidence: 0.9}, {Text: "yellow", Confidence: 0.3}},
	},
	{
		Partials:     []string{"wor"},
		Alternatives: []models.RecognitionAlternative{{Text: "world", Confidence: 0.8}},
	},
}

func TestEngine_New(t *testing.T) {
	e := New(Options{})
	if e == nil {
		t.Fatal("expected non-nil engine")
	}
	if len(e.opts.Utterances) != len(DefaultUtterances) {
		t.Error("expected default utterances")
	}
	if e.opts.Interval <= 0 {
		t.Error("expected positive default interval")
	}
	if e.Name() != "mock" {
		t.Errorf("expected name 'mock', got %q", e.Name())
	}
}

func TestEngine_PlaysScriptThenEnds(t *testing.T) {
	e := New(Options{Utterances: script, Interval: time.Millisecond})
	sink := newTestSink()

	if err := e.Start(context.Background(), recognition.Settings{InterimResults: true, MaxAlternatives: 5}, sink); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	sink.wait(t)

	if sink.starts != 1 || sink.ends != 1 {
		t.Errorf("expected one start and one end, got %d/%d", sink.starts, sink.ends)
	}
	// 3 partials + 2 finals
	if len(sink.batches) != 5 {
		t.Fatalf("expected 5 batches, got %d", len(sink.batches))
	}

	finals := sink.finals()
	if len(finals) != 2 || finals[0].Alternatives[0].Text != "hello" || finals[1].Alternatives[0].Text != "world" {
		t.Errorf("unexpected finals: %+v", finals)
	}
	if len(sink.errors) != 0 {
		t.Errorf("expected no errors, got %v", sink.errors)
	}
}

func TestEngine_ResendsPriorFinals(t *testing.T) {
	e := New(Options{Utterances: script, Interval: time.Millisecond})
	sink := newTestSink()
	e.Start(context.Background(), recognition.Settings{InterimResults: true}, sink)
	sink.wait(t)

	last := sink.batches[len(sink.batches)-1]
	if last.ResultIndex != 1 || len(last.Results) != 2 {
		t.Fatalf("expected prior final resent before the new one, got %+v", last)
	}
	if !last.Results[0].IsFinal || last.Results[0].Alternatives[0].Text != "hello" {
		t.Errorf("expected first result to be the earlier final, got %+v", last.Results[0])
	}
}

func TestEngine_WithoutInterimResults(t *testing.T) {
	e := New(Options{Utterances: script, Interval: time.Millisecond})
	sink := newTestSink()
	e.Start(context.Background(), recognition.Settings{}, sink)
	sink.wait(t)

	if len(sink.batches) != 2 {
		t.Errorf("expected only final batches, got %d", len(sink.batches))
	}
}

func TestEngine_MaxAlternativesTruncates(t *testing.T) {
	e := New(Options{Utterances: script[:1], Interval: time.Millisecond})
	sink := newTestSink()
	e.Start(context.Background(), recognition.Settings{MaxAlternatives: 1}, sink)
	sink.wait(t)

	finals := sink.finals()
	if len(finals) != 1 || len(finals[0].Alternatives) != 1 {
		t.Errorf("expected a single alternative, got %+v", finals)
	}
}

func TestEngine_PerSessionCyclesScript(t *testing.T) {
	e := New(Options{Utterances: script, PerSession: 1, Interval: time.Millisecond})

	first := newTestSink()
	e.Start(context.Background(), recognition.Settings{}, first)
	first.wait(t)

	second := newTestSink()
	e.Start(context.Background(), recognition.Settings{}, second)
	second.wait(t)

	if got := first.finals()[0].Alternatives[0].Text; got != "hello" {
		t.Errorf("expected first session to play 'hello', got %q", got)
	}
	if got := second.finals()[0].Alternatives[0].Text; got != "world" {
		t.Errorf("expected second session to play 'world', got %q", got)
	}
	if e.Starts() != 2 {
		t.Errorf("expected 2 starts, got %d", e.Starts())
	}
}

func TestEngine_EndWithError(t *testing.T) {
	e := New(Options{Utterances: script[:1], Interval: time.Millisecond, EndWithError: recognition.KindNoSpeech})
	sink := newTestSink()
	e.Start(context.Background(), recognition.Settings{}, sink)
	sink.wait(t)

	if len(sink.errors) != 1 || sink.errors[0] != recognition.KindNoSpeech {
		t.Errorf("expected no-speech error, got %v", sink.errors)
	}
	if sink.ends != 1 {
		t.Errorf("expected OnEnd after the error, got %d", sink.ends)
	}
}

func TestEngine_StopEndsWithoutError(t *testing.T) {
	e := New(Options{Utterances: script, Interval: time.Hour, EndWithError: recognition.KindNetwork})
	sink := newTestSink()
	e.Start(context.Background(), recognition.Settings{}, sink)

	if err := e.Stop(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	sink.wait(t)

	if len(sink.errors) != 0 {
		t.Errorf("expected no error after stop, got %v", sink.errors)
	}
	if len(sink.batches) != 0 {
		t.Errorf("expected no batches, got %d", len(sink.batches))
	}
}

func TestEngine_StartWhileRunning(t *testing.T) {
	e := New(Options{Utterances: script, Interval: time.Hour})
	sink := newTestSink()
	e.Start(context.Background(), recognition.Settings{}, sink)
	defer func() {
		e.Stop()
		sink.wait(t)
	}()

	err := e.Start(context.Background(), recognition.Settings{}, newTestSink())
	if !errors.Is(err, recognition.ErrAlreadyRunning) {
		t.Errorf("expected ErrAlreadyRunning, got %v", err)
	}
}

func TestEngine_StopIdle(t *testing.T) {
	e := New(Options{})
	if err := e.Stop(); err != nil {
		t.Errorf("expected stop on idle engine to succeed, got %v", err)
	}
}

func TestEngine_StartRightAfterStop(t *testing.T) {
	e := New(Options{Utterances: script, Interval: time.Hour})

	var sinks []*testSink
	for i := 0; i < 50; i++ {
		sink := newTestSink()
		if err := e.Start(context.Background(), recognition.Settings{}, sink); err != nil {
			t.Fatalf("start %d after stop: %v", i, err)
		}
		sinks = append(sinks, sink)
		if err := e.Stop(); err != nil {
			t.Fatalf("stop %d: %v", i, err)
		}
	}
	for _, sink := range sinks {
		sink.wait(t)
	}
	if got := e.Starts(); got != 50 {
		t.Errorf("expected 50 starts, got %d", got)
	}
}

func TestEngine_LateEndKeepsNewerRunActive(t *testing.T) {
	e := New(Options{Utterances: script, Interval: time.Hour})

	first := newTestSink()
	e.Start(context.Background(), recognition.Settings{}, first)
	e.Stop()

	second := newTestSink()
	if err := e.Start(context.Background(), recognition.Settings{}, second); err != nil {
		t.Fatalf("restart: %v", err)
	}
	defer func() {
		e.Stop()
		second.wait(t)
	}()

	// The first run's cleanup must not release the second run.
	first.wait(t)
	err := e.Start(context.Background(), recognition.Settings{}, newTestSink())
	if !errors.Is(err, recognition.ErrAlreadyRunning) {
		t.Errorf("expected ErrAlreadyRunning while second run is active, got %v", err)
	}
}
