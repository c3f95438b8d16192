// Package mock provides a scripted recognition engine for development and tests.
// It replays utterances as browser-style batches: earlier finals are resent
// with a ResultIndex pointing at the first new result, followed by growing
// interim text and one final with ranked alternatives.
package mock

import (
	"context"
	"sync"
	"time"

	"live-transcript-service/internal/models"
	"live-transcript-service/internal/service/recognition"
)

// SimulatedUtterance is one scripted utterance.
type SimulatedUtterance struct {
	Partials     []string                        // Progressive interim transcripts
	Alternatives []models.RecognitionAlternative // Ranked final alternatives
}

// DefaultUtterances provides sample utterances for simulation.
var DefaultUtterances = []SimulatedUtterance{
	{
		Partials: []string{"let's", "let's start", "let's start the meeting"},
		Alternatives: []models.RecognitionAlternative{
			{Text: "let's start the meeting", Confidence: 0.94},
			{Text: "lets start the meeting", Confidence: 0.81},
		},
	},
	{
		Partials: []string{"first", "first item is", "first item is the budget"},
		Alternatives: []models.RecognitionAlternative{
			{Text: "first item is the budget", Confidence: 0.91},
			{Text: "first item is the budgie", Confidence: 0.42},
		},
	},
	{
		Partials: []string{"we need", "we need to cut", "we need to cut costs"},
		Alternatives: []models.RecognitionAlternative{
			{Text: "we need to cut cost", Confidence: 0.58},
			{Text: "we need to cut costs", Confidence: 0.66},
		},
	},
	{
		Partials: []string{"any", "any questions"},
		Alternatives: []models.RecognitionAlternative{
			{Text: "any questions", Confidence: 0.97},
		},
	},
}

// Options configure the mock engine.
type Options struct {
	Utterances []SimulatedUtterance
	// PerSession is how many utterances a session plays before it ends; 0 plays all.
	PerSession int
	// Interval is the delay between emitted batches.
	Interval time.Duration
	// EndWithError, if set, is reported through OnError before OnEnd.
	EndWithError string
}

// Engine implements recognition.Engine with scripted results.
type Engine struct {
	opts Options

	mu      sync.Mutex
	next    int // next utterance, cycles through the script
	running bool
	cancel  context.CancelFunc
	current uint64 // token of the active run
	starts  int
}

// New creates a mock engine. Zero options use DefaultUtterances at 200ms.
func New(opts Options) *Engine {
	if len(opts.Utterances) == 0 {
		opts.Utterances = DefaultUtterances
	}
	if opts.Interval <= 0 {
		opts.Interval = 200 * time.Millisecond
	}
	return &Engine{opts: opts}
}

func (e *Engine) Name() string { return "mock" }

// Start plays the next utterances of the script to sink.
func (e *Engine) Start(ctx context.Context, settings recognition.Settings, sink recognition.Sink) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.running {
		return recognition.ErrAlreadyRunning
	}

	count := e.opts.PerSession
	if count <= 0 || count > len(e.opts.Utterances) {
		count = len(e.opts.Utterances)
	}
	script := make([]SimulatedUtterance, 0, count)
	for i := 0; i < count; i++ {
		script = append(script, e.opts.Utterances[(e.next+i)%len(e.opts.Utterances)])
	}
	e.next = (e.next + count) % len(e.opts.Utterances)

	sctx, cancel := context.WithCancel(context.Background())
	e.cancel = cancel
	e.running = true
	e.starts++
	e.current++

	go e.run(sctx, e.current, script, settings, sink)
	return nil
}

// Stop halts the active session. OnEnd follows without an error, and the
// engine accepts a new Start immediately.
func (e *Engine) Stop() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.cancel != nil {
		e.cancel()
	}
	e.release()
	return nil
}

// release marks the engine idle. Callers hold mu.
func (e *Engine) release() {
	e.running = false
	e.cancel = nil
}

// Starts returns how many sessions have been started.
func (e *Engine) Starts() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.starts
}

func (e *Engine) run(ctx context.Context, token uint64, script []SimulatedUtterance, settings recognition.Settings, sink recognition.Sink) {
	defer func() {
		e.mu.Lock()
		if e.current == token {
			e.release()
		}
		e.mu.Unlock()
		sink.OnEnd()
	}()

	sink.OnStart()

	var finals []models.RecognitionResult
	for _, utt := range script {
		if settings.InterimResults {
			for _, partial := range utt.Partials {
				if !e.wait(ctx) {
					return
				}
				results := append(append([]models.RecognitionResult(nil), finals...), models.RecognitionResult{
					Alternatives: []models.RecognitionAlternative{{Text: partial}},
				})
				sink.OnResult(models.RecognitionBatch{ResultIndex: len(finals), Results: results})
			}
		}

		if !e.wait(ctx) {
			return
		}
		alts := utt.Alternatives
		if settings.MaxAlternatives > 0 && len(alts) > settings.MaxAlternatives {
			alts = alts[:settings.MaxAlternatives]
		}
		final := models.RecognitionResult{Alternatives: alts, IsFinal: true}
		results := append(append([]models.RecognitionResult(nil), finals...), final)
		sink.OnResult(models.RecognitionBatch{ResultIndex: len(finals), Results: results})
		finals = append(finals, final)
	}

	if e.opts.EndWithError != "" && ctx.Err() == nil {
		sink.OnError(e.opts.EndWithError)
	}
}

// wait sleeps one interval; it reports false if the session was stopped.
func (e *Engine) wait(ctx context.Context) bool {
	select {
	case <-ctx.Done():
		return false
	case <-time.After(e.opts.Interval):
		return true
	}
}
