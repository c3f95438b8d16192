package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"live-transcript-service/internal/events"
	"live-transcript-service/internal/export"
	"live-transcript-service/internal/models"
	"live-transcript-service/internal/observability/logging"
	"live-transcript-service/internal/observability/metrics"
	"live-transcript-service/internal/schema"
	"live-transcript-service/internal/service/recognition"
	"live-transcript-service/internal/service/segment"
	"live-transcript-service/internal/service/transcript"
	"live-transcript-service/internal/storage"
)

const (
	eventQueueSize  = 64
	outboxSize      = 256
	subscriberQueue = 8
	publishTimeout  = 5 * time.Second
	clipboardWait   = 5 * time.Second
)

// Options wire a Controller to its collaborators. A nil Engine means no
// recognition capability is available; Start then always fails.
type Options struct {
	Engine    recognition.Engine
	Bridge    *storage.Bridge
	Publisher events.Publisher
	Clipboard export.Clipboard
	Saver     export.FileSaver
	Validator *schema.Validator
	Metrics   *metrics.Metrics
	Segments  *segment.Generator

	Settings              Settings
	LowConfidenceAdvisory float64
	Timings               Timings
	Location              *time.Location
	Now                   func() time.Time
}

// Affordances report which of the five commands are enabled.
type Affordances struct {
	Start    bool `json:"start"`
	Stop     bool `json:"stop"`
	Clear    bool `json:"clear"`
	Copy     bool `json:"copy"`
	Download bool `json:"download"`
}

// Snapshot is the client-visible state.
type Snapshot struct {
	SessionID   string           `json:"sessionId,omitempty"`
	State       string           `json:"state"`
	Status      string           `json:"status"`
	Text        string           `json:"text"`
	Meeting     bool             `json:"meeting"`
	Segments    []models.Segment `json:"segments"`
	Settings    Settings         `json:"settings"`
	Affordances Affordances      `json:"affordances"`
}

// Export is a downloaded transcript.
type Export struct {
	Filename string
	Text     string
	// Path is set when the export was also written by the FileSaver.
	Path string
}

// Dispatcher messages.
type engineStarted struct{ run uint64 }

type engineResult struct {
	run   uint64
	batch models.RecognitionBatch
}

type engineError struct {
	run  uint64
	kind string
}

type engineEnded struct{ run uint64 }

type restartFired struct{ gen uint64 }

type advisoryExpired struct{ statusGen uint64 }

type clipboardDone struct{ err error }

type command struct {
	fn       func() error
	reply    chan error
	readOnly bool
}

type outgoing struct {
	final bool
	key   string
	event any
}

// Controller runs recognition sessions and owns the transcript.
// All state below the dispatcher marker is touched only by Run.
type Controller struct {
	engine    recognition.Engine
	bridge    *storage.Bridge
	publisher events.Publisher
	clipboard export.Clipboard
	saver     export.FileSaver
	validator *schema.Validator
	metrics   *metrics.Metrics
	segments  *segment.Generator
	timings   Timings
	advisory  float64
	now       func() time.Time
	log       zerolog.Logger

	events chan any
	outbox chan outgoing
	done   chan struct{}

	subsMu sync.Mutex
	subs   map[chan Snapshot]struct{}
	latest Snapshot

	// dispatcher
	ctx        context.Context
	lifecycle  *Lifecycle
	store      *transcript.Store
	settings   Settings
	cfg        Config
	sessionID  string
	run        uint64
	runErrored bool
	startedAt  time.Time
	status     string
	statusGen  uint64
}

// New creates a controller. Call Restore before Run to load persisted state.
func New(opts Options) *Controller {
	c := &Controller{
		engine:    opts.Engine,
		bridge:    opts.Bridge,
		publisher: opts.Publisher,
		clipboard: opts.Clipboard,
		saver:     opts.Saver,
		validator: opts.Validator,
		metrics:   opts.Metrics,
		segments:  opts.Segments,
		timings:   opts.Timings,
		advisory:  opts.LowConfidenceAdvisory,
		now:       opts.Now,
		log:       logging.WithComponent("session"),
		events:    make(chan any, eventQueueSize),
		outbox:    make(chan outgoing, outboxSize),
		done:      make(chan struct{}),
		subs:      make(map[chan Snapshot]struct{}),
		ctx:       context.Background(),
		lifecycle: NewLifecycle(),
		settings:  opts.Settings,
	}
	if c.clipboard == nil {
		c.clipboard = export.NopClipboard{}
	}
	if c.validator == nil {
		c.validator = schema.New()
	}
	if c.metrics == nil {
		c.metrics = metrics.DefaultMetrics
	}
	if c.segments == nil {
		c.segments = segment.New()
	}
	if c.timings == (Timings{}) {
		c.timings = DefaultTimings()
	}
	if c.now == nil {
		c.now = time.Now
	}
	var storeOpts []transcript.Option
	if opts.Location != nil {
		storeOpts = append(storeOpts, transcript.WithLocation(opts.Location))
	}
	c.store = transcript.NewStore(storeOpts...)
	c.cfg = NewConfig(c.settings, c.advisory)

	c.status = StatusReady
	if c.engine == nil {
		c.status = StatusUnavailable
	}
	c.latest = c.snapshot()
	return c
}

// Restore loads the persisted transcript. It must be called before Run.
func (c *Controller) Restore(ctx context.Context) bool {
	p := c.bridge.Load(ctx)
	restored := c.store.Restore(p, c.settings.MeetingMode)
	if restored {
		c.log.Info().
			Bool("meeting", c.store.Meeting()).
			Int("segments", len(c.store.Segments())).
			Msg("Transcript restored")
	}
	c.latest = c.snapshot()
	return restored
}

// Available reports whether a recognition engine was detected.
func (c *Controller) Available() bool {
	return c.engine != nil
}

// Run dispatches engine events, commands, and timers until ctx is done.
func (c *Controller) Run(ctx context.Context) error {
	c.ctx = ctx
	defer close(c.done)
	go c.drainOutbox()

	for {
		select {
		case <-ctx.Done():
			if c.lifecycle.State().Active() && c.engine != nil {
				_ = c.engine.Stop()
			}
			return nil
		case m := <-c.events:
			if c.step(m) {
				c.broadcast()
			}
		}
	}
}

// step handles one message and reports whether the snapshot may have changed.
func (c *Controller) step(m any) bool {
	switch m := m.(type) {
	case command:
		m.reply <- m.fn()
		return !m.readOnly
	case engineStarted:
		c.onStarted(m.run)
	case engineResult:
		c.onResult(m.run, m.batch)
	case engineError:
		c.onError(m.run, m.kind)
	case engineEnded:
		c.onEnded(m.run)
	case restartFired:
		c.onRestart(m.gen)
	case advisoryExpired:
		c.onAdvisoryExpired(m.statusGen)
	case clipboardDone:
		c.onClipboardDone(m.err)
	default:
		c.log.Warn().Str("type", fmt.Sprintf("%T", m)).Msg("Unknown dispatcher message")
		return false
	}
	return true
}

func (c *Controller) post(m any) {
	select {
	case c.events <- m:
	case <-c.done:
	}
}

func (c *Controller) do(ctx context.Context, readOnly bool, fn func() error) error {
	cmd := command{fn: fn, reply: make(chan error, 1), readOnly: readOnly}
	select {
	case c.events <- cmd:
	case <-c.done:
		return ErrClosed
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case err := <-cmd.reply:
		return err
	case <-c.done:
		select {
		case err := <-cmd.reply:
			return err
		default:
			return ErrClosed
		}
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Start begins a session with the current settings.
func (c *Controller) Start(ctx context.Context) error {
	return c.do(ctx, false, c.start)
}

// Stop halts the session. No auto-restart follows.
func (c *Controller) Stop(ctx context.Context) error {
	return c.do(ctx, false, c.stop)
}

// Clear empties the transcript and persists the empty state.
func (c *Controller) Clear(ctx context.Context) error {
	return c.do(ctx, false, func() error {
		c.store.Clear()
		c.bridge.Save(c.ctx, "", []models.Segment{})
		c.log.Info().Msg("Transcript cleared")
		return nil
	})
}

// Edit replaces the transcript with a manual edit.
func (c *Controller) Edit(ctx context.Context, text string) error {
	return c.do(ctx, false, func() error {
		c.store.ApplyManualEdit(text)
		c.persist()
		return nil
	})
}

// SetSettings replaces the client settings. A language change during a
// session applies to later restarts; everything else applies at next Start.
func (c *Controller) SetSettings(ctx context.Context, s Settings) (Settings, error) {
	var out Settings
	err := c.do(ctx, false, func() error {
		if err := c.setSettings(s); err != nil {
			return err
		}
		out = c.settings
		return nil
	})
	return out, err
}

// Settings returns the current client settings.
func (c *Controller) Settings(ctx context.Context) (Settings, error) {
	var out Settings
	err := c.do(ctx, true, func() error {
		out = c.settings
		return nil
	})
	return out, err
}

// Copy writes the transcript to the clipboard. The outcome is reported in
// the status line.
func (c *Controller) Copy(ctx context.Context) error {
	return c.do(ctx, true, func() error {
		text := c.store.Text()
		if text == "" {
			return ErrNothingToExport
		}
		go func() {
			cctx, cancel := context.WithTimeout(context.Background(), clipboardWait)
			defer cancel()
			c.post(clipboardDone{err: c.clipboard.WriteText(cctx, text)})
		}()
		return nil
	})
}

// Download returns the transcript and its filename. The filename follows the
// representation being exported, not the current toggle. With a FileSaver
// configured the export is also written to disk.
func (c *Controller) Download(ctx context.Context) (Export, error) {
	var out Export
	err := c.do(ctx, true, func() error {
		text := c.store.Text()
		if text == "" {
			return ErrNothingToExport
		}
		out = Export{Filename: export.Filename(c.store.Meeting()), Text: text}
		if c.saver != nil {
			path, err := c.saver.Save(out.Filename, text)
			if err != nil {
				c.log.Warn().Err(err).Str("filename", out.Filename).Msg("Export save failed")
			} else {
				out.Path = path
			}
		}
		return nil
	})
	return out, err
}

// Snapshot returns the current client-visible state.
func (c *Controller) Snapshot(ctx context.Context) (Snapshot, error) {
	var out Snapshot
	err := c.do(ctx, true, func() error {
		out = c.snapshot()
		return nil
	})
	return out, err
}

// Subscribe returns a channel receiving a snapshot after every change,
// starting with the latest one. Slow subscribers miss updates.
func (c *Controller) Subscribe() (<-chan Snapshot, func()) {
	ch := make(chan Snapshot, subscriberQueue)
	c.subsMu.Lock()
	c.subs[ch] = struct{}{}
	ch <- c.latest
	c.subsMu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			c.subsMu.Lock()
			delete(c.subs, ch)
			c.subsMu.Unlock()
		})
	}
}

func (c *Controller) broadcast() {
	snap := c.snapshot()
	c.subsMu.Lock()
	defer c.subsMu.Unlock()
	c.latest = snap
	for ch := range c.subs {
		select {
		case ch <- snap:
		default:
		}
	}
}

func (c *Controller) snapshot() Snapshot {
	state := c.lifecycle.State()
	empty := c.store.IsEmpty()
	snap := Snapshot{
		State:    state.String(),
		Status:   c.status,
		Text:     c.store.RenderedText(),
		Meeting:  c.store.Meeting(),
		Segments: c.store.Segments(),
		Settings: c.settings,
		Affordances: Affordances{
			Start:    c.engine != nil && state == StateIdle,
			Stop:     state.Active(),
			Clear:    true,
			Copy:     !empty,
			Download: !empty,
		},
	}
	if state.Active() {
		snap.SessionID = c.sessionID
	}
	return snap
}

func (c *Controller) start() error {
	if c.engine == nil {
		c.setStatus(StatusUnavailable)
		return ErrEngineUnavailable
	}
	if err := c.lifecycle.Start(); err != nil {
		return err
	}

	c.cfg = NewConfig(c.settings, c.advisory)
	c.sessionID = uuid.NewString()
	c.store.SetSegmentIDs(c.segments.ForSession(c.sessionID))
	c.store.BeginSession(c.cfg.MeetingMode)
	c.startedAt = c.now()

	if err := c.startEngine(); err != nil {
		c.lifecycle.End()
		c.setStatus(StatusStartFailed)
		c.log.Error().Err(err).Str("sessionId", c.sessionID).Msg("Engine start failed")
		return fmt.Errorf("start engine: %w", err)
	}

	c.metrics.RecordSessionStart()
	log := logging.WithSession(c.sessionID, c.cfg.Language)
	log.Info().
		Bool("meetingMode", c.cfg.MeetingMode).
		Bool("highAccuracy", c.cfg.HighAccuracy).
		Int("maxAlternatives", c.cfg.MaxAlternatives).
		Msg("Session started")
	return nil
}

func (c *Controller) startEngine() error {
	c.run++
	c.runErrored = false
	return c.engine.Start(c.ctx, c.cfg.EngineSettings(), &engineSink{c: c, run: c.run})
}

func (c *Controller) stop() error {
	if err := c.lifecycle.Stop(); err != nil {
		return err
	}
	if err := c.engine.Stop(); err != nil {
		c.log.Warn().Err(err).Str("sessionId", c.sessionID).Msg("Engine stop failed")
	}
	c.store.ClearInterim()
	c.endSession()
	c.setStatus(StatusStopped)
	log := logging.WithSession(c.sessionID, c.cfg.Language)
	log.Info().Msg("Session stopped")
	return nil
}

func (c *Controller) endSession() {
	c.metrics.RecordSessionEnd(c.now().Sub(c.startedAt).Seconds())
}

func (c *Controller) setSettings(s Settings) error {
	if s.Language == "" {
		s.Language = c.settings.Language
	}
	if err := NewConfig(s, c.advisory).Validate(c.validator); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidSettings, err)
	}

	prev := c.settings.Language
	c.settings = s
	if c.lifecycle.State().Active() && s.Language != prev {
		c.cfg.Language = s.Language
		c.setStatus(fmt.Sprintf(statusLanguageTemplate, s.Language))
		log := logging.WithSession(c.sessionID, s.Language)
		log.Info().Str("previous", prev).Msg("Language changed")
	}
	return nil
}

func (c *Controller) onStarted(run uint64) {
	if run != c.run || c.lifecycle.State() != StateListening {
		return
	}
	c.setStatus(StatusListening)
}

func (c *Controller) onResult(run uint64, batch models.RecognitionBatch) {
	if run != c.run {
		return
	}
	out := c.store.Merge(batch, c.cfg.Policy(), c.now())

	if out.InterimCount > 0 {
		c.metrics.RecordInterim()
		c.publish(false, models.TranscriptPartial{
			EventType: models.EventTypePartial,
			SessionID: c.sessionID,
			Language:  c.cfg.Language,
			Timestamp: c.now().UnixMilli(),
			Text:      out.Interim,
		})
	}

	for _, acc := range out.Accepted {
		ev := models.TranscriptFinal{
			EventType:   models.EventTypeFinal,
			SessionID:   c.sessionID,
			Language:    c.cfg.Language,
			Timestamp:   c.now().UnixMilli(),
			Text:        acc.Text,
			Confidence:  acc.Confidence,
			MeetingMode: acc.Segment != nil,
		}
		representation := "flat"
		if acc.Segment != nil {
			ev.SegmentID = acc.Segment.ID
			ev.Timestamp = acc.Segment.TimestampMillis
			representation = "segments"
			log := logging.WithSegment(c.sessionID, acc.Segment.ID)
			log.Debug().
				Float64("confidence", acc.Confidence).
				Msg("Segment appended")
		}
		c.metrics.RecordAccepted(representation, acc.Confidence)
		if acc.LowConfidence {
			c.metrics.RecordLowConfidence()
		}
		c.publish(true, ev)
	}
	for _, alt := range out.Rejected {
		c.metrics.RecordRejected()
		c.log.Debug().Float64("confidence", alt.Confidence).Msg("Final result rejected")
	}

	if out.Mutated() {
		c.persist()
	}

	switch out.Advisory {
	case transcript.AdvisoryRejected:
		c.advise(StatusRejected)
	case transcript.AdvisoryLowConfidence:
		c.advise(StatusLowConfidence)
	}
}

func (c *Controller) onError(run uint64, kind string) {
	if run != c.run {
		return
	}
	state := c.lifecycle.State()
	if state == StateIdle && c.lifecycle.ManualStop() {
		c.log.Debug().Str("kind", kind).Msg("Ignoring engine error after manual stop")
		return
	}
	if state == StatePausedAutoRestarting {
		return
	}

	c.runErrored = true
	c.metrics.RecordEngineError(kind)
	c.setStatus(StatusMessage(kind))

	ek := FromEngineKind(kind)
	log := logging.WithEngine(c.sessionID, c.engine.Name())
	log.Warn().
		Str("kind", kind).
		Str("class", ek.String()).
		Msg("Recognition error")

	if ek.Recoverable() && c.lifecycle.RestartEligible(c.cfg.MeetingMode) {
		c.scheduleRestart(kind, c.timings.restartDelay(ek, false))
		return
	}
	if state.Active() {
		c.lifecycle.End()
		c.store.ClearInterim()
		c.endSession()
	}
}

func (c *Controller) onEnded(run uint64) {
	if run != c.run {
		return
	}
	state := c.lifecycle.State()
	if state == StatePausedAutoRestarting {
		return
	}
	if c.lifecycle.RestartEligible(c.cfg.MeetingMode) {
		c.scheduleRestart("ended", c.timings.restartDelay(KindUnknown, true))
		c.setStatus(StatusRestarting)
		return
	}

	if state.Active() {
		c.lifecycle.End()
		c.store.ClearInterim()
		c.endSession()
	}
	if !c.runErrored && !c.lifecycle.ManualStop() {
		c.setStatus(StatusStopped)
	}
}

func (c *Controller) scheduleRestart(reason string, delay time.Duration) {
	gen, err := c.lifecycle.Pause()
	if err != nil {
		c.log.Warn().Err(err).Msg("Cannot schedule restart")
		return
	}
	c.store.ClearInterim()
	c.metrics.RecordRestartScheduled(reason)
	c.log.Info().
		Str("sessionId", c.sessionID).
		Str("reason", reason).
		Dur("delay", delay).
		Uint64("generation", gen).
		Msg("Auto-restart scheduled")

	time.AfterFunc(delay, func() {
		c.post(restartFired{gen: gen})
	})
}

func (c *Controller) onRestart(gen uint64) {
	if err := c.lifecycle.Resume(gen); err != nil {
		if errors.Is(err, ErrStaleRestart) {
			c.metrics.RecordRestartStale()
			c.log.Debug().Uint64("generation", gen).Msg("Discarding stale restart")
			return
		}
		c.log.Warn().Err(err).Msg("Restart skipped")
		return
	}

	if err := c.startEngine(); err != nil {
		c.metrics.RecordRestartFailed()
		c.lifecycle.End()
		c.endSession()
		c.setStatus(StatusRestartFailed)
		c.log.Error().Err(err).Str("sessionId", c.sessionID).Msg("Auto-restart failed")
		return
	}
	c.log.Info().Str("sessionId", c.sessionID).Msg("Session resumed")
}

func (c *Controller) onAdvisoryExpired(statusGen uint64) {
	if statusGen != c.statusGen || c.lifecycle.State() != StateListening {
		return
	}
	c.setStatus(StatusListening)
}

func (c *Controller) onClipboardDone(err error) {
	if err != nil {
		c.log.Warn().Err(err).Msg("Clipboard write failed")
		c.advise(StatusCopyFailed)
		return
	}
	c.advise(StatusCopied)
}

func (c *Controller) setStatus(s string) {
	c.status = s
	c.statusGen++
}

// advise sets a transient status that reverts to the listening status.
func (c *Controller) advise(s string) {
	c.setStatus(s)
	gen := c.statusGen
	time.AfterFunc(c.timings.AdvisoryDuration, func() {
		c.post(advisoryExpired{statusGen: gen})
	})
}

func (c *Controller) persist() {
	c.bridge.Save(c.ctx, c.store.Text(), c.store.PersistSegments())
}

func (c *Controller) publish(final bool, event any) {
	if c.publisher == nil {
		return
	}
	if err := c.validator.Validate(event); err != nil {
		c.log.Warn().Err(err).Msg("Dropping invalid transcript event")
		return
	}
	select {
	case c.outbox <- outgoing{final: final, key: c.sessionID, event: event}:
	default:
		c.log.Warn().Str("sessionId", c.sessionID).Msg("Event outbox full, dropping transcript event")
	}
}

func (c *Controller) drainOutbox() {
	for {
		select {
		case o := <-c.outbox:
			ctx, cancel := context.WithTimeout(context.Background(), publishTimeout)
			var err error
			if o.final {
				err = c.publisher.PublishFinal(ctx, o.key, o.event)
			} else {
				err = c.publisher.PublishPartial(ctx, o.key, o.event)
			}
			cancel()
			if err != nil {
				c.log.Warn().Err(err).Str("sessionId", o.key).Msg("Transcript event publish failed")
			}
		case <-c.done:
			return
		}
	}
}

// engineSink forwards engine callbacks of one engine run to the dispatcher.
type engineSink struct {
	c   *Controller
	run uint64
}

func (s *engineSink) OnStart() { s.c.post(engineStarted{run: s.run}) }

func (s *engineSink) OnResult(batch models.RecognitionBatch) {
	s.c.post(engineResult{run: s.run, batch: batch})
}

func (s *engineSink) OnError(kind string) { s.c.post(engineError{run: s.run, kind: kind}) }

func (s *engineSink) OnEnd() { s.c.post(engineEnded{run: s.run}) }
