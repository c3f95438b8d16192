// Package google provides a Google Cloud Speech-to-Text recognition engine.
package google

import (
	"context"
	"errors"
	"io"
	"os"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	speech "cloud.google.com/go/speech/apiv1"
	speechpb "cloud.google.com/go/speech/apiv1/speechpb"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"live-transcript-service/internal/models"
	"live-transcript-service/internal/observability/logging"
	"live-transcript-service/internal/service/recognition"
)

// Config holds Google STT configuration.
type Config struct {
	LanguageCode   string
	SampleRateHz   int
	InterimResults bool
	AudioEncoding  string // LINEAR16, MULAW, FLAC, etc.
	// AudioSource is a raw audio file path, or "-" for stdin.
	AudioSource string
}

// DefaultConfig returns sensible defaults for telephony audio.
func DefaultConfig() Config {
	return Config{
		LanguageCode:   "en-US",
		SampleRateHz:   8000,
		InterimResults: true,
		AudioEncoding:  "LINEAR16",
		AudioSource:    "-",
	}
}

// chunkInterval paces audio sent to the API at roughly real time.
const chunkInterval = 100 * time.Millisecond

// Engine implements recognition.Engine using Google Cloud Speech-to-Text.
type Engine struct {
	client *speech.Client
	cfg    Config

	mu     sync.Mutex
	active *stream
}

// stream is one recognition run. Stop detaches it from the engine at once;
// its listener still reports OnEnd when the RPC winds down.
type stream struct {
	cancel  context.CancelFunc
	stopped atomic.Bool
}

// New creates a Google engine.
// Requires GOOGLE_APPLICATION_CREDENTIALS environment variable to be set.
func New(ctx context.Context, cfg Config) (*Engine, error) {
	c, err := speech.NewClient(ctx)
	if err != nil {
		return nil, err
	}
	return &Engine{client: c, cfg: cfg}, nil
}

func (e *Engine) Name() string { return "google" }

// Start opens a streaming recognition session and sends the initial config.
// Audio is pumped from the configured source until Stop or end of input.
func (e *Engine) Start(ctx context.Context, settings recognition.Settings, sink recognition.Sink) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.active != nil {
		return recognition.ErrAlreadyRunning
	}

	sctx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	rpc, err := e.client.StreamingRecognize(sctx)
	if err != nil {
		cancel()
		return err
	}

	lang := settings.Language
	if lang == "" {
		lang = e.cfg.LanguageCode
	}
	err = rpc.Send(&speechpb.StreamingRecognizeRequest{
		StreamingRequest: &speechpb.StreamingRecognizeRequest_StreamingConfig{
			StreamingConfig: &speechpb.StreamingRecognitionConfig{
				Config: &speechpb.RecognitionConfig{
					Encoding:        parseAudioEncoding(e.cfg.AudioEncoding),
					SampleRateHertz: int32(e.cfg.SampleRateHz),
					LanguageCode:    lang,
					MaxAlternatives: int32(settings.MaxAlternatives),
				},
				InterimResults:  settings.InterimResults && e.cfg.InterimResults,
				SingleUtterance: !settings.Continuous,
			},
		},
	})
	if err != nil {
		cancel()
		return err
	}

	src, err := openSource(e.cfg.AudioSource)
	if err != nil {
		cancel()
		return err
	}

	run := &stream{cancel: cancel}
	e.active = run

	go e.pump(sctx, rpc, src)
	go e.listen(run, rpc, sink)
	return nil
}

// Stop cancels the active stream. OnEnd follows from the listener, and the
// engine accepts a new Start immediately.
func (e *Engine) Stop() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.active != nil {
		e.active.stopped.Store(true)
		e.active.cancel()
		e.active = nil
	}
	return nil
}

// Close releases the underlying client.
func (e *Engine) Close() error {
	_ = e.Stop()
	return e.client.Close()
}

func (e *Engine) pump(ctx context.Context, rpc speechpb.Speech_StreamingRecognizeClient, src io.ReadCloser) {
	defer src.Close()
	defer rpc.CloseSend()

	bytesPerSec := e.cfg.SampleRateHz * 2
	if bytesPerSec <= 0 {
		bytesPerSec = 32000
	}
	buf := make([]byte, bytesPerSec/10)

	ticker := time.NewTicker(chunkInterval)
	defer ticker.Stop()

	for {
		n, err := src.Read(buf)
		if n > 0 {
			sendErr := rpc.Send(&speechpb.StreamingRecognizeRequest{
				StreamingRequest: &speechpb.StreamingRecognizeRequest_AudioContent{
					AudioContent: append([]byte(nil), buf[:n]...),
				},
			})
			if sendErr != nil {
				return
			}
		}
		if err != nil {
			if !errors.Is(err, io.EOF) {
				log := logging.Logger()
				log.Warn().Err(err).Msg("Audio source read failed")
			}
			return
		}
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// listen receives responses from Google and forwards them to sink.
func (e *Engine) listen(run *stream, rpc speechpb.Speech_StreamingRecognizeClient, sink recognition.Sink) {
	defer func() {
		run.cancel()
		e.mu.Lock()
		if e.active == run {
			e.active = nil
		}
		e.mu.Unlock()
		sink.OnEnd()
	}()

	sink.OnStart()

	for {
		resp, err := rpc.Recv()
		if err == io.EOF {
			return
		}
		if err != nil {
			kind := errorKind(err)
			if run.stopped.Load() && kind == recognition.KindAborted {
				return
			}
			sink.OnError(kind)
			return
		}
		if batch, ok := toBatch(resp); ok {
			sink.OnResult(batch)
		}
	}
}

// toBatch converts a streaming response. The API sends only new results,
// so ResultIndex is always 0.
func toBatch(resp *speechpb.StreamingRecognizeResponse) (models.RecognitionBatch, bool) {
	if resp == nil || len(resp.Results) == 0 {
		return models.RecognitionBatch{}, false
	}
	batch := models.RecognitionBatch{Results: make([]models.RecognitionResult, 0, len(resp.Results))}
	for _, r := range resp.Results {
		res := models.RecognitionResult{IsFinal: r.IsFinal}
		for _, a := range r.Alternatives {
			res.Alternatives = append(res.Alternatives, models.RecognitionAlternative{
				Text:       a.Transcript,
				Confidence: float64(a.Confidence),
			})
		}
		batch.Results = append(batch.Results, res)
	}
	return batch, true
}

// errorKind maps a gRPC error to a recognition error kind.
func errorKind(err error) string {
	st, ok := status.FromError(err)
	if !ok {
		return recognition.KindNetwork
	}
	switch st.Code() {
	case codes.PermissionDenied, codes.Unauthenticated:
		return recognition.KindNotAllowed
	case codes.Unavailable, codes.DeadlineExceeded:
		return recognition.KindNetwork
	case codes.InvalidArgument:
		if strings.Contains(strings.ToLower(st.Message()), "language") {
			return recognition.KindLanguageNotSupported
		}
		return "bad-grammar"
	case codes.Canceled, codes.Aborted:
		return recognition.KindAborted
	case codes.OutOfRange:
		return recognition.KindNoSpeech
	default:
		return strings.ToLower(st.Code().String())
	}
}

// openSource opens the audio input; "-" is stdin.
func openSource(path string) (io.ReadCloser, error) {
	if path == "" || path == "-" {
		return io.NopCloser(os.Stdin), nil
	}
	return os.Open(path)
}

// parseAudioEncoding converts string encoding to Google's enum.
func parseAudioEncoding(encoding string) speechpb.RecognitionConfig_AudioEncoding {
	if v, ok := speechpb.RecognitionConfig_AudioEncoding_value[encoding]; ok && v != 0 {
		return speechpb.RecognitionConfig_AudioEncoding(v)
	}
	return speechpb.RecognitionConfig_LINEAR16
}
