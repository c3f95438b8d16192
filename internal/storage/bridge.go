package storage

import (
	"context"
	"encoding/json"

	"github.com/rs/zerolog"

	"live-transcript-service/internal/models"
	"live-transcript-service/internal/observability/logging"
	"live-transcript-service/internal/observability/metrics"
)

// Fixed storage keys.
const (
	KeyText     = "transcript"
	KeySegments = "transcript_segments"
)

// Persisted is what Load found. Each part may be absent independently.
type Persisted struct {
	Text        string
	HasText     bool
	Segments    []models.Segment
	HasSegments bool
}

// Bridge saves and restores the transcript. It is best-effort: every backend
// failure is logged, counted, and swallowed.
type Bridge struct {
	kv      KV
	log     zerolog.Logger
	metrics *metrics.Metrics
}

func NewBridge(kv KV) *Bridge {
	return &Bridge{
		kv:      kv,
		log:     logging.WithComponent("persistence"),
		metrics: metrics.DefaultMetrics,
	}
}

// Save writes text under KeyText and, when segments is non-nil, the JSON
// encoded segments under KeySegments.
func (b *Bridge) Save(ctx context.Context, text string, segments []models.Segment) {
	if b == nil || b.kv == nil {
		return
	}
	err := b.kv.Set(ctx, KeyText, text)
	b.metrics.RecordPersistence("save", err)
	if err != nil {
		b.log.Debug().Err(err).Str("key", KeyText).Msg("Transcript save failed")
	}

	if segments == nil {
		return
	}
	payload, err := json.Marshal(segments)
	if err != nil {
		b.metrics.RecordPersistence("encode", err)
		return
	}
	err = b.kv.Set(ctx, KeySegments, string(payload))
	b.metrics.RecordPersistence("save", err)
	if err != nil {
		b.log.Debug().Err(err).Str("key", KeySegments).Msg("Segments save failed")
	}
}

// Load reads both keys. Unreadable or undecodable values count as absent.
func (b *Bridge) Load(ctx context.Context) Persisted {
	var p Persisted
	if b == nil || b.kv == nil {
		return p
	}

	text, ok, err := b.kv.Get(ctx, KeyText)
	b.metrics.RecordPersistence("load", err)
	if err != nil {
		b.log.Debug().Err(err).Str("key", KeyText).Msg("Transcript load failed")
	} else if ok {
		p.Text, p.HasText = text, true
	}

	raw, ok, err := b.kv.Get(ctx, KeySegments)
	b.metrics.RecordPersistence("load", err)
	if err != nil {
		b.log.Debug().Err(err).Str("key", KeySegments).Msg("Segments load failed")
		return p
	}
	if !ok {
		return p
	}
	var segments []models.Segment
	if err := json.Unmarshal([]byte(raw), &segments); err != nil {
		b.metrics.RecordPersistence("decode", err)
		b.log.Debug().Err(err).Msg("Discarding undecodable segments")
		return p
	}
	p.Segments, p.HasSegments = segments, true
	return p
}
