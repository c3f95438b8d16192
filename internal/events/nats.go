package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog/log"

	"live-transcript-service/internal/observability/metrics"
)

// NATSConfig holds NATS publisher configuration.
type NATSConfig struct {
	Servers        []string
	SubjectPartial string
	SubjectFinal   string
	Name           string
	ConnectTimeout time.Duration
}

// NATSPublisher publishes transcript events to NATS subjects.
type NATSPublisher struct {
	conn           *nats.Conn
	subjectPartial string
	subjectFinal   string
	metrics        *metrics.Metrics
}

// NewNATS connects to the configured NATS servers.
func NewNATS(cfg NATSConfig) (*NATSPublisher, error) {
	if len(cfg.Servers) == 0 {
		return nil, errors.New("no NATS servers configured")
	}

	options := []nats.Option{
		nats.Name(cfg.Name),
	}
	if cfg.ConnectTimeout > 0 {
		options = append(options, nats.Timeout(cfg.ConnectTimeout))
	}

	url := strings.Join(cfg.Servers, ",")
	conn, err := nats.Connect(url, options...)
	if err != nil {
		return nil, fmt.Errorf("connect to nats: %w", err)
	}

	log.Info().
		Str("servers", url).
		Str("subjectPartial", cfg.SubjectPartial).
		Str("subjectFinal", cfg.SubjectFinal).
		Msg("NATS publisher initialized")

	return &NATSPublisher{
		conn:           conn,
		subjectPartial: cfg.SubjectPartial,
		subjectFinal:   cfg.SubjectFinal,
		metrics:        metrics.DefaultMetrics,
	}, nil
}

func (p *NATSPublisher) PublishPartial(ctx context.Context, key string, event any) error {
	return p.publish(ctx, p.subjectPartial, "partial", key, event)
}

func (p *NATSPublisher) PublishFinal(ctx context.Context, key string, event any) error {
	return p.publish(ctx, p.subjectFinal, "final", key, event)
}

func (p *NATSPublisher) publish(ctx context.Context, subject, eventType, key string, event any) error {
	start := time.Now()

	payload, err := json.Marshal(event)
	if err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	msg := nats.NewMsg(subject)
	msg.Data = payload
	msg.Header.Set("sessionId", key)
	msg.Header.Set("eventType", eventType)

	err = p.conn.PublishMsg(msg)
	if err != nil {
		log.Error().Err(err).Str("subject", subject).Str("key", key).Msg("Failed to publish to NATS")
	}
	p.metrics.RecordPublish("nats", eventType, err, time.Since(start).Seconds())
	return err
}

// Close drains pending messages and closes the connection.
func (p *NATSPublisher) Close() error {
	if p == nil || p.conn == nil {
		return nil
	}
	err := p.conn.Drain()
	p.conn.Close()
	return err
}
