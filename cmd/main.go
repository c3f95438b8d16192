package main

import (
	"context"
	"errors"
	"io"
	"net"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	"google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"

	"live-transcript-service/internal/app"
	"live-transcript-service/internal/config"
	"live-transcript-service/internal/events"
	"live-transcript-service/internal/export"
	apihttp "live-transcript-service/internal/http"
	"live-transcript-service/internal/observability"
	"live-transcript-service/internal/observability/metrics"
	"live-transcript-service/internal/schema"
	"live-transcript-service/internal/service/recognition"
	"live-transcript-service/internal/service/recognition/google"
	"live-transcript-service/internal/service/recognition/mock"
	"live-transcript-service/internal/service/segment"
	"live-transcript-service/internal/service/session"
	"live-transcript-service/internal/storage"
)

const recognitionHealthService = "live.transcript.Recognition"

func main() {
	cfg := config.Load()
	application := app.New(cfg)
	logger := application.Logger

	if err := cfg.Validate(); err != nil {
		logger.Fatal().Err(err).Msg("Invalid configuration")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	kv, closeKV := openStorage(ctx, cfg.Storage, logger)
	defer closeKV()

	engine := newEngine(ctx, cfg.Recognition, logger)
	if c, ok := engine.(io.Closer); ok {
		defer c.Close()
	}

	publisher := newPublisher(cfg, logger)
	defer publisher.Close()

	ctrl := session.New(session.Options{
		Engine:    engine,
		Bridge:    storage.NewBridge(kv),
		Publisher: publisher,
		Clipboard: export.NewClipboard(cfg.Export.ClipboardCommand),
		Saver:     fileSaver(cfg.Export),
		Validator: schema.New(),
		Metrics:   metrics.DefaultMetrics,
		Segments:  segment.New(),
		Settings: session.Settings{
			Language:            cfg.Recognition.LanguageCode,
			MeetingMode:         cfg.Recognition.MeetingMode,
			HighAccuracy:        cfg.Recognition.HighAccuracy,
			ConfidenceThreshold: cfg.Recognition.ConfidenceThreshold,
		},
		LowConfidenceAdvisory: cfg.Recognition.LowConfidenceAdvisory,
		Timings: session.Timings{
			EndedDelay:       cfg.Restart.EndedDelay,
			NoSpeechDelay:    cfg.Restart.NoSpeechDelay,
			NetworkDelay:     cfg.Restart.NetworkDelay,
			AdvisoryDuration: cfg.Restart.AdvisoryDuration,
		},
	})
	ctrl.Restore(ctx)

	ctrlDone := make(chan struct{})
	go func() {
		defer close(ctrlDone)
		_ = ctrl.Run(ctx)
	}()

	obsServer := observability.NewServer(cfg.Service.MetricsAddr, application.Ready)
	obsServer.Start()

	lis, err := net.Listen("tcp", ":"+cfg.Service.GRPCPort)
	if err != nil {
		logger.Fatal().Err(err).Str("port", cfg.Service.GRPCPort).Msg("Failed to listen")
	}

	grpcServer := grpc.NewServer(
		grpc.ChainUnaryInterceptor(observability.UnaryServerInterceptor(metrics.DefaultMetrics)),
		grpc.ChainStreamInterceptor(observability.StreamServerInterceptor(metrics.DefaultMetrics)),
	)

	// Register gRPC health check service
	healthServer := health.NewServer()
	grpc_health_v1.RegisterHealthServer(grpcServer, healthServer)
	healthServer.SetServingStatus("", grpc_health_v1.HealthCheckResponse_SERVING)
	recognitionStatus := grpc_health_v1.HealthCheckResponse_SERVING
	if !ctrl.Available() {
		recognitionStatus = grpc_health_v1.HealthCheckResponse_NOT_SERVING
	}
	healthServer.SetServingStatus(recognitionHealthService, recognitionStatus)

	// Enable gRPC reflection for debugging tools like grpcurl
	reflection.Register(grpcServer)

	go func() {
		logger.Info().Str("port", cfg.Service.GRPCPort).Msg("gRPC health server started")
		if err := grpcServer.Serve(lis); err != nil {
			logger.Error().Err(err).Msg("gRPC serve failed")
		}
	}()

	httpServer := &http.Server{
		Addr:              ":" + cfg.Service.HTTPPort,
		Handler:           apihttp.NewRouter(application, ctrl),
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		logger.Info().Str("port", cfg.Service.HTTPPort).Msg("HTTP server started")
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error().Err(err).Msg("HTTP serve failed")
			stop()
		}
	}()

	if err := application.Start(); err != nil {
		logger.Fatal().Err(err).Msg("Application start failed")
	}

	<-ctx.Done()

	application.Shutdown()
	healthServer.SetServingStatus("", grpc_health_v1.HealthCheckResponse_NOT_SERVING)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Warn().Err(err).Msg("HTTP shutdown failed")
	}
	if err := obsServer.Shutdown(shutdownCtx); err != nil {
		logger.Warn().Err(err).Msg("Observability server shutdown failed")
	}
	grpcServer.GracefulStop()
	<-ctrlDone
}

// openStorage opens the configured KV backend. A sqlite failure falls back
// to memory so the service keeps running without persistence.
func openStorage(ctx context.Context, cfg config.StorageConfig, logger zerolog.Logger) (storage.KV, func()) {
	if cfg.Backend != "sqlite" {
		logger.Info().Msg("Using in-memory transcript storage")
		return storage.NewMemoryKV(), func() {}
	}
	db, err := storage.OpenSQLite(ctx, cfg.Path)
	if err != nil {
		logger.Warn().Err(err).Str("path", cfg.Path).Msg("SQLite unavailable, using in-memory storage")
		return storage.NewMemoryKV(), func() {}
	}
	logger.Info().Str("path", cfg.Path).Msg("Using SQLite transcript storage")
	return db, func() {
		if err := db.Close(); err != nil {
			logger.Warn().Err(err).Msg("SQLite close failed")
		}
	}
}

// newEngine detects the recognition capability. It returns nil when the
// provider cannot be initialized.
func newEngine(ctx context.Context, cfg config.RecognitionConfig, logger zerolog.Logger) recognition.Engine {
	switch cfg.Provider {
	case "google":
		eng, err := google.New(ctx, google.Config{
			LanguageCode:   cfg.LanguageCode,
			SampleRateHz:   cfg.SampleRateHz,
			InterimResults: true,
			AudioEncoding:  cfg.AudioEncoding,
			AudioSource:    cfg.AudioSource,
		})
		if err != nil {
			logger.Error().Err(err).Msg("Google Speech-to-Text unavailable")
			return nil
		}
		logger.Info().Str("provider", "google").Msg("Recognition engine ready")
		return eng
	case "mock":
		logger.Info().Str("provider", "mock").Msg("Recognition engine ready")
		return mock.New(mock.Options{PerSession: 2, Interval: 400 * time.Millisecond})
	default:
		logger.Error().Str("provider", cfg.Provider).Msg("Unknown recognition provider")
		return nil
	}
}

func newPublisher(cfg *config.Configuration, logger zerolog.Logger) events.Publisher {
	pubs := events.Fanout{events.New(&events.Config{
		Enabled:      cfg.Kafka.Enabled,
		Brokers:      cfg.Kafka.Brokers,
		TopicPartial: cfg.Kafka.TopicPartial,
		TopicFinal:   cfg.Kafka.TopicFinal,
		Principal:    cfg.Kafka.Principal,
	})}

	if cfg.NATS.Enabled {
		np, err := events.NewNATS(events.NATSConfig{
			Servers:        cfg.NATS.Servers,
			SubjectPartial: cfg.NATS.SubjectPartial,
			SubjectFinal:   cfg.NATS.SubjectFinal,
			Name:           cfg.Service.Principal,
			ConnectTimeout: time.Duration(cfg.NATS.ConnectTimeout) * time.Millisecond,
		})
		if err != nil {
			logger.Warn().Err(err).Msg("NATS unavailable, skipping NATS publisher")
		} else {
			pubs = append(pubs, np)
		}
	}
	return pubs
}

func fileSaver(cfg config.ExportConfig) export.FileSaver {
	if cfg.Dir == "" {
		return nil
	}
	return export.DirSaver{Dir: cfg.Dir}
}
