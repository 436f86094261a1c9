package app

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"ai-speech-transcription-service/internal/config"
	"ai-speech-transcription-service/internal/events"
	"ai-speech-transcription-service/internal/observability/logging"
	"ai-speech-transcription-service/internal/service/stt"
	"ai-speech-transcription-service/internal/service/stt/mock"
	"ai-speech-transcription-service/internal/service/stt/whisper"
	"ai-speech-transcription-service/internal/service/transcript"
	"ai-speech-transcription-service/internal/storage"
	"ai-speech-transcription-service/internal/store"
)

// Application holds process-wide state for the service.
type Application struct {
	StartupTime time.Time
	Logger      zerolog.Logger
	Cfg         *config.Config

	Store     *store.Store
	Publisher *events.Publisher
	Registry  *stt.Registry
	Service   *transcript.Service
}

// New constructs a new Application from the provided configuration.
func New(cfg *config.Config) *Application {
	a := &Application{
		Cfg: cfg,
	}
	a.setupLogger()

	appLogger := a.Logger.With().
		Str("method", "New").
		Logger()

	appLogger.Info().Msg("AI Speech Transcription service application created")
	return a
}

// setupLogger configures zerolog for the service.
func (a *Application) setupLogger() {
	logCfg := logging.DefaultConfig()
	logCfg.Level = a.Cfg.Observability.LogLevel
	logCfg.Format = a.Cfg.Observability.LogFormat
	logging.Init(logCfg)

	a.Logger = logging.WithComponent("application").With().
		Str("service", "ai-speech-transcription-service").
		Logger()

	a.Logger.Info().
		Str("logLevel", zerolog.GlobalLevel().String()).
		Str("logFormat", logCfg.Format).
		Msg("Logger setup completed")
}

// Start opens the store and wires the providers and the transcript service.
// It must run before serving traffic.
func (a *Application) Start(ctx context.Context) error {
	startLogger := a.Logger.With().
		Str("method", "Start").
		Logger()

	st, err := store.Open(ctx, store.Config{
		Driver:       a.Cfg.Store.Driver,
		DSN:          a.Cfg.Store.DSN,
		MaxOpenConns: a.Cfg.Store.MaxOpenConns,
	})
	if err != nil {
		return err
	}
	if err := st.Migrate(ctx); err != nil {
		st.Close()
		return fmt.Errorf("migrate store: %w", err)
	}
	a.Store = st

	a.Publisher = events.New(&events.Config{
		Enabled:        a.Cfg.Kafka.Enabled,
		Brokers:        a.Cfg.Kafka.Brokers,
		TopicCompleted: a.Cfg.Kafka.TopicCompleted,
		TopicFailed:    a.Cfg.Kafka.TopicFailed,
		Principal:      a.Cfg.Kafka.Principal,
	})

	presigner, err := storage.New(storage.Config{
		Endpoint:      a.Cfg.Storage.Endpoint,
		AccessKey:     a.Cfg.Storage.AccessKey,
		SecretKey:     a.Cfg.Storage.SecretKey,
		Region:        a.Cfg.Storage.Region,
		UseSSL:        a.Cfg.Storage.UseSSL,
		PresignExpiry: a.Cfg.Storage.PresignExpiry,
	})
	if err != nil {
		a.Shutdown()
		return err
	}

	a.Registry = stt.NewRegistry()
	a.Registry.Register(whisper.ProviderName, func() (stt.Transcriber, error) {
		return a.newWhisper(ctx)
	})

	// Build eagerly so bad credentials fail the start instead of the first job.
	if _, err := a.Registry.Get(whisper.ProviderName); err != nil {
		a.Shutdown()
		return err
	}

	a.Service = transcript.NewService(transcript.Config{
		DefaultProvider: whisper.ProviderName,
		DefaultLanguage: a.Cfg.STT.LanguageCode,
	}, a.Registry, a.Store, a.Publisher, presigner)

	a.StartupTime = time.Now().UTC()
	startLogger.Info().
		Time("startupTime", a.StartupTime).
		Str("sttProvider", a.Cfg.STT.Provider).
		Strs("providers", a.Registry.Names()).
		Msg("AI Speech Transcription service starting")

	return nil
}

// newWhisper builds the whisper transcriber. In mock mode invocations are
// recorded locally and a simulator posts the callback back to this service.
func (a *Application) newWhisper(ctx context.Context) (stt.Transcriber, error) {
	cfg := whisper.Config{
		Region:       a.Cfg.Whisper.Region,
		AccessKey:    a.Cfg.Whisper.AccessKey,
		AccessSecret: a.Cfg.Whisper.AccessSecret,
		FunctionName: a.Cfg.Whisper.FunctionName,
	}

	var client whisper.LambdaAPI
	switch a.Cfg.STT.Provider {
	case "mock":
		lc := mock.NewLambdaClient()
		lc.OnInvoke(mock.NewSimulator(a.Cfg.STT.MockDelay).Hook())
		client = lc
	case whisper.ProviderName:
		lc, err := whisper.NewLambdaClient(ctx, cfg)
		if err != nil {
			return nil, err
		}
		client = lc
	default:
		return nil, fmt.Errorf("%w: %s", stt.ErrProviderNotFound, a.Cfg.STT.Provider)
	}

	t := whisper.New(cfg, client, a.Store)
	t.ConfigureCallback(a.Cfg.Whisper.CallbackMethod, a.CallbackURL(whisper.ProviderName))
	return t, nil
}

// CallbackURL is the public address providers deliver results to.
func (a *Application) CallbackURL(provider string) string {
	return a.Cfg.Service.PublicBaseURL + "/v1/callbacks/" + provider
}

// Ready reports whether the service can take traffic.
func (a *Application) Ready(ctx context.Context) error {
	if a.Store == nil || a.Service == nil {
		return fmt.Errorf("application not started")
	}
	return a.Store.Ping(ctx)
}

// Shutdown performs a best-effort cleanup before process exit.
func (a *Application) Shutdown() {
	shutdownLogger := a.Logger.With().
		Str("method", "Shutdown").
		Logger()

	if a.Publisher != nil {
		if err := a.Publisher.Close(); err != nil {
			shutdownLogger.Error().Err(err).Msg("Failed to close publisher")
		}
	}
	if a.Store != nil {
		if err := a.Store.Close(); err != nil {
			shutdownLogger.Error().Err(err).Msg("Failed to close store")
		}
	}

	shutdownLogger.Info().Msg("AI Speech Transcription service shutting down")
}
