// Package transcript coordinates transcription jobs between the HTTP
// surface, the provider registry, the store and the event publisher.
package transcript

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"ai-speech-transcription-service/internal/models"
	"ai-speech-transcription-service/internal/observability/logging"
	"ai-speech-transcription-service/internal/observability/metrics"
	"ai-speech-transcription-service/internal/schema"
	"ai-speech-transcription-service/internal/service/stt"
)

// Store is the transcript persistence the service needs. Segment writes go
// through the provider's own repository.
type Store interface {
	CreateTranscript(ctx context.Context, t *models.Transcript) error
	GetTranscript(ctx context.Context, id int64) (*models.Transcript, error)
	GetTranscriptByExternalID(ctx context.Context, provider, externalID string) (*models.Transcript, error)
	UpdateStatus(ctx context.Context, id int64, status, errorType, errorMessage string) error
	ListSegments(ctx context.Context, transcriptID int64) ([]models.TranscriptSegment, error)
}

// Publisher emits outcome events.
type Publisher interface {
	PublishCompleted(ctx context.Context, ev models.TranscriptCompleted) error
	PublishFailed(ctx context.Context, ev models.TranscriptFailed) error
}

// AudioResolver turns a stored audio location into a fetchable URL.
type AudioResolver interface {
	Resolve(ctx context.Context, location string) (string, error)
}

// Config holds service defaults.
type Config struct {
	DefaultProvider string
	DefaultLanguage string
}

// CreateRequest starts a new transcription.
type CreateRequest struct {
	AudioURL        string `json:"audio_url" validate:"required,url"`
	LanguageCode    string `json:"language_code" validate:"omitempty,bcp47_language_tag"`
	MaxSpeakerCount *int   `json:"max_speaker_count,omitempty"`
	Provider        string `json:"provider,omitempty"`
}

// CallbackResult summarizes an applied callback.
type CallbackResult struct {
	TranscriptID int64      `json:"id"`
	JobID        string     `json:"job_id"`
	Status       stt.Status `json:"-"`
	StatusName   string     `json:"status"`
	Segments     int        `json:"segments"`
}

// Service implements the host side of the transcription flow.
type Service struct {
	registry  *stt.Registry
	store     Store
	publisher Publisher
	resolver  AudioResolver
	validator *schema.Validator
	metrics   *metrics.Metrics
	cfg       Config

	// Lifecycles of transcripts that received at least one callback and
	// are not final yet.
	mu         sync.Mutex
	lifecycles map[int64]*Lifecycle
}

// NewService creates a transcript service. resolver may be nil, in which
// case audio locations are submitted as given.
func NewService(cfg Config, registry *stt.Registry, store Store, publisher Publisher, resolver AudioResolver) *Service {
	return &Service{
		registry:   registry,
		store:      store,
		publisher:  publisher,
		resolver:   resolver,
		validator:  schema.New(),
		metrics:    metrics.DefaultMetrics,
		cfg:        cfg,
		lifecycles: make(map[int64]*Lifecycle),
	}
}

// Create submits the audio to the requested provider and records a
// processing transcript for the returned job id.
func (s *Service) Create(ctx context.Context, req CreateRequest) (*models.Transcript, error) {
	if err := s.validator.ValidateRequest(req); err != nil {
		return nil, err
	}

	provider := req.Provider
	if provider == "" {
		provider = s.cfg.DefaultProvider
	}
	language := req.LanguageCode
	if language == "" {
		language = s.cfg.DefaultLanguage
	}

	t, err := s.registry.Get(provider)
	if err != nil {
		return nil, err
	}

	audioURL := req.AudioURL
	if s.resolver != nil {
		if audioURL, err = s.resolver.Resolve(ctx, req.AudioURL); err != nil {
			return nil, err
		}
	}

	outcome, err := t.Submit(ctx, audioURL, language, req.MaxSpeakerCount)
	if err != nil {
		return nil, err
	}

	tr := &models.Transcript{
		ExternalID:   outcome.ID,
		Provider:     provider,
		Status:       outcome.Status.String(),
		AudioURL:     req.AudioURL,
		LanguageCode: language,
	}
	if err := s.store.CreateTranscript(ctx, tr); err != nil {
		logger := logging.WithJob(provider, outcome.ID)
		logger.Error().Err(err).Msg("Job dispatched but transcript could not be stored")
		return nil, err
	}

	logger := logging.WithTranscript(tr.ID, tr.ExternalID)
	logger.Info().
		Str("provider", provider).
		Str("languageCode", language).
		Msg("Transcript created")
	return tr, nil
}

// HandleCallback validates, maps and applies a provider callback. A
// callback that fails validation is never mapped.
func (s *Service) HandleCallback(ctx context.Context, provider string, header http.Header, body map[string]any) (*CallbackResult, error) {
	t, err := s.registry.Get(provider)
	if err != nil {
		return nil, err
	}

	if err := t.ValidateCallback(header, body); err != nil {
		s.metrics.RecordCallbackRejected(provider, "validation")
		return nil, err
	}

	outcome, err := t.MapCallback(header, body)
	if err != nil {
		s.metrics.RecordCallbackRejected(provider, "mapping")
		return nil, err
	}

	logger := logging.WithJob(provider, outcome.ID)

	tr, err := s.store.GetTranscriptByExternalID(ctx, provider, outcome.ID)
	if err != nil {
		s.metrics.RecordCallbackRejected(provider, "unknown_job")
		logger.Warn().Err(err).Msg("Callback for unknown job")
		return nil, err
	}

	lc, err := s.lifecycle(tr)
	if err != nil {
		return nil, err
	}
	if err := lc.Begin(outcome.Status); err != nil {
		s.metrics.RecordCallbackRejected(provider, "duplicate")
		logger.Warn().Err(err).Int64("transcriptId", tr.ID).Msg("Callback ignored")
		return nil, err
	}

	// The row may have been finalized between the lookup and Begin.
	if current, err := s.store.GetTranscript(ctx, tr.ID); err != nil {
		lc.Abort()
		s.forget(tr.ID)
		return nil, err
	} else if current.Status != stt.StatusProcessing.String() {
		lc.Abort()
		s.forget(tr.ID)
		s.metrics.RecordCallbackRejected(provider, "duplicate")
		return nil, fmt.Errorf("%w: transcript %d is %s", ErrAlreadyFinalized, tr.ID, current.Status)
	}

	result, err := s.apply(ctx, t, tr, outcome)
	if err != nil {
		lc.Abort()
		s.forget(tr.ID)
		return nil, err
	}

	lc.Commit(outcome.Status)
	s.forget(tr.ID)
	return result, nil
}

func (s *Service) apply(ctx context.Context, t stt.Transcriber, tr *models.Transcript, outcome *stt.Outcome) (*CallbackResult, error) {
	logger := logging.WithTranscript(tr.ID, outcome.ID)

	result := &CallbackResult{
		TranscriptID: tr.ID,
		JobID:        outcome.ID,
		Status:       outcome.Status,
		StatusName:   outcome.Status.String(),
	}

	if outcome.Status == stt.StatusCompleted {
		if err := t.Ingest(ctx, outcome, tr.ID); err != nil {
			return nil, err
		}
		segs, err := s.store.ListSegments(ctx, tr.ID)
		if err != nil {
			return nil, err
		}
		result.Segments = len(segs)
	}

	if err := s.store.UpdateStatus(ctx, tr.ID, outcome.Status.String(), outcome.ErrorType, outcome.ErrorMessage); err != nil {
		logger.Error().Err(err).Msg("Failed to update transcript status")
		return nil, err
	}

	logger.Info().
		Str("status", outcome.Status.String()).
		Int("segments", result.Segments).
		Msg("Callback applied")

	s.publish(ctx, tr, outcome, result.Segments)
	return result, nil
}

func (s *Service) publish(ctx context.Context, tr *models.Transcript, outcome *stt.Outcome, segments int) {
	if s.publisher == nil {
		return
	}

	var err error
	switch outcome.Status {
	case stt.StatusCompleted:
		err = s.publisher.PublishCompleted(ctx, models.TranscriptCompleted{
			EventType:    models.EventTranscriptCompleted,
			TranscriptID: tr.ID,
			JobID:        outcome.ID,
			Provider:     tr.Provider,
			SegmentCount: segments,
			Timestamp:    time.Now().UnixMilli(),
		})
	case stt.StatusFailed:
		err = s.publisher.PublishFailed(ctx, models.TranscriptFailed{
			EventType:    models.EventTranscriptFailed,
			TranscriptID: tr.ID,
			JobID:        outcome.ID,
			Provider:     tr.Provider,
			ErrorType:    outcome.ErrorType,
			ErrorMessage: outcome.ErrorMessage,
			Timestamp:    time.Now().UnixMilli(),
		})
	}
	if err != nil {
		logger := logging.WithTranscript(tr.ID, outcome.ID)
		logger.Error().Err(err).Msg("Failed to publish outcome event")
	}
}

// lifecycle returns the shared lifecycle for tr, seeding it from the stored
// status on first use.
func (s *Service) lifecycle(tr *models.Transcript) (*Lifecycle, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if lc, ok := s.lifecycles[tr.ID]; ok {
		return lc, nil
	}

	status, err := stt.ParseStatus(tr.Status)
	if err != nil {
		return nil, fmt.Errorf("transcript %d: %w", tr.ID, err)
	}
	lc := NewLifecycle(tr.ID, status)
	if !lc.IsFinal() {
		s.lifecycles[tr.ID] = lc
	}
	return lc, nil
}

func (s *Service) forget(id int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.lifecycles, id)
}

// Get returns a transcript with its segments in stored order.
func (s *Service) Get(ctx context.Context, id int64) (*models.Transcript, error) {
	tr, err := s.store.GetTranscript(ctx, id)
	if err != nil {
		return nil, err
	}

	segs, err := s.store.ListSegments(ctx, id)
	if err != nil {
		return nil, err
	}
	tr.Segments = segs
	return tr, nil
}

// IsFinalized reports whether err means the transcript already reached a
// terminal status.
func IsFinalized(err error) bool {
	return errors.Is(err, ErrAlreadyFinalized) || errors.Is(err, ErrFinalizing)
}
