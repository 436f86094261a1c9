// Package whisper provides an asynchronous Whisper transcriber running as
// an AWS Lambda function that reports back through an HTTP callback.
package whisper

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/lambda"
	"github.com/aws/aws-sdk-go-v2/service/lambda/types"
	"github.com/google/uuid"

	"ai-speech-transcription-service/internal/observability/logging"
	"ai-speech-transcription-service/internal/observability/metrics"
	"ai-speech-transcription-service/internal/schema"
	"ai-speech-transcription-service/internal/service/segment"
	"ai-speech-transcription-service/internal/service/stt"
)

const (
	// ProviderName is the driver name the transcriber registers under.
	ProviderName = "onramp_lab_whisper"

	// DefaultFunctionName is the versioned remote function.
	DefaultFunctionName = "open-ai-whisper-transcribe:v2"
)

var ErrInvalidSpeakerCount = errors.New("max speaker count must be positive")

// Config holds the Lambda credentials and target.
type Config struct {
	Region       string
	AccessKey    string
	AccessSecret string
	FunctionName string
}

// DefaultConfig returns the default whisper configuration.
func DefaultConfig() Config {
	return Config{
		Region:       "us-east-1",
		FunctionName: DefaultFunctionName,
	}
}

// Transcriber implements stt.Transcriber on top of a one-way Lambda invocation.
//
// The callback endpoint is plain state read by Submit. ConfigureCallback is
// not synchronized; callers that reconfigure while submitting must serialize
// the two themselves.
type Transcriber struct {
	client       LambdaAPI
	functionName string
	segments     stt.SegmentRepository
	validator    *schema.Validator
	metrics      *metrics.Metrics

	callbackMethod string
	callbackURL    string
}

var _ stt.Transcriber = (*Transcriber)(nil)

// New creates a whisper transcriber. Parsed segments are handed to segments.
func New(cfg Config, client LambdaAPI, segments stt.SegmentRepository) *Transcriber {
	fn := cfg.FunctionName
	if fn == "" {
		fn = DefaultFunctionName
	}
	return &Transcriber{
		client:         client,
		functionName:   fn,
		segments:       segments,
		validator:      schema.New(),
		metrics:        metrics.DefaultMetrics,
		callbackMethod: http.MethodPost,
	}
}

// Submit dispatches a new job and returns immediately with a processing
// outcome carrying the generated job id.
func (t *Transcriber) Submit(ctx context.Context, audioURL, languageCode string, maxSpeakerCount *int) (*stt.Outcome, error) {
	if maxSpeakerCount != nil && *maxSpeakerCount < 1 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidSpeakerCount, *maxSpeakerCount)
	}

	id := uuid.NewString()
	payload := InvocationPayload{
		Name:           id,
		AudioURL:       audioURL,
		LanguageCode:   BaseLanguage(languageCode),
		CallbackMethod: t.callbackMethod,
		CallbackURL:    t.callbackURL,
	}
	if maxSpeakerCount != nil {
		payload.Diarization = &Diarization{
			EnableSpeakerIdentification: true,
			MaxSpeakerCount:             *maxSpeakerCount,
		}
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal invocation payload: %w", err)
	}

	logger := logging.WithJob(ProviderName, id)
	logger.Debug().
		Str("function", t.functionName).
		RawJSON("payload", body).
		Msg("Dispatching transcription job")

	start := time.Now()
	_, err = t.client.Invoke(ctx, &lambda.InvokeInput{
		FunctionName:   aws.String(t.functionName),
		InvocationType: types.InvocationTypeEvent,
		Payload:        body,
	})
	t.metrics.RecordSubmission(ProviderName, err, time.Since(start).Seconds())
	if err != nil {
		logger.Error().Err(err).Str("function", t.functionName).Msg("Failed to dispatch transcription job")
		return nil, fmt.Errorf("%w: %w", stt.ErrDispatch, err)
	}

	logger.Info().
		Str("languageCode", payload.LanguageCode).
		Bool("diarization", payload.Diarization != nil).
		Msg("Transcription job dispatched")

	return &stt.Outcome{ID: id, Status: stt.StatusProcessing}, nil
}

// ValidateCallback checks the callback body. Headers are not inspected.
func (t *Transcriber) ValidateCallback(header http.Header, body map[string]any) error {
	return t.validator.ValidateCallback(body)
}

// MapCallback converts a validated callback body into an outcome. The job id
// is taken verbatim from "name"; for completed jobs the result is the
// "transcript" object as delivered.
func (t *Transcriber) MapCallback(header http.Header, body map[string]any) (*stt.Outcome, error) {
	id, _ := body["name"].(string)
	raw, _ := body["status"].(string)

	status, err := resultStatus(raw)
	if err != nil {
		return nil, err
	}

	out := &stt.Outcome{ID: id, Status: status}
	switch status {
	case stt.StatusCompleted:
		result, ok := body["transcript"].(map[string]any)
		if !ok {
			return nil, &schema.ValidationError{Fields: map[string]string{
				"transcript": "is required when status is completed",
			}}
		}
		out.Result = result
	case stt.StatusFailed:
		out.ErrorType, _ = body["error_type"].(string)
		out.ErrorMessage, _ = body["error_message"].(string)
	}

	t.metrics.RecordCallback(ProviderName, status.String())
	return out, nil
}

// resultStatus maps the provider status vocabulary onto stt.Status.
func resultStatus(v string) (stt.Status, error) {
	switch v {
	case "completed":
		return stt.StatusCompleted, nil
	case "failed":
		return stt.StatusFailed, nil
	default:
		return 0, fmt.Errorf("%w: %q", stt.ErrUnrecognizedStatus, v)
	}
}

// ConfigureCallback sets the method and URL copied into later payloads.
// Jobs already submitted keep the values they were sent with.
func (t *Transcriber) ConfigureCallback(method, url string) {
	t.callbackMethod = method
	t.callbackURL = url
}

// CallbackMethod returns the configured callback method.
func (t *Transcriber) CallbackMethod() string { return t.callbackMethod }

// CallbackURL returns the configured callback URL.
func (t *Transcriber) CallbackURL() string { return t.callbackURL }

// Ingest parses the segments of a completed outcome and persists them in
// payload order. Every segment is parsed before the first write, so a
// malformed result stores nothing. Outcomes that are not completed are
// ignored.
func (t *Transcriber) Ingest(ctx context.Context, outcome *stt.Outcome, transcriptID int64) error {
	if outcome == nil || outcome.Status != stt.StatusCompleted {
		return nil
	}

	logger := logging.WithTranscript(transcriptID, outcome.ID)

	segments, err := segment.ParseAll(outcome.Result, transcriptID)
	if err != nil {
		t.metrics.RecordIngestFailure(ProviderName, "parse")
		logger.Error().Err(err).Msg("Failed to parse transcription result")
		return fmt.Errorf("parse result for job %s: %w", outcome.ID, err)
	}

	if batch, ok := t.segments.(stt.SegmentBatchRepository); ok {
		err = batch.CreateSegments(ctx, segments)
	} else {
		for _, seg := range segments {
			if err = t.segments.CreateSegment(ctx, seg); err != nil {
				break
			}
		}
	}
	if err != nil {
		t.metrics.RecordIngestFailure(ProviderName, "persist")
		logger.Error().Err(err).Msg("Failed to persist transcript segments")
		return fmt.Errorf("persist segments for job %s: %w", outcome.ID, err)
	}

	t.metrics.RecordSegmentsPersisted(len(segments))
	logger.Info().Int("segments", len(segments)).Msg("Transcription result ingested")
	return nil
}
