package transcript

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ai-speech-transcription-service/internal/models"
	"ai-speech-transcription-service/internal/schema"
	"ai-speech-transcription-service/internal/service/segment"
	"ai-speech-transcription-service/internal/service/stt"
	"ai-speech-transcription-service/internal/service/stt/mock"
	"ai-speech-transcription-service/internal/service/stt/whisper"
	"ai-speech-transcription-service/internal/store"
)

const audioURL = "https://example.s3.amazonaws.com/recordings/test.wav"

type recordingPublisher struct {
	mu        sync.Mutex
	completed []models.TranscriptCompleted
	failed    []models.TranscriptFailed
	err       error
}

func (p *recordingPublisher) PublishCompleted(_ context.Context, ev models.TranscriptCompleted) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.completed = append(p.completed, ev)
	return p.err
}

func (p *recordingPublisher) PublishFailed(_ context.Context, ev models.TranscriptFailed) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.failed = append(p.failed, ev)
	return p.err
}

type prefixResolver struct{}

func (prefixResolver) Resolve(_ context.Context, location string) (string, error) {
	return "https://signed.example.com/?src=" + location, nil
}

type fixture struct {
	svc       *Service
	store     *store.Store
	lambda    *mock.LambdaClient
	publisher *recordingPublisher
}

func newFixture(t *testing.T, resolver AudioResolver) *fixture {
	t.Helper()

	st, err := store.Open(context.Background(), store.Config{Driver: store.DriverSQLite, DSN: ":memory:"})
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })
	require.NoError(t, st.Migrate(context.Background()))

	lambda := mock.NewLambdaClient()
	tr := whisper.New(whisper.DefaultConfig(), lambda, st)
	tr.ConfigureCallback(http.MethodPost, "https://host.example.com/v1/callbacks/onramp_lab_whisper")

	registry := stt.NewRegistry()
	registry.Register(whisper.ProviderName, func() (stt.Transcriber, error) { return tr, nil })

	pub := &recordingPublisher{}
	svc := NewService(Config{DefaultProvider: whisper.ProviderName, DefaultLanguage: "en-US"}, registry, st, pub, resolver)

	return &fixture{svc: svc, store: st, lambda: lambda, publisher: pub}
}

func (f *fixture) create(t *testing.T, speakers *int) *models.Transcript {
	t.Helper()
	tr, err := f.svc.Create(context.Background(), CreateRequest{AudioURL: audioURL, MaxSpeakerCount: speakers})
	require.NoError(t, err)
	return tr
}

func lastPayload(t *testing.T, c *mock.LambdaClient) map[string]any {
	t.Helper()
	invocations := c.Invocations()
	require.NotEmpty(t, invocations)
	var p map[string]any
	require.NoError(t, json.Unmarshal(invocations[len(invocations)-1].Payload, &p))
	return p
}

func TestCreate(t *testing.T) {
	f := newFixture(t, nil)
	speakers := 2

	tr := f.create(t, &speakers)

	assert.NotZero(t, tr.ID)
	assert.Equal(t, "processing", tr.Status)
	assert.Equal(t, whisper.ProviderName, tr.Provider)
	assert.Equal(t, "en-US", tr.LanguageCode)

	payload := lastPayload(t, f.lambda)
	assert.Equal(t, tr.ExternalID, payload["name"])
	assert.Equal(t, "en", payload["language_code"])
	assert.Equal(t, float64(2), payload["max_speaker_count"])

	stored, err := f.store.GetTranscriptByExternalID(context.Background(), whisper.ProviderName, tr.ExternalID)
	require.NoError(t, err)
	assert.Equal(t, tr.ID, stored.ID)
}

func TestCreate_InvalidRequest(t *testing.T) {
	f := newFixture(t, nil)

	_, err := f.svc.Create(context.Background(), CreateRequest{})

	var verr *schema.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Contains(t, verr.Fields, "audio_url")
	assert.Empty(t, f.lambda.Invocations())
}

func TestCreate_UnknownProvider(t *testing.T) {
	f := newFixture(t, nil)

	_, err := f.svc.Create(context.Background(), CreateRequest{AudioURL: audioURL, Provider: "nope"})
	assert.ErrorIs(t, err, stt.ErrProviderNotFound)
}

func TestCreate_ResolvesAudioLocation(t *testing.T) {
	f := newFixture(t, prefixResolver{})

	tr, err := f.svc.Create(context.Background(), CreateRequest{AudioURL: "s3://recordings/call.wav"})
	require.NoError(t, err)

	assert.Equal(t, "https://signed.example.com/?src=s3://recordings/call.wav", lastPayload(t, f.lambda)["audio_url"])
	assert.Equal(t, "s3://recordings/call.wav", tr.AudioURL)
}

func TestCreate_DispatchError(t *testing.T) {
	f := newFixture(t, nil)
	f.lambda.SetError(errors.New("ResourceNotFoundException"))

	_, err := f.svc.Create(context.Background(), CreateRequest{AudioURL: audioURL})
	assert.ErrorIs(t, err, stt.ErrDispatch)

	external := lastPayload(t, f.lambda)["name"].(string)
	_, err = f.store.GetTranscriptByExternalID(context.Background(), whisper.ProviderName, external)
	assert.ErrorIs(t, err, store.ErrTranscriptNotFound)
}

func TestHandleCallback_Completed(t *testing.T) {
	f := newFixture(t, nil)
	speakers := 2
	tr := f.create(t, &speakers)

	body := mock.CompletedCallback(tr.ExternalID, mock.DefaultSegments[:3], speakers)
	result, err := f.svc.HandleCallback(context.Background(), whisper.ProviderName, http.Header{}, body)
	require.NoError(t, err)

	assert.Equal(t, tr.ID, result.TranscriptID)
	assert.Equal(t, stt.StatusCompleted, result.Status)
	assert.Equal(t, 3, result.Segments)

	got, err := f.svc.Get(context.Background(), tr.ID)
	require.NoError(t, err)
	assert.Equal(t, "completed", got.Status)
	require.Len(t, got.Segments, 3)
	assert.Equal(t, "I want to cancel my subscription", got.Segments[0].Content)
	assert.Equal(t, "00:00:00.480", got.Segments[0].StartTime)
	assert.Equal(t, "speaker_2", *got.Segments[1].SpeakerLabel)
	assert.Len(t, got.Segments[2].Words, 7)

	require.Len(t, f.publisher.completed, 1)
	ev := f.publisher.completed[0]
	assert.Equal(t, models.EventTranscriptCompleted, ev.EventType)
	assert.Equal(t, tr.ExternalID, ev.JobID)
	assert.Equal(t, 3, ev.SegmentCount)
}

func TestHandleCallback_Duplicate(t *testing.T) {
	f := newFixture(t, nil)
	tr := f.create(t, nil)
	body := mock.CompletedCallback(tr.ExternalID, mock.DefaultSegments[:2], 0)

	_, err := f.svc.HandleCallback(context.Background(), whisper.ProviderName, http.Header{}, body)
	require.NoError(t, err)

	_, err = f.svc.HandleCallback(context.Background(), whisper.ProviderName, http.Header{}, body)
	assert.ErrorIs(t, err, ErrAlreadyFinalized)

	failed := mock.FailedCallback(tr.ExternalID, "Timeout", "late failure")
	_, err = f.svc.HandleCallback(context.Background(), whisper.ProviderName, http.Header{}, failed)
	assert.ErrorIs(t, err, ErrAlreadyFinalized)

	segs, err := f.store.ListSegments(context.Background(), tr.ID)
	require.NoError(t, err)
	assert.Len(t, segs, 2)
	assert.Len(t, f.publisher.completed, 1)
	assert.Empty(t, f.publisher.failed)
}

func TestHandleCallback_ConcurrentDuplicates(t *testing.T) {
	f := newFixture(t, nil)
	tr := f.create(t, nil)
	body := mock.CompletedCallback(tr.ExternalID, mock.DefaultSegments, 0)

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		applied int
	)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := f.svc.HandleCallback(context.Background(), whisper.ProviderName, http.Header{}, body); err == nil {
				mu.Lock()
				applied++
				mu.Unlock()
			} else {
				assert.True(t, IsFinalized(err), "unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, applied)
	segs, err := f.store.ListSegments(context.Background(), tr.ID)
	require.NoError(t, err)
	assert.Len(t, segs, len(mock.DefaultSegments))
}

func TestHandleCallback_Failed(t *testing.T) {
	f := newFixture(t, nil)
	tr := f.create(t, nil)

	body := mock.FailedCallback(tr.ExternalID, "DecodeError", "ffmpeg could not read input")
	result, err := f.svc.HandleCallback(context.Background(), whisper.ProviderName, http.Header{}, body)
	require.NoError(t, err)
	assert.Equal(t, stt.StatusFailed, result.Status)
	assert.Zero(t, result.Segments)

	got, err := f.svc.Get(context.Background(), tr.ID)
	require.NoError(t, err)
	assert.Equal(t, "failed", got.Status)
	assert.Equal(t, "DecodeError", got.ErrorType)
	assert.Equal(t, "ffmpeg could not read input", got.ErrorMessage)
	assert.Empty(t, got.Segments)

	require.Len(t, f.publisher.failed, 1)
	assert.Equal(t, "DecodeError", f.publisher.failed[0].ErrorType)
}

func TestHandleCallback_PublishErrorDoesNotFailCallback(t *testing.T) {
	f := newFixture(t, nil)
	f.publisher.err = errors.New("kafka: leader not available")
	tr := f.create(t, nil)

	body := mock.CompletedCallback(tr.ExternalID, mock.DefaultSegments[:2], 0)
	result, err := f.svc.HandleCallback(context.Background(), whisper.ProviderName, http.Header{}, body)
	require.NoError(t, err)
	assert.Equal(t, 2, result.Segments)
	require.Len(t, f.publisher.completed, 1)

	got, err := f.svc.Get(context.Background(), tr.ID)
	require.NoError(t, err)
	assert.Equal(t, "completed", got.Status)
}

func TestHandleCallback_InvalidBody(t *testing.T) {
	f := newFixture(t, nil)
	tr := f.create(t, nil)

	_, err := f.svc.HandleCallback(context.Background(), whisper.ProviderName, http.Header{}, map[string]any{
		"name":   tr.ExternalID,
		"status": 3,
	})

	var verr *schema.ValidationError
	require.ErrorAs(t, err, &verr)

	got, err := f.svc.Get(context.Background(), tr.ID)
	require.NoError(t, err)
	assert.Equal(t, "processing", got.Status)
}

func TestHandleCallback_UnrecognizedStatus(t *testing.T) {
	f := newFixture(t, nil)
	tr := f.create(t, nil)

	_, err := f.svc.HandleCallback(context.Background(), whisper.ProviderName, http.Header{}, map[string]any{
		"name":   tr.ExternalID,
		"status": "queued",
	})
	assert.ErrorIs(t, err, stt.ErrUnrecognizedStatus)
}

func TestHandleCallback_UnknownJob(t *testing.T) {
	f := newFixture(t, nil)

	body := mock.CompletedCallback("5b0a3c4e-9a7d-4d7e-8f65-2d4c1b3a9e01", mock.DefaultSegments, 0)
	_, err := f.svc.HandleCallback(context.Background(), whisper.ProviderName, http.Header{}, body)
	assert.ErrorIs(t, err, store.ErrTranscriptNotFound)
}

func TestHandleCallback_UnknownProvider(t *testing.T) {
	f := newFixture(t, nil)

	_, err := f.svc.HandleCallback(context.Background(), "nope", http.Header{}, map[string]any{})
	assert.ErrorIs(t, err, stt.ErrProviderNotFound)
}

func TestHandleCallback_MalformedResultCanBeRedelivered(t *testing.T) {
	f := newFixture(t, nil)
	tr := f.create(t, nil)

	body := mock.CompletedCallback(tr.ExternalID, mock.DefaultSegments[:2], 0)
	segs := body["transcript"].(map[string]any)["segments"].([]any)
	segs[1].(map[string]any)["start"] = "soon"

	_, err := f.svc.HandleCallback(context.Background(), whisper.ProviderName, http.Header{}, body)
	assert.ErrorIs(t, err, segment.ErrMalformedOffset)

	got, err := f.svc.Get(context.Background(), tr.ID)
	require.NoError(t, err)
	assert.Equal(t, "processing", got.Status)
	assert.Empty(t, got.Segments)

	f.svc.mu.Lock()
	assert.Empty(t, f.svc.lifecycles, "aborted lifecycle must not be retained")
	f.svc.mu.Unlock()

	fixed := mock.CompletedCallback(tr.ExternalID, mock.DefaultSegments[:2], 0)
	_, err = f.svc.HandleCallback(context.Background(), whisper.ProviderName, http.Header{}, fixed)
	require.NoError(t, err)
}

func TestGet_NotFound(t *testing.T) {
	f := newFixture(t, nil)

	_, err := f.svc.Get(context.Background(), 404)
	assert.ErrorIs(t, err, store.ErrTranscriptNotFound)
}
