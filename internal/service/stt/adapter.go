// Package stt defines the contract for asynchronous speech-to-text providers.
package stt

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"ai-speech-transcription-service/internal/models"
)

// Status is the lifecycle state of a transcription job as seen by the host.
type Status int

const (
	// StatusProcessing - job dispatched, waiting for the provider callback.
	StatusProcessing Status = iota
	// StatusCompleted - provider delivered a result.
	StatusCompleted
	// StatusFailed - provider reported a failure.
	StatusFailed
)

// String returns the string representation of the status.
func (s Status) String() string {
	switch s {
	case StatusProcessing:
		return "processing"
	case StatusCompleted:
		return "completed"
	case StatusFailed:
		return "failed"
	default:
		return fmt.Sprintf("unknown(%d)", int(s))
	}
}

// IsTerminal returns true for completed and failed.
func (s Status) IsTerminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// ParseStatus is the inverse of Status.String.
func ParseStatus(v string) (Status, error) {
	switch v {
	case "processing":
		return StatusProcessing, nil
	case "completed":
		return StatusCompleted, nil
	case "failed":
		return StatusFailed, nil
	default:
		return 0, fmt.Errorf("%w: %q", ErrUnrecognizedStatus, v)
	}
}

var (
	ErrUnrecognizedStatus = errors.New("unrecognized transcription status")
	ErrDispatch           = errors.New("transcription dispatch failed")
	ErrProviderNotFound   = errors.New("transcription provider not found")
)

// Outcome is the tagged result of a submission or a mapped callback.
// Result is only set for completed outcomes and holds the provider
// payload before segment parsing.
type Outcome struct {
	ID           string
	Status       Status
	Result       map[string]any
	ErrorType    string
	ErrorMessage string
}

// Transcriber is implemented by every asynchronous provider.
type Transcriber interface {
	// Submit dispatches audio for transcription and returns a processing outcome.
	// maxSpeakerCount is nil when diarization is not requested.
	Submit(ctx context.Context, audioURL, languageCode string, maxSpeakerCount *int) (*Outcome, error)

	// ValidateCallback checks the shape of a decoded callback body.
	ValidateCallback(header http.Header, body map[string]any) error

	// MapCallback turns a validated callback body into an outcome.
	MapCallback(header http.Header, body map[string]any) (*Outcome, error)

	// ConfigureCallback sets where the provider should deliver the callback
	// for jobs submitted afterwards.
	ConfigureCallback(method, url string)

	// Ingest parses a completed outcome and persists its segments under transcriptID.
	Ingest(ctx context.Context, outcome *Outcome, transcriptID int64) error
}

// SegmentRepository is the persistence collaborator for parsed segments.
// Call order determines stored order.
type SegmentRepository interface {
	CreateSegment(ctx context.Context, seg *models.TranscriptSegment) error
}

// SegmentBatchRepository is implemented by stores that can persist a whole
// result atomically. Ingest prefers it when available.
type SegmentBatchRepository interface {
	CreateSegments(ctx context.Context, segs []*models.TranscriptSegment) error
}
