// Package models defines the transcript records and outcome events.
package models

import "time"

// Word is the finest-grained timed unit within a segment.
type Word struct {
	StartTime string `json:"start_time"`
	EndTime   string `json:"end_time"`
	Content   string `json:"content"`
}

// TranscriptSegment is one contiguous span of transcribed speech.
// SpeakerLabel is nil when the provider did not attribute a speaker.
type TranscriptSegment struct {
	ID           int64   `json:"id"`
	TranscriptID int64   `json:"transcript_id"`
	StartTime    string  `json:"start_time"`
	EndTime      string  `json:"end_time"`
	Content      string  `json:"content"`
	Words        []Word  `json:"words"`
	SpeakerLabel *string `json:"speaker_label"`
}

// Transcript is the host-side record correlated with a provider job
// through ExternalID.
type Transcript struct {
	ID           int64               `json:"id"`
	ExternalID   string              `json:"external_id"`
	Provider     string              `json:"provider"`
	Status       string              `json:"status"`
	AudioURL     string              `json:"audio_url"`
	LanguageCode string              `json:"language_code"`
	ErrorType    string              `json:"error_type,omitempty"`
	ErrorMessage string              `json:"error_message,omitempty"`
	CreatedAt    time.Time           `json:"created_at"`
	UpdatedAt    time.Time           `json:"updated_at"`
	Segments     []TranscriptSegment `json:"segments,omitempty"`
}

// TranscriptCompleted is published once a completed result has been ingested.
type TranscriptCompleted struct {
	EventType    string `json:"eventType" validate:"eq=transcript.completed"`
	TranscriptID int64  `json:"transcriptId" validate:"gt=0"`
	JobID        string `json:"jobId" validate:"required,uuid"`
	Provider     string `json:"provider" validate:"required"`
	SegmentCount int    `json:"segmentCount" validate:"gte=0"`
	Timestamp    int64  `json:"timestamp" validate:"gt=0"`
}

// TranscriptFailed is published when the provider reports a failed job.
type TranscriptFailed struct {
	EventType    string `json:"eventType" validate:"eq=transcript.failed"`
	TranscriptID int64  `json:"transcriptId" validate:"gt=0"`
	JobID        string `json:"jobId" validate:"required,uuid"`
	Provider     string `json:"provider" validate:"required"`
	ErrorType    string `json:"errorType,omitempty"`
	ErrorMessage string `json:"errorMessage,omitempty"`
	Timestamp    int64  `json:"timestamp" validate:"gt=0"`
}

const (
	EventTranscriptCompleted = "transcript.completed"
	EventTranscriptFailed    = "transcript.failed"
)
