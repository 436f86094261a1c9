// Package segment turns provider segment objects into normalized
// transcript segment records.
package segment

import (
	"errors"
	"fmt"
	"strings"

	"ai-speech-transcription-service/internal/models"
)

// Errors returned while parsing a provider result. Any of them aborts the
// whole result; no partial set of segments is ever returned.
var (
	ErrMalformedOffset = errors.New("malformed time offset")
	ErrMissingField    = errors.New("missing required field")
	ErrInvalidField    = errors.New("invalid field type")
)

// ParseAll parses every element of result["segments"] in payload order.
// A result without segments yields no records.
func ParseAll(result map[string]any, transcriptID int64) ([]*models.TranscriptSegment, error) {
	raw, ok := result["segments"]
	if !ok || raw == nil {
		return nil, nil
	}

	list, ok := raw.([]any)
	if !ok {
		return nil, fmt.Errorf("segments: %w: %T", ErrInvalidField, raw)
	}

	segments := make([]*models.TranscriptSegment, 0, len(list))
	for i, item := range list {
		obj, ok := item.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("segment %d: %w: %T", i, ErrInvalidField, item)
		}

		seg, err := Parse(obj, transcriptID)
		if err != nil {
			return nil, fmt.Errorf("segment %d: %w", i, err)
		}
		segments = append(segments, seg)
	}
	return segments, nil
}

// Parse converts one provider segment object into a record owned by
// transcriptID. Text is trimmed, offsets normalized, words kept in order and
// speaker_label carried through as-is.
func Parse(raw map[string]any, transcriptID int64) (*models.TranscriptSegment, error) {
	text, err := stringField(raw, "text")
	if err != nil {
		return nil, err
	}
	start, err := offsetField(raw, "start")
	if err != nil {
		return nil, err
	}
	end, err := offsetField(raw, "end")
	if err != nil {
		return nil, err
	}

	words, err := parseWords(raw)
	if err != nil {
		return nil, err
	}

	var speaker *string
	if v, ok := raw["speaker_label"]; ok && v != nil {
		label, ok := v.(string)
		if !ok {
			return nil, fmt.Errorf("speaker_label: %w: %T", ErrInvalidField, v)
		}
		speaker = &label
	}

	return &models.TranscriptSegment{
		TranscriptID: transcriptID,
		StartTime:    start,
		EndTime:      end,
		Content:      strings.TrimSpace(text),
		Words:        words,
		SpeakerLabel: speaker,
	}, nil
}

func parseWords(raw map[string]any) ([]models.Word, error) {
	v, ok := raw["words"]
	if !ok || v == nil {
		return nil, fmt.Errorf("words: %w", ErrMissingField)
	}
	list, ok := v.([]any)
	if !ok {
		return nil, fmt.Errorf("words: %w: %T", ErrInvalidField, v)
	}

	words := make([]models.Word, 0, len(list))
	for i, item := range list {
		obj, ok := item.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("word %d: %w: %T", i, ErrInvalidField, item)
		}

		content, err := stringField(obj, "word")
		if err != nil {
			return nil, fmt.Errorf("word %d: %w", i, err)
		}
		start, err := offsetField(obj, "start")
		if err != nil {
			return nil, fmt.Errorf("word %d: %w", i, err)
		}
		end, err := offsetField(obj, "end")
		if err != nil {
			return nil, fmt.Errorf("word %d: %w", i, err)
		}

		words = append(words, models.Word{
			StartTime: start,
			EndTime:   end,
			Content:   strings.TrimSpace(content),
		})
	}
	return words, nil
}

func stringField(obj map[string]any, key string) (string, error) {
	v, ok := obj[key]
	if !ok || v == nil {
		return "", fmt.Errorf("%s: %w", key, ErrMissingField)
	}
	s, ok := v.(string)
	if !ok {
		return "", fmt.Errorf("%s: %w: %T", key, ErrInvalidField, v)
	}
	return s, nil
}

func offsetField(obj map[string]any, key string) (string, error) {
	v, ok := obj[key]
	if !ok {
		return "", fmt.Errorf("%s: %w", key, ErrMissingField)
	}
	formatted, err := FormatOffset(v)
	if err != nil {
		return "", fmt.Errorf("%s: %w", key, err)
	}
	return formatted, nil
}
