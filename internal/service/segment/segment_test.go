package segment

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func rawSegment() map[string]any {
	return map[string]any{
		"text":          "  Fantastic!  ",
		"start":         21.54,
		"end":           22.12,
		"speaker_label": "speaker_2",
		"words": []any{
			map[string]any{"word": " Fan", "start": 21.54, "end": 21.8},
			map[string]any{"word": "tastic! ", "start": 21.8, "end": 22.12},
		},
	}
}

func TestParse(t *testing.T) {
	seg, err := Parse(rawSegment(), 42)
	require.NoError(t, err)

	assert.Equal(t, int64(42), seg.TranscriptID)
	assert.Equal(t, "Fantastic!", seg.Content)
	assert.Equal(t, "00:00:21.540", seg.StartTime)
	assert.Equal(t, "00:00:22.120", seg.EndTime)
	require.NotNil(t, seg.SpeakerLabel)
	assert.Equal(t, "speaker_2", *seg.SpeakerLabel)

	require.Len(t, seg.Words, 2)
	assert.Equal(t, "Fan", seg.Words[0].Content)
	assert.Equal(t, "00:00:21.540", seg.Words[0].StartTime)
	assert.Equal(t, "00:00:21.800", seg.Words[0].EndTime)
	assert.Equal(t, "tastic!", seg.Words[1].Content)
	assert.Equal(t, "00:00:22.120", seg.Words[1].EndTime)
}

func TestParse_NoSpeakerLabel(t *testing.T) {
	raw := rawSegment()
	delete(raw, "speaker_label")

	seg, err := Parse(raw, 1)
	require.NoError(t, err)
	assert.Nil(t, seg.SpeakerLabel)

	raw["speaker_label"] = nil
	seg, err = Parse(raw, 1)
	require.NoError(t, err)
	assert.Nil(t, seg.SpeakerLabel)
}

func TestParse_EmptyWords(t *testing.T) {
	raw := rawSegment()
	raw["words"] = []any{}

	seg, err := Parse(raw, 1)
	require.NoError(t, err)
	assert.Empty(t, seg.Words)
}

func TestParse_Errors(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(map[string]any)
		target error
	}{
		{"missing text", func(m map[string]any) { delete(m, "text") }, ErrMissingField},
		{"text not string", func(m map[string]any) { m["text"] = 12 }, ErrInvalidField},
		{"missing start", func(m map[string]any) { delete(m, "start") }, ErrMissingField},
		{"negative end", func(m map[string]any) { m["end"] = -1.0 }, ErrMalformedOffset},
		{"garbage start", func(m map[string]any) { m["start"] = "soon" }, ErrMalformedOffset},
		{"missing words", func(m map[string]any) { delete(m, "words") }, ErrMissingField},
		{"words not list", func(m map[string]any) { m["words"] = "a b c" }, ErrInvalidField},
		{"word not object", func(m map[string]any) { m["words"] = []any{"hello"} }, ErrInvalidField},
		{"word missing text", func(m map[string]any) {
			m["words"] = []any{map[string]any{"start": 1.0, "end": 2.0}}
		}, ErrMissingField},
		{"word bad offset", func(m map[string]any) {
			m["words"] = []any{map[string]any{"word": "hi", "start": 1.0, "end": nil}}
		}, ErrMalformedOffset},
		{"speaker label not string", func(m map[string]any) { m["speaker_label"] = 1 }, ErrInvalidField},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			raw := rawSegment()
			tt.mutate(raw)

			seg, err := Parse(raw, 1)
			assert.Nil(t, seg)
			assert.ErrorIs(t, err, tt.target)
		})
	}
}

func TestParseAll_PreservesOrder(t *testing.T) {
	result := map[string]any{
		"segments": []any{
			map[string]any{"text": "third in time", "start": 20.0, "end": 21.0, "words": []any{}},
			map[string]any{"text": "first in time", "start": 0.0, "end": 1.0, "words": []any{}},
			map[string]any{"text": "overlapping", "start": 0.5, "end": 30.0, "words": []any{}},
		},
	}

	segments, err := ParseAll(result, 7)
	require.NoError(t, err)
	require.Len(t, segments, 3)
	assert.Equal(t, "third in time", segments[0].Content)
	assert.Equal(t, "first in time", segments[1].Content)
	assert.Equal(t, "overlapping", segments[2].Content)
	for _, s := range segments {
		assert.Equal(t, int64(7), s.TranscriptID)
	}
}

func TestParseAll_NoSegments(t *testing.T) {
	segments, err := ParseAll(map[string]any{}, 1)
	require.NoError(t, err)
	assert.Empty(t, segments)

	segments, err = ParseAll(nil, 1)
	require.NoError(t, err)
	assert.Empty(t, segments)
}

func TestParseAll_AllOrNothing(t *testing.T) {
	bad := rawSegment()
	bad["start"] = "n/a"
	result := map[string]any{
		"segments": []any{rawSegment(), rawSegment(), bad},
	}

	segments, err := ParseAll(result, 1)
	assert.Nil(t, segments)
	assert.ErrorIs(t, err, ErrMalformedOffset)
	assert.Contains(t, err.Error(), "segment 2")
}

func TestParseAll_InvalidShape(t *testing.T) {
	_, err := ParseAll(map[string]any{"segments": "nope"}, 1)
	assert.ErrorIs(t, err, ErrInvalidField)

	_, err = ParseAll(map[string]any{"segments": []any{42}}, 1)
	assert.ErrorIs(t, err, ErrInvalidField)
}

func TestParseAll_Idempotent(t *testing.T) {
	result := map[string]any{"segments": []any{rawSegment(), rawSegment()}}

	first, err := ParseAll(result, 3)
	require.NoError(t, err)
	second, err := ParseAll(result, 3)
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.NotSame(t, first[0], second[0])
}
