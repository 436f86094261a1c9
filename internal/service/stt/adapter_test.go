package stt

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStatus_String(t *testing.T) {
	tests := []struct {
		status   Status
		expected string
	}{
		{StatusProcessing, "processing"},
		{StatusCompleted, "completed"},
		{StatusFailed, "failed"},
		{Status(9), "unknown(9)"},
	}

	for _, tt := range tests {
		t.Run(tt.expected, func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.status.String())
		})
	}
}

func TestStatus_IsTerminal(t *testing.T) {
	assert.False(t, StatusProcessing.IsTerminal())
	assert.True(t, StatusCompleted.IsTerminal())
	assert.True(t, StatusFailed.IsTerminal())
}

func TestParseStatus(t *testing.T) {
	for _, s := range []Status{StatusProcessing, StatusCompleted, StatusFailed} {
		got, err := ParseStatus(s.String())
		require.NoError(t, err)
		assert.Equal(t, s, got)
	}

	_, err := ParseStatus("unknown")
	assert.ErrorIs(t, err, ErrUnrecognizedStatus)
}

type nopTranscriber struct{ id int }

func (nopTranscriber) Submit(context.Context, string, string, *int) (*Outcome, error) {
	return &Outcome{Status: StatusProcessing}, nil
}
func (nopTranscriber) ValidateCallback(http.Header, map[string]any) error { return nil }
func (nopTranscriber) MapCallback(http.Header, map[string]any) (*Outcome, error) {
	return &Outcome{}, nil
}
func (nopTranscriber) ConfigureCallback(string, string)             {}
func (nopTranscriber) Ingest(context.Context, *Outcome, int64) error { return nil }

func TestRegistry_GetBuildsOnce(t *testing.T) {
	r := NewRegistry()
	builds := 0
	r.Register("nop", func() (Transcriber, error) {
		builds++
		return &nopTranscriber{id: builds}, nil
	})

	first, err := r.Get("nop")
	require.NoError(t, err)
	second, err := r.Get("nop")
	require.NoError(t, err)

	assert.Same(t, first, second)
	assert.Equal(t, 1, builds)
}

func TestRegistry_UnknownProvider(t *testing.T) {
	r := NewRegistry()

	_, err := r.Get("missing")
	assert.ErrorIs(t, err, ErrProviderNotFound)
}

func TestRegistry_FactoryError(t *testing.T) {
	r := NewRegistry()
	boom := errors.New("no credentials")
	r.Register("broken", func() (Transcriber, error) { return nil, boom })

	_, err := r.Get("broken")
	assert.ErrorIs(t, err, boom)

	// failures are not cached
	r.Register("broken", func() (Transcriber, error) { return nopTranscriber{}, nil })
	_, err = r.Get("broken")
	assert.NoError(t, err)
}

func TestRegistry_Names(t *testing.T) {
	r := NewRegistry()
	r.Register("zeta", func() (Transcriber, error) { return nopTranscriber{}, nil })
	r.Register("alpha", func() (Transcriber, error) { return nopTranscriber{}, nil })

	assert.Equal(t, []string{"alpha", "zeta"}, r.Names())
}
