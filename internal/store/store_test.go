package store

import (
	"context"
	"database/sql"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ai-speech-transcription-service/internal/models"
	"ai-speech-transcription-service/internal/service/stt"
)

var (
	_ stt.SegmentRepository      = (*Store)(nil)
	_ stt.SegmentBatchRepository = (*Store)(nil)
)

func strPtr(s string) *string { return &s }

func openMemory(t *testing.T) *Store {
	t.Helper()
	s, err := Open(context.Background(), Config{Driver: DriverSQLite, DSN: ":memory:"})
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	require.NoError(t, s.Migrate(context.Background()))
	return s
}

func newMock(t *testing.T, driver string) (*Store, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return New(db, driver), mock
}

func TestRebind(t *testing.T) {
	tests := []struct {
		driver   string
		query    string
		expected string
	}{
		{DriverSQLite, "SELECT id FROM t WHERE a = ? AND b = ?", "SELECT id FROM t WHERE a = ? AND b = ?"},
		{DriverPostgres, "SELECT id FROM t WHERE a = ? AND b = ?", "SELECT id FROM t WHERE a = $1 AND b = $2"},
		{DriverPostgres, "SELECT 1", "SELECT 1"},
	}

	for _, tt := range tests {
		t.Run(tt.driver, func(t *testing.T) {
			s := New(nil, tt.driver)
			assert.Equal(t, tt.expected, s.rebind(tt.query))
		})
	}
}

func TestOpen_UnsupportedDriver(t *testing.T) {
	_, err := Open(context.Background(), Config{Driver: "mysql", DSN: "whatever"})
	assert.Error(t, err)
}

func TestCreateTranscript_Postgres(t *testing.T) {
	s, mock := newMock(t, DriverPostgres)

	mock.ExpectQuery(regexp.QuoteMeta("VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9) RETURNING id")).
		WithArgs("job-1", "onramp_lab_whisper", "processing", "https://a/b.wav", "en", "", "",
			sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(42))

	tr := &models.Transcript{
		ExternalID:   "job-1",
		Provider:     "onramp_lab_whisper",
		Status:       "processing",
		AudioURL:     "https://a/b.wav",
		LanguageCode: "en",
	}
	require.NoError(t, s.CreateTranscript(context.Background(), tr))

	assert.Equal(t, int64(42), tr.ID)
	assert.False(t, tr.CreatedAt.IsZero())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetTranscript_NotFound(t *testing.T) {
	s, mock := newMock(t, DriverPostgres)

	mock.ExpectQuery(regexp.QuoteMeta("FROM transcripts WHERE id = $1")).
		WithArgs(int64(7)).
		WillReturnError(sql.ErrNoRows)

	_, err := s.GetTranscript(context.Background(), 7)
	assert.ErrorIs(t, err, ErrTranscriptNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUpdateStatus_NotFound(t *testing.T) {
	s, mock := newMock(t, DriverPostgres)

	mock.ExpectExec(regexp.QuoteMeta("UPDATE transcripts SET status = $1")).
		WithArgs("failed", "DecodeError", "bad input", sqlmock.AnyArg(), int64(9)).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := s.UpdateStatus(context.Background(), 9, "failed", "DecodeError", "bad input")
	assert.ErrorIs(t, err, ErrTranscriptNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateSegments_RollsBackOnError(t *testing.T) {
	s, mock := newMock(t, DriverPostgres)
	insert := regexp.QuoteMeta("INSERT INTO transcript_segments")

	mock.ExpectBegin()
	mock.ExpectQuery(insert).
		WithArgs(int64(1), "00:00:00.520", "00:00:10.860", "first", "[]", "speaker_1").
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(1))
	mock.ExpectQuery(insert).
		WillReturnError(errors.New("connection reset"))
	mock.ExpectRollback()

	segs := []*models.TranscriptSegment{
		{TranscriptID: 1, StartTime: "00:00:00.520", EndTime: "00:00:10.860", Content: "first", SpeakerLabel: strPtr("speaker_1")},
		{TranscriptID: 1, StartTime: "00:00:11.140", EndTime: "00:00:19.880", Content: "second"},
	}

	err := s.CreateSegments(context.Background(), segs)
	assert.ErrorContains(t, err, "segment 1")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateSegments_Empty(t *testing.T) {
	s, mock := newMock(t, DriverSQLite)

	require.NoError(t, s.CreateSegments(context.Background(), nil))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSQLite_TranscriptRoundTrip(t *testing.T) {
	s := openMemory(t)
	ctx := context.Background()

	tr := &models.Transcript{
		ExternalID:   "0b6c8b2e-4f0e-4b8a-9a54-6d1b2d1f7a10",
		Provider:     "onramp_lab_whisper",
		Status:       "processing",
		AudioURL:     "https://example.s3.amazonaws.com/recordings/test.wav",
		LanguageCode: "en",
	}
	require.NoError(t, s.CreateTranscript(ctx, tr))
	require.NotZero(t, tr.ID)

	got, err := s.GetTranscriptByExternalID(ctx, tr.Provider, tr.ExternalID)
	require.NoError(t, err)
	assert.Equal(t, tr.ID, got.ID)
	assert.Equal(t, "processing", got.Status)
	assert.WithinDuration(t, tr.CreatedAt, got.CreatedAt, time.Second)

	_, err = s.GetTranscriptByExternalID(ctx, "other", tr.ExternalID)
	assert.ErrorIs(t, err, ErrTranscriptNotFound)

	require.NoError(t, s.UpdateStatus(ctx, tr.ID, "failed", "DecodeError", "ffmpeg could not read input"))
	got, err = s.GetTranscript(ctx, tr.ID)
	require.NoError(t, err)
	assert.Equal(t, "failed", got.Status)
	assert.Equal(t, "DecodeError", got.ErrorType)
	assert.Equal(t, "ffmpeg could not read input", got.ErrorMessage)
}

func TestSQLite_DuplicateExternalID(t *testing.T) {
	s := openMemory(t)
	ctx := context.Background()

	first := &models.Transcript{ExternalID: "job", Provider: "p", Status: "processing", AudioURL: "u"}
	require.NoError(t, s.CreateTranscript(ctx, first))

	second := &models.Transcript{ExternalID: "job", Provider: "p", Status: "processing", AudioURL: "u"}
	assert.Error(t, s.CreateTranscript(ctx, second))
}

func TestSQLite_SegmentsKeepOrder(t *testing.T) {
	s := openMemory(t)
	ctx := context.Background()

	tr := &models.Transcript{ExternalID: "job", Provider: "p", Status: "processing", AudioURL: "u"}
	require.NoError(t, s.CreateTranscript(ctx, tr))

	// Out-of-order offsets are stored as delivered.
	segs := []*models.TranscriptSegment{
		{
			TranscriptID: tr.ID, StartTime: "00:00:11.140", EndTime: "00:00:19.880", Content: "second in time",
			Words:        []models.Word{{StartTime: "00:00:11.140", EndTime: "00:00:11.380", Content: "The"}},
			SpeakerLabel: strPtr("speaker_2"),
		},
		{
			TranscriptID: tr.ID, StartTime: "00:00:00.520", EndTime: "00:00:10.860", Content: "first in time",
		},
	}
	require.NoError(t, s.CreateSegments(ctx, segs[:1]))
	require.NoError(t, s.CreateSegment(ctx, segs[1]))
	assert.NotZero(t, segs[0].ID)
	assert.NotZero(t, segs[1].ID)

	got, err := s.ListSegments(ctx, tr.ID)
	require.NoError(t, err)
	require.Len(t, got, 2)

	assert.Equal(t, "second in time", got[0].Content)
	assert.Equal(t, segs[0].Words, got[0].Words)
	require.NotNil(t, got[0].SpeakerLabel)
	assert.Equal(t, "speaker_2", *got[0].SpeakerLabel)

	assert.Equal(t, "first in time", got[1].Content)
	assert.Empty(t, got[1].Words)
	assert.Nil(t, got[1].SpeakerLabel)

	none, err := s.ListSegments(ctx, tr.ID+100)
	require.NoError(t, err)
	assert.Empty(t, none)
}
