// Package store persists transcripts and their segments through
// database/sql. SQLite and PostgreSQL are supported.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"

	"ai-speech-transcription-service/internal/models"
	"ai-speech-transcription-service/internal/observability/logging"
)

const (
	DriverSQLite   = "sqlite3"
	DriverPostgres = "postgres"
)

var ErrTranscriptNotFound = errors.New("transcript not found")

// Config selects the database.
type Config struct {
	Driver       string
	DSN          string
	MaxOpenConns int
}

// Store implements the transcript and segment repositories.
type Store struct {
	db     *sql.DB
	driver string
}

// Open connects to the configured database and verifies the connection.
func Open(ctx context.Context, cfg Config) (*Store, error) {
	if cfg.Driver != DriverSQLite && cfg.Driver != DriverPostgres {
		return nil, fmt.Errorf("unsupported store driver %q", cfg.Driver)
	}

	db, err := sql.Open(cfg.Driver, cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", cfg.Driver, err)
	}
	if cfg.Driver == DriverSQLite {
		// In-memory databases live and die with their connection.
		db.SetMaxOpenConns(1)
	} else if cfg.MaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping %s: %w", cfg.Driver, err)
	}

	logger := logging.WithComponent("store")
	logger.Info().Str("driver", cfg.Driver).Msg("Database connected")
	return New(db, cfg.Driver), nil
}

// New wraps an existing handle. driver picks the placeholder style.
func New(db *sql.DB, driver string) *Store {
	return &Store{db: db, driver: driver}
}

// Close closes the database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

// Ping reports whether the database is reachable.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// rebind rewrites ? placeholders into $n for PostgreSQL.
func (s *Store) rebind(query string) string {
	if s.driver != DriverPostgres {
		return query
	}

	var b strings.Builder
	b.Grow(len(query) + 8)
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// CreateTranscript inserts t and sets its ID and timestamps.
func (s *Store) CreateTranscript(ctx context.Context, t *models.Transcript) error {
	now := time.Now().UTC()
	query := s.rebind(`INSERT INTO transcripts
		(external_id, provider, status, audio_url, language_code, error_type, error_message, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?) RETURNING id`)

	err := s.db.QueryRowContext(ctx, query,
		t.ExternalID, t.Provider, t.Status, t.AudioURL, t.LanguageCode,
		t.ErrorType, t.ErrorMessage, now, now,
	).Scan(&t.ID)
	if err != nil {
		return fmt.Errorf("insert transcript: %w", err)
	}

	t.CreatedAt = now
	t.UpdatedAt = now
	return nil
}

const transcriptColumns = `id, external_id, provider, status, audio_url, language_code,
	error_type, error_message, created_at, updated_at`

// GetTranscript loads a transcript by primary key. Segments are not loaded.
func (s *Store) GetTranscript(ctx context.Context, id int64) (*models.Transcript, error) {
	row := s.db.QueryRowContext(ctx,
		s.rebind(`SELECT `+transcriptColumns+` FROM transcripts WHERE id = ?`), id)
	return scanTranscript(row)
}

// GetTranscriptByExternalID loads the transcript a provider job belongs to.
func (s *Store) GetTranscriptByExternalID(ctx context.Context, provider, externalID string) (*models.Transcript, error) {
	row := s.db.QueryRowContext(ctx,
		s.rebind(`SELECT `+transcriptColumns+` FROM transcripts WHERE provider = ? AND external_id = ?`),
		provider, externalID)
	return scanTranscript(row)
}

func scanTranscript(row *sql.Row) (*models.Transcript, error) {
	var t models.Transcript
	err := row.Scan(&t.ID, &t.ExternalID, &t.Provider, &t.Status, &t.AudioURL, &t.LanguageCode,
		&t.ErrorType, &t.ErrorMessage, &t.CreatedAt, &t.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrTranscriptNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan transcript: %w", err)
	}
	return &t, nil
}

// UpdateStatus records a status change and, for failures, the reported error.
func (s *Store) UpdateStatus(ctx context.Context, id int64, status, errorType, errorMessage string) error {
	res, err := s.db.ExecContext(ctx,
		s.rebind(`UPDATE transcripts SET status = ?, error_type = ?, error_message = ?, updated_at = ? WHERE id = ?`),
		status, errorType, errorMessage, time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("update transcript %d: %w", id, err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update transcript %d: %w", id, err)
	}
	if n == 0 {
		return ErrTranscriptNotFound
	}
	return nil
}

// rowQuerier is satisfied by *sql.DB and *sql.Tx.
type rowQuerier interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// CreateSegment appends one segment to its transcript and sets its ID.
func (s *Store) CreateSegment(ctx context.Context, seg *models.TranscriptSegment) error {
	return s.insertSegment(ctx, s.db, seg)
}

// CreateSegments appends segs in order inside a single transaction.
// Either all segments are stored or none are.
func (s *Store) CreateSegments(ctx context.Context, segs []*models.TranscriptSegment) error {
	if len(segs) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin segment batch: %w", err)
	}
	for i, seg := range segs {
		if err := s.insertSegment(ctx, tx, seg); err != nil {
			tx.Rollback()
			return fmt.Errorf("segment %d: %w", i, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit segment batch: %w", err)
	}
	return nil
}

func (s *Store) insertSegment(ctx context.Context, q rowQuerier, seg *models.TranscriptSegment) error {
	words := seg.Words
	if words == nil {
		words = []models.Word{}
	}
	wordsJSON, err := json.Marshal(words)
	if err != nil {
		return fmt.Errorf("marshal words: %w", err)
	}

	var speaker sql.NullString
	if seg.SpeakerLabel != nil {
		speaker = sql.NullString{String: *seg.SpeakerLabel, Valid: true}
	}

	query := s.rebind(`INSERT INTO transcript_segments
		(transcript_id, start_time, end_time, content, words, speaker_label)
		VALUES (?, ?, ?, ?, ?, ?) RETURNING id`)
	err = q.QueryRowContext(ctx, query,
		seg.TranscriptID, seg.StartTime, seg.EndTime, seg.Content, string(wordsJSON), speaker,
	).Scan(&seg.ID)
	if err != nil {
		return fmt.Errorf("insert segment: %w", err)
	}
	return nil
}

// ListSegments returns the segments of a transcript in insertion order.
func (s *Store) ListSegments(ctx context.Context, transcriptID int64) ([]models.TranscriptSegment, error) {
	rows, err := s.db.QueryContext(ctx,
		s.rebind(`SELECT id, transcript_id, start_time, end_time, content, words, speaker_label
			FROM transcript_segments WHERE transcript_id = ? ORDER BY id`),
		transcriptID)
	if err != nil {
		return nil, fmt.Errorf("query segments: %w", err)
	}
	defer rows.Close()

	segments := make([]models.TranscriptSegment, 0)
	for rows.Next() {
		var (
			seg       models.TranscriptSegment
			wordsJSON string
			speaker   sql.NullString
		)
		if err := rows.Scan(&seg.ID, &seg.TranscriptID, &seg.StartTime, &seg.EndTime,
			&seg.Content, &wordsJSON, &speaker); err != nil {
			return nil, fmt.Errorf("scan segment: %w", err)
		}
		if err := json.Unmarshal([]byte(wordsJSON), &seg.Words); err != nil {
			return nil, fmt.Errorf("decode words of segment %d: %w", seg.ID, err)
		}
		if speaker.Valid {
			label := speaker.String
			seg.SpeakerLabel = &label
		}
		segments = append(segments, seg)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate segments: %w", err)
	}
	return segments, nil
}
