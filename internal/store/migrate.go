package store

import (
	"context"
	"fmt"
)

var sqliteSchema = []string{
	`CREATE TABLE IF NOT EXISTS transcripts (
		id            INTEGER PRIMARY KEY AUTOINCREMENT,
		external_id   TEXT NOT NULL,
		provider      TEXT NOT NULL,
		status        TEXT NOT NULL,
		audio_url     TEXT NOT NULL,
		language_code TEXT NOT NULL DEFAULT '',
		error_type    TEXT NOT NULL DEFAULT '',
		error_message TEXT NOT NULL DEFAULT '',
		created_at    TIMESTAMP NOT NULL,
		updated_at    TIMESTAMP NOT NULL
	)`,
	`CREATE UNIQUE INDEX IF NOT EXISTS idx_transcripts_external
		ON transcripts (provider, external_id)`,
	`CREATE TABLE IF NOT EXISTS transcript_segments (
		id            INTEGER PRIMARY KEY AUTOINCREMENT,
		transcript_id INTEGER NOT NULL REFERENCES transcripts (id),
		start_time    TEXT NOT NULL,
		end_time      TEXT NOT NULL,
		content       TEXT NOT NULL,
		words         TEXT NOT NULL,
		speaker_label TEXT
	)`,
	`CREATE INDEX IF NOT EXISTS idx_segments_transcript
		ON transcript_segments (transcript_id)`,
}

var postgresSchema = []string{
	`CREATE TABLE IF NOT EXISTS transcripts (
		id            BIGSERIAL PRIMARY KEY,
		external_id   TEXT NOT NULL,
		provider      TEXT NOT NULL,
		status        TEXT NOT NULL,
		audio_url     TEXT NOT NULL,
		language_code TEXT NOT NULL DEFAULT '',
		error_type    TEXT NOT NULL DEFAULT '',
		error_message TEXT NOT NULL DEFAULT '',
		created_at    TIMESTAMPTZ NOT NULL,
		updated_at    TIMESTAMPTZ NOT NULL
	)`,
	`CREATE UNIQUE INDEX IF NOT EXISTS idx_transcripts_external
		ON transcripts (provider, external_id)`,
	`CREATE TABLE IF NOT EXISTS transcript_segments (
		id            BIGSERIAL PRIMARY KEY,
		transcript_id BIGINT NOT NULL REFERENCES transcripts (id),
		start_time    TEXT NOT NULL,
		end_time      TEXT NOT NULL,
		content       TEXT NOT NULL,
		words         JSONB NOT NULL,
		speaker_label TEXT
	)`,
	`CREATE INDEX IF NOT EXISTS idx_segments_transcript
		ON transcript_segments (transcript_id)`,
}

// Migrate creates the tables when they do not exist yet.
func (s *Store) Migrate(ctx context.Context) error {
	stmts := sqliteSchema
	if s.driver == DriverPostgres {
		stmts = postgresSchema
	}

	for i, stmt := range stmts {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migration %d: %w", i, err)
		}
	}
	return nil
}
