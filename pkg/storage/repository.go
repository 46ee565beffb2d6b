package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	rcerrors "github.com/otherjamesbrown/recap-cli/pkg/errors"
	"github.com/otherjamesbrown/recap-cli/pkg/export"
	"github.com/otherjamesbrown/recap-cli/pkg/logging"
	"github.com/otherjamesbrown/recap-cli/pkg/transcript"
)

const schema = `
	CREATE TABLE IF NOT EXISTS meeting_exports (
		id BIGSERIAL PRIMARY KEY,
		title TEXT NOT NULL DEFAULT '',
		date_time TEXT NOT NULL DEFAULT '',
		date_formatted VARCHAR(8) NOT NULL DEFAULT '',
		page_url TEXT NOT NULL DEFAULT '',
		participants JSONB NOT NULL DEFAULT '[]',
		entry_count INTEGER NOT NULL DEFAULT 0,
		exported_at TIMESTAMPTZ NOT NULL,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	);

	CREATE TABLE IF NOT EXISTS transcript_entries (
		export_id BIGINT NOT NULL REFERENCES meeting_exports(id) ON DELETE CASCADE,
		position INTEGER NOT NULL,
		speaker TEXT NOT NULL,
		timestamp TEXT NOT NULL DEFAULT '',
		text TEXT NOT NULL,
		PRIMARY KEY (export_id, position)
	);
`

// ExportSummary is one row of the export history.
type ExportSummary struct {
	ID            int64
	Title         string
	DateTime      string
	DateFormatted string
	PageURL       string
	EntryCount    int
	ExportedAt    time.Time
	CreatedAt     time.Time
}

// Repository stores exported transcripts.
type Repository struct {
	pool   *pgxpool.Pool
	logger logging.Logger
}

// NewRepository creates a repository over pool.
func NewRepository(pool *pgxpool.Pool, logger logging.Logger) *Repository {
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	return &Repository{
		pool:   pool,
		logger: logger.With(logging.F("component", "export_repository")),
	}
}

// EnsureSchema creates the export tables if they do not exist.
func (r *Repository) EnsureSchema(ctx context.Context) error {
	if _, err := r.pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("failed to create export tables: %w", err)
	}
	return nil
}

// SaveExport inserts doc and its entries in one transaction and returns the
// export id. Entries keep their order through the position column.
func (r *Repository) SaveExport(ctx context.Context, doc export.Document) (int64, error) {
	participantsJSON, err := marshalParticipants(doc.Participants)
	if err != nil {
		return 0, err
	}

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx) // nolint: errcheck

	var id int64
	err = tx.QueryRow(ctx, `
		INSERT INTO meeting_exports (
			title, date_time, date_formatted, page_url,
			participants, entry_count, exported_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id
	`,
		doc.Meeting.Title,
		doc.Meeting.DateTime,
		doc.Meeting.DateFormatted,
		doc.Meeting.URL,
		participantsJSON,
		len(doc.Entries),
		exportedAt(doc),
	).Scan(&id)
	if err != nil {
		r.logger.Error("Failed to create export",
			logging.Err(err),
			logging.F("title", doc.Meeting.Title))
		return 0, fmt.Errorf("failed to create export: %w", err)
	}

	if len(doc.Entries) > 0 {
		_, err = tx.CopyFrom(ctx,
			pgx.Identifier{"transcript_entries"},
			[]string{"export_id", "position", "speaker", "timestamp", "text"},
			pgx.CopyFromRows(entryRows(id, doc.Entries)),
		)
		if err != nil {
			return 0, fmt.Errorf("failed to insert transcript entries: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("failed to commit: %w", err)
	}

	r.logger.Debug("Export saved",
		logging.F("id", id),
		logging.F("title", doc.Meeting.Title),
		logging.F("entries", len(doc.Entries)))

	return id, nil
}

// ListExports returns the most recent exports first.
func (r *Repository) ListExports(ctx context.Context, limit int) ([]ExportSummary, error) {
	if limit <= 0 {
		limit = 20
	}

	rows, err := r.pool.Query(ctx, `
		SELECT id, title, date_time, date_formatted, page_url,
			entry_count, exported_at, created_at
		FROM meeting_exports
		ORDER BY exported_at DESC, id DESC
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list exports: %w", err)
	}
	defer rows.Close()

	var out []ExportSummary
	for rows.Next() {
		var s ExportSummary
		if err := rows.Scan(&s.ID, &s.Title, &s.DateTime, &s.DateFormatted, &s.PageURL,
			&s.EntryCount, &s.ExportedAt, &s.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan export: %w", err)
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// GetExport loads a stored export with its entries in their original order.
func (r *Repository) GetExport(ctx context.Context, id int64) (*export.Document, error) {
	doc := &export.Document{}
	var participantsJSON []byte
	err := r.pool.QueryRow(ctx, `
		SELECT title, date_time, date_formatted, page_url, participants, exported_at
		FROM meeting_exports
		WHERE id = $1
	`, id).Scan(
		&doc.Meeting.Title,
		&doc.Meeting.DateTime,
		&doc.Meeting.DateFormatted,
		&doc.Meeting.URL,
		&participantsJSON,
		&doc.ExportedAt,
	)
	if err == pgx.ErrNoRows {
		return nil, fmt.Errorf("export %d: %w", id, rcerrors.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get export: %w", err)
	}

	if err := json.Unmarshal(participantsJSON, &doc.Participants); err != nil {
		doc.Participants = []transcript.Participant{}
	}

	rows, err := r.pool.Query(ctx, `
		SELECT speaker, timestamp, text
		FROM transcript_entries
		WHERE export_id = $1
		ORDER BY position
	`, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get transcript entries: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var e transcript.Entry
		if err := rows.Scan(&e.Speaker, &e.Timestamp, &e.Text); err != nil {
			return nil, fmt.Errorf("failed to scan entry: %w", err)
		}
		doc.Entries = append(doc.Entries, e)
	}
	return doc, rows.Err()
}

func marshalParticipants(participants []transcript.Participant) ([]byte, error) {
	if participants == nil {
		participants = []transcript.Participant{}
	}
	data, err := json.Marshal(participants)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal participants: %w", err)
	}
	return data, nil
}

func entryRows(exportID int64, entries []transcript.Entry) [][]interface{} {
	rows := make([][]interface{}, len(entries))
	for i, e := range entries {
		rows[i] = []interface{}{exportID, i, e.Speaker, e.Timestamp, e.Text}
	}
	return rows
}

func exportedAt(doc export.Document) time.Time {
	if doc.ExportedAt.IsZero() {
		return time.Now().UTC()
	}
	return doc.ExportedAt
}
