package repository

import (
	"context"
	"database/sql"

	"github.com/jmoiron/sqlx"

	"github.com/ivspro/tariff-import/internal/models"
)

// ImportLogRepository handles the append-only run log records.
type ImportLogRepository struct {
	db *sqlx.DB
}

// NewImportLogRepository creates a new ImportLogRepository.
func NewImportLogRepository(db *sqlx.DB) *ImportLogRepository {
	return &ImportLogRepository{db: db}
}

// Create appends one finalized log record.
func (r *ImportLogRepository) Create(ctx context.Context, l *models.ImportLog) error {
	const q = `
        INSERT INTO import_logs (
            run_id, provider_id, protocol, file_name, state,
            started_at, ended_at, duration_sec,
            total_lines, success_count, error_count,
            ref_clean, dedup_count, conflict_count, not_found_count,
            message, detail_html, remote_mod_time
        ) VALUES (
            $1, $2, $3, $4, $5,
            $6, $7, $8,
            $9, $10, $11,
            $12, $13, $14, $15,
            $16, $17, $18
        )
        RETURNING id, created_at`

	return r.db.QueryRowxContext(ctx, q,
		l.RunID, l.ProviderID, l.Protocol, l.FileName, l.State,
		l.StartedAt, l.EndedAt, l.DurationSec,
		l.TotalLines, l.SuccessCount, l.ErrorCount,
		l.RefClean, l.DedupCount, l.ConflictCount, l.NotFoundCount,
		l.Message, l.DetailHTML, l.RemoteModTime,
	).Scan(&l.ID, &l.CreatedAt)
}

// List returns the newest log records, optionally filtered by provider.
func (r *ImportLogRepository) List(ctx context.Context, providerID, limit, offset int) ([]models.ImportLog, error) {
	if limit <= 0 {
		limit = 50
	}
	if limit > 200 {
		limit = 200
	}
	const q = `
        SELECT l.*, p.name AS provider_name
        FROM import_logs l
        JOIN providers p ON p.id = l.provider_id
        WHERE ($1 = 0 OR l.provider_id = $1)
        ORDER BY l.created_at DESC, l.id DESC
        LIMIT $2 OFFSET $3`

	var logs []models.ImportLog
	if err := r.db.SelectContext(ctx, &logs, q, providerID, limit, offset); err != nil {
		return nil, err
	}
	return logs, nil
}

// GetByID returns one log record with its provider name.
func (r *ImportLogRepository) GetByID(ctx context.Context, id int) (*models.ImportLog, error) {
	const q = `
        SELECT l.*, p.name AS provider_name
        FROM import_logs l
        JOIN providers p ON p.id = l.provider_id
        WHERE l.id = $1
        LIMIT 1`

	var l models.ImportLog
	if err := r.db.GetContext(ctx, &l, q, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, sql.ErrNoRows
		}
		return nil, err
	}
	return &l, nil
}
