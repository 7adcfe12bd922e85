package repository

import (
	"context"
	"database/sql"

	"github.com/jmoiron/sqlx"

	"github.com/ivspro/tariff-import/internal/models"
)

// ProviderRepository handles data access for remote tariff providers.
type ProviderRepository struct {
	db *sqlx.DB
}

// NewProviderRepository creates a new ProviderRepository.
func NewProviderRepository(db *sqlx.DB) *ProviderRepository {
	return &ProviderRepository{db: db}
}

// GetAll returns all providers, optionally only active ones.
func (r *ProviderRepository) GetAll(ctx context.Context, onlyActive bool) ([]models.Provider, error) {
	const q = `
        SELECT * FROM providers
        WHERE ($1 = false OR active = true)
        ORDER BY name, company`

	var providers []models.Provider
	if err := r.db.SelectContext(ctx, &providers, q, onlyActive); err != nil {
		return nil, err
	}
	return providers, nil
}

// GetByID returns a single provider by id.
func (r *ProviderRepository) GetByID(ctx context.Context, id int) (*models.Provider, error) {
	const q = `SELECT * FROM providers WHERE id = $1 LIMIT 1`

	var p models.Provider
	if err := r.db.GetContext(ctx, &p, q, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, sql.ErrNoRows
		}
		return nil, err
	}
	return &p, nil
}

// GetAutoRunCandidates returns active providers flagged for automatic
// processing that have a usable connection configuration.
func (r *ProviderRepository) GetAutoRunCandidates(ctx context.Context) ([]models.Provider, error) {
	const q = `
        SELECT * FROM providers
        WHERE active = true AND auto_process = true AND host <> ''
        ORDER BY id`

	var providers []models.Provider
	if err := r.db.SelectContext(ctx, &providers, q); err != nil {
		return nil, err
	}
	return providers, nil
}

// Create inserts a new provider.
func (r *ProviderRepository) Create(ctx context.Context, p *models.Provider) error {
	const q = `
        INSERT INTO providers (
            name, company, active, protocol, host, port, username, password,
            timeout_sec, retries, keepalive_sec, ftp_passive,
            sftp_hostkey_fingerprint, sftp_private_key, sftp_key_passphrase,
            imap_use_ssl, imap_search_criteria, imap_mark_seen,
            imap_move_processed, imap_move_error,
            dir_in, dir_processed, dir_error,
            include_pattern, exclude_pattern,
            csv_delimiter, csv_has_header, decimal_separator,
            barcode_columns, price_column,
            max_files_per_run, max_preview_rows, auto_process
        ) VALUES (
            $1, $2, $3, $4, $5, $6, $7, $8,
            $9, $10, $11, $12,
            $13, $14, $15,
            $16, $17, $18, $19, $20,
            $21, $22, $23,
            $24, $25,
            $26, $27, $28,
            $29, $30,
            $31, $32, $33
        )
        RETURNING id, created_at, updated_at`

	return r.db.QueryRowxContext(ctx, q,
		p.Name, p.Company, p.Active, p.Protocol, p.Host, p.Port, p.Username, p.Password,
		p.TimeoutSec, p.Retries, p.KeepaliveSec, p.FTPPassive,
		p.SFTPHostKeyFingerprint, p.SFTPPrivateKey, p.SFTPKeyPassphrase,
		p.IMAPUseSSL, p.IMAPSearchCriteria, p.IMAPMarkSeen,
		p.IMAPMoveProcessed, p.IMAPMoveError,
		p.DirIn, p.DirProcessed, p.DirError,
		p.IncludePattern, p.ExcludePattern,
		p.CSVDelimiter, p.CSVHasHeader, p.DecimalSeparator,
		p.BarcodeColumns, p.PriceColumn,
		p.MaxFilesPerRun, p.MaxPreviewRows, p.AutoProcess,
	).Scan(&p.ID, &p.CreatedAt, &p.UpdatedAt)
}

// Update updates an existing provider.
func (r *ProviderRepository) Update(ctx context.Context, p *models.Provider) error {
	const q = `
        UPDATE providers SET
            name = $1, company = $2, active = $3, protocol = $4,
            host = $5, port = $6, username = $7, password = $8,
            timeout_sec = $9, retries = $10, keepalive_sec = $11, ftp_passive = $12,
            sftp_hostkey_fingerprint = $13, sftp_private_key = $14, sftp_key_passphrase = $15,
            imap_use_ssl = $16, imap_search_criteria = $17, imap_mark_seen = $18,
            imap_move_processed = $19, imap_move_error = $20,
            dir_in = $21, dir_processed = $22, dir_error = $23,
            include_pattern = $24, exclude_pattern = $25,
            csv_delimiter = $26, csv_has_header = $27, decimal_separator = $28,
            barcode_columns = $29, price_column = $30,
            max_files_per_run = $31, max_preview_rows = $32, auto_process = $33,
            updated_at = NOW()
        WHERE id = $34
        RETURNING updated_at`

	return r.db.QueryRowxContext(ctx, q,
		p.Name, p.Company, p.Active, p.Protocol,
		p.Host, p.Port, p.Username, p.Password,
		p.TimeoutSec, p.Retries, p.KeepaliveSec, p.FTPPassive,
		p.SFTPHostKeyFingerprint, p.SFTPPrivateKey, p.SFTPKeyPassphrase,
		p.IMAPUseSSL, p.IMAPSearchCriteria, p.IMAPMarkSeen,
		p.IMAPMoveProcessed, p.IMAPMoveError,
		p.DirIn, p.DirProcessed, p.DirError,
		p.IncludePattern, p.ExcludePattern,
		p.CSVDelimiter, p.CSVHasHeader, p.DecimalSeparator,
		p.BarcodeColumns, p.PriceColumn,
		p.MaxFilesPerRun, p.MaxPreviewRows, p.AutoProcess,
		p.ID,
	).Scan(&p.UpdatedAt)
}

// Delete removes a provider by id.
func (r *ProviderRepository) Delete(ctx context.Context, id int) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM providers WHERE id = $1`, id)
	return err
}

// UpdateRunStatus records the last-run bookkeeping after a run attempt.
// An empty runErr clears the stored error.
func (r *ProviderRepository) UpdateRunStatus(ctx context.Context, id int, status models.RunStatus, runErr string) error {
	const q = `
        UPDATE providers
        SET last_run_status = $2,
            last_run_error = NULLIF($3, ''),
            last_run_at = NOW(),
            updated_at = NOW()
        WHERE id = $1`

	_, err := r.db.ExecContext(ctx, q, id, status, runErr)
	return err
}

// UpsertByNaturalKey inserts or updates a provider identified by
// (name, company). A blank incoming password never overwrites a stored
// one, so re-running a seed file cannot wipe credentials.
func (r *ProviderRepository) UpsertByNaturalKey(ctx context.Context, p *models.Provider) error {
	const q = `
        INSERT INTO providers (
            name, company, active, protocol, host, port, username, password,
            timeout_sec, retries, keepalive_sec, ftp_passive,
            imap_use_ssl, imap_search_criteria, imap_mark_seen,
            imap_move_processed, imap_move_error,
            dir_in, dir_processed, dir_error, include_pattern, exclude_pattern,
            csv_delimiter, csv_has_header, decimal_separator,
            barcode_columns, price_column, auto_process
        ) VALUES (
            $1, $2, $3, $4, $5, $6, $7, $8,
            $9, $10, $11, $12,
            $13, $14, $15, $16, $17,
            $18, $19, $20, $21, $22,
            $23, $24, $25,
            $26, $27, $28
        )
        ON CONFLICT (name, company) DO UPDATE SET
            protocol = EXCLUDED.protocol,
            host = EXCLUDED.host,
            port = EXCLUDED.port,
            username = EXCLUDED.username,
            password = CASE
                WHEN EXCLUDED.password = '' THEN providers.password
                ELSE EXCLUDED.password
            END,
            timeout_sec = EXCLUDED.timeout_sec,
            retries = EXCLUDED.retries,
            keepalive_sec = EXCLUDED.keepalive_sec,
            ftp_passive = EXCLUDED.ftp_passive,
            imap_use_ssl = EXCLUDED.imap_use_ssl,
            imap_search_criteria = EXCLUDED.imap_search_criteria,
            imap_mark_seen = EXCLUDED.imap_mark_seen,
            imap_move_processed = EXCLUDED.imap_move_processed,
            imap_move_error = EXCLUDED.imap_move_error,
            dir_in = EXCLUDED.dir_in,
            dir_processed = EXCLUDED.dir_processed,
            dir_error = EXCLUDED.dir_error,
            include_pattern = EXCLUDED.include_pattern,
            exclude_pattern = EXCLUDED.exclude_pattern,
            csv_delimiter = EXCLUDED.csv_delimiter,
            csv_has_header = EXCLUDED.csv_has_header,
            decimal_separator = EXCLUDED.decimal_separator,
            barcode_columns = EXCLUDED.barcode_columns,
            price_column = EXCLUDED.price_column,
            auto_process = EXCLUDED.auto_process,
            updated_at = NOW()
        RETURNING id`

	return r.db.QueryRowxContext(ctx, q,
		p.Name, p.Company, p.Active, p.Protocol, p.Host, p.Port, p.Username, p.Password,
		p.TimeoutSec, p.Retries, p.KeepaliveSec, p.FTPPassive,
		p.IMAPUseSSL, p.IMAPSearchCriteria, p.IMAPMarkSeen,
		p.IMAPMoveProcessed, p.IMAPMoveError,
		p.DirIn, p.DirProcessed, p.DirError, p.IncludePattern, p.ExcludePattern,
		p.CSVDelimiter, p.CSVHasHeader, p.DecimalSeparator,
		p.BarcodeColumns, p.PriceColumn, p.AutoProcess,
	).Scan(&p.ID)
}
