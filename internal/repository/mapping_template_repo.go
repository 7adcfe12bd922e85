package repository

import (
	"context"
	"database/sql"

	"github.com/jmoiron/sqlx"

	"github.com/ivspro/tariff-import/internal/models"
)

// MappingTemplateRepository handles data access for free-form column
// mapping templates.
type MappingTemplateRepository struct {
	db *sqlx.DB
}

// NewMappingTemplateRepository creates a new MappingTemplateRepository.
func NewMappingTemplateRepository(db *sqlx.DB) *MappingTemplateRepository {
	return &MappingTemplateRepository{db: db}
}

// List returns all templates, optionally only those bound to one provider.
func (r *MappingTemplateRepository) List(ctx context.Context, providerID int) ([]models.MappingTemplate, error) {
	const q = `
        SELECT * FROM mapping_templates
        WHERE ($1 = 0 OR provider_id = $1)
        ORDER BY name, id`

	var templates []models.MappingTemplate
	if err := r.db.SelectContext(ctx, &templates, q, providerID); err != nil {
		return nil, err
	}
	return templates, nil
}

// GetByID returns a single template by id.
func (r *MappingTemplateRepository) GetByID(ctx context.Context, id int) (*models.MappingTemplate, error) {
	const q = `SELECT * FROM mapping_templates WHERE id = $1 LIMIT 1`

	var t models.MappingTemplate
	if err := r.db.GetContext(ctx, &t, q, id); err != nil {
		return nil, err
	}
	return &t, nil
}

// GetForProvider returns the template bound to a provider, most recently
// updated first. sql.ErrNoRows when the provider has none.
func (r *MappingTemplateRepository) GetForProvider(ctx context.Context, providerID int) (*models.MappingTemplate, error) {
	const q = `
        SELECT * FROM mapping_templates
        WHERE provider_id = $1
        ORDER BY updated_at DESC, id DESC
        LIMIT 1`

	var t models.MappingTemplate
	if err := r.db.GetContext(ctx, &t, q, providerID); err != nil {
		return nil, err
	}
	return &t, nil
}

// Create inserts a new template.
func (r *MappingTemplateRepository) Create(ctx context.Context, t *models.MappingTemplate) error {
	const q = `
        INSERT INTO mapping_templates (name, provider_id, columns)
        VALUES ($1, $2, $3)
        RETURNING id, created_at, updated_at`

	return r.db.QueryRowxContext(ctx, q, t.Name, t.ProviderID, t.Columns).
		Scan(&t.ID, &t.CreatedAt, &t.UpdatedAt)
}

// Update updates an existing template.
func (r *MappingTemplateRepository) Update(ctx context.Context, t *models.MappingTemplate) error {
	const q = `
        UPDATE mapping_templates
        SET name = $1, provider_id = $2, columns = $3, updated_at = NOW()
        WHERE id = $4
        RETURNING updated_at`

	return r.db.QueryRowxContext(ctx, q, t.Name, t.ProviderID, t.Columns, t.ID).
		Scan(&t.UpdatedAt)
}

// Delete removes a template by id.
func (r *MappingTemplateRepository) Delete(ctx context.Context, id int) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM mapping_templates WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return sql.ErrNoRows
	}
	return nil
}
