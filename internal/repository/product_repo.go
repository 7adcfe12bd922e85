package repository

import (
	"context"
	"database/sql"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/ivspro/tariff-import/internal/models"
)

// ProductRepository handles data access for the product catalog the
// import pipeline resolves against and writes prices into.
type ProductRepository struct {
	db *sqlx.DB
}

// NewProductRepository creates a new ProductRepository.
func NewProductRepository(db *sqlx.DB) *ProductRepository {
	return &ProductRepository{db: db}
}

// FindByBarcodes returns every product whose barcode is in the set.
// Barcodes shared by several products come back once per owner, which
// is how the resolver detects conflicts.
func (r *ProductRepository) FindByBarcodes(ctx context.Context, barcodes []string) ([]models.Product, error) {
	if len(barcodes) == 0 {
		return nil, nil
	}
	const q = `SELECT * FROM products WHERE barcode = ANY($1)`

	var products []models.Product
	if err := r.db.SelectContext(ctx, &products, q, pq.Array(barcodes)); err != nil {
		return nil, err
	}
	return products, nil
}

// ClearBarcodes unsets the barcode on every listed product.
func (r *ProductRepository) ClearBarcodes(ctx context.Context, productIDs []int) error {
	if len(productIDs) == 0 {
		return nil
	}
	const q = `UPDATE products SET barcode = NULL, updated_at = NOW() WHERE id = ANY($1)`
	_, err := r.db.ExecContext(ctx, q, pq.Array(productIDs))
	return err
}

// UpdateTemplatePrice writes the sale price of one product template.
func (r *ProductRepository) UpdateTemplatePrice(ctx context.Context, templateID int, price string) error {
	const q = `UPDATE product_templates SET list_price = $2, updated_at = NOW() WHERE id = $1`
	res, err := r.db.ExecContext(ctx, q, templateID, price)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// GetTemplateByID returns one product template.
func (r *ProductRepository) GetTemplateByID(ctx context.Context, id int) (*models.ProductTemplate, error) {
	const q = `SELECT * FROM product_templates WHERE id = $1 LIMIT 1`

	var t models.ProductTemplate
	if err := r.db.GetContext(ctx, &t, q, id); err != nil {
		return nil, err
	}
	return &t, nil
}
