package repository

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMockDB(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return sqlx.NewDb(db, "sqlmock"), mock
}

func TestFindByBarcodes(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewProductRepository(db)
	now := time.Now()

	rows := sqlmock.NewRows([]string{"id", "template_id", "name", "default_code", "barcode", "created_at", "updated_at"}).
		AddRow(1, 10, "Widget", nil, "111", now, now).
		AddRow(2, 10, "Widget conflict", nil, "111", now, now)
	mock.ExpectQuery(`SELECT \* FROM products WHERE barcode = ANY`).
		WillReturnRows(rows)

	products, err := repo.FindByBarcodes(context.Background(), []string{"111"})
	require.NoError(t, err)
	require.Len(t, products, 2)
	assert.Equal(t, "111", *products[0].Barcode)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestFindByBarcodesEmptySetSkipsQuery(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewProductRepository(db)

	products, err := repo.FindByBarcodes(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, products)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestClearBarcodes(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewProductRepository(db)

	mock.ExpectExec(`UPDATE products SET barcode = NULL`).
		WillReturnResult(sqlmock.NewResult(0, 2))

	err := repo.ClearBarcodes(context.Background(), []int{1, 2})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUpdateTemplatePrice(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewProductRepository(db)

	mock.ExpectExec(`UPDATE product_templates SET list_price`).
		WithArgs(10, "12.5").
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := repo.UpdateTemplatePrice(context.Background(), 10, "12.5")
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUpdateTemplatePriceMissingTemplate(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewProductRepository(db)

	mock.ExpectExec(`UPDATE product_templates SET list_price`).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.UpdateTemplatePrice(context.Background(), 99, "1")
	assert.ErrorIs(t, err, sql.ErrNoRows)
}
