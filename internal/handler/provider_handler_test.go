package handler

import (
	"database/sql/driver"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/gin-gonic/gin"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ivspro/tariff-import/internal/repository"
)

func newProviderRouter(t *testing.T) (*gin.Engine, sqlmock.Sqlmock) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	mockDB, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { mockDB.Close() })
	db := sqlx.NewDb(mockDB, "sqlmock")

	h := NewProviderHandler(repository.NewProviderRepository(db), nil)
	router := gin.New()
	router.POST("/v1/providers", h.CreateProvider)
	router.PUT("/v1/providers/:id", h.UpdateProvider)
	return router, mock
}

// writeArgs builds an n-argument expectation for the provider INSERT
// (33 args) or UPDATE (34, id last) with the password pinned and
// everything else unconstrained.
func writeArgs(n int, password string) []driver.Value {
	args := make([]driver.Value, n)
	for i := range args {
		args[i] = sqlmock.AnyArg()
	}
	args[7] = password
	return args
}

func TestCreateProviderBindsPassword(t *testing.T) {
	router, mock := newProviderRouter(t)

	mock.ExpectQuery(`INSERT INTO providers`).
		WithArgs(writeArgs(33, "s3cret")...).
		WillReturnRows(sqlmock.NewRows([]string{"id", "created_at", "updated_at"}).
			AddRow(1, time.Now(), time.Now()))

	body := `{"name":"grossiste-a","host":"ftp.example.com","protocol":"ftp","password":"s3cret"}`
	req := httptest.NewRequest(http.MethodPost, "/v1/providers", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, 201, w.Code)
	// the stored credential never renders back
	assert.NotContains(t, w.Body.String(), "s3cret")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUpdateProviderKeepsPasswordWhenOmitted(t *testing.T) {
	router, mock := newProviderRouter(t)

	mock.ExpectQuery(`SELECT \* FROM providers WHERE id`).
		WithArgs(4).
		WillReturnRows(sqlmock.NewRows([]string{"id", "name", "company", "host", "protocol", "password"}).
			AddRow(4, "grossiste-a", "main", "ftp.example.com", "ftp", "stored-secret"))
	mock.ExpectQuery(`UPDATE providers SET`).
		WithArgs(writeArgs(34, "stored-secret")...).
		WillReturnRows(sqlmock.NewRows([]string{"updated_at"}).AddRow(time.Now()))

	body := `{"name":"grossiste-renamed"}`
	req := httptest.NewRequest(http.MethodPut, "/v1/providers/4", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, 200, w.Code)
	assert.Contains(t, w.Body.String(), "grossiste-renamed")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUpdateProviderReplacesPasswordWhenProvided(t *testing.T) {
	router, mock := newProviderRouter(t)

	mock.ExpectQuery(`SELECT \* FROM providers WHERE id`).
		WithArgs(4).
		WillReturnRows(sqlmock.NewRows([]string{"id", "name", "company", "host", "protocol", "password"}).
			AddRow(4, "grossiste-a", "main", "ftp.example.com", "ftp", "stored-secret"))
	mock.ExpectQuery(`UPDATE providers SET`).
		WithArgs(writeArgs(34, "fresh-secret")...).
		WillReturnRows(sqlmock.NewRows([]string{"updated_at"}).AddRow(time.Now()))

	body := `{"password":"fresh-secret"}`
	req := httptest.NewRequest(http.MethodPut, "/v1/providers/4", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, 200, w.Code)
	assert.NoError(t, mock.ExpectationsWereMet())
}
