package repository

import (
	"context"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ivspro/tariff-import/internal/models"
)

func TestUpdateRunStatus(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewProviderRepository(db)

	mock.ExpectExec(`UPDATE providers`).
		WithArgs(7, models.RunStatusFailed, "connection refused").
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := repo.UpdateRunStatus(context.Background(), 7, models.RunStatusFailed, "connection refused")
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUpsertByNaturalKey(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewProviderRepository(db)

	mock.ExpectQuery(`INSERT INTO providers`).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(3))

	p := &models.Provider{
		Name:     "grossiste-a",
		Company:  "main",
		Protocol: models.ProtocolFTP,
		Host:     "ftp.example.com",
	}
	err := repo.UpsertByNaturalKey(context.Background(), p)
	require.NoError(t, err)
	assert.Equal(t, 3, p.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUpsertByNaturalKeyWritesConnectionTuning(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewProviderRepository(db)

	// The statement must carry the timeout and mailbox columns so a
	// seeded configuration survives the upsert, and the password CASE
	// so a blank incoming password keeps the stored one.
	mock.ExpectQuery(`(?s)INSERT INTO providers.*timeout_sec.*retries.*keepalive_sec.*ftp_passive.*` +
		`imap_use_ssl.*imap_search_criteria.*imap_mark_seen.*imap_move_processed.*imap_move_error.*` +
		`WHEN EXCLUDED\.password = '' THEN providers\.password`).
		WithArgs(
			"grossiste-b", "main", false, models.ProtocolIMAP, "imap.example.com", 993, "user", "",
			120, 3, 30, true,
			true, "UNSEEN", true, true, false,
			"INBOX", "Processed", "Error", "*.csv", "",
			"", false, "",
			nil, "",
			true,
		).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(9))

	p := &models.Provider{
		Name:               "grossiste-b",
		Company:            "main",
		Protocol:           models.ProtocolIMAP,
		Host:               "imap.example.com",
		Port:               993,
		Username:           "user",
		TimeoutSec:         120,
		Retries:            3,
		KeepaliveSec:       30,
		FTPPassive:         true,
		IMAPUseSSL:         true,
		IMAPSearchCriteria: "UNSEEN",
		IMAPMarkSeen:       true,
		IMAPMoveProcessed:  true,
		DirIn:              "INBOX",
		DirProcessed:       "Processed",
		DirError:           "Error",
		IncludePattern:     "*.csv",
		AutoProcess:        true,
	}
	err := repo.UpsertByNaturalKey(context.Background(), p)
	require.NoError(t, err)
	assert.Equal(t, 9, p.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}
