package repository

import (
	"context"
	"database/sql"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/craft-api/internal/models"
)

var emailColumnNames = []string{"id", "account_id", "kind", "to_email", "to_name", "subject", "body", "status", "delivery_message", "created_at", "sent_at", "updated_at"}

func TestEmailCreate(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewEmailRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO emails (id, account_id, kind")).WillReturnResult(sqlmock.NewResult(1, 1))

	email := &models.Email{Kind: models.EmailKindVerification, ToEmail: "jane@example.com", Subject: "Verify", Body: "link", Status: models.EmailStatusQueued}
	require.NoError(t, repo.Create(context.Background(), email))
	assert.NotEmpty(t, email.ID)
	assert.False(t, email.CreatedAt.IsZero())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestEmailUpdateStatus(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewEmailRepository(db)

	now := time.Now().UTC()
	reason := "mailbox full"
	mock.ExpectExec(regexp.QuoteMeta("UPDATE emails SET status = $2, delivery_message = COALESCE($3, delivery_message)")).
		WithArgs("e1", models.EmailStatusFailed, reason, now).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, repo.UpdateStatus(context.Background(), "e1", models.EmailStatusFailed, &reason, now))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestEmailUpdateStatusMissing(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewEmailRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("UPDATE emails SET status")).WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.UpdateStatus(context.Background(), "missing", models.EmailStatusDelivered, nil, time.Now())
	assert.ErrorIs(t, err, sql.ErrNoRows)
}

func TestEmailFindByID(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewEmailRepository(db)

	now := time.Now().UTC()
	mock.ExpectQuery(regexp.QuoteMeta("FROM emails WHERE id = $1")).
		WithArgs("e1").
		WillReturnRows(sqlmock.NewRows(emailColumnNames).
			AddRow("e1", "a1", models.EmailKindPasswordReset, "jane@example.com", "Jane", "Reset Password", "body", models.EmailStatusSent, nil, now, now, now))

	email, err := repo.FindByID(context.Background(), "e1")
	require.NoError(t, err)
	assert.Equal(t, models.EmailStatusSent, email.Status)
	require.NotNil(t, email.AccountID)
	assert.Equal(t, "a1", *email.AccountID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestEmailFindByIDMissing(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewEmailRepository(db)

	mock.ExpectQuery("FROM emails WHERE id").WillReturnError(sql.ErrNoRows)

	_, err := repo.FindByID(context.Background(), "missing")
	assert.ErrorIs(t, err, sql.ErrNoRows)
}

func TestEmailListByStatus(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewEmailRepository(db)

	now := time.Now().UTC()
	mock.ExpectQuery(regexp.QuoteMeta("FROM emails WHERE status = $1 ORDER BY created_at DESC LIMIT 20 OFFSET 20")).
		WithArgs(models.EmailStatusFailed).
		WillReturnRows(sqlmock.NewRows(emailColumnNames).
			AddRow("e2", nil, models.EmailKindAlreadyRegistered, "jane@example.com", nil, "Already registered", "body", models.EmailStatusFailed, "bounced", now, nil, now))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM emails WHERE status = $1")).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(21))

	emails, total, err := repo.List(context.Background(), models.EmailStatusFailed, 2, 20)
	require.NoError(t, err)
	require.Len(t, emails, 1)
	assert.Nil(t, emails[0].AccountID)
	assert.Equal(t, 21, total)
	assert.NoError(t, mock.ExpectationsWereMet())
}
