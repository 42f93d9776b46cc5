package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/craft-api/internal/models"
)

const emailColumns = `id, account_id, kind, to_email, to_name, subject, body, status, delivery_message, created_at, sent_at, updated_at`

// EmailRepository archives outbound emails and tracks their delivery status.
type EmailRepository struct {
	db *sqlx.DB
}

// NewEmailRepository creates an EmailRepository.
func NewEmailRepository(db *sqlx.DB) *EmailRepository {
	return &EmailRepository{db: db}
}

// Create stores an email record.
func (r *EmailRepository) Create(ctx context.Context, email *models.Email) error {
	if email.ID == "" {
		email.ID = uuid.NewString()
	}
	if email.CreatedAt.IsZero() {
		email.CreatedAt = time.Now().UTC()
	}
	const query = `INSERT INTO emails (` + emailColumns + `) VALUES (:id, :account_id, :kind, :to_email, :to_name, :subject, :body, :status, :delivery_message, :created_at, :sent_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, email); err != nil {
		return fmt.Errorf("insert email: %w", err)
	}
	return nil
}

// UpdateStatus moves an email to status. A nil message keeps the stored
// delivery message. Moving to sent also stamps sent_at.
func (r *EmailRepository) UpdateStatus(ctx context.Context, id, status string, message *string, at time.Time) error {
	const query = `UPDATE emails SET status = $2, delivery_message = COALESCE($3, delivery_message), sent_at = CASE WHEN $2 = 'sent' THEN $4 ELSE sent_at END, updated_at = $4 WHERE id = $1`
	res, err := r.db.ExecContext(ctx, query, id, status, message, at)
	if err != nil {
		return fmt.Errorf("update email status: %w", err)
	}
	if affected, err := res.RowsAffected(); err == nil && affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// FindByID returns a single email.
func (r *EmailRepository) FindByID(ctx context.Context, id string) (*models.Email, error) {
	query := `SELECT ` + emailColumns + ` FROM emails WHERE id = $1`
	var email models.Email
	if err := r.db.GetContext(ctx, &email, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find email: %w", err)
	}
	return &email, nil
}

// List returns emails newest first, optionally filtered by status.
func (r *EmailRepository) List(ctx context.Context, status string, page, pageSize int) ([]models.Email, int, error) {
	where := ""
	var args []interface{}
	if status != "" {
		where = " WHERE status = $1"
		args = append(args, status)
	}
	limit, offset := paginate(page, pageSize)

	listQuery := fmt.Sprintf("SELECT %s FROM emails%s ORDER BY created_at DESC LIMIT %d OFFSET %d", emailColumns, where, limit, offset)
	var emails []models.Email
	if err := r.db.SelectContext(ctx, &emails, listQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("list emails: %w", err)
	}

	var total int
	if err := r.db.GetContext(ctx, &total, "SELECT COUNT(*) FROM emails"+where, args...); err != nil {
		return nil, 0, fmt.Errorf("count emails: %w", err)
	}
	return emails, total, nil
}
