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

const contactMessageColumns = `id, email, subject, message, is_read, created_at, updated_at`

// ContactMessageRepository provides access to contact form messages.
type ContactMessageRepository struct {
	db *sqlx.DB
}

// NewContactMessageRepository creates a ContactMessageRepository.
func NewContactMessageRepository(db *sqlx.DB) *ContactMessageRepository {
	return &ContactMessageRepository{db: db}
}

// List returns messages newest first, optionally filtered by read state.
func (r *ContactMessageRepository) List(ctx context.Context, isRead *bool, page, pageSize int) ([]models.ContactMessage, int, error) {
	where := ""
	var args []interface{}
	if isRead != nil {
		where = " WHERE is_read = $1"
		args = append(args, *isRead)
	}
	limit, offset := paginate(page, pageSize)

	listQuery := fmt.Sprintf("SELECT %s FROM contact_messages%s ORDER BY created_at DESC LIMIT %d OFFSET %d", contactMessageColumns, where, limit, offset)
	var messages []models.ContactMessage
	if err := r.db.SelectContext(ctx, &messages, listQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("list contact messages: %w", err)
	}

	var total int
	if err := r.db.GetContext(ctx, &total, "SELECT COUNT(*) FROM contact_messages"+where, args...); err != nil {
		return nil, 0, fmt.Errorf("count contact messages: %w", err)
	}
	return messages, total, nil
}

// FindByID returns a single message.
func (r *ContactMessageRepository) FindByID(ctx context.Context, id string) (*models.ContactMessage, error) {
	query := `SELECT ` + contactMessageColumns + ` FROM contact_messages WHERE id = $1`
	var message models.ContactMessage
	if err := r.db.GetContext(ctx, &message, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find contact message: %w", err)
	}
	return &message, nil
}

// Create stores a new message.
func (r *ContactMessageRepository) Create(ctx context.Context, message *models.ContactMessage) error {
	if message.ID == "" {
		message.ID = uuid.NewString()
	}
	if message.CreatedAt.IsZero() {
		message.CreatedAt = time.Now().UTC()
	}
	const query = `INSERT INTO contact_messages (` + contactMessageColumns + `) VALUES (:id, :email, :subject, :message, :is_read, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, message); err != nil {
		return fmt.Errorf("insert contact message: %w", err)
	}
	return nil
}

// UpdateRead toggles the read flag.
func (r *ContactMessageRepository) UpdateRead(ctx context.Context, id string, isRead bool, updatedAt time.Time) error {
	res, err := r.db.ExecContext(ctx, `UPDATE contact_messages SET is_read = $2, updated_at = $3 WHERE id = $1`, id, isRead, updatedAt)
	if err != nil {
		return fmt.Errorf("update contact message: %w", err)
	}
	if affected, err := res.RowsAffected(); err == nil && affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// Delete removes a message.
func (r *ContactMessageRepository) Delete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM contact_messages WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete contact message: %w", err)
	}
	if affected, err := res.RowsAffected(); err == nil && affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}
