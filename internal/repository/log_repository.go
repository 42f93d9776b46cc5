package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/craft-api/internal/models"
)

// LogRepository persists activity and error logs.
type LogRepository struct {
	db *sqlx.DB
}

// NewLogRepository creates a LogRepository.
func NewLogRepository(db *sqlx.DB) *LogRepository {
	return &LogRepository{db: db}
}

// CreateActivity inserts an activity log entry.
func (r *LogRepository) CreateActivity(ctx context.Context, entry *models.ActivityLog) error {
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	if entry.LogDate.IsZero() {
		entry.LogDate = time.Now().UTC()
	}
	const query = `INSERT INTO activity_logs (id, log_date, identifier_type, identifier, log_details) VALUES (:id, :log_date, :identifier_type, :identifier, :log_details)`
	if _, err := r.db.NamedExecContext(ctx, query, entry); err != nil {
		return fmt.Errorf("insert activity log: %w", err)
	}
	return nil
}

// CreateError inserts an error log entry.
func (r *LogRepository) CreateError(ctx context.Context, entry *models.ErrorLog) error {
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	if entry.LogDate.IsZero() {
		entry.LogDate = time.Now().UTC()
	}
	const query = `INSERT INTO error_logs (id, log_date, identifier_type, identifier, log_details, stack_trace) VALUES (:id, :log_date, :identifier_type, :identifier, :log_details, :stack_trace)`
	if _, err := r.db.NamedExecContext(ctx, query, entry); err != nil {
		return fmt.Errorf("insert error log: %w", err)
	}
	return nil
}

// ListActivity returns activity logs newest first.
func (r *LogRepository) ListActivity(ctx context.Context, filter models.LogFilter) ([]models.ActivityLog, int, error) {
	where, args := logConditions(filter)
	limit, offset := paginate(filter.Page, filter.PageSize)

	listQuery := fmt.Sprintf("SELECT id, log_date, identifier_type, identifier, log_details FROM activity_logs%s ORDER BY log_date DESC LIMIT %d OFFSET %d", where, limit, offset)
	var logs []models.ActivityLog
	if err := r.db.SelectContext(ctx, &logs, listQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("list activity logs: %w", err)
	}

	var total int
	if err := r.db.GetContext(ctx, &total, "SELECT COUNT(*) FROM activity_logs"+where, args...); err != nil {
		return nil, 0, fmt.Errorf("count activity logs: %w", err)
	}
	return logs, total, nil
}

// ListErrors returns error logs newest first.
func (r *LogRepository) ListErrors(ctx context.Context, filter models.LogFilter) ([]models.ErrorLog, int, error) {
	where, args := logConditions(filter)
	limit, offset := paginate(filter.Page, filter.PageSize)

	listQuery := fmt.Sprintf("SELECT id, log_date, identifier_type, identifier, log_details, stack_trace FROM error_logs%s ORDER BY log_date DESC LIMIT %d OFFSET %d", where, limit, offset)
	var logs []models.ErrorLog
	if err := r.db.SelectContext(ctx, &logs, listQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("list error logs: %w", err)
	}

	var total int
	if err := r.db.GetContext(ctx, &total, "SELECT COUNT(*) FROM error_logs"+where, args...); err != nil {
		return nil, 0, fmt.Errorf("count error logs: %w", err)
	}
	return logs, total, nil
}

// FindActivity returns a single activity log entry.
func (r *LogRepository) FindActivity(ctx context.Context, id string) (*models.ActivityLog, error) {
	var entry models.ActivityLog
	err := r.db.GetContext(ctx, &entry, "SELECT id, log_date, identifier_type, identifier, log_details FROM activity_logs WHERE id = $1", id)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find activity log: %w", err)
	}
	return &entry, nil
}

// FindError returns a single error log entry.
func (r *LogRepository) FindError(ctx context.Context, id string) (*models.ErrorLog, error) {
	var entry models.ErrorLog
	err := r.db.GetContext(ctx, &entry, "SELECT id, log_date, identifier_type, identifier, log_details, stack_trace FROM error_logs WHERE id = $1", id)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find error log: %w", err)
	}
	return &entry, nil
}

func logConditions(filter models.LogFilter) (string, []interface{}) {
	var conditions []string
	var args []interface{}

	if filter.IdentifierType != "" {
		args = append(args, filter.IdentifierType)
		conditions = append(conditions, fmt.Sprintf("identifier_type = $%d", len(args)))
	}
	if filter.Identifier != "" {
		args = append(args, filter.Identifier)
		conditions = append(conditions, fmt.Sprintf("identifier = $%d", len(args)))
	}
	if filter.From != nil {
		args = append(args, *filter.From)
		conditions = append(conditions, fmt.Sprintf("log_date >= $%d", len(args)))
	}
	if filter.To != nil {
		args = append(args, *filter.To)
		conditions = append(conditions, fmt.Sprintf("log_date < $%d", len(args)))
	}

	if len(conditions) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(conditions, " AND "), args
}

func paginate(page, pageSize int) (int, int) {
	if page < 1 {
		page = 1
	}
	if pageSize <= 0 || pageSize > 500 {
		pageSize = 50
	}
	return pageSize, (page - 1) * pageSize
}
