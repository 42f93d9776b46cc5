package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/craft-api/internal/models"
	appErrors "github.com/noah-isme/craft-api/pkg/errors"
)

type contactMessageRepository interface {
	List(ctx context.Context, isRead *bool, page, pageSize int) ([]models.ContactMessage, int, error)
	FindByID(ctx context.Context, id string) (*models.ContactMessage, error)
	Create(ctx context.Context, message *models.ContactMessage) error
	UpdateRead(ctx context.Context, id string, isRead bool, updatedAt time.Time) error
	Delete(ctx context.Context, id string) error
}

// ContactMessageService manages messages left through the contact form.
type ContactMessageService struct {
	repo      contactMessageRepository
	logs      ActivityLogger
	validator *validator.Validate
	logger    *zap.Logger
	now       func() time.Time
}

// NewContactMessageService constructs a ContactMessageService.
func NewContactMessageService(repo contactMessageRepository, logs ActivityLogger, validate *validator.Validate, logger *zap.Logger) *ContactMessageService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	if logs == nil {
		logs = nopActivityLogger{}
	}
	return &ContactMessageService{repo: repo, logs: logs, validator: validate, logger: logger, now: func() time.Time { return time.Now().UTC() }}
}

// List returns messages newest first, optionally filtered by read state.
func (s *ContactMessageService) List(ctx context.Context, isRead *bool, page, pageSize int) ([]models.ContactMessage, *models.Pagination, error) {
	messages, total, err := s.repo.List(ctx, isRead, page, pageSize)
	if err != nil {
		return nil, nil, internalError(err, "failed to list contact messages")
	}
	return messages, logPagination(models.LogFilter{Page: page, PageSize: pageSize}, total), nil
}

// Get returns a single message.
func (s *ContactMessageService) Get(ctx context.Context, id string) (*models.ContactMessage, error) {
	message, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, notFoundOr(err, "Contact message not found", "failed to load contact message")
	}
	return message, nil
}

// Create stores a message submitted by an anonymous visitor.
func (s *ContactMessageService) Create(ctx context.Context, req models.CreateContactMessageRequest) (*models.ContactMessage, error) {
	req.Email = strings.TrimSpace(req.Email)
	if err := s.validator.Struct(req); err != nil {
		return nil, validationError(err, "invalid contact message payload")
	}

	message := &models.ContactMessage{
		Email:     req.Email,
		Subject:   strings.TrimSpace(req.Subject),
		Message:   req.Message,
		CreatedAt: s.now(),
	}
	if err := s.repo.Create(ctx, message); err != nil {
		return nil, internalError(err, "failed to save contact message")
	}
	s.logs.Activity(ctx, "Contact message received", models.IdentifierEmail, message.Email)
	return message, nil
}

// MarkRead sets the read flag on a message.
func (s *ContactMessageService) MarkRead(ctx context.Context, actor *models.Account, id string, req models.UpdateContactMessageRequest) (*models.ContactMessage, error) {
	if err := s.repo.UpdateRead(ctx, id, req.IsRead, s.now()); err != nil {
		return nil, notFoundOr(err, "Contact message not found", "failed to update contact message")
	}
	s.logs.Activity(ctx, fmt.Sprintf("Contact message %s marked read=%t", id, req.IsRead), models.IdentifierAccountID, actorID(actor))
	return s.Get(ctx, id)
}

// Delete removes a message.
func (s *ContactMessageService) Delete(ctx context.Context, actor *models.Account, id string) error {
	if err := s.repo.Delete(ctx, id); err != nil {
		return notFoundOr(err, "Contact message not found", "failed to delete contact message")
	}
	s.logs.Activity(ctx, fmt.Sprintf("Contact message %s deleted", id), models.IdentifierAccountID, actorID(actor))
	return nil
}

func notFoundOr(err error, notFound, internal string) error {
	if errors.Is(err, sql.ErrNoRows) {
		return appErrors.Clone(appErrors.ErrNotFound, notFound)
	}
	return internalError(err, internal)
}
