package service

import (
	"context"
	"crypto/subtle"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/craft-api/internal/models"
	appErrors "github.com/noah-isme/craft-api/pkg/errors"
)

type emailRepository interface {
	List(ctx context.Context, status string, page, pageSize int) ([]models.Email, int, error)
	FindByID(ctx context.Context, id string) (*models.Email, error)
	UpdateStatus(ctx context.Context, id, status string, message *string, at time.Time) error
}

// EmailService exposes the email archive and applies provider delivery events.
type EmailService struct {
	repo         emailRepository
	logs         ActivityLogger
	logger       *zap.Logger
	webhookToken string
	now          func() time.Time
}

// NewEmailService constructs an EmailService. Delivery events are rejected
// while webhookToken is empty.
func NewEmailService(repo emailRepository, logs ActivityLogger, logger *zap.Logger, webhookToken string) *EmailService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if logs == nil {
		logs = nopActivityLogger{}
	}
	return &EmailService{repo: repo, logs: logs, logger: logger, webhookToken: webhookToken, now: func() time.Time { return time.Now().UTC() }}
}

// List returns archived emails newest first, optionally filtered by status.
func (s *EmailService) List(ctx context.Context, status string, page, pageSize int) ([]models.Email, *models.Pagination, error) {
	emails, total, err := s.repo.List(ctx, status, page, pageSize)
	if err != nil {
		return nil, nil, internalError(err, "failed to list emails")
	}
	return emails, logPagination(models.LogFilter{Page: page, PageSize: pageSize}, total), nil
}

// Get returns a single archived email.
func (s *EmailService) Get(ctx context.Context, id string) (*models.Email, error) {
	email, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, notFoundOr(err, "Email not found", "failed to load email")
	}
	return email, nil
}

// ProcessDeliveryEvent applies a provider callback to the matching email.
// Record types without a status mapping and unknown message ids are ignored.
func (s *EmailService) ProcessDeliveryEvent(ctx context.Context, token string, event models.DeliveryEvent) error {
	if s.webhookToken == "" || subtle.ConstantTimeCompare([]byte(token), []byte(s.webhookToken)) != 1 {
		return appErrors.Clone(appErrors.ErrForbidden, "Invalid webhook token")
	}

	status, ok := event.DeliveryStatus()
	if !ok {
		s.logger.Debug("ignoring delivery event", zap.String("record_type", event.RecordType), zap.String("message_id", event.MessageID))
		return nil
	}

	var message *string
	if status == models.EmailStatusFailed && event.Description != "" {
		message = &event.Description
	}

	if err := s.repo.UpdateStatus(ctx, event.MessageID, status, message, s.now()); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			s.logger.Warn("delivery event for unknown email", zap.String("message_id", event.MessageID), zap.String("record_type", event.RecordType))
			return nil
		}
		s.logs.Error(ctx, "Failed to process delivery event", err.Error(), models.IdentifierEmail, event.Email)
		return internalError(err, "failed to process delivery event")
	}

	if status == models.EmailStatusFailed {
		s.logs.Error(ctx, fmt.Sprintf("Email %s failed: %s", event.MessageID, event.Description), event.Details, models.IdentifierEmail, event.Email)
		return nil
	}
	s.logs.Activity(ctx, fmt.Sprintf("Email %s %s", event.MessageID, status), models.IdentifierEmail, event.Email)
	return nil
}
