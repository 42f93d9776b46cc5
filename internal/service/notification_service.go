package service

import (
	"bytes"
	"context"
	"fmt"
	"net/url"
	"strings"
	"text/template"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/noah-isme/craft-api/internal/models"
	"github.com/noah-isme/craft-api/pkg/jobs"
	"github.com/noah-isme/craft-api/pkg/mailer"
)

// JobTypeEmail identifies queued email jobs.
const JobTypeEmail = "email"

// Notifier sends account lifecycle emails.
type Notifier interface {
	SendVerificationEmail(ctx context.Context, account *models.Account, origin string) error
	SendAlreadyRegisteredEmail(ctx context.Context, email, origin string) error
	SendPasswordResetEmail(ctx context.Context, account *models.Account, origin string) error
}

type mailQueue interface {
	Enqueue(ctx context.Context, job jobs.Job) error
}

type emailArchive interface {
	Create(ctx context.Context, email *models.Email) error
	UpdateStatus(ctx context.Context, id, status string, message *string, at time.Time) error
}

// NotificationConfig carries sender identity and the fallback link base.
type NotificationConfig struct {
	From      string
	FromName  string
	ClientURL string
}

var emailTemplates = template.Must(template.New("emails").Parse(`
{{define "verification"}}Thanks for registering! Please click the link below to verify your email address:

{{.Link}}

Regards
{{.Signature}}{{end}}
{{define "already_registered"}}Your email {{.Email}} is already registered.

If you don't know your password please visit the forgot password page:

{{.Link}}

Regards
{{.Signature}}{{end}}
{{define "password_reset"}}Please click the link below to reset your password, the link will be valid for 1 day:

{{.Link}}

Regards
{{.Signature}}{{end}}
`))

type emailData struct {
	Email     string
	Link      string
	Signature string
}

// NotificationService composes emails and hands them to the mail queue.
type NotificationService struct {
	queue    mailQueue
	sender   mailer.Sender
	archive  emailArchive
	activity ActivityLogger
	metrics  *MetricsService
	logger   *zap.Logger
	config   NotificationConfig
	now      func() time.Time
}

// NewNotificationService constructs a NotificationService. With a nil queue,
// messages are delivered synchronously through sender. A nil archive skips
// email tracking.
func NewNotificationService(queue mailQueue, sender mailer.Sender, archive emailArchive, activity ActivityLogger, metrics *MetricsService, logger *zap.Logger, config NotificationConfig) *NotificationService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &NotificationService{
		queue:    queue,
		sender:   sender,
		archive:  archive,
		activity: activity,
		metrics:  metrics,
		logger:   logger,
		config:   config,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// SetQueue attaches the queue once it has been built around HandleJob.
func (s *NotificationService) SetQueue(queue mailQueue) {
	s.queue = queue
}

// SendVerificationEmail sends the email verification link.
func (s *NotificationService) SendVerificationEmail(ctx context.Context, account *models.Account, origin string) error {
	token := ""
	if account.VerificationToken != nil {
		token = *account.VerificationToken
	}
	link := s.link(origin, "/account/verify-email", token)
	return s.dispatch(ctx, models.EmailKindVerification, "Sign-up Verification - Verify Email", account.Email, account.FullName, account.ID, emailData{Link: link})
}

// SendAlreadyRegisteredEmail tells the owner of email that someone tried to register it again.
func (s *NotificationService) SendAlreadyRegisteredEmail(ctx context.Context, email, origin string) error {
	link := s.link(origin, "/account/forgot-password", "")
	return s.dispatch(ctx, models.EmailKindAlreadyRegistered, "Sign-up Verification - Email Already Registered", email, "", "", emailData{Email: email, Link: link})
}

// SendPasswordResetEmail sends the reset link.
func (s *NotificationService) SendPasswordResetEmail(ctx context.Context, account *models.Account, origin string) error {
	token := ""
	if account.ResetToken != nil {
		token = *account.ResetToken
	}
	link := s.link(origin, "/account/reset-password", token)
	return s.dispatch(ctx, models.EmailKindPasswordReset, "Reset Password", account.Email, account.FullName, account.ID, emailData{Link: link})
}

// HandleJob delivers a queued email.
func (s *NotificationService) HandleJob(ctx context.Context, job jobs.Job) error {
	msg, ok := job.Payload.(mailer.Message)
	if !ok {
		return fmt.Errorf("unexpected email payload %T", job.Payload)
	}
	if s.sender == nil {
		return fmt.Errorf("no mail sender configured")
	}
	if err := s.sender.Send(ctx, msg); err != nil {
		return err
	}
	s.metrics.RecordEmail(msg.Kind, true)
	s.track(ctx, msg.ID, models.EmailStatusSent, nil)
	return nil
}

// HandleFailure records emails that could not be delivered after all retries.
func (s *NotificationService) HandleFailure(job jobs.Job, err error) {
	msg, _ := job.Payload.(mailer.Message)
	s.logger.Error("email delivery failed", zap.String("email_id", msg.ID), zap.String("kind", msg.Kind), zap.Error(err))
	s.metrics.RecordEmail(msg.Kind, false)
	reason := err.Error()
	s.track(context.Background(), msg.ID, models.EmailStatusFailed, &reason)
	if s.activity != nil {
		s.activity.Error(context.Background(), fmt.Sprintf("Failed to deliver %s email: %v", msg.Kind, err), "", models.IdentifierEmail, msg.To)
	}
}

func (s *NotificationService) dispatch(ctx context.Context, kind, subject, to, toName, accountID string, data emailData) error {
	data.Signature = s.config.FromName
	var body bytes.Buffer
	if err := emailTemplates.ExecuteTemplate(&body, kind, data); err != nil {
		return fmt.Errorf("render %s email: %w", kind, err)
	}

	msg := mailer.Message{
		ID:        uuid.NewString(),
		From:      s.config.From,
		FromName:  s.config.FromName,
		To:        to,
		ToName:    toName,
		Subject:   subject,
		Body:      body.String(),
		Kind:      kind,
		AccountID: accountID,
	}

	s.record(ctx, msg)

	var err error
	if s.queue == nil {
		err = s.HandleJob(ctx, jobs.Job{ID: msg.ID, Type: JobTypeEmail, Payload: msg})
	} else {
		err = s.queue.Enqueue(ctx, jobs.Job{ID: msg.ID, Type: JobTypeEmail, Payload: msg})
	}
	if err != nil {
		reason := err.Error()
		s.track(ctx, msg.ID, models.EmailStatusFailed, &reason)
	}
	return err
}

// record archives msg as queued. Archive failures never block delivery.
func (s *NotificationService) record(ctx context.Context, msg mailer.Message) {
	if s.archive == nil {
		return
	}
	email := &models.Email{
		ID:        msg.ID,
		Kind:      msg.Kind,
		ToEmail:   msg.To,
		Subject:   msg.Subject,
		Body:      msg.Body,
		Status:    models.EmailStatusQueued,
		CreatedAt: s.now(),
	}
	if msg.AccountID != "" {
		email.AccountID = &msg.AccountID
	}
	if msg.ToName != "" {
		email.ToName = &msg.ToName
	}
	if err := s.archive.Create(ctx, email); err != nil {
		s.logger.Warn("archive email", zap.String("email_id", msg.ID), zap.Error(err))
	}
}

func (s *NotificationService) track(ctx context.Context, id, status string, message *string) {
	if s.archive == nil || id == "" {
		return
	}
	if err := s.archive.UpdateStatus(ctx, id, status, message, s.now()); err != nil {
		s.logger.Warn("update email status", zap.String("email_id", id), zap.String("status", status), zap.Error(err))
	}
}

func (s *NotificationService) link(origin, path, token string) string {
	base := strings.TrimRight(origin, "/")
	if base == "" {
		base = strings.TrimRight(s.config.ClientURL, "/")
	}
	if token == "" {
		return base + path
	}
	return base + path + "?token=" + url.QueryEscape(token)
}
