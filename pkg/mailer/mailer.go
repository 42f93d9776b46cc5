package mailer

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/noah-isme/craft-api/pkg/config"
)

// Message is an outbound email ready for delivery.
type Message struct {
	ID        string `json:"id"`
	From      string `json:"from"`
	FromName  string `json:"from_name,omitempty"`
	To        string `json:"to"`
	ToName    string `json:"to_name,omitempty"`
	Subject   string `json:"subject"`
	Body      string `json:"body"`
	Kind      string `json:"kind"`
	AccountID string `json:"account_id,omitempty"`
}

// Sender delivers messages to a transport.
type Sender interface {
	Send(ctx context.Context, msg Message) error
	Close() error
}

// New builds the sender selected by cfg.Transport.
func New(cfg config.MailConfig, logger *zap.Logger) (Sender, error) {
	switch strings.ToLower(cfg.Transport) {
	case "", "log":
		return NewLogSender(logger), nil
	case "amqp":
		return NewAMQPSender(cfg.AMQPURL, cfg.Queue, logger), nil
	default:
		return nil, fmt.Errorf("unknown mail transport %q", cfg.Transport)
	}
}

// LogSender writes messages to the logger instead of delivering them.
type LogSender struct {
	logger *zap.Logger
}

// NewLogSender constructs a LogSender.
func NewLogSender(logger *zap.Logger) *LogSender {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LogSender{logger: logger}
}

// Send logs the message envelope. The body is omitted since it carries tokens.
func (s *LogSender) Send(_ context.Context, msg Message) error {
	s.logger.Info("email dispatched",
		zap.String("email_id", msg.ID),
		zap.String("kind", msg.Kind),
		zap.String("to", msg.To),
		zap.String("subject", msg.Subject),
	)
	return nil
}

// Close is a no-op.
func (s *LogSender) Close() error { return nil }
