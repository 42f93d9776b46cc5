package models

import "time"

// Email kinds.
const (
	EmailKindVerification      = "verification"
	EmailKindAlreadyRegistered = "already_registered"
	EmailKindPasswordReset     = "password_reset"
)

// Email delivery statuses.
const (
	EmailStatusQueued    = "queued"
	EmailStatusSent      = "sent"
	EmailStatusDelivered = "delivered"
	EmailStatusOpened    = "opened"
	EmailStatusClicked   = "clicked"
	EmailStatusFailed    = "failed"
)

// Email is the archived copy of an outbound message and its delivery state.
type Email struct {
	ID              string     `db:"id" json:"id"`
	AccountID       *string    `db:"account_id" json:"account_id,omitempty"`
	Kind            string     `db:"kind" json:"kind"`
	ToEmail         string     `db:"to_email" json:"to_email"`
	ToName          *string    `db:"to_name" json:"to_name,omitempty"`
	Subject         string     `db:"subject" json:"subject"`
	Body            string     `db:"body" json:"body"`
	Status          string     `db:"status" json:"status"`
	DeliveryMessage *string    `db:"delivery_message" json:"delivery_message,omitempty"`
	CreatedAt       time.Time  `db:"created_at" json:"email_date"`
	SentAt          *time.Time `db:"sent_at" json:"sent_date,omitempty"`
	UpdatedAt       *time.Time `db:"updated_at" json:"updated_date,omitempty"`
}

// DeliveryEvent is the webhook payload a mail provider posts when a message
// changes state. MessageID carries the Email ID sent with the message.
type DeliveryEvent struct {
	RecordType  string `json:"RecordType" binding:"required"`
	MessageID   string `json:"MessageID" binding:"required"`
	Email       string `json:"Email"`
	Description string `json:"Description"`
	Details     string `json:"Details"`
}

// DeliveryStatus maps a provider record type onto an email status. The second
// result is false for record types that do not change the status.
func (e DeliveryEvent) DeliveryStatus() (string, bool) {
	switch e.RecordType {
	case "Delivery":
		return EmailStatusDelivered, true
	case "Open":
		return EmailStatusOpened, true
	case "Click":
		return EmailStatusClicked, true
	case "Bounce", "Dropped", "SpamComplaint":
		return EmailStatusFailed, true
	default:
		return "", false
	}
}
