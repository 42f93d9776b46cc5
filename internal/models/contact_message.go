package models

import "time"

// ContactMessage is a message left through the public contact form.
type ContactMessage struct {
	ID        string     `db:"id" json:"id"`
	Email     string     `db:"email" json:"email"`
	Subject   string     `db:"subject" json:"subject"`
	Message   string     `db:"message" json:"message"`
	IsRead    bool       `db:"is_read" json:"is_read"`
	CreatedAt time.Time  `db:"created_at" json:"created_date"`
	UpdatedAt *time.Time `db:"updated_at" json:"updated_date,omitempty"`
}

// CreateContactMessageRequest is the public contact form payload.
type CreateContactMessageRequest struct {
	Email   string `json:"email" validate:"required,email"`
	Subject string `json:"subject" validate:"required,max=200"`
	Message string `json:"message" validate:"required,max=5000"`
}

// UpdateContactMessageRequest lets an admin mark messages read/unread.
type UpdateContactMessageRequest struct {
	IsRead bool `json:"is_read"`
}
