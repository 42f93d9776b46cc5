package models

import "time"

// Identifier types attached to activity and error logs.
const (
	IdentifierEmail     = "Email"
	IdentifierIPAddress = "IP address"
	IdentifierAccountID = "Account id"
)

// ActivityLog records a successful operation.
type ActivityLog struct {
	ID             string    `db:"id" json:"id"`
	LogDate        time.Time `db:"log_date" json:"log_date"`
	IdentifierType *string   `db:"identifier_type" json:"identifier_type,omitempty"`
	Identifier     *string   `db:"identifier" json:"identifier,omitempty"`
	LogDetails     string    `db:"log_details" json:"log_details"`
}

// ErrorLog records a failed operation.
type ErrorLog struct {
	ID             string    `db:"id" json:"id"`
	LogDate        time.Time `db:"log_date" json:"log_date"`
	IdentifierType *string   `db:"identifier_type" json:"identifier_type,omitempty"`
	Identifier     *string   `db:"identifier" json:"identifier,omitempty"`
	LogDetails     string    `db:"log_details" json:"log_details"`
	StackTrace     *string   `db:"stack_trace" json:"stack_trace,omitempty"`
}

// LogFilter narrows log listings.
type LogFilter struct {
	IdentifierType string
	Identifier     string
	From           *time.Time
	To             *time.Time
	Page           int
	PageSize       int
}
