package models

import "time"

// Role is the authorization role carried by an account.
type Role string

const (
	RoleAdmin Role = "Admin"
	RoleUser  Role = "User"
)

// Valid reports whether r is a known role.
func (r Role) Valid() bool {
	return r == RoleAdmin || r == RoleUser
}

// Account is the identity and credential record stored in the accounts table.
// RefreshTokens is loaded from refresh_tokens and owned exclusively by the account.
type Account struct {
	ID                string     `db:"id" json:"id"`
	FullName          string     `db:"full_name" json:"full_name"`
	Email             string     `db:"email" json:"email"`
	PasswordHash      string     `db:"password_hash" json:"-"`
	AcceptTerms       bool       `db:"accept_terms" json:"accept_terms"`
	Role              Role       `db:"role" json:"role"`
	VerificationToken *string    `db:"verification_token" json:"-"`
	Verified          *time.Time `db:"verified_at" json:"verified,omitempty"`
	ResetToken        *string    `db:"reset_token" json:"-"`
	ResetTokenExpires *time.Time `db:"reset_token_expires" json:"-"`
	PasswordReset     *time.Time `db:"password_reset_at" json:"password_reset,omitempty"`
	CreatedAt         time.Time  `db:"created_at" json:"created"`
	UpdatedAt         *time.Time `db:"updated_at" json:"updated,omitempty"`
	Version           int64      `db:"version" json:"-"`

	RefreshTokens []*RefreshToken `db:"-" json:"-"`
}

// IsVerified is true once the email was confirmed or a password reset succeeded.
func (a *Account) IsVerified() bool {
	return a.Verified != nil || a.PasswordReset != nil
}

// FindRefreshToken returns the account's token with the given value.
func (a *Account) FindRefreshToken(token string) *RefreshToken {
	if a == nil || token == "" {
		return nil
	}
	for _, rt := range a.RefreshTokens {
		if rt.Token == token {
			return rt
		}
	}
	return nil
}

// OwnsToken reports whether token belongs to the account.
func (a *Account) OwnsToken(token string) bool {
	return a.FindRefreshToken(token) != nil
}

// Summary returns the public view of the account.
func (a *Account) Summary() AccountResponse {
	return AccountResponse{
		ID:         a.ID,
		FullName:   a.FullName,
		Email:      a.Email,
		Role:       a.Role,
		Created:    a.CreatedAt,
		Updated:    a.UpdatedAt,
		IsVerified: a.IsVerified(),
	}
}

// AccountResponse describes an account in API responses.
type AccountResponse struct {
	ID         string     `json:"id"`
	FullName   string     `json:"full_name"`
	Email      string     `json:"email"`
	Role       Role       `json:"role"`
	Created    time.Time  `json:"created"`
	Updated    *time.Time `json:"updated,omitempty"`
	IsVerified bool       `json:"is_verified"`
}

// CreateAccountRequest is the admin payload for creating an account.
type CreateAccountRequest struct {
	FullName        string `json:"full_name" validate:"required"`
	Email           string `json:"email" validate:"required,email"`
	Role            Role   `json:"role" validate:"required,oneof=Admin User"`
	Password        string `json:"password" validate:"required,min=6"`
	ConfirmPassword string `json:"confirm_password" validate:"required,eqfield=Password"`
}

// UpdateAccountRequest updates profile fields; empty values are left unchanged.
type UpdateAccountRequest struct {
	FullName        string `json:"full_name"`
	Email           string `json:"email" validate:"omitempty,email"`
	Role            *Role  `json:"role" validate:"omitempty,oneof=Admin User"`
	Password        string `json:"password" validate:"omitempty,min=6"`
	ConfirmPassword string `json:"confirm_password" validate:"eqfield=Password"`
}

// Pagination contains pagination metadata returned in list responses.
type Pagination struct {
	Page       int `json:"page"`
	PageSize   int `json:"page_size"`
	TotalCount int `json:"total_count"`
}
