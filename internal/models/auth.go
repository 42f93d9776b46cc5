package models

import (
	"github.com/golang-jwt/jwt/v5"
)

// AuthenticateRequest holds credentials for authenticating an account.
type AuthenticateRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// AuthenticateResponse returns the account summary with the issued tokens.
type AuthenticateResponse struct {
	AccountResponse
	JWTToken     string `json:"jwt_token"`
	RefreshToken string `json:"refresh_token,omitempty"`
	ExpiresIn    int64  `json:"expires_in"`
}

// RevokeTokenRequest optionally names the refresh token to revoke.
type RevokeTokenRequest struct {
	Token string `json:"token"`
}

// RefreshTokenRequest optionally carries the refresh token in the body.
type RefreshTokenRequest struct {
	Token string `json:"token"`
}

// RegisterRequest is the self-service signup payload.
type RegisterRequest struct {
	FullName        string `json:"full_name" validate:"required"`
	Email           string `json:"email" validate:"required,email"`
	Password        string `json:"password" validate:"required,min=6"`
	ConfirmPassword string `json:"confirm_password" validate:"required,eqfield=Password"`
	AcceptTerms     bool   `json:"accept_terms" validate:"eq=true"`
}

// VerifyEmailRequest carries the verification token from the email link.
type VerifyEmailRequest struct {
	Token string `json:"token" validate:"required"`
}

// ForgotPasswordRequest starts the reset flow.
type ForgotPasswordRequest struct {
	Email string `json:"email" validate:"required,email"`
}

// ValidateResetTokenRequest checks a reset token without consuming it.
type ValidateResetTokenRequest struct {
	Token string `json:"token" validate:"required"`
}

// ResetPasswordRequest completes the reset flow.
type ResetPasswordRequest struct {
	Token           string `json:"token" validate:"required"`
	Password        string `json:"password" validate:"required,min=6"`
	ConfirmPassword string `json:"confirm_password" validate:"required,eqfield=Password"`
}

// AccessClaims is the JWT payload: only the account id travels in the token.
type AccessClaims struct {
	AccountID string `json:"id"`
	jwt.RegisteredClaims
}
