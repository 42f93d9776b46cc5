package service

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/craft-api/internal/models"
	"github.com/noah-isme/craft-api/internal/repository"
	appErrors "github.com/noah-isme/craft-api/pkg/errors"
)

// Messages returned by flows that succeed without a payload.
const (
	MessageAuthenticated   = "User authenticated successfully"
	MessageTokenRefreshed  = "Token refreshed"
	MessageTokenRevoked    = "Refresh token revoked"
	MessageRegistered      = "Registration successful, please check your email for verification instructions"
	MessageVerified        = "Verification successful, you can now login"
	MessageAlreadyVerified = "Email already verified"
	MessageForgotPassword  = "Please check your email for password reset instructions"
	MessageResetTokenValid = "Token is valid"
	MessagePasswordReset   = "Password reset successful, you can now login"
)

// AuthDependencies groups the collaborators of AuthService.
type AuthDependencies struct {
	Accounts  repository.AccountStore
	Tokens    *TokenService
	Ledger    *TokenLedger
	Hasher    PasswordHasher
	Notifier  Notifier
	Logs      ActivityLogger
	Metrics   *MetricsService
	Validator *validator.Validate
	Logger    *zap.Logger
}

// AuthService provides authentication use cases and refresh token lifecycle handling.
type AuthService struct {
	accounts  repository.AccountStore
	tokens    *TokenService
	ledger    *TokenLedger
	hasher    PasswordHasher
	notifier  Notifier
	logs      ActivityLogger
	metrics   *MetricsService
	validator *validator.Validate
	logger    *zap.Logger
	now       func() time.Time
}

// NewAuthService constructs an AuthService instance.
func NewAuthService(deps AuthDependencies) *AuthService {
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	if deps.Validator == nil {
		deps.Validator = validator.New()
	}
	if deps.Hasher == nil {
		deps.Hasher = NewBcryptHasher(0)
	}
	if deps.Logs == nil {
		deps.Logs = nopActivityLogger{}
	}
	if deps.Ledger == nil {
		deps.Ledger = NewTokenLedger(deps.Tokens.RefreshTokenTTL())
	}
	return &AuthService{
		accounts:  deps.Accounts,
		tokens:    deps.Tokens,
		ledger:    deps.Ledger,
		hasher:    deps.Hasher,
		notifier:  deps.Notifier,
		logs:      deps.Logs,
		metrics:   deps.Metrics,
		validator: deps.Validator,
		logger:    deps.Logger,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// RefreshTokenTTL exposes the refresh token lifetime for cookie handling.
func (s *AuthService) RefreshTokenTTL() time.Duration {
	return s.tokens.RefreshTokenTTL()
}

// Authenticate verifies credentials and issues a new access/refresh token pair.
func (s *AuthService) Authenticate(ctx context.Context, req models.AuthenticateRequest, ip string) (*models.AuthenticateResponse, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, s.fail(ctx, validationError(err, "invalid authenticate payload"), models.IdentifierIPAddress, ip)
	}

	var result *models.AuthenticateResponse
	err := s.accounts.WithinTx(ctx, func(store repository.AccountStore) error {
		account, err := store.FindByEmail(ctx, strings.TrimSpace(req.Email))
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return appErrors.ErrInvalidCredentials
			}
			return internalError(err, "failed to load account")
		}
		if !s.hasher.Verify(req.Password, account.PasswordHash) {
			return appErrors.ErrInvalidCredentials
		}
		if !account.IsVerified() {
			return appErrors.ErrEmailNotConfirmed
		}

		refresh, err := s.tokens.GenerateRefreshToken(ctx, ip)
		if err != nil {
			return err
		}
		s.ledger.Add(account, refresh)
		s.ledger.PruneInactive(account)

		if err := store.Update(ctx, account); err != nil {
			return persistError(err)
		}

		result, err = s.issue(account, refresh)
		return err
	})
	if err != nil {
		s.metrics.RecordAuthEvent(EventLoginFailure)
		return nil, s.fail(ctx, err, models.IdentifierIPAddress, ip)
	}

	s.metrics.RecordAuthEvent(EventLoginSuccess)
	s.logs.Activity(ctx, MessageAuthenticated, models.IdentifierEmail, result.Email)
	return result, nil
}

// RefreshToken rotates a refresh token. Presenting a revoked token revokes
// every token issued from it, persists that, and fails with InvalidToken.
func (s *AuthService) RefreshToken(ctx context.Context, token, ip string) (*models.AuthenticateResponse, error) {
	if token == "" {
		return nil, s.fail(ctx, appErrors.ErrTokenRequired, models.IdentifierIPAddress, ip)
	}
	if ip == "" {
		return nil, s.fail(ctx, appErrors.ErrIPRequired, models.IdentifierIPAddress, ip)
	}

	var (
		result   *models.AuthenticateResponse
		replayed bool
	)
	err := s.accounts.WithinTx(ctx, func(store repository.AccountStore) error {
		account, err := store.FindByRefreshToken(ctx, token)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return appErrors.ErrInvalidToken
			}
			return internalError(err, "failed to load account")
		}
		current := account.FindRefreshToken(token)
		if current == nil {
			return appErrors.ErrInvalidToken
		}

		if current.IsRevoked() {
			revoked := s.ledger.RevokeDescendants(account, current, ip, ReuseReason(token))
			s.logger.Warn("revoked refresh token replayed",
				zap.String("account_id", account.ID),
				zap.String("ip", ip),
				zap.Int("descendants_revoked", revoked))
			if err := store.Update(ctx, account); err != nil {
				return persistError(err)
			}
			replayed = true
			return nil
		}
		if !current.IsActive(s.now()) {
			return appErrors.ErrInvalidToken
		}

		replacement, err := s.tokens.GenerateRefreshToken(ctx, ip)
		if err != nil {
			return err
		}
		s.ledger.Rotate(account, current, replacement, ip)
		s.ledger.PruneInactive(account)

		if err := store.Update(ctx, account); err != nil {
			return persistError(err)
		}

		result, err = s.issue(account, replacement)
		return err
	})
	if err == nil && replayed {
		s.metrics.RecordAuthEvent(EventTokenReuse)
		err = appErrors.ErrInvalidToken
	}
	if err != nil {
		return nil, s.fail(ctx, err, models.IdentifierIPAddress, ip)
	}

	s.metrics.RecordAuthEvent(EventRefresh)
	s.logs.Activity(ctx, MessageTokenRefreshed, models.IdentifierEmail, result.Email)
	return result, nil
}

// RevokeToken revokes an active refresh token without replacement. Ownership
// is checked by the caller.
func (s *AuthService) RevokeToken(ctx context.Context, token, ip string) error {
	if token == "" {
		return s.fail(ctx, appErrors.ErrTokenRequired, models.IdentifierIPAddress, ip)
	}

	var email string
	err := s.accounts.WithinTx(ctx, func(store repository.AccountStore) error {
		account, err := store.FindByRefreshToken(ctx, token)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return appErrors.ErrTokenNotFound
			}
			return internalError(err, "failed to load account")
		}
		current := account.FindRefreshToken(token)
		if current == nil || current.IsRevoked() {
			return appErrors.ErrTokenNotFound
		}
		if !current.IsActive(s.now()) {
			return appErrors.ErrInvalidToken
		}

		s.ledger.Revoke(current, ip, ReasonRevoked, "")
		if err := store.Update(ctx, account); err != nil {
			return persistError(err)
		}
		email = account.Email
		return nil
	})
	if err != nil {
		return s.fail(ctx, err, models.IdentifierIPAddress, ip)
	}

	s.metrics.RecordAuthEvent(EventRevoke)
	s.logs.Activity(ctx, MessageTokenRevoked, models.IdentifierEmail, email)
	return nil
}

// Register creates an unverified account and sends a verification email. An
// already registered email gets the same response and a notice email instead.
func (s *AuthService) Register(ctx context.Context, req models.RegisterRequest, origin string) error {
	req.Email = strings.TrimSpace(req.Email)
	if err := s.validator.Struct(req); err != nil {
		return s.fail(ctx, validationError(err, "invalid registration payload"), models.IdentifierEmail, req.Email)
	}

	var (
		account   *models.Account
		duplicate bool
	)
	err := s.accounts.WithinTx(ctx, func(store repository.AccountStore) error {
		if err := store.LockRegistration(ctx); err != nil {
			return internalError(err, "failed to lock registration")
		}

		exists, err := store.ExistsByEmail(ctx, req.Email, "")
		if err != nil {
			return internalError(err, "failed to check email")
		}
		if exists {
			duplicate = true
			return nil
		}

		total, err := store.CountAll(ctx)
		if err != nil {
			return internalError(err, "failed to count accounts")
		}
		role := models.RoleUser
		if total == 0 {
			role = models.RoleAdmin
		}

		verification, err := s.tokens.GenerateVerificationToken(ctx)
		if err != nil {
			return err
		}
		hash, err := s.hasher.Hash(req.Password)
		if err != nil {
			return internalError(err, "failed to hash password")
		}

		account = &models.Account{
			FullName:          strings.TrimSpace(req.FullName),
			Email:             req.Email,
			PasswordHash:      hash,
			AcceptTerms:       req.AcceptTerms,
			Role:              role,
			VerificationToken: &verification,
			CreatedAt:         s.now(),
		}
		if err := store.Insert(ctx, account); err != nil {
			if errors.Is(err, appErrors.ErrConflict) {
				duplicate = true
				account = nil
				return nil
			}
			return persistError(err)
		}
		return nil
	})
	if err != nil {
		return s.fail(ctx, err, models.IdentifierEmail, req.Email)
	}

	if duplicate {
		if err := s.notify(func() error { return s.notifier.SendAlreadyRegisteredEmail(ctx, req.Email, origin) }); err != nil {
			s.logs.Error(ctx, "Failed to send already registered email", err.Error(), models.IdentifierEmail, req.Email)
		}
		s.logs.Activity(ctx, "Registration attempted for an existing email", models.IdentifierEmail, req.Email)
		return nil
	}

	if err := s.notify(func() error { return s.notifier.SendVerificationEmail(ctx, account, origin) }); err != nil {
		s.logs.Error(ctx, "Failed to send verification email", err.Error(), models.IdentifierEmail, account.Email)
	}
	s.metrics.RecordAuthEvent(EventRegister)
	s.logs.Activity(ctx, "User registered successfully", models.IdentifierEmail, account.Email)
	return nil
}

// VerifyEmail consumes a verification token. It returns false without error
// when the account was already verified.
func (s *AuthService) VerifyEmail(ctx context.Context, req models.VerifyEmailRequest) (bool, error) {
	if err := s.validator.Struct(req); err != nil {
		return false, s.fail(ctx, appErrors.ErrVerificationFailed, "", "")
	}

	var (
		alreadyVerified bool
		email           string
	)
	err := s.accounts.WithinTx(ctx, func(store repository.AccountStore) error {
		account, err := store.FindByVerificationToken(ctx, req.Token)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return appErrors.ErrVerificationFailed
			}
			return internalError(err, "failed to load account")
		}
		if account.IsVerified() {
			alreadyVerified = true
			return nil
		}

		now := s.now()
		account.Verified = &now
		account.VerificationToken = nil
		account.UpdatedAt = &now
		email = account.Email
		if err := store.Update(ctx, account); err != nil {
			return persistError(err)
		}
		return nil
	})
	if err != nil {
		return false, s.fail(ctx, err, "", "")
	}
	if alreadyVerified {
		return false, nil
	}

	s.logs.Activity(ctx, "Email verified", models.IdentifierEmail, email)
	return true, nil
}

// ForgotPassword issues a reset token and emails it. The outcome is the same
// whether or not the email belongs to an account.
func (s *AuthService) ForgotPassword(ctx context.Context, req models.ForgotPasswordRequest, origin string) error {
	req.Email = strings.TrimSpace(req.Email)
	if err := s.validator.Struct(req); err != nil {
		return s.fail(ctx, validationError(err, "invalid forgot password payload"), models.IdentifierEmail, req.Email)
	}

	var account *models.Account
	err := s.accounts.WithinTx(ctx, func(store repository.AccountStore) error {
		found, err := store.FindByEmail(ctx, req.Email)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return nil
			}
			return internalError(err, "failed to load account")
		}

		token, expires, err := s.tokens.GenerateResetToken(ctx)
		if err != nil {
			return err
		}
		now := s.now()
		found.ResetToken = &token
		found.ResetTokenExpires = &expires
		found.UpdatedAt = &now
		if err := store.Update(ctx, found); err != nil {
			return persistError(err)
		}
		account = found
		return nil
	})
	if err != nil {
		return s.fail(ctx, err, models.IdentifierEmail, req.Email)
	}

	if account == nil {
		s.logs.Activity(ctx, "Password reset requested for unknown email", models.IdentifierEmail, req.Email)
		return nil
	}

	if err := s.notify(func() error { return s.notifier.SendPasswordResetEmail(ctx, account, origin) }); err != nil {
		s.logs.Error(ctx, "Failed to send password reset email", err.Error(), models.IdentifierEmail, account.Email)
	}
	s.logs.Activity(ctx, "Password reset requested", models.IdentifierEmail, account.Email)
	return nil
}

// ValidateResetToken checks that a reset token exists and has not expired.
func (s *AuthService) ValidateResetToken(ctx context.Context, req models.ValidateResetTokenRequest) error {
	if err := s.validator.Struct(req); err != nil {
		return s.fail(ctx, appErrors.ErrInvalidToken, "", "")
	}
	if _, err := s.accounts.FindByValidResetToken(ctx, req.Token, s.now()); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return s.fail(ctx, appErrors.ErrInvalidToken, "", "")
		}
		return s.fail(ctx, internalError(err, "failed to load account"), "", "")
	}
	return nil
}

// ResetPassword sets a new password using a valid reset token and marks the account verified.
func (s *AuthService) ResetPassword(ctx context.Context, req models.ResetPasswordRequest) error {
	if err := s.validator.Struct(req); err != nil {
		return s.fail(ctx, validationError(err, "invalid reset password payload"), "", "")
	}

	var email string
	err := s.accounts.WithinTx(ctx, func(store repository.AccountStore) error {
		account, err := store.FindByValidResetToken(ctx, req.Token, s.now())
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return appErrors.ErrInvalidToken
			}
			return internalError(err, "failed to load account")
		}

		hash, err := s.hasher.Hash(req.Password)
		if err != nil {
			return internalError(err, "failed to hash password")
		}
		now := s.now()
		account.PasswordHash = hash
		account.PasswordReset = &now
		account.ResetToken = nil
		account.ResetTokenExpires = nil
		account.UpdatedAt = &now
		if err := store.Update(ctx, account); err != nil {
			return persistError(err)
		}
		email = account.Email
		return nil
	})
	if err != nil {
		return s.fail(ctx, err, "", "")
	}

	s.metrics.RecordAuthEvent(EventPasswordReset)
	s.logs.Activity(ctx, "Password reset", models.IdentifierEmail, email)
	return nil
}

// AccountFromAccessToken resolves the account behind a bearer token. A nil
// account is returned for invalid tokens and unknown accounts.
func (s *AuthService) AccountFromAccessToken(ctx context.Context, token string) (*models.Account, error) {
	accountID, ok := s.tokens.ValidateAccessToken(token)
	if !ok {
		return nil, nil
	}
	account, err := s.accounts.FindByID(ctx, accountID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, internalError(err, "failed to load account")
	}
	return account, nil
}

func (s *AuthService) issue(account *models.Account, refresh *models.RefreshToken) (*models.AuthenticateResponse, error) {
	jwtToken, _, err := s.tokens.MintAccessToken(account.ID)
	if err != nil {
		return nil, internalError(err, "failed to create access token")
	}
	return &models.AuthenticateResponse{
		AccountResponse: account.Summary(),
		JWTToken:        jwtToken,
		RefreshToken:    refresh.Token,
		ExpiresIn:       int64(s.tokens.AccessTokenTTL().Seconds()),
	}, nil
}

func (s *AuthService) notify(send func() error) error {
	if s.notifier == nil {
		return nil
	}
	return send()
}

// fail records err in the error log and returns it unchanged.
func (s *AuthService) fail(ctx context.Context, err error, identifierType, identifier string) error {
	appErr := appErrors.FromError(err)
	detail := ""
	if appErr.Err != nil {
		detail = appErr.Err.Error()
	}
	s.logs.Error(ctx, appErr.Message, detail, identifierType, identifier)
	return appErr
}

func validationError(err error, message string) error {
	return appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, message)
}

func internalError(err error, message string) error {
	return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, message)
}

func persistError(err error) error {
	var appErr *appErrors.Error
	if errors.As(err, &appErr) {
		return appErr
	}
	return internalError(err, "failed to save account")
}

type nopActivityLogger struct{}

func (nopActivityLogger) Activity(context.Context, string, string, string) {}
func (nopActivityLogger) Error(context.Context, string, string, string, string) {}
