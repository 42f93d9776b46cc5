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
	"github.com/noah-isme/craft-api/internal/repository"
	appErrors "github.com/noah-isme/craft-api/pkg/errors"
)

// AccountService handles account management workflows.
type AccountService struct {
	accounts  repository.AccountStore
	hasher    PasswordHasher
	logs      ActivityLogger
	validator *validator.Validate
	logger    *zap.Logger
	now       func() time.Time
}

// NewAccountService creates an instance of AccountService.
func NewAccountService(accounts repository.AccountStore, hasher PasswordHasher, logs ActivityLogger, validate *validator.Validate, logger *zap.Logger) *AccountService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	if hasher == nil {
		hasher = NewBcryptHasher(0)
	}
	if logs == nil {
		logs = nopActivityLogger{}
	}
	return &AccountService{accounts: accounts, hasher: hasher, logs: logs, validator: validate, logger: logger, now: func() time.Time { return time.Now().UTC() }}
}

// List returns paginated accounts and pagination metadata.
func (s *AccountService) List(ctx context.Context, actor *models.Account, page, pageSize int) ([]models.AccountResponse, *models.Pagination, error) {
	accounts, total, err := s.accounts.List(ctx, page, pageSize)
	if err != nil {
		return nil, nil, s.fail(ctx, internalError(err, "failed to list accounts"), actor)
	}

	if page < 1 {
		page = 1
	}
	if pageSize <= 0 || pageSize > 100 {
		pageSize = 20
	}

	items := make([]models.AccountResponse, 0, len(accounts))
	for i := range accounts {
		items = append(items, accounts[i].Summary())
	}
	return items, &models.Pagination{Page: page, PageSize: pageSize, TotalCount: total}, nil
}

// Get returns an account by ID.
func (s *AccountService) Get(ctx context.Context, actor *models.Account, id string) (*models.AccountResponse, error) {
	account, err := s.load(ctx, s.accounts, id)
	if err != nil {
		return nil, s.fail(ctx, err, actor)
	}
	summary := account.Summary()
	return &summary, nil
}

// Create adds a verified account on behalf of an administrator.
func (s *AccountService) Create(ctx context.Context, actor *models.Account, req models.CreateAccountRequest) (*models.AccountResponse, error) {
	req.Email = strings.TrimSpace(req.Email)
	if err := s.validator.Struct(req); err != nil {
		return nil, s.fail(ctx, validationError(err, "invalid create account payload"), actor)
	}

	exists, err := s.accounts.ExistsByEmail(ctx, req.Email, "")
	if err != nil {
		return nil, s.fail(ctx, internalError(err, "failed to check email uniqueness"), actor)
	}
	if exists {
		return nil, s.fail(ctx, emailTaken(req.Email), actor)
	}

	hash, err := s.hasher.Hash(req.Password)
	if err != nil {
		return nil, s.fail(ctx, internalError(err, "failed to hash password"), actor)
	}

	now := s.now()
	account := &models.Account{
		FullName:     strings.TrimSpace(req.FullName),
		Email:        req.Email,
		PasswordHash: hash,
		AcceptTerms:  true,
		Role:         req.Role,
		Verified:     &now,
		CreatedAt:    now,
	}
	if err := s.accounts.Insert(ctx, account); err != nil {
		return nil, s.fail(ctx, persistError(err), actor)
	}

	s.logs.Activity(ctx, fmt.Sprintf("Account %s created", account.ID), models.IdentifierAccountID, actorID(actor))
	summary := account.Summary()
	return &summary, nil
}

// Update changes profile fields, the password when given, and the role when the actor is an administrator.
func (s *AccountService) Update(ctx context.Context, actor *models.Account, id string, req models.UpdateAccountRequest) (*models.AccountResponse, error) {
	req.Email = strings.TrimSpace(req.Email)
	if err := s.validator.Struct(req); err != nil {
		return nil, s.fail(ctx, validationError(err, "invalid update account payload"), actor)
	}

	var updated *models.Account
	err := s.accounts.WithinTx(ctx, func(store repository.AccountStore) error {
		account, err := s.load(ctx, store, id)
		if err != nil {
			return err
		}

		if req.Role != nil && *req.Role != account.Role {
			if actor == nil || actor.Role != models.RoleAdmin {
				return appErrors.Clone(appErrors.ErrForbidden, "only administrators can change roles")
			}
			account.Role = *req.Role
		}

		if req.Email != "" && req.Email != account.Email {
			exists, err := store.ExistsByEmail(ctx, req.Email, account.ID)
			if err != nil {
				return internalError(err, "failed to check email uniqueness")
			}
			if exists {
				return emailTaken(req.Email)
			}
			account.Email = req.Email
		}
		if name := strings.TrimSpace(req.FullName); name != "" {
			account.FullName = name
		}
		if req.Password != "" {
			hash, err := s.hasher.Hash(req.Password)
			if err != nil {
				return internalError(err, "failed to hash password")
			}
			account.PasswordHash = hash
		}

		now := s.now()
		account.UpdatedAt = &now
		if err := store.Update(ctx, account); err != nil {
			return persistError(err)
		}
		updated = account
		return nil
	})
	if err != nil {
		return nil, s.fail(ctx, err, actor)
	}

	s.logs.Activity(ctx, fmt.Sprintf("Account %s updated", updated.ID), models.IdentifierAccountID, actorID(actor))
	summary := updated.Summary()
	return &summary, nil
}

// Delete removes the account together with its refresh tokens.
func (s *AccountService) Delete(ctx context.Context, actor *models.Account, id string) error {
	if err := s.accounts.Delete(ctx, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return s.fail(ctx, appErrors.Clone(appErrors.ErrNotFound, "Account not found"), actor)
		}
		return s.fail(ctx, internalError(err, "failed to delete account"), actor)
	}
	s.logs.Activity(ctx, fmt.Sprintf("Account %s deleted", id), models.IdentifierAccountID, actorID(actor))
	return nil
}

func (s *AccountService) load(ctx context.Context, store repository.AccountStore, id string) (*models.Account, error) {
	account, err := store.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "Account not found")
		}
		return nil, internalError(err, "failed to load account")
	}
	return account, nil
}

func (s *AccountService) fail(ctx context.Context, err error, actor *models.Account) error {
	appErr := appErrors.FromError(err)
	detail := ""
	if appErr.Err != nil {
		detail = appErr.Err.Error()
	}
	s.logs.Error(ctx, appErr.Message, detail, models.IdentifierAccountID, actorID(actor))
	return appErr
}

func emailTaken(email string) error {
	return appErrors.Clone(appErrors.ErrConflict, fmt.Sprintf("Email '%s' is already registered", email))
}

func actorID(actor *models.Account) string {
	if actor == nil {
		return ""
	}
	return actor.ID
}
