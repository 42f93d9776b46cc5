package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/noah-isme/craft-api/internal/models"
	appErrors "github.com/noah-isme/craft-api/pkg/errors"
)

// registrationLockKey serialises the first-account role decision across instances.
const registrationLockKey int64 = 0x63726166

const accountColumns = `id, full_name, email, password_hash, accept_terms, role, verification_token, verified_at, reset_token, reset_token_expires, password_reset_at, created_at, updated_at, version`

const refreshTokenColumns = `token, account_id, expires_at, created_at, created_by_ip, revoked_at, revoked_by_ip, replaced_by_token, reason_revoked`

// AccountStore is the persistence contract for accounts and their refresh tokens.
type AccountStore interface {
	FindByID(ctx context.Context, id string) (*models.Account, error)
	FindByEmail(ctx context.Context, email string) (*models.Account, error)
	FindByRefreshToken(ctx context.Context, token string) (*models.Account, error)
	FindByVerificationToken(ctx context.Context, token string) (*models.Account, error)
	FindByValidResetToken(ctx context.Context, token string, now time.Time) (*models.Account, error)
	ExistsByEmail(ctx context.Context, email, excludeID string) (bool, error)
	CountAll(ctx context.Context) (int, error)
	List(ctx context.Context, page, pageSize int) ([]models.Account, int, error)
	Insert(ctx context.Context, account *models.Account) error
	Update(ctx context.Context, account *models.Account) error
	Delete(ctx context.Context, id string) error
	RefreshTokenExists(ctx context.Context, token string) (bool, error)
	VerificationTokenExists(ctx context.Context, token string) (bool, error)
	ResetTokenExists(ctx context.Context, token string) (bool, error)
	LockRegistration(ctx context.Context) error
	WithinTx(ctx context.Context, fn func(store AccountStore) error) error
}

type dbtx interface {
	sqlx.ExtContext
	GetContext(ctx context.Context, dest interface{}, query string, args ...interface{}) error
	SelectContext(ctx context.Context, dest interface{}, query string, args ...interface{}) error
}

// AccountRepository provides database access for accounts and their refresh-token ledger.
type AccountRepository struct {
	db   *sqlx.DB
	exec dbtx
	// inTx is set on repositories bound to a transaction; reads then lock rows.
	inTx bool
}

// NewAccountRepository creates a new instance of AccountRepository.
func NewAccountRepository(db *sqlx.DB) *AccountRepository {
	return &AccountRepository{db: db, exec: db}
}

// WithinTx runs fn against a repository bound to a single transaction. Account
// reads inside fn take a row lock that is held until commit.
func (r *AccountRepository) WithinTx(ctx context.Context, fn func(store AccountStore) error) (err error) {
	if r.inTx {
		return fn(r)
	}

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin account transaction: %w", err)
	}
	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if err = fn(&AccountRepository{db: r.db, exec: tx, inTx: true}); err != nil {
		return err
	}
	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit account transaction: %w", err)
	}
	return nil
}

// LockRegistration takes a transaction-scoped advisory lock. Outside a
// transaction it is a no-op.
func (r *AccountRepository) LockRegistration(ctx context.Context) error {
	if !r.inTx {
		return nil
	}
	if _, err := r.exec.ExecContext(ctx, `SELECT pg_advisory_xact_lock($1)`, registrationLockKey); err != nil {
		return fmt.Errorf("lock registration: %w", err)
	}
	return nil
}

func (r *AccountRepository) lockClause() string {
	if r.inTx {
		return " FOR UPDATE"
	}
	return ""
}

// FindByID returns an account with its refresh tokens.
func (r *AccountRepository) FindByID(ctx context.Context, id string) (*models.Account, error) {
	return r.findOne(ctx, "find account by id", `WHERE id = $1`, id)
}

// FindByEmail returns an account by exact email match.
func (r *AccountRepository) FindByEmail(ctx context.Context, email string) (*models.Account, error) {
	return r.findOne(ctx, "find account by email", `WHERE email = $1`, email)
}

// FindByVerificationToken returns the account holding the verification token.
func (r *AccountRepository) FindByVerificationToken(ctx context.Context, token string) (*models.Account, error) {
	return r.findOne(ctx, "find account by verification token", `WHERE verification_token = $1`, token)
}

// FindByValidResetToken returns the account whose reset token matches and has not expired.
func (r *AccountRepository) FindByValidResetToken(ctx context.Context, token string, now time.Time) (*models.Account, error) {
	return r.findOne(ctx, "find account by reset token", `WHERE reset_token = $1 AND reset_token_expires > $2`, token, now)
}

// FindByRefreshToken resolves the owner of a refresh token through the token index.
func (r *AccountRepository) FindByRefreshToken(ctx context.Context, token string) (*models.Account, error) {
	var accountID string
	if err := r.exec.GetContext(ctx, &accountID, `SELECT account_id FROM refresh_tokens WHERE token = $1`, token); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find refresh token owner: %w", err)
	}
	return r.FindByID(ctx, accountID)
}

func (r *AccountRepository) findOne(ctx context.Context, op, where string, args ...interface{}) (*models.Account, error) {
	query := `SELECT ` + accountColumns + ` FROM accounts ` + where + ` LIMIT 1` + r.lockClause()
	var account models.Account
	if err := r.exec.GetContext(ctx, &account, query, args...); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if err := r.loadRefreshTokens(ctx, &account); err != nil {
		return nil, err
	}
	return &account, nil
}

func (r *AccountRepository) loadRefreshTokens(ctx context.Context, account *models.Account) error {
	query := `SELECT ` + refreshTokenColumns + ` FROM refresh_tokens WHERE account_id = $1 ORDER BY created_at ASC`
	var tokens []*models.RefreshToken
	if err := r.exec.SelectContext(ctx, &tokens, query, account.ID); err != nil {
		return fmt.Errorf("load refresh tokens: %w", err)
	}
	account.RefreshTokens = tokens
	return nil
}

// ExistsByEmail reports whether another account already uses the email.
func (r *AccountRepository) ExistsByEmail(ctx context.Context, email, excludeID string) (bool, error) {
	var exists bool
	const query = `SELECT EXISTS (SELECT 1 FROM accounts WHERE email = $1 AND id <> $2)`
	if err := r.exec.GetContext(ctx, &exists, query, email, excludeID); err != nil {
		return false, fmt.Errorf("check account email: %w", err)
	}
	return exists, nil
}

// CountAll returns the number of accounts.
func (r *AccountRepository) CountAll(ctx context.Context) (int, error) {
	var total int
	if err := r.exec.GetContext(ctx, &total, `SELECT COUNT(*) FROM accounts`); err != nil {
		return 0, fmt.Errorf("count accounts: %w", err)
	}
	return total, nil
}

// List returns a page of accounts ordered by creation time with the total count.
func (r *AccountRepository) List(ctx context.Context, page, pageSize int) ([]models.Account, int, error) {
	if page < 1 {
		page = 1
	}
	if pageSize <= 0 || pageSize > 100 {
		pageSize = 20
	}
	offset := (page - 1) * pageSize

	listQuery := fmt.Sprintf("SELECT %s FROM accounts ORDER BY created_at ASC LIMIT %d OFFSET %d", accountColumns, pageSize, offset)
	var accounts []models.Account
	if err := r.exec.SelectContext(ctx, &accounts, listQuery); err != nil {
		return nil, 0, fmt.Errorf("list accounts: %w", err)
	}

	total, err := r.CountAll(ctx)
	if err != nil {
		return nil, 0, err
	}
	return accounts, total, nil
}

// Insert stores a new account together with any refresh tokens it already holds.
func (r *AccountRepository) Insert(ctx context.Context, account *models.Account) error {
	if account.ID == "" {
		account.ID = uuid.NewString()
	}
	if account.CreatedAt.IsZero() {
		account.CreatedAt = time.Now().UTC()
	}
	account.Version = 1

	const query = `INSERT INTO accounts (` + accountColumns + `) VALUES (:id, :full_name, :email, :password_hash, :accept_terms, :role, :verification_token, :verified_at, :reset_token, :reset_token_expires, :password_reset_at, :created_at, :updated_at, :version)`
	if _, err := sqlx.NamedExecContext(ctx, r.exec, query, account); err != nil {
		if isUniqueViolation(err, accountsEmailKey) {
			return appErrors.Wrap(err, appErrors.ErrConflict.Code, appErrors.ErrConflict.Status, fmt.Sprintf("Email '%s' is already registered", account.Email))
		}
		return fmt.Errorf("insert account: %w", err)
	}
	return r.syncRefreshTokens(ctx, account)
}

// Update writes the account back if nobody changed it since it was read, then
// synchronises its refresh tokens: present tokens are upserted and pruned ones removed.
func (r *AccountRepository) Update(ctx context.Context, account *models.Account) error {
	const query = `UPDATE accounts SET full_name = :full_name, email = :email, password_hash = :password_hash, accept_terms = :accept_terms, role = :role, verification_token = :verification_token, verified_at = :verified_at, reset_token = :reset_token, reset_token_expires = :reset_token_expires, password_reset_at = :password_reset_at, updated_at = :updated_at, version = version + 1 WHERE id = :id AND version = :version`
	res, err := sqlx.NamedExecContext(ctx, r.exec, query, account)
	if err != nil {
		if isUniqueViolation(err, accountsEmailKey) {
			return appErrors.Wrap(err, appErrors.ErrConflict.Code, appErrors.ErrConflict.Status, fmt.Sprintf("Email '%s' is already registered", account.Email))
		}
		return fmt.Errorf("update account: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update account rows: %w", err)
	}
	if affected == 0 {
		return appErrors.ErrConcurrentUpdate
	}
	account.Version++
	return r.syncRefreshTokens(ctx, account)
}

func (r *AccountRepository) syncRefreshTokens(ctx context.Context, account *models.Account) error {
	const upsert = `INSERT INTO refresh_tokens (` + refreshTokenColumns + `) VALUES (:token, :account_id, :expires_at, :created_at, :created_by_ip, :revoked_at, :revoked_by_ip, :replaced_by_token, :reason_revoked)
ON CONFLICT (token) DO UPDATE SET revoked_at = EXCLUDED.revoked_at, revoked_by_ip = EXCLUDED.revoked_by_ip, replaced_by_token = EXCLUDED.replaced_by_token, reason_revoked = EXCLUDED.reason_revoked
WHERE refresh_tokens.account_id = EXCLUDED.account_id`

	kept := make([]string, 0, len(account.RefreshTokens))
	for _, token := range account.RefreshTokens {
		token.AccountID = account.ID
		res, err := sqlx.NamedExecContext(ctx, r.exec, upsert, token)
		if err != nil {
			return fmt.Errorf("save refresh token: %w", err)
		}
		if affected, err := res.RowsAffected(); err == nil && affected == 0 {
			return appErrors.Clone(appErrors.ErrTokenGeneration, "refresh token already belongs to another account")
		}
		kept = append(kept, token.Token)
	}

	const prune = `DELETE FROM refresh_tokens WHERE account_id = $1 AND NOT (token = ANY($2))`
	if _, err := r.exec.ExecContext(ctx, prune, account.ID, pq.Array(kept)); err != nil {
		return fmt.Errorf("prune refresh tokens: %w", err)
	}
	return nil
}

// Delete removes the account; its refresh tokens cascade.
func (r *AccountRepository) Delete(ctx context.Context, id string) error {
	res, err := r.exec.ExecContext(ctx, `DELETE FROM accounts WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete account: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete account rows: %w", err)
	}
	if affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// RefreshTokenExists reports whether the refresh token value is taken by any account.
func (r *AccountRepository) RefreshTokenExists(ctx context.Context, token string) (bool, error) {
	return r.exists(ctx, "check refresh token", `SELECT EXISTS (SELECT 1 FROM refresh_tokens WHERE token = $1)`, token)
}

// VerificationTokenExists reports whether the verification token is taken.
func (r *AccountRepository) VerificationTokenExists(ctx context.Context, token string) (bool, error) {
	return r.exists(ctx, "check verification token", `SELECT EXISTS (SELECT 1 FROM accounts WHERE verification_token = $1)`, token)
}

// ResetTokenExists reports whether the reset token is taken.
func (r *AccountRepository) ResetTokenExists(ctx context.Context, token string) (bool, error) {
	return r.exists(ctx, "check reset token", `SELECT EXISTS (SELECT 1 FROM accounts WHERE reset_token = $1)`, token)
}

func (r *AccountRepository) exists(ctx context.Context, op, query string, arg interface{}) (bool, error) {
	var exists bool
	if err := r.exec.GetContext(ctx, &exists, query, arg); err != nil {
		return false, fmt.Errorf("%s: %w", op, err)
	}
	return exists, nil
}

// accountsEmailKey is the unique index guarding account emails.
const accountsEmailKey = "accounts_email_key"

// isUniqueViolation reports whether err is a unique violation of constraint.
func isUniqueViolation(err error, constraint string) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == "23505" && pqErr.Constraint == constraint
}
