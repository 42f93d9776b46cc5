package database

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
)

// schema is applied in order; every statement is idempotent.
var schema = []string{
	`CREATE TABLE IF NOT EXISTS accounts (
		id                  TEXT PRIMARY KEY,
		full_name           TEXT NOT NULL,
		email               TEXT NOT NULL,
		password_hash       TEXT NOT NULL,
		accept_terms        BOOLEAN NOT NULL DEFAULT FALSE,
		role                TEXT NOT NULL,
		verification_token  TEXT,
		verified_at         TIMESTAMPTZ,
		reset_token         TEXT,
		reset_token_expires TIMESTAMPTZ,
		password_reset_at   TIMESTAMPTZ,
		created_at          TIMESTAMPTZ NOT NULL,
		updated_at          TIMESTAMPTZ,
		version             BIGINT NOT NULL DEFAULT 1
	)`,
	`CREATE UNIQUE INDEX IF NOT EXISTS accounts_email_key ON accounts (email)`,
	`CREATE UNIQUE INDEX IF NOT EXISTS accounts_verification_token_key ON accounts (verification_token) WHERE verification_token IS NOT NULL`,
	`CREATE UNIQUE INDEX IF NOT EXISTS accounts_reset_token_key ON accounts (reset_token) WHERE reset_token IS NOT NULL`,
	`CREATE TABLE IF NOT EXISTS refresh_tokens (
		token             TEXT PRIMARY KEY,
		account_id        TEXT NOT NULL REFERENCES accounts (id) ON DELETE CASCADE,
		expires_at        TIMESTAMPTZ NOT NULL,
		created_at        TIMESTAMPTZ NOT NULL,
		created_by_ip     TEXT,
		revoked_at        TIMESTAMPTZ,
		revoked_by_ip     TEXT,
		replaced_by_token TEXT,
		reason_revoked    TEXT
	)`,
	`CREATE INDEX IF NOT EXISTS refresh_tokens_account_id_idx ON refresh_tokens (account_id)`,
	`CREATE TABLE IF NOT EXISTS activity_logs (
		id              TEXT PRIMARY KEY,
		log_date        TIMESTAMPTZ NOT NULL,
		identifier_type TEXT,
		identifier      TEXT,
		log_details     TEXT NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS error_logs (
		id              TEXT PRIMARY KEY,
		log_date        TIMESTAMPTZ NOT NULL,
		identifier_type TEXT,
		identifier      TEXT,
		log_details     TEXT NOT NULL,
		stack_trace     TEXT
	)`,
	`CREATE TABLE IF NOT EXISTS contact_messages (
		id         TEXT PRIMARY KEY,
		email      TEXT NOT NULL,
		subject    TEXT NOT NULL,
		message    TEXT NOT NULL,
		is_read    BOOLEAN NOT NULL DEFAULT FALSE,
		created_at TIMESTAMPTZ NOT NULL,
		updated_at TIMESTAMPTZ
	)`,
	`CREATE TABLE IF NOT EXISTS emails (
		id               TEXT PRIMARY KEY,
		account_id       TEXT REFERENCES accounts (id) ON DELETE SET NULL,
		kind             TEXT NOT NULL,
		to_email         TEXT NOT NULL,
		to_name          TEXT,
		subject          TEXT NOT NULL,
		body             TEXT NOT NULL,
		status           TEXT NOT NULL,
		delivery_message TEXT,
		created_at       TIMESTAMPTZ NOT NULL,
		sent_at          TIMESTAMPTZ,
		updated_at       TIMESTAMPTZ
	)`,
	`CREATE INDEX IF NOT EXISTS emails_created_at_idx ON emails (created_at DESC)`,
}

// Migrate creates the tables the API depends on.
func Migrate(ctx context.Context, db *sqlx.DB) error {
	tx, err := db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin migration: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	for i, stmt := range schema {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migration step %d: %w", i+1, err)
		}
	}
	return tx.Commit()
}
