// Package pgx provides a PostgreSQL storage adapter backed by a pgxpool.
package pgx

import (
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/torii-dev/torii/core"
)

type Adapter struct {
	pool *pgxpool.Pool
}

var _ core.AuthStorage = (*Adapter)(nil)

func New(pool *pgxpool.Pool) *Adapter {
	return &Adapter{
		pool: pool,
	}
}

// VerificationTokens returns the store backing email verification tokens.
func (a *Adapter) VerificationTokens() core.TokenStorage {
	return &tokenStore{pool: a.pool, table: "email_verification_tokens"}
}

// ResetTokens returns the store backing password reset tokens.
func (a *Adapter) ResetTokens() core.TokenStorage {
	return &tokenStore{pool: a.pool, table: "password_reset_tokens"}
}
