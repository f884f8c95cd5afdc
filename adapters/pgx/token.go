package pgx

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/torii-dev/torii/core"
)

// tokenStore implements core.TokenStorage over one token table. The
// verification and reset workflows each get their own table so invalidation
// in one never touches the other.
type tokenStore struct {
	pool  *pgxpool.Pool
	table string
}

var _ core.TokenStorage = (*tokenStore)(nil)

func (s *tokenStore) CreateToken(t *core.ActionToken) error {
	q := `INSERT INTO ` + s.table + ` (id, member_id, token_hash, expires_at, used_at, created_at)
	      VALUES ($1, $2, $3, $4, $5, $6)`
	_, err := s.pool.Exec(context.Background(), q, t.ID, t.MemberID, t.TokenHash, t.ExpiresAt, t.UsedAt, t.CreatedAt)
	return err
}

func (s *tokenStore) GetTokenByHash(tokenHash string) (*core.ActionToken, error) {
	q := `SELECT id, member_id, token_hash, expires_at, used_at, created_at FROM ` + s.table + ` WHERE token_hash = $1`

	t := &core.ActionToken{}
	err := s.pool.QueryRow(context.Background(), q, tokenHash).Scan(&t.ID, &t.MemberID, &t.TokenHash, &t.ExpiresAt, &t.UsedAt, &t.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return t, nil
}

// MarkTokenUsed stamps the token used. The used_at IS NULL guard makes the
// stamp atomic: a concurrent consumer loses and gets ErrInvalidToken.
func (s *tokenStore) MarkTokenUsed(id string) error {
	q := `UPDATE ` + s.table + ` SET used_at = now() WHERE id = $1 AND used_at IS NULL`
	tag, err := s.pool.Exec(context.Background(), q, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return core.ErrInvalidToken
	}
	return nil
}

func (s *tokenStore) InvalidateMemberTokens(memberID string) error {
	q := `UPDATE ` + s.table + ` SET used_at = now() WHERE member_id = $1 AND used_at IS NULL`
	_, err := s.pool.Exec(context.Background(), q, memberID)
	return err
}

func (s *tokenStore) LatestTokenCreatedAt(memberID string) (*time.Time, error) {
	q := `SELECT created_at FROM ` + s.table + ` WHERE member_id = $1 ORDER BY created_at DESC LIMIT 1`

	var createdAt time.Time
	err := s.pool.QueryRow(context.Background(), q, memberID).Scan(&createdAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &createdAt, nil
}

func (s *tokenStore) DeleteExpiredTokens() (int, error) {
	tag, err := s.pool.Exec(context.Background(), `DELETE FROM `+s.table+` WHERE expires_at < now()`)
	if err != nil {
		return 0, err
	}
	return int(tag.RowsAffected()), nil
}
