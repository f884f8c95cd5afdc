package pgx

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/torii-dev/torii/core"
)

func (a *Adapter) CreateSession(s *core.Session) error {
	q := `INSERT INTO sessions (id, member_id, role, token_hash, user_agent, created_ip, last_accessed_ip, expires_at, created_at, updated_at)
	      VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`
	_, err := a.pool.Exec(context.Background(), q, s.ID, s.MemberID, s.Role, s.TokenHash, s.UserAgent, s.CreatedIP, s.LastAccessedIP, s.ExpiresAt, s.CreatedAt, s.UpdatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return core.ErrSessionTokenExists
		}
		return err
	}
	return nil
}

func (a *Adapter) GetSessionByHash(tokenHash string) (*core.Session, error) {
	q := `SELECT id, member_id, role, token_hash, user_agent, created_ip, last_accessed_ip, expires_at, created_at, updated_at
	      FROM sessions WHERE token_hash = $1`

	s := &core.Session{}
	err := a.pool.QueryRow(context.Background(), q, tokenHash).Scan(&s.ID, &s.MemberID, &s.Role, &s.TokenHash, &s.UserAgent, &s.CreatedIP, &s.LastAccessedIP, &s.ExpiresAt, &s.CreatedAt, &s.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, core.ErrSessionNotFound
		}
		return nil, err
	}
	return s, nil
}

func (a *Adapter) UpdateSession(s *core.Session) error {
	q := `UPDATE sessions SET last_accessed_ip = $1, expires_at = $2, updated_at = $3 WHERE token_hash = $4`
	tag, err := a.pool.Exec(context.Background(), q, s.LastAccessedIP, s.ExpiresAt, s.UpdatedAt, s.TokenHash)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return core.ErrSessionNotFound
	}
	return nil
}

func (a *Adapter) DeleteSessionByHash(tokenHash string) error {
	_, err := a.pool.Exec(context.Background(), `DELETE FROM sessions WHERE token_hash = $1`, tokenHash)
	return err
}

func (a *Adapter) DeleteMemberSessions(memberID string) (int, error) {
	tag, err := a.pool.Exec(context.Background(), `DELETE FROM sessions WHERE member_id = $1`, memberID)
	if err != nil {
		return 0, err
	}
	return int(tag.RowsAffected()), nil
}

func (a *Adapter) DeleteExpiredSessions() (int, error) {
	tag, err := a.pool.Exec(context.Background(), `DELETE FROM sessions WHERE expires_at < now()`)
	if err != nil {
		return 0, err
	}
	return int(tag.RowsAffected()), nil
}
