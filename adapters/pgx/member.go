package pgx

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/torii-dev/torii/core"
)

const uniqueViolation = "23505"

func (a *Adapter) CreateMember(m *core.Member) error {
	ctx := context.Background()

	tx, err := a.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	q := `INSERT INTO members (id, email, nickname, image, password_hash, email_verified, role, version, created_at, updated_at)
	      VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`
	_, err = tx.Exec(ctx, q, m.ID, m.Email, m.Nickname, m.Image, m.PasswordHash, m.EmailVerified, m.Role, m.Version, m.CreatedAt, m.UpdatedAt)
	if err != nil {
		return mapMemberInsertError(err)
	}

	for _, conn := range m.Connections {
		if err := insertConnection(ctx, tx, m.ID, conn); err != nil {
			return err
		}
	}

	return tx.Commit(ctx)
}

func (a *Adapter) GetMemberByID(id string) (*core.Member, error) {
	return a.getMember(`WHERE m.id = $1`, id)
}

func (a *Adapter) GetMemberByEmail(email string) (*core.Member, error) {
	return a.getMember(`WHERE m.email = $1`, email)
}

func (a *Adapter) GetMemberByOAuth(provider core.Provider, providerID string) (*core.Member, error) {
	q := `SELECT member_id FROM oauth_connections WHERE provider = $1 AND provider_id = $2`
	var memberID string
	err := a.pool.QueryRow(context.Background(), q, provider, providerID).Scan(&memberID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, core.ErrMemberNotFound
		}
		return nil, err
	}
	return a.GetMemberByID(memberID)
}

func (a *Adapter) ExistsByEmail(email string) (bool, error) {
	var exists bool
	err := a.pool.QueryRow(context.Background(), `SELECT EXISTS (SELECT 1 FROM members WHERE email = $1)`, email).Scan(&exists)
	return exists, err
}

// UpdateMember writes the aggregate guarded by its version: the UPDATE only
// matches when the stored version equals the one the caller loaded. The
// connection list is replaced wholesale inside the same transaction.
func (a *Adapter) UpdateMember(m *core.Member) error {
	ctx := context.Background()

	tx, err := a.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	q := `UPDATE members
	      SET email = $1, nickname = $2, image = $3, password_hash = $4, email_verified = $5, role = $6, version = version + 1, updated_at = now()
	      WHERE id = $7 AND version = $8
	      RETURNING version, updated_at`
	var version int64
	var updatedAt time.Time
	err = tx.QueryRow(ctx, q, m.Email, m.Nickname, m.Image, m.PasswordHash, m.EmailVerified, m.Role, m.ID, m.Version).Scan(&version, &updatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return a.classifyUpdateMiss(ctx, m.ID)
		}
		return err
	}

	if _, err := tx.Exec(ctx, `DELETE FROM oauth_connections WHERE member_id = $1`, m.ID); err != nil {
		return err
	}
	for _, conn := range m.Connections {
		if err := insertConnection(ctx, tx, m.ID, conn); err != nil {
			return err
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return err
	}

	m.Version = version
	m.UpdatedAt = updatedAt
	return nil
}

func (a *Adapter) getMember(where string, arg any) (*core.Member, error) {
	ctx := context.Background()

	q := `SELECT m.id, m.email, m.nickname, m.image, m.password_hash, m.email_verified, m.role, m.version, m.created_at, m.updated_at
	      FROM members m ` + where

	m := &core.Member{}
	err := a.pool.QueryRow(ctx, q, arg).Scan(&m.ID, &m.Email, &m.Nickname, &m.Image, &m.PasswordHash, &m.EmailVerified, &m.Role, &m.Version, &m.CreatedAt, &m.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, core.ErrMemberNotFound
		}
		return nil, err
	}

	rows, err := a.pool.Query(ctx, `SELECT id, provider, provider_id, connected_at FROM oauth_connections WHERE member_id = $1 ORDER BY connected_at`, m.ID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var conn core.OAuthConnection
		if err := rows.Scan(&conn.ID, &conn.Provider, &conn.ProviderID, &conn.ConnectedAt); err != nil {
			return nil, err
		}
		m.Connections = append(m.Connections, conn)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return m, nil
}

// classifyUpdateMiss distinguishes a vanished row from a version conflict.
func (a *Adapter) classifyUpdateMiss(ctx context.Context, id string) error {
	var exists bool
	if err := a.pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM members WHERE id = $1)`, id).Scan(&exists); err != nil {
		return err
	}
	if !exists {
		return core.ErrMemberNotFound
	}
	return core.ErrConcurrentModification
}

func insertConnection(ctx context.Context, tx pgx.Tx, memberID string, conn core.OAuthConnection) error {
	q := `INSERT INTO oauth_connections (id, member_id, provider, provider_id, connected_at) VALUES ($1, $2, $3, $4, $5)`
	if _, err := tx.Exec(ctx, q, conn.ID, memberID, conn.Provider, conn.ProviderID, conn.ConnectedAt); err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return core.ErrOAuthIdentityExists
		}
		return err
	}
	return nil
}

func mapMemberInsertError(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
		return core.ErrMemberExists
	}
	return err
}
