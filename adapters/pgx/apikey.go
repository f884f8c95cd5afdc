package pgx

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/torii-dev/torii/core"
)

func (a *Adapter) CreateAPIKey(k *core.APIKey) error {
	q := `INSERT INTO api_keys (id, member_id, role, name, prefix, key_hash, created_ip, last_used_ip, created_at, last_used_at)
	      VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`
	_, err := a.pool.Exec(context.Background(), q, k.ID, k.MemberID, k.Role, k.Name, k.Prefix, k.KeyHash, k.CreatedIP, k.LastUsedIP, k.CreatedAt, k.LastUsedAt)
	return err
}

func (a *Adapter) GetAPIKeyByHash(keyHash string) (*core.APIKey, error) {
	q := `SELECT id, member_id, role, name, prefix, key_hash, created_ip, last_used_ip, created_at, last_used_at
	      FROM api_keys WHERE key_hash = $1`

	k := &core.APIKey{}
	err := a.pool.QueryRow(context.Background(), q, keyHash).Scan(&k.ID, &k.MemberID, &k.Role, &k.Name, &k.Prefix, &k.KeyHash, &k.CreatedIP, &k.LastUsedIP, &k.CreatedAt, &k.LastUsedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, core.ErrAPIKeyNotFound
		}
		return nil, err
	}
	return k, nil
}

func (a *Adapter) ListAPIKeysByMember(memberID string) ([]*core.APIKey, error) {
	q := `SELECT id, member_id, role, name, prefix, key_hash, created_ip, last_used_ip, created_at, last_used_at
	      FROM api_keys WHERE member_id = $1 ORDER BY created_at`

	rows, err := a.pool.Query(context.Background(), q, memberID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var keys []*core.APIKey
	for rows.Next() {
		k := &core.APIKey{}
		if err := rows.Scan(&k.ID, &k.MemberID, &k.Role, &k.Name, &k.Prefix, &k.KeyHash, &k.CreatedIP, &k.LastUsedIP, &k.CreatedAt, &k.LastUsedAt); err != nil {
			return nil, err
		}
		keys = append(keys, k)
	}
	return keys, rows.Err()
}

func (a *Adapter) DeleteAPIKey(memberID, keyID string) (bool, error) {
	tag, err := a.pool.Exec(context.Background(), `DELETE FROM api_keys WHERE id = $1 AND member_id = $2`, keyID, memberID)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

func (a *Adapter) TouchAPIKey(id, ip string, usedAt time.Time) error {
	q := `UPDATE api_keys SET last_used_ip = $1, last_used_at = $2 WHERE id = $3`
	tag, err := a.pool.Exec(context.Background(), q, ip, usedAt, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return core.ErrAPIKeyNotFound
	}
	return nil
}
