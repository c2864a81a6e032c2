package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/hitoshi/govqa/internal/model"
)

// PostgresRevocationRepo はPostgreSQLを使用した失効セッションリポジトリ。
type PostgresRevocationRepo struct {
	db *sql.DB
}

// NewPostgresRevocationRepo はPostgresRevocationRepoを生成する。
func NewPostgresRevocationRepo(db *sql.DB) *PostgresRevocationRepo {
	return &PostgresRevocationRepo{db: db}
}

// Revoke はセッションを失効済みとして記録する。
func (r *PostgresRevocationRepo) Revoke(ctx context.Context, revoked *model.RevokedSession) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO revoked_sessions (id, user_id, expires_at, revoked_at)
		 VALUES ($1, $2, $3, $4)
		 ON CONFLICT (id) DO NOTHING`,
		revoked.ID, revoked.UserID, revoked.ExpiresAt, revoked.RevokedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to revoke session: %w", err)
	}
	return nil
}

// IsRevoked は指定セッションIDが失効済みかどうかを返す。
func (r *PostgresRevocationRepo) IsRevoked(ctx context.Context, sessionID string) (bool, error) {
	var exists bool
	err := r.db.QueryRowContext(ctx,
		`SELECT EXISTS(SELECT 1 FROM revoked_sessions WHERE id = $1)`,
		sessionID,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check session revocation: %w", err)
	}
	return exists, nil
}

// DeleteExpired はbefore時点で有効期限切れとなった失効記録を削除する。
// 期限切れのトークンは署名検証の段階で拒否されるため、記録を残す必要がない。
func (r *PostgresRevocationRepo) DeleteExpired(ctx context.Context, before time.Time) (int64, error) {
	result, err := r.db.ExecContext(ctx,
		`DELETE FROM revoked_sessions WHERE expires_at <= $1`,
		before,
	)
	if err != nil {
		return 0, fmt.Errorf("failed to delete expired revocations: %w", err)
	}
	deleted, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return deleted, nil
}

// compile-time interface check
var _ RevocationRepository = (*PostgresRevocationRepo)(nil)
