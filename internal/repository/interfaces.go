// Package repository はデータ永続化のインターフェースを定義する。
package repository

import (
	"context"
	"time"

	"github.com/hitoshi/govqa/internal/model"
)

// UserRepository はユーザーデータの永続化インターフェース。
// メールアドレスの一意性はストア側の一意制約で保証する。
type UserRepository interface {
	// FindByEmail は指定メールアドレスのユーザーを取得する。見つからない場合はnilを返す。
	// 大文字小文字は区別する。
	FindByEmail(ctx context.Context, email string) (*model.User, error)

	// FindByID は指定IDのユーザーを取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.User, error)

	// Create はユーザーを作成する。
	// メールアドレスが登録済みの場合はmodel.ErrEmailConflictを返す。
	Create(ctx context.Context, user *model.User) error
}

// RevocationRepository は失効済みセッションの永続化インターフェース。
type RevocationRepository interface {
	// Revoke はセッションを失効済みとして記録する。既に記録済みの場合も成功とする。
	Revoke(ctx context.Context, revoked *model.RevokedSession) error

	// IsRevoked は指定セッションIDが失効済みかどうかを返す。
	IsRevoked(ctx context.Context, sessionID string) (bool, error)

	// DeleteExpired はbefore時点で有効期限切れとなった失効記録を削除し、削除件数を返す。
	DeleteExpired(ctx context.Context, before time.Time) (int64, error)
}
