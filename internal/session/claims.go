// Package session は署名付きセッショントークンの発行・検証と、
// クライアントへ公開するセッションオブジェクトへの射影を提供する。
package session

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/hitoshi/govqa/internal/model"
)

// tokenClaims はJWTペイロードの構造。
// 未知のフィールドはデコード時に破棄される。
type tokenClaims struct {
	jwt.RegisteredClaims
	User model.ClaimSet `json:"user"`
}

// Embed はIdentityをトークンに埋め込むクレームセットに射影する。
func Embed(identity *model.Identity) model.ClaimSet {
	return model.ClaimSet{
		ID:    identity.ID,
		Name:  identity.Name,
		Email: identity.Email,
	}
}

// Project は検証済みクレームセットからクライアント向けセッションを再構築する。
// 書き込み時だけでなく読み出し時にも許可リストのフィールドのみを詰め直す。
func Project(claims model.ClaimSet, expiresAt time.Time) *model.ClientSession {
	return &model.ClientSession{
		User: model.ClaimSet{
			ID:    claims.ID,
			Name:  claims.Name,
			Email: claims.Email,
		},
		Expires: expiresAt,
	}
}
