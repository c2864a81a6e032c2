package model

import "time"

// ClaimSet はセッショントークンに埋め込むIdentityの許可リスト部分集合。
// id, name, email 以外のフィールドを追加してはならない。
type ClaimSet struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
}

// Session は署名済みトークンとその内容を表す。
// Bearer/Cookieのどちらで配送されても同一のクレームと有効期限を持つ。
// 発行後に変更されることはなく、更新は常に新しいSessionの発行となる。
type Session struct {
	ID        string // jti
	Token     string
	Claims    ClaimSet
	IssuedAt  time.Time
	ExpiresAt time.Time
}

// ClientSession はクライアントに公開するセッションオブジェクト。
type ClientSession struct {
	User    ClaimSet  `json:"user"`
	Expires time.Time `json:"expires"`
}

// RevokedSession はログアウト等で失効させたセッションの記録。
// ExpiresAtを過ぎた記録はクリーンアップジョブで削除される。
type RevokedSession struct {
	ID        string
	UserID    string
	ExpiresAt time.Time
	RevokedAt time.Time
}
