// Package model はドメインモデルを定義する。
package model

import (
	"strings"
	"time"
)

// User はサービス利用ユーザーを表す。
// PasswordHashはbcryptダイジェストであり、検証処理の外へは持ち出さない。
type User struct {
	ID           string
	Name         string
	Email        string
	PasswordHash string `json:"-"`
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Identity は認証済みユーザーを表す。
// 認証に使用した資格情報とは区別され、パスワードハッシュを含まない。
type Identity struct {
	ID        string
	Name      string
	Email     string
	CreatedAt time.Time
}

// IdentityOf はUserから認証済みIdentityを生成する。
func IdentityOf(u *User) *Identity {
	return &Identity{
		ID:        u.ID,
		Name:      u.Name,
		Email:     u.Email,
		CreatedAt: u.CreatedAt,
	}
}

// NormalizeEmail は登録とログインで共通のメールアドレス正規化を行う。
// 前後の空白のみ除去し、大文字小文字は区別したまま保持する。
func NormalizeEmail(email string) string {
	return strings.TrimSpace(email)
}

// Credentials はログイン試行ごとの入力を表す。永続化もログ出力もしない。
type Credentials struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Validate は必須項目の欠落を検出する。
func (c Credentials) Validate() error {
	if NormalizeEmail(c.Email) == "" || c.Password == "" {
		return ErrMissingField
	}
	return nil
}

// SignupRequest はユーザー登録リクエストを表す。
type SignupRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Validate は必須項目の欠落を検出する。
func (r SignupRequest) Validate() error {
	if strings.TrimSpace(r.Name) == "" || NormalizeEmail(r.Email) == "" || r.Password == "" {
		return ErrMissingField
	}
	return nil
}
