// Package password はパスワードの一方向ハッシュ化と照合を提供する。
package password

import (
	"errors"
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

// DefaultCost はbcryptのデフォルトwork factor。
const DefaultCost = 10

// maxPasswordBytes はbcryptが扱える入力長の上限。
const maxPasswordBytes = 72

// ErrPasswordTooLong は入力がbcryptの上限長を超えていることを表す。
var ErrPasswordTooLong = errors.New("password exceeds 72 bytes")

// Hasher はパスワードハッシュのインターフェース。
type Hasher interface {
	// Hash は平文からソルト付きダイジェストを生成する。呼び出しごとに異なる値を返す。
	Hash(plaintext string) (string, error)
	// Verify は平文がダイジェストと一致するかを返す。
	// 不一致・不正なダイジェストはいずれもfalseで、エラーは返さない。
	Verify(plaintext, digest string) bool
}

// BcryptHasher はbcryptによるHasherの実装。
type BcryptHasher struct {
	cost int
}

// NewBcryptHasher はBcryptHasherを生成する。
// costがbcryptの許容範囲外の場合は範囲内に丸める。
func NewBcryptHasher(cost int) *BcryptHasher {
	if cost < bcrypt.MinCost {
		cost = bcrypt.MinCost
	}
	if cost > bcrypt.MaxCost {
		cost = bcrypt.MaxCost
	}
	return &BcryptHasher{cost: cost}
}

// Cost は設定されたwork factorを返す。
func (h *BcryptHasher) Cost() int {
	return h.cost
}

// Hash は平文からbcryptダイジェストを生成する。
func (h *BcryptHasher) Hash(plaintext string) (string, error) {
	if len(plaintext) > maxPasswordBytes {
		return "", ErrPasswordTooLong
	}
	digest, err := bcrypt.GenerateFromPassword([]byte(plaintext), h.cost)
	if err != nil {
		return "", fmt.Errorf("failed to hash password: %w", err)
	}
	return string(digest), nil
}

// Verify は平文とダイジェストを定数時間で照合する。
func (h *BcryptHasher) Verify(plaintext, digest string) bool {
	if plaintext == "" || digest == "" {
		return false
	}
	return bcrypt.CompareHashAndPassword([]byte(digest), []byte(plaintext)) == nil
}

// compile-time interface check
var _ Hasher = (*BcryptHasher)(nil)
