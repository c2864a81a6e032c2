package session

import (
	"context"
	"fmt"

	"github.com/hitoshi/govqa/internal/model"
)

// DenyReason はセッション検証を拒否した理由。
type DenyReason string

const (
	DenyMissing          DenyReason = "missing"
	DenyExpired          DenyReason = "expired"
	DenyInvalidSignature DenyReason = "invalid_signature"
	DenyMalformed        DenyReason = "malformed"
	DenyRevoked          DenyReason = "revoked"
)

// DenyError はセッションが認可されなかったことを表す。
type DenyError struct {
	Reason DenyReason
	Err    error
}

// Error はerrorインターフェースを実装する。
func (e *DenyError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("session denied (%s): %v", e.Reason, e.Err)
	}
	return fmt.Sprintf("session denied (%s)", e.Reason)
}

// Unwrap は原因となったエラーを返す。
func (e *DenyError) Unwrap() error {
	return e.Err
}

func deny(reason DenyReason, err error) *DenyError {
	return &DenyError{Reason: reason, Err: err}
}

// RevocationChecker は失効済みセッションの照会インターフェース。
// repository.RevocationRepositoryの部分集合として定義する。
type RevocationChecker interface {
	IsRevoked(ctx context.Context, sessionID string) (bool, error)
}

// Gate は受け取ったトークンの署名・有効期限・失効状態を検証する。
// 副作用を持たず、有効期限の延長も行わない。
type Gate struct {
	issuer  *Issuer
	revoked RevocationChecker
}

// NewGate はGateを生成する。revokedがnilの場合は失効チェックを行わない。
func NewGate(issuer *Issuer, revoked RevocationChecker) *Gate {
	return &Gate{issuer: issuer, revoked: revoked}
}

// Verify はトークンを検証し、セッションを返す。
// 拒否の場合は*DenyErrorを、失効ストアの照会に失敗した場合はそれ以外のエラーを返す。
func (g *Gate) Verify(ctx context.Context, proof string) (*model.Session, error) {
	s, err := g.issuer.parse(proof)
	if err != nil {
		return nil, err
	}

	if g.revoked != nil {
		revoked, err := g.revoked.IsRevoked(ctx, s.ID)
		if err != nil {
			return nil, fmt.Errorf("failed to check session revocation: %w", err)
		}
		if revoked {
			return nil, deny(DenyRevoked, nil)
		}
	}

	return s, nil
}

// Authorize はトークンを検証し、クライアント向けに射影したセッションを返す。
// 生のトークンやIdentityは返さない。
func (g *Gate) Authorize(ctx context.Context, proof string) (*model.ClientSession, error) {
	s, err := g.Verify(ctx, proof)
	if err != nil {
		return nil, err
	}
	return Project(s.Claims, s.ExpiresAt), nil
}
