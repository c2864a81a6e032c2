package session

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/hitoshi/govqa/internal/model"
)

// DefaultTTL はセッションの既定の有効期間。
const DefaultTTL = 24 * time.Hour

// MinSecretLength はHS256署名鍵として受け付ける最小バイト数。
const MinSecretLength = 32

// ErrWeakSecret は署名鍵が未設定または短すぎることを表す。
var ErrWeakSecret = errors.New("session secret must be at least 32 bytes")

// Issuer はHS256で署名したセッショントークンを発行する。
// 署名鍵は起動後に変更されない。
type Issuer struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

// Option はIssuerの任意設定。
type Option func(*Issuer)

// WithClock は現在時刻の取得関数を差し替える。テスト用。
func WithClock(now func() time.Time) Option {
	return func(i *Issuer) {
		i.now = now
	}
}

// NewIssuer はIssuerを生成する。
// 署名鍵が不十分な場合は弱い署名のトークンを発行せずにエラーを返す。
// ttlが0以下の場合はDefaultTTLを使用する。
func NewIssuer(secret string, ttl time.Duration, opts ...Option) (*Issuer, error) {
	if len(secret) < MinSecretLength {
		return nil, ErrWeakSecret
	}
	if ttl <= 0 {
		ttl = DefaultTTL
	}

	i := &Issuer{
		secret: []byte(secret),
		ttl:    ttl,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(i)
	}
	return i, nil
}

// TTL はセッションの有効期間を返す。
func (i *Issuer) TTL() time.Duration {
	return i.ttl
}

// Issue はIdentityのクレームセットと有効期限を含む署名済みトークンを発行する。
// 発行時刻は秒単位に切り捨て、expクレームとExpiresAtを一致させる。
func (i *Issuer) Issue(identity *model.Identity) (*model.Session, error) {
	if identity == nil || identity.ID == "" {
		return nil, fmt.Errorf("identity is required to issue a session")
	}

	issuedAt := i.now().Truncate(time.Second)
	expiresAt := issuedAt.Add(i.ttl)
	claims := Embed(identity)
	jti := uuid.NewString()

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, tokenClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        jti,
			Subject:   claims.ID,
			IssuedAt:  jwt.NewNumericDate(issuedAt),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
		User: claims,
	})

	signed, err := token.SignedString(i.secret)
	if err != nil {
		return nil, fmt.Errorf("failed to sign session token: %w", err)
	}

	return &model.Session{
		ID:        jti,
		Token:     signed,
		Claims:    claims,
		IssuedAt:  issuedAt,
		ExpiresAt: expiresAt,
	}, nil
}

// parse は署名と有効期限を検証し、トークンの内容を返す。
// 失敗時は拒否理由を持つ*DenyErrorを返す。
func (i *Issuer) parse(proof string) (*model.Session, error) {
	if proof == "" {
		return nil, deny(DenyMissing, nil)
	}

	claims := &tokenClaims{}
	_, err := jwt.ParseWithClaims(proof, claims,
		func(t *jwt.Token) (interface{}, error) {
			return i.secret, nil
		},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(i.now),
	)
	if err != nil {
		switch {
		case errors.Is(err, jwt.ErrTokenSignatureInvalid):
			return nil, deny(DenyInvalidSignature, err)
		case errors.Is(err, jwt.ErrTokenExpired):
			return nil, deny(DenyExpired, err)
		default:
			return nil, deny(DenyMalformed, err)
		}
	}

	if claims.ID == "" || claims.User.ID == "" || claims.Subject != claims.User.ID {
		return nil, deny(DenyMalformed, fmt.Errorf("token is missing identity claims"))
	}

	var issuedAt time.Time
	if claims.IssuedAt != nil {
		issuedAt = claims.IssuedAt.Time
	}

	return &model.Session{
		ID:        claims.ID,
		Token:     proof,
		Claims:    claims.User,
		IssuedAt:  issuedAt,
		ExpiresAt: claims.ExpiresAt.Time,
	}, nil
}
