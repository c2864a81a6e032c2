package auth

import (
	"context"
	"fmt"
	"sync"

	"github.com/hitoshi/govqa/internal/model"
	"github.com/hitoshi/govqa/internal/password"
	"github.com/hitoshi/govqa/internal/repository"
)

// dummyPassword はユーザー不在時の照合に使う平文。
const dummyPassword = "govqa-timing-equalizer"

// Verifier はメールアドレスとパスワードの組を照合し、認証済みIdentityを返す。
// 副作用を持たない。
type Verifier struct {
	users  repository.UserRepository
	hasher password.Hasher

	dummyOnce   sync.Once
	dummyDigest string
}

// NewVerifier はVerifierを生成する。
func NewVerifier(users repository.UserRepository, hasher password.Hasher) *Verifier {
	return &Verifier{users: users, hasher: hasher}
}

// Verify は資格情報を照合する。
// 失敗理由はmodel.ErrMissingField, model.ErrUserNotFound, model.ErrInvalidPassword,
// model.ErrStoreUnavailableのいずれかでラップして返す。
func (v *Verifier) Verify(ctx context.Context, creds model.Credentials) (*model.Identity, error) {
	if err := creds.Validate(); err != nil {
		return nil, err
	}

	user, err := v.users.FindByEmail(ctx, model.NormalizeEmail(creds.Email))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", model.ErrStoreUnavailable, err)
	}
	if user == nil {
		// 存在しないユーザーでも照合1回分の時間をかける
		v.hasher.Verify(creds.Password, v.dummy())
		return nil, model.ErrUserNotFound
	}

	if !v.hasher.Verify(creds.Password, user.PasswordHash) {
		return nil, model.ErrInvalidPassword
	}

	return model.IdentityOf(user), nil
}

func (v *Verifier) dummy() string {
	v.dummyOnce.Do(func() {
		digest, err := v.hasher.Hash(dummyPassword)
		if err == nil {
			v.dummyDigest = digest
		}
	})
	return v.dummyDigest
}
