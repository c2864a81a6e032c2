// Package auth はメール・パスワード認証、ユーザー登録、セッションの更新と破棄を提供する。
package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/hitoshi/govqa/internal/model"
	"github.com/hitoshi/govqa/internal/password"
	"github.com/hitoshi/govqa/internal/repository"
)

// SessionIssuer はセッションの発行と失効のインターフェース。
// session.Managerが実装する。
type SessionIssuer interface {
	Issue(identity *model.Identity) (*model.Session, error)
	Revoke(ctx context.Context, s *model.Session) error
}

// Service は認証に関するビジネスロジックを提供する。
type Service struct {
	users    repository.UserRepository
	hasher   password.Hasher
	verifier *Verifier
	sessions SessionIssuer
	now      func() time.Time
}

// NewService はServiceを生成する。
func NewService(
	users repository.UserRepository,
	hasher password.Hasher,
	sessions SessionIssuer,
) *Service {
	return &Service{
		users:    users,
		hasher:   hasher,
		verifier: NewVerifier(users, hasher),
		sessions: sessions,
		now:      time.Now,
	}
}

// Signup はユーザーを登録する。
// パスワードはハッシュ化して保存し、平文は保持しない。
// 登録済みメールアドレスの場合はmodel.ErrEmailConflictを返す。
func (s *Service) Signup(ctx context.Context, req model.SignupRequest) (*model.Identity, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	digest, err := s.hasher.Hash(req.Password)
	if err != nil {
		if errors.Is(err, password.ErrPasswordTooLong) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	now := s.now()
	user := &model.User{
		ID:           uuid.New().String(),
		Name:         strings.TrimSpace(req.Name),
		Email:        model.NormalizeEmail(req.Email),
		PasswordHash: digest,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	if err := s.users.Create(ctx, user); err != nil {
		if errors.Is(err, model.ErrEmailConflict) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %v", model.ErrStoreUnavailable, err)
	}

	slog.Info("user signed up",
		slog.String("user_id", user.ID),
	)

	return model.IdentityOf(user), nil
}

// Login は資格情報を照合し、成功時にセッションを発行する。
func (s *Service) Login(ctx context.Context, creds model.Credentials) (*model.Session, error) {
	identity, err := s.verifier.Verify(ctx, creds)
	if err != nil {
		return nil, err
	}

	session, err := s.sessions.Issue(identity)
	if err != nil {
		return nil, fmt.Errorf("failed to issue session: %w", err)
	}

	slog.Info("user logged in",
		slog.String("user_id", identity.ID),
		slog.String("session_id", session.ID),
	)

	return session, nil
}

// Refresh は有効なセッションを新しいセッションに置き換える。
// ユーザーを再取得して最新の名前・メールアドレスを埋め込み、旧セッションは失効させる。
func (s *Service) Refresh(ctx context.Context, current *model.Session) (*model.Session, error) {
	user, err := s.users.FindByID(ctx, current.Claims.ID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", model.ErrStoreUnavailable, err)
	}
	if user == nil {
		return nil, model.ErrUserNotFound
	}

	next, err := s.sessions.Issue(model.IdentityOf(user))
	if err != nil {
		return nil, fmt.Errorf("failed to issue session: %w", err)
	}

	if err := s.sessions.Revoke(ctx, current); err != nil {
		return nil, fmt.Errorf("failed to revoke previous session: %w", err)
	}

	slog.Info("session refreshed",
		slog.String("user_id", user.ID),
		slog.String("previous_session_id", current.ID),
		slog.String("session_id", next.ID),
	)

	return next, nil
}

// Logout はセッションを失効させる。
func (s *Service) Logout(ctx context.Context, current *model.Session) error {
	if current == nil {
		return nil
	}

	if err := s.sessions.Revoke(ctx, current); err != nil {
		return fmt.Errorf("failed to revoke session: %w", err)
	}

	slog.Info("user logged out",
		slog.String("user_id", current.Claims.ID),
		slog.String("session_id", current.ID),
	)
	return nil
}
