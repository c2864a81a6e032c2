package session

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/hitoshi/govqa/internal/model"
)

// RevocationStore は失効記録の読み書きインターフェース。
type RevocationStore interface {
	RevocationChecker
	Revoke(ctx context.Context, revoked *model.RevokedSession) error
}

// Manager はトークンの発行・検証・失効と、選択されたトランスポートをまとめる。
// Bearer/Cookieのどちらでも同じ発行・検証ロジックを通る。
type Manager struct {
	issuer    *Issuer
	gate      *Gate
	transport Transport
	store     RevocationStore
}

// NewManager はManagerを生成する。
func NewManager(issuer *Issuer, transport Transport, store RevocationStore) *Manager {
	var checker RevocationChecker
	if store != nil {
		checker = store
	}
	return &Manager{
		issuer:    issuer,
		gate:      NewGate(issuer, checker),
		transport: transport,
		store:     store,
	}
}

// Transport は選択されたトランスポートを返す。
func (m *Manager) Transport() Transport {
	return m.transport
}

// Issue は新しいセッションを発行する。
func (m *Manager) Issue(identity *model.Identity) (*model.Session, error) {
	return m.issuer.Issue(identity)
}

// Attach は発行したセッションをレスポンスに載せる。
func (m *Manager) Attach(w http.ResponseWriter, s *model.Session) {
	m.transport.Attach(w, s)
}

// Clear はクライアント側のセッションを破棄させる。
func (m *Manager) Clear(w http.ResponseWriter) {
	m.transport.Clear(w)
}

// Authorize はリクエストに含まれるトークンを検証し、クライアント向けセッションを返す。
func (m *Manager) Authorize(ctx context.Context, r *http.Request) (*model.ClientSession, error) {
	return m.gate.Authorize(ctx, m.transport.Extract(r))
}

// Verify はリクエストに含まれるトークンを検証し、セッションを返す。
// ログアウトや更新などセッションIDが必要な操作で使用する。
func (m *Manager) Verify(ctx context.Context, r *http.Request) (*model.Session, error) {
	return m.gate.Verify(ctx, m.transport.Extract(r))
}

// Revoke はセッションを失効させる。失効後は有効期限内でもDenyRevokedとなる。
func (m *Manager) Revoke(ctx context.Context, s *model.Session) error {
	if m.store == nil {
		return nil
	}
	err := m.store.Revoke(ctx, &model.RevokedSession{
		ID:        s.ID,
		UserID:    s.Claims.ID,
		ExpiresAt: s.ExpiresAt,
		RevokedAt: time.Now(),
	})
	if err != nil {
		return fmt.Errorf("failed to revoke session: %w", err)
	}
	return nil
}
