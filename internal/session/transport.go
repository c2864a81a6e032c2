package session

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/hitoshi/govqa/internal/model"
)

// CookieName はCookieトランスポートで使用するCookie名。
const CookieName = "session_token"

// トランスポート名。SESSION_TRANSPORTの値と対応する。
const (
	TransportBearer = "bearer"
	TransportCookie = "cookie"
)

// Transport はセッショントークンの受け渡し方法を表す。
// デプロイメントごとにいずれか1つを選択する。
type Transport interface {
	// Name はトランスポート名を返す。
	Name() string
	// Extract はリクエストからトークンを取り出す。無い場合は空文字列を返す。
	Extract(r *http.Request) string
	// Attach は発行したセッションをレスポンスに載せる。
	Attach(w http.ResponseWriter, s *model.Session)
	// Clear はクライアント側のセッションを破棄させる。
	Clear(w http.ResponseWriter)
}

// BearerTransport はAuthorizationヘッダーでトークンを受け取る。
// トークンはログインレスポンスのボディで返すため、Attach/Clearでは何もしない。
type BearerTransport struct{}

// Name はトランスポート名を返す。
func (BearerTransport) Name() string { return TransportBearer }

// Extract は "Authorization: Bearer <token>" からトークンを取り出す。
func (BearerTransport) Extract(r *http.Request) string {
	h := r.Header.Get("Authorization")
	scheme, token, ok := strings.Cut(h, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return ""
	}
	return strings.TrimSpace(token)
}

// Attach は何もしない。
func (BearerTransport) Attach(http.ResponseWriter, *model.Session) {}

// Clear は何もしない。
func (BearerTransport) Clear(http.ResponseWriter) {}

// CookieConfig はCookieトランスポートの設定。
type CookieConfig struct {
	Domain string
	Secure bool
}

// CookieTransport はHTTP Only Cookieでトークンを受け渡す。
type CookieTransport struct {
	config CookieConfig
}

// NewCookieTransport はCookieTransportを生成する。
func NewCookieTransport(config CookieConfig) *CookieTransport {
	return &CookieTransport{config: config}
}

// Name はトランスポート名を返す。
func (t *CookieTransport) Name() string { return TransportCookie }

// Extract はセッションCookieからトークンを取り出す。
func (t *CookieTransport) Extract(r *http.Request) string {
	cookie, err := r.Cookie(CookieName)
	if err != nil {
		return ""
	}
	return cookie.Value
}

// Attach はセッションCookieを設定する。Max-Ageはトークンの有効期限に合わせる。
func (t *CookieTransport) Attach(w http.ResponseWriter, s *model.Session) {
	maxAge := int(s.ExpiresAt.Sub(s.IssuedAt).Seconds())
	http.SetCookie(w, &http.Cookie{
		Name:     CookieName,
		Value:    s.Token,
		Path:     "/",
		Domain:   t.config.Domain,
		Expires:  s.ExpiresAt,
		MaxAge:   maxAge,
		HttpOnly: true,
		Secure:   t.config.Secure,
		SameSite: http.SameSiteLaxMode,
	})
}

// Clear はセッションCookieを削除する。
func (t *CookieTransport) Clear(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     CookieName,
		Value:    "",
		Path:     "/",
		Domain:   t.config.Domain,
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   t.config.Secure,
		SameSite: http.SameSiteLaxMode,
	})
}

// NewTransport は名前に対応するTransportを生成する。
func NewTransport(name string, cookie CookieConfig) (Transport, error) {
	switch strings.ToLower(name) {
	case "", TransportBearer:
		return BearerTransport{}, nil
	case TransportCookie:
		return NewCookieTransport(cookie), nil
	default:
		return nil, fmt.Errorf("unknown session transport: %q", name)
	}
}
