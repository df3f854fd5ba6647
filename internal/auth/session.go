package auth

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/hitoshi/mjeti360/internal/model"
)

const (
	// DefaultSessionCookieName はセッションCookieの名前。
	DefaultSessionCookieName = "session"
	// DefaultSessionTTL はセッションの有効期間。
	DefaultSessionTTL = 24 * time.Hour
)

// SessionConfig はセッションCookieの設定。
type SessionConfig struct {
	CookieName string
	TTL        time.Duration
	Secure     bool
	Domain     string
	Now        func() time.Time
}

// SessionStore はセッショントークンとCookieの対応を管理する。
// サーバー側にセッションを保存しない。
type SessionStore struct {
	codec      *TokenCodec
	cookieName string
	ttl        time.Duration
	secure     bool
	domain     string
	now        func() time.Time
}

// NewSessionStore はSessionStoreを生成する。未設定の項目はデフォルト値を使用する。
func NewSessionStore(codec *TokenCodec, cfg SessionConfig) *SessionStore {
	if cfg.CookieName == "" {
		cfg.CookieName = DefaultSessionCookieName
	}
	if cfg.TTL <= 0 {
		cfg.TTL = DefaultSessionTTL
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &SessionStore{
		codec:      codec,
		cookieName: cfg.CookieName,
		ttl:        cfg.TTL,
		secure:     cfg.Secure,
		domain:     cfg.Domain,
		now:        cfg.Now,
	}
}

// CookieName はセッションCookieの名前を返す。
func (s *SessionStore) CookieName() string {
	return s.cookieName
}

// ReadToken はリクエストのセッションCookieの値を返す。
func (s *SessionStore) ReadToken(r *http.Request) (string, bool) {
	cookie, err := r.Cookie(s.cookieName)
	if err != nil || cookie.Value == "" {
		return "", false
	}
	return cookie.Value, true
}

// Verify はトークンを検証する。
func (s *SessionStore) Verify(token string) (SessionPayload, error) {
	return s.codec.Verify(token)
}

// Issue は新しいセッションIDでトークンを発行しCookieに書き込む。
func (s *SessionStore) Issue(w http.ResponseWriter, userID int64) (SessionPayload, error) {
	return s.write(w, SessionPayload{
		UserID:    userID,
		SessionID: uuid.New().String(),
	})
}

// Reissue は同じセッションIDのまま有効期限を現在時刻+TTLに延長したトークンを書き込む。
func (s *SessionStore) Reissue(w http.ResponseWriter, p SessionPayload) (SessionPayload, error) {
	return s.write(w, SessionPayload{
		UserID:    p.UserID,
		SessionID: p.SessionID,
	})
}

func (s *SessionStore) write(w http.ResponseWriter, p SessionPayload) (SessionPayload, error) {
	p.ExpiresAt = s.now().Add(s.ttl).Truncate(time.Second)
	token, err := s.codec.Sign(p)
	if err != nil {
		return SessionPayload{}, fmt.Errorf("failed to issue session: %w", err)
	}
	http.SetCookie(w, &http.Cookie{
		Name:     s.cookieName,
		Value:    token,
		Path:     "/",
		Domain:   s.domain,
		Expires:  p.ExpiresAt,
		HttpOnly: true,
		Secure:   s.secure,
		SameSite: http.SameSiteLaxMode,
	})
	return p, nil
}

// Clear はセッションCookieを削除する。
func (s *SessionStore) Clear(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     s.cookieName,
		Value:    "",
		Path:     "/",
		Domain:   s.domain,
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   s.secure,
		SameSite: http.SameSiteLaxMode,
	})
}

// Bind は現在のリクエスト・レスポンスに結び付いたCookieSessionを返す。
func (s *SessionStore) Bind(w http.ResponseWriter, r *http.Request) *CookieSession {
	return &CookieSession{store: s, w: w, r: r}
}

// CookieSession は1リクエスト分のセッション操作。
// Cookieの変更はこのリクエストのレスポンスにのみ反映される。
type CookieSession struct {
	store *SessionStore
	w     http.ResponseWriter
	r     *http.Request
}

// Token はリクエストのセッショントークンを返す。
func (c *CookieSession) Token() (string, bool) {
	return c.store.ReadToken(c.r)
}

// Set はユーザーの新しいセッションを発行する。
func (c *CookieSession) Set(_ context.Context, user *model.User) error {
	if user == nil {
		return fmt.Errorf("auth: cannot set session for nil user")
	}
	_, err := c.store.Issue(c.w, user.ID)
	return err
}

// Clear はセッションCookieを削除する。
func (c *CookieSession) Clear() {
	c.store.Clear(c.w)
}
