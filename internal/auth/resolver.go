package auth

import (
	"context"
	"fmt"
	"time"

	"github.com/hitoshi/mjeti360/internal/model"
)

// UserFinder は論理削除されていないユーザーをIDで取得する。
// repository.UserRepositoryの部分集合として定義する。
type UserFinder interface {
	FindByID(ctx context.Context, id int64) (*model.User, error)
}

// CacheMetrics はキャッシュのヒット・ミスを記録する。
type CacheMetrics interface {
	RecordIdentityCacheHit()
	RecordIdentityCacheMiss()
}

// ResolverConfig はResolverの設定。
type ResolverConfig struct {
	CacheTTL time.Duration
	Now      func() time.Time
	Metrics  CacheMetrics
}

// Resolver はセッショントークンから認証ユーザーを解決する。
type Resolver struct {
	codec    *TokenCodec
	users    UserFinder
	cache    IdentityCache
	cacheTTL time.Duration
	now      func() time.Time
	metrics  CacheMetrics
}

// NewResolver はResolverを生成する。
func NewResolver(codec *TokenCodec, users UserFinder, cache IdentityCache, cfg ResolverConfig) *Resolver {
	if cfg.CacheTTL <= 0 {
		cfg.CacheTTL = DefaultIdentityCacheTTL
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &Resolver{
		codec:    codec,
		users:    users,
		cache:    cache,
		cacheTTL: cfg.CacheTTL,
		now:      cfg.Now,
		metrics:  cfg.Metrics,
	}
}

// CurrentPrincipal はトークンに対応する有効なユーザーを返す。
// 返すユーザーのPasswordHashは常に空。パスワード照合が必要な場合は呼び出し側で再取得する。
// トークンがない・検証に失敗した・ユーザーが存在しない場合はnil, nilを返す。
// errorを返すのはデータストア障害のときのみ。
func (r *Resolver) CurrentPrincipal(ctx context.Context, token string) (*model.User, error) {
	// 1. トークンなしは匿名
	if token == "" {
		return nil, nil
	}

	// 2. 同じトークン・同じセッションIDで作られたエントリのみキャッシュから返す
	if entry, ok := r.cache.Get(ctx, token); ok {
		if sid, ok := r.codec.PeekSessionID(token); ok && sid == entry.SessionID {
			r.recordHit()
			user := entry.User
			return &user, nil
		}
		r.cache.Delete(ctx, token)
	}
	r.recordMiss()

	// 3. 署名検証。失敗は匿名扱い
	payload, err := r.codec.Verify(token)
	if err != nil {
		return nil, nil
	}

	// 4. 埋め込まれた有効期限の再確認
	if !r.now().Before(payload.ExpiresAt) {
		return nil, nil
	}

	// 5. 論理削除済みを除いてユーザーを取得
	user, err := r.users.FindByID(ctx, payload.UserID)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve principal: %w", err)
	}
	if user == nil || user.IsDeleted() {
		return nil, nil
	}
	principal := *user
	principal.PasswordHash = ""

	// 6. トークン文字列をキーに固定TTLでキャッシュ
	r.cache.Set(ctx, token, CacheEntry{
		User:      principal,
		SessionID: payload.SessionID,
		ExpiresAt: r.now().Add(r.cacheTTL),
	})

	return &principal, nil
}

// Forget はトークンのキャッシュエントリを削除する。
func (r *Resolver) Forget(ctx context.Context, token string) {
	if token == "" {
		return
	}
	r.cache.Delete(ctx, token)
}

// ForgetUser はユーザーのすべてのセッションのキャッシュエントリを削除する。
// 退会・パスワード変更・アカウント更新の後に呼び、他の端末のセッションも次回DBから解決させる。
func (r *Resolver) ForgetUser(ctx context.Context, userID int64) {
	r.cache.DeleteUser(ctx, userID)
}

func (r *Resolver) recordHit() {
	if r.metrics != nil {
		r.metrics.RecordIdentityCacheHit()
	}
}

func (r *Resolver) recordMiss() {
	if r.metrics != nil {
		r.metrics.RecordIdentityCacheMiss()
	}
}
