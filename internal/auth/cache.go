package auth

import (
	"context"
	"sync"
	"time"

	"github.com/hitoshi/mjeti360/internal/model"
)

// DefaultIdentityCacheTTL は認証ユーザーキャッシュの保持期間。
// トークン自体の有効期限とは独立している。
const DefaultIdentityCacheTTL = 5 * time.Minute

// CacheEntry はトークンに対応する認証ユーザーのキャッシュ。
// Userにパスワードハッシュは含めない。
type CacheEntry struct {
	User      model.User `json:"user"`
	SessionID string     `json:"session_id"`
	ExpiresAt time.Time  `json:"expires_at"`
}

// IdentityCache はトークン文字列をキーとする認証ユーザーキャッシュ。
// キャッシュはベストエフォートであり、障害時はミスとして扱う。
type IdentityCache interface {
	Get(ctx context.Context, token string) (CacheEntry, bool)
	Set(ctx context.Context, token string, entry CacheEntry)
	Delete(ctx context.Context, token string)
	// DeleteUser は指定ユーザーのすべてのトークンのエントリを削除する。
	DeleteUser(ctx context.Context, userID int64)
}

// MemoryIdentityCache はプロセス内の有効期限付きマップによるIdentityCache実装。
type MemoryIdentityCache struct {
	mu      sync.RWMutex
	entries map[string]CacheEntry
	now     func() time.Time
}

// NewMemoryIdentityCache はMemoryIdentityCacheを生成する。nowがnilの場合はtime.Nowを使用する。
func NewMemoryIdentityCache(now func() time.Time) *MemoryIdentityCache {
	if now == nil {
		now = time.Now
	}
	return &MemoryIdentityCache{
		entries: make(map[string]CacheEntry),
		now:     now,
	}
}

// Get は有効期限内のエントリを返す。期限切れのエントリはここで削除する。
func (c *MemoryIdentityCache) Get(_ context.Context, token string) (CacheEntry, bool) {
	c.mu.RLock()
	entry, ok := c.entries[token]
	c.mu.RUnlock()
	if !ok {
		return CacheEntry{}, false
	}
	if !c.now().Before(entry.ExpiresAt) {
		c.mu.Lock()
		if current, ok := c.entries[token]; ok && current.ExpiresAt.Equal(entry.ExpiresAt) {
			delete(c.entries, token)
		}
		c.mu.Unlock()
		return CacheEntry{}, false
	}
	return entry, true
}

// Set はエントリを保存する。同じキーへの同時書き込みは後勝ち。
func (c *MemoryIdentityCache) Set(_ context.Context, token string, entry CacheEntry) {
	c.mu.Lock()
	c.entries[token] = entry
	c.mu.Unlock()
}

// Delete はエントリを削除する。
func (c *MemoryIdentityCache) Delete(_ context.Context, token string) {
	c.mu.Lock()
	delete(c.entries, token)
	c.mu.Unlock()
}

// DeleteUser は指定ユーザーのエントリをすべて削除する。
func (c *MemoryIdentityCache) DeleteUser(_ context.Context, userID int64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for token, entry := range c.entries {
		if entry.User.ID == userID {
			delete(c.entries, token)
		}
	}
}

// Purge は期限切れのエントリをすべて削除し、削除件数を返す。
func (c *MemoryIdentityCache) Purge() int {
	now := c.now()
	c.mu.Lock()
	defer c.mu.Unlock()

	removed := 0
	for token, entry := range c.entries {
		if !now.Before(entry.ExpiresAt) {
			delete(c.entries, token)
			removed++
		}
	}
	return removed
}

// Len は保持しているエントリ数を返す。
func (c *MemoryIdentityCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// compile-time interface check
var _ IdentityCache = (*MemoryIdentityCache)(nil)
