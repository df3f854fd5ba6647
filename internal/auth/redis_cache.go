package auth

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"log/slog"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	redisIdentityKeyPrefix = "identity:"
	redisUserIndexPrefix   = "identity:user:"
)

// RedisIdentityCache はRedisを使用したIdentityCache実装。
// 複数プロセスでキャッシュを共有する場合に使用する。
// キーはトークンのSHA-256ハッシュで、トークン自体はRedisに保存しない。
// ユーザーごとのセット（identity:user:<id>）にキーを登録し、ユーザー単位の削除に使う。
type RedisIdentityCache struct {
	client redis.UniversalClient
	now    func() time.Time
}

// NewRedisIdentityCache はRedisIdentityCacheを生成する。
func NewRedisIdentityCache(client redis.UniversalClient, now func() time.Time) *RedisIdentityCache {
	if now == nil {
		now = time.Now
	}
	return &RedisIdentityCache{client: client, now: now}
}

func redisIdentityKey(token string) string {
	sum := sha256.Sum256([]byte(token))
	return redisIdentityKeyPrefix + hex.EncodeToString(sum[:])
}

func redisUserIndexKey(userID int64) string {
	return redisUserIndexPrefix + strconv.FormatInt(userID, 10)
}

// Get はエントリを取得する。Redisエラーはログに記録しミスとして扱う。
func (c *RedisIdentityCache) Get(ctx context.Context, token string) (CacheEntry, bool) {
	raw, err := c.client.Get(ctx, redisIdentityKey(token)).Bytes()
	if errors.Is(err, redis.Nil) {
		return CacheEntry{}, false
	}
	if err != nil {
		slog.Warn("identity cache get failed", slog.String("error", err.Error()))
		return CacheEntry{}, false
	}

	var entry CacheEntry
	if err := json.Unmarshal(raw, &entry); err != nil {
		slog.Warn("identity cache entry corrupted", slog.String("error", err.Error()))
		return CacheEntry{}, false
	}
	if !c.now().Before(entry.ExpiresAt) {
		return CacheEntry{}, false
	}
	return entry, true
}

// Set はエントリを保存する。RedisのTTLはエントリの有効期限に合わせる。
// ユーザーのインデックスのTTLは最後に保存したエントリに合わせて延長する。
func (c *RedisIdentityCache) Set(ctx context.Context, token string, entry CacheEntry) {
	ttl := entry.ExpiresAt.Sub(c.now())
	if ttl <= 0 {
		return
	}
	entry.User.PasswordHash = ""
	raw, err := json.Marshal(entry)
	if err != nil {
		slog.Warn("identity cache encode failed", slog.String("error", err.Error()))
		return
	}

	key := redisIdentityKey(token)
	indexKey := redisUserIndexKey(entry.User.ID)
	_, err = c.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, key, raw, ttl)
		pipe.SAdd(ctx, indexKey, key)
		pipe.Expire(ctx, indexKey, ttl)
		return nil
	})
	if err != nil {
		slog.Warn("identity cache set failed", slog.String("error", err.Error()))
	}
}

// Delete はエントリを削除する。
func (c *RedisIdentityCache) Delete(ctx context.Context, token string) {
	if err := c.client.Del(ctx, redisIdentityKey(token)).Err(); err != nil {
		slog.Warn("identity cache delete failed", slog.String("error", err.Error()))
	}
}

// DeleteUser はユーザーのインデックスに登録されたエントリとインデックス自体を削除する。
func (c *RedisIdentityCache) DeleteUser(ctx context.Context, userID int64) {
	indexKey := redisUserIndexKey(userID)
	keys, err := c.client.SMembers(ctx, indexKey).Result()
	if err != nil {
		slog.Warn("identity cache index read failed",
			slog.Int64("user_id", userID),
			slog.String("error", err.Error()),
		)
		return
	}
	if err := c.client.Del(ctx, append(keys, indexKey)...).Err(); err != nil {
		slog.Warn("identity cache user delete failed",
			slog.Int64("user_id", userID),
			slog.String("error", err.Error()),
		)
	}
}

// compile-time interface check
var _ IdentityCache = (*RedisIdentityCache)(nil)
