package auth

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// Revoker はログアウト済みセッションのID（jti）を有効期限まで記録する。
type Revoker interface {
	Revoke(ctx context.Context, jti string, until time.Time) error
	IsRevoked(ctx context.Context, jti string) (bool, error)
}

// MemoryRevoker はプロセス内に失効済みIDを保持する。単一インスタンス構成向け。
type MemoryRevoker struct {
	mu      sync.Mutex
	revoked map[string]time.Time
	now     func() time.Time
}

// NewMemoryRevoker は MemoryRevoker を生成する。
func NewMemoryRevoker() *MemoryRevoker {
	return &MemoryRevoker{
		revoked: make(map[string]time.Time),
		now:     time.Now,
	}
}

// Revoke は jti を until まで失効扱いにする。期限切れのエントリはこの時に掃除する。
func (r *MemoryRevoker) Revoke(_ context.Context, jti string, until time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now()
	for id, exp := range r.revoked {
		if !exp.After(now) {
			delete(r.revoked, id)
		}
	}
	r.revoked[jti] = until
	return nil
}

// IsRevoked は jti が失効済みかを返す。
func (r *MemoryRevoker) IsRevoked(_ context.Context, jti string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	exp, ok := r.revoked[jti]
	return ok && exp.After(r.now()), nil
}

// RedisRevoker はRedisに失効済みIDを保持する。複数インスタンスで共有できる。
type RedisRevoker struct {
	client *redis.Client
	prefix string
}

// NewRedisRevoker は RedisRevoker を生成する。
func NewRedisRevoker(client *redis.Client) *RedisRevoker {
	return &RedisRevoker{client: client, prefix: "scalaya:revoked:"}
}

// Revoke は jti をキーにTTL付きで保存する。値は失効期限のUNIX時刻。
func (r *RedisRevoker) Revoke(ctx context.Context, jti string, until time.Time) error {
	ttl := time.Until(until)
	if ttl <= 0 {
		return nil
	}
	value := strconv.FormatInt(until.UTC().Unix(), 10)
	if err := r.client.Set(ctx, r.prefix+jti, value, ttl).Err(); err != nil {
		return fmt.Errorf("failed to revoke session: %w", err)
	}
	return nil
}

// IsRevoked は jti のキーが存在するかを返す。
func (r *RedisRevoker) IsRevoked(ctx context.Context, jti string) (bool, error) {
	n, err := r.client.Exists(ctx, r.prefix+jti).Result()
	if err != nil {
		return false, fmt.Errorf("failed to check revoked session: %w", err)
	}
	return n > 0, nil
}

var (
	_ Revoker = (*MemoryRevoker)(nil)
	_ Revoker = (*RedisRevoker)(nil)
)
