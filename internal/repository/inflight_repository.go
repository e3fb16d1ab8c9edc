// Package repository 提供了会话状态与提交锁的存储实现。
package repository

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
)

// InFlightGuard 保证同一个草稿持有者同时只有一次提交在进行。
type InFlightGuard interface {
	// Acquire 返回本次持有的 token；ok 为 false 表示已有提交在进行。
	Acquire(ctx context.Context, sessionID string) (token string, ok bool, err error)
	// Release 只释放 token 对应的那一次持有，锁已过期并被他人取得时不做任何事。
	Release(ctx context.Context, sessionID, token string) error
}

// NewInFlightGuard 在配置了 Redis 时返回跨实例的锁，否则返回进程内实现。
func NewInFlightGuard(redisClient *redis.Client, ttl time.Duration) InFlightGuard {
	if redisClient == nil {
		return NewMemoryInFlightGuard()
	}
	return NewRedisInFlightGuard(redisClient, ttl)
}

type memoryInFlightGuard struct {
	mu   sync.Mutex
	held map[string]string
}

// NewMemoryInFlightGuard 创建进程内的提交锁。
func NewMemoryInFlightGuard() InFlightGuard {
	return &memoryInFlightGuard{held: make(map[string]string)}
}

func (g *memoryInFlightGuard) Acquire(_ context.Context, sessionID string) (string, bool, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if _, ok := g.held[sessionID]; ok {
		return "", false, nil
	}
	token := uuid.NewString()
	g.held[sessionID] = token
	return token, true, nil
}

func (g *memoryInFlightGuard) Release(_ context.Context, sessionID, token string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.held[sessionID] == token {
		delete(g.held, sessionID)
	}
	return nil
}

// releaseScript 只有在值仍是自己的 token 时才删除 key。
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// redisInFlightGuard 使用 SETNX + TTL，进程崩溃后锁也会在 TTL 后自动释放。
type redisInFlightGuard struct {
	redisClient *redis.Client
	ttl         time.Duration
}

// NewRedisInFlightGuard 创建基于 Redis 的提交锁。
func NewRedisInFlightGuard(redisClient *redis.Client, ttl time.Duration) InFlightGuard {
	if ttl <= 0 {
		ttl = time.Minute
	}
	return &redisInFlightGuard{redisClient: redisClient, ttl: ttl}
}

func (g *redisInFlightGuard) key(sessionID string) string {
	return "feedback:inflight:" + sessionID
}

func (g *redisInFlightGuard) Acquire(ctx context.Context, sessionID string) (string, bool, error) {
	token := uuid.NewString()
	ok, err := g.redisClient.SetNX(ctx, g.key(sessionID), token, g.ttl).Result()
	if err != nil {
		return "", false, fmt.Errorf("failed to acquire in-flight lock: %w", err)
	}
	if !ok {
		return "", false, nil
	}
	return token, true, nil
}

func (g *redisInFlightGuard) Release(ctx context.Context, sessionID, token string) error {
	if err := releaseScript.Run(ctx, g.redisClient, []string{g.key(sessionID)}, token).Err(); err != nil {
		return fmt.Errorf("failed to release in-flight lock: %w", err)
	}
	return nil
}

// InFlightTTL 返回至少覆盖一次远端提交的锁过期时间。
// commitTimeout 为 0 表示提交不设超时，此时只能使用配置值。
func InFlightTTL(configured, commitTimeout time.Duration) time.Duration {
	if configured <= 0 {
		configured = time.Minute
	}
	if floor := commitTimeout + 10*time.Second; commitTimeout > 0 && configured < floor {
		return floor
	}
	return configured
}
