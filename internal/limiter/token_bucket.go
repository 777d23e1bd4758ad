package limiter

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// Redis Lua脚本：令牌桶按流逝时间补充，原子判定与扣减
const tokenBucketScript = `
local key = KEYS[1]
local capacity = tonumber(ARGV[1])
local rate = tonumber(ARGV[2])
local window = tonumber(ARGV[3])
local now = tonumber(ARGV[4])

local bucket = redis.call('HMGET', key, 'tokens', 'last_refill')
local tokens = tonumber(bucket[1]) or capacity
local last_refill = tonumber(bucket[2]) or now

local time_passed = math.max(0, now - last_refill)
local tokens_to_add = math.floor(time_passed * rate / window)
tokens = math.min(capacity, tokens + tokens_to_add)

if tokens >= 1 then
    tokens = tokens - 1
    redis.call('HMSET', key, 'tokens', tokens, 'last_refill', now)
    redis.call('EXPIRE', key, window * 2)
    return {1, tokens, 0}
else
    redis.call('HMSET', key, 'tokens', tokens, 'last_refill', now)
    redis.call('EXPIRE', key, window * 2)
    local retry_after = math.ceil(window / rate)
    return {0, tokens, retry_after}
end
`

// RedisLimiter Redis令牌桶限流器，多实例部署时共享配额
type RedisLimiter struct {
	client    redis.Cmdable
	config    *Config
	keyPrefix string
}

// NewRedisLimiter 创建Redis令牌桶限流器
func NewRedisLimiter(client redis.Cmdable, config *Config) *RedisLimiter {
	prefix := config.KeyPrefix
	if prefix == "" {
		prefix = "limiter:tb"
	}
	return &RedisLimiter{
		client:    client,
		config:    config,
		keyPrefix: prefix,
	}
}

// Allow 判定key对应的一次请求是否放行
func (l *RedisLimiter) Allow(ctx context.Context, key string) (*Result, error) {
	redisKey := fmt.Sprintf("%s:%s", l.keyPrefix, key)
	now := time.Now().Unix()

	result := l.client.Eval(ctx, tokenBucketScript,
		[]string{redisKey},
		l.config.Burst,
		l.config.Rate,
		int64(l.config.Window.Seconds()),
		now,
	)
	if result.Err() != nil {
		return nil, fmt.Errorf("execute token bucket script: %w", result.Err())
	}

	values, ok := result.Val().([]interface{})
	if !ok || len(values) != 3 {
		return nil, fmt.Errorf("unexpected script result format")
	}

	return &Result{
		Allowed:    values[0].(int64) == 1,
		Remaining:  values[1].(int64),
		RetryAfter: time.Duration(values[2].(int64)) * time.Second,
	}, nil
}

type bucket struct {
	tokens     float64
	lastRefill time.Time
}

// MemoryLimiter 进程内令牌桶限流器；单实例部署或Redis未启用时使用
type MemoryLimiter struct {
	config  *Config
	mu      sync.Mutex
	buckets map[string]*bucket
}

// NewMemoryLimiter 创建内存令牌桶限流器
func NewMemoryLimiter(config *Config) *MemoryLimiter {
	return &MemoryLimiter{
		config:  config,
		buckets: make(map[string]*bucket),
	}
}

// Allow 判定key对应的一次请求是否放行
func (l *MemoryLimiter) Allow(ctx context.Context, key string) (*Result, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := time.Now()
	b, ok := l.buckets[key]
	if !ok {
		b = &bucket{tokens: float64(l.config.Burst), lastRefill: now}
		l.buckets[key] = b
	}

	refillPerSecond := float64(l.config.Rate) / l.config.Window.Seconds()
	elapsed := now.Sub(b.lastRefill).Seconds()
	b.tokens += elapsed * refillPerSecond
	if b.tokens > float64(l.config.Burst) {
		b.tokens = float64(l.config.Burst)
	}
	b.lastRefill = now

	if b.tokens >= 1 {
		b.tokens--
		return &Result{
			Allowed:   true,
			Remaining: int64(b.tokens),
		}, nil
	}

	retrySeconds := (1 - b.tokens) / refillPerSecond
	return &Result{
		Allowed:    false,
		Remaining:  0,
		RetryAfter: time.Duration(retrySeconds * float64(time.Second)),
	}, nil
}
