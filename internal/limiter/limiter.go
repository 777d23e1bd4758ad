// Package limiter 为公开接口提供基于令牌桶的限流。
// 下单、留言等公开端点按客户端IP限流防刷。
package limiter

import (
	"context"
	"time"
)

// Result 单次限流判定结果
type Result struct {
	Allowed    bool          // 是否放行
	Remaining  int64         // 剩余配额
	RetryAfter time.Duration // 拒绝时的建议重试间隔
}

// Limiter 限流器接口
type Limiter interface {
	// Allow 判定key对应的一次请求是否放行
	Allow(ctx context.Context, key string) (*Result, error)
}

// Config 令牌桶参数
type Config struct {
	Rate      int64         // 每个窗口补充的令牌数
	Window    time.Duration // 补充窗口
	Burst     int64         // 桶容量（突发上限）
	KeyPrefix string        // 存储key前缀
}
