package xkmutex

import (
	"fmt"
	"time"

	"go.opentelemetry.io/otel/metric"
)

const (
	// WaitForever 表示无限等待，是 New 的默认等待预算。
	// 任何负的等待预算都归一化为此值。
	WaitForever time.Duration = -1

	// NoWait 表示不等待：锁空闲立即获得，被占用立即走超时路径。
	NoWait time.Duration = 0
)

// Option 定义 Locker 可选配置。
type Option[K comparable] func(*options[K])

type options[K comparable] struct {
	wait   time.Duration
	policy TimeoutPolicy[K]
	// policySet 区分"未传入"与"显式传入 nil"：前者用默认策略，后者是配置错误。
	policySet     bool
	normalize     func(K) K
	hasher        func(K, uint64) uint64
	maxKeys       int
	meterProvider metric.MeterProvider
}

func defaultOptions[K comparable]() options[K] {
	return options[K]{
		wait:   WaitForever,
		policy: FailPolicy[K](),
	}
}

// WithWaitTimeout 设置 Acquire 的等待预算。
//   - [WaitForever]（默认）：无限等待，仅 ctx 取消或 Close 能中断
//   - [NoWait]：不等待，锁被占用立即按超时处理
//   - 正值：最多等待这么久，预算耗尽按超时处理
//
// 超时后的行为由 [WithTimeoutPolicy] 设置的策略决定。
// 负值统一归一化为 [WaitForever]。
func WithWaitTimeout[K comparable](d time.Duration) Option[K] {
	// 在闭包外归一化，避免闭包写捕获变量导致并发复用时的数据竞争。
	if d < 0 {
		d = WaitForever
	}
	return func(o *options[K]) {
		o.wait = d
	}
}

// WithTimeoutPolicy 设置超时策略，默认 [FailPolicy]。
// 显式传入 nil 策略时 New 返回 [ErrNilPolicy]（防止调用方忽略
// MessagePolicy/CallbackPolicy 的构造错误后把 nil 一路传进来）。
func WithTimeoutPolicy[K comparable](p TimeoutPolicy[K]) Option[K] {
	return func(o *options[K]) {
		o.policy = p
		o.policySet = true
	}
}

// WithKeyNormalizer 设置 key 归一化函数，决定哪些 key 视为同一把锁。
// 锁表按归一化后的 key 索引；Token.Key 与策略回调收到的仍是原始 key。
// 典型用法：strings.ToLower 实现大小写不敏感的 key 互斥。
// fn 为 nil 时保持默认（恒等，即按 == 比较）。
func WithKeyNormalizer[K comparable](fn func(K) K) Option[K] {
	return func(o *options[K]) {
		if fn != nil {
			o.normalize = fn
		}
	}
}

// WithHasher 设置锁表使用的 hash 函数（seed 由锁表提供）。
// 默认使用内置 hash；仅在 key 分布有对抗性或需要与外部分片
// 对齐时才需要自定义。fn 为 nil 时保持默认。
func WithHasher[K comparable](fn func(key K, seed uint64) uint64) Option[K] {
	return func(o *options[K]) {
		if fn != nil {
			o.hasher = fn
		}
	}
}

// WithMaxKeys 设置锁表可容纳的最大 key 数量。
// 锁表只增不减，达到上限后对新 key 的 Acquire/TryAcquire 返回
// [ErrTooManyKeys]，已有 key 不受影响。n <= 0 表示不限制（默认）。
func WithMaxKeys[K comparable](n int) Option[K] {
	if n < 0 {
		n = 0
	}
	return func(o *options[K]) {
		o.maxKeys = n
	}
}

// WithMeterProvider 设置 OpenTelemetry MeterProvider，启用指标采集。
// mp 为 nil 时不采集指标（默认），热路径零开销。
func WithMeterProvider[K comparable](mp metric.MeterProvider) Option[K] {
	return func(o *options[K]) {
		o.meterProvider = mp
	}
}

func (o *options[K]) validate() error {
	if o.policySet && o.policy == nil {
		return fmt.Errorf("%w: WithTimeoutPolicy", ErrNilPolicy)
	}
	return nil
}
