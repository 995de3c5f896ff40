package xkmutex

import (
	"fmt"
	"log/slog"
	"time"
)

// TimeoutPolicy 决定 Acquire 等待预算耗尽后的行为。
//
// OnTimeout 返回非 nil 错误时，Acquire 以该错误失败；
// 返回 nil 时，Acquire 返回空 Token（Token.TimedOut() == true）且无错误。
//
// 策略集合是封闭的：仅 [SilentPolicy]、[FailPolicy]、[MessagePolicy]、
// [CallbackPolicy] 四种，包外不可实现。需要自定义超时行为时使用
// CallbackPolicy 注入回调即可，无需新策略类型。
type TimeoutPolicy[K comparable] interface {
	// OnTimeout 在等待预算耗尽时于 Acquire 的调用 goroutine 上同步执行，
	// 应保持轻量，避免阻塞调用方。
	// key 是调用方传入的原始 key（未经 WithKeyNormalizer 归一化）。
	// budget 是本次 Locker 配置的等待预算；NoWait 模式下为 0。
	OnTimeout(key K, budget time.Duration) error

	sealed()
}

// SilentPolicy 返回静默策略：超时不报错，Acquire 返回空 Token。
// 适合"抢不到就跳过本轮"的幂等任务，如定时对账、缓存预热。
func SilentPolicy[K comparable]() TimeoutPolicy[K] { return silentPolicy[K]{} }

// FailPolicy 返回失败策略：超时返回包装了 [ErrLockTimeout] 的错误。
// 这是 New 的默认策略。
func FailPolicy[K comparable]() TimeoutPolicy[K] { return failPolicy[K]{} }

// MessagePolicy 返回自定义消息策略：超时以 fn(key) 生成的文本构造错误。
// 返回的错误仍包装 [ErrLockTimeout]，可用 errors.Is 判断。
// fn 为 nil 时返回 [ErrNilPolicy]。
func MessagePolicy[K comparable](fn func(key K) string) (TimeoutPolicy[K], error) {
	if fn == nil {
		return nil, fmt.Errorf("%w: message func", ErrNilPolicy)
	}
	return messagePolicy[K]{fn: fn}, nil
}

// CallbackPolicy 返回回调策略：超时执行 fn(key)，随后 Acquire 返回空 Token。
// 回调自身不产生错误；需要错误语义时使用 [MessagePolicy]。
// fn 为 nil 时返回 [ErrNilPolicy]。
func CallbackPolicy[K comparable](fn func(key K)) (TimeoutPolicy[K], error) {
	if fn == nil {
		return nil, fmt.Errorf("%w: callback func", ErrNilPolicy)
	}
	return callbackPolicy[K]{fn: fn}, nil
}

// LoggingPolicy 返回一个超时后记录 WARN 日志的回调策略，是
// CallbackPolicy 的便捷封装。logger 为 nil 时使用 [slog.Default]。
func LoggingPolicy[K comparable](logger *slog.Logger) TimeoutPolicy[K] {
	if logger == nil {
		logger = slog.Default()
	}
	return callbackPolicy[K]{fn: func(key K) {
		logger.Warn("xkmutex: lock wait budget exhausted", slog.Any("key", key))
	}}
}

type silentPolicy[K comparable] struct{}

func (silentPolicy[K]) OnTimeout(K, time.Duration) error { return nil }
func (silentPolicy[K]) sealed()                          {}

type failPolicy[K comparable] struct{}

func (failPolicy[K]) OnTimeout(key K, budget time.Duration) error {
	if budget <= 0 {
		return fmt.Errorf("%w: key %v is busy", ErrLockTimeout, key)
	}
	return fmt.Errorf("%w: key %v not acquired within %s", ErrLockTimeout, key, budget)
}
func (failPolicy[K]) sealed() {}

type messagePolicy[K comparable] struct {
	fn func(key K) string
}

func (p messagePolicy[K]) OnTimeout(key K, _ time.Duration) error {
	return fmt.Errorf("%w: %s", ErrLockTimeout, p.fn(key))
}
func (messagePolicy[K]) sealed() {}

type callbackPolicy[K comparable] struct {
	fn func(key K)
}

func (p callbackPolicy[K]) OnTimeout(key K, _ time.Duration) error {
	p.fn(key)
	return nil
}
func (callbackPolicy[K]) sealed() {}

// 编译期接口检查。
var (
	_ TimeoutPolicy[string] = silentPolicy[string]{}
	_ TimeoutPolicy[string] = failPolicy[string]{}
	_ TimeoutPolicy[string] = messagePolicy[string]{}
	_ TimeoutPolicy[string] = callbackPolicy[string]{}
)
