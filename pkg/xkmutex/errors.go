package xkmutex

import "errors"

var (
	// ErrInvalidKey 表示 key 为其类型的零值。
	// Acquire/TryAcquire/Do 在触碰任何锁之前返回此错误。
	ErrInvalidKey = errors.New("xkmutex: invalid key")

	// ErrLockTimeout 表示等待预算内未能获取锁。
	// 由 FailPolicy（默认策略）与 MessagePolicy 返回，可用 errors.Is 判断。
	// SilentPolicy 和 CallbackPolicy 超时后不返回错误，而是返回空 Token。
	ErrLockTimeout = errors.New("xkmutex: lock timeout")

	// ErrNilPolicy 表示策略配置无效：MessagePolicy/CallbackPolicy 收到
	// nil 函数，或 WithTimeoutPolicy 显式传入了 nil 策略。
	// 均在构造时校验失败，不会延迟到超时才暴露。
	ErrNilPolicy = errors.New("xkmutex: nil policy")

	// ErrAlreadyReleased 表示 Token 已被释放。
	// 对持有锁的 Token 第二次及后续调用 Release 时返回此错误。
	// 超时产生的空 Token 不受此约束，其 Release 恒返回 nil。
	ErrAlreadyReleased = errors.New("xkmutex: token already released")

	// ErrLockHeld 表示锁正被其他持有者占用。
	// 仅 TryAcquire 返回此错误；Acquire 超时行为由 TimeoutPolicy 决定。
	ErrLockHeld = errors.New("xkmutex: lock held")

	// ErrNotAcquired 表示 Do 在静默策略下超时，回调未执行。
	// 仅当策略超时不产生错误（SilentPolicy/CallbackPolicy）时出现。
	ErrNotAcquired = errors.New("xkmutex: not acquired")

	// ErrClosed 表示 Locker 已关闭。
	// Close 后调用 Acquire/TryAcquire/Do 返回此错误；
	// Close 也会唤醒所有等待中的 Acquire，使其返回此错误。
	ErrClosed = errors.New("xkmutex: closed")

	// ErrTooManyKeys 表示已达到 WithMaxKeys 设置的上限。
	// 锁表只增不减，上限用于防止 key 空间失控时内存无限增长。
	ErrTooManyKeys = errors.New("xkmutex: too many keys")
)
