package bench

import "errors"

// ErrInvalidConfig 表示压测参数不合法。
var ErrInvalidConfig = errors.New("bench: invalid config")

// errAttemptTimeout 标记一次静默超时的获取尝试。
// silent 策略下 Acquire 返回空 Token 而非错误，
// 重试循环需要一个错误值来驱动 RetryIf 判断。
var errAttemptTimeout = errors.New("bench: acquire attempt timed out")
