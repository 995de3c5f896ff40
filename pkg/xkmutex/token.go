package xkmutex

import (
	"context"
	"sync"
	"sync/atomic"
)

// Token 表示一次 Acquire 的结果，有两种形态：
//   - 持锁 Token：获取成功，持有 key 对应的锁，必须调用 Release 释放
//   - 空 Token：静默类策略（SilentPolicy/CallbackPolicy）超时产生，
//     TimedOut() 为 true，Release 任意次调用均无害
//
// 持锁 Token 与调用作用域解耦：可跨函数传递、存入结构体，
// 并在任意 goroutine 上 Release（基于 channel 的锁无持有者亲和性）。
// 零值 Token 行为等同空 Token，其 ID() 为空串。
type Token[K comparable] struct {
	key      K
	lk       *keyLock   // nil 表示空 Token
	owner    *Locker[K] // 释放时上报指标；空 Token 为 nil
	id       func() string
	released atomic.Bool
}

func newHeldToken[K comparable](owner *Locker[K], key K, lk *keyLock) *Token[K] {
	return &Token[K]{key: key, lk: lk, owner: owner, id: sync.OnceValue(nextTokenID)}
}

func newEmptyToken[K comparable](key K) *Token[K] {
	return &Token[K]{key: key, id: sync.OnceValue(func() string { return "noop-" + nextTokenID() })}
}

// Release 释放锁。
// 持锁 Token：首次调用释放锁并返回 nil，第二次及后续调用返回
// [ErrAlreadyReleased]，且不会触碰锁状态（锁可能已被他人持有）。
// 空 Token：任意次调用均返回 nil。
func (t *Token[K]) Release() error {
	if t.lk == nil {
		return nil
	}
	if !t.released.CompareAndSwap(false, true) {
		return ErrAlreadyReleased
	}
	<-t.lk.ch
	t.owner.metrics.recordRelease(context.Background())
	return nil
}

// TimedOut 报告本 Token 是否为超时产生的空 Token。
// 空 Token 不持有锁，受保护的操作不应执行。
func (t *Token[K]) TimedOut() bool {
	return t.lk == nil
}

// Key 返回调用方传入的原始 key（未经 WithKeyNormalizer 归一化）。
// Release 之后调用仍返回原值。
func (t *Token[K]) Key() K {
	return t.key
}

// ID 返回本次获取的唯一短 ID，用于日志关联与排障。
// ID 在首次调用时才生成；空 Token 的 ID 带 "noop-" 前缀。
func (t *Token[K]) ID() string {
	if t.id == nil {
		return ""
	}
	return t.id()
}
