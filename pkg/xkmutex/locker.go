package xkmutex

import (
	"context"
	"io"
	"sync/atomic"
	"time"

	"github.com/puzpuzpuz/xsync/v3"
)

// keyLock 表示一个 key 的锁。
// ch 是 size=1 的 channel，用作互斥量：
//   - 发送成功 = 获取锁
//   - 发送阻塞 = 锁被占用
//   - 接收 = 释放锁
type keyLock struct {
	ch chan struct{}
}

func newKeyLock() *keyLock {
	return &keyLock{ch: make(chan struct{}, 1)}
}

// Locker 提供基于 key 的进程内互斥锁：不同 key 的锁完全独立，
// 同一 key（按归一化后的形式比较）在任意时刻至多一个持有者。
//
// 锁表只增不减：一个 key 首次被获取时锁按需创建，此后该 key 永远
// 对应同一把锁实例。并发首次获取由无锁 map 的原子插入仲裁，失败方
// 丢弃自己创建的实例。key 空间无界时用 [WithMaxKeys] 设置上限。
//
// 所有方法都是并发安全的。零值不可用，必须通过 [New] 创建。
type Locker[K comparable] struct {
	locks   *xsync.MapOf[K, *keyLock]
	opts    options[K]
	metrics *metrics
	closed  atomic.Bool
	// keyCount 仅在 maxKeys > 0 时维护，用于预留式上限检查。
	keyCount atomic.Int64
	done     chan struct{}
}

// New 创建一个新的 Locker 实例。
// 配置无效时返回错误（如 WithTimeoutPolicy 显式传入 nil 策略）。
func New[K comparable](opts ...Option[K]) (*Locker[K], error) {
	o := defaultOptions[K]()
	for _, opt := range opts {
		if opt != nil {
			opt(&o)
		}
	}
	if err := o.validate(); err != nil {
		return nil, err
	}
	m, err := newMetrics(o.meterProvider)
	if err != nil {
		return nil, err
	}

	var locks *xsync.MapOf[K, *keyLock]
	if o.hasher != nil {
		locks = xsync.NewMapOfWithHasher[K, *keyLock](o.hasher)
	} else {
		locks = xsync.NewMapOf[K, *keyLock]()
	}
	return &Locker[K]{
		locks:   locks,
		opts:    o,
		metrics: m,
		done:    make(chan struct{}),
	}, nil
}

// normalizeKey 返回锁表索引用的规范形式。
func (l *Locker[K]) normalizeKey(key K) K {
	if l.opts.normalize != nil {
		return l.opts.normalize(key)
	}
	return key
}

// lookupOrCreate 返回 key 对应的锁，不存在则原子创建。
// 并发对同一新 key 的首次获取由 LoadOrStore 仲裁：恰好一方插入成功，
// 失败方丢弃自己的实例并使用胜者的，保证一个 key 恒等于一把锁。
func (l *Locker[K]) lookupOrCreate(key K) (*keyLock, error) {
	if lk, ok := l.locks.Load(key); ok {
		return lk, nil
	}
	if l.opts.maxKeys > 0 {
		// 先用 CAS 预留名额再插入，严格保证 key 数不超上限。
		for {
			cur := l.keyCount.Load()
			if cur >= int64(l.opts.maxKeys) {
				// 名额耗尽后该 key 仍可能刚被他人插入，二次检查避免误拒。
				if lk, ok := l.locks.Load(key); ok {
					return lk, nil
				}
				return nil, ErrTooManyKeys
			}
			if l.keyCount.CompareAndSwap(cur, cur+1) {
				break
			}
		}
		lk, loaded := l.locks.LoadOrStore(key, newKeyLock())
		if loaded {
			// 与他人并发创建了同一 key，退还预留的名额。
			l.keyCount.Add(-1)
		}
		return lk, nil
	}
	lk, _ := l.locks.LoadOrStore(key, newKeyLock())
	return lk, nil
}

// Acquire 获取 key 对应的锁，等待行为由 [WithWaitTimeout] 配置：
// 默认无限等待，NoWait 不等待，正预算最多等待这么久。
// 预算耗尽时调用 [WithTimeoutPolicy] 设置的策略：策略产生错误则
// Acquire 以该错误失败；静默类策略则返回空 Token（TimedOut() == true）。
//
// ctx 取消/超时独立于等待预算，取消时返回 ctx.Err()，不咨询策略。
// Locker 已关闭或等待期间被 Close 时返回 [ErrClosed]。
// key 不得为零值，否则返回 [ErrInvalidKey]。ctx 不得为 nil，否则 panic。
//
// 当 Acquire 处于阻塞等待时，若 Close 与 ctx 取消同时发生，
// 返回 [ErrClosed] 或 ctx.Err() 均有可能（Go select 语义）。
//
// 设计决策: 锁是非可重入的（non-reentrant），与 sync.Mutex 一致。
// 不提供运行时死锁检测（开销不可接受），由调用方负责避免同一 goroutine
// 对同一 key 重复 Acquire。无限等待模式下建议传入带 deadline 的 ctx，
// 防止因编程错误导致永久阻塞。
func (l *Locker[K]) Acquire(ctx context.Context, key K) (*Token[K], error) {
	if ctx == nil {
		panic("xkmutex: nil Context")
	}
	// 快速检查：ctx 已取消时避免触碰锁表。
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if l.closed.Load() {
		return nil, ErrClosed
	}
	var zero K
	if key == zero {
		return nil, ErrInvalidKey
	}
	lk, err := l.lookupOrCreate(l.normalizeKey(key))
	if err != nil {
		l.metrics.recordAcquire(ctx, outcomeRejected, 0)
		return nil, err
	}

	start := time.Now()
	switch {
	case l.opts.wait == NoWait:
		select {
		case lk.ch <- struct{}{}: // 获取成功
			l.metrics.recordAcquire(ctx, outcomeAcquired, time.Since(start))
			return newHeldToken(l, key, lk), nil
		default: // 锁被占用，立即走超时路径
			return l.waitExpired(ctx, key, start)
		}
	case l.opts.wait > 0:
		timer := time.NewTimer(l.opts.wait)
		defer timer.Stop()
		select {
		case lk.ch <- struct{}{}: // 获取成功
			l.metrics.recordAcquire(ctx, outcomeAcquired, time.Since(start))
			return newHeldToken(l, key, lk), nil
		case <-timer.C: // 等待预算耗尽
			return l.waitExpired(ctx, key, start)
		case <-ctx.Done(): // 取消
			l.metrics.recordAcquire(ctx, outcomeCanceled, time.Since(start))
			return nil, ctx.Err()
		case <-l.done: // Locker 已关闭
			l.metrics.recordAcquire(ctx, outcomeClosed, time.Since(start))
			return nil, ErrClosed
		}
	default: // WaitForever
		select {
		case lk.ch <- struct{}{}: // 获取成功
			l.metrics.recordAcquire(ctx, outcomeAcquired, time.Since(start))
			return newHeldToken(l, key, lk), nil
		case <-ctx.Done(): // 取消
			l.metrics.recordAcquire(ctx, outcomeCanceled, time.Since(start))
			return nil, ctx.Err()
		case <-l.done: // Locker 已关闭
			l.metrics.recordAcquire(ctx, outcomeClosed, time.Since(start))
			return nil, ErrClosed
		}
	}
}

// waitExpired 记录超时指标并执行超时策略。
// 策略收到的是调用方的原始 key；策略不报错时返回空 Token。
func (l *Locker[K]) waitExpired(ctx context.Context, key K, start time.Time) (*Token[K], error) {
	l.metrics.recordAcquire(ctx, outcomeTimeout, time.Since(start))
	if err := l.opts.policy.OnTimeout(key, l.opts.wait); err != nil {
		return nil, err
	}
	return newEmptyToken(key), nil
}

// TryAcquire 非阻塞获取锁，永不咨询超时策略。
// 锁被占用时返回 [ErrLockHeld]，Locker 已关闭时返回 [ErrClosed]，
// key 为零值时返回 [ErrInvalidKey]。
func (l *Locker[K]) TryAcquire(key K) (*Token[K], error) {
	if l.closed.Load() {
		return nil, ErrClosed
	}
	var zero K
	if key == zero {
		return nil, ErrInvalidKey
	}
	lk, err := l.lookupOrCreate(l.normalizeKey(key))
	if err != nil {
		l.metrics.recordAcquire(context.Background(), outcomeRejected, 0)
		return nil, err
	}
	select {
	case lk.ch <- struct{}{}: // 获取成功
		l.metrics.recordAcquire(context.Background(), outcomeAcquired, 0)
		return newHeldToken(l, key, lk), nil
	default: // 锁被占用
		l.metrics.recordAcquire(context.Background(), outcomeHeld, 0)
		return nil, ErrLockHeld
	}
}

// Do 在持有 key 锁的情况下执行 fn，返回前释放锁（fn panic 时同样释放）。
// 获取失败时返回相应错误且不执行 fn；静默类策略超时返回 [ErrNotAcquired]。
// fn 不得为 nil。
func (l *Locker[K]) Do(ctx context.Context, key K, fn func() error) error {
	tok, err := l.Acquire(ctx, key)
	if err != nil {
		return err
	}
	if tok.TimedOut() {
		return ErrNotAcquired
	}
	// 持锁 Token 的首次 Release 必然成功。
	defer func() { _ = tok.Release() }()
	return fn()
}

// Len 返回锁表中的 key 数量（瞬时快照）。
// 锁表只增不减，该值单调不减，可用于监控 key 空间增长。
func (l *Locker[K]) Len() int {
	return l.locks.Size()
}

// Keys 返回锁表中全部 key 的快照（归一化后的形式），仅用于调试。
// 与并发插入之间不保证原子一致；监控场景推荐使用 Len。
func (l *Locker[K]) Keys() []K {
	keys := make([]K, 0, l.locks.Size())
	l.locks.Range(func(k K, _ *keyLock) bool {
		keys = append(keys, k)
		return true
	})
	return keys
}

// Close 关闭 Locker：拒绝新的获取请求，并唤醒所有等待中的 Acquire
// 使其返回 [ErrClosed]。已发出的持锁 Token 不受影响，仍可正常 Release。
// 第二次及后续调用返回 [ErrClosed]。
func (l *Locker[K]) Close() error {
	if !l.closed.CompareAndSwap(false, true) {
		return ErrClosed
	}
	close(l.done)
	return nil
}

// 编译期接口检查。
var _ io.Closer = (*Locker[string])(nil)
