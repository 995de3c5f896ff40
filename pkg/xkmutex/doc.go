// Package xkmutex 提供基于 key 的进程内互斥锁，带可配置的等待预算与超时策略。
//
// 不同 key 的锁完全独立，同一 key 在任意时刻至多一个持有者。
// 锁按需创建、只增不减，适合按业务 key 串行化操作的场景，
// 如订单状态互斥更新、同一用户的资产变更互斥、缓存防击穿回源互斥等。
//
// # 特性
//
//   - 泛型 key：任意 comparable 类型，零值视为非法 key
//   - 等待预算：无限等待（默认）/ 不等待 / 正预算，见 [WithWaitTimeout]
//   - 超时策略：失败（默认）/ 静默 / 自定义消息 / 自定义回调，见 [TimeoutPolicy]
//   - Token 语义：Release 恰好一次有效，重复释放返回 [ErrAlreadyReleased]；
//     超时产生的空 Token 任意次 Release 均无害
//   - key 归一化：[WithKeyNormalizer] 决定哪些 key 视为同一把锁
//   - Context 支持：Acquire 支持取消/超时（ctx 不得为 nil，否则 panic）
//   - 内存上限：[WithMaxKeys] 限制锁表规模
//   - 指标：[WithMeterProvider] 注入 OpenTelemetry MeterProvider 后自动采集
//
// # 快速开始
//
//	lk, err := xkmutex.New[string](
//		xkmutex.WithWaitTimeout[string](200 * time.Millisecond),
//	)
//	if err != nil {
//		return err
//	}
//	defer lk.Close()
//
//	tok, err := lk.Acquire(ctx, "order:1001")
//	if err != nil {
//		return err // 默认策略：超时返回包装 ErrLockTimeout 的错误
//	}
//	defer tok.Release()
//	// ... 持锁操作 ...
//
// # 超时策略
//
//	策略              超时行为                         适用场景
//	──────────────────────────────────────────────────────────
//	FailPolicy        返回 ErrLockTimeout（默认）      必须拿到锁的业务写路径
//	SilentPolicy      返回空 Token，不报错             抢不到就跳过的幂等任务
//	MessagePolicy     返回自定义消息的错误             需要业务化错误文案
//	CallbackPolicy    执行回调后返回空 Token           旁路告警、计数、日志
//
// 需要跨进程互斥时本包不适用，请使用分布式锁（Redis/etcd 等）。
package xkmutex
