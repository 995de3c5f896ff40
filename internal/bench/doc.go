// Package bench 提供 key 级互斥锁的竞争压测引擎。
//
// 本包是 internal 包，仅供 cmd/xkmbench 使用。
// 外部用户不应直接导入此包。
//
// 引擎按固定参数生成竞争负载：Workers 个 worker 各执行 Iterations 次
// 操作，每次操作用 xxhash 从 Keys 个 key 中选一个，执行
// Acquire → 持锁 Hold 时长 → Release。超时的获取可按 Retries 配置
// 在调用方重试（锁库本身从不重试，重试永远是调用方的决定）。
//
// 运行结束返回 Report：成功/超时/重试计数、等待延迟分布与吞吐。
package bench
