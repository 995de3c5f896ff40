package xkmutex

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// 设计决策: 指标前缀使用 "xkmutex.*"，与 OTel Meter scope name 保持一致
// （Meter("xkmutex")）。标签只有低基数的 outcome，绝不携带 key：
// key 空间由调用方决定，可能无界，作为标签会在采集端产生高基数爆炸。
const (
	// metricNameAcquireTotal 获取锁次数计数器
	metricNameAcquireTotal = "xkmutex.acquire.total"
	// metricNameAcquireDuration 获取锁耗时直方图
	metricNameAcquireDuration = "xkmutex.acquire.duration"
	// metricNameReleaseTotal 释放锁次数计数器
	metricNameReleaseTotal = "xkmutex.release.total"

	// instrumentationVersion 仪表化版本号
	instrumentationVersion = "1.0.0"

	// attrOutcome 获取结果标签
	attrOutcome = "outcome"
)

// 获取结果标签值。
const (
	outcomeAcquired = "acquired" // 成功持锁
	outcomeTimeout  = "timeout"  // 等待预算耗尽（含静默策略返回空 Token 的情况）
	outcomeHeld     = "held"     // TryAcquire 遇到锁被占用
	outcomeCanceled = "canceled" // ctx 取消或超时
	outcomeClosed   = "closed"   // Locker 已关闭
	outcomeRejected = "rejected" // 达到 WithMaxKeys 上限
)

// durationBuckets 耗时直方图的桶边界。
// 进程内锁无争用时为纳秒级，带预算等待时可达秒级，桶覆盖 1µs ~ 10s。
var durationBuckets = []float64{0.000001, 0.00001, 0.0001, 0.001, 0.01, 0.1, 1.0, 10.0}

// metrics 锁指标收集器。为 nil 时所有记录方法为空操作。
type metrics struct {
	acquireTotal    metric.Int64Counter
	acquireDuration metric.Float64Histogram
	releaseTotal    metric.Int64Counter
}

// newMetrics 创建指标收集器。meterProvider 为 nil 时返回 nil（不收集指标）。
func newMetrics(meterProvider metric.MeterProvider) (*metrics, error) {
	if meterProvider == nil {
		return nil, nil
	}

	meter := meterProvider.Meter("xkmutex",
		metric.WithInstrumentationVersion(instrumentationVersion),
	)

	m := &metrics{}
	var err error
	if m.acquireTotal, err = meter.Int64Counter(metricNameAcquireTotal,
		metric.WithDescription("按 key 获取锁的次数"), metric.WithUnit("{acquire}")); err != nil {
		return nil, err
	}
	if m.acquireDuration, err = meter.Float64Histogram(metricNameAcquireDuration,
		metric.WithDescription("获取锁耗时（含等待）"), metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(durationBuckets...)); err != nil {
		return nil, err
	}
	if m.releaseTotal, err = meter.Int64Counter(metricNameReleaseTotal,
		metric.WithDescription("释放锁的次数"), metric.WithUnit("{release}")); err != nil {
		return nil, err
	}
	return m, nil
}

// recordAcquire 记录一次获取尝试的结果与耗时。
func (m *metrics) recordAcquire(ctx context.Context, outcome string, elapsed time.Duration) {
	if m == nil {
		return
	}

	// 使用 context.WithoutCancel 确保即使 ctx 被取消，指标仍能记录
	metricsCtx := context.WithoutCancel(ctx)

	opt := metric.WithAttributes(attribute.String(attrOutcome, outcome))
	m.acquireTotal.Add(metricsCtx, 1, opt)
	m.acquireDuration.Record(metricsCtx, elapsed.Seconds(), opt)
}

// recordRelease 记录一次释放。
//
// 设计决策: 释放仅记录 counter，不记录 duration histogram。
// 释放是单次 channel 接收，耗时极短且稳定，不需要分位数分布分析。
func (m *metrics) recordRelease(ctx context.Context) {
	if m == nil {
		return
	}
	m.releaseTotal.Add(context.WithoutCancel(ctx), 1)
}
