package bench

import (
	"fmt"
	"log/slog"
	"strings"
	"time"
)

// workerStats 单个 worker 的本地统计。
// 每个 worker 只写自己的条目，运行结束后统一合并，避免热路径上的共享计数。
type workerStats struct {
	acquired  int64
	timeouts  int64
	exhausted int64

	waits     int64
	waitTotal time.Duration
	waitMin   time.Duration
	waitMax   time.Duration
}

// observe 记录一次成功获取的等待时长。
func (s *workerStats) observe(d time.Duration) {
	s.waits++
	s.waitTotal += d
	if s.waits == 1 || d < s.waitMin {
		s.waitMin = d
	}
	if d > s.waitMax {
		s.waitMax = d
	}
}

// Report 一次压测运行的汇总结果。
type Report struct {
	// RunID 本次运行的唯一标识。
	RunID string
	// Workers 并发 worker 数。
	Workers int
	// Keys 竞争的 key 数量。
	Keys int
	// Operations 计划执行的操作总数（Workers × Iterations）。
	Operations int64
	// Acquired 成功获取并释放的次数。
	Acquired int64
	// Timeouts 超时的获取尝试次数（含重试前的超时）。
	Timeouts int64
	// Retries 重试次数。
	Retries int64
	// Exhausted 重试耗尽仍未获取而放弃的操作数。
	Exhausted int64
	// Elapsed 运行总耗时。
	Elapsed time.Duration
	// WaitMin / WaitAvg / WaitMax 成功获取的等待时长分布。
	WaitMin time.Duration
	WaitAvg time.Duration
	WaitMax time.Duration
	// Throughput 每秒成功获取次数。
	Throughput float64
}

// buildReport 合并各 worker 的统计并计算派生指标。
func buildReport(runID string, cfg Config, stats []workerStats, cbTimeouts int64, elapsed time.Duration) *Report {
	rep := &Report{
		RunID:      runID,
		Workers:    cfg.Workers,
		Keys:       cfg.Keys,
		Operations: int64(cfg.Workers) * int64(cfg.Iterations),
		Timeouts:   cbTimeouts,
		Elapsed:    elapsed,
	}

	var waits int64
	var waitTotal time.Duration
	for i := range stats {
		st := &stats[i]
		rep.Acquired += st.acquired
		rep.Timeouts += st.timeouts
		rep.Exhausted += st.exhausted

		if st.waits > 0 {
			if waits == 0 || st.waitMin < rep.WaitMin {
				rep.WaitMin = st.waitMin
			}
			if st.waitMax > rep.WaitMax {
				rep.WaitMax = st.waitMax
			}
			waits += st.waits
			waitTotal += st.waitTotal
		}
	}
	// 每次超时之后要么重试、要么因配额耗尽放弃，
	// 所以重试次数恒等于超时次数减去放弃次数。
	rep.Retries = rep.Timeouts - rep.Exhausted
	if waits > 0 {
		rep.WaitAvg = waitTotal / time.Duration(waits)
	}
	if sec := elapsed.Seconds(); sec > 0 {
		rep.Throughput = float64(rep.Acquired) / sec
	}
	return rep
}

// String 返回适合终端输出的多行摘要。
func (r *Report) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "run        : %s\n", r.RunID)
	fmt.Fprintf(&b, "workers    : %d\n", r.Workers)
	fmt.Fprintf(&b, "keys       : %d\n", r.Keys)
	fmt.Fprintf(&b, "operations : %d\n", r.Operations)
	fmt.Fprintf(&b, "acquired   : %d\n", r.Acquired)
	fmt.Fprintf(&b, "timeouts   : %d\n", r.Timeouts)
	fmt.Fprintf(&b, "retries    : %d\n", r.Retries)
	fmt.Fprintf(&b, "exhausted  : %d\n", r.Exhausted)
	fmt.Fprintf(&b, "elapsed    : %s\n", r.Elapsed)
	fmt.Fprintf(&b, "wait       : min %s / avg %s / max %s\n", r.WaitMin, r.WaitAvg, r.WaitMax)
	fmt.Fprintf(&b, "throughput : %.1f locks/s", r.Throughput)
	return b.String()
}

// LogValue 实现 slog.LogValuer，结构化输出核心指标。
func (r *Report) LogValue() slog.Value {
	return slog.GroupValue(
		slog.String("run_id", r.RunID),
		slog.Int64("operations", r.Operations),
		slog.Int64("acquired", r.Acquired),
		slog.Int64("timeouts", r.Timeouts),
		slog.Int64("retries", r.Retries),
		slog.Int64("exhausted", r.Exhausted),
		slog.Duration("elapsed", r.Elapsed),
		slog.Float64("throughput", r.Throughput),
	)
}
