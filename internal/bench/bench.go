package bench

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"sync/atomic"
	"time"

	retry "github.com/avast/retry-go/v5"
	"github.com/cespare/xxhash/v2"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/omeyang/xkmutex/pkg/xkmutex"
)

// 压测可用的超时策略名。
const (
	// PolicyFail 超时返回错误（默认），引擎从错误路径统计超时。
	PolicyFail = "fail"
	// PolicySilent 超时返回空 Token，引擎通过 CallbackPolicy 统计超时。
	PolicySilent = "silent"
)

// Config 一次压测运行的参数。
type Config struct {
	// Workers 并发 worker 数量。
	Workers int
	// Keys 竞争的 key 数量，越小竞争越激烈。
	Keys int
	// Iterations 每个 worker 执行的操作次数。
	Iterations int
	// Hold 每次成功获取后的持锁时长。
	Hold time.Duration
	// Wait 等待预算：负值无限等待，0 不等待，正值为预算上限。
	Wait time.Duration
	// Policy 超时策略名，见 PolicyFail / PolicySilent。空串等同 PolicyFail。
	Policy string
	// Retries 超时后的最大重试次数，0 表示不重试。
	// 重试发生在调用方循环里，锁库本身从不重试。
	Retries int
	// RetryDelay 重试之间的固定间隔，0 表示立即重试。
	RetryDelay time.Duration
	// MaxKeys 锁表容量上限，<= 0 不限制。必须能覆盖 Keys。
	MaxKeys int
	// Logger 运行日志输出，nil 时使用 slog.Default()。
	Logger *slog.Logger
}

// validate 校验压测参数。
func (c Config) validate() error {
	switch {
	case c.Workers < 1:
		return fmt.Errorf("%w: workers must be positive, got %d", ErrInvalidConfig, c.Workers)
	case c.Keys < 1:
		return fmt.Errorf("%w: keys must be positive, got %d", ErrInvalidConfig, c.Keys)
	case c.Iterations < 1:
		return fmt.Errorf("%w: iterations must be positive, got %d", ErrInvalidConfig, c.Iterations)
	case c.Hold < 0:
		return fmt.Errorf("%w: hold must be non-negative, got %v", ErrInvalidConfig, c.Hold)
	case c.Retries < 0:
		return fmt.Errorf("%w: retries must be non-negative, got %d", ErrInvalidConfig, c.Retries)
	case c.RetryDelay < 0:
		return fmt.Errorf("%w: retry delay must be non-negative, got %v", ErrInvalidConfig, c.RetryDelay)
	case c.MaxKeys > 0 && c.MaxKeys < c.Keys:
		return fmt.Errorf("%w: max keys %d cannot cover %d keys", ErrInvalidConfig, c.MaxKeys, c.Keys)
	}

	switch c.Policy {
	case "", PolicyFail, PolicySilent:
		return nil
	default:
		return fmt.Errorf("%w: unknown policy %q", ErrInvalidConfig, c.Policy)
	}
}

// Run 执行一次压测并返回汇总报告。
// ctx 取消会中止所有 worker 并返回错误。
func Run(ctx context.Context, cfg Config) (*Report, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	runID := uuid.NewString()

	// silent 策略用计数回调实现：行为与 SilentPolicy 一致（返回空 Token），
	// 超时次数由回调推送，不需要在每个 worker 里翻译 TimedOut。
	var cbTimeouts atomic.Int64
	opts, err := lockOptions(cfg, &cbTimeouts)
	if err != nil {
		return nil, err
	}
	locker, err := xkmutex.New(opts...)
	if err != nil {
		return nil, err
	}
	defer locker.Close()

	keys := makeKeys(cfg.Keys)

	logger.Info("bench run starting",
		slog.String("run_id", runID),
		slog.Int("workers", cfg.Workers),
		slog.Int("keys", cfg.Keys),
		slog.Int("iterations", cfg.Iterations),
		slog.Duration("wait", cfg.Wait),
		slog.String("policy", policyName(cfg.Policy)),
		slog.Int("retries", cfg.Retries),
	)

	stats := make([]workerStats, cfg.Workers)
	start := time.Now()

	g, gctx := errgroup.WithContext(ctx)
	for w := range cfg.Workers {
		g.Go(func() error {
			return runWorker(gctx, cfg, logger, locker, runID, w, keys, &stats[w])
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("bench: run %s aborted: %w", runID, err)
	}
	elapsed := time.Since(start)

	rep := buildReport(runID, cfg, stats, cbTimeouts.Load(), elapsed)
	logger.Info("bench run complete",
		slog.String("run_id", runID),
		slog.Int64("acquired", rep.Acquired),
		slog.Int64("timeouts", rep.Timeouts),
		slog.Int64("retries", rep.Retries),
		slog.Duration("elapsed", rep.Elapsed),
	)
	return rep, nil
}

// lockOptions 把压测参数转换成锁管理器选项。
func lockOptions(cfg Config, cbTimeouts *atomic.Int64) ([]xkmutex.Option[string], error) {
	opts := []xkmutex.Option[string]{
		xkmutex.WithWaitTimeout[string](cfg.Wait),
	}

	if policyName(cfg.Policy) == PolicySilent {
		policy, err := xkmutex.CallbackPolicy(func(string) {
			cbTimeouts.Add(1)
		})
		if err != nil {
			return nil, err
		}
		opts = append(opts, xkmutex.WithTimeoutPolicy[string](policy))
	}
	if cfg.MaxKeys > 0 {
		opts = append(opts, xkmutex.WithMaxKeys[string](cfg.MaxKeys))
	}
	return opts, nil
}

// runWorker 单个 worker 的操作循环。
func runWorker(ctx context.Context, cfg Config, logger *slog.Logger, locker *xkmutex.Locker[string], runID string, worker int, keys []string, st *workerStats) error {
	var tok *xkmutex.Token[string]
	var wait time.Duration
	var key string

	attempt := func() error {
		begin := time.Now()
		got, err := locker.Acquire(ctx, key)
		if err != nil {
			// fail 策略的超时从错误路径统计；silent 策略由回调统计。
			if errors.Is(err, xkmutex.ErrLockTimeout) {
				st.timeouts++
			}
			return err
		}
		if got.TimedOut() {
			return errAttemptTimeout
		}
		tok = got
		wait = time.Since(begin)
		return nil
	}

	retrier := retry.New(
		retry.Context(ctx),
		retry.Attempts(uint(cfg.Retries)+1),
		retry.RetryIf(isTimeout),
		retry.OnRetry(func(n uint, _ error) {
			logger.Debug("acquire attempt timed out",
				slog.Int("worker", worker),
				slog.String("key", key),
				slog.Uint64("attempt", uint64(n)),
			)
		}),
		retry.Delay(cfg.RetryDelay),
		retry.DelayType(retry.FixedDelay),
		retry.LastErrorOnly(true),
	)

	for iter := range cfg.Iterations {
		if err := ctx.Err(); err != nil {
			return err
		}
		key = keys[pickKey(runID, worker, iter, len(keys))]
		tok = nil

		err := retrier.Do(attempt)
		switch {
		case err == nil:
			st.observe(wait)
			if cfg.Hold > 0 {
				time.Sleep(cfg.Hold)
			}
			if rerr := tok.Release(); rerr != nil {
				return rerr
			}
			st.acquired++
		case isTimeout(err):
			// 重试耗尽仍未拿到锁，记一次放弃并继续后面的操作。
			st.exhausted++
		default:
			return err
		}
	}
	return nil
}

// isTimeout 判断一次获取尝试是否因超时失败。
func isTimeout(err error) bool {
	return errors.Is(err, xkmutex.ErrLockTimeout) || errors.Is(err, errAttemptTimeout)
}

// makeKeys 生成压测用的 key 集合。
func makeKeys(n int) []string {
	keys := make([]string, n)
	for i := range n {
		keys[i] = "key-" + strconv.Itoa(i)
	}
	return keys
}

// pickKey 用 xxhash 把 (运行, worker, 迭代) 映射到一个 key 下标，
// 得到确定性但近似均匀的竞争分布。
func pickKey(runID string, worker, iter, keys int) int {
	h := xxhash.Sum64String(runID + "/" + strconv.Itoa(worker) + "/" + strconv.Itoa(iter))
	return int(h % uint64(keys))
}

// policyName 归一化策略名，空串等同 fail。
func policyName(p string) string {
	if p == "" {
		return PolicyFail
	}
	return p
}
