// xkmbench 是 xkmutex 锁管理器的竞争压测工具。
//
// 用法:
//
//	xkmbench [选项]
//
// 选项:
//
//	-w, --workers     并发 worker 数 (默认: 4)
//	-k, --keys        竞争的 key 数量 (默认: 16)
//	-n, --iterations  每个 worker 的操作次数 (默认: 1000)
//	    --hold        每次获取后的持锁时长 (默认: 1ms)
//	    --wait-ms     等待预算毫秒数: -1 无限等待, 0 不等待 (默认: -1)
//	    --policy      超时策略: fail 或 silent (默认: fail)
//	    --retries     超时后的最大重试次数 (默认: 0)
//	    --retry-delay 重试间隔 (默认: 0, 立即重试)
//	    --max-keys    锁表容量上限, 0 不限制 (默认: 0)
//	-c, --config      从 YAML/JSON 文件加载 wait-ms/policy/max-keys,
//	                  显式传入的同名命令行选项优先于文件
//	-v, --verbose     输出 debug 级别日志（含每次重试）
//
// 退出码:
//
//	0: 压测完成
//	1: 压测中止（上下文取消、锁表错误等）
//	2: 参数或配置文件错误
//
// 示例:
//
//	xkmbench                                  # 默认参数跑一轮
//	xkmbench -w 16 -k 4 --hold 2ms            # 16 worker 挤 4 个 key
//	xkmbench --wait-ms 0 --retries 5          # 不等待, 调用方重试 5 次
//	xkmbench --policy silent --wait-ms 10     # silent 策略, 10ms 预算
//	xkmbench -c locking.yaml -n 10000         # 锁参数来自配置文件
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/urfave/cli/v3"

	"github.com/omeyang/xkmutex/internal/bench"
	"github.com/omeyang/xkmutex/pkg/xkmconf"
)

// 版本信息（可通过 -ldflags 注入，例如:
//
//	go build -ldflags "-X main.Version=1.0.0 -X main.GitCommit=$(git rev-parse --short HEAD) -X main.BuildTime=$(date -u +%Y-%m-%dT%H:%M:%SZ)"
//
// ）。
var (
	Version   = "0.1.0-dev"
	GitCommit = "unknown"
	BuildTime = "unknown"
)

func main() {
	os.Exit(run())
}

// createApp 创建 CLI 应用。
func createApp() *cli.Command {
	return &cli.Command{
		Name:    "xkmbench",
		Usage:   "xkmutex 锁管理器竞争压测工具",
		Version: fmt.Sprintf("%s (commit: %s, built: %s)", Version, GitCommit, BuildTime),
		Flags: []cli.Flag{
			&cli.IntFlag{
				Name:    "workers",
				Aliases: []string{"w"},
				Usage:   "并发 worker 数",
				Value:   4,
			},
			&cli.IntFlag{
				Name:    "keys",
				Aliases: []string{"k"},
				Usage:   "竞争的 key 数量",
				Value:   16,
			},
			&cli.IntFlag{
				Name:    "iterations",
				Aliases: []string{"n"},
				Usage:   "每个 worker 的操作次数",
				Value:   1000,
			},
			&cli.DurationFlag{
				Name:  "hold",
				Usage: "每次获取后的持锁时长",
				Value: time.Millisecond,
			},
			&cli.IntFlag{
				Name:  "wait-ms",
				Usage: "等待预算毫秒数: -1 无限等待, 0 不等待",
				Value: -1,
			},
			&cli.StringFlag{
				Name:  "policy",
				Usage: "超时策略: fail 或 silent",
				Value: bench.PolicyFail,
			},
			&cli.IntFlag{
				Name:  "retries",
				Usage: "超时后的最大重试次数",
			},
			&cli.DurationFlag{
				Name:  "retry-delay",
				Usage: "重试间隔",
			},
			&cli.IntFlag{
				Name:  "max-keys",
				Usage: "锁表容量上限, 0 不限制",
			},
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "YAML/JSON 配置文件路径",
			},
			&cli.BoolFlag{
				Name:    "verbose",
				Aliases: []string{"v"},
				Usage:   "输出 debug 级别日志",
			},
		},
		Action: runAction,
		Authors: []any{
			"XKMutex Team",
		},
		// 设计决策: 禁止 urfave/cli 直接调用 os.Exit，
		// 由 run() 统一处理退出码映射，确保与文档退出码契约一致。
		ExitErrHandler: func(_ context.Context, _ *cli.Command, err error) {
			if _, ok := err.(cli.ExitCoder); ok {
				fmt.Fprintln(os.Stderr, err)
			}
		},
	}
}

// runAction 压测入口：组装参数、执行、输出报告。
func runAction(ctx context.Context, cmd *cli.Command) error {
	cfg, err := benchConfig(cmd)
	if err != nil {
		return err
	}
	cfg.Logger = newLogger(cmd.Bool("verbose"))

	rep, err := bench.Run(ctx, cfg)
	if err != nil {
		return err
	}

	fmt.Println(rep)
	cfg.Logger.Debug("structured report", slog.Any("report", rep))
	return nil
}

// benchConfig 组装压测参数。
// 优先级：显式命令行选项 > 配置文件 > 选项默认值。
func benchConfig(cmd *cli.Command) (bench.Config, error) {
	waitMS := cmd.Int("wait-ms")
	policy := cmd.String("policy")
	maxKeys := cmd.Int("max-keys")

	if path := cmd.String("config"); path != "" {
		s, err := xkmconf.Load(path)
		if err != nil {
			return bench.Config{}, err
		}
		if !cmd.IsSet("wait-ms") {
			waitMS = int(s.WaitTimeoutMS)
		}
		if !cmd.IsSet("policy") {
			policy = s.Policy
		}
		if !cmd.IsSet("max-keys") {
			maxKeys = s.MaxKeys
		}
	}

	return bench.Config{
		Workers:    cmd.Int("workers"),
		Keys:       cmd.Int("keys"),
		Iterations: cmd.Int("iterations"),
		Hold:       cmd.Duration("hold"),
		Wait:       time.Duration(waitMS) * time.Millisecond,
		Policy:     policy,
		Retries:    cmd.Int("retries"),
		RetryDelay: cmd.Duration("retry-delay"),
		MaxKeys:    maxKeys,
	}, nil
}

// newLogger 构建输出到 stderr 的文本日志器。
func newLogger(verbose bool) *slog.Logger {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}

func run() int {
	app := createApp()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	setupSignalHandler(cancel)

	if err := app.Run(ctx, os.Args); err != nil {
		if isUsageError(err) {
			fmt.Fprintf(os.Stderr, "参数错误: %v\n", err)
			return 2
		}
		fmt.Fprintf(os.Stderr, "错误: %v\n", err)
		return 1
	}
	return 0
}

// isUsageError 判断错误是否属于"参数或配置文件错误"（退出码 2）。
func isUsageError(err error) bool {
	return errors.Is(err, bench.ErrInvalidConfig) ||
		errors.Is(err, xkmconf.ErrEmptyPath) ||
		errors.Is(err, xkmconf.ErrUnsupportedFormat) ||
		errors.Is(err, xkmconf.ErrLoadFailed) ||
		errors.Is(err, xkmconf.ErrParseFailed) ||
		errors.Is(err, xkmconf.ErrUnmarshalFailed) ||
		errors.Is(err, xkmconf.ErrUnknownPolicy)
}

// setupSignalHandler 设置信号处理。
// 设计决策: 第一次信号优雅取消，第二次信号强制退出（退出码 130 = 128 + SIGINT）。
// 当压测阻塞在无限等待上时，用户可通过再次 Ctrl+C 强制退出。
func setupSignalHandler(cancel context.CancelFunc) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		cancel() // 第一次信号: 优雅取消

		<-sigCh
		signal.Stop(sigCh) // 回收订阅
		os.Exit(130)       // 第二次信号: 强制退出
	}()
}
