package xkmconf

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// defaultDebounce 默认去抖间隔。
// 编辑器保存文件时常触发多个连续事件，去抖后只重载一次。
const defaultDebounce = 100 * time.Millisecond

// WatchCallback 配置变更回调。
// 重载成功时 err 为 nil，s 为新配置；
// 重载失败时 err 非 nil，s 保持最后一次成功加载的配置。
type WatchCallback func(s Settings, err error)

// watchOptions 监听选项。
type watchOptions struct {
	debounce time.Duration
}

// WatchOption 修改监听选项的函数。
type WatchOption func(*watchOptions)

// WithDebounce 设置去抖间隔，非正值忽略。
func WithDebounce(d time.Duration) WatchOption {
	return func(o *watchOptions) {
		if d > 0 {
			o.debounce = d
		}
	}
}

// Watcher 监听配置文件变更并自动重载。
//
// 设计决策: 监听文件所在目录而不是文件本身。很多编辑器和配置
// 下发系统通过"写临时文件再改名"的方式原子替换配置，监听文件
// 本身会在替换后失效，监听目录则能持续捕获 Create/Rename 事件。
type Watcher struct {
	loader   *Loader
	fw       *fsnotify.Watcher
	callback WatchCallback
	debounce time.Duration

	ctx    context.Context
	cancel context.CancelFunc

	mu      sync.Mutex
	running bool
	timer   *time.Timer
}

// Watch 创建监听器，文件变更去抖后自动 Reload 并通知回调。
// 返回的 Watcher 需调用 Start 或 StartAsync 启动，用完调用 Stop。
func (l *Loader) Watch(callback WatchCallback, opts ...WatchOption) (*Watcher, error) {
	if callback == nil {
		return nil, errors.New("xkmconf: nil watch callback")
	}

	wo := &watchOptions{debounce: defaultDebounce}
	for _, opt := range opts {
		if opt != nil {
			opt(wo)
		}
	}

	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("xkmconf: failed to create fs watcher: %w", err)
	}
	if err := fw.Add(filepath.Dir(l.path)); err != nil {
		_ = fw.Close()
		return nil, fmt.Errorf("xkmconf: failed to watch %s: %w", filepath.Dir(l.path), err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Watcher{
		loader:   l,
		fw:       fw,
		callback: callback,
		debounce: wo.debounce,
		ctx:      ctx,
		cancel:   cancel,
	}, nil
}

// Start 阻塞运行监听循环，直到 Stop 被调用。
func (w *Watcher) Start() error {
	if err := w.begin(); err != nil {
		return err
	}
	w.run()
	return nil
}

// StartAsync 在后台 goroutine 中运行监听循环。
func (w *Watcher) StartAsync() error {
	if err := w.begin(); err != nil {
		return err
	}
	go w.run()
	return nil
}

// Stop 停止监听并释放资源。可重复调用。
func (w *Watcher) Stop() error {
	w.mu.Lock()
	if w.timer != nil {
		w.timer.Stop()
		w.timer = nil
	}
	w.running = false
	w.mu.Unlock()

	w.cancel()
	return w.fw.Close()
}

// begin 标记监听循环启动，拒绝重复启动。
func (w *Watcher) begin() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.running {
		return errors.New("xkmconf: watcher already started")
	}
	w.running = true
	return nil
}

// run 监听循环。
func (w *Watcher) run() {
	for {
		select {
		case <-w.ctx.Done():
			return
		case event, ok := <-w.fw.Events:
			if !ok {
				return
			}
			w.handleEvent(event)
		case err, ok := <-w.fw.Errors:
			if !ok {
				return
			}
			w.handleError(err)
		}
	}
}

// handleEvent 过滤无关事件并启动去抖定时器。
func (w *Watcher) handleEvent(event fsnotify.Event) {
	// 目录监听会收到同目录下其他文件的事件，只关心目标文件。
	if filepath.Base(event.Name) != filepath.Base(w.loader.path) {
		return
	}
	if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
		return
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	if w.timer != nil {
		w.timer.Stop()
	}
	w.timer = time.AfterFunc(w.debounce, w.fire)
}

// fire 去抖窗口结束后重载配置并通知回调。
func (w *Watcher) fire() {
	select {
	case <-w.ctx.Done():
		return
	default:
	}

	err := w.loader.Reload()
	w.callback(w.loader.Settings(), err)
}

// handleError 把底层监听错误转交回调。
func (w *Watcher) handleError(err error) {
	w.callback(w.loader.Settings(), fmt.Errorf("xkmconf: watch error: %w", err))
}
