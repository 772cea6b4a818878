package xconf

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// DefaultDebounce 默认防抖时间
const DefaultDebounce = 100 * time.Millisecond

// ChangeFunc 重载回调，err 非 nil 表示重载失败（旧快照仍生效）或监视出错。
type ChangeFunc func(src *Source, err error)

// WatchOption 监视选项
type WatchOption func(*watchOptions)

type watchOptions struct {
	debounce time.Duration
}

// WithDebounce 设置防抖时间，非正值忽略。
func WithDebounce(d time.Duration) WatchOption {
	return func(o *watchOptions) {
		if d > 0 {
			o.debounce = d
		}
	}
}

// Watch 监视配置文件并在变更后重载，阻塞直到 ctx 取消。
// 返回时保证不再有回调执行。
func Watch(ctx context.Context, src *Source, onChange ChangeFunc, opts ...WatchOption) error {
	if src == nil || src.path == "" {
		return ErrNotFileBacked
	}
	o := &watchOptions{debounce: DefaultDebounce}
	for _, opt := range opts {
		opt(o)
	}

	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("xconf: create watcher: %w", err)
	}
	dir := filepath.Dir(src.path)
	if err := fw.Add(dir); err != nil {
		return errors.Join(fmt.Errorf("xconf: watch %s: %w", dir, err), fw.Close())
	}

	w := &watcher{src: src, onChange: onChange, debounce: o.debounce}
	defer w.stop()

	filename := filepath.Base(src.path)
	for {
		select {
		case <-ctx.Done():
			return fw.Close()
		case ev, ok := <-fw.Events:
			if !ok {
				return nil
			}
			if relevant(ev, filename) {
				w.schedule()
			}
		case werr, ok := <-fw.Errors:
			if !ok {
				return nil
			}
			w.notify(fmt.Errorf("xconf: watch error: %w", werr))
		}
	}
}

// relevant 只关心目标文件的写入、创建与 rename（原子写入）。
func relevant(ev fsnotify.Event, filename string) bool {
	if filepath.Base(ev.Name) != filename {
		return false
	}
	return ev.Has(fsnotify.Write) || ev.Has(fsnotify.Create) || ev.Has(fsnotify.Rename)
}

type watcher struct {
	src      *Source
	onChange ChangeFunc
	debounce time.Duration

	mu      sync.Mutex
	timer   *time.Timer
	stopped bool
	// cbMu 串行化回调，stop 持有它以等待进行中的回调结束。
	cbMu sync.Mutex
}

func (w *watcher) schedule() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.stopped {
		return
	}
	if w.timer != nil {
		w.timer.Stop()
	}
	w.timer = time.AfterFunc(w.debounce, func() {
		w.notify(w.src.Reload())
	})
}

func (w *watcher) notify(err error) {
	w.cbMu.Lock()
	defer w.cbMu.Unlock()
	w.mu.Lock()
	stopped := w.stopped
	w.mu.Unlock()
	if stopped || w.onChange == nil {
		return
	}
	w.onChange(w.src, err)
}

func (w *watcher) stop() {
	w.mu.Lock()
	w.stopped = true
	if w.timer != nil {
		w.timer.Stop()
	}
	w.mu.Unlock()
	w.cbMu.Lock()
	defer w.cbMu.Unlock()
}
