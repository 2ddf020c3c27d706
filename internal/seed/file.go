package seed

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"gridflow/internal/repository"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// DefaultDebounceInterval 是文件最后一次变化到重新加载之间的等待时间。
const DefaultDebounceInterval = 200 * time.Millisecond

// File 从 JSON 文件读取种子记录，Watch 之后文件变化会在防抖后重新加载。
// 重新加载失败时保留上一次成功的结果。
type File struct {
	path     string
	logger   *zap.Logger
	debounce time.Duration

	mu      sync.RWMutex
	records []repository.FileRecord

	watcher   *fsnotify.Watcher
	stopChan  chan struct{}
	doneChan  chan struct{}
	closeOnce sync.Once

	timerMu sync.Mutex
	pending *time.Timer
	reloads chan struct{}
}

// NewFile 立即加载一次文件，失败时返回错误。
func NewFile(path string, logger *zap.Logger) (*File, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("resolve seed file: %w", err)
	}
	f := &File{
		path:     abs,
		logger:   logger.With(zap.String("seed_file", abs)),
		debounce: DefaultDebounceInterval,
		stopChan: make(chan struct{}),
		doneChan: make(chan struct{}),
		reloads:  make(chan struct{}, 1),
	}
	if err := f.reload(); err != nil {
		return nil, err
	}
	return f, nil
}

// Load 返回最近一次成功加载的记录副本。
func (f *File) Load(ctx context.Context) ([]repository.FileRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	f.mu.RLock()
	defer f.mu.RUnlock()
	return cloneAll(f.records), nil
}

// Reloaded 在每次成功重新加载后收到一个信号，主要供测试等待。
func (f *File) Reloaded() <-chan struct{} {
	return f.reloads
}

// Watch 监听文件所在目录。编辑器常用重命名替换文件，所以监听目录而不是文件本身。
func (f *File) Watch() error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	if err := w.Add(filepath.Dir(f.path)); err != nil {
		w.Close()
		return fmt.Errorf("watch %s: %w", filepath.Dir(f.path), err)
	}
	f.watcher = w
	go f.processEvents()
	return nil
}

// Close 停止监听，可重复调用。
func (f *File) Close() error {
	var err error
	f.closeOnce.Do(func() {
		close(f.stopChan)
		f.timerMu.Lock()
		if f.pending != nil {
			f.pending.Stop()
		}
		f.timerMu.Unlock()
		if f.watcher != nil {
			err = f.watcher.Close()
			<-f.doneChan
		}
	})
	return err
}

func (f *File) processEvents() {
	defer close(f.doneChan)
	for {
		select {
		case <-f.stopChan:
			return
		case event, ok := <-f.watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != f.path {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			f.scheduleReload()
		case err, ok := <-f.watcher.Errors:
			if !ok {
				return
			}
			f.logger.Warn("种子文件监听出错", zap.Error(err))
		}
	}
}

func (f *File) scheduleReload() {
	f.timerMu.Lock()
	defer f.timerMu.Unlock()
	if f.pending != nil {
		f.pending.Stop()
	}
	f.pending = time.AfterFunc(f.debounce, func() {
		select {
		case <-f.stopChan:
			return
		default:
		}
		if err := f.reload(); err != nil {
			f.logger.Warn("重新加载种子文件失败，继续使用上一版本", zap.Error(err))
			return
		}
		f.logger.Info("种子文件已重新加载")
		select {
		case f.reloads <- struct{}{}:
		default:
		}
	})
}

func (f *File) reload() error {
	file, err := os.Open(f.path)
	if err != nil {
		return fmt.Errorf("open seed file: %w", err)
	}
	defer file.Close()

	records, err := Decode(file)
	if err != nil {
		return err
	}

	f.mu.Lock()
	f.records = records
	f.mu.Unlock()
	return nil
}
