package service

import (
	"sort"
	"sync"
	"time"

	"github.com/atotto/clipboard"
)

// DefaultCopiedTTL 是“已复制”标记的默认保留时长。
const DefaultCopiedTTL = 2 * time.Second

// Clipboard 尽力把文本写入宿主剪贴板，失败时返回 false，从不 panic。
type Clipboard interface {
	Copy(text string) bool
}

// ClipboardFunc 让普通函数满足 Clipboard。
type ClipboardFunc func(text string) bool

func (f ClipboardFunc) Copy(text string) bool {
	return f(text)
}

// SystemClipboard 通过 xclip/xsel/pbcopy 等宿主工具写入剪贴板。
// 容器或无图形环境下工具不存在，Copy 返回 false。
type SystemClipboard struct{}

func (SystemClipboard) Copy(text string) (ok bool) {
	defer func() {
		if recover() != nil {
			ok = false
		}
	}()
	if clipboard.Unsupported {
		return false
	}
	return clipboard.WriteAll(text) == nil
}

// Indicators 维护按动作区分的临时“已复制”标记，各自计时，与状态提示互不影响。
type Indicators struct {
	mu     sync.Mutex
	clock  Clock
	ttl    time.Duration
	active map[string]*indicator
	closed bool
}

type indicator struct {
	timer Timer
}

func NewIndicators(clock Clock, ttl time.Duration) *Indicators {
	if clock == nil {
		clock = SystemClock{}
	}
	if ttl <= 0 {
		ttl = DefaultCopiedTTL
	}
	return &Indicators{clock: clock, ttl: ttl, active: make(map[string]*indicator)}
}

// Mark 点亮标记并在 ttl 后自动熄灭；重复点亮会重新计时。
func (i *Indicators) Mark(key string) {
	i.mu.Lock()
	defer i.mu.Unlock()
	if i.closed {
		return
	}
	if prev, ok := i.active[key]; ok {
		prev.timer.Stop()
	}
	entry := &indicator{}
	entry.timer = i.clock.AfterFunc(i.ttl, func() { i.expire(key, entry) })
	i.active[key] = entry
}

// Clear 立即熄灭标记。
func (i *Indicators) Clear(key string) {
	i.mu.Lock()
	defer i.mu.Unlock()
	if prev, ok := i.active[key]; ok {
		prev.timer.Stop()
		delete(i.active, key)
	}
}

// Active 判断标记是否点亮。
func (i *Indicators) Active(key string) bool {
	i.mu.Lock()
	defer i.mu.Unlock()
	_, ok := i.active[key]
	return ok
}

// Keys 返回当前点亮的标记，按字典序。
func (i *Indicators) Keys() []string {
	i.mu.Lock()
	defer i.mu.Unlock()
	keys := make([]string, 0, len(i.active))
	for key := range i.active {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}

// Close 停止全部计时器。
func (i *Indicators) Close() {
	i.mu.Lock()
	defer i.mu.Unlock()
	for key, entry := range i.active {
		entry.timer.Stop()
		delete(i.active, key)
	}
	i.closed = true
}

func (i *Indicators) expire(key string, entry *indicator) {
	i.mu.Lock()
	defer i.mu.Unlock()
	if i.active[key] == entry {
		delete(i.active, key)
	}
}
