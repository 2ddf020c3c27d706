package service

import (
	"sync"
	"time"
)

// DefaultNotificationTTL 是状态提示的默认展示时长。
const DefaultNotificationTTL = 4 * time.Second

// Kind 区分成功与失败提示。
type Kind string

const (
	KindSuccess Kind = "success"
	KindError   Kind = "error"
)

// Notification 是单槽状态提示，零值表示空闲。
type Notification struct {
	Kind      Kind      `json:"kind"`
	Message   string    `json:"message"`
	ExpiresAt time.Time `json:"expires_at"`
}

// Visible 判断是否处于展示状态。
func (n Notification) Visible() bool {
	return n.Kind != ""
}

// Notifier 维护 idle / showing 两态；新的 Show 覆盖旧消息并替换唯一的过期计时器。
type Notifier struct {
	mu         sync.Mutex
	clock      Clock
	ttl        time.Duration
	current    Notification
	timer      Timer
	generation uint64
	closed     bool
	observe    func(Notification)
}

func NewNotifier(clock Clock, ttl time.Duration) *Notifier {
	if clock == nil {
		clock = SystemClock{}
	}
	if ttl <= 0 {
		ttl = DefaultNotificationTTL
	}
	return &Notifier{clock: clock, ttl: ttl}
}

// Show 展示新消息并重新计时。
func (n *Notifier) Show(kind Kind, message string) {
	n.mu.Lock()
	if n.closed {
		n.mu.Unlock()
		return
	}
	n.stopLocked()
	n.generation++
	gen := n.generation
	n.current = Notification{Kind: kind, Message: message, ExpiresAt: n.clock.Now().Add(n.ttl)}
	shown := n.current
	n.timer = n.clock.AfterFunc(n.ttl, func() { n.expire(gen) })
	observe := n.observe
	n.mu.Unlock()

	if observe != nil {
		observe(shown)
	}
}

// OnShow 注册每次展示新消息时的回调，用于指标统计。
func (n *Notifier) OnShow(f func(Notification)) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.observe = f
}

// Success 是 Show(KindSuccess, message) 的简写。
func (n *Notifier) Success(message string) {
	n.Show(KindSuccess, message)
}

// Error 是 Show(KindError, message) 的简写。
func (n *Notifier) Error(message string) {
	n.Show(KindError, message)
}

// Dismiss 立即回到空闲状态并取消计时器。
func (n *Notifier) Dismiss() {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.stopLocked()
	n.generation++
	n.current = Notification{}
}

// Current 返回当前展示的提示。
func (n *Notifier) Current() Notification {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.current
}

// Armed 判断是否存在未触发的过期计时器。
func (n *Notifier) Armed() bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.timer != nil
}

// Close 取消计时器，之后的 Show 被忽略。
func (n *Notifier) Close() {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.stopLocked()
	n.generation++
	n.current = Notification{}
	n.closed = true
}

func (n *Notifier) expire(gen uint64) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if gen != n.generation {
		return
	}
	n.timer = nil
	n.current = Notification{}
}

func (n *Notifier) stopLocked() {
	if n.timer != nil {
		n.timer.Stop()
		n.timer = nil
	}
}
