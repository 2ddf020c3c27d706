package service

import "time"

// Timer 是已调度回调的句柄。定义为别名，其他包无需引用本包即可实现 Clock。
type Timer = interface {
	Stop() bool
}

// Clock 抽象时间来源与延迟调度，测试中可替换为手动推进的实现。
type Clock interface {
	Now() time.Time
	AfterFunc(d time.Duration, f func()) Timer
}

// SystemClock 基于标准库计时器。
type SystemClock struct{}

func (SystemClock) Now() time.Time {
	return time.Now().UTC()
}

func (SystemClock) AfterFunc(d time.Duration, f func()) Timer {
	return time.AfterFunc(d, f)
}
