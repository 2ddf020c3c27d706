// Package present 把记录字段格式化成界面展示用的文本。
package present

import (
	"fmt"
	"math"
	"strconv"
	"time"
	"unicode/utf16"
)

var sizeUnits = []string{"B", "KB", "MB", "GB"}

// FormatSize 以 1024 为进制格式化字节数，保留一位小数并去掉多余的 0。
func FormatSize(bytes int64) string {
	if bytes <= 0 {
		return "0 B"
	}
	i := int(math.Floor(math.Log(float64(bytes)) / math.Log(1024)))
	i = min(i, len(sizeUnits)-1)
	value := float64(bytes) / math.Pow(1024, float64(i))
	value = math.Round(value*10) / 10
	return strconv.FormatFloat(value, 'f', -1, 64) + " " + sizeUnits[i]
}

// RelativeTime 一天以内显示相对时间，否则（包括未来时间）显示日/月/年。
func RelativeTime(then, now time.Time) string {
	diff := now.Sub(then)
	if diff < 0 || diff > 24*time.Hour {
		return then.Format("02/01/2006")
	}
	minutes := int(diff / time.Minute)
	switch {
	case minutes < 1:
		return "Just now"
	case minutes < 60:
		return fmt.Sprintf("%dm ago", minutes)
	default:
		return fmt.Sprintf("%dh ago", minutes/60)
	}
}

// Tones 是标签可用的配色。
var Tones = []string{"rose", "indigo", "emerald", "amber", "sky", "purple"}

// TagTone 按标签文本的 32 位哈希选出固定配色，同一标签总是同一颜色。
func TagTone(tag string) string {
	var hash int32
	for _, unit := range utf16.Encode([]rune(tag)) {
		hash = int32(unit) + ((hash << 5) - hash)
	}
	abs := int64(hash)
	if abs < 0 {
		abs = -abs
	}
	return Tones[abs%int64(len(Tones))]
}
