package feed

import (
	"strings"
	"time"

	"github.com/araddon/dateparse"
)

// ParseTime 解析 Feed 中的各种时间格式（RFC 1123 / RFC 3339 / ISO 8601 等）
func ParseTime(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	if t, err := time.Parse(time.RFC1123Z, s); err == nil {
		return t, true
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, true
	}
	t, err := dateparse.ParseAny(s)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

// Timestamp 返回毫秒时间戳，无法解析时为 0
func Timestamp(s string) int64 {
	t, ok := ParseTime(s)
	if !ok {
		return 0
	}
	return t.UnixMilli()
}
