package annotate

import (
	"context"
	"strings"
	"time"

	"github.com/go-shiori/go-readability"
)

// ReadabilityReader 用 go-readability 提取正文
type ReadabilityReader struct {
	Timeout  time.Duration
	MaxRunes int
}

// NewReadabilityReader 默认 30s 超时，最多保留 600 字
func NewReadabilityReader(timeout time.Duration) *ReadabilityReader {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &ReadabilityReader{Timeout: timeout, MaxRunes: 600}
}

// Excerpt 返回压缩空白后的正文开头部分
func (r *ReadabilityReader) Excerpt(ctx context.Context, url string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	article, err := readability.FromURL(url, r.Timeout)
	if err != nil {
		return "", err
	}
	return truncate(strings.Join(strings.Fields(article.TextContent), " "), r.MaxRunes), nil
}

func truncate(s string, n int) string {
	if n <= 0 {
		return s
	}
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n])
}
