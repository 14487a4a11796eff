package fetcher

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/iWorld-y/news_hud/app/hud/pkg/cache"
	"github.com/iWorld-y/news_hud/app/hud/pkg/logger"
)

const (
	DefaultUserAgent   = "Mozilla/5.0 (NewsHUD RSS Fetcher)"
	DefaultAccept      = "application/rss+xml, application/atom+xml, application/xml;q=0.9, text/xml;q=0.8, */*;q=0.5"
	DefaultContentType = "application/xml; charset=utf-8"
)

// Body 缓存中保存的原始响应
type Body struct {
	Data        string
	ContentType string
}

// Result 一次抓取的结果
type Result struct {
	Body        string
	ContentType string
	FetchedAt   time.Time
	Cached      bool
}

// ErrBodyTooLarge 响应体超过 MaxBytes
var ErrBodyTooLarge = errors.New("body too large")

// FetchError 抓取失败。StatusCode 为 0 表示未收到 HTTP 响应
type FetchError struct {
	URL        string
	StatusCode int
	Err        error
}

func (e *FetchError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("fetch %s: http status %d", e.URL, e.StatusCode)
	}
	return fmt.Sprintf("fetch %s: %v", e.URL, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

// IsHTTPURL 仅接受 http / https 绝对地址
func IsHTTPURL(raw string) bool {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil || u.Host == "" {
		return false
	}
	return u.Scheme == "http" || u.Scheme == "https"
}

// Config 抓取配置
type Config struct {
	Timeout   time.Duration // 默认 20s
	MaxBytes  int64         // 响应体上限，默认 10MB
	UserAgent string
	Client    *http.Client
}

func (c *Config) defaults() {
	if c.Timeout <= 0 {
		c.Timeout = 20 * time.Second
	}
	if c.MaxBytes <= 0 {
		c.MaxBytes = 10 * 1024 * 1024
	}
	if c.UserAgent == "" {
		c.UserAgent = DefaultUserAgent
	}
}

// Fetcher 带缓存的 Feed 抓取器
type Fetcher struct {
	client *http.Client
	config Config
	cache  *cache.Store[Body]
	group  singleflight.Group
}

// New 创建抓取器，store 由组合根持有并注入
func New(cfg Config, store *cache.Store[Body]) *Fetcher {
	cfg.defaults()
	client := cfg.Client
	if client == nil {
		client = &http.Client{Timeout: cfg.Timeout}
	}
	if store == nil {
		store = cache.New[Body](cache.Options{TTL: 60 * time.Second})
	}
	return &Fetcher{client: client, config: cfg, cache: store}
}

// Fetch 新鲜期内直接返回缓存，否则回源抓取并覆盖缓存。不做重试
func (f *Fetcher) Fetch(ctx context.Context, url string) (*Result, error) {
	if entry, fresh, ok := f.cache.Get(url); ok && fresh {
		logger.Log.Debugf("feed 缓存命中 [%s]", url)
		return &Result{
			Body:        entry.Value.Data,
			ContentType: entry.Value.ContentType,
			FetchedAt:   entry.FetchedAt,
			Cached:      true,
		}, nil
	}

	// 同一 URL 的并发回源合并为一次。回源不随发起者取消，只受客户端超时约束
	ch := f.group.DoChan(url, func() (interface{}, error) {
		return f.fetchOrigin(context.WithoutCancel(ctx), url)
	})
	select {
	case <-ctx.Done():
		return nil, &FetchError{URL: url, Err: ctx.Err()}
	case r := <-ch:
		if r.Err != nil {
			return nil, r.Err
		}
		res := *r.Val.(*Result)
		return &res, nil
	}
}

func (f *Fetcher) fetchOrigin(ctx context.Context, url string) (*Result, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, &FetchError{URL: url, Err: fmt.Errorf("new request: %w", err)}
	}
	req.Header.Set("User-Agent", f.config.UserAgent)
	req.Header.Set("Accept", DefaultAccept)

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, &FetchError{URL: url, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return nil, &FetchError{URL: url, StatusCode: resp.StatusCode, Err: fmt.Errorf("http %d", resp.StatusCode)}
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, f.config.MaxBytes+1))
	if err != nil {
		return nil, &FetchError{URL: url, Err: fmt.Errorf("read body: %w", err)}
	}
	if int64(len(data)) > f.config.MaxBytes {
		return nil, &FetchError{URL: url, Err: fmt.Errorf("%w: limit %d bytes", ErrBodyTooLarge, f.config.MaxBytes)}
	}

	contentType := resp.Header.Get("Content-Type")
	if contentType == "" {
		contentType = DefaultContentType
	}

	entry := f.cache.Put(url, Body{Data: string(data), ContentType: contentType})
	logger.Log.Debugf("feed 回源成功 [%s] %d bytes", url, len(data))

	return &Result{
		Body:        entry.Value.Data,
		ContentType: entry.Value.ContentType,
		FetchedAt:   entry.FetchedAt,
	}, nil
}
