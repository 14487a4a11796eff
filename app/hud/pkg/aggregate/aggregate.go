package aggregate

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/iWorld-y/news_hud/app/hud/pkg/feed"
	"github.com/iWorld-y/news_hud/app/hud/pkg/fetcher"
	"github.com/iWorld-y/news_hud/app/hud/pkg/logger"
	"github.com/iWorld-y/news_hud/app/hud/pkg/model"
)

const (
	Title       = "Aggregated Feed"
	Description = "Merged by NewsHUD"

	FormatJSON = "json"
	FormatRSS  = "rss"
)

// ErrUnsupportedFormat 未知的输出格式
var ErrUnsupportedFormat = errors.New("unsupported format")

// Fetcher 抓取单个 Feed
type Fetcher interface {
	Fetch(ctx context.Context, url string) (*fetcher.Result, error)
}

// Result 聚合结果
type Result struct {
	Title string                 `json:"title"`
	Items []model.AggregatedItem `json:"items"`
}

// Aggregator 多源合并
type Aggregator struct {
	fetcher Fetcher
}

// New 创建聚合器
func New(f Fetcher) *Aggregator {
	return &Aggregator{fetcher: f}
}

// Aggregate 并发抓取所有 Feed 并等待全部结束。单个源失败只记录告警，不影响其它源
func (a *Aggregator) Aggregate(ctx context.Context, urls []string) *Result {
	var targets []string
	for _, u := range urls {
		u = strings.TrimSpace(u)
		if fetcher.IsHTTPURL(u) {
			targets = append(targets, u)
		}
	}

	// 每个源一个结果槽，保证合并顺序与输入顺序一致
	slots := make([][]model.Item, len(targets))
	var wg sync.WaitGroup
	for i, u := range targets {
		wg.Add(1)
		go func(i int, u string) {
			defer wg.Done()

			items, err := a.load(ctx, u)
			if err != nil {
				logger.Log.Warnf("聚合跳过 Feed [%s]: %v", u, err)
				return
			}
			slots[i] = items
		}(i, u)
	}
	wg.Wait()

	seen := make(map[string]struct{})
	merged := make([]model.AggregatedItem, 0)
	for _, items := range slots {
		for _, it := range items {
			key := strings.ToLower(it.Title) + "|" + strings.ToLower(it.URL)
			if _, dup := seen[key]; dup {
				continue
			}
			seen[key] = struct{}{}

			if it.Source != "" {
				it.Title = fmt.Sprintf("[%s] %s", it.Source, it.Title)
			}
			merged = append(merged, model.AggregatedItem{Item: it, TS: feed.Timestamp(it.Time)})
		}
	}

	sort.SliceStable(merged, func(i, j int) bool {
		return merged[i].TS > merged[j].TS
	})

	logger.Log.Infof("聚合完成: %d 个源, %d 条", len(targets), len(merged))
	return &Result{Title: Title, Items: merged}
}

func (a *Aggregator) load(ctx context.Context, url string) ([]model.Item, error) {
	res, err := a.fetcher.Fetch(ctx, url)
	if err != nil {
		return nil, err
	}
	doc, err := feed.Normalize(res.Body)
	if err != nil {
		return nil, err
	}
	return doc.Items, nil
}

// Render 按格式输出聚合结果，返回内容与 Content-Type
func Render(r *Result, format string) ([]byte, string, error) {
	switch format {
	case FormatJSON:
		data, err := json.Marshal(r)
		if err != nil {
			return nil, "", err
		}
		return data, "application/json; charset=utf-8", nil
	case FormatRSS:
		items := make([]model.Item, 0, len(r.Items))
		for _, it := range r.Items {
			items = append(items, it.Item)
		}
		data, err := feed.ToRSS2(feed.Channel{Title: r.Title, Description: Description}, items)
		if err != nil {
			return nil, "", err
		}
		return data, "application/rss+xml; charset=utf-8", nil
	default:
		return nil, "", fmt.Errorf("%w: %q", ErrUnsupportedFormat, format)
	}
}
