package service

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"strings"

	"github.com/go-kratos/kratos/v2/log"

	"github.com/iWorld-y/news_hud/app/hud/pkg/aggregate"
	"github.com/iWorld-y/news_hud/app/hud/pkg/annotate"
	"github.com/iWorld-y/news_hud/app/hud/pkg/feed"
	"github.com/iWorld-y/news_hud/app/hud/pkg/fetcher"
	"github.com/iWorld-y/news_hud/app/hud/pkg/model"
)

const (
	FormatRaw  = "raw"
	FormatJSON = "json"
	FormatRSS  = "rss"

	convertedTitle = "Converted Feed"
)

// FeedFetcher 抓取单个 Feed
type FeedFetcher interface {
	Fetch(ctx context.Context, url string) (*fetcher.Result, error)
}

// FeedAggregator 合并多个 Feed
type FeedAggregator interface {
	Aggregate(ctx context.Context, urls []string) *aggregate.Result
}

// Forecaster 生成预测文档
type Forecaster interface {
	Forecast(ctx context.Context, items []model.Item, horizonDays int) (*model.ForecastDocument, error)
}

// Annotator 生成标题注解
type Annotator interface {
	Annotate(ctx context.Context, req annotate.Request) (string, error)
}

// Payload 已编码的响应体
type Payload struct {
	Body        []byte
	ContentType string
}

// AnnotateRequest POST /api/annotate 请求体
type AnnotateRequest struct {
	Title string        `json:"title"`
	Meta  *AnnotateMeta `json:"meta,omitempty"`
}

type AnnotateMeta struct {
	Source  string `json:"source"`
	Time    string `json:"time"`
	Summary string `json:"summary"`
	URL     string `json:"url"`
}

type AnnotateReply struct {
	Note string `json:"note"`
}

// ForecastRequest POST /api/forecast 请求体
type ForecastRequest struct {
	Items       []model.Item
	HorizonDays int
}

type FeedsReply struct {
	Feeds []model.Feed `json:"feeds"`
}

// HudService 新闻面板服务
type HudService struct {
	fetcher    FeedFetcher
	aggregator FeedAggregator
	forecaster Forecaster
	annotator  Annotator
	feeds      []model.Feed
	log        *log.Helper
}

func NewHudService(f FeedFetcher, a FeedAggregator, fc Forecaster, an Annotator, feeds []model.Feed, logger log.Logger) *HudService {
	if feeds == nil {
		feeds = []model.Feed{}
	}
	return &HudService{
		fetcher:    f,
		aggregator: a,
		forecaster: fc,
		annotator:  an,
		feeds:      feeds,
		log:        log.NewHelper(logger),
	}
}

// RSS 单个 Feed 的透传 / 规范化 / 转换
func (s *HudService) RSS(ctx context.Context, url, format string) (*Payload, error) {
	if format == "" {
		format = FormatRaw
	}
	if !fetcher.IsHTTPURL(url) {
		return nil, invalid("url", "bad url")
	}
	if format != FormatRaw && format != FormatJSON && format != FormatRSS {
		return nil, invalid("format", "unknown format")
	}

	res, err := s.fetcher.Fetch(ctx, url)
	if err != nil {
		return nil, err
	}

	if format == FormatRaw {
		ct := feed.Sniff(res.Body).ContentType()
		if ct == "" {
			ct = res.ContentType
		}
		return &Payload{Body: []byte(res.Body), ContentType: ct}, nil
	}

	doc, err := feed.Normalize(res.Body)
	if err != nil {
		return nil, err
	}

	if format == FormatJSON {
		data, err := json.Marshal(doc)
		if err != nil {
			return nil, err
		}
		return &Payload{Body: data, ContentType: "application/json; charset=utf-8"}, nil
	}

	name := doc.Title
	if name == "" {
		name = "Feed"
	}
	ch := feed.Channel{Title: doc.Title, Link: doc.Link, Description: name + " via NewsHUD"}
	if ch.Title == "" {
		ch.Title = convertedTitle
	}
	if ch.Link == "" {
		ch.Link = url
	}
	data, err := feed.ToRSS2(ch, doc.Items)
	if err != nil {
		return nil, err
	}
	return &Payload{Body: data, ContentType: "application/rss+xml; charset=utf-8"}, nil
}

// Aggregate 合并逗号分隔的多个 Feed
func (s *HudService) Aggregate(ctx context.Context, feeds, format string) (*Payload, error) {
	var urls []string
	for _, u := range strings.Split(feeds, ",") {
		if u = strings.TrimSpace(u); u != "" {
			urls = append(urls, u)
		}
	}
	if len(urls) == 0 {
		return nil, invalid("feeds", "feeds required")
	}
	if format == "" {
		format = FormatRSS
	}
	if format != FormatJSON && format != FormatRSS {
		return nil, invalid("format", "unknown format")
	}

	res := s.aggregator.Aggregate(ctx, urls)
	data, ct, err := aggregate.Render(res, format)
	if errors.Is(err, aggregate.ErrUnsupportedFormat) {
		return nil, invalid("format", "unknown format")
	}
	if err != nil {
		return nil, err
	}
	return &Payload{Body: data, ContentType: ct}, nil
}

// DecodeAnnotate 解析注解请求
func DecodeAnnotate(body []byte) (*AnnotateRequest, error) {
	var req AnnotateRequest
	if len(bytes.TrimSpace(body)) > 0 {
		if err := json.Unmarshal(body, &req); err != nil {
			return nil, invalid("body", "invalid JSON")
		}
	}
	return &req, nil
}

// Annotate 标题注解
func (s *HudService) Annotate(ctx context.Context, req *AnnotateRequest) (*AnnotateReply, error) {
	if req == nil || strings.TrimSpace(req.Title) == "" {
		return nil, invalid("title", "title is required")
	}

	in := annotate.Request{Title: req.Title}
	if req.Meta != nil {
		in.Source = req.Meta.Source
		in.Time = req.Meta.Time
		in.Summary = req.Meta.Summary
		in.URL = req.Meta.URL
	}

	note, err := s.annotator.Annotate(ctx, in)
	if errors.Is(err, annotate.ErrTitleRequired) {
		return nil, invalid("title", "title is required")
	}
	if err != nil {
		s.log.WithContext(ctx).Errorf("annotate failed: %v", err)
		return nil, err
	}
	return &AnnotateReply{Note: note}, nil
}

// DecodeForecast 解析预测请求，items 必须是非空数组，条目字段宽松转换
func DecodeForecast(body []byte) (*ForecastRequest, error) {
	var raw struct {
		Items       json.RawMessage `json:"items"`
		HorizonDays *float64        `json:"horizonDays"`
	}
	if len(bytes.TrimSpace(body)) > 0 {
		if err := json.Unmarshal(body, &raw); err != nil {
			return nil, invalid("body", "invalid JSON")
		}
	}

	items, err := model.DecodeItems(raw.Items)
	if err != nil {
		return nil, invalid("items", "items array required")
	}
	req := &ForecastRequest{Items: items}
	if len(req.Items) == 0 {
		return nil, invalid("items", "items array required")
	}
	if raw.HorizonDays != nil && *raw.HorizonDays > 0 {
		req.HorizonDays = int(*raw.HorizonDays)
	}
	return req, nil
}

// Forecast map-reduce 预测
func (s *HudService) Forecast(ctx context.Context, req *ForecastRequest) (*model.ForecastDocument, error) {
	if req == nil || len(req.Items) == 0 {
		return nil, invalid("items", "items array required")
	}
	doc, err := s.forecaster.Forecast(ctx, req.Items, req.HorizonDays)
	if err != nil {
		s.log.WithContext(ctx).Errorf("forecast failed: %v", err)
		return nil, err
	}
	return doc, nil
}

// Feeds 返回默认订阅源
func (s *HudService) Feeds(ctx context.Context) *FeedsReply {
	return &FeedsReply{Feeds: s.feeds}
}
